// Package picker implements the interactive terminal search UI. It
// drives the suggestion engine in-process: every keystroke becomes a
// query, the resulting cursor is polled while sources are still
// reporting, and a click either toggles the expanded section or
// launches the row.
package picker

import (
	"github.com/runger/suggestd/internal/engine"
)

// Cursor is the slice of an engine cursor the picker drives.
type Cursor interface {
	Frame() engine.Frame
	PostRefresh() (isPending bool, notifyIndex int)
	Click(pos int) int
	ThreshHit()
	PreClose(maxDisplayPos int)
}

// Engine produces a cursor per query. Implementations might run the
// engine in-process or proxy to the daemon.
type Engine interface {
	// Query starts a query. Returns nil when the engine is shut down.
	Query(q string) Cursor
}

// NewEngine adapts an engine manager.
func NewEngine(m *engine.Manager) Engine {
	return managerEngine{m: m}
}

type managerEngine struct {
	m *engine.Manager
}

func (e managerEngine) Query(q string) Cursor {
	c := e.m.Query(q)
	if c == nil {
		return nil
	}
	return c
}
