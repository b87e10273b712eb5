package engine

import (
	"context"
	"sync"
	"time"

	"github.com/runger/suggestd/internal/suggest"
)

// MuxReceiver observes a query fan-out. Calls arrive on worker pool
// goroutines.
type MuxReceiver interface {
	// OnSourceQueryStart fires just before a source's query runs.
	OnSourceQueryStart(id suggest.ComponentID)

	// OnSourceResult delivers the source's response: its own on
	// success, an empty error response on failure or timeout. Canceled
	// fan-outs deliver nothing.
	OnSourceResult(res *suggest.Response)
}

// QueryMultiplexer sends one query to a set of sources in parallel and
// funnels the responses to a receiver. Each fan-out is one-shot: a new
// query gets a new multiplexer.
type QueryMultiplexer struct {
	query      string
	sources    []suggest.Source
	maxResults int
	queryLimit int
	timeout    time.Duration
	receiver   MuxReceiver
	exec       Executor

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	sent bool
}

// NewQueryMultiplexer builds a fan-out of query over sources. Each
// source gets at most timeout to answer; maxResults and queryLimit are
// passed through to Suggest.
func NewQueryMultiplexer(query string, sources []suggest.Source, maxResults, queryLimit int,
	timeout time.Duration, receiver MuxReceiver, exec Executor) *QueryMultiplexer {
	ctx, cancel := context.WithCancel(context.Background())
	return &QueryMultiplexer{
		query:      query,
		sources:    sources,
		maxResults: maxResults,
		queryLimit: queryLimit,
		timeout:    timeout,
		receiver:   receiver,
		exec:       exec,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// SendQuery schedules one query task per source. Safe to call more
// than once; only the first call sends.
func (m *QueryMultiplexer) SendQuery() {
	m.mu.Lock()
	if m.sent {
		m.mu.Unlock()
		return
	}
	m.sent = true
	m.mu.Unlock()

	for _, src := range m.sources {
		m.exec.Execute(m.queryTask(src))
	}
}

// Cancel abandons the fan-out. Tasks not yet started never run;
// responses of tasks already in flight are dropped silently.
func (m *QueryMultiplexer) Cancel() {
	m.cancel()
}

func (m *QueryMultiplexer) queryTask(src suggest.Source) func() {
	return func() {
		if m.ctx.Err() != nil {
			return
		}
		id := src.ComponentID()
		m.receiver.OnSourceQueryStart(id)

		ctx, cancel := context.WithTimeout(m.ctx, m.timeout)
		defer cancel()
		res, err := src.Suggest(ctx, m.query, m.maxResults, m.queryLimit)

		// A canceled fan-out belongs to an abandoned query; nobody is
		// listening anymore.
		if m.ctx.Err() != nil {
			return
		}

		switch {
		case err != nil:
			res = suggest.ErrorResponse(id)
		case res == nil:
			res = suggest.EmptyResponse(id)
		default:
			if res.Source == "" {
				res.Source = id
			}
			res.Normalize()
		}
		m.receiver.OnSourceResult(res)
	}
}
