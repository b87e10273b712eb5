package engine

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runger/suggestd/internal/suggest"
)

// recordingReceiver collects fan-out events for assertions.
type recordingReceiver struct {
	mu      sync.Mutex
	started []suggest.ComponentID
	results []*suggest.Response
}

func (r *recordingReceiver) OnSourceQueryStart(id suggest.ComponentID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, id)
}

func (r *recordingReceiver) OnSourceResult(res *suggest.Response) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

func (r *recordingReceiver) startedIDs() []suggest.ComponentID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]suggest.ComponentID(nil), r.started...)
}

func (r *recordingReceiver) resultList() []*suggest.Response {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*suggest.Response(nil), r.results...)
}

func TestMultiplexerFansOutToAllSources(t *testing.T) {
	apps := &fakeSource{id: "apps", respond: respondWith("apps", "App Store")}
	contacts := &fakeSource{id: "contacts", respond: respondWith("contacts", "Joe")}
	rec := &recordingReceiver{}

	m := NewQueryMultiplexer("a", []suggest.Source{apps, contacts}, 58, 58,
		time.Second, rec, syncExecutor{})
	m.SendQuery()

	require.Len(t, rec.startedIDs(), 2)
	results := rec.resultList()
	require.Len(t, results, 2)
	for _, res := range results {
		assert.False(t, res.Err())
		assert.Equal(t, 1, res.Count)
	}
	assert.Equal(t, []string{"a"}, apps.queriesSeen())
}

func TestMultiplexerStartBeforeResult(t *testing.T) {
	var order []string
	src := &fakeSource{id: "apps"}
	src.respond = func(string) (*suggest.Response, error) {
		order = append(order, "suggest")
		return suggest.EmptyResponse("apps"), nil
	}
	rec := &recordingReceiver{}

	m := NewQueryMultiplexer("a", []suggest.Source{src}, 58, 58, time.Second,
		recorderWithHook{rec, func() { order = append(order, "start") }}, syncExecutor{})
	m.SendQuery()

	assert.Equal(t, []string{"start", "suggest"}, order)
}

// recorderWithHook runs a hook on every query start, for ordering tests.
type recorderWithHook struct {
	inner   MuxReceiver
	onStart func()
}

func (r recorderWithHook) OnSourceQueryStart(id suggest.ComponentID) {
	r.onStart()
	r.inner.OnSourceQueryStart(id)
}

func (r recorderWithHook) OnSourceResult(res *suggest.Response) {
	r.inner.OnSourceResult(res)
}

func TestMultiplexerSourceErrorBecomesErrorResponse(t *testing.T) {
	src := &fakeSource{id: "apps"}
	src.respond = func(string) (*suggest.Response, error) {
		return nil, errors.New("backend down")
	}
	rec := &recordingReceiver{}

	m := NewQueryMultiplexer("a", []suggest.Source{src}, 58, 58, time.Second,
		rec, syncExecutor{})
	m.SendQuery()

	results := rec.resultList()
	require.Len(t, results, 1)
	assert.True(t, results[0].Err())
	assert.Equal(t, suggest.ComponentID("apps"), results[0].Source)
}

func TestMultiplexerNilResponseBecomesEmpty(t *testing.T) {
	src := &fakeSource{id: "apps"}
	src.respond = func(string) (*suggest.Response, error) { return nil, nil }
	rec := &recordingReceiver{}

	m := NewQueryMultiplexer("a", []suggest.Source{src}, 58, 58, time.Second,
		rec, syncExecutor{})
	m.SendQuery()

	results := rec.resultList()
	require.Len(t, results, 1)
	assert.False(t, results[0].Err())
	assert.Equal(t, 0, results[0].Count)
}

func TestMultiplexerCancelDropsSilently(t *testing.T) {
	src := &fakeSource{id: "apps", respond: respondWith("apps", "x")}
	rec := &recordingReceiver{}

	m := NewQueryMultiplexer("a", []suggest.Source{src}, 58, 58, time.Second,
		rec, syncExecutor{})
	m.Cancel()
	m.SendQuery()

	assert.Empty(t, rec.startedIDs(), "canceled tasks never start")
	assert.Empty(t, rec.resultList())
	assert.Zero(t, src.queryCount())
}

func TestMultiplexerCancelMidFlight(t *testing.T) {
	rec := &recordingReceiver{}
	var m *QueryMultiplexer
	src := &fakeSource{id: "apps"}
	src.respond = func(string) (*suggest.Response, error) {
		m.Cancel()
		return respondWith("apps", "x")("a")
	}

	m = NewQueryMultiplexer("a", []suggest.Source{src}, 58, 58, time.Second,
		rec, syncExecutor{})
	m.SendQuery()

	assert.Len(t, rec.startedIDs(), 1, "the query had already started")
	assert.Empty(t, rec.resultList(), "its answer arrived after cancel and is dropped")
}

func TestMultiplexerSendQueryIdempotent(t *testing.T) {
	src := &fakeSource{id: "apps"}
	rec := &recordingReceiver{}

	m := NewQueryMultiplexer("a", []suggest.Source{src}, 58, 58, time.Second,
		rec, syncExecutor{})
	m.SendQuery()
	m.SendQuery()

	assert.Equal(t, 1, src.queryCount())
}
