package engine

import "time"

// Params are the engine tunables. Zero values are replaced by the
// defaults below, so a partially filled struct is fine.
type Params struct {
	// NumPromoted is how many sources compete for the promoted slots,
	// and how many list slots they compete for.
	NumPromoted int

	// MaxDisplayed caps the rows worth fetching for display: shortcut
	// loading and the additional fan-out both ask for at most this
	// many.
	MaxDisplayed int

	// MaxResultsPerSource caps both the rows a source may return and
	// the advisory count limit passed to it.
	MaxResultsPerSource int

	// PromotedDeadline is how long promoted sources have to claim
	// promoted slots after the fan-out starts.
	PromotedDeadline time.Duration

	// SourceTimeout is the hard per-source query timeout.
	SourceTimeout time.Duration

	// PrefillDelay is how long a delayed query waits before showing
	// the previous query's rows as a placeholder.
	PrefillDelay time.Duration

	// NotifyWindow throttles cursor repaints.
	NotifyWindow time.Duration

	// TypingDelayFast and TypingDelaySlow hold the query fan-out back
	// while the user is still typing: Fast applies when the last three
	// keystrokes averaged under it, Slow when just the last two came
	// quickly.
	TypingDelayFast time.Duration
	TypingDelaySlow time.Duration

	// CacheCapacity bounds how many query prefixes keep cached results.
	CacheCapacity int

	// Workers sizes the query worker pool.
	Workers int
}

// DefaultParams returns the stock tuning.
func DefaultParams() Params {
	return Params{
		NumPromoted:         4,
		MaxDisplayed:        7,
		MaxResultsPerSource: 58,
		PromotedDeadline:    3500 * time.Millisecond,
		SourceTimeout:       10 * time.Second,
		PrefillDelay:        400 * time.Millisecond,
		NotifyWindow:        100 * time.Millisecond,
		TypingDelayFast:     800 * time.Millisecond,
		TypingDelaySlow:     500 * time.Millisecond,
		CacheCapacity:       32,
		Workers:             8,
	}
}

// withDefaults fills zero fields from DefaultParams.
func (p Params) withDefaults() Params {
	def := DefaultParams()
	if p.NumPromoted == 0 {
		p.NumPromoted = def.NumPromoted
	}
	if p.MaxDisplayed == 0 {
		p.MaxDisplayed = def.MaxDisplayed
	}
	if p.MaxResultsPerSource == 0 {
		p.MaxResultsPerSource = def.MaxResultsPerSource
	}
	if p.PromotedDeadline == 0 {
		p.PromotedDeadline = def.PromotedDeadline
	}
	if p.SourceTimeout == 0 {
		p.SourceTimeout = def.SourceTimeout
	}
	if p.PrefillDelay == 0 {
		p.PrefillDelay = def.PrefillDelay
	}
	if p.NotifyWindow == 0 {
		p.NotifyWindow = def.NotifyWindow
	}
	if p.TypingDelayFast == 0 {
		p.TypingDelayFast = def.TypingDelayFast
	}
	if p.TypingDelaySlow == 0 {
		p.TypingDelaySlow = def.TypingDelaySlow
	}
	if p.CacheCapacity == 0 {
		p.CacheCapacity = def.CacheCapacity
	}
	if p.Workers == 0 {
		p.Workers = def.Workers
	}
	return p
}
