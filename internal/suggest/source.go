package suggest

import "context"

// ResultCode classifies a source response.
type ResultCode int

const (
	// ResultOK means the source answered, possibly with zero rows.
	ResultOK ResultCode = iota

	// ResultError means the source failed or timed out. Error responses
	// participate in aggregation (the source counts as reported) but are
	// never cached.
	ResultError
)

// Source produces suggestions for queries. Implementations must be safe
// for concurrent use; the engine fans queries out on a worker pool.
type Source interface {
	// ComponentID returns the stable identity of the source.
	ComponentID() ComponentID

	// Label returns the human-readable name shown in corpus rows.
	Label() string

	// Icon returns the source's icon reference (see IconURI).
	Icon() string

	// QueryThreshold returns the minimum query length the source wants
	// to see. Shorter queries are not sent to it.
	QueryThreshold() int

	// QueryAfterZeroResults reports whether the source wants queries
	// even when a shorter prefix already returned nothing.
	QueryAfterZeroResults() bool

	// Suggest runs the query. maxResults caps the rows returned,
	// queryLimit caps the backing count the source reports. A nil
	// response with a nil error is treated as an empty OK response.
	Suggest(ctx context.Context, query string, maxResults, queryLimit int) (*Response, error)

	// ValidateShortcut revalidates a previously clicked suggestion by
	// its shortcut id. It returns the refreshed suggestion, or nil if
	// the shortcut is no longer valid and must be removed.
	ValidateShortcut(ctx context.Context, shortcutID string) (*Suggestion, error)
}

// Response is what a source reports for one query.
type Response struct {
	Source      ComponentID
	Suggestions []Suggestion

	// Count is how many results back the query in total, which may
	// exceed len(Suggestions). It is capped at QueryLimit.
	Count int

	// QueryLimit echoes the advisory cap the query carried; a Count
	// equal to QueryLimit reads as "QueryLimit or more".
	QueryLimit int

	Code ResultCode
}

// EmptyResponse returns an OK response with no rows.
func EmptyResponse(source ComponentID) *Response {
	return &Response{Source: source, Code: ResultOK}
}

// ErrorResponse returns the response used when a source fails or times
// out.
func ErrorResponse(source ComponentID) *Response {
	return &Response{Source: source, Code: ResultError}
}

// Normalize repairs count bookkeeping so that
// len(Suggestions) <= Count <= QueryLimit holds whenever QueryLimit is
// set. Sources are sloppy about this; the aggregator is not.
func (r *Response) Normalize() {
	if r.Count < len(r.Suggestions) {
		r.Count = len(r.Suggestions)
	}
	if r.QueryLimit > 0 && r.Count > r.QueryLimit {
		r.Count = r.QueryLimit
	}
}

// Err reports whether the response is an error response.
func (r *Response) Err() bool {
	return r.Code == ResultError
}
