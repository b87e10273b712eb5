package suggest

import "context"

// staticTestSource is the minimal Source used by registry tests.
type staticTestSource struct {
	id ComponentID
}

func (s *staticTestSource) ComponentID() ComponentID { return s.id }
func (s *staticTestSource) Label() string { return string(s.id) }
func (s *staticTestSource) Icon() string { return "" }
func (s *staticTestSource) QueryThreshold() int { return 0 }
func (s *staticTestSource) QueryAfterZeroResults() bool { return false }

func (s *staticTestSource) Suggest(context.Context, string, int, int) (*Response, error) {
	return EmptyResponse(s.id), nil
}

func (s *staticTestSource) ValidateShortcut(context.Context, string) (*Suggestion, error) {
	return nil, nil
}
