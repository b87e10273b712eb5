package suggest

// SourceLookup resolves component ids to sources. The shortcut layer
// uses it to revalidate clicks and to filter history rows to sources
// that still exist.
type SourceLookup interface {
	// ByComponent returns the source registered under id, or nil.
	ByComponent(id ComponentID) Source
}

// Registry is the engine's fixed set of enabled sources plus the
// designated web search source. It is built once at startup and read
// concurrently afterwards.
type Registry struct {
	order []Source
	byID  map[ComponentID]Source
	web   Source
}

// NewRegistry builds a registry from the enabled sources in their
// configured order. web may be nil when no web source is configured; it
// does not have to appear in enabled.
func NewRegistry(enabled []Source, web Source) *Registry {
	r := &Registry{
		order: make([]Source, 0, len(enabled)),
		byID:  make(map[ComponentID]Source, len(enabled)+1),
	}
	for _, s := range enabled {
		if _, dup := r.byID[s.ComponentID()]; dup {
			continue
		}
		r.byID[s.ComponentID()] = s
		r.order = append(r.order, s)
	}
	if web != nil {
		if _, ok := r.byID[web.ComponentID()]; !ok {
			r.byID[web.ComponentID()] = web
		}
		r.web = web
	}
	return r
}

// ByComponent implements SourceLookup.
func (r *Registry) ByComponent(id ComponentID) Source {
	return r.byID[id]
}

// Enabled returns the enabled sources in configured order. Callers must
// not mutate the returned slice.
func (r *Registry) Enabled() []Source {
	return r.order
}

// Web returns the web search source, or nil.
func (r *Registry) Web() Source {
	return r.web
}

var _ SourceLookup = (*Registry)(nil)
