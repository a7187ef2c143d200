// Package integrity checks cross-entity references of validated seed records.
package integrity

// Registry maps an entity type to the identifiers known to be valid.
// Registration is additive; identifiers are never removed.
type Registry struct {
	ids map[string]map[string]struct{}
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{ids: make(map[string]map[string]struct{})}
}

// Register unions ids into the set of entity.
func (r *Registry) Register(entity string, ids ...string) {
	set, ok := r.ids[entity]
	if !ok {
		set = make(map[string]struct{}, len(ids))
		r.ids[entity] = set
	}
	for _, id := range ids {
		set[id] = struct{}{}
	}
}

// ValidIDs returns a copy of the identifiers registered for entity.
// Unknown entities yield an empty, non-nil set.
func (r *Registry) ValidIDs(entity string) map[string]struct{} {
	set := r.ids[entity]
	out := make(map[string]struct{}, len(set))
	for id := range set {
		out[id] = struct{}{}
	}
	return out
}

// ValidateFK reports whether value is a registered identifier of entity.
func (r *Registry) ValidateFK(entity, value string) bool {
	_, ok := r.ids[entity][value]
	return ok
}

// Len returns the number of identifiers registered for entity.
func (r *Registry) Len(entity string) int {
	return len(r.ids[entity])
}
