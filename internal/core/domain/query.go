package domain

// Query describes a single request against the cluster.
// The same value is resent verbatim on every retry attempt.
type Query struct {
	Index string `json:"index,omitempty"`
	// Type is only set for clusters that still use mapping types (< 7.x).
	Type string `json:"type,omitempty"`
	ID   string `json:"id,omitempty"`

	// Size limits the number of hits; nil leaves the cluster default.
	Size *int `json:"size,omitempty"`

	// Source restricts the returned _source fields.
	Source []string `json:"_source,omitempty"`

	// Body is JSON-serializable request content (query DSL, document, update body).
	Body any `json:"body,omitempty"`

	// Params are extra URL parameters such as refresh or routing.
	Params map[string]string `json:"params,omitempty"`
}

// WithSize returns a copy of q with Size set.
func (q Query) WithSize(size int) Query {
	q.Size = &size
	return q
}

// UpdateDoc returns the partial document of an update body ({"doc": {...}}),
// or nil when the body carries no doc fragment.
func (q Query) UpdateDoc() any {
	switch b := q.Body.(type) {
	case map[string]any:
		return b["doc"]
	case UpdateBody:
		return b.Doc
	case *UpdateBody:
		if b == nil {
			return nil
		}
		return b.Doc
	}
	return nil
}

// UpdateBody is the typed form of a partial update request.
type UpdateBody struct {
	Doc         any  `json:"doc,omitempty"`
	DocAsUpsert bool `json:"doc_as_upsert,omitempty"`
}
