package es

import "github.com/vietddude/esguard/internal/core/domain"

// ReaderConfig describes the index a slice reader pulls documents from.
type ReaderConfig struct {
	Index         string `yaml:"index"`
	DateFieldName string `yaml:"date_field_name"`
	// Query is a Lucene query string added to every slice.
	Query  string   `yaml:"query"`
	Fields []string `yaml:"fields"`
	// FullResponse makes readers consume whole search responses instead of _source lists.
	FullResponse bool `yaml:"full_response"`
}

// Slice is one unit of reader work: a date range and/or an id prefix.
type Slice struct {
	Start string
	End   string
	// Key is a wildcard pattern on _uid.
	Key   string
	Count int
}

// BuildQuery turns a slice into a search against cfg.Index. Every present
// constraint is ANDed under bool.must; the range applies only when both
// Start and End are set.
func BuildQuery(cfg ReaderConfig, s Slice) domain.Query {
	must := make([]any, 0, 3)

	if s.Start != "" && s.End != "" {
		must = append(must, map[string]any{
			"range": map[string]any{
				cfg.DateFieldName: map[string]any{
					"gte": s.Start,
					"lt":  s.End,
				},
			},
		})
	}

	if s.Key != "" {
		must = append(must, map[string]any{
			"wildcard": map[string]any{"_uid": s.Key},
		})
	}

	if cfg.Query != "" {
		must = append(must, map[string]any{
			"query_string": map[string]any{"query": cfg.Query},
		})
	}

	q := domain.Query{
		Index: cfg.Index,
		Body: map[string]any{
			"query": map[string]any{
				"bool": map[string]any{"must": must},
			},
		},
	}
	if s.Count > 0 {
		q = q.WithSize(s.Count)
	}
	if len(cfg.Fields) > 0 {
		q.Source = cfg.Fields
	}
	return q
}

// BuildQuery builds a slice query against the client's reader index.
func (c *Client) BuildQuery(s Slice) domain.Query {
	return BuildQuery(c.reader, s)
}
