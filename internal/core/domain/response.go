package domain

import (
	"bytes"
	"encoding/json"
)

// SearchResponse is the subset of a search response the retry engine inspects.
type SearchResponse struct {
	Took     int        `json:"took"`
	TimedOut bool       `json:"timed_out"`
	Shards   ShardsInfo `json:"_shards"` //nolint:tagliatelle // cluster API uses _shards
	Hits     SearchHits `json:"hits"`
}

// Sources returns the _source of every hit, in order.
func (r *SearchResponse) Sources() []json.RawMessage {
	if r == nil {
		return nil
	}
	docs := make([]json.RawMessage, 0, len(r.Hits.Hits))
	for _, h := range r.Hits.Hits {
		docs = append(docs, h.Source)
	}
	return docs
}

// ShardsInfo reports per-shard execution of a search.
type ShardsInfo struct {
	Total      int            `json:"total"`
	Successful int            `json:"successful"`
	Skipped    int            `json:"skipped,omitempty"`
	Failed     int            `json:"failed"`
	Failures   []ShardFailure `json:"failures,omitempty"`
}

// ShardFailure is one entry of _shards.failures.
type ShardFailure struct {
	Shard  int        `json:"shard"`
	Index  string     `json:"index,omitempty"`
	Node   string     `json:"node,omitempty"`
	Reason ErrorCause `json:"reason"`
}

// SearchHits holds the matched documents.
type SearchHits struct {
	Total    TotalHits   `json:"total"`
	MaxScore *float64    `json:"max_score,omitempty"`
	Hits     []SearchHit `json:"hits"`
}

// SearchHit is a single matched document.
type SearchHit struct {
	Index  string          `json:"_index"`  //nolint:tagliatelle // cluster API uses _index
	Type   string          `json:"_type"`   //nolint:tagliatelle // cluster API uses _type
	ID     string          `json:"_id"`     //nolint:tagliatelle // cluster API uses _id
	Score  *float64        `json:"_score"`  //nolint:tagliatelle // cluster API uses _score
	Source json.RawMessage `json:"_source"` //nolint:tagliatelle // cluster API uses _source
}

// TotalHits accepts both the legacy numeric form and the {"value": n} object.
type TotalHits struct {
	Value    int64  `json:"value"`
	Relation string `json:"relation,omitempty"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *TotalHits) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] != '{' {
		return json.Unmarshal(data, &t.Value)
	}
	type plain TotalHits
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*t = TotalHits(p)
	return nil
}

// GetResponse is the envelope returned when fetching by id.
type GetResponse struct {
	Index  string          `json:"_index"` //nolint:tagliatelle // cluster API uses _index
	ID     string          `json:"_id"`    //nolint:tagliatelle // cluster API uses _id
	Found  bool            `json:"found"`
	Source json.RawMessage `json:"_source"` //nolint:tagliatelle // cluster API uses _source
}

// IndexResponse acknowledges a single-document write.
type IndexResponse struct {
	Index   string `json:"_index"`   //nolint:tagliatelle // cluster API uses _index
	ID      string `json:"_id"`      //nolint:tagliatelle // cluster API uses _id
	Version int64  `json:"_version"` //nolint:tagliatelle // cluster API uses _version
	Result  string `json:"result"`
	Created bool   `json:"created,omitempty"`
}

// DeleteResponse acknowledges a delete. Older clusters report Found,
// newer ones only Result ("deleted" / "not_found").
type DeleteResponse struct {
	Index  string `json:"_index"` //nolint:tagliatelle // cluster API uses _index
	ID     string `json:"_id"`    //nolint:tagliatelle // cluster API uses _id
	Found  *bool  `json:"found,omitempty"`
	Result string `json:"result,omitempty"`
}

// WasFound reports whether the deleted document existed.
func (r *DeleteResponse) WasFound() bool {
	if r == nil {
		return false
	}
	if r.Found != nil {
		return *r.Found
	}
	return r.Result == "deleted"
}

// AckResponse is returned by administrative calls.
type AckResponse struct {
	Acknowledged       bool   `json:"acknowledged"`
	ShardsAcknowledged bool   `json:"shards_acknowledged,omitempty"`
	Index              string `json:"index,omitempty"`
}

// BulkResponse is the reply to a bulk write.
type BulkResponse struct {
	Took   int        `json:"took"`
	Errors bool       `json:"errors"`
	Items  []BulkItem `json:"items"`
}

// BulkItem maps the action name (index, create, update, delete) to its outcome.
type BulkItem map[string]BulkItemResult

// Result returns the outcome regardless of which action produced it.
func (i BulkItem) Result() BulkItemResult {
	for _, r := range i {
		return r
	}
	return BulkItemResult{}
}

// BulkItemResult is the per-document outcome of a bulk write.
type BulkItemResult struct {
	Index  string      `json:"_index,omitempty"` //nolint:tagliatelle // cluster API uses _index
	ID     string      `json:"_id,omitempty"`    //nolint:tagliatelle // cluster API uses _id
	Status int         `json:"status"`
	Result string      `json:"result,omitempty"`
	Error  *ErrorCause `json:"error,omitempty"`
}

// ErrorCause is the structured {type, reason} pair the cluster attaches to failures.
type ErrorCause struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// ClusterStats is the subset of _cluster/stats used for version checks.
type ClusterStats struct {
	ClusterName string `json:"cluster_name"`
	Nodes       struct {
		Versions []string `json:"versions"`
	} `json:"nodes"`
}

// IndexSettings is one entry of the _settings response.
type IndexSettings struct {
	Settings struct {
		Index struct {
			MaxResultWindow string `json:"max_result_window,omitempty"`
		} `json:"index"`
	} `json:"settings"`
}
