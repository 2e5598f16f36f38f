package client

import (
	"encoding/json"
	"sort"
	"strings"
)

// Stats reports the resources a query consumed.
type Stats struct {
	// ComputeOps is the transactional compute consumed, in TCO units.
	ComputeOps int `json:"compute_ops"`
	// ReadOps is the transactional reads consumed, in TRO units.
	ReadOps int `json:"read_ops"`
	// WriteOps is the transactional writes consumed, in TWO units.
	WriteOps int `json:"write_ops"`
	// QueryTimeMs is the server-side execution time in milliseconds.
	QueryTimeMs int `json:"query_time_ms"`
	// ContentionRetries counts server-side transaction retries.
	ContentionRetries int `json:"contention_retries"`
	// StorageBytesRead is the storage read volume in bytes.
	StorageBytesRead int `json:"storage_bytes_read"`
	// StorageBytesWrite is the storage write volume in bytes.
	StorageBytesWrite int `json:"storage_bytes_write"`

	// Attempts counts driver-side dispatches for the query, retries
	// included. Filled by the driver, never by the server.
	Attempts int `json:"-"`
}

// QuerySuccess is the decoded result of a successful query.
type QuerySuccess struct {
	// Data is the query's result, decoded from the wire encoding.
	Data interface{}
	// TxnTime is the transaction commit time in microseconds since the
	// Unix epoch.
	TxnTime int64
	// Summary is the server's human-readable annotation, often empty.
	Summary string
	// StaticType is the inferred static type of the query expression,
	// present when typechecking ran.
	StaticType string
	// SchemaVersion identifies the database schema generation the query
	// executed against.
	SchemaVersion int64
	// QueryTags echoes the tags the request carried.
	QueryTags map[string]string
	// Stats reports the resources consumed, including driver attempts.
	Stats Stats
}

// Unmarshal decodes the query's Data into out, re-encoding through JSON.
// Structs use `fauna` field tags on the encode side; this path honors
// plain json tags, so out should tag fields accordingly.
func (s *QuerySuccess) Unmarshal(out interface{}) error {
	raw, err := json.Marshal(s.Data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// wireError is the service's failure payload inside a query response.
type wireError struct {
	Code               string              `json:"code"`
	Message            string              `json:"message"`
	ConstraintFailures []ConstraintFailure `json:"constraint_failures"`
	Abort              json.RawMessage     `json:"abort"`
}

// queryResponse is the service's query response envelope, shared by the
// success and failure shapes.
type queryResponse struct {
	Data          json.RawMessage   `json:"data"`
	Error         *wireError        `json:"error"`
	TxnTime       int64             `json:"txn_ts"`
	Summary       string            `json:"summary"`
	StaticType    string            `json:"static_type"`
	SchemaVersion int64             `json:"schema_version"`
	QueryTags     string            `json:"query_tags"`
	Stats         *Stats            `json:"stats"`
	Headers       map[string]string `json:"-"`
}

// parseQueryTags splits the server's k=v,k=v echo back into a map.
func parseQueryTags(raw string) map[string]string {
	if raw == "" {
		return nil
	}
	tags := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			continue
		}
		tags[k] = v
	}
	if len(tags) == 0 {
		return nil
	}
	return tags
}

// formatQueryTags renders tags as k=v,k=v with deterministic key order.
func formatQueryTags(tags map[string]string) string {
	if len(tags) == 0 {
		return ""
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+tags[k])
	}
	return strings.Join(parts, ",")
}
