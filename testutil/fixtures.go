package testutil

import (
	"encoding/json"
	"fmt"
)

// QuerySuccessBody builds a query response body around a tagged data
// payload, given as raw JSON.
func QuerySuccessBody(data string, txnTime int64) string {
	return fmt.Sprintf(`{"data": %s, "txn_ts": %d, "summary": "", "stats": {}}`, data, txnTime)
}

// QueryErrorBody builds a query failure body.
func QueryErrorBody(code, message string) string {
	return fmt.Sprintf(`{"error": {"code": %q, "message": %q}}`, code, message)
}

// EventLine builds one stream event line or feed event object.
func EventLine(eventType, cursor string, txnTime int64, data string) string {
	if data == "" {
		return fmt.Sprintf(`{"type": %q, "txn_ts": %d, "cursor": %q}`, eventType, txnTime, cursor)
	}
	return fmt.Sprintf(`{"type": %q, "txn_ts": %d, "cursor": %q, "data": %s}`, eventType, txnTime, cursor, data)
}

// ErrorEventLine builds an in-band error event.
func ErrorEventLine(code, message string, txnTime int64) string {
	return fmt.Sprintf(`{"type": "error", "txn_ts": %d, "error": {"code": %q, "message": %q}}`, txnTime, code, message)
}

// FeedPageBody builds a feed page around already-built event objects.
func FeedPageBody(cursor string, hasNext bool, events ...string) string {
	raw := make([]json.RawMessage, len(events))
	for i, e := range events {
		raw[i] = json.RawMessage(e)
	}
	b, err := json.Marshal(map[string]interface{}{
		"events":   raw,
		"cursor":   cursor,
		"has_next": hasNext,
		"stats":    map[string]int{},
	})
	if err != nil {
		panic(fmt.Sprintf("fixture did not marshal: %v", err))
	}
	return string(b)
}
