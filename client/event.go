package client

import (
	"encoding/json"

	"github.com/fauna/fauna-go/protocol"
)

// Event types delivered over streams and feeds.
const (
	// EventStatus is a keepalive carrying a cursor advance and stats
	// but no document.
	EventStatus = "status"
	// EventAdd means a document entered the tracked set.
	EventAdd = "add"
	// EventRemove means a document left the tracked set.
	EventRemove = "remove"
	// EventUpdate means a tracked document changed.
	EventUpdate = "update"
	// EventError is a terminal failure reported in-band.
	EventError = "error"
)

// Event is one change notification from a stream or feed.
type Event struct {
	// Type is one of the Event* constants.
	Type string
	// TxnTime is the transaction time of the change, in microseconds
	// since the Unix epoch.
	TxnTime int64
	// Cursor resumes consumption after this event.
	Cursor string
	// Data is the decoded document for add, remove, and update events.
	Data interface{}
	// Stats reports the read cost of delivering the event, when the
	// server includes it.
	Stats Stats
}

// wireEvent is the undecoded event shape shared by the stream and feed
// endpoints.
type wireEvent struct {
	Type    string          `json:"type"`
	TxnTime int64           `json:"txn_ts"`
	Cursor  string          `json:"cursor"`
	Data    json.RawMessage `json:"data"`
	Error   *wireError      `json:"error"`
	Stats   *Stats          `json:"stats"`
}

// decodeEvent turns a wire event into an Event, or into a classified
// error for in-band error events. The error path has no HTTP status;
// classification runs on the error code alone.
func decodeEvent(w *wireEvent) (*Event, error) {
	if w.Type == EventError {
		var werr wireError
		if w.Error != nil {
			werr = *w.Error
		}
		e := newServiceError(0, &werr)
		e.TxnTime = w.TxnTime
		return nil, e
	}
	ev := &Event{
		Type:    w.Type,
		TxnTime: w.TxnTime,
		Cursor:  w.Cursor,
	}
	if len(w.Data) > 0 {
		data, err := protocol.Decode(w.Data)
		if err != nil {
			return nil, newProtocolError(0, "undecodable event data", err)
		}
		ev.Data = data
	}
	if w.Stats != nil {
		ev.Stats = *w.Stats
	}
	return ev, nil
}
