package api

import "time"

// DashboardEvent is the wrapper for all events pushed to WebSocket clients.
type DashboardEvent struct {
	Type         string      `json:"type"` // always "book_update"
	Timestamp    time.Time   `json:"timestamp"`
	InstrumentID string      `json:"instrument_id,omitempty"`
	Data         interface{} `json:"data"`
}

// BookUpdateEvent is pushed after every registry apply whose outcome is
// Applied or Resynced, whether or not the top of book moved.
type BookUpdateEvent struct {
	InstrumentID string    `json:"instrument_id"`
	BestBid      string    `json:"best_bid,omitempty"`
	BestAsk      string    `json:"best_ask,omitempty"`
	Mid          string    `json:"mid,omitempty"`
	Spread       string    `json:"spread,omitempty"`
	Outcome      string    `json:"outcome"`
	UpdateTime   time.Time `json:"update_time"`
}
