package model

import (
	"encoding/json"
	"time"
)

// EntryID identifies a ledger entry ("game player") within a room
type EntryID string

// DefaultScore is the balance a ledger entry starts with and returns to on a new round
const DefaultScore = 100

// HistoryKind distinguishes how a balance changed
type HistoryKind string

const (
	HistoryAdjust      HistoryKind = "adjust"
	HistoryTransferIn  HistoryKind = "transfer_in"
	HistoryTransferOut HistoryKind = "transfer_out"
)

// HistoryItem is an immutable record of one balance change
type HistoryItem struct {
	Kind        HistoryKind
	Delta       int
	Counterpart string // Empty for adjustments
	Total       int    // Balance after the change
	Timestamp   time.Time
}

// historyJSON is the client wire shape: adjustments carry "change", transfers
// carry "amount" plus "source" (incoming) or "target" (outgoing)
type historyJSON struct {
	Type      HistoryKind `json:"type"`
	Change    *int        `json:"change,omitempty"`
	Amount    *int        `json:"amount,omitempty"`
	Source    string      `json:"source,omitempty"`
	Target    string      `json:"target,omitempty"`
	Total     int         `json:"total"`
	Timestamp time.Time   `json:"timestamp"`
}

// MarshalJSON implements json.Marshaler
func (h HistoryItem) MarshalJSON() ([]byte, error) {
	delta := h.Delta
	out := historyJSON{
		Type:      h.Kind,
		Total:     h.Total,
		Timestamp: h.Timestamp,
	}
	switch h.Kind {
	case HistoryTransferIn:
		out.Amount = &delta
		out.Source = h.Counterpart
	case HistoryTransferOut:
		out.Amount = &delta
		out.Target = h.Counterpart
	default:
		out.Change = &delta
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler
func (h *HistoryItem) UnmarshalJSON(data []byte) error {
	var in historyJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	h.Kind = in.Type
	if h.Kind == "" {
		h.Kind = HistoryAdjust
	}
	switch {
	case in.Change != nil:
		h.Delta = *in.Change
	case in.Amount != nil:
		h.Delta = *in.Amount
	default:
		h.Delta = 0
	}
	h.Counterpart = in.Source
	if h.Counterpart == "" {
		h.Counterpart = in.Target
	}
	h.Total = in.Total
	h.Timestamp = in.Timestamp
	return nil
}

// LedgerEntry is a named, scored participant tracked independently of connection state
type LedgerEntry struct {
	ID      EntryID       `json:"id"`
	Name    string        `json:"name"`
	Score   int           `json:"score"`
	History []HistoryItem `json:"history"`
	Avatar  string        `json:"avatar"`
}

// Record prepends a history item (newest first)
func (e *LedgerEntry) Record(item HistoryItem) {
	e.History = append([]HistoryItem{item}, e.History...)
}

// Adjust applies a signed delta and records it
func (e *LedgerEntry) Adjust(delta int, at time.Time) HistoryItem {
	e.Score += delta
	item := HistoryItem{
		Kind:      HistoryAdjust,
		Delta:     delta,
		Total:     e.Score,
		Timestamp: at,
	}
	e.Record(item)
	return item
}
