package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter writing to w
func NewOutput(format string, w io.Writer) *Output {
	return &Output{format: format, w: w}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintMessage outputs a simple message. JSON output skips it so that
// every line stays machine readable.
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		return
	}
	_, _ = fmt.Fprintln(o.w, msg)
}

// PrintEvent outputs one received event. data must be JSON.
func (o *Output) PrintEvent(at time.Time, event, data string) {
	if o.format == "json" {
		line, _ := json.Marshal(Event{Time: at, Event: event, Data: json.RawMessage(data)})
		_, _ = fmt.Fprintln(o.w, string(line))
		return
	}

	display := strings.ReplaceAll(data, "\n", " ")
	if len(display) > 200 {
		display = display[:200] + "..."
	}
	_, _ = fmt.Fprintf(o.w, "[%s] %s: %s\n", at.Format("15:04:05"), event, display)
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case HealthResult:
		o.printHealthResult(v)
	case RoomList:
		o.printRoomList(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// HealthResult response type
type HealthResult struct {
	Status  string `json:"status"`
	Rooms   int    `json:"rooms"`
	Players int    `json:"players"`
}

// RoomSummary response type
type RoomSummary struct {
	ID          string `json:"id"`
	PlayerCount int    `json:"playerCount"`
	GamePlayers int    `json:"gamePlayers"`
	CreatedAt   int64  `json:"createdAt"`
}

// RoomList response type
type RoomList struct {
	Rooms []RoomSummary `json:"rooms"`
}

// Event is one streamed or received event
type Event struct {
	Time  time.Time       `json:"time"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func (o *Output) printHealthResult(h HealthResult) {
	_, _ = fmt.Fprintf(o.w, "Status: %s\n", h.Status)
	_, _ = fmt.Fprintf(o.w, "Rooms: %d\n", h.Rooms)
	_, _ = fmt.Fprintf(o.w, "Players online: %d\n", h.Players)
}

func (o *Output) printRoomList(l RoomList) {
	if len(l.Rooms) == 0 {
		_, _ = fmt.Fprintln(o.w, "No rooms")
		return
	}
	_, _ = fmt.Fprintf(o.w, "Rooms (%d):\n", len(l.Rooms))
	for _, r := range l.Rooms {
		created := time.UnixMilli(r.CreatedAt).Format(time.DateTime)
		_, _ = fmt.Fprintf(o.w, "  - %s  online: %d  ledger: %d  created: %s\n",
			r.ID, r.PlayerCount, r.GamePlayers, created)
	}
}
