package model

import (
	"sort"
	"time"
)

// RoomID is the 6-character code players use to join a room
type RoomID string

// ParticipantID identifies a connected (or grace-period pending) participant
type ParticipantID string

// ConnID is the transport handle of a single client connection
type ConnID string

// GameState represents the current state of a room
type GameState string

const (
	GameStateWaiting GameState = "waiting"
)

// Presence is an occupant of a room, independent of any ledger entry
type Presence struct {
	ID        ParticipantID `json:"id"`
	Name      string        `json:"name"`
	Avatar    string        `json:"avatar"`
	IsOwner   bool          `json:"isOwner"`
	Connected bool          `json:"connected"`
}

// Room is a broadcast group plus its presence set and its score ledger
type Room struct {
	ID            RoomID                      `json:"id"`
	GameState     GameState                   `json:"gameState"`
	CreatedAt     time.Time                   `json:"createdAt"`
	OnlinePlayers map[ParticipantID]*Presence `json:"onlinePlayers"`
	Players       []*LedgerEntry              `json:"players"`
}

// NewRoom returns an empty waiting room
func NewRoom(id RoomID, createdAt time.Time) *Room {
	return &Room{
		ID:            id,
		GameState:     GameStateWaiting,
		CreatedAt:     createdAt,
		OnlinePlayers: make(map[ParticipantID]*Presence),
		Players:       []*LedgerEntry{},
	}
}

// GetPresence returns the presence with the given id, or nil if not found
func (r *Room) GetPresence(id ParticipantID) *Presence {
	return r.OnlinePlayers[id]
}

// GetOwner returns the current owner, or nil if none
func (r *Room) GetOwner() *Presence {
	for _, p := range r.OnlinePlayers {
		if p.IsOwner {
			return p
		}
	}
	return nil
}

// IsOwner reports whether the participant is present and currently owns the room
func (r *Room) IsOwner(id ParticipantID) bool {
	p := r.OnlinePlayers[id]
	return p != nil && p.IsOwner
}

// PresenceIDs returns all participant ids in ascending order
func (r *Room) PresenceIDs() []ParticipantID {
	ids := make([]ParticipantID, 0, len(r.OnlinePlayers))
	for id := range r.OnlinePlayers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// GetEntry returns the ledger entry with the given id, or nil if not found
func (r *Room) GetEntry(id EntryID) *LedgerEntry {
	for _, e := range r.Players {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// RoomSummary is the diagnostic view of a room
type RoomSummary struct {
	ID          RoomID
	PlayerCount int
	GamePlayers int
	CreatedAt   time.Time
}

// Summary returns the diagnostic view of the room
func (r *Room) Summary() RoomSummary {
	return RoomSummary{
		ID:          r.ID,
		PlayerCount: len(r.OnlinePlayers),
		GamePlayers: len(r.Players),
		CreatedAt:   r.CreatedAt,
	}
}
