package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

// EventType identifies an inbound or outbound event
type EventType string

// Inbound events (client -> server)
const (
	EventCreateRoom      EventType = "create_room"
	EventJoinRoom        EventType = "join_room"
	EventLeaveRoom       EventType = "leave_room"
	EventAddPlayer       EventType = "add_player"
	EventRemovePlayer    EventType = "remove_player"
	EventAdjustScore     EventType = "adjust_score"
	EventTransferRequest EventType = "transfer_request" // Also outbound, routed to the target
	EventAcceptRequest   EventType = "accept_request"
	EventRejectRequest   EventType = "reject_request"
	EventNewRound        EventType = "new_round" // Also outbound broadcast
	EventResetGame       EventType = "reset_game"
	EventEndGame         EventType = "end_game"
)

// Outbound events (server -> client)
const (
	EventRoomCreated       EventType = "room_created"
	EventRoomJoined        EventType = "room_joined"
	EventPlayerJoined      EventType = "player_joined"
	EventPlayerLeft        EventType = "player_left"
	EventPlayersUpdate     EventType = "players_update"
	EventScoreUpdated      EventType = "score_updated"
	EventTransferCompleted EventType = "transfer_completed"
	EventGameReset         EventType = "game_reset"
	EventGameEnded         EventType = "game_ended"
	EventRoomError         EventType = "room_error"
)

// Envelope is the wire frame for every event in both directions
type Envelope struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope marshals a payload into an envelope
func NewEnvelope(eventType EventType, payload any) (Envelope, error) {
	env := Envelope{Type: eventType}
	if payload == nil {
		return env, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return env, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	env.Payload = data
	return env, nil
}

// Decode unmarshals the payload into target. An absent payload leaves target untouched.
func (e Envelope) Decode(target any) error {
	if len(e.Payload) == 0 || string(e.Payload) == "null" {
		return nil
	}
	if err := json.Unmarshal(e.Payload, target); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedPayload, e.Type, err)
	}
	return nil
}

// Inbound payloads

type CreateRoomRequest struct {
	PlayerName string `json:"playerName"`
}

type JoinRoomRequest struct {
	RoomID     RoomID `json:"roomId"`
	PlayerName string `json:"playerName"`
}

type AddPlayerRequest struct {
	Name    string        `json:"name"`
	Score   *int          `json:"score,omitempty"`
	History []HistoryItem `json:"history,omitempty"`
	Avatar  string        `json:"avatar"`
}

type RemovePlayerRequest struct {
	PlayerID EntryID `json:"playerId"`
}

type AdjustScoreRequest struct {
	PlayerID   EntryID `json:"playerId"`
	ScoreValue int     `json:"scoreValue"`
}

// TransferRequest carries the implicit pending-transfer state for all three
// handshake phases. Amount is ignored on reject.
type TransferRequest struct {
	FromPlayerID EntryID `json:"fromPlayerId"`
	ToPlayerID   EntryID `json:"toPlayerId"`
	Amount       int     `json:"amount"`
}

// Outbound payloads

type RoomEnteredPayload struct {
	RoomID        RoomID                      `json:"roomId"`
	PlayerID      ParticipantID               `json:"playerId"`
	PlayerName    string                      `json:"playerName"`
	Players       []*LedgerEntry              `json:"players"`
	OnlinePlayers map[ParticipantID]*Presence `json:"onlinePlayers"`
}

type PlayerJoinedPayload struct {
	PlayerID      ParticipantID               `json:"playerId"`
	PlayerName    string                      `json:"playerName"`
	Avatar        string                      `json:"avatar"`
	OnlinePlayers map[ParticipantID]*Presence `json:"onlinePlayers"`
}

// PlayerLeftPayload is either a general departure (PlayerID set) or the
// direct notice to a newly promoted owner (NewOwner set)
type PlayerLeftPayload struct {
	PlayerID      ParticipantID               `json:"playerId,omitempty"`
	PlayerName    string                      `json:"playerName,omitempty"`
	OnlinePlayers map[ParticipantID]*Presence `json:"onlinePlayers"`
	NewOwner      bool                        `json:"newOwner,omitempty"`
}

// PlayersPayload carries a full ledger snapshot
type PlayersPayload struct {
	Players []*LedgerEntry `json:"players"`
}

type ScoreUpdatedPayload struct {
	PlayerID EntryID      `json:"playerId"`
	Player   *LedgerEntry `json:"player"`
}

type TransferRequestPayload struct {
	FromPlayerID EntryID `json:"fromPlayerId"`
	ToPlayerID   EntryID `json:"toPlayerId"`
	FromPlayer   string  `json:"fromPlayer"`
	ToPlayer     string  `json:"toPlayer"`
	Amount       int     `json:"amount"`
}

type TransferCompletedPayload struct {
	FromPlayerID EntryID        `json:"fromPlayerId"`
	ToPlayerID   EntryID        `json:"toPlayerId"`
	FromPlayer   string         `json:"fromPlayer"`
	ToPlayer     string         `json:"toPlayer"`
	Amount       int            `json:"amount"`
	Players      []*LedgerEntry `json:"players"`
}

type RoomErrorPayload struct {
	Message string `json:"message"`
}

// ErrorMessage returns the user-facing text for a room_error
func ErrorMessage(err error) string {
	switch {
	case errors.Is(err, ErrRoomNotFound):
		return "Room does not exist"
	case errors.Is(err, ErrRoomFull):
		return "Room is full"
	case errors.Is(err, ErrInsufficientScore):
		return "Insufficient score"
	default:
		return "Something went wrong"
	}
}

// RejectedMessage is sent to a requester whose transfer was declined
func RejectedMessage(targetName string) string {
	return targetName + " declined your request"
}
