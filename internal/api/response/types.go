package response

import (
	"github.com/wjz20050714-stack/JIFEN/internal/model"
	"github.com/wjz20050714-stack/JIFEN/internal/services/session"
)

// Health is the response for the health endpoint
type Health struct {
	Status  string `json:"status"`
	Rooms   int    `json:"rooms"`
	Players int    `json:"players"`
}

// HealthFromSession converts session.Health
func HealthFromSession(h session.Health) Health {
	return Health{
		Status:  "ok",
		Rooms:   h.Rooms,
		Players: h.Players,
	}
}

// RoomSummary is one room in the room listing
type RoomSummary struct {
	ID          string `json:"id"`
	PlayerCount int    `json:"playerCount"`
	GamePlayers int    `json:"gamePlayers"`
	CreatedAt   int64  `json:"createdAt"` // Unix milliseconds
}

// RoomSummaryFromModel converts model.RoomSummary
func RoomSummaryFromModel(s model.RoomSummary) RoomSummary {
	return RoomSummary{
		ID:          string(s.ID),
		PlayerCount: s.PlayerCount,
		GamePlayers: s.GamePlayers,
		CreatedAt:   s.CreatedAt.UnixMilli(),
	}
}

// RoomList is the response for the room listing endpoint
type RoomList struct {
	Rooms []RoomSummary `json:"rooms"`
}

// RoomListFromModel converts a slice of model.RoomSummary
func RoomListFromModel(rooms []model.RoomSummary) RoomList {
	out := make([]RoomSummary, len(rooms))
	for i, s := range rooms {
		out[i] = RoomSummaryFromModel(s)
	}
	return RoomList{Rooms: out}
}
