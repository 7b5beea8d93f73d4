package ownership

import (
	"log/slog"

	"github.com/wjz20050714-stack/JIFEN/internal/model"
)

// Arbiter chooses a room's next owner when the current one departs
type Arbiter struct {
	logger *slog.Logger
}

// New creates a new Arbiter
func New(logger *slog.Logger) *Arbiter {
	return &Arbiter{
		logger: logger.With(slog.String("component", "ownership-arbiter")),
	}
}

// Reassign promotes a successor and returns it, or nil if the room has no
// presences left. Connected presences are preferred over ones in their grace
// window; ties go to the lowest participant id. Afterwards exactly one
// presence in the room is owner.
func (a *Arbiter) Reassign(room *model.Room) *model.Presence {
	var successor *model.Presence
	for _, id := range room.PresenceIDs() {
		p := room.OnlinePlayers[id]
		if successor == nil || (p.Connected && !successor.Connected) {
			successor = p
		}
	}
	if successor == nil {
		return nil
	}

	for _, p := range room.OnlinePlayers {
		p.IsOwner = p == successor
	}

	a.logger.Info("ownership reassigned",
		slog.String("room_id", string(room.ID)),
		slog.String("participant_id", string(successor.ID)),
		slog.Bool("connected", successor.Connected),
	)
	return successor
}
