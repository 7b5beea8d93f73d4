package storage

import (
	"context"

	"github.com/wjz20050714-stack/JIFEN/internal/model"
)

// Storage defines the interface for room persistence. Callers mutate the
// returned room and hand it back through SaveRoom; backends that copy on
// read (redis) depend on that.
type Storage interface {
	SaveRoom(ctx context.Context, room *model.Room) error
	GetRoom(ctx context.Context, id model.RoomID) (*model.Room, error)
	DeleteRoom(ctx context.Context, id model.RoomID) error
	RoomExists(ctx context.Context, id model.RoomID) (bool, error)

	// ListRooms returns every live room ordered by creation time
	ListRooms(ctx context.Context) ([]*model.Room, error)
}
