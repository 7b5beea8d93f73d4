package room

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/wjz20050714-stack/JIFEN/internal/dependencies/clock"
	"github.com/wjz20050714-stack/JIFEN/internal/model"
	"github.com/wjz20050714-stack/JIFEN/internal/services/ids"
	"github.com/wjz20050714-stack/JIFEN/internal/storage"
)

// maxCodeAttempts bounds the search for a free room code
const maxCodeAttempts = 8

// ErrNoFreeCode is returned when every generated code was already taken
var ErrNoFreeCode = errors.New("could not allocate a free room code")

// Registry owns the Room lifecycle: creation, lookup and deletion
type Registry struct {
	storage   storage.Storage
	allocator *ids.Allocator
	clock     clock.Clock
	logger    *slog.Logger
}

// NewRegistry creates a new Registry
func NewRegistry(
	store storage.Storage,
	allocator *ids.Allocator,
	clk clock.Clock,
	logger *slog.Logger,
) *Registry {
	return &Registry{
		storage:   store,
		allocator: allocator,
		clock:     clk,
		logger:    logger.With(slog.String("component", "room-registry")),
	}
}

// CreateRoom creates a waiting room with an empty ledger and a single
// connected owner presence
func (r *Registry) CreateRoom(ctx context.Context, ownerName string) (*model.Room, *model.Presence, error) {
	code, err := r.freeCode(ctx)
	if err != nil {
		return nil, nil, err
	}

	room := model.NewRoom(code, r.clock.Now())
	owner := &model.Presence{
		ID:        r.allocator.ParticipantID(),
		Name:      ownerName,
		Avatar:    r.allocator.Avatar(),
		IsOwner:   true,
		Connected: true,
	}
	room.OnlinePlayers[owner.ID] = owner

	if err := r.storage.SaveRoom(ctx, room); err != nil {
		return nil, nil, fmt.Errorf("save room %s: %w", code, err)
	}

	r.logger.Info("room created",
		slog.String("room_id", string(room.ID)),
		slog.String("participant_id", string(owner.ID)),
		slog.String("player_name", ownerName),
	)

	return room, owner, nil
}

// freeCode draws room codes until one is not in use
func (r *Registry) freeCode(ctx context.Context) (model.RoomID, error) {
	for range maxCodeAttempts {
		code := r.allocator.RoomCode()
		exists, err := r.storage.RoomExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
		r.logger.Warn("room code collision", slog.String("room_id", string(code)))
	}
	return "", ErrNoFreeCode
}

// GetRoom retrieves a room by id
func (r *Registry) GetRoom(ctx context.Context, id model.RoomID) (*model.Room, error) {
	return r.storage.GetRoom(ctx, id)
}

// SaveRoom writes back a mutated room
func (r *Registry) SaveRoom(ctx context.Context, room *model.Room) error {
	return r.storage.SaveRoom(ctx, room)
}

// DeleteRoom removes a room. Deleting an absent room is not an error.
func (r *Registry) DeleteRoom(ctx context.Context, id model.RoomID) error {
	if err := r.storage.DeleteRoom(ctx, id); err != nil {
		return err
	}
	r.logger.Info("room deleted", slog.String("room_id", string(id)))
	return nil
}

// ListRooms returns every live room, oldest first
func (r *Registry) ListRooms(ctx context.Context) ([]*model.Room, error) {
	return r.storage.ListRooms(ctx)
}
