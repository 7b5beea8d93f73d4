package presence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/wjz20050714-stack/JIFEN/internal/model"
	"github.com/wjz20050714-stack/JIFEN/internal/services/ids"
	"github.com/wjz20050714-stack/JIFEN/internal/services/ownership"
	"github.com/wjz20050714-stack/JIFEN/internal/services/room"
)

// DefaultCapacity is the maximum number of presences in a room
const DefaultCapacity = 10

// record is the directory-side shadow of a presence, used for routing
type record struct {
	conn      model.ConnID
	room      model.RoomID
	name      string
	connected bool
}

// Departure describes the outcome of a presence leaving a room
type Departure struct {
	RoomID   model.RoomID
	Presence model.Presence
	Conn     model.ConnID

	// Room is the room after the departure; nil once deleted
	Room        *model.Room
	RoomDeleted bool

	// NewOwner is set when ownership moved to another presence
	NewOwner     *model.Presence
	NewOwnerConn model.ConnID
}

// Directory maps connections to participants and rooms and tracks whether
// each presence is online. It is not safe for concurrent use.
type Directory struct {
	registry  *room.Registry
	arbiter   *ownership.Arbiter
	allocator *ids.Allocator
	capacity  int
	records   map[model.ParticipantID]*record
	logger    *slog.Logger
}

// NewDirectory creates a new Directory. A non-positive capacity selects DefaultCapacity.
func NewDirectory(
	registry *room.Registry,
	arbiter *ownership.Arbiter,
	allocator *ids.Allocator,
	capacity int,
	logger *slog.Logger,
) *Directory {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Directory{
		registry:  registry,
		arbiter:   arbiter,
		allocator: allocator,
		capacity:  capacity,
		records:   make(map[model.ParticipantID]*record),
		logger:    logger.With(slog.String("component", "presence-directory")),
	}
}

// Create opens a new room owned by the connection
func (d *Directory) Create(ctx context.Context, conn model.ConnID, name string) (*model.Room, *model.Presence, error) {
	rm, owner, err := d.registry.CreateRoom(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	d.bind(conn, rm.ID, owner)
	return rm, owner, nil
}

// Join adds a presence for the connection to an existing room. Presences
// still in their grace window count towards capacity.
func (d *Directory) Join(ctx context.Context, roomID model.RoomID, conn model.ConnID, name string) (*model.Room, *model.Presence, error) {
	rm, err := d.registry.GetRoom(ctx, roomID)
	if err != nil {
		return nil, nil, err
	}

	if len(rm.OnlinePlayers) >= d.capacity {
		return nil, nil, model.ErrRoomFull
	}

	p := &model.Presence{
		ID:        d.allocator.ParticipantID(),
		Name:      name,
		Avatar:    d.allocator.Avatar(),
		IsOwner:   false,
		Connected: true,
	}
	rm.OnlinePlayers[p.ID] = p

	if err := d.registry.SaveRoom(ctx, rm); err != nil {
		return nil, nil, fmt.Errorf("save room %s: %w", roomID, err)
	}
	d.bind(conn, rm.ID, p)

	d.logger.Info("participant joined",
		slog.String("room_id", string(roomID)),
		slog.String("participant_id", string(p.ID)),
		slog.String("player_name", name),
	)
	return rm, p, nil
}

// Leave removes a presence immediately
func (d *Directory) Leave(ctx context.Context, roomID model.RoomID, id model.ParticipantID) (Departure, error) {
	rm, err := d.room(ctx, roomID, id)
	if err != nil {
		return Departure{}, err
	}
	if rm.GetPresence(id) == nil {
		return Departure{}, model.ErrParticipantNotFound
	}
	return d.remove(ctx, rm, id)
}

// MarkDisconnected flags a presence as offline without removing it
func (d *Directory) MarkDisconnected(ctx context.Context, roomID model.RoomID, id model.ParticipantID) (*model.Room, *model.Presence, error) {
	rm, err := d.room(ctx, roomID, id)
	if err != nil {
		return nil, nil, err
	}
	p := rm.GetPresence(id)
	if p == nil {
		return nil, nil, model.ErrParticipantNotFound
	}

	p.Connected = false
	if err := d.registry.SaveRoom(ctx, rm); err != nil {
		return nil, nil, fmt.Errorf("save room %s: %w", roomID, err)
	}
	if rec := d.records[id]; rec != nil {
		rec.connected = false
	}

	d.logger.Info("participant disconnected",
		slog.String("room_id", string(roomID)),
		slog.String("participant_id", string(id)),
	)
	return rm, p, nil
}

// PurgeIfStillDisconnected removes a presence whose grace window has ended.
// It reports false when the presence is gone or back online.
func (d *Directory) PurgeIfStillDisconnected(ctx context.Context, roomID model.RoomID, id model.ParticipantID) (Departure, bool, error) {
	rm, err := d.room(ctx, roomID, id)
	if err != nil {
		if errors.Is(err, model.ErrRoomNotFound) {
			return Departure{}, false, nil
		}
		return Departure{}, false, err
	}
	p := rm.GetPresence(id)
	if p == nil || p.Connected {
		return Departure{}, false, nil
	}

	dep, err := d.remove(ctx, rm, id)
	if err != nil {
		return Departure{}, false, err
	}
	return dep, true, nil
}

// Forget drops a participant's binding without touching any room
func (d *Directory) Forget(id model.ParticipantID) {
	delete(d.records, id)
}

// room loads a participant's room. A room that no longer exists (an expired
// snapshot) takes the participant's binding with it.
func (d *Directory) room(ctx context.Context, roomID model.RoomID, id model.ParticipantID) (*model.Room, error) {
	rm, err := d.registry.GetRoom(ctx, roomID)
	if errors.Is(err, model.ErrRoomNotFound) {
		if rec := d.records[id]; rec != nil && rec.room == roomID {
			delete(d.records, id)
		}
	}
	return rm, err
}

// remove drops the presence, hands off ownership and deletes the room once empty
func (d *Directory) remove(ctx context.Context, rm *model.Room, id model.ParticipantID) (Departure, error) {
	p := rm.OnlinePlayers[id]
	delete(rm.OnlinePlayers, id)

	dep := Departure{
		RoomID:   rm.ID,
		Presence: *p,
	}
	if rec := d.records[id]; rec != nil {
		dep.Conn = rec.conn
	}
	delete(d.records, id)

	if len(rm.OnlinePlayers) == 0 {
		if err := d.registry.DeleteRoom(ctx, rm.ID); err != nil {
			return Departure{}, fmt.Errorf("delete room %s: %w", rm.ID, err)
		}
		dep.RoomDeleted = true
		return dep, nil
	}

	if p.IsOwner {
		dep.NewOwner = d.arbiter.Reassign(rm)
		if rec := d.records[dep.NewOwner.ID]; rec != nil {
			dep.NewOwnerConn = rec.conn
		}
	}

	if err := d.registry.SaveRoom(ctx, rm); err != nil {
		return Departure{}, fmt.Errorf("save room %s: %w", rm.ID, err)
	}
	dep.Room = rm

	d.logger.Info("participant removed",
		slog.String("room_id", string(rm.ID)),
		slog.String("participant_id", string(id)),
		slog.Int("remaining", len(rm.OnlinePlayers)),
	)
	return dep, nil
}

func (d *Directory) bind(conn model.ConnID, roomID model.RoomID, p *model.Presence) {
	d.records[p.ID] = &record{
		conn:      conn,
		room:      roomID,
		name:      p.Name,
		connected: p.Connected,
	}
}

// Route resolves a display name to the connection of an online presence in
// the room. Duplicate names resolve to the lowest participant id.
func (d *Directory) Route(roomID model.RoomID, name string) (model.ConnID, bool) {
	var (
		found bool
		best  model.ParticipantID
		conn  model.ConnID
	)
	for id, rec := range d.records {
		if rec.room != roomID || rec.name != name || !rec.connected {
			continue
		}
		if !found || id < best {
			found, best, conn = true, id, rec.conn
		}
	}
	return conn, found
}

// ConnOf returns the connection bound to a participant
func (d *Directory) ConnOf(id model.ParticipantID) (model.ConnID, bool) {
	rec := d.records[id]
	if rec == nil {
		return "", false
	}
	return rec.conn, true
}

// Stats returns the number of presences, online or pending purge
func (d *Directory) Stats() int {
	return len(d.records)
}
