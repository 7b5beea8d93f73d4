package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wjz20050714-stack/JIFEN/internal/model"
	"github.com/wjz20050714-stack/JIFEN/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface.
// Rooms are stored as JSON snapshots; reads return fresh copies.
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return &Storage{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

func (s *Storage) SaveRoom(ctx context.Context, room *model.Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return err
	}

	key := roomKey(room.ID)

	// Use pipeline for atomic save + index update
	pipe := s.client.Pipeline()
	pipe.Set(ctx, key, data, s.cfg.RoomTTL)
	pipe.SAdd(ctx, roomIndexKey(), key)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) GetRoom(ctx context.Context, id model.RoomID) (*model.Room, error) {
	data, err := s.client.Get(ctx, roomKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrRoomNotFound
		}
		return nil, err
	}

	return decodeRoom(data)
}

func (s *Storage) DeleteRoom(ctx context.Context, id model.RoomID) error {
	key := roomKey(id)

	pipe := s.client.Pipeline()
	pipe.Del(ctx, key)
	pipe.SRem(ctx, roomIndexKey(), key)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Storage) RoomExists(ctx context.Context, id model.RoomID) (bool, error) {
	exists, err := s.client.Exists(ctx, roomKey(id)).Result()
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}

func (s *Storage) ListRooms(ctx context.Context) ([]*model.Room, error) {
	indexKey := roomIndexKey()

	keys, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, err
	}

	if len(keys) == 0 {
		return []*model.Room{}, nil
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	rooms := make([]*model.Room, 0, len(values))
	var expired []interface{}
	for i, val := range values {
		str, ok := val.(string)
		if !ok {
			expired = append(expired, keys[i]) // Room snapshot expired
			continue
		}
		room, err := decodeRoom([]byte(str))
		if err != nil {
			continue // Skip invalid data
		}
		rooms = append(rooms, room)
	}

	if len(expired) > 0 {
		if err := s.client.SRem(ctx, indexKey, expired...).Err(); err != nil {
			return nil, err
		}
	}

	storage.SortRooms(rooms)
	return rooms, nil
}

func decodeRoom(data []byte) (*model.Room, error) {
	var room model.Room
	if err := json.Unmarshal(data, &room); err != nil {
		return nil, err
	}
	if room.OnlinePlayers == nil {
		room.OnlinePlayers = make(map[model.ParticipantID]*model.Presence)
	}
	if room.Players == nil {
		room.Players = []*model.LedgerEntry{}
	}
	return &room, nil
}
