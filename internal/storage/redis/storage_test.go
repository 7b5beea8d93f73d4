package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"github.com/wjz20050714-stack/JIFEN/internal/model"
)

type StorageSuite struct {
	suite.Suite
	mini    *miniredis.Miniredis
	storage *Storage
	ctx     context.Context
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, new(StorageSuite))
}

func (s *StorageSuite) SetupTest() {
	s.mini = miniredis.RunT(s.T())

	client := redis.NewClient(&redis.Options{
		Addr: s.mini.Addr(),
	})

	cfg := DefaultConfig()
	cfg.RoomTTL = time.Hour

	s.storage = NewWithClient(client, cfg)
	s.ctx = context.Background()
}

func (s *StorageSuite) TearDownTest() {
	if s.storage != nil {
		_ = s.storage.Close()
	}
	if s.mini != nil {
		s.mini.Close()
	}
}

func (s *StorageSuite) newRoom(id model.RoomID, createdAt time.Time) *model.Room {
	room := model.NewRoom(id, createdAt)
	room.OnlinePlayers["player_1_a"] = &model.Presence{
		ID: "player_1_a", Name: "Alice", Avatar: "😀", IsOwner: true, Connected: true,
	}
	return room
}

func (s *StorageSuite) TestSaveAndGetRoom() {
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	room := s.newRoom("ABC123", created)
	entry := &model.LedgerEntry{ID: "game_1_a", Name: "Alice", Score: model.DefaultScore, Avatar: "😀"}
	entry.Adjust(-20, created)
	room.Players = append(room.Players, entry)

	err := s.storage.SaveRoom(s.ctx, room)
	s.Require().NoError(err)

	retrieved, err := s.storage.GetRoom(s.ctx, "ABC123")
	s.Require().NoError(err)
	s.Equal(room.ID, retrieved.ID)
	s.Equal(model.GameStateWaiting, retrieved.GameState)
	s.True(retrieved.CreatedAt.Equal(created))
	s.True(retrieved.IsOwner("player_1_a"))

	s.Require().Len(retrieved.Players, 1)
	s.Equal(80, retrieved.Players[0].Score)
	s.Require().Len(retrieved.Players[0].History, 1)
	s.Equal(model.HistoryAdjust, retrieved.Players[0].History[0].Kind)
	s.Equal(-20, retrieved.Players[0].History[0].Delta)
	s.Equal(80, retrieved.Players[0].History[0].Total)
}

func (s *StorageSuite) TestGetRoomReturnsCopy() {
	_ = s.storage.SaveRoom(s.ctx, s.newRoom("ABC123", time.Now()))

	first, err := s.storage.GetRoom(s.ctx, "ABC123")
	s.Require().NoError(err)
	first.OnlinePlayers["player_1_a"].Name = "Mallory"

	second, err := s.storage.GetRoom(s.ctx, "ABC123")
	s.Require().NoError(err)
	s.Equal("Alice", second.OnlinePlayers["player_1_a"].Name)
}

func (s *StorageSuite) TestGetRoomNotFound() {
	_, err := s.storage.GetRoom(s.ctx, "NOPE00")
	s.ErrorIs(err, model.ErrRoomNotFound)
}

func (s *StorageSuite) TestRoomExists() {
	exists, err := s.storage.RoomExists(s.ctx, "ABC123")
	s.Require().NoError(err)
	s.False(exists)

	_ = s.storage.SaveRoom(s.ctx, s.newRoom("ABC123", time.Now()))

	exists, err = s.storage.RoomExists(s.ctx, "ABC123")
	s.Require().NoError(err)
	s.True(exists)
}

func (s *StorageSuite) TestDeleteRoom() {
	_ = s.storage.SaveRoom(s.ctx, s.newRoom("ABC123", time.Now()))

	err := s.storage.DeleteRoom(s.ctx, "ABC123")
	s.Require().NoError(err)

	_, err = s.storage.GetRoom(s.ctx, "ABC123")
	s.ErrorIs(err, model.ErrRoomNotFound)

	members, err := s.mini.SMembers(roomIndexKey())
	if err == nil {
		s.NotContains(members, roomKey("ABC123"))
	}
}

func (s *StorageSuite) TestRoomTTL() {
	_ = s.storage.SaveRoom(s.ctx, s.newRoom("ABC123", time.Now()))

	ttl := s.mini.TTL(roomKey("ABC123"))
	s.True(ttl > 0, "Room should have TTL")
}

func (s *StorageSuite) TestListRooms() {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	_ = s.storage.SaveRoom(s.ctx, s.newRoom("BBBBBB", base.Add(time.Minute)))
	_ = s.storage.SaveRoom(s.ctx, s.newRoom("AAAAAA", base))

	rooms, err := s.storage.ListRooms(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(rooms, 2)
	s.Equal(model.RoomID("AAAAAA"), rooms[0].ID)
	s.Equal(model.RoomID("BBBBBB"), rooms[1].ID)
}

func (s *StorageSuite) TestListRoomsEmpty() {
	rooms, err := s.storage.ListRooms(s.ctx)
	s.Require().NoError(err)
	s.Empty(rooms)
}

func (s *StorageSuite) TestListRoomsDropsExpiredFromIndex() {
	_ = s.storage.SaveRoom(s.ctx, s.newRoom("AAAAAA", time.Now()))
	_ = s.storage.SaveRoom(s.ctx, s.newRoom("BBBBBB", time.Now()))

	s.mini.Del(roomKey("AAAAAA"))

	rooms, err := s.storage.ListRooms(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(rooms, 1)
	s.Equal(model.RoomID("BBBBBB"), rooms[0].ID)

	members, err := s.mini.SMembers(roomIndexKey())
	s.Require().NoError(err)
	s.Equal([]string{roomKey("BBBBBB")}, members)
}
