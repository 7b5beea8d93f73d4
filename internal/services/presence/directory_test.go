package presence

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/wjz20050714-stack/JIFEN/internal/dependencies/mocks"
	"github.com/wjz20050714-stack/JIFEN/internal/model"
	"github.com/wjz20050714-stack/JIFEN/internal/services/ids"
	"github.com/wjz20050714-stack/JIFEN/internal/services/ownership"
	"github.com/wjz20050714-stack/JIFEN/internal/services/room"
	"github.com/wjz20050714-stack/JIFEN/internal/storage/memory"
	"github.com/wjz20050714-stack/JIFEN/internal/testutil"
)

type DirectorySuite struct {
	suite.Suite
	storage   *memory.Storage
	clock     *mocks.MockClock
	random    *mocks.MockRandom
	registry  *room.Registry
	directory *Directory
	ctx       context.Context
}

func TestDirectorySuite(t *testing.T) {
	suite.Run(t, new(DirectorySuite))
}

func (s *DirectorySuite) SetupTest() {
	s.storage = memory.New()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.random = mocks.NewMockRandom()
	logger := testutil.NopLogger()
	allocator := ids.New(s.clock, s.random)
	s.registry = room.NewRegistry(s.storage, allocator, s.clock, logger)
	s.directory = NewDirectory(s.registry, ownership.New(logger), allocator, DefaultCapacity, logger)
	s.ctx = context.Background()
}

func (s *DirectorySuite) createRoom(conn model.ConnID, name string) (*model.Room, *model.Presence) {
	rm, owner, err := s.directory.Create(s.ctx, conn, name)
	s.Require().NoError(err)
	return rm, owner
}

func (s *DirectorySuite) join(roomID model.RoomID, conn model.ConnID, name string) *model.Presence {
	_, p, err := s.directory.Join(s.ctx, roomID, conn, name)
	s.Require().NoError(err)
	return p
}

// Create / Join

func (s *DirectorySuite) TestCreateBindsOwner() {
	rm, owner := s.createRoom("conn-a", "Alice")

	conn, ok := s.directory.ConnOf(owner.ID)
	s.True(ok)
	s.Equal(model.ConnID("conn-a"), conn)
	s.Equal(1, s.directory.Stats())
	s.True(rm.IsOwner(owner.ID))
}

func (s *DirectorySuite) TestJoin() {
	rm, _ := s.createRoom("conn-a", "Alice")

	updated, p, err := s.directory.Join(s.ctx, rm.ID, "conn-b", "Bob")
	s.Require().NoError(err)

	s.False(p.IsOwner)
	s.True(p.Connected)
	s.Equal("Bob", p.Name)
	s.Len(updated.OnlinePlayers, 2)
	s.Equal(2, s.directory.Stats())
}

func (s *DirectorySuite) TestJoinUnknownRoom() {
	_, _, err := s.directory.Join(s.ctx, "NOPE00", "conn-b", "Bob")
	s.ErrorIs(err, model.ErrRoomNotFound)
	s.Equal(0, s.directory.Stats())
}

func (s *DirectorySuite) TestJoinCapacityBoundary() {
	rm, _ := s.createRoom("conn-0", "Owner")
	for i := 1; i < DefaultCapacity; i++ {
		s.join(rm.ID, model.ConnID(fmt.Sprintf("conn-%d", i)), fmt.Sprintf("P%d", i))
	}

	stored, _ := s.registry.GetRoom(s.ctx, rm.ID)
	s.Len(stored.OnlinePlayers, DefaultCapacity)

	_, _, err := s.directory.Join(s.ctx, rm.ID, "conn-extra", "Extra")
	s.ErrorIs(err, model.ErrRoomFull)

	stored, _ = s.registry.GetRoom(s.ctx, rm.ID)
	s.Len(stored.OnlinePlayers, DefaultCapacity)
}

func (s *DirectorySuite) TestPendingPresencesCountTowardsCapacity() {
	rm, _ := s.createRoom("conn-0", "Owner")
	var last *model.Presence
	for i := 1; i < DefaultCapacity; i++ {
		last = s.join(rm.ID, model.ConnID(fmt.Sprintf("conn-%d", i)), fmt.Sprintf("P%d", i))
	}
	_, _, err := s.directory.MarkDisconnected(s.ctx, rm.ID, last.ID)
	s.Require().NoError(err)

	_, _, err = s.directory.Join(s.ctx, rm.ID, "conn-extra", "Extra")
	s.ErrorIs(err, model.ErrRoomFull)
}

// Leave

func (s *DirectorySuite) TestLeaveNonOwner() {
	rm, _ := s.createRoom("conn-a", "Alice")
	bob := s.join(rm.ID, "conn-b", "Bob")

	dep, err := s.directory.Leave(s.ctx, rm.ID, bob.ID)
	s.Require().NoError(err)

	s.Equal(bob.ID, dep.Presence.ID)
	s.Equal(model.ConnID("conn-b"), dep.Conn)
	s.False(dep.RoomDeleted)
	s.Nil(dep.NewOwner)
	s.Require().NotNil(dep.Room)
	s.Len(dep.Room.OnlinePlayers, 1)

	_, ok := s.directory.ConnOf(bob.ID)
	s.False(ok)
}

func (s *DirectorySuite) TestForget() {
	rm, alice := s.createRoom("conn-a", "Alice")

	s.directory.Forget(alice.ID)

	s.Equal(0, s.directory.Stats())
	_, ok := s.directory.Route(rm.ID, "Alice")
	s.False(ok)
}

func (s *DirectorySuite) TestLeaveOwnerReassigns() {
	rm, alice := s.createRoom("conn-a", "Alice")
	bob := s.join(rm.ID, "conn-b", "Bob")

	dep, err := s.directory.Leave(s.ctx, rm.ID, alice.ID)
	s.Require().NoError(err)

	s.Require().NotNil(dep.NewOwner)
	s.Equal(bob.ID, dep.NewOwner.ID)
	s.Equal(model.ConnID("conn-b"), dep.NewOwnerConn)

	stored, err := s.registry.GetRoom(s.ctx, rm.ID)
	s.Require().NoError(err)
	s.True(stored.IsOwner(bob.ID))
}

func (s *DirectorySuite) TestLeaveLastDeletesRoom() {
	rm, alice := s.createRoom("conn-a", "Alice")

	dep, err := s.directory.Leave(s.ctx, rm.ID, alice.ID)
	s.Require().NoError(err)

	s.True(dep.RoomDeleted)
	s.Nil(dep.NewOwner)
	s.Nil(dep.Room)

	_, err = s.registry.GetRoom(s.ctx, rm.ID)
	s.ErrorIs(err, model.ErrRoomNotFound)
}

func (s *DirectorySuite) TestLeaveUnknownParticipant() {
	rm, _ := s.createRoom("conn-a", "Alice")

	_, err := s.directory.Leave(s.ctx, rm.ID, "player_missing")
	s.ErrorIs(err, model.ErrParticipantNotFound)
}

// Disconnect / purge

func (s *DirectorySuite) TestMarkDisconnectedKeepsPresence() {
	rm, _ := s.createRoom("conn-a", "Alice")
	bob := s.join(rm.ID, "conn-b", "Bob")

	updated, p, err := s.directory.MarkDisconnected(s.ctx, rm.ID, bob.ID)
	s.Require().NoError(err)

	s.False(p.Connected)
	s.Len(updated.OnlinePlayers, 2)
	s.Equal(2, s.directory.Stats())

	_, ok := s.directory.Route(rm.ID, "Bob")
	s.False(ok, "disconnected presences are not routable")
}

func (s *DirectorySuite) TestPurgeRemovesDisconnected() {
	rm, alice := s.createRoom("conn-a", "Alice")
	bob := s.join(rm.ID, "conn-b", "Bob")
	_, _, _ = s.directory.MarkDisconnected(s.ctx, rm.ID, alice.ID)

	dep, purged, err := s.directory.PurgeIfStillDisconnected(s.ctx, rm.ID, alice.ID)
	s.Require().NoError(err)

	s.True(purged)
	s.Require().NotNil(dep.NewOwner)
	s.Equal(bob.ID, dep.NewOwner.ID)
	s.Equal(1, s.directory.Stats())
}

func (s *DirectorySuite) TestPurgeSkipsConnected() {
	rm, alice := s.createRoom("conn-a", "Alice")

	_, purged, err := s.directory.PurgeIfStillDisconnected(s.ctx, rm.ID, alice.ID)
	s.Require().NoError(err)
	s.False(purged)
}

func (s *DirectorySuite) TestPurgeAfterLeaveIsNoOp() {
	rm, alice := s.createRoom("conn-a", "Alice")
	bob := s.join(rm.ID, "conn-b", "Bob")
	_, _, _ = s.directory.MarkDisconnected(s.ctx, rm.ID, bob.ID)
	_, _ = s.directory.Leave(s.ctx, rm.ID, bob.ID)

	_, purged, err := s.directory.PurgeIfStillDisconnected(s.ctx, rm.ID, bob.ID)
	s.Require().NoError(err)
	s.False(purged)

	stored, _ := s.registry.GetRoom(s.ctx, rm.ID)
	s.True(stored.IsOwner(alice.ID))
}

func (s *DirectorySuite) TestPurgeDeletedRoomIsNoOp() {
	rm, alice := s.createRoom("conn-a", "Alice")
	_, _ = s.directory.Leave(s.ctx, rm.ID, alice.ID)

	_, purged, err := s.directory.PurgeIfStillDisconnected(s.ctx, rm.ID, alice.ID)
	s.Require().NoError(err)
	s.False(purged)
}

func (s *DirectorySuite) TestExpiredRoomDropsBindings() {
	rm, alice := s.createRoom("conn-a", "Alice")
	bob := s.join(rm.ID, "conn-b", "Bob")
	_, _, _ = s.directory.MarkDisconnected(s.ctx, rm.ID, alice.ID)

	// The stored snapshot expires while both participants are still bound
	s.Require().NoError(s.storage.DeleteRoom(s.ctx, rm.ID))

	_, purged, err := s.directory.PurgeIfStillDisconnected(s.ctx, rm.ID, alice.ID)
	s.Require().NoError(err)
	s.False(purged)
	s.Equal(1, s.directory.Stats())

	_, err = s.directory.Leave(s.ctx, rm.ID, bob.ID)
	s.ErrorIs(err, model.ErrRoomNotFound)
	s.Equal(0, s.directory.Stats())

	_, ok := s.directory.ConnOf(bob.ID)
	s.False(ok)
}

func (s *DirectorySuite) TestPurgeLastDeletesRoom() {
	rm, alice := s.createRoom("conn-a", "Alice")
	_, _, _ = s.directory.MarkDisconnected(s.ctx, rm.ID, alice.ID)

	dep, purged, err := s.directory.PurgeIfStillDisconnected(s.ctx, rm.ID, alice.ID)
	s.Require().NoError(err)

	s.True(purged)
	s.True(dep.RoomDeleted)
	s.Nil(dep.NewOwner)
	s.Equal(0, s.directory.Stats())
}

// Routing

func (s *DirectorySuite) TestRoute() {
	rm, _ := s.createRoom("conn-a", "Alice")
	s.join(rm.ID, "conn-b", "Bob")

	conn, ok := s.directory.Route(rm.ID, "Bob")
	s.True(ok)
	s.Equal(model.ConnID("conn-b"), conn)

	_, ok = s.directory.Route(rm.ID, "Carol")
	s.False(ok)
}

func (s *DirectorySuite) TestRouteIsScopedToRoom() {
	first, _ := s.createRoom("conn-a", "Alice")
	second, _ := s.createRoom("conn-b", "Bob")

	_, ok := s.directory.Route(first.ID, "Bob")
	s.False(ok)

	conn, ok := s.directory.Route(second.ID, "Bob")
	s.True(ok)
	s.Equal(model.ConnID("conn-b"), conn)
}

func (s *DirectorySuite) TestRouteDuplicateNamesPicksLowestID() {
	rm, _ := s.createRoom("conn-a", "Alice")
	s.random.QueueString("zzzzzzzzz")
	s.join(rm.ID, "conn-late", "Sam")
	s.random.QueueString("aaaaaaaaa")
	s.join(rm.ID, "conn-early", "Sam")

	conn, ok := s.directory.Route(rm.ID, "Sam")
	s.True(ok)
	s.Equal(model.ConnID("conn-early"), conn)
}
