package factory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/wjz20050714-stack/JIFEN/internal/dependencies/mocks"
	"github.com/wjz20050714-stack/JIFEN/internal/model"
	"github.com/wjz20050714-stack/JIFEN/internal/services/session"
)

type IntegrationSuite struct {
	suite.Suite
	app *TestApp
	ctx context.Context
}

func TestIntegrationSuite(t *testing.T) {
	suite.Run(t, new(IntegrationSuite))
}

func (s *IntegrationSuite) SetupTest() {
	s.app = NewTestApp()
	s.ctx = context.Background()
	s.app.Start(s.ctx)
}

func (s *IntegrationSuite) TearDownTest() {
	s.Require().NoError(s.app.Stop())
}

func (s *IntegrationSuite) send(conn model.ConnID, event model.EventType, payload any) {
	env, err := model.NewEnvelope(event, payload)
	s.Require().NoError(err)
	s.app.Gateway.Receive(conn, env)
}

// health also waits for every previously queued job
func (s *IntegrationSuite) health() session.Health {
	h, err := s.app.Gateway.Health(s.ctx)
	s.Require().NoError(err)
	return h
}

func (s *IntegrationSuite) last(event model.EventType, target any) mocks.Emission {
	emissions := s.app.MockEmitter.OfType(event)
	s.Require().NotEmpty(emissions, "no %s emitted", event)
	e := emissions[len(emissions)-1]
	s.Require().NoError(e.Decode(target))
	return e
}

// Test: A complete session from room creation to the room being deleted
func (s *IntegrationSuite) TestCompleteSessionFlow() {
	// Step 1: Alice creates a room
	s.app.Gateway.Connect("conn-a")
	s.send("conn-a", model.EventCreateRoom, model.CreateRoomRequest{PlayerName: "Alice"})
	s.Equal(session.Health{Rooms: 1, Players: 1}, s.health())

	var created model.RoomEnteredPayload
	s.last(model.EventRoomCreated, &created)
	roomID := created.RoomID
	s.Len(string(roomID), 6)
	s.True(created.OnlinePlayers[created.PlayerID].IsOwner)

	// Step 2: Bob joins
	s.app.Gateway.Connect("conn-b")
	s.send("conn-b", model.EventJoinRoom, model.JoinRoomRequest{RoomID: roomID, PlayerName: "Bob"})
	s.Equal(session.Health{Rooms: 1, Players: 2}, s.health())

	var joined model.PlayerJoinedPayload
	e := s.last(model.EventPlayerJoined, &joined)
	s.Equal(model.ConnID("conn-b"), e.Conn, "everyone but the joiner hears about it")
	s.Equal("Bob", joined.PlayerName)

	// Step 3: Both names go on the ledger
	s.send("conn-a", model.EventAddPlayer, model.AddPlayerRequest{Name: "Alice"})
	s.send("conn-b", model.EventAddPlayer, model.AddPlayerRequest{Name: "Bob"})
	s.health()

	var players model.PlayersPayload
	s.last(model.EventPlayersUpdate, &players)
	s.Require().Len(players.Players, 2)
	alice, bob := players.Players[0], players.Players[1]
	s.Equal(model.DefaultScore, alice.Score)

	// Step 4: Bob asks Alice for 30 points and she accepts
	transfer := model.TransferRequest{FromPlayerID: bob.ID, ToPlayerID: alice.ID, Amount: 30}
	s.send("conn-b", model.EventTransferRequest, transfer)
	s.health()

	var request model.TransferRequestPayload
	e = s.last(model.EventTransferRequest, &request)
	s.Equal(model.ConnID("conn-a"), e.Conn, "routed to the target by name")
	s.Equal("Bob", request.FromPlayer)

	s.send("conn-a", model.EventAcceptRequest, transfer)
	s.health()

	var completed model.TransferCompletedPayload
	s.last(model.EventTransferCompleted, &completed)
	scores := map[string]int{}
	for _, p := range completed.Players {
		scores[p.Name] = p.Score
	}
	s.Equal(map[string]int{"Alice": 70, "Bob": 130}, scores)

	// Step 5: Alice starts a new round; balances reset, history stays
	s.send("conn-a", model.EventNewRound, nil)
	s.health()
	s.last(model.EventNewRound, &players)
	for _, p := range players.Players {
		s.Equal(model.DefaultScore, p.Score)
		s.Len(p.History, 1)
	}

	// Step 6: Alice disconnects; Bob takes over once her grace expires
	s.app.Gateway.Disconnect("conn-a")
	s.Equal(2, s.health().Players, "Alice is held during the grace window")

	s.app.MockClock.Advance(session.DefaultGracePeriod)
	s.Equal(session.Health{Rooms: 1, Players: 1}, s.health())

	var promoted model.PlayerLeftPayload
	e = s.last(model.EventPlayerLeft, &promoted)
	s.Equal(model.ConnID("conn-b"), e.Conn)
	s.True(promoted.NewOwner)

	// Step 7: Bob leaves; the room is gone
	s.send("conn-b", model.EventLeaveRoom, nil)
	s.Equal(session.Health{}, s.health())
	s.Equal([]model.RoomID{roomID}, s.app.MockEmitter.Closed)

	exists, err := s.app.Storage.RoomExists(s.ctx, roomID)
	s.Require().NoError(err)
	s.False(exists)
}

// Test: A reconnect within the grace window is a fresh participant
func (s *IntegrationSuite) TestReconnectWithinGrace() {
	s.app.Gateway.Connect("conn-a")
	s.send("conn-a", model.EventCreateRoom, model.CreateRoomRequest{PlayerName: "Alice"})
	s.health()
	var created model.RoomEnteredPayload
	s.last(model.EventRoomCreated, &created)

	s.app.Gateway.Disconnect("conn-a")
	s.app.Gateway.Connect("conn-a2")
	s.send("conn-a2", model.EventJoinRoom, model.JoinRoomRequest{RoomID: created.RoomID, PlayerName: "Alice"})
	s.Equal(2, s.health().Players)

	s.app.MockClock.Advance(session.DefaultGracePeriod + time.Second)
	h := s.health()
	s.Equal(1, h.Rooms)
	s.Equal(1, h.Players)

	var rejoined model.RoomEnteredPayload
	s.last(model.EventRoomJoined, &rejoined)
	s.NotEqual(created.PlayerID, rejoined.PlayerID)
}

// Test: Full rooms and unknown rooms surface as room errors
func (s *IntegrationSuite) TestJoinErrors() {
	s.app.Gateway.Connect("conn-x")
	s.send("conn-x", model.EventJoinRoom, model.JoinRoomRequest{RoomID: "NOPE00", PlayerName: "X"})
	s.health()

	var failure model.RoomErrorPayload
	e := s.last(model.EventRoomError, &failure)
	s.Equal(model.ConnID("conn-x"), e.Conn)
	s.Equal("Room does not exist", failure.Message)
	s.Equal(0, s.health().Rooms)
}

func TestNew_StorageSelection(t *testing.T) {
	app, err := New(Config{})
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	if err := app.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}

	if _, err := New(Config{StorageType: StorageTypeRedis}); err == nil {
		t.Fatal("expected error without RedisConfig")
	}
	if _, err := New(Config{StorageType: "mongo"}); err == nil {
		t.Fatal("expected error for unknown storage type")
	}
}
