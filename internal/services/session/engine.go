package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wjz20050714-stack/JIFEN/internal/dependencies/clock"
	"github.com/wjz20050714-stack/JIFEN/internal/dependencies/emitter"
	"github.com/wjz20050714-stack/JIFEN/internal/model"
	"github.com/wjz20050714-stack/JIFEN/internal/services/ledger"
	"github.com/wjz20050714-stack/JIFEN/internal/services/presence"
	"github.com/wjz20050714-stack/JIFEN/internal/services/room"
	"github.com/wjz20050714-stack/JIFEN/internal/services/transfer"
)

// DefaultGracePeriod is how long a disconnected presence is kept before purge
const DefaultGracePeriod = 30 * time.Second

type graceKey struct {
	room        model.RoomID
	participant model.ParticipantID
}

// Health is the diagnostic summary of live state
type Health struct {
	Rooms   int
	Players int
}

// Engine dispatches inbound events against room, presence and ledger state
// and emits the resulting outbound events. It is not safe for concurrent
// use: every call must come from the Loop.
type Engine struct {
	registry  *room.Registry
	directory *presence.Directory
	ledger    *ledger.Service
	transfers *transfer.Service
	emitter   emitter.Emitter
	clock     clock.Clock
	scheduler Scheduler
	grace     time.Duration

	sessions map[model.ConnID]*Session
	timers   map[graceKey]clock.Timer
	logger   *slog.Logger
}

// NewEngine creates a new Engine. A non-positive grace selects DefaultGracePeriod.
func NewEngine(
	registry *room.Registry,
	directory *presence.Directory,
	ledgerService *ledger.Service,
	transfers *transfer.Service,
	out emitter.Emitter,
	clk clock.Clock,
	scheduler Scheduler,
	grace time.Duration,
	logger *slog.Logger,
) *Engine {
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	return &Engine{
		registry:  registry,
		directory: directory,
		ledger:    ledgerService,
		transfers: transfers,
		emitter:   out,
		clock:     clk,
		scheduler: scheduler,
		grace:     grace,
		sessions:  make(map[model.ConnID]*Session),
		timers:    make(map[graceKey]clock.Timer),
		logger:    logger.With(slog.String("component", "session-engine")),
	}
}

// Connect opens a session for a new connection
func (e *Engine) Connect(conn model.ConnID) {
	e.sessions[conn] = &Session{Conn: conn}
	e.logger.Debug("session opened", slog.String("conn_id", string(conn)))
}

// Session returns the session of a connection, or nil
func (e *Engine) Session(conn model.ConnID) *Session {
	return e.sessions[conn]
}

// Handle runs one inbound event to completion
func (e *Engine) Handle(ctx context.Context, conn model.ConnID, env model.Envelope) {
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("jifen.event", string(env.Type)),
		attribute.String("jifen.conn_id", string(conn)),
	)

	sess := e.sessions[conn]
	if sess == nil {
		e.logger.Debug("event from unknown connection",
			slog.String("conn_id", string(conn)),
			slog.String("event", string(env.Type)),
		)
		return
	}

	var err error
	switch env.Type {
	case model.EventCreateRoom:
		err = e.createRoom(ctx, sess, env)
	case model.EventJoinRoom:
		err = e.joinRoom(ctx, sess, env)
	case model.EventLeaveRoom:
		err = e.leaveRoom(ctx, sess)
	case model.EventAddPlayer:
		err = e.addPlayer(ctx, sess, env)
	case model.EventRemovePlayer:
		err = e.removePlayer(ctx, sess, env)
	case model.EventAdjustScore:
		err = e.adjustScore(ctx, sess, env)
	case model.EventTransferRequest:
		err = e.requestTransfer(ctx, sess, env)
	case model.EventAcceptRequest:
		err = e.acceptTransfer(ctx, sess, env)
	case model.EventRejectRequest:
		err = e.rejectTransfer(ctx, sess, env)
	case model.EventNewRound:
		err = e.newRound(ctx, sess)
	case model.EventResetGame:
		err = e.resetGame(ctx, sess)
	case model.EventEndGame:
		err = e.endGame(ctx, sess)
	default:
		err = model.ErrUnknownEvent
	}

	if err != nil {
		e.fail(sess, env.Type, err)
	}
}

// Disconnect closes a session. A presence it held is marked offline,
// announced as departed and purged once the grace period has passed.
func (e *Engine) Disconnect(ctx context.Context, conn model.ConnID) {
	sess := e.sessions[conn]
	delete(e.sessions, conn)
	if sess == nil || !sess.InRoom() {
		return
	}

	rm, p, err := e.directory.MarkDisconnected(ctx, sess.RoomID, sess.ParticipantID)
	if err != nil {
		e.logger.Debug("disconnect without presence",
			slog.String("conn_id", string(conn)),
			slog.Any("error", err),
		)
		return
	}

	e.emitter.Leave(conn, rm.ID)
	e.emitter.ToRoom(rm.ID, model.EventPlayerLeft, model.PlayerLeftPayload{
		PlayerID:      p.ID,
		PlayerName:    p.Name,
		OnlinePlayers: rm.OnlinePlayers,
	})
	e.scheduleGrace(rm.ID, p.ID)
}

// Stop cancels every pending grace timer
func (e *Engine) Stop() {
	for key, t := range e.timers {
		t.Stop()
		delete(e.timers, key)
	}
}

// PendingPurges returns the number of scheduled grace timers
func (e *Engine) PendingPurges() int {
	return len(e.timers)
}

// Health summarises live rooms and presences
func (e *Engine) Health(ctx context.Context) (Health, error) {
	rooms, err := e.registry.ListRooms(ctx)
	if err != nil {
		return Health{}, err
	}
	return Health{Rooms: len(rooms), Players: e.directory.Stats()}, nil
}

// Rooms returns a summary of every live room
func (e *Engine) Rooms(ctx context.Context) ([]model.RoomSummary, error) {
	rooms, err := e.registry.ListRooms(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.RoomSummary, 0, len(rooms))
	for _, rm := range rooms {
		out = append(out, rm.Summary())
	}
	return out, nil
}

// WithRoom runs fn if the room exists, and returns ErrRoomNotFound otherwise
func (e *Engine) WithRoom(ctx context.Context, id model.RoomID, fn func(*model.Room)) error {
	rm, err := e.registry.GetRoom(ctx, id)
	if err != nil {
		return err
	}
	fn(rm)
	return nil
}

// Room lifecycle

func (e *Engine) createRoom(ctx context.Context, sess *Session, env model.Envelope) error {
	var req model.CreateRoomRequest
	if err := env.Decode(&req); err != nil {
		return err
	}

	rm, owner, err := e.directory.Create(ctx, sess.Conn, req.PlayerName)
	if err != nil {
		return err
	}

	rm, owner = e.enter(ctx, sess, rm, owner)
	e.emitter.ToConn(sess.Conn, model.EventRoomCreated, entered(rm, owner))
	return nil
}

func (e *Engine) joinRoom(ctx context.Context, sess *Session, env model.Envelope) error {
	var req model.JoinRoomRequest
	if err := env.Decode(&req); err != nil {
		return err
	}

	rm, p, err := e.directory.Join(ctx, req.RoomID, sess.Conn, req.PlayerName)
	if err != nil {
		return err
	}

	rm, p = e.enter(ctx, sess, rm, p)
	e.emitter.ToConn(sess.Conn, model.EventRoomJoined, entered(rm, p))
	e.emitter.ToRoomExcept(rm.ID, sess.Conn, model.EventPlayerJoined, model.PlayerJoinedPayload{
		PlayerID:      p.ID,
		PlayerName:    p.Name,
		Avatar:        p.Avatar,
		OnlinePlayers: rm.OnlinePlayers,
	})
	return nil
}

// enter moves the session into a room, leaving any room it was in first
func (e *Engine) enter(ctx context.Context, sess *Session, rm *model.Room, p *model.Presence) (*model.Room, *model.Presence) {
	if sess.InRoom() {
		previous := sess.RoomID
		if err := e.leaveRoom(ctx, sess); err != nil {
			e.logger.Debug("implicit leave failed",
				slog.String("conn_id", string(sess.Conn)),
				slog.Any("error", err),
			)
		}
		// Leaving the same room can promote the new presence
		if previous == rm.ID {
			if fresh, err := e.registry.GetRoom(ctx, rm.ID); err == nil && fresh.GetPresence(p.ID) != nil {
				rm, p = fresh, fresh.GetPresence(p.ID)
			}
		}
	}
	sess.enter(rm.ID, p.ID)
	e.emitter.Join(sess.Conn, rm.ID)
	return rm, p
}

func (e *Engine) leaveRoom(ctx context.Context, sess *Session) error {
	if !sess.InRoom() {
		return model.ErrNoActiveRoom
	}
	roomID, id := sess.RoomID, sess.ParticipantID
	sess.clear()
	e.emitter.Leave(sess.Conn, roomID)

	dep, err := e.directory.Leave(ctx, roomID, id)
	if err != nil {
		return err
	}
	e.announce(dep, true)
	return nil
}

// announce emits the events for a departure. The new owner, if any, gets a
// direct notice instead of the general broadcast.
func (e *Engine) announce(dep presence.Departure, broadcast bool) {
	if dep.RoomDeleted {
		e.emitter.CloseRoom(dep.RoomID)
		return
	}

	if dep.NewOwner != nil && dep.NewOwnerConn != "" {
		e.emitter.ToConn(dep.NewOwnerConn, model.EventPlayerLeft, model.PlayerLeftPayload{
			OnlinePlayers: dep.Room.OnlinePlayers,
			NewOwner:      true,
		})
	}
	if !broadcast {
		return
	}

	general := model.PlayerLeftPayload{
		PlayerID:      dep.Presence.ID,
		PlayerName:    dep.Presence.Name,
		OnlinePlayers: dep.Room.OnlinePlayers,
	}
	if dep.NewOwnerConn != "" {
		e.emitter.ToRoomExcept(dep.RoomID, dep.NewOwnerConn, model.EventPlayerLeft, general)
		return
	}
	e.emitter.ToRoom(dep.RoomID, model.EventPlayerLeft, general)
}

func (e *Engine) scheduleGrace(roomID model.RoomID, id model.ParticipantID) {
	key := graceKey{room: roomID, participant: id}
	if t, ok := e.timers[key]; ok {
		t.Stop()
	}
	e.timers[key] = e.clock.AfterFunc(e.grace, func() {
		e.scheduler.Submit("purge", func(ctx context.Context) {
			e.purge(ctx, key)
		})
	})
}

func (e *Engine) purge(ctx context.Context, key graceKey) {
	delete(e.timers, key)

	dep, purged, err := e.directory.PurgeIfStillDisconnected(ctx, key.room, key.participant)
	if err != nil {
		e.logger.Error("purge failed",
			slog.String("room_id", string(key.room)),
			slog.String("participant_id", string(key.participant)),
			slog.Any("error", err),
		)
		return
	}
	if !purged {
		return
	}
	e.announce(dep, false)
}

// Ledger

func (e *Engine) addPlayer(ctx context.Context, sess *Session, env model.Envelope) error {
	if !sess.InRoom() {
		return model.ErrNoActiveRoom
	}
	var req model.AddPlayerRequest
	if err := env.Decode(&req); err != nil {
		return err
	}

	rm, _, err := e.ledger.AddEntry(ctx, sess.RoomID, ledger.NewEntry{
		Name:    req.Name,
		Score:   req.Score,
		History: req.History,
		Avatar:  req.Avatar,
	})
	if err != nil {
		return err
	}
	e.emitter.ToRoom(rm.ID, model.EventPlayersUpdate, model.PlayersPayload{Players: rm.Players})
	return nil
}

func (e *Engine) removePlayer(ctx context.Context, sess *Session, env model.Envelope) error {
	if !sess.InRoom() {
		return model.ErrNoActiveRoom
	}
	var req model.RemovePlayerRequest
	if err := env.Decode(&req); err != nil {
		return err
	}

	rm, err := e.ledger.RemoveEntry(ctx, sess.RoomID, sess.ParticipantID, req.PlayerID)
	if err != nil {
		return err
	}
	e.emitter.ToRoom(rm.ID, model.EventPlayersUpdate, model.PlayersPayload{Players: rm.Players})
	return nil
}

func (e *Engine) adjustScore(ctx context.Context, sess *Session, env model.Envelope) error {
	if !sess.InRoom() {
		return model.ErrNoActiveRoom
	}
	var req model.AdjustScoreRequest
	if err := env.Decode(&req); err != nil {
		return err
	}

	rm, entry, err := e.ledger.AdjustScore(ctx, sess.RoomID, req.PlayerID, req.ScoreValue)
	if err != nil {
		return err
	}
	e.emitter.ToRoom(rm.ID, model.EventScoreUpdated, model.ScoreUpdatedPayload{
		PlayerID: entry.ID,
		Player:   entry,
	})
	return nil
}

func (e *Engine) newRound(ctx context.Context, sess *Session) error {
	return e.ownerBroadcast(ctx, sess, e.ledger.NewRound, model.EventNewRound)
}

func (e *Engine) resetGame(ctx context.Context, sess *Session) error {
	return e.ownerBroadcast(ctx, sess, e.ledger.ResetGame, model.EventGameReset)
}

func (e *Engine) endGame(ctx context.Context, sess *Session) error {
	return e.ownerBroadcast(ctx, sess, e.ledger.EndGame, model.EventGameEnded)
}

type ownerOp func(ctx context.Context, roomID model.RoomID, actor model.ParticipantID) (*model.Room, error)

func (e *Engine) ownerBroadcast(ctx context.Context, sess *Session, op ownerOp, event model.EventType) error {
	if !sess.InRoom() {
		return model.ErrNoActiveRoom
	}
	rm, err := op(ctx, sess.RoomID, sess.ParticipantID)
	if err != nil {
		return err
	}
	e.emitter.ToRoom(rm.ID, event, model.PlayersPayload{Players: rm.Players})
	return nil
}

// Transfers

func (e *Engine) requestTransfer(ctx context.Context, sess *Session, env model.Envelope) error {
	req, err := transferRequest(sess, env)
	if err != nil {
		return err
	}
	d, err := e.transfers.Request(ctx, sess.RoomID, req)
	if err != nil {
		return err
	}
	e.emitter.ToConn(d.Conn, model.EventTransferRequest, d.Payload)
	return nil
}

func (e *Engine) acceptTransfer(ctx context.Context, sess *Session, env model.Envelope) error {
	req, err := transferRequest(sess, env)
	if err != nil {
		return err
	}
	payload, err := e.transfers.Accept(ctx, sess.RoomID, req)
	if err != nil {
		return err
	}
	e.emitter.ToRoom(sess.RoomID, model.EventTransferCompleted, payload)
	return nil
}

func (e *Engine) rejectTransfer(ctx context.Context, sess *Session, env model.Envelope) error {
	req, err := transferRequest(sess, env)
	if err != nil {
		return err
	}
	d, err := e.transfers.Reject(ctx, sess.RoomID, req)
	if err != nil {
		return err
	}
	e.emitter.ToConn(d.Conn, model.EventRoomError, d.Payload)
	return nil
}

func transferRequest(sess *Session, env model.Envelope) (model.TransferRequest, error) {
	var req model.TransferRequest
	if !sess.InRoom() {
		return req, model.ErrNoActiveRoom
	}
	err := env.Decode(&req)
	return req, err
}

// fail reports user-facing errors to the acting connection and drops the rest
func (e *Engine) fail(sess *Session, event model.EventType, err error) {
	attrs := []any{
		slog.String("conn_id", string(sess.Conn)),
		slog.String("room_id", string(sess.RoomID)),
		slog.String("event", string(event)),
		slog.Any("error", err),
	}

	switch {
	case errors.Is(err, model.ErrRoomNotFound) && event != model.EventJoinRoom:
		// The session's room vanished underneath it (expired snapshot)
		e.logger.Debug("event ignored, room gone", attrs...)
		if sess.InRoom() {
			e.directory.Forget(sess.ParticipantID)
			e.emitter.Leave(sess.Conn, sess.RoomID)
			sess.clear()
		}
	case model.IsUserFacing(err):
		e.logger.Info("event rejected", attrs...)
		e.emitter.ToConn(sess.Conn, model.EventRoomError, model.RoomErrorPayload{
			Message: model.ErrorMessage(err),
		})
	case isIgnorable(err):
		e.logger.Debug("event ignored", attrs...)
	default:
		e.logger.Error("event failed", attrs...)
	}
}

// isIgnorable reports whether err is an out-of-context or unauthorized
// action, dropped without telling the client
func isIgnorable(err error) bool {
	for _, target := range []error{
		model.ErrNoActiveRoom,
		model.ErrNotOwner,
		model.ErrEntryNotFound,
		model.ErrParticipantNotFound,
		model.ErrUnreachable,
		model.ErrInvalidAmount,
		model.ErrUnknownEvent,
		model.ErrMalformedPayload,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func entered(rm *model.Room, p *model.Presence) model.RoomEnteredPayload {
	return model.RoomEnteredPayload{
		RoomID:        rm.ID,
		PlayerID:      p.ID,
		PlayerName:    p.Name,
		Players:       rm.Players,
		OnlinePlayers: rm.OnlinePlayers,
	}
}
