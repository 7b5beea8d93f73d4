package session

import (
	"context"
	"log/slog"

	"github.com/wjz20050714-stack/JIFEN/internal/model"
)

// Gateway is the thread-safe entry point to the Engine. Every call becomes
// a job on the Loop.
type Gateway struct {
	loop   *Loop
	engine *Engine
	logger *slog.Logger
}

// NewGateway creates a Gateway
func NewGateway(loop *Loop, engine *Engine, logger *slog.Logger) *Gateway {
	return &Gateway{
		loop:   loop,
		engine: engine,
		logger: logger.With(slog.String("component", "session-gateway")),
	}
}

// Connect opens a session for a new connection
func (g *Gateway) Connect(conn model.ConnID) {
	g.submit("connect", func(ctx context.Context) {
		g.engine.Connect(conn)
	})
}

// Receive queues an inbound event
func (g *Gateway) Receive(conn model.ConnID, env model.Envelope) {
	g.submit("event", func(ctx context.Context) {
		g.engine.Handle(ctx, conn, env)
	})
}

// Disconnect closes the session of a connection
func (g *Gateway) Disconnect(conn model.ConnID) {
	g.submit("disconnect", func(ctx context.Context) {
		g.engine.Disconnect(ctx, conn)
	})
}

// Health returns room and presence counts
func (g *Gateway) Health(ctx context.Context) (Health, error) {
	var (
		health Health
		err    error
	)
	if doErr := g.loop.Do(ctx, "health", func(ctx context.Context) {
		health, err = g.engine.Health(ctx)
	}); doErr != nil {
		return Health{}, doErr
	}
	return health, err
}

// Rooms returns a summary of every live room
func (g *Gateway) Rooms(ctx context.Context) ([]model.RoomSummary, error) {
	var (
		rooms []model.RoomSummary
		err   error
	)
	if doErr := g.loop.Do(ctx, "rooms", func(ctx context.Context) {
		rooms, err = g.engine.Rooms(ctx)
	}); doErr != nil {
		return nil, doErr
	}
	return rooms, err
}

// WithRoom runs fn on the loop while the room is known to exist. Rooms are
// only deleted by loop jobs, so fn sees a room that is still live.
func (g *Gateway) WithRoom(ctx context.Context, id model.RoomID, fn func(*model.Room)) error {
	var err error
	if doErr := g.loop.Do(ctx, "with_room", func(ctx context.Context) {
		err = g.engine.WithRoom(ctx, id, fn)
	}); doErr != nil {
		return doErr
	}
	return err
}

// Stop cancels pending grace timers once the loop has exited
func (g *Gateway) Stop() {
	<-g.loop.Done()
	g.engine.Stop()
}

func (g *Gateway) submit(name string, job Job) {
	if !g.loop.Submit(name, job) {
		g.logger.Debug("job dropped after shutdown", slog.String("job", name))
	}
}
