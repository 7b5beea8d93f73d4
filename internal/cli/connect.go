package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/wjz20050714-stack/JIFEN/internal/model"
)

type connectOptions struct {
	create string
	join   string
	name   string
	wait   time.Duration
}

func newConnectCmd() *cobra.Command {
	opts := &connectOptions{}

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Join a room over the websocket protocol",
		Long: `Open a websocket connection, create or join a room, and print every frame
the server sends.

Lines typed on stdin are sent as events. Each line is an event type
optionally followed by a JSON payload:

  add_player {"name":"Ann","avatar":"cat"}
  adjust_score {"playerId":"1","scoreValue":-5}
  new_round
  leave_room`,
		Example: `  jifen connect --create Alice
  jifen connect --join 123456 --name Bob
  jifen connect --join 123456 --name Bob --wait 5s -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			first, err := opts.firstFrame()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if opts.wait > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, opts.wait)
				defer cancel()
			}

			return runSession(ctx, first, cmd.InOrStdin(), NewOutput(cfg.Output, cmd.OutOrStdout()))
		},
	}

	cmd.Flags().StringVar(&opts.create, "create", "", "Create a room as this player")
	cmd.Flags().StringVar(&opts.join, "join", "", "Room code to join")
	cmd.Flags().StringVar(&opts.name, "name", "", "Player name used with --join")
	cmd.Flags().DurationVar(&opts.wait, "wait", 0, "Disconnect after this long (0 waits until interrupted)")
	cmd.MarkFlagsMutuallyExclusive("create", "join")
	cmd.MarkFlagsRequiredTogether("join", "name")

	return cmd
}

func (o *connectOptions) firstFrame() (model.Envelope, error) {
	switch {
	case o.create != "":
		return model.NewEnvelope(model.EventCreateRoom, model.CreateRoomRequest{PlayerName: o.create})
	case o.join != "":
		return model.NewEnvelope(model.EventJoinRoom, model.JoinRoomRequest{
			RoomID:     model.RoomID(o.join),
			PlayerName: o.name,
		})
	default:
		return model.Envelope{}, errors.New("one of --create or --join is required")
	}
}

// wsConn serializes writes; gorilla connections allow one concurrent writer
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) send(env model.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(env)
}

func (c *wsConn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	_ = c.conn.Close()
}

func runSession(ctx context.Context, first model.Envelope, in io.Reader, out *Output) error {
	url, err := cfg.WebSocketURL()
	if err != nil {
		return err
	}

	raw, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	conn := &wsConn{conn: raw}

	if err := conn.send(first); err != nil {
		_ = raw.Close()
		return fmt.Errorf("send %s: %w", first.Type, err)
	}

	frames := make(chan model.Envelope)
	readErr := make(chan error, 1)
	go func() {
		for {
			var env model.Envelope
			if err := raw.ReadJSON(&env); err != nil {
				readErr <- err
				return
			}
			select {
			case frames <- env:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			env, ok, err := parseCommand(scanner.Text())
			if err != nil {
				out.PrintMessage(err.Error())
				continue
			}
			if !ok {
				continue
			}
			if err := conn.send(env); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case env := <-frames:
			out.PrintEvent(time.Now(), string(env.Type), string(env.Payload))
		case err := <-readErr:
			_ = raw.Close()
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				out.PrintMessage("Disconnected")
				return nil
			}
			return fmt.Errorf("connection lost: %w", err)
		case <-ctx.Done():
			conn.close()
			out.PrintMessage("Disconnected")
			return nil
		}
	}
}

// parseCommand turns an input line into an envelope. Blank lines and lines
// starting with # report ok=false.
func parseCommand(line string) (env model.Envelope, ok bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return model.Envelope{}, false, nil
	}

	eventType, payload, _ := strings.Cut(line, " ")
	env.Type = model.EventType(eventType)

	payload = strings.TrimSpace(payload)
	if payload != "" {
		if !json.Valid([]byte(payload)) {
			return model.Envelope{}, false, fmt.Errorf("invalid JSON payload for %s", eventType)
		}
		env.Payload = json.RawMessage(payload)
	}
	return env, true, nil
}
