package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wjz20050714-stack/JIFEN/internal/dependencies/clock"
	"github.com/wjz20050714-stack/JIFEN/internal/model"
	"github.com/wjz20050714-stack/JIFEN/internal/services/ids"
	"github.com/wjz20050714-stack/JIFEN/internal/services/room"
)

// NewEntry describes a ledger entry to append
type NewEntry struct {
	Name    string
	Score   *int // Starting score when nil
	History []model.HistoryItem
	Avatar  string
}

// Service manages the score ledger of each room
type Service struct {
	registry      *room.Registry
	allocator     *ids.Allocator
	clock         clock.Clock
	startingScore int
	logger        *slog.Logger
}

// New creates a new ledger Service. A non-positive startingScore selects model.DefaultScore.
func New(
	registry *room.Registry,
	allocator *ids.Allocator,
	clk clock.Clock,
	startingScore int,
	logger *slog.Logger,
) *Service {
	if startingScore <= 0 {
		startingScore = model.DefaultScore
	}
	return &Service{
		registry:      registry,
		allocator:     allocator,
		clock:         clk,
		startingScore: startingScore,
		logger:        logger.With(slog.String("component", "ledger-service")),
	}
}

// StartingScore returns the balance new entries and new rounds start from
func (s *Service) StartingScore() int {
	return s.startingScore
}

// AddEntry appends an entry to the room's ledger
func (s *Service) AddEntry(ctx context.Context, roomID model.RoomID, in NewEntry) (*model.Room, *model.LedgerEntry, error) {
	rm, err := s.registry.GetRoom(ctx, roomID)
	if err != nil {
		return nil, nil, err
	}

	entry := &model.LedgerEntry{
		ID:      s.allocator.EntryID(),
		Name:    in.Name,
		Score:   s.startingScore,
		History: in.History,
		Avatar:  in.Avatar,
	}
	if in.Score != nil {
		entry.Score = *in.Score
	}
	if entry.History == nil {
		entry.History = []model.HistoryItem{}
	}
	if entry.Avatar == "" {
		entry.Avatar = s.allocator.Avatar()
	}

	rm.Players = append(rm.Players, entry)
	if err := s.save(ctx, rm); err != nil {
		return nil, nil, err
	}

	s.logger.Debug("ledger entry added",
		slog.String("room_id", string(roomID)),
		slog.String("entry_id", string(entry.ID)),
		slog.Int("score", entry.Score),
	)
	return rm, entry, nil
}

// RemoveEntry deletes an entry. Only the room owner may do this.
func (s *Service) RemoveEntry(ctx context.Context, roomID model.RoomID, actor model.ParticipantID, entryID model.EntryID) (*model.Room, error) {
	rm, err := s.ownedRoom(ctx, roomID, actor)
	if err != nil {
		return nil, err
	}

	kept := rm.Players[:0]
	found := false
	for _, e := range rm.Players {
		if e.ID == entryID {
			found = true
			continue
		}
		kept = append(kept, e)
	}
	if !found {
		return nil, model.ErrEntryNotFound
	}
	rm.Players = kept

	if err := s.save(ctx, rm); err != nil {
		return nil, err
	}
	return rm, nil
}

// AdjustScore applies a signed delta to one entry. Scores may go negative.
func (s *Service) AdjustScore(ctx context.Context, roomID model.RoomID, entryID model.EntryID, delta int) (*model.Room, *model.LedgerEntry, error) {
	rm, err := s.registry.GetRoom(ctx, roomID)
	if err != nil {
		return nil, nil, err
	}
	entry := rm.GetEntry(entryID)
	if entry == nil {
		return nil, nil, model.ErrEntryNotFound
	}

	entry.Adjust(delta, s.clock.Now())

	if err := s.save(ctx, rm); err != nil {
		return nil, nil, err
	}
	return rm, entry, nil
}

// NewRound resets every balance to the starting score, keeping history
func (s *Service) NewRound(ctx context.Context, roomID model.RoomID, actor model.ParticipantID) (*model.Room, error) {
	rm, err := s.ownedRoom(ctx, roomID, actor)
	if err != nil {
		return nil, err
	}

	for _, e := range rm.Players {
		e.Score = s.startingScore
	}

	if err := s.save(ctx, rm); err != nil {
		return nil, err
	}
	s.logger.Info("new round", slog.String("room_id", string(roomID)))
	return rm, nil
}

// ResetGame empties the ledger. Presences are untouched.
func (s *Service) ResetGame(ctx context.Context, roomID model.RoomID, actor model.ParticipantID) (*model.Room, error) {
	rm, err := s.ownedRoom(ctx, roomID, actor)
	if err != nil {
		return nil, err
	}

	rm.Players = []*model.LedgerEntry{}

	if err := s.save(ctx, rm); err != nil {
		return nil, err
	}
	s.logger.Info("game reset", slog.String("room_id", string(roomID)))
	return rm, nil
}

// EndGame checks ownership and returns the room unchanged
func (s *Service) EndGame(ctx context.Context, roomID model.RoomID, actor model.ParticipantID) (*model.Room, error) {
	rm, err := s.ownedRoom(ctx, roomID, actor)
	if err != nil {
		return nil, err
	}
	s.logger.Info("game ended",
		slog.String("room_id", string(roomID)),
		slog.Int("entries", len(rm.Players)),
	)
	return rm, nil
}

// Transfer moves amount from one entry to another in a single step. The
// receiving entry records transfer_in, the paying entry transfer_out, both
// with the same timestamp.
func (s *Service) Transfer(ctx context.Context, roomID model.RoomID, receiverID, payerID model.EntryID, amount int) (*model.Room, *model.LedgerEntry, *model.LedgerEntry, error) {
	if amount <= 0 {
		return nil, nil, nil, model.ErrInvalidAmount
	}
	rm, receiver, payer, err := s.Pair(ctx, roomID, receiverID, payerID)
	if err != nil {
		return nil, nil, nil, err
	}
	if payer.Score < amount {
		return nil, nil, nil, model.ErrInsufficientScore
	}

	now := s.clock.Now()
	payer.Score -= amount
	receiver.Score += amount
	receiver.Record(model.HistoryItem{
		Kind:        model.HistoryTransferIn,
		Delta:       amount,
		Counterpart: payer.Name,
		Total:       receiver.Score,
		Timestamp:   now,
	})
	payer.Record(model.HistoryItem{
		Kind:        model.HistoryTransferOut,
		Delta:       -amount,
		Counterpart: receiver.Name,
		Total:       payer.Score,
		Timestamp:   now,
	})

	if err := s.save(ctx, rm); err != nil {
		return nil, nil, nil, err
	}

	s.logger.Info("transfer committed",
		slog.String("room_id", string(roomID)),
		slog.String("from_entry", string(receiverID)),
		slog.String("to_entry", string(payerID)),
		slog.Int("amount", amount),
	)
	return rm, receiver, payer, nil
}

// Pair resolves two entries of the same room
func (s *Service) Pair(ctx context.Context, roomID model.RoomID, a, b model.EntryID) (*model.Room, *model.LedgerEntry, *model.LedgerEntry, error) {
	rm, err := s.registry.GetRoom(ctx, roomID)
	if err != nil {
		return nil, nil, nil, err
	}
	first, second := rm.GetEntry(a), rm.GetEntry(b)
	if first == nil || second == nil {
		return nil, nil, nil, model.ErrEntryNotFound
	}
	return rm, first, second, nil
}

func (s *Service) ownedRoom(ctx context.Context, roomID model.RoomID, actor model.ParticipantID) (*model.Room, error) {
	rm, err := s.registry.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !rm.IsOwner(actor) {
		return nil, model.ErrNotOwner
	}
	return rm, nil
}

func (s *Service) save(ctx context.Context, rm *model.Room) error {
	if err := s.registry.SaveRoom(ctx, rm); err != nil {
		return fmt.Errorf("save room %s: %w", rm.ID, err)
	}
	return nil
}
