package transfer

import (
	"context"
	"log/slog"

	"github.com/wjz20050714-stack/JIFEN/internal/model"
	"github.com/wjz20050714-stack/JIFEN/internal/services/ledger"
)

// Router resolves a display name to the connection of an online participant
type Router interface {
	Route(roomID model.RoomID, name string) (model.ConnID, bool)
}

// Delivery is a message addressed to a single connection
type Delivery[T any] struct {
	Conn    model.ConnID
	Payload T
}

// Service implements the request / accept / reject handshake. No state is
// kept between phases: every phase resolves both entries afresh.
// FromPlayerID is the entry asking to receive points, ToPlayerID the entry
// asked to pay them.
type Service struct {
	ledger *ledger.Service
	router Router
	logger *slog.Logger
}

// New creates a new transfer Service
func New(ledgerService *ledger.Service, router Router, logger *slog.Logger) *Service {
	return &Service{
		ledger: ledgerService,
		router: router,
		logger: logger.With(slog.String("component", "transfer-service")),
	}
}

// Request addresses a transfer request to the connection controlling the
// paying entry's name. No balance check happens here.
func (s *Service) Request(ctx context.Context, roomID model.RoomID, req model.TransferRequest) (Delivery[model.TransferRequestPayload], error) {
	if req.Amount <= 0 {
		return Delivery[model.TransferRequestPayload]{}, model.ErrInvalidAmount
	}
	_, from, to, err := s.ledger.Pair(ctx, roomID, req.FromPlayerID, req.ToPlayerID)
	if err != nil {
		return Delivery[model.TransferRequestPayload]{}, err
	}

	conn, ok := s.router.Route(roomID, to.Name)
	if !ok {
		s.logger.Debug("transfer request unroutable",
			slog.String("room_id", string(roomID)),
			slog.String("target", to.Name),
		)
		return Delivery[model.TransferRequestPayload]{}, model.ErrUnreachable
	}

	return Delivery[model.TransferRequestPayload]{
		Conn: conn,
		Payload: model.TransferRequestPayload{
			FromPlayerID: from.ID,
			ToPlayerID:   to.ID,
			FromPlayer:   from.Name,
			ToPlayer:     to.Name,
			Amount:       req.Amount,
		},
	}, nil
}

// Accept commits the transfer against current balances
func (s *Service) Accept(ctx context.Context, roomID model.RoomID, req model.TransferRequest) (model.TransferCompletedPayload, error) {
	rm, from, to, err := s.ledger.Transfer(ctx, roomID, req.FromPlayerID, req.ToPlayerID, req.Amount)
	if err != nil {
		return model.TransferCompletedPayload{}, err
	}
	return model.TransferCompletedPayload{
		FromPlayerID: from.ID,
		ToPlayerID:   to.ID,
		FromPlayer:   from.Name,
		ToPlayer:     to.Name,
		Amount:       req.Amount,
		Players:      rm.Players,
	}, nil
}

// Reject tells the requester, found by the requesting entry's name, that
// the request was declined
func (s *Service) Reject(ctx context.Context, roomID model.RoomID, req model.TransferRequest) (Delivery[model.RoomErrorPayload], error) {
	_, from, to, err := s.ledger.Pair(ctx, roomID, req.FromPlayerID, req.ToPlayerID)
	if err != nil {
		return Delivery[model.RoomErrorPayload]{}, err
	}

	conn, ok := s.router.Route(roomID, from.Name)
	if !ok {
		return Delivery[model.RoomErrorPayload]{}, model.ErrUnreachable
	}

	return Delivery[model.RoomErrorPayload]{
		Conn:    conn,
		Payload: model.RoomErrorPayload{Message: model.RejectedMessage(to.Name)},
	}, nil
}
