package payment

import (
	"context"

	"paysession-be/internal/logger"

	"go.uber.org/zap"
)

type Service interface {
	GetSession(ctx context.Context, orderID string) (*Session, error)
	// Cancel moves a REQUESTED session to CANCELED. It is the only write the
	// service performs on the status store.
	Cancel(ctx context.Context, orderID string) (*Session, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) GetSession(ctx context.Context, orderID string) (*Session, error) {
	if orderID == "" {
		return nil, ErrInvalidOrderID
	}
	return s.repo.GetByOrderID(ctx, orderID)
}

func (s *service) Cancel(ctx context.Context, orderID string) (*Session, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "Cancel"),
		zap.String("order_id", orderID),
	)

	if orderID == "" {
		return nil, ErrInvalidOrderID
	}

	// 1. Load current state
	session, err := s.repo.GetByOrderID(ctx, orderID)
	if err != nil {
		log.Warn("failed to load payment session", zap.Error(err))
		return nil, err
	}

	if session.State == StateCanceled {
		log.Info("payment session already canceled")
		return session, nil
	}

	// 2. Validate transition
	if !CanTransition(session.State, StateCanceled) {
		log.Warn("cancel rejected", zap.Stringer("state", session.State))
		return nil, ErrInvalidTransition
	}

	// 3. Conditional update, loses cleanly to a concurrent confirmation
	ok, err := s.repo.TransitionState(ctx, orderID, StateRequested, StateCanceled)
	if err != nil {
		log.Error("failed to cancel payment session", zap.Error(err))
		return nil, err
	}
	if !ok {
		log.Warn("payment session changed before cancel was applied")
		return nil, ErrInvalidTransition
	}

	session.State = StateCanceled
	log.Info("payment session canceled")
	return session, nil
}
