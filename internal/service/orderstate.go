package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"stockroom/internal/models"
	"stockroom/internal/repository"
)

// OrderStateService owns every mutation of an order's status/step pair and the
// processing-history trail that records each transition.
type OrderStateService struct {
	Repo   repository.Repository
	Logger *zap.Logger
}

// NextStateForAllocation maps an allocation outcome to the queue the order
// belongs in next. Fully satisfiable orders go straight to picking; pure
// purchase and pure transfer outcomes get their dedicated queues; mixed
// outcomes need treatment.
func NextStateForAllocation(status AvailabilityStatus, plan AllocationPlan) (string, string) {
	switch {
	case status == AvailabilityAll:
		return models.OrderStatusToPickPack, models.StepPreparationInProgress
	case len(plan.Transfers) == 0:
		return models.OrderStatusToBuy, models.StepPurchaseInProgress
	case len(plan.Purchases) == 0:
		return models.OrderStatusToTransfer, models.StepTransferInProgress
	default:
		return models.OrderStatusToTreat, models.StepTreatmentInProgress
	}
}

// MapPlatformState maps the commerce platform's order state to the internal
// status/step pair. Unknown states land in the received queue so they are
// picked up by the next allocation batch rather than dropped.
func MapPlatformState(state string) (string, string) {
	switch state {
	case "canceled", "closed":
		return models.OrderStatusCancelled, models.StepClosed
	case "complete":
		return models.OrderStatusComplete, models.StepClosed
	case "holded", "payment_review":
		return models.OrderStatusOnHold, models.StepNew
	default:
		return models.OrderStatusReceived, models.StepNew
	}
}

// AdvanceOnAllocation applies an allocation outcome. Platform terminal states
// win unconditionally: once cancelled or complete, allocation outcomes are
// ignored.
func (s *OrderStateService) AdvanceOnAllocation(ctx context.Context, order *models.Order, status AvailabilityStatus, plan AllocationPlan) error {
	if order == nil || models.TerminalOrderStatus(order.Status) {
		return nil
	}
	nextStatus, nextStep := NextStateForAllocation(status, plan)
	return s.Transition(ctx, order, nextStatus, nextStep)
}

// ApplyPlatformState applies an externally reported order state.
func (s *OrderStateService) ApplyPlatformState(ctx context.Context, order *models.Order, platformState string) error {
	if order == nil {
		return nil
	}
	nextStatus, nextStep := MapPlatformState(platformState)
	if models.TerminalOrderStatus(order.Status) && !models.TerminalOrderStatus(nextStatus) {
		// Never resurrect a terminal order from a stale platform payload.
		return nil
	}
	return s.Transition(ctx, order, nextStatus, nextStep)
}

// Transition records the status/step change: the open processing row (if any)
// is stamped with an end timestamp and a fresh row is opened. A transition to
// the current state is a no-op, which makes re-applied outcomes idempotent.
func (s *OrderStateService) Transition(ctx context.Context, order *models.Order, status, step string) error {
	if order.Status == status && order.Step == step {
		return nil
	}
	now := time.Now().UTC()
	err := s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		open, err := s.Repo.FindOpenProcessingTx(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		if open != nil {
			if err := s.Repo.CloseProcessingTx(ctx, tx, open.ID, now); err != nil {
				return err
			}
		}
		if err := s.Repo.InsertProcessingTx(ctx, tx, &models.OrderProcessing{
			OrderID:   order.ID,
			Status:    status,
			Step:      step,
			StartedAt: now,
		}); err != nil {
			return err
		}
		return s.Repo.UpdateOrderStateTx(ctx, tx, order.ID, status, step)
	})
	if err != nil {
		return err
	}
	if s.Logger != nil {
		s.Logger.Info("order transition",
			zap.Uint64("order_id", order.ID),
			zap.String("from", order.Status),
			zap.String("to", status),
			zap.String("step", step))
	}
	order.Status = status
	order.Step = step
	return nil
}
