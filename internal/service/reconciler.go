package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/mmeshcher/reward-admin/internal/apperrors"
	"github.com/mmeshcher/reward-admin/internal/metrics"
	"github.com/mmeshcher/reward-admin/internal/model"
	"github.com/mmeshcher/reward-admin/internal/repository"
)

// Reconciler зачисляет стоимость отклонённой покупки обратно на счёт пользователя.
type Reconciler struct {
	accounts AccountRepository
	logger   *zap.Logger
}

// NewReconciler создаёт сверщик балансов.
func NewReconciler(accounts AccountRepository, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{accounts: accounts, logger: logger}
}

// Refund находит счёт сначала по userId, затем по username, и зачисляет сумму маркера.
// Повторный вызов для уже зачисленного маркера ничего не меняет.
func (r *Reconciler) Refund(ctx context.Context, m model.RefundMarker) error {
	if m.Amount < 0 {
		return apperrors.Validation("refund amount must not be negative")
	}

	acc, err := r.findAccount(ctx, m)
	if err != nil {
		return err
	}

	newAmount, err := r.accounts.ApplyRefund(ctx, acc.ID, m.PurchaseID, m.Amount)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrRefundApplied):
		metrics.Refunds.WithLabelValues(metrics.OutcomeSkipped).Inc()
		r.logger.Info("refund already applied", zap.String("purchase", m.PurchaseID))
		return nil
	case errors.Is(err, repository.ErrNotFound):
		metrics.Refunds.WithLabelValues(metrics.OutcomeFailed).Inc()
		return apperrors.NotFound("cannot process refund: account %s disappeared", acc.ID)
	default:
		metrics.Refunds.WithLabelValues(metrics.OutcomeFailed).Inc()
		return apperrors.Wrap(apperrors.KindTransport, err, "apply refund")
	}

	metrics.Refunds.WithLabelValues(metrics.OutcomeCredited).Inc()
	r.logger.Info("refund credited",
		zap.String("purchase", m.PurchaseID),
		zap.String("account", acc.ID),
		zap.Int64("amount", m.Amount),
		zap.Int64("balance", newAmount),
	)
	return nil
}

// findAccount ищет только точные совпадения; пустой ключ пропускается.
func (r *Reconciler) findAccount(ctx context.Context, m model.RefundMarker) (*model.UserAccount, error) {
	if m.UserID != "" {
		acc, err := r.accounts.FindAccountByUserID(ctx, m.UserID)
		if err == nil {
			return acc, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			metrics.Refunds.WithLabelValues(metrics.OutcomeFailed).Inc()
			return nil, apperrors.Wrap(apperrors.KindTransport, err, "find account by user id")
		}
	}

	if m.Username != "" {
		acc, err := r.accounts.FindAccountByUsername(ctx, m.Username)
		if err == nil {
			return acc, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			metrics.Refunds.WithLabelValues(metrics.OutcomeFailed).Inc()
			return nil, apperrors.Wrap(apperrors.KindTransport, err, "find account by username")
		}
	}

	metrics.Refunds.WithLabelValues(metrics.OutcomeFailed).Inc()
	return nil, apperrors.NotFound("cannot process refund")
}
