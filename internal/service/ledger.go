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

// ListPurchases возвращает все покупки, новые первыми.
func (s *Service) ListPurchases(ctx context.Context) ([]model.Purchase, error) {
	res, err := s.repo.ListPurchases(ctx)
	return res, storeErr(err, "list purchases")
}

// Approve переводит покупку в approved. Счета пользователей не затрагиваются.
func (s *Service) Approve(ctx context.Context, id string) (*model.Purchase, error) {
	unlock, err := s.lockPurchase(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	p, err := s.repo.ApprovePurchase(ctx, id)
	if err != nil {
		return nil, s.transitionErr(err, id, model.PurchaseStatusApproved)
	}

	metrics.PurchaseTransitions.WithLabelValues(string(model.PurchaseStatusApproved), metrics.OutcomeOK).Inc()
	s.logger.Info("purchase approved", zap.String("purchase", id))
	return p, nil
}

// Reject переводит покупку в rejected и возвращает её стоимость на счёт пользователя.
// Если статус записан, а возврат не удался, возвращается PartialFailureError:
// статус не откатывается, маркер возврата остаётся для повторной попытки.
func (s *Service) Reject(ctx context.Context, id string) (*model.Purchase, error) {
	unlock, err := s.lockPurchase(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	p, err := s.repo.RejectPurchase(ctx, id)
	if err != nil {
		return nil, s.transitionErr(err, id, model.PurchaseStatusRejected)
	}

	metrics.PurchaseTransitions.WithLabelValues(string(model.PurchaseStatusRejected), metrics.OutcomeOK).Inc()

	marker := model.RefundMarker{
		PurchaseID: p.ID,
		UserID:     p.UserID,
		Username:   p.Username,
		Amount:     p.Price,
	}
	if err := s.reconciler.Refund(ctx, marker); err != nil {
		s.recordRefundFailure(ctx, p.ID, err)
		s.logger.Warn("purchase rejected but refund failed",
			zap.String("purchase", p.ID),
			zap.String("userId", p.UserID),
			zap.String("username", p.Username),
			zap.Int64("amount", p.Price),
			zap.Error(err),
		)
		return p, &apperrors.PartialFailureError{
			PurchaseID: p.ID,
			Applied:    string(model.PurchaseStatusRejected),
			Cause:      err,
		}
	}

	s.logger.Info("purchase rejected", zap.String("purchase", id))
	return p, nil
}

// SetPurchaseStatus выполняет переход и возвращает свежий список покупок.
// При частичном сбое список тоже возвращается вместе с ошибкой.
func (s *Service) SetPurchaseStatus(ctx context.Context, id string, status model.PurchaseStatus) ([]model.Purchase, error) {
	if !status.Valid() || !status.Terminal() {
		return nil, apperrors.Validation("status must be %q or %q", model.PurchaseStatusApproved, model.PurchaseStatusRejected)
	}

	var err error
	if status == model.PurchaseStatusApproved {
		_, err = s.Approve(ctx, id)
	} else {
		_, err = s.Reject(ctx, id)
	}

	if err != nil && !errors.Is(err, apperrors.ErrPartialFailure) {
		return nil, err
	}

	list, listErr := s.ListPurchases(ctx)
	if listErr != nil {
		if err != nil {
			return nil, err
		}
		return nil, listErr
	}

	return list, err
}

func (s *Service) transitionErr(err error, id string, to model.PurchaseStatus) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NotFound("purchase %s not found", id)
	case errors.Is(err, repository.ErrNotPending):
		metrics.PurchaseTransitions.WithLabelValues(string(to), metrics.OutcomeConflict).Inc()
		return apperrors.Wrap(apperrors.KindConflict, err, "purchase is no longer pending")
	}
	metrics.PurchaseTransitions.WithLabelValues(string(to), metrics.OutcomeFailed).Inc()
	return storeErr(err, "update purchase status")
}

func (s *Service) recordRefundFailure(ctx context.Context, purchaseID string, cause error) {
	if err := s.repo.RecordRefundFailure(context.WithoutCancel(ctx), purchaseID, cause.Error()); err != nil {
		s.logger.Error("failed to record refund failure", zap.String("purchase", purchaseID), zap.Error(err))
	}
}
