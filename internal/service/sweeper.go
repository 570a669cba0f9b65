package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const sweepBatchSize = 100

// StartRefundSweeper запускает фоновое зачисление возвратов, оставшихся после частичных сбоев.
// При interval <= 0 ничего не запускается.
func (s *Service) StartRefundSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweepRefunds(ctx)
			}
		}
	}()
}

// sweepRefunds возвращает число зачисленных или уже снятых маркеров.
func (s *Service) sweepRefunds(ctx context.Context) int {
	markers, err := s.repo.ListRefundMarkers(ctx, sweepBatchSize)
	if err != nil {
		s.logger.Warn("list refund markers", zap.Error(err))
		return 0
	}

	done := 0
	for _, m := range markers {
		if ctx.Err() != nil {
			return done
		}

		unlock, err := s.lockPurchase(ctx, m.PurchaseID)
		if err != nil {
			continue
		}

		err = s.reconciler.Refund(ctx, m)
		unlock()

		if err != nil {
			s.recordRefundFailure(ctx, m.PurchaseID, err)
			s.logger.Warn("refund retry failed",
				zap.String("purchase", m.PurchaseID),
				zap.Int("attempts", m.Attempts+1),
				zap.Error(err),
			)
			continue
		}
		done++
	}

	return done
}
