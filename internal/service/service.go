// Package service реализует бизнес-логику каталога наград и журнала покупок.
package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/mmeshcher/reward-admin/internal/apperrors"
	"github.com/mmeshcher/reward-admin/internal/locker"
	"github.com/mmeshcher/reward-admin/internal/model"
	"github.com/mmeshcher/reward-admin/internal/repository"
	"github.com/mmeshcher/reward-admin/internal/storage"
)

// CatalogRepository описывает доступ к категориям и наградам.
type CatalogRepository interface {
	CreateCategory(ctx context.Context, name string) (*model.Category, error)
	ListCategories(ctx context.Context) ([]model.Category, error)
	GetCategory(ctx context.Context, id string) (*model.Category, error)
	RenameCategory(ctx context.Context, id, name string, cascade bool) (*model.Category, error)
	DeleteCategory(ctx context.Context, id string) error
	CreateProduct(ctx context.Context, w repository.ProductWrite) (*model.Product, error)
	GetProduct(ctx context.Context, id string) (*model.Product, error)
	ListProducts(ctx context.Context) ([]model.Product, error)
	UpdateProduct(ctx context.Context, id string, w repository.ProductWrite) (*model.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	Stats(ctx context.Context) (*model.Stats, error)
}

// PurchaseRepository описывает доступ к покупкам.
type PurchaseRepository interface {
	ListPurchases(ctx context.Context) ([]model.Purchase, error)
	ApprovePurchase(ctx context.Context, id string) (*model.Purchase, error)
	RejectPurchase(ctx context.Context, id string) (*model.Purchase, error)
}

// AccountRepository описывает доступ к счетам пользователей и маркерам возвратов.
type AccountRepository interface {
	FindAccountByUserID(ctx context.Context, userID string) (*model.UserAccount, error)
	FindAccountByUsername(ctx context.Context, username string) (*model.UserAccount, error)
	ApplyRefund(ctx context.Context, accountID, purchaseID string, amount int64) (int64, error)
	ListRefundMarkers(ctx context.Context, limit int) ([]model.RefundMarker, error)
	RecordRefundFailure(ctx context.Context, purchaseID, reason string) error
}

// Repository описывает контракт хранилища документов, используемый сервисом.
type Repository interface {
	CatalogRepository
	PurchaseRepository
	AccountRepository
	Close() error
}

// ImageStore описывает хранилище изображений наград.
type ImageStore interface {
	Upload(ctx context.Context, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, id string) error
	Open(ctx context.Context, id string) (*storage.Object, error)
}

// Service содержит бизнес-логику каталога, журнала покупок и возвратов.
type Service struct {
	repo       Repository
	images     ImageStore
	locks      locker.Locker
	reconciler *Reconciler
	logger     *zap.Logger
}

// NewService создаёт сервис. Если locks не передан, используется блокировка в памяти процесса.
func NewService(repo Repository, images ImageStore, locks locker.Locker, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if locks == nil {
		locks = locker.NewLocalLocker()
	}
	return &Service{
		repo:       repo,
		images:     images,
		locks:      locks,
		reconciler: NewReconciler(repo, logger),
		logger:     logger,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// storeErr помечает нетипизированные ошибки хранилища как TransportError.
func storeErr(err error, op string) error {
	if err == nil {
		return nil
	}
	if apperrors.KindOf(err) != "" {
		return err
	}
	return apperrors.Wrap(apperrors.KindTransport, err, op)
}

// lockPurchase берёт блокировку покупки на время перехода статуса или возврата.
func (s *Service) lockPurchase(ctx context.Context, id string) (func(), error) {
	unlock, err := s.locks.Lock(ctx, "purchase:"+id)
	if err != nil {
		if errors.Is(err, locker.ErrLockTimeout) {
			return nil, apperrors.Conflict("purchase %s is being processed", id)
		}
		return nil, apperrors.Wrap(apperrors.KindTransport, err, "lock purchase")
	}
	return unlock, nil
}
