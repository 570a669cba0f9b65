package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/mmeshcher/reward-admin/internal/apperrors"
	"github.com/mmeshcher/reward-admin/internal/metrics"
	"github.com/mmeshcher/reward-admin/internal/model"
	"github.com/mmeshcher/reward-admin/internal/repository"
	"github.com/mmeshcher/reward-admin/internal/storage"
	"github.com/mmeshcher/reward-admin/internal/validation"
)

// CategoryInput содержит поля категории, задаваемые администратором.
type CategoryInput struct {
	Name string `json:"name" validate:"notblank"`
}

// ProductInput содержит поля награды. Image хранит сырое содержимое файла и может быть пустым.
type ProductInput struct {
	Name       string `json:"name" validate:"notblank"`
	CategoryID string `json:"category_id" validate:"required"`
	Price      int64  `json:"price" validate:"min=0"`
	Image      []byte `json:"-"`
}

// CreateCategory создаёт категорию наград.
func (s *Service) CreateCategory(ctx context.Context, name string) (*model.Category, error) {
	if err := validation.Struct(CategoryInput{Name: name}); err != nil {
		return nil, err
	}

	c, err := s.repo.CreateCategory(ctx, strings.TrimSpace(name))
	if err != nil {
		return nil, storeErr(err, "create category")
	}

	metrics.CatalogMutations.WithLabelValues("create_category").Inc()
	return c, nil
}

// ListCategories возвращает все категории.
func (s *Service) ListCategories(ctx context.Context) ([]model.Category, error) {
	res, err := s.repo.ListCategories(ctx)
	return res, storeErr(err, "list categories")
}

// RenameCategory меняет имя категории. Имена, скопированные в награды, не меняются,
// если не передан cascade.
func (s *Service) RenameCategory(ctx context.Context, id, name string, cascade bool) (*model.Category, error) {
	if err := validation.Struct(CategoryInput{Name: name}); err != nil {
		return nil, err
	}

	c, err := s.repo.RenameCategory(ctx, id, strings.TrimSpace(name), cascade)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("category %s not found", id)
		}
		return nil, storeErr(err, "rename category")
	}

	metrics.CatalogMutations.WithLabelValues("rename_category").Inc()
	return c, nil
}

// DeleteCategory удаляет категорию, если ни одна награда не ссылается на её имя.
func (s *Service) DeleteCategory(ctx context.Context, id string) error {
	err := s.repo.DeleteCategory(ctx, id)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NotFound("category %s not found", id)
	case errors.Is(err, repository.ErrCategoryInUse):
		return apperrors.Wrap(apperrors.KindConflict, err, "category in use")
	default:
		return storeErr(err, "delete category")
	}

	metrics.CatalogMutations.WithLabelValues("delete_category").Inc()
	return nil
}

// ListProducts возвращает все награды.
func (s *Service) ListProducts(ctx context.Context) ([]model.Product, error) {
	res, err := s.repo.ListProducts(ctx)
	return res, storeErr(err, "list products")
}

// CreateProduct создаёт награду. Изображение загружается до создания записи;
// если запись создать не удалось, загруженный объект удаляется.
func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (*model.Product, error) {
	contentType, err := validateProduct(in)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.GetCategory(ctx, in.CategoryID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.Validation("category %s does not exist", in.CategoryID)
		}
		return nil, storeErr(err, "resolve category")
	}

	var imageID string
	if len(in.Image) > 0 {
		imageID, err = s.images.Upload(ctx, in.Image, contentType)
		if err != nil {
			return nil, storeErr(err, "upload image")
		}
	}

	p, err := s.repo.CreateProduct(ctx, repository.ProductWrite{
		Name:       strings.TrimSpace(in.Name),
		CategoryID: in.CategoryID,
		Price:      in.Price,
		Image:      imageID,
	})
	if err != nil {
		s.discardImage(ctx, imageID)
		if errors.Is(err, repository.ErrCategoryNotFound) {
			return nil, apperrors.Validation("category %s does not exist", in.CategoryID)
		}
		return nil, storeErr(err, "create product")
	}

	metrics.CatalogMutations.WithLabelValues("create_product").Inc()
	return p, nil
}

// UpdateProduct редактирует награду. Новое изображение заменяет старое:
// старый объект удаляется до загрузки нового, так что у награды не бывает двух изображений.
func (s *Service) UpdateProduct(ctx context.Context, id string, in ProductInput) (*model.Product, error) {
	contentType, err := validateProduct(in)
	if err != nil {
		return nil, err
	}

	current, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("product %s not found", id)
		}
		return nil, storeErr(err, "get product")
	}

	if _, err := s.repo.GetCategory(ctx, in.CategoryID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("category %s not found", in.CategoryID)
		}
		return nil, storeErr(err, "resolve category")
	}

	imageID := current.Image
	var uploaded string
	if len(in.Image) > 0 {
		if current.Image != "" {
			if err := s.images.Delete(ctx, current.Image); err != nil {
				return nil, storeErr(err, "delete previous image")
			}
		}

		uploaded, err = s.images.Upload(ctx, in.Image, contentType)
		if err != nil {
			s.logger.Warn("product left without image after failed upload",
				zap.String("product", id), zap.String("previousImage", current.Image), zap.Error(err))
			return nil, storeErr(err, "upload image")
		}
		imageID = uploaded
	}

	p, err := s.repo.UpdateProduct(ctx, id, repository.ProductWrite{
		Name:       strings.TrimSpace(in.Name),
		CategoryID: in.CategoryID,
		Price:      in.Price,
		Image:      imageID,
	})
	if err != nil {
		s.discardImage(ctx, uploaded)
		switch {
		case errors.Is(err, repository.ErrCategoryNotFound):
			return nil, apperrors.NotFound("category %s not found", in.CategoryID)
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperrors.NotFound("product %s not found", id)
		}
		return nil, storeErr(err, "update product")
	}

	metrics.CatalogMutations.WithLabelValues("update_product").Inc()
	return p, nil
}

// DeleteProduct удаляет изображение награды, затем саму запись.
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound("product %s not found", id)
		}
		return storeErr(err, "get product")
	}

	if err := s.images.Delete(ctx, p.Image); err != nil {
		return storeErr(err, "delete image")
	}

	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound("product %s not found", id)
		}
		return storeErr(err, "delete product")
	}

	metrics.CatalogMutations.WithLabelValues("delete_product").Inc()
	return nil
}

// OpenImage возвращает изображение награды для предпросмотра.
func (s *Service) OpenImage(ctx context.Context, id string) (*storage.Object, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperrors.Validation("image id is required")
	}

	obj, err := s.images.Open(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, apperrors.NotFound("image %s not found", id)
		}
		return nil, storeErr(err, "open image")
	}
	return obj, nil
}

// Stats возвращает сводку для панели администратора.
func (s *Service) Stats(ctx context.Context) (*model.Stats, error) {
	st, err := s.repo.Stats(ctx)
	return st, storeErr(err, "stats")
}

func validateProduct(in ProductInput) (string, error) {
	if err := validation.Struct(in); err != nil {
		return "", err
	}
	if len(in.Image) == 0 {
		return "", nil
	}
	return validation.DetectImage(in.Image)
}

// discardImage удаляет загруженный объект, на который не сослалась ни одна запись.
func (s *Service) discardImage(ctx context.Context, id string) {
	if id == "" {
		return
	}
	if err := s.images.Delete(context.WithoutCancel(ctx), id); err != nil {
		metrics.OrphanedImages.Inc()
		s.logger.Error("failed to discard uploaded image", zap.String("image", id), zap.Error(err))
	}
}
