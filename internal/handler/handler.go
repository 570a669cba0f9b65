// Package handler содержит HTTP-обработчики административного API наград.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/reward-admin/internal/apperrors"
	"github.com/mmeshcher/reward-admin/internal/middleware"
	"github.com/mmeshcher/reward-admin/internal/model"
	"github.com/mmeshcher/reward-admin/internal/service"
	"github.com/mmeshcher/reward-admin/internal/storage"
)

const maxUploadSize = 10 << 20

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	CreateCategory(ctx context.Context, name string) (*model.Category, error)
	ListCategories(ctx context.Context) ([]model.Category, error)
	RenameCategory(ctx context.Context, id, name string, cascade bool) (*model.Category, error)
	DeleteCategory(ctx context.Context, id string) error

	CreateProduct(ctx context.Context, in service.ProductInput) (*model.Product, error)
	ListProducts(ctx context.Context) ([]model.Product, error)
	UpdateProduct(ctx context.Context, id string, in service.ProductInput) (*model.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	OpenImage(ctx context.Context, id string) (*storage.Object, error)

	ListPurchases(ctx context.Context) ([]model.Purchase, error)
	SetPurchaseStatus(ctx context.Context, id string, status model.PurchaseStatus) ([]model.Purchase, error)

	Stats(ctx context.Context) (*model.Stats, error)
}

// Handler реализует HTTP-обработчики административного API.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

type errorResponse struct {
	Code      string           `json:"code"`
	Message   string           `json:"message"`
	Purchases []model.Purchase `json:"purchases,omitempty"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response", zap.Error(err))
	}
}

// writeError отдаёт типизированную ошибку сервиса в виде {"code","message"}.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperrors.KindOf(err)
	status := apperrors.HTTPStatus(kind)

	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}

	code := string(kind)
	if code == "" {
		code = "INTERNAL_ERROR"
	}

	h.writeJSON(w, status, errorResponse{Code: code, Message: apperrors.Message(err)})
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperrors.Validation("invalid JSON body")
	}
	return nil
}

type categoryRequest struct {
	Name    string `json:"name"`
	Cascade bool   `json:"cascade"`
}

// ListCategories возвращает все категории.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if categories == nil {
		categories = []model.Category{}
	}

	h.writeJSON(w, http.StatusOK, categories)
}

// CreateCategory создаёт категорию.
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	c, err := h.service.CreateCategory(r.Context(), req.Name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, c)
}

// RenameCategory переименовывает категорию.
func (h *Handler) RenameCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	c, err := h.service.RenameCategory(r.Context(), chi.URLParam(r, "id"), req.Name, req.Cascade)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, c)
}

// DeleteCategory удаляет категорию.
func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteCategory(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListProducts возвращает все награды.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListProducts(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if products == nil {
		products = []model.Product{}
	}

	h.writeJSON(w, http.StatusOK, products)
}

// CreateProduct создаёт награду из multipart-формы.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	in, err := parseProductForm(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	p, err := h.service.CreateProduct(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, p)
}

// UpdateProduct редактирует награду из multipart-формы.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	in, err := parseProductForm(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	p, err := h.service.UpdateProduct(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, p)
}

// DeleteProduct удаляет награду вместе с изображением.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteProduct(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetImage отдаёт изображение награды.
func (h *Handler) GetImage(w http.ResponseWriter, r *http.Request) {
	obj, err := h.service.OpenImage(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer obj.Body.Close()

	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, obj.Body); err != nil {
		h.logger.Warn("stream image", zap.String("image", chi.URLParam(r, "id")), zap.Error(err))
	}
}

// ListPurchases возвращает журнал покупок, новые первыми.
func (h *Handler) ListPurchases(w http.ResponseWriter, r *http.Request) {
	purchases, err := h.service.ListPurchases(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if purchases == nil {
		purchases = []model.Purchase{}
	}

	h.writeJSON(w, http.StatusOK, purchases)
}

type statusRequest struct {
	Status model.PurchaseStatus `json:"status"`
}

// SetPurchaseStatus одобряет или отклоняет покупку и возвращает обновлённый журнал.
// При частичном сбое ответ 500 с кодом PARTIAL_FAILURE тоже содержит журнал.
func (h *Handler) SetPurchaseStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	id := chi.URLParam(r, "id")
	purchases, err := h.service.SetPurchaseStatus(r.Context(), id, req.Status)
	if purchases == nil {
		purchases = []model.Purchase{}
	}

	if err != nil {
		if errors.Is(err, apperrors.ErrPartialFailure) {
			h.logger.Warn("purchase status changed with failed refund",
				zap.String("purchase", id),
				zap.Error(err),
			)
			h.writeJSON(w, http.StatusInternalServerError, errorResponse{
				Code:      string(apperrors.KindPartialFailure),
				Message:   apperrors.Message(err),
				Purchases: purchases,
			})
			return
		}
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, purchases)
}

// GetStats возвращает сводку для панели администратора.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.Stats(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, st)
}

// parseProductForm читает поля name, category_id, price и необязательный файл image.
func parseProductForm(w http.ResponseWriter, r *http.Request) (service.ProductInput, error) {
	var in service.ProductInput

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		return in, apperrors.Validation("invalid multipart form")
	}

	in.Name = r.FormValue("name")
	in.CategoryID = strings.TrimSpace(r.FormValue("category_id"))

	price := strings.TrimSpace(r.FormValue("price"))
	if price == "" {
		return in, apperrors.Validation("price is required")
	}
	p, err := strconv.ParseInt(price, 10, 64)
	if err != nil {
		return in, apperrors.Validation("price must be an integer")
	}
	in.Price = p

	file, _, err := r.FormFile("image")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return in, nil
	case err != nil:
		return in, apperrors.Validation("invalid image upload")
	}
	defer file.Close()

	in.Image, err = io.ReadAll(file)
	if err != nil {
		return in, apperrors.Validation("invalid image upload")
	}

	return in, nil
}
