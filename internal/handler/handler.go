// Package handler содержит HTTP-обработчики веб-приложения чайханы.
package handler

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/choyxona-bot/internal/menu"
	"github.com/mmeshcher/choyxona-bot/internal/middleware"
	"github.com/mmeshcher/choyxona-bot/internal/model"
	"github.com/mmeshcher/choyxona-bot/internal/receipt"
	"github.com/mmeshcher/choyxona-bot/internal/repository"
	"github.com/mmeshcher/choyxona-bot/internal/service"
	"github.com/mmeshcher/choyxona-bot/internal/validation"
)

//go:embed web/index.html
var webFS embed.FS

var indexTemplate = template.Must(template.ParseFS(webFS, "web/index.html"))

const (
	pageTitle = "Choyxona buyurtma"
	dayLayout = "2006-01-02"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	PlaceOrder(ctx context.Context, in service.PlaceOrderInput) (*service.Receipt, error)
	ListOrders(ctx context.Context, day *time.Time) ([]model.StoredOrder, error)
	Summary(ctx context.Context, day *time.Time) (model.OrdersSummary, error)
	Today() time.Time
	Location() *time.Location
	Menu() []model.MenuSection
}

// Handler реализует HTTP-обработчики веб-приложения.
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

// Index отдаёт страницу Web App с формой заказа.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, struct{ Title string }{Title: pageTitle}); err != nil {
		h.logger.Error("render index error", zap.Error(err))
	}
}

// Health сообщает, что процесс жив.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

type menuResponse struct {
	Sections []model.MenuSection `json:"sections"`
	Currency string              `json:"currency"`
}

// Menu возвращает меню, сгруппированное по категориям.
func (h *Handler) Menu(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, menuResponse{
		Sections: h.service.Menu(),
		Currency: menu.Currency,
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

type createOrderResponse struct {
	Order   model.StoredOrder `json:"order"`
	Receipt string            `json:"receipt"`
}

// CreateOrder принимает заказ из Web App по HTTP. Обработка совпадает с web_app_data в чате.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	req, err := validation.ParseOrderPayload(string(body))
	if err != nil {
		h.logger.Warn("invalid payload received", zap.Error(err), zap.Int64("userID", user.ID))
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: receipt.ErrorText(err)})
		return
	}

	res, err := h.service.PlaceOrder(r.Context(), service.PlaceOrderInput{
		ChatID:   user.ID,
		Username: user.Username,
		Request:  req,
	})
	if err != nil {
		writeJSON(w, h.orderErrorStatus(err, user.ID), errorResponse{Error: receipt.ErrorText(err)})
		return
	}

	writeJSON(w, http.StatusCreated, createOrderResponse{
		Order:   res.Order,
		Receipt: receipt.Order(res),
	})
}

func (h *Handler) orderErrorStatus(err error, userID int64) int {
	var (
		unknown    *service.UnknownMenuItemError
		storageErr *repository.StorageError
	)
	switch {
	case errors.As(err, &unknown):
		h.logger.Warn("invalid item", zap.Error(err), zap.Int64("userID", userID))
		return http.StatusUnprocessableEntity
	case errors.As(err, &storageErr) && storageErr.Retryable():
		h.logger.Error("record order error", zap.Error(err), zap.Int64("userID", userID), zap.Bool("retryable", true))
		return http.StatusServiceUnavailable
	default:
		h.logger.Error("record order error", zap.Error(err), zap.Int64("userID", userID), zap.Bool("retryable", false))
		return http.StatusInternalServerError
	}
}

// GetOrders возвращает заказы за день из параметра day или все заказы.
func (h *Handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	day, err := h.parseDay(r, false)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	orders, err := h.service.ListOrders(r.Context(), day)
	if err != nil {
		h.logger.Error("list orders error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, orders)
}

type summaryResponse struct {
	Day string `json:"day"`
	model.OrdersSummary
}

// GetSummary возвращает дневную сводку. Без параметра day используется текущий день.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	day, err := h.parseDay(r, true)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	summary, err := h.service.Summary(r.Context(), day)
	if err != nil {
		h.logger.Error("summary error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, summaryResponse{
		Day:           day.Format(dayLayout),
		OrdersSummary: summary,
	})
}

func (h *Handler) parseDay(r *http.Request, defaultToday bool) (*time.Time, error) {
	v := r.URL.Query().Get("day")
	if v == "" {
		if !defaultToday {
			return nil, nil
		}
		today := h.service.Today()
		return &today, nil
	}

	day, err := time.ParseInLocation(dayLayout, v, h.service.Location())
	if err != nil {
		return nil, err
	}
	return &day, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
