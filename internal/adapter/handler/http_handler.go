package handler

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/rl1809/pizzeria/internal/core/domain"
	"github.com/rl1809/pizzeria/internal/core/lifecycle"
	"github.com/rl1809/pizzeria/internal/core/service"
	"github.com/rl1809/pizzeria/internal/port"
)

const (
	headerUserID     = "X-User-ID"
	headerGuestID    = "X-Guest-ID"
	headerRequestID  = "X-Request-ID"
	headerAdminToken = "X-Admin-Token"
)

type HTTPHandler struct {
	sessions   *service.SessionStore
	orders     *service.OrderService
	menus      *service.MenuService
	board      *service.AdminBoard
	adminToken string
	logger     *zap.Logger
}

type errorResponse struct {
	Error string `json:"error"`
}

func NewHTTPHandler(sessions *service.SessionStore, orders *service.OrderService, menus *service.MenuService, board *service.AdminBoard, adminToken string, logger *zap.Logger) *HTTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPHandler{
		sessions:   sessions,
		orders:     orders,
		menus:      menus,
		board:      board,
		adminToken: adminToken,
		logger:     logger,
	}
}

// Routes builds the HTTP API.
func (h *HTTPHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Get("/menu", h.GetMenu)

		r.Route("/sessions", h.sessionRoutes)

		r.Get("/orders", h.ListOrders)
		r.Delete("/orders/completed", h.ClearCompleted)
		r.Get("/orders/{id}", h.GetOrder)
		r.Get("/badge", h.GetBadge)

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.requireAdmin)
			r.Get("/orders", h.AdminOrders)
			r.Patch("/orders/{id}/status", h.AdminSetStatus)
			r.Get("/sales", h.AdminSales)
			r.Get("/products", h.AdminProducts)
			r.Put("/products/{id}", h.AdminUpsertProduct)
			r.Delete("/products/{id}", h.AdminDeleteProduct)
			r.Put("/combos/{id}", h.AdminUpsertCombo)
		})
	})

	return otelhttp.NewHandler(r, "pizzeria.http")
}

func (h *HTTPHandler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (h *HTTPHandler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.adminToken == "" {
			writeJSON(w, http.StatusForbidden, errorResponse{Error: "admin access disabled"})
			return
		}
		got := r.Header.Get(headerAdminToken)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.adminToken)) != 1 {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid admin token"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) GetMenu(w http.ResponseWriter, r *http.Request) {
	menu, err := h.menus.Current(r.Context())
	if err != nil {
		h.logger.Warn("serving fallback menu", zap.Error(err))
	}
	// stale tells the client the catalogue could not be loaded and a retry is worth offering.
	writeJSON(w, http.StatusOK, struct {
		*domain.Menu
		Sizes      []domain.SizeOption `json:"sizes"`
		SweetSizes []domain.SizeOption `json:"sweetSizes"`
		Stale      bool                `json:"stale"`
	}{menu, domain.PizzaSizes, domain.SweetPizzaSizes, err != nil})
}

type ordersResponse struct {
	Active    []domain.Order `json:"active"`
	Completed []domain.Order `json:"completed"`
}

func (h *HTTPHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	var (
		list []domain.Order
		err  error
	)
	if userID := r.Header.Get(headerUserID); userID != "" {
		list, err = h.orders.ListUserOrders(r.Context(), userID)
	} else {
		list, err = h.orders.ListGuestOrders(r.Context(), r.Header.Get(headerGuestID))
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	active, completed := service.SplitActive(list)
	writeJSON(w, http.StatusOK, ordersResponse{Active: nonNil(active), Completed: nonNil(completed)})
}

func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.GetOrder(r.Context(), chi.URLParam(r, "id"), callerOf(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func callerOf(r *http.Request) service.Caller {
	return service.Caller{UserID: r.Header.Get(headerUserID), GuestID: r.Header.Get(headerGuestID)}
}

func (h *HTTPHandler) ClearCompleted(w http.ResponseWriter, r *http.Request) {
	n, err := h.orders.ClearCompleted(r.Context(), r.Header.Get(headerGuestID))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"cleared": n})
}

func (h *HTTPHandler) GetBadge(w http.ResponseWriter, r *http.Request) {
	badge, err := h.orders.Badge(r.Context(), r.Header.Get(headerUserID))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, badge)
}

type adminOrdersResponse struct {
	Orders []domain.Order  `json:"orders"`
	Counts map[string]int `json:"counts"`
}

func (h *HTTPHandler) AdminOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	writeJSON(w, http.StatusOK, adminOrdersResponse{
		Orders: h.board.Orders(q.Get("q"), q.Get("status")),
		Counts: h.board.Counts(),
	})
}

type statusRequest struct {
	Status domain.OrderStatus `json:"status"`
}

func (h *HTTPHandler) AdminSetStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !decode(w, r, &req) {
		return
	}
	order, err := h.board.SetStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		h.writeError(w, err)
		return
	}
	status := http.StatusOK
	if order.Pending {
		status = http.StatusAccepted
	}
	writeJSON(w, status, order)
}

const dateLayout = "2006-01-02"

func (h *HTTPHandler) AdminSales(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	period := service.Period(q.Get("period"))
	if period == "" {
		period = service.PeriodToday
	}
	var from, to time.Time
	for _, p := range []struct {
		name string
		dst  *time.Time
	}{{"from", &from}, {"to", &to}} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		t, err := time.ParseInLocation(dateLayout, v, time.Local)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid " + p.name + " date, want YYYY-MM-DD"})
			return
		}
		*p.dst = t
	}
	writeJSON(w, http.StatusOK, h.board.Sales(period, from, to))
}

func (h *HTTPHandler) AdminProducts(w http.ResponseWriter, r *http.Request) {
	category := domain.Category(r.URL.Query().Get("category"))
	if category == "" {
		category = domain.CategorySavory
	}
	list, err := h.menus.ProductsByCategory(r.Context(), category)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

func (h *HTTPHandler) AdminUpsertProduct(w http.ResponseWriter, r *http.Request) {
	var p domain.Product
	if !decode(w, r, &p) {
		return
	}
	p.ID = chi.URLParam(r, "id")
	if err := h.menus.UpsertProduct(r.Context(), p); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *HTTPHandler) AdminDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.menus.DeleteProduct(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) AdminUpsertCombo(w http.ResponseWriter, r *http.Request) {
	var c domain.Combo
	if !decode(w, r, &c) {
		return
	}
	c.ID = chi.URLParam(r, "id")
	if err := h.menus.UpsertCombo(r.Context(), c); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// writeError maps service errors to status codes. Unknown errors are logged
// and reported as 500 without detail.
func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	status, message := http.StatusInternalServerError, "internal error"
	switch {
	case errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, port.ErrNotFound):
		status, message = http.StatusNotFound, err.Error()
	case errors.Is(err, service.ErrDuplicateRequest):
		status, message = http.StatusConflict, "duplicate request"
	case errors.Is(err, service.ErrNotReady):
		status, message = http.StatusUnprocessableEntity, err.Error()
	case service.IsValidation(err):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, lifecycle.ErrRegression),
		errors.Is(err, lifecycle.ErrSkip),
		errors.Is(err, lifecycle.ErrWrongBranch),
		errors.Is(err, lifecycle.ErrUnknownStatus):
		status, message = http.StatusConflict, err.Error()
	default:
		h.logger.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: message})
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

func pathIndex(r *http.Request, name string) (int, bool) {
	i, err := strconv.Atoi(chi.URLParam(r, name))
	return i, err == nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
