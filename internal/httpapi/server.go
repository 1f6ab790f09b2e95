// Package httpapi exposes the storefront over JSON/HTTP.
package httpapi

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/safar/storefront/internal/cache"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/store"
)

// Server holds the handler dependencies. Statuses and Idempotency are
// optional; without them requests go straight to Postgres.
type Server struct {
	DB          *sql.DB
	Engine      store.StockEngine
	Statuses    *cache.StatusCache
	Idempotency *cache.IdempotencyStore
	Logger      *zap.Logger
}

func NewRouter(s *Server, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger(s.Logger), middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/healthz", s.healthz)

	r.Route("/users", func(r chi.Router) {
		r.Post("/", s.createUser)
		r.Get("/", s.listUsers)
		r.Get("/{id}", s.getUser)
		r.Get("/{id}/orders", s.listUserOrders)
	})

	r.Route("/products", func(r chi.Router) {
		r.Post("/", s.createProduct)
		r.Get("/", s.listProducts)
		r.Get("/{id}", s.getProduct)
	})

	r.Route("/orders", func(r chi.Router) {
		r.Post("/", s.createOrder)
		r.Get("/{id}", s.getOrder)
		r.Post("/{id}/items", s.addOrderItem)
		r.Post("/{id}/cancel", s.cancelOrder)
		r.Get("/{id}/status", s.getOrderStatus)
		r.Patch("/{id}/status", s.updateOrderStatus)
		r.Put("/{id}/payment-reference", s.setPaymentReference)
		r.Get("/{id}/tracking", s.getTracking)
	})

	r.Patch("/order-items/{id}", s.updateOrderItem)
	r.Delete("/order-items/{id}", s.deleteOrderItem)

	r.Post("/carts/{userID}/items", s.addCartItem)
	r.Get("/carts/{userID}/items", s.listCartItems)

	r.Post("/payments/events", s.paymentEvent)
	r.Post("/shipping/tracking", s.recordTracking)

	return otelhttp.NewHandler(r, "storefront-http")
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if err := s.DB.PingContext(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

// statusFor maps domain errors to an HTTP status and a client-safe message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, database.ErrInsufficientStock):
		return http.StatusConflict, "not enough stock"
	case errors.Is(err, database.ErrUserNotFound),
		errors.Is(err, database.ErrProductNotFound),
		errors.Is(err, database.ErrOrderNotFound),
		errors.Is(err, database.ErrOrderItemNotFound),
		errors.Is(err, database.ErrShippingMethodNotFound),
		errors.Is(err, database.ErrShippingDetailNotFound):
		return http.StatusNotFound, rootMessage(err)
	case errors.Is(err, database.ErrInvalidQuantity),
		errors.Is(err, database.ErrEmptyOrder),
		errors.Is(err, database.ErrInvalidShippingAddress),
		errors.Is(err, database.ErrNegativePrice),
		errors.Is(err, database.ErrNegativeStock),
		errors.Is(err, database.ErrInvalidEmail):
		return http.StatusBadRequest, rootMessage(err)
	case errors.Is(err, database.ErrInvalidCursor):
		return http.StatusBadRequest, database.ErrInvalidCursor.Error()
	case errors.Is(err, database.ErrEmailTaken),
		errors.Is(err, database.ErrDuplicateSKU):
		return http.StatusConflict, rootMessage(err)
	case errors.Is(err, database.ErrOrderNotEditable),
		errors.Is(err, database.ErrInvalidStatusTransition):
		return http.StatusConflict, rootMessage(err)
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// rootMessage drops wrapping context so clients only see the sentinel text.
func rootMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status == http.StatusInternalServerError {
		s.Logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
	}
	respondError(w, status, msg)
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func pagination(r *http.Request) (page, pageSize int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ = strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
