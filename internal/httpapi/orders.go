package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/store"
)

const IdempotencyKeyHeader = "Idempotency-Key"

type orderItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type createOrderRequest struct {
	UserID           int64              `json:"user_id"`
	ShippingAddress  string             `json:"shipping_address"`
	ShippingMethodID *int64             `json:"shipping_method_id,omitempty"`
	Items            []orderItemRequest `json:"items"`
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

type statusRequest struct {
	Status models.OrderStatus `json:"status"`
}

type paymentReferenceRequest struct {
	PaymentIntentID string `json:"payment_intent_id"`
}

type paymentEventRequest struct {
	PaymentIntentID string             `json:"payment_intent_id"`
	Status          models.OrderStatus `json:"status"`
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if !decode(w, r, &req) {
		return
	}

	ctx := r.Context()
	key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
	useIdem := key != "" && s.Idempotency != nil

	if useIdem {
		if orderID, ok, err := s.Idempotency.Lookup(ctx, req.UserID, key); err == nil && ok {
			order, err := store.GetOrder(ctx, s.DB, orderID)
			if err != nil {
				s.fail(w, r, err)
				return
			}
			respondJSON(w, http.StatusOK, order)
			return
		}

		claimed, err := s.Idempotency.Claim(ctx, req.UserID, key)
		switch {
		case err != nil:
			s.Logger.Warn("idempotency claim failed, continuing without it", zap.Error(err))
			useIdem = false
		case !claimed:
			respondError(w, http.StatusConflict, "request with this idempotency key is in progress")
			return
		}
	}

	items := make([]store.OrderItemRequest, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, store.OrderItemRequest{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}

	order, err := store.CreateOrder(ctx, s.DB, s.Engine, store.CreateOrderRequest{
		UserID:           req.UserID,
		ShippingAddress:  req.ShippingAddress,
		ShippingMethodID: req.ShippingMethodID,
		Items:            items,
	})
	if err != nil {
		if useIdem {
			if relErr := s.Idempotency.Release(ctx, req.UserID, key); relErr != nil {
				s.Logger.Warn("release idempotency key", zap.String("key", key), zap.Error(relErr))
			}
		}
		s.fail(w, r, err)
		return
	}

	if useIdem {
		if err := s.Idempotency.Complete(ctx, req.UserID, key, order.ID); err != nil {
			s.Logger.Warn("complete idempotency key", zap.String("key", key), zap.Error(err))
		}
	}
	s.cacheStatus(r, order)

	respondJSON(w, http.StatusCreated, order)
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid order ID")
		return
	}

	order, err := store.GetOrder(r.Context(), s.DB, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, order)
}

func (s *Server) listUserOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	page, err := store.ListOrdersCursor(r.Context(), s.DB, userID, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, page)
}

func (s *Server) addOrderItem(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid order ID")
		return
	}

	var req orderItemRequest
	if !decode(w, r, &req) {
		return
	}

	item, err := store.AddOrderItem(r.Context(), s.DB, s.Engine, orderID, req.ProductID, req.Quantity)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, item)
}

func (s *Server) updateOrderItem(w http.ResponseWriter, r *http.Request) {
	itemID, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid order item ID")
		return
	}

	var req quantityRequest
	if !decode(w, r, &req) {
		return
	}

	item, err := store.UpdateOrderItemQuantity(r.Context(), s.DB, s.Engine, itemID, req.Quantity)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, item)
}

func (s *Server) deleteOrderItem(w http.ResponseWriter, r *http.Request) {
	itemID, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid order item ID")
		return
	}

	if err := store.DeleteOrderItem(r.Context(), s.DB, s.Engine, itemID); err != nil {
		s.fail(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) cancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid order ID")
		return
	}

	order, err := store.CancelOrder(r.Context(), s.DB, s.Engine, orderID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.cacheStatus(r, order)

	respondJSON(w, http.StatusOK, order)
}

func (s *Server) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid order ID")
		return
	}

	ctx := r.Context()
	if s.Statuses != nil {
		if status, hit, err := s.Statuses.Get(ctx, orderID); err == nil && hit {
			respondJSON(w, http.StatusOK, map[string]any{"order_id": orderID, "status": status, "cached": true})
			return
		}
	}

	order, err := store.GetOrder(ctx, s.DB, orderID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.cacheStatus(r, order)

	respondJSON(w, http.StatusOK, map[string]any{"order_id": orderID, "status": order.Status, "cached": false})
}

func (s *Server) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid order ID")
		return
	}

	var req statusRequest
	if !decode(w, r, &req) {
		return
	}
	if !req.Status.Valid() {
		respondError(w, http.StatusBadRequest, "unknown order status")
		return
	}

	order, err := store.UpdateOrderStatus(r.Context(), s.DB, orderID, req.Status)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.cacheStatus(r, order)

	respondJSON(w, http.StatusOK, order)
}

func (s *Server) setPaymentReference(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid order ID")
		return
	}

	var req paymentReferenceRequest
	if !decode(w, r, &req) {
		return
	}
	if req.PaymentIntentID == "" {
		respondError(w, http.StatusBadRequest, "payment_intent_id is required")
		return
	}

	if err := store.SetPaymentReference(r.Context(), s.DB, orderID, req.PaymentIntentID); err != nil {
		s.fail(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// paymentEvent receives payment outcomes (paid or failed) keyed by the
// processor's intent id.
func (s *Server) paymentEvent(w http.ResponseWriter, r *http.Request) {
	var req paymentEventRequest
	if !decode(w, r, &req) {
		return
	}
	if req.PaymentIntentID == "" {
		respondError(w, http.StatusBadRequest, "payment_intent_id is required")
		return
	}

	order, err := store.UpdateOrderStatusByPaymentRef(r.Context(), s.DB, req.PaymentIntentID, req.Status)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.cacheStatus(r, order)

	respondJSON(w, http.StatusOK, order)
}

func (s *Server) cacheStatus(r *http.Request, order *models.Order) {
	if s.Statuses == nil {
		return
	}
	if err := s.Statuses.Set(r.Context(), order.ID, order.Status); err != nil {
		s.Logger.Warn("cache order status", zap.Int64("order_id", order.ID), zap.Error(err))
	}
}
