package httpapi

import (
	"net/http"
	"time"

	"github.com/safar/storefront/internal/store"
)

type cartItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type trackingRequest struct {
	OrderID        int64      `json:"order_id"`
	TrackingNumber string     `json:"tracking_number,omitempty"`
	ShippedAt      *time.Time `json:"shipped_at,omitempty"`
	DeliveredAt    *time.Time `json:"delivered_at,omitempty"`
}

func (s *Server) addCartItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r, "userID")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	var req cartItemRequest
	if !decode(w, r, &req) {
		return
	}

	item, err := store.AddCartItem(r.Context(), s.DB, userID, req.ProductID, req.Quantity)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, item)
}

func (s *Server) listCartItems(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r, "userID")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	items, err := store.ListCartItems(r.Context(), s.DB, userID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, items)
}

func (s *Server) getTracking(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid order ID")
		return
	}

	detail, err := store.GetShippingDetail(r.Context(), s.DB, orderID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, detail)
}

// recordTracking accepts carrier updates. It only writes shipping fields.
func (s *Server) recordTracking(w http.ResponseWriter, r *http.Request) {
	var req trackingRequest
	if !decode(w, r, &req) {
		return
	}
	if req.OrderID <= 0 {
		respondError(w, http.StatusBadRequest, "order_id is required")
		return
	}

	ctx := r.Context()
	if req.TrackingNumber != "" {
		if _, err := store.UpdateTrackingNumber(ctx, s.DB, req.OrderID, req.TrackingNumber); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	if req.ShippedAt != nil || req.DeliveredAt != nil {
		if err := store.RecordTrackingInfo(ctx, s.DB, req.OrderID, req.ShippedAt, req.DeliveredAt); err != nil {
			s.fail(w, r, err)
			return
		}
	}

	detail, err := store.GetShippingDetail(ctx, s.DB, req.OrderID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, detail)
}
