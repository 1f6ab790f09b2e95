package httpapi

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/safar/storefront/internal/store"
)

type createUserRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type createProductRequest struct {
	SKU         string          `json:"sku"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Email == "" || req.Name == "" {
		respondError(w, http.StatusBadRequest, "email and name are required")
		return
	}

	user, err := store.CreateUser(r.Context(), s.DB, req.Email, req.Name)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, user)
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pagination(r)

	result, err := store.ListUsers(r.Context(), s.DB, page, pageSize)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	user, err := store.GetUser(r.Context(), s.DB, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, user)
}

func (s *Server) createProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if !decode(w, r, &req) {
		return
	}
	if req.SKU == "" || req.Name == "" {
		respondError(w, http.StatusBadRequest, "sku and name are required")
		return
	}

	product, err := store.CreateProduct(r.Context(), s.DB, req.SKU, req.Name, req.Description, req.Price, req.Stock)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, product)
}

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pagination(r)

	result, err := store.ListProducts(r.Context(), s.DB, page, pageSize)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid product ID")
		return
	}

	product, err := store.GetProduct(r.Context(), s.DB, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, product)
}
