package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"pickflow/models"
)

func (s *Server) listOrdersHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Store.Orders())
}

func (s *Server) getOrderHandler(w http.ResponseWriter, r *http.Request) {
	order, ok := s.Store.Get(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "order not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) createOrderHandler(w http.ResponseWriter, r *http.Request) {
	var order models.Order
	if err := json.NewDecoder(r.Body).Decode(&order); err != nil {
		http.Error(w, "malformed order json", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(order.OrderNumber) == "" || strings.TrimSpace(order.PalletNumber) == "" {
		http.Error(w, "order number and pallet number are required", http.StatusBadRequest)
		return
	}
	if order.Status == "" {
		order.Status = models.StatusPending
	}
	id, err := s.Store.Create(r.Context(), order)
	if err != nil {
		slog.Error("api create order failed", slog.Any("err", err))
		http.Error(w, "failed to create order", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) updateOrderHandler(w http.ResponseWriter, r *http.Request) {
	var order models.Order
	if err := json.NewDecoder(r.Body).Decode(&order); err != nil {
		http.Error(w, "malformed order json", http.StatusBadRequest)
		return
	}
	order.ID = chi.URLParam(r, "id")
	if _, ok := s.Store.Get(order.ID); !ok {
		http.Error(w, "order not found", http.StatusNotFound)
		return
	}
	if err := s.Store.Update(r.Context(), order); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) updateOrderStatusHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "malformed status json", http.StatusBadRequest)
		return
	}
	id := chi.URLParam(r, "id")
	if _, ok := s.Store.Get(id); !ok {
		http.Error(w, "order not found", http.StatusNotFound)
		return
	}
	if err := s.Store.UpdateStatus(r.Context(), id, body.Status); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write json response failed", slog.Any("err", err))
	}
}
