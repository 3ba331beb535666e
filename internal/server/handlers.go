package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"modgarage/internal/metrics"
	"modgarage/internal/storage"
	"modgarage/internal/tracking"
)

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var checkoutRequest struct {
		BuyerName     string  `json:"buyer_name"`
		BuyerEmail    string  `json:"buyer_email"`
		Title         string  `json:"title"`
		Price         float64 `json:"price"`
		Address       string  `json:"address"`
		PaymentMethod string  `json:"payment_method"`
	}

	if err := decodeBody(r, &checkoutRequest); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if checkoutRequest.Title == "" {
		respondError(w, http.StatusBadRequest, "Missing title")
		return
	}

	now := s.timeNow()
	order := storage.Order{
		ID:            uuid.NewString(),
		BuyerName:     checkoutRequest.BuyerName,
		BuyerEmail:    checkoutRequest.BuyerEmail,
		Title:         checkoutRequest.Title,
		Price:         checkoutRequest.Price,
		Address:       checkoutRequest.Address,
		PaymentMethod: checkoutRequest.PaymentMethod,
		Status:        storage.StatusConfirmed,
		TrackingStage: tracking.StageOrderConfirmed,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if order.Price < 0 {
		order.Price = 0
	}
	if order.PaymentMethod == "" {
		order.PaymentMethod = storage.DefaultPaymentMethod
	}
	if order.BuyerName == "" {
		order.BuyerName = "Unknown Customer"
	}
	if order.BuyerEmail == "" {
		order.BuyerEmail = "unknown@example.com"
	}

	if err := s.storage.CreateOrder(r.Context(), order); err != nil {
		respondError(w, http.StatusInternalServerError, "Error: "+err.Error())
		return
	}

	metrics.OrdersCreatedTotal.Inc()
	s.publish(r.Context(), storage.CollectionOrders)

	respondJSON(w, http.StatusCreated, map[string]string{
		"message": "Order placed successfully",
		"id":      order.ID,
	})
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.storage.ListOrders(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Error: "+err.Error())
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["id"]

	order, err := s.storage.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Order not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Error: "+err.Error())
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func (s *Server) handleCreateMessage(w http.ResponseWriter, r *http.Request) {
	var messageRequest struct {
		Name    string `json:"name"`
		Email   string `json:"email"`
		Subject string `json:"subject"`
		Body    string `json:"body"`
	}

	if err := decodeBody(r, &messageRequest); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if messageRequest.Email == "" || messageRequest.Body == "" {
		respondError(w, http.StatusBadRequest, "Missing email or body")
		return
	}

	msg := storage.Message{
		ID:        uuid.NewString(),
		Name:      messageRequest.Name,
		Email:     messageRequest.Email,
		Subject:   messageRequest.Subject,
		Body:      messageRequest.Body,
		CreatedAt: s.timeNow(),
	}
	if err := s.storage.CreateMessage(r.Context(), msg); err != nil {
		respondError(w, http.StatusInternalServerError, "Error: "+err.Error())
		return
	}

	s.publish(r.Context(), storage.CollectionMessages)
	respondJSON(w, http.StatusCreated, map[string]string{"id": msg.ID})
}

func (s *Server) handleCreateReview(w http.ResponseWriter, r *http.Request) {
	var reviewRequest struct {
		Name    string `json:"name"`
		Vehicle string `json:"vehicle"`
		Rating  int    `json:"rating"`
		Comment string `json:"comment"`
	}

	if err := decodeBody(r, &reviewRequest); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if reviewRequest.Rating < 1 || reviewRequest.Rating > 5 {
		respondError(w, http.StatusBadRequest, "Rating must be between 1 and 5")
		return
	}

	review := storage.Review{
		ID:        uuid.NewString(),
		Name:      reviewRequest.Name,
		Vehicle:   reviewRequest.Vehicle,
		Rating:    reviewRequest.Rating,
		Comment:   reviewRequest.Comment,
		Status:    storage.ReviewPending,
		CreatedAt: s.timeNow(),
	}
	if err := s.storage.CreateReview(r.Context(), review); err != nil {
		respondError(w, http.StatusInternalServerError, "Error: "+err.Error())
		return
	}

	s.publish(r.Context(), storage.CollectionReviews)
	respondJSON(w, http.StatusCreated, map[string]string{"id": review.ID})
}

// handleListReviews is the public listing: only approved reviews come back.
func (s *Server) handleListReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := s.storage.ListReviews(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Error: "+err.Error())
		return
	}

	approved := make([]storage.Review, 0, len(reviews))
	for _, rev := range reviews {
		if rev.Status == storage.ReviewApproved {
			approved = append(approved, rev)
		}
	}
	respondJSON(w, http.StatusOK, approved)
}

func (s *Server) handleListCollection(w http.ResponseWriter, r *http.Request) {
	collection := mux.Vars(r)["collection"]
	if !storage.KnownCollection(collection) {
		respondError(w, http.StatusNotFound, "Unknown collection: "+collection)
		return
	}

	items, err := s.collectionItems(r.Context(), collection)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Error: "+err.Error())
		return
	}
	respondJSON(w, http.StatusOK, items)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	collection := mux.Vars(r)["collection"]
	if !storage.KnownCollection(collection) {
		respondError(w, http.StatusNotFound, "Unknown collection: "+collection)
		return
	}

	query := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))

	switch collection {
	case storage.CollectionOrders:
		orders, err := s.storage.ListOrders(r.Context())
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Error: "+err.Error())
			return
		}
		matched := make([]storage.Order, 0)
		for _, o := range orders {
			if matchesQuery(query, o.BuyerName, o.BuyerEmail, o.Title) {
				matched = append(matched, o)
			}
		}
		respondJSON(w, http.StatusOK, matched)

	case storage.CollectionUsers:
		users, err := s.storage.ListUsers(r.Context())
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Error: "+err.Error())
			return
		}
		matched := make([]storage.User, 0)
		for _, u := range users {
			if matchesQuery(query, u.Name, u.Email) {
				matched = append(matched, u)
			}
		}
		respondJSON(w, http.StatusOK, matched)

	case storage.CollectionMessages:
		messages, err := s.storage.ListMessages(r.Context())
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Error: "+err.Error())
			return
		}
		matched := make([]storage.Message, 0)
		for _, m := range messages {
			if matchesQuery(query, m.Name, m.Email, m.Subject) {
				matched = append(matched, m)
			}
		}
		respondJSON(w, http.StatusOK, matched)

	case storage.CollectionReviews:
		reviews, err := s.storage.ListReviews(r.Context())
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Error: "+err.Error())
			return
		}
		matched := make([]storage.Review, 0)
		for _, rev := range reviews {
			if matchesQuery(query, rev.Name, rev.Comment) {
				matched = append(matched, rev)
			}
		}
		respondJSON(w, http.StatusOK, matched)
	}
}

// matchesQuery reports whether any field contains the query as a
// case-insensitive substring. An empty query matches everything.
func matchesQuery(query string, fields ...string) bool {
	if query == "" {
		return true
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), query) {
			return true
		}
	}
	return false
}

// handleCancelOrder is idempotent and total: cancelling a missing or
// already-cancelled order is a quiet no-op, never an error.
func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["id"]

	order, err := s.storage.CancelOrder(r.Context(), orderID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Error: "+err.Error())
		return
	}
	if order == nil {
		respondJSON(w, http.StatusOK, map[string]string{
			"message": "No matching order, nothing cancelled",
			"id":      orderID,
		})
		return
	}

	metrics.OrdersCancelledTotal.Inc()
	s.publish(r.Context(), storage.CollectionOrders)

	respondJSON(w, http.StatusOK, order)
}

// handleDelete is two-phase. The first request for a target returns a
// confirmation token; repeating the request with that token performs the
// delete. A missing, expired, or mismatched token yields 409.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	collection, id := vars["collection"], vars["id"]
	if !storage.KnownCollection(collection) {
		respondError(w, http.StatusNotFound, "Unknown collection: "+collection)
		return
	}

	token := r.URL.Query().Get("confirm")
	if token == "" {
		token = r.Header.Get("X-Confirm-Token")
	}

	if token == "" {
		issued, expires := s.confirms.Issue(collection, id)
		respondJSON(w, http.StatusAccepted, map[string]string{
			"message":       "Confirmation required",
			"confirm_token": issued,
			"expires_at":    expires.Format("2006-01-02T15:04:05Z07:00"),
		})
		return
	}

	if !s.confirms.Redeem(token, collection, id) {
		respondError(w, http.StatusConflict, "Invalid or expired confirmation token")
		return
	}

	var err error
	switch collection {
	case storage.CollectionOrders:
		err = s.storage.DeleteOrder(r.Context(), id)
	case storage.CollectionUsers:
		err = s.storage.DeleteUser(r.Context(), id)
	case storage.CollectionMessages:
		err = s.storage.DeleteMessage(r.Context(), id)
	case storage.CollectionReviews:
		err = s.storage.DeleteReview(r.Context(), id)
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Error: "+err.Error())
		return
	}

	metrics.AdminDeletesTotal.WithLabelValues(collection).Inc()
	s.publish(r.Context(), collection)

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "Deleted from " + collection,
		"id":      id,
	})
}

func (s *Server) handleReviewStatus(w http.ResponseWriter, r *http.Request) {
	reviewID := mux.Vars(r)["id"]

	var statusRequest struct {
		Status string `json:"status"`
	}
	if err := decodeBody(r, &statusRequest); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := s.storage.SetReviewStatus(r.Context(), reviewID, statusRequest.Status); err != nil {
		switch {
		case errors.Is(err, storage.ErrInvalidStatus):
			respondError(w, http.StatusBadRequest, "Invalid status: "+statusRequest.Status)
		case errors.Is(err, storage.ErrNotFound):
			respondError(w, http.StatusNotFound, "Review not found")
		default:
			respondError(w, http.StatusInternalServerError, "Error: "+err.Error())
		}
		return
	}

	s.publish(r.Context(), storage.CollectionReviews)
	respondJSON(w, http.StatusOK, map[string]string{
		"message": "Review status updated",
		"status":  statusRequest.Status,
	})
}

func (s *Server) collectionItems(ctx context.Context, collection string) (interface{}, error) {
	switch collection {
	case storage.CollectionOrders:
		return s.storage.ListOrders(ctx)
	case storage.CollectionUsers:
		return s.storage.ListUsers(ctx)
	case storage.CollectionMessages:
		return s.storage.ListMessages(ctx)
	default:
		return s.storage.ListReviews(ctx)
	}
}
