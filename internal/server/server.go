//go:generate mockgen -source ./server.go -destination=./mocks/server.go -package=mock_server
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"modgarage/internal/storage"
	"modgarage/internal/syncbus"
)

type Storage interface {
	ListOrders(ctx context.Context) ([]storage.Order, error)
	GetOrder(ctx context.Context, id string) (*storage.Order, error)
	CreateOrder(ctx context.Context, order storage.Order) error
	CancelOrder(ctx context.Context, id string) (*storage.Order, error)
	DeleteOrder(ctx context.Context, id string) error

	ListUsers(ctx context.Context) ([]storage.User, error)
	GetUserByName(ctx context.Context, name string) (*storage.User, error)
	DeleteUser(ctx context.Context, id string) error

	ListMessages(ctx context.Context) ([]storage.Message, error)
	CreateMessage(ctx context.Context, msg storage.Message) error
	DeleteMessage(ctx context.Context, id string) error

	ListReviews(ctx context.Context) ([]storage.Review, error)
	CreateReview(ctx context.Context, review storage.Review) error
	DeleteReview(ctx context.Context, id string) error
	SetReviewStatus(ctx context.Context, id, status string) error
}

type Server struct {
	storage      Storage
	bus          syncbus.Bus
	logger       *zap.Logger
	server       *http.Server
	confirms     *confirmRegistry
	AuditManager *AuditManager

	timeNow func() time.Time
}

func New(st Storage, bus syncbus.Bus, sink AuditSink, logger *zap.Logger) *Server {
	return &Server{
		storage:      st,
		bus:          bus,
		logger:       logger,
		confirms:     newConfirmRegistry(30 * time.Second),
		AuditManager: NewAuditManager(2, 5, 500*time.Millisecond, sink, logger),
		timeNow:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Server) Run(ctx context.Context, port string) error {
	router := s.setupRoutes()

	s.server = &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.AuditManager.Start(ctx)

	s.logger.Info("server starting", zap.String("port", port))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	s.AuditManager.Shutdown(ctx)

	s.logger.Info("server shutdown completed")
	return nil
}

func (s *Server) setupRoutes() http.Handler {
	router := mux.NewRouter()

	router.Handle("/metrics", promhttp.Handler())

	router.HandleFunc("/orders", s.handleCheckout).Methods(http.MethodPost).Name("handleCheckout")
	router.HandleFunc("/orders", s.handleListOrders).Methods(http.MethodGet).Name("handleListOrders")
	router.HandleFunc("/orders/{id}", s.handleGetOrder).Methods(http.MethodGet).Name("handleGetOrder")
	router.HandleFunc("/messages", s.handleCreateMessage).Methods(http.MethodPost).Name("handleCreateMessage")
	router.HandleFunc("/reviews", s.handleCreateReview).Methods(http.MethodPost).Name("handleCreateReview")
	router.HandleFunc("/reviews", s.handleListReviews).Methods(http.MethodGet).Name("handleListReviews")

	admin := router.PathPrefix("/admin").Subrouter()
	admin.Use(s.basicAuthMiddleware, s.auditLogMiddleware)

	admin.HandleFunc("/{collection}/search", s.handleSearch).Methods(http.MethodGet).Name("handleSearch")
	admin.HandleFunc("/orders/{id}/cancel", s.handleCancelOrder).Methods(http.MethodPost).Name("handleCancelOrder")
	admin.HandleFunc("/reviews/{id}/status", s.handleReviewStatus).Methods(http.MethodPut).Name("handleReviewStatus")
	admin.HandleFunc("/{collection}/{id}", s.handleDelete).Methods(http.MethodDelete).Name("handleDelete")
	admin.HandleFunc("/{collection}", s.handleListCollection).Methods(http.MethodGet).Name("handleListCollection")

	return router
}

// basicAuthMiddleware admits only users with the admin flag set. Credentials
// are checked against the stored bcrypt hash.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		user, err := s.storage.GetUserByName(r.Context(), username)
		if err != nil || user == nil || !user.Admin {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func decodeBody(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// publish sends a sync-channel notification for the named collection. A
// failed publish is logged and never fails the request; connected clients
// will catch up on their next full read.
func (s *Server) publish(ctx context.Context, collection string) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, collection); err != nil {
		s.logger.Warn("sync publish failed",
			zap.String("collection", collection), zap.Error(err))
	}
}
