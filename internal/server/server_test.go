package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	mock_server "modgarage/internal/server/mocks"
	"modgarage/internal/storage"
	mock_syncbus "modgarage/internal/syncbus/mocks"
	"modgarage/internal/tracking"
)

const (
	testAdminName     = "admin"
	testAdminPassword = "secret"
)

func newTestServer(t *testing.T) (*Server, *mock_server.MockStorage, *mock_syncbus.MockBus) {
	t.Helper()
	ctrl := gomock.NewController(t)

	mockStorage := mock_server.NewMockStorage(ctrl)
	mockBus := mock_syncbus.NewMockBus(ctrl)
	srv := New(mockStorage, mockBus, nil, zap.NewNop())
	srv.timeNow = func() time.Time {
		return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	}
	return srv, mockStorage, mockBus
}

// expectAdminAuth satisfies the basic auth middleware for any number of
// admin requests.
func expectAdminAuth(t *testing.T, mockStorage *mock_server.MockStorage) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testAdminPassword), bcrypt.MinCost)
	require.NoError(t, err)

	mockStorage.EXPECT().
		GetUserByName(gomock.Any(), testAdminName).
		Return(&storage.User{
			ID:           "u1",
			Name:         testAdminName,
			PasswordHash: string(hash),
			Admin:        true,
		}, nil).
		AnyTimes()
}

func doRequest(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.setupRoutes().ServeHTTP(rec, req)
	return rec
}

func adminRequest(method, target string, body []byte) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.SetBasicAuth(testAdminName, testAdminPassword)
	return req
}

func TestHandleCheckout(t *testing.T) {
	srv, mockStorage, mockBus := newTestServer(t)

	tests := []struct {
		name           string
		requestBody    string
		setupMocks     func()
		expectedStatus int
	}{
		{
			name:        "successful checkout applies defaults",
			requestBody: `{"title":"Full body PPF","price":2400,"buyer_email":"a@b.com"}`,
			setupMocks: func() {
				mockStorage.EXPECT().
					CreateOrder(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, order storage.Order) error {
						assert.NotEmpty(t, order.ID)
						assert.Equal(t, "Full body PPF", order.Title)
						assert.Equal(t, "Unknown Customer", order.BuyerName)
						assert.Equal(t, storage.DefaultPaymentMethod, order.PaymentMethod)
						assert.Equal(t, storage.StatusConfirmed, order.Status)
						assert.Equal(t, tracking.StageOrderConfirmed, order.TrackingStage)
						return nil
					})
				mockBus.EXPECT().Publish(gomock.Any(), storage.CollectionOrders).Return(nil)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:        "missing buyer email defaulted",
			requestBody: `{"title":"Roof wrap"}`,
			setupMocks: func() {
				mockStorage.EXPECT().
					CreateOrder(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, order storage.Order) error {
						assert.Equal(t, "unknown@example.com", order.BuyerEmail)
						return nil
					})
				mockBus.EXPECT().Publish(gomock.Any(), storage.CollectionOrders).Return(nil)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:        "negative price coerced to zero",
			requestBody: `{"title":"Ceramic coating","price":-50}`,
			setupMocks: func() {
				mockStorage.EXPECT().
					CreateOrder(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, order storage.Order) error {
						assert.Equal(t, float64(0), order.Price)
						return nil
					})
				mockBus.EXPECT().Publish(gomock.Any(), storage.CollectionOrders).Return(nil)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "invalid request body",
			requestBody:    `{not json`,
			setupMocks:     func() {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "missing title",
			requestBody:    `{"price":100}`,
			setupMocks:     func() {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:        "storage error",
			requestBody: `{"title":"Chrome delete"}`,
			setupMocks: func() {
				mockStorage.EXPECT().
					CreateOrder(gomock.Any(), gomock.Any()).
					Return(errors.New("disk full"))
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setupMocks()

			req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBufferString(tt.requestBody))
			rec := doRequest(srv, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
		})
	}
}

func TestHandleGetOrder(t *testing.T) {
	srv, mockStorage, _ := newTestServer(t)

	order := &storage.Order{ID: "o1", Title: "Matte wrap", Status: storage.StatusConfirmed}
	mockStorage.EXPECT().GetOrder(gomock.Any(), "o1").Return(order, nil)
	mockStorage.EXPECT().GetOrder(gomock.Any(), "missing").Return(nil, storage.ErrNotFound)

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/orders/o1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got storage.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Matte wrap", got.Title)

	rec = doRequest(srv, httptest.NewRequest(http.MethodGet, "/orders/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBasicAuth(t *testing.T) {
	srv, mockStorage, _ := newTestServer(t)

	hash, err := bcrypt.GenerateFromPassword([]byte(testAdminPassword), bcrypt.MinCost)
	require.NoError(t, err)

	tests := []struct {
		name           string
		setup          func(req *http.Request)
		setupMocks     func()
		expectedStatus int
	}{
		{
			name:           "no credentials",
			setup:          func(*http.Request) {},
			setupMocks:     func() {},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name: "unknown user",
			setup: func(req *http.Request) {
				req.SetBasicAuth("ghost", "pw")
			},
			setupMocks: func() {
				mockStorage.EXPECT().
					GetUserByName(gomock.Any(), "ghost").
					Return(nil, storage.ErrNotFound)
			},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name: "wrong password",
			setup: func(req *http.Request) {
				req.SetBasicAuth(testAdminName, "wrong")
			},
			setupMocks: func() {
				mockStorage.EXPECT().
					GetUserByName(gomock.Any(), testAdminName).
					Return(&storage.User{Name: testAdminName, PasswordHash: string(hash), Admin: true}, nil)
			},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name: "non-admin user rejected",
			setup: func(req *http.Request) {
				req.SetBasicAuth(testAdminName, testAdminPassword)
			},
			setupMocks: func() {
				mockStorage.EXPECT().
					GetUserByName(gomock.Any(), testAdminName).
					Return(&storage.User{Name: testAdminName, PasswordHash: string(hash), Admin: false}, nil)
			},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name: "valid admin",
			setup: func(req *http.Request) {
				req.SetBasicAuth(testAdminName, testAdminPassword)
			},
			setupMocks: func() {
				mockStorage.EXPECT().
					GetUserByName(gomock.Any(), testAdminName).
					Return(&storage.User{Name: testAdminName, PasswordHash: string(hash), Admin: true}, nil)
				mockStorage.EXPECT().
					ListOrders(gomock.Any()).
					Return([]storage.Order{}, nil)
			},
			expectedStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setupMocks()

			req := httptest.NewRequest(http.MethodGet, "/admin/orders", nil)
			tt.setup(req)
			rec := doRequest(srv, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
		})
	}
}

func TestHandleSearch(t *testing.T) {
	srv, mockStorage, _ := newTestServer(t)
	expectAdminAuth(t, mockStorage)

	orders := []storage.Order{
		{ID: "o1", BuyerName: "Asha Motors", BuyerEmail: "asha@cars.example", Title: "Gloss wrap"},
		{ID: "o2", BuyerName: "Ben", BuyerEmail: "ben@example.com", Title: "Window tint"},
	}
	mockStorage.EXPECT().ListOrders(gomock.Any()).Return(orders, nil).AnyTimes()

	t.Run("case-insensitive substring over buyer name", func(t *testing.T) {
		rec := doRequest(srv, adminRequest(http.MethodGet, "/admin/orders/search?q=ASHA", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var got []storage.Order
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		require.Len(t, got, 1)
		assert.Equal(t, "o1", got[0].ID)
	})

	t.Run("matches title field", func(t *testing.T) {
		rec := doRequest(srv, adminRequest(http.MethodGet, "/admin/orders/search?q=tint", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var got []storage.Order
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		require.Len(t, got, 1)
		assert.Equal(t, "o2", got[0].ID)
	})

	t.Run("empty query returns everything", func(t *testing.T) {
		rec := doRequest(srv, adminRequest(http.MethodGet, "/admin/orders/search?q=", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var got []storage.Order
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Len(t, got, 2)
	})

	t.Run("no match returns empty list, not null", func(t *testing.T) {
		rec := doRequest(srv, adminRequest(http.MethodGet, "/admin/orders/search?q=zzz", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})

	t.Run("unknown collection", func(t *testing.T) {
		rec := doRequest(srv, adminRequest(http.MethodGet, "/admin/invoices/search?q=x", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("searches users by name and email", func(t *testing.T) {
		mockStorage.EXPECT().ListUsers(gomock.Any()).Return([]storage.User{
			{ID: "u1", Name: "carol", Email: "carol@example.com"},
			{ID: "u2", Name: "dave", Email: "dave@example.com"},
		}, nil)

		rec := doRequest(srv, adminRequest(http.MethodGet, "/admin/users/search?q=carol", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var got []storage.User
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		require.Len(t, got, 1)
		assert.Equal(t, "u1", got[0].ID)
	})
}

func TestHandleCancelOrder(t *testing.T) {
	srv, mockStorage, mockBus := newTestServer(t)
	expectAdminAuth(t, mockStorage)

	t.Run("cancel freezes stage", func(t *testing.T) {
		cancelled := &storage.Order{
			ID:            "o1",
			Status:        storage.StatusCancelled,
			TrackingStage: tracking.StageShipped,
		}
		mockStorage.EXPECT().CancelOrder(gomock.Any(), "o1").Return(cancelled, nil)
		mockBus.EXPECT().Publish(gomock.Any(), storage.CollectionOrders).Return(nil)

		rec := doRequest(srv, adminRequest(http.MethodPost, "/admin/orders/o1/cancel", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var got storage.Order
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, storage.StatusCancelled, got.Status)
		assert.Equal(t, tracking.StageShipped, got.TrackingStage)
	})

	t.Run("missing order is a quiet no-op", func(t *testing.T) {
		mockStorage.EXPECT().CancelOrder(gomock.Any(), "nope").Return(nil, nil)

		rec := doRequest(srv, adminRequest(http.MethodPost, "/admin/orders/nope/cancel", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var got map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, "nope", got["id"])
		assert.NotContains(t, got, "error")
	})

	t.Run("publish failure does not fail the request", func(t *testing.T) {
		mockStorage.EXPECT().CancelOrder(gomock.Any(), "o2").
			Return(&storage.Order{ID: "o2", Status: storage.StatusCancelled}, nil)
		mockBus.EXPECT().Publish(gomock.Any(), storage.CollectionOrders).
			Return(errors.New("broker down"))

		rec := doRequest(srv, adminRequest(http.MethodPost, "/admin/orders/o2/cancel", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestHandleDeleteTwoPhase(t *testing.T) {
	srv, mockStorage, mockBus := newTestServer(t)
	expectAdminAuth(t, mockStorage)

	t.Run("first call issues a token, second call deletes", func(t *testing.T) {
		rec := doRequest(srv, adminRequest(http.MethodDelete, "/admin/messages/m1", nil))
		require.Equal(t, http.StatusAccepted, rec.Code)

		var issued struct {
			ConfirmToken string `json:"confirm_token"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &issued))
		require.NotEmpty(t, issued.ConfirmToken)

		mockStorage.EXPECT().DeleteMessage(gomock.Any(), "m1").Return(nil)
		mockBus.EXPECT().Publish(gomock.Any(), storage.CollectionMessages).Return(nil)

		rec = doRequest(srv, adminRequest(http.MethodDelete, "/admin/messages/m1?confirm="+issued.ConfirmToken, nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("bogus token is rejected", func(t *testing.T) {
		rec := doRequest(srv, adminRequest(http.MethodDelete, "/admin/messages/m2?confirm=not-a-token", nil))
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("token scoped to its target", func(t *testing.T) {
		rec := doRequest(srv, adminRequest(http.MethodDelete, "/admin/messages/m3", nil))
		require.Equal(t, http.StatusAccepted, rec.Code)

		var issued struct {
			ConfirmToken string `json:"confirm_token"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &issued))

		rec = doRequest(srv, adminRequest(http.MethodDelete, "/admin/messages/other?confirm="+issued.ConfirmToken, nil))
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("token is single-use", func(t *testing.T) {
		rec := doRequest(srv, adminRequest(http.MethodDelete, "/admin/reviews/r1", nil))
		require.Equal(t, http.StatusAccepted, rec.Code)

		var issued struct {
			ConfirmToken string `json:"confirm_token"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &issued))

		mockStorage.EXPECT().DeleteReview(gomock.Any(), "r1").Return(nil)
		mockBus.EXPECT().Publish(gomock.Any(), storage.CollectionReviews).Return(nil)

		rec = doRequest(srv, adminRequest(http.MethodDelete, "/admin/reviews/r1?confirm="+issued.ConfirmToken, nil))
		require.Equal(t, http.StatusOK, rec.Code)

		rec = doRequest(srv, adminRequest(http.MethodDelete, "/admin/reviews/r1?confirm="+issued.ConfirmToken, nil))
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("expired token is rejected", func(t *testing.T) {
		now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		srv.confirms.timeNow = func() time.Time { return now }

		rec := doRequest(srv, adminRequest(http.MethodDelete, "/admin/users/u9", nil))
		require.Equal(t, http.StatusAccepted, rec.Code)

		var issued struct {
			ConfirmToken string `json:"confirm_token"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &issued))

		now = now.Add(time.Minute)

		rec = doRequest(srv, adminRequest(http.MethodDelete, "/admin/users/u9?confirm="+issued.ConfirmToken, nil))
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("unknown collection", func(t *testing.T) {
		rec := doRequest(srv, adminRequest(http.MethodDelete, "/admin/invoices/x1", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHandleReviewStatus(t *testing.T) {
	srv, mockStorage, mockBus := newTestServer(t)
	expectAdminAuth(t, mockStorage)

	tests := []struct {
		name           string
		reviewID       string
		requestBody    string
		setupMocks     func()
		expectedStatus int
	}{
		{
			name:        "approve",
			reviewID:    "r1",
			requestBody: `{"status":"approved"}`,
			setupMocks: func() {
				mockStorage.EXPECT().
					SetReviewStatus(gomock.Any(), "r1", storage.ReviewApproved).
					Return(nil)
				mockBus.EXPECT().Publish(gomock.Any(), storage.CollectionReviews).Return(nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:        "invalid status",
			reviewID:    "r1",
			requestBody: `{"status":"starred"}`,
			setupMocks: func() {
				mockStorage.EXPECT().
					SetReviewStatus(gomock.Any(), "r1", "starred").
					Return(storage.ErrInvalidStatus)
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:        "missing review",
			reviewID:    "zzz",
			requestBody: `{"status":"approved"}`,
			setupMocks: func() {
				mockStorage.EXPECT().
					SetReviewStatus(gomock.Any(), "zzz", storage.ReviewApproved).
					Return(storage.ErrNotFound)
			},
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setupMocks()

			req := adminRequest(http.MethodPut, "/admin/reviews/"+tt.reviewID+"/status", []byte(tt.requestBody))
			rec := doRequest(srv, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
		})
	}
}

func TestHandleListReviewsFiltersPending(t *testing.T) {
	srv, mockStorage, _ := newTestServer(t)

	mockStorage.EXPECT().ListReviews(gomock.Any()).Return([]storage.Review{
		{ID: "r1", Status: storage.ReviewApproved},
		{ID: "r2", Status: storage.ReviewPending},
	}, nil)

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/reviews", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got []storage.Review
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "r1", got[0].ID)
}

func TestHandleCreateReviewStartsPending(t *testing.T) {
	srv, mockStorage, mockBus := newTestServer(t)

	mockStorage.EXPECT().
		CreateReview(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, review storage.Review) error {
			assert.Equal(t, storage.ReviewPending, review.Status)
			return nil
		})
	mockBus.EXPECT().Publish(gomock.Any(), storage.CollectionReviews).Return(nil)

	body := `{"name":"Lena","vehicle":"GT86","rating":5,"comment":"Flawless tint work"}`
	rec := doRequest(srv, httptest.NewRequest(http.MethodPost, "/reviews", bytes.NewBufferString(body)))
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(srv, httptest.NewRequest(http.MethodPost, "/reviews", bytes.NewBufferString(`{"rating":9}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
