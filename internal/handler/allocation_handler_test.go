package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/caridad-cloud/allocation-service/internal/domain"
	"github.com/caridad-cloud/allocation-service/internal/repository"
	"github.com/caridad-cloud/allocation-service/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubAPI struct {
	records    []domain.DonationRecord
	warehouses []domain.Warehouse
	createErr  error
}

func (s *stubAPI) FetchDonationRecords(context.Context) ([]domain.DonationRecord, error) {
	return s.records, nil
}

func (s *stubAPI) FetchWarehouses(context.Context) ([]domain.Warehouse, error) {
	return s.warehouses, nil
}

func (s *stubAPI) CreatePackage(context.Context, domain.PackageCommand) error {
	return s.createErr
}

type stubStore struct {
	sessions map[string]*domain.AllocationSession
}

func (s *stubStore) CreateSession(_ context.Context, sess *domain.AllocationSession) error {
	s.sessions[sess.SessionID] = sess
	return nil
}

func (s *stubStore) GetSession(_ context.Context, id string) (*domain.AllocationSession, error) {
	sess, ok := s.sessions[id]
	if !ok {
		return nil, repository.ErrSessionNotFound
	}
	return sess, nil
}

func (s *stubStore) SaveSubmission(context.Context, string, map[string]domain.CommandOutcome, []domain.CellAssignment) error {
	return nil
}

func (s *stubStore) UpdateOutcomeStatus(context.Context, string, int, string) error {
	return nil
}

func setupRouter(api *stubAPI) (*gin.Engine, *stubStore) {
	gin.SetMode(gin.TestMode)

	store := &stubStore{sessions: map[string]*domain.AllocationSession{}}
	svc := service.NewAllocationService(api, store, nil, nil, zap.NewNop())
	h := NewAllocationHandler(svc, zap.NewNop())

	router := gin.New()
	router.POST("/allocations", h.OpenAllocation)
	router.POST("/allocations/:id/submit", h.SubmitAllocation)
	router.GET("/allocations/:id", h.GetSession)
	return router, store
}

func postJSON(t *testing.T, router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func defaultAPI() *stubAPI {
	return &stubAPI{
		records: []domain.DonationRecord{
			{ID: 1, ItemName: "Agua", WarehouseID: 1, RemainingQuantity: 6, Policy: domain.PolicyPartial},
		},
		warehouses: []domain.Warehouse{{ID: 1, Name: "Central"}},
	}
}

func openSession(t *testing.T, router *gin.Engine) string {
	t.Helper()
	w := postJSON(t, router, "/allocations", domain.OpenAllocationRequest{
		RequestID:  42,
		Manifest:   "Agua:6",
		OperatorCI: "1234567",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		SessionID string `json:"session_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.SessionID
}

func TestOpenAllocationHandler(t *testing.T) {
	router, _ := setupRouter(defaultAPI())

	t.Run("creates a session", func(t *testing.T) {
		id := openSession(t, router)
		assert.NotEmpty(t, id)
	})

	t.Run("missing required fields", func(t *testing.T) {
		w := postJSON(t, router, "/allocations", gin.H{"manifest": "Agua:1"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestSubmitAllocationHandler(t *testing.T) {
	t.Run("validation failure returns the full correction list", func(t *testing.T) {
		router, _ := setupRouter(defaultAPI())
		id := openSession(t, router)

		w := postJSON(t, router, "/allocations/"+id+"/submit", domain.SubmitAllocationRequest{
			Assignments: []domain.CellAssignment{
				{ItemName: "Agua", WarehouseID: 1, Quantity: 5},
			},
		})
		require.Equal(t, http.StatusUnprocessableEntity, w.Code)

		var resp struct {
			ValidationErrors []string `json:"validation_errors"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, []string{"Must assign exactly 6 units of Agua"}, resp.ValidationErrors)
	})

	t.Run("successful submission returns the report", func(t *testing.T) {
		router, _ := setupRouter(defaultAPI())
		id := openSession(t, router)

		w := postJSON(t, router, "/allocations/"+id+"/submit", domain.SubmitAllocationRequest{
			Assignments: []domain.CellAssignment{
				{ItemName: "Agua", WarehouseID: 1, Quantity: 6},
			},
		})
		require.Equal(t, http.StatusOK, w.Code)

		var report domain.SubmissionReport
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
		assert.Equal(t, []int{1}, report.Succeeded)
	})

	t.Run("submission failure returns multi-status", func(t *testing.T) {
		api := defaultAPI()
		router, _ := setupRouter(api)
		id := openSession(t, router)
		api.createErr = errors.New("upstream down")

		w := postJSON(t, router, "/allocations/"+id+"/submit", domain.SubmitAllocationRequest{
			Assignments: []domain.CellAssignment{
				{ItemName: "Agua", WarehouseID: 1, Quantity: 6},
			},
		})
		require.Equal(t, http.StatusMultiStatus, w.Code)

		var report domain.SubmissionReport
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
		assert.Equal(t, []int{1}, report.Failed)
	})

	t.Run("unknown session", func(t *testing.T) {
		router, _ := setupRouter(defaultAPI())

		w := postJSON(t, router, "/allocations/missing/submit", domain.SubmitAllocationRequest{
			Assignments: []domain.CellAssignment{
				{ItemName: "Agua", WarehouseID: 1, Quantity: 6},
			},
		})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestGetSessionHandler(t *testing.T) {
	router, _ := setupRouter(defaultAPI())
	id := openSession(t, router)

	t.Run("returns the session", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/allocations/"+id, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		var session domain.AllocationSession
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &session))
		assert.Equal(t, 42, session.RequestID)
	})

	t.Run("unknown session", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/allocations/missing", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
