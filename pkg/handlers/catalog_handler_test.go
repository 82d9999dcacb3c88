package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/datacove/catalog-engine/pkg/models"
	"github.com/datacove/catalog-engine/pkg/services"
)

type fakeCatalogService struct {
	assets  []*models.Asset
	tree    []*services.DatabaseNode
	results []*models.Asset
	options *services.FilterOptions
	stats   *models.DashboardStats
	err     error

	lastQuery    services.TreeQuery
	invalidated  []uuid.UUID
	explorers    map[uuid.UUID]*services.ExplorerState
	searchCalled bool
}

func newFakeCatalogService() *fakeCatalogService {
	return &fakeCatalogService{explorers: make(map[uuid.UUID]*services.ExplorerState)}
}

func (s *fakeCatalogService) Assets(ctx context.Context, databaseID uuid.UUID) ([]*models.Asset, error) {
	return s.assets, s.err
}

func (s *fakeCatalogService) Tree(ctx context.Context, databaseID uuid.UUID, query services.TreeQuery) ([]*services.DatabaseNode, error) {
	s.lastQuery = query
	return s.tree, s.err
}

func (s *fakeCatalogService) Search(ctx context.Context, databaseID uuid.UUID, query string, tagIDs []uuid.UUID, statuses []string) ([]*models.Asset, error) {
	s.searchCalled = true
	return s.results, s.err
}

func (s *fakeCatalogService) FilterOptions(ctx context.Context, databaseID uuid.UUID) (*services.FilterOptions, error) {
	return s.options, s.err
}

func (s *fakeCatalogService) DashboardStats(ctx context.Context, databaseID uuid.UUID) (*models.DashboardStats, error) {
	return s.stats, s.err
}

func (s *fakeCatalogService) ExplorerState(databaseID uuid.UUID) *services.ExplorerState {
	state, ok := s.explorers[databaseID]
	if !ok {
		state = services.NewExplorerState()
		s.explorers[databaseID] = state
	}
	return state
}

func (s *fakeCatalogService) Invalidate(databaseID uuid.UUID) {
	s.invalidated = append(s.invalidated, databaseID)
}

func newTestMux(service services.CatalogService) *http.ServeMux {
	mux := http.NewServeMux()
	NewCatalogHandler(service, zap.NewNop()).RegisterRoutes(mux)
	return mux
}

func decodeApiResponse(t *testing.T, rec *httptest.ResponseRecorder) ApiResponse {
	t.Helper()
	var response ApiResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	return response
}

func TestCatalogHandler_GetTree(t *testing.T) {
	service := newFakeCatalogService()
	service.tree = []*services.DatabaseNode{{Key: "database:sales", Name: "sales"}}
	mux := newTestMux(service)

	dbID := uuid.New()
	req := httptest.NewRequest(http.MethodGet,
		"/api/databases/"+dbID.String()+"/catalog/tree?q=orders&schema=public&status=validated", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	response := decodeApiResponse(t, rec)
	assert.True(t, response.Success)

	// Query params must land in the tree query.
	assert.Equal(t, "orders", service.lastQuery.Search)
	assert.Equal(t, "public", service.lastQuery.Schema)
	assert.Equal(t, "validated", service.lastQuery.Status)
	assert.Empty(t, service.lastQuery.Tag)
}

func TestCatalogHandler_InvalidDatabaseID(t *testing.T) {
	mux := newTestMux(newFakeCatalogService())

	req := httptest.NewRequest(http.MethodGet, "/api/databases/not-a-uuid/catalog/tree", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "invalid_database_id", body["error"])
}

func TestCatalogHandler_GetAssets(t *testing.T) {
	service := newFakeCatalogService()
	service.assets = []*models.Asset{{ID: uuid.New(), Type: models.AssetTypeTable, Name: "users"}}
	mux := newTestMux(service)

	req := httptest.NewRequest(http.MethodGet, "/api/databases/"+uuid.NewString()+"/catalog/assets", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	response := decodeApiResponse(t, rec)
	assert.True(t, response.Success)
	assert.NotNil(t, response.Data)
}

func TestCatalogHandler_Search_RequiresQuery(t *testing.T) {
	service := newFakeCatalogService()
	mux := newTestMux(service)

	req := httptest.NewRequest(http.MethodGet, "/api/databases/"+uuid.NewString()+"/catalog/search", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, service.searchCalled)
}

func TestCatalogHandler_Search_InvalidTagID(t *testing.T) {
	mux := newTestMux(newFakeCatalogService())

	req := httptest.NewRequest(http.MethodGet,
		"/api/databases/"+uuid.NewString()+"/catalog/search?q=orders&tags=nope", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "invalid_tag_id", body["error"])
}

func TestCatalogHandler_Search_OK(t *testing.T) {
	service := newFakeCatalogService()
	service.results = []*models.Asset{{ID: uuid.New(), Type: models.AssetTypeTable, Name: "orders"}}
	mux := newTestMux(service)

	req := httptest.NewRequest(http.MethodGet,
		"/api/databases/"+uuid.NewString()+"/catalog/search?q=orders&statuses=validated,unverified", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, service.searchCalled)
}

func TestCatalogHandler_ServiceErrorReturns500(t *testing.T) {
	service := newFakeCatalogService()
	service.err = assert.AnError
	mux := newTestMux(service)

	req := httptest.NewRequest(http.MethodGet, "/api/databases/"+uuid.NewString()+"/catalog/dashboard-stats", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "internal_error", body["error"])
}

func TestCatalogHandler_Refresh(t *testing.T) {
	service := newFakeCatalogService()
	mux := newTestMux(service)
	dbID := uuid.New()

	req := httptest.NewRequest(http.MethodPost, "/api/databases/"+dbID.String()+"/catalog/refresh", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, service.invalidated, 1)
	assert.Equal(t, dbID, service.invalidated[0])
}

func TestCatalogHandler_ExpandedRoundTrip(t *testing.T) {
	service := newFakeCatalogService()
	mux := newTestMux(service)
	dbID := uuid.New()
	base := "/api/databases/" + dbID.String() + "/explorer/expanded"

	// Set a node expanded.
	req := httptest.NewRequest(http.MethodPut, base,
		strings.NewReader(`{"key":"database:sales","expanded":true}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// Read it back.
	req = httptest.NewRequest(http.MethodGet, base, nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Success bool             `json:"success"`
		Data    ExpandedResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	assert.Equal(t, []string{"database:sales"}, envelope.Data.Expanded)
}

func TestCatalogHandler_ExpandedToggle(t *testing.T) {
	service := newFakeCatalogService()
	mux := newTestMux(service)
	dbID := uuid.New()
	base := "/api/databases/" + dbID.String() + "/explorer/expanded"

	// Omitting "expanded" toggles: collapsed -> expanded.
	req := httptest.NewRequest(http.MethodPut, base, strings.NewReader(`{"key":"table:abc"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Success bool                 `json:"success"`
		Data    ExpandedNodeResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	assert.True(t, envelope.Data.Expanded)

	assert.True(t, service.ExplorerState(dbID).IsExpanded("table:abc"))
}

func TestCatalogHandler_ExpandedRequiresKey(t *testing.T) {
	mux := newTestMux(newFakeCatalogService())

	req := httptest.NewRequest(http.MethodPut,
		"/api/databases/"+uuid.NewString()+"/explorer/expanded", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
