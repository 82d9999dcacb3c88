package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/datacove/catalog-engine/pkg/apperrors"
	"github.com/datacove/catalog-engine/pkg/services"
)

// --- Request Types ---

// UpdateExpandedRequest records an explicit expand/collapse choice for one
// tree node, or toggles it when Expanded is omitted.
type UpdateExpandedRequest struct {
	Key      string `json:"key"`
	Expanded *bool  `json:"expanded,omitempty"`
}

// --- Response Types ---

// ExpandedResponse lists the currently expanded tree node keys.
type ExpandedResponse struct {
	Expanded []string `json:"expanded"`
}

// ExpandedNodeResponse echoes one node's expand state after an update.
type ExpandedNodeResponse struct {
	Key      string `json:"key"`
	Expanded bool   `json:"expanded"`
}

// TreeResponse wraps the explorer tree.
type TreeResponse struct {
	Databases []*services.DatabaseNode `json:"databases"`
}

// CatalogHandler handles catalog explorer and dashboard endpoints.
type CatalogHandler struct {
	service services.CatalogService
	logger  *zap.Logger
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(service services.CatalogService, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{service: service, logger: logger}
}

// RegisterRoutes registers the catalog handler's routes on the given mux.
func (h *CatalogHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/databases/{dbid}/catalog/assets", h.GetAssets)
	mux.HandleFunc("GET /api/databases/{dbid}/catalog/tree", h.GetTree)
	mux.HandleFunc("GET /api/databases/{dbid}/catalog/search", h.Search)
	mux.HandleFunc("GET /api/databases/{dbid}/catalog/filter-options", h.GetFilterOptions)
	mux.HandleFunc("GET /api/databases/{dbid}/catalog/dashboard-stats", h.GetDashboardStats)
	mux.HandleFunc("POST /api/databases/{dbid}/catalog/refresh", h.Refresh)
	mux.HandleFunc("GET /api/databases/{dbid}/explorer/expanded", h.GetExpanded)
	mux.HandleFunc("PUT /api/databases/{dbid}/explorer/expanded", h.PutExpanded)
}

// parseDatabaseID extracts and validates the database ID from the URL path.
// Writes a 400 response and returns false on failure.
func parseDatabaseID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	raw := r.PathValue("dbid")
	id, err := uuid.Parse(raw)
	if err != nil {
		logger.Warn("Invalid database ID in path", zap.String("dbid", raw))
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_database_id", "database ID must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *CatalogHandler) writeError(w http.ResponseWriter, err error, operation string) {
	if errors.Is(err, apperrors.ErrNotFound) {
		_ = ErrorResponse(w, http.StatusNotFound, "not_found", "resource not found")
		return
	}
	h.logger.Error("Catalog operation failed", zap.String("operation", operation), zap.Error(err))
	_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "internal server error")
}

// GetAssets handles GET /api/databases/{dbid}/catalog/assets
// Returns the flat asset snapshot for a database.
func (h *CatalogHandler) GetAssets(w http.ResponseWriter, r *http.Request) {
	databaseID, ok := parseDatabaseID(w, r, h.logger)
	if !ok {
		return
	}

	assets, err := h.service.Assets(r.Context(), databaseID)
	if err != nil {
		h.writeError(w, err, "assets")
		return
	}

	response := ApiResponse{Success: true, Data: assets}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// GetTree handles GET /api/databases/{dbid}/catalog/tree
// Returns the filtered Database -> Schema -> Table -> Column explorer tree.
// Filter query params: q, database, schema, tag, status.
func (h *CatalogHandler) GetTree(w http.ResponseWriter, r *http.Request) {
	databaseID, ok := parseDatabaseID(w, r, h.logger)
	if !ok {
		return
	}

	params := r.URL.Query()
	query := services.TreeQuery{
		Search:   params.Get("q"),
		Database: params.Get("database"),
		Schema:   params.Get("schema"),
		Tag:      params.Get("tag"),
		Status:   params.Get("status"),
	}

	tree, err := h.service.Tree(r.Context(), databaseID, query)
	if err != nil {
		h.writeError(w, err, "tree")
		return
	}

	response := ApiResponse{Success: true, Data: TreeResponse{Databases: tree}}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Search handles GET /api/databases/{dbid}/catalog/search
// Runs ranked hybrid search. Query params: q (required, min 3 chars),
// tags (comma-separated tag IDs), statuses (comma-separated).
func (h *CatalogHandler) Search(w http.ResponseWriter, r *http.Request) {
	databaseID, ok := parseDatabaseID(w, r, h.logger)
	if !ok {
		return
	}

	params := r.URL.Query()
	query := strings.TrimSpace(params.Get("q"))
	if query == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "missing_query", "query parameter 'q' is required")
		return
	}

	var tagIDs []uuid.UUID
	if raw := params.Get("tags"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			id, err := uuid.Parse(strings.TrimSpace(part))
			if err != nil {
				_ = ErrorResponse(w, http.StatusBadRequest, "invalid_tag_id", "tag IDs must be valid UUIDs")
				return
			}
			tagIDs = append(tagIDs, id)
		}
	}

	var statuses []string
	if raw := params.Get("statuses"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			if s := strings.TrimSpace(part); s != "" {
				statuses = append(statuses, s)
			}
		}
	}

	results, err := h.service.Search(r.Context(), databaseID, query, tagIDs, statuses)
	if err != nil {
		h.writeError(w, err, "search")
		return
	}

	response := ApiResponse{Success: true, Data: results}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// GetFilterOptions handles GET /api/databases/{dbid}/catalog/filter-options
// Returns the filter values present in the current snapshot.
func (h *CatalogHandler) GetFilterOptions(w http.ResponseWriter, r *http.Request) {
	databaseID, ok := parseDatabaseID(w, r, h.logger)
	if !ok {
		return
	}

	options, err := h.service.FilterOptions(r.Context(), databaseID)
	if err != nil {
		h.writeError(w, err, "filter_options")
		return
	}

	response := ApiResponse{Success: true, Data: options}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// GetDashboardStats handles GET /api/databases/{dbid}/catalog/dashboard-stats
// Returns overall plus per-database documentation rollups.
func (h *CatalogHandler) GetDashboardStats(w http.ResponseWriter, r *http.Request) {
	databaseID, ok := parseDatabaseID(w, r, h.logger)
	if !ok {
		return
	}

	stats, err := h.service.DashboardStats(r.Context(), databaseID)
	if err != nil {
		h.writeError(w, err, "dashboard_stats")
		return
	}

	response := ApiResponse{Success: true, Data: stats}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Refresh handles POST /api/databases/{dbid}/catalog/refresh
// Drops the cached snapshot so the next read refetches from the store.
func (h *CatalogHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	databaseID, ok := parseDatabaseID(w, r, h.logger)
	if !ok {
		return
	}

	h.service.Invalidate(databaseID)

	response := ApiResponse{Success: true, Message: "catalog snapshot invalidated"}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// GetExpanded handles GET /api/databases/{dbid}/explorer/expanded
// Returns the expanded tree node keys for the database's explorer.
func (h *CatalogHandler) GetExpanded(w http.ResponseWriter, r *http.Request) {
	databaseID, ok := parseDatabaseID(w, r, h.logger)
	if !ok {
		return
	}

	keys := h.service.ExplorerState(databaseID).ExpandedKeys()
	sort.Strings(keys)

	response := ApiResponse{Success: true, Data: ExpandedResponse{Expanded: keys}}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// PutExpanded handles PUT /api/databases/{dbid}/explorer/expanded
// Sets one node's expand state, or toggles it when "expanded" is omitted.
func (h *CatalogHandler) PutExpanded(w http.ResponseWriter, r *http.Request) {
	databaseID, ok := parseDatabaseID(w, r, h.logger)
	if !ok {
		return
	}

	var req UpdateExpandedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Key == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "missing_key", "node key is required")
		return
	}

	state := h.service.ExplorerState(databaseID)
	var expanded bool
	if req.Expanded != nil {
		state.SetExpanded(req.Key, *req.Expanded)
		expanded = *req.Expanded
	} else {
		expanded = state.Toggle(req.Key)
	}

	response := ApiResponse{Success: true, Data: ExpandedNodeResponse{Key: req.Key, Expanded: expanded}}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
