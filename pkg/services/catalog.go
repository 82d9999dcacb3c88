package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/datacove/catalog-engine/pkg/config"
	"github.com/datacove/catalog-engine/pkg/models"
	"github.com/datacove/catalog-engine/pkg/repositories"
)

// serverSearchMinLength is the minimum query length that triggers the
// ranked server-side search. Shorter queries fall back to the client-style
// substring predicate over the snapshot, which stays cheap at that length.
const serverSearchMinLength = 3

// TreeQuery carries the explorer filter parameters for a tree request.
// Empty fields (or FilterAll) mean no constraint on that axis.
type TreeQuery struct {
	Search   string
	Database string
	Schema   string
	Tag      string
	Status   string
}

// FilterOptions lists the values available for each explorer filter,
// collected from the current snapshot.
type FilterOptions struct {
	Databases []string     `json:"databases"`
	Schemas   []string     `json:"schemas"`
	Statuses  []string     `json:"statuses"`
	Tags      []models.Tag `json:"tags"`
}

// CatalogService exposes the catalog read model: asset snapshots, the
// filtered explorer tree, ranked search, filter options and dashboard stats.
type CatalogService interface {
	// Assets returns the current asset snapshot for a database.
	Assets(ctx context.Context, databaseID uuid.UUID) ([]*models.Asset, error)

	// Tree builds the filtered explorer tree for a database.
	Tree(ctx context.Context, databaseID uuid.UUID, query TreeQuery) ([]*DatabaseNode, error)

	// Search returns ranked matching assets for a free-text query.
	Search(ctx context.Context, databaseID uuid.UUID, query string, tagIDs []uuid.UUID, statuses []string) ([]*models.Asset, error)

	// FilterOptions returns the filter values present in the snapshot.
	FilterOptions(ctx context.Context, databaseID uuid.UUID) (*FilterOptions, error)

	// DashboardStats computes (or serves cached) dashboard statistics.
	DashboardStats(ctx context.Context, databaseID uuid.UUID) (*models.DashboardStats, error)

	// ExplorerState returns the expand/collapse state for a database's tree.
	ExplorerState(databaseID uuid.UUID) *ExplorerState

	// Invalidate drops the snapshot for a database so the next read refetches.
	Invalidate(databaseID uuid.UUID)
}

// snapshot is one database's cached asset list plus its derived indexes.
// The version counter ties the IndexCache to this particular fetch.
type snapshot struct {
	assets    []*models.Asset
	fetchedAt time.Time
	version   uint64
	indexes   IndexCache
}

type catalogService struct {
	repo   repositories.AssetRepository
	redis  *redis.Client // nil when Redis is not configured
	cfg    *config.CatalogConfig
	logger *zap.Logger

	mu        sync.Mutex
	snapshots map[uuid.UUID]*snapshot
	explorers map[uuid.UUID]*ExplorerState
	version   uint64
}

// NewCatalogService creates a new CatalogService. The redis client is
// optional; when nil, dashboard stats are recomputed on every request.
func NewCatalogService(repo repositories.AssetRepository, redisClient *redis.Client, cfg *config.CatalogConfig, logger *zap.Logger) CatalogService {
	return &catalogService{
		repo:      repo,
		redis:     redisClient,
		cfg:       cfg,
		logger:    logger,
		snapshots: make(map[uuid.UUID]*snapshot),
		explorers: make(map[uuid.UUID]*ExplorerState),
	}
}

var _ CatalogService = (*catalogService)(nil)

// getSnapshot returns a fresh snapshot for the database, refetching from the
// repository when the cached one is missing or older than the configured TTL.
func (s *catalogService) getSnapshot(ctx context.Context, databaseID uuid.UUID) (*snapshot, error) {
	ttl := time.Duration(s.cfg.SnapshotTTLMinutes) * time.Minute

	s.mu.Lock()
	snap, ok := s.snapshots[databaseID]
	if ok && time.Since(snap.fetchedAt) < ttl {
		s.mu.Unlock()
		return snap, nil
	}
	s.mu.Unlock()

	assets, err := s.repo.ListByDatabase(ctx, databaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another request may have refreshed while we were fetching; prefer the
	// newer snapshot to avoid rolling the version backwards.
	if snap, ok = s.snapshots[databaseID]; ok && time.Since(snap.fetchedAt) < ttl {
		return snap, nil
	}

	s.version++
	snap = &snapshot{
		assets:    assets,
		fetchedAt: time.Now(),
		version:   s.version,
	}
	s.snapshots[databaseID] = snap

	s.logger.Debug("Refreshed catalog snapshot",
		zap.String("database_id", databaseID.String()),
		zap.Int("assets", len(assets)))

	return snap, nil
}

func (s *catalogService) Assets(ctx context.Context, databaseID uuid.UUID) ([]*models.Asset, error) {
	snap, err := s.getSnapshot(ctx, databaseID)
	if err != nil {
		return nil, err
	}
	return snap.assets, nil
}

func (s *catalogService) Tree(ctx context.Context, databaseID uuid.UUID, query TreeQuery) ([]*DatabaseNode, error) {
	snap, err := s.getSnapshot(ctx, databaseID)
	if err != nil {
		return nil, err
	}

	filter := &FilterState{
		SelectedDatabase: query.Database,
		SelectedSchema:   query.Schema,
		SelectedTag:      query.Tag,
		SelectedStatus:   query.Status,
	}

	search := strings.TrimSpace(query.Search)
	if len(search) >= serverSearchMinLength {
		ids, err := s.repo.Search(ctx, databaseID, search, nil, nil, s.cfg.SearchLimit)
		if err != nil {
			return nil, fmt.Errorf("failed to search catalog: %w", err)
		}
		matching := make(map[uuid.UUID]struct{}, len(ids))
		for _, id := range ids {
			matching[id] = struct{}{}
		}
		filter.MatchingIDs = matching
	} else {
		filter.SearchQuery = search
	}

	indexes := snap.indexes.Get(snap.version, snap.assets)
	return BuildFilteredTree(snap.assets, indexes, filter), nil
}

func (s *catalogService) Search(ctx context.Context, databaseID uuid.UUID, query string, tagIDs []uuid.UUID, statuses []string) ([]*models.Asset, error) {
	query = strings.TrimSpace(query)
	if len(query) < serverSearchMinLength {
		return []*models.Asset{}, nil
	}

	ids, err := s.repo.Search(ctx, databaseID, query, tagIDs, statuses, s.cfg.SearchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to search catalog: %w", err)
	}

	snap, err := s.getSnapshot(ctx, databaseID)
	if err != nil {
		return nil, err
	}
	indexes := snap.indexes.Get(snap.version, snap.assets)

	// Preserve the ranked order from the search; skip ids missing from the
	// snapshot (deleted since the last refresh).
	results := make([]*models.Asset, 0, len(ids))
	for _, id := range ids {
		if asset, ok := indexes.AssetsByID[id]; ok {
			results = append(results, asset)
		}
	}
	return results, nil
}

func (s *catalogService) FilterOptions(ctx context.Context, databaseID uuid.UUID) (*FilterOptions, error) {
	snap, err := s.getSnapshot(ctx, databaseID)
	if err != nil {
		return nil, err
	}
	indexes := snap.indexes.Get(snap.version, snap.assets)

	options := &FilterOptions{
		Databases: indexes.DatabaseOptions,
		Schemas:   indexes.SchemaOptions,
	}

	// Statuses present in the snapshot, with the null group surfaced under
	// the "unverified" sentinel the filter understands.
	statuses := make([]string, 0, len(indexes.AssetsByStatus))
	for status := range indexes.AssetsByStatus {
		if status == nullStatusKey {
			status = models.StatusUnverified
		}
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)
	options.Statuses = statuses

	seen := make(map[uuid.UUID]struct{})
	for _, asset := range snap.assets {
		for _, tag := range asset.Tags {
			if _, ok := seen[tag.ID]; ok {
				continue
			}
			seen[tag.ID] = struct{}{}
			options.Tags = append(options.Tags, tag)
		}
	}
	sort.SliceStable(options.Tags, func(i, j int) bool {
		return options.Tags[i].Name < options.Tags[j].Name
	})

	return options, nil
}

func (s *catalogService) DashboardStats(ctx context.Context, databaseID uuid.UUID) (*models.DashboardStats, error) {
	cacheKey := "catalog:stats:" + databaseID.String()

	if s.redis != nil {
		cached, err := s.redis.Get(ctx, cacheKey).Result()
		if err == nil {
			var stats models.DashboardStats
			if err := json.Unmarshal([]byte(cached), &stats); err == nil {
				return &stats, nil
			}
			// Corrupt cache entry: fall through and recompute.
			s.logger.Warn("Discarding unreadable cached dashboard stats",
				zap.String("database_id", databaseID.String()))
		} else if err != redis.Nil {
			s.logger.Warn("Redis unavailable for dashboard stats, computing directly",
				zap.Error(err))
		}
	}

	snap, err := s.getSnapshot(ctx, databaseID)
	if err != nil {
		return nil, err
	}
	stats := ComputeDashboardStats(snap.assets)

	if s.redis != nil {
		payload, err := json.Marshal(stats)
		if err == nil {
			ttl := time.Duration(s.cfg.StatsCacheTTLMinutes) * time.Minute
			if err := s.redis.Set(ctx, cacheKey, payload, ttl).Err(); err != nil {
				s.logger.Warn("Failed to cache dashboard stats", zap.Error(err))
			}
		}
	}

	return stats, nil
}

func (s *catalogService) ExplorerState(databaseID uuid.UUID) *ExplorerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.explorers[databaseID]
	if !ok {
		state = NewExplorerState()
		s.explorers[databaseID] = state
	}
	return state
}

func (s *catalogService) Invalidate(databaseID uuid.UUID) {
	s.mu.Lock()
	delete(s.snapshots, databaseID)
	s.mu.Unlock()

	if s.redis != nil {
		cacheKey := "catalog:stats:" + databaseID.String()
		if err := s.redis.Del(context.Background(), cacheKey).Err(); err != nil {
			s.logger.Warn("Failed to drop cached dashboard stats", zap.Error(err))
		}
	}
}
