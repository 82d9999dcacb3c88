package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/datacove/catalog-engine/pkg/apperrors"
	"github.com/datacove/catalog-engine/pkg/config"
	"github.com/datacove/catalog-engine/pkg/models"
)

type fakeAssetRepo struct {
	assets      []*models.Asset
	searchIDs   []uuid.UUID
	searchErr   error
	listCalls   int
	searchCalls int
	lastQuery   string
}

func (r *fakeAssetRepo) Get(ctx context.Context, id uuid.UUID) (*models.Asset, error) {
	for _, asset := range r.assets {
		if asset.ID == id {
			return asset, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *fakeAssetRepo) ListByDatabase(ctx context.Context, databaseID uuid.UUID) ([]*models.Asset, error) {
	r.listCalls++
	return r.assets, nil
}

func (r *fakeAssetRepo) Search(ctx context.Context, databaseID uuid.UUID, query string, tagIDs []uuid.UUID, statuses []string, limit int) ([]uuid.UUID, error) {
	r.searchCalls++
	r.lastQuery = query
	if r.searchErr != nil {
		return nil, r.searchErr
	}
	return r.searchIDs, nil
}

func newTestCatalogService(repo *fakeAssetRepo) CatalogService {
	cfg := &config.CatalogConfig{
		SnapshotTTLMinutes:   5,
		StatsCacheTTLMinutes: 2,
		SearchLimit:          50,
	}
	return NewCatalogService(repo, nil, cfg, zap.NewNop())
}

func TestCatalogService_SnapshotCached(t *testing.T) {
	f := newTreeFixture()
	repo := &fakeAssetRepo{assets: f.assets}
	svc := newTestCatalogService(repo)
	ctx := context.Background()
	databaseID := uuid.New()

	_, err := svc.Assets(ctx, databaseID)
	require.NoError(t, err)
	_, err = svc.Assets(ctx, databaseID)
	require.NoError(t, err)

	assert.Equal(t, 1, repo.listCalls, "second read within TTL must hit the snapshot")

	svc.Invalidate(databaseID)
	_, err = svc.Assets(ctx, databaseID)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.listCalls, "invalidate must force a refetch")
}

func TestCatalogService_SnapshotPerDatabase(t *testing.T) {
	f := newTreeFixture()
	repo := &fakeAssetRepo{assets: f.assets}
	svc := newTestCatalogService(repo)
	ctx := context.Background()

	_, err := svc.Assets(ctx, uuid.New())
	require.NoError(t, err)
	_, err = svc.Assets(ctx, uuid.New())
	require.NoError(t, err)

	assert.Equal(t, 2, repo.listCalls, "each database gets its own snapshot")
}

func TestCatalogService_TreeShortQueryUsesSubstring(t *testing.T) {
	f := newTreeFixture()
	repo := &fakeAssetRepo{assets: f.assets}
	svc := newTestCatalogService(repo)

	// Two characters: below the server-search threshold.
	tree, err := svc.Tree(context.Background(), uuid.New(), TreeQuery{Search: "am"})
	require.NoError(t, err)

	assert.Equal(t, 0, repo.searchCalls, "short queries stay on the substring path")
	require.Len(t, tree, 1)
	require.Len(t, tree[0].Schemas, 1)
	// "am" matches the name and amount columns by substring.
	tables := tree[0].Schemas[0].Tables
	require.Len(t, tables, 2)
	assert.Equal(t, "customers", tables[0].Asset.DisplayName())
	assert.Equal(t, "orders", tables[1].Asset.DisplayName())
}

func TestCatalogService_TreeLongQueryUsesServerSearch(t *testing.T) {
	f := newTreeFixture()
	repo := &fakeAssetRepo{
		assets:    f.assets,
		searchIDs: []uuid.UUID{f.orders.ID},
	}
	svc := newTestCatalogService(repo)

	tree, err := svc.Tree(context.Background(), uuid.New(), TreeQuery{Search: "order history"})
	require.NoError(t, err)

	assert.Equal(t, 1, repo.searchCalls)
	assert.Equal(t, "order history", repo.lastQuery)

	require.Len(t, tree, 1)
	schemaNode := tree[0].Schemas[0]
	require.Len(t, schemaNode.Tables, 1)
	assert.Equal(t, f.orders.ID, schemaNode.Tables[0].Asset.ID)
	// The table was the hit; its columns surface as context.
	assert.NotEmpty(t, schemaNode.Tables[0].Columns)
}

func TestCatalogService_SearchBelowMinLength(t *testing.T) {
	repo := &fakeAssetRepo{}
	svc := newTestCatalogService(repo)

	results, err := svc.Search(context.Background(), uuid.New(), "ab", nil, nil)
	require.NoError(t, err)

	assert.Empty(t, results)
	assert.Equal(t, 0, repo.searchCalls)
	assert.Equal(t, 0, repo.listCalls)
}

func TestCatalogService_SearchPreservesRankingAndSkipsUnknown(t *testing.T) {
	f := newTreeFixture()
	repo := &fakeAssetRepo{
		assets: f.assets,
		// Ranked order with one id the snapshot no longer contains.
		searchIDs: []uuid.UUID{f.orders.ID, uuid.New(), f.customers.ID},
	}
	svc := newTestCatalogService(repo)

	results, err := svc.Search(context.Background(), uuid.New(), "customer orders", nil, nil)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, f.orders.ID, results[0].ID)
	assert.Equal(t, f.customers.ID, results[1].ID)
}

func TestCatalogService_FilterOptions(t *testing.T) {
	f := newTreeFixture()
	f.customers.Status = models.StatusValidated
	tag := models.Tag{ID: uuid.New(), Name: "pii"}
	f.customers.Tags = []models.Tag{tag}
	f.orders.Tags = []models.Tag{tag}

	repo := &fakeAssetRepo{assets: f.assets}
	svc := newTestCatalogService(repo)

	options, err := svc.FilterOptions(context.Background(), uuid.New())
	require.NoError(t, err)

	assert.Equal(t, []string{"public"}, options.Schemas)
	assert.Equal(t, []string{"sales"}, options.Databases)
	// The null status group surfaces as the "unverified" sentinel.
	assert.Equal(t, []string{models.StatusUnverified, models.StatusValidated}, options.Statuses)
	require.Len(t, options.Tags, 1, "shared tags are deduplicated")
	assert.Equal(t, "pii", options.Tags[0].Name)
}

func TestCatalogService_DashboardStatsWithoutRedis(t *testing.T) {
	f := newTreeFixture()
	f.customers.Description = "documented"
	repo := &fakeAssetRepo{assets: f.assets}
	svc := newTestCatalogService(repo)

	stats, err := svc.DashboardStats(context.Background(), uuid.New())
	require.NoError(t, err)

	assert.Equal(t, len(f.assets), stats.Overall.TotalAssets)
	require.Len(t, stats.Databases, 1)
	assert.Equal(t, "sales", stats.Databases[0].DatabaseName)
}

func TestCatalogService_ExplorerStatePerDatabase(t *testing.T) {
	svc := newTestCatalogService(&fakeAssetRepo{})
	a := uuid.New()
	b := uuid.New()

	svc.ExplorerState(a).SetExpanded("database:sales", true)

	assert.True(t, svc.ExplorerState(a).IsExpanded("database:sales"))
	assert.False(t, svc.ExplorerState(b).IsExpanded("database:sales"), "state must not leak across databases")
	assert.Same(t, svc.ExplorerState(a), svc.ExplorerState(a))
}
