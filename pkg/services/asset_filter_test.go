package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/datacove/catalog-engine/pkg/models"
)

func TestMatches_NilAndEmptyFilter(t *testing.T) {
	asset := makeTable("users", "public", "sales")

	assert.True(t, Matches(asset, nil))
	assert.True(t, Matches(asset, &FilterState{}))
	assert.True(t, Matches(asset, &FilterState{
		SelectedDatabase: FilterAll,
		SelectedSchema:   FilterAll,
		SelectedTag:      FilterAll,
		SelectedStatus:   FilterAll,
	}))
}

func TestMatches_DatabaseFilter(t *testing.T) {
	table := makeTable("users", "public", "sales")
	column := makeColumn("id", intPtr(1), table)

	assert.True(t, Matches(table, &FilterState{SelectedDatabase: "sales"}))
	assert.False(t, Matches(table, &FilterState{SelectedDatabase: "billing"}))

	// Columns resolve their database through the denormalized parent facet.
	assert.True(t, Matches(column, &FilterState{SelectedDatabase: "sales"}))
	assert.False(t, Matches(column, &FilterState{SelectedDatabase: "billing"}))
}

func TestMatches_SchemaFilter(t *testing.T) {
	table := makeTable("users", "analytics", "sales")
	column := makeColumn("id", intPtr(1), table)
	dbAsset := &models.Asset{
		ID:            uuid.New(),
		Type:          models.AssetTypeDatabase,
		DatabaseFacet: &models.DatabaseFacet{DatabaseName: "sales"},
	}

	assert.True(t, Matches(table, &FilterState{SelectedSchema: "analytics"}))
	assert.False(t, Matches(table, &FilterState{SelectedSchema: "public"}))
	assert.True(t, Matches(column, &FilterState{SelectedSchema: "analytics"}))

	// DATABASE assets resolve no schema, so a schema filter excludes them.
	assert.False(t, Matches(dbAsset, &FilterState{SelectedSchema: "analytics"}))
}

func TestMatches_TagFilter(t *testing.T) {
	tag := models.Tag{ID: uuid.New(), Name: "pii"}
	tagged := makeTable("users", "public", "sales")
	tagged.Tags = []models.Tag{tag}
	untagged := makeTable("orders", "public", "sales")

	filter := &FilterState{SelectedTag: tag.ID.String()}
	assert.True(t, Matches(tagged, filter))
	assert.False(t, Matches(untagged, filter))
}

func TestMatches_StatusFilter(t *testing.T) {
	validated := makeTable("a", "public", "db")
	validated.Status = models.StatusValidated
	untouched := makeTable("b", "public", "db")

	assert.True(t, Matches(validated, &FilterState{SelectedStatus: models.StatusValidated}))
	assert.False(t, Matches(untouched, &FilterState{SelectedStatus: models.StatusValidated}))

	// The "unverified" sentinel selects assets whose status was never set.
	assert.True(t, Matches(untouched, &FilterState{SelectedStatus: models.StatusUnverified}))
	assert.False(t, Matches(validated, &FilterState{SelectedStatus: models.StatusUnverified}))
}

func TestMatches_SearchSubstring(t *testing.T) {
	table := makeTable("Orders", "public", "sales")
	table.Description = "Customer order history"
	column := makeColumn("total_amount", intPtr(1), table)
	column.ColumnFacet.DataType = "numeric"
	column.Tags = []models.Tag{{ID: uuid.New(), Name: "finance"}}

	assert.True(t, Matches(table, &FilterState{SearchQuery: "orders"}), "case-insensitive name match")
	assert.True(t, Matches(table, &FilterState{SearchQuery: "history"}), "description match")
	assert.True(t, Matches(column, &FilterState{SearchQuery: "amount"}), "column name match")
	assert.True(t, Matches(column, &FilterState{SearchQuery: "numeric"}), "data type match")
	assert.True(t, Matches(column, &FilterState{SearchQuery: "finance"}), "tag name match")
	assert.False(t, Matches(column, &FilterState{SearchQuery: "invoice"}))
	assert.True(t, Matches(column, &FilterState{SearchQuery: "   "}), "blank query matches everything")
}

func TestMatches_MatchingIDsReplacesSubstring(t *testing.T) {
	hit := makeTable("orders", "public", "sales")
	miss := makeTable("orders_archive", "public", "sales")

	filter := &FilterState{
		SearchQuery: "orders", // would match both via substring
		MatchingIDs: map[uuid.UUID]struct{}{hit.ID: {}},
	}

	assert.True(t, Matches(hit, filter))
	assert.False(t, Matches(miss, filter), "membership set overrides the substring path")
}

func TestMatches_FilterOrderShortCircuits(t *testing.T) {
	table := makeTable("orders", "public", "sales")

	// Structural mismatch fails even though the search would match.
	filter := &FilterState{
		SelectedDatabase: "billing",
		SearchQuery:      "orders",
	}
	assert.False(t, Matches(table, filter))
}

func TestFilterState_Active(t *testing.T) {
	assert.False(t, (&FilterState{}).Active())
	assert.False(t, (&FilterState{SelectedDatabase: FilterAll}).Active())
	assert.True(t, (&FilterState{SelectedDatabase: "sales"}).Active())
	assert.True(t, (&FilterState{SearchQuery: "x"}).Active())
	assert.True(t, (&FilterState{MatchingIDs: map[uuid.UUID]struct{}{}}).Active())
	assert.False(t, (&FilterState{SearchQuery: "   "}).Active())
}

func TestFilterState_HasSearch(t *testing.T) {
	assert.False(t, (&FilterState{}).HasSearch())
	assert.True(t, (&FilterState{SearchQuery: "abc"}).HasSearch())
	// An empty (but non-nil) membership set still counts as an active search.
	assert.True(t, (&FilterState{MatchingIDs: map[uuid.UUID]struct{}{}}).HasSearch())
}
