package services

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/datacove/catalog-engine/pkg/models"
)

// ComputeDashboardStats reduces a flat asset list into the dashboard
// payload: one overall record plus per-database rollups with per-schema
// breakdowns. Pure, single pass plus grouping; never errors.
//
// Completion is measured over non-COLUMN assets only (columns are low-level
// metadata). Published-by-AI and validated assets both count as AI-generated;
// validated additionally counts as validated.
func ComputeDashboardStats(assets []*models.Asset) *models.DashboardStats {
	stats := &models.DashboardStats{
		Overall: computeOverallStats(assets),
	}

	type schemaGroup struct {
		asset      *models.Asset
		databaseID uuid.UUID // owning DATABASE asset id, Nil when unresolved
		tables     []*models.Asset
	}

	databasesByID := make(map[uuid.UUID]*models.Asset)
	schemasByID := make(map[uuid.UUID]*schemaGroup)

	for _, asset := range assets {
		switch asset.Type {
		case models.AssetTypeDatabase:
			databasesByID[asset.ID] = asset
		case models.AssetTypeSchema:
			if _, ok := schemasByID[asset.ID]; ok {
				continue
			}
			group := &schemaGroup{asset: asset}
			if asset.SchemaFacet != nil {
				group.databaseID = asset.SchemaFacet.ParentDatabaseAssetID
			}
			schemasByID[asset.ID] = group
		}
	}

	// Attribute tables to schema groups and columns/tables to databases.
	tableDatabase := make(map[uuid.UUID]uuid.UUID)
	columnCount := make(map[uuid.UUID]int)
	lastUpdated := make(map[uuid.UUID]time.Time)

	touch := func(dbID uuid.UUID, at time.Time) {
		if dbID == uuid.Nil {
			return
		}
		if at.After(lastUpdated[dbID]) {
			lastUpdated[dbID] = at
		}
	}

	for _, asset := range assets {
		switch asset.Type {
		case models.AssetTypeDatabase:
			touch(asset.ID, asset.UpdatedAt)
		case models.AssetTypeSchema:
			if group, ok := schemasByID[asset.ID]; ok {
				touch(group.databaseID, asset.UpdatedAt)
			}
		case models.AssetTypeTable:
			if asset.TableFacet == nil {
				continue
			}
			group, ok := schemasByID[asset.TableFacet.ParentSchemaAssetID]
			if !ok {
				continue
			}
			group.tables = append(group.tables, asset)
			tableDatabase[asset.ID] = group.databaseID
			touch(group.databaseID, asset.UpdatedAt)
		case models.AssetTypeColumn:
			if asset.ColumnFacet == nil {
				continue
			}
			if dbID, ok := tableDatabase[asset.ColumnFacet.ParentTableAssetID]; ok {
				columnCount[dbID]++
				touch(dbID, asset.UpdatedAt)
			}
		}
	}

	for dbID, dbAsset := range databasesByID {
		dbStats := &models.DatabaseStats{
			DatabaseAssetID: dbID,
			DatabaseName:    dbAsset.ResolvedDatabase(),
			TotalColumns:    columnCount[dbID],
		}

		totalTables := 0
		documentedTables := 0
		for schemaID, group := range schemasByID {
			if group.databaseID != dbID {
				continue
			}
			documented := 0
			for _, table := range group.tables {
				if table.HasDescription() {
					documented++
				}
			}
			dbStats.Schemas = append(dbStats.Schemas, models.SchemaStats{
				SchemaName:           group.asset.DisplayName(),
				SchemaAssetID:        schemaID,
				TableCount:           len(group.tables),
				CompletionPercentage: roundPercentage(documented, len(group.tables)),
			})
			totalTables += len(group.tables)
			documentedTables += documented
		}

		// Schemas sorted by name ascending.
		sort.SliceStable(dbStats.Schemas, func(i, j int) bool {
			return dbStats.Schemas[i].SchemaName < dbStats.Schemas[j].SchemaName
		})

		dbStats.TotalSchemas = len(dbStats.Schemas)
		dbStats.TotalTables = totalTables
		dbStats.CompletionPercentage = roundPercentage(documentedTables, totalTables)

		if updated, ok := lastUpdated[dbID]; ok && !updated.IsZero() {
			t := updated
			dbStats.LastUpdated = &t
		}

		stats.Databases = append(stats.Databases, dbStats)
	}

	// Databases sorted by name for deterministic output.
	sort.SliceStable(stats.Databases, func(i, j int) bool {
		return stats.Databases[i].DatabaseName < stats.Databases[j].DatabaseName
	})

	return stats
}

func computeOverallStats(assets []*models.Asset) models.OverallStats {
	overall := models.OverallStats{TotalAssets: len(assets)}

	nonColumn := 0
	documented := 0
	for _, asset := range assets {
		if asset.Type != models.AssetTypeColumn {
			nonColumn++
			if asset.HasDescription() {
				documented++
			}
		}

		switch asset.Status {
		case models.StatusValidated:
			overall.AssetsValidated++
			overall.AssetsAIGenerated++
		case models.StatusPublishedByAI:
			overall.AssetsAIGenerated++
		case models.StatusNeedsReview, models.StatusRequiresValidation:
			overall.AssetsToReview++
		}
	}

	overall.CompletionPercentage = roundPercentage(documented, nonColumn)
	return overall
}

// ComputeCatalogStats reduces an arbitrary subset of assets into a flat stat
// record, usable at any level (database, schema, table).
func ComputeCatalogStats(assets []*models.Asset) *models.CatalogStats {
	stats := &models.CatalogStats{TotalAssets: len(assets)}
	if len(assets) == 0 {
		return stats
	}

	nonColumn := 0
	for _, asset := range assets {
		if asset.Type != models.AssetTypeColumn {
			nonColumn++
			if asset.HasDescription() {
				stats.AssetsWithDescription++
			}
		}
		switch asset.Status {
		case models.StatusNeedsReview, models.StatusRequiresValidation:
			stats.AssetsToReview++
		case models.StatusValidated:
			stats.AssetsValidated++
		}
		if asset.AISuggestion != "" {
			stats.AssetsWithAISuggestion++
		}
	}

	stats.CompletionScore = roundPercentage(stats.AssetsWithDescription, nonColumn)
	return stats
}

// roundPercentage computes 100*numerator/denominator rounded to one decimal,
// guarding the zero denominator.
func roundPercentage(numerator, denominator int) float64 {
	if denominator == 0 {
		return 0
	}
	return math.Round(float64(numerator)/float64(denominator)*100*10) / 10
}
