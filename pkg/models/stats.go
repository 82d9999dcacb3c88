package models

import (
	"time"

	"github.com/google/uuid"
)

// OverallStats summarizes documentation progress across a whole catalog.
type OverallStats struct {
	TotalAssets          int     `json:"total_assets"`
	CompletionPercentage float64 `json:"completion_percentage"`
	AssetsValidated      int     `json:"assets_validated"`
	AssetsAIGenerated    int     `json:"assets_ai_generated"`
	AssetsToReview       int     `json:"assets_to_review"`
}

// SchemaStats summarizes a single schema's tables.
type SchemaStats struct {
	SchemaName           string    `json:"schema_name"`
	SchemaAssetID        uuid.UUID `json:"schema_asset_id"`
	TableCount           int       `json:"table_count"`
	CompletionPercentage float64   `json:"completion_percentage"`
}

// DatabaseStats rolls schema stats up to the database level.
type DatabaseStats struct {
	DatabaseAssetID      uuid.UUID     `json:"database_asset_id"`
	DatabaseName         string        `json:"database_name"`
	TotalSchemas         int           `json:"total_schemas"`
	TotalTables          int           `json:"total_tables"`
	TotalColumns         int           `json:"total_columns"`
	CompletionPercentage float64       `json:"completion_percentage"`
	LastUpdated          *time.Time    `json:"last_updated"`
	Schemas              []SchemaStats `json:"schemas"`
}

// DashboardStats is the full dashboard payload: one overall record plus
// per-database rollups sorted by database name.
type DashboardStats struct {
	Overall   OverallStats     `json:"overall"`
	Databases []*DatabaseStats `json:"databases"`
}

// CatalogStats is a reduction over an arbitrary subset of assets, usable at
// any level (database, schema, table). Columns are excluded from the
// completion rate since they are low-level metadata.
type CatalogStats struct {
	TotalAssets            int     `json:"total_assets"`
	CompletionScore        float64 `json:"completion_score"`
	AssetsToReview         int     `json:"assets_to_review"`
	AssetsValidated        int     `json:"assets_validated"`
	AssetsWithAISuggestion int     `json:"assets_with_ai_suggestions"`
	AssetsWithDescription  int     `json:"assets_with_description"`
}
