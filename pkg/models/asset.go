package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AssetType discriminates the four kinds of catalog assets.
type AssetType string

const (
	AssetTypeDatabase AssetType = "DATABASE"
	AssetTypeSchema   AssetType = "SCHEMA"
	AssetTypeTable    AssetType = "TABLE"
	AssetTypeColumn   AssetType = "COLUMN"
)

// ValidAssetTypes contains all valid asset type values.
var ValidAssetTypes = []AssetType{
	AssetTypeDatabase,
	AssetTypeSchema,
	AssetTypeTable,
	AssetTypeColumn,
}

// IsValidAssetType checks if the given type is valid.
func IsValidAssetType(t AssetType) bool {
	for _, v := range ValidAssetTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Asset statuses track where an asset sits in the documentation workflow.
// An empty status means the asset has never been touched (stored as NULL);
// the StatusUnverified sentinel is only ever used as a filter value.
const (
	StatusValidated          = "validated"           // verified by human
	StatusHumanAuthored      = "human_authored"      // imported/written by human
	StatusPublishedByAI      = "published_by_ai"     // AI generated with high confidence
	StatusNeedsReview        = "needs_review"        // AI with medium confidence or flagged
	StatusRequiresValidation = "requires_validation" // AI with low confidence or critical
	StatusUnverified         = "unverified"          // filter sentinel for NULL status
)

// Tag is a reusable label attachable to multiple assets.
type Tag struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
}

// DatabaseFacet carries database-specific metadata for DATABASE assets.
type DatabaseFacet struct {
	AssetID      uuid.UUID `json:"asset_id"`
	DatabaseName string    `json:"database_name"`
}

// SchemaFacet carries schema-specific metadata for SCHEMA assets.
type SchemaFacet struct {
	AssetID               uuid.UUID `json:"asset_id"`
	DatabaseName          string    `json:"database_name"`
	SchemaName            string    `json:"schema_name"`
	ParentDatabaseAssetID uuid.UUID `json:"parent_database_asset_id"`
}

// TableFacet carries table-specific metadata for TABLE assets.
type TableFacet struct {
	AssetID             uuid.UUID `json:"asset_id"`
	Schema              string    `json:"schema,omitempty"`
	TableName           string    `json:"table_name,omitempty"`
	DatabaseName        string    `json:"database_name,omitempty"`
	TableType           string    `json:"table_type,omitempty"`
	ParentSchemaAssetID uuid.UUID `json:"parent_schema_asset_id,omitempty"`
}

// ColumnFacet carries column-specific metadata for COLUMN assets.
// ParentTableFacet is a denormalized copy of the owning table's facet,
// populated so column assets can resolve their schema/database without a
// second lookup.
type ColumnFacet struct {
	AssetID            uuid.UUID      `json:"asset_id"`
	ParentTableAssetID uuid.UUID      `json:"parent_table_asset_id"`
	ColumnName         string         `json:"column_name"`
	Ordinal            *int           `json:"ordinal,omitempty"`
	DataType           string         `json:"data_type,omitempty"`
	Privacy            map[string]any `json:"privacy,omitempty"`
	ParentTableFacet   *TableFacet    `json:"parent_table_facet,omitempty"`
}

// Asset is the universal catalog entity: a database, schema, table or column
// with documentation metadata. Exactly one facet should be set, matching Type.
// Assets are immutable snapshots; the indexing and tree-building code only
// reads them.
type Asset struct {
	ID           uuid.UUID `json:"id"`
	URN          string    `json:"urn,omitempty"`
	Type         AssetType `json:"type"`
	Name         string    `json:"name,omitempty"`
	Description  string    `json:"description,omitempty"`
	DatabaseID   uuid.UUID `json:"database_id"`
	Status       string    `json:"status,omitempty"`
	AISuggestion string    `json:"ai_suggestion,omitempty"`
	Tags         []Tag     `json:"tags,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	DatabaseFacet *DatabaseFacet `json:"database_facet,omitempty"`
	SchemaFacet   *SchemaFacet   `json:"schema_facet,omitempty"`
	TableFacet    *TableFacet    `json:"table_facet,omitempty"`
	ColumnFacet   *ColumnFacet   `json:"column_facet,omitempty"`
}

// Validate checks that the asset's facet agrees with its type discriminant.
// It is applied at construction boundaries (repository scans, request
// decoding); the pure indexing/tree code never validates, it degrades.
func (a *Asset) Validate() error {
	if !IsValidAssetType(a.Type) {
		return fmt.Errorf("invalid asset type %q", a.Type)
	}
	switch a.Type {
	case AssetTypeDatabase:
		if a.SchemaFacet != nil || a.TableFacet != nil || a.ColumnFacet != nil {
			return fmt.Errorf("asset %s: DATABASE asset carries a non-database facet", a.ID)
		}
	case AssetTypeSchema:
		if a.DatabaseFacet != nil || a.TableFacet != nil || a.ColumnFacet != nil {
			return fmt.Errorf("asset %s: SCHEMA asset carries a non-schema facet", a.ID)
		}
	case AssetTypeTable:
		if a.DatabaseFacet != nil || a.SchemaFacet != nil || a.ColumnFacet != nil {
			return fmt.Errorf("asset %s: TABLE asset carries a non-table facet", a.ID)
		}
	case AssetTypeColumn:
		if a.DatabaseFacet != nil || a.SchemaFacet != nil || a.TableFacet != nil {
			return fmt.Errorf("asset %s: COLUMN asset carries a non-column facet", a.ID)
		}
	}
	return nil
}

// DisplayName returns the best available human-readable name for the asset,
// falling back from the explicit name to facet-derived names.
func (a *Asset) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	switch a.Type {
	case AssetTypeDatabase:
		if a.DatabaseFacet != nil {
			return a.DatabaseFacet.DatabaseName
		}
	case AssetTypeSchema:
		if a.SchemaFacet != nil {
			return a.SchemaFacet.SchemaName
		}
	case AssetTypeTable:
		if a.TableFacet != nil {
			return a.TableFacet.TableName
		}
	case AssetTypeColumn:
		if a.ColumnFacet != nil {
			return a.ColumnFacet.ColumnName
		}
	}
	return ""
}

// ResolvedDatabase returns the database name the asset belongs to, resolved
// through its facet. Columns resolve through the denormalized parent table
// facet. Returns the empty string when the facet is missing or partial.
func (a *Asset) ResolvedDatabase() string {
	switch a.Type {
	case AssetTypeDatabase:
		if a.DatabaseFacet != nil {
			return a.DatabaseFacet.DatabaseName
		}
	case AssetTypeSchema:
		if a.SchemaFacet != nil {
			return a.SchemaFacet.DatabaseName
		}
	case AssetTypeTable:
		if a.TableFacet != nil {
			return a.TableFacet.DatabaseName
		}
	case AssetTypeColumn:
		if a.ColumnFacet != nil && a.ColumnFacet.ParentTableFacet != nil {
			return a.ColumnFacet.ParentTableFacet.DatabaseName
		}
	}
	return ""
}

// ResolvedSchema returns the schema name for TABLE and COLUMN assets and the
// empty string otherwise. DATABASE and SCHEMA assets are never filtered on
// the schema axis.
func (a *Asset) ResolvedSchema() string {
	switch a.Type {
	case AssetTypeTable:
		if a.TableFacet != nil {
			return a.TableFacet.Schema
		}
	case AssetTypeColumn:
		if a.ColumnFacet != nil && a.ColumnFacet.ParentTableFacet != nil {
			return a.ColumnFacet.ParentTableFacet.Schema
		}
	}
	return ""
}

// HasTag reports whether the asset carries a tag with the given id.
func (a *Asset) HasTag(tagID string) bool {
	for _, tag := range a.Tags {
		if tag.ID.String() == tagID {
			return true
		}
	}
	return false
}

// HasDescription reports whether the asset has a non-blank description.
func (a *Asset) HasDescription() bool {
	return strings.TrimSpace(a.Description) != ""
}
