package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/datacove/catalog-engine/pkg/apperrors"
	"github.com/datacove/catalog-engine/pkg/database"
	"github.com/datacove/catalog-engine/pkg/models"
)

// AssetRepository provides data access for catalog assets.
type AssetRepository interface {
	// Get retrieves a single asset with its facet and tags.
	Get(ctx context.Context, id uuid.UUID) (*models.Asset, error)

	// ListByDatabase retrieves all assets for a database, facets and tags
	// included. This is the snapshot feed for the catalog indexes.
	ListByDatabase(ctx context.Context, databaseID uuid.UUID) ([]*models.Asset, error)

	// Search runs hybrid trigram + full-text search over asset names,
	// descriptions and AI suggestions, returning matching asset IDs ranked
	// by relevance. Optional tag and status filters narrow the candidate
	// set; the "unverified" status matches assets with no status at all.
	Search(ctx context.Context, databaseID uuid.UUID, query string, tagIDs []uuid.UUID, statuses []string, limit int) ([]uuid.UUID, error)
}

type assetRepository struct {
	db *database.DB
}

// NewAssetRepository creates a new AssetRepository.
func NewAssetRepository(db *database.DB) AssetRepository {
	return &assetRepository{db: db}
}

var _ AssetRepository = (*assetRepository)(nil)

// assetSelect joins every facet table once. The parent table facet join (ptf)
// denormalizes the owning table's facet onto column rows so columns can
// resolve their schema and database without a second round trip.
const assetSelect = `
	SELECT a.id, a.urn, a.type, a.name, a.description, a.database_id,
	       a.status, a.ai_suggestion, a.created_at, a.updated_at,
	       df.database_name,
	       sf.database_name, sf.schema_name, sf.parent_database_asset_id,
	       tf.schema_name, tf.table_name, tf.database_name, tf.table_type, tf.parent_schema_asset_id,
	       cf.parent_table_asset_id, cf.column_name, cf.ordinal, cf.data_type, cf.privacy,
	       ptf.schema_name, ptf.table_name, ptf.database_name, ptf.table_type, ptf.parent_schema_asset_id
	FROM engine_catalog_assets a
	LEFT JOIN engine_catalog_database_facets df ON df.asset_id = a.id
	LEFT JOIN engine_catalog_schema_facets sf ON sf.asset_id = a.id
	LEFT JOIN engine_catalog_table_facets tf ON tf.asset_id = a.id
	LEFT JOIN engine_catalog_column_facets cf ON cf.asset_id = a.id
	LEFT JOIN engine_catalog_table_facets ptf ON ptf.asset_id = cf.parent_table_asset_id`

func (r *assetRepository) Get(ctx context.Context, id uuid.UUID) (*models.Asset, error) {
	query := assetSelect + `
	WHERE a.id = $1`

	row := r.db.QueryRow(ctx, query, id)
	asset, err := scanAsset(row)
	if err == pgx.ErrNoRows {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get asset: %w", err)
	}

	if err := r.attachTags(ctx, map[uuid.UUID]*models.Asset{asset.ID: asset}, asset.DatabaseID); err != nil {
		return nil, err
	}

	return asset, nil
}

func (r *assetRepository) ListByDatabase(ctx context.Context, databaseID uuid.UUID) ([]*models.Asset, error) {
	query := assetSelect + `
	WHERE a.database_id = $1
	ORDER BY a.created_at, a.id`

	rows, err := r.db.Query(ctx, query, databaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	defer rows.Close()

	var assets []*models.Asset
	byID := make(map[uuid.UUID]*models.Asset)
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		assets = append(assets, asset)
		byID[asset.ID] = asset
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate assets: %w", err)
	}

	if err := r.attachTags(ctx, byID, databaseID); err != nil {
		return nil, err
	}

	return assets, nil
}

func (r *assetRepository) Search(ctx context.Context, databaseID uuid.UUID, query string, tagIDs []uuid.UUID, statuses []string, limit int) ([]uuid.UUID, error) {
	if limit <= 0 {
		limit = 50
	}

	// Relevance blends trigram similarity with full-text rank. Name matches
	// dominate, full-text hits on description/suggestion come next, raw
	// similarity on the longer text fields breaks ties.
	sql := `
		SELECT a.id,
		       GREATEST(
		           similarity(COALESCE(a.name, ''), $2) * 5,
		           ts_rank(a.search_vector, plainto_tsquery('english', $2)) * 2,
		           similarity(COALESCE(a.description, ''), $2),
		           similarity(COALESCE(a.ai_suggestion, ''), $2)
		       ) AS score
		FROM engine_catalog_assets a
		WHERE a.database_id = $1
		  AND (
		      similarity(COALESCE(a.name, ''), $2) > 0.3
		      OR a.search_vector @@ plainto_tsquery('english', $2)
		      OR a.urn ILIKE '%' || $2 || '%'
		  )`

	args := []any{databaseID, query}

	if len(tagIDs) > 0 {
		args = append(args, tagIDs)
		sql += fmt.Sprintf(`
		  AND EXISTS (
		      SELECT 1 FROM engine_catalog_asset_tags at
		      WHERE at.asset_id = a.id AND at.tag_id = ANY($%d)
		  )`, len(args))
	}

	if len(statuses) > 0 {
		// "unverified" is a filter sentinel, not a stored value: it selects
		// assets whose status column is NULL.
		var concrete []string
		wantNull := false
		for _, s := range statuses {
			if s == models.StatusUnverified {
				wantNull = true
			} else {
				concrete = append(concrete, s)
			}
		}
		switch {
		case wantNull && len(concrete) > 0:
			args = append(args, concrete)
			sql += fmt.Sprintf(`
		  AND (a.status = ANY($%d) OR a.status IS NULL)`, len(args))
		case wantNull:
			sql += `
		  AND a.status IS NULL`
		default:
			args = append(args, concrete)
			sql += fmt.Sprintf(`
		  AND a.status = ANY($%d)`, len(args))
		}
	}

	args = append(args, limit)
	sql += fmt.Sprintf(`
		ORDER BY score DESC, a.name ASC
		LIMIT $%d`, len(args))

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search assets: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		var score float64
		if err := rows.Scan(&id, &score); err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate search results: %w", err)
	}

	return ids, nil
}

// attachTags loads tags for all assets in the map in a single query.
func (r *assetRepository) attachTags(ctx context.Context, byID map[uuid.UUID]*models.Asset, databaseID uuid.UUID) error {
	if len(byID) == 0 {
		return nil
	}

	query := `
		SELECT at.asset_id, t.id, t.name, COALESCE(t.description, '')
		FROM engine_catalog_asset_tags at
		JOIN engine_catalog_tags t ON t.id = at.tag_id
		JOIN engine_catalog_assets a ON a.id = at.asset_id
		WHERE a.database_id = $1
		ORDER BY t.name`

	rows, err := r.db.Query(ctx, query, databaseID)
	if err != nil {
		return fmt.Errorf("failed to load asset tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var assetID uuid.UUID
		var tag models.Tag
		if err := rows.Scan(&assetID, &tag.ID, &tag.Name, &tag.Description); err != nil {
			return fmt.Errorf("failed to scan asset tag: %w", err)
		}
		if asset, ok := byID[assetID]; ok {
			asset.Tags = append(asset.Tags, tag)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate asset tags: %w", err)
	}

	return nil
}

// scanAsset reads one joined asset row, assembling the facet that matches
// the asset type and discarding the rest.
func scanAsset(row pgx.Row) (*models.Asset, error) {
	var (
		asset        models.Asset
		urn          *string
		name         *string
		description  *string
		status       *string
		aiSuggestion *string

		dfDatabaseName *string

		sfDatabaseName *string
		sfSchemaName   *string
		sfParentDB     *uuid.UUID

		tfSchema       *string
		tfTableName    *string
		tfDatabaseName *string
		tfTableType    *string
		tfParentSchema *uuid.UUID

		cfParentTable *uuid.UUID
		cfColumnName  *string
		cfOrdinal     *int
		cfDataType    *string
		cfPrivacy     map[string]any

		ptfSchema       *string
		ptfTableName    *string
		ptfDatabaseName *string
		ptfTableType    *string
		ptfParentSchema *uuid.UUID
	)

	err := row.Scan(
		&asset.ID, &urn, &asset.Type, &name, &description, &asset.DatabaseID,
		&status, &aiSuggestion, &asset.CreatedAt, &asset.UpdatedAt,
		&dfDatabaseName,
		&sfDatabaseName, &sfSchemaName, &sfParentDB,
		&tfSchema, &tfTableName, &tfDatabaseName, &tfTableType, &tfParentSchema,
		&cfParentTable, &cfColumnName, &cfOrdinal, &cfDataType, &cfPrivacy,
		&ptfSchema, &ptfTableName, &ptfDatabaseName, &ptfTableType, &ptfParentSchema,
	)
	if err != nil {
		return nil, err
	}

	asset.URN = deref(urn)
	asset.Name = deref(name)
	asset.Description = deref(description)
	asset.Status = deref(status)
	asset.AISuggestion = deref(aiSuggestion)

	switch asset.Type {
	case models.AssetTypeDatabase:
		if dfDatabaseName != nil {
			asset.DatabaseFacet = &models.DatabaseFacet{
				AssetID:      asset.ID,
				DatabaseName: *dfDatabaseName,
			}
		}
	case models.AssetTypeSchema:
		if sfSchemaName != nil {
			asset.SchemaFacet = &models.SchemaFacet{
				AssetID:      asset.ID,
				DatabaseName: deref(sfDatabaseName),
				SchemaName:   *sfSchemaName,
			}
			if sfParentDB != nil {
				asset.SchemaFacet.ParentDatabaseAssetID = *sfParentDB
			}
		}
	case models.AssetTypeTable:
		if tfTableName != nil || tfSchema != nil {
			asset.TableFacet = newTableFacet(asset.ID, tfSchema, tfTableName, tfDatabaseName, tfTableType, tfParentSchema)
		}
	case models.AssetTypeColumn:
		if cfColumnName != nil {
			asset.ColumnFacet = &models.ColumnFacet{
				AssetID:    asset.ID,
				ColumnName: *cfColumnName,
				Ordinal:    cfOrdinal,
				DataType:   deref(cfDataType),
				Privacy:    cfPrivacy,
			}
			if cfParentTable != nil {
				asset.ColumnFacet.ParentTableAssetID = *cfParentTable
				if ptfTableName != nil || ptfSchema != nil {
					asset.ColumnFacet.ParentTableFacet = newTableFacet(*cfParentTable, ptfSchema, ptfTableName, ptfDatabaseName, ptfTableType, ptfParentSchema)
				}
			}
		}
	}

	return &asset, nil
}

func newTableFacet(assetID uuid.UUID, schema, tableName, databaseName, tableType *string, parentSchema *uuid.UUID) *models.TableFacet {
	facet := &models.TableFacet{
		AssetID:      assetID,
		Schema:       deref(schema),
		TableName:    deref(tableName),
		DatabaseName: deref(databaseName),
		TableType:    deref(tableType),
	}
	if parentSchema != nil {
		facet.ParentSchemaAssetID = *parentSchema
	}
	return facet
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
