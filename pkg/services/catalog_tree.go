package services

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/datacove/catalog-engine/pkg/models"
)

// unknownDatabaseName buckets tables whose database cannot be resolved.
// They must still appear in the tree, never be silently dropped.
const unknownDatabaseName = "unknown"

// contextColumnLimit is how many unfiltered columns are surfaced under a
// table that matched a search itself but had no individually matching
// columns, so the hit isn't rendered with an empty column list.
const contextColumnLimit = 5

// ColumnNode is a leaf in the explorer tree.
type ColumnNode struct {
	Asset *models.Asset `json:"asset"`
	Label string        `json:"label"`
	Meta  string        `json:"meta"`
}

// TableNode groups a table asset with its visible columns.
type TableNode struct {
	Key     string        `json:"key"`
	Asset   *models.Asset `json:"asset"`
	Columns []*ColumnNode `json:"columns"`
}

// SchemaNode groups tables under a schema. Asset is nil for schema buckets
// synthesized from table facets (no SCHEMA asset in the catalog).
type SchemaNode struct {
	Key    string        `json:"key"`
	Name   string        `json:"name"`
	Asset  *models.Asset `json:"asset,omitempty"`
	Tables []*TableNode  `json:"tables"`
}

// DatabaseNode is the root of the explorer tree. Asset is nil for the
// synthetic unknown bucket and for databases synthesized from facet names.
type DatabaseNode struct {
	Key     string        `json:"key"`
	Name    string        `json:"name"`
	Asset   *models.Asset `json:"asset,omitempty"`
	Schemas []*SchemaNode `json:"schemas"`
}

// Node keys are deterministic strings derived from type and identifying
// fields; the UI persists expand/collapse state against them, so the same
// input must always produce the same keys.
func databaseKey(name string) string     { return "database:" + name }
func schemaKey(db, schema string) string { return fmt.Sprintf("schema:%s:%s", db, schema) }
func tableKey(assetID uuid.UUID) string  { return "table:" + assetID.String() }

// BuildFilteredTree assembles the Database -> Schema -> Table -> Column
// explorer tree from a flat asset list, applying the filter per asset during
// the walk. indexes may be nil, in which case they are built from the input.
//
// The output is fully deterministic: nodes are sorted case-insensitively by
// name at every level and keys depend only on the input.
func BuildFilteredTree(assets []*models.Asset, indexes *CatalogIndexes, filter *FilterState) []*DatabaseNode {
	if indexes == nil {
		indexes = BuildCatalogIndexes(assets)
	}
	if filter == nil {
		filter = &FilterState{}
	}

	databasesByName := make(map[string]*DatabaseNode)
	schemasByAssetID := make(map[uuid.UUID]*SchemaNode)
	schemasByKey := make(map[string]*SchemaNode)

	ensureDatabase := func(name string) *DatabaseNode {
		node, ok := databasesByName[name]
		if !ok {
			node = &DatabaseNode{Key: databaseKey(name), Name: name}
			databasesByName[name] = node
		}
		return node
	}

	ensureSchema := func(dbName, schemaName string) *SchemaNode {
		key := schemaKey(dbName, schemaName)
		node, ok := schemasByKey[key]
		if !ok {
			node = &SchemaNode{Key: key, Name: schemaName}
			schemasByKey[key] = node
			db := ensureDatabase(dbName)
			db.Schemas = append(db.Schemas, node)
		}
		return node
	}

	// Seed database nodes from DATABASE assets and schema nodes from SCHEMA
	// assets, so empty databases and schemas still render.
	for _, asset := range assets {
		if asset.Type != models.AssetTypeDatabase {
			continue
		}
		node := ensureDatabase(asset.ResolvedDatabase())
		if node.Asset == nil {
			node.Asset = asset
		}
	}

	for _, asset := range assets {
		if asset.Type != models.AssetTypeSchema || asset.SchemaFacet == nil {
			continue
		}
		node := ensureSchema(schemaParentDatabase(asset, indexes), asset.SchemaFacet.SchemaName)
		if node.Asset == nil {
			node.Asset = asset
		}
		schemasByAssetID[asset.ID] = node
	}

	// Walk tables in sorted order so tables land in their schema buckets in
	// display order without a per-schema sort afterwards.
	tables := make([]*models.Asset, len(indexes.Tables))
	copy(tables, indexes.Tables)
	sort.SliceStable(tables, func(i, j int) bool {
		if c := compareFold(tables[i].ResolvedDatabase(), tables[j].ResolvedDatabase()); c != 0 {
			return c < 0
		}
		if c := compareFold(tables[i].ResolvedSchema(), tables[j].ResolvedSchema()); c != 0 {
			return c < 0
		}
		return compareFold(tables[i].DisplayName(), tables[j].DisplayName()) < 0
	})

	for _, table := range tables {
		schemaNode := resolveTableSchema(table, schemasByAssetID, ensureSchema)

		columns := indexes.ColumnsByTableID[table.ID]
		var matched []*models.Asset
		for _, column := range columns {
			if Matches(column, filter) {
				matched = append(matched, column)
			}
		}
		tableMatches := Matches(table, filter)

		// A table is emitted iff it matches itself or at least one of its
		// columns does.
		if !tableMatches && len(matched) == 0 {
			continue
		}

		node := &TableNode{
			Key:     tableKey(table.ID),
			Asset:   table,
			Columns: columnNodes(matched),
		}

		// Context fallback: the table itself is a hit but none of its
		// columns passed the filter.
		if len(matched) == 0 && tableMatches && filter.Active() && len(columns) > 0 {
			limit := contextColumnLimit
			if len(columns) < limit {
				limit = len(columns)
			}
			node.Columns = columnNodes(columns[:limit])
		}

		schemaNode.Tables = append(schemaNode.Tables, node)
	}

	databases := make([]*DatabaseNode, 0, len(databasesByName))
	for _, db := range databasesByName {
		sort.SliceStable(db.Schemas, func(i, j int) bool {
			return compareFold(db.Schemas[i].Name, db.Schemas[j].Name) < 0
		})
		databases = append(databases, db)
	}
	sort.SliceStable(databases, func(i, j int) bool {
		return compareFold(databases[i].Name, databases[j].Name) < 0
	})

	return databases
}

// schemaParentDatabase resolves the database a SCHEMA asset belongs under:
// the parent DATABASE asset when the link resolves, the facet's database
// name when present, else the synthetic unknown bucket.
func schemaParentDatabase(schema *models.Asset, indexes *CatalogIndexes) string {
	facet := schema.SchemaFacet
	if facet.ParentDatabaseAssetID != uuid.Nil {
		if parent, ok := indexes.AssetsByID[facet.ParentDatabaseAssetID]; ok && parent.DatabaseFacet != nil {
			return parent.DatabaseFacet.DatabaseName
		}
	}
	if facet.DatabaseName != "" {
		return facet.DatabaseName
	}
	return unknownDatabaseName
}

// resolveTableSchema finds or creates the schema bucket for a table: exact
// lookup via the parent schema asset id when known, else a bucket keyed by
// (database, schema name). Partial metadata is expected; a table with
// nothing resolvable still gets a node under the unknown database.
func resolveTableSchema(
	table *models.Asset,
	schemasByAssetID map[uuid.UUID]*SchemaNode,
	ensureSchema func(dbName, schemaName string) *SchemaNode,
) *SchemaNode {
	if table.TableFacet != nil && table.TableFacet.ParentSchemaAssetID != uuid.Nil {
		if node, ok := schemasByAssetID[table.TableFacet.ParentSchemaAssetID]; ok {
			return node
		}
	}
	dbName := table.ResolvedDatabase()
	if dbName == "" {
		dbName = unknownDatabaseName
	}
	return ensureSchema(dbName, table.ResolvedSchema())
}

func columnNodes(columns []*models.Asset) []*ColumnNode {
	nodes := make([]*ColumnNode, 0, len(columns))
	for _, column := range columns {
		nodes = append(nodes, &ColumnNode{
			Asset: column,
			Label: columnLabel(column),
			Meta:  columnMeta(column),
		})
	}
	return nodes
}

func columnLabel(column *models.Asset) string {
	if column.ColumnFacet != nil && column.ColumnFacet.ColumnName != "" {
		return column.ColumnFacet.ColumnName
	}
	if column.Name != "" {
		return column.Name
	}
	return "Unnamed column"
}

func columnMeta(column *models.Asset) string {
	if column.ColumnFacet == nil {
		return ""
	}
	return column.ColumnFacet.DataType
}

// compareFold is a case-insensitive lexicographic compare with a
// case-sensitive tie-break, keeping ordering total and deterministic.
func compareFold(a, b string) int {
	if c := strings.Compare(strings.ToLower(a), strings.ToLower(b)); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}
