package services

import (
	"strings"

	"github.com/google/uuid"

	"github.com/datacove/catalog-engine/pkg/models"
)

// FilterAll is the sentinel value meaning "no constraint" for single-choice
// filters.
const FilterAll = "__all__"

// FilterState captures the active explorer filters. All fields are optional;
// the zero value matches every asset.
//
// When MatchingIDs is non-nil it is the result of a server-side search and
// replaces the legacy SearchQuery substring path: an asset must be a member
// or the predicate fails immediately.
type FilterState struct {
	SearchQuery      string
	SelectedDatabase string
	SelectedSchema   string
	SelectedTag      string
	SelectedStatus   string
	MatchingIDs      map[uuid.UUID]struct{}
}

// HasSearch reports whether a text search is active, via either path.
func (f *FilterState) HasSearch() bool {
	return f.MatchingIDs != nil || strings.TrimSpace(f.SearchQuery) != ""
}

// Active reports whether any filter constrains the result.
func (f *FilterState) Active() bool {
	return f.HasSearch() ||
		filterSet(f.SelectedDatabase) ||
		filterSet(f.SelectedSchema) ||
		filterSet(f.SelectedTag) ||
		filterSet(f.SelectedStatus)
}

func filterSet(value string) bool {
	return value != "" && value != FilterAll
}

// Matches decides whether a single asset passes the active filter set.
// Structural filters (database, schema) are checked first, then tag, status
// and search; any failing check short-circuits. Pure boolean function.
func Matches(asset *models.Asset, filter *FilterState) bool {
	if filter == nil {
		return true
	}

	if filterSet(filter.SelectedDatabase) && asset.ResolvedDatabase() != filter.SelectedDatabase {
		return false
	}

	if filterSet(filter.SelectedSchema) && asset.ResolvedSchema() != filter.SelectedSchema {
		return false
	}

	if filterSet(filter.SelectedTag) && !asset.HasTag(filter.SelectedTag) {
		return false
	}

	if filterSet(filter.SelectedStatus) && !statusMatches(asset.Status, filter.SelectedStatus) {
		return false
	}

	if filter.MatchingIDs != nil {
		_, ok := filter.MatchingIDs[asset.ID]
		return ok
	}

	return searchMatches(asset, filter.SearchQuery)
}

// statusMatches handles the "unverified" sentinel: it matches assets whose
// status was never set. Any other value requires an exact match.
func statusMatches(status, selected string) bool {
	if selected == models.StatusUnverified {
		return status == ""
	}
	return status == selected
}

// searchMatches is the legacy client-side search path: case-insensitive
// substring match over the asset's name, description, table name, column
// name, data type and tag names. An empty or whitespace-only query always
// matches.
func searchMatches(asset *models.Asset, query string) bool {
	normalized := strings.ToLower(strings.TrimSpace(query))
	if normalized == "" {
		return true
	}

	var targets []string
	if asset.Name != "" {
		targets = append(targets, asset.Name)
	}
	if asset.Description != "" {
		targets = append(targets, asset.Description)
	}
	if asset.TableFacet != nil && asset.TableFacet.TableName != "" {
		targets = append(targets, asset.TableFacet.TableName)
	}
	if asset.ColumnFacet != nil {
		if asset.ColumnFacet.ColumnName != "" {
			targets = append(targets, asset.ColumnFacet.ColumnName)
		}
		if asset.ColumnFacet.DataType != "" {
			targets = append(targets, asset.ColumnFacet.DataType)
		}
	}
	for _, tag := range asset.Tags {
		targets = append(targets, tag.Name)
	}

	for _, target := range targets {
		if strings.Contains(strings.ToLower(target), normalized) {
			return true
		}
	}
	return false
}
