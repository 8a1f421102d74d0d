package sync

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/datakit/tablesync/internal/client/cache"
	"github.com/datakit/tablesync/internal/syncsdk"
)

// RowSync runs the table and row protocol against the server. Table
// resources are cached and evicted as soon as a newer schema is observed.
type RowSync struct {
	sdk   *syncsdk.SyncSDK
	cache cache.ResourceCache
}

func NewRowSync(sdk *syncsdk.SyncSDK, c cache.ResourceCache) *RowSync {
	return &RowSync{sdk: sdk, cache: c}
}

// ListTables fetches every table, refreshes the cache and returns them sorted by id
func (s *RowSync) ListTables(ctx context.Context) ([]*syncsdk.TableResource, error) {
	tables, err := s.sdk.Tables.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	out := make([]*syncsdk.TableResource, 0, len(tables))
	for _, tr := range tables {
		if tr == nil || tr.TableID == "" {
			continue
		}
		s.observe(tr)
		out = append(out, tr.Clone())
	}
	slices.SortFunc(out, func(a, b *syncsdk.TableResource) int {
		return strings.Compare(a.TableID, b.TableID)
	})
	return out, nil
}

// GetTable returns the cached resource, fetching it on a miss
func (s *RowSync) GetTable(ctx context.Context, tableID string) (*syncsdk.TableResource, error) {
	if tr, ok := s.cache.Get(tableID); ok {
		return tr, nil
	}
	return s.refreshTable(ctx, tableID)
}

// GetTableOrNil is GetTable with a missing table reported as nil
func (s *RowSync) GetTableOrNil(ctx context.Context, tableID string) (*syncsdk.TableResource, error) {
	tr, err := s.GetTable(ctx, tableID)
	if isNotFound(err) {
		s.cache.Remove(tableID)
		return nil, nil
	}
	return tr, err
}

func (s *RowSync) HasTable(ctx context.Context, tableID string) (bool, error) {
	tr, err := s.GetTableOrNil(ctx, tableID)
	return tr != nil, err
}

// CreateTable creates the table on the server. schemaETag may be nil to let the server pick one.
func (s *RowSync) CreateTable(ctx context.Context, tableID string, schemaETag *string, columns []syncsdk.Column) (*syncsdk.TableResource, error) {
	tr, err := s.sdk.Tables.Create(ctx, &syncsdk.TableDefinition{
		TableID:    tableID,
		SchemaETag: schemaETag,
		Columns:    append([]syncsdk.Column(nil), columns...),
	})
	if err != nil {
		return nil, fmt.Errorf("create table %q: %w", tableID, err)
	}
	s.observe(tr)
	slog.Info("table created", "table", tableID, "tag", tr.Tag())
	return tr.Clone(), nil
}

func (s *RowSync) DeleteTable(ctx context.Context, tableID string) error {
	if err := s.sdk.Tables.Delete(ctx, tableID); err != nil {
		return fmt.Errorf("delete table %q: %w", tableID, err)
	}
	s.cache.Remove(tableID)
	return nil
}

// GetTableDefinition fetches the table's column definition. A definition
// carrying another schema tag than the cached resource evicts that resource.
func (s *RowSync) GetTableDefinition(ctx context.Context, tableID string) (*syncsdk.TableDefinitionResource, error) {
	tr, err := s.GetTable(ctx, tableID)
	if err != nil {
		return nil, err
	}

	def, err := s.sdk.Tables.Definition(ctx, tr.DefinitionURI)
	if err != nil {
		return nil, fmt.Errorf("table definition %q: %w", tableID, err)
	}
	s.cache.InvalidateIfStale(tableID, def.SchemaETag)
	return def, nil
}

// FetchChanges returns the rows changed on the server since the caller's tag.
// An equal data tag yields no rows, a nil one the full row set.
func (s *RowSync) FetchChanges(ctx context.Context, tableID string, since syncsdk.SyncTag) (*IncomingRowModifications, error) {
	tr, err := s.refreshTable(ctx, tableID)
	if err != nil {
		return nil, err
	}

	current := tr.Tag()
	in := &IncomingRowModifications{TableTag: current, Rows: map[string]*SyncRow{}}
	if since.DataEqual(current) {
		return in, nil
	}
	if since.SchemaETag != nil && !since.SchemaEqual(current) {
		slog.Warn("table schema changed since last sync", "table", tableID, "since", since, "current", current)
	}

	var rows []*syncsdk.RowResource
	if since.DataETag == nil {
		rows, err = s.sdk.Rows.List(ctx, tr.DataURI)
	} else {
		rows, err = s.sdk.Rows.Diff(ctx, tr.DiffURI, *since.DataETag)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch changes %q: %w", tableID, err)
	}

	for _, r := range rows {
		if r == nil || r.RowID == "" {
			continue
		}
		in.Rows[r.RowID] = NewSyncRow(r.Row)
	}
	slog.Debug("fetched changes", "table", tableID, "since", since, "tag", current, "rows", len(in.Rows))
	return in, nil
}

// UpsertRow writes a row. The returned table tag carries the data tag the
// server reported for this write.
func (s *RowSync) UpsertRow(ctx context.Context, tableID string, current syncsdk.SyncTag, row *SyncRow) (*RowModification, error) {
	unlock := s.cache.Lock(tableID)
	defer unlock()

	tr, err := s.GetTable(ctx, tableID)
	if err != nil {
		return nil, err
	}

	res, err := s.sdk.Rows.Put(ctx, tr.DataURI, row.Wire())
	if err != nil {
		return nil, fmt.Errorf("upsert row %q in %q: %w", row.RowID(), tableID, err)
	}

	tag := s.writeTag(tr, current, res.DataETagAtModification)
	slog.Debug("row upserted", "table", tableID, "row", res.RowID, "tag", tag)

	rowID := res.RowID
	if rowID == "" {
		rowID = row.RowID()
	}
	return &RowModification{RowID: rowID, RowETag: res.RowETag, TableTag: tag}, nil
}

// DeleteRow deletes a row. The server answers with the new data tag as plain
// text. An empty answer is logged and still recorded.
func (s *RowSync) DeleteRow(ctx context.Context, tableID string, current syncsdk.SyncTag, row *SyncRow) (*RowModification, error) {
	unlock := s.cache.Lock(tableID)
	defer unlock()

	tr, err := s.GetTable(ctx, tableID)
	if err != nil {
		return nil, err
	}

	dataETag, err := s.sdk.Rows.Delete(ctx, tr.DataURI, row.RowID())
	if err != nil {
		return nil, fmt.Errorf("delete row %q in %q: %w", row.RowID(), tableID, err)
	}
	if dataETag == "" {
		slog.Error("row delete returned no data tag", "table", tableID, "row", row.RowID())
	}

	tag := s.writeTag(tr, current, &dataETag)
	slog.Debug("row deleted", "table", tableID, "row", row.RowID(), "tag", tag)
	return &RowModification{RowID: row.RowID(), TableTag: tag}, nil
}

// writeTag builds the post-write tag from the caller's tag and the server's
// data tag, and pushes it into the cache
func (s *RowSync) writeTag(tr *syncsdk.TableResource, current syncsdk.SyncTag, dataETag *string) syncsdk.SyncTag {
	tag := current.WithData(dataETag)
	if tag.SchemaETag == nil {
		tag.SchemaETag = tr.Tag().SchemaETag
	}
	s.cache.UpdateDataTag(tr.TableID, tag)
	return tag
}

func (s *RowSync) refreshTable(ctx context.Context, tableID string) (*syncsdk.TableResource, error) {
	tr, err := s.sdk.Tables.Get(ctx, tableID)
	if err != nil {
		return nil, fmt.Errorf("get table %q: %w", tableID, err)
	}
	s.observe(tr)
	return tr.Clone(), nil
}

// observe evicts a stale entry, then caches the fresh resource
func (s *RowSync) observe(tr *syncsdk.TableResource) {
	s.cache.InvalidateIfStale(tr.TableID, tr.SchemaETag)
	s.cache.Put(tr.TableID, tr)
}
