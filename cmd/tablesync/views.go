package main

import (
	"time"

	"github.com/datakit/tablesync/internal/client/sync"
	"github.com/datakit/tablesync/internal/syncsdk"
)

type tableView struct {
	TableID    string `json:"table_id" yaml:"table_id"`
	DataETag   string `json:"data_etag,omitempty" yaml:"data_etag,omitempty"`
	SchemaETag string `json:"schema_etag,omitempty" yaml:"schema_etag,omitempty"`
	// Synced is the tag the local replica was last synced to, if any
	Synced *tagView `json:"synced,omitempty" yaml:"synced,omitempty"`
}

type tagView struct {
	DataETag   string `json:"data_etag,omitempty" yaml:"data_etag,omitempty"`
	SchemaETag string `json:"schema_etag,omitempty" yaml:"schema_etag,omitempty"`
}

type columnView struct {
	Key      string `json:"key" yaml:"key"`
	Name     string `json:"name" yaml:"name"`
	Type     string `json:"type,omitempty" yaml:"type,omitempty"`
	Children string `json:"children,omitempty" yaml:"children,omitempty"`
}

type definitionView struct {
	TableID    string       `json:"table_id" yaml:"table_id"`
	SchemaETag string       `json:"schema_etag,omitempty" yaml:"schema_etag,omitempty"`
	Columns    []columnView `json:"columns" yaml:"columns"`
}

type valueView struct {
	Column string `json:"column" yaml:"column"`
	Value  string `json:"value" yaml:"value"`
}

type rowView struct {
	RowID       string      `json:"row_id" yaml:"row_id"`
	RowETag     string      `json:"row_etag,omitempty" yaml:"row_etag,omitempty"`
	Deleted     bool        `json:"deleted,omitempty" yaml:"deleted,omitempty"`
	FormID      string      `json:"form_id,omitempty" yaml:"form_id,omitempty"`
	Locale      string      `json:"locale,omitempty" yaml:"locale,omitempty"`
	Savepoint   string      `json:"savepoint_type,omitempty" yaml:"savepoint_type,omitempty"`
	FilterScope string      `json:"filter_scope,omitempty" yaml:"filter_scope,omitempty"`
	Values      []valueView `json:"values" yaml:"values"`
}

type changesView struct {
	TableID string    `json:"table_id" yaml:"table_id"`
	Tag     tagView   `json:"tag" yaml:"tag"`
	Saved   bool      `json:"saved" yaml:"saved"`
	Rows    []rowView `json:"rows" yaml:"rows"`
}

type pushView struct {
	TableID string            `json:"table_id" yaml:"table_id"`
	Tag     tagView           `json:"tag" yaml:"tag"`
	Saved   bool              `json:"saved" yaml:"saved"`
	Written []string          `json:"written" yaml:"written"`
	Deleted []string          `json:"deleted" yaml:"deleted"`
	Failed  map[string]string `json:"failed,omitempty" yaml:"failed,omitempty"`
}

type reportView struct {
	Scope             string            `json:"scope" yaml:"scope"`
	Direction         string            `json:"direction" yaml:"direction"`
	Unchanged         int               `json:"unchanged" yaml:"unchanged"`
	Uploaded          []string          `json:"uploaded,omitempty" yaml:"uploaded,omitempty"`
	Downloaded        []string          `json:"downloaded,omitempty" yaml:"downloaded,omitempty"`
	DeletedLocal      []string          `json:"deleted_local,omitempty" yaml:"deleted_local,omitempty"`
	DeletedRemote     []string          `json:"deleted_remote,omitempty" yaml:"deleted_remote,omitempty"`
	Mismatched        []string          `json:"mismatched,omitempty" yaml:"mismatched,omitempty"`
	Failed            map[string]string `json:"failed,omitempty" yaml:"failed,omitempty"`
	PropertiesChanged bool              `json:"properties_changed,omitempty" yaml:"properties_changed,omitempty"`
	Duration          string            `json:"duration" yaml:"duration"`
}

func newTagView(tag syncsdk.SyncTag) tagView {
	return tagView{DataETag: syncsdk.Deref(tag.DataETag), SchemaETag: syncsdk.Deref(tag.SchemaETag)}
}

func newTableView(tr *syncsdk.TableResource, synced *syncsdk.SyncTag) tableView {
	v := tableView{
		TableID:    tr.TableID,
		DataETag:   syncsdk.Deref(tr.DataETag),
		SchemaETag: syncsdk.Deref(tr.SchemaETag),
	}
	if synced != nil {
		t := newTagView(*synced)
		v.Synced = &t
	}
	return v
}

func newDefinitionView(def *syncsdk.TableDefinitionResource) definitionView {
	v := definitionView{
		TableID:    def.TableID,
		SchemaETag: syncsdk.Deref(def.SchemaETag),
		Columns:    make([]columnView, 0, len(def.Columns)),
	}
	for _, c := range def.Columns {
		v.Columns = append(v.Columns, columnView{
			Key:      c.ElementKey,
			Name:     c.ElementName,
			Type:     c.ElementType,
			Children: c.ListChildElementKeys,
		})
	}
	return v
}

func newRowView(r *sync.SyncRow) rowView {
	v := rowView{
		RowID:       r.RowID(),
		RowETag:     r.RowETag(),
		Deleted:     r.Deleted(),
		FormID:      r.FormID(),
		Locale:      r.Locale(),
		Savepoint:   r.SavepointType(),
		FilterScope: r.FilterScope().Type,
		Values:      []valueView{},
	}
	for _, kv := range r.Values() {
		v.Values = append(v.Values, valueView{Column: kv.Column, Value: kv.Value})
	}
	return v
}

func newChangesView(tableID string, in *sync.IncomingRowModifications, saved bool) changesView {
	v := changesView{TableID: tableID, Tag: newTagView(in.TableTag), Saved: saved, Rows: []rowView{}}
	for _, id := range in.RowIDs() {
		v.Rows = append(v.Rows, newRowView(in.Rows[id]))
	}
	return v
}

func newReportView(r *sync.FileSyncReport) reportView {
	v := reportView{
		Scope:             r.Scope,
		Direction:         r.Direction.String(),
		Unchanged:         len(r.Unchanged),
		Uploaded:          r.Uploaded,
		Downloaded:        r.Downloaded,
		DeletedLocal:      r.DeletedLocal,
		DeletedRemote:     r.DeletedRemote,
		Mismatched:        r.Mismatched,
		PropertiesChanged: r.PropertiesChanged,
		Duration:          r.Duration.Round(time.Millisecond).String(),
	}
	if len(r.Failed) > 0 {
		v.Failed = make(map[string]string, len(r.Failed))
		for path, err := range r.Failed {
			v.Failed[path] = err.Error()
		}
	}
	return v
}
