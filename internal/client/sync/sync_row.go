package sync

import (
	"github.com/datakit/tablesync/internal/syncsdk"
	"github.com/google/uuid"
)

// SyncRow is an immutable snapshot of one row as exchanged with the server
type SyncRow struct {
	row syncsdk.Row
}

// NewSyncRow copies row. Later changes to row are not seen by the SyncRow.
func NewSyncRow(row syncsdk.Row) *SyncRow {
	return &SyncRow{row: copyRow(row)}
}

// NewRowID returns a fresh row id in the "uuid:<uuid>" form
func NewRowID() string {
	return "uuid:" + uuid.NewString()
}

func (r *SyncRow) RowID() string                    { return r.row.RowID }
func (r *SyncRow) RowETag() string                  { return r.row.RowETag }
func (r *SyncRow) Deleted() bool                    { return r.row.Deleted }
func (r *SyncRow) FormID() string                   { return r.row.FormID }
func (r *SyncRow) Locale() string                   { return r.row.Locale }
func (r *SyncRow) SavepointType() string            { return r.row.SavepointType }
func (r *SyncRow) SavepointTimestamp() string       { return r.row.SavepointTimestamp }
func (r *SyncRow) SavepointCreator() string         { return r.row.SavepointCreator }
func (r *SyncRow) FilterScope() syncsdk.FilterScope { return r.row.FilterScope }

// Values returns a copy of the ordered column values
func (r *SyncRow) Values() []syncsdk.DataKeyValue {
	return append([]syncsdk.DataKeyValue(nil), r.row.Values...)
}

// Value looks up a single column
func (r *SyncRow) Value(column string) (string, bool) {
	for _, kv := range r.row.Values {
		if kv.Column == column {
			return kv.Value, true
		}
	}
	return "", false
}

// Wire returns a copy suitable for sending
func (r *SyncRow) Wire() *syncsdk.Row {
	w := copyRow(r.row)
	return &w
}

func copyRow(row syncsdk.Row) syncsdk.Row {
	row.Values = append([]syncsdk.DataKeyValue(nil), row.Values...)
	return row
}

// RowModification is the outcome of a row write: the row's new version and
// the table tag the server reported right after it
type RowModification struct {
	RowID    string
	RowETag  string
	TableTag syncsdk.SyncTag
}

// IncomingRowModifications is the set of server rows changed since a tag,
// keyed by row id, and the table tag they bring the caller to
type IncomingRowModifications struct {
	TableTag syncsdk.SyncTag
	Rows     map[string]*SyncRow
}

// RowIDs returns the changed row ids in sorted order
func (m *IncomingRowModifications) RowIDs() []string {
	return sortedKeys(m.Rows)
}
