package sync

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/datakit/tablesync/internal/db"
	"github.com/datakit/tablesync/internal/syncsdk"
	"github.com/jmoiron/sqlx"
)

const journalSchema = `
CREATE TABLE IF NOT EXISTS file_hashes (
    path TEXT PRIMARY KEY,
    size INTEGER NOT NULL,
    mod_time INTEGER NOT NULL, -- unix nanoseconds
    hash TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS table_tags (
    table_id TEXT PRIMARY KEY,
    data_etag TEXT,
    schema_etag TEXT,
    updated_at TEXT NOT NULL -- RFC3339
);
`

// FileHash is a remembered content hash, valid while size and mod time are unchanged
type FileHash struct {
	Path    string `db:"path"`
	Size    int64  `db:"size"`
	ModTime int64  `db:"mod_time"`
	Hash    string `db:"hash"`
}

type dbTableTag struct {
	TableID    string         `db:"table_id"`
	DataETag   sql.NullString `db:"data_etag"`
	SchemaETag sql.NullString `db:"schema_etag"`
	UpdatedAt  string         `db:"updated_at"`
}

// Journal persists file hashes and the last tag each table was synced to
type Journal struct {
	db     *sqlx.DB
	dbPath string
}

func NewJournal(dbPath string) *Journal {
	return &Journal{dbPath: dbPath}
}

// Open the journal and the underlying database
func (j *Journal) Open() error {
	if j.db != nil {
		return fmt.Errorf("journal already open")
	}

	conn, err := db.NewSqliteDB(db.WithPath(j.dbPath), db.WithMaxOpenConns(1), db.WithSchema(journalSchema))
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}

	j.db = conn
	return nil
}

func (j *Journal) Close() error {
	if j.db == nil {
		return fmt.Errorf("journal not open")
	}
	if err := j.db.Close(); err != nil {
		slog.Error("failed to close journal database", "error", err)
		return err
	}
	j.db = nil
	slog.Debug("journal closed")
	return nil
}

// GetHash returns the remembered hash of path, or nil
func (j *Journal) GetHash(path string) (*FileHash, error) {
	var fh FileHash
	err := j.db.Get(&fh, "SELECT path, size, mod_time, hash FROM file_hashes WHERE path = ?", path)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query path %s: %w", path, err)
	}
	return &fh, nil
}

func (j *Journal) SetHash(fh *FileHash) error {
	if fh == nil {
		return fmt.Errorf("cannot set nil hash")
	}

	query := `INSERT OR REPLACE INTO file_hashes (path, size, mod_time, hash)
	          VALUES (:path, :size, :mod_time, :hash)`
	if _, err := j.db.NamedExec(query, fh); err != nil {
		return fmt.Errorf("failed to set hash for path %s: %w", fh.Path, err)
	}
	return nil
}

func (j *Journal) DeleteHash(path string) error {
	if _, err := j.db.Exec("DELETE FROM file_hashes WHERE path = ?", path); err != nil {
		return fmt.Errorf("failed to delete path %s: %w", path, err)
	}
	return nil
}

// HashCount returns the number of remembered hashes
func (j *Journal) HashCount() (int, error) {
	var count int
	if err := j.db.Get(&count, "SELECT COUNT(*) FROM file_hashes"); err != nil {
		return 0, fmt.Errorf("failed to count hashes: %w", err)
	}
	return count, nil
}

// LastTag returns the tag a table was last synced to
func (j *Journal) LastTag(tableID string) (syncsdk.SyncTag, bool, error) {
	var row dbTableTag
	err := j.db.Get(&row, "SELECT table_id, data_etag, schema_etag, updated_at FROM table_tags WHERE table_id = ?", tableID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return syncsdk.SyncTag{}, false, nil
		}
		return syncsdk.SyncTag{}, false, fmt.Errorf("failed to query tag of %s: %w", tableID, err)
	}
	return row.tag(), true, nil
}

// SaveTag records the tag a table is now synced to
func (j *Journal) SaveTag(tableID string, tag syncsdk.SyncTag) error {
	row := dbTableTag{
		TableID:    tableID,
		DataETag:   nullString(tag.DataETag),
		SchemaETag: nullString(tag.SchemaETag),
		UpdatedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	query := `INSERT OR REPLACE INTO table_tags (table_id, data_etag, schema_etag, updated_at)
	          VALUES (:table_id, :data_etag, :schema_etag, :updated_at)`
	if _, err := j.db.NamedExec(query, row); err != nil {
		return fmt.Errorf("failed to save tag of %s: %w", tableID, err)
	}
	slog.Debug("journal tag saved", "table", tableID, "tag", tag)
	return nil
}

func (j *Journal) ForgetTag(tableID string) error {
	if _, err := j.db.Exec("DELETE FROM table_tags WHERE table_id = ?", tableID); err != nil {
		return fmt.Errorf("failed to forget tag of %s: %w", tableID, err)
	}
	return nil
}

// Tags returns every recorded table tag
func (j *Journal) Tags() (map[string]syncsdk.SyncTag, error) {
	var rows []dbTableTag
	if err := j.db.Select(&rows, "SELECT table_id, data_etag, schema_etag, updated_at FROM table_tags"); err != nil {
		return nil, fmt.Errorf("failed to query tags: %w", err)
	}

	tags := make(map[string]syncsdk.SyncTag, len(rows))
	for _, r := range rows {
		tags[r.TableID] = r.tag()
	}
	return tags, nil
}

func (r dbTableTag) tag() syncsdk.SyncTag {
	return syncsdk.SyncTag{DataETag: stringOrNil(r.DataETag), SchemaETag: stringOrNil(r.SchemaETag)}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringOrNil(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
