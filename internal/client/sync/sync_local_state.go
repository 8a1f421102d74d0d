package sync

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/datakit/tablesync/internal/client/manifest"
	"github.com/datakit/tablesync/internal/client/workspace"
)

// SyncLocalState lists and hashes local files. Hashes are remembered in the
// journal and reused while a file's size and mod time are unchanged.
type SyncLocalState struct {
	fs      workspace.FileSystem
	journal *Journal
}

// NewSyncLocalState returns a scanner over fs. journal may be nil to hash on every call.
func NewSyncLocalState(fs workspace.FileSystem, journal *Journal) *SyncLocalState {
	return &SyncLocalState{fs: fs, journal: journal}
}

// Scan lists the files under roots that pass filter, sorted and deduplicated
func (s *SyncLocalState) Scan(roots []string, filter *manifest.Filter) ([]string, error) {
	var files []string
	for _, root := range roots {
		listed, err := s.fs.ListFiles(root, filter.Skip)
		if err != nil {
			return nil, fmt.Errorf("local scan failed: %w", err)
		}
		files = append(files, filter.Apply(listed)...)
	}

	slices.Sort(files)
	return slices.Compact(files), nil
}

// Hash returns the content hash of a relative path
func (s *SyncLocalState) Hash(rel string) (string, error) {
	info, err := s.fs.Stat(rel)
	if err != nil {
		return "", err
	}
	if s.journal == nil {
		return s.fs.Hash(rel)
	}

	size, modTime := info.Size(), info.ModTime().UnixNano()
	if prev, err := s.journal.GetHash(rel); err != nil {
		slog.Warn("journal lookup failed", "path", rel, "error", err)
	} else if prev != nil && prev.Size == size && prev.ModTime == modTime {
		return prev.Hash, nil
	}

	hash, err := s.fs.Hash(rel)
	if err != nil {
		return "", err
	}
	if err := s.journal.SetHash(&FileHash{Path: rel, Size: size, ModTime: modTime, Hash: hash}); err != nil {
		slog.Warn("journal update failed", "path", rel, "error", err)
	}
	return hash, nil
}

// Forget drops the remembered hash of a removed file
func (s *SyncLocalState) Forget(rel string) {
	if s.journal == nil {
		return
	}
	if err := s.journal.DeleteHash(rel); err != nil {
		slog.Warn("journal delete failed", "path", rel, "error", err)
	}
}
