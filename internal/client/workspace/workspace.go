package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/datakit/tablesync/internal/utils"
	"github.com/gofrs/flock"
)

const (
	tablesDir    = "tables"
	assetsDir    = "assets"
	csvDir       = "csv"
	instancesDir = "instances"
	logsDir      = "logs"
	metadataDir  = ".data"
	lockFile     = "tablesync.lock"
	journalFile  = "journal.db"
	propsFile    = "properties.csv"
)

var (
	ErrWorkspaceLocked = errors.New("workspace locked by another process")
	ErrOutsideRoot     = errors.New("path escapes the application folder")
)

// SkipFunc reports whether a relative path should be left out of a listing.
// Returning true for a directory skips everything below it.
type SkipFunc func(rel string, isDir bool) bool

// FileSystem is the view of the application folder the sync engine works against.
// All paths are slash separated and relative to the application folder.
type FileSystem interface {
	ListFiles(root string, skip SkipFunc) ([]string, error)
	Stat(rel string) (fs.FileInfo, error)
	Hash(rel string) (string, error)
	EnsureDir(rel string) error
	Remove(rel string) error
	Exists(rel string) bool
	AbsPath(rel string) string
	RelPath(abs string) (string, error)
}

// Workspace is the application folder on disk
type Workspace struct {
	AppName     string
	Root        string
	TablesDir   string
	AssetsDir   string
	MetadataDir string
	LogsDir     string

	flock *flock.Flock
}

var _ FileSystem = (*Workspace)(nil)

func NewWorkspace(rootDir string, appName string) (*Workspace, error) {
	root, err := utils.ResolvePath(rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", rootDir, err)
	}

	return &Workspace{
		AppName:     appName,
		Root:        root,
		TablesDir:   filepath.Join(root, tablesDir),
		AssetsDir:   filepath.Join(root, assetsDir),
		MetadataDir: filepath.Join(root, metadataDir),
		LogsDir:     filepath.Join(root, logsDir),
		flock:       flock.New(filepath.Join(root, metadataDir, lockFile)),
	}, nil
}

func (w *Workspace) Lock() error {
	// .data/tablesync.lock keeps a second process off the same application folder
	if err := utils.EnsureDir(w.MetadataDir); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", w.MetadataDir, err)
	}

	locked, err := w.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to lock workspace: %w", err)
	}
	if !locked {
		return ErrWorkspaceLocked
	}

	return nil
}

func (w *Workspace) Unlock() error {
	// only the holder removes the lock file
	if !w.flock.Locked() {
		return nil
	}

	if err := w.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to unlock workspace: %w", err)
	}

	return os.Remove(w.flock.Path())
}

// Setup locks the workspace and creates the folder layout.
// The lock is released again when the layout cannot be created.
func (w *Workspace) Setup() error {
	if err := w.Lock(); err != nil {
		return err
	}

	slog.Info("workspace", "root", w.Root, "app", w.AppName)

	dirs := []string{w.TablesDir, w.AssetsDir, w.MetadataDir, w.LogsDir}
	for _, dir := range dirs {
		if err := utils.EnsureDir(dir); err != nil {
			_ = w.Unlock()
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// JournalPath is the sqlite file holding hash and tag journals
func (w *Workspace) JournalPath() string {
	return filepath.Join(w.MetadataDir, journalFile)
}

// TableDir is the relative folder of a table, e.g. "tables/census"
func TableDir(tableID string) string {
	return tablesDir + "/" + tableID
}

// InstancesDir is the relative folder holding every row's attachments for a table
func InstancesDir(tableID string) string {
	return TableDir(tableID) + "/" + instancesDir
}

// RowInstanceDir is the relative attachment folder of a single row
func RowInstanceDir(tableID, rowID string) string {
	return InstancesDir(tableID) + "/" + SafeRowDir(rowID)
}

// TablePropertiesPath is the relative path of a table's properties file
func TablePropertiesPath(tableID string) string {
	return TableDir(tableID) + "/" + propsFile
}

// TableCSVDir is the shared folder where per-table csv assets live
func TableCSVDir() string {
	return assetsDir + "/" + csvDir
}

func (w *Workspace) AbsPath(rel string) string {
	return filepath.Join(w.Root, filepath.FromSlash(utils.NormPath(rel)))
}

// RelPath returns the slash separated path of abs relative to the workspace root
func (w *Workspace) RelPath(abs string) (string, error) {
	rel, err := filepath.Rel(w.Root, abs)
	if err != nil {
		return "", err
	}
	rel = utils.NormPath(rel)
	if rel != "" && !utils.IsSubPath(rel) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, abs)
	}
	return rel, nil
}

func (w *Workspace) Exists(rel string) bool {
	return utils.FileExists(w.AbsPath(rel))
}

func (w *Workspace) Stat(rel string) (fs.FileInfo, error) {
	return os.Stat(w.AbsPath(rel))
}

func (w *Workspace) Hash(rel string) (string, error) {
	return utils.FileHash(w.AbsPath(rel))
}

func (w *Workspace) EnsureDir(rel string) error {
	return utils.EnsureDir(w.AbsPath(rel))
}

// Remove deletes a file and prunes the directories it leaves empty
func (w *Workspace) Remove(rel string) error {
	if !utils.IsSubPath(rel) {
		return fmt.Errorf("%w: %s", ErrOutsideRoot, rel)
	}

	abs := w.AbsPath(rel)
	if err := os.Remove(abs); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	utils.RemoveEmptyParents(filepath.Dir(abs), w.Root)
	return nil
}

// ListFiles walks root (relative, "" for the whole folder) and returns the
// regular files below it as sorted relative paths
func (w *Workspace) ListFiles(root string, skip SkipFunc) ([]string, error) {
	start := w.AbsPath(root)
	if !utils.DirExists(start) {
		return nil, nil
	}

	var files []string
	err := filepath.WalkDir(start, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := w.RelPath(path)
		if err != nil {
			return err
		}
		if rel == "" {
			return nil
		}

		if d.IsDir() {
			if skip != nil && skip(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if skip != nil && skip(rel, false) {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %q: %w", root, err)
	}

	// "a/b" sorts after "a.txt" bytewise but WalkDir yields it first
	slices.Sort(files)
	return files, nil
}
