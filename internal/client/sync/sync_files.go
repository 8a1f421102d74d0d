package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	gosync "sync"
	"time"

	"github.com/datakit/tablesync/internal/client/manifest"
	"github.com/datakit/tablesync/internal/client/workspace"
	"github.com/datakit/tablesync/internal/queue"
	"github.com/datakit/tablesync/internal/syncsdk"
	"github.com/datakit/tablesync/internal/utils"
	"golang.org/x/sync/errgroup"
)

const DefaultWorkers = 4

// ManifestFunc fetches the remote file list of a scope
type ManifestFunc func(ctx context.Context) ([]syncsdk.ManifestEntry, error)

// UploadFunc sends one local file. rel is relative to the application folder.
type UploadFunc func(ctx context.Context, localPath, rel string) error

// Scope is one tier of file synchronization
type Scope struct {
	Name string
	// TableID is set for table and attachment scopes
	TableID string
	// Roots are the local folders scanned, relative to the application folder
	Roots  []string
	Filter *manifest.Filter
	// ManifestPrefix turns manifest filenames into app relative paths
	ManifestPrefix    string
	FetchManifest     ManifestFunc
	Upload            UploadFunc
	AllowLocalDelete  bool
	AllowRemoteDelete bool
	Immutable         bool
	// PropertiesPath, when pulled, sets FileSyncReport.PropertiesChanged
	PropertiesPath string
}

// FileSyncReport is the outcome of one scope run. Failures of single files
// are collected here instead of aborting the batch.
type FileSyncReport struct {
	Scope         string
	Direction     manifest.Direction
	Unchanged     []string
	Uploaded      []string
	Downloaded    []string
	DeletedLocal  []string
	DeletedRemote []string
	// Mismatched immutable files whose hashes differ between both sides
	Mismatched []string
	Failed     map[string]error
	// PropertiesChanged is set when a table's properties file was downloaded
	PropertiesChanged bool
	Duration          time.Duration

	mu gosync.Mutex
}

func newReport(scope string, dir manifest.Direction) *FileSyncReport {
	return &FileSyncReport{Scope: scope, Direction: dir, Failed: map[string]error{}}
}

// Success reports whether every file ended in the intended state
func (r *FileSyncReport) Success() bool {
	return len(r.Failed) == 0 && len(r.Mismatched) == 0
}

// Err joins the per-file failures, or nil
func (r *FileSyncReport) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Failed))
	for _, path := range sortedKeys(r.Failed) {
		errs = append(errs, fmt.Errorf("%s: %w", path, r.Failed[path]))
	}
	return errors.Join(errs...)
}

func (r *FileSyncReport) record(list *[]string, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	*list = append(*list, path)
}

func (r *FileSyncReport) fail(path string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Failed[path] = err
}

type FileSyncOption func(*FileSync)

// WithWorkers bounds the number of parallel transfers
func WithWorkers(n int) FileSyncOption {
	return func(f *FileSync) {
		if n > 0 {
			f.workers = n
		}
	}
}

// WithPropertiesHook is called after a pull replaced a table's properties file
func WithPropertiesHook(fn func(tableID string)) FileSyncOption {
	return func(f *FileSync) {
		f.onPropertiesChanged = fn
	}
}

// WithAppExcludes adds gitignore style exclusions to the app scope
func WithAppExcludes(lines ...string) FileSyncOption {
	return func(f *FileSync) {
		f.appExcludes = append(f.appExcludes, lines...)
	}
}

// FileSync reconciles local files with the server for app, table and row attachment scopes
type FileSync struct {
	sdk      *syncsdk.SyncSDK
	fs       workspace.FileSystem
	state    *SyncLocalState
	priority *SyncPriorityList

	workers             int
	appExcludes         []string
	onPropertiesChanged func(tableID string)
}

func NewFileSync(sdk *syncsdk.SyncSDK, fs workspace.FileSystem, state *SyncLocalState, opts ...FileSyncOption) *FileSync {
	f := &FileSync{
		sdk:      sdk,
		fs:       fs,
		state:    state,
		priority: NewSyncPriorityList(),
		workers:  DefaultWorkers,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// AppScope covers every app level file outside tables/ and the per-table csv assets
func (f *FileSync) AppScope() Scope {
	return Scope{
		Name:              "app",
		Roots:             []string{""},
		Filter:            manifest.AppFilter(f.appExcludes...),
		FetchManifest:     f.sdk.Manifests.App,
		Upload:            f.uploadFile,
		AllowLocalDelete:  true,
		AllowRemoteDelete: true,
	}
}

// TableScope covers tables/<id> without instances, plus assets/csv/<id>.*
func (f *FileSync) TableScope(tableID string) (Scope, error) {
	filter, err := manifest.TableFilter(tableID)
	if err != nil {
		return Scope{}, err
	}
	return Scope{
		Name:    "table:" + tableID,
		TableID: tableID,
		Roots:   []string{workspace.TableDir(tableID), workspace.TableCSVDir()},
		Filter:  filter,
		FetchManifest: func(ctx context.Context) ([]syncsdk.ManifestEntry, error) {
			return f.sdk.Manifests.Table(ctx, tableID)
		},
		Upload:            f.uploadFile,
		AllowLocalDelete:  true,
		AllowRemoteDelete: true,
		PropertiesPath:    workspace.TablePropertiesPath(tableID),
	}, nil
}

// AttachmentScope covers one row's instance folder. Attachments are
// immutable and never deleted on the server. A conflicted row keeps its
// local files until the conflict is resolved.
func (f *FileSync) AttachmentScope(tableID, rowID string, conflicted bool) (Scope, error) {
	if !workspace.IsValidTableID(tableID) {
		return Scope{}, fmt.Errorf("invalid table id %q", tableID)
	}
	if rowID == "" {
		return Scope{}, fmt.Errorf("row id required")
	}
	instances := workspace.InstancesDir(tableID)
	return Scope{
		Name:           "attachments:" + tableID + "/" + rowID,
		TableID:        tableID,
		Roots:          []string{workspace.RowInstanceDir(tableID, rowID)},
		Filter:         manifest.AttachmentFilter(),
		ManifestPrefix: instances,
		FetchManifest: func(ctx context.Context) ([]syncsdk.ManifestEntry, error) {
			return f.sdk.Manifests.Attachments(ctx, tableID, rowID)
		},
		Upload: func(ctx context.Context, localPath, rel string) error {
			return f.sdk.Files.UploadAttachment(ctx, tableID, localPath, strings.TrimPrefix(rel, instances+"/"))
		},
		AllowLocalDelete:  !conflicted,
		AllowRemoteDelete: false,
		Immutable:         true,
	}, nil
}

func (f *FileSync) SyncAppFiles(ctx context.Context, dir manifest.Direction) (*FileSyncReport, error) {
	return f.Run(ctx, f.AppScope(), dir)
}

func (f *FileSync) SyncTableFiles(ctx context.Context, tableID string, dir manifest.Direction) (*FileSyncReport, error) {
	scope, err := f.TableScope(tableID)
	if err != nil {
		return nil, err
	}
	return f.Run(ctx, scope, dir)
}

func (f *FileSync) SyncAttachments(ctx context.Context, tableID, rowID string, dir manifest.Direction, conflicted bool) (*FileSyncReport, error) {
	scope, err := f.AttachmentScope(tableID, rowID, conflicted)
	if err != nil {
		return nil, err
	}
	return f.Run(ctx, scope, dir)
}

// Run reconciles one scope. An error is returned only when the manifest or
// the local listing could not be obtained; per-file failures, unreadable
// local files included, go to the report.
func (f *FileSync) Run(ctx context.Context, scope Scope, dir manifest.Direction) (*FileSyncReport, error) {
	start := time.Now()
	report := newReport(scope.Name, dir)

	entries, err := scope.FetchManifest(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s manifest: %w", scope.Name, err)
	}
	remote := f.remoteEntries(scope, entries)

	local, err := f.state.Scan(scope.Roots, scope.Filter)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", scope.Name, err)
	}

	diff := manifest.Diff(local, remote, f.state.Hash, manifest.DiffOptions{Direction: dir, Immutable: scope.Immutable})
	slog.Debug("file sync plan", "scope", scope.Name, "direction", dir, "plan", diff)

	for path, err := range diff.Failed {
		slog.Error("local file unreadable", "scope", scope.Name, "path", path, "error", err)
		report.fail(path, err)
	}

	report.Unchanged = diff.Unchanged
	report.Mismatched = diff.Mismatched
	for _, path := range diff.Mismatched {
		slog.Error("immutable file differs from server copy", "scope", scope.Name, "path", path)
	}

	if dir == manifest.Push {
		// every upload finishes before any remote delete starts
		f.uploadAll(ctx, scope, diff.ToUpload, report)
		f.deleteRemoteAll(ctx, scope, diff.ToDeleteRemote, report)
	} else {
		f.downloadAll(ctx, diff.ToDownload, report)
		f.deleteLocalAll(scope, diff.ToDeleteLocal, report)
	}

	if dir == manifest.Pull && scope.PropertiesPath != "" {
		report.PropertiesChanged = slices.Contains(report.Downloaded, scope.PropertiesPath)
		if report.PropertiesChanged && f.onPropertiesChanged != nil {
			f.onPropertiesChanged(scope.TableID)
		}
	}

	report.Duration = time.Since(start)
	sortReport(report)
	slog.Info("file sync done", "scope", scope.Name, "direction", dir,
		"uploaded", len(report.Uploaded), "downloaded", len(report.Downloaded),
		"deletedLocal", len(report.DeletedLocal), "deletedRemote", len(report.DeletedRemote),
		"failed", len(report.Failed), "duration", report.Duration)

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

// remoteEntries maps manifest names to app relative paths and drops anything outside the scope
func (f *FileSync) remoteEntries(scope Scope, entries []syncsdk.ManifestEntry) []syncsdk.ManifestEntry {
	out := make([]syncsdk.ManifestEntry, 0, len(entries))
	for _, e := range entries {
		rel := utils.NormPath(withPrefix(scope.ManifestPrefix, utils.NormPath(e.Filename)))
		if !utils.IsSubPath(rel) || !underRoot(rel, scope.Roots) || !scope.Filter.Match(rel) {
			slog.Debug("manifest entry outside scope", "scope", scope.Name, "path", e.Filename)
			continue
		}
		e.Filename = rel
		out = append(out, e)
	}
	return out
}

func (f *FileSync) group() *errgroup.Group {
	g := &errgroup.Group{}
	g.SetLimit(f.workers)
	return g
}

func (f *FileSync) uploadAll(ctx context.Context, scope Scope, paths []string, report *FileSyncReport) {
	g := f.group()
	for _, rel := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				report.fail(rel, err)
				return nil
			}
			if err := scope.Upload(ctx, f.fs.AbsPath(rel), rel); err != nil {
				slog.Error("upload failed", "scope", scope.Name, "path", rel, "error", err)
				report.fail(rel, err)
				return nil
			}
			report.record(&report.Uploaded, rel)
			return nil
		})
	}
	_ = g.Wait()
}

func (f *FileSync) deleteRemoteAll(ctx context.Context, scope Scope, paths []string, report *FileSyncReport) {
	if !scope.AllowRemoteDelete {
		if len(paths) > 0 {
			slog.Debug("remote deletes disabled for scope", "scope", scope.Name, "count", len(paths))
		}
		return
	}
	g := f.group()
	for _, rel := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				report.fail(rel, err)
				return nil
			}
			if err := f.sdk.Files.Delete(ctx, rel); err != nil {
				slog.Error("remote delete failed", "scope", scope.Name, "path", rel, "error", err)
				report.fail(rel, err)
				return nil
			}
			report.record(&report.DeletedRemote, rel)
			return nil
		})
	}
	_ = g.Wait()
}

func (f *FileSync) downloadAll(ctx context.Context, entries []syncsdk.ManifestEntry, report *FileSyncReport) {
	pq := queue.NewPriorityQueue[syncsdk.ManifestEntry]()
	for _, e := range entries {
		pq.Enqueue(e, f.priority.Priority(e.Filename, e.ContentLength))
	}

	g := f.group()
	for _, entry := range pq.Drain() {
		g.Go(func() error {
			rel := entry.Filename
			if err := ctx.Err(); err != nil {
				report.fail(rel, err)
				return nil
			}
			if err := f.download(ctx, entry); err != nil {
				slog.Error("download failed", "path", rel, "error", err)
				report.fail(rel, err)
				return nil
			}
			report.record(&report.Downloaded, rel)
			return nil
		})
	}
	_ = g.Wait()
}

func (f *FileSync) download(ctx context.Context, entry syncsdk.ManifestEntry) error {
	dest := f.fs.AbsPath(entry.Filename)
	if err := utils.EnsureParent(dest); err != nil {
		return err
	}
	if entry.MD5Hash != "" {
		return f.sdk.Files.DownloadVerified(ctx, entry, dest)
	}
	return f.sdk.Files.Download(ctx, entry, dest)
}

func (f *FileSync) deleteLocalAll(scope Scope, paths []string, report *FileSyncReport) {
	if !scope.AllowLocalDelete {
		if len(paths) > 0 {
			slog.Info("keeping local files not on server", "scope", scope.Name, "count", len(paths))
		}
		return
	}
	for _, rel := range paths {
		if err := f.fs.Remove(rel); err != nil {
			slog.Error("local delete failed", "scope", scope.Name, "path", rel, "error", err)
			report.fail(rel, err)
			continue
		}
		f.state.Forget(rel)
		report.DeletedLocal = append(report.DeletedLocal, rel)
	}
}

func (f *FileSync) uploadFile(ctx context.Context, localPath, rel string) error {
	return f.sdk.Files.Upload(ctx, localPath, rel)
}

func sortReport(r *FileSyncReport) {
	for _, list := range []*[]string{&r.Uploaded, &r.Downloaded, &r.DeletedLocal, &r.DeletedRemote} {
		slices.Sort(*list)
	}
}
