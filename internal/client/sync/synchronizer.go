package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/datakit/tablesync/internal/client/cache"
	"github.com/datakit/tablesync/internal/client/config"
	"github.com/datakit/tablesync/internal/client/manifest"
	"github.com/datakit/tablesync/internal/client/workspace"
	"github.com/datakit/tablesync/internal/syncsdk"
)

type options struct {
	validator    syncsdk.TokenValidator
	validatorSet bool
	cache        cache.ResourceCache
	sdkOpts      []syncsdk.Option
	fileOpts     []FileSyncOption
}

type Option func(*options)

// WithTokenValidator overrides the validator picked from the config. nil skips validation.
func WithTokenValidator(v syncsdk.TokenValidator) Option {
	return func(o *options) {
		o.validator = v
		o.validatorSet = true
	}
}

func WithCache(c cache.ResourceCache) Option {
	return func(o *options) {
		o.cache = c
	}
}

func WithSDKOptions(opts ...syncsdk.Option) Option {
	return func(o *options) {
		o.sdkOpts = append(o.sdkOpts, opts...)
	}
}

func WithFileSyncOptions(opts ...FileSyncOption) Option {
	return func(o *options) {
		o.fileOpts = append(o.fileOpts, opts...)
	}
}

// Synchronizer is one sync session over an application folder. It holds the
// workspace lock until Close.
type Synchronizer struct {
	*RowSync
	*FileSync

	config    *config.Config
	sdk       *syncsdk.SyncSDK
	workspace *workspace.Workspace
	journal   *Journal
}

// New validates the access token once, locks the application folder and
// wires the row and file protocols. A rejected token is fatal for the session.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Synchronizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if !o.validatorSet {
		o.validator = validatorFor(cfg)
	}

	if cfg.AccessToken != "" && o.validator != nil {
		if err := o.validator.Validate(ctx, cfg.AccessToken); err != nil {
			return nil, fmt.Errorf("access token rejected: %w", err)
		}
	}

	ws, err := workspace.NewWorkspace(cfg.AppDir, cfg.AppName)
	if err != nil {
		return nil, err
	}
	if err := ws.Setup(); err != nil {
		return nil, fmt.Errorf("workspace setup: %w", err)
	}

	journal := NewJournal(ws.JournalPath())
	if err := journal.Open(); err != nil {
		_ = ws.Unlock()
		return nil, err
	}

	sdk, err := syncsdk.New(&syncsdk.SyncSDKConfig{
		ServerURL:      cfg.ServerURL,
		AppName:        cfg.AppName,
		AccessToken:    cfg.AccessToken,
		ConnectTimeout: cfg.ConnectTimeout,
		ReadTimeout:    cfg.ReadTimeout,
		MaxRetries:     cfg.MaxRetries,
	}, o.sdkOpts...)
	if err != nil {
		_ = journal.Close()
		_ = ws.Unlock()
		return nil, err
	}

	if o.cache == nil {
		o.cache = cache.New(cfg.CacheSize)
	}

	excludes, err := manifest.ReadIgnoreFile(ws.AbsPath(manifest.IgnoreFile))
	if err != nil {
		slog.Warn("failed to read ignore file", "error", err)
	}

	state := NewSyncLocalState(ws, journal)
	fileOpts := append([]FileSyncOption{WithWorkers(cfg.Workers), WithAppExcludes(excludes...)}, o.fileOpts...)

	slog.Info("synchronizer ready", "app", cfg.AppName, "server", sdk.BaseURL(), "root", ws.Root)
	return &Synchronizer{
		RowSync:   NewRowSync(sdk, o.cache),
		FileSync:  NewFileSync(sdk, ws, state, fileOpts...),
		config:    cfg,
		sdk:       sdk,
		workspace: ws,
		journal:   journal,
	}, nil
}

func validatorFor(cfg *config.Config) syncsdk.TokenValidator {
	switch cfg.TokenValidation {
	case config.ValidationTokenInfo:
		return syncsdk.NewTokenInfoValidator(cfg.TokenInfoURL)
	case config.ValidationJWT:
		return &syncsdk.JWTValidator{}
	default:
		return nil
	}
}

func (s *Synchronizer) Workspace() *workspace.Workspace {
	return s.workspace
}

func (s *Synchronizer) Stats() syncsdk.HTTPStatsSnapshot {
	return s.sdk.Stats()
}

// LastTag returns the tag a table was last synced to. ok is false for a table never synced.
func (s *Synchronizer) LastTag(tableID string) (tag syncsdk.SyncTag, ok bool, err error) {
	return s.journal.LastTag(tableID)
}

// SaveTag records that the local replica of a table now matches tag
func (s *Synchronizer) SaveTag(tableID string, tag syncsdk.SyncTag) error {
	return s.journal.SaveTag(tableID, tag)
}

func (s *Synchronizer) Tags() (map[string]syncsdk.SyncTag, error) {
	return s.journal.Tags()
}

// DeleteTable removes the table on the server and forgets its sync tag
func (s *Synchronizer) DeleteTable(ctx context.Context, tableID string) error {
	if err := s.RowSync.DeleteTable(ctx, tableID); err != nil {
		return err
	}
	return s.journal.ForgetTag(tableID)
}

// PullRows fetches the rows changed since the recorded tag. The new tag is
// not saved; call SaveTag once the rows are applied locally.
func (s *Synchronizer) PullRows(ctx context.Context, tableID string) (*IncomingRowModifications, error) {
	since, _, err := s.journal.LastTag(tableID)
	if err != nil {
		return nil, err
	}
	return s.FetchChanges(ctx, tableID, since)
}

// Close releases the server connections, the journal and the workspace lock
func (s *Synchronizer) Close() error {
	s.sdk.Close()
	return errors.Join(s.journal.Close(), s.workspace.Unlock())
}
