package manifest

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/datakit/tablesync/internal/client/workspace"
	"github.com/datakit/tablesync/internal/utils"
	gitignore "github.com/sabhiram/go-gitignore"
)

// IgnoreFile holds extra gitignore style exclusions for app level files
const IgnoreFile = ".tablesyncignore"

// Folder exclusions are anchored at the app root. A nested folder that
// happens to be called tables or logs is ordinary content.
var defaultIgnoreLines = []string{
	// tablesync
	"/.data/",
	"/logs/",
	"*.tmp",
	IgnoreFile,
	// General excludes
	".git",
	// OS-specific
	".DS_Store",
	"Thumbs.db",
}

// Filter decides which relative paths take part in a file sync.
// Exclude lines use gitignore syntax. Include entries are doublestar globs
// that re-admit paths an exclusion dropped.
type Filter struct {
	exclude  []string
	include  []string
	excluder *gitignore.GitIgnore
}

func NewFilter(exclude []string, include []string) (*Filter, error) {
	for _, pattern := range include {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid include pattern %q", pattern)
		}
	}
	return &Filter{
		exclude:  exclude,
		include:  include,
		excluder: gitignore.CompileIgnoreLines(exclude...),
	}, nil
}

// Match reports whether a file path passes the filter
func (f *Filter) Match(rel string) bool {
	rel = utils.NormPath(rel)
	if rel == "" {
		return false
	}
	if !f.excluder.MatchesPath(rel) {
		return true
	}
	return f.included(rel)
}

// Apply returns the paths that pass the filter, in their original order
func (f *Filter) Apply(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if f.Match(p) {
			out = append(out, utils.NormPath(p))
		}
	}
	return out
}

// Skip adapts the filter to workspace listings. Excluded directories are
// pruned unless an include pattern reaches into them.
func (f *Filter) Skip(rel string, isDir bool) bool {
	if !isDir {
		return !f.Match(rel)
	}
	if !f.excluder.MatchesPath(rel + "/") {
		return false
	}
	for _, pattern := range f.include {
		base, _ := doublestar.SplitPattern(pattern)
		if base == "." || base == rel || strings.HasPrefix(base, rel+"/") || strings.HasPrefix(rel, base+"/") {
			return false
		}
	}
	return true
}

func (f *Filter) Exclude() []string { return append([]string(nil), f.exclude...) }
func (f *Filter) Include() []string { return append([]string(nil), f.include...) }

func (f *Filter) included(rel string) bool {
	for _, pattern := range f.include {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// AppFilter covers app level files: everything but table folders, the
// per-table csv assets and local state. extra lines come from IgnoreFile.
func AppFilter(extra ...string) *Filter {
	lines := append([]string{"/tables/", anchorDir(workspace.TableCSVDir())}, defaultIgnoreLines...)
	lines = append(lines, extra...)
	f, _ := NewFilter(lines, nil)
	return f
}

// TableFilter covers tables/<id> minus its instances folder, plus the csv
// assets whose first dot separated name part is the table id
// (assets/csv/<id>.*, assets/csv/<id>.*/** and assets/csv/<id>/**)
func TableFilter(tableID string) (*Filter, error) {
	if !workspace.IsValidTableID(tableID) {
		return nil, fmt.Errorf("invalid table id %q", tableID)
	}
	csv := workspace.TableCSVDir()
	exclude := append([]string{anchorDir(workspace.InstancesDir(tableID)), anchorDir(csv)}, defaultIgnoreLines...)
	include := []string{
		csv + "/" + tableID + ".*",
		csv + "/" + tableID + ".*/**",
		csv + "/" + tableID + "/**",
	}
	return NewFilter(exclude, include)
}

// anchorDir turns a root relative folder into a gitignore line that only
// matches that folder
func anchorDir(rel string) string {
	return "/" + utils.NormPath(rel) + "/"
}

// AttachmentFilter covers a row's instance folder
func AttachmentFilter() *Filter {
	f, _ := NewFilter(defaultIgnoreLines, nil)
	return f
}

// ReadIgnoreFile loads non-empty, non-comment lines from an ignore file.
// A missing file yields no lines.
func ReadIgnoreFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	slog.Debug("loaded ignore file", "path", path, "rules", len(lines))
	return lines, nil
}
