package manifest

import (
	"fmt"
	"slices"

	"github.com/datakit/tablesync/internal/syncsdk"
	"github.com/datakit/tablesync/internal/utils"
	mapset "github.com/deckarep/golang-set/v2"
)

type Direction int

const (
	Pull Direction = iota
	Push
)

func (d Direction) String() string {
	if d == Push {
		return "push"
	}
	return "pull"
}

// HashFunc returns the prefixed content hash of a local relative path
type HashFunc func(rel string) (string, error)

type DiffOptions struct {
	Direction Direction
	// Immutable files are never replaced on either side. A hash mismatch is
	// reported in Mismatched instead.
	Immutable bool
}

// Result is the set of actions that makes one side match the other.
// Every slice is sorted by path.
type Result struct {
	Unchanged      []string
	ToUpload       []string
	ToDeleteRemote []string
	ToDownload     []syncsdk.ManifestEntry
	ToDeleteLocal  []string
	Mismatched     []string
	// Failed holds paths whose local hash could not be computed. They are
	// left out of every other bucket.
	Failed map[string]error
}

// Empty reports whether no transfer or delete is needed
func (r *Result) Empty() bool {
	return len(r.ToUpload) == 0 && len(r.ToDeleteRemote) == 0 &&
		len(r.ToDownload) == 0 && len(r.ToDeleteLocal) == 0
}

func (r *Result) String() string {
	return fmt.Sprintf("unchanged=%d upload=%d deleteRemote=%d download=%d deleteLocal=%d mismatched=%d failed=%d",
		len(r.Unchanged), len(r.ToUpload), len(r.ToDeleteRemote), len(r.ToDownload), len(r.ToDeleteLocal), len(r.Mismatched), len(r.Failed))
}

// Diff compares local relative paths with a remote manifest. Both sides must
// use paths relative to the application folder. Files are the same when
// their paths and content hashes are equal. A path that cannot be hashed is
// reported in Failed and the rest of the diff goes on.
func Diff(local []string, entries []syncsdk.ManifestEntry, hash HashFunc, opts DiffOptions) *Result {
	candidates := mapset.NewThreadUnsafeSet[string]()
	for _, p := range local {
		if p = utils.NormPath(p); p != "" {
			candidates.Add(p)
		}
	}

	remote := make(map[string]syncsdk.ManifestEntry, len(entries))
	for _, e := range entries {
		e.Filename = utils.NormPath(e.Filename)
		if e.Filename == "" {
			continue
		}
		remote[e.Filename] = e
	}

	res := &Result{}
	for _, path := range sortedKeys(remote) {
		entry := remote[path]

		if !candidates.Contains(path) {
			if opts.Direction == Pull {
				res.ToDownload = append(res.ToDownload, entry)
			} else if !opts.Immutable {
				res.ToDeleteRemote = append(res.ToDeleteRemote, path)
			}
			continue
		}
		candidates.Remove(path)

		localHash, err := hash(path)
		if err != nil {
			if res.Failed == nil {
				res.Failed = make(map[string]error)
			}
			res.Failed[path] = fmt.Errorf("hash: %w", err)
			continue
		}

		switch {
		case utils.SameHash(localHash, entry.MD5Hash):
			res.Unchanged = append(res.Unchanged, path)
		case opts.Immutable:
			res.Mismatched = append(res.Mismatched, path)
		case opts.Direction == Pull:
			res.ToDownload = append(res.ToDownload, entry)
		default:
			res.ToUpload = append(res.ToUpload, path)
		}
	}

	leftover := candidates.ToSlice()
	slices.Sort(leftover)
	if opts.Direction == Push {
		res.ToUpload = append(res.ToUpload, leftover...)
		slices.Sort(res.ToUpload)
	} else {
		res.ToDeleteLocal = leftover
	}

	return res
}

func sortedKeys(m map[string]syncsdk.ManifestEntry) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
