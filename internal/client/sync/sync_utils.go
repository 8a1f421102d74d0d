package sync

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/datakit/tablesync/internal/syncsdk"
)

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// isNotFound reports a 404 from the server
func isNotFound(err error) bool {
	var te *syncsdk.TransportError
	return errors.As(err, &te) && te.StatusCode == http.StatusNotFound
}

// withPrefix joins a manifest relative name onto its app relative folder
func withPrefix(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return strings.TrimSuffix(prefix, "/") + "/" + strings.TrimPrefix(name, "/")
}

// underRoot reports whether rel lies inside one of roots ("" is the whole folder)
func underRoot(rel string, roots []string) bool {
	for _, root := range roots {
		if root == "" || rel == root || strings.HasPrefix(rel, root+"/") {
			return true
		}
	}
	return false
}
