package workspace

import (
	"regexp"
	"strings"
)

var (
	// regexTableID matches identifiers usable as table ids and folder names
	// Valid: "census", "visit_2024", "T1"
	// Invalid: "2024", "_x", "a-b", "a/b"
	regexTableID = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

	rowDirReplacer = strings.NewReplacer(":", "_", "-", "_", "/", "_", "\\", "_", ".", "_")
)

// IsValidTableID checks that a table id is safe to use as a folder name
func IsValidTableID(tableID string) bool {
	return regexTableID.MatchString(tableID)
}

// SafeRowDir maps a row id such as "uuid:6f1c-..." to its attachment folder name
func SafeRowDir(rowID string) string {
	return rowDirReplacer.Replace(rowID)
}
