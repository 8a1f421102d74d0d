package syncsdk

import "fmt"

// SyncTag is the pair of server version stamps for one table.
// A nil tag means "never synced" and never equals a non-nil tag.
type SyncTag struct {
	DataETag   *string `json:"dataETag" xml:"dataETag,omitempty"`
	SchemaETag *string `json:"schemaETag" xml:"schemaETag,omitempty"`
}

// NewSyncTag builds a tag from plain strings. An empty string is treated as nil.
func NewSyncTag(dataETag, schemaETag string) SyncTag {
	return SyncTag{DataETag: StringPtr(dataETag), SchemaETag: StringPtr(schemaETag)}
}

// StringPtr returns nil for "" and a pointer to a copy otherwise
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns "" for nil
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ETagEqual compares two nullable version stamps
func ETagEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (t SyncTag) DataEqual(o SyncTag) bool {
	return ETagEqual(t.DataETag, o.DataETag)
}

func (t SyncTag) SchemaEqual(o SyncTag) bool {
	return ETagEqual(t.SchemaETag, o.SchemaETag)
}

func (t SyncTag) Equal(o SyncTag) bool {
	return t.DataEqual(o) && t.SchemaEqual(o)
}

// Clone returns a tag that shares no pointers with t
func (t SyncTag) Clone() SyncTag {
	return SyncTag{DataETag: clonePtr(t.DataETag), SchemaETag: clonePtr(t.SchemaETag)}
}

// WithData returns a copy of t carrying a different data tag
func (t SyncTag) WithData(dataETag *string) SyncTag {
	c := t.Clone()
	c.DataETag = clonePtr(dataETag)
	return c
}

func (t SyncTag) String() string {
	return fmt.Sprintf("{data:%s schema:%s}", fmtTag(t.DataETag), fmtTag(t.SchemaETag))
}

func fmtTag(s *string) string {
	if s == nil {
		return "<nil>"
	}
	return *s
}

func clonePtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
