package syncsdk

// TableResource is the server's current view of one table
type TableResource struct {
	TableID       string  `json:"tableId" xml:"tableId"`
	DataETag      *string `json:"dataETag" xml:"dataETag,omitempty"`
	SchemaETag    *string `json:"schemaETag" xml:"schemaETag,omitempty"`
	SelfURI       string  `json:"selfUri" xml:"selfUri"`
	DefinitionURI string  `json:"definitionUri" xml:"definitionUri"`
	DataURI       string  `json:"dataUri" xml:"dataUri"`
	InstanceFiles string  `json:"instanceFilesUri,omitempty" xml:"instanceFilesUri,omitempty"`
	DiffURI       string  `json:"diffUri" xml:"diffUri"`
	ACLURI        string  `json:"aclUri,omitempty" xml:"aclUri,omitempty"`
}

// Tag returns the resource's current version pair
func (r *TableResource) Tag() SyncTag {
	return SyncTag{DataETag: r.DataETag, SchemaETag: r.SchemaETag}.Clone()
}

// Clone returns a deep copy
func (r *TableResource) Clone() *TableResource {
	if r == nil {
		return nil
	}
	c := *r
	c.DataETag = clonePtr(r.DataETag)
	c.SchemaETag = clonePtr(r.SchemaETag)
	return &c
}

// TableResourceList is the body of GET /tables/
type TableResourceList struct {
	Tables []*TableResource `json:"tables" xml:"tables>tableResource"`
}

// Column is an opaque column descriptor. The engine never interprets element types.
type Column struct {
	ElementKey           string `json:"elementKey" xml:"elementKey"`
	ElementName          string `json:"elementName" xml:"elementName"`
	ElementType          string `json:"elementType,omitempty" xml:"elementType,omitempty"`
	ListChildElementKeys string `json:"listChildElementKeys,omitempty" xml:"listChildElementKeys,omitempty"`
}

// TableDefinition is the body of PUT /tables/{tableId}
type TableDefinition struct {
	TableID    string   `json:"tableId" xml:"tableId"`
	SchemaETag *string  `json:"schemaETag" xml:"schemaETag,omitempty"`
	Columns    []Column `json:"orderedColumns" xml:"orderedColumns>column"`
}

// TableDefinitionResource is a definition as served from a table's definition URI
type TableDefinitionResource struct {
	TableDefinition
	SelfURI  string `json:"selfUri" xml:"selfUri"`
	TableURI string `json:"tableUri" xml:"tableUri"`
}
