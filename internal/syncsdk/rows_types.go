package syncsdk

// FilterScope controls row visibility on the server
type FilterScope struct {
	Type  string `json:"type" xml:"type"`
	Value string `json:"value,omitempty" xml:"value,omitempty"`
}

// DataKeyValue is one column value of a row
type DataKeyValue struct {
	Column string `json:"column" xml:"column"`
	Value  string `json:"value" xml:"value"`
}

// Row is the wire form of a row sent to the server
type Row struct {
	RowID              string         `json:"rowId" xml:"rowId"`
	RowETag            string         `json:"rowETag,omitempty" xml:"rowETag,omitempty"`
	Deleted            bool           `json:"deleted" xml:"deleted"`
	FormID             string         `json:"formId,omitempty" xml:"formId,omitempty"`
	Locale             string         `json:"locale,omitempty" xml:"locale,omitempty"`
	SavepointType      string         `json:"savepointType,omitempty" xml:"savepointType,omitempty"`
	SavepointTimestamp string         `json:"savepointTimestamp,omitempty" xml:"savepointTimestamp,omitempty"`
	SavepointCreator   string         `json:"savepointCreator,omitempty" xml:"savepointCreator,omitempty"`
	FilterScope        FilterScope    `json:"filterScope" xml:"filterScope"`
	Values             []DataKeyValue `json:"orderedColumns" xml:"orderedColumns>value"`
}

// RowResource is a row as returned by the server
type RowResource struct {
	Row
	SelfURI string `json:"selfUri,omitempty" xml:"selfUri,omitempty"`
	// DataETagAtModification is the table data tag right after this row was written
	DataETagAtModification *string `json:"dataETagAtModification,omitempty" xml:"dataETagAtModification,omitempty"`
}

// RowResourceList is the body of a data or diff fetch
type RowResourceList struct {
	Rows []*RowResource `json:"rows" xml:"rows>row"`
}
