package aggregatetest

import (
	"net/http"

	"github.com/datakit/tablesync/internal/syncsdk"
	"github.com/gin-gonic/gin"
)

// CreateTable adds a table with the given schema tag and no rows
func (s *Server) CreateTable(tableID, schemaETag string, columns ...syncsdk.Column) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createTableLocked(tableID, schemaETag, columns)
}

func (s *Server) createTableLocked(tableID, schemaETag string, columns []syncsdk.Column) *table {
	t := &table{
		id:         tableID,
		schemaETag: schemaETag,
		columns:    columns,
		rows:       make(map[string]*syncsdk.RowResource),
		changedAt:  make(map[string]int),
		etagSeq:    make(map[string]int),
	}
	s.tables[tableID] = t
	return t
}

// SetSchemaETag simulates the table being recreated with another schema
func (s *Server) SetSchemaETag(tableID, schemaETag string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tables[tableID]; ok {
		t.schemaETag = schemaETag
	}
}

// SetDataETag forces the current data tag of a table
func (s *Server) SetDataETag(tableID, dataETag string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tables[tableID]; ok {
		s.advanceLocked(t, dataETag)
	}
}

// TableTag returns the server side tag of a table
func (s *Server) TableTag(tableID string) (syncsdk.SyncTag, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[tableID]
	if !ok {
		return syncsdk.SyncTag{}, false
	}
	return syncsdk.NewSyncTag(t.dataETag, t.schemaETag), true
}

// advanceLocked moves the table to a new data tag and returns its sequence
func (s *Server) advanceLocked(t *table, etag string) int {
	s.seq++
	t.dataETag = etag
	t.etagSeq[etag] = s.seq
	return s.seq
}

func (s *Server) resource(t *table) *syncsdk.TableResource {
	tableURL := s.BaseURL() + "tables/" + t.id
	ref := tableURL + "/ref/" + t.schemaETag
	return &syncsdk.TableResource{
		TableID:       t.id,
		DataETag:      syncsdk.StringPtr(t.dataETag),
		SchemaETag:    syncsdk.StringPtr(t.schemaETag),
		SelfURI:       tableURL,
		DefinitionURI: ref,
		DataURI:       ref + "/rows",
		DiffURI:       ref + "/diff",
		InstanceFiles: tableURL + "/attachments",
		ACLURI:        tableURL + "/acl",
	}
}

func (s *Server) listTables(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := syncsdk.TableResourceList{}
	// map order on purpose; clients sort
	for _, t := range s.tables {
		list.Tables = append(list.Tables, s.resource(t))
	}
	s.respond(c, http.StatusOK, list)
}

func (s *Server) lookup(c *gin.Context) (*table, bool) {
	t, ok := s.tables[c.Param("tableId")]
	if !ok {
		c.AbortWithStatus(http.StatusNotFound)
	}
	return t, ok
}

func (s *Server) getTable(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.lookup(c)
	if !ok {
		return
	}
	s.respond(c, http.StatusOK, s.resource(t))
}

func (s *Server) createTable(c *gin.Context) {
	var def syncsdk.TableDefinition
	if err := c.ShouldBindJSON(&def); err != nil {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tableID := c.Param("tableId")
	if t, ok := s.tables[tableID]; ok {
		// same schema is idempotent, anything else conflicts
		if def.SchemaETag != nil && *def.SchemaETag != t.schemaETag {
			c.AbortWithStatus(http.StatusConflict)
			return
		}
		s.respond(c, http.StatusOK, s.resource(t))
		return
	}

	schema := syncsdk.Deref(def.SchemaETag)
	if schema == "" {
		schema = s.nextETag("s")
	}
	t := s.createTableLocked(tableID, schema, def.Columns)
	s.respond(c, http.StatusCreated, s.resource(t))
}

func (s *Server) deleteTable(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.lookup(c); !ok {
		return
	}
	delete(s.tables, c.Param("tableId"))
	c.Status(http.StatusOK)
}

// lookupRef resolves a table and checks the schema tag embedded in the URL
func (s *Server) lookupRef(c *gin.Context) (*table, bool) {
	t, ok := s.lookup(c)
	if !ok {
		return nil, false
	}
	if c.Param("schema") != t.schemaETag {
		c.AbortWithStatus(http.StatusPreconditionFailed)
		return nil, false
	}
	return t, true
}

func (s *Server) getDefinition(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.lookup(c)
	if !ok {
		return
	}
	// the definition is served at the current schema even through an old ref
	tableURL := s.BaseURL() + "tables/" + t.id
	s.respond(c, http.StatusOK, &syncsdk.TableDefinitionResource{
		TableDefinition: syncsdk.TableDefinition{
			TableID:    t.id,
			SchemaETag: syncsdk.StringPtr(t.schemaETag),
			Columns:    t.columns,
		},
		SelfURI:  tableURL + "/ref/" + t.schemaETag,
		TableURI: tableURL,
	})
}
