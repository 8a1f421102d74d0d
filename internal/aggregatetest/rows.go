package aggregatetest

import (
	"net/http"
	"sort"

	"github.com/datakit/tablesync/internal/syncsdk"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PutRow writes a row on the server side, as another client would, and returns the
// table's new data tag
func (s *Server) PutRow(tableID string, row syncsdk.Row) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[tableID]
	if !ok {
		return ""
	}
	return s.putRowLocked(t, row).dataETag
}

type putResult struct {
	res      *syncsdk.RowResource
	dataETag string
}

func (s *Server) putRowLocked(t *table, row syncsdk.Row) putResult {
	row.RowETag = "r-" + uuid.NewString()
	etag := s.nextETag("d")
	seq := s.advanceLocked(t, etag)

	res := &syncsdk.RowResource{
		Row:                    row,
		SelfURI:                s.resource(t).DataURI + "/" + row.RowID,
		DataETagAtModification: syncsdk.StringPtr(etag),
	}
	t.rows[row.RowID] = res
	t.changedAt[row.RowID] = seq
	return putResult{res: res, dataETag: etag}
}

// Row returns a server side row
func (s *Server) Row(tableID, rowID string) (*syncsdk.RowResource, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[tableID]
	if !ok {
		return nil, false
	}
	r, ok := t.rows[rowID]
	return r, ok
}

func (s *Server) rowsSince(t *table, since int) []*syncsdk.RowResource {
	ids := make([]string, 0, len(t.rows))
	for id := range t.rows {
		if t.changedAt[id] > since {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	out := make([]*syncsdk.RowResource, 0, len(ids))
	for _, id := range ids {
		out = append(out, t.rows[id])
	}
	return out
}

func (s *Server) listRows(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.lookupRef(c)
	if !ok {
		return
	}
	s.respond(c, http.StatusOK, syncsdk.RowResourceList{Rows: s.rowsSince(t, 0)})
}

func (s *Server) diffRows(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.lookupRef(c)
	if !ok {
		return
	}
	// an unknown tag yields every row
	since := t.etagSeq[c.Query("data_etag")]
	s.respond(c, http.StatusOK, syncsdk.RowResourceList{Rows: s.rowsSince(t, since)})
}

func (s *Server) putRow(c *gin.Context) {
	var row syncsdk.Row
	if err := c.ShouldBindJSON(&row); err != nil {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.lookupRef(c)
	if !ok {
		return
	}
	row.RowID = c.Param("rowId")

	// optimistic concurrency on the row tag
	if existing, ok := t.rows[row.RowID]; ok && !existing.Deleted && row.RowETag != existing.RowETag {
		c.AbortWithStatus(http.StatusConflict)
		return
	}

	s.respond(c, http.StatusOK, s.putRowLocked(t, row).res)
}

func (s *Server) deleteRow(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.lookupRef(c)
	if !ok {
		return
	}
	rowID := c.Param("rowId")
	existing, ok := t.rows[rowID]
	if !ok {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}

	tomb := existing.Row
	tomb.Deleted = true
	etag := s.putRowLocked(t, tomb).dataETag

	if s.EmptyDeleteTag {
		c.String(http.StatusOK, "")
		return
	}
	c.String(http.StatusOK, etag)
}
