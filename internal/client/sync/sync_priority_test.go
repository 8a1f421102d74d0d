package sync

import (
	"testing"

	"github.com/datakit/tablesync/internal/queue"
	"github.com/stretchr/testify/assert"
)

func TestSyncPriorityList_DefaultPatterns(t *testing.T) {
	priority := NewSyncPriorityList()

	assert.True(t, priority.ShouldPrioritize("tables/T1/properties.csv"))
	assert.True(t, priority.ShouldPrioritize("tables/T1/definition.csv"))
	assert.True(t, priority.ShouldPrioritize("assets/framework/forms/framework/formDef.json"))
	assert.False(t, priority.ShouldPrioritize("tables/T1/forms/T1/formDef.json"))
	assert.False(t, priority.ShouldPrioritize("index.html"))

	extra := NewSyncPriorityList("*.html")
	assert.True(t, extra.ShouldPrioritize("index.html"))
}

func TestSyncPriorityList_OrdersDownloads(t *testing.T) {
	priority := NewSyncPriorityList()
	pq := queue.NewPriorityQueue[string]()

	files := []struct {
		path string
		size int64
	}{
		{"big.bin", 1 << 20},
		{"unknown.bin", 0},
		{"small.txt", 10},
		{"tables/T1/properties.csv", 1 << 30},
	}
	for _, f := range files {
		pq.Enqueue(f.path, priority.Priority(f.path, f.size))
	}

	assert.Equal(t, []string{"tables/T1/properties.csv", "small.txt", "big.bin", "unknown.bin"}, pq.Drain())
}
