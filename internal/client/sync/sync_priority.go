package sync

import (
	"math"

	gitignore "github.com/sabhiram/go-gitignore"
)

var defaultPriorityFiles = []string{
	// table metadata drives everything else, fetch it first
	"tables/*/properties.csv",
	"tables/*/definition.csv",
	"assets/framework/**",
}

const (
	priorityFirst = -1
	// sizeUnknown sorts entries without a content length after sized ones
	sizeUnknown = math.MaxInt32
)

type SyncPriorityList struct {
	priority *gitignore.GitIgnore
}

func NewSyncPriorityList(extra ...string) *SyncPriorityList {
	lines := append(append([]string(nil), defaultPriorityFiles...), extra...)
	return &SyncPriorityList{priority: gitignore.CompileIgnoreLines(lines...)}
}

func (s *SyncPriorityList) ShouldPrioritize(rel string) bool {
	return s.priority.MatchesPath(rel)
}

// Priority orders downloads: prioritized paths first, then smaller files first
func (s *SyncPriorityList) Priority(rel string, size int64) int {
	if s.ShouldPrioritize(rel) {
		return priorityFirst
	}
	if size <= 0 {
		return sizeUnknown
	}
	if size >= sizeUnknown {
		return sizeUnknown - 1
	}
	return int(size)
}
