package index

import (
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/MrSnakeDoc/linkdeck/internal/domain"
)

// ComputeCounts counts, per tag name, the records carrying that tag.
// A record repeating a tag is counted once.
func ComputeCounts(records []domain.Bookmark) map[string]int {
	counts := make(map[string]int)
	for i := range records {
		for _, name := range records[i].UniqueTags() {
			counts[name]++
		}
	}
	return counts
}

// RankTags keeps tags with a nonzero count, ordered by count descending and
// then by name using the collation rules of lang.
func RankTags(tags []domain.Tag, counts map[string]int, lang language.Tag) []domain.TagUsage {
	ranked := make([]domain.TagUsage, 0, len(tags))
	for _, t := range tags {
		if n := counts[t.Name]; n > 0 {
			ranked = append(ranked, domain.TagUsage{Tag: t, Count: n})
		}
	}

	col := collate.New(lang)
	slices.SortStableFunc(ranked, func(a, b domain.TagUsage) int {
		if a.Count != b.Count {
			return b.Count - a.Count
		}
		if c := col.CompareString(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	return ranked
}

// SearchTags keeps tags whose name contains q, ignoring case. A blank q keeps all.
func SearchTags(tags []domain.TagUsage, q string) []domain.TagUsage {
	q = strings.TrimSpace(q)
	if q == "" {
		return tags
	}
	fold := cases.Fold()
	q = fold.String(q)

	out := make([]domain.TagUsage, 0, len(tags))
	for _, t := range tags {
		if strings.Contains(fold.String(t.Name), q) {
			out = append(out, t)
		}
	}
	return out
}

// UsageIndex memoizes tag counts for the most recent snapshot.
// Counts are rebuilt in full whenever the snapshot changes; never patched.
type UsageIndex struct {
	mu          sync.RWMutex
	counts      map[string]int
	source      time.Time // FetchedAt of the snapshot the counts belong to
	lastRebuild time.Time
	now         func() time.Time
}

// NewUsageIndex creates an empty usage index.
func NewUsageIndex() *UsageIndex {
	return &UsageIndex{now: time.Now}
}

// Counts returns tag counts for snap, rebuilding them if snap is not the
// snapshot the index was last built from. The returned map must not be modified.
func (idx *UsageIndex) Counts(snap *domain.Snapshot) map[string]int {
	if snap == nil {
		return map[string]int{}
	}

	idx.mu.RLock()
	if idx.counts != nil && idx.source.Equal(snap.FetchedAt) {
		counts := idx.counts
		idx.mu.RUnlock()
		return counts
	}
	idx.mu.RUnlock()

	counts := ComputeCounts(snap.Bookmarks)

	idx.mu.Lock()
	defer idx.mu.Unlock()
	// A concurrent caller may have indexed a newer snapshot meanwhile.
	if idx.counts == nil || !snap.FetchedAt.Before(idx.source) {
		idx.counts = counts
		idx.source = snap.FetchedAt
		idx.lastRebuild = idx.now()
	}
	return counts
}

// Count returns the number of distinct tags currently indexed.
func (idx *UsageIndex) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return len(idx.counts)
}

// GetLastRebuild returns when counts were last recomputed.
func (idx *UsageIndex) GetLastRebuild() time.Time {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.lastRebuild
}
