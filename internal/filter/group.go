package filter

import "github.com/MrSnakeDoc/linkdeck/internal/domain"

// UntaggedGroup collects records without any tag.
const UntaggedGroup = "Untagged"

// Group is one display section. A record with several tags appears in
// each of its tag groups.
type Group struct {
	Name    string            `json:"name"`
	Count   int               `json:"count"`
	Results []domain.Bookmark `json:"results"`
}

// GroupByTag fans records out into per-tag groups in order of first
// appearance. Record order inside a group follows the input order.
func GroupByTag(records []domain.Bookmark) []Group {
	var groups []Group
	pos := make(map[string]int)

	add := func(name string, b domain.Bookmark) {
		i, ok := pos[name]
		if !ok {
			i = len(groups)
			pos[name] = i
			groups = append(groups, Group{Name: name})
		}
		groups[i].Results = append(groups[i].Results, b)
		groups[i].Count++
	}

	for _, b := range records {
		tags := b.UniqueTags()
		if len(tags) == 0 {
			add(UntaggedGroup, b)
			continue
		}
		for _, tag := range tags {
			add(tag, b)
		}
	}
	return groups
}
