package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/MrSnakeDoc/linkdeck/internal/domain"
	"github.com/MrSnakeDoc/linkdeck/internal/filter"
	"github.com/MrSnakeDoc/linkdeck/internal/pagination"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62"))

	groupStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			MarginTop(1)

	titleStyle = lipgloss.NewStyle().
			Bold(true)

	archivedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	urlStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33"))

	tagStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("220"))

	countStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	dateFormat = "2006-01-02"
)

// RenderPage prints one page of bookmarks with a header and paging hints.
func RenderPage(w io.Writer, page pagination.Page[domain.Bookmark]) error {
	var b strings.Builder

	b.WriteString(headerStyle.Render(fmt.Sprintf("%d bookmarks  [page %d, %d per page]", page.Total, page.Page, page.Size)))
	b.WriteString("\n")

	if len(page.Items) == 0 {
		b.WriteString("No bookmarks found.\n")
	}
	for _, bm := range page.Items {
		b.WriteString(renderBookmark(bm))
	}

	var hints []string
	if page.HasPrevious {
		hints = append(hints, fmt.Sprintf("previous: --page %d", page.Page-1))
	}
	if page.HasNext {
		hints = append(hints, fmt.Sprintf("next: --page %d", page.Page+1))
	}
	if len(hints) > 0 {
		b.WriteString(countStyle.Render(strings.Join(hints, "  ")))
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderGroups prints bookmarks sectioned by tag.
func RenderGroups(w io.Writer, groups []filter.Group, count int) error {
	var b strings.Builder

	b.WriteString(headerStyle.Render(fmt.Sprintf("%d bookmarks in %d groups", count, len(groups))))
	b.WriteString("\n")

	for _, g := range groups {
		b.WriteString(groupStyle.Render(fmt.Sprintf("%s (%d)", g.Name, g.Count)))
		b.WriteString("\n")
		for _, bm := range g.Results {
			b.WriteString(renderBookmark(bm))
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderTags prints ranked tags with their usage counts.
func RenderTags(w io.Writer, win pagination.Window[domain.TagUsage]) error {
	var b strings.Builder

	b.WriteString(headerStyle.Render(fmt.Sprintf("%d tags in use", win.Total)))
	b.WriteString("\n")

	width := 0
	for _, t := range win.Items {
		width = max(width, lipgloss.Width(t.Name))
	}
	for _, t := range win.Items {
		name := tagStyle.Render(t.Name)
		pad := strings.Repeat(" ", width-lipgloss.Width(t.Name))
		b.WriteString(fmt.Sprintf("  %s%s  %s\n", name, pad, countStyle.Render(fmt.Sprintf("%d", t.Count))))
	}
	if win.HasNext {
		b.WriteString(countStyle.Render(fmt.Sprintf("more: --offset %d", win.Offset+win.Limit)))
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func renderBookmark(bm domain.Bookmark) string {
	title := bm.DisplayTitle()
	style := titleStyle
	if bm.IsArchived {
		style = archivedStyle
		title += " [archived]"
	}

	var b strings.Builder
	b.WriteString("  ")
	b.WriteString(style.Render(title))
	b.WriteString("  ")
	b.WriteString(countStyle.Render(bm.DateAdded.Format(dateFormat)))
	b.WriteString("\n    ")
	b.WriteString(urlStyle.Render(bm.URL))
	if len(bm.TagNames) > 0 {
		tags := make([]string, 0, len(bm.TagNames))
		for _, t := range bm.TagNames {
			tags = append(tags, "#"+t)
		}
		b.WriteString("  ")
		b.WriteString(tagStyle.Render(strings.Join(tags, " ")))
	}
	b.WriteString("\n")
	return b.String()
}
