package notebook

import (
	"strings"

	"github.com/sahilm/fuzzy"
)

type noteSource []Note

func (s noteSource) String(i int) string {
	return s[i].Title + "\n" + s[i].Content
}

func (s noteSource) Len() int {
	return len(s)
}

// SearchNotes fuzzy-matches the query against note titles and content, best
// match first. An empty tab id searches every tab.
func (n *Notebook) SearchNotes(query string, tabID TabID) []Note {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Note{}
	}
	candidates := n.notes
	if tabID != "" {
		candidates = n.NotesByTab(tabID)
	}
	matches := fuzzy.FindFrom(query, noteSource(candidates))
	results := make([]Note, 0, len(matches))
	for _, match := range matches {
		results = append(results, candidates[match.Index])
	}
	return results
}
