package gdocs

import (
	"strings"

	"github.com/romangluhoedov/GoogleDocsAPI/pkg/merge"

	docs "google.golang.org/api/docs/v1"
)

// Index is the placeholder layout of one document revision.
type Index struct {
	Elements   merge.ElementIndexMap
	ListItems  merge.ListItemSet
	RevisionID string
}

// BuildIndex locates the paragraphs of doc that consist solely of one of the
// placeholder names. Inline occurrences are not indexed: they can only be
// blanked by text replacement, never removed as an element.
func BuildIndex(doc *docs.Document, names []string) *Index {
	index := &Index{
		Elements:   merge.ElementIndexMap{},
		ListItems:  merge.ListItemSet{},
		RevisionID: doc.RevisionId,
	}
	if doc.Body == nil || len(names) == 0 {
		return index
	}

	wanted := make(map[string]struct{}, len(names))
	for _, name := range names {
		if name != "" {
			wanted[name] = struct{}{}
		}
	}

	walkParagraphs(doc.Body.Content, func(el *docs.StructuralElement, end int64) {
		text := strings.TrimSpace(paragraphText(el.Paragraph))
		if _, ok := wanted[text]; !ok {
			return
		}
		if el.StartIndex >= end {
			return
		}
		index.Elements.Add(text, merge.Range{StartIndex: int(el.StartIndex), EndIndex: int(end)})
		if el.Paragraph.Bullet != nil {
			index.ListItems.Add(text)
		}
	})

	return index
}

// walkParagraphs visits every editable paragraph with the end of its
// deletable range. The newline closing a body or cell segment, and the one
// right before a table, cannot be deleted. Tables of contents are generated
// content and are skipped.
func walkParagraphs(content []*docs.StructuralElement, visit func(el *docs.StructuralElement, end int64)) {
	for i, el := range content {
		switch {
		case el.Paragraph != nil:
			end := el.EndIndex
			if i == len(content)-1 || content[i+1].Table != nil {
				end--
			}
			visit(el, end)
		case el.Table != nil:
			for _, row := range el.Table.TableRows {
				for _, cell := range row.TableCells {
					walkParagraphs(cell.Content, visit)
				}
			}
		}
	}
}

func paragraphText(p *docs.Paragraph) string {
	var b strings.Builder
	for _, el := range p.Elements {
		if el.TextRun != nil {
			b.WriteString(el.TextRun.Content)
		}
	}
	return b.String()
}
