package gdocs

import (
	"fmt"

	"github.com/romangluhoedov/GoogleDocsAPI/pkg/merge"

	docs "google.golang.org/api/docs/v1"
)

func docsRange(r merge.Range) *docs.Range {
	return &docs.Range{
		StartIndex:      int64(r.StartIndex),
		EndIndex:        int64(r.EndIndex),
		ForceSendFields: []string{"StartIndex", "EndIndex"},
	}
}

// ToRequests converts plan into Docs API requests, preserving order.
func ToRequests(plan merge.Plan) ([]*docs.Request, error) {
	requests := make([]*docs.Request, 0, len(plan))
	for i, op := range plan {
		switch op.Kind {
		case merge.DeleteListBullets:
			requests = append(requests, &docs.Request{
				DeleteParagraphBullets: &docs.DeleteParagraphBulletsRequest{Range: docsRange(op.Range)},
			})
		case merge.DeleteContentRange:
			requests = append(requests, &docs.Request{
				DeleteContentRange: &docs.DeleteContentRangeRequest{Range: docsRange(op.Range)},
			})
		case merge.ReplaceAllText:
			requests = append(requests, &docs.Request{
				ReplaceAllText: &docs.ReplaceAllTextRequest{
					ContainsText: &docs.SubstringMatchCriteria{
						Text:            op.SearchText,
						MatchCase:       op.MatchCase,
						ForceSendFields: []string{"MatchCase"},
					},
					ReplaceText:     op.ReplacementText,
					ForceSendFields: []string{"ReplaceText"},
				},
			})
		default:
			return nil, fmt.Errorf("operation %d: unsupported kind %s", i, op.Kind)
		}
	}
	return requests, nil
}
