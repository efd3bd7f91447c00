package merge

import (
	"encoding/json"
	"fmt"
)

// Substitution assigns a replacement to a placeholder token. An empty
// Replacement removes the placeholder's content instead of blanking it.
type Substitution struct {
	Variable    string `json:"variable"`
	Replacement string `json:"replacement"`
}

// ListItemSet holds the placeholders that render as bulleted paragraphs.
type ListItemSet map[string]struct{}

// NewListItemSet builds a set from names.
func NewListItemSet(names ...string) ListItemSet {
	set := make(ListItemSet, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set
}

// Contains reports whether name is a list item. A nil set contains nothing.
func (s ListItemSet) Contains(name string) bool {
	_, ok := s[name]
	return ok
}

// Add inserts name into the set.
func (s ListItemSet) Add(name string) {
	s[name] = struct{}{}
}

// Names returns the members in no particular order.
func (s ListItemSet) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	return names
}

// OpKind selects the variant of an EditOperation.
type OpKind int

const (
	DeleteListBullets OpKind = iota + 1
	DeleteContentRange
	ReplaceAllText
)

func (k OpKind) String() string {
	switch k {
	case DeleteListBullets:
		return "deleteParagraphBullets"
	case DeleteContentRange:
		return "deleteContentRange"
	case ReplaceAllText:
		return "replaceAllText"
	default:
		return fmt.Sprintf("OpKind(%d)", int(k))
	}
}

// EditOperation describes one edit of the target document. Range is set for
// the deletion kinds, the text fields for ReplaceAllText.
type EditOperation struct {
	Kind            OpKind
	Range           Range
	SearchText      string
	ReplacementText string
	MatchCase       bool
}

// DeleteBullets clears list formatting over r.
func DeleteBullets(r Range) EditOperation {
	return EditOperation{Kind: DeleteListBullets, Range: r}
}

// DeleteContent removes the content of r.
func DeleteContent(r Range) EditOperation {
	return EditOperation{Kind: DeleteContentRange, Range: r}
}

// ReplaceText replaces every case-sensitive occurrence of search.
func ReplaceText(search, replacement string) EditOperation {
	return EditOperation{Kind: ReplaceAllText, SearchText: search, ReplacementText: replacement, MatchCase: true}
}

func (op EditOperation) String() string {
	if op.Kind == ReplaceAllText {
		return fmt.Sprintf("%s(%q -> %q)", op.Kind, op.SearchText, op.ReplacementText)
	}
	return fmt.Sprintf("%s%s", op.Kind, op.Range)
}

type wireRange struct {
	Range Range `json:"range"`
}

type wireContainsText struct {
	Text      string `json:"text"`
	MatchCase bool   `json:"matchCase"`
}

type wireReplace struct {
	ContainsText wireContainsText `json:"containsText"`
	ReplaceText  string           `json:"replaceText"`
}

// MarshalJSON encodes the operation in the shape the document service expects.
func (op EditOperation) MarshalJSON() ([]byte, error) {
	switch op.Kind {
	case DeleteListBullets, DeleteContentRange:
		return json.Marshal(map[string]wireRange{op.Kind.String(): {Range: op.Range}})
	case ReplaceAllText:
		return json.Marshal(map[string]wireReplace{op.Kind.String(): {
			ContainsText: wireContainsText{Text: op.SearchText, MatchCase: op.MatchCase},
			ReplaceText:  op.ReplacementText,
		}})
	default:
		return nil, fmt.Errorf("cannot encode edit operation of kind %s", op.Kind)
	}
}

// Plan is an ordered batch of edits. Order is significant and must survive
// until submission.
type Plan []EditOperation

// Empty reports whether there is nothing to submit.
func (p Plan) Empty() bool {
	return len(p) == 0
}

// Build emits the deletions for placeholders explicitly supplied with an empty
// replacement, walking ordered from the highest offset down, and then one
// ReplaceAllText per substitution in caller order. Placeholders missing from
// subs are left alone.
func Build(subs []Substitution, listItems ListItemSet, ordered []PlacedRange) (Plan, error) {
	replacements := make(map[string]string, len(subs))
	for _, sub := range subs {
		replacements[sub.Variable] = sub.Replacement
	}

	plan := make(Plan, 0, len(subs))
	for i, placed := range ordered {
		if reason := placed.Range.validate(); reason != "" {
			return nil, &RangeError{Placeholder: placed.Placeholder, Key: placed.Range.StartIndex, Range: placed.Range, Reason: reason}
		}
		if i > 0 && placed.Range.StartIndex > ordered[i-1].Range.StartIndex {
			return nil, &RangeError{
				Placeholder: placed.Placeholder,
				Key:         placed.Range.StartIndex,
				Range:       placed.Range,
				Reason:      "ranges are not in descending start order",
			}
		}

		replacement, ok := replacements[placed.Placeholder]
		if !ok || replacement != "" {
			continue
		}
		if listItems.Contains(placed.Placeholder) {
			plan = append(plan, DeleteBullets(placed.Range))
		}
		plan = append(plan, DeleteContent(placed.Range))
	}

	for _, sub := range subs {
		plan = append(plan, ReplaceText(sub.Variable, sub.Replacement))
	}

	return plan, nil
}

// Prepare collects index and builds the plan for subs.
func Prepare(subs []Substitution, listItems ListItemSet, index ElementIndexMap) (Plan, error) {
	ordered, err := Collect(index)
	if err != nil {
		return nil, err
	}
	return Build(subs, listItems, ordered)
}
