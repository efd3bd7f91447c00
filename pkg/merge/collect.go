// Package merge turns placeholder locations and substitution values into an
// ordered batch of document edits that can be submitted as one atomic update.
package merge

import (
	"fmt"
	"sort"
)

// Range is a half-open [StartIndex, EndIndex) character interval of a document.
type Range struct {
	StartIndex int `json:"startIndex"`
	EndIndex   int `json:"endIndex"`
}

func (r Range) String() string {
	return fmt.Sprintf("[%d,%d)", r.StartIndex, r.EndIndex)
}

func (r Range) validate() string {
	switch {
	case r.StartIndex < 0:
		return "negative start index"
	case r.StartIndex >= r.EndIndex:
		return "start index must be below end index"
	}
	return ""
}

// ElementIndexMap maps a placeholder name to the ranges it occupies, keyed by
// each range's start index.
type ElementIndexMap map[string]map[int]Range

// Add records r for placeholder, creating the inner map as needed.
func (m ElementIndexMap) Add(placeholder string, r Range) {
	inner, ok := m[placeholder]
	if !ok {
		inner = make(map[int]Range)
		m[placeholder] = inner
	}
	inner[r.StartIndex] = r
}

// PlacedRange pairs a placeholder with one of its ranges.
type PlacedRange struct {
	Placeholder string `json:"placeholder"`
	Range       Range  `json:"range"`
}

// Collect flattens m into placeholder ranges ordered by descending start index.
// Deleting ranges in this order never shifts a range that is still pending.
func Collect(m ElementIndexMap) ([]PlacedRange, error) {
	starts := make(map[int]struct{})
	for placeholder, ranges := range m {
		for key, r := range ranges {
			if reason := r.validate(); reason != "" {
				return nil, &RangeError{Placeholder: placeholder, Key: key, Range: r, Reason: reason}
			}
			if key != r.StartIndex {
				return nil, &RangeError{
					Placeholder: placeholder,
					Key:         key,
					Range:       r,
					Reason:      fmt.Sprintf("offset %d refers to no range", key),
				}
			}
			starts[key] = struct{}{}
		}
	}

	ordered := make([]int, 0, len(starts))
	for start := range starts {
		ordered = append(ordered, start)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(ordered)))

	names := make([]string, 0, len(m))
	for placeholder := range m {
		names = append(names, placeholder)
	}
	sort.Strings(names)

	result := make([]PlacedRange, 0, len(ordered))
	for _, start := range ordered {
		for _, placeholder := range names {
			if r, ok := m[placeholder][start]; ok {
				result = append(result, PlacedRange{Placeholder: placeholder, Range: r})
			}
		}
	}

	return result, nil
}
