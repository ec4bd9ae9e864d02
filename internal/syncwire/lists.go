package syncwire

import (
	"encoding/json"
	"fmt"
	"sort"
)

// FlattenSet serializes a list whose order is irrelevant (tags, participants)
// as a sorted JSON array, so equal sets always encode identically. Empty input
// yields nil.
func FlattenSet(items []string) (*string, error) {
	if len(items) == 0 {
		return nil, nil
	}
	sorted := append([]string(nil), items...)
	sort.Strings(sorted)
	return FlattenSeq(sorted)
}

// FlattenSeq serializes an order-preserving list (relation ids) as a JSON
// array. Empty input yields nil.
func FlattenSeq(items []string) (*string, error) {
	if len(items) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}

// ExplodeList reverses FlattenSet/FlattenSeq.
func ExplodeList(v *string) ([]string, error) {
	if v == nil || *v == "" {
		return nil, nil
	}
	var items []string
	if err := json.Unmarshal([]byte(*v), &items); err != nil {
		return nil, fmt.Errorf("invalid list container: %w", err)
	}
	return items, nil
}
