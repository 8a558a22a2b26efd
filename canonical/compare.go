package canonical

import (
	"bytes"
	"sort"

	"github.com/samber/lo"
)

// Missing stands in for the absent side of a Difference.
const Missing = "<missing>"

// Difference describes one top-level key whose canonical values differ.
type Difference struct {
	Key    string `json:"key"`
	Value1 any    `json:"value1"`
	Value2 any    `json:"value2"`
}

// Comparison is the result of Compare.
type Comparison struct {
	AreEqual    bool         `json:"areEqual"`
	Differences []Difference `json:"differences"`
}

// Compare canonicalizes a and b and reports whether they are equal. When they
// differ, every differing top-level key is listed in byte-wise key order with
// the normalized value from each side.
func Compare(a, b any) (*Comparison, error) {
	d1, raw1, err := HashValue(a)
	if err != nil {
		return nil, err
	}
	d2, raw2, err := HashValue(b)
	if err != nil {
		return nil, err
	}
	if d1 == d2 {
		return &Comparison{AreEqual: true, Differences: []Difference{}}, nil
	}

	n1, err := Parse(raw1)
	if err != nil {
		return nil, err
	}
	n2, err := Parse(raw2)
	if err != nil {
		return nil, err
	}

	m1, ok1 := n1.(map[string]any)
	m2, ok2 := n2.(map[string]any)
	if !ok1 || !ok2 {
		return &Comparison{Differences: []Difference{{Key: "", Value1: n1, Value2: n2}}}, nil
	}

	keys := lo.Union(lo.Keys(m1), lo.Keys(m2))
	sort.Strings(keys)

	diffs := make([]Difference, 0, len(keys))
	for _, k := range keys {
		v1, in1 := m1[k]
		v2, in2 := m2[k]
		switch {
		case !in1:
			diffs = append(diffs, Difference{Key: k, Value1: Missing, Value2: v2})
		case !in2:
			diffs = append(diffs, Difference{Key: k, Value1: v1, Value2: Missing})
		case !bytes.Equal(MustCanonicalize(v1), MustCanonicalize(v2)):
			diffs = append(diffs, Difference{Key: k, Value1: v1, Value2: v2})
		}
	}

	return &Comparison{Differences: diffs}, nil
}
