package backtest

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"RegimeSentinel/internal/model"
)

// LabelSet is a sorted set of state labels.
type LabelSet []int

// NewLabelSet sorts and deduplicates labels.
func NewLabelSet(labels ...int) LabelSet {
	out := append(LabelSet(nil), labels...)
	sort.Ints(out)
	j := 0
	for i, v := range out {
		if i > 0 && v == out[j-1] {
			continue
		}
		out[j] = v
		j++
	}
	return out[:j]
}

// Contains reports whether label is in the set.
func (s LabelSet) Contains(label int) bool {
	i := sort.SearchInts(s, label)
	return i < len(s) && s[i] == label
}

func (s LabelSet) String() string {
	parts := make([]string, len(s))
	for i, v := range s {
		parts[i] = strconv.Itoa(v)
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// ParseLabelSet reads a comma separated list such as "0,2".
func ParseLabelSet(s string) (LabelSet, error) {
	s = strings.Trim(strings.TrimSpace(s), "{}")
	if s == "" {
		return LabelSet{}, nil
	}
	var labels []int
	for _, part := range strings.Split(s, ",") {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || v < 0 {
			return nil, fmt.Errorf("%w: invalid state label %q", model.ErrConfiguration, part)
		}
		labels = append(labels, v)
	}
	return NewLabelSet(labels...), nil
}
