package content

import (
	"encoding/json"
	"math"
	"strconv"
)

// PriorityTable maps priority labels onto the 0-10 scale.
type PriorityTable map[string]int

func DefaultPriorityTable() PriorityTable {
	return PriorityTable{
		"urgent": 10,
		"high":   8,
		"medium": 5,
		"low":    3,
	}
}

// Merge returns a copy of t with overrides applied. Override labels are
// folded the same way incoming labels are.
func (t PriorityTable) Merge(overrides map[string]int) PriorityTable {
	merged := make(PriorityTable, len(t)+len(overrides))
	for label, value := range t {
		merged[label] = value
	}
	for label, value := range overrides {
		merged[foldLabel(label)] = ClampPriority(value)
	}
	return merged
}

func (t PriorityTable) Label(label string) (int, bool) {
	value, ok := t[foldLabel(label)]
	return value, ok
}

// Parse normalizes a raw JSON priority (number, numeric string, label or
// null) onto the canonical scale.
func (t PriorityTable) Parse(raw json.RawMessage) int {
	if len(raw) == 0 {
		return DefaultPriority
	}

	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return DefaultPriority
	}

	switch v := value.(type) {
	case float64:
		return ClampPriority(int(math.Round(v)))
	case string:
		if p, ok := t.Label(v); ok {
			return p
		}
		if n, err := strconv.Atoi(v); err == nil {
			return ClampPriority(n)
		}
	}
	return DefaultPriority
}

func ClampPriority(p int) int {
	return min(max(p, MinPriority), MaxPriority)
}
