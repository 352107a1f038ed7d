package domain

import "encoding/json"

// EncodeIncluded serializes a package's included items for storage. A nil
// slice is stored as an empty list.
func EncodeIncluded(items []string) string {
	if items == nil {
		items = []string{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// DecodeIncluded parses stored included items. Absent or malformed values
// decode to an empty, non-nil slice.
func DecodeIncluded(raw string) []string {
	if raw == "" {
		return []string{}
	}
	var items []string
	if err := json.Unmarshal([]byte(raw), &items); err != nil || items == nil {
		return []string{}
	}
	return items
}
