package types

import (
	"encoding/json"
	"fmt"
)

// Proposal content is a dynamic JSON value tree: null, bool, number, string,
// list, or string-keyed map. Validation is a pure structural predicate;
// serialization is plain encoding/json.

// ValidContent reports whether v is a well-formed content tree.
func ValidContent(v interface{}) bool {
	switch t := v.(type) {
	case nil, bool, string:
		return true
	case int, int32, int64, float32, float64, json.Number:
		return true
	case []interface{}:
		for _, item := range t {
			if !ValidContent(item) {
				return false
			}
		}
		return true
	case map[string]interface{}:
		for _, item := range t {
			if !ValidContent(item) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// CanonicalContent renders a content tree as deterministic JSON. Map keys are
// sorted by the encoder, so structurally equal trees produce equal strings.
func CanonicalContent(v interface{}) (string, error) {
	if !ValidContent(v) {
		return "", &DomainError{Kind: ErrValidation, Message: fmt.Sprintf("invalid content node of type %T", v)}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", &DomainError{Kind: ErrValidation, Message: "content not serializable", Err: err}
	}
	return string(data), nil
}

// DecodeContent parses stored JSON back into a content tree.
func DecodeContent(data []byte) (interface{}, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode content: %w", err)
	}
	return v, nil
}

// ContentString extracts a string form of the content for scoring: strings
// pass through, everything else renders as canonical JSON.
func ContentString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	s, err := CanonicalContent(v)
	if err != nil {
		return ""
	}
	return s
}
