package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StripCodeFences removes a ```json ... ``` wrapper some models emit
// despite being asked for bare JSON.
func StripCodeFences(content string) string {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

// allowed is the schema's property set; anything else gets dropped so
// additionalProperties=false validation can pass.
var allowedKeys = map[string]struct{}{
	"document_type": {}, "document_number": {}, "full_name": {},
	"birth_date": {}, "expiry_date": {}, "issue_date": {},
	"nationality": {}, "sex": {}, "issuing_country": {}, "address": {},
	"confidence": {},
}

// NormalizeAndSanitizeJSON
// - Renames known synonyms (id_number -> document_number, name -> full_name)
// - Drops null/empty optionals
// - Uppercases sex and issuing_country
// - Removes unknown keys (strict additionalProperties = false friendliness)
// Returns the sanitized JSON and the list of adjustments made.
func NormalizeAndSanitizeJSON(raw []byte) ([]byte, []string, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	adjusted := make([]string, 0, 8)
	renamed := func(from, to string) {
		if v, ok := m[from]; ok {
			// don't overwrite an existing value
			if _, exists := m[to]; !exists {
				m[to] = v
			}
			delete(m, from)
			adjusted = append(adjusted, from+"->"+to)
		}
	}

	// 1) rename synonyms to our schema
	renamed("id_number", "document_number")
	renamed("number", "document_number")
	renamed("name", "full_name")
	renamed("country", "issuing_country")
	renamed("date_of_birth", "birth_date")
	renamed("expiration_date", "expiry_date")

	// 2) drop null / "" values; trim strings
	for k, v := range m {
		switch t := v.(type) {
		case nil:
			delete(m, k)
			adjusted = append(adjusted, k+"(null)")
		case string:
			s := strings.TrimSpace(t)
			if s == "" {
				delete(m, k)
				adjusted = append(adjusted, k+"(empty)")
			} else {
				m[k] = s
			}
		}
	}

	// 3) normalize enum-ish fields
	if v, ok := m["sex"].(string); ok {
		s := strings.ToUpper(v)
		switch s {
		case "M", "F", "X":
			m["sex"] = s
		case "MALE":
			m["sex"] = "M"
			adjusted = append(adjusted, "sex(normalized)")
		case "FEMALE":
			m["sex"] = "F"
			adjusted = append(adjusted, "sex(normalized)")
		default:
			delete(m, "sex")
			adjusted = append(adjusted, "sex(unrecognized)")
		}
	}
	if v, ok := m["issuing_country"].(string); ok {
		m["issuing_country"] = strings.ToUpper(v)
	}
	if v, ok := m["document_type"].(string); ok {
		m["document_type"] = strings.ToUpper(strings.ReplaceAll(v, " ", "_"))
	}

	// 4) remove unknown keys
	for k := range m {
		if _, ok := allowedKeys[k]; !ok {
			delete(m, k)
			adjusted = append(adjusted, k+"(unknown)")
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, adjusted, fmt.Errorf("sanitize: encode: %w", err)
	}
	return out, adjusted, nil
}
