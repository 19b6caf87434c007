package llm

// BuildIdentityJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a
// generic map. We pass it to the model as a structured-output constraint and
// also use it locally to validate the response.
func BuildIdentityJSONSchema(allowedDocumentTypes []string) map[string]any {
	props := map[string]any{
		"document_type":   map[string]any{"type": "string", "minLength": 1},
		"document_number": map[string]any{"type": "string", "minLength": 1},
		"full_name":       map[string]any{"type": "string", "minLength": 1},
		"birth_date":      dateProp(),
		"expiry_date":     dateProp(),
		"issue_date":      dateProp(),
		"nationality":     map[string]any{"type": "string"},
		"sex":             map[string]any{"type": "string", "enum": []string{"M", "F", "X"}},
		"issuing_country": map[string]any{"type": "string", "minLength": 3, "maxLength": 3},
		"address":         map[string]any{"type": "string"},
		"confidence":      map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
	}

	// Constrain document_type if a taxonomy is provided.
	if len(allowedDocumentTypes) > 0 {
		props["document_type"] = map[string]any{
			"type": "string",
			"enum": allowedDocumentTypes,
		}
	}

	required := []string{"document_type", "document_number", "full_name"}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             required,
	}
}

func dateProp() map[string]any {
	return map[string]any{
		"type":    "string",
		"pattern": `^\d{4}-\d{2}-\d{2}$`,
	}
}
