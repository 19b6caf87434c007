package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare json untouched", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"anonymous fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding whitespace", "  \n```json\n{}\n```  ", `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripCodeFences(tt.in))
		})
	}
}

func decodeSanitized(t *testing.T, raw string) (map[string]any, []string) {
	t.Helper()
	out, adjusted, err := NormalizeAndSanitizeJSON([]byte(raw))
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(out, &m))
	return m, adjusted
}

func TestNormalizeAndSanitizeJSON_Synonyms(t *testing.T) {
	m, adjusted := decodeSanitized(t, `{
		"id_number": "12.345.678-9",
		"name": "JUAN PEREZ",
		"date_of_birth": "1990-04-12",
		"expiration_date": "2030-04-12",
		"country": "chl"
	}`)

	assert.Equal(t, "12.345.678-9", m["document_number"])
	assert.Equal(t, "JUAN PEREZ", m["full_name"])
	assert.Equal(t, "1990-04-12", m["birth_date"])
	assert.Equal(t, "2030-04-12", m["expiry_date"])
	assert.Equal(t, "CHL", m["issuing_country"])
	assert.NotContains(t, m, "id_number")
	assert.NotEmpty(t, adjusted)
}

func TestNormalizeAndSanitizeJSON_DropsNullAndEmpty(t *testing.T) {
	m, _ := decodeSanitized(t, `{
		"document_type": "PASSPORT",
		"document_number": "  P123  ",
		"full_name": "A B",
		"nationality": null,
		"address": "   "
	}`)

	assert.Equal(t, "P123", m["document_number"], "strings are trimmed")
	assert.NotContains(t, m, "nationality")
	assert.NotContains(t, m, "address")
}

func TestNormalizeAndSanitizeJSON_SexNormalization(t *testing.T) {
	tests := []struct {
		in   string
		want string
		drop bool
	}{
		{"male", "M", false},
		{"FEMALE", "F", false},
		{"x", "X", false},
		{"unknown", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			m, _ := decodeSanitized(t, `{"document_type":"PASSPORT","document_number":"1","full_name":"A","sex":"`+tt.in+`"}`)
			if tt.drop {
				assert.NotContains(t, m, "sex")
			} else {
				assert.Equal(t, tt.want, m["sex"])
			}
		})
	}
}

func TestNormalizeAndSanitizeJSON_DropsUnknownKeys(t *testing.T) {
	m, adjusted := decodeSanitized(t, `{
		"document_type": "passport",
		"document_number": "1",
		"full_name": "A",
		"mrz_raw": "P<CHL...",
		"notes": "looks fine"
	}`)

	assert.NotContains(t, m, "mrz_raw")
	assert.NotContains(t, m, "notes")
	assert.Equal(t, "PASSPORT", m["document_type"], "document_type uppercased")
	assert.Contains(t, adjusted, "mrz_raw(unknown)")
}

func TestNormalizeAndSanitizeJSON_RejectsNonJSON(t *testing.T) {
	_, _, err := NormalizeAndSanitizeJSON([]byte("I could not find any fields"))
	require.Error(t, err)
}
