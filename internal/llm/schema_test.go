package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var taxonomy = []string{"NATIONAL_ID", "PASSPORT", "DRIVER_LICENSE", "RESIDENCE_CARD", "OTHER"}

func TestValidateIdentityPayload_Accepts(t *testing.T) {
	schema := BuildIdentityJSONSchema(taxonomy)

	valid := []byte(`{
		"document_type": "PASSPORT",
		"document_number": "P1234567",
		"full_name": "JUAN PEREZ",
		"birth_date": "1990-04-12",
		"sex": "M",
		"issuing_country": "CHL",
		"confidence": 0.92
	}`)
	assert.NoError(t, ValidateIdentityPayload(schema, valid))
}

func TestValidateIdentityPayload_Rejects(t *testing.T) {
	schema := BuildIdentityJSONSchema(taxonomy)

	tests := []struct {
		name string
		doc  string
	}{
		{"missing required full_name", `{"document_type":"PASSPORT","document_number":"1"}`},
		{"type outside taxonomy", `{"document_type":"STUDENT_CARD","document_number":"1","full_name":"A"}`},
		{"bad date format", `{"document_type":"PASSPORT","document_number":"1","full_name":"A","birth_date":"12/04/1990"}`},
		{"bad sex enum", `{"document_type":"PASSPORT","document_number":"1","full_name":"A","sex":"MALE"}`},
		{"unknown property", `{"document_type":"PASSPORT","document_number":"1","full_name":"A","mrz":"..."}`},
		{"confidence out of range", `{"document_type":"PASSPORT","document_number":"1","full_name":"A","confidence":1.5}`},
		{"country not alpha-3", `{"document_type":"PASSPORT","document_number":"1","full_name":"A","issuing_country":"CL"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Error(t, ValidateIdentityPayload(schema, []byte(tt.doc)))
		})
	}
}

func TestBuildIdentityJSONSchema_NoTaxonomy(t *testing.T) {
	schema := BuildIdentityJSONSchema(nil)

	// Without a taxonomy any non-empty string passes.
	doc := []byte(`{"document_type":"ANYTHING","document_number":"1","full_name":"A"}`)
	assert.NoError(t, ValidateIdentityPayload(schema, doc))
}

func TestEstimateCost(t *testing.T) {
	assert.InDelta(t, 0.000126, EstimateCost("gpt-4o-mini", 840), 1e-9)
	assert.InDelta(t, 0.0025, EstimateCost("gpt-4o", 1000), 1e-9)
	assert.InDelta(t, EstimateCost("gpt-4o-mini", 500), EstimateCost("some-future-model", 500), 1e-9,
		"unknown models fall back to the cheapest price")
	assert.Zero(t, EstimateCost("gpt-4o", 0))
}
