package llm

import (
	"context"
	"errors"
)

// Collaborator error classes. Callers distinguish transport failures
// from malformed model output when recording a job failure.
var (
	ErrCall  = errors.New("llm call failed")
	ErrParse = errors.New("llm response unparseable")
)

// IdentityFields is the normalized shape we want from the LLM.
type IdentityFields struct {
	DocumentType    string  `json:"document_type"`             // one of constants.DocumentTypeStrings
	DocumentNumber  string  `json:"document_number"`
	FullName        string  `json:"full_name"`
	BirthDate       string  `json:"birth_date,omitempty"`      // YYYY-MM-DD
	ExpiryDate      string  `json:"expiry_date,omitempty"`     // YYYY-MM-DD
	IssueDate       string  `json:"issue_date,omitempty"`      // YYYY-MM-DD
	Nationality     string  `json:"nationality,omitempty"`
	Sex             string  `json:"sex,omitempty"`             // M | F | X
	IssuingCountry  string  `json:"issuing_country,omitempty"` // ISO 3166-1 alpha-3
	Address         string  `json:"address,omitempty"`
	ModelConfidence float32 `json:"confidence,omitempty"` // optional (0..1)
}

// AsMap converts the fields to the open map stored on the job record.
// Empty optionals are omitted.
func (f IdentityFields) AsMap() map[string]any {
	out := make(map[string]any, 11)
	put := func(k, v string) {
		if v != "" {
			out[k] = v
		}
	}
	put("document_type", f.DocumentType)
	put("document_number", f.DocumentNumber)
	put("full_name", f.FullName)
	put("birth_date", f.BirthDate)
	put("expiry_date", f.ExpiryDate)
	put("issue_date", f.IssueDate)
	put("nationality", f.Nationality)
	put("sex", f.Sex)
	put("issuing_country", f.IssuingCountry)
	put("address", f.Address)
	if f.ModelConfidence > 0 {
		out["confidence"] = f.ModelConfidence
	}
	return out
}

type ExtractRequest struct {
	CleanedText          string
	FilenameHint         string
	Language             string
	AllowedDocumentTypes []string
	OCRConfidence        float32 // 0..100, from the extraction stage
}

// ExtractionOutcome carries the parsed fields plus call metadata. Raw is
// populated whenever a model response was received, including on parse
// failures, so diagnostics can preserve it.
type ExtractionOutcome struct {
	Fields     IdentityFields
	Raw        []byte
	TokensUsed int
	Model      string
}

// FieldExtractor turns cleaned document text into structured identity
// fields. The openai subpackage provides the real client.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, req ExtractRequest) (ExtractionOutcome, error)
}
