package constants

import "strings"

// DocumentType is the canonical taxonomy for identity documents. The
// field-extraction stage constrains the LLM's document_type output to
// these values.
type DocumentType string

const (
	NationalID    DocumentType = "NATIONAL_ID"
	Passport      DocumentType = "PASSPORT"
	DriverLicense DocumentType = "DRIVER_LICENSE"
	ResidenceCard DocumentType = "RESIDENCE_CARD"
	OtherDocument DocumentType = "OTHER"
)

var documentTypes = []DocumentType{
	NationalID,
	Passport,
	DriverLicense,
	ResidenceCard,
	OtherDocument,
}

// DocumentTypeStrings returns the taxonomy as a string slice, in stable order.
func DocumentTypeStrings() []string {
	out := make([]string, 0, len(documentTypes))
	for _, t := range documentTypes {
		out = append(out, string(t))
	}
	return out
}

// synonyms maps common model output variants to canonical types.
var documentTypeSynonyms = map[string]DocumentType{
	"DNI":             NationalID,
	"ID":              NationalID,
	"ID_CARD":         NationalID,
	"IDENTITY_CARD":   NationalID,
	"NATIONAL_ID":     NationalID,
	"PASSPORT":        Passport,
	"DRIVER_LICENSE":  DriverLicense,
	"DRIVERS_LICENSE": DriverLicense,
	"DRIVING_LICENSE": DriverLicense,
	"LICENSE":         DriverLicense,
	"RESIDENCE_CARD":  ResidenceCard,
	"RESIDENCE":       ResidenceCard,
	"OTHER":           OtherDocument,
}

// CanonicalizeDocumentType resolves a free-form label to a canonical
// DocumentType. ok is false when the label has no known mapping.
func CanonicalizeDocumentType(label string) (DocumentType, bool) {
	key := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(label), " ", "_"))
	t, ok := documentTypeSynonyms[key]
	return t, ok
}
