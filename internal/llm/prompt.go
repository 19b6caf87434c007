package llm

import (
	"fmt"
	"strings"
)

// BuildSystemPrompt composes the system message with the document-type
// taxonomy, language hint, and strict-but-practical formatting rules.
func BuildSystemPrompt(req ExtractRequest) string {
	var typeLine string
	if len(req.AllowedDocumentTypes) > 0 {
		typeLine = "You MUST include a 'document_type' and it MUST be exactly one of the allowed enum. " +
			"If uncertain, choose 'OTHER'. Allowed document types (enum): " + strings.Join(req.AllowedDocumentTypes, ", ") + ". "
	} else {
		typeLine = "You MUST include a 'document_type' that is a short, sensible label. If uncertain, use 'OTHER'. "
	}

	parts := []string{
		"You are an identity-document parser. Return ONLY JSON that matches the provided JSON Schema.",
		"The input is OCR text from a national ID card, passport, driver license, or similar document.",
		"Use ISO-8601 dates (YYYY-MM-DD).",
		typeLine,
		"'document_number' is the document's own identifier, not a tax or social-security number.",
		"'full_name' combines given names and surnames in the order printed on the document.",
		"'issuing_country' must be a 3-letter ISO 3166-1 alpha-3 code.",
		"'sex' must be one of M, F, X when legible.",
		// Formatting hygiene:
		"Never output null. If a field is not present or illegible, omit it.",
		"Do not invent values; extract only what the text supports.",
	}

	if lang := strings.TrimSpace(req.Language); lang != "" {
		parts = append(parts, "The document text is primarily in language code: "+lang+".")
	}
	return strings.Join(parts, " ")
}

// BuildUserPrompt packages the cleaned text with a filename hint. Text is
// truncated to keep the request inside the model's context window.
func BuildUserPrompt(req ExtractRequest) string {
	var b strings.Builder
	if filename := strings.TrimSpace(req.FilenameHint); filename != "" {
		b.WriteString("Filename: ")
		b.WriteString(filename)
		b.WriteString("\n")
	}
	if req.OCRConfidence > 0 {
		fmt.Fprintf(&b, "Note: OCR confidence for this text was %.1f%%; prefer omission over guessing on garbled fields.\n", req.OCRConfidence)
	}

	text := strings.TrimSpace(req.CleanedText)
	b.WriteString("\nDocument text (first ~3k chars):\n")
	if len(text) > 3000 {
		b.WriteString(text[:3000])
		b.WriteString("\n…(truncated)")
	} else {
		b.WriteString(text)
	}
	return b.String()
}
