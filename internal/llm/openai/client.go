package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmreyes/idextract/internal/common"
	"github.com/dmreyes/idextract/internal/llm"
)

// ExtractFields implements llm.FieldExtractor using text-only
// chat/completions with a JSON-schema constraint. The raw model content
// is returned in the outcome even when validation fails so diagnostics
// can preserve it.
func (c *Client) ExtractFields(ctx context.Context, req llm.ExtractRequest) (llm.ExtractionOutcome, error) {
	rid := uuid.New().String()
	start := time.Now()
	out := llm.ExtractionOutcome{Model: c.cfg.Model}

	c.log.Info("llm.extract.start",
		"req_id", rid,
		"job_id", common.JobIDFromContext(ctx),
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"text_len", len(req.CleanedText),
		"ocr_confidence", req.OCRConfidence,
		"allowed_types", len(req.AllowedDocumentTypes),
	)

	schema := llm.BuildIdentityJSONSchema(req.AllowedDocumentTypes)
	sys := llm.BuildSystemPrompt(req)
	user := llm.BuildUserPrompt(req)

	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": sys},
			{"role": "user", "content": user + "\n\nReturn ONLY JSON that matches the provided schema."},
			{"role": "system", "content": "JSON Schema:\n" + mustJSON(schema)},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, httpErr := c.post(ctx, endpoint, body)
	if httpErr != nil {
		c.log.Error("llm.extract.http_error",
			"req_id", rid, "error", httpErr,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return out, fmt.Errorf("%w: %v", llm.ErrCall, httpErr)
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			TotalTokens int `json:"total_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.log.Error("llm.extract.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		out.Raw = raw
		return out, fmt.Errorf("%w: decode completion: %v", llm.ErrParse, err)
	}
	if len(cc.Choices) == 0 {
		c.log.Error("llm.extract.no_choices", "req_id", rid,
			"elapsed_ms", time.Since(start).Milliseconds())
		out.Raw = raw
		return out, fmt.Errorf("%w: no choices in completion", llm.ErrParse)
	}
	out.TokensUsed = cc.Usage.TotalTokens

	content := llm.StripCodeFences(cc.Choices[0].Message.Content)
	out.Raw = []byte(content)

	// Sanitize first, then validate strictly.
	cleaned, adjusted, sErr := llm.NormalizeAndSanitizeJSON(out.Raw)
	if sErr != nil {
		c.log.Error("llm.extract.sanitize_failed",
			"req_id", rid, "error", sErr,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return out, fmt.Errorf("%w: %v", llm.ErrParse, sErr)
	}
	if len(adjusted) > 0 {
		c.log.Warn("llm.extract.sanitize_applied", "req_id", rid, "adjusted", adjusted)
	}
	if err := llm.ValidateIdentityPayload(schema, cleaned); err != nil {
		c.log.Error("llm.extract.schema_validation_failed",
			"req_id", rid, "error", err, "content", string(cleaned),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return out, fmt.Errorf("%w: %v", llm.ErrParse, err)
	}
	out.Raw = cleaned

	if err := json.Unmarshal(cleaned, &out.Fields); err != nil {
		c.log.Error("llm.extract.unmarshal_failed",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return out, fmt.Errorf("%w: unmarshal fields: %v", llm.ErrParse, err)
	}

	c.log.Info("llm.extract.ok",
		"req_id", rid,
		"document_type", out.Fields.DocumentType,
		"document_number", out.Fields.DocumentNumber,
		"tokens", out.TokensUsed,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

func (c *Client) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai http error: %w", err)
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			c.log.Warn("openai response body close error", "error", err)
		}
	}(resp.Body)

	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("openai status %d: %s", resp.StatusCode, buf.String())
	}
	return buf.Bytes(), nil
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
