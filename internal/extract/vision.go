package extract

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/dmreyes/idextract/constants"
	"github.com/dmreyes/idextract/internal/common"
)

// VisionClient extracts document text through a Google-Vision-style REST
// endpoint: images:annotate for images, files:annotate for PDFs.
type VisionClient struct {
	cfg        common.OCRConfig
	httpClient *http.Client
	log        *slog.Logger
}

func NewVisionClient(cfg common.OCRConfig, logger *slog.Logger) *VisionClient {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &VisionClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        logger,
	}
}

type annotateFeature struct {
	Type string `json:"type"`
}

type imageContext struct {
	LanguageHints []string `json:"languageHints,omitempty"`
}

type textAnnotation struct {
	Text  string `json:"text"`
	Pages []struct {
		Confidence float32 `json:"confidence"`
	} `json:"pages"`
}

type annotateResponse struct {
	FullTextAnnotation *textAnnotation `json:"fullTextAnnotation"`
	Error              *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Extract dispatches on format and returns the raw extracted text with
// an averaged page confidence (0..100).
func (c *VisionClient) Extract(ctx context.Context, path string, format constants.FileFormat) (TextExtractionResult, error) {
	start := time.Now()

	content, err := os.ReadFile(path)
	if err != nil {
		return TextExtractionResult{}, common.WrapError(err, "read document")
	}

	var annotations []annotateResponse
	var method string
	switch format {
	case constants.PDF:
		method = constants.MethodPDFText
		annotations, err = c.annotateFile(ctx, content)
	case constants.IMAGE:
		method = constants.MethodImageOCR
		annotations, err = c.annotateImage(ctx, content)
	default:
		return TextExtractionResult{}, fmt.Errorf("unsupported format: %q", format)
	}
	if err != nil {
		c.log.Error("ocr.extract.failed", "path", path, "format", format, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return TextExtractionResult{}, err
	}

	res := collectAnnotations(annotations, method, c.cfg.Language)
	res.Duration = time.Since(start)
	c.log.Info("ocr.extract.ok",
		"job_id", common.JobIDFromContext(ctx),
		"path", path,
		"method", method,
		"pages", res.Pages,
		"chars", len(res.Text),
		"confidence", res.Confidence,
		"elapsed_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

func (c *VisionClient) annotateImage(ctx context.Context, content []byte) ([]annotateResponse, error) {
	body := map[string]any{
		"requests": []map[string]any{{
			"image":        map[string]any{"content": base64.StdEncoding.EncodeToString(content)},
			"features":     []annotateFeature{{Type: "DOCUMENT_TEXT_DETECTION"}},
			"imageContext": imageContext{LanguageHints: languageHints(c.cfg.Language)},
		}},
	}
	raw, err := c.post(ctx, "/v1/images:annotate", body)
	if err != nil {
		return nil, err
	}
	var out struct {
		Responses []annotateResponse `json:"responses"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode vision response: %w", err)
	}
	return out.Responses, nil
}

func (c *VisionClient) annotateFile(ctx context.Context, content []byte) ([]annotateResponse, error) {
	pages := make([]int, 0, c.cfg.MaxPages)
	for i := 1; i <= c.cfg.MaxPages; i++ {
		pages = append(pages, i)
	}
	body := map[string]any{
		"requests": []map[string]any{{
			"inputConfig": map[string]any{
				"content":  base64.StdEncoding.EncodeToString(content),
				"mimeType": "application/pdf",
			},
			"features": []annotateFeature{{Type: "DOCUMENT_TEXT_DETECTION"}},
			"pages":    pages,
		}},
	}
	raw, err := c.post(ctx, "/v1/files:annotate", body)
	if err != nil {
		return nil, err
	}
	var out struct {
		Responses []struct {
			Responses []annotateResponse `json:"responses"`
		} `json:"responses"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode vision response: %w", err)
	}
	var flat []annotateResponse
	for _, r := range out.Responses {
		flat = append(flat, r.Responses...)
	}
	return flat, nil
}

func (c *VisionClient) post(ctx context.Context, endpoint string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	url := strings.TrimRight(c.cfg.BaseURL, "/") + endpoint
	if c.cfg.APIKey != "" {
		url += "?key=" + c.cfg.APIKey
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vision http error: %w", err)
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			c.log.Warn("vision response body close error", "error", err)
		}
	}(resp.Body)

	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("vision status %d: %s", resp.StatusCode, buf.String())
	}
	return buf.Bytes(), nil
}

func collectAnnotations(annotations []annotateResponse, method, language string) TextExtractionResult {
	res := TextExtractionResult{Method: method, Language: language}
	var confSum float32
	var confPages int
	var text strings.Builder
	for _, a := range annotations {
		if a.Error != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("vision page error %d: %s", a.Error.Code, a.Error.Message))
			continue
		}
		if a.FullTextAnnotation == nil {
			continue
		}
		text.WriteString(a.FullTextAnnotation.Text)
		for _, p := range a.FullTextAnnotation.Pages {
			res.Pages++
			if p.Confidence > 0 {
				confSum += p.Confidence
				confPages++
			}
		}
		if len(a.FullTextAnnotation.Pages) == 0 {
			res.Pages++ // image annotations may omit page metadata
		}
	}
	res.Text = text.String()
	if confPages > 0 {
		res.Confidence = confSum / float32(confPages) * 100
	}
	return res
}

func languageHints(lang string) []string {
	if strings.TrimSpace(lang) == "" {
		return nil
	}
	return []string{lang}
}
