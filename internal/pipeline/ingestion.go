package pipeline

import (
	"bytes"
	"context"
	"image"
	"log/slog"
	"os"
	"path/filepath"

	_ "image/jpeg"
	_ "image/png"

	"github.com/dmreyes/idextract/constants"
	"github.com/dmreyes/idextract/internal/common"
	"github.com/dmreyes/idextract/internal/job"
)

// IngestionStage validates the uploaded artifact: the file exists, fits
// the size ceiling, and is structurally valid for its declared type. It
// records which extraction technique is viable downstream.
type IngestionStage struct {
	cfg    common.UploadConfig
	logger *slog.Logger
}

func NewIngestionStage(cfg common.UploadConfig, logger *slog.Logger) *IngestionStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestionStage{cfg: cfg, logger: logger}
}

func (s *IngestionStage) Name() constants.StageName { return constants.StageIngestion }

func (s *IngestionStage) Run(_ context.Context, st job.State) (job.State, error) {
	if st.Document.Path == "" {
		return st, invariant(s.Name(), "no document path recorded")
	}

	info, err := os.Stat(st.Document.Path)
	if err != nil {
		st.AddError("document missing on disk: %v", err)
		return st, job.NewFailure(job.FailureCorrupt, "uploaded document not found on disk", err)
	}
	st.Document.SizeBytes = info.Size()

	if max := s.cfg.MaxSizeBytes(); max > 0 && info.Size() > max {
		st.AddError("document too large: %d bytes > %d bytes", info.Size(), max)
		return st, job.Failf(job.FailureTooLarge, "document is %.1fMB, limit is %dMB",
			float64(info.Size())/(1<<20), s.cfg.MaxSizeMB)
	}

	ext := constants.NormalizeExt(filepath.Ext(st.Document.Filename))
	format := constants.MapExtToFormat(ext)
	if format == "" {
		st.AddError("unsupported extension: %q", ext)
		return st, job.Failf(job.FailureUnsupportedType, "unsupported file type %q", ext)
	}

	head, err := readHead(st.Document.Path, 1024)
	if err != nil {
		return st, job.NewFailure(job.FailureCorrupt, "read document header", err)
	}

	var method string
	switch format {
	case constants.PDF:
		if err := validatePDF(st.Document.Path, head); err != nil {
			st.AddError("pdf validation failed: %v", err)
			return st, job.NewFailure(job.FailureCorrupt, "not a parseable PDF", err)
		}
		method = constants.MethodPDFText
	case constants.IMAGE:
		if err := validateImage(st.Document.Path, ext, head); err != nil {
			st.AddError("image validation failed: %v", err)
			return st, job.NewFailure(job.FailureCorrupt, "not a decodable image", err)
		}
		method = constants.MethodImageOCR
	}

	st.Document.Format = format
	st.Document.Method = method
	st.AddMessage("document valid: %s (%.2fMB, %s)", st.Document.Filename,
		float64(info.Size())/(1<<20), format)

	s.logger.Info("pipeline.ingestion.ok",
		"filename", st.Document.Filename,
		"format", format,
		"method", method,
		"size_bytes", info.Size(),
	)
	return st, nil
}

func readHead(path string, n int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf := make([]byte, n)
	read, err := f.Read(buf)
	if err != nil && read == 0 {
		return nil, err
	}
	return buf[:read], nil
}

// validatePDF checks the %PDF- header and the trailing %%EOF marker.
func validatePDF(path string, head []byte) error {
	if !bytes.HasPrefix(head, []byte("%PDF-")) {
		return errMissingMarker("%PDF- header")
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}
	tailLen := int64(1024)
	if info.Size() < tailLen {
		tailLen = info.Size()
	}
	tail := make([]byte, tailLen)
	if _, err := f.ReadAt(tail, info.Size()-tailLen); err != nil {
		return err
	}
	if !bytes.Contains(tail, []byte("%%EOF")) {
		return errMissingMarker("%%EOF trailer")
	}
	return nil
}

// validateImage decodes png/jpeg headers via image.DecodeConfig and
// falls back to magic-byte checks for formats without a stdlib decoder.
func validateImage(path, ext string, head []byte) error {
	switch ext {
	case "png", "jpg", "jpeg":
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		if _, _, err := image.DecodeConfig(f); err != nil {
			return err
		}
		return nil
	case "tiff", "tif":
		if bytes.HasPrefix(head, []byte{0x49, 0x49, 0x2a, 0x00}) ||
			bytes.HasPrefix(head, []byte{0x4d, 0x4d, 0x00, 0x2a}) {
			return nil
		}
		return errMissingMarker("TIFF magic bytes")
	case "bmp":
		if bytes.HasPrefix(head, []byte{0x42, 0x4d}) {
			return nil
		}
		return errMissingMarker("BMP magic bytes")
	}
	return errMissingMarker("known image signature")
}

type errMissingMarker string

func (e errMissingMarker) Error() string { return "missing " + string(e) }
