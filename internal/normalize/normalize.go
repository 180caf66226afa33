// Package normalize converts raw uploaded files into the canonical payload
// forms the inference client can consume: inline binary for natively
// accepted content types, extracted text for word-processor formats.
//
// Normalization never fails. Corrupt or unsupported files are absorbed into
// a degraded text payload naming the file, so a batch always has something
// to send per input.
package normalize

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/clinvault/clinvault/internal/inference"
)

// FileInput is one raw uploaded file.
type FileInput struct {
	Filename string
	MimeType string // declared by the uploader; may be empty or wrong
	Data     []byte
}

// Payload is the canonical transport-safe form of one file: either inline
// binary (Data + MimeType) or plain text (Text).
type Payload struct {
	MimeType string
	Data     []byte
	Text     string

	// Degraded marks payloads produced by the failure path.
	Degraded bool
}

func (p Payload) Part() inference.Part {
	if p.Data != nil {
		return inference.InlinePart(p.MimeType, base64.StdEncoding.EncodeToString(p.Data))
	}
	return inference.TextPart(p.Text)
}

// TextExtractor extracts plain text from word-processor documents.
type TextExtractor interface {
	ExtractText(ctx context.Context, data []byte, filename string) (string, error)
}

type Normalizer struct {
	log       *zap.Logger
	extractor TextExtractor
}

func New(extractor TextExtractor, log *zap.Logger) *Normalizer {
	return &Normalizer{log: log, extractor: extractor}
}

const (
	mimePDF  = "application/pdf"
	mimeDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeDoc  = "application/msword"
)

// Normalize converts one file into a payload. It never returns an error:
// every failure is absorbed into a degraded text payload.
func (n *Normalizer) Normalize(ctx context.Context, f FileInput) Payload {
	mime := resolveMime(f)

	switch {
	case mime == mimePDF:
		return Payload{MimeType: mimePDF, Data: f.Data}

	case strings.HasPrefix(mime, "image/"):
		data, err := reencodeImage(f.Data)
		if err != nil {
			n.log.Warn("image re-encode failed, degrading payload",
				zap.String("file", f.Filename),
				zap.Error(err),
			)
			return n.degraded(f, err)
		}
		return Payload{MimeType: "image/jpeg", Data: data}

	case mime == mimeDocx || mime == mimeDoc:
		text, err := n.extractor.ExtractText(ctx, f.Data, f.Filename)
		if err != nil {
			n.log.Warn("text extraction failed, degrading payload",
				zap.String("file", f.Filename),
				zap.Error(err),
			)
			return n.degraded(f, err)
		}
		return Payload{Text: fmt.Sprintf("Document %q:\n%s", f.Filename, text)}

	case strings.HasPrefix(mime, "text/"):
		return Payload{Text: fmt.Sprintf("Document %q:\n%s", f.Filename, string(f.Data))}

	default:
		return n.degraded(f, fmt.Errorf("unsupported content type %s", mime))
	}
}

func (n *Normalizer) degraded(f FileInput, cause error) Payload {
	return Payload{
		Text:     fmt.Sprintf("[unprocessable] File %q could not be processed: %v", f.Filename, cause),
		Degraded: true,
	}
}

func resolveMime(f FileInput) string {
	declared := strings.TrimSpace(strings.ToLower(f.MimeType))
	if i := strings.Index(declared, ";"); i >= 0 {
		declared = strings.TrimSpace(declared[:i])
	}
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	return mimetype.Detect(f.Data).String()
}
