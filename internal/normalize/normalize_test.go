package normalize

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"go.uber.org/zap"
)

type stubExtractor struct {
	text string
	err  error
}

func (s stubExtractor) ExtractText(ctx context.Context, data []byte, filename string) (string, error) {
	return s.text, s.err
}

func newTestNormalizer(ext TextExtractor) *Normalizer {
	if ext == nil {
		ext = NewDocxExtractor()
	}
	return New(ext, zap.NewNop())
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding fixture: %v", err)
	}
	return buf.Bytes()
}

func TestNormalize_PDFPassthrough(t *testing.T) {
	n := newTestNormalizer(nil)
	data := []byte("%PDF-1.4 fake body")
	p := n.Normalize(context.Background(), FileInput{Filename: "scan.pdf", MimeType: "application/pdf", Data: data})
	if p.Degraded {
		t.Fatal("PDF payload must not be degraded")
	}
	if p.MimeType != "application/pdf" {
		t.Errorf("mime = %q", p.MimeType)
	}
	if !bytes.Equal(p.Data, data) {
		t.Error("PDF bytes must pass through unchanged")
	}
}

func TestNormalize_LargeImageDownscaled(t *testing.T) {
	n := newTestNormalizer(nil)
	p := n.Normalize(context.Background(), FileInput{
		Filename: "xray.png",
		MimeType: "image/png",
		Data:     encodePNG(t, 2400, 3200),
	})
	if p.Degraded {
		t.Fatal("valid image must not degrade")
	}
	if p.MimeType != "image/jpeg" {
		t.Errorf("mime = %q, want image/jpeg", p.MimeType)
	}

	img, err := jpeg.Decode(bytes.NewReader(p.Data))
	if err != nil {
		t.Fatalf("decoding re-encoded payload: %v", err)
	}
	b := img.Bounds()
	if b.Dx() > 1200 || b.Dy() > 1600 {
		t.Errorf("dimensions %dx%d exceed caps", b.Dx(), b.Dy())
	}
	// 2400x3200 scales by exactly 0.5 on both axes.
	if b.Dx() != 1200 || b.Dy() != 1600 {
		t.Errorf("dimensions %dx%d, want 1200x1600", b.Dx(), b.Dy())
	}
}

func TestNormalize_SmallImageNotUpscaled(t *testing.T) {
	n := newTestNormalizer(nil)
	p := n.Normalize(context.Background(), FileInput{
		Filename: "thumb.png",
		MimeType: "image/png",
		Data:     encodePNG(t, 100, 80),
	})
	if p.Degraded {
		t.Fatal("valid image must not degrade")
	}
	img, err := jpeg.Decode(bytes.NewReader(p.Data))
	if err != nil {
		t.Fatalf("decoding re-encoded payload: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != 100 || b.Dy() != 80 {
		t.Errorf("dimensions %dx%d, want 100x80 (no upscale)", b.Dx(), b.Dy())
	}
}

func TestNormalize_CorruptImageDegrades(t *testing.T) {
	n := newTestNormalizer(nil)
	p := n.Normalize(context.Background(), FileInput{
		Filename: "broken.png",
		MimeType: "image/png",
		Data:     []byte("definitely not an image"),
	})
	if !p.Degraded {
		t.Fatal("corrupt image must produce a degraded payload, not an error")
	}
	if p.Data != nil {
		t.Error("degraded payload must be text, not binary")
	}
	if !strings.Contains(p.Text, "broken.png") {
		t.Errorf("degraded text must name the file: %q", p.Text)
	}
	if !strings.Contains(p.Text, "[unprocessable]") {
		t.Errorf("degraded text missing marker: %q", p.Text)
	}
}

func TestNormalize_TextPassthrough(t *testing.T) {
	n := newTestNormalizer(nil)
	p := n.Normalize(context.Background(), FileInput{
		Filename: "notes.txt",
		MimeType: "text/plain; charset=utf-8",
		Data:     []byte("Hb 13.2 g/dL"),
	})
	if p.Degraded {
		t.Fatal("text file must not degrade")
	}
	if !strings.Contains(p.Text, "Hb 13.2 g/dL") {
		t.Errorf("text payload missing content: %q", p.Text)
	}
	if !strings.Contains(p.Text, "notes.txt") {
		t.Errorf("text payload must name the file: %q", p.Text)
	}
}

func TestNormalize_DocxExtraction(t *testing.T) {
	n := newTestNormalizer(stubExtractor{text: "Discharge summary for review."})
	p := n.Normalize(context.Background(), FileInput{
		Filename: "letter.docx",
		MimeType: mimeDocx,
		Data:     []byte("unused by stub"),
	})
	if p.Degraded {
		t.Fatal("successful extraction must not degrade")
	}
	if !strings.Contains(p.Text, "Discharge summary for review.") {
		t.Errorf("payload missing extracted text: %q", p.Text)
	}
}

func TestNormalize_ExtractionFailureDegrades(t *testing.T) {
	n := newTestNormalizer(stubExtractor{err: errors.New("archive truncated")})
	p := n.Normalize(context.Background(), FileInput{
		Filename: "letter.docx",
		MimeType: mimeDocx,
		Data:     []byte("garbage"),
	})
	if !p.Degraded {
		t.Fatal("extraction failure must degrade, not error")
	}
	if !strings.Contains(p.Text, "letter.docx") {
		t.Errorf("degraded text must name the file: %q", p.Text)
	}
}

func TestNormalize_UnsupportedTypeDegrades(t *testing.T) {
	n := newTestNormalizer(nil)
	p := n.Normalize(context.Background(), FileInput{
		Filename: "archive.tar",
		MimeType: "application/x-tar",
		Data:     []byte{0, 1, 2, 3},
	})
	if !p.Degraded {
		t.Fatal("unsupported type must degrade")
	}
}

func TestNormalize_SniffsMissingMime(t *testing.T) {
	// No declared type; content sniffing must still route the PNG through
	// the image path.
	n := newTestNormalizer(nil)
	p := n.Normalize(context.Background(), FileInput{
		Filename: "unnamed",
		Data:     encodePNG(t, 10, 10),
	})
	if p.Degraded {
		t.Fatalf("sniffed image degraded: %q", p.Text)
	}
	if p.MimeType != "image/jpeg" {
		t.Errorf("mime = %q, want image/jpeg", p.MimeType)
	}
}

func TestPayload_Part(t *testing.T) {
	bin := Payload{MimeType: "application/pdf", Data: []byte{1, 2, 3}}
	part := bin.Part()
	if part.InlineData == nil {
		t.Fatal("binary payload must map to inline data")
	}
	if part.InlineData.Data != base64.StdEncoding.EncodeToString([]byte{1, 2, 3}) {
		t.Error("inline data must be base64 of the payload bytes")
	}

	txt := Payload{Text: "hello"}
	if p := txt.Part(); p.Text != "hello" || p.InlineData != nil {
		t.Errorf("text payload mapped incorrectly: %+v", p)
	}
}

func TestDocxExtractor_CollectsRuns(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("creating fixture entry: %v", err)
	}
	_, _ = w.Write([]byte(`<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>First paragraph.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Second </w:t></w:r><w:r><w:t>paragraph.</w:t></w:r></w:p>
  </w:body>
</w:document>`))
	if err := zw.Close(); err != nil {
		t.Fatalf("closing fixture archive: %v", err)
	}

	text, err := NewDocxExtractor().ExtractText(context.Background(), buf.Bytes(), "letter.docx")
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if !strings.Contains(text, "First paragraph.") {
		t.Errorf("missing first paragraph: %q", text)
	}
	if !strings.Contains(text, "Second paragraph.") {
		t.Errorf("split runs not joined: %q", text)
	}
	if !strings.Contains(text, "First paragraph.\n") {
		t.Errorf("paragraph boundary missing newline: %q", text)
	}
}

func TestDocxExtractor_NotAnArchive(t *testing.T) {
	_, err := NewDocxExtractor().ExtractText(context.Background(), []byte("plain bytes"), "x.docx")
	if err == nil {
		t.Fatal("expected error for non-zip input")
	}
}
