package service

import (
	"bytes"
	"fmt"
	"image/jpeg"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"
)

// Rasterizer turns PDF uploads into image bytes so the vision model can be
// given a plain image reference.
type Rasterizer struct {
	logger *zap.Logger
}

func NewRasterizer(logger *zap.Logger) *Rasterizer {
	return &Rasterizer{logger: logger}
}

// FirstPageJPEG renders the first page of a PDF to JPEG bytes.
func (r *Rasterizer) FirstPageJPEG(pdfBytes []byte) ([]byte, error) {
	doc, err := fitz.NewFromMemory(pdfBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	if doc.NumPage() == 0 {
		return nil, fmt.Errorf("PDF conversion failed, no pages found")
	}

	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("failed to render PDF page: %w", err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}

	r.logger.Info("PDF page rasterized",
		zap.Int("pdf_size", len(pdfBytes)),
		zap.Int("jpeg_size", buf.Len()),
	)
	return buf.Bytes(), nil
}
