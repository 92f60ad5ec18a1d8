package infra

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

var ErrUnsupportedImage = errors.New("photo: unsupported image format")

const (
	photoURLPrefix = "/photos/"
	photoQuality   = 85
	// maxPhotoSide caps either dimension before the full decode. Highly
	// compressible images stay small on the wire but not in memory.
	maxPhotoSide = 8000
)

// PhotoStore keeps one WebP file per staff member under dir. Uploads are
// auto-oriented, fitted inside maxPx x maxPx and re-encoded, so the original
// bytes are never served back.
type PhotoStore struct {
	dir   string
	maxPx int
}

func NewPhotoStore(dir string, maxPx int) (*PhotoStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("photo: create storage dir: %w", err)
	}
	if maxPx <= 0 {
		maxPx = 512
	}
	return &PhotoStore{dir: dir, maxPx: maxPx}, nil
}

func (p *PhotoStore) Dir() string { return p.dir }

// Save normalises src and atomically replaces the staff member's photo.
// It returns the public URL path.
func (p *PhotoStore) Save(ctx context.Context, staffID uuid.UUID, src io.Reader) (string, error) {
	br := bufio.NewReader(src)
	head, _ := br.Peek(512)
	ct := http.DetectContentType(head)
	if !strings.HasPrefix(ct, "image/") {
		return "", ErrUnsupportedImage
	}

	// DecodeConfig reads only the header; the bytes it consumes are replayed
	// for the full decode.
	var header bytes.Buffer
	cfg, _, err := image.DecodeConfig(io.TeeReader(br, &header))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > maxPhotoSide || cfg.Height > maxPhotoSide {
		return "", fmt.Errorf("%w: %dx%d exceeds %dx%d", ErrUnsupportedImage, cfg.Width, cfg.Height, maxPhotoSide, maxPhotoSide)
	}

	img, err := imaging.Decode(io.MultiReader(&header, br), imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	img = imaging.Fit(img, p.maxPx, p.maxPx, imaging.Lanczos)

	tmp, err := os.CreateTemp(p.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("photo: temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if err := webp.Encode(tmp, img, &webp.Options{Lossless: false, Quality: photoQuality}); err != nil {
		tmp.Close()
		return "", fmt.Errorf("photo: encode webp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("photo: flush: %w", err)
	}

	name := staffID.String() + ".webp"
	if err := os.Rename(tmp.Name(), filepath.Join(p.dir, name)); err != nil {
		return "", fmt.Errorf("photo: store: %w", err)
	}
	return photoURLPrefix + name, nil
}
