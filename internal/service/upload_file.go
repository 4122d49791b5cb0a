package service

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"log"
	"math"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"eventattendance/backend/internal/entity"

	"github.com/pkg/errors"
	"golang.org/x/image/draw"
)

const (
	EvidenceFolder = "evidence"

	// MaxEvidenceSide bounds the longer side of a stored evidence image.
	MaxEvidenceSide = 1600
	MaxEvidenceSize = 10 << 20
)

func InArray[T comparable](val T, array []T) bool {
	for _, v := range array {
		if val == v {
			return true
		}
	}
	return false
}

// SaveEvidence stores a decline evidence image below mediaDir and returns its
// path relative to mediaDir. Images are re-encoded as JPEG and downscaled to
// MaxEvidenceSide. A nil file stores nothing.
func SaveEvidence(file *multipart.FileHeader, mediaDir string, eventID, userID int, now time.Time) (*string, error) {
	if file == nil {
		return nil, nil
	}

	if file.Size > MaxEvidenceSize {
		return nil, entity.NewFailure(entity.KindValidation, "evidence image is larger than %d MB", MaxEvidenceSize>>20).
			With("evidence_image", "too large")
	}

	src, err := file.Open()
	if err != nil {
		return nil, errors.Wrap(err, "opening evidence")
	}
	defer func() {
		if closeErr := src.Close(); closeErr != nil {
			log.Println("evidence upload src.Close() error:", closeErr)
		}
	}()

	all, err := io.ReadAll(io.LimitReader(src, MaxEvidenceSize+1))
	if err != nil {
		return nil, errors.Wrap(err, "reading evidence")
	}

	img, err := decodeImage(all)
	if err != nil {
		return nil, err
	}
	img = downscale(img, MaxEvidenceSide)

	folder := filepath.Join(EvidenceFolder, fmt.Sprint(eventID))
	if err := os.MkdirAll(filepath.Join(mediaDir, folder), os.ModePerm); err != nil {
		return nil, errors.Wrap(err, "creating evidence folder")
	}

	rel := filepath.Join(folder, fmt.Sprintf("%d-%d.jpg", userID, now.UnixNano()))

	out, err := os.Create(filepath.Join(mediaDir, rel))
	if err != nil {
		return nil, errors.Wrap(err, "creating evidence file")
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil {
			log.Println("evidence upload out.Close() error:", closeErr)
		}
	}()

	if err := jpeg.Encode(out, img, &jpeg.Options{Quality: 85}); err != nil {
		return nil, errors.Wrap(err, "encoding evidence")
	}

	rel = filepath.ToSlash(rel)
	return &rel, nil
}

// RemoveMedia deletes a stored file. Missing files are not an error.
func RemoveMedia(mediaDir string, rel *string) error {
	if rel == nil {
		return nil
	}
	err := os.Remove(filepath.Join(mediaDir, filepath.FromSlash(*rel)))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing media")
	}
	return nil
}

func decodeImage(all []byte) (image.Image, error) {
	head := all
	if len(head) > 512 {
		head = head[:512]
	}

	expectedContentType := []string{"image/jpeg", "image/png"}

	ct := http.DetectContentType(head)
	if !InArray(ct, expectedContentType) {
		return nil, entity.NewFailure(entity.KindValidation, "invalid file type, expected one of %v, got %s", expectedContentType, ct).
			With("evidence_image", "invalid type")
	}

	var (
		img image.Image
		err error
	)
	if ct == "image/png" {
		img, err = png.Decode(bytes.NewReader(all))
	} else {
		img, err = jpeg.Decode(bytes.NewReader(all))
	}
	if err != nil {
		return nil, entity.NewFailure(entity.KindValidation, "evidence image could not be decoded").
			With("evidence_image", "corrupt")
	}

	return img, nil
}

func downscale(src image.Image, maxSide int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxSide && h <= maxSide {
		return src
	}

	scale := math.Min(float64(maxSide)/float64(w), float64(maxSide)/float64(h))
	nw := int(math.Max(1, math.Round(float64(w)*scale)))
	nh := int(math.Max(1, math.Round(float64(h)*scale)))

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}
