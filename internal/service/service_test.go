package service

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"eventattendance/backend/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func fileHeader(t *testing.T, name, contentType string, body []byte) *multipart.FileHeader {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="evidence_image"; filename="`+name+`"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(body)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&buf, w.Boundary()).ReadForm(32 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })

	return form.File["evidence_image"][0]
}

func pngOf(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, x%h, color.RGBA{R: 200, A: 255})
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestSaveEvidence(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC)

	t.Run("nil file", func(t *testing.T) {
		path, err := SaveEvidence(nil, t.TempDir(), 1, 7, now)
		require.NoError(t, err)
		assert.Nil(t, path)
	})

	t.Run("downscales large images", func(t *testing.T) {
		dir := t.TempDir()

		path, err := SaveEvidence(fileHeader(t, "note.png", "image/png", pngOf(t, 3200, 800)), dir, 1, 7, now)
		require.NoError(t, err)
		require.NotNil(t, path)
		assert.Equal(t, "evidence/1/7-"+strconv.FormatInt(now.UnixNano(), 10)+".jpg", *path)

		f, err := os.Open(filepath.Join(dir, *path))
		require.NoError(t, err)
		defer f.Close()

		cfg, err := jpeg.DecodeConfig(f)
		require.NoError(t, err)
		assert.Equal(t, MaxEvidenceSide, cfg.Width)
		assert.Equal(t, 400, cfg.Height)

		require.NoError(t, RemoveMedia(dir, path))
		_, err = os.Stat(filepath.Join(dir, *path))
		assert.True(t, os.IsNotExist(err))
		assert.NoError(t, RemoveMedia(dir, path))
	})

	t.Run("rejects other content", func(t *testing.T) {
		_, err := SaveEvidence(fileHeader(t, "note.txt", "image/png", []byte("plain text, not an image")), t.TempDir(), 1, 7, now)
		assert.True(t, entity.IsFailure(err, entity.KindValidation))
	})
}

func TestAttendanceWorkbook(t *testing.T) {
	checked := time.Date(2026, 3, 2, 10, 15, 0, 0, time.UTC)

	buf, err := AttendanceWorkbook("Lecture", []AttendanceRow{
		{PrintedID: "20111111", Name: "Ana", Course: "CS", Status: "present", CheckedInAt: &checked},
		{PrintedID: "20222222", Name: "Bo", Status: "absent", Reason: "sick"},
	})
	require.NoError(t, err)

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(AttendanceSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, "Lecture", rows[0][0])
	assert.Equal(t, "Printed ID", rows[1][0])
	assert.Equal(t, []string{"20111111", "Ana", "CS", "present", "2026-03-02 10:15:00"}, rows[2])
	assert.Equal(t, "sick", rows[3][6])
}

func TestCardPDF(t *testing.T) {
	u := entity.User{PrintedID: strp("20111111"), FullName: strp("Ana Lima"), Course: strp("CS")}
	u.ID = 7

	pdf, err := CardPDF(u)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF-")))

	_, err = CardPDF(entity.User{})
	assert.True(t, entity.IsFailure(err, entity.KindValidation))
}

func strp(s string) *string { return &s }
