package service

import (
	"bytes"
	"fmt"

	"eventattendance/backend/internal/entity"

	"github.com/jung-kurt/gofpdf/v2"
	"github.com/pkg/errors"
	"github.com/skip2/go-qrcode"
)

// ID-1 card size in millimetres.
const (
	cardWidth  = 85.6
	cardHeight = 53.98
)

// CardPDF renders a printable member card. The printed id is shown in text
// and as a QR code so it can be keyed in when a chip is first bound.
func CardPDF(u entity.User) ([]byte, error) {
	if u.PrintedID == nil || *u.PrintedID == "" {
		return nil, entity.NewFailure(entity.KindValidation, "user %d has no printed id", u.ID)
	}

	png, err := qrcode.Encode(*u.PrintedID, qrcode.Medium, 256)
	if err != nil {
		return nil, errors.Wrap(err, "encoding qr code")
	}

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "L",
		UnitStr:        "mm",
		Size:           gofpdf.SizeType{Wd: cardWidth, Ht: cardHeight},
	})
	pdf.SetMargins(4, 4, 4)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetDrawColor(40, 40, 40)
	pdf.Rect(1, 1, cardWidth-2, cardHeight-2, "D")

	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetXY(4, 5)
	pdf.CellFormat(48, 6, tr(u.DisplayName()), "", 2, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 8)
	if u.Course != nil {
		pdf.CellFormat(48, 5, tr(*u.Course), "", 2, "L", false, 0, "")
	}

	pdf.SetFont("Courier", "B", 12)
	pdf.SetXY(4, cardHeight-12)
	pdf.CellFormat(48, 6, *u.PrintedID, "", 0, "L", false, 0, "")

	name := fmt.Sprintf("qr-%d", u.ID)
	opt := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader(name, opt, bytes.NewReader(png))
	pdf.ImageOptions(name, cardWidth-36, (cardHeight-32)/2, 32, 32, false, opt, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, errors.Wrap(err, "rendering card")
	}

	return buf.Bytes(), nil
}
