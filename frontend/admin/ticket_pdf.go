package admin

import (
	"bytes"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"pickflow/models"
	"pickflow/token"
)

// renderPickTicketPDF builds a one-page A4 pick ticket: order header, the
// handoff QR and the line table the picker works through.
func renderPickTicketPDF(order models.Order, printedAt time.Time) ([]byte, error) {
	qrPNG, err := token.RenderQR(order, 600)
	if err != nil {
		return nil, err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Pick Ticket", false)
	pdf.AddPage()

	palletNumber := strings.TrimSpace(order.PalletNumber)
	if palletNumber == "" {
		palletNumber = "-"
	}

	pdf.SetFont("Helvetica", "B", 30)
	pdf.CellFormat(0, 14, "ORDER "+order.OrderNumber, "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 14)
	pdf.CellFormat(0, 8, "Pallet: "+palletNumber, "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 8, "Printed: "+printedAt.Format("02/01/2006 15:04"), "", 1, "C", false, 0, "")

	opt := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
	imageName := "order-qr-" + order.ID
	pdf.RegisterImageOptionsReader(imageName, opt, bytes.NewReader(qrPNG))
	pageW, _ := pdf.GetPageSize()
	qrSize := 58.0
	pdf.ImageOptions(imageName, (pageW-qrSize)/2, 48, qrSize, qrSize, false, opt, 0, "")

	pdf.SetY(48 + qrSize + 4)
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, "Scan with the handheld to start picking", "", 1, "C", false, 0, "")

	pdf.Ln(4)
	colWidths := []float64{16, 34, 80, 22, 18, 20}
	headers := []string{"Line", "Location", "Article", "Qty", "Unit", "Picked"}
	pdf.SetFont("Helvetica", "B", 11)
	for i, h := range headers {
		pdf.CellFormat(colWidths[i], 8, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 11)
	for _, item := range order.Items {
		article := item.Article
		if pdf.GetStringWidth(article) > colWidths[2]-2 {
			for len(article) > 0 && pdf.GetStringWidth(article+"...") > colWidths[2]-2 {
				article = article[:len(article)-1]
			}
			article += "..."
		}
		cells := []string{
			item.Line,
			item.Location,
			article,
			strconv.FormatInt(item.Quantity, 10),
			item.Unit,
			strconv.FormatInt(item.ScannedCount, 10),
		}
		aligns := []string{"C", "L", "L", "C", "C", "C"}
		for i, cell := range cells {
			pdf.CellFormat(colWidths[i], 8, cell, "1", 0, aligns[i], false, 0, "")
		}
		pdf.Ln(-1)
	}

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
