package orders

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"

	"myhomeneeds/apperr"
	"myhomeneeds/models"
)

// ReceiptPayload is what the receipt's QR code encodes.
func ReceiptPayload(orderID string) string {
	return "myhomeneeds:order:" + orderID
}

// Receipt renders the order as a one-page PDF with a QR code of its id.
func Receipt(o *models.Order) ([]byte, error) {
	qrPNG, err := qrcode.Encode(ReceiptPayload(o.ID), qrcode.Medium, 256)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "orders.Receipt", err)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(40, 10, "Order Receipt")
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 12)
	pdf.Cell(0, 10, fmt.Sprintf("Order: %s", o.ID))
	pdf.Ln(8)
	pdf.Cell(0, 10, fmt.Sprintf("Placed: %s", o.CreatedAt.Format("2006-01-02 15:04")))
	pdf.Ln(8)
	pdf.Cell(0, 10, fmt.Sprintf("Status: %s", o.Status))
	pdf.Ln(12)

	ids := make([]string, 0, len(o.Items))
	for id := range o.Items {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(90, 8, "Meal", "B", 0, "", false, 0, "")
	pdf.CellFormat(20, 8, "Qty", "B", 0, "R", false, 0, "")
	pdf.CellFormat(30, 8, "Price", "B", 1, "R", false, 0, "")
	pdf.SetFont("Arial", "", 12)
	for _, id := range ids {
		it := o.Items[id]
		pdf.CellFormat(90, 8, it.MealName, "", 0, "", false, 0, "")
		pdf.CellFormat(20, 8, fmt.Sprintf("%d", it.Quantity), "", 0, "R", false, 0, "")
		pdf.CellFormat(30, 8, fmt.Sprintf("%.2f", it.Price*float64(it.Quantity)), "", 1, "R", false, 0, "")
	}
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(110, 10, "Total", "T", 0, "", false, 0, "")
	pdf.CellFormat(30, 10, fmt.Sprintf("%.2f", o.Total), "T", 1, "R", false, 0, "")

	imageOpts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", imageOpts, bytes.NewReader(qrPNG))
	pdf.ImageOptions("qr", 150, 20, 40, 40, false, imageOpts, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "orders.Receipt", err)
	}
	return buf.Bytes(), nil
}
