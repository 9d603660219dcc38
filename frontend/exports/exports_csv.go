package exports

import (
	"encoding/csv"
	"io"
	"strconv"

	"pickflow/models"
)

var csvHeader = []string{
	"order_number", "pallet_number", "order_status",
	"line", "location", "article", "quantity", "unit",
	"scanned_count", "serial",
}

// writeSerialsCSV writes one row per captured serial. Lines with no
// captures yet still get a single row with an empty serial column so the
// export always shows the full ticket.
func writeSerialsCSV(w io.Writer, orders []models.Order) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return err
	}
	for _, order := range orders {
		for _, item := range order.Items {
			serials := []string(item.Serials)
			if len(serials) == 0 {
				serials = []string{""}
			}
			for _, serial := range serials {
				row := []string{
					order.OrderNumber,
					order.PalletNumber,
					order.Status,
					item.Line,
					item.Location,
					item.Article,
					strconv.FormatInt(item.Quantity, 10),
					item.Unit,
					strconv.FormatInt(item.ScannedCount, 10),
					serial,
				}
				if err := writer.Write(row); err != nil {
					return err
				}
			}
		}
	}
	writer.Flush()
	return writer.Error()
}
