package extract

import (
	"fmt"
	"strconv"
	"time"

	"pickflow/models"
)

// Normalize turns extracted rows into picking items ready for storage.
// Missing or nonsense fields get placeholder values rather than failing
// the whole manifest: a wrong location can be fixed on the floor, a
// rejected upload cannot.
func Normalize(rows []Row) []models.PickingItem {
	now := time.Now().UnixMilli()
	items := make([]models.PickingItem, 0, len(rows))
	for i, row := range rows {
		item := models.PickingItem{
			ItemID:   fmt.Sprintf("i-%d-%d", i, now),
			Position: int64(i),
			Line:     row.Line,
			Location: row.Location,
			Article:  row.Article,
			Quantity: row.Quantity,
			Unit:     row.Unit,
			Serials:  models.SerialList{},
		}
		if item.Line == "" {
			item.Line = strconv.Itoa(i + 1)
		}
		if item.Location == "" {
			item.Location = "?"
		}
		if item.Article == "" {
			item.Article = "?"
		}
		if item.Quantity < 1 {
			item.Quantity = 1
		}
		if item.Unit == "" {
			item.Unit = "UN"
		}
		items = append(items, item)
	}
	return items
}
