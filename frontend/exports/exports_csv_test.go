package exports

import (
	"bytes"
	"encoding/csv"
	"testing"

	"pickflow/models"
)

func TestWriteSerialsCSV(t *testing.T) {
	orders := []models.Order{
		{
			OrderNumber:  "1001",
			PalletNumber: "P100",
			Status:       models.StatusPicking,
			Items: []models.PickingItem{
				{Line: "1", Location: "A-01", Article: "Widget", Quantity: 2, Unit: "UN",
					Serials: models.SerialList{"SN-1", "SN-2"}, ScannedCount: 2},
				{Line: "2", Location: "B-07", Article: "Cable", Quantity: 1, Unit: "UN"},
			},
		},
	}

	var buf bytes.Buffer
	if err := writeSerialsCSV(&buf, orders); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read csv back: %v", err)
	}
	// Header, two serial rows for line 1, one placeholder row for line 2.
	if len(records) != 4 {
		t.Fatalf("expected 4 records, got %d: %v", len(records), records)
	}
	if records[1][9] != "SN-1" || records[2][9] != "SN-2" {
		t.Fatalf("serial rows wrong: %v", records[1:3])
	}
	if records[3][3] != "2" || records[3][9] != "" {
		t.Fatalf("uncaptured line must still export one row: %v", records[3])
	}
	if records[1][0] != "1001" || records[1][1] != "P100" {
		t.Fatalf("order columns wrong: %v", records[1])
	}
}

func TestWriteSerialsCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := writeSerialsCSV(&buf, nil); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read csv back: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected header only, got %v", records)
	}
}
