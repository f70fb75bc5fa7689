package utils

import (
	"fmt"
	"io"
	"sort"

	"github.com/xivmarket/market-calculator/marketboard/economy/ranking"
	"github.com/xuri/excelize/v2"
)

const defaultSheet = "Sheet1"

var exportColumns = []interface{}{"Item ID", "Name", "Profit", "Avg-Sales", "Avg-Cost", "Avg-Cft-Cost"}

// ExportRankings writes one worksheet per table, sheets ordered by name.
func ExportRankings(w io.Writer, tables map[string][]ranking.Row) error {
	f := excelize.NewFile()
	defer f.Close()

	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)

	for i, name := range names {
		idx, err := f.NewSheet(name)
		if err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
		if i == 0 {
			f.SetActiveSheet(idx)
		}
		if err := writeSheet(f, name, tables[name]); err != nil {
			return err
		}
	}

	if len(names) > 0 {
		if err := f.DeleteSheet(defaultSheet); err != nil {
			return fmt.Errorf("failed to remove default sheet: %w", err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, rows []ranking.Row) error {
	if err := f.SetSheetRow(sheet, "A1", &exportColumns); err != nil {
		return fmt.Errorf("failed to write header of %s: %w", sheet, err)
	}
	if err := f.SetColWidth(sheet, "B", "B", 36); err != nil {
		return err
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []interface{}{r.ItemID, r.Name, r.Metric, r.Velocity, optional(r.AveCost), optional(r.CostToCraft)}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d of %s: %w", i+1, sheet, err)
		}
	}
	return nil
}

func optional(v *int64) interface{} {
	if v == nil {
		return ""
	}
	return *v
}
