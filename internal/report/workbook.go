package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Sheet1"

// writeWorkbook writes headers and rows into a new .xlsx file at path,
// overwriting any existing file.
func writeWorkbook(path string, headers []string, rows [][]interface{}) error {
	f := excelize.NewFile()
	defer f.Close()

	if _, err := f.NewSheet(sheetName); err != nil {
		return err
	}

	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return err
		}
	}

	for rowNo, row := range rows {
		for colNo, value := range row {
			cell, err := excelize.CoordinatesToCellName(colNo+1, rowNo+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return err
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}
