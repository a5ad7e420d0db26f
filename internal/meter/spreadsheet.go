package meter

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// countSpreadsheet counts non-empty rows across all sheets and buckets
// them into pages. A row is non-empty if any cell holds a non-empty value.
func countSpreadsheet(data []byte) (int, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	nonEmpty := 0
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return 0, fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		for _, row := range rows {
			for _, cell := range row {
				if strings.TrimSpace(cell) != "" {
					nonEmpty++
					break
				}
			}
		}
	}
	return nonEmpty / rowsPerPage, nil
}
