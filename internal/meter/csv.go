package meter

import "strings"

// countCSV splits on line breaks, drops blank lines, and subtracts one
// line for an assumed header when more than one line remains.
func countCSV(data []byte) int {
	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")

	kept := 0
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			kept++
		}
	}

	dataRows := kept
	if kept > 1 {
		dataRows = kept - 1
	}
	return dataRows / rowsPerPage
}
