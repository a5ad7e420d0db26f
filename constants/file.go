package constants

import (
	"path/filepath"
	"strings"
)

// FileFormat classifies an input file for page metering. Detection is by
// filename extension only; content is never sniffed.
type FileFormat string

const (
	FormatPDF     FileFormat = "pdf"
	FormatExcel   FileFormat = "excel"
	FormatCSV     FileFormat = "csv"
	FormatImage   FileFormat = "image"
	FormatUnknown FileFormat = "unknown"
)

// extensionFormats maps normalized extensions to their billing format.
var extensionFormats = map[string]FileFormat{
	"pdf":  FormatPDF,
	"xlsx": FormatExcel,
	"xls":  FormatExcel,
	"csv":  FormatCSV,
	"png":  FormatImage,
	"jpg":  FormatImage,
	"jpeg": FormatImage,
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// DetectFormat infers the billing format from a filename.
// Unrecognized extensions map to FormatUnknown.
func DetectFormat(filename string) FileFormat {
	ext := NormalizeExt(filepath.Ext(filename))
	if f, ok := extensionFormats[ext]; ok {
		return f
	}
	return FormatUnknown
}
