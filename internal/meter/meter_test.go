package meter

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/tomaszkw/docmeter/constants"
)

func csvWithRows(dataRows int) []byte {
	var b strings.Builder
	b.WriteString("id,name,amount\n")
	for i := 0; i < dataRows; i++ {
		fmt.Fprintf(&b, "%d,row-%d,10.00\n", i, i)
	}
	return []byte(b.String())
}

func TestCountCSV(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want int
	}{
		{"empty file", []byte(""), 0},
		{"header only", []byte("id,name\n"), 0},
		{"no header assumed for single line", []byte("just-one-line"), 0},
		{"49 data rows", csvWithRows(49), 0},
		{"50 data rows", csvWithRows(50), 1},
		{"99 data rows", csvWithRows(99), 1},
		{"100 data rows", csvWithRows(100), 2},
		{"101 data rows", csvWithRows(101), 2},
		{"blank lines dropped", []byte("h\n\n\na\n\nb\n"), 0},
		{"crlf line endings", []byte("h\r\na\r\nb\r\n"), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := countCSV(tt.data); got != tt.want {
				t.Errorf("countCSV() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCountCSVMonotonic(t *testing.T) {
	prev := 0
	for n := 0; n <= 250; n++ {
		got := countCSV(csvWithRows(n))
		if want := n / 50; got != want {
			t.Fatalf("countCSV(%d rows) = %d, want %d", n, got, want)
		}
		if got < prev {
			t.Fatalf("page count decreased at %d rows: %d < %d", n, got, prev)
		}
		prev = got
	}
}

func workbookBytes(t *testing.T, sheets map[string]int) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for name, rows := range sheets {
		if name != "Sheet1" {
			if _, err := f.NewSheet(name); err != nil {
				t.Fatalf("new sheet: %v", err)
			}
		}
		for r := 1; r <= rows; r++ {
			cell := fmt.Sprintf("B%d", r)
			if err := f.SetCellValue(name, cell, fmt.Sprintf("v-%d", r)); err != nil {
				t.Fatalf("set cell: %v", err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

func TestCountSpreadsheet(t *testing.T) {
	tests := []struct {
		name   string
		sheets map[string]int
		want   int
	}{
		{"empty workbook", map[string]int{"Sheet1": 0}, 0},
		{"49 rows", map[string]int{"Sheet1": 49}, 0},
		{"50 rows", map[string]int{"Sheet1": 50}, 1},
		{"rows summed across sheets", map[string]int{"Sheet1": 40, "Q2": 35}, 1},
		{"100 rows across sheets", map[string]int{"Sheet1": 60, "Q2": 40}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := countSpreadsheet(workbookBytes(t, tt.sheets))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("countSpreadsheet() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCountSpreadsheetSkipsEmptyRows(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	// 50 real rows interleaved with whitespace-only rows.
	for r := 1; r <= 100; r++ {
		val := "x"
		if r%2 == 0 {
			val = "   "
		}
		if err := f.SetCellValue("Sheet1", fmt.Sprintf("A%d", r), val); err != nil {
			t.Fatalf("set cell: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}

	got, err := countSpreadsheet(buf.Bytes())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 1 {
		t.Errorf("countSpreadsheet() = %d, want 1", got)
	}
}

func TestCountPerFormat(t *testing.T) {
	m := New(nil, 2)
	ctx := context.Background()

	img := m.Count(ctx, FileInput{Name: "scan.JPG", Data: []byte{0xff, 0xd8}})
	if img.Pages != 1 || img.File.Format != constants.FormatImage {
		t.Fatalf("image: got %d pages, format %s", img.Pages, img.File.Format)
	}

	unknown := m.Count(ctx, FileInput{Name: "notes.docx", Data: make([]byte, 1<<20)})
	if unknown.Pages != 0 || unknown.File.Format != constants.FormatUnknown {
		t.Fatalf("unknown: got %d pages, format %s", unknown.Pages, unknown.File.Format)
	}

	// A corrupt PDF is a per-file failure, not a panic or batch abort.
	bad := m.Count(ctx, FileInput{Name: "broken.pdf", Data: []byte("not a pdf")})
	if bad.Err == "" || bad.Pages != 0 {
		t.Fatalf("corrupt pdf: expected recorded error with 0 pages, got %+v", bad)
	}
}

func TestCountBatch(t *testing.T) {
	m := New(nil, 4)
	ctx := context.Background()

	files := []FileInput{
		{Name: "photo.png", Data: []byte{1, 2, 3}},
		{Name: "ledger.csv", Data: csvWithRows(101)},
		{Name: "huge.bin", Data: make([]byte, 4<<20)},
		{Name: "bad.pdf", Data: []byte("garbage")},
	}

	batch := m.CountBatch(ctx, files)

	sum := 0
	for _, r := range batch.PerFile {
		sum += r.Pages
	}
	if batch.Total != sum {
		t.Fatalf("total %d != sum of per-file %d", batch.Total, sum)
	}
	if batch.Total != 3 {
		t.Fatalf("expected total 3 (1 image + 2 csv), got %d", batch.Total)
	}
	if len(batch.PerFile) != len(files) {
		t.Fatalf("no file may be dropped from the breakdown: got %d of %d", len(batch.PerFile), len(files))
	}
	// Unknown format and corrupt file each produce a warning.
	if len(batch.Warnings) != 2 {
		t.Fatalf("expected 2 warnings, got %v", batch.Warnings)
	}
}

func TestCountBatchEmpty(t *testing.T) {
	m := New(nil, 4)
	batch := m.CountBatch(context.Background(), nil)
	if batch.Total != 0 || len(batch.PerFile) != 0 || len(batch.Warnings) != 0 {
		t.Fatalf("empty batch must yield zero total and empty breakdown, got %+v", batch)
	}
}
