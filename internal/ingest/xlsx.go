// Package ingest translates the source spreadsheet reports into normalized
// import rows. All column-name and cell-format quirks stop here: the
// reconcile engine only ever sees dto.NormalizedRow.
package ingest

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"carledger/internal/dto"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Full-report header names after normalization (lowercased, trimmed).
// "purchasedate" is aliased to "purchesdate" — both spellings occur in the
// wild and map to the same field.
const (
	colStockN      = "vstockno"
	colMake        = "manufacturer"
	colModel       = "modelname"
	colYear        = "modelyear"
	colColor       = "color"
	colMileage     = "odo reading"
	colEngine      = "engine"
	colBin         = "bin"
	colXCoord      = "xcoord"
	colCost        = "cost"
	colInventoried = "inventoried"
	colPurchase    = "purchesdate"
	colBreakeven   = "breakevendate"
	colDismantled  = "dismantled"
	colSales       = "sales"
)

// Partial-report headers keep their original casing.
const (
	colPartialStockN  = "Stock #"
	colPartialColor   = "Color"
	colPartialMileage = "Odo Reading"
	colPartialEngine  = "Engine"
)

var nonDigits = regexp.MustCompile(`\D`)

// CleanMileage strips everything but digits from a free-text odometer value.
// Returns nil when nothing remains.
func CleanMileage(raw string) *string {
	cleaned := nonDigits.ReplaceAllString(raw, "")
	if cleaned == "" {
		return nil
	}
	return &cleaned
}

// MapWorkbook reads the first sheet of an xlsx report and yields normalized
// rows. Rows without a parseable stock number come through with StockN 0 and
// are rejected by the engine's floor check, mirroring how empty spreadsheet
// tails behave in the source system.
func MapWorkbook(r io.Reader, kind dto.SourceKind) ([]dto.NormalizedRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("ingest: open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("ingest: read sheet %q: %w", sheet, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("ingest: sheet %q has no data rows", sheet)
	}

	header := indexHeader(rows[0], kind)
	out := make([]dto.NormalizedRow, 0, len(rows)-1)
	for _, cells := range rows[1:] {
		if isEmptyRow(cells) {
			continue
		}
		if kind == dto.SourceKindPartial {
			out = append(out, mapPartialRow(cells, header))
		} else {
			out = append(out, mapFullRow(cells, header))
		}
	}
	return out, nil
}

// indexHeader maps column names to positions. Full-report names are
// normalized; partial-report names are taken verbatim.
func indexHeader(header []string, kind dto.SourceKind) map[string]int {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.TrimSpace(name)
		if kind == dto.SourceKindFull {
			key = strings.ToLower(key)
			if key == "purchasedate" {
				key = colPurchase
			}
		}
		idx[key] = i
	}
	return idx
}

func mapFullRow(cells []string, idx map[string]int) dto.NormalizedRow {
	row := dto.NormalizedRow{
		StockN:           cellInt(cells, idx, colStockN),
		Make:             cellString(cells, idx, colMake),
		Model:            cellString(cells, idx, colModel),
		Year:             cellIntPtr(cells, idx, colYear),
		Color:            cellString(cells, idx, colColor),
		Engine:           cellString(cells, idx, colEngine),
		Bin:              cellString(cells, idx, colBin),
		XCoord:           cellString(cells, idx, colXCoord),
		Cost:             cellDecimal(cells, idx, colCost),
		CumulativeAmount: cellDecimal(cells, idx, colSales),
		Inventoried:      cellDate(cells, idx, colInventoried),
		PurchaseDate:     cellDate(cells, idx, colPurchase),
		BreakevenDate:    cellDate(cells, idx, colBreakeven),
		Dismantled:       cellDate(cells, idx, colDismantled),
	}
	if raw := cellRaw(cells, idx, colMileage); raw != "" {
		row.Mileage = CleanMileage(raw)
	}
	return row
}

func mapPartialRow(cells []string, idx map[string]int) dto.NormalizedRow {
	row := dto.NormalizedRow{
		StockN: cellInt(cells, idx, colPartialStockN),
		Color:  cellString(cells, idx, colPartialColor),
		Engine: cellString(cells, idx, colPartialEngine),
	}
	if raw := cellRaw(cells, idx, colPartialMileage); raw != "" {
		row.Mileage = CleanMileage(raw)
	}
	return row
}

// ── cell accessors ───────────────────────────────────────────────────────────

func cellRaw(cells []string, idx map[string]int, col string) string {
	i, ok := idx[col]
	if !ok || i >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[i])
}

func cellString(cells []string, idx map[string]int, col string) *string {
	v := cellRaw(cells, idx, col)
	if v == "" {
		return nil
	}
	return &v
}

// cellInt tolerates "10301.0" — excelize renders untyped numeric cells with a
// fractional zero depending on the source formatting.
func cellInt(cells []string, idx map[string]int, col string) int {
	v := cellRaw(cells, idx, col)
	if v == "" {
		return 0
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return int(f)
	}
	return 0
}

func cellIntPtr(cells []string, idx map[string]int, col string) *int {
	v := cellRaw(cells, idx, col)
	if v == "" {
		return nil
	}
	n := cellInt(cells, idx, col)
	if n == 0 && v != "0" {
		return nil
	}
	return &n
}

func cellDecimal(cells []string, idx map[string]int, col string) *decimal.Decimal {
	v := cellRaw(cells, idx, col)
	if v == "" {
		return nil
	}
	v = strings.ReplaceAll(v, ",", "")
	d, err := decimal.NewFromString(v)
	if err != nil {
		return nil
	}
	return &d
}

// dateLayouts are tried in order. The source reports are day-first; ISO and
// excelize's default formatting are accepted as well. Unparseable cells
// become nil, never an error — the source data carries plenty of junk.
var dateLayouts = []string{
	"02.01.2006",
	"02/01/2006",
	"02-01-2006",
	"2006-01-02",
	"01-02-06",
	"1/2/06",
}

func cellDate(cells []string, idx map[string]int, col string) *time.Time {
	v := cellRaw(cells, idx, col)
	if v == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &d
		}
	}
	return nil
}

func isEmptyRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
