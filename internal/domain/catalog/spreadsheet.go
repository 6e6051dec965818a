package catalog

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ayurdiet/ayurdiet/internal/domain/nutrition"
)

const sheetName = "Foods"

// SpreadsheetHeader is the column layout of the import template. Nutrient
// columns may be given in any spelling the nutrient normalizer accepts.
var SpreadsheetHeader = []string{
	"Name", "Local Name", "Description", "Categories",
	"Serving Amount", "Serving Unit",
	"Calories (kcal)", "Protein (g)", "Carbs (g)", "Fat (g)", "Fiber (g)",
	"Vitamin A (mcg)", "Vitamin B1 (mg)", "Vitamin B2 (mg)", "Vitamin B3 (mg)", "Vitamin B6 (mg)",
	"Vitamin B12 (mcg)", "Vitamin C (mg)", "Vitamin D (mcg)", "Vitamin E (mg)", "Vitamin K (mcg)",
	"Folate (mcg)",
	"Calcium (mg)", "Iron (mg)", "Magnesium (mg)", "Phosphorus (mg)", "Potassium (mg)",
	"Sodium (mg)", "Zinc (mg)",
	"Tastes", "Vata", "Pitta", "Kapha", "Qualities", "Virya", "Vipaka",
}

// RowError reports a spreadsheet row that could not be read.
type RowError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

var unitInParens = regexp.MustCompile(`\s*\([^)]*\)\s*$`)

func headerKey(h string) string {
	h = unitInParens.ReplaceAllString(strings.TrimSpace(h), "")
	return strings.ToLower(strings.Join(strings.Fields(h), "_"))
}

func splitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' || r == '|' })
}

// ReadSpreadsheet parses the first sheet of an .xlsx workbook. Rows that fail
// to parse are reported and skipped; the returned foods are not yet
// validated.
func ReadSpreadsheet(r io.Reader) ([]*FoodItem, []RowError, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) < 2 {
		return []*FoodItem{}, nil, nil
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = headerKey(h)
	}

	var (
		items   []*FoodItem
		rowErrs []RowError
	)
	for i := 1; i < len(rows); i++ {
		cells := make(map[string]string, len(header))
		for col, key := range header {
			if col < len(rows[i]) && key != "" {
				if v := strings.TrimSpace(rows[i][col]); v != "" {
					cells[key] = v
				}
			}
		}
		if len(cells) == 0 {
			continue
		}
		item, err := rowToFood(cells)
		if err != nil {
			rowErrs = append(rowErrs, RowError{Row: i + 1, Error: err.Error()})
			continue
		}
		items = append(items, item)
	}
	return items, rowErrs, nil
}

func rowToFood(cells map[string]string) (*FoodItem, error) {
	item := &FoodItem{
		Name:        cells["name"],
		LocalName:   cells["local_name"],
		Description: cells["description"],
		Categories:  splitList(cells["categories"]),
		Tastes:      splitList(cells["tastes"]),
		Qualities:   splitList(cells["qualities"]),
		Virya:       cells["virya"],
		Vipaka:      cells["vipaka"],
	}

	if s, ok := cells["serving_amount"]; ok {
		amount, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("serving amount %q is not a number", s)
		}
		item.Serving.Amount = amount
	}
	if s, ok := cells["serving_unit"]; ok {
		unit, err := nutrition.ParseServingUnit(s)
		if err != nil {
			return nil, err
		}
		item.Serving.Unit = unit
	}

	raw := make(map[string]any, len(cells))
	for k, v := range cells {
		raw[k] = v
	}
	item.Nutrition = nutrition.Canonicalize(raw)

	for _, dosha := range Doshas {
		if effect, ok := cells[dosha]; ok {
			if item.DoshaEffects == nil {
				item.DoshaEffects = make(map[string]string)
			}
			item.DoshaEffects[dosha] = strings.ToLower(effect)
		}
	}
	return item, nil
}

// WriteSpreadsheet writes foods in the import layout. With no foods it
// writes an empty template.
func WriteSpreadsheet(w io.Writer, items []*FoodItem) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("delete default sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E8F5E9"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	for col, h := range SpreadsheetHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return fmt.Errorf("set header %s: %w", cell, err)
		}
	}
	last, _ := excelize.ColumnNumberToName(len(SpreadsheetHeader))
	if err := f.SetCellStyle(sheetName, "A1", last+"1", headerStyle); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	if err := f.SetColWidth(sheetName, "A", last, 16); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}

	for i, item := range items {
		values := foodRow(item)
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	_, err = f.WriteTo(w)
	return err
}

func foodRow(item *FoodItem) []interface{} {
	row := []interface{}{
		item.Name, item.LocalName, item.Description, strings.Join(item.Categories, ", "),
		item.Serving.Amount, string(item.Serving.Unit),
	}
	for _, g := range nutrition.Groups {
		for _, k := range nutrition.KeysFor(g) {
			row = append(row, item.Nutrition.Get(g, k))
		}
	}
	row = append(row, strings.Join(item.Tastes, ", "))
	for _, dosha := range Doshas {
		row = append(row, item.DoshaEffects[dosha])
	}
	return append(row, strings.Join(item.Qualities, ", "), item.Virya, item.Vipaka)
}
