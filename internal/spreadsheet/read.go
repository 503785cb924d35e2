// Package spreadsheet imports profile rows from XLSX workbooks and CSV files
// and exports stored profiles back to XLSX.
package spreadsheet

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/profile-sync/internal/model"
)

// Options selects the sheet to read.
type Options struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
}

// column is a RawRecord field a header can map to.
type column int

const (
	colURL column = iota
	colFullName
	colLastName
	colHeadline
	colLocation
	colPicture
	colID
	colProfileID
	colEmail
	colPhone
)

// headerAliases maps lower-cased header text to a column. profileUrl and
// linkedinUrl are interchangeable.
var headerAliases = map[string]column{
	"profileurl":   colURL,
	"linkedinurl":  colURL,
	"url":          colURL,
	"fullname":     colFullName,
	"lastname":     colLastName,
	"headline":     colHeadline,
	"location":     colLocation,
	"picture":      colPicture,
	"id":           colID,
	"profileid":    colProfileID,
	"email":        colEmail,
	"mobilenumber": colPhone,
	"phone":        colPhone,
}

// ReadRows returns every row of the selected sheet as strings.
func ReadRows(path string, opts Options) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "spreadsheet: open file")
	}
	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}

	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		if row == nil {
			continue
		}
		rows = append(rows, rowToStrings(row))
	}
	return rows, nil
}

// ReadRecords reads the sheet at path into raw records using its first row
// as the header. Blank rows are skipped. Rows without a URL are kept so the
// reconciliation pass can count them as dropped.
func ReadRecords(path string, opts Options) ([]model.RawRecord, error) {
	rows, err := ReadRows(path, opts)
	if err != nil {
		return nil, err
	}
	return recordsFromRows(rows)
}

func recordsFromRows(rows [][]string) ([]model.RawRecord, error) {
	if len(rows) == 0 {
		return nil, eris.New("spreadsheet: sheet is empty")
	}

	index := mapHeader(rows[0])
	if _, ok := index[colURL]; !ok {
		return nil, eris.New("spreadsheet: no profileUrl or linkedinUrl column")
	}

	records := make([]model.RawRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if blank(row) {
			continue
		}
		records = append(records, toRecord(row, index))
	}
	return records, nil
}

func mapHeader(header []string) map[column]int {
	index := make(map[column]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		col, ok := headerAliases[key]
		if !ok {
			continue
		}
		if _, dup := index[col]; !dup {
			index[col] = i
		}
	}
	return index
}

func toRecord(row []string, index map[column]int) model.RawRecord {
	get := func(c column) string {
		i, ok := index[c]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	ext := get(colProfileID)
	if ext == "" {
		ext = get(colID)
	}
	return model.RawRecord{
		URL:        get(colURL),
		FullName:   get(colFullName),
		LastName:   get(colLastName),
		Headline:   get(colHeadline),
		Location:   get(colLocation),
		Picture:    get(colPicture),
		ExternalID: ext,
		Email:      get(colEmail),
		Phone:      get(colPhone),
	}
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func getSheet(f *xlsx.File, opts Options) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("spreadsheet: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}
	if opts.SheetIndex < 0 || opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("spreadsheet: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}
	return f.Sheets[opts.SheetIndex], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
