package spreadsheet

import (
	"bytes"
	"encoding/csv"
	"io"
	"os"

	"github.com/rotisserie/eris"

	"github.com/sells-group/profile-sync/internal/model"
)

// CSVOptions configures CSV parsing.
type CSVOptions struct {
	Delimiter rune // default ','
	Comment   rune // comment character (0 = none)
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadCSVRows returns every row of r. Rows may have differing field counts
// and a leading UTF-8 byte order mark is dropped.
func ReadCSVRows(r io.Reader, opts CSVOptions) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "spreadsheet: read csv")
	}
	reader := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	if opts.Comment != 0 {
		reader.Comment = opts.Comment
	}
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "spreadsheet: parse csv")
	}
	return rows, nil
}

// ReadCSVRecords reads the CSV file at path into raw records with the same
// header mapping as ReadRecords.
func ReadCSVRecords(path string, opts CSVOptions) ([]model.RawRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "spreadsheet: open file")
	}
	defer f.Close() //nolint:errcheck

	rows, err := ReadCSVRows(f, opts)
	if err != nil {
		return nil, err
	}
	return recordsFromRows(rows)
}
