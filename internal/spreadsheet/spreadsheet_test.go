package spreadsheet

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/profile-sync/internal/model"
)

func createTestXLSX(t *testing.T, sheets map[string][][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, rowData := range rows {
			row := sheet.AddRow()
			for _, cellData := range rowData {
				row.AddCell().SetString(cellData)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "test.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestReadRecords(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {
			{"fullName", "Headline", "linkedinUrl", "email", "mobileNumber", "id", "profileId", "notes"},
			{"Ana Ruiz", "CTO", "https://www.linkedin.com/in/ana?trk=1", "ana@example.com", "+34600111222", "1", "ana-1", "x"},
			{"", "", "", "", "", "", "", ""},
			{"Bo", "", "https://www.linkedin.com/in/bo", "", "", "2", "", ""},
			{"No Url", "Sales", "", "", "", "", "", ""},
		},
	})

	records, err := ReadRecords(path, Options{})
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, model.RawRecord{
		URL:        "https://www.linkedin.com/in/ana?trk=1",
		FullName:   "Ana Ruiz",
		Headline:   "CTO",
		ExternalID: "ana-1",
		Email:      "ana@example.com",
		Phone:      "+34600111222",
	}, records[0])
	assert.Equal(t, "2", records[1].ExternalID)
	assert.Empty(t, records[2].URL)
}

func TestReadRecords_ProfileURLHeader(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {
			{"profileUrl", "location"},
			{"https://www.linkedin.com/in/cleo", "Madrid"},
		},
	})

	records, err := ReadRecords(path, Options{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "https://www.linkedin.com/in/cleo", records[0].URL)
	assert.Equal(t, "Madrid", records[0].Location)
}

func TestReadRecords_NoURLColumn(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {{"fullName", "email"}, {"Ana", "ana@example.com"}},
	})
	_, err := ReadRecords(path, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no profileUrl")
}

func TestReadRecords_EmptySheet(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{"Sheet1": {}})
	_, err := ReadRecords(path, Options{})
	require.Error(t, err)
}

func TestReadRows_SheetSelection(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Data": {{"a", "b"}},
	})

	rows, err := ReadRows(path, Options{SheetName: "Data"})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "b"}}, rows)

	_, err = ReadRows(path, Options{SheetName: "Missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	_, err = ReadRows(path, Options{SheetIndex: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestReadRows_MissingFile(t *testing.T) {
	_, err := ReadRows(filepath.Join(t.TempDir(), "nope.xlsx"), Options{})
	require.Error(t, err)
}

func TestWriteProfiles(t *testing.T) {
	created := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	profiles := []model.Profile{
		{NormalizedURL: "https://www.linkedin.com/in/ana", RawURL: "https://www.linkedin.com/in/ana?trk=1", FullName: "Ana Ruiz", Email: "ana@example.com", ContactVerified: true, CreatedAt: created},
		{NormalizedURL: "https://www.linkedin.com/in/bo", FullName: "Bo", CreatedAt: created},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteProfiles(&buf, profiles))

	f, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	sheet, ok := f.Sheet[sheetName]
	require.True(t, ok)
	require.Len(t, sheet.Rows, 3)

	header := rowToStrings(sheet.Rows[0])
	assert.Equal(t, exportHeader, header)
	first := rowToStrings(sheet.Rows[1])
	assert.Equal(t, "https://www.linkedin.com/in/ana?trk=1", first[0])
	assert.Equal(t, "true", first[9])
	assert.Equal(t, "2025-06-01 09:30:00", first[10])
	assert.Equal(t, "https://www.linkedin.com/in/bo", rowToStrings(sheet.Rows[2])[0])
}

func TestSaveProfiles_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.xlsx")
	profiles := []model.Profile{
		{NormalizedURL: "https://www.linkedin.com/in/ana", FullName: "Ana Ruiz", Email: "ana@example.com", Phone: "+34600111222", ExternalID: "ana-1"},
	}
	require.NoError(t, SaveProfiles(path, profiles))

	records, err := ReadRecords(path, Options{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "https://www.linkedin.com/in/ana", records[0].URL)
	assert.Equal(t, "ana@example.com", records[0].Email)
	assert.Equal(t, "+34600111222", records[0].Phone)
	assert.Equal(t, "ana-1", records[0].ExternalID)
}
