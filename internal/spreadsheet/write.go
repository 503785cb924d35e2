package spreadsheet

import (
	"io"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/profile-sync/internal/model"
)

const sheetName = "Profiles"

// exportHeader uses the same names ReadRecords accepts, so an export can be
// imported again.
var exportHeader = []string{
	"profileUrl", "fullName", "lastName", "headline", "location", "picture",
	"profileId", "email", "mobileNumber", "contactVerified", "createdAt",
}

// WriteProfiles writes profiles as a single-sheet workbook to w.
func WriteProfiles(w io.Writer, profiles []model.Profile) error {
	f, err := buildWorkbook(profiles)
	if err != nil {
		return err
	}
	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "spreadsheet: write workbook")
	}
	return nil
}

// SaveProfiles writes profiles to a workbook at path.
func SaveProfiles(path string, profiles []model.Profile) error {
	out, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "spreadsheet: create %s", path)
	}
	if err := WriteProfiles(out, profiles); err != nil {
		_ = out.Close()
		return err
	}
	return eris.Wrapf(out.Close(), "spreadsheet: close %s", path)
}

func buildWorkbook(profiles []model.Profile) (*xlsx.File, error) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sheetName)
	if err != nil {
		return nil, eris.Wrap(err, "spreadsheet: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range exportHeader {
		header.AddCell().SetString(h)
	}

	for _, p := range profiles {
		url := p.RawURL
		if url == "" {
			url = p.NormalizedURL
		}
		row := sheet.AddRow()
		for _, v := range []string{
			url, p.FullName, p.LastName, p.Headline, p.Location, p.Picture,
			p.ExternalID, p.Email, p.Phone, strconv.FormatBool(p.ContactVerified),
			p.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		} {
			row.AddCell().SetString(v)
		}
	}
	return f, nil
}
