package provider

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/profile-sync/internal/model"
)

// flexString accepts a JSON string or number. The actors are inconsistent
// about ids and phone numbers.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(b)
	return nil
}

// profileItem is one dataset row from the search actor.
type profileItem struct {
	LinkedinURL  string     `json:"linkedinUrl"`
	ProfileURL   string     `json:"profileUrl"`
	FullName     string     `json:"fullName"`
	LastName     string     `json:"lastName"`
	Headline     string     `json:"headline"`
	Location     string     `json:"location"`
	Picture      string     `json:"picture"`
	ID           flexString `json:"id"`
	ProfileID    flexString `json:"profileId"`
	Email        string     `json:"email"`
	MobileNumber flexString `json:"mobileNumber"`
}

func (it profileItem) record() model.RawRecord {
	ext := string(it.ProfileID)
	if ext == "" {
		ext = string(it.ID)
	}
	return model.RawRecord{
		URL:        firstNonEmpty(it.LinkedinURL, it.ProfileURL),
		FullName:   strings.TrimSpace(it.FullName),
		LastName:   strings.TrimSpace(it.LastName),
		Headline:   it.Headline,
		Location:   it.Location,
		Picture:    it.Picture,
		ExternalID: ext,
		Email:      strings.TrimSpace(it.Email),
		Phone:      strings.TrimSpace(string(it.MobileNumber)),
	}
}

// contactItem is one dataset row from the contact actor.
type contactItem struct {
	LinkedinURL  string     `json:"linkedinUrl"`
	ProfileURL   string     `json:"profileUrl"`
	Email        string     `json:"email"`
	MobileNumber flexString `json:"mobileNumber"`
}

func (it contactItem) result() model.ContactResult {
	return model.ContactResult{
		URL:   firstNonEmpty(it.LinkedinURL, it.ProfileURL),
		Email: strings.TrimSpace(it.Email),
		Phone: strings.TrimSpace(string(it.MobileNumber)),
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// LoadActorInput reads the YAML template merged into every scraper run
// input. An empty path yields no template.
func LoadActorInput(path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "provider: read actor input %s", path)
	}
	var input map[string]any
	if err := yaml.Unmarshal(data, &input); err != nil {
		return nil, eris.Wrapf(err, "provider: parse actor input %s", path)
	}
	return input, nil
}
