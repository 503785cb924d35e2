package salesforce

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Lead represents a Salesforce Lead record.
type Lead struct {
	ID          string `json:"Id" salesforce:"Id"`
	FirstName   string `json:"FirstName" salesforce:"FirstName"`
	LastName    string `json:"LastName" salesforce:"LastName"`
	Company     string `json:"Company" salesforce:"Company"`
	Title       string `json:"Title" salesforce:"Title"`
	Email       string `json:"Email" salesforce:"Email"`
	MobilePhone string `json:"MobilePhone" salesforce:"MobilePhone"`
	City        string `json:"City" salesforce:"City"`
	LeadSource  string `json:"LeadSource" salesforce:"LeadSource"`
	Website     string `json:"Website" salesforce:"Website"`
}

// leadFields are the SOQL fields selected for Lead queries.
var leadFields = []string{
	"Id", "FirstName", "LastName", "Company", "Title",
	"Email", "MobilePhone", "City", "LeadSource", "Website",
}

// Fields returns the writable fields of l, omitting empty values so an
// update never blanks a field in Salesforce.
func (l Lead) Fields() map[string]any {
	fields := make(map[string]any, 9)
	set := func(name, v string) {
		if v != "" {
			fields[name] = v
		}
	}
	set("FirstName", l.FirstName)
	set("LastName", l.LastName)
	set("Company", l.Company)
	set("Title", l.Title)
	set("Email", l.Email)
	set("MobilePhone", l.MobilePhone)
	set("City", l.City)
	set("LeadSource", l.LeadSource)
	set("Website", l.Website)
	return fields
}

// FindLeadByEmail returns the first Lead with the given email, or nil if
// there is none.
func FindLeadByEmail(ctx context.Context, c Client, email string) (*Lead, error) {
	if email == "" {
		return nil, eris.New("sf: email is required")
	}
	soql := fmt.Sprintf(
		"SELECT %s FROM Lead WHERE Email = '%s' LIMIT 1",
		strings.Join(leadFields, ", "),
		escapeSoql(email),
	)

	var leads []Lead
	if err := c.Query(ctx, soql, &leads); err != nil {
		return nil, eris.Wrapf(err, "sf: find lead by email %s", email)
	}
	if len(leads) == 0 {
		return nil, nil
	}
	return &leads[0], nil
}

// CreateLead inserts l and returns the new Salesforce ID. LastName and
// Company are required by Salesforce.
func CreateLead(ctx context.Context, c Client, l Lead) (string, error) {
	if l.LastName == "" {
		return "", eris.New("sf: lead LastName is required")
	}
	if l.Company == "" {
		return "", eris.New("sf: lead Company is required")
	}
	id, err := c.InsertOne(ctx, "Lead", l.Fields())
	if err != nil {
		return "", eris.Wrap(err, "sf: create lead")
	}
	return id, nil
}

// UpdateLead writes the non-empty fields of l to the Lead with leadID.
func UpdateLead(ctx context.Context, c Client, leadID string, l Lead) error {
	if leadID == "" {
		return eris.New("sf: lead id is required")
	}
	fields := l.Fields()
	if len(fields) == 0 {
		return eris.New("sf: no fields to update")
	}
	if err := c.UpdateOne(ctx, "Lead", leadID, fields); err != nil {
		return eris.Wrapf(err, "sf: update lead %s", leadID)
	}
	return nil
}

// UpsertLeadByEmail updates the Lead that already carries l.Email, or creates
// one. It returns the Lead ID and whether a new record was created.
func UpsertLeadByEmail(ctx context.Context, c Client, l Lead) (string, bool, error) {
	existing, err := FindLeadByEmail(ctx, c, l.Email)
	if err != nil {
		return "", false, err
	}
	if existing == nil {
		id, err := CreateLead(ctx, c, l)
		return id, err == nil, err
	}
	// Company is required on create only; keep the value Salesforce has.
	l.Company = ""
	if err := UpdateLead(ctx, c, existing.ID, l); err != nil {
		return "", false, err
	}
	return existing.ID, false, nil
}

// escapeSoql escapes backslashes and single quotes in SOQL string literals.
func escapeSoql(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, "'", `\'`)
}
