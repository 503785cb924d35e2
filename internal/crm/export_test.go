package crm

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/profile-sync/internal/model"
	"github.com/sells-group/profile-sync/internal/store"
	"github.com/sells-group/profile-sync/pkg/salesforce"
)

// fakeSF keeps Leads in memory, keyed by email.
type fakeSF struct {
	mu       sync.Mutex
	leads    map[string]map[string]any
	failFor  string
	inserted int
	updated  int
}

func newFakeSF() *fakeSF {
	return &fakeSF{leads: make(map[string]map[string]any)}
}

func (f *fakeSF) Query(_ context.Context, soql string, out any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	leads := out.(*[]salesforce.Lead)
	for email := range f.leads {
		if strings.Contains(soql, "'"+email+"'") {
			*leads = []salesforce.Lead{{ID: "00Q-" + email, Email: email}}
		}
	}
	return nil
}

func (f *fakeSF) InsertOne(_ context.Context, _ string, record map[string]any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	email, _ := record["Email"].(string)
	if email == f.failFor {
		return "", errors.New("sf: insert Lead failed: DUPLICATES_DETECTED")
	}
	f.leads[email] = record
	f.inserted++
	return "00Q-" + email, nil
}

func (f *fakeSF) UpdateOne(_ context.Context, _ string, _ string, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	email, _ := fields["Email"].(string)
	for k, v := range fields {
		f.leads[email][k] = v
	}
	f.updated++
	return nil
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "crm.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func seed(t *testing.T, s *store.SQLiteStore, url, name, email string) int64 {
	t.Helper()
	p := &model.Profile{NormalizedURL: url, RawURL: url, FullName: name, Email: email, Headline: "Engineer"}
	ok, err := s.InsertProfile(context.Background(), p)
	require.NoError(t, err)
	require.True(t, ok)
	return p.ID
}

func TestExport_ProfileIDs(t *testing.T) {
	s := newTestStore(t)
	sf := newFakeSF()
	ana := seed(t, s, "https://x/in/ana", "Ana María Ruiz", "ana@example.com")
	bo := seed(t, s, "https://x/in/bo", "Bo", "")

	res, err := New(sf, s, Config{LeadSource: "LinkedIn", DefaultCompany: "Acme"}).
		Export(context.Background(), Selection{ProfileIDs: []int64{ana, bo, ana, 999}})
	require.NoError(t, err)

	require.Len(t, res.Succeeded, 1)
	assert.Equal(t, Sent{ProfileID: ana, Name: "Ana María Ruiz", LeadID: "00Q-ana@example.com", Created: true}, res.Succeeded[0])

	require.Len(t, res.Failed, 2)
	assert.Equal(t, Failed{ProfileID: 999, Error: "profile not found"}, res.Failed[0])
	assert.Equal(t, bo, res.Failed[1].ProfileID)
	assert.Contains(t, res.Failed[1].Error, "no email")

	lead := sf.leads["ana@example.com"]
	assert.Equal(t, "Ana", lead["FirstName"])
	assert.Equal(t, "María Ruiz", lead["LastName"])
	assert.Equal(t, "Acme", lead["Company"])
	assert.Equal(t, "LinkedIn", lead["LeadSource"])
	assert.Equal(t, "Engineer", lead["Title"])
}

func TestExport_CampaignUpdatesExistingLeads(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sf := newFakeSF()
	sf.leads["ana@example.com"] = map[string]any{"Email": "ana@example.com", "Company": "Old"}

	ana := seed(t, s, "https://x/in/ana", "Ana Ruiz", "ana@example.com")
	cleo := seed(t, s, "https://x/in/cleo", "Cleo Park", "cleo@example.com")
	c, err := s.CreateCampaign(ctx, model.NewCampaign{Name: "q3"})
	require.NoError(t, err)
	_, err = s.LinkProfiles(ctx, c.ID, []int64{ana, cleo})
	require.NoError(t, err)

	res, err := New(sf, s, Config{Concurrency: 2}).Export(ctx, Selection{CampaignID: c.ID})
	require.NoError(t, err)
	assert.Len(t, res.Succeeded, 2)
	assert.Empty(t, res.Failed)
	assert.Equal(t, 1, sf.inserted)
	assert.Equal(t, 1, sf.updated)
	assert.Equal(t, "Old", sf.leads["ana@example.com"]["Company"])
	assert.Equal(t, "Unknown", sf.leads["cleo@example.com"]["Company"])
}

func TestExport_All(t *testing.T) {
	s := newTestStore(t)
	sf := newFakeSF()
	seed(t, s, "https://x/in/a", "A One", "a@example.com")
	seed(t, s, "https://x/in/b", "B Two", "b@example.com")
	seed(t, s, "https://x/in/c", "C Three", "")

	res, err := New(sf, s, Config{}).Export(context.Background(), Selection{All: true})
	require.NoError(t, err)
	assert.Len(t, res.Succeeded, 2)
	assert.Empty(t, res.Failed)
}

func TestExport_PartialFailure(t *testing.T) {
	s := newTestStore(t)
	sf := newFakeSF()
	sf.failFor = "b@example.com"
	a := seed(t, s, "https://x/in/a", "A One", "a@example.com")
	b := seed(t, s, "https://x/in/b", "B Two", "b@example.com")

	res, err := New(sf, s, Config{}).Export(context.Background(), Selection{ProfileIDs: []int64{a, b}})
	require.NoError(t, err)
	require.Len(t, res.Succeeded, 1)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, b, res.Failed[0].ProfileID)
	assert.Contains(t, res.Failed[0].Error, "DUPLICATES_DETECTED")
}

func TestExport_EmptySelection(t *testing.T) {
	_, err := New(newFakeSF(), newTestStore(t), Config{}).Export(context.Background(), Selection{})
	assert.True(t, model.IsValidation(err))
}

func TestExport_UnknownCampaign(t *testing.T) {
	_, err := New(newFakeSF(), newTestStore(t), Config{}).Export(context.Background(), Selection{CampaignID: 42})
	assert.True(t, model.IsValidation(err))
}

func TestSplitName(t *testing.T) {
	tests := []struct {
		full, last  string
		first, want string
	}{
		{"Ana Ruiz", "", "Ana", "Ruiz"},
		{"Ana María Ruiz", "", "Ana", "María Ruiz"},
		{"Ana María Ruiz", "María Ruiz", "Ana", "María Ruiz"},
		{"  Ana   Ruiz ", "", "Ana", "Ruiz"},
		{"Cher", "", "", "Cher"},
		{"", "Ruiz", "", "Ruiz"},
		{"", "", "", "Unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.full, func(t *testing.T) {
			first, last := splitName(tt.full, tt.last)
			assert.Equal(t, tt.first, first)
			assert.Equal(t, tt.want, last)
		})
	}
}
