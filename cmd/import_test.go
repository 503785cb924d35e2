//go:build !integration

package main

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/profile-sync/internal/model"
	"github.com/sells-group/profile-sync/internal/spreadsheet"
	"github.com/sells-group/profile-sync/internal/store"
)

func TestImportCmd_Metadata(t *testing.T) {
	assert.Equal(t, "import", importCmd.Use)
	assert.NotEmpty(t, importCmd.Short)
	require.NotNil(t, importCmd.Flags().Lookup("xlsx"))
	require.NotNil(t, importCmd.Flags().Lookup("csv"))
	require.NotNil(t, importCmd.Flags().Lookup("campaign-id"))
}

func setFlags(t *testing.T, cmd *cobra.Command, flags map[string]string) {
	t.Helper()
	for name, value := range flags {
		f := cmd.Flags().Lookup(name)
		require.NotNil(t, f, name)
		prev := f.Value.String()
		require.NoError(t, cmd.Flags().Set(name, value))
		t.Cleanup(func() {
			_ = f.Value.Set(prev)
			f.Changed = false
		})
	}
}

func TestImportCmd_MergesAndLinks(t *testing.T) {
	st := useTempStore(t)
	ctx := context.Background()

	existing := &model.Profile{NormalizedURL: "https://www.linkedin.com/in/ana", FullName: "Ana Silva"}
	_, err := st.InsertProfile(ctx, existing)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "leads.xlsx")
	require.NoError(t, spreadsheet.SaveProfiles(path, []model.Profile{
		{RawURL: "https://www.linkedin.com/in/ana?trk=search", FullName: "Ana Silva"},
		{RawURL: "https://www.linkedin.com/in/ben?trk=x", FullName: "Ben Okafor", Email: "ben@example.com"},
	}))

	setFlags(t, importCmd, map[string]string{"xlsx": path, "name": "Imported"})
	importCmd.SetContext(ctx)
	require.NoError(t, importCmd.RunE(importCmd, nil))

	profiles, err := st.ListProfiles(ctx, store.ProfileFilter{})
	require.NoError(t, err)
	assert.Len(t, profiles, 2)

	searches, err := st.ListCampaigns(ctx)
	require.NoError(t, err)
	require.Len(t, searches, 1)
	assert.Equal(t, "Imported", searches[0].Name)
	assert.Equal(t, 2, searches[0].ProfileCount)
}

func TestImportCmd_ExclusiveFlags(t *testing.T) {
	useTempStore(t)
	setFlags(t, importCmd, map[string]string{"xlsx": "x.xlsx", "name": "A", "campaign-id": "3"})

	err := importCmd.RunE(importCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")
}

func TestImportCmd_BadPath(t *testing.T) {
	useTempStore(t)
	setFlags(t, importCmd, map[string]string{"xlsx": filepath.Join(t.TempDir(), "missing.xlsx")})
	importCmd.SetContext(context.Background())

	err := importCmd.RunE(importCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "import xlsx")
}

func TestImportCmd_CSVIntoExistingSearch(t *testing.T) {
	st := useTempStore(t)
	ctx := context.Background()

	c, err := st.CreateCampaign(ctx, model.NewCampaign{Name: "CFOs"})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "leads.csv")
	require.NoError(t, os.WriteFile(path, []byte(
		"linkedinUrl;fullName\nhttps://www.linkedin.com/in/cleo;Cleo\nhttps://www.linkedin.com/in/cleo?x=1;Cleo\n"), 0o644))

	setFlags(t, importCmd, map[string]string{
		"csv":         path,
		"delimiter":   ";",
		"campaign-id": strconv.FormatInt(c.ID, 10),
	})
	importCmd.SetContext(ctx)
	require.NoError(t, importCmd.RunE(importCmd, nil))

	profiles, err := st.ListCampaignProfiles(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "Cleo", profiles[0].FullName)
}

func TestImportCmd_NeedsOneFile(t *testing.T) {
	useTempStore(t)

	err := importCmd.RunE(importCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "set --xlsx or --csv")

	setFlags(t, importCmd, map[string]string{"xlsx": "a.xlsx", "csv": "a.csv"})
	err = importCmd.RunE(importCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")
}
