//go:build !integration

package main

import (
	"bytes"
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/profile-sync/internal/model"
)

func newPatchCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "update"}
	cmd.Flags().String("name", "", "")
	cmd.Flags().String("description", "", "")
	cmd.Flags().String("status", "", "")
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestPatchFromFlags(t *testing.T) {
	patch, err := patchFromFlags(newPatchCmd(t, "--name", "CFOs", "--status", "paused"))
	require.NoError(t, err)
	require.NotNil(t, patch.Name)
	assert.Equal(t, "CFOs", *patch.Name)
	assert.Nil(t, patch.Description)
	require.NotNil(t, patch.Status)
	assert.Equal(t, model.CampaignStatusPaused, *patch.Status)
}

func TestPatchFromFlags_ClearsDescription(t *testing.T) {
	patch, err := patchFromFlags(newPatchCmd(t, "--description", ""))
	require.NoError(t, err)
	require.NotNil(t, patch.Description)
	assert.Empty(t, *patch.Description)
}

func TestPatchFromFlags_Errors(t *testing.T) {
	_, err := patchFromFlags(newPatchCmd(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to update")

	_, err = patchFromFlags(newPatchCmd(t, "--status", "done"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid status")
}

func TestParseID(t *testing.T) {
	id, err := parseID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, raw := range []string{"", "abc", "0", "-3"} {
		_, err := parseID(raw)
		assert.Error(t, err, raw)
	}
}

func TestFormatSearchesList(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	searches := []model.CampaignSummary{
		{Campaign: model.Campaign{ID: 3, Name: "Fintech CFOs", Status: model.CampaignStatusActive, CreatedAt: now}, ProfileCount: 48},
	}

	var buf bytes.Buffer
	formatSearchesList(&buf, searches)

	output := buf.String()
	assert.Contains(t, output, "PROFILES")
	assert.Contains(t, output, "Fintech CFOs")
	assert.Contains(t, output, "active")
	assert.Contains(t, output, "48")
	assert.Contains(t, output, "2025-06-15 10:30")
}

func TestFormatSearchStats(t *testing.T) {
	var buf bytes.Buffer
	formatSearchStats(&buf, &model.CampaignStats{
		Total:          4,
		Active:         2,
		UniqueProfiles: 130,
		Top:            []model.CampaignSummary{{Campaign: model.Campaign{Name: "Fintech CFOs"}, ProfileCount: 48}},
	})

	output := buf.String()
	assert.Contains(t, output, "Searches:")
	assert.Contains(t, output, "130")
	assert.Contains(t, output, "Top searches:")
	assert.Contains(t, output, "Fintech CFOs")
}

func TestSearchesDelete_KeepsProfiles(t *testing.T) {
	st := useTempStore(t)
	ctx := context.Background()

	c, err := st.CreateCampaign(ctx, model.NewCampaign{Name: "CFOs"})
	require.NoError(t, err)
	p := &model.Profile{NormalizedURL: "linkedin.com/in/ana", FullName: "Ana"}
	_, err = st.InsertProfile(ctx, p)
	require.NoError(t, err)
	_, err = st.LinkProfile(ctx, c.ID, p.ID)
	require.NoError(t, err)

	searchesDeleteCmd.SetContext(ctx)
	require.NoError(t, searchesDeleteCmd.RunE(searchesDeleteCmd, []string{strconv.FormatInt(c.ID, 10)}))

	got, err := st.GetCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	kept, err := st.GetProfile(ctx, p.ID)
	require.NoError(t, err)
	assert.NotNil(t, kept)

	err = searchesDeleteCmd.RunE(searchesDeleteCmd, []string{strconv.FormatInt(c.ID, 10)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
