package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/profile-sync/internal/crm"
	"github.com/sells-group/profile-sync/internal/model"
	"github.com/sells-group/profile-sync/internal/runner"
	"github.com/sells-group/profile-sync/internal/spreadsheet"
	"github.com/sells-group/profile-sync/internal/store"
)

const defaultPageSize = 100

// -- profiles --

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.ProfileStats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultPageSize)
	if err != nil {
		writeError(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}

	profiles, err := s.store.ListProfiles(r.Context(), store.ProfileFilter{
		Query:  strings.TrimSpace(r.URL.Query().Get("q")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if profiles == nil {
		profiles = []model.Profile{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"profiles": profiles, "count": len(profiles)})
}

func (s *Server) handleExportProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := s.store.ListProfiles(r.Context(), store.ProfileFilter{})
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="profiles.xlsx"`)
	if err := spreadsheet.WriteProfiles(w, profiles); err != nil {
		zap.L().Error("api: export profiles", zap.Error(err))
	}
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := s.store.GetProfile(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if p == nil {
		writeMessage(w, http.StatusNotFound, "profile not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	deleted, err := s.store.DeleteProfile(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !deleted {
		writeMessage(w, http.StatusNotFound, "profile not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// -- runs --

func (s *Server) handleRunScraper(w http.ResponseWriter, r *http.Request) {
	var req runner.ScrapeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	id, err := s.runs.StartScrape(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": id, "status": string(model.RunStatusRunning)})
}

func (s *Server) handleRunEmailSearch(w http.ResponseWriter, r *http.Request) {
	id, err := s.runs.StartEnrich(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": id, "status": string(model.RunStatusRunning)})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.runs.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if run == nil {
		writeMessage(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// -- searches --

func (s *Server) handleListSearches(w http.ResponseWriter, r *http.Request) {
	campaigns, err := s.store.ListCampaigns(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if campaigns == nil {
		campaigns = []model.CampaignSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"searches": campaigns, "count": len(campaigns)})
}

func (s *Server) handleCreateSearch(w http.ResponseWriter, r *http.Request) {
	var nc model.NewCampaign
	if err := decodeBody(r, &nc); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := s.store.CreateCampaign(r.Context(), nc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleSearchStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.CampaignStats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleGetSearch(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	c, err := s.store.GetCampaign(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if c == nil {
		writeMessage(w, http.StatusNotFound, "search not found")
		return
	}
	count, err := s.store.CountCampaignProfiles(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.CampaignSummary{Campaign: *c, ProfileCount: count})
}

func (s *Server) handleUpdateSearch(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var patch model.CampaignPatch
	if err := decodeBody(r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	if msg := checkPatch(patch); msg != "" {
		writeMessage(w, http.StatusBadRequest, msg)
		return
	}

	updated, err := s.store.UpdateCampaign(r.Context(), id, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !updated {
		writeMessage(w, http.StatusNotFound, "search not found")
		return
	}
	c, err := s.store.GetCampaign(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func checkPatch(p model.CampaignPatch) string {
	switch {
	case p.IsEmpty():
		return "no fields to update"
	case p.Name != nil && strings.TrimSpace(*p.Name) == "":
		return "name must not be empty"
	case p.Status != nil && !p.Status.Valid():
		return "status must be active, paused or archived"
	}
	return ""
}

func (s *Server) handleDeleteSearch(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	deleted, err := s.store.DeleteCampaign(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !deleted {
		writeMessage(w, http.StatusNotFound, "search not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSearchProfiles(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	c, err := s.store.GetCampaign(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if c == nil {
		writeMessage(w, http.StatusNotFound, "search not found")
		return
	}
	profiles, err := s.store.ListCampaignProfiles(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if profiles == nil {
		profiles = []model.CampaignProfile{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"search": c, "profiles": profiles, "count": len(profiles)})
}

// -- crm --

func (s *Server) handleSendToCRM(w http.ResponseWriter, r *http.Request) {
	if s.exporter == nil {
		writeMessage(w, http.StatusServiceUnavailable, "crm export is not configured")
		return
	}
	var sel crm.Selection
	if err := decodeBody(r, &sel); err != nil {
		writeError(w, r, err)
		return
	}
	// The HTTP surface exports explicit selections only.
	sel.All = false

	res, err := s.exporter.Export(r.Context(), sel)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
