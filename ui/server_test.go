package ui

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supptrace/app"
	"supptrace/domain/core"
	"supptrace/domain/entry"
	"supptrace/domain/intake"
	"supptrace/internal"
	"supptrace/internal/community"
	"supptrace/internal/testkit"
)

type serverFixture struct {
	server *Server
	kit    *testkit.TestKit
	userID core.UserID
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	kit := testkit.NewTestKit()
	logger := internal.DefaultLogger
	enricher := community.NewEnricher(kit.Reports, kit.Analysis.CommunityMinPopulation, logger)
	reports := app.NewReportService(
		kit.Analysis, kit.Entries, kit.Periods, kit.Supplements, kit.Reports,
		enricher, kit.Bus, logger,
	)
	periods := app.NewPeriodService(kit.Periods, kit.Supplements, kit.Bus, logger)

	return &serverFixture{
		server: NewServer(reports, periods, kit.Supplements, logger),
		kit:    kit,
		userID: core.UserID(core.NewID()),
	}
}

func (f *serverFixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, req)
	return w
}

func (f *serverFixture) seedTestedSupplement(t *testing.T) *intake.UserSupplement {
	t.Helper()
	sup := f.kit.SeedSupplement(f.userID, "Magnesium", "magnesium", entry.MetricSleepQuality)
	today := core.DateOf(core.Now().Time())

	for i := 0; i < 60; i++ {
		day := today.AddDays(-(59 - i))
		value := 5.0
		if i >= 30 {
			value = 6.5
		}
		if i%2 == 1 {
			value += 0.2
		}
		e := entry.DailyEntry{
			UserID:           f.userID,
			LocalDate:        day,
			SleepQuality:     &value,
			SupplementIntake: map[core.UserSupplementID]entry.IntakeStatus{},
			CreatedAt:        core.NewTimestamp(day.Time().Add(20 * time.Hour)),
		}
		if i >= 30 {
			e.SupplementIntake[sup.ID] = entry.IntakeTaken
		}
		f.kit.Entries.Upsert(e)
	}

	period := intake.Period{
		ID:           core.PeriodID(core.NewID()),
		SupplementID: sup.ID,
		Start:        today.AddDays(-29),
		CreatedAt:    core.Now(),
	}
	require.NoError(t, f.kit.Periods.SavePeriod(context.Background(), &period))
	return sup
}

// TestReportEndpoint verifies the happy path and the force semantics
func TestReportEndpoint(t *testing.T) {
	f := newServerFixture(t)
	sup := f.seedTestedSupplement(t)

	path := fmt.Sprintf("/api/users/%s/supplements/%s/report", f.userID, sup.ID)
	w := f.do(t, http.MethodGet, path+"?force=true", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Report struct {
			Status         string  `json:"status"`
			EffectSize     float64 `json:"effect_size"`
			AnalysisSource string  `json:"analysis_source"`
		} `json:"report"`
		Revealed bool `json:"revealed"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "significant_positive", resp.Report.Status)
	assert.Equal(t, "explicit_test", resp.Report.AnalysisSource)
	assert.True(t, resp.Revealed, "explicit tests reveal immediately")
}

// TestReportEndpointErrors verifies validation and missing-resource mapping
func TestReportEndpointErrors(t *testing.T) {
	f := newServerFixture(t)

	w := f.do(t, http.MethodGet, "/api/users/not-a-uuid/supplements/"+core.NewID().String()+"/report", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	path := fmt.Sprintf("/api/users/%s/supplements/%s/report", core.NewID(), core.NewID())
	w = f.do(t, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestPeriodEndpoints verifies create, overlap rejection and close
func TestPeriodEndpoints(t *testing.T) {
	f := newServerFixture(t)
	sup := f.kit.SeedSupplement(f.userID, "Zinc", "zinc", entry.MetricMood)
	base := "/api/supplements/" + sup.ID.String() + "/periods"

	w := f.do(t, http.MethodPost, base, map[string]interface{}{"start_date": "2026-06-01"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		PeriodID string `json:"period_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotEmpty(t, created.PeriodID)

	// Overlapping interval is rejected
	w = f.do(t, http.MethodPost, base, map[string]interface{}{"start_date": "2026-06-10", "end_date": "2026-06-12"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Malformed date is rejected
	w = f.do(t, http.MethodPost, base, map[string]interface{}{"start_date": "06/01/2026"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Close the open period
	w = f.do(t, http.MethodPut, "/api/periods/"+created.PeriodID+"/close", map[string]interface{}{"end_date": "2026-06-20"})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Closing twice fails validation
	w = f.do(t, http.MethodPut, "/api/periods/"+created.PeriodID+"/close", map[string]interface{}{"end_date": "2026-06-21"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestPatternsEndpoint verifies bucket grouping and mechanism rendering
func TestPatternsEndpoint(t *testing.T) {
	f := newServerFixture(t)
	sup := f.seedTestedSupplement(t)

	// Attach a markdown mechanism note
	stored, err := f.kit.Supplements.GetSupplement(context.Background(), sup.ID)
	require.NoError(t, err)
	stored.MechanismNote = "Supports **GABA** activity"
	require.NoError(t, f.kit.Supplements.SaveSupplement(context.Background(), stored))

	w := f.do(t, http.MethodGet, "/api/users/"+f.userID.String()+"/patterns", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp map[string][]struct {
		SupplementName string `json:"supplement_name"`
		MechanismHTML  string `json:"mechanism_html"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	require.Len(t, resp["working"], 1)
	assert.Equal(t, "Magnesium", resp["working"][0].SupplementName)
	assert.Contains(t, resp["working"][0].MechanismHTML, "<strong>GABA</strong>")
	assert.Empty(t, resp["hurting"])
}

// TestExportEndpoint verifies the spreadsheet download
func TestExportEndpoint(t *testing.T) {
	f := newServerFixture(t)
	sup := f.seedTestedSupplement(t)

	// Persist a report first
	path := fmt.Sprintf("/api/users/%s/supplements/%s/report?force=true", f.userID, sup.ID)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, path, nil).Code)

	w := f.do(t, http.MethodGet, "/api/users/"+f.userID.String()+"/reports/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "spreadsheetml")
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".xlsx")
	assert.NotZero(t, w.Body.Len())
}
