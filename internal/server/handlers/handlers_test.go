package handlers

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ktedit/kbridge/pkg/jobregistry"
)

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	Health(time.Now().Add(-90 * time.Second))(rec, httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["uptime"])
}

func TestVersion(t *testing.T) {
	rec := httptest.NewRecorder()
	Version(BuildInfo{Version: "1.2.3", Commit: "abc1234", Date: "2026-08-01"})(
		rec, httptest.NewRequest("GET", "/version", nil))

	var body BuildInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "1.2.3", body.Version)
	assert.Equal(t, "abc1234", body.Commit)
}

func TestJobs(t *testing.T) {
	reg := jobregistry.NewRegistry()
	job, err := reg.Create("job1", "Main.kt")
	require.NoError(t, err)
	require.NoError(t, reg.Complete(job, "/out/Main.jar"))

	rec := httptest.NewRecorder()
	Jobs(reg)(rec, httptest.NewRequest("GET", "/jobs", nil))

	var body struct {
		Count int                     `json:"count"`
		Jobs  []jobregistry.JobRecord `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	require.Len(t, body.Jobs, 1)
	assert.Equal(t, "job1", body.Jobs[0].ID)
	assert.Equal(t, jobregistry.JobStateCompleted, body.Jobs[0].State)
}

func TestJobs_Empty(t *testing.T) {
	rec := httptest.NewRecorder()
	Jobs(jobregistry.NewRegistry())(rec, httptest.NewRequest("GET", "/jobs", nil))

	var body struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Zero(t, body.Count)
}
