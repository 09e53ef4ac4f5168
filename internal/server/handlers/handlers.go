// Package handlers implements the admin HTTP endpoints. These are
// read-only observation surfaces; all mutation happens over the TCP
// bridge protocol.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ktedit/kbridge/pkg/jobregistry"
)

// BuildInfo carries the build metadata reported by /version.
type BuildInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// Health reports liveness plus uptime since startedAt.
func Health(startedAt time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"status": "ok",
			"uptime": time.Since(startedAt).Round(time.Second).String(),
		})
	}
}

// Version reports the binary's build metadata.
func Version(info BuildInfo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, info)
	}
}

// Jobs lists all job records, newest first.
func Jobs(reg *jobregistry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records := reg.List()
		writeJSON(w, map[string]any{
			"count": len(records),
			"jobs":  records,
		})
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
