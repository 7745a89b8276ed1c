package server

import (
	"encoding/json"
	"net/http"
	"time"

	"chartlink/internal/snapshot"
)

// Status is the /statusz response document.
type Status struct {
	State         string `json:"state"`
	LastError     string `json:"last_error,omitempty"`
	HasFrame      bool   `json:"has_frame"`
	FrameBytes    int    `json:"frame_bytes"`
	FrameAgeMS    int64  `json:"frame_age_ms,omitempty"`
	FrameAge      string `json:"frame_age,omitempty"`
	DebugLogLines int    `json:"debug_log_lines"`
}

// HealthHandler serves /healthz: the process is up.
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// ReadyHandler serves /readyz: ready while a stream is connected.
func ReadyHandler(store *snapshot.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := store.State()
		status := http.StatusServiceUnavailable
		if state == snapshot.StateConnected {
			status = http.StatusOK
		}
		writeJSON(w, status, map[string]string{"state": state.String()})
	}
}

// StatusHandler serves /statusz: a JSON view of the snapshot store.
func StatusHandler(store *snapshot.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		frame := store.Frame()
		status := Status{
			State:      store.State().String(),
			LastError:  store.LastError(),
			HasFrame:   frame != "",
			FrameBytes: len(frame),
		}
		if at := store.FrameAt(); !at.IsZero() {
			age := time.Since(at)
			status.FrameAgeMS = age.Milliseconds()
			status.FrameAge = age.Truncate(time.Millisecond).String()
		}
		if log := store.DebugLog(); log != "" {
			status.DebugLogLines = 1
			for _, ch := range log {
				if ch == '\n' {
					status.DebugLogLines++
				}
			}
		}
		writeJSON(w, http.StatusOK, status)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
