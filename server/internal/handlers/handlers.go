// Package handlers implements the HTTP API: device submissions, merged
// exports and a health probe.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/tokgraph/tokgraph/internal/aggregator"
	"github.com/tokgraph/tokgraph/internal/merge"
	"github.com/tokgraph/tokgraph/internal/model"
	"github.com/tokgraph/tokgraph/server/internal/database"
	"github.com/tokgraph/tokgraph/server/internal/middleware"
)

const maxSubmissionBytes = 16 << 20

// Handlers holds the API handler state.
type Handlers struct {
	db *database.DB

	mu        sync.Mutex
	userLocks map[string]*sync.Mutex
}

// New creates the handler set.
func New(db *database.DB) *Handlers {
	return &Handlers{db: db, userLocks: make(map[string]*sync.Mutex)}
}

// userLock returns the per-user merge lock, creating it on first use.
func (h *Handlers) userLock(userID string) *sync.Mutex {
	h.mu.Lock()
	defer h.mu.Unlock()
	lock := h.userLocks[userID]
	if lock == nil {
		lock = &sync.Mutex{}
		h.userLocks[userID] = lock
	}
	return lock
}

type submitResponse struct {
	Success    bool   `json:"success"`
	DaysMerged int    `json:"daysMerged,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Submit merges a device submission into the user's aggregate. Merges for
// the same user are serialized; a concurrent attempt gets 409 rather than
// waiting, since the device will retry on its next cycle anyway.
func (h *Handlers) Submit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	user := middleware.UserFrom(r.Context())

	var sub model.Submission
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSubmissionBytes)).Decode(&sub); err != nil {
		writeJSON(w, http.StatusBadRequest, submitResponse{Error: "invalid submission body"})
		return
	}

	lock := h.userLock(user.ID)
	if !lock.TryLock() {
		writeJSON(w, http.StatusConflict, submitResponse{Error: merge.ErrConcurrentMerge.Error()})
		return
	}
	defer lock.Unlock()

	prior, err := h.db.LoadAggregate(user.ID)
	if err != nil {
		log.WithError(err).WithField("user", user.ID).Error("load aggregate failed")
		writeJSON(w, http.StatusInternalServerError, submitResponse{Error: "internal error"})
		return
	}

	next, err := merge.Apply(prior, sub)
	if err != nil {
		var consistency *merge.ConsistencyError
		if errors.As(err, &consistency) {
			writeJSON(w, http.StatusUnprocessableEntity, submitResponse{Error: consistency.Error()})
			return
		}
		log.WithError(err).WithField("user", user.ID).Error("merge failed")
		writeJSON(w, http.StatusInternalServerError, submitResponse{Error: "internal error"})
		return
	}

	if err := h.db.SaveAggregate(user.ID, next); err != nil {
		log.WithError(err).WithField("user", user.ID).Error("save aggregate failed")
		writeJSON(w, http.StatusInternalServerError, submitResponse{Error: "internal error"})
		return
	}

	// submitted days can disappear entirely when every source on them
	// was an omission delete; report only the days that remain merged
	daysMerged := 0
	for date := range sub.Days {
		if _, ok := next[date]; ok {
			daysMerged++
		}
	}

	log.WithFields(log.Fields{
		"user":   user.ID,
		"device": sub.DeviceID,
		"days":   daysMerged,
	}).Info("submission merged")
	writeJSON(w, http.StatusOK, submitResponse{Success: true, DaysMerged: daysMerged})
}

// Export rebuilds the full export document from the user's merged state.
func (h *Handlers) Export(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	user := middleware.UserFrom(r.Context())

	agg, err := h.db.LoadAggregate(user.ID)
	if err != nil {
		log.WithError(err).WithField("user", user.ID).Error("load aggregate failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	export := aggregator.ExportFromContributions(aggregator.FromDaySources(agg))
	writeJSON(w, http.StatusOK, export)
}

// Health is a liveness probe.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Error("write response failed")
	}
}
