package api

import (
	"sync"
	"time"

	"github.com/ShifatiRabbi/ecommerce-project/internal/autosave"
)

// SaveRecord represents one auto-save request
type SaveRecord struct {
	ID          string     `json:"id"`
	FormID      string     `json:"form_id"`
	Status      string     `json:"status"` // saving, saved, rejected, failed, cancelled
	Fields      int        `json:"fields"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// SaveBuffer is a thread-safe ring buffer for save records. It observes
// every controller in the registry.
type SaveBuffer struct {
	mu      sync.RWMutex
	entries []SaveRecord
	cap     int
}

// NewSaveBuffer creates a new save buffer with the given capacity
func NewSaveBuffer(capacity int) *SaveBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &SaveBuffer{
		entries: make([]SaveRecord, 0, capacity),
		cap:     capacity,
	}
}

// Add adds a save record to the buffer
func (sb *SaveBuffer) Add(rec SaveRecord) {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	if len(sb.entries) >= sb.cap {
		copy(sb.entries, sb.entries[1:])
		sb.entries[len(sb.entries)-1] = rec
	} else {
		sb.entries = append(sb.entries, rec)
	}
}

// Entries returns all save records (newest first)
func (sb *SaveBuffer) Entries() []SaveRecord {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	result := make([]SaveRecord, len(sb.entries))
	for i, j := 0, len(sb.entries)-1; j >= 0; i, j = i+1, j-1 {
		result[i] = sb.entries[j]
	}
	return result
}

// UpdateStatus updates the status of a save by ID
func (sb *SaveBuffer) UpdateStatus(id, status, errMsg string, at time.Time) bool {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	for i := len(sb.entries) - 1; i >= 0; i-- {
		if sb.entries[i].ID != id {
			continue
		}
		sb.entries[i].Status = status
		if errMsg != "" {
			sb.entries[i].Error = errMsg
		}
		if status != string(autosave.ResultSaving) {
			completed := at
			sb.entries[i].CompletedAt = &completed
		}
		return true
	}
	return false
}

// SaveStarted implements autosave.Observer
func (sb *SaveBuffer) SaveStarted(ev autosave.SaveEvent) {
	sb.Add(SaveRecord{
		ID:        ev.ID,
		FormID:    ev.FormID,
		Status:    string(autosave.ResultSaving),
		Fields:    ev.Fields,
		CreatedAt: ev.StartedAt,
	})
}

// SaveFinished implements autosave.Observer
func (sb *SaveBuffer) SaveFinished(ev autosave.SaveEvent) {
	sb.UpdateStatus(ev.ID, string(ev.Result), ev.Error, ev.FinishedAt)
}
