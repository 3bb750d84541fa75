package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shashiranjanraj/storefront/pkg/store"
)

// FailedJobRecord is the document shape persisted for a failed job so an
// operator can inspect and replay it later.
type FailedJobRecord struct {
	ID       string    `json:"id"`
	JobType  string    `json:"jobType"`
	Payload  string    `json:"payload"`
	Error    string    `json:"error"`
	Attempts int       `json:"attempts"`
	FailedAt time.Time `json:"failedAt"`
}

// failedJobCol is the optional durable backend for failed jobs.
// Set via UseStore() — nil means in-memory only.
var failedJobCol store.Collection

// UseStore configures the queue to persist failed jobs to the document
// store. Call once at boot:
//
//	queue.UseStore(st.Collection("failed_jobs"))
func UseStore(col store.Collection) {
	failedJobCol = col
}

// persistFailed writes a failed job record to the store (if configured)
// and also appends to the in-memory slice as a fallback.
func (m *Manager) persistFailed(job Job, typeName string, lastErr error, attempts int) {
	// Always append to in-memory slice.
	m.mu.Lock()
	m.failed = append(m.failed, FailedJob{
		Job: job, Err: lastErr, FailedAt: time.Now(), Attempts: attempts,
	})
	m.mu.Unlock()

	if failedJobCol == nil {
		return
	}

	payload, err := json.Marshal(job)
	if err != nil {
		payload = []byte(fmt.Sprintf(`{"error": "could not marshal: %v"}`, err))
	}

	record := FailedJobRecord{
		ID:       uuid.NewString(),
		JobType:  typeName,
		Payload:  string(payload),
		Error:    lastErr.Error(),
		Attempts: attempts,
		FailedAt: time.Now(),
	}

	data, err := json.Marshal(record)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := failedJobCol.Insert(ctx, store.Doc{ID: record.ID, Data: data}); err != nil {
		// Non-fatal, the in-memory slice still has it.
		fmt.Printf("queue: failed to persist failed job %s: %v\n", typeName, err)
	}
}
