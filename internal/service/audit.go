package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"admincore/internal/models"
	"admincore/internal/store"
)

// Recorder assigns ids and timestamps to audit entries and appends them.
// When called with a ctx produced by TxManager.RunInTx the append joins
// the surrounding transaction, so a mutation and its audit entry commit
// or roll back together.
type Recorder struct {
	audit store.AuditStore
}

func NewRecorder(audit store.AuditStore) *Recorder {
	return &Recorder{audit: audit}
}

func (r *Recorder) Record(ctx context.Context, action models.AuditAction, actorID string, targetID *string, details map[string]any) (*models.AuditLog, error) {
	payload, err := models.MarshalJSONB(details)
	if err != nil {
		return nil, err
	}
	entry := &models.AuditLog{
		ID:        uuid.New().String(),
		Action:    action,
		ActorID:   actorID,
		TargetID:  targetID,
		Details:   payload,
		CreatedAt: time.Now(),
	}
	if err := r.audit.Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("audit append: %w", err)
	}
	return entry, nil
}
