package tasks

import (
	"encoding/json"
	"fmt"
	"time"

	"pixelhost/internal/models"
)

const (
	TypePurge     = "purge"
	TypeReconcile = "reconcile"
)

// Payload is the flat field set carried by a stream entry.
type Payload struct {
	Type        string `json:"type"`
	JobID       string `json:"jobId"`
	AccountID   string `json:"accountId"`
	Reason      string `json:"reason"`
	RequestedBy string `json:"requestedBy"`
	RequestedAt string `json:"requestedAt"`
}

func PurgeValues(task models.PurgeTask) map[string]any {
	return map[string]any{
		"type":        TypePurge,
		"jobId":       task.JobID,
		"accountId":   task.AccountID,
		"reason":      string(task.Reason),
		"requestedBy": task.RequestedBy,
		"requestedAt": task.RequestedAt.UTC().Format(time.RFC3339Nano),
	}
}

func ReconcileValues() map[string]any {
	return map[string]any{
		"type": TypeReconcile,
	}
}

func decodePayload(values map[string]interface{}, out *Payload) error {
	bytes, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, out)
}

// PurgeTask rebuilds the task a purge entry was created from.
func (p Payload) PurgeTask() (models.PurgeTask, error) {
	if p.AccountID == "" {
		return models.PurgeTask{}, fmt.Errorf("purge %s: missing account id", p.JobID)
	}
	reason := models.DeletionReason(p.Reason)
	if !reason.Valid() {
		return models.PurgeTask{}, fmt.Errorf("purge %s: invalid reason %q", p.JobID, p.Reason)
	}

	task := models.PurgeTask{
		JobID:       p.JobID,
		AccountID:   p.AccountID,
		Reason:      reason,
		RequestedBy: p.RequestedBy,
	}
	if p.RequestedAt != "" {
		at, err := time.Parse(time.RFC3339Nano, p.RequestedAt)
		if err != nil {
			return models.PurgeTask{}, fmt.Errorf("purge %s: requested at: %w", p.JobID, err)
		}
		task.RequestedAt = at
	}
	return task, nil
}
