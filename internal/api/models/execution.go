package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"clipflow/internal/engine"
)

type Execution struct {
	ID              string                 `gorm:"primaryKey;type:uuid"`
	WorkflowID      string                 `gorm:"not null;index"`
	UserID          string                 `gorm:"not null;index"`
	UserEmail       string
	Status          engine.ExecutionStatus `gorm:"not null;type:varchar(20);index"`
	InputData       JSONMap                `gorm:"type:jsonb"`
	TargetNodeIDs   StringList             `gorm:"type:jsonb"`
	NodeStates      NodeStates             `gorm:"type:jsonb"`
	OutputData      JSONMap                `gorm:"type:jsonb"`
	CreditsUsed     int64                  `gorm:"not null;default:0"`
	ErrorMessage    string                 `gorm:"type:text"`
	ExecutionTimeMs int64
	CreatedAt       time.Time `gorm:"index"`
	StartedAt       *time.Time
	CompletedAt     *time.Time
}

type NodeStates map[string]engine.NodeState

func (s NodeStates) Value() (driver.Value, error) {
	if s == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(s)
}

func (s *NodeStates) Scan(value interface{}) error {
	return scanJSON(value, s, "NodeStates")
}

func ExecutionFromRecord(rec engine.Record) Execution {
	return Execution{
		ID:              rec.ID,
		WorkflowID:      rec.WorkflowID,
		UserID:          rec.UserID,
		UserEmail:       rec.UserEmail,
		Status:          rec.Status,
		InputData:       rec.InputSnapshot,
		TargetNodeIDs:   rec.TargetNodeIDs,
		NodeStates:      rec.NodeStates,
		OutputData:      rec.OutputData,
		CreditsUsed:     rec.CreditsUsed,
		ErrorMessage:    rec.ErrorMessage,
		ExecutionTimeMs: rec.ExecutionTime().Milliseconds(),
		CreatedAt:       rec.CreatedAt,
		StartedAt:       rec.StartedAt,
		CompletedAt:     rec.CompletedAt,
	}
}

func (e Execution) Record() engine.Record {
	return engine.Record{
		ID:            e.ID,
		WorkflowID:    e.WorkflowID,
		UserID:        e.UserID,
		UserEmail:     e.UserEmail,
		Status:        e.Status,
		InputSnapshot: e.InputData,
		TargetNodeIDs: e.TargetNodeIDs,
		NodeStates:    e.NodeStates,
		OutputData:    e.OutputData,
		CreditsUsed:   e.CreditsUsed,
		CreatedAt:     e.CreatedAt,
		StartedAt:     e.StartedAt,
		CompletedAt:   e.CompletedAt,
		ErrorMessage:  e.ErrorMessage,
	}
}
