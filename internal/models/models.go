package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

type BaseModel struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// FieldMapping is one operator-recorded selector for a marketplace form field.
// Re-mapping a field overwrites the row; rows never expire.
type FieldMapping struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	Field     string    `json:"field" gorm:"uniqueIndex;size:50;not null"`
	Selector  string    `json:"selector" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PostingAttempt is the history row written after every form-fill run.
type PostingAttempt struct {
	BaseModel
	AttemptID   string    `json:"attempt_id" gorm:"uniqueIndex;size:36;not null"`
	Source      string    `json:"source" gorm:"size:20;not null"` // http, nats, sqs, cli
	VIN         string    `json:"vin" gorm:"size:32;index"`
	Year        int       `json:"year"`
	Make        string    `json:"make" gorm:"size:100"`
	Model       string    `json:"model" gorm:"size:100"`
	Success     bool      `json:"success"`
	Message     string    `json:"message" gorm:"size:500"`
	Error       string    `json:"error" gorm:"type:text"`
	DurationMs  int64     `json:"duration_ms"`
	FieldLog    string    `json:"field_log" gorm:"type:text"` // JSON array of FieldOutcome
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// FieldOutcome is the per-filler outcome stored inside PostingAttempt.FieldLog.
type FieldOutcome struct {
	Field      string `json:"field"`
	Success    bool   `json:"success"`
	Message    string `json:"message,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

func (a *PostingAttempt) SetFieldLog(outcomes []FieldOutcome) {
	if len(outcomes) == 0 {
		a.FieldLog = "[]"
		return
	}
	data, err := json.Marshal(outcomes)
	if err != nil {
		a.FieldLog = "[]"
		return
	}
	a.FieldLog = string(data)
}

func (a *PostingAttempt) GetFieldLog() ([]FieldOutcome, error) {
	var outcomes []FieldOutcome
	if a.FieldLog == "" {
		return outcomes, nil
	}
	if err := json.Unmarshal([]byte(a.FieldLog), &outcomes); err != nil {
		return nil, err
	}
	return outcomes, nil
}
