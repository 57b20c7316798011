package models

import (
	"fmt"
	"strings"
	"time"
)

// AlertStatus represents the lifecycle state of an alert. The set is closed;
// free-text statuses from the wire are normalized through ParseAlertStatus.
type AlertStatus string

const (
	AlertStatusWaitlist   AlertStatus = "Waitlist"
	AlertStatusDispatched AlertStatus = "Dispatched"
	AlertStatusCompleted  AlertStatus = "Completed"
	AlertStatusCancelled  AlertStatus = "Cancelled"
)

// Origin channels for an alert trigger
const (
	SentThroughSensor = "Sensor"
	SentThroughManual = "Manual"
)

// ParseAlertStatus normalizes a status string case-insensitively into the
// canonical representation. Returns an error for values outside the state set.
func ParseAlertStatus(s string) (AlertStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "waitlist":
		return AlertStatusWaitlist, nil
	case "dispatched":
		return AlertStatusDispatched, nil
	case "completed":
		return AlertStatusCompleted, nil
	case "cancelled", "canceled":
		return AlertStatusCancelled, nil
	default:
		return "", fmt.Errorf("unknown alert status %q", s)
	}
}

// IsTerminalState reports whether the status ends the alert lifecycle
func (s AlertStatus) IsTerminalState() bool {
	return s == AlertStatusCompleted || s == AlertStatusCancelled
}

// CanTransition reports whether a transition between two statuses is allowed.
// Completed is only reachable through Dispatched; Cancelled is reachable from
// either non-terminal state (the Waitlist branch is the false-alarm path).
func (s AlertStatus) CanTransition(to AlertStatus) bool {
	switch s {
	case AlertStatusWaitlist:
		return to == AlertStatusDispatched || to == AlertStatusCancelled
	case AlertStatusDispatched:
		return to == AlertStatusCompleted || to == AlertStatusCancelled
	default:
		return false
	}
}

// Alert represents one emergency event raised by a terminal
type Alert struct {
	BaseModel
	TerminalID  string      `gorm:"type:varchar(10);not null;index" json:"terminal_id"`
	AlertType   string      `gorm:"type:varchar(50);not null" json:"alert_type"` // e.g. "User-Initiated", "Critical"
	SentThrough string      `gorm:"type:varchar(20)" json:"sent_through"`        // "Sensor" or "Manual"
	Status      AlertStatus `gorm:"type:varchar(20);not null;index" json:"status"`

	// Relations
	Terminal *Terminal `gorm:"foreignKey:TerminalID" json:"terminal,omitempty"`
	Respond  *Respond  `gorm:"foreignKey:AlertID" json:"respond,omitempty"`
	Result   *Result   `gorm:"foreignKey:AlertID" json:"result,omitempty"`
}

// Respond records which dispatcher first acknowledged an alert. At most one
// per alert, enforced by the unique index on AlertID.
type Respond struct {
	BaseModel
	AlertID      string `gorm:"type:varchar(10);unique;not null" json:"alert_id"`
	DispatcherID string `gorm:"type:varchar(10);not null" json:"dispatcher_id"`
	Note         string `gorm:"type:varchar(255)" json:"note"`
}

// Result records the outcome of a completed alert
type Result struct {
	BaseModel
	AlertID        string    `gorm:"type:varchar(10);unique;not null" json:"alert_id"`
	CompletedAt    time.Time `json:"completed_at"`
	PersonnelCount int       `json:"personnel_count"`
	ActionTaken    string    `gorm:"type:varchar(500)" json:"action_taken"`
}
