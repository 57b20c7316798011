package services

import (
	"errors"
	"time"

	"github.com/Xine003/ResQWave-sub002/config"
	errcode "github.com/Xine003/ResQWave-sub002/internal/error/code"
	"github.com/Xine003/ResQWave-sub002/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// allocateAttempts bounds the retry loop for allocator races on insert
const allocateAttempts = 3

// ConflictError reports a rejected command: a duplicate trigger, a
// double-claim, or an out-of-order transition. The authoritative state is
// carried along so callers can answer with it instead of failing
// destructively.
type ConflictError struct {
	Code         int    // error code from internal/error/code
	Message      string
	DispatcherID string // winning dispatcher on a double-claim
}

func (e *ConflictError) Error() string {
	return e.Message
}

// AsConflict unwraps a ConflictError if err is one
func AsConflict(err error) (*ConflictError, bool) {
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return conflict, true
	}
	return nil, false
}

// TriggerResult is the outcome of an alert trigger
type TriggerResult struct {
	Alert   *models.Alert
	Created bool // false when an open alert already existed for the terminal
}

// InterfaceAlertService defines the alert lifecycle service interface
type InterfaceAlertService interface {
	Trigger(terminalID, alertType, sentThrough, initialStatus string) (*TriggerResult, error)
	Respond(alertID, dispatcherID, note string) (*models.Alert, *models.Respond, error)
	Complete(alertID string, personnelCount int, actionTaken string) (*models.Alert, *models.Result, error)
	Cancel(alertID, reason string) (*models.Alert, error)
	GetAlert(alertID string) (*models.Alert, error)
	GetOpenAlerts() ([]models.Alert, error)
	GetAlertsByTerminal(terminalID string) ([]models.Alert, error)
}

// AlertService owns the canonical alert lifecycle. Every transition is
// validated against the persisted state inside a transaction holding a row
// lock on the alert, never against a stale in-memory copy.
type AlertService struct {
	DB        *gorm.DB
	Config    *config.Config
	Allocator InterfaceAllocatorService
}

// NewAlertService creates a new alert lifecycle service
func NewAlertService(db *gorm.DB, cfg *config.Config, allocator InterfaceAllocatorService) InterfaceAlertService {
	return &AlertService{
		DB:        db,
		Config:    cfg,
		Allocator: allocator,
	}
}

// 1 Trigger creates a new alert in Waitlist for a terminal. The terminal row
// is locked for the duration of the transaction, so concurrent triggers for
// the same terminal serialize on it: the loser of the race sees the winner's
// open alert after the lock clears and returns it instead of creating a
// second one — duplicate-SOS storms from a flaky sensor link must not fan
// out twice.
func (s *AlertService) Trigger(terminalID, alertType, sentThrough, initialStatus string) (*TriggerResult, error) {
	status := models.AlertStatusWaitlist
	if initialStatus != "" {
		parsed, err := models.ParseAlertStatus(initialStatus)
		if err != nil {
			return nil, &ConflictError{Code: errcode.ErrAlertInvalidStatus, Message: err.Error()}
		}
		status = parsed
	}

	for attempt := 0; attempt < allocateAttempts; attempt++ {
		var result *TriggerResult
		err := s.DB.Transaction(func(tx *gorm.DB) error {
			var terminal models.Terminal
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("id = ?", terminalID).First(&terminal).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return &ConflictError{Code: errcode.ErrTerminalNotFound, Message: "terminal " + terminalID + " does not exist"}
				}
				return err
			}

			var existing models.Alert
			err := tx.Where("terminal_id = ? AND status IN ?", terminalID,
				[]models.AlertStatus{models.AlertStatusWaitlist, models.AlertStatusDispatched}).
				First(&existing).Error
			if err == nil {
				// Idempotent no-op: the open alert is the authoritative answer.
				config.Info("duplicate trigger for terminal %s, returning open alert %s", terminalID, existing.ID)
				result = &TriggerResult{Alert: &existing, Created: false}
				return nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}

			id, err := s.Allocator.Allocate(EntityAlert)
			if err != nil {
				return err
			}

			alert := models.Alert{
				BaseModel:   models.BaseModel{ID: id},
				TerminalID:  terminalID,
				AlertType:   alertType,
				SentThrough: sentThrough,
				Status:      status,
			}
			if err := tx.Create(&alert).Error; err != nil {
				return err
			}

			// A caller-assigned terminal status opens and closes the alert in
			// one step; the terminal display state is left alone, there is no
			// later transition to reset it.
			if !status.IsTerminalState() {
				if err := tx.Model(&models.Terminal{}).
					Where("id = ?", terminalID).
					Update("status", models.TerminalStatusAlerting).Error; err != nil {
					return err
				}
			}

			result = &TriggerResult{Alert: &alert, Created: true}
			return nil
		})
		if err != nil {
			if errors.Is(err, ErrAllocatorRetry) || IsDuplicateKeyError(err) {
				// Lost an id race: retry with a fresh id, never reuse the
				// failed one.
				config.Warning("alert trigger for terminal %s lost an allocation race, retrying", terminalID)
				continue
			}
			return nil, err
		}

		if result.Created {
			config.Info("alert %s created for terminal %s (type=%s, via=%s)", result.Alert.ID, terminalID, alertType, sentThrough)
		}
		return result, nil
	}

	return nil, ErrAllocatorRetry
}

// 2 Respond transitions Waitlist -> Dispatched and records which dispatcher
// claimed the alert. The at-most-one-claim invariant is enforced against the
// persisted row under lock; the loser of a race receives a conflict carrying
// the winning dispatcher.
func (s *AlertService) Respond(alertID, dispatcherID, note string) (*models.Alert, *models.Respond, error) {
	var alert models.Alert
	var respond models.Respond

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", alertID).First(&alert).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &ConflictError{Code: errcode.ErrAlertNotFound, Message: "alert " + alertID + " does not exist"}
			}
			return err
		}

		var existing models.Respond
		err := tx.Where("alert_id = ?", alertID).First(&existing).Error
		if err == nil {
			return &ConflictError{
				Code:         errcode.ErrAlertAlreadyClaimed,
				Message:      "alert " + alertID + " already claimed by " + existing.DispatcherID,
				DispatcherID: existing.DispatcherID,
			}
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if !alert.Status.CanTransition(models.AlertStatusDispatched) {
			return &ConflictError{
				Code:    errcode.ErrAlertInvalidTransition,
				Message: "alert " + alertID + " cannot move from " + string(alert.Status) + " to Dispatched",
			}
		}

		id, err := s.allocateRespondID()
		if err != nil {
			return err
		}

		respond = models.Respond{
			BaseModel:    models.BaseModel{ID: id},
			AlertID:      alertID,
			DispatcherID: dispatcherID,
			Note:         note,
		}
		if err := tx.Create(&respond).Error; err != nil {
			if IsDuplicateKeyError(err) {
				// Concurrent claim slipped past the read; resolve with the
				// authoritative record.
				var winner models.Respond
				if lookupErr := tx.Where("alert_id = ?", alertID).First(&winner).Error; lookupErr == nil {
					return &ConflictError{
						Code:         errcode.ErrAlertAlreadyClaimed,
						Message:      "alert " + alertID + " already claimed by " + winner.DispatcherID,
						DispatcherID: winner.DispatcherID,
					}
				}
			}
			return err
		}

		// Compare-and-set on the Waitlist status, not the in-memory copy.
		res := tx.Model(&models.Alert{}).
			Where("id = ? AND status = ?", alertID, models.AlertStatusWaitlist).
			Update("status", models.AlertStatusDispatched)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &ConflictError{
				Code:    errcode.ErrAlertInvalidTransition,
				Message: "alert " + alertID + " is no longer in Waitlist",
			}
		}

		alert.Status = models.AlertStatusDispatched
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	config.Info("alert %s dispatched by %s", alertID, dispatcherID)
	return &alert, &respond, nil
}

// 3 Complete transitions Dispatched -> Completed and records the outcome.
// Requires an existing Respond; Completed is never reachable straight from
// Waitlist.
func (s *AlertService) Complete(alertID string, personnelCount int, actionTaken string) (*models.Alert, *models.Result, error) {
	var alert models.Alert
	var result models.Result

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", alertID).First(&alert).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &ConflictError{Code: errcode.ErrAlertNotFound, Message: "alert " + alertID + " does not exist"}
			}
			return err
		}

		if !alert.Status.CanTransition(models.AlertStatusCompleted) {
			return &ConflictError{
				Code:    errcode.ErrAlertInvalidTransition,
				Message: "alert " + alertID + " cannot move from " + string(alert.Status) + " to Completed",
			}
		}

		var respond models.Respond
		if err := tx.Where("alert_id = ?", alertID).First(&respond).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &ConflictError{
					Code:    errcode.ErrAlertInvalidTransition,
					Message: "alert " + alertID + " has no responder on record",
				}
			}
			return err
		}

		id, err := s.allocateResultID()
		if err != nil {
			return err
		}

		result = models.Result{
			BaseModel:      models.BaseModel{ID: id},
			AlertID:        alertID,
			CompletedAt:    time.Now(),
			PersonnelCount: personnelCount,
			ActionTaken:    actionTaken,
		}
		if err := tx.Create(&result).Error; err != nil {
			return err
		}

		res := tx.Model(&models.Alert{}).
			Where("id = ? AND status = ?", alertID, models.AlertStatusDispatched).
			Update("status", models.AlertStatusCompleted)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &ConflictError{
				Code:    errcode.ErrAlertInvalidTransition,
				Message: "alert " + alertID + " is no longer in Dispatched",
			}
		}

		alert.Status = models.AlertStatusCompleted
		return tx.Model(&models.Terminal{}).
			Where("id = ?", alert.TerminalID).
			Update("status", models.TerminalStatusOnline).Error
	})
	if err != nil {
		return nil, nil, err
	}

	config.Info("alert %s completed (personnel=%d)", alertID, personnelCount)
	return &alert, &result, nil
}

// 4 Cancel moves an open alert to Cancelled. Allowed from Waitlist (the
// false-alarm branch, kept operator-visible in the log) and from Dispatched.
func (s *AlertService) Cancel(alertID, reason string) (*models.Alert, error) {
	var alert models.Alert

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", alertID).First(&alert).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &ConflictError{Code: errcode.ErrAlertNotFound, Message: "alert " + alertID + " does not exist"}
			}
			return err
		}

		if !alert.Status.CanTransition(models.AlertStatusCancelled) {
			return &ConflictError{
				Code:    errcode.ErrAlertInvalidTransition,
				Message: "alert " + alertID + " cannot move from " + string(alert.Status) + " to Cancelled",
			}
		}

		fromWaitlist := alert.Status == models.AlertStatusWaitlist

		res := tx.Model(&models.Alert{}).
			Where("id = ? AND status = ?", alertID, alert.Status).
			Update("status", models.AlertStatusCancelled)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &ConflictError{
				Code:    errcode.ErrAlertInvalidTransition,
				Message: "alert " + alertID + " changed state concurrently",
			}
		}

		if fromWaitlist {
			config.Warning("alert %s cancelled straight from Waitlist (false alarm): %s", alertID, reason)
		}

		alert.Status = models.AlertStatusCancelled
		return tx.Model(&models.Terminal{}).
			Where("id = ?", alert.TerminalID).
			Update("status", models.TerminalStatusOnline).Error
	})
	if err != nil {
		return nil, err
	}

	config.Info("alert %s cancelled: %s", alertID, reason)
	return &alert, nil
}

// 5 GetAlert loads a single alert with its respond and result
func (s *AlertService) GetAlert(alertID string) (*models.Alert, error) {
	var alert models.Alert
	err := s.DB.Preload("Respond").Preload("Result").
		Where("id = ?", alertID).First(&alert).Error
	if err != nil {
		return nil, err
	}
	return &alert, nil
}

// 6 GetOpenAlerts lists alerts still in a non-terminal state
func (s *AlertService) GetOpenAlerts() ([]models.Alert, error) {
	var alerts []models.Alert
	err := s.DB.Where("status IN ?",
		[]models.AlertStatus{models.AlertStatusWaitlist, models.AlertStatusDispatched}).
		Order("created_at ASC").
		Find(&alerts).Error
	return alerts, err
}

// 7 GetAlertsByTerminal lists the alert history of one terminal
func (s *AlertService) GetAlertsByTerminal(terminalID string) ([]models.Alert, error) {
	var alerts []models.Alert
	err := s.DB.Where("terminal_id = ?", terminalID).
		Order("created_at DESC").
		Find(&alerts).Error
	return alerts, err
}

// allocateRespondID allocates an id with the respond prefix
func (s *AlertService) allocateRespondID() (string, error) {
	return s.Allocator.Allocate(EntityRespond)
}

// allocateResultID allocates an id with the result prefix
func (s *AlertService) allocateResultID() (string, error) {
	return s.Allocator.Allocate(EntityResult)
}
