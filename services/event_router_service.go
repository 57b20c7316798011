package services

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/Xine003/ResQWave-sub002/config"
	"github.com/Xine003/ResQWave-sub002/models"

	"gorm.io/gorm"
)

// Inbound event names
const (
	EventTerminalJoin  = "terminal:join"
	EventAlertTrigger  = "alert:trigger"
	EventAlertRespond  = "alert:respond"
	EventAlertComplete = "alert:complete"
	EventAlertCancel   = "alert:cancel"
)

// Outbound event names
const (
	EventAlertNew        = "alert:new"
	EventAlertDispatched = "alert:dispatched"
	EventAlertCompleted  = "alert:completed"
	EventAlertCancelled  = "alert:cancelled"
	EventTerminalOnline  = "terminal:online"
	EventTerminalOffline = "terminal:offline"
)

// InboundMessage is the wire shape of a real-time event
type InboundMessage struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Ack is the structured acknowledgment returned for every inbound event.
// Callers never have to infer success from side effects.
type Ack struct {
	Event   string      `json:"event"`
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Trigger payload
type TriggerPayload struct {
	TerminalID  string `json:"terminalId"`
	AlertType   string `json:"alertType"`
	SentThrough string `json:"sentThrough"`
	Status      string `json:"status,omitempty"`
}

// Respond payload
type RespondPayload struct {
	AlertID      string `json:"alertId"`
	DispatcherID string `json:"dispatcherId"`
	Note         string `json:"note,omitempty"`
}

// Complete payload
type CompletePayload struct {
	AlertID        string `json:"alertId"`
	PersonnelCount int    `json:"personnelCount"`
	ActionTaken    string `json:"actionTaken"`
}

// Cancel payload
type CancelPayload struct {
	AlertID string `json:"alertId"`
	Reason  string `json:"reason,omitempty"`
}

// InterfaceEventRouterService defines the event router interface
type InterfaceEventRouterService interface {
	Connect(session *models.Session)
	Disconnect(session *models.Session)
	HandleMessage(session *models.Session, raw []byte) *Ack
	TriggerFromUplink(devEUI, alertType string) (*Ack, error)
	Registry() *models.SessionRegistry
}

// EventRouterService is the single entry point translating inbound real-time
// events into calls on the allocator, state machine, session registry and
// downlink dispatcher, and fanning results back out as broadcasts. Every
// event is an independent unit of work; a failure is scoped to that event.
type EventRouterService struct {
	Config    *config.Config
	registry  *models.SessionRegistry
	alerts    InterfaceAlertService
	terminals InterfaceTerminalService
	downlink  InterfaceDownlinkService
	redis     InterfaceRedisService
}

// NewEventRouterService creates the event router and wires the registry's
// presence side effect to terminal status persistence
func NewEventRouterService(
	cfg *config.Config,
	registry *models.SessionRegistry,
	alerts InterfaceAlertService,
	terminals InterfaceTerminalService,
	downlink InterfaceDownlinkService,
	redis InterfaceRedisService,
) InterfaceEventRouterService {
	router := &EventRouterService{
		Config:    cfg,
		registry:  registry,
		alerts:    alerts,
		terminals: terminals,
		downlink:  downlink,
		redis:     redis,
	}
	registry.SetPresenceFunc(router.onPresenceChange)
	return router
}

// Registry exposes the session registry
func (r *EventRouterService) Registry() *models.SessionRegistry {
	return r.registry
}

// Connect registers a session in the registry
func (r *EventRouterService) Connect(session *models.Session) {
	r.registry.Join(session)
	config.Info("session connected: id=%s role=%s identity=%s", session.SessionID, session.Role, session.Identity)
}

// Disconnect removes a session. Invoked synchronously with the disconnect
// notification for every cause; open alerts are left untouched.
func (r *EventRouterService) Disconnect(session *models.Session) {
	r.registry.Leave(session)
	config.Info("session disconnected: id=%s role=%s identity=%s", session.SessionID, session.Role, session.Identity)
}

// onPresenceChange persists the terminal online/offline side effect reported
// by the registry and tells the dispatcher group
func (r *EventRouterService) onPresenceChange(terminalID string, online bool) {
	status := models.TerminalStatusOffline
	event := EventTerminalOffline
	if online {
		status = models.TerminalStatusOnline
		event = EventTerminalOnline
	}

	if err := r.terminals.UpdateStatus(terminalID, status); err != nil {
		config.Warning("failed to persist %s status for terminal %s: %v", status, terminalID, err)
	}
	if r.redis != nil {
		if err := r.redis.SetLastSeen(terminalID, time.Now()); err != nil {
			config.Warning("failed to record last seen for terminal %s: %v", terminalID, err)
		}
	}

	r.registry.BroadcastRole(models.RoleDispatcher, event, map[string]interface{}{
		"terminalId": terminalID,
		"status":     status,
	})
}

// HandleMessage routes one inbound event and returns its ack. Events from a
// single connection arrive here in order; cross-connection races are settled
// by the state machine against persisted state.
func (r *EventRouterService) HandleMessage(session *models.Session, raw []byte) *Ack {
	var msg InboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return &Ack{Success: false, Error: "malformed event: " + err.Error()}
	}

	switch msg.Event {
	case EventTerminalJoin:
		return r.handleJoin(session, msg.Payload)
	case EventAlertTrigger:
		return r.handleTrigger(session, msg.Payload)
	case EventAlertRespond:
		return r.handleRespond(session, msg.Payload)
	case EventAlertComplete:
		return r.handleComplete(session, msg.Payload)
	case EventAlertCancel:
		return r.handleCancel(session, msg.Payload)
	default:
		return &Ack{Event: msg.Event, Success: false, Error: "unrecognized event"}
	}
}

// JoinPayload is the terminal:join payload
type JoinPayload struct {
	TerminalID string `json:"terminalId"`
}

// handleJoin processes terminal:join, binding a connection to its terminal
// room. Rejoining the same room is idempotent; joining a different room
// first leaves the old one.
func (r *EventRouterService) handleJoin(session *models.Session, payload json.RawMessage) *Ack {
	if session == nil || session.Role != models.RoleTerminal {
		return &Ack{Event: EventTerminalJoin, Success: false, Error: "only terminal connections may join a terminal room"}
	}

	var req JoinPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return &Ack{Event: EventTerminalJoin, Success: false, Error: "invalid payload: " + err.Error()}
	}
	if req.TerminalID == "" {
		return &Ack{Event: EventTerminalJoin, Success: false, Error: "terminalId is required"}
	}

	if _, err := r.terminals.GetTerminalByID(req.TerminalID); err != nil {
		return &Ack{Event: EventTerminalJoin, Success: false, Error: "terminal " + req.TerminalID + " does not exist"}
	}

	if session.Room != "" && session.Room != req.TerminalID {
		r.registry.Leave(session)
	}
	session.Identity = req.TerminalID
	session.Room = req.TerminalID
	r.registry.Join(session)

	return &Ack{
		Event:   EventTerminalJoin,
		Success: true,
		Data:    map[string]interface{}{"terminalId": req.TerminalID},
	}
}

// handleTrigger processes alert:trigger
func (r *EventRouterService) handleTrigger(session *models.Session, payload json.RawMessage) *Ack {
	var req TriggerPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return &Ack{Event: EventAlertTrigger, Success: false, Error: "invalid payload: " + err.Error()}
	}
	if req.TerminalID == "" && session != nil && session.Role == models.RoleTerminal {
		req.TerminalID = session.Identity
	}
	if req.TerminalID == "" {
		return &Ack{Event: EventAlertTrigger, Success: false, Error: "terminalId is required"}
	}
	if req.AlertType == "" {
		return &Ack{Event: EventAlertTrigger, Success: false, Error: "alertType is required"}
	}

	result, err := r.alerts.Trigger(req.TerminalID, req.AlertType, req.SentThrough, req.Status)
	if err != nil {
		return r.conflictAck(EventAlertTrigger, err)
	}

	alert := result.Alert
	if result.Created {
		r.registry.BroadcastRole(models.RoleDispatcher, EventAlertNew, alert)

		// A caller pre-assigning a non-default initial status also informs
		// the terminal over the radio channel.
		if alert.Status != models.AlertStatusWaitlist {
			r.sendDownlink(alert.TerminalID, alert.Status)
		}
	}

	return &Ack{
		Event:   EventAlertTrigger,
		Success: true,
		Data: map[string]interface{}{
			"id":         alert.ID,
			"terminalId": alert.TerminalID,
			"status":     alert.Status,
			"created":    result.Created,
		},
	}
}

// handleRespond processes alert:respond
func (r *EventRouterService) handleRespond(session *models.Session, payload json.RawMessage) *Ack {
	var req RespondPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return &Ack{Event: EventAlertRespond, Success: false, Error: "invalid payload: " + err.Error()}
	}
	if req.DispatcherID == "" && session != nil && session.Role == models.RoleDispatcher {
		req.DispatcherID = session.Identity
	}
	if req.AlertID == "" || req.DispatcherID == "" {
		return &Ack{Event: EventAlertRespond, Success: false, Error: "alertId and dispatcherId are required"}
	}

	alert, respond, err := r.alerts.Respond(req.AlertID, req.DispatcherID, req.Note)
	if err != nil {
		return r.conflictAck(EventAlertRespond, err)
	}

	// Radio delivery is best-effort; the committed transition stands even
	// when the gateway rejects.
	delivered := r.sendDownlink(alert.TerminalID, alert.Status)

	update := map[string]interface{}{
		"id":           alert.ID,
		"terminalId":   alert.TerminalID,
		"status":       alert.Status,
		"dispatcherId": respond.DispatcherID,
		"delivered":    delivered,
	}
	r.registry.Broadcast(alert.TerminalID, EventAlertDispatched, update)
	r.registry.BroadcastRole(models.RoleDispatcher, EventAlertDispatched, update)

	return &Ack{Event: EventAlertRespond, Success: true, Data: update}
}

// handleComplete processes alert:complete
func (r *EventRouterService) handleComplete(session *models.Session, payload json.RawMessage) *Ack {
	var req CompletePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return &Ack{Event: EventAlertComplete, Success: false, Error: "invalid payload: " + err.Error()}
	}
	if req.AlertID == "" {
		return &Ack{Event: EventAlertComplete, Success: false, Error: "alertId is required"}
	}

	alert, result, err := r.alerts.Complete(req.AlertID, req.PersonnelCount, req.ActionTaken)
	if err != nil {
		return r.conflictAck(EventAlertComplete, err)
	}

	delivered := r.sendDownlink(alert.TerminalID, alert.Status)

	update := map[string]interface{}{
		"id":             alert.ID,
		"terminalId":     alert.TerminalID,
		"status":         alert.Status,
		"resultId":       result.ID,
		"personnelCount": result.PersonnelCount,
		"delivered":      delivered,
	}
	r.registry.Broadcast(alert.TerminalID, EventAlertCompleted, update)
	r.registry.BroadcastRole(models.RoleDispatcher, EventAlertCompleted, update)

	return &Ack{Event: EventAlertComplete, Success: true, Data: update}
}

// handleCancel processes alert:cancel
func (r *EventRouterService) handleCancel(session *models.Session, payload json.RawMessage) *Ack {
	var req CancelPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return &Ack{Event: EventAlertCancel, Success: false, Error: "invalid payload: " + err.Error()}
	}
	if req.AlertID == "" {
		return &Ack{Event: EventAlertCancel, Success: false, Error: "alertId is required"}
	}

	alert, err := r.alerts.Cancel(req.AlertID, req.Reason)
	if err != nil {
		return r.conflictAck(EventAlertCancel, err)
	}

	delivered := r.sendDownlink(alert.TerminalID, alert.Status)

	update := map[string]interface{}{
		"id":         alert.ID,
		"terminalId": alert.TerminalID,
		"status":     alert.Status,
		"delivered":  delivered,
	}
	r.registry.Broadcast(alert.TerminalID, EventAlertCancelled, update)
	r.registry.BroadcastRole(models.RoleDispatcher, EventAlertCancelled, update)

	return &Ack{Event: EventAlertCancel, Success: true, Data: update}
}

// TriggerFromUplink converts a sensor-originated SOS frame from the LoRa
// network server into an alert trigger. Used by the MQTT bridge, so alerts
// arrive even when the terminal's live connection is down.
func (r *EventRouterService) TriggerFromUplink(devEUI, alertType string) (*Ack, error) {
	terminal, err := r.terminals.GetTerminalByDevEUI(devEUI)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("no terminal registered for DevEUI " + devEUI)
		}
		return nil, err
	}

	payload, _ := json.Marshal(TriggerPayload{
		TerminalID:  terminal.ID,
		AlertType:   alertType,
		SentThrough: models.SentThroughSensor,
	})
	ack := r.handleTrigger(nil, payload)
	return ack, nil
}

// sendDownlink pushes the status to the terminal's radio gateway, resolving
// the DevEUI first. Delivery failures are logged and reported but never roll
// back the alert transition.
func (r *EventRouterService) sendDownlink(terminalID string, status models.AlertStatus) bool {
	terminal, err := r.terminals.GetTerminalByID(terminalID)
	if err != nil {
		config.Error("downlink skipped, terminal %s not found: %v", terminalID, err)
		return false
	}

	result, err := r.downlink.Send(terminal.DevEUI, status)
	if err != nil {
		config.Warning("downlink for terminal %s (status=%s) failed: %v", terminalID, status, err)
		return false
	}
	return result.Delivered
}

// conflictAck converts a service error into an ack, distinguishing rejected
// commands from I/O failures
func (r *EventRouterService) conflictAck(event string, err error) *Ack {
	if conflict, ok := AsConflict(err); ok {
		ack := &Ack{Event: event, Success: false, Error: conflict.Message}
		if conflict.DispatcherID != "" {
			ack.Data = map[string]interface{}{"dispatcherId": conflict.DispatcherID}
		}
		return ack
	}
	return &Ack{Event: event, Success: false, Error: err.Error()}
}
