package services

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/Xine003/ResQWave-sub002/config"
	errcode "github.com/Xine003/ResQWave-sub002/internal/error/code"
	"github.com/Xine003/ResQWave-sub002/models"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeAlertService returns canned lifecycle outcomes and records calls
type fakeAlertService struct {
	triggerResult *TriggerResult
	triggerErr    error
	respondAlert  *models.Alert
	respondRec    *models.Respond
	respondErr    error
	completeAlert *models.Alert
	completeRes   *models.Result
	completeErr   error
	cancelAlert   *models.Alert
	cancelErr     error

	triggerCalls [][4]string
}

func (f *fakeAlertService) Trigger(terminalID, alertType, sentThrough, initialStatus string) (*TriggerResult, error) {
	f.triggerCalls = append(f.triggerCalls, [4]string{terminalID, alertType, sentThrough, initialStatus})
	return f.triggerResult, f.triggerErr
}

func (f *fakeAlertService) Respond(alertID, dispatcherID, note string) (*models.Alert, *models.Respond, error) {
	return f.respondAlert, f.respondRec, f.respondErr
}

func (f *fakeAlertService) Complete(alertID string, personnelCount int, actionTaken string) (*models.Alert, *models.Result, error) {
	return f.completeAlert, f.completeRes, f.completeErr
}

func (f *fakeAlertService) Cancel(alertID, reason string) (*models.Alert, error) {
	return f.cancelAlert, f.cancelErr
}

func (f *fakeAlertService) GetAlert(alertID string) (*models.Alert, error) { return nil, nil }
func (f *fakeAlertService) GetOpenAlerts() ([]models.Alert, error)        { return nil, nil }
func (f *fakeAlertService) GetAlertsByTerminal(terminalID string) ([]models.Alert, error) {
	return nil, nil
}

// fakeTerminalService serves terminals from memory and records status writes
type fakeTerminalService struct {
	byID     map[string]*models.Terminal
	byDevEUI map[string]*models.Terminal
	statuses map[string]models.TerminalStatus
}

func newFakeTerminalService(terminals ...*models.Terminal) *fakeTerminalService {
	f := &fakeTerminalService{
		byID:     map[string]*models.Terminal{},
		byDevEUI: map[string]*models.Terminal{},
		statuses: map[string]models.TerminalStatus{},
	}
	for _, terminal := range terminals {
		f.byID[terminal.ID] = terminal
		f.byDevEUI[terminal.DevEUI] = terminal
	}
	return f
}

func (f *fakeTerminalService) GetTerminals(query models.PaginationQuery) ([]models.Terminal, models.PaginationResult, error) {
	return nil, models.PaginationResult{}, nil
}

func (f *fakeTerminalService) GetTerminalByID(id string) (*models.Terminal, error) {
	if terminal, ok := f.byID[id]; ok {
		return terminal, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeTerminalService) GetTerminalByDevEUI(devEUI string) (*models.Terminal, error) {
	if terminal, ok := f.byDevEUI[devEUI]; ok {
		return terminal, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeTerminalService) UpdateStatus(id string, status models.TerminalStatus) error {
	f.statuses[id] = status
	return nil
}

func (f *fakeTerminalService) CreateTerminal(terminal *models.Terminal) error { return nil }

// fakeDownlinkService records sends instead of hitting a gateway
type fakeDownlinkService struct {
	delivered bool
	sendErr   error
	calls     []struct {
		DevEUI string
		Status models.AlertStatus
	}
}

func (f *fakeDownlinkService) Send(devEUI string, status models.AlertStatus) (*DownlinkResult, error) {
	f.calls = append(f.calls, struct {
		DevEUI string
		Status models.AlertStatus
	}{devEUI, status})
	if f.sendErr != nil {
		return &DownlinkResult{DevEUI: devEUI}, f.sendErr
	}
	return &DownlinkResult{DevEUI: devEUI, Delivered: f.delivered}, nil
}

func (f *fakeDownlinkService) PayloadCode(status models.AlertStatus) string {
	if status == models.AlertStatusDispatched {
		return PayloadCodeDispatched
	}
	if status == models.AlertStatusWaitlist {
		return PayloadCodeWaitlist
	}
	return PayloadCodeDefault
}

type routerFixture struct {
	router    InterfaceEventRouterService
	alerts    *fakeAlertService
	terminals *fakeTerminalService
	downlink  *fakeDownlinkService
}

func newRouterFixture(t *testing.T, terminals ...*models.Terminal) *routerFixture {
	t.Helper()
	alerts := &fakeAlertService{}
	terminalSvc := newFakeTerminalService(terminals...)
	downlink := &fakeDownlinkService{delivered: true}
	router := NewEventRouterService(&config.Config{}, models.NewSessionRegistry(), alerts, terminalSvc, downlink, nil)
	return &routerFixture{router: router, alerts: alerts, terminals: terminalSvc, downlink: downlink}
}

func testTerminal(id, devEUI string) *models.Terminal {
	return &models.Terminal{
		BaseModel: models.BaseModel{ID: id},
		DevEUI:    devEUI,
		Status:    models.TerminalStatusOnline,
	}
}

func newRouterSession(id, identity, role, room string) *models.Session {
	return &models.Session{
		SessionID:   id,
		Identity:    identity,
		Role:        role,
		Room:        room,
		ConnectedAt: time.Now(),
		Send:        make(chan []byte, 16),
	}
}

func inbound(t *testing.T, event string, payload interface{}) []byte {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	msg, err := json.Marshal(InboundMessage{Event: event, Payload: raw})
	require.NoError(t, err)
	return msg
}

// receivedEvent decodes the next broadcast waiting on a session
func receivedEvent(t *testing.T, session *models.Session) (string, map[string]interface{}) {
	t.Helper()
	select {
	case raw := <-session.Send:
		var envelope struct {
			Event   string          `json:"event"`
			Payload json.RawMessage `json:"payload"`
		}
		require.NoError(t, json.Unmarshal(raw, &envelope))
		payload := map[string]interface{}{}
		require.NoError(t, json.Unmarshal(envelope.Payload, &payload))
		return envelope.Event, payload
	default:
		t.Fatal("no event waiting on session")
		return "", nil
	}
}

func TestHandleTriggerBroadcastsNewAlert(t *testing.T) {
	t.Parallel()

	fixture := newRouterFixture(t, testTerminal("RESQ001", "0011AABB"))
	fixture.alerts.triggerResult = &TriggerResult{
		Alert: &models.Alert{
			BaseModel:  models.BaseModel{ID: "ALE001"},
			TerminalID: "RESQ001",
			Status:     models.AlertStatusWaitlist,
		},
		Created: true,
	}

	dispatcher := newRouterSession("s1", "DIS001", models.RoleDispatcher, "")
	fixture.router.Connect(dispatcher)

	ack := fixture.router.HandleMessage(nil, inbound(t, EventAlertTrigger, TriggerPayload{
		TerminalID:  "RESQ001",
		AlertType:   "Critical",
		SentThrough: models.SentThroughSensor,
	}))
	require.True(t, ack.Success)
	require.Equal(t, EventAlertTrigger, ack.Event)

	event, payload := receivedEvent(t, dispatcher)
	require.Equal(t, EventAlertNew, event)
	require.Equal(t, "ALE001", payload["id"])

	// A Waitlist alert carries no downlink; the terminal's own display
	// already shows the SOS it just raised.
	require.Empty(t, fixture.downlink.calls)
}

// TestHandleTriggerDuplicateSkipsBroadcast checks the idempotent path: the
// ack carries the open alert but dispatchers are not notified twice.
func TestHandleTriggerDuplicateSkipsBroadcast(t *testing.T) {
	t.Parallel()

	fixture := newRouterFixture(t, testTerminal("RESQ001", "0011AABB"))
	fixture.alerts.triggerResult = &TriggerResult{
		Alert: &models.Alert{
			BaseModel:  models.BaseModel{ID: "ALE009"},
			TerminalID: "RESQ001",
			Status:     models.AlertStatusWaitlist,
		},
		Created: false,
	}

	dispatcher := newRouterSession("s1", "DIS001", models.RoleDispatcher, "")
	fixture.router.Connect(dispatcher)

	ack := fixture.router.HandleMessage(nil, inbound(t, EventAlertTrigger, TriggerPayload{
		TerminalID: "RESQ001",
		AlertType:  "Critical",
	}))
	require.True(t, ack.Success)

	data := ack.Data.(map[string]interface{})
	require.Equal(t, "ALE009", data["id"])
	require.Equal(t, false, data["created"])
	require.Empty(t, dispatcher.Send)
}

func TestHandleRespondBroadcastsAndDownlinks(t *testing.T) {
	t.Parallel()

	fixture := newRouterFixture(t, testTerminal("RESQ001", "0011AABB"))
	fixture.alerts.respondAlert = &models.Alert{
		BaseModel:  models.BaseModel{ID: "ALE001"},
		TerminalID: "RESQ001",
		Status:     models.AlertStatusDispatched,
	}
	fixture.alerts.respondRec = &models.Respond{
		BaseModel:    models.BaseModel{ID: "RES001"},
		AlertID:      "ALE001",
		DispatcherID: "DIS001",
	}

	terminal := newRouterSession("s1", "RESQ001", models.RoleTerminal, "RESQ001")
	dispatcher := newRouterSession("s2", "DIS001", models.RoleDispatcher, "")
	fixture.router.Connect(terminal)
	fixture.router.Connect(dispatcher)
	drainSession(terminal)
	drainSession(dispatcher)

	ack := fixture.router.HandleMessage(dispatcher, inbound(t, EventAlertRespond, RespondPayload{
		AlertID: "ALE001",
	}))
	require.True(t, ack.Success)

	require.Len(t, fixture.downlink.calls, 1)
	require.Equal(t, "0011AABB", fixture.downlink.calls[0].DevEUI)
	require.Equal(t, models.AlertStatusDispatched, fixture.downlink.calls[0].Status)

	event, payload := receivedEvent(t, terminal)
	require.Equal(t, EventAlertDispatched, event)
	require.Equal(t, "DIS001", payload["dispatcherId"])
	require.Equal(t, true, payload["delivered"])

	event, _ = receivedEvent(t, dispatcher)
	require.Equal(t, EventAlertDispatched, event)
}

// TestHandleRespondConflictCarriesWinner checks the loser of a claim race
// learns who holds the alert, with no downlink or broadcast side effects.
func TestHandleRespondConflictCarriesWinner(t *testing.T) {
	t.Parallel()

	fixture := newRouterFixture(t, testTerminal("RESQ001", "0011AABB"))
	fixture.alerts.respondErr = &ConflictError{
		Code:         errcode.ErrAlertAlreadyClaimed,
		Message:      "alert ALE001 already claimed by DIS001",
		DispatcherID: "DIS001",
	}

	dispatcher := newRouterSession("s1", "DIS002", models.RoleDispatcher, "")
	fixture.router.Connect(dispatcher)

	ack := fixture.router.HandleMessage(dispatcher, inbound(t, EventAlertRespond, RespondPayload{
		AlertID: "ALE001",
	}))
	require.False(t, ack.Success)
	require.Contains(t, ack.Error, "DIS001")

	data := ack.Data.(map[string]interface{})
	require.Equal(t, "DIS001", data["dispatcherId"])
	require.Empty(t, fixture.downlink.calls)
	require.Empty(t, dispatcher.Send)
}

func TestHandleCompleteBroadcastsResult(t *testing.T) {
	t.Parallel()

	fixture := newRouterFixture(t, testTerminal("RESQ001", "0011AABB"))
	fixture.alerts.completeAlert = &models.Alert{
		BaseModel:  models.BaseModel{ID: "ALE001"},
		TerminalID: "RESQ001",
		Status:     models.AlertStatusCompleted,
	}
	fixture.alerts.completeRes = &models.Result{
		BaseModel:      models.BaseModel{ID: "RSLT001"},
		AlertID:        "ALE001",
		PersonnelCount: 4,
	}

	dispatcher := newRouterSession("s1", "DIS001", models.RoleDispatcher, "")
	fixture.router.Connect(dispatcher)

	ack := fixture.router.HandleMessage(dispatcher, inbound(t, EventAlertComplete, CompletePayload{
		AlertID:        "ALE001",
		PersonnelCount: 4,
		ActionTaken:    "evacuated household",
	}))
	require.True(t, ack.Success)

	require.Len(t, fixture.downlink.calls, 1)
	require.Equal(t, models.AlertStatusCompleted, fixture.downlink.calls[0].Status)

	event, payload := receivedEvent(t, dispatcher)
	require.Equal(t, EventAlertCompleted, event)
	require.Equal(t, "RSLT001", payload["resultId"])
}

func TestHandleJoin(t *testing.T) {
	t.Parallel()

	fixture := newRouterFixture(t, testTerminal("RESQ001", "0011AABB"))

	session := newRouterSession("s1", "", models.RoleTerminal, "")
	ack := fixture.router.HandleMessage(session, inbound(t, EventTerminalJoin, JoinPayload{
		TerminalID: "RESQ001",
	}))
	require.True(t, ack.Success)
	require.Equal(t, "RESQ001", session.Room)
	require.True(t, fixture.router.Registry().IsOnline("RESQ001"))

	// Rejoining the same room stays a success and a single membership.
	ack = fixture.router.HandleMessage(session, inbound(t, EventTerminalJoin, JoinPayload{
		TerminalID: "RESQ001",
	}))
	require.True(t, ack.Success)
	require.True(t, fixture.router.Registry().IsOnline("RESQ001"))
}

func TestHandleJoinRejections(t *testing.T) {
	t.Parallel()

	fixture := newRouterFixture(t, testTerminal("RESQ001", "0011AABB"))

	dispatcher := newRouterSession("s1", "DIS001", models.RoleDispatcher, "")
	ack := fixture.router.HandleMessage(dispatcher, inbound(t, EventTerminalJoin, JoinPayload{TerminalID: "RESQ001"}))
	require.False(t, ack.Success)

	terminal := newRouterSession("s2", "", models.RoleTerminal, "")
	ack = fixture.router.HandleMessage(terminal, inbound(t, EventTerminalJoin, JoinPayload{}))
	require.False(t, ack.Success)

	ack = fixture.router.HandleMessage(terminal, inbound(t, EventTerminalJoin, JoinPayload{TerminalID: "RESQ999"}))
	require.False(t, ack.Success)
	require.False(t, fixture.router.Registry().IsOnline("RESQ999"))
}

func TestHandleUnrecognizedEvent(t *testing.T) {
	t.Parallel()

	fixture := newRouterFixture(t)

	ack := fixture.router.HandleMessage(nil, inbound(t, "alert:reboot", map[string]string{}))
	require.False(t, ack.Success)
	require.Equal(t, "alert:reboot", ack.Event)
	require.Equal(t, "unrecognized event", ack.Error)

	ack = fixture.router.HandleMessage(nil, []byte("{not json"))
	require.False(t, ack.Success)
}

// TestPresencePersistence checks that the first join and last leave of a
// terminal room persist the status change and notify the dispatcher group.
func TestPresencePersistence(t *testing.T) {
	t.Parallel()

	fixture := newRouterFixture(t, testTerminal("RESQ001", "0011AABB"))

	dispatcher := newRouterSession("s1", "DIS001", models.RoleDispatcher, "")
	fixture.router.Connect(dispatcher)

	terminal := newRouterSession("s2", "RESQ001", models.RoleTerminal, "RESQ001")
	fixture.router.Connect(terminal)

	require.Equal(t, models.TerminalStatusOnline, fixture.terminals.statuses["RESQ001"])
	event, payload := receivedEvent(t, dispatcher)
	require.Equal(t, EventTerminalOnline, event)
	require.Equal(t, "RESQ001", payload["terminalId"])

	fixture.router.Disconnect(terminal)
	require.Equal(t, models.TerminalStatusOffline, fixture.terminals.statuses["RESQ001"])
	event, _ = receivedEvent(t, dispatcher)
	require.Equal(t, EventTerminalOffline, event)
}

func TestTriggerFromUplink(t *testing.T) {
	t.Parallel()

	fixture := newRouterFixture(t, testTerminal("RESQ001", "0011AABB"))
	fixture.alerts.triggerResult = &TriggerResult{
		Alert: &models.Alert{
			BaseModel:  models.BaseModel{ID: "ALE001"},
			TerminalID: "RESQ001",
			Status:     models.AlertStatusWaitlist,
		},
		Created: true,
	}

	ack, err := fixture.router.TriggerFromUplink("0011AABB", "Critical")
	require.NoError(t, err)
	require.True(t, ack.Success)

	require.Len(t, fixture.alerts.triggerCalls, 1)
	call := fixture.alerts.triggerCalls[0]
	require.Equal(t, "RESQ001", call[0])
	require.Equal(t, "Critical", call[1])
	require.Equal(t, models.SentThroughSensor, call[2])

	_, err = fixture.router.TriggerFromUplink("FFFFFFFF", "Critical")
	require.Error(t, err)
	require.Contains(t, err.Error(), "FFFFFFFF")
}

// TestDownlinkFailureDoesNotFailAck checks the delivery flag degrades to
// false while the transition result still acks successfully.
func TestDownlinkFailureDoesNotFailAck(t *testing.T) {
	t.Parallel()

	fixture := newRouterFixture(t, testTerminal("RESQ001", "0011AABB"))
	fixture.downlink.sendErr = fmt.Errorf("gateway unreachable")
	fixture.alerts.cancelAlert = &models.Alert{
		BaseModel:  models.BaseModel{ID: "ALE001"},
		TerminalID: "RESQ001",
		Status:     models.AlertStatusCancelled,
	}

	ack := fixture.router.HandleMessage(nil, inbound(t, EventAlertCancel, CancelPayload{
		AlertID: "ALE001",
		Reason:  "false alarm",
	}))
	require.True(t, ack.Success)

	data := ack.Data.(map[string]interface{})
	require.Equal(t, false, data["delivered"])
}

// drainSession discards any events already queued on a session
func drainSession(session *models.Session) {
	for {
		select {
		case <-session.Send:
		default:
			return
		}
	}
}
