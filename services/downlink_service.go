package services

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Xine003/ResQWave-sub002/config"
	"github.com/Xine003/ResQWave-sub002/models"
)

// Downlink payload codes understood by the terminal firmware. Anything
// outside the explicit mapping falls back to PayloadCodeDefault, which the
// firmware shows for both completed and cancelled alerts.
const (
	PayloadCodeDispatched = "01"
	PayloadCodeWaitlist   = "02"
	PayloadCodeDefault    = "03"
)

// DownlinkResult reports what was sent and whether the gateway accepted it
type DownlinkResult struct {
	DevEUI      string `json:"dev_eui"`
	PayloadSent string `json:"payload_sent"`
	Delivered   bool   `json:"delivered"`
	Reason      string `json:"reason,omitempty"` // gateway error body on failure
}

// InterfaceDownlinkService defines the downlink dispatcher interface
type InterfaceDownlinkService interface {
	Send(devEUI string, status models.AlertStatus) (*DownlinkResult, error)
	PayloadCode(status models.AlertStatus) string
}

// DownlinkService pushes signed status commands to terminals through the
// radio network server's REST gateway. The terminal has no internet link, so
// this out-of-band channel is how it learns its display state.
type DownlinkService struct {
	Config       *config.Config
	HTTPClient   *http.Client
	payloadCodes map[models.AlertStatus]string
	now          func() time.Time
}

// NewDownlinkService creates a new downlink service
func NewDownlinkService(cfg *config.Config) InterfaceDownlinkService {
	return &DownlinkService{
		Config:     cfg,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		payloadCodes: map[models.AlertStatus]string{
			models.AlertStatusDispatched: PayloadCodeDispatched,
			models.AlertStatusWaitlist:   PayloadCodeWaitlist,
		},
		now: time.Now,
	}
}

// PayloadCode maps an alert status to its two-digit payload code. Total:
// statuses without an explicit entry map to the default code.
func (s *DownlinkService) PayloadCode(status models.AlertStatus) string {
	if code, ok := s.payloadCodes[status]; ok {
		return code
	}
	return PayloadCodeDefault
}

// signingString builds the canonical query string in the fixed field order
// the remote verifier expects: DevEUI, FPort, Payload, AS_ID, Time. No URL
// encoding is applied before signing. The order is a contract; reordering
// breaks verification silently on the remote side.
func (s *DownlinkService) signingString(devEUI, payload, timestamp string) string {
	return "DevEUI=" + devEUI +
		"&FPort=" + strconv.Itoa(s.Config.RWNFPort) +
		"&Payload=" + payload +
		"&AS_ID=" + s.Config.RWNASID +
		"&Time=" + timestamp
}

// token hashes the canonical query string with the shared secret appended
// directly (no separator) and renders the SHA-256 digest as lowercase hex
func (s *DownlinkService) token(signingString string) string {
	sum := sha256.Sum256([]byte(signingString + s.Config.RWNSecretKey))
	return hex.EncodeToString(sum[:])
}

// Send delivers a signed status command for a terminal. A non-2xx gateway
// response is a delivery failure: the body is captured and the error
// propagated, but callers must not roll back the alert transition — the
// local record stays authoritative and radio delivery is best-effort.
func (s *DownlinkService) Send(devEUI string, status models.AlertStatus) (*DownlinkResult, error) {
	payload := s.PayloadCode(status)
	timestamp := s.now().UTC().Format(time.RFC3339)

	signing := s.signingString(devEUI, payload, timestamp)
	token := s.token(signing)

	query := url.Values{}
	query.Set("DevEUI", devEUI)
	query.Set("FPort", strconv.Itoa(s.Config.RWNFPort))
	query.Set("Payload", payload)
	query.Set("AS_ID", s.Config.RWNASID)
	query.Set("Time", timestamp)
	query.Set("Token", token)

	endpoint := s.Config.RWNGatewayURL + "/downlink?" + query.Encode()

	result := &DownlinkResult{
		DevEUI:      devEUI,
		PayloadSent: payload,
	}

	resp, err := s.HTTPClient.Post(endpoint, "application/json", nil)
	if err != nil {
		result.Reason = err.Error()
		config.Error("downlink to %s failed: %v", devEUI, err)
		return result, fmt.Errorf("downlink delivery failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		result.Reason = string(body)
		config.Error("downlink to %s rejected: status=%d body=%s", devEUI, resp.StatusCode, result.Reason)
		return result, fmt.Errorf("downlink rejected with status %d: %s", resp.StatusCode, result.Reason)
	}

	result.Delivered = true
	config.Info("downlink delivered: dev_eui=%s payload=%s", devEUI, payload)
	return result, nil
}
