package services

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Xine003/ResQWave-sub002/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// Uplink topics published by the LoRa network server
const (
	// TopicUplink carries sensor frames; the last level is the DevEUI
	TopicUplink = "resqwave/uplink/+"
)

// UplinkMessage is the frame shape the network server publishes
type UplinkMessage struct {
	DevEUI    string `json:"dev_eui"`
	AlertType string `json:"alert_type"` // e.g. "Critical", "User-Initiated"
	Payload   string `json:"payload"`
	Timestamp int64  `json:"timestamp"`
}

// InterfaceMQTTUplinkService defines the uplink bridge interface
type InterfaceMQTTUplinkService interface {
	Connect() error
	Disconnect()
	SubscribeToTopics() error
}

// MQTTUplinkService bridges LoRa network-server uplinks into the event
// router. Sensor-originated SOS triggers arrive over this channel even when
// the terminal's live connection is down.
type MQTTUplinkService struct {
	Config         *config.Config
	Router         InterfaceEventRouterService
	Client         mqtt.Client
	IsConnected    bool
	connectedMutex sync.RWMutex // guards IsConnected
}

// NewMQTTUplinkService creates a new uplink bridge
func NewMQTTUplinkService(cfg *config.Config, router InterfaceEventRouterService) InterfaceMQTTUplinkService {
	service := &MQTTUplinkService{
		Config: cfg,
		Router: router,
	}
	service.setupMQTTClient()
	return service
}

// setupMQTTClient configures the MQTT client
func (s *MQTTUplinkService) setupMQTTClient() {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(s.Config.MQTTBrokerURL)
	// Unique client id so multiple instances of the service do not clash
	opts.SetClientID(fmt.Sprintf("%s-%s-%d", s.Config.MQTTClientID, uuid.New().String()[:8], time.Now().UnixNano()))
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(time.Second * 30)
	opts.SetKeepAlive(time.Second * 60)
	opts.SetPingTimeout(time.Second * 10)
	opts.SetCleanSession(true)
	opts.SetOrderMatters(true)

	if s.Config.MQTTUsername != "" {
		opts.SetUsername(s.Config.MQTTUsername)
		opts.SetPassword(s.Config.MQTTPassword)
	}

	opts.SetDefaultPublishHandler(func(client mqtt.Client, msg mqtt.Message) {
		config.Warning("[MQTT] unhandled message: topic=%s", msg.Topic())
	})

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		s.connectedMutex.Lock()
		s.IsConnected = true
		s.connectedMutex.Unlock()
		config.Info("[MQTT] connected to broker %s", s.Config.MQTTBrokerURL)

		// Re-subscribe after every (re)connect
		if err := s.SubscribeToTopics(); err != nil {
			config.Error("[MQTT] subscription failed: %v", err)
		}
	})

	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		s.connectedMutex.Lock()
		s.IsConnected = false
		s.connectedMutex.Unlock()
		config.Warning("[MQTT] connection lost: %v", err)
	})

	s.Client = mqtt.NewClient(opts)
}

// Connect establishes the broker connection
func (s *MQTTUplinkService) Connect() error {
	token := s.Client.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return nil
}

// Disconnect closes the broker connection
func (s *MQTTUplinkService) Disconnect() {
	if s.Client != nil && s.Client.IsConnected() {
		s.Client.Disconnect(250)
	}
	s.connectedMutex.Lock()
	s.IsConnected = false
	s.connectedMutex.Unlock()
}

// SubscribeToTopics subscribes to the uplink feed at QoS 1
func (s *MQTTUplinkService) SubscribeToTopics() error {
	token := s.Client.Subscribe(TopicUplink, 1, s.handleUplink)
	if token.Wait() && token.Error() != nil {
		return token.Error()
	}
	config.Info("[MQTT] subscribed to %s", TopicUplink)
	return nil
}

// handleUplink converts one uplink frame into an alert trigger. A duplicate
// trigger for an already-open alert resolves idempotently inside the router.
func (s *MQTTUplinkService) handleUplink(client mqtt.Client, msg mqtt.Message) {
	var uplink UplinkMessage
	if err := json.Unmarshal(msg.Payload(), &uplink); err != nil {
		config.Warning("[MQTT] malformed uplink on %s: %v", msg.Topic(), err)
		return
	}

	if uplink.DevEUI == "" {
		// Fall back to the topic's last level
		parts := strings.Split(msg.Topic(), "/")
		uplink.DevEUI = parts[len(parts)-1]
	}
	if uplink.AlertType == "" {
		uplink.AlertType = "Critical"
	}

	ack, err := s.Router.TriggerFromUplink(uplink.DevEUI, uplink.AlertType)
	if err != nil {
		config.Error("[MQTT] uplink trigger for %s failed: %v", uplink.DevEUI, err)
		return
	}
	if !ack.Success {
		config.Warning("[MQTT] uplink trigger for %s rejected: %s", uplink.DevEUI, ack.Error)
	}
}
