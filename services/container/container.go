package container

import (
	"sync"

	"github.com/Xine003/ResQWave-sub002/config"
	"github.com/Xine003/ResQWave-sub002/models"
	"github.com/Xine003/ResQWave-sub002/services"

	"gorm.io/gorm"
)

// ServiceContainer manages dependency injection for all services
type ServiceContainer struct {
	db     *gorm.DB
	config *config.Config

	// Base services
	jwtService   services.InterfaceJWTService
	redisService services.InterfaceRedisService

	// Core coordination services
	allocatorService  services.InterfaceAllocatorService
	alertService      services.InterfaceAlertService
	downlinkService   services.InterfaceDownlinkService
	eventRouter       services.InterfaceEventRouterService
	mqttUplinkService services.InterfaceMQTTUplinkService
	sessionRegistry   *models.SessionRegistry

	// Entity services
	terminalService   services.InterfaceTerminalService
	dispatcherService services.InterfaceDispatcherService

	mu sync.RWMutex
}

// NewServiceContainer creates a new service container
func NewServiceContainer(db *gorm.DB, cfg *config.Config) *ServiceContainer {
	if db == nil {
		panic("database connection is nil")
	}
	if cfg == nil {
		panic("configuration is nil")
	}

	container := &ServiceContainer{
		db:     db,
		config: cfg,
	}
	container.initializeServices()
	return container
}

// initializeServices wires all services, leaves first
func (c *ServiceContainer) initializeServices() {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Base services
	c.jwtService = services.NewJWTService(c.config)
	c.redisService = services.NewRedisService(c.config)

	// Core primitives
	c.allocatorService = services.NewAllocatorService(c.db, c.config)
	c.downlinkService = services.NewDownlinkService(c.config)
	c.sessionRegistry = models.NewSessionRegistry()

	// Entity services
	c.terminalService = services.NewTerminalService(c.db, c.config, c.allocatorService, c.redisService)
	c.dispatcherService = services.NewDispatcherService(c.db, c.config, c.allocatorService)

	// State machine and composition root
	c.alertService = services.NewAlertService(c.db, c.config, c.allocatorService)
	c.eventRouter = services.NewEventRouterService(
		c.config,
		c.sessionRegistry,
		c.alertService,
		c.terminalService,
		c.downlinkService,
		c.redisService,
	)

	// LoRa network-server uplink bridge
	c.mqttUplinkService = services.NewMQTTUplinkService(c.config, c.eventRouter)
	if err := c.mqttUplinkService.Connect(); err != nil {
		config.Warning("MQTT uplink bridge connection failed: %v", err)
	}
}

// GetService returns the service registered under a name
func (c *ServiceContainer) GetService(name string) interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch name {
	case "config":
		return c.config
	case "db":
		return c.db
	case "jwt":
		return c.jwtService
	case "redis":
		return c.redisService
	case "allocator":
		return c.allocatorService
	case "alert":
		return c.alertService
	case "downlink":
		return c.downlinkService
	case "event_router":
		return c.eventRouter
	case "mqtt_uplink":
		return c.mqttUplinkService
	case "registry":
		return c.sessionRegistry
	case "terminal":
		return c.terminalService
	case "dispatcher":
		return c.dispatcherService
	default:
		return nil
	}
}

// GetDB returns the database connection
func (c *ServiceContainer) GetDB() *gorm.DB {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db
}
