package services

import (
	"errors"

	"github.com/Xine003/ResQWave-sub002/config"
	"github.com/Xine003/ResQWave-sub002/models"
	"github.com/Xine003/ResQWave-sub002/utils"

	"gorm.io/gorm"
)

// InterfaceDispatcherService defines the dispatcher service interface
type InterfaceDispatcherService interface {
	Authenticate(username, password string) (*models.Dispatcher, error)
	GetDispatcherByID(id string) (*models.Dispatcher, error)
	GetDispatchers() ([]models.Dispatcher, error)
	CreateDispatcher(dispatcher *models.Dispatcher, plainPassword string) error
}

// DispatcherService provides dispatcher account operations
type DispatcherService struct {
	DB        *gorm.DB
	Config    *config.Config
	Allocator InterfaceAllocatorService
}

// NewDispatcherService creates a new dispatcher service
func NewDispatcherService(db *gorm.DB, cfg *config.Config, allocator InterfaceAllocatorService) InterfaceDispatcherService {
	return &DispatcherService{
		DB:        db,
		Config:    cfg,
		Allocator: allocator,
	}
}

// Authenticate verifies a dispatcher's credentials
func (s *DispatcherService) Authenticate(username, password string) (*models.Dispatcher, error) {
	var dispatcher models.Dispatcher
	if err := s.DB.Where("username = ?", username).First(&dispatcher).Error; err != nil {
		return nil, err
	}

	if !utils.CheckPasswordHash(password, dispatcher.Password) {
		return nil, errors.New("incorrect password")
	}
	return &dispatcher, nil
}

// GetDispatcherByID loads one dispatcher
func (s *DispatcherService) GetDispatcherByID(id string) (*models.Dispatcher, error) {
	var dispatcher models.Dispatcher
	if err := s.DB.Where("id = ?", id).First(&dispatcher).Error; err != nil {
		return nil, err
	}
	return &dispatcher, nil
}

// GetDispatchers lists all dispatcher accounts
func (s *DispatcherService) GetDispatchers() ([]models.Dispatcher, error) {
	var dispatchers []models.Dispatcher
	err := s.DB.Order("id ASC").Find(&dispatchers).Error
	return dispatchers, err
}

// CreateDispatcher creates a dispatcher account with an allocated id and a
// bcrypt-hashed password
func (s *DispatcherService) CreateDispatcher(dispatcher *models.Dispatcher, plainPassword string) error {
	hashed, err := utils.HashPassword(plainPassword)
	if err != nil {
		return err
	}
	dispatcher.Password = hashed

	for attempt := 0; attempt < allocateAttempts; attempt++ {
		id, err := s.Allocator.Allocate(EntityDispatcher)
		if err != nil {
			if errors.Is(err, ErrAllocatorRetry) {
				continue
			}
			return err
		}
		dispatcher.ID = id

		err = s.DB.Create(dispatcher).Error
		if err == nil {
			return nil
		}
		if !IsDuplicateKeyError(err) {
			return err
		}
		config.Warning("dispatcher id %s collided, retrying allocation", id)
	}
	return ErrAllocatorRetry
}
