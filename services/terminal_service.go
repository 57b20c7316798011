package services

import (
	"errors"

	"github.com/Xine003/ResQWave-sub002/config"
	"github.com/Xine003/ResQWave-sub002/models"

	"gorm.io/gorm"
)

// InterfaceTerminalService defines the terminal service interface
type InterfaceTerminalService interface {
	GetTerminals(query models.PaginationQuery) ([]models.Terminal, models.PaginationResult, error)
	GetTerminalByID(id string) (*models.Terminal, error)
	GetTerminalByDevEUI(devEUI string) (*models.Terminal, error)
	UpdateStatus(id string, status models.TerminalStatus) error
	CreateTerminal(terminal *models.Terminal) error
}

// TerminalService provides terminal-related operations
type TerminalService struct {
	DB        *gorm.DB
	Config    *config.Config
	Allocator InterfaceAllocatorService
	Redis     InterfaceRedisService
}

// NewTerminalService creates a new terminal service
func NewTerminalService(db *gorm.DB, cfg *config.Config, allocator InterfaceAllocatorService, redis InterfaceRedisService) InterfaceTerminalService {
	return &TerminalService{
		DB:        db,
		Config:    cfg,
		Allocator: allocator,
		Redis:     redis,
	}
}

// GetTerminals returns a paginated list of terminals
func (s *TerminalService) GetTerminals(query models.PaginationQuery) ([]models.Terminal, models.PaginationResult, error) {
	if query.PageNum < 1 {
		query.PageNum = 1
	}
	if query.PageSize < 1 || query.PageSize > 100 {
		query.PageSize = 20
	}

	var total int64
	if err := s.DB.Model(&models.Terminal{}).Count(&total).Error; err != nil {
		return nil, models.PaginationResult{}, err
	}

	order := "id ASC"
	if query.Desc {
		order = "id DESC"
	}

	var terminals []models.Terminal
	err := s.DB.Preload("FocalPerson").
		Order(order).
		Offset((query.PageNum - 1) * query.PageSize).
		Limit(query.PageSize).
		Find(&terminals).Error
	if err != nil {
		return nil, models.PaginationResult{}, err
	}

	return terminals, models.NewPaginationResult(int(total), query.PageNum, query.PageSize), nil
}

// GetTerminalByID loads one terminal by its allocated id
func (s *TerminalService) GetTerminalByID(id string) (*models.Terminal, error) {
	var terminal models.Terminal
	if err := s.DB.Preload("FocalPerson").Where("id = ?", id).First(&terminal).Error; err != nil {
		return nil, err
	}
	return &terminal, nil
}

// GetTerminalByDevEUI loads one terminal by its radio device identifier
func (s *TerminalService) GetTerminalByDevEUI(devEUI string) (*models.Terminal, error) {
	var terminal models.Terminal
	if err := s.DB.Where("dev_eui = ?", devEUI).First(&terminal).Error; err != nil {
		return nil, err
	}
	return &terminal, nil
}

// UpdateStatus persists a terminal status change and mirrors it into the
// presence cache
func (s *TerminalService) UpdateStatus(id string, status models.TerminalStatus) error {
	res := s.DB.Model(&models.Terminal{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	if s.Redis != nil {
		if err := s.Redis.SetTerminalPresence(id, string(status)); err != nil {
			// Cache failures are not fatal; the database row is authoritative.
			config.Warning("presence cache update for %s failed: %v", id, err)
		}
	}
	return nil
}

// CreateTerminal creates a terminal with an allocated id
func (s *TerminalService) CreateTerminal(terminal *models.Terminal) error {
	if terminal.DevEUI == "" {
		return errors.New("terminal DevEUI is required")
	}

	for attempt := 0; attempt < allocateAttempts; attempt++ {
		id, err := s.Allocator.Allocate(EntityTerminal)
		if err != nil {
			if errors.Is(err, ErrAllocatorRetry) {
				continue
			}
			return err
		}
		terminal.ID = id
		if terminal.Status == "" {
			terminal.Status = models.TerminalStatusOffline
		}

		err = s.DB.Create(terminal).Error
		if err == nil {
			return nil
		}
		if !IsDuplicateKeyError(err) {
			return err
		}
		config.Warning("terminal id %s collided, retrying allocation", id)
	}
	return ErrAllocatorRetry
}
