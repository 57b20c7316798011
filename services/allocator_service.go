package services

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Xine003/ResQWave-sub002/config"
	"github.com/Xine003/ResQWave-sub002/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Entity classes known to the allocator
const (
	EntityTerminal       = "Terminal"
	EntityAlert          = "Alert"
	EntityDispatcher     = "Dispatcher"
	EntityAdmin          = "Admin"
	EntityCommunityGroup = "CommunityGroup"
	EntityFocalPerson    = "FocalPerson"
	EntityRespond        = "Respond"
	EntityResult         = "Result"
)

// entityPrefixes maps entity classes to their fixed identifier prefixes
var entityPrefixes = map[string]string{
	EntityTerminal:       "RESQ",
	EntityAlert:          "ALE",
	EntityDispatcher:     "DIS",
	EntityAdmin:          "ADM",
	EntityCommunityGroup: "COM",
	EntityFocalPerson:    "FOC",
	EntityRespond:        "RES",
	EntityResult:         "RSLT",
}

// entityTables maps entity classes to the table whose existing ids seed the
// counter on first allocation for a prefix
var entityTables = map[string]string{
	EntityTerminal:       "terminals",
	EntityAlert:          "alerts",
	EntityDispatcher:     "dispatchers",
	EntityAdmin:          "admins",
	EntityCommunityGroup: "community_groups",
	EntityFocalPerson:    "focal_persons",
	EntityRespond:        "responds",
	EntityResult:         "results",
}

// ErrAllocatorRetry signals a retryable allocation failure (lost race or
// unreachable store). Callers retry allocation; they never reuse a failed id.
var ErrAllocatorRetry = errors.New("identifier allocation failed, retry")

// InterfaceAllocatorService defines the identifier allocator interface
type InterfaceAllocatorService interface {
	Allocate(entityClass string) (string, error)
	Prefix(entityClass string) (string, bool)
}

// AllocatorService produces unique, human-readable, prefixed sequential
// identifiers. The read-increment-write runs inside a transaction holding a
// row lock on the per-prefix counter, so concurrent allocations for the same
// entity class serialize on the database instead of racing in memory.
type AllocatorService struct {
	DB     *gorm.DB
	Config *config.Config
}

// NewAllocatorService creates a new allocator service
func NewAllocatorService(db *gorm.DB, cfg *config.Config) InterfaceAllocatorService {
	return &AllocatorService{
		DB:     db,
		Config: cfg,
	}
}

// Prefix returns the identifier prefix for an entity class
func (s *AllocatorService) Prefix(entityClass string) (string, bool) {
	prefix, ok := entityPrefixes[entityClass]
	return prefix, ok
}

// Allocate returns the next identifier for an entity class, formatted as
// PREFIX plus a zero-padded 3-digit number (e.g. "ALE007").
func (s *AllocatorService) Allocate(entityClass string) (string, error) {
	prefix, ok := entityPrefixes[entityClass]
	if !ok {
		return "", fmt.Errorf("unknown entity class %q", entityClass)
	}

	var id string
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var counter models.IDCounter
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("prefix = ?", prefix).
			First(&counter).Error

		if errors.Is(err, gorm.ErrRecordNotFound) {
			// First allocation for this prefix: seed from the maximum
			// numeric suffix among existing identifiers. A duplicate key
			// here means a concurrent seeder won the insert; the row exists
			// either way.
			counter = models.IDCounter{
				Prefix:     prefix,
				LastNumber: s.maxExistingSuffix(tx, entityClass, prefix),
			}
			if err := tx.Create(&counter).Error; err != nil && !IsDuplicateKeyError(err) {
				return err
			}
			// Re-acquire under lock so the increment runs against whichever
			// seed actually landed.
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("prefix = ?", prefix).
				First(&counter).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		counter.LastNumber++
		if err := tx.Model(&models.IDCounter{}).
			Where("prefix = ?", prefix).
			Update("last_number", counter.LastNumber).Error; err != nil {
			return err
		}

		id = fmt.Sprintf("%s%03d", prefix, counter.LastNumber)
		return nil
	})

	if err != nil {
		config.Warning("identifier allocation for %s failed: %v", entityClass, err)
		return "", fmt.Errorf("%w: %v", ErrAllocatorRetry, err)
	}
	return id, nil
}

// maxExistingSuffix reads the highest numeric suffix already present for a
// prefix, by descending id order. Only consulted when seeding a counter row.
func (s *AllocatorService) maxExistingSuffix(tx *gorm.DB, entityClass, prefix string) int {
	table, ok := entityTables[entityClass]
	if !ok {
		return 0
	}

	var lastID string
	err := tx.Table(table).
		Select("id").
		Where("id LIKE ?", prefix+"%").
		Order("id DESC").
		Limit(1).
		Scan(&lastID).Error
	if err != nil || lastID == "" {
		return 0
	}

	suffix := strings.TrimPrefix(lastID, prefix)
	n, err := strconv.Atoi(suffix)
	if err != nil {
		return 0
	}
	return n
}

// IsDuplicateKeyError reports whether an insert failed on a uniqueness
// constraint. Used by callers to classify allocator races, which are
// retryable, apart from generic I/O failures.
func IsDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate entry") || strings.Contains(msg, "unique constraint")
}
