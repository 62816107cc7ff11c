package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned when a run has no issuances
var ErrNotFound = errors.New("not found")

// Repository stores issuances
type Repository interface {
	Save(ctx context.Context, issuance *Issuance) error
	ListByRun(ctx context.Context, runID uuid.UUID) ([]Issuance, error)
	FindByCard(ctx context.Context, card string) ([]Issuance, error)
}

// =====================================================
// PostgreSQL
// =====================================================

// GormRepository keeps issuances in PostgreSQL
type GormRepository struct {
	db *gorm.DB
}

// Open connects to dsn and migrates the issuance table
func Open(dsn string) (*GormRepository, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to registry database: %w", err)
	}
	return NewGormRepository(db)
}

// NewGormRepository migrates the schema on db
func NewGormRepository(db *gorm.DB) (*GormRepository, error) {
	if err := db.AutoMigrate(&Issuance{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &GormRepository{db: db}, nil
}

func (r *GormRepository) Save(ctx context.Context, issuance *Issuance) error {
	if issuance.ID == uuid.Nil {
		issuance.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(issuance).Error; err != nil {
		return fmt.Errorf("failed to save issuance: %w", err)
	}
	return nil
}

func (r *GormRepository) ListByRun(ctx context.Context, runID uuid.UUID) ([]Issuance, error) {
	var issuances []Issuance
	if err := r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("row_number ASC").
		Find(&issuances).Error; err != nil {
		return nil, fmt.Errorf("failed to list issuances: %w", err)
	}
	if len(issuances) == 0 {
		return nil, ErrNotFound
	}
	return issuances, nil
}

func (r *GormRepository) FindByCard(ctx context.Context, card string) ([]Issuance, error) {
	var issuances []Issuance
	if err := r.db.WithContext(ctx).
		Where("card = ?", card).
		Order("created_at DESC").
		Find(&issuances).Error; err != nil {
		return nil, fmt.Errorf("failed to find issuances: %w", err)
	}
	return issuances, nil
}

// Close releases the underlying connection pool
func (r *GormRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// =====================================================
// In-memory
// =====================================================

// MemoryRepository keeps issuances for the lifetime of the process
type MemoryRepository struct {
	mu        sync.RWMutex
	issuances []Issuance
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Save(ctx context.Context, issuance *Issuance) error {
	if issuance.ID == uuid.Nil {
		issuance.ID = uuid.New()
	}
	if issuance.CreatedAt.IsZero() {
		issuance.CreatedAt = time.Now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.issuances = append(r.issuances, *issuance)
	return nil
}

func (r *MemoryRepository) ListByRun(ctx context.Context, runID uuid.UUID) ([]Issuance, error) {
	out := r.filter(func(i Issuance) bool { return i.RunID == runID })
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Row < out[b].Row })
	return out, nil
}

func (r *MemoryRepository) FindByCard(ctx context.Context, card string) ([]Issuance, error) {
	out := r.filter(func(i Issuance) bool { return i.Card == card })
	sort.SliceStable(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	return out, nil
}

func (r *MemoryRepository) filter(keep func(Issuance) bool) []Issuance {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Issuance
	for _, i := range r.issuances {
		if keep(i) {
			out = append(out, i)
		}
	}
	return out
}
