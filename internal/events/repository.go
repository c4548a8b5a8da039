package events

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// Filter narrows an audit trail query.
type Filter struct {
	Type      *Type
	Component *string
	Limit     int
}

type Repository interface {
	Save(ctx context.Context, record *Record) error
	List(ctx context.Context, filter Filter) ([]Record, error)
}

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Save(ctx context.Context, record *Record) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return errors.Wrap(err, "failed to store event")
	}
	return nil
}

func (r *gormRepository) List(ctx context.Context, filter Filter) ([]Record, error) {
	var records []Record
	query := r.db.WithContext(ctx).Order("emitted_at ASC")
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	if filter.Component != nil {
		query = query.Where("component = ?", *filter.Component)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if err := query.Find(&records).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list events")
	}
	return records, nil
}

type memoryRepository struct {
	mu      sync.RWMutex
	records []Record
}

// NewMemoryRepository keeps the audit trail in process memory.
func NewMemoryRepository() Repository {
	return &memoryRepository{}
}

func (r *memoryRepository) Save(_ context.Context, record *Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, *record)
	return nil
}

func (r *memoryRepository) List(_ context.Context, filter Filter) ([]Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		if filter.Type != nil && rec.Type != *filter.Type {
			continue
		}
		if filter.Component != nil && rec.Component != *filter.Component {
			continue
		}
		out = append(out, rec)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

// StoreSink persists every event to the audit trail.
type StoreSink struct {
	repo Repository
}

func NewStoreSink(repo Repository) *StoreSink {
	return &StoreSink{repo: repo}
}

func (s *StoreSink) Name() string { return "store" }

func (s *StoreSink) Deliver(ctx context.Context, evt Event) error {
	data, err := json.Marshal(evt.Data)
	if err != nil {
		return errors.Wrap(err, "failed to encode event data")
	}
	return s.repo.Save(ctx, &Record{
		ID:        evt.ID,
		Type:      evt.Type,
		Component: evt.Component,
		Data:      data,
		EmittedAt: evt.EmittedAt,
	})
}
