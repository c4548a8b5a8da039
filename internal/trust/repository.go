package trust

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"carbon-scribe/credit-issuer/credit-issuer-backend/pkg/txn"
)

// TrustedSource is one whitelist entry of a registry.
type TrustedSource struct {
	Registry  string    `gorm:"primaryKey;size:64" json:"registry"`
	Address   string    `gorm:"primaryKey;size:42" json:"address"`
	Trusted   bool      `gorm:"not null;default:false" json:"trusted"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Repository interface {
	SetTrusted(ctx context.Context, registry string, source common.Address, trusted bool) error
	IsTrusted(ctx context.Context, registry string, source common.Address) (bool, error)
	ListTrusted(ctx context.Context, registry string) ([]common.Address, error)
}

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) SetTrusted(ctx context.Context, registry string, source common.Address, trusted bool) error {
	entry := TrustedSource{
		Registry:  registry,
		Address:   source.Hex(),
		Trusted:   trusted,
		UpdatedAt: time.Now().UTC(),
	}
	err := txn.DB(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "registry"}, {Name: "address"}},
		DoUpdates: clause.AssignmentColumns([]string{"trusted", "updated_at"}),
	}).Create(&entry).Error
	return errors.Wrap(err, "failed to store trusted source")
}

func (r *gormRepository) IsTrusted(ctx context.Context, registry string, source common.Address) (bool, error) {
	var entry TrustedSource
	err := txn.DB(ctx, r.db).
		Where("registry = ? AND address = ?", registry, source.Hex()).
		Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "failed to load trusted source")
	}
	return entry.Trusted, nil
}

func (r *gormRepository) ListTrusted(ctx context.Context, registry string) ([]common.Address, error) {
	var entries []TrustedSource
	err := txn.DB(ctx, r.db).
		Where("registry = ? AND trusted = ?", registry, true).
		Order("address ASC").
		Find(&entries).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list trusted sources")
	}
	return lo.Map(entries, func(e TrustedSource, _ int) common.Address {
		return common.HexToAddress(e.Address)
	}), nil
}

type memoryRepository struct {
	mu      sync.RWMutex
	entries map[string]map[common.Address]bool
}

// NewMemoryRepository keeps whitelists in process memory.
func NewMemoryRepository() Repository {
	return &memoryRepository{entries: make(map[string]map[common.Address]bool)}
}

func (r *memoryRepository) SetTrusted(_ context.Context, registry string, source common.Address, trusted bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.entries[registry]
	if !ok {
		set = make(map[common.Address]bool)
		r.entries[registry] = set
	}
	set[source] = trusted
	return nil
}

func (r *memoryRepository) IsTrusted(_ context.Context, registry string, source common.Address) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[registry][source], nil
}

func (r *memoryRepository) ListTrusted(_ context.Context, registry string) ([]common.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	trusted := lo.Keys(lo.PickBy(r.entries[registry], func(_ common.Address, v bool) bool { return v }))
	sort.Slice(trusted, func(i, j int) bool {
		return trusted[i].Hex() < trusted[j].Hex()
	})
	return trusted, nil
}
