package oracles

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"carbon-scribe/credit-issuer/credit-issuer-backend/pkg/txn"
)

type AverageRepository interface {
	GetFactor(ctx context.Context) (*uint256.Int, error)
	SetFactor(ctx context.Context, value *uint256.Int, source common.Address) error
}

type ProjectRepository interface {
	// Get returns nil when the identity was never registered.
	Get(ctx context.Context, project common.Address) (*ProjectRecord, error)
	Register(ctx context.Context, project common.Address) error
	UpdateData(ctx context.Context, project common.Address, energy, emissions *uint256.Int) error
}

type gormAverageRepository struct {
	db *gorm.DB
}

func NewAverageRepository(db *gorm.DB) AverageRepository {
	return &gormAverageRepository{db: db}
}

func (r *gormAverageRepository) GetFactor(ctx context.Context) (*uint256.Int, error) {
	var row AverageEmissions
	err := txn.DB(ctx, r.db).Where("id = ?", averageRowID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return uint256.NewInt(0), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load average emissions factor")
	}
	return decodeAmount(row.Factor)
}

func (r *gormAverageRepository) SetFactor(ctx context.Context, value *uint256.Int, source common.Address) error {
	row := AverageEmissions{
		ID:        averageRowID,
		Factor:    value.Dec(),
		UpdatedBy: source.Hex(),
		UpdatedAt: time.Now().UTC(),
	}
	err := txn.DB(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"factor", "updated_by", "updated_at"}),
	}).Create(&row).Error
	return errors.Wrap(err, "failed to store average emissions factor")
}

type gormProjectRepository struct {
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &gormProjectRepository{db: db}
}

func (r *gormProjectRepository) Get(ctx context.Context, project common.Address) (*ProjectRecord, error) {
	var row OracleProject
	err := txn.DB(ctx, r.db).Where("address = ?", project.Hex()).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load oracle project")
	}

	energy, err := decodeAmount(row.EnergyProduced)
	if err != nil {
		return nil, err
	}
	emissions, err := decodeAmount(row.EmissionsProduced)
	if err != nil {
		return nil, err
	}
	return &ProjectRecord{
		Address:           project,
		Registered:        row.Registered,
		EnergyProduced:    energy,
		EmissionsProduced: emissions,
	}, nil
}

// Register inserts the row if absent and leaves existing data untouched.
func (r *gormProjectRepository) Register(ctx context.Context, project common.Address) error {
	row := OracleProject{
		Address:           project.Hex(),
		Registered:        true,
		EnergyProduced:    "0",
		EmissionsProduced: "0",
	}
	err := txn.DB(ctx, r.db).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
	return errors.Wrap(err, "failed to register oracle project")
}

func (r *gormProjectRepository) UpdateData(ctx context.Context, project common.Address, energy, emissions *uint256.Int) error {
	err := txn.DB(ctx, r.db).Model(&OracleProject{}).
		Where("address = ?", project.Hex()).
		Updates(map[string]any{
			"energy_produced":    energy.Dec(),
			"emissions_produced": emissions.Dec(),
			"updated_at":         time.Now().UTC(),
		}).Error
	return errors.Wrap(err, "failed to update oracle project data")
}

func decodeAmount(raw string) (*uint256.Int, error) {
	v, err := uint256.FromDecimal(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "corrupt stored amount %q", raw)
	}
	return v, nil
}

type memoryAverageRepository struct {
	mu     sync.RWMutex
	factor uint256.Int
}

func NewMemoryAverageRepository() AverageRepository {
	return &memoryAverageRepository{}
}

func (r *memoryAverageRepository) GetFactor(context.Context) (*uint256.Int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.factor.Clone(), nil
}

func (r *memoryAverageRepository) SetFactor(_ context.Context, value *uint256.Int, _ common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factor.Set(value)
	return nil
}

type memoryProjectRepository struct {
	mu       sync.RWMutex
	projects map[common.Address]*ProjectRecord
}

func NewMemoryProjectRepository() ProjectRepository {
	return &memoryProjectRepository{projects: make(map[common.Address]*ProjectRecord)}
}

func (r *memoryProjectRepository) Get(_ context.Context, project common.Address) (*ProjectRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.projects[project]
	if !ok {
		return nil, nil
	}
	return &ProjectRecord{
		Address:           rec.Address,
		Registered:        rec.Registered,
		EnergyProduced:    rec.EnergyProduced.Clone(),
		EmissionsProduced: rec.EmissionsProduced.Clone(),
	}, nil
}

func (r *memoryProjectRepository) Register(_ context.Context, project common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.projects[project]; ok {
		return nil
	}
	r.projects[project] = &ProjectRecord{
		Address:           project,
		Registered:        true,
		EnergyProduced:    uint256.NewInt(0),
		EmissionsProduced: uint256.NewInt(0),
	}
	return nil
}

func (r *memoryProjectRepository) UpdateData(_ context.Context, project common.Address, energy, emissions *uint256.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.projects[project]
	if !ok {
		return errors.Errorf("oracle project %s not stored", project.Hex())
	}
	rec.EnergyProduced = energy.Clone()
	rec.EmissionsProduced = emissions.Clone()
	return nil
}
