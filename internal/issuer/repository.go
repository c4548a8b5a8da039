package issuer

import (
	"context"
	"math"
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

// Repository stores projects, mints and the issuer state. Writes are expected
// to run inside one txn.Executor operation.
type Repository interface {
	State(ctx context.Context) (*State, error)
	SetPaused(ctx context.Context, paused bool) error

	// CreateProject stores a project under the next sequential id.
	CreateProject(ctx context.Context, owner common.Address, dataHash string, createdAt time.Time) (*Project, error)
	// GetProject returns nil when id was never assigned.
	GetProject(ctx context.Context, id uint64) (*Project, error)

	// CreateMint assigns count consecutive token ids starting at the next free one.
	CreateMint(ctx context.Context, projectID uint64, to common.Address, count uint64, mintedAt time.Time) (*Mint, error)
	MintsOf(ctx context.Context, owner common.Address) ([]Mint, error)
	// ListMints returns every mint in issuance order.
	ListMints(ctx context.Context) ([]Mint, error)
	// MintOfToken returns nil when tokenID was never issued.
	MintOfToken(ctx context.Context, tokenID uint64) (*Mint, error)
}

// Ids live in BIGINT columns, so larger ones cannot have been assigned.
const maxStoredID = math.MaxInt64

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) loadState(db *gorm.DB, forUpdate bool) (*IssuerState, error) {
	row := IssuerState{ID: stateRowID}
	query := db
	if forUpdate {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := query.Where(IssuerState{ID: stateRowID}).FirstOrCreate(&row).Error; err != nil {
		return nil, errors.Wrap(err, "failed to load issuer state")
	}
	return &row, nil
}

func (r *gormRepository) State(ctx context.Context) (*State, error) {
	row, err := r.loadState(txn.DB(ctx, r.db), false)
	if err != nil {
		return nil, err
	}
	return &State{ProjectCount: row.NextProjectID, TokenCount: row.NextTokenID, Paused: row.Paused}, nil
}

func (r *gormRepository) SetPaused(ctx context.Context, paused bool) error {
	db := txn.DB(ctx, r.db)
	if _, err := r.loadState(db, true); err != nil {
		return err
	}
	err := db.Model(&IssuerState{}).Where("id = ?", stateRowID).Update("paused", paused).Error
	return errors.Wrap(err, "failed to update pause flag")
}

func (r *gormRepository) CreateProject(ctx context.Context, owner common.Address, dataHash string, createdAt time.Time) (*Project, error) {
	db := txn.DB(ctx, r.db)
	state, err := r.loadState(db, true)
	if err != nil {
		return nil, err
	}

	row := IssuerProject{
		ID:        state.NextProjectID,
		Owner:     owner.Hex(),
		DataHash:  dataHash,
		CreatedAt: createdAt,
	}
	if err := db.Create(&row).Error; err != nil {
		return nil, errors.Wrap(err, "failed to create project")
	}
	err = db.Model(&IssuerState{}).Where("id = ?", stateRowID).
		Update("next_project_id", state.NextProjectID+1).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to advance project counter")
	}
	return row.toDomain(), nil
}

func (r *gormRepository) GetProject(ctx context.Context, id uint64) (*Project, error) {
	if id > maxStoredID {
		return nil, nil
	}
	var row IssuerProject
	err := txn.DB(ctx, r.db).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load project")
	}
	return row.toDomain(), nil
}

func (r *gormRepository) CreateMint(ctx context.Context, projectID uint64, to common.Address, count uint64, mintedAt time.Time) (*Mint, error) {
	db := txn.DB(ctx, r.db)
	state, err := r.loadState(db, true)
	if err != nil {
		return nil, err
	}

	row := IssuerMint{
		ID:           state.NextMintID,
		ProjectID:    projectID,
		To:           to.Hex(),
		FirstTokenID: state.NextTokenID,
		Count:        count,
		MintedAt:     mintedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		return nil, errors.Wrap(err, "failed to create mint")
	}
	err = db.Model(&IssuerState{}).Where("id = ?", stateRowID).Updates(map[string]any{
		"next_token_id": state.NextTokenID + count,
		"next_mint_id":  state.NextMintID + 1,
	}).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to advance token counter")
	}
	mint := row.toDomain()
	return &mint, nil
}

func (r *gormRepository) MintsOf(ctx context.Context, owner common.Address) ([]Mint, error) {
	var rows []IssuerMint
	err := txn.DB(ctx, r.db).Where("to_address = ?", owner.Hex()).Order("first_token_id ASC").Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list mints")
	}
	return lo.Map(rows, func(m IssuerMint, _ int) Mint { return m.toDomain() }), nil
}

func (r *gormRepository) ListMints(ctx context.Context) ([]Mint, error) {
	var rows []IssuerMint
	if err := txn.DB(ctx, r.db).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list mints")
	}
	return lo.Map(rows, func(m IssuerMint, _ int) Mint { return m.toDomain() }), nil
}

func (r *gormRepository) MintOfToken(ctx context.Context, tokenID uint64) (*Mint, error) {
	if tokenID > maxStoredID {
		return nil, nil
	}
	var row IssuerMint
	err := txn.DB(ctx, r.db).
		Where("first_token_id <= ?", tokenID).
		Order("first_token_id DESC").
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load mint")
	}
	mint := row.toDomain()
	if !mint.Contains(tokenID) {
		return nil, nil
	}
	return &mint, nil
}

type memoryRepository struct {
	mu       sync.RWMutex
	state    State
	projects []Project
	mints    []Mint
}

// NewMemoryRepository keeps the issuer in process memory.
func NewMemoryRepository() Repository {
	return &memoryRepository{}
}

func (r *memoryRepository) State(context.Context) (*State, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := r.state
	return &s, nil
}

func (r *memoryRepository) SetPaused(_ context.Context, paused bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.Paused = paused
	return nil
}

func (r *memoryRepository) CreateProject(_ context.Context, owner common.Address, dataHash string, createdAt time.Time) (*Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := Project{ID: r.state.ProjectCount, Owner: owner, DataHash: dataHash, CreatedAt: createdAt}
	r.projects = append(r.projects, p)
	r.state.ProjectCount++
	return &p, nil
}

func (r *memoryRepository) GetProject(_ context.Context, id uint64) (*Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if id >= uint64(len(r.projects)) {
		return nil, nil
	}
	p := r.projects[id]
	return &p, nil
}

func (r *memoryRepository) CreateMint(_ context.Context, projectID uint64, to common.Address, count uint64, mintedAt time.Time) (*Mint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := Mint{
		ID:           uint64(len(r.mints)),
		ProjectID:    projectID,
		To:           to,
		FirstTokenID: r.state.TokenCount,
		Count:        count,
		MintedAt:     mintedAt,
	}
	r.mints = append(r.mints, m)
	r.state.TokenCount += count
	return &m, nil
}

func (r *memoryRepository) MintsOf(_ context.Context, owner common.Address) ([]Mint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Filter(r.mints, func(m Mint, _ int) bool { return m.To == owner }), nil
}

func (r *memoryRepository) ListMints(context.Context) ([]Mint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Mint(nil), r.mints...), nil
}

func (r *memoryRepository) MintOfToken(_ context.Context, tokenID uint64) (*Mint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// mints are appended in token id order
	i := sort.Search(len(r.mints), func(i int) bool {
		return r.mints[i].FirstTokenID+r.mints[i].Count > tokenID
	})
	if i == len(r.mints) || !r.mints[i].Contains(tokenID) {
		return nil, nil
	}
	m := r.mints[i]
	return &m, nil
}
