package issuer

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Project is a registered project. Immutable once created.
type Project struct {
	ID        uint64         `json:"id"`
	Owner     common.Address `json:"owner"`
	DataHash  string         `json:"data_hash"`
	CreatedAt time.Time      `json:"created_at"`
}

// Mint is one successful issuance: Count tokens with consecutive ids starting
// at FirstTokenID, all owned by To.
type Mint struct {
	ID           uint64         `json:"id"`
	ProjectID    uint64         `json:"project_id"`
	To           common.Address `json:"to"`
	FirstTokenID uint64         `json:"first_token_id"`
	Count        uint64         `json:"count"`
	MintedAt     time.Time      `json:"minted_at"`
}

// Contains reports whether tokenID was issued by m.
func (m Mint) Contains(tokenID uint64) bool {
	return tokenID >= m.FirstTokenID && tokenID-m.FirstTokenID < m.Count
}

// Token is a single credit token.
type Token struct {
	ID        uint64         `json:"id"`
	ProjectID uint64         `json:"project_id"`
	Owner     common.Address `json:"owner"`
	MintedAt  time.Time      `json:"minted_at"`
}

// State holds the issuer counters and the pause flag.
type State struct {
	ProjectCount uint64
	TokenCount   uint64
	Paused       bool
}

// Eligibility is the outcome of the minting computation for one project.
type Eligibility struct {
	ProjectID         uint64         `json:"project_id"`
	Owner             common.Address `json:"owner"`
	EnergyProduced    *uint256.Int   `json:"energy_produced"`
	EmissionsProduced *uint256.Int   `json:"emissions_produced"`
	Factor            *uint256.Int   `json:"average_emissions_factor"`
	AllowedEmissions  *uint256.Int   `json:"allowed_emissions"`
	// Reduction is zero when emissions reach or exceed the allowance.
	Reduction *uint256.Int `json:"reduction"`
	Tokens    uint64       `json:"tokens"`
}

// IssuerProject is the persisted form of Project.
type IssuerProject struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement:false"`
	Owner     string `gorm:"size:42;not null;index"`
	DataHash  string `gorm:"size:64;not null"`
	CreatedAt time.Time
}

func (IssuerProject) TableName() string {
	return "issuer_projects"
}

// IssuerMint is the persisted form of Mint.
type IssuerMint struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement:false"`
	ProjectID    uint64 `gorm:"not null;index"`
	To           string `gorm:"column:to_address;size:42;not null;index"`
	FirstTokenID uint64 `gorm:"not null;uniqueIndex"`
	Count        uint64 `gorm:"not null"`
	MintedAt     time.Time
}

func (IssuerMint) TableName() string {
	return "issuer_mints"
}

// IssuerState is the singleton row with the counters and the pause flag.
type IssuerState struct {
	ID            uint   `gorm:"primaryKey"`
	NextProjectID uint64 `gorm:"not null;default:0"`
	NextTokenID   uint64 `gorm:"not null;default:0"`
	NextMintID    uint64 `gorm:"not null;default:0"`
	Paused        bool   `gorm:"not null;default:false"`
	UpdatedAt     time.Time
}

func (IssuerState) TableName() string {
	return "issuer_state"
}

const stateRowID = 1

func (p IssuerProject) toDomain() *Project {
	return &Project{
		ID:        p.ID,
		Owner:     common.HexToAddress(p.Owner),
		DataHash:  p.DataHash,
		CreatedAt: p.CreatedAt,
	}
}

func (m IssuerMint) toDomain() Mint {
	return Mint{
		ID:           m.ID,
		ProjectID:    m.ProjectID,
		To:           common.HexToAddress(m.To),
		FirstTokenID: m.FirstTokenID,
		Count:        m.Count,
		MintedAt:     m.MintedAt,
	}
}
