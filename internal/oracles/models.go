package oracles

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Whitelist names, also used as metric and event component labels.
const (
	AverageRegistryName = "average_oracle"
	ProjectRegistryName = "project_oracle"
)

// ProjectRecord is the emissions data held for one project identity.
type ProjectRecord struct {
	Address           common.Address `json:"address"`
	Registered        bool           `json:"registered"`
	EnergyProduced    *uint256.Int   `json:"energy_produced"`
	EmissionsProduced *uint256.Int   `json:"emissions_produced"`
}

// AverageEmissions is the singleton row holding the global factor.
type AverageEmissions struct {
	ID        uint      `gorm:"primaryKey"`
	Factor    string    `gorm:"type:numeric(78,0);not null;default:0"`
	UpdatedBy string    `gorm:"size:42"`
	UpdatedAt time.Time
}

func (AverageEmissions) TableName() string {
	return "average_emissions"
}

// OracleProject is the persisted form of ProjectRecord.
type OracleProject struct {
	Address           string `gorm:"primaryKey;size:42"`
	Registered        bool   `gorm:"not null;default:false"`
	EnergyProduced    string `gorm:"type:numeric(78,0);not null;default:0"`
	EmissionsProduced string `gorm:"type:numeric(78,0);not null;default:0"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (OracleProject) TableName() string {
	return "oracle_projects"
}

const averageRowID = 1
