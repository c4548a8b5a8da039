package events

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"gorm.io/datatypes"
)

// Type names an emitted event.
type Type string

const (
	TypeProjectRegistered             Type = "ProjectRegistered"
	TypeCarbonCreditsMinted           Type = "CarbonCreditsMinted"
	TypePaused                        Type = "Paused"
	TypeUnpaused                      Type = "Unpaused"
	TypeTrustedSourceAdded            Type = "TrustedSourceAdded"
	TypeTrustedSourceRemoved          Type = "TrustedSourceRemoved"
	TypeAverageEmissionsFactorUpdated Type = "AverageEmissionsFactorUpdated"
	TypeOracleProjectRegistered       Type = "OracleProjectRegistered"
	TypeProjectDataUpdated            Type = "ProjectDataUpdated"
)

// Event is an audit-trail entry published after an operation commits.
type Event struct {
	ID        uuid.UUID      `json:"id"`
	Type      Type           `json:"type"`
	Component string         `json:"component"`
	Data      map[string]any `json:"data"`
	EmittedAt time.Time      `json:"emitted_at"`
}

// Record is the persisted form of an Event.
type Record struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Type      Type           `gorm:"not null;index" json:"type"`
	Component string         `gorm:"not null;index" json:"component"`
	Data      datatypes.JSON `json:"data"`
	EmittedAt time.Time      `gorm:"not null;index" json:"emitted_at"`
}

func (Record) TableName() string {
	return "chain_events"
}

// ProjectRegistered is emitted by the issuer for every new project.
func ProjectRegistered(id uint64, owner common.Address, dataHash string) Event {
	return Event{
		Type:      TypeProjectRegistered,
		Component: "issuer",
		Data: map[string]any{
			"id":        id,
			"owner":     owner.Hex(),
			"data_hash": dataHash,
		},
	}
}

// CarbonCreditsMinted is emitted for every successful mint.
func CarbonCreditsMinted(projectID uint64, to common.Address, tokensMinted uint64, timestamp time.Time) Event {
	return Event{
		Type:      TypeCarbonCreditsMinted,
		Component: "issuer",
		Data: map[string]any{
			"project_id":    projectID,
			"to":            to.Hex(),
			"tokens_minted": tokensMinted,
			"timestamp":     timestamp.Unix(),
		},
	}
}

func Paused(admin common.Address) Event {
	return Event{Type: TypePaused, Component: "issuer", Data: map[string]any{"account": admin.Hex()}}
}

func Unpaused(admin common.Address) Event {
	return Event{Type: TypeUnpaused, Component: "issuer", Data: map[string]any{"account": admin.Hex()}}
}

func TrustedSourceAdded(registry string, source common.Address) Event {
	return Event{Type: TypeTrustedSourceAdded, Component: registry, Data: map[string]any{"source": source.Hex()}}
}

func TrustedSourceRemoved(registry string, source common.Address) Event {
	return Event{Type: TypeTrustedSourceRemoved, Component: registry, Data: map[string]any{"source": source.Hex()}}
}

func AverageEmissionsFactorUpdated(source common.Address, value *uint256.Int) Event {
	return Event{
		Type:      TypeAverageEmissionsFactorUpdated,
		Component: "average_oracle",
		Data:      map[string]any{"source": source.Hex(), "value": value.Dec()},
	}
}

func OracleProjectRegistered(project common.Address) Event {
	return Event{
		Type:      TypeOracleProjectRegistered,
		Component: "project_oracle",
		Data:      map[string]any{"project": project.Hex()},
	}
}

func ProjectDataUpdated(source, project common.Address, energy, emissions *uint256.Int) Event {
	return Event{
		Type:      TypeProjectDataUpdated,
		Component: "project_oracle",
		Data: map[string]any{
			"source":             source.Hex(),
			"project":            project.Hex(),
			"energy_produced":    energy.Dec(),
			"emissions_produced": emissions.Dec(),
		},
	}
}
