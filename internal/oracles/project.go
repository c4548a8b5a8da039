package oracles

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"carbon-scribe/credit-issuer/credit-issuer-backend/internal/events"
	"carbon-scribe/credit-issuer/credit-issuer-backend/internal/metrics"
	"carbon-scribe/credit-issuer/credit-issuer-backend/internal/trust"
	"carbon-scribe/credit-issuer/credit-issuer-backend/pkg/errs"
	"carbon-scribe/credit-issuer/credit-issuer-backend/pkg/txn"
)

var ErrProjectNotRegistered = errs.New(errs.KindNotRegistered, "Project not registered")

// ProjectOracle holds energy produced and emissions produced per project identity.
type ProjectOracle struct {
	*trust.Registry

	repo      ProjectRepository
	exec      txn.Executor
	publisher events.Publisher
	metrics   *metrics.Recorder
	logger    *zap.Logger
}

func NewProjectOracle(
	registry *trust.Registry,
	repo ProjectRepository,
	exec txn.Executor,
	publisher events.Publisher,
	recorder *metrics.Recorder,
	logger *zap.Logger,
) *ProjectOracle {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProjectOracle{
		Registry:  registry,
		repo:      repo,
		exec:      exec,
		publisher: publisher,
		metrics:   recorder,
		logger:    logger.With(zap.String("component", ProjectRegistryName)),
	}
}

// RegisterProject marks project as registered. Anyone may call it; repeated
// registration is a no-op and keeps the stored data.
func (o *ProjectOracle) RegisterProject(ctx context.Context, caller, project common.Address) error {
	var created bool
	err := o.exec.Execute(ctx, func(ctx context.Context) error {
		existing, err := o.repo.Get(ctx, project)
		if err != nil {
			return err
		}
		if existing != nil && existing.Registered {
			return nil
		}
		created = true
		if err := o.repo.Register(ctx, project); err != nil {
			return err
		}
		txn.AfterCommit(ctx, func(ctx context.Context) {
			o.publisher.Publish(ctx, events.OracleProjectRegistered(project))
		})
		return nil
	})
	o.metrics.Observe(ProjectRegistryName, "register_project", err)
	if err != nil {
		return err
	}
	if created {
		o.logger.Info("Project registered", zap.String("project", project.Hex()), zap.String("caller", caller.Hex()))
	}
	return nil
}

// UpdateProjectData overwrites both quantities of a registered project.
func (o *ProjectOracle) UpdateProjectData(ctx context.Context, caller, project common.Address, energyProduced, emissionsProduced *uint256.Int) error {
	energy, emissions := energyProduced.Clone(), emissionsProduced.Clone()
	err := o.exec.Execute(ctx, func(ctx context.Context) error {
		if err := o.RequireTrusted(ctx, caller); err != nil {
			return err
		}
		existing, err := o.repo.Get(ctx, project)
		if err != nil {
			return err
		}
		if existing == nil || !existing.Registered {
			return ErrProjectNotRegistered
		}
		if err := o.repo.UpdateData(ctx, project, energy, emissions); err != nil {
			return err
		}
		txn.AfterCommit(ctx, func(ctx context.Context) {
			o.publisher.Publish(ctx, events.ProjectDataUpdated(caller, project, energy, emissions))
		})
		return nil
	})
	o.metrics.Observe(ProjectRegistryName, "update_project_data", err)
	if err != nil {
		o.logger.Warn("Project data update rejected",
			zap.String("caller", caller.Hex()),
			zap.String("project", project.Hex()),
			zap.Error(err))
		return err
	}

	o.logger.Info("Project data updated",
		zap.String("project", project.Hex()),
		zap.String("energy_produced", energy.Dec()),
		zap.String("emissions_produced", emissions.Dec()))
	return nil
}

// Project returns the record of project, with zero quantities when unregistered.
func (o *ProjectOracle) Project(ctx context.Context, project common.Address) (*ProjectRecord, error) {
	rec, err := o.repo.Get(ctx, project)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return &ProjectRecord{
			Address:           project,
			EnergyProduced:    uint256.NewInt(0),
			EmissionsProduced: uint256.NewInt(0),
		}, nil
	}
	return rec, nil
}

func (o *ProjectOracle) IsRegistered(ctx context.Context, project common.Address) (bool, error) {
	rec, err := o.Project(ctx, project)
	if err != nil {
		return false, err
	}
	return rec.Registered, nil
}

func (o *ProjectOracle) GetEnergyProduced(ctx context.Context, project common.Address) (*uint256.Int, error) {
	rec, err := o.Project(ctx, project)
	if err != nil {
		return nil, err
	}
	return rec.EnergyProduced, nil
}

func (o *ProjectOracle) GetProjectEmissionsData(ctx context.Context, project common.Address) (*uint256.Int, error) {
	rec, err := o.Project(ctx, project)
	if err != nil {
		return nil, err
	}
	return rec.EmissionsProduced, nil
}
