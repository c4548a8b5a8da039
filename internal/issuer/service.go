// Package issuer registers projects, decides credit eligibility from the
// emissions oracles and mints credit tokens. A pause switch held by the admin
// stops project intake.
package issuer

import (
	"context"
	"math"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"carbon-scribe/credit-issuer/credit-issuer-backend/internal/events"
	"carbon-scribe/credit-issuer/credit-issuer-backend/internal/metrics"
	"carbon-scribe/credit-issuer/credit-issuer-backend/pkg/errs"
	"carbon-scribe/credit-issuer/credit-issuer-backend/pkg/txn"
	"carbon-scribe/credit-issuer/credit-issuer-backend/pkg/workflows"
)

const (
	component = "issuer"

	DefaultName   = "CarbonCreditNFT"
	DefaultSymbol = "CCNFT"

	dataHashLength     = 64
	defaultTokensLimit = 1000
)

var (
	ErrInvalidDataHash  = errs.New(errs.KindInvalidInput, "Data hash must be a 64 character hex string")
	ErrNotAdmin         = errs.New(errs.KindUnauthorized, "Only admin can call this function")
	ErrEnforcedPause    = errs.New(errs.KindSystemPaused, "EnforcedPause")
	ErrAlreadyPaused    = errs.New(errs.KindAlreadyPaused, "EnforcedPause")
	ErrExpectedPause    = errs.New(errs.KindNotPaused, "ExpectedPause")
	ErrProjectNotFound  = errs.New(errs.KindNotFound, "Project does not exist")
	ErrTokenNotFound    = errs.New(errs.KindNotFound, "ERC721NonexistentToken")
	ErrInvalidRecipient = errs.New(errs.KindInvalidInput, "ERC721InvalidReceiver")
)

// EmissionsSource is the read capability the issuer needs from the oracles.
type EmissionsSource interface {
	GetEnergyProduced(ctx context.Context, project common.Address) (*uint256.Int, error)
	GetProjectEmissionsData(ctx context.Context, project common.Address) (*uint256.Int, error)
	GetAverageEmissionsFactor(ctx context.Context) (*uint256.Int, error)
}

// Service is the credit issuer.
type Service interface {
	RegisterProject(ctx context.Context, caller common.Address, dataHash string) (uint64, error)
	MintCarbonCredit(ctx context.Context, caller, to common.Address, projectID uint64) (*Mint, error)
	Pause(ctx context.Context, caller common.Address) error
	Unpause(ctx context.Context, caller common.Address) error

	EligibilityOf(ctx context.Context, projectID uint64) (*Eligibility, error)
	Project(ctx context.Context, id uint64) (*Project, error)
	ProjectCount(ctx context.Context) (uint64, error)
	Paused(ctx context.Context) (bool, error)
	BalanceOf(ctx context.Context, owner common.Address) (uint64, error)
	TokensOf(ctx context.Context, owner common.Address, limit int) ([]uint64, error)
	Mints(ctx context.Context) ([]Mint, error)
	OwnerOf(ctx context.Context, tokenID uint64) (common.Address, error)
	Token(ctx context.Context, tokenID uint64) (*Token, error)

	Name() string
	Symbol() string
	Admin() common.Address
}

// Options configures an Issuer. Zero values fall back to the defaults.
type Options struct {
	Name     string
	Symbol   string
	Admin    common.Address
	Scale    uint64
	MintUnit uint64
}

// Issuer implements Service.
type Issuer struct {
	opts      Options
	repo      Repository
	source    EmissionsSource
	exec      txn.Executor
	pause     *workflows.StateMachine
	publisher events.Publisher
	metrics   *metrics.Recorder
	logger    *zap.Logger
	now       func() time.Time
}

func NewIssuer(
	opts Options,
	repo Repository,
	source EmissionsSource,
	exec txn.Executor,
	publisher events.Publisher,
	recorder *metrics.Recorder,
	logger *zap.Logger,
) *Issuer {
	if opts.Name == "" {
		opts.Name = DefaultName
	}
	if opts.Symbol == "" {
		opts.Symbol = DefaultSymbol
	}
	if opts.Scale == 0 {
		opts.Scale = DefaultScale
	}
	if opts.MintUnit == 0 {
		opts.MintUnit = DefaultMintUnit
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Issuer{
		opts:      opts,
		repo:      repo,
		source:    source,
		exec:      exec,
		pause:     workflows.NewPauseMachine(),
		publisher: publisher,
		metrics:   recorder,
		logger:    logger.With(zap.String("component", component)),
		now:       time.Now,
	}
}

func (s *Issuer) Name() string          { return s.opts.Name }
func (s *Issuer) Symbol() string        { return s.opts.Symbol }
func (s *Issuer) Admin() common.Address { return s.opts.Admin }

// RegisterProject stores a project owned by caller and returns its id.
func (s *Issuer) RegisterProject(ctx context.Context, caller common.Address, dataHash string) (uint64, error) {
	var project *Project
	err := s.exec.Execute(ctx, func(ctx context.Context) error {
		state, err := s.repo.State(ctx)
		if err != nil {
			return err
		}
		if state.Paused {
			return ErrEnforcedPause
		}
		if len(dataHash) != dataHashLength {
			return ErrInvalidDataHash
		}
		project, err = s.repo.CreateProject(ctx, caller, dataHash, s.now().UTC())
		if err != nil {
			return err
		}
		s.publish(ctx, events.ProjectRegistered(project.ID, project.Owner, project.DataHash))
		return nil
	})
	s.metrics.Observe(component, "register_project", err)
	if err != nil {
		s.logger.Warn("Project registration rejected", zap.String("caller", caller.Hex()), zap.Error(err))
		return 0, err
	}

	s.logger.Info("Project registered", zap.Uint64("id", project.ID), zap.String("owner", caller.Hex()))
	return project.ID, nil
}

// MintCarbonCredit mints the tokens project projectID is eligible for to to.
// Anyone may call it and it runs while paused.
func (s *Issuer) MintCarbonCredit(ctx context.Context, caller, to common.Address, projectID uint64) (*Mint, error) {
	var mint *Mint
	err := s.exec.Execute(ctx, func(ctx context.Context) error {
		eligibility, err := s.evaluate(ctx, projectID)
		if err != nil {
			return err
		}
		if to == (common.Address{}) {
			return ErrInvalidRecipient
		}
		state, err := s.repo.State(ctx)
		if err != nil {
			return err
		}
		if eligibility.Tokens > math.MaxInt64-state.TokenCount {
			return ErrOverflow
		}
		mint, err = s.repo.CreateMint(ctx, projectID, to, eligibility.Tokens, s.now().UTC())
		if err != nil {
			return err
		}
		s.publish(ctx, events.CarbonCreditsMinted(projectID, to, mint.Count, mint.MintedAt))
		return nil
	})
	s.metrics.Observe(component, "mint_carbon_credit", err)
	if err != nil {
		s.logger.Warn("Mint rejected",
			zap.String("caller", caller.Hex()),
			zap.Uint64("project_id", projectID),
			zap.Error(err))
		return nil, err
	}

	s.metrics.CreditsMinted(mint.Count)
	s.logger.Info("Carbon credits minted",
		zap.Uint64("project_id", projectID),
		zap.String("to", to.Hex()),
		zap.Uint64("tokens", mint.Count),
		zap.Uint64("first_token_id", mint.FirstTokenID))
	return mint, nil
}

// EligibilityOf runs the mint computation without minting. Rule failures are
// returned alongside the quantities computed up to the failing step.
func (s *Issuer) EligibilityOf(ctx context.Context, projectID uint64) (*Eligibility, error) {
	return s.evaluate(ctx, projectID)
}

func (s *Issuer) evaluate(ctx context.Context, projectID uint64) (*Eligibility, error) {
	project, err := s.repo.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, ErrProjectNotFound
	}

	e := &Eligibility{ProjectID: projectID, Owner: project.Owner}
	if e.EnergyProduced, err = s.source.GetEnergyProduced(ctx, project.Owner); err != nil {
		return nil, err
	}
	if e.EmissionsProduced, err = s.source.GetProjectEmissionsData(ctx, project.Owner); err != nil {
		return nil, err
	}
	if e.Factor, err = s.source.GetAverageEmissionsFactor(ctx); err != nil {
		return nil, err
	}

	q, evalErr := Evaluate(e.EnergyProduced, e.EmissionsProduced, e.Factor, s.opts.Scale, s.opts.MintUnit)
	e.AllowedEmissions, e.Reduction, e.Tokens = q.AllowedEmissions, q.Reduction, q.Tokens

	s.logger.Debug("Eligibility computed",
		zap.Uint64("project_id", projectID),
		zap.String("energy_produced", e.EnergyProduced.Dec()),
		zap.String("emissions_produced", e.EmissionsProduced.Dec()),
		zap.String("average_emissions_factor", e.Factor.Dec()),
		zap.String("allowed_emissions", e.AllowedEmissions.Dec()),
		zap.String("reduction", e.Reduction.Dec()),
		zap.Uint64("tokens", e.Tokens))
	return e, evalErr
}

// Pause stops project registration.
func (s *Issuer) Pause(ctx context.Context, caller common.Address) error {
	return s.setPaused(ctx, "pause", caller, true)
}

// Unpause resumes project registration.
func (s *Issuer) Unpause(ctx context.Context, caller common.Address) error {
	return s.setPaused(ctx, "unpause", caller, false)
}

func (s *Issuer) setPaused(ctx context.Context, op string, caller common.Address, paused bool) error {
	err := s.exec.Execute(ctx, func(ctx context.Context) error {
		if caller != s.opts.Admin {
			return ErrNotAdmin
		}
		state, err := s.repo.State(ctx)
		if err != nil {
			return err
		}
		if !s.pause.CanTransition(workflows.StatusOf(state.Paused), workflows.StatusOf(paused)) {
			if state.Paused {
				return ErrAlreadyPaused
			}
			return ErrExpectedPause
		}
		if err := s.repo.SetPaused(ctx, paused); err != nil {
			return err
		}
		if paused {
			s.publish(ctx, events.Paused(caller))
		} else {
			s.publish(ctx, events.Unpaused(caller))
		}
		return nil
	})
	s.metrics.Observe(component, op, err)
	if err != nil {
		s.logger.Warn("Pause switch rejected", zap.String("caller", caller.Hex()), zap.String("op", op), zap.Error(err))
		return err
	}

	s.logger.Info("Pause switch toggled", zap.String("status", workflows.StatusOf(paused)))
	return nil
}

// publish hands evt to the publisher once the running operation commits.
func (s *Issuer) publish(ctx context.Context, evt events.Event) {
	txn.AfterCommit(ctx, func(ctx context.Context) {
		s.publisher.Publish(ctx, evt)
	})
}

func (s *Issuer) Project(ctx context.Context, id uint64) (*Project, error) {
	project, err := s.repo.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, ErrProjectNotFound
	}
	return project, nil
}

func (s *Issuer) ProjectCount(ctx context.Context) (uint64, error) {
	state, err := s.repo.State(ctx)
	if err != nil {
		return 0, err
	}
	return state.ProjectCount, nil
}

func (s *Issuer) Paused(ctx context.Context) (bool, error) {
	state, err := s.repo.State(ctx)
	if err != nil {
		return false, err
	}
	return state.Paused, nil
}

func (s *Issuer) BalanceOf(ctx context.Context, owner common.Address) (uint64, error) {
	mints, err := s.repo.MintsOf(ctx, owner)
	if err != nil {
		return 0, err
	}
	var balance uint64
	for _, m := range mints {
		balance += m.Count
	}
	return balance, nil
}

// TokensOf lists up to limit token ids owned by owner in ascending order.
// A non-positive limit uses the default of 1000.
func (s *Issuer) TokensOf(ctx context.Context, owner common.Address, limit int) ([]uint64, error) {
	if limit <= 0 {
		limit = defaultTokensLimit
	}
	mints, err := s.repo.MintsOf(ctx, owner)
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, 0)
	for _, m := range mints {
		for i := uint64(0); i < m.Count; i++ {
			if len(ids) == limit {
				return ids, nil
			}
			ids = append(ids, m.FirstTokenID+i)
		}
	}
	return ids, nil
}

// Mints returns the issuance ledger, oldest first.
func (s *Issuer) Mints(ctx context.Context) ([]Mint, error) {
	return s.repo.ListMints(ctx)
}

func (s *Issuer) OwnerOf(ctx context.Context, tokenID uint64) (common.Address, error) {
	token, err := s.Token(ctx, tokenID)
	if err != nil {
		return common.Address{}, err
	}
	return token.Owner, nil
}

func (s *Issuer) Token(ctx context.Context, tokenID uint64) (*Token, error) {
	mint, err := s.repo.MintOfToken(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	if mint == nil {
		return nil, ErrTokenNotFound
	}
	return &Token{ID: tokenID, ProjectID: mint.ProjectID, Owner: mint.To, MintedAt: mint.MintedAt}, nil
}
