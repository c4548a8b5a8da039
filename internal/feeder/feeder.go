// Package feeder imports the average emissions factor from an HTTP endpoint on
// a cron schedule and publishes it to the average emissions oracle.
package feeder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"carbon-scribe/credit-issuer/credit-issuer-backend/internal/metrics"
)

// FactorPublisher is the oracle write the feeder performs.
type FactorPublisher interface {
	UpdateAverageEmissionsFactor(ctx context.Context, caller common.Address, value *uint256.Int) error
}

// Config configures a Feeder.
type Config struct {
	Schedule string
	URL      string
	// Source is the trusted source identity the feeder writes as.
	Source  common.Address
	Timeout time.Duration
}

type payload struct {
	AverageEmissionsFactor json.RawMessage `json:"average_emissions_factor"`
}

// Feeder runs the import job
type Feeder struct {
	cron    *cron.Cron
	client  *http.Client
	config  Config
	oracle  FactorPublisher
	metrics *metrics.Recorder
	logger  *zap.Logger
	mu      sync.Mutex
	running bool
}

func New(config Config, oracle FactorPublisher, recorder *metrics.Recorder, logger *zap.Logger) *Feeder {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Feeder{
		cron:    cron.New(),
		client:  &http.Client{Timeout: config.Timeout},
		config:  config,
		oracle:  oracle,
		metrics: recorder,
		logger:  logger.With(zap.String("component", "feeder")),
	}
}

// Start schedules the job. Runs stop when ctx is cancelled or Stop is called.
func (f *Feeder) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running {
		return fmt.Errorf("feeder already running")
	}

	_, err := f.cron.AddFunc(f.config.Schedule, func() {
		if ctx.Err() != nil {
			return
		}
		_ = f.RunOnce(ctx)
	})
	if err != nil {
		return errors.Wrapf(err, "invalid feeder schedule %q", f.config.Schedule)
	}

	f.logger.Info("Starting feeder", zap.String("schedule", f.config.Schedule), zap.String("url", f.config.URL))
	f.cron.Start()
	f.running = true
	return nil
}

// Stop waits for a running import to finish.
func (f *Feeder) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.running {
		return
	}

	f.logger.Info("Stopping feeder")
	<-f.cron.Stop().Done()
	f.running = false
}

// RunOnce fetches the factor and publishes it.
func (f *Feeder) RunOnce(ctx context.Context) error {
	value, err := f.fetch(ctx)
	if err == nil {
		err = f.oracle.UpdateAverageEmissionsFactor(ctx, f.config.Source, value)
	}
	f.metrics.FeederRun(err)
	if err != nil {
		f.logger.Error("Feeder run failed", zap.Error(err))
		return err
	}
	f.logger.Info("Feeder published average emissions factor", zap.String("value", value.Dec()))
	return nil
}

func (f *Feeder) fetch(ctx context.Context) (*uint256.Int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.config.URL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build feeder request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch average emissions factor")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("factor endpoint returned %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read factor response")
	}
	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, errors.Wrap(err, "failed to decode factor response")
	}
	return parseFactor(p.AverageEmissionsFactor)
}

// parseFactor accepts the factor as a JSON string or a JSON integer.
func parseFactor(raw json.RawMessage) (*uint256.Int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, errors.New("factor response has no average_emissions_factor")
	}
	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, errors.Wrap(err, "failed to decode factor")
		}
	}
	if text == "" {
		return nil, errors.New("factor is empty")
	}
	value, err := uint256.FromDecimal(text)
	if err != nil {
		return nil, errors.Wrapf(err, "factor %q is not a non-negative integer", text)
	}
	return value, nil
}
