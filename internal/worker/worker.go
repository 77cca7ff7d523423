package worker

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/appclacks/sloworker/pkg/probe"
	"github.com/appclacks/sloworker/pkg/slo"
	"github.com/appclacks/sloworker/pkg/slo/aggregates"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	DefaultInterval      = 5 * time.Second
	DefaultCommitRetries = 3
)

type Configuration struct {
	SLOFile       string              `yaml:"slo-file" validate:"required"`
	Interval      time.Duration       `validate:"gt=0"`
	CommitRetries uint64              `yaml:"commit-retries"`
	Probe         probe.Configuration `yaml:",inline"`
}

type State int32

const (
	Starting State = iota
	LoadingConfig
	Probing
	Aggregating
	Sleeping
	Stopped
)

func (s State) String() string {
	switch s {
	case Starting:
		return "starting"
	case LoadingConfig:
		return "loading-config"
	case Probing:
		return "probing"
	case Aggregating:
		return "aggregating"
	case Sleeping:
		return "sleeping"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

type Prober interface {
	ProbeAll(ctx context.Context, urls []string) []aggregates.ProbeResult
}

type Recorder interface {
	RecordBatch(ctx context.Context, outcomes []aggregates.Outcome) error
}

type Worker struct {
	logger      *slog.Logger
	config      Configuration
	definitions *slo.ConfigStore
	prober      Prober
	recorder    Recorder
	state       atomic.Int32
	wake        chan struct{}

	iterationsCounter *prometheus.CounterVec
	reloadsCounter    *prometheus.CounterVec
	probesCounter     *prometheus.CounterVec
}

func New(logger *slog.Logger, config Configuration, definitions *slo.ConfigStore, prober Prober, recorder Recorder, registry prometheus.Registerer) (*Worker, error) {
	iterationsCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slo_worker_iterations_total",
			Help: "Count the number of worker iterations",
		},
		[]string{"status"})
	reloadsCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slo_config_reloads_total",
			Help: "Count the number of SLO file reloads",
		},
		[]string{"status"})
	probesCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slo_probes_total",
			Help: "Count the number of classified probes",
		},
		[]string{"url", "successful", "fast"})
	for _, collector := range []prometheus.Collector{iterationsCounter, reloadsCounter, probesCounter} {
		err := registry.Register(collector)
		if err != nil {
			return nil, err
		}
	}
	if config.Interval == 0 {
		config.Interval = DefaultInterval
	}
	w := &Worker{
		logger:            logger,
		config:            config,
		definitions:       definitions,
		prober:            prober,
		recorder:          recorder,
		wake:              make(chan struct{}, 1),
		iterationsCounter: iterationsCounter,
		reloadsCounter:    reloadsCounter,
		probesCounter:     probesCounter,
	}
	w.setState(Starting)
	return w, nil
}

func (w *Worker) setState(state State) {
	w.state.Store(int32(state))
}

func (w *Worker) State() State {
	return State(w.state.Load())
}

// Wake interrupts the current sleep, if any. It never blocks.
func (w *Worker) Wake() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Run loops until ctx is cancelled or an iteration fails. Cancelling ctx
// does not abort the iteration in progress: it completes before Run returns.
func (w *Worker) Run(ctx context.Context) error {
	defer w.setState(Stopped)
	w.logger.Info(fmt.Sprintf("worker starting, refresh interval %s", w.config.Interval))
	for {
		if ctx.Err() != nil {
			w.logger.Info("worker stopped")
			return nil
		}
		err := w.Iterate(context.WithoutCancel(ctx))
		if err != nil {
			w.iterationsCounter.With(prometheus.Labels{"status": "failure"}).Inc()
			return err
		}
		w.iterationsCounter.With(prometheus.Labels{"status": "success"}).Inc()
		w.setState(Sleeping)
		timer := time.NewTimer(w.config.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-w.wake:
			timer.Stop()
			w.logger.Debug("worker woken up before the end of its interval")
		case <-timer.C:
		}
	}
}

// Iterate runs a single load, probe and aggregate pass.
func (w *Worker) Iterate(ctx context.Context) error {
	round := uuid.NewString()
	logger := w.logger.With("round", round)

	w.setState(LoadingConfig)
	changed, err := w.definitions.Refresh()
	if err != nil {
		w.reloadsCounter.With(prometheus.Labels{"status": "failure"}).Inc()
		return fmt.Errorf("fail to load SLO file %s: %w", w.definitions.Path(), err)
	}
	definitions := w.definitions.Definitions()
	if changed {
		w.reloadsCounter.With(prometheus.Labels{"status": "success"}).Inc()
		logger.Info(fmt.Sprintf("loaded %d SLO definitions from %s", len(definitions), w.definitions.Path()))
	}

	w.setState(Probing)
	results := w.prober.ProbeAll(ctx, slo.URLs(definitions))

	w.setState(Aggregating)
	outcomes := slo.ClassifyAll(results)
	for _, outcome := range outcomes {
		w.probesCounter.With(prometheus.Labels{
			"url":        outcome.URL,
			"successful": strconv.FormatBool(outcome.Successful),
			"fast":       strconv.FormatBool(outcome.Fast),
		}).Inc()
	}
	if len(outcomes) == 0 {
		return nil
	}
	retry := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), w.config.CommitRetries), ctx)
	err = backoff.RetryNotify(
		func() error {
			return w.recorder.RecordBatch(ctx, outcomes)
		},
		retry,
		func(err error, next time.Duration) {
			logger.Warn(fmt.Sprintf("fail to record SLIs, retrying in %s: %s", next, err.Error()))
		})
	if err != nil {
		return fmt.Errorf("fail to record SLIs: %w", err)
	}
	logger.Debug(fmt.Sprintf("recorded %d probe outcomes", len(outcomes)))
	return nil
}
