package probe

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/appclacks/sloworker/pkg/slo/aggregates"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

type Configuration struct {
	// Concurrency is the maximum number of probes in flight. 1 probes the
	// targets one after the other.
	Concurrency int `validate:"gte=0"`

	// Timeout bounds a single probe. 0 keeps the http client default (no timeout).
	Timeout time.Duration `validate:"gte=0"`
}

type Prober struct {
	client        *http.Client
	concurrency   int
	logger        *slog.Logger
	probeDuration *prometheus.HistogramVec
}

func New(logger *slog.Logger, config Configuration, registry prometheus.Registerer) (*Prober, error) {
	probeDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "slo_probe_duration_seconds",
			Help:    "Duration of the SLO probes",
			Buckets: []float64{0.025, 0.05, 0.1, 0.2, 0.4, 0.8, 1, 2, 5, 10},
		},
		[]string{"url"})
	err := registry.Register(probeDuration)
	if err != nil {
		return nil, err
	}
	concurrency := config.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Prober{
		client: &http.Client{
			Timeout: config.Timeout,
		},
		concurrency:   concurrency,
		logger:        logger,
		probeDuration: probeDuration,
	}, nil
}

// ProbeAll issues one GET per url and returns one result per url, in the
// same order, duplicates included. A transport failure never aborts the
// batch: it is reported as a result with a zero status code.
func (p *Prober) ProbeAll(ctx context.Context, urls []string) []aggregates.ProbeResult {
	results := make([]aggregates.ProbeResult, len(urls))
	if p.concurrency == 1 {
		for i, url := range urls {
			results[i] = p.Probe(ctx, url)
		}
		return results
	}
	var group errgroup.Group
	group.SetLimit(p.concurrency)
	for i, url := range urls {
		group.Go(func() error {
			results[i] = p.Probe(ctx, url)
			return nil
		})
	}
	_ = group.Wait()
	return results
}

func (p *Prober) Probe(ctx context.Context, url string) aggregates.ProbeResult {
	ctx, span := otel.Tracer("sloworker/probe").Start(ctx, "probe")
	defer span.End()
	span.SetAttributes(attribute.String("url.full", url))

	result := aggregates.ProbeResult{URL: url}
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		result.ElapsedMillis = elapsedMillis(start)
		result.Error = err.Error()
		p.failed(span, result)
		return result
	}
	resp, err := p.client.Do(req)
	if err != nil {
		result.ElapsedMillis = elapsedMillis(start)
		result.Error = err.Error()
		p.failed(span, result)
		return result
	}
	// the round trip includes the body download
	_, copyErr := io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	result.ElapsedMillis = elapsedMillis(start)
	result.StatusCode = resp.StatusCode
	if copyErr != nil {
		p.logger.Debug(fmt.Sprintf("fail to read the body of %s: %s", url, copyErr.Error()))
	}
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	p.probeDuration.With(prometheus.Labels{"url": url}).Observe(result.ElapsedMillis / 1000)
	p.logger.Debug(fmt.Sprintf("probe %s returned %d in %.2fms", url, result.StatusCode, result.ElapsedMillis))
	return result
}

func (p *Prober) failed(span trace.Span, result aggregates.ProbeResult) {
	span.SetStatus(codes.Error, result.Error)
	p.probeDuration.With(prometheus.Labels{"url": result.URL}).Observe(result.ElapsedMillis / 1000)
	p.logger.Warn(fmt.Sprintf("probe %s failed after %.2fms: %s", result.URL, result.ElapsedMillis, result.Error))
}

func elapsedMillis(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
