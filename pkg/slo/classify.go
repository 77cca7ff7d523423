package slo

import "github.com/appclacks/sloworker/pkg/slo/aggregates"

const (
	MinSuccessfulStatus = 200
	// 4xx responses count as successful: only server errors and unreachable
	// targets lower availability.
	MaxSuccessfulStatus = 499
	FastThresholdMillis = 100.0
)

func Classify(result aggregates.ProbeResult) aggregates.Outcome {
	return aggregates.Outcome{
		URL:        result.URL,
		Successful: result.StatusCode >= MinSuccessfulStatus && result.StatusCode <= MaxSuccessfulStatus,
		Fast:       result.ElapsedMillis <= FastThresholdMillis,
	}
}

func ClassifyAll(results []aggregates.ProbeResult) []aggregates.Outcome {
	outcomes := make([]aggregates.Outcome, 0, len(results))
	for _, result := range results {
		outcomes = append(outcomes, Classify(result))
	}
	return outcomes
}
