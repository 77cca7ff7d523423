package slo

import "github.com/appclacks/sloworker/pkg/slo/aggregates"

func findDefinition(url string, definitions []aggregates.Definition) (aggregates.Definition, bool) {
	for _, definition := range definitions {
		if definition.URL == url {
			return definition, true
		}
	}
	return aggregates.Definition{}, false
}

// MeetsSuccessObjective reports whether observedRate reaches the success
// threshold of the first definition matching url. Unknown urls never meet
// their objective.
func MeetsSuccessObjective(url string, observedRate float64, definitions []aggregates.Definition) bool {
	definition, ok := findDefinition(url, definitions)
	if !ok {
		return false
	}
	return observedRate >= definition.SuccessRateThreshold
}

func MeetsFastObjective(url string, observedRate float64, definitions []aggregates.Definition) bool {
	definition, ok := findDefinition(url, definitions)
	if !ok {
		return false
	}
	return observedRate >= definition.FastRateThreshold
}

type Evaluation struct {
	Rate                aggregates.Rate
	SuccessObjectiveMet bool
	FastObjectiveMet    bool
}

func Evaluate(rate aggregates.Rate, definitions []aggregates.Definition) Evaluation {
	return Evaluation{
		Rate:                rate,
		SuccessObjectiveMet: MeetsSuccessObjective(rate.URL, rate.SuccessRate, definitions),
		FastObjectiveMet:    MeetsFastObjective(rate.URL, rate.FastRate, definitions),
	}
}
