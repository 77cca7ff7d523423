package aggregates

// Definition is one monitored target and its objectives, as read from the
// SLO file.
type Definition struct {
	URL                  string  `json:"url" validate:"required"`
	SuccessRateThreshold float64 `json:"successful-responses-slo" validate:"gte=0,lte=1"`
	FastRateThreshold    float64 `json:"fast-responses-slo" validate:"gte=0,lte=1"`
}

// ProbeResult is the outcome of a single GET against a target.
// StatusCode is 0 when the request failed before a response was received,
// in which case Error holds the transport error message.
type ProbeResult struct {
	URL           string
	StatusCode    int
	ElapsedMillis float64
	Error         string
}

func (p ProbeResult) Failed() bool {
	return p.StatusCode == 0
}

type Outcome struct {
	URL        string
	Successful bool
	Fast       bool
}

type Counters struct {
	URL        string `db:"url"`
	Successful int64  `db:"successful_responses"`
	Fast       int64  `db:"fast_responses"`
	Total      int64  `db:"total_responses"`
}

type Rate struct {
	URL         string
	SuccessRate float64
	FastRate    float64
}
