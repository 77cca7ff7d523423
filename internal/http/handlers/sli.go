package handlers

import (
	"fmt"
	"net/http"

	"github.com/appclacks/sloworker/pkg/slo"
	"github.com/appclacks/sloworker/pkg/slo/aggregates"
	"github.com/labstack/echo/v4"
)

type SLI struct {
	URL                 string  `json:"url"`
	SuccessRate         float64 `json:"success-rate"`
	SuccessObjectiveMet bool    `json:"success-objective-met"`
	FastRate            float64 `json:"fast-rate"`
	FastObjectiveMet    bool    `json:"fast-objective-met"`
}

type ListSLIsOutput struct {
	Result []SLI `json:"result"`
}

type ListSLOsOutput struct {
	Result []aggregates.Definition `json:"result"`
}

type GetSLIStatusInput struct {
	URL string `query:"url" validate:"required"`
}

func toSLI(evaluation slo.Evaluation) SLI {
	return SLI{
		URL:                 evaluation.Rate.URL,
		SuccessRate:         evaluation.Rate.SuccessRate,
		SuccessObjectiveMet: evaluation.SuccessObjectiveMet,
		FastRate:            evaluation.Rate.FastRate,
		FastObjectiveMet:    evaluation.FastObjectiveMet,
	}
}

// currentDefinitions returns the current SLO definitions. A broken SLO file does
// not fail read requests: the last loaded definitions are used instead.
func (b *Builder) currentDefinitions() []aggregates.Definition {
	_, err := b.definitions.Refresh()
	if err != nil {
		b.logger.Warn(fmt.Sprintf("fail to refresh SLO definitions, using the last loaded ones: %s", err.Error()))
	}
	return b.definitions.Definitions()
}

func (b *Builder) ListSLIs(ec echo.Context) error {
	evaluations, err := b.sli.Evaluations(ec.Request().Context(), b.currentDefinitions())
	if err != nil {
		return err
	}
	result := ListSLIsOutput{
		Result: make([]SLI, 0, len(evaluations)),
	}
	for _, evaluation := range evaluations {
		result.Result = append(result.Result, toSLI(evaluation))
	}
	return ec.JSON(http.StatusOK, &result)
}

func (b *Builder) GetSLIStatus(ec echo.Context) error {
	var payload GetSLIStatusInput
	if err := ec.Bind(&payload); err != nil {
		return err
	}
	if err := ec.Validate(payload); err != nil {
		return err
	}
	rate, err := b.sli.GetRate(ec.Request().Context(), payload.URL)
	if err != nil {
		return err
	}
	result := toSLI(slo.Evaluate(rate, b.currentDefinitions()))
	return ec.JSON(http.StatusOK, &result)
}

func (b *Builder) ListSLOs(ec echo.Context) error {
	definitions := b.currentDefinitions()
	result := ListSLOsOutput{
		Result: definitions,
	}
	if result.Result == nil {
		result.Result = []aggregates.Definition{}
	}
	return ec.JSON(http.StatusOK, &result)
}
