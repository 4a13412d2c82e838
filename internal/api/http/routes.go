package httpapi

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/veloforge/rideanalysis/internal/analysis"
	"github.com/veloforge/rideanalysis/internal/profile"
	"github.com/veloforge/rideanalysis/internal/telemetry"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app. This layer stays
// thin: request parsing and validation only, with the pipeline behind the
// orchestrator's Analyze contract.
func RegisterRoutes(app *fiber.App, orch *analysis.Orchestrator) {
	v1 := app.Group("/api/v1")

	v1.Post("/sessions/:sid/analyze", func(c *fiber.Ctx) error {
		req, err := parseAnalyzeRequest(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		result, err := orch.Analyze(c.Context(), req)
		if err != nil {
			if errors.Is(err, telemetry.ErrNoSamples) {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			if result != nil {
				// Analysis succeeded but persisting it did not; the caller
				// gets the failure so it can retry with force_recompute.
				return fiber.NewError(fiber.StatusInternalServerError, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, "analysis failed")
		}

		return c.JSON(result)
	})
}

// analyzeBody is the request payload for the analyze endpoint.
type analyzeBody struct {
	Samples []telemetry.Sample `json:"samples" validate:"omitempty,dive"`
	Profile *profile.Params    `json:"profile"`
	Options analysis.Options   `json:"options"`
}

type analyzeParams struct {
	SessionID string `validate:"required,max=64"`
}

func parseAnalyzeRequest(c *fiber.Ctx) (analysis.Request, error) {
	params := analyzeParams{SessionID: c.Params("sid")}
	if err := validate.Struct(params); err != nil {
		return analysis.Request{}, err
	}

	var body analyzeBody
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			return analysis.Request{}, err
		}
	}
	if err := validate.Struct(body); err != nil {
		return analysis.Request{}, err
	}

	// Query parameters override body options, matching the older API surface.
	if c.Query("force_recompute") != "" {
		body.Options.ForceRecompute = c.QueryBool("force_recompute")
	}
	if c.Query("no_weather") != "" {
		body.Options.DisableWeather = c.QueryBool("no_weather")
	}

	return analysis.Request{
		SessionID:       params.SessionID,
		Samples:         body.Samples,
		ProfileOverride: body.Profile,
		Options:         body.Options,
	}, nil
}
