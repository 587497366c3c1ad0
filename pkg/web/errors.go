package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
	"github.com/zachsents/minus-sub000/pkg/persistence"
	"github.com/zachsents/minus-sub000/pkg/registry"
	"github.com/zachsents/minus-sub000/pkg/runs"
	"github.com/zachsents/minus-sub000/pkg/services"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, problemType, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType(problemType).
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func gatewayTimeout(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(504).
		WithInstance(c.Path()).
		WithType("run_timeout").
		WithDetail(detail)

	return c.Status(fiber.StatusGatewayTimeout).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleServiceError provides typed error handling for service layer errors.
func handleServiceError(c fiber.Ctx, err error) error {
	switch {
	case services.IsValidationError(err):
		return badRequest(c, err.Error())

	case services.IsConflictError(err):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("conflict").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	case persistence.IsWorkflowNotFound(err):
		return notFound(c, "workflow_not_found", "workflow not found")

	case persistence.IsTriggerNotFound(err):
		return notFound(c, "trigger_not_found", "trigger not found")

	case persistence.IsRunNotFound(err):
		return notFound(c, "run_not_found", "workflow run not found")

	case persistence.IsOrganizationNotFound(err):
		return notFound(c, "organization_not_found", "organization not found")

	case registry.IsDefinitionNotFound(err):
		return notFound(c, "definition_not_found", err.Error())

	case errors.Is(err, runs.ErrWaitTimeout):
		return gatewayTimeout(c, "the workflow run did not finish in time")

	default:
		return internalError(c, err)
	}
}
