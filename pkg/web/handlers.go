// Package web provides the REST surface of the control plane: operation,
// stage and workflow registration, execution management, system
// configuration and the asset-lock endpoints.
package web

import (
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/mediaflux/mediaflux/pkg/dataplane"
	"github.com/mediaflux/mediaflux/pkg/models"
	"github.com/mediaflux/mediaflux/pkg/registry"
	"github.com/mediaflux/mediaflux/pkg/services"
)

type APIHandlers struct {
	operationService *services.Operation
	stageService     *services.Stage
	workflowService  *services.Workflow
	executionService *services.Execution
	configService    *services.Config
	locks            *dataplane.Locks
	metadata         dataplane.Client
	registry         *registry.Registry
	validator        *validator.Validate
}

func NewAPIHandlers(
	operationService *services.Operation,
	stageService *services.Stage,
	workflowService *services.Workflow,
	executionService *services.Execution,
	configService *services.Config,
	locks *dataplane.Locks,
	metadata dataplane.Client,
	reg *registry.Registry,
	validate *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		operationService: operationService,
		stageService:     stageService,
		workflowService:  workflowService,
		executionService: executionService,
		configService:    configService,
		locks:            locks,
		metadata:         metadata,
		registry:         reg,
		validator:        validate,
	}
}

func (h *APIHandlers) CreateOperation(c fiber.Ctx) error {
	op := &models.Operation{}
	if err := c.Bind().Body(op); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	created, err := h.operationService.Register(c.Context(), op)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) GetOperations(c fiber.Ctx) error {
	operations, err := h.operationService.List(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(operations)
}

func (h *APIHandlers) GetOperation(c fiber.Ctx) error {
	op, err := h.operationService.Get(c.Context(), c.Params("name"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(op)
}

func (h *APIHandlers) DeleteOperation(c fiber.Ctx) error {
	force, err := forceParam(c)
	if err != nil {
		return badRequest(c, "Invalid force parameter")
	}

	if err := h.operationService.Delete(c.Context(), c.Params("name"), force); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) CreateStage(c fiber.Ctx) error {
	stage := &models.Stage{}
	if err := c.Bind().Body(stage); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	created, err := h.stageService.Register(c.Context(), stage)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) GetStages(c fiber.Ctx) error {
	stages, err := h.stageService.List(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(stages)
}

func (h *APIHandlers) GetStage(c fiber.Ctx) error {
	stage, err := h.stageService.Get(c.Context(), c.Params("name"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(stage)
}

func (h *APIHandlers) DeleteStage(c fiber.Ctx) error {
	force, err := forceParam(c)
	if err != nil {
		return badRequest(c, "Invalid force parameter")
	}

	if err := h.stageService.Delete(c.Context(), c.Params("name"), force); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	workflow := &models.Workflow{}
	if err := c.Bind().Body(workflow); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	created, err := h.workflowService.Register(c.Context(), workflow)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows, err := h.workflowService.List(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflows)
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	workflow, err := h.workflowService.Get(c.Context(), c.Params("name"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	workflow := &models.Workflow{}
	if err := c.Bind().Body(workflow); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	updated, err := h.workflowService.Update(c.Context(), c.Params("name"), workflow)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	if err := h.workflowService.Delete(c.Context(), c.Params("name")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) CreateExecution(c fiber.Ctx) error {
	req := &CreateExecutionRequest{}
	if err := c.Bind().Body(req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	execution, err := h.executionService.Start(c.Context(), c.Params("name"), req.AssetID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(execution)
}

func (h *APIHandlers) GetExecutions(c fiber.Ctx) error {
	executions, err := h.executionService.List(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(executions)
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	execution, err := h.executionService.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(execution)
}

func (h *APIHandlers) ResumeExecution(c fiber.Ctx) error {
	execution, err := h.executionService.Resume(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(execution)
}

func (h *APIHandlers) GetConfig(c fiber.Ctx) error {
	config, err := h.configService.Get(c.Context(), c.Params("key"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(config)
}

func (h *APIHandlers) SetConfig(c fiber.Ctx) error {
	req := &SetConfigRequest{}
	if err := c.Bind().Body(req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	config := &models.SystemConfig{Key: c.Params("key"), Value: req.Value}

	if err := h.configService.Set(c.Context(), config); err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(config)
}

func (h *APIHandlers) CheckoutAsset(c fiber.Ctx) error {
	req := &CheckoutRequest{}
	if err := c.Bind().Body(req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	lock, err := h.locks.Checkout(c.Context(), c.Params("id"), req.LockedBy)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(lock)
}

func (h *APIHandlers) CheckinAsset(c fiber.Ctx) error {
	if err := h.locks.Checkin(c.Context(), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) GetAssetLock(c fiber.Ctx) error {
	lock, err := h.locks.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(lock)
}

// GetAssetMetadata proxies a paginated metadata read to the store. The
// cursor query parameter is passed through opaque.
func (h *APIHandlers) GetAssetMetadata(c fiber.Ctx) error {
	if h.metadata == nil {
		return notFound(c, "No metadata store is configured")
	}

	result, err := h.metadata.RetrieveMetadata(c.Context(),
		c.Params("id"), c.Params("operator"), c.Query("cursor"))
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) GetHandlers(c fiber.Ctx) error {
	return c.JSON(h.registry.List())
}

func (h *APIHandlers) RegisterHandler(c fiber.Ctx) error {
	handler := &registry.Handler{}
	if err := c.Bind().Body(handler); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if handler.Name == "" {
		return badRequest(c, "Handler name is required")
	}

	h.registry.Register(handler)

	return c.Status(fiber.StatusCreated).JSON(handler)
}

func forceParam(c fiber.Ctx) (bool, error) {
	raw := c.Query("force")
	if raw == "" {
		return false, nil
	}

	return strconv.ParseBool(raw)
}
