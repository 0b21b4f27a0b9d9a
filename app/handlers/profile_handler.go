package handlers

import (
	"log"

	"github.com/amirphl/raiot-portal/app/dto"
	businessflow "github.com/amirphl/raiot-portal/business_flow"
	"github.com/gofiber/fiber/v3"
)

type ProfileHandlerInterface interface {
	Register(c fiber.Ctx) error
	GetProfile(c fiber.Ctx) error
	UpdateProfile(c fiber.Ctx) error
}

type ProfileHandler struct {
	baseHandler
	flow businessflow.ProfileFlow
}

func NewProfileHandler(flow businessflow.ProfileFlow, logger *log.Logger) *ProfileHandler {
	return &ProfileHandler{baseHandler: newBaseHandler(logger), flow: flow}
}

// Register creates a member and runs the first profile validation pass
func (h *ProfileHandler) Register(c fiber.Ctx) error {
	var req dto.RegisterMemberRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/members")
	defer cancel()

	res, err := h.flow.Register(ctx, &req)
	if err != nil {
		return h.FlowErrorResponse(c, err, "Failed to register member", "MEMBER_REGISTER_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, res.Message, res)
}

// GetProfile runs the profile validation pass, which allocates a unique ID once the profile is complete
func (h *ProfileHandler) GetProfile(c fiber.Ctx) error {
	memberID, ok := memberIDParam(c)
	if !ok {
		return h.invalidMemberID(c)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/members/:id/profile")
	defer cancel()

	res, err := h.flow.GetProfile(ctx, memberID)
	if err != nil {
		return h.FlowErrorResponse(c, err, "Failed to get profile", "GET_PROFILE_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, res.Message, res)
}

func (h *ProfileHandler) UpdateProfile(c fiber.Ctx) error {
	memberID, ok := memberIDParam(c)
	if !ok {
		return h.invalidMemberID(c)
	}

	var req dto.UpdateProfileRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/members/:id/profile")
	defer cancel()

	res, err := h.flow.UpdateProfile(ctx, memberID, &req)
	if err != nil {
		return h.FlowErrorResponse(c, err, "Failed to update profile", "UPDATE_PROFILE_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, res.Message, res)
}
