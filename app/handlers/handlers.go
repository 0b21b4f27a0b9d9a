// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"reflect"
	"strconv"
	"time"

	"github.com/amirphl/raiot-portal/app/dto"
	businessflow "github.com/amirphl/raiot-portal/business_flow"
	"github.com/amirphl/raiot-portal/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/requestid"
)

// baseHandler carries the response helpers every handler shares
type baseHandler struct {
	validator *validator.Validate
	logger    *log.Logger
}

func newBaseHandler(logger *log.Logger) baseHandler {
	if logger == nil {
		logger = log.Default()
	}
	return baseHandler{validator: validator.New(), logger: logger}
}

func (h *baseHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *baseHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// validate runs struct validation and writes a 400 response when it fails.
// It returns true when the caller may continue.
func (h *baseHandler) validate(c fiber.Ctx, req any) (bool, error) {
	err := h.validator.Struct(req)
	if err == nil {
		return true, nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return false, h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", err.Error())
	}
	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		messages = append(messages, getValidationErrorMessage(fe))
	}
	return false, h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", messages)
}

// memberIDParam parses the :id route parameter
func memberIDParam(c fiber.Ctx) (uint, bool) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func (h *baseHandler) invalidMemberID(c fiber.Ctx) error {
	return h.ErrorResponse(c, fiber.StatusBadRequest, "Member ID must be a positive integer", "INVALID_MEMBER_ID", c.Params("id"))
}

// FlowErrorResponse maps business flow errors onto HTTP statuses
func (h *baseHandler) FlowErrorResponse(c fiber.Ctx, err error, fallbackMessage, fallbackCode string) error {
	code, message := fallbackCode, fallbackMessage
	var be *businessflow.BusinessError
	if errors.As(err, &be) {
		code, message = be.Code, be.Message
	}

	switch {
	case businessflow.IsInvalidRequest(err), businessflow.IsProfileUpdateEmpty(err):
		return h.ErrorResponse(c, fiber.StatusBadRequest, message, code, nil)
	case businessflow.IsMemberNotFound(err):
		return h.ErrorResponse(c, fiber.StatusNotFound, message, code, nil)
	case businessflow.IsEmailAlreadyExists(err),
		businessflow.IsTransactionAborted(err),
		businessflow.IsReconcileInProgress(err):
		return h.ErrorResponse(c, fiber.StatusConflict, message, code, nil)
	case businessflow.IsStoreUnavailable(err):
		return h.ErrorResponse(c, fiber.StatusServiceUnavailable, message, code, nil)
	case businessflow.IsMemberInactive(err),
		businessflow.IsMemberNotEligible(err),
		businessflow.IsProfileIncomplete(err):
		return h.ErrorResponse(c, fiber.StatusUnprocessableEntity, message, code, nil)
	}

	if orphan, ok := businessflow.OrphanedID(err); ok {
		h.logger.Printf("%s: %v", code, err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, message, code, fiber.Map{"orphaned_id": orphan})
	}

	h.logger.Printf("%s: %v", code, err)
	return h.ErrorResponse(c, fiber.StatusInternalServerError, message, code, nil)
}

func (h *baseHandler) createRequestContext(c fiber.Ctx, endpoint string) (context.Context, context.CancelFunc) {
	return h.createRequestContextWithTimeout(c, endpoint, utils.DefaultRequestTimeout)
}

func (h *baseHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	requestID := requestid.FromContext(c)
	if requestID == "" {
		requestID = c.Get("X-Request-ID")
	}
	ctx = context.WithValue(ctx, utils.RequestIDKey, requestID)
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	return ctx, cancel
}

func getValidationErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "email":
		return "Invalid email format"
	case "e164":
		return err.Field() + " must be in E.164 format, e.g. +919812345678"
	case "alphanum":
		return err.Field() + " must contain only letters and digits"
	case "min":
		if err.Kind() == reflect.Int {
			return fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		}
		return err.Field() + " must be at least " + err.Param() + " characters"
	case "max":
		if err.Kind() == reflect.Int {
			return fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		}
		return err.Field() + " must be at most " + err.Param() + " characters"
	case "oneof":
		return err.Field() + " must be one of: " + err.Param()
	default:
		return err.Field() + " is invalid"
	}
}
