package handlers

import (
	"log"

	"github.com/amirphl/raiot-portal/app/dto"
	businessflow "github.com/amirphl/raiot-portal/business_flow"
	"github.com/amirphl/raiot-portal/utils"
	"github.com/gofiber/fiber/v3"
)

type UniqueIDAdminHandlerInterface interface {
	Status(c fiber.Ctx) error
	Reconcile(c fiber.Ctx) error
	AssignUniqueID(c fiber.Ctx) error
}

type UniqueIDAdminHandler struct {
	baseHandler
	flow      businessflow.UniqueIDFlow
	batchSize int
}

func NewUniqueIDAdminHandler(flow businessflow.UniqueIDFlow, reconcileBatchSize int, logger *log.Logger) *UniqueIDAdminHandler {
	return &UniqueIDAdminHandler{
		baseHandler: newBaseHandler(logger),
		flow:        flow,
		batchSize:   reconcileBatchSize,
	}
}

// Status reports the counter record. The value can be stale by the time it is read.
func (h *UniqueIDAdminHandler) Status(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/unique-id/status")
	defer cancel()

	res, err := h.flow.Status(ctx)
	if err != nil {
		return h.FlowErrorResponse(c, err, "Failed to read counter status", "COUNTER_STATUS_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Counter status retrieved", res)
}

func (h *UniqueIDAdminHandler) Reconcile(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContextWithTimeout(c, "/api/v1/admin/unique-id/reconcile", utils.ExportRequestTimeout)
	defer cancel()

	report, err := h.flow.Reconcile(ctx, h.batchSize)
	if err != nil && report == nil {
		return h.FlowErrorResponse(c, err, "Reconciliation failed", "RECONCILE_FAILED")
	}

	res := dto.ReconcileResponse{
		Scanned:  report.Scanned,
		Assigned: report.Assigned,
		Skipped:  report.Skipped,
		Failed:   report.Failed,
		Orphaned: report.Orphaned,
	}
	if err != nil {
		// partial progress is still reported
		h.logger.Printf("reconcile stopped early: %v", err)
		return h.ErrorResponse(c, fiber.StatusServiceUnavailable, "Reconciliation stopped early", "RECONCILE_INTERRUPTED", res)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Reconciliation completed", res)
}

func (h *UniqueIDAdminHandler) AssignUniqueID(c fiber.Ctx) error {
	memberID, ok := memberIDParam(c)
	if !ok {
		return h.invalidMemberID(c)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/members/:id/unique-id")
	defer cancel()

	res, err := h.flow.AllocateAndAssign(ctx, memberID)
	if err != nil {
		return h.FlowErrorResponse(c, err, "Failed to assign unique ID", "UNIQUE_ID_ASSIGNMENT_FAILED")
	}

	message := "Unique ID assigned"
	if res.AlreadyAssigned {
		message = "Member already has a unique ID"
	}
	return h.SuccessResponse(c, fiber.StatusOK, message, dto.AssignUniqueIDResponse{
		MemberID:        res.MemberID,
		UniqueID:        res.UniqueID,
		AlreadyAssigned: res.AlreadyAssigned,
	})
}
