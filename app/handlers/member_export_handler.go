package handlers

import (
	"log"

	"github.com/amirphl/raiot-portal/app/dto"
	businessflow "github.com/amirphl/raiot-portal/business_flow"
	"github.com/amirphl/raiot-portal/utils"
	"github.com/gofiber/fiber/v3"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type MemberExportHandlerInterface interface {
	ExportMembers(c fiber.Ctx) error
}

type MemberExportHandler struct {
	baseHandler
	flow businessflow.MemberExportFlow
}

func NewMemberExportHandler(flow businessflow.MemberExportFlow, logger *log.Logger) *MemberExportHandler {
	return &MemberExportHandler{baseHandler: newBaseHandler(logger), flow: flow}
}

// ExportMembers downloads the member registry with unique IDs as xlsx
func (h *MemberExportHandler) ExportMembers(c fiber.Ctx) error {
	var req dto.ExportMembersRequest
	if err := c.Bind().Query(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContextWithTimeout(c, "/api/v1/admin/members/export", utils.ExportRequestTimeout)
	defer cancel()

	filename, data, err := h.flow.ExportMembers(ctx, &req)
	if err != nil {
		return h.FlowErrorResponse(c, err, "Failed to export members", "EXPORT_FAILED")
	}

	c.Set("Content-Type", xlsxContentType)
	c.Set("Content-Disposition", "attachment; filename="+filename)
	return c.Send(data)
}
