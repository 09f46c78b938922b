package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/leave-service/internal/api/dto"
	"github.com/spec-kit/leave-service/internal/auth"
	"github.com/spec-kit/leave-service/internal/service"
	apperrors "github.com/spec-kit/leave-service/pkg/util"
)

// ApprovalsHandler manages the manager and HR decision endpoints.
type ApprovalsHandler struct {
	service *service.RequestService
}

// NewApprovalsHandler constructs handler.
func NewApprovalsHandler(requestService *service.RequestService) *ApprovalsHandler {
	return &ApprovalsHandler{service: requestService}
}

// ManagerApprove POST /requests/:id/manager-approve.
func (h *ApprovalsHandler) ManagerApprove(c *fiber.Ctx) error {
	return h.decide(c, h.service.ManagerApprove)
}

// ManagerReject POST /requests/:id/manager-reject.
func (h *ApprovalsHandler) ManagerReject(c *fiber.Ctx) error {
	return h.decide(c, h.service.ManagerReject)
}

// HRApprove POST /requests/:id/hr-approve.
func (h *ApprovalsHandler) HRApprove(c *fiber.Ctx) error {
	return h.decide(c, h.service.HRApprove)
}

// HRReject POST /requests/:id/hr-reject.
func (h *ApprovalsHandler) HRReject(c *fiber.Ctx) error {
	return h.decide(c, h.service.HRReject)
}

func (h *ApprovalsHandler) decide(c *fiber.Ctx, decision service.DecisionFunc) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}

	var req dto.DecisionRequest
	// Remarks are optional; an empty body is a decision without remarks.
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}

	updated, err := decision(c.UserContext(), principal.User, id, req.Remarks)
	if err != nil {
		return mapCoreError(err)
	}
	return c.JSON(fiber.Map{"data": requestDetail(updated)})
}
