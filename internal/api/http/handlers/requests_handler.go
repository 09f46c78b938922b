package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/leave-service/internal/api/dto"
	"github.com/spec-kit/leave-service/internal/auth"
	"github.com/spec-kit/leave-service/internal/domain"
	"github.com/spec-kit/leave-service/internal/service"
	apperrors "github.com/spec-kit/leave-service/pkg/util"
)

// RequestsHandler manages leave request endpoints.
type RequestsHandler struct {
	service *service.RequestService
}

// NewRequestsHandler constructs handler.
func NewRequestsHandler(requestService *service.RequestService) *RequestsHandler {
	return &RequestsHandler{service: requestService}
}

// Create POST /requests.
func (h *RequestsHandler) Create(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	input, err := parseRequestBody(c)
	if err != nil {
		return err
	}

	req, err := h.service.Create(c.UserContext(), principal.User, input)
	if err != nil {
		return mapCoreError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": requestDetail(req)})
}

// List GET /requests. Visibility scope follows the caller's role.
func (h *RequestsHandler) List(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("authentication required")
	}

	requests, err := h.service.List(c.UserContext(), principal.User, parseRequestQuery(c))
	if err != nil {
		return mapCoreError(err)
	}
	return c.JSON(fiber.Map{"data": requestSummaries(requests)})
}

// Pending GET /requests/pending. The caller's decision queue.
func (h *RequestsHandler) Pending(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)

	requests, err := h.service.PendingForActor(c.UserContext(), principal.User, pageSize, (page-1)*pageSize)
	if err != nil {
		return mapCoreError(err)
	}
	return c.JSON(fiber.Map{"data": requestSummaries(requests)})
}

// Get GET /requests/:id.
func (h *RequestsHandler) Get(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}

	req, err := h.service.Get(c.UserContext(), principal.User, id)
	if err != nil {
		return mapCoreError(err)
	}
	return c.JSON(fiber.Map{"data": requestDetail(req)})
}

// Update PUT /requests/:id.
func (h *RequestsHandler) Update(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	input, err := parseRequestBody(c)
	if err != nil {
		return err
	}

	req, err := h.service.Update(c.UserContext(), principal.User, id, input)
	if err != nil {
		return mapCoreError(err)
	}
	return c.JSON(fiber.Map{"data": requestDetail(req)})
}

// Delete DELETE /requests/:id.
func (h *RequestsHandler) Delete(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}

	if err := h.service.Delete(c.UserContext(), principal.User, id); err != nil {
		return mapCoreError(err)
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"deleted": true}})
}

func parseID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("invalid request id", nil)
	}
	return id, nil
}

func parseRequestBody(c *fiber.Ctx) (service.RequestCreateInput, error) {
	var req dto.CreateLeaveRequest
	if err := c.BodyParser(&req); err != nil {
		return service.RequestCreateInput{}, apperrors.NewValidationError("invalid payload", nil)
	}
	if req.StartDate.IsZero() || req.EndDate.IsZero() {
		return service.RequestCreateInput{}, apperrors.NewValidationError("start_date, end_date required", nil)
	}
	return service.RequestCreateInput{
		Type:      req.Type,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Reason:    req.Reason,
	}, nil
}

func parseRequestQuery(c *fiber.Ctx) service.RequestListFilter {
	filter := service.RequestListFilter{}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			filter.Statuses = append(filter.Statuses, domain.RequestStatus(strings.TrimSpace(part)))
		}
	}
	if hrStatusStr := c.Query("hr_status"); hrStatusStr != "" {
		for _, part := range strings.Split(hrStatusStr, ",") {
			filter.HRStatuses = append(filter.HRStatuses, domain.HRStatus(strings.TrimSpace(part)))
		}
	}
	if from := parseTime(c.Query("created_from")); from != nil {
		filter.CreatedFrom = from
	}
	if to := parseTime(c.Query("created_to")); to != nil {
		filter.CreatedTo = to
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter
}

func parseTime(val string) *time.Time {
	if val == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil
	}
	return &t
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func requestSummaries(requests []domain.LeaveRequest) []dto.LeaveRequestSummary {
	items := make([]dto.LeaveRequestSummary, 0, len(requests))
	for i := range requests {
		items = append(items, requestSummary(&requests[i]))
	}
	return items
}

func requestSummary(req *domain.LeaveRequest) dto.LeaveRequestSummary {
	return dto.LeaveRequestSummary{
		ID:         req.ID,
		OwnerID:    req.OwnerID,
		Department: req.Department,
		Type:       req.Type,
		StartDate:  req.StartDate,
		EndDate:    req.EndDate,
		Status:     req.Status,
		HRStatus:   req.HRStatus,
		CreatedAt:  req.CreatedAt,
		UpdatedAt:  req.UpdatedAt,
	}
}

func requestDetail(req *domain.LeaveRequest) dto.LeaveRequestDetail {
	return dto.LeaveRequestDetail{
		ID:                req.ID,
		OwnerID:           req.OwnerID,
		Department:        req.Department,
		Type:              req.Type,
		StartDate:         req.StartDate,
		EndDate:           req.EndDate,
		Reason:            req.Reason,
		Status:            req.Status,
		HRStatus:          req.HRStatus,
		ManagerRemarks:    req.ManagerRemarks,
		ManagerApproverID: req.ManagerApproverID,
		ManagerDecidedAt:  req.ManagerDecidedAt,
		HRRemarks:         req.HRRemarks,
		HRApproverID:      req.HRApproverID,
		HRDecidedAt:       req.HRDecidedAt,
		CreatedAt:         req.CreatedAt,
		UpdatedAt:         req.UpdatedAt,
	}
}
