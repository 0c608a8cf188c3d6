package patient

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/careloop/patient-api/internal/handler"
	"github.com/careloop/patient-api/internal/middleware"
	"github.com/careloop/patient-api/internal/model"
	"github.com/careloop/patient-api/internal/service/audit"
	"github.com/careloop/patient-api/internal/service/patient"
	apperrors "github.com/careloop/patient-api/pkg/errors"
)

// AccessPolicy gates per-patient operations.
type AccessPolicy interface {
	CanAccess(ctx context.Context, patientID, actorID uuid.UUID, role model.Role) (bool, error)
}

// Handler orchestrates patient endpoints: clamp input, resolve the actor,
// authorize, invoke the service, audit, map to the response DTO.
type Handler struct {
	service patient.PatientService
	access  AccessPolicy
	auditor audit.Recorder
}

func NewHandler(service patient.PatientService, access AccessPolicy, auditor audit.Recorder) *Handler {
	return &Handler{
		service: service,
		access:  access,
		auditor: auditor,
	}
}

// RegisterRoutes wires patient endpoints, each gated on the role
// permission table.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, auth *middleware.AuthMiddleware) {
	patients := r.Group("/patients")
	{
		patients.GET("", auth.RequirePermission(model.PermissionPatientRead), h.ListPatients)
		patients.POST("", auth.RequirePermission(model.PermissionPatientWrite), h.CreatePatient)
		patients.GET("/:id", auth.RequirePermission(model.PermissionPatientRead), h.GetPatient)
		patients.PUT("/:id", auth.RequirePermission(model.PermissionPatientWrite), h.UpdatePatient)
		patients.DELETE("/:id", auth.RequirePermission(model.PermissionPatientArchive), h.ArchivePatient)
		patients.POST("/search", auth.RequirePermission(model.PermissionPatientRead), h.SearchPatients)

		patients.GET("/:id/medical-history", auth.RequirePermission(model.PermissionHistoryRead), h.GetMedicalHistory)
		patients.POST("/:id/medical-history", auth.RequirePermission(model.PermissionHistoryWrite), h.AddMedicalHistoryEntry)
		patients.PATCH("/:id/medical-history/:entry_id", auth.RequirePermission(model.PermissionHistoryWrite), h.UpdateMedicalHistoryStatus)
		patients.GET("/:id/vital-signs", auth.RequirePermission(model.PermissionVitalsRead), h.GetVitalSigns)
		patients.POST("/:id/vital-signs", auth.RequirePermission(model.PermissionVitalsWrite), h.RecordVitalSigns)
	}
}

func (h *Handler) ListPatients(c *gin.Context) {
	actorID, _, ok := h.actor(c)
	if !ok {
		return
	}

	var filters model.PatientFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid query parameters"))
		return
	}

	result, err := h.service.ListPatients(c.Request.Context(), &filters)
	if err != nil {
		h.internalError(c, err)
		return
	}

	h.auditor.RecordRead(audit.Entry{
		ActorID:      actorID,
		ResourceType: model.AuditResourcePatient,
		Action:       model.AuditActionList,
		Detail:       fmt.Sprintf("Page: %d, PageSize: %d", result.CurrentPage, result.PageSize),
		IPAddress:    c.ClientIP(),
	})

	c.JSON(http.StatusOK, handler.NewSuccessResponse(result))
}

func (h *Handler) GetPatient(c *gin.Context) {
	id, ok := h.patientID(c)
	if !ok {
		return
	}
	actorID, role, ok := h.actor(c)
	if !ok {
		return
	}
	if !h.authorize(c, id, actorID, role) {
		return
	}

	p, err := h.service.GetPatient(c.Request.Context(), id)
	if apperrors.IsNotFound(err) {
		h.notFound(c, id)
		return
	}
	if err != nil {
		h.internalError(c, err)
		return
	}

	h.auditor.RecordRead(audit.Entry{
		ActorID:      actorID,
		ResourceType: model.AuditResourcePatient,
		Action:       model.AuditActionView,
		Detail:       fmt.Sprintf("PatientId: %s", id),
		IPAddress:    c.ClientIP(),
	})

	c.JSON(http.StatusOK, handler.NewSuccessResponse(p))
}

func (h *Handler) CreatePatient(c *gin.Context) {
	actorID, _, ok := h.actor(c)
	if !ok {
		return
	}

	var req model.CreatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	if result := h.service.ValidateCreate(&req); !result.IsValid {
		c.JSON(http.StatusBadRequest, handler.NewValidationErrorResponse(result.Errors))
		return
	}

	p, err := h.service.CreatePatient(c.Request.Context(), &req, actorID)
	if err != nil {
		h.internalError(c, err)
		return
	}

	// Create is a mutation: the audit write must land before success is
	// reported to the client.
	if err := h.auditor.Record(c.Request.Context(), audit.Entry{
		ActorID:      actorID,
		ResourceType: model.AuditResourcePatient,
		Action:       model.AuditActionCreate,
		Detail:       fmt.Sprintf("PatientId: %s", p.ID),
		IPAddress:    c.ClientIP(),
	}); err != nil {
		h.internalError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(p))
}

func (h *Handler) UpdatePatient(c *gin.Context) {
	id, ok := h.patientID(c)
	if !ok {
		return
	}
	actorID, role, ok := h.actor(c)
	if !ok {
		return
	}
	if !h.authorize(c, id, actorID, role) {
		return
	}

	var req model.UpdatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	p, err := h.service.UpdatePatient(c.Request.Context(), id, &req, actorID)
	if apperrors.IsNotFound(err) {
		h.notFound(c, id)
		return
	}
	if apperrors.IsConflict(err) {
		c.JSON(http.StatusConflict, handler.NewErrorResponse(err.Error()))
		return
	}
	if h.validationFailed(c, err) {
		return
	}
	if err != nil {
		h.internalError(c, err)
		return
	}

	if err := h.auditor.Record(c.Request.Context(), audit.Entry{
		ActorID:      actorID,
		ResourceType: model.AuditResourcePatient,
		Action:       model.AuditActionUpdate,
		Detail:       fmt.Sprintf("PatientId: %s", id),
		IPAddress:    c.ClientIP(),
	}); err != nil {
		h.internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(p))
}

// ArchivePatient handles DELETE but never deletes: the record is kept
// with a terminal archived status.
func (h *Handler) ArchivePatient(c *gin.Context) {
	id, ok := h.patientID(c)
	if !ok {
		return
	}
	actorID, role, ok := h.actor(c)
	if !ok {
		return
	}
	if !h.authorize(c, id, actorID, role) {
		return
	}

	err := h.service.ArchivePatient(c.Request.Context(), id, actorID)
	if apperrors.IsNotFound(err) {
		h.notFound(c, id)
		return
	}
	if err != nil {
		h.internalError(c, err)
		return
	}

	if err := h.auditor.Record(c.Request.Context(), audit.Entry{
		ActorID:      actorID,
		ResourceType: model.AuditResourcePatient,
		Action:       model.AuditActionArchive,
		Detail:       fmt.Sprintf("PatientId: %s", id),
		IPAddress:    c.ClientIP(),
	}); err != nil {
		h.internalError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) GetMedicalHistory(c *gin.Context) {
	id, ok := h.patientID(c)
	if !ok {
		return
	}
	actorID, role, ok := h.actor(c)
	if !ok {
		return
	}
	if !h.authorize(c, id, actorID, role) {
		return
	}

	entries, err := h.service.GetMedicalHistory(c.Request.Context(), id)
	if apperrors.IsNotFound(err) {
		h.notFound(c, id)
		return
	}
	if err != nil {
		h.internalError(c, err)
		return
	}

	h.auditor.RecordRead(audit.Entry{
		ActorID:      actorID,
		ResourceType: model.AuditResourcePatient,
		Action:       model.AuditActionViewMedicalHistory,
		Detail:       fmt.Sprintf("PatientId: %s", id),
		IPAddress:    c.ClientIP(),
	})

	c.JSON(http.StatusOK, handler.NewSuccessResponse(entries))
}

func (h *Handler) AddMedicalHistoryEntry(c *gin.Context) {
	id, ok := h.patientID(c)
	if !ok {
		return
	}
	actorID, role, ok := h.actor(c)
	if !ok {
		return
	}
	if !h.authorize(c, id, actorID, role) {
		return
	}

	var req model.AddHistoryEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	entry, err := h.service.AddMedicalHistoryEntry(c.Request.Context(), id, &req)
	if apperrors.IsNotFound(err) {
		h.notFound(c, id)
		return
	}
	if h.validationFailed(c, err) {
		return
	}
	if err != nil {
		h.internalError(c, err)
		return
	}

	if err := h.auditor.Record(c.Request.Context(), audit.Entry{
		ActorID:      actorID,
		ResourceType: model.AuditResourcePatient,
		Action:       model.AuditActionUpdate,
		Detail:       fmt.Sprintf("PatientId: %s, HistoryEntryId: %s", id, entry.ID),
		IPAddress:    c.ClientIP(),
	}); err != nil {
		h.internalError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(entry))
}

// UpdateMedicalHistoryStatus is the only mutation history entries allow:
// the condition and diagnosis date are immutable once recorded.
func (h *Handler) UpdateMedicalHistoryStatus(c *gin.Context) {
	id, ok := h.patientID(c)
	if !ok {
		return
	}
	entryID, err := uuid.Parse(c.Param("entry_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid history entry ID"))
		return
	}
	actorID, role, ok := h.actor(c)
	if !ok {
		return
	}
	if !h.authorize(c, id, actorID, role) {
		return
	}

	var req model.UpdateHistoryStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	err = h.service.UpdateMedicalHistoryStatus(c.Request.Context(), id, entryID, req.Status)
	if apperrors.IsNotFound(err) {
		c.JSON(http.StatusNotFound, handler.NewErrorResponse(err.Error()))
		return
	}
	if h.validationFailed(c, err) {
		return
	}
	if err != nil {
		h.internalError(c, err)
		return
	}

	if err := h.auditor.Record(c.Request.Context(), audit.Entry{
		ActorID:      actorID,
		ResourceType: model.AuditResourcePatient,
		Action:       model.AuditActionUpdate,
		Detail:       fmt.Sprintf("PatientId: %s, HistoryEntryId: %s, Status: %s", id, entryID, req.Status),
		IPAddress:    c.ClientIP(),
	}); err != nil {
		h.internalError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) GetVitalSigns(c *gin.Context) {
	id, ok := h.patientID(c)
	if !ok {
		return
	}
	actorID, role, ok := h.actor(c)
	if !ok {
		return
	}
	if !h.authorize(c, id, actorID, role) {
		return
	}

	days := 30
	var query struct {
		Days int `form:"days"`
	}
	if err := c.ShouldBindQuery(&query); err == nil && query.Days > 0 {
		days = query.Days
	}

	vitals, err := h.service.GetVitalSigns(c.Request.Context(), id, days)
	if apperrors.IsNotFound(err) {
		h.notFound(c, id)
		return
	}
	if err != nil {
		h.internalError(c, err)
		return
	}

	h.auditor.RecordRead(audit.Entry{
		ActorID:      actorID,
		ResourceType: model.AuditResourcePatient,
		Action:       model.AuditActionViewVitalSigns,
		Detail:       fmt.Sprintf("PatientId: %s, Days: %d", id, days),
		IPAddress:    c.ClientIP(),
	})

	c.JSON(http.StatusOK, handler.NewSuccessResponse(vitals))
}

func (h *Handler) RecordVitalSigns(c *gin.Context) {
	id, ok := h.patientID(c)
	if !ok {
		return
	}
	actorID, role, ok := h.actor(c)
	if !ok {
		return
	}
	if !h.authorize(c, id, actorID, role) {
		return
	}

	var req model.RecordVitalSignsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	vitals, err := h.service.RecordVitalSigns(c.Request.Context(), id, &req, actorID)
	if apperrors.IsNotFound(err) {
		h.notFound(c, id)
		return
	}
	if err != nil {
		h.internalError(c, err)
		return
	}

	if err := h.auditor.Record(c.Request.Context(), audit.Entry{
		ActorID:      actorID,
		ResourceType: model.AuditResourcePatient,
		Action:       model.AuditActionCreate,
		Detail:       fmt.Sprintf("PatientId: %s, VitalSignsId: %s", id, vitals.ID),
		IPAddress:    c.ClientIP(),
	}); err != nil {
		h.internalError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(vitals))
}

func (h *Handler) SearchPatients(c *gin.Context) {
	actorID, role, ok := h.actor(c)
	if !ok {
		return
	}

	var criteria model.SearchPatientsRequest
	if err := c.ShouldBindJSON(&criteria); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	results, err := h.service.SearchPatients(c.Request.Context(), &criteria, actorID, role)
	if err != nil {
		h.internalError(c, err)
		return
	}

	h.auditor.RecordRead(audit.Entry{
		ActorID:      actorID,
		ResourceType: model.AuditResourcePatient,
		Action:       model.AuditActionSearch,
		Detail:       fmt.Sprintf("Results: %d", len(results)),
		IPAddress:    c.ClientIP(),
	})

	c.JSON(http.StatusOK, handler.NewSuccessResponse(results))
}

func (h *Handler) patientID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid patient ID"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) actor(c *gin.Context) (uuid.UUID, model.Role, bool) {
	actorID, okID := middleware.ActorID(c)
	role, okRole := middleware.ActorRole(c)
	if !okID || !okRole {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing actor identity"))
		return uuid.Nil, "", false
	}
	return actorID, role, true
}

// authorize runs the access policy. Denial short-circuits the request:
// no service call, no audit entry.
func (h *Handler) authorize(c *gin.Context, patientID, actorID uuid.UUID, role model.Role) bool {
	allowed, err := h.access.CanAccess(c.Request.Context(), patientID, actorID, role)
	if err != nil {
		h.internalError(c, err)
		return false
	}
	if !allowed {
		c.JSON(http.StatusForbidden, handler.NewErrorResponse("you do not have access to this patient record"))
		return false
	}
	return true
}

// validationFailed maps a validation error from the service to a 400
// carrying every accumulated message.
func (h *Handler) validationFailed(c *gin.Context, err error) bool {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Code == apperrors.ErrValidation {
		c.JSON(http.StatusBadRequest, handler.NewValidationErrorResponse(appErr.Errors))
		return true
	}
	return false
}

func (h *Handler) notFound(c *gin.Context, id uuid.UUID) {
	c.JSON(http.StatusNotFound, handler.NewErrorResponse(fmt.Sprintf("patient with ID %s not found", id)))
}

// internalError hides internal detail from the client; the error itself
// goes to the error middleware for operator logging.
func (h *Handler) internalError(c *gin.Context, err error) {
	c.Error(err)
	c.JSON(http.StatusInternalServerError, handler.NewErrorResponse("internal server error"))
}
