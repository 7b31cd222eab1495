package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"trainwise/studio-backend/internal/domain"
	"trainwise/studio-backend/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type CoachHandler struct {
	coachService service.CoachService
}

func NewCoachHandler(coachService service.CoachService) *CoachHandler {
	return &CoachHandler{coachService: coachService}
}

// --- Request Structs ---

type AddClientRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type CreateProgramRequest struct {
	Title         string                 `json:"title" binding:"required"`
	Description   string                 `json:"description"`
	Category      domain.ProgramCategory `json:"category" binding:"required,oneof=fitness nutrition mental"`
	DurationWeeks int                    `json:"durationWeeks" binding:"omitempty,min=1"`
}

type UpdateProgramRequest struct {
	Title         string                 `json:"title" binding:"required"`
	Description   string                 `json:"description"`
	Category      domain.ProgramCategory `json:"category" binding:"required,oneof=fitness nutrition mental"`
	DurationWeeks int                    `json:"durationWeeks" binding:"omitempty,min=1"`
}

type AssignProgramRequest struct {
	ProgramID string     `json:"programId" binding:"required"`
	ExpiresAt *time.Time `json:"expiresAt"`
}

type CommentRequest struct {
	Comment string `json:"comment" binding:"required"`
}

// --- Handler Methods ---

// coachID pulls the authenticated coach's ObjectID out of the JWT context.
func coachID(c *gin.Context) (primitive.ObjectID, bool) {
	idStr, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify coach.")
		return primitive.NilObjectID, false
	}
	id, err := primitive.ObjectIDFromHex(idStr)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid coach ID format in token.")
		return primitive.NilObjectID, false
	}
	return id, true
}

// AddClient godoc
// @Summary Add a customer to the coach's roster
// @Tags Coach
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param client body AddClientRequest true "Customer email"
// @Success 200 {object} UserResponse "Customer linked"
// @Failure 404 {object} gin.H "Customer not found"
// @Router /coach/clients [post]
func (h *CoachHandler) AddClient(c *gin.Context) {
	id, ok := coachID(c)
	if !ok {
		return
	}
	var req AddClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	client, err := h.coachService.AddClientByEmail(c.Request.Context(), id, req.Email)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrClientNotFound):
			abortWithError(c, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrUserIsNotCustomer):
			abortWithError(c, http.StatusBadRequest, err.Error())
		default:
			abortWithError(c, http.StatusInternalServerError, "Failed to add client.")
		}
		return
	}
	c.JSON(http.StatusOK, mapUserToResponse(client))
}

// GetClients godoc
// @Summary List managed customers with derived status
// @Description Each row carries the status label, urgency tier and program progress.
// @Tags Coach
// @Produce json
// @Security BearerAuth
// @Success 200 {array} service.ClientOverview "Client list"
// @Router /coach/clients [get]
func (h *CoachHandler) GetClients(c *gin.Context) {
	id, ok := coachID(c)
	if !ok {
		return
	}
	overviews, err := h.coachService.GetManagedClients(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to retrieve clients.")
		return
	}
	if overviews == nil {
		overviews = []service.ClientOverview{}
	}
	c.JSON(http.StatusOK, overviews)
}

// GetClientDetail godoc
// @Summary Get one customer's detail view
// @Tags Coach
// @Produce json
// @Security BearerAuth
// @Param clientId path string true "Customer's ObjectID Hex"
// @Success 200 {object} service.ClientDetail "Client detail"
// @Failure 403 {object} gin.H "Customer not managed by this coach"
// @Failure 404 {object} gin.H "Customer not found"
// @Router /coach/clients/{clientId} [get]
func (h *CoachHandler) GetClientDetail(c *gin.Context) {
	id, ok := coachID(c)
	if !ok {
		return
	}
	clientID, err := primitive.ObjectIDFromHex(c.Param("clientId"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid client ID format.")
		return
	}

	detail, err := h.coachService.GetClientDetail(c.Request.Context(), id, clientID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrClientNotFound):
			abortWithError(c, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrClientNotManagedByCoach):
			abortWithError(c, http.StatusForbidden, err.Error())
		default:
			abortWithError(c, http.StatusInternalServerError, "Failed to retrieve client detail.")
		}
		return
	}
	c.JSON(http.StatusOK, detail)
}

// CommentOnClient godoc
// @Summary Leave feedback on a customer
// @Tags Coach
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param clientId path string true "Customer's ObjectID Hex"
// @Param comment body CommentRequest true "Feedback text"
// @Success 201 {object} gin.H "Comment recorded"
// @Router /coach/clients/{clientId}/comments [post]
func (h *CoachHandler) CommentOnClient(c *gin.Context) {
	id, ok := coachID(c)
	if !ok {
		return
	}
	clientID, err := primitive.ObjectIDFromHex(c.Param("clientId"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid client ID format.")
		return
	}
	var req CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.coachService.CommentOnClient(c.Request.Context(), id, clientID, req.Comment); err != nil {
		switch {
		case errors.Is(err, service.ErrClientNotFound):
			abortWithError(c, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrClientNotManagedByCoach):
			abortWithError(c, http.StatusForbidden, err.Error())
		default:
			abortWithError(c, http.StatusInternalServerError, "Failed to record comment.")
		}
		return
	}
	c.JSON(http.StatusCreated, gin.H{"recorded": true})
}

// CreateProgram godoc
// @Summary Create a draft program
// @Tags Coach
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param program body CreateProgramRequest true "Program details"
// @Success 201 {object} domain.Program "Draft created"
// @Router /coach/programs [post]
func (h *CoachHandler) CreateProgram(c *gin.Context) {
	id, ok := coachID(c)
	if !ok {
		return
	}
	var req CreateProgramRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	program, err := h.coachService.CreateProgram(c.Request.Context(), id, req.Title, req.Description, req.Category, req.DurationWeeks)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to create program.")
		return
	}
	c.JSON(http.StatusCreated, program)
}

// GetPrograms godoc
// @Summary List the coach's programs
// @Tags Coach
// @Produce json
// @Security BearerAuth
// @Success 200 {array} domain.Program "Program list"
// @Router /coach/programs [get]
func (h *CoachHandler) GetPrograms(c *gin.Context) {
	id, ok := coachID(c)
	if !ok {
		return
	}
	programs, err := h.coachService.GetMyPrograms(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to retrieve programs.")
		return
	}
	if programs == nil {
		programs = []domain.Program{}
	}
	c.JSON(http.StatusOK, programs)
}

// UpdateProgram godoc
// @Summary Edit a program's content
// @Tags Coach
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param programId path string true "Program's ObjectID Hex"
// @Param program body UpdateProgramRequest true "Program details"
// @Success 200 {object} gin.H "Program updated"
// @Router /coach/programs/{programId} [put]
func (h *CoachHandler) UpdateProgram(c *gin.Context) {
	id, ok := coachID(c)
	if !ok {
		return
	}
	programID, err := primitive.ObjectIDFromHex(c.Param("programId"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid program ID format.")
		return
	}
	var req UpdateProgramRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	program := &domain.Program{
		ID:            programID,
		Title:         req.Title,
		Description:   req.Description,
		Category:      req.Category,
		DurationWeeks: req.DurationWeeks,
	}
	if err := h.coachService.UpdateProgram(c.Request.Context(), id, program); err != nil {
		h.programError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": true})
}

// SaveProgram godoc
// @Summary Finalize a draft program
// @Tags Coach
// @Produce json
// @Security BearerAuth
// @Param programId path string true "Program's ObjectID Hex"
// @Success 200 {object} gin.H "Program saved"
// @Failure 409 {object} gin.H "Illegal status transition"
// @Router /coach/programs/{programId}/save [post]
func (h *CoachHandler) SaveProgram(c *gin.Context) {
	h.transition(c, h.coachService.SaveProgram)
}

// PublishToShop godoc
// @Summary Publish a saved program to the shop
// @Tags Coach
// @Produce json
// @Security BearerAuth
// @Param programId path string true "Program's ObjectID Hex"
// @Success 200 {object} gin.H "Program published"
// @Failure 409 {object} gin.H "Illegal status transition"
// @Router /coach/programs/{programId}/publish [post]
func (h *CoachHandler) PublishToShop(c *gin.Context) {
	h.transition(c, h.coachService.PublishToShop)
}

// WithdrawFromShop godoc
// @Summary Withdraw a program from the shop
// @Tags Coach
// @Produce json
// @Security BearerAuth
// @Param programId path string true "Program's ObjectID Hex"
// @Success 200 {object} gin.H "Program withdrawn"
// @Failure 409 {object} gin.H "Illegal status transition"
// @Router /coach/programs/{programId}/withdraw [post]
func (h *CoachHandler) WithdrawFromShop(c *gin.Context) {
	h.transition(c, h.coachService.WithdrawFromShop)
}

func (h *CoachHandler) transition(c *gin.Context, op func(ctx context.Context, coachID, programID primitive.ObjectID) error) {
	id, ok := coachID(c)
	if !ok {
		return
	}
	programID, err := primitive.ObjectIDFromHex(c.Param("programId"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid program ID format.")
		return
	}
	if err := op(c.Request.Context(), id, programID); err != nil {
		h.programError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": true})
}

// programError maps program-related service errors to HTTP statuses.
func (h *CoachHandler) programError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrProgramNotFound):
		abortWithError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrProgramNotOwnedByCoach):
		abortWithError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrIllegalProgramTransition), errors.Is(err, service.ErrProgramNotAssignable):
		abortWithError(c, http.StatusConflict, err.Error())
	default:
		abortWithError(c, http.StatusInternalServerError, "Program operation failed.")
	}
}

// AssignProgram godoc
// @Summary Assign a program to a customer
// @Description Cancels any active assignment in the same category first.
// @Tags Coach
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param clientId path string true "Customer's ObjectID Hex"
// @Param assignment body AssignProgramRequest true "Program and optional expiry"
// @Success 201 {object} domain.ProgramAssignment "Assignment created"
// @Failure 409 {object} gin.H "Program not assignable"
// @Router /coach/clients/{clientId}/assignments [post]
func (h *CoachHandler) AssignProgram(c *gin.Context) {
	id, ok := coachID(c)
	if !ok {
		return
	}
	clientID, err := primitive.ObjectIDFromHex(c.Param("clientId"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid client ID format.")
		return
	}
	var req AssignProgramRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	programID, err := primitive.ObjectIDFromHex(req.ProgramID)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid program ID format.")
		return
	}

	assignment, err := h.coachService.AssignProgram(c.Request.Context(), id, clientID, programID, req.ExpiresAt)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrClientNotFound):
			abortWithError(c, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrClientNotManagedByCoach):
			abortWithError(c, http.StatusForbidden, err.Error())
		default:
			h.programError(c, err)
		}
		return
	}
	c.JSON(http.StatusCreated, assignment)
}

// CancelAssignment godoc
// @Summary Cancel an assignment
// @Tags Coach
// @Produce json
// @Security BearerAuth
// @Param assignmentId path string true "Assignment's ObjectID Hex"
// @Success 200 {object} gin.H "Assignment cancelled"
// @Router /coach/assignments/{assignmentId}/cancel [post]
func (h *CoachHandler) CancelAssignment(c *gin.Context) {
	id, ok := coachID(c)
	if !ok {
		return
	}
	assignmentID, err := primitive.ObjectIDFromHex(c.Param("assignmentId"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid assignment ID format.")
		return
	}

	if err := h.coachService.CancelAssignment(c.Request.Context(), id, assignmentID); err != nil {
		switch {
		case errors.Is(err, service.ErrAssignmentNotFound):
			abortWithError(c, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrClientNotManagedByCoach):
			abortWithError(c, http.StatusForbidden, err.Error())
		default:
			abortWithError(c, http.StatusInternalServerError, "Failed to cancel assignment.")
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": true})
}
