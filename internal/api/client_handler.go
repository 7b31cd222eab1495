package api

import (
	"errors"
	"net/http"

	"trainwise/studio-backend/internal/domain"
	"trainwise/studio-backend/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ClientHandler struct {
	clientService service.ClientService
}

func NewClientHandler(clientService service.ClientService) *ClientHandler {
	return &ClientHandler{clientService: clientService}
}

// --- Request Structs ---

type LogActivityRequest struct {
	ActivityType string                 `json:"activityType" binding:"required"`
	ActivityData map[string]interface{} `json:"activityData"`
}

type CheckInRequest struct {
	Note           string `json:"note"`
	PhotoObjectKey string `json:"photoObjectKey"`
}

type CheckInPhotoURLRequest struct {
	ContentType string `json:"contentType" binding:"required"`
}

// clientID pulls the authenticated customer's ObjectID out of the JWT context.
func clientID(c *gin.Context) (primitive.ObjectID, bool) {
	idStr, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify client.")
		return primitive.NilObjectID, false
	}
	id, err := primitive.ObjectIDFromHex(idStr)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid client ID format in token.")
		return primitive.NilObjectID, false
	}
	return id, true
}

// GetMyPrograms godoc
// @Summary Get my assigned programs
// @Description Active assignments with program details and progress.
// @Tags Client
// @Produce json
// @Security BearerAuth
// @Success 200 {array} service.AssignedProgram "List of assigned programs"
// @Router /client/programs [get]
func (h *ClientHandler) GetMyPrograms(c *gin.Context) {
	id, ok := clientID(c)
	if !ok {
		return
	}
	programs, err := h.clientService.GetMyPrograms(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to retrieve programs.")
		return
	}
	if programs == nil {
		programs = []service.AssignedProgram{}
	}
	c.JSON(http.StatusOK, programs)
}

// GetShopPrograms godoc
// @Summary Browse programs in the shop
// @Tags Client
// @Produce json
// @Security BearerAuth
// @Success 200 {array} domain.Program "Programs available for purchase"
// @Router /client/shop [get]
func (h *ClientHandler) GetShopPrograms(c *gin.Context) {
	programs, err := h.clientService.GetShopPrograms(c.Request.Context())
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to retrieve shop programs.")
		return
	}
	if programs == nil {
		programs = []domain.Program{}
	}
	c.JSON(http.StatusOK, programs)
}

// LogActivity godoc
// @Summary Log an activity event
// @Tags Client
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param activity body LogActivityRequest true "Activity details"
// @Success 201 {object} domain.ActivityEvent "Event recorded"
// @Router /client/activities [post]
func (h *ClientHandler) LogActivity(c *gin.Context) {
	id, ok := clientID(c)
	if !ok {
		return
	}
	var req LogActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	event, err := h.clientService.LogActivity(c.Request.Context(), id, req.ActivityType, bson.M(req.ActivityData))
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to log activity.")
		return
	}
	c.JSON(http.StatusCreated, event)
}

// RequestCheckInPhotoURL godoc
// @Summary Request a presigned upload URL for a check-in photo
// @Tags Client
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param upload body CheckInPhotoURLRequest true "Image content type"
// @Success 200 {object} service.UploadURLResponse "Presigned URL and object key"
// @Failure 400 {object} gin.H "Invalid content type"
// @Router /client/checkins/photo-url [post]
func (h *ClientHandler) RequestCheckInPhotoURL(c *gin.Context) {
	id, ok := clientID(c)
	if !ok {
		return
	}
	var req CheckInPhotoURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.clientService.RequestCheckInPhotoURL(c.Request.Context(), id, req.ContentType)
	if err != nil {
		if errors.Is(err, service.ErrInvalidContentType) {
			abortWithError(c, http.StatusBadRequest, err.Error())
		} else {
			abortWithError(c, http.StatusInternalServerError, "Failed to generate upload URL.")
		}
		return
	}
	c.JSON(http.StatusOK, resp)
}

// CheckIn godoc
// @Summary Record a check-in
// @Tags Client
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param checkin body CheckInRequest true "Check-in details"
// @Success 201 {object} domain.ActivityEvent "Check-in recorded"
// @Router /client/checkins [post]
func (h *ClientHandler) CheckIn(c *gin.Context) {
	id, ok := clientID(c)
	if !ok {
		return
	}
	var req CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	event, err := h.clientService.CheckIn(c.Request.Context(), id, req.Note, req.PhotoObjectKey)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	c.JSON(http.StatusCreated, event)
}

// GetMySubscription godoc
// @Summary Get my current subscription
// @Description Latest billing subscription record, maintained by the Stripe webhook.
// @Tags Client
// @Produce json
// @Security BearerAuth
// @Success 200 {object} domain.SubscriptionRecord "Subscription record"
// @Failure 404 {object} gin.H "No subscription on record"
// @Router /client/subscription [get]
func (h *ClientHandler) GetMySubscription(c *gin.Context) {
	id, ok := clientID(c)
	if !ok {
		return
	}
	record, err := h.clientService.GetMySubscription(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrNoSubscription) {
			abortWithError(c, http.StatusNotFound, err.Error())
		} else {
			abortWithError(c, http.StatusInternalServerError, "Failed to retrieve subscription.")
		}
		return
	}
	c.JSON(http.StatusOK, record)
}

// GetMyStatus godoc
// @Summary Get my derived coaching status
// @Description Same derivation the coach sees on their client list.
// @Tags Client
// @Produce json
// @Security BearerAuth
// @Success 200 {object} status.Classification "Status and urgency"
// @Router /client/status [get]
func (h *ClientHandler) GetMyStatus(c *gin.Context) {
	id, ok := clientID(c)
	if !ok {
		return
	}
	classification, err := h.clientService.GetMyStatus(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrClientNotFound) {
			abortWithError(c, http.StatusNotFound, err.Error())
		} else {
			abortWithError(c, http.StatusInternalServerError, "Failed to derive status.")
		}
		return
	}
	c.JSON(http.StatusOK, classification)
}
