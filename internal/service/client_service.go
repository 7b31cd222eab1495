package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path"
	"strings"
	"time"

	"trainwise/studio-backend/internal/domain"
	"trainwise/studio-backend/internal/repository"
	"trainwise/studio-backend/internal/status"
	"trainwise/studio-backend/internal/storage"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrUploadURLError     = errors.New("failed to generate upload URL")
	ErrInvalidContentType = errors.New("invalid or missing image content type")
	ErrNoSubscription     = errors.New("no subscription on record")
)

// UploadURLResponse structure for returning URL and object key
type UploadURLResponse struct {
	UploadURL string `json:"uploadUrl"`
	ObjectKey string `json:"objectKey"` // The key client reports back when confirming the check-in
}

// AssignedProgram combines an assignment with its program and the derived
// progress percentage for the customer's program list. HeaderImageURL is a
// short-lived presigned link resolved from the program's stored object key.
type AssignedProgram struct {
	domain.ProgramAssignment
	Program        *domain.Program `json:"program"`
	Progress       int             `json:"progress"`
	HeaderImageURL string          `json:"headerImageUrl,omitempty"`
}

type ClientService interface {
	// Program viewing
	GetMyPrograms(ctx context.Context, clientID primitive.ObjectID) ([]AssignedProgram, error)
	GetShopPrograms(ctx context.Context) ([]domain.Program, error)

	// Activity logging
	LogActivity(ctx context.Context, clientID primitive.ObjectID, activityType string, data bson.M) (*domain.ActivityEvent, error)
	RequestCheckInPhotoURL(ctx context.Context, clientID primitive.ObjectID, contentType string) (*UploadURLResponse, error)
	CheckIn(ctx context.Context, clientID primitive.ObjectID, note, photoObjectKey string) (*domain.ActivityEvent, error)

	// Self status
	GetMyStatus(ctx context.Context, clientID primitive.ObjectID) (*status.Classification, error)
	GetMySubscription(ctx context.Context, clientID primitive.ObjectID) (*domain.SubscriptionRecord, error)
}

// clientService implements the ClientService interface.
type clientService struct {
	userRepo         repository.UserRepository
	programRepo      repository.ProgramRepository
	assignmentRepo   repository.AssignmentRepository
	activityRepo     repository.ActivityRepository
	subscriptionRepo repository.SubscriptionRepository
	fileStorage      storage.FileStorage
}

// NewClientService creates a new instance of clientService.
func NewClientService(
	userRepo repository.UserRepository,
	programRepo repository.ProgramRepository,
	assignmentRepo repository.AssignmentRepository,
	activityRepo repository.ActivityRepository,
	subscriptionRepo repository.SubscriptionRepository,
	fileStorage storage.FileStorage,
) ClientService {
	return &clientService{
		userRepo:         userRepo,
		programRepo:      programRepo,
		assignmentRepo:   assignmentRepo,
		activityRepo:     activityRepo,
		subscriptionRepo: subscriptionRepo,
		fileStorage:      fileStorage,
	}
}

// === Program Viewing ===

// GetMyPrograms retrieves the customer's active assignments enriched with
// program details and progress.
func (s *clientService) GetMyPrograms(ctx context.Context, clientID primitive.ObjectID) ([]AssignedProgram, error) {
	assignments, err := s.assignmentRepo.GetActiveByClientID(ctx, clientID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	result := make([]AssignedProgram, 0, len(assignments))
	for _, assignment := range assignments {
		program, err := s.programRepo.GetByID(ctx, assignment.ProgramID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				// Dangling assignment; surface it without program details
				// rather than hiding it.
				program = nil
			} else {
				return nil, err
			}
		}
		entry := AssignedProgram{
			ProgramAssignment: assignment,
			Program:           program,
			Progress:          status.Progress([]domain.ProgramAssignment{assignment}, now),
		}
		if program != nil && program.HeaderImageKey != "" {
			url, err := s.fileStorage.GeneratePresignedDownloadURL(ctx, program.HeaderImageKey, storage.DefaultPresignedURLExpiry)
			if err != nil {
				// The list is still useful without the image.
				log.Printf("WARN: presign header image for program %s: %v", program.ID.Hex(), err)
			} else {
				entry.HeaderImageURL = url
			}
		}
		result = append(result, entry)
	}
	return result, nil
}

// GetShopPrograms lists programs published for purchase.
func (s *clientService) GetShopPrograms(ctx context.Context) ([]domain.Program, error) {
	return s.programRepo.GetShopPrograms(ctx)
}

// === Activity Logging ===

// LogActivity appends one event to the customer's activity log. The type is
// free-form; unknown types are fine, only recency feeds the status
// derivation.
func (s *clientService) LogActivity(ctx context.Context, clientID primitive.ObjectID, activityType string, data bson.M) (*domain.ActivityEvent, error) {
	if activityType == "" {
		return nil, errors.New("activity type is required")
	}
	event := &domain.ActivityEvent{
		ClientID:     clientID,
		ActivityType: activityType,
		ActivityData: data,
	}
	id, err := s.activityRepo.Create(ctx, event)
	if err != nil {
		return nil, err
	}
	event.ID = id
	return event, nil
}

// RequestCheckInPhotoURL generates a presigned URL for uploading a check-in
// photo directly to object storage.
func (s *clientService) RequestCheckInPhotoURL(ctx context.Context, clientID primitive.ObjectID, contentType string) (*UploadURLResponse, error) {
	if contentType == "" || !strings.HasPrefix(strings.ToLower(contentType), "image/") {
		return nil, ErrInvalidContentType
	}

	uniqueID := uuid.NewString()
	fileExtension := ""
	parts := strings.Split(contentType, "/")
	if len(parts) == 2 {
		fileExtension = parts[1]
	}
	objectKey := path.Join("checkins", clientID.Hex(), fmt.Sprintf("%s.%s", uniqueID, fileExtension))

	uploadURL, err := s.fileStorage.GeneratePresignedUploadURL(ctx, objectKey, contentType, storage.DefaultPresignedURLExpiry)
	if err != nil {
		return nil, ErrUploadURLError
	}

	return &UploadURLResponse{
		UploadURL: uploadURL,
		ObjectKey: objectKey,
	}, nil
}

// CheckIn records a check-in event, optionally referencing an uploaded
// photo by object key.
func (s *clientService) CheckIn(ctx context.Context, clientID primitive.ObjectID, note, photoObjectKey string) (*domain.ActivityEvent, error) {
	data := bson.M{}
	if note != "" {
		data["note"] = note
	}
	if photoObjectKey != "" {
		// Keys are issued under the client's own prefix; reject anything else.
		expectedPrefix := path.Join("checkins", clientID.Hex()) + "/"
		if !strings.HasPrefix(photoObjectKey, expectedPrefix) {
			return nil, errors.New("photo object key does not belong to this client")
		}
		data["photoObjectKey"] = photoObjectKey
	}
	return s.LogActivity(ctx, clientID, domain.ActivityCheckIn, data)
}

// === Self Status ===

// GetMyStatus runs the same classifier the coach views use, so the customer
// sees exactly what their coach sees.
func (s *clientService) GetMyStatus(ctx context.Context, clientID primitive.ObjectID) (*status.Classification, error) {
	client, err := s.userRepo.GetByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}

	now := time.Now().UTC()
	assignments, err := s.assignmentRepo.GetActiveByClientID(ctx, clientID)
	if err != nil {
		return nil, err
	}
	activities, err := s.activityRepo.GetByClientIDSince(ctx, clientID, now.Add(-activityLookback))
	if err != nil {
		return nil, err
	}

	classification, err := status.Classify(client, assignments, activities, now)
	if err != nil {
		return nil, err
	}
	return &classification, nil
}

// GetMySubscription returns the customer's most recent billing subscription
// record, or ErrNoSubscription if billing has never written one. The record
// is maintained solely by the webhook reconciler; this is a read-only view.
func (s *clientService) GetMySubscription(ctx context.Context, clientID primitive.ObjectID) (*domain.SubscriptionRecord, error) {
	record, err := s.subscriptionRepo.GetLatestByUserID(ctx, clientID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoSubscription
		}
		return nil, err
	}
	return record, nil
}
