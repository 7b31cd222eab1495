package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"trainwise/studio-backend/internal/domain"
	"trainwise/studio-backend/internal/repository"
	"trainwise/studio-backend/internal/status"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrClientNotFound           = errors.New("client not found")
	ErrClientNotManagedByCoach  = errors.New("client is not managed by this coach")
	ErrProgramNotFound          = errors.New("program not found")
	ErrProgramNotOwnedByCoach   = errors.New("program does not belong to this coach")
	ErrProgramNotAssignable     = errors.New("program cannot be assigned in its current status")
	ErrIllegalProgramTransition = errors.New("illegal program status transition")
	ErrAssignmentNotFound       = errors.New("assignment not found")
	ErrUserIsNotCustomer        = errors.New("user is not a customer")
)

// activityLookback bounds how much history feeds the status derivation.
// 90 days comfortably exceeds every classifier threshold.
const activityLookback = 90 * 24 * time.Hour

// recentActivityLimit caps the events shown on the client detail view.
const recentActivityLimit int64 = 20

// ClientOverview is one row of the coach's client list: profile basics plus
// the derived coaching status.
type ClientOverview struct {
	ID                  string              `json:"id"`
	Name                string              `json:"name"`
	Email               string              `json:"email"`
	PlanType            domain.PlanType     `json:"planType"`
	OnboardingCompleted bool                `json:"onboardingCompleted"`
	Status              status.ClientStatus `json:"status"`
	Urgency             status.Urgency      `json:"urgency"`
	Progress            int                 `json:"progress"`
	CreatedAt           time.Time           `json:"createdAt"`
}

// ClientDetail extends the overview with activity and assignment history.
type ClientDetail struct {
	ClientOverview
	Assignments []domain.ProgramAssignment `json:"assignments"`
	Activities  []domain.ActivityEvent     `json:"activities"`
}

type CoachService interface {
	// Client management
	AddClientByEmail(ctx context.Context, coachID primitive.ObjectID, email string) (*domain.User, error)
	GetManagedClients(ctx context.Context, coachID primitive.ObjectID) ([]ClientOverview, error)
	GetClientDetail(ctx context.Context, coachID, clientID primitive.ObjectID) (*ClientDetail, error)
	CommentOnClient(ctx context.Context, coachID, clientID primitive.ObjectID, comment string) error

	// Program building
	CreateProgram(ctx context.Context, coachID primitive.ObjectID, title, description string, category domain.ProgramCategory, durationWeeks int) (*domain.Program, error)
	UpdateProgram(ctx context.Context, coachID primitive.ObjectID, program *domain.Program) error
	GetMyPrograms(ctx context.Context, coachID primitive.ObjectID) ([]domain.Program, error)
	SaveProgram(ctx context.Context, coachID, programID primitive.ObjectID) error
	PublishToShop(ctx context.Context, coachID, programID primitive.ObjectID) error
	WithdrawFromShop(ctx context.Context, coachID, programID primitive.ObjectID) error

	// Assignment lifecycle
	AssignProgram(ctx context.Context, coachID, clientID, programID primitive.ObjectID, expiresAt *time.Time) (*domain.ProgramAssignment, error)
	CancelAssignment(ctx context.Context, coachID, assignmentID primitive.ObjectID) error
}

// coachService implements the CoachService interface.
type coachService struct {
	userRepo       repository.UserRepository
	programRepo    repository.ProgramRepository
	assignmentRepo repository.AssignmentRepository
	activityRepo   repository.ActivityRepository
}

// NewCoachService creates a new instance of coachService.
func NewCoachService(
	userRepo repository.UserRepository,
	programRepo repository.ProgramRepository,
	assignmentRepo repository.AssignmentRepository,
	activityRepo repository.ActivityRepository,
) CoachService {
	return &coachService{
		userRepo:       userRepo,
		programRepo:    programRepo,
		assignmentRepo: assignmentRepo,
		activityRepo:   activityRepo,
	}
}

// === Client Management ===

// AddClientByEmail links an existing customer account to the coach.
func (s *coachService) AddClientByEmail(ctx context.Context, coachID primitive.ObjectID, email string) (*domain.User, error) {
	client, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	if !client.IsCustomer() {
		return nil, ErrUserIsNotCustomer
	}

	if err := s.userRepo.AddClientIDToCoach(ctx, coachID, client.ID); err != nil {
		return nil, err
	}
	if err := s.userRepo.SetCoachForClient(ctx, client.ID, coachID); err != nil {
		return nil, err
	}

	client.PasswordHash = ""
	return client, nil
}

// GetManagedClients builds the coach's client list with one derived status
// per customer. The derivation happens at read time: status is a pure
// projection of assignments and activity, so there is nothing to invalidate.
func (s *coachService) GetManagedClients(ctx context.Context, coachID primitive.ObjectID) ([]ClientOverview, error) {
	clients, err := s.userRepo.GetClientsByCoachID(ctx, coachID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	overviews := make([]ClientOverview, 0, len(clients))
	for i := range clients {
		overview, err := s.buildOverview(ctx, &clients[i], now)
		if err != nil {
			// One bad profile must not blank the whole list.
			log.Printf("WARN: skipping client %s in list: %v", clients[i].ID.Hex(), err)
			continue
		}
		overviews = append(overviews, *overview)
	}
	return overviews, nil
}

// GetClientDetail returns one customer's overview plus recent history.
func (s *coachService) GetClientDetail(ctx context.Context, coachID, clientID primitive.ObjectID) (*ClientDetail, error) {
	client, err := s.managedClient(ctx, coachID, clientID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	overview, err := s.buildOverview(ctx, client, now)
	if err != nil {
		return nil, err
	}

	assignments, err := s.assignmentRepo.GetByClientID(ctx, clientID)
	if err != nil {
		return nil, err
	}
	activities, err := s.activityRepo.GetRecentByClientID(ctx, clientID, recentActivityLimit)
	if err != nil {
		return nil, err
	}

	return &ClientDetail{
		ClientOverview: *overview,
		Assignments:    assignments,
		Activities:     activities,
	}, nil
}

// buildOverview fetches the classifier inputs for one customer and runs the
// derivation. Uses the same classifier as the detail view so both surfaces
// always agree.
func (s *coachService) buildOverview(ctx context.Context, client *domain.User, now time.Time) (*ClientOverview, error) {
	assignments, err := s.assignmentRepo.GetActiveByClientID(ctx, client.ID)
	if err != nil {
		return nil, err
	}
	activities, err := s.activityRepo.GetByClientIDSince(ctx, client.ID, now.Add(-activityLookback))
	if err != nil {
		return nil, err
	}

	classification, err := status.Classify(client, assignments, activities, now)
	if err != nil {
		return nil, fmt.Errorf("classify client %s: %w", client.ID.Hex(), err)
	}

	return &ClientOverview{
		ID:                  client.ID.Hex(),
		Name:                client.Name,
		Email:               client.Email,
		PlanType:            client.PlanType,
		OnboardingCompleted: client.OnboardingCompleted,
		Status:              classification.Status,
		Urgency:             classification.Urgency,
		Progress:            status.Progress(assignments, now),
		CreatedAt:           client.CreatedAt,
	}, nil
}

// CommentOnClient appends coach feedback to the customer's activity log.
// Feedback counts as activity, so commenting moves a waiting-feedback
// customer back toward on-track.
func (s *coachService) CommentOnClient(ctx context.Context, coachID, clientID primitive.ObjectID, comment string) error {
	if comment == "" {
		return errors.New("comment cannot be empty")
	}
	if _, err := s.managedClient(ctx, coachID, clientID); err != nil {
		return err
	}

	event := &domain.ActivityEvent{
		ClientID:     clientID,
		ActivityType: domain.ActivityCoachComment,
		ActivityData: bson.M{
			"coachId": coachID.Hex(),
			"comment": comment,
		},
	}
	_, err := s.activityRepo.Create(ctx, event)
	return err
}

// === Program Building ===

// CreateProgram creates a new draft program for the coach.
func (s *coachService) CreateProgram(ctx context.Context, coachID primitive.ObjectID, title, description string, category domain.ProgramCategory, durationWeeks int) (*domain.Program, error) {
	program := &domain.Program{
		CoachID:       coachID,
		Title:         title,
		Description:   description,
		Category:      category,
		Status:        domain.ProgramDraft,
		DurationWeeks: durationWeeks,
	}
	id, err := s.programRepo.Create(ctx, program)
	if err != nil {
		return nil, err
	}
	program.ID = id
	return program, nil
}

// UpdateProgram edits the content fields of a program the coach owns.
func (s *coachService) UpdateProgram(ctx context.Context, coachID primitive.ObjectID, program *domain.Program) error {
	if _, err := s.ownedProgram(ctx, coachID, program.ID); err != nil {
		return err
	}
	program.CoachID = coachID
	return s.programRepo.Update(ctx, program)
}

// GetMyPrograms lists every program the coach created.
func (s *coachService) GetMyPrograms(ctx context.Context, coachID primitive.ObjectID) ([]domain.Program, error) {
	return s.programRepo.GetByCoachID(ctx, coachID)
}

// SaveProgram finalizes a draft, making it assignable and publishable.
func (s *coachService) SaveProgram(ctx context.Context, coachID, programID primitive.ObjectID) error {
	return s.transitionProgram(ctx, coachID, programID, domain.ProgramDraft, domain.ProgramSaved)
}

// PublishToShop puts a saved program up for purchase.
func (s *coachService) PublishToShop(ctx context.Context, coachID, programID primitive.ObjectID) error {
	return s.transitionProgram(ctx, coachID, programID, domain.ProgramSaved, domain.ProgramInShop)
}

// WithdrawFromShop takes a program out of the shop, back to saved.
func (s *coachService) WithdrawFromShop(ctx context.Context, coachID, programID primitive.ObjectID) error {
	return s.transitionProgram(ctx, coachID, programID, domain.ProgramInShop, domain.ProgramSaved)
}

func (s *coachService) transitionProgram(ctx context.Context, coachID, programID primitive.ObjectID, from, to domain.ProgramStatus) error {
	program, err := s.ownedProgram(ctx, coachID, programID)
	if err != nil {
		return err
	}
	if !program.Status.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalProgramTransition, program.Status, to)
	}
	if err := s.programRepo.UpdateStatus(ctx, programID, from, to); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Lost a race with a concurrent transition.
			return fmt.Errorf("%w: %s -> %s", ErrIllegalProgramTransition, from, to)
		}
		return err
	}
	return nil
}

// === Assignment Lifecycle ===

// AssignProgram assigns a saved (or already assigned) program to a managed
// customer. Any active assignment the customer has in the same category is
// cancelled first, so at most one stays active per category.
func (s *coachService) AssignProgram(ctx context.Context, coachID, clientID, programID primitive.ObjectID, expiresAt *time.Time) (*domain.ProgramAssignment, error) {
	if _, err := s.managedClient(ctx, coachID, clientID); err != nil {
		return nil, err
	}
	program, err := s.ownedProgram(ctx, coachID, programID)
	if err != nil {
		return nil, err
	}
	if !program.Status.CanTransitionTo(domain.ProgramAssigned) {
		return nil, fmt.Errorf("%w: program is %s", ErrProgramNotAssignable, program.Status)
	}

	cancelled, err := s.assignmentRepo.CancelActiveByClientAndCategory(ctx, clientID, program.Category)
	if err != nil {
		return nil, err
	}
	if cancelled > 0 {
		log.Printf("INFO: cancelled %d previous %s assignment(s) for client %s", cancelled, program.Category, clientID.Hex())
	}

	now := time.Now().UTC()
	assignment := &domain.ProgramAssignment{
		ProgramID:  programID,
		ClientID:   clientID,
		CoachID:    coachID,
		Category:   program.Category,
		AssignedAt: now,
		ExpiresAt:  expiresAt,
		Status:     domain.AssignmentActive,
	}
	id, err := s.assignmentRepo.Create(ctx, assignment)
	if err != nil {
		return nil, err
	}
	assignment.ID = id

	if program.Status == domain.ProgramSaved {
		if err := s.programRepo.UpdateStatus(ctx, programID, domain.ProgramSaved, domain.ProgramAssigned); err != nil {
			// The assignment stands; the program status catches up on the
			// next assign. Log rather than unwind.
			log.Printf("WARN: program %s not flipped to assigned: %v", programID.Hex(), err)
		}
	}
	return assignment, nil
}

// CancelAssignment cancels one assignment owned by the coach.
func (s *coachService) CancelAssignment(ctx context.Context, coachID, assignmentID primitive.ObjectID) error {
	assignment, err := s.assignmentRepo.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAssignmentNotFound
		}
		return err
	}
	if assignment.CoachID != coachID {
		return ErrClientNotManagedByCoach
	}
	return s.assignmentRepo.UpdateStatus(ctx, assignmentID, domain.AssignmentCancelled)
}

// --- helpers ---

// managedClient verifies the customer exists and is managed by the coach.
func (s *coachService) managedClient(ctx context.Context, coachID, clientID primitive.ObjectID) (*domain.User, error) {
	client, err := s.userRepo.GetByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	if !client.IsCustomer() {
		return nil, ErrUserIsNotCustomer
	}
	if client.CoachID == nil || *client.CoachID != coachID {
		return nil, ErrClientNotManagedByCoach
	}
	return client, nil
}

// ownedProgram verifies the program exists and belongs to the coach.
func (s *coachService) ownedProgram(ctx context.Context, coachID, programID primitive.ObjectID) (*domain.Program, error) {
	program, err := s.programRepo.GetByID(ctx, programID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProgramNotFound
		}
		return nil, err
	}
	if program.CoachID != coachID {
		return nil, ErrProgramNotOwnedByCoach
	}
	return program, nil
}
