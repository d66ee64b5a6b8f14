package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/GTDGit/event_marketplace_api/internal/models"
	"github.com/GTDGit/event_marketplace_api/internal/notify"
	"github.com/GTDGit/event_marketplace_api/internal/repository"
	"github.com/GTDGit/event_marketplace_api/internal/utils"
)

const maxJoinNotes = 1000

// JoinRequestService handles supplier applications and their review.
type JoinRequestService struct {
	requests JoinRequestStore
	users    UserStore
	notifier notify.Notifier
}

// NewJoinRequestService constructs a JoinRequestService. notifier may be nil.
func NewJoinRequestService(requests JoinRequestStore, users UserStore, notifier notify.Notifier) *JoinRequestService {
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}
	return &JoinRequestService{requests: requests, users: users, notifier: notifier}
}

// SubmitJoinRequest is the body of POST /v1/join-requests.
type SubmitJoinRequest struct {
	Name        string `json:"name" binding:"required"`
	Phone       string `json:"phone" binding:"required"`
	Country     string `json:"country" binding:"required"`
	ServiceType string `json:"serviceType" binding:"required"`
	City        string `json:"city" binding:"required"`
	Notes       string `json:"notes"`
}

// Submit records a new application. Only one pending application per phone
// is accepted.
func (s *JoinRequestService) Submit(ctx context.Context, req SubmitJoinRequest) (*models.JoinRequest, error) {
	jr := &models.JoinRequest{
		Name:        strings.TrimSpace(req.Name),
		Phone:       strings.TrimSpace(req.Phone),
		Country:     strings.ToLower(strings.TrimSpace(req.Country)),
		ServiceType: strings.TrimSpace(req.ServiceType),
		City:        strings.TrimSpace(req.City),
		Notes:       strings.TrimSpace(req.Notes),
	}
	switch {
	case jr.Name == "" || jr.Phone == "" || jr.ServiceType == "" || jr.City == "":
		return nil, utils.ErrInvalidInput.WithMessage("name, phone, serviceType and city are required")
	case jr.Country != models.CountryJordan && jr.Country != models.CountryKuwait:
		return nil, utils.ErrInvalidInput.WithMessage("country must be jordan or kuwait")
	case len([]rune(jr.Notes)) > maxJoinNotes:
		return nil, utils.ErrInvalidInput.WithMessage("notes are too long")
	}

	err := s.requests.Create(ctx, jr)
	if errors.Is(err, repository.ErrStaleState) {
		return nil, utils.ErrJoinRequestPending
	}
	if err != nil {
		return nil, utils.Internal(err)
	}
	log.Info().Int("join_request_id", jr.ID).Str("phone", jr.Phone).Msg("Join request submitted")
	return jr, nil
}

// List returns a page of applications, optionally filtered by status.
func (s *JoinRequestService) List(ctx context.Context, f models.JoinRequestFilter) ([]*models.JoinRequest, int, error) {
	if f.Status != "" && !models.JoinRequestStatus(f.Status).Valid() {
		return nil, 0, utils.ErrInvalidStatus
	}
	items, total, err := s.requests.List(ctx, f)
	if err != nil {
		return nil, 0, utils.Internal(err)
	}
	if items == nil {
		items = []*models.JoinRequest{}
	}
	return items, total, nil
}

// MarkReviewed flags a pending application as seen by an admin.
func (s *JoinRequestService) MarkReviewed(ctx context.Context, actor Actor, id int) (*models.JoinRequest, error) {
	return s.transition(ctx, actor, id, []models.JoinRequestStatus{models.JoinPending}, models.JoinReviewed, nil)
}

// Approve turns the applicant into a supplier. An existing account with the
// same phone is promoted; otherwise a new supplier account is created.
// Approving an approved application fails with ErrJoinRequestClosed.
func (s *JoinRequestService) Approve(ctx context.Context, actor Actor, id int) (*models.JoinRequest, error) {
	jr, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if jr.Status == models.JoinApproved {
		return nil, utils.ErrJoinRequestClosed
	}

	u, err := s.ensureSupplier(ctx, jr)
	if err != nil {
		return nil, err
	}
	from := []models.JoinRequestStatus{models.JoinPending, models.JoinReviewed, models.JoinRejected}
	jr, err = s.transition(ctx, actor, id, from, models.JoinApproved, &u.ID)
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, u.Phone, u.Language, notify.JoinRequestApproved, jr.Name)
	log.Info().Int("join_request_id", id).Int("user_id", u.ID).Int("actor_id", actor.ID).Msg("Join request approved")
	return jr, nil
}

// Reject declines an application that has not been decided yet.
func (s *JoinRequestService) Reject(ctx context.Context, actor Actor, id int) (*models.JoinRequest, error) {
	from := []models.JoinRequestStatus{models.JoinPending, models.JoinReviewed}
	jr, err := s.transition(ctx, actor, id, from, models.JoinRejected, nil)
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, jr.Phone, models.LangArabic, notify.JoinRequestRejected)
	log.Info().Int("join_request_id", id).Int("actor_id", actor.ID).Msg("Join request rejected")
	return jr, nil
}

func (s *JoinRequestService) get(ctx context.Context, id int) (*models.JoinRequest, error) {
	jr, err := s.requests.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, utils.ErrJoinRequestNotFound
	}
	if err != nil {
		return nil, utils.Internal(err)
	}
	return jr, nil
}

func (s *JoinRequestService) transition(ctx context.Context, actor Actor, id int, from []models.JoinRequestStatus, to models.JoinRequestStatus, userID *int) (*models.JoinRequest, error) {
	jr, err := s.requests.SetStatus(ctx, id, from, to, actor.ID, userID)
	if errors.Is(err, repository.ErrStaleState) {
		if _, err := s.get(ctx, id); err != nil {
			return nil, err
		}
		return nil, utils.ErrJoinRequestClosed
	}
	if err != nil {
		return nil, utils.Internal(err)
	}
	return jr, nil
}

// ensureSupplier promotes the account owning the applicant's phone, or
// creates one. Admin accounts keep their role.
func (s *JoinRequestService) ensureSupplier(ctx context.Context, jr *models.JoinRequest) (*models.User, error) {
	u, err := s.users.GetByPhone(ctx, jr.Phone)
	switch {
	case err == nil:
		if u.Role == models.RoleSupplier || u.Role == models.RoleAdmin {
			return u, nil
		}
		promoted, err := s.users.SetRole(ctx, u.ID, models.RoleSupplier)
		if err != nil {
			return nil, utils.Internal(err)
		}
		log.Info().Int("user_id", u.ID).Msg("User promoted to supplier")
		return promoted, nil
	case !errors.Is(err, sql.ErrNoRows):
		return nil, utils.Internal(err)
	}

	u = &models.User{Name: jr.Name, Phone: jr.Phone, Language: models.LangArabic, Role: models.RoleSupplier}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, utils.Internal(err)
	}
	if u.Role != models.RoleSupplier && u.Role != models.RoleAdmin {
		// Lost a race with a sign-up on the same phone.
		if u, err = s.users.SetRole(ctx, u.ID, models.RoleSupplier); err != nil {
			return nil, utils.Internal(err)
		}
	}
	return u, nil
}
