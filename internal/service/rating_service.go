package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/GTDGit/event_marketplace_api/internal/models"
	"github.com/GTDGit/event_marketplace_api/internal/utils"
)

const (
	maxRatingComment = 1000
	maxRatingPage    = 50
)

// RatingService lets clients who dealt with a supplier rate the service.
type RatingService struct {
	ratings  RatingStore
	services ServiceStore
}

// NewRatingService constructs a RatingService.
func NewRatingService(ratings RatingStore, services ServiceStore) *RatingService {
	return &RatingService{ratings: ratings, services: services}
}

// RateRequest is the body of POST /v1/services/:id/ratings.
type RateRequest struct {
	Score   int    `json:"score"`
	Comment string `json:"comment"`
}

// RateResult is the stored rating and the updated service summary.
type RateResult struct {
	Rating  *models.Rating        `json:"rating"`
	Summary *models.RatingSummary `json:"summary"`
}

// Eligibility tells a client whether they may rate a service.
type Eligibility struct {
	Eligible bool           `json:"eligible"`
	Rating   *models.Rating `json:"rating,omitempty"`
}

// Rate stores the actor's rating of a service. Only a client with a
// confirmed booking, or whose contact request was answered, may rate.
func (s *RatingService) Rate(ctx context.Context, actor Actor, serviceID int, req RateRequest) (*RateResult, error) {
	if req.Score < 1 || req.Score > 5 {
		return nil, utils.ErrInvalidScore
	}
	comment := strings.TrimSpace(req.Comment)
	if len([]rune(comment)) > maxRatingComment {
		return nil, utils.ErrInvalidInput.WithMessage("comment must be at most 1000 characters")
	}
	if err := s.ensureService(ctx, serviceID); err != nil {
		return nil, err
	}
	ok, err := s.eligible(ctx, serviceID, actor.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, utils.ErrNotEligible
	}

	rt := &models.Rating{ServiceID: serviceID, UserID: actor.ID, Score: req.Score, Comment: comment}
	if err := s.ratings.Upsert(ctx, rt); err != nil {
		return nil, utils.Internal(err)
	}
	summary, err := s.ratings.Summary(ctx, serviceID)
	if err != nil {
		return nil, utils.Internal(err)
	}
	log.Info().Int("service_id", serviceID).Int("user_id", actor.ID).Int("score", rt.Score).Msg("Service rated")
	return &RateResult{Rating: rt, Summary: summary}, nil
}

// List returns a page of a service's ratings.
func (s *RatingService) List(ctx context.Context, serviceID, page, limit int) ([]*models.Rating, int, error) {
	if limit > maxRatingPage {
		limit = maxRatingPage
	}
	if err := s.ensureService(ctx, serviceID); err != nil {
		return nil, 0, err
	}
	items, total, err := s.ratings.ListByService(ctx, serviceID, page, limit)
	if err != nil {
		return nil, 0, utils.Internal(err)
	}
	if items == nil {
		items = []*models.Rating{}
	}
	return items, total, nil
}

// Summary returns the average score and rating count of a service.
func (s *RatingService) Summary(ctx context.Context, serviceID int) (*models.RatingSummary, error) {
	if err := s.ensureService(ctx, serviceID); err != nil {
		return nil, err
	}
	sum, err := s.ratings.Summary(ctx, serviceID)
	if err != nil {
		return nil, utils.Internal(err)
	}
	return sum, nil
}

// Eligibility reports whether the actor may rate the service, along with
// their current rating.
func (s *RatingService) Eligibility(ctx context.Context, actor Actor, serviceID int) (*Eligibility, error) {
	if err := s.ensureService(ctx, serviceID); err != nil {
		return nil, err
	}
	ok, err := s.eligible(ctx, serviceID, actor.ID)
	if err != nil {
		return nil, err
	}
	out := &Eligibility{Eligible: ok}
	rt, err := s.ratings.GetByUser(ctx, serviceID, actor.ID)
	switch {
	case err == nil:
		out.Rating = rt
	case !errors.Is(err, sql.ErrNoRows):
		return nil, utils.Internal(err)
	}
	return out, nil
}

// Mine returns the actor's rating of the service.
func (s *RatingService) Mine(ctx context.Context, actor Actor, serviceID int) (*models.Rating, error) {
	rt, err := s.ratings.GetByUser(ctx, serviceID, actor.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, utils.ErrRatingNotFound
	}
	if err != nil {
		return nil, utils.Internal(err)
	}
	return rt, nil
}

func (s *RatingService) ensureService(ctx context.Context, serviceID int) error {
	_, err := s.services.GetByID(ctx, serviceID)
	if errors.Is(err, sql.ErrNoRows) {
		return utils.ErrServiceNotFound
	}
	if err != nil {
		return utils.Internal(err)
	}
	return nil
}

func (s *RatingService) eligible(ctx context.Context, serviceID, clientID int) (bool, error) {
	ok, err := s.ratings.HasConfirmedBooking(ctx, serviceID, clientID)
	if err != nil {
		return false, utils.Internal(err)
	}
	if ok {
		return true, nil
	}
	ok, err = s.ratings.HasAnsweredContact(ctx, serviceID, clientID)
	if err != nil {
		return false, utils.Internal(err)
	}
	return ok, nil
}
