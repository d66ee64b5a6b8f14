package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/GTDGit/event_marketplace_api/internal/models"
	"github.com/GTDGit/event_marketplace_api/internal/policy"
	"github.com/GTDGit/event_marketplace_api/internal/utils"
)

// CatalogService is the minimal service catalog the workflows read from.
type CatalogService struct {
	services        ServiceStore
	defaultCurrency string
}

// NewCatalogService constructs a CatalogService.
func NewCatalogService(services ServiceStore, defaultCurrency string) *CatalogService {
	if defaultCurrency == "" {
		defaultCurrency = "JOD"
	}
	return &CatalogService{services: services, defaultCurrency: defaultCurrency}
}

// CreateServiceRequest is the body of POST /v1/services.
type CreateServiceRequest struct {
	Name          string              `json:"name" binding:"required"`
	Category      string              `json:"category" binding:"required"`
	Subcategories []string            `json:"subcategories"`
	Price         *float64            `json:"price"`
	PriceCurrency string              `json:"priceCurrency"`
	PriceType     models.PriceType    `json:"priceType"`
	Availability  models.Availability `json:"availability"`
	MinCapacity   int                 `json:"minCapacity"`
	MaxCapacity   int                 `json:"maxCapacity"`
}

// ServiceView is a service plus its contact-only classification.
type ServiceView struct {
	*models.Service
	ContactOnly policy.ContactOnly `json:"contactOnly"`
	Bookable    bool               `json:"bookable"`
}

func viewOf(s *models.Service) *ServiceView {
	c := policy.Classify(s)
	return &ServiceView{Service: s, ContactOnly: c, Bookable: !c.Any()}
}

// Create adds a service owned by the calling supplier.
func (s *CatalogService) Create(ctx context.Context, actor Actor, req CreateServiceRequest) (*ServiceView, error) {
	if req.Price != nil && *req.Price < 0 {
		return nil, utils.ErrInvalidInput.WithMessage("price must not be negative")
	}
	if req.MinCapacity < 0 || req.MaxCapacity < 0 || (req.MaxCapacity > 0 && req.MinCapacity > req.MaxCapacity) {
		return nil, utils.ErrInvalidInput.WithMessage("invalid capacity range")
	}
	if r := req.Availability.DateRange; r != nil && r.To.Before(r.From) {
		return nil, utils.ErrInvalidInput.WithMessage("availability range ends before it starts")
	}

	priceType := req.PriceType
	if priceType == "" {
		priceType = models.PriceFixed
		if req.Price == nil {
			priceType = models.PriceNotProvided
		}
	}
	if !priceType.Valid() {
		return nil, utils.ErrInvalidInput.WithMessage("unknown price type")
	}
	currency := strings.ToUpper(strings.TrimSpace(req.PriceCurrency))
	if currency == "" {
		currency = s.defaultCurrency
	}

	svc := &models.Service{
		SupplierID:     actor.ID,
		Name:           strings.TrimSpace(req.Name),
		Category:       strings.ToLower(strings.TrimSpace(req.Category)),
		Subcategories:  req.Subcategories,
		Price:          req.Price,
		PriceCurrency:  currency,
		PriceType:      priceType,
		PriceAvailable: req.Price != nil && priceType != models.PriceNotProvided,
		Availability:   req.Availability,
		MinCapacity:    req.MinCapacity,
		MaxCapacity:    req.MaxCapacity,
	}
	if err := s.services.Create(ctx, svc); err != nil {
		return nil, utils.Internal(err)
	}
	return viewOf(svc), nil
}

// Get returns a service by id.
func (s *CatalogService) Get(ctx context.Context, id int) (*ServiceView, error) {
	svc, err := s.services.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, utils.ErrServiceNotFound
	}
	if err != nil {
		return nil, utils.Internal(err)
	}
	return viewOf(svc), nil
}
