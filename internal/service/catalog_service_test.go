package service

import (
	"context"
	"errors"
	"testing"

	"github.com/GTDGit/event_marketplace_api/internal/utils"
)

func TestCatalogCreateClassifies(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	sup := env.supplier(t)

	hall, err := env.catalog.Create(ctx, actorOf(sup), CreateServiceRequest{
		Name:          "Grand Hall",
		Category:      "Events",
		Subcategories: []string{"Wedding-Halls"},
		Price:         price(900),
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if hall.Bookable || !hall.ContactOnly.BySubcategory {
		t.Fatalf("expected contact-only by subcategory, got %+v", hall.ContactOnly)
	}
	if hall.PriceCurrency != "JOD" || !hall.PriceAvailable {
		t.Errorf("unexpected pricing %+v", hall.Service)
	}

	dj, err := env.catalog.Create(ctx, actorOf(sup), CreateServiceRequest{Name: "DJ", Category: "music", Price: price(150), PriceCurrency: "usd"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if !dj.Bookable || dj.PriceCurrency != "USD" {
		t.Fatalf("expected bookable USD service, got %+v", dj)
	}

	got, err := env.catalog.Get(ctx, dj.ID)
	if err != nil || got.Name != "DJ" {
		t.Fatalf("Get failed: %v %+v", err, got)
	}
	if _, err := env.catalog.Get(ctx, 999); !errors.Is(err, utils.ErrServiceNotFound) {
		t.Fatalf("expected ErrServiceNotFound, got %v", err)
	}
}

func TestCatalogCreateValidation(t *testing.T) {
	env := newTestEnv()
	sup := env.supplier(t)
	tests := []CreateServiceRequest{
		{Name: "a", Category: "music", Price: price(-1)},
		{Name: "a", Category: "music", MinCapacity: 10, MaxCapacity: 5},
		{Name: "a", Category: "music", PriceType: "barter"},
	}
	for _, req := range tests {
		if _, err := env.catalog.Create(context.Background(), actorOf(sup), req); !errors.Is(err, utils.ErrInvalidInput) {
			t.Errorf("%+v: expected ErrInvalidInput, got %v", req, err)
		}
	}
}
