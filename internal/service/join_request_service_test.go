package service

import (
	"context"
	"errors"
	"testing"

	"github.com/GTDGit/event_marketplace_api/internal/models"
	"github.com/GTDGit/event_marketplace_api/internal/notify"
	"github.com/GTDGit/event_marketplace_api/internal/utils"
)

var reviewer = Actor{ID: 900, Role: models.RoleAdmin}

func submitJoin(t *testing.T, env *testEnv, phone string) *models.JoinRequest {
	t.Helper()
	jr, err := env.joinSvc.Submit(context.Background(), SubmitJoinRequest{
		Name: "Rana Events", Phone: phone, Country: "Jordan", ServiceType: "catering", City: "Amman",
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	return jr
}

func TestApproveJoinRequestPromotesExistingUser(t *testing.T) {
	env := newTestEnv()
	existing := env.users.add(models.User{Name: "Rana", Phone: "+962790001000", Role: models.RoleClient})
	jr := submitJoin(t, env, existing.Phone)
	if jr.Country != models.CountryJordan {
		t.Fatalf("expected normalized country, got %q", jr.Country)
	}

	approved, err := env.joinSvc.Approve(context.Background(), reviewer, jr.ID)
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if approved.Status != models.JoinApproved || approved.UserID == nil || *approved.UserID != existing.ID {
		t.Fatalf("unexpected approved request: %+v", approved)
	}
	if got := env.users.snapshot(existing.ID); got.Role != models.RoleSupplier {
		t.Fatalf("expected user promoted to supplier, got %s", got.Role)
	}
	if len(env.users.rows) != 1 {
		t.Fatalf("approval must not create a second account, have %d", len(env.users.rows))
	}
	if env.notifier.count(notify.JoinRequestApproved) != 1 {
		t.Error("expected approval notification")
	}
}

func TestApproveJoinRequestCreatesSupplier(t *testing.T) {
	env := newTestEnv()
	jr := submitJoin(t, env, "+962790001001")

	approved, err := env.joinSvc.Approve(context.Background(), reviewer, jr.ID)
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	u := env.users.snapshot(*approved.UserID)
	if u.Role != models.RoleSupplier || u.Phone != jr.Phone || u.Name != jr.Name {
		t.Fatalf("unexpected supplier account: %+v", u)
	}
}

func TestApproveJoinRequestTwice(t *testing.T) {
	env := newTestEnv()
	jr := submitJoin(t, env, "+962790001002")

	if _, err := env.joinSvc.Approve(context.Background(), reviewer, jr.ID); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	_, err := env.joinSvc.Approve(context.Background(), reviewer, jr.ID)
	if !errors.Is(err, utils.ErrJoinRequestClosed) {
		t.Fatalf("expected ErrJoinRequestClosed, got %v", err)
	}
	if utils.KindOf(err) != utils.KindInvalidState {
		t.Fatalf("expected invalid state, got %v", utils.KindOf(err))
	}
	if env.notifier.count(notify.JoinRequestApproved) != 1 {
		t.Error("second approval must not notify")
	}
}

func TestApproveKeepsAdminRole(t *testing.T) {
	env := newTestEnv()
	a := env.users.add(models.User{Name: "Ops", Phone: "+962790001003", Role: models.RoleAdmin})
	jr := submitJoin(t, env, a.Phone)

	if _, err := env.joinSvc.Approve(context.Background(), reviewer, jr.ID); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if got := env.users.snapshot(a.ID); got.Role != models.RoleAdmin {
		t.Fatalf("admin must keep the admin role, got %s", got.Role)
	}
}

func TestRejectThenApprove(t *testing.T) {
	env := newTestEnv()
	jr := submitJoin(t, env, "+962790001004")
	ctx := context.Background()

	if _, err := env.joinSvc.MarkReviewed(ctx, reviewer, jr.ID); err != nil {
		t.Fatalf("MarkReviewed failed: %v", err)
	}
	rejected, err := env.joinSvc.Reject(ctx, reviewer, jr.ID)
	if err != nil {
		t.Fatalf("Reject failed: %v", err)
	}
	if rejected.Status != models.JoinRejected || rejected.ReviewedBy == nil || *rejected.ReviewedBy != reviewer.ID {
		t.Fatalf("unexpected rejected request: %+v", rejected)
	}
	if _, err := env.joinSvc.Reject(ctx, reviewer, jr.ID); !errors.Is(err, utils.ErrJoinRequestClosed) {
		t.Fatalf("expected ErrJoinRequestClosed on second reject, got %v", err)
	}
	if env.notifier.count(notify.JoinRequestRejected) != 1 {
		t.Error("expected one rejection notification")
	}

	if _, err := env.joinSvc.Approve(ctx, reviewer, jr.ID); err != nil {
		t.Fatalf("a rejected application can still be approved: %v", err)
	}
}

func TestSubmitJoinRequestValidation(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	submitJoin(t, env, "+962790001005")

	cases := []struct {
		name string
		req  SubmitJoinRequest
		want error
	}{
		{"duplicate pending", SubmitJoinRequest{Name: "A", Phone: "+962790001005", Country: "jordan", ServiceType: "x", City: "Amman"}, utils.ErrJoinRequestPending},
		{"unknown country", SubmitJoinRequest{Name: "A", Phone: "+962790001006", Country: "egypt", ServiceType: "x", City: "Cairo"}, utils.ErrInvalidInput},
		{"blank city", SubmitJoinRequest{Name: "A", Phone: "+962790001007", Country: "kuwait", ServiceType: "x", City: " "}, utils.ErrInvalidInput},
	}
	for _, tc := range cases {
		if _, err := env.joinSvc.Submit(ctx, tc.req); !errors.Is(err, tc.want) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestJoinRequestNotFound(t *testing.T) {
	env := newTestEnv()
	if _, err := env.joinSvc.Approve(context.Background(), reviewer, 77); !errors.Is(err, utils.ErrJoinRequestNotFound) {
		t.Fatalf("expected ErrJoinRequestNotFound, got %v", err)
	}
	if _, err := env.joinSvc.Reject(context.Background(), reviewer, 77); !errors.Is(err, utils.ErrJoinRequestNotFound) {
		t.Fatalf("expected ErrJoinRequestNotFound, got %v", err)
	}
}

func TestListJoinRequestsByStatus(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	first := submitJoin(t, env, "+962790001008")
	submitJoin(t, env, "+962790001009")
	if _, err := env.joinSvc.Reject(ctx, reviewer, first.ID); err != nil {
		t.Fatal(err)
	}

	items, total, err := env.joinSvc.List(ctx, models.JoinRequestFilter{Status: "pending"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if total != 1 || len(items) != 1 || items[0].Phone != "+962790001009" {
		t.Fatalf("unexpected pending list: %d %+v", total, items)
	}
	if _, _, err := env.joinSvc.List(ctx, models.JoinRequestFilter{Status: "archived"}); !errors.Is(err, utils.ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}
