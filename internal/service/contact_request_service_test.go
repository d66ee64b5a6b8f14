package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/GTDGit/event_marketplace_api/internal/models"
	"github.com/GTDGit/event_marketplace_api/internal/notify"
	"github.com/GTDGit/event_marketplace_api/internal/sse"
	"github.com/GTDGit/event_marketplace_api/internal/utils"
)

func farmService(supplierID int) models.Service {
	return models.Service{
		SupplierID:   supplierID,
		Name:         "Olive Farm",
		Category:     "farm",
		Availability: openRange(),
	}
}

func TestSubmitWarnsAtThreshold(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	sup := env.users.add(models.User{Name: "S", Phone: "+962790000001", Role: models.RoleSupplier, ContactCount: 39})
	cli := env.client(t)
	svc := env.service(t, farmService(sup.ID))

	if _, err := env.contacts.Submit(ctx, actorOf(cli), SubmitContactRequest{ServiceID: svc.ID}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	got := env.users.snapshot(sup.ID)
	if got.ContactCount != 40 {
		t.Fatalf("expected contactCount 40, got %d", got.ContactCount)
	}
	if got.IsLocked {
		t.Fatal("supplier must stay unlocked at 40")
	}
	warn, ok := env.notifier.last(notify.ContactLimitWarning)
	if !ok {
		t.Fatal("expected a contact limit warning")
	}
	if warn.Args[0] != 10 {
		t.Errorf("expected 10 remaining, got %v", warn.Args[0])
	}
}

func TestSubmitLocksAtLimit(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	sup := env.users.add(models.User{Name: "S", Phone: "+962790000001", Role: models.RoleSupplier, ContactCount: 49})
	cli := env.client(t)
	svc := env.service(t, farmService(sup.ID))

	if _, err := env.contacts.Submit(ctx, actorOf(cli), SubmitContactRequest{ServiceID: svc.ID}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	got := env.users.snapshot(sup.ID)
	if got.ContactCount != 50 || !got.IsLocked {
		t.Fatalf("expected locked at 50, got count=%d locked=%v", got.ContactCount, got.IsLocked)
	}
	if got.LockReasonText() != models.LockReasonContactLimit {
		t.Errorf("unexpected lock reason %q", got.LockReasonText())
	}
	if env.notifier.count(notify.ContactLimitWarning) != 0 {
		t.Error("locking increment must not also warn")
	}
	if env.notifier.count(notify.ContactLimitReached) != 1 {
		t.Error("expected one limit reached notification")
	}
	if env.events.count(sse.EventSupplierLocked) != 1 {
		t.Error("expected one supplier.locked event")
	}

	_, err := env.contacts.Submit(ctx, actorOf(cli), SubmitContactRequest{ServiceID: svc.ID})
	if !errors.Is(err, utils.ErrSupplierLocked) {
		t.Fatalf("expected ErrSupplierLocked, got %v", err)
	}
	if env.users.snapshot(sup.ID).ContactCount != 50 {
		t.Error("rejected request must not change the counter")
	}
}

func TestSubmitConcurrentLockNotifiesOnce(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	sup := env.users.add(models.User{Name: "S", Phone: "+962790000001", Role: models.RoleSupplier, ContactCount: 45})
	cli := env.client(t)
	svc := env.service(t, farmService(sup.ID))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = env.contacts.Submit(ctx, actorOf(cli), SubmitContactRequest{ServiceID: svc.ID})
		}()
	}
	wg.Wait()

	got := env.users.snapshot(sup.ID)
	if got.ContactCount != 50 {
		t.Fatalf("counter must stop at the limit, got %d", got.ContactCount)
	}
	if n := env.notifier.count(notify.ContactLimitReached); n != 1 {
		t.Fatalf("expected exactly one lock notification, got %d", n)
	}
}

func TestSubmitRejectsBookableService(t *testing.T) {
	env := newTestEnv()
	sup := env.supplier(t)
	cli := env.client(t)
	svc := env.service(t, models.Service{
		SupplierID:     sup.ID,
		Name:           "DJ",
		Category:       "music",
		Price:          price(120),
		PriceType:      models.PriceFixed,
		PriceAvailable: true,
	})

	_, err := env.contacts.Submit(context.Background(), actorOf(cli), SubmitContactRequest{ServiceID: svc.ID})
	if !errors.Is(err, utils.ErrContactRequestNotNeeded) {
		t.Fatalf("expected ErrContactRequestNotNeeded, got %v", err)
	}
	if env.users.snapshot(sup.ID).ContactCount != 0 {
		t.Error("counter must not move")
	}
}

func TestSubmitUnknownService(t *testing.T) {
	env := newTestEnv()
	cli := env.client(t)
	_, err := env.contacts.Submit(context.Background(), actorOf(cli), SubmitContactRequest{ServiceID: 99})
	if !errors.Is(err, utils.ErrServiceNotFound) {
		t.Fatalf("expected ErrServiceNotFound, got %v", err)
	}
}

func acceptedRequest(t *testing.T, env *testEnv, quote *models.QuotedPrice) (*models.User, *models.User, *models.ContactRequest) {
	t.Helper()
	ctx := context.Background()
	sup := env.supplier(t)
	cli := env.client(t)
	svc := env.service(t, farmService(sup.ID))
	cr, err := env.contacts.Submit(ctx, actorOf(cli), SubmitContactRequest{ServiceID: svc.ID, Message: "Saturday?"})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	cr, err = env.contacts.Respond(ctx, actorOf(sup), cr.ID, RespondContactRequest{Status: models.ContactAccepted, QuotedPrice: quote})
	if err != nil {
		t.Fatalf("Respond failed: %v", err)
	}
	return sup, cli, cr
}

func TestRespondAcceptsOnceAndOpensChat(t *testing.T) {
	env := newTestEnv()
	sup, _, cr := acceptedRequest(t, env, &models.QuotedPrice{Amount: 500, Currency: "jod"})

	if cr.Status != models.ContactAccepted {
		t.Fatalf("expected accepted, got %s", cr.Status)
	}
	if cr.Quote == nil || cr.Quote.Currency != "JOD" {
		t.Fatalf("expected normalized quote, got %+v", cr.Quote)
	}
	if len(env.chats.chats) != 1 {
		t.Errorf("expected one chat, got %d", len(env.chats.chats))
	}
	if env.notifier.count(notify.ClientRequestAccepted) != 1 || env.notifier.count(notify.ContactRequestAccepted) != 1 {
		t.Error("expected both parties to be notified")
	}

	_, err := env.contacts.Respond(context.Background(), actorOf(sup), cr.ID, RespondContactRequest{Status: models.ContactRejected})
	if !errors.Is(err, utils.ErrRequestNotPending) {
		t.Fatalf("expected ErrRequestNotPending, got %v", err)
	}
}

func TestRespondValidation(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	sup := env.supplier(t)
	other := env.supplier(t)
	cli := env.client(t)
	svc := env.service(t, farmService(sup.ID))
	cr, err := env.contacts.Submit(ctx, actorOf(cli), SubmitContactRequest{ServiceID: svc.ID})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	tests := []struct {
		name  string
		actor Actor
		req   RespondContactRequest
		want  error
	}{
		{"bad status", actorOf(sup), RespondContactRequest{Status: models.ContactPending}, utils.ErrInvalidStatus},
		{"not owner", actorOf(other), RespondContactRequest{Status: models.ContactAccepted}, utils.ErrForbidden},
		{"negative quote", actorOf(sup), RespondContactRequest{Status: models.ContactAccepted, QuotedPrice: &models.QuotedPrice{Amount: -1}}, utils.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.contacts.Respond(ctx, tt.actor, cr.ID, tt.req)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestConvertCreatesBookingOnce(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	_, cli, cr := acceptedRequest(t, env, &models.QuotedPrice{Amount: 500, Currency: "JOD"})

	eventDate := time.Now().AddDate(0, 1, 0)
	b, err := env.contacts.Convert(ctx, actorOf(cli), cr.ID, ConvertContactRequest{EventDate: eventDate, NumberOfPeople: 50})
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if b.TotalPrice != 500 || b.PaidAmount != 50 || b.Currency != "JOD" {
		t.Fatalf("unexpected booking %+v", b)
	}
	if b.Status != models.BookingPending || b.ContactRequestID == nil || *b.ContactRequestID != cr.ID {
		t.Fatalf("unexpected booking linkage %+v", b)
	}
	stored, _ := env.requests.GetByID(ctx, cr.ID)
	if !stored.ConvertedToBooking {
		t.Fatal("expected request to be flagged converted")
	}

	_, err = env.contacts.Convert(ctx, actorOf(cli), cr.ID, ConvertContactRequest{EventDate: eventDate, NumberOfPeople: 50})
	if !errors.Is(err, utils.ErrAlreadyConverted) {
		t.Fatalf("expected ErrAlreadyConverted, got %v", err)
	}
	if len(env.bookings.rows) != 1 {
		t.Fatalf("expected exactly one booking, got %d", len(env.bookings.rows))
	}
}

func TestConvertConcurrentSingleWinner(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	_, cli, cr := acceptedRequest(t, env, &models.QuotedPrice{Amount: 300})

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	start := make(chan struct{})
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := env.contacts.Convert(ctx, actorOf(cli), cr.ID, ConvertContactRequest{EventDate: time.Now().AddDate(0, 0, 10)})
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	close(start)
	wg.Wait()

	if successes != 1 {
		t.Fatalf("expected one successful conversion, got %d", successes)
	}
	if len(env.bookings.rows) != 1 {
		t.Fatalf("expected one booking, got %d", len(env.bookings.rows))
	}
}

func TestConvertPreconditions(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	sup, cli, noQuote := acceptedRequest(t, env, nil)
	date := time.Now().AddDate(0, 0, 5)

	if _, err := env.contacts.Convert(ctx, actorOf(cli), noQuote.ID, ConvertContactRequest{EventDate: date}); !errors.Is(err, utils.ErrNoQuotedPrice) {
		t.Errorf("expected ErrNoQuotedPrice, got %v", err)
	}
	if _, err := env.contacts.Convert(ctx, actorOf(sup), noQuote.ID, ConvertContactRequest{EventDate: date}); !errors.Is(err, utils.ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}

	svc := env.service(t, farmService(sup.ID))
	pending, err := env.contacts.Submit(ctx, actorOf(cli), SubmitContactRequest{ServiceID: svc.ID})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if _, err := env.contacts.Convert(ctx, actorOf(cli), pending.ID, ConvertContactRequest{EventDate: date}); !errors.Is(err, utils.ErrRequestNotAccepted) {
		t.Errorf("expected ErrRequestNotAccepted, got %v", err)
	}
}

func TestConvertRejectsLockedSupplier(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	sup, cli, cr := acceptedRequest(t, env, &models.QuotedPrice{Amount: 200})
	if _, err := env.accounts.Lock(ctx, sup.ID, "manual"); err != nil {
		t.Fatalf("Lock failed: %v", err)
	}

	_, err := env.contacts.Convert(ctx, actorOf(cli), cr.ID, ConvertContactRequest{EventDate: time.Now().AddDate(0, 0, 5)})
	if !errors.Is(err, utils.ErrSupplierLocked) {
		t.Fatalf("expected ErrSupplierLocked, got %v", err)
	}
}

func TestStatusVisibility(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	sup, cli, cr := acceptedRequest(t, env, nil)
	stranger := env.client(t)

	got, err := env.contacts.Status(ctx, actorOf(cli), cli.ID, sup.ID, cr.ServiceID)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if got.ID != cr.ID {
		t.Errorf("expected request %d, got %d", cr.ID, got.ID)
	}
	if _, err := env.contacts.Status(ctx, actorOf(stranger), cli.ID, sup.ID, cr.ServiceID); !errors.Is(err, utils.ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
	if _, err := env.contacts.Status(ctx, Actor{ID: 999, Role: models.RoleAdmin}, cli.ID, sup.ID, 12345); !errors.Is(err, utils.ErrContactRequestNotFound) {
		t.Errorf("expected ErrContactRequestNotFound, got %v", err)
	}
}

func TestReconcileConvertedRepairsFlag(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	_, _, cr := acceptedRequest(t, env, &models.QuotedPrice{Amount: 100})
	requestID := cr.ID
	env.bookings.rows[1] = &models.Booking{ID: 1, ContactRequestID: &requestID, Status: models.BookingPending}
	env.bookings.nextID = 1

	n, err := env.contacts.ReconcileConverted(ctx, 50)
	if err != nil {
		t.Fatalf("ReconcileConverted failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one repaired request, got %d", n)
	}
	stored, _ := env.requests.GetByID(ctx, cr.ID)
	if !stored.ConvertedToBooking {
		t.Fatal("expected request flagged converted")
	}
	if n, _ := env.contacts.ReconcileConverted(ctx, 50); n != 0 {
		t.Errorf("second pass should find nothing, got %d", n)
	}
}

func TestDepositRounding(t *testing.T) {
	tests := []struct {
		total float64
		want  float64
	}{
		{500, 50},
		{0, 0},
		{123.456, 12.346},
		{0.01, 0.001},
	}
	for _, tt := range tests {
		if got := Deposit(tt.total); got != tt.want {
			t.Errorf("Deposit(%v) = %v, want %v", tt.total, got, tt.want)
		}
	}
}
