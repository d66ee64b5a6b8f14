package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/GTDGit/event_marketplace_api/internal/models"
	"github.com/GTDGit/event_marketplace_api/internal/notify"
	"github.com/GTDGit/event_marketplace_api/internal/utils"
)

func newAuth(env *testEnv, limiter RateLimiter, devEcho bool) (*AuthService, *memOTPs) {
	otps := &memOTPs{}
	issuer := utils.NewJWTIssuer("test-secret", time.Hour)
	return NewAuthService(env.users, otps, limiter, issuer, env.notifier, AuthConfig{OTPTTL: 5 * time.Minute, OTPLength: 6, DevEcho: devEcho}), otps
}

func TestOTPLoginCreatesClient(t *testing.T) {
	env := newTestEnv()
	auth, otps := newAuth(env, nil, true)
	ctx := context.Background()

	sent, err := auth.SendOTP(ctx, SendOTPRequest{Phone: " +962791112223 ", Language: models.LangEnglish})
	if err != nil {
		t.Fatalf("SendOTP failed: %v", err)
	}
	if len(sent.Code) != 6 || sent.ExpiresIn != 300 {
		t.Fatalf("unexpected response %+v", sent)
	}
	if otps.codes["+962791112223"] != sent.Code {
		t.Fatal("code must be stored under the trimmed phone")
	}
	msg, ok := env.notifier.last(notify.OTPMessage)
	if !ok || msg.Args[0] != sent.Code || msg.Args[1] != 5 {
		t.Fatalf("unexpected OTP notification %+v", msg)
	}

	if _, err := auth.VerifyOTP(ctx, VerifyOTPRequest{Phone: "+962791112223", Code: "000000x"}); !errors.Is(err, utils.ErrInvalidOTP) {
		t.Fatalf("expected ErrInvalidOTP, got %v", err)
	}

	login, err := auth.VerifyOTP(ctx, VerifyOTPRequest{Phone: "+962791112223", Code: sent.Code, Name: "Rana"})
	if err != nil {
		t.Fatalf("VerifyOTP failed: %v", err)
	}
	if login.Token == "" || login.User.Role != models.RoleClient || login.User.Name != "Rana" {
		t.Fatalf("unexpected login %+v", login)
	}
	claims, err := utils.NewJWTIssuer("test-secret", time.Hour).Validate(login.Token)
	if err != nil {
		t.Fatalf("token must validate: %v", err)
	}
	if claims.UserID != login.User.ID {
		t.Errorf("expected user id %d in token, got %d", login.User.ID, claims.UserID)
	}

	if _, err := auth.VerifyOTP(ctx, VerifyOTPRequest{Phone: "+962791112223", Code: sent.Code}); !errors.Is(err, utils.ErrInvalidOTP) {
		t.Fatalf("codes must be single use, got %v", err)
	}
}

func TestOTPExistingUserKeepsRole(t *testing.T) {
	env := newTestEnv()
	sup := env.supplier(t)
	auth, _ := newAuth(env, nil, true)
	ctx := context.Background()

	sent, err := auth.SendOTP(ctx, SendOTPRequest{Phone: sup.Phone})
	if err != nil {
		t.Fatalf("SendOTP failed: %v", err)
	}
	login, err := auth.VerifyOTP(ctx, VerifyOTPRequest{Phone: sup.Phone, Code: sent.Code})
	if err != nil {
		t.Fatalf("VerifyOTP failed: %v", err)
	}
	if login.User.ID != sup.ID || login.User.Role != models.RoleSupplier {
		t.Fatalf("expected existing supplier, got %+v", login.User)
	}
}

func TestSendOTPRateLimited(t *testing.T) {
	env := newTestEnv()
	auth, _ := newAuth(env, &fixedLimiter{allowed: 1}, false)
	ctx := context.Background()

	sent, err := auth.SendOTP(ctx, SendOTPRequest{Phone: "+962790000600"})
	if err != nil {
		t.Fatalf("SendOTP failed: %v", err)
	}
	if sent.Code != "" {
		t.Error("code must not be echoed in production")
	}
	if _, err := auth.SendOTP(ctx, SendOTPRequest{Phone: "+962790000600"}); !errors.Is(err, utils.ErrOTPRateLimited) {
		t.Fatalf("expected ErrOTPRateLimited, got %v", err)
	}
}
