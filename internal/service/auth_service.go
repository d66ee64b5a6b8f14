package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/GTDGit/event_marketplace_api/internal/models"
	"github.com/GTDGit/event_marketplace_api/internal/notify"
	"github.com/GTDGit/event_marketplace_api/internal/utils"
)

// AuthService handles OTP login and token issuance.
type AuthService struct {
	users    UserStore
	otps     OTPStore
	limiter  RateLimiter
	issuer   *utils.JWTIssuer
	notifier notify.Notifier

	otpTTL    time.Duration
	otpLength int
	devEcho   bool
}

// AuthConfig holds OTP settings for AuthService.
type AuthConfig struct {
	OTPTTL    time.Duration
	OTPLength int
	DevEcho   bool
}

// NewAuthService constructs a new AuthService. limiter may be nil.
func NewAuthService(users UserStore, otps OTPStore, limiter RateLimiter, issuer *utils.JWTIssuer, notifier notify.Notifier, cfg AuthConfig) *AuthService {
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}
	if cfg.OTPLength <= 0 {
		cfg.OTPLength = 6
	}
	if cfg.OTPTTL <= 0 {
		cfg.OTPTTL = 5 * time.Minute
	}
	return &AuthService{
		users:     users,
		otps:      otps,
		limiter:   limiter,
		issuer:    issuer,
		notifier:  notifier,
		otpTTL:    cfg.OTPTTL,
		otpLength: cfg.OTPLength,
		devEcho:   cfg.DevEcho,
	}
}

// SendOTPRequest is the body of POST /v1/auth/otp/send.
type SendOTPRequest struct {
	Phone    string          `json:"phone" binding:"required"`
	Language models.Language `json:"language"`
}

// SendOTPResponse is returned by SendOTP. Code is only set outside production.
type SendOTPResponse struct {
	ExpiresIn int    `json:"expiresIn"`
	Code      string `json:"code,omitempty"`
}

// VerifyOTPRequest is the body of POST /v1/auth/otp/verify.
type VerifyOTPRequest struct {
	Phone    string          `json:"phone" binding:"required"`
	Code     string          `json:"code" binding:"required"`
	Name     string          `json:"name"`
	Language models.Language `json:"language"`
}

// LoginResponse carries the issued token and the user.
type LoginResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// SendOTP generates a code, stores its hash with a TTL and sends it.
func (s *AuthService) SendOTP(ctx context.Context, req SendOTPRequest) (*SendOTPResponse, error) {
	phone := strings.TrimSpace(req.Phone)
	if phone == "" {
		return nil, utils.ErrInvalidInput.WithMessage("phone is required")
	}
	if s.limiter != nil {
		allowed, _, err := s.limiter.Allow(ctx, phone)
		if err != nil {
			return nil, utils.Internal(err)
		}
		if !allowed {
			return nil, utils.ErrOTPRateLimited
		}
	}

	code, err := utils.GenerateNumericCode(s.otpLength)
	if err != nil {
		return nil, utils.Internal(err)
	}
	if err := s.otps.Save(ctx, phone, code, s.otpTTL); err != nil {
		return nil, utils.Internal(err)
	}

	minutes := int(s.otpTTL.Minutes())
	s.notifier.Notify(ctx, phone, req.Language, notify.OTPMessage, code, minutes)
	log.Info().Str("phone", phone).Msg("OTP sent")

	resp := &SendOTPResponse{ExpiresIn: int(s.otpTTL.Seconds())}
	if s.devEcho {
		resp.Code = code
	}
	return resp, nil
}

// VerifyOTP checks the code, finds or creates the user and issues a token.
func (s *AuthService) VerifyOTP(ctx context.Context, req VerifyOTPRequest) (*LoginResponse, error) {
	phone := strings.TrimSpace(req.Phone)
	ok, err := s.otps.Verify(ctx, phone, strings.TrimSpace(req.Code))
	if err != nil {
		return nil, utils.Internal(err)
	}
	if !ok {
		return nil, utils.ErrInvalidOTP
	}

	u, err := s.users.GetByPhone(ctx, phone)
	if errors.Is(err, sql.ErrNoRows) {
		u = &models.User{
			Name:     strings.TrimSpace(req.Name),
			Phone:    phone,
			Language: req.Language.Normalize(),
			Role:     models.RoleClient,
		}
		err = s.users.Create(ctx, u)
	}
	if err != nil {
		return nil, utils.Internal(err)
	}

	token, err := s.issuer.Generate(u.ID, u.Phone, string(u.Role))
	if err != nil {
		return nil, utils.Internal(err)
	}
	return &LoginResponse{Token: token, User: u}, nil
}
