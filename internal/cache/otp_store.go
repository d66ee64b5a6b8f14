package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

// MaxOTPAttempts is the number of wrong guesses after which a code is burned.
const MaxOTPAttempts = 5

// consumeScript deletes the code and its attempt counter only while the code
// still holds the hash the caller verified, so one code logs in once.
var consumeScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1], KEYS[2])
end
return 0
`)

// OTPStore keeps bcrypt hashes of one-time login codes.
type OTPStore struct {
	redis *RedisClient
}

// NewOTPStore creates a new OTPStore.
func NewOTPStore(redis *RedisClient) *OTPStore {
	return &OTPStore{redis: redis}
}

func (s *OTPStore) keyCode(phone string) string {
	return fmt.Sprintf("otp:code:%s", phone)
}

func (s *OTPStore) keyAttempts(phone string) string {
	return fmt.Sprintf("otp:attempts:%s", phone)
}

// Save stores code for phone, replacing any previous one.
func (s *OTPStore) Save(ctx context.Context, phone, code string, ttl time.Duration) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash otp: %w", err)
	}
	if err := s.redis.Set(ctx, s.keyCode(phone), string(hash), ttl); err != nil {
		return fmt.Errorf("failed to store otp: %w", err)
	}
	return s.redis.Delete(ctx, s.keyAttempts(phone))
}

// Verify checks code against the stored hash. A matching code is consumed
// atomically; of concurrent verifications of the same code only one wins.
// A missing, expired or burned code yields false without error.
func (s *OTPStore) Verify(ctx context.Context, phone, code string) (bool, error) {
	hash, err := s.redis.Get(ctx, s.keyCode(phone))
	if IsMiss(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)); err != nil {
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, err
		}
		n, err := s.redis.Incr(ctx, s.keyAttempts(phone))
		if err != nil {
			return false, err
		}
		if n == 1 {
			if ttl, err := s.redis.TTL(ctx, s.keyCode(phone)); err == nil && ttl > 0 {
				_ = s.redis.Expire(ctx, s.keyAttempts(phone), ttl)
			}
		}
		if n >= MaxOTPAttempts {
			_ = s.redis.Delete(ctx, s.keyCode(phone), s.keyAttempts(phone))
		}
		return false, nil
	}

	res, err := s.redis.Eval(ctx, consumeScript, []string{s.keyCode(phone), s.keyAttempts(phone)}, hash)
	if err != nil {
		return false, err
	}
	n, _ := res.(int64)
	return n > 0, nil
}
