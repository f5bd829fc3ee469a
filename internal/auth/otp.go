package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/redis/go-redis/v9"
)

var (
	errOTPMissing  = errors.New("auth: otp missing or expired")
	errOTPExceeded = errors.New("auth: otp attempts exceeded")
	errOTPMismatch = errors.New("auth: otp mismatch")
)

// otpParams keeps hashing cheap enough for a short-lived numeric code.
var otpParams = &argon2id.Params{Memory: 16 * 1024, Iterations: 2, Parallelism: 2, SaltLength: 16, KeyLength: 32}

// checkScript bumps the attempt counter only while the code exists, so an
// expired key is never recreated without a TTL.
var checkScript = redis.NewScript(`
local h = redis.call('HGET', KEYS[1], 'hash')
if not h then return {-1, ''} end
local n = redis.call('HINCRBY', KEYS[1], 'attempts', 1)
return {n, h}
`)

// OTPStore keeps hashed one-time codes in Redis, one per phone.
type OTPStore struct {
	R           *redis.Client
	Prefix      string
	TTL         time.Duration
	MaxAttempts int
}

func (o OTPStore) key(phone string) string { return o.Prefix + phone }

// Issue stores a fresh hash for phone, replacing any previous code.
func (o OTPStore) Issue(ctx context.Context, phone, code string) error {
	hash, err := argon2id.CreateHash(code, otpParams)
	if err != nil {
		return fmt.Errorf("hash otp: %w", err)
	}
	key := o.key(phone)
	_, err = o.R.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, key)
		p.HSet(ctx, key, "hash", hash, "attempts", 0)
		p.Expire(ctx, key, o.TTL)
		return nil
	})
	return err
}

// Check compares code against the stored hash and consumes it on success. It
// returns the attempts left after a mismatch.
func (o OTPStore) Check(ctx context.Context, phone, code string) (int, error) {
	key := o.key(phone)
	res, err := checkScript.Run(ctx, o.R, []string{key}).Slice()
	if err != nil {
		return 0, err
	}
	attempts, _ := res[0].(int64)
	hash, _ := res[1].(string)
	if attempts < 0 {
		return 0, errOTPMissing
	}
	if int(attempts) > o.MaxAttempts {
		o.R.Del(ctx, key)
		return 0, errOTPExceeded
	}
	ok, err := argon2id.ComparePasswordAndHash(code, hash)
	if err != nil {
		return 0, fmt.Errorf("compare otp: %w", err)
	}
	if !ok {
		return o.MaxAttempts - int(attempts), errOTPMismatch
	}
	return 0, o.R.Del(ctx, key).Err()
}

func generateCode(length int) (string, error) {
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", length, n), nil
}
