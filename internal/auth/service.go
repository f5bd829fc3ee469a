package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/storefront-checkout/internal/common"
	"github.com/noah-isme/storefront-checkout/internal/obs"
	"github.com/noah-isme/storefront-checkout/internal/ratelimit"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 30 * 24 * time.Hour
	defaultOTPTTL     = 5 * time.Minute
	defaultOTPLength  = 6
	defaultOTPTries   = 5
)

// SendQuota limits OTP sends per phone.
type SendQuota interface {
	Take(ctx context.Context, subject string) (ratelimit.QuotaResult, error)
}

// Service coordinates OTP login, token issuance and session persistence.
type Service struct {
	store      Store
	otp        OTPStore
	quota      SendQuota
	sms        common.SMSSender
	tokens     accessTokens
	refreshTTL time.Duration
	otpLength  int
	appName    string
	now        func() time.Time
	log        zerolog.Logger
}

// Config configures the auth service.
type Config struct {
	Store           Store
	Redis           *redis.Client
	Quota           SendQuota
	SMS             common.SMSSender
	Secret          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	Issuer          string
	Audience        string
	ClockSkew       time.Duration
	OTPLength       int
	OTPTTL          time.Duration
	OTPMaxAttempts  int
	AppName         string
	Logger          zerolog.Logger
}

// User is the profile returned to clients.
type User struct {
	ID        string    `json:"id"`
	Phone     string    `json:"phone"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OTPSent describes an issued code. Code is only set for non-production echo.
type OTPSent struct {
	ExpiresAt time.Time `json:"expires_at"`
	Remaining int64     `json:"sends_remaining"`
	Code      string    `json:"-"`
}

// LoginResult bundles token material returned after a successful verification.
type LoginResult struct {
	User          User      `json:"user"`
	AccessToken   string    `json:"access_token"`
	RefreshToken  string    `json:"refresh_token"`
	AccessExpiry  time.Time `json:"access_expires_at"`
	RefreshExpiry time.Time `json:"refresh_expires_at"`
}

// RefreshResult represents the outcome of a refresh operation.
type RefreshResult struct {
	AccessToken   string    `json:"access_token"`
	AccessExpiry  time.Time `json:"access_expires_at"`
	RefreshToken  string    `json:"refresh_token"`
	RefreshExpiry time.Time `json:"refresh_expires_at"`
}

// ProfileInput updates the display name and the email used as a payment contact.
type ProfileInput struct {
	Name  string `json:"name" validate:"max=100"`
	Email string `json:"email" validate:"omitempty,email,max=254"`
}

type phoneInput struct {
	Phone string `json:"phone" validate:"required,len=10,numeric"`
}

// NewService constructs a Service instance with sane defaults.
func NewService(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("auth: store is required")
	}
	if cfg.Redis == nil {
		return nil, errors.New("auth: redis is required")
	}
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errors.New("auth: secret is required")
	}
	accessTTL := cfg.AccessTokenTTL
	if accessTTL <= 0 {
		accessTTL = defaultAccessTTL
	}
	refreshTTL := cfg.RefreshTokenTTL
	if refreshTTL <= 0 {
		refreshTTL = defaultRefreshTTL
	}
	otpTTL := cfg.OTPTTL
	if otpTTL <= 0 {
		otpTTL = defaultOTPTTL
	}
	otpLength := cfg.OTPLength
	if otpLength < 4 || otpLength > 9 {
		otpLength = defaultOTPLength
	}
	tries := cfg.OTPMaxAttempts
	if tries <= 0 {
		tries = defaultOTPTries
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = "storefront-checkout"
	}
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		audience = "storefront-app"
	}
	clockSkew := max(cfg.ClockSkew, 0)
	sms := cfg.SMS
	if sms == nil {
		sms = common.LogSMSSender{Logger: cfg.Logger}
	}

	return &Service{
		store: cfg.Store,
		otp:   OTPStore{R: cfg.Redis, Prefix: "auth:otp:", TTL: otpTTL, MaxAttempts: tries},
		quota: cfg.Quota,
		sms:   sms,
		tokens: accessTokens{
			secret:   []byte(secret),
			issuer:   issuer,
			audience: audience,
			skew:     clockSkew,
			ttl:      accessTTL,
		},
		refreshTTL: refreshTTL,
		otpLength:  otpLength,
		appName:    valueOr(cfg.AppName, "Store"),
		now:        time.Now,
		log:        cfg.Logger,
	}, nil
}

// WithNow allows tests to override the time provider.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// NormalizePhone strips spaces and a leading +91/0 from an Indian mobile number.
func NormalizePhone(phone string) string {
	p := strings.ReplaceAll(strings.TrimSpace(phone), " ", "")
	p = strings.TrimPrefix(p, "+91")
	if len(p) == 11 && strings.HasPrefix(p, "0") {
		p = p[1:]
	}
	return p
}

// SendOTP issues a new code for phone and sends it by SMS.
func (s *Service) SendOTP(ctx context.Context, phone string) (OTPSent, error) {
	in := phoneInput{Phone: NormalizePhone(phone)}
	if err := common.ValidateStruct(in); err != nil {
		return OTPSent{}, err
	}
	var remaining int64 = -1
	if s.quota != nil {
		res, err := s.quota.Take(ctx, in.Phone)
		if err != nil {
			return OTPSent{}, common.Upstream(err)
		}
		if !res.Allowed {
			obs.Inc(obs.OTPRequests, "send", "throttled")
			return OTPSent{}, common.NewAppError("OTP_RATE_LIMITED", "too many codes requested, try again later", http.StatusTooManyRequests, nil).
				WithDetails(map[string]any{"retry_at": res.ResetAt})
		}
		remaining = res.Remaining
	}
	code, err := generateCode(s.otpLength)
	if err != nil {
		return OTPSent{}, fmt.Errorf("generate otp: %w", err)
	}
	if err := s.otp.Issue(ctx, in.Phone, code); err != nil {
		return OTPSent{}, common.Upstream(err)
	}
	msg := fmt.Sprintf("%s is your %s login code. It expires in %d minutes.", code, s.appName, int(s.otp.TTL.Minutes()))
	if err := s.sms.Send(ctx, in.Phone, msg); err != nil {
		obs.Inc(obs.OTPRequests, "send", "error")
		return OTPSent{}, common.Upstream(err)
	}
	obs.Inc(obs.OTPRequests, "send", "ok")
	return OTPSent{ExpiresAt: s.now().Add(s.otp.TTL), Remaining: remaining, Code: code}, nil
}

// VerifyOTP checks the code, upserts the user and issues a token pair.
func (s *Service) VerifyOTP(ctx context.Context, phone, code string) (LoginResult, error) {
	in := phoneInput{Phone: NormalizePhone(phone)}
	if err := common.ValidateStruct(in); err != nil {
		return LoginResult{}, err
	}
	code = strings.TrimSpace(code)
	if len(code) != s.otpLength {
		return LoginResult{}, common.Validation(fmt.Sprintf("code must be %d digits", s.otpLength))
	}
	left, err := s.otp.Check(ctx, in.Phone, code)
	switch {
	case errors.Is(err, errOTPMissing):
		obs.Inc(obs.OTPRequests, "verify", "expired")
		return LoginResult{}, common.NewAppError("OTP_EXPIRED", "code expired, request a new one", http.StatusUnauthorized, nil)
	case errors.Is(err, errOTPExceeded):
		obs.Inc(obs.OTPRequests, "verify", "locked")
		return LoginResult{}, common.NewAppError("OTP_ATTEMPTS_EXCEEDED", "too many wrong attempts, request a new code", http.StatusTooManyRequests, nil)
	case errors.Is(err, errOTPMismatch):
		obs.Inc(obs.OTPRequests, "verify", "mismatch")
		return LoginResult{}, common.NewAppError("INVALID_OTP", "incorrect code", http.StatusUnauthorized, nil).
			WithDetails(map[string]int{"attempts_left": left})
	case err != nil:
		return LoginResult{}, common.Upstream(err)
	}

	user, err := s.store.UpsertUserByPhone(ctx, in.Phone)
	if err != nil {
		return LoginResult{}, common.Upstream(fmt.Errorf("upsert user: %w", err))
	}
	accessToken, accessExpiry, err := s.signAccessToken(user.ID)
	if err != nil {
		return LoginResult{}, fmt.Errorf("sign access token: %w", err)
	}
	refreshToken, hashed, refreshExpiry, err := s.newRefreshToken()
	if err != nil {
		return LoginResult{}, fmt.Errorf("generate refresh token: %w", err)
	}
	if err := s.store.CreateSession(ctx, user.ID, hashed, refreshExpiry); err != nil {
		return LoginResult{}, common.Upstream(fmt.Errorf("create session: %w", err))
	}
	obs.Inc(obs.OTPRequests, "verify", "ok")
	return LoginResult{
		User:          user,
		AccessToken:   accessToken,
		RefreshToken:  refreshToken,
		AccessExpiry:  accessExpiry,
		RefreshExpiry: refreshExpiry,
	}, nil
}

// Logout revokes the refresh token.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	token := strings.TrimSpace(refreshToken)
	if token == "" {
		return nil
	}
	return s.store.RevokeSession(ctx, hashRefreshToken(token))
}

// Refresh validates and rotates a refresh token, issuing a fresh access token pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (RefreshResult, error) {
	token := strings.TrimSpace(refreshToken)
	if token == "" {
		return RefreshResult{}, common.Unauthorized()
	}
	hashed := hashRefreshToken(token)
	session, err := s.store.GetSession(ctx, hashed)
	if errors.Is(err, ErrSessionNotFound) {
		return RefreshResult{}, common.Unauthorized()
	}
	if err != nil {
		return RefreshResult{}, common.Upstream(err)
	}
	if session.RevokedAt != nil || s.now().After(session.ExpiresAt) {
		return RefreshResult{}, common.Unauthorized()
	}

	accessToken, accessExpiry, err := s.signAccessToken(session.UserID)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("sign access token: %w", err)
	}
	newRefresh, newHash, refreshExpiry, err := s.newRefreshToken()
	if err != nil {
		return RefreshResult{}, fmt.Errorf("generate refresh token: %w", err)
	}
	rotated, err := s.store.RotateSession(ctx, session.ID, hashed, newHash, refreshExpiry)
	if err != nil {
		return RefreshResult{}, common.Upstream(fmt.Errorf("rotate session: %w", err))
	}
	if !rotated {
		s.log.Warn().Str("session_id", session.ID).Msg("refresh_token_reused")
		return RefreshResult{}, common.Unauthorized()
	}
	return RefreshResult{
		AccessToken:   accessToken,
		AccessExpiry:  accessExpiry,
		RefreshToken:  newRefresh,
		RefreshExpiry: refreshExpiry,
	}, nil
}

// Me fetches the current authenticated user.
func (s *Service) Me(ctx context.Context, userID string) (User, error) {
	u, err := s.store.GetUser(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		return User{}, common.Unauthorized()
	}
	if err != nil {
		return User{}, common.Upstream(err)
	}
	return u, nil
}

// UpdateProfile sets name and email.
func (s *Service) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := common.ValidateStruct(in); err != nil {
		return User{}, err
	}
	u, err := s.store.UpdateProfile(ctx, userID, in.Name, in.Email)
	if errors.Is(err, ErrUserNotFound) {
		return User{}, common.Unauthorized()
	}
	if err != nil {
		return User{}, common.Upstream(err)
	}
	return u, nil
}

// ParseAccessToken validates an access token and returns the subject (user ID).
func (s *Service) ParseAccessToken(token string) (string, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return "", common.Unauthorized()
	}
	userID, err := s.tokens.parse(trimmed, s.now())
	if err != nil {
		return "", common.NewAppError("UNAUTHORIZED", "please log in", http.StatusUnauthorized, err)
	}
	return userID, nil
}

func (s *Service) signAccessToken(userID string) (string, time.Time, error) {
	return s.tokens.sign(userID, s.now())
}

func (s *Service) newRefreshToken() (token, hashed string, expiresAt time.Time, err error) {
	buf := make([]byte, 48)
	if _, err = rand.Read(buf); err != nil {
		return "", "", time.Time{}, err
	}
	token = base64.RawURLEncoding.EncodeToString(buf)
	return token, hashRefreshToken(token), s.now().Add(s.refreshTTL), nil
}

func hashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func valueOr(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
