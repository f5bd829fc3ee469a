package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// tokenUse marks access tokens so no other token signed with the same key
// is accepted as one.
const (
	tokenUseClaim = "token_use"
	tokenUse      = "access"
)

// accessTokens signs and checks HS256 access tokens.
type accessTokens struct {
	secret   []byte
	issuer   string
	audience string
	skew     time.Duration
	ttl      time.Duration
}

func (a accessTokens) sign(userID string, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(a.ttl)
	token, err := jwt.NewBuilder().
		Subject(userID).
		Issuer(a.issuer).
		Audience([]string{a.audience}).
		IssuedAt(now).
		NotBefore(now.Add(-a.skew)).
		Expiration(expiresAt).
		Claim(tokenUseClaim, tokenUse).
		Build()
	if err != nil {
		return "", time.Time{}, err
	}
	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, a.secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return string(signed), expiresAt, nil
}

// parse verifies raw and returns the user id it was issued to.
func (a accessTokens) parse(raw string, now time.Time) (string, error) {
	alg, err := signingAlgorithm(raw)
	if err != nil {
		return "", err
	}
	if alg != jwa.HS256 {
		return "", fmt.Errorf("auth: unexpected token algorithm %s", alg)
	}
	tok, err := jwt.ParseString(raw, jwt.WithKey(jwa.HS256, a.secret), jwt.WithValidate(false))
	if err != nil {
		return "", err
	}
	opts := []jwt.ValidateOption{
		jwt.WithClock(jwt.ClockFunc(func() time.Time { return now })),
		jwt.WithIssuer(a.issuer),
		jwt.WithAudience(a.audience),
		jwt.WithClaimValue(tokenUseClaim, tokenUse),
	}
	if a.skew > 0 {
		opts = append(opts, jwt.WithAcceptableSkew(a.skew))
	}
	if err := jwt.Validate(tok, opts...); err != nil {
		return "", err
	}
	if _, err := uuid.Parse(tok.Subject()); err != nil {
		return "", errors.New("auth: token subject is not a user id")
	}
	return tok.Subject(), nil
}

// signingAlgorithm reads the alg header before any key is applied so a token
// signed with another algorithm is rejected outright.
func signingAlgorithm(raw string) (jwa.SignatureAlgorithm, error) {
	msg, err := jws.ParseString(raw)
	if err != nil {
		return "", err
	}
	sigs := msg.Signatures()
	if len(sigs) != 1 {
		return "", errors.New("auth: expected exactly one signature")
	}
	headers := sigs[0].ProtectedHeaders()
	if headers == nil {
		return "", errors.New("auth: token missing protected headers")
	}
	alg := headers.Algorithm()
	if alg == "" || alg == jwa.NoSignature {
		return "", errors.New("auth: token has no usable algorithm")
	}
	return alg, nil
}
