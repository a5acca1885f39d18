package security

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"orthotracker/internal/ports"
)

const DefaultTokenTTL = 12 * time.Hour

// JWTIssuer signs HS256 tokens carrying sub, email, role, exp and iat.
type JWTIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

var _ ports.TokenIssuer = (*JWTIssuer)(nil)

func NewJWTIssuer(secret string, ttl time.Duration) *JWTIssuer {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &JWTIssuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (i *JWTIssuer) Issue(principal ports.Principal) (string, error) {
	if len(i.secret) == 0 {
		return "", errors.New("jwt secret is not configured")
	}
	now := i.now()
	claims := jwt.MapClaims{
		"sub":   strconv.FormatUint(principal.UserID, 10),
		"email": principal.Email,
		"role":  principal.Role,
		"exp":   now.Add(i.ttl).Unix(),
		"iat":   now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

func (i *JWTIssuer) Verify(raw string) (ports.Principal, error) {
	if len(i.secret) == 0 {
		return ports.Principal{}, errors.New("jwt secret is not configured")
	}

	token, err := jwt.Parse(raw, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now), jwt.WithExpirationRequired())
	if err != nil {
		return ports.Principal{}, fmt.Errorf("%w: %v", ports.ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return ports.Principal{}, ports.ErrInvalidToken
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return ports.Principal{}, fmt.Errorf("%w: sub claim missing", ports.ErrInvalidToken)
	}
	userID, err := strconv.ParseUint(sub, 10, 64)
	if err != nil {
		return ports.Principal{}, fmt.Errorf("%w: sub claim is not a user id", ports.ErrInvalidToken)
	}
	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)

	return ports.Principal{UserID: userID, Email: email, Role: role}, nil
}
