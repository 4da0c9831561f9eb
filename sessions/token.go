package sessions

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/vitatrack/auth-server/internal/errors"
)

// TokenIssuer mints and validates signed session tokens for API consumers
// that cannot carry a cookie. HS256 with a process-wide secret.
type TokenIssuer struct {
	secret  []byte
	issuer  string
	expiry  time.Duration
	nowTime func() time.Time
}

// TokenIssuerOption modifies a TokenIssuer.
type TokenIssuerOption func(*TokenIssuer)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) TokenIssuerOption {
	return func(t *TokenIssuer) {
		t.nowTime = nowFunc
	}
}

func NewTokenIssuer(secret []byte, issuer string, expiry time.Duration, options ...TokenIssuerOption) (*TokenIssuer, error) {
	if len(secret) == 0 {
		return nil, errors.Wrapf(errors.ErrInternal, "[NewTokenIssuer] secret is required")
	}
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	t := &TokenIssuer{secret: secret, issuer: issuer, expiry: expiry, nowTime: time.Now}
	for _, opt := range options {
		opt(t)
	}
	return t, nil
}

type sessionClaims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Issue signs a token for a resolved principal.
func (t *TokenIssuer) Issue(principal *Principal) (string, error) {
	if !principal.Resolved() {
		return "", errors.Wrapf(errors.ErrInvalidRequest, "[TokenIssuer.Issue] principal has no local account")
	}

	now := t.nowTime()
	claims := sessionClaims{
		Email: principal.Email,
		Role:  principal.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   principal.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.expiry)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", errors.Wrapf(err, "[TokenIssuer.Issue] sign")
	}
	return signed, nil
}

// Parse validates a session token and returns its principal.
func (t *TokenIssuer) Parse(tokenString string) (*Principal, error) {
	var claims sessionClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Wrapf(errors.ErrProtocol, "unexpected signing method %v", token.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithIssuer(t.issuer), jwt.WithTimeFunc(t.nowTime))
	if err != nil {
		return nil, errors.Wrapf(errors.ErrProtocol, "[TokenIssuer.Parse] %v", err)
	}
	if !token.Valid {
		return nil, errors.Wrapf(errors.ErrProtocol, "[TokenIssuer.Parse] invalid token")
	}

	return &Principal{
		UserID: claims.Subject,
		Email:  claims.Email,
		Role:   claims.Role,
	}, nil
}
