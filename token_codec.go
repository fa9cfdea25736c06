package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// DefaultTokenTTL is used when Issue gets a non positive ttl and no
// WithCodecDefaultTTL option was given
const DefaultTokenTTL = 20 * time.Minute

// registeredClaims are set by the codec and never returned from Verify
var registeredClaims = map[string]bool{
	"exp": true,
	"iat": true,
	"nbf": true,
	"jti": true,
}

// JWTCodec implements TokenCodec with HMAC signed JWTs
type JWTCodec struct {
	signingKey []byte
	method     jwt.SigningMethod
	defaultTTL time.Duration
	now        func() time.Time
	logger     Logger
}

// CodecOption configures a JWTCodec
type CodecOption func(*JWTCodec)

// WithCodecClock overrides time.Now for issuance and expiry checks
func WithCodecClock(now func() time.Time) CodecOption {
	return func(c *JWTCodec) {
		if now != nil {
			c.now = now
		}
	}
}

// WithCodecDefaultTTL replaces DefaultTokenTTL
func WithCodecDefaultTTL(ttl time.Duration) CodecOption {
	return func(c *JWTCodec) {
		if ttl > 0 {
			c.defaultTTL = ttl
		}
	}
}

// WithCodecLogger sets the logger
func WithCodecLogger(logger Logger) CodecOption {
	return func(c *JWTCodec) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewJWTCodec creates a codec for the given key and algorithm name
// (HS256, HS384 or HS512). Key and algorithm are fixed for the codec
// lifetime.
func NewJWTCodec(signingKey []byte, algorithm string, opts ...CodecOption) (*JWTCodec, error) {
	if len(signingKey) == 0 {
		return nil, errors.New("signing key is required", errors.CategoryBadInput)
	}

	if algorithm == "" {
		algorithm = jwt.SigningMethodHS256.Alg()
	}

	method, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, errors.New("unsupported signing algorithm", errors.CategoryBadInput).
			WithMetadata(map[string]any{"algorithm": algorithm})
	}

	codec := &JWTCodec{
		signingKey: append([]byte(nil), signingKey...),
		method:     method,
		defaultTTL: DefaultTokenTTL,
		now:        time.Now,
		logger:     defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(codec)
		}
	}

	return codec, nil
}

// Issue signs claims with an exp of now + ttl, truncated to whole seconds
func (c *JWTCodec) Issue(claims map[string]string, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	now := c.now()
	mapClaims := jwt.MapClaims{}
	for k, v := range claims {
		if registeredClaims[k] {
			continue
		}
		mapClaims[k] = v
	}

	mapClaims["iat"] = jwt.NewNumericDate(now)
	expiresAt := jwt.NewNumericDate(now.Add(ttl))
	mapClaims["exp"] = expiresAt
	mapClaims["jti"] = uuid.NewString()

	token := jwt.NewWithClaims(c.method, mapClaims)

	signed, err := token.SignedString(c.signingKey)
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signed, expiresAt.Time, nil
}

// Verify checks signature and expiry and returns the caller claims
func (c *JWTCodec) Verify(raw string) (map[string]string, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			c.logger.Error("token codec encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.signingKey, nil
	},
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, errors.Wrap(err, ErrInvalidToken.Category, ErrInvalidToken.Message).
			WithCode(ErrInvalidToken.Code).
			WithTextCode(ErrInvalidToken.TextCode)
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		c.logger.Error("token codec could not decode claims")
		return nil, ErrInvalidToken
	}

	out := make(map[string]string, len(mapClaims))
	for k, v := range mapClaims {
		if registeredClaims[k] {
			continue
		}
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}

	return out, nil
}
