package syncsdk

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/imroc/req/v3"
)

// DefaultTokenInfoURL is the identity provider endpoint used by TokenInfoValidator
const DefaultTokenInfoURL = "https://www.googleapis.com/oauth2/v1/tokeninfo"

// TokenValidator verifies an access token before any sync call is made
type TokenValidator interface {
	Validate(ctx context.Context, token string) error
}

// TokenValidatorFunc adapts a function to TokenValidator
type TokenValidatorFunc func(ctx context.Context, token string) error

func (f TokenValidatorFunc) Validate(ctx context.Context, token string) error {
	return f(ctx, token)
}

// TokenInfoValidator asks an OAuth tokeninfo endpoint about the token
type TokenInfoValidator struct {
	Endpoint string
	client   *req.Client
}

func NewTokenInfoValidator(endpoint string) *TokenInfoValidator {
	if endpoint == "" {
		endpoint = DefaultTokenInfoURL
	}
	return &TokenInfoValidator{
		Endpoint: endpoint,
		client: req.C().
			SetTimeout(DefaultConnectTimeout).
			SetJsonMarshal(jsonMarshal).
			SetJsonUnmarshal(jsonUnmarshal),
	}
}

func (v *TokenInfoValidator) Validate(ctx context.Context, token string) error {
	if token == "" {
		return &AuthError{Reason: "empty token"}
	}

	var info map[string]any
	var errBody map[string]any
	resp, err := v.client.R().
		SetContext(ctx).
		SetQueryParam("access_token", token).
		SetSuccessResult(&info).
		SetErrorResult(&errBody).
		Get(v.Endpoint)
	if err != nil {
		return &AuthError{Reason: "verification request failed", Err: err}
	}

	if resp.IsErrorState() {
		if reason, ok := errBody["error"]; ok {
			return &AuthError{Reason: fmt.Sprint(reason)}
		}
		return &AuthError{Reason: "unknown response from token verification: " + resp.Status}
	}
	if reason, ok := info["error"]; ok {
		return &AuthError{Reason: fmt.Sprint(reason)}
	}
	return nil
}

// JWTValidator checks a JWT access token locally. The signature is not verified,
// only that the token parses and has not expired.
type JWTValidator struct {
	Leeway time.Duration
	now    func() time.Time
}

func (v *JWTValidator) Validate(_ context.Context, token string) error {
	if token == "" {
		return &AuthError{Reason: "empty token"}
	}

	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return &AuthError{Reason: "malformed token", Err: err}
	}

	now := time.Now
	if v.now != nil {
		now = v.now
	}
	if claims.ExpiresAt != nil && now().After(claims.ExpiresAt.Add(v.Leeway)) {
		return &AuthError{Reason: "token expired", Err: jwt.ErrTokenExpired}
	}
	return nil
}

// StaticValidator accepts the listed tokens, or any non-empty token when the list is empty
type StaticValidator struct {
	Tokens []string
}

func (v StaticValidator) Validate(_ context.Context, token string) error {
	if token == "" {
		return &AuthError{Reason: "empty token"}
	}
	if len(v.Tokens) > 0 && !slices.Contains(v.Tokens, token) {
		return &AuthError{Reason: "unknown token"}
	}
	return nil
}

// IsAuthError reports whether err came from token validation
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}
