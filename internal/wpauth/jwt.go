package wpauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"

	wperrors "github.com/docdyhr/mcp-wordpress/pkg/errors"
)

// jwtLoginResponse is the JSON body returned by the WordPress JWT Auth
// plugin's POST /wp-json/jwt-auth/v1/token endpoint.
type jwtLoginResponse struct {
	Token       string `json:"token"`
	UserEmail   string `json:"user_email"`
	UserNicename string `json:"user_nicename"`
}

func (m *Manager) jwtLogin(ctx context.Context) error {
	form := url.Values{
		"username": {m.bundle.JWTLoginUsername},
		"password": {m.bundle.JWTLoginPassword},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		m.baseURL+"/wp-json/jwt-auth/v1/token", bytes.NewBufferString(form.Encode()))
	if err != nil {
		return wperrors.Wrap(wperrors.KindTransportError, "building jwt login request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return wperrors.Wrap(wperrors.KindTransportError, "jwt login request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return wperrors.FromUpstream(resp.StatusCode, "jwt login rejected")
	}

	var body jwtLoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return wperrors.Wrap(wperrors.KindTransportError, "decoding jwt login response", err)
	}
	if body.Token == "" {
		return wperrors.New(wperrors.KindAuthRefreshFailed, "jwt login response carried no token")
	}

	expiresAt, err := jwtExpiry(body.Token)
	if err != nil {
		return wperrors.Wrap(wperrors.KindAuthRefreshFailed, "jwt token carried no usable expiry", err)
	}

	m.bundle.jwtAccessToken = body.Token
	m.bundle.jwtExpiresAt = expiresAt
	return nil
}

// jwtExpiry reads the "exp" claim from a token issued by the site. The
// server signs these tokens with its own secret, which the client never
// holds, so claims are parsed without signature verification; the
// Request Manager still relies on the upstream's own 401 response to
// catch a token the site has since revoked.
func jwtExpiry(token string) (time.Time, error) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, err
	}
	expRaw, ok := claims["exp"]
	if !ok {
		return time.Time{}, fmt.Errorf("token has no exp claim")
	}
	expFloat, ok := expRaw.(float64)
	if !ok {
		return time.Time{}, fmt.Errorf("exp claim has unexpected type %T", expRaw)
	}
	return time.Unix(int64(expFloat), 0), nil
}
