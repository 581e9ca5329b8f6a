package gateway

import (
	"crypto/subtle"
	"net/http"
	"os"
	"strings"

	"github.com/soyeahso/validade/internal/config"
)

// AuthResult is the outcome of an authentication attempt.
type AuthResult struct {
	OK     bool   `json:"ok"`
	Method string `json:"method,omitempty"` // "token" | "password" | "none"
	Reason string `json:"reason,omitempty"`
}

// ResolvedAuth holds the resolved auth configuration for the gateway.
type ResolvedAuth struct {
	Mode     string
	Token    string
	Password string
}

// ResolveAuth resolves authentication credentials from config and environment.
// Precedence: config value, then env variable.
func ResolveAuth(cfg config.GatewayAuth) ResolvedAuth {
	auth := ResolvedAuth{
		Mode:     cfg.Mode,
		Token:    cfg.Token,
		Password: cfg.Password,
	}
	if auth.Token == "" {
		auth.Token = os.Getenv("VALIDADE_GATEWAY_TOKEN")
	}
	if auth.Password == "" {
		auth.Password = os.Getenv("VALIDADE_GATEWAY_PASSWORD")
	}

	if auth.Mode == "" {
		if auth.Password != "" {
			auth.Mode = "password"
		} else {
			auth.Mode = "token"
		}
	}
	return auth
}

// Authorize checks the provided ConnectAuth against the resolved server auth.
func Authorize(serverAuth ResolvedAuth, clientAuth *ConnectAuth) AuthResult {
	if serverAuth.Mode == "none" {
		return AuthResult{OK: true, Method: "none"}
	}
	if clientAuth == nil {
		return AuthResult{OK: false, Reason: "no credentials provided"}
	}

	switch serverAuth.Mode {
	case "token":
		return checkSecret("token", serverAuth.Token, clientAuth.Token)
	case "password":
		return checkSecret("password", serverAuth.Password, clientAuth.Password)
	default:
		return AuthResult{OK: false, Reason: "unknown auth mode: " + serverAuth.Mode}
	}
}

// AuthorizeBearer checks an HTTP request's "Authorization: Bearer" header.
// In password mode the bearer value is the password.
func AuthorizeBearer(serverAuth ResolvedAuth, r *http.Request) AuthResult {
	if serverAuth.Mode == "none" {
		return AuthResult{OK: true, Method: "none"}
	}
	value, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return AuthResult{OK: false, Reason: "bearer token required"}
	}
	value = strings.TrimSpace(value)
	if serverAuth.Mode == "password" {
		return Authorize(serverAuth, &ConnectAuth{Password: value})
	}
	return Authorize(serverAuth, &ConnectAuth{Token: value})
}

func checkSecret(method, want, got string) AuthResult {
	if want == "" {
		return AuthResult{OK: false, Reason: "server " + method + " not configured"}
	}
	if got == "" {
		return AuthResult{OK: false, Reason: method + " required"}
	}
	if !safeEqual(got, want) {
		return AuthResult{OK: false, Reason: method + "_mismatch"}
	}
	return AuthResult{OK: true, Method: method}
}

// safeEqual performs a constant-time string comparison. It avoids an early
// return on length mismatch so the secret length does not leak.
func safeEqual(a, b string) bool {
	lenMatch := subtle.ConstantTimeEq(int32(len(a)), int32(len(b)))
	cmp := subtle.ConstantTimeCompare([]byte(a), []byte(b))
	return subtle.ConstantTimeSelect(lenMatch, cmp, 0) == 1
}
