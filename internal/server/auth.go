package server

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
)

type AuthConfig struct {
	AdminUsername string
	AdminPassword string
}

type AuthMiddleware struct {
	authConfig        *AuthConfig
	adminPasswordHash []byte
}

func NewAuthMiddleware(config *AuthConfig) *AuthMiddleware {
	var passHash []byte
	if config.AdminPassword != "" {
		hash := sha256.Sum256([]byte(config.AdminPassword))
		passHash = hash[:]
	}
	return &AuthMiddleware{
		authConfig:        config,
		adminPasswordHash: passHash,
	}
}

// RequireBasicAuth protects operator endpoints. Without configured
// credentials every request is denied.
func (m *AuthMiddleware) RequireBasicAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if m.authConfig.AdminUsername == "" || m.authConfig.AdminPassword == "" {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			http.Error(w, "Authentication required but not configured", http.StatusUnauthorized)
			return
		}

		user, pass, ok := r.BasicAuth()
		passHash := sha256.Sum256([]byte(pass))
		userMatch := subtle.ConstantTimeCompare([]byte(user), []byte(m.authConfig.AdminUsername))
		passMatch := subtle.ConstantTimeCompare(passHash[:], m.adminPasswordHash)
		// Use a bitwise AND to prevent timing attacks from short-circuiting
		if !ok || (userMatch&passMatch) != 1 {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next(w, r)
	}
}
