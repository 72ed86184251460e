package middleware

import (
	"crypto/subtle"
	"net/http"
)

// BasicAuthMiddleware guards operator endpoints such as /metrics with a
// single username and password.
type BasicAuthMiddleware struct {
	realm    string
	username string
	password string
	enabled  bool
}

// NewBasicAuthMiddleware creates a basic auth middleware for realm.
// If both username and password are empty, authentication is disabled.
func NewBasicAuthMiddleware(realm, username, password string) *BasicAuthMiddleware {
	return &BasicAuthMiddleware{
		realm:    realm,
		username: username,
		password: password,
		enabled:  username != "" || password != "",
	}
}

// Enabled reports whether credentials are required.
func (m *BasicAuthMiddleware) Enabled() bool {
	return m.enabled
}

// Handler returns middleware that requires basic authentication.
func (m *BasicAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.enabled {
			next.ServeHTTP(w, r)
			return
		}

		user, pass, ok := r.BasicAuth()
		if !ok {
			m.unauthorized(w)
			return
		}

		// Constant-time comparison; evaluate both so timing does not reveal which failed.
		userMatch := subtle.ConstantTimeCompare([]byte(user), []byte(m.username)) == 1
		passMatch := subtle.ConstantTimeCompare([]byte(pass), []byte(m.password)) == 1

		if !userMatch || !passMatch {
			m.unauthorized(w)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *BasicAuthMiddleware) unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="`+m.realm+`"`)
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}
