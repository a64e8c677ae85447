package api

import (
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// authFormat requires exactly nonempty:nonempty with no embedded colon
// in either half.
var authFormat = regexp.MustCompile(`^[^:]+:[^:]+$`)

// Credential is a statically configured Basic-Auth user/password pair,
// parsed once at startup and shared read-only by every request.
type Credential struct {
	Username string
	Password string
}

// IsValidAuthFormat reports whether input can be parsed as a credential.
func IsValidAuthFormat(input string) bool {
	return authFormat.MatchString(input)
}

// ParseCredential splits a "user:password" string.
func ParseCredential(input string) (Credential, error) {
	if !IsValidAuthFormat(input) {
		return Credential{}, fmt.Errorf("auth must be in user:password format")
	}
	username, password, _ := strings.Cut(input, ":")
	return Credential{Username: username, Password: password}, nil
}

// BasicAuth wraps next with an HTTP Basic authentication check against
// cred. Every parse, decode or mismatch failure yields the same 401
// challenge; which half failed is never revealed.
func BasicAuth(cred Credential, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if authorized(cred, r.Header.Get("Authorization")) {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("WWW-Authenticate", `Basic realm="MacOCR Server"`)
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, "Authentication failed: A valid username and password are required.")
	})
}

func authorized(cred Credential, header string) bool {
	encoded, ok := strings.CutPrefix(header, "Basic ")
	if !ok {
		return false
	}
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return false
	}
	user, pass, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(cred.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(cred.Password)) == 1
	return userOK && passOK
}

// statusRecorder captures the response status for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// RequestLogger logs one line per request with method, path, status and
// latency.
func RequestLogger(logger *logrus.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		entry := logger.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     rec.status,
			"latency_ms": time.Since(start).Milliseconds(),
			"remote":     r.RemoteAddr,
		})
		switch {
		case rec.status >= 500:
			entry.Error("request failed")
		case rec.status >= 400:
			entry.Warn("request rejected")
		default:
			entry.Info("request served")
		}
	})
}
