package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"medaccess/pkg/logger"
)

// APITokenAuth guards partner endpoints. The token travels in the
// X-API-Token header; older integrations send it as a "token" field in the
// JSON body, so that is accepted as a fallback.
func APITokenAuth(verify func(r *http.Request, token string) error, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get("X-API-Token")

			if token == "" {
				bodyToken, err := extractBodyToken(r)
				if err != nil {
					rejectUnauthorized(w, log, r, "Failed to read request body")
					return
				}
				token = bodyToken
			}

			if token == "" {
				rejectUnauthorized(w, log, r, "Missing API token")
				return
			}

			if err := verify(r, token); err != nil {
				rejectUnauthorized(w, log, r, "Invalid API token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func extractBodyToken(r *http.Request) (string, error) {
	if r.Body == nil {
		return "", nil
	}

	body, err := readAndRestoreBody(r)
	if err != nil {
		return "", err
	}

	var payload struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", nil
	}

	return payload.Token, nil
}

func readAndRestoreBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}

	r.Body.Close()
	r.Body = io.NopCloser(bytes.NewBuffer(body))

	return body, nil
}

func rejectUnauthorized(w http.ResponseWriter, log *logger.Logger, r *http.Request, reason string) {
	requestID := ""
	if rid := r.Context().Value(RequestIDKey); rid != nil {
		requestID = rid.(string)
	}

	log.Warn("API token verification failed",
		"request_id", requestID,
		"reason", reason,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"Unauthorized"}`))
}
