package hikvision

import (
	"bytes"
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// digestTransport answers HTTP digest challenges (RFC 2617, MD5,
// qop="auth") the way the terminals expect. The firmware rejects basic
// auth outright, so every request is sent bare first and replayed with
// an Authorization header once the device issues its challenge.
type digestTransport struct {
	username string
	password string
	next     http.RoundTripper
}

func newDigestTransport(username, password string, next http.RoundTripper) *digestTransport {
	if next == nil {
		next = http.DefaultTransport
	}
	return &digestTransport{
		username: username,
		password: password,
		next:     next,
	}
}

func (t *digestTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to buffer request body: %w", err)
		}
		req.Body = io.NopCloser(bytes.NewReader(body))
	}

	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	challenge := parseDigestChallenge(resp.Header.Get("WWW-Authenticate"))
	if challenge == nil {
		return resp, nil
	}

	// The challenged response will not be read; drain it so the
	// connection can be reused for the retry.
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	retry := req.Clone(req.Context())
	if body != nil {
		retry.Body = io.NopCloser(bytes.NewReader(body))
	}
	retry.Header.Set("Authorization", t.authorize(challenge, req.Method, req.URL.RequestURI()))

	return t.next.RoundTrip(retry)
}

func parseDigestChallenge(header string) map[string]string {
	const prefix = "Digest "
	if !strings.HasPrefix(header, prefix) {
		return nil
	}

	challenge := make(map[string]string)
	for _, field := range splitChallengeFields(header[len(prefix):]) {
		key, value, found := strings.Cut(field, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"`)
		challenge[key] = value
	}

	if challenge["realm"] == "" || challenge["nonce"] == "" {
		return nil
	}
	return challenge
}

// splitChallengeFields splits on commas outside quoted values.
func splitChallengeFields(s string) []string {
	var fields []string
	var current strings.Builder
	inQuotes := false

	for _, r := range s {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			current.WriteRune(r)
		case r == ',' && !inQuotes:
			fields = append(fields, current.String())
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	if current.Len() > 0 {
		fields = append(fields, current.String())
	}
	return fields
}

func (t *digestTransport) authorize(challenge map[string]string, method, uri string) string {
	realm := challenge["realm"]
	nonce := challenge["nonce"]
	qop := challenge["qop"]

	ha1 := md5Hex(t.username + ":" + realm + ":" + t.password)
	ha2 := md5Hex(method + ":" + uri)

	var response, cnonce string
	const nc = "00000001"

	if strings.Contains(qop, "auth") {
		cnonce = randomCnonce()
		response = md5Hex(strings.Join([]string{ha1, nonce, nc, cnonce, "auth", ha2}, ":"))
	} else {
		response = md5Hex(ha1 + ":" + nonce + ":" + ha2)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `Digest username="%s", realm="%s", nonce="%s", uri="%s", response="%s"`,
		t.username, realm, nonce, uri, response)

	if strings.Contains(qop, "auth") {
		fmt.Fprintf(&sb, `, qop=auth, nc=%s, cnonce="%s"`, nc, cnonce)
	}
	if opaque := challenge["opaque"]; opaque != "" {
		fmt.Fprintf(&sb, `, opaque="%s"`, opaque)
	}
	if algorithm := challenge["algorithm"]; algorithm != "" {
		fmt.Fprintf(&sb, `, algorithm=%s`, algorithm)
	}

	return sb.String()
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func randomCnonce() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}
