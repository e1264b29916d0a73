package hikvision

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const (
	testRealm    = "DS-K1T342MFWX-E1"
	testNonce    = "dcd98b7102dd2f0e8b11d0f600bfb0c0"
	testUsername = "admin"
	testPassword = "door12345"
)

// digestServer wraps a handler with a server-side digest check: the
// first request gets a 401 challenge, the retry is verified by
// recomputing the expected response from the client's own nc/cnonce.
func digestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if auth == "" {
			w.Header().Set("WWW-Authenticate",
				`Digest realm="`+testRealm+`", nonce="`+testNonce+`", qop="auth"`)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		fields := parseDigestChallenge(auth)
		if fields == nil {
			t.Errorf("unparseable Authorization header: %s", auth)
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		ha1 := md5Hex(testUsername + ":" + testRealm + ":" + testPassword)
		ha2 := md5Hex(r.Method + ":" + fields["uri"])
		expected := md5Hex(strings.Join(
			[]string{ha1, testNonce, fields["nc"], fields["cnonce"], "auth", ha2}, ":"))

		if fields["response"] != expected {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		handler(w, r)
	}))
}

func TestISAPIClient_DeviceInfo(t *testing.T) {
	srv := digestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ISAPI/System/deviceInfo" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Method != http.MethodGet {
			t.Errorf("unexpected method %s", r.Method)
		}

		w.Header().Set("Content-Type", "application/xml")
		io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>
<DeviceInfo version="2.0" xmlns="http://www.isapi.org/ver20/XMLSchema">
	<deviceName>Clinic Entrance</deviceName>
	<model>DS-K1T342MFWX-E1</model>
	<serialNumber>K12345678</serialNumber>
	<firmwareVersion>V3.2.30</firmwareVersion>
	<macAddress>24:28:fd:1a:2b:3c</macAddress>
</DeviceInfo>`)
	})
	defer srv.Close()

	client := NewISAPIClient(strings.TrimPrefix(srv.URL, "http://"), testUsername, testPassword, 5*time.Second)

	info, err := client.DeviceInfo(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if info.Model != "DS-K1T342MFWX-E1" {
		t.Errorf("expected model DS-K1T342MFWX-E1, got %q", info.Model)
	}
	if info.SerialNumber != "K12345678" {
		t.Errorf("expected serial K12345678, got %q", info.SerialNumber)
	}
	if info.FirmwareVersion != "V3.2.30" {
		t.Errorf("expected firmware V3.2.30, got %q", info.FirmwareVersion)
	}
}

func TestISAPIClient_OpenDoor(t *testing.T) {
	var gotBody string
	var gotContentType string

	srv := digestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ISAPI/AccessControl/RemoteControl/door/1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Method != http.MethodPut {
			t.Errorf("unexpected method %s", r.Method)
		}

		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		gotContentType = r.Header.Get("Content-Type")

		w.Header().Set("Content-Type", "application/xml")
		io.WriteString(w, `<ResponseStatus><statusCode>1</statusCode><statusString>OK</statusString></ResponseStatus>`)
	})
	defer srv.Close()

	client := NewISAPIClient(strings.TrimPrefix(srv.URL, "http://"), testUsername, testPassword, 5*time.Second)

	if err := client.OpenDoor(context.Background(), 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotBody != "<RemoteControlDoor><cmd>open</cmd></RemoteControlDoor>" {
		t.Errorf("unexpected door command body: %s", gotBody)
	}
	if gotContentType != "application/xml" {
		t.Errorf("expected application/xml content type, got %q", gotContentType)
	}
}

func TestISAPIClient_OpenDoorFailure(t *testing.T) {
	srv := digestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer srv.Close()

	client := NewISAPIClient(strings.TrimPrefix(srv.URL, "http://"), testUsername, testPassword, 5*time.Second)

	if err := client.OpenDoor(context.Background(), 1); err == nil {
		t.Fatal("expected error when door control fails")
	}
}

func TestISAPIClient_WrongPassword(t *testing.T) {
	srv := digestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	defer srv.Close()

	client := NewISAPIClient(strings.TrimPrefix(srv.URL, "http://"), testUsername, "wrong", 5*time.Second)

	_, err := client.DeviceInfo(context.Background())
	if err == nil {
		t.Fatal("expected error with wrong credentials")
	}
}

func TestISAPIClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewISAPIClient(strings.TrimPrefix(srv.URL, "http://"), testUsername, testPassword, 50*time.Millisecond)

	if err := client.OpenDoor(context.Background(), 1); err == nil {
		t.Fatal("expected timeout error")
	}
}

// ────────────────────────────────────────────────
// Challenge parsing
// ────────────────────────────────────────────────

func TestParseDigestChallenge(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   map[string]string
	}{
		{
			name:   "standard challenge",
			header: `Digest realm="IP Camera", nonce="abc123", qop="auth"`,
			want:   map[string]string{"realm": "IP Camera", "nonce": "abc123", "qop": "auth"},
		},
		{
			name:   "comma inside quoted value",
			header: `Digest realm="a, b", nonce="n1"`,
			want:   map[string]string{"realm": "a, b", "nonce": "n1"},
		},
		{
			name:   "with opaque and algorithm",
			header: `Digest realm="r", nonce="n", opaque="op", algorithm=MD5`,
			want:   map[string]string{"realm": "r", "nonce": "n", "opaque": "op", "algorithm": "MD5"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseDigestChallenge(tt.header)
			if got == nil {
				t.Fatal("expected challenge to parse")
			}
			for key, want := range tt.want {
				if got[key] != want {
					t.Errorf("field %q = %q, want %q", key, got[key], want)
				}
			}
		})
	}
}

func TestParseDigestChallenge_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"empty header", ""},
		{"basic auth", `Basic realm="r"`},
		{"missing nonce", `Digest realm="r"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseDigestChallenge(tt.header); got != nil {
				t.Errorf("expected nil, got %v", got)
			}
		})
	}
}
