//go:build integration

package integration

import (
	"net/http"
	"strings"
	"testing"

	"medaccess/pkg/model"
	"medaccess/test/integration/testutil"
)

func TestRegisterTerminal(t *testing.T) {
	mongo, client := setupAPI(t)

	resp := client.POST(t, "/medical_access/api/terminals/", testutil.ValidTerminal())

	testutil.AssertStatusCode(t, resp, http.StatusCreated)

	var created struct {
		Data model.Terminal `json:"data"`
	}
	if err := resp.DecodeJSON(&created); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}

	if created.Data.ID == "" {
		t.Error("expected ID to be set")
	}
	if created.Data.Mode != model.TerminalModeEntry {
		t.Errorf("expected mode %q, got %q", model.TerminalModeEntry, created.Data.Mode)
	}
	if !created.Data.Active {
		t.Error("expected a fresh terminal to be active")
	}

	if count := mongo.CountDocuments(t, testutil.TerminalsCollection); count != 1 {
		t.Errorf("expected 1 terminal in DB, got %d", count)
	}
}

func TestRegisterTerminal_DuplicateIP(t *testing.T) {
	mongo, client := setupAPI(t)

	registerTerminal(t, client, testutil.ValidTerminal())

	resp := client.POST(t, "/medical_access/api/terminals/", testutil.NewTerminalBuilder().
		WithName("Side entrance").
		Build())

	testutil.AssertStatusCode(t, resp, http.StatusConflict)
	if msg := testutil.GetErrorMessage(t, resp); !strings.Contains(msg, "already registered") {
		t.Errorf("expected duplicate message, got %q", msg)
	}

	if count := mongo.CountDocuments(t, testutil.TerminalsCollection); count != 1 {
		t.Errorf("expected 1 terminal in DB, got %d", count)
	}
}

func TestRegisterTerminal_InvalidInput(t *testing.T) {
	mongo, client := setupAPI(t)

	testCases := []struct {
		name     string
		terminal model.Terminal
		want     string
	}{
		{
			name:     "missing name",
			terminal: testutil.NewTerminalBuilder().WithName("").Build(),
			want:     "Name",
		},
		{
			name:     "bad ip",
			terminal: testutil.NewTerminalBuilder().WithIP("not-an-ip").Build(),
			want:     "IP",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resp := client.POST(t, "/medical_access/api/terminals/", tc.terminal)

			testutil.AssertStatusCode(t, resp, http.StatusUnprocessableEntity)
			testutil.AssertContains(t, resp, tc.want)
		})
	}

	if count := mongo.CountDocuments(t, testutil.TerminalsCollection); count != 0 {
		t.Errorf("expected 0 terminals in DB, got %d", count)
	}
}

func TestTerminalMode(t *testing.T) {
	_, client := setupAPI(t)

	registerTerminal(t, client, testutil.NewTerminalBuilder().
		WithMode(model.TerminalModeExit).
		WithDoorNo(2).
		Build())

	resp := client.GET(t, "/medical_access/api/terminals/mode/?ip=10.0.8.40")

	testutil.AssertStatusCode(t, resp, http.StatusOK)

	var mode struct {
		Data struct {
			Mode   string `json:"mode"`
			DoorNo int    `json:"door_no"`
		} `json:"data"`
	}
	if err := resp.DecodeJSON(&mode); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}

	if mode.Data.Mode != model.TerminalModeExit {
		t.Errorf("expected mode %q, got %q", model.TerminalModeExit, mode.Data.Mode)
	}
	if mode.Data.DoorNo != 2 {
		t.Errorf("expected door_no 2, got %d", mode.Data.DoorNo)
	}
}

func TestTerminalMode_UnknownIP(t *testing.T) {
	_, client := setupAPI(t)

	resp := client.GET(t, "/medical_access/api/terminals/mode/?ip=192.0.2.99")

	testutil.AssertStatusCode(t, resp, http.StatusNotFound)
}

func TestTerminalMode_MissingIP(t *testing.T) {
	_, client := setupAPI(t)

	resp := client.GET(t, "/medical_access/api/terminals/mode/")

	testutil.AssertStatusCode(t, resp, http.StatusBadRequest)
}

func TestUpdateTerminal(t *testing.T) {
	_, client := setupAPI(t)

	terminal := registerTerminal(t, client, testutil.ValidTerminal())

	resp := client.PATCH(t, "/medical_access/api/terminals/id/"+terminal.ID, map[string]interface{}{
		"mode":   model.TerminalModeBoth,
		"active": false,
	})

	testutil.AssertStatusCode(t, resp, http.StatusOK)

	var updated struct {
		Data model.Terminal `json:"data"`
	}
	if err := resp.DecodeJSON(&updated); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if updated.Data.Mode != model.TerminalModeBoth {
		t.Errorf("expected mode %q, got %q", model.TerminalModeBoth, updated.Data.Mode)
	}
	if updated.Data.Active {
		t.Error("expected terminal to be deactivated")
	}

	// The patch is persisted, not just echoed.
	fetch := client.GET(t, "/medical_access/api/terminals/id/"+terminal.ID)
	testutil.AssertStatusCode(t, fetch, http.StatusOK)
	if err := fetch.DecodeJSON(&updated); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if updated.Data.Mode != model.TerminalModeBoth {
		t.Errorf("expected persisted mode %q, got %q", model.TerminalModeBoth, updated.Data.Mode)
	}
}
