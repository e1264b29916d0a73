//go:build integration

// These tests drive a running server (TEST_SERVER_URL) backed by the MongoDB
// at TEST_MONGO_URI. The appointment create path is transactional, so the
// database must be a replica set.
package integration

import (
	"net/http"
	"testing"

	"medaccess/pkg/model"
	"medaccess/test/integration/testutil"
)

// setupAPI boots a clean database, seeds the partner integration and returns
// a client that authenticates every call.
func setupAPI(t *testing.T) (*testutil.MongoHelper, *testutil.Client) {
	t.Helper()

	env := testutil.NewTestEnv()
	mongo, client := env.Setup(t)
	t.Cleanup(func() { env.Cleanup(t, mongo) })

	mongo.InsertDocuments(t, testutil.IntegrationsCollection, testutil.ActiveIntegration())
	client.SetDefaultHeader("X-API-Token", testutil.TestAPIToken)

	return mongo, client
}

func createAppointment(t *testing.T, client *testutil.Client, req model.CreateAppointmentRequest) model.AppointmentCreated {
	t.Helper()

	resp := client.POST(t, "/medical_access/api/create-appointment/", req)
	testutil.AssertStatusCode(t, resp, http.StatusCreated)

	var created struct {
		Data model.AppointmentCreated `json:"data"`
	}
	if err := resp.DecodeJSON(&created); err != nil {
		t.Fatalf("failed to unmarshal create response: %v", err)
	}
	return created.Data
}

func registerTerminal(t *testing.T, client *testutil.Client, terminal model.Terminal) model.Terminal {
	t.Helper()

	resp := client.POST(t, "/medical_access/api/terminals/", terminal)
	testutil.AssertStatusCode(t, resp, http.StatusCreated)

	var created struct {
		Data model.Terminal `json:"data"`
	}
	if err := resp.DecodeJSON(&created); err != nil {
		t.Fatalf("failed to unmarshal terminal response: %v", err)
	}
	return created.Data
}

func validateQR(t *testing.T, client *testutil.Client, token, terminalID string) model.ValidateQRResponse {
	t.Helper()

	resp := client.POST(t, "/medical_access/api/validate-qr/", model.ValidateQRRequest{
		Token:      token,
		TerminalID: terminalID,
	})
	testutil.AssertStatusCode(t, resp, http.StatusOK)

	var result model.ValidateQRResponse
	if err := resp.DecodeJSON(&result); err != nil {
		t.Fatalf("failed to unmarshal validate response: %v", err)
	}
	return result
}
