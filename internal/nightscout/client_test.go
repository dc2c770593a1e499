package nightscout

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHashSecret(t *testing.T) {
	// Known SHA1 vector, matching what a Nightscout server computes.
	if got := hashSecret("test"); got != "a94a8fe5ccb19ba61c4c0873d391e987982fbbd3" {
		t.Errorf("hashSecret(\"test\") = %q", got)
	}
}

func TestFetchRecent(t *testing.T) {
	var gotPath, gotCount, gotSecret string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotCount = r.URL.Query().Get("count")
		gotSecret = r.Header.Get("API-SECRET")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"_id":"b","sgv":132,"date":1710400200000,"direction":"Flat"},
			{"_id":"a","sgv":null,"date":1710399900000,"direction":"NOT COMPUTABLE"}
		]`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test", "", false)
	entries, err := client.FetchRecent(context.Background(), 288)
	if err != nil {
		t.Fatalf("FetchRecent() error = %v", err)
	}

	if gotPath != "/api/v1/entries/sgv" {
		t.Errorf("request path = %q", gotPath)
	}
	if gotCount != "288" {
		t.Errorf("count param = %q, want 288", gotCount)
	}
	if gotSecret != hashSecret("test") {
		t.Errorf("API-SECRET header = %q, want hashed secret", gotSecret)
	}

	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].SGV == nil || *entries[0].SGV != 132 {
		t.Errorf("entries[0].SGV = %v, want 132", entries[0].SGV)
	}
	if entries[0].Timestamp.UnixMilli() != 1710400200000 {
		t.Errorf("entries[0].Timestamp = %v", entries[0].Timestamp)
	}
	if entries[1].SGV != nil {
		t.Errorf("entries[1].SGV = %v, want nil for a null sgv", *entries[1].SGV)
	}
}

func TestFetchRecent_TokenAuth(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", "tok-123", true)
	if _, err := client.FetchRecent(context.Background(), 10); err != nil {
		t.Fatalf("FetchRecent() error = %v", err)
	}
	if gotAuth != "Bearer tok-123" {
		t.Errorf("Authorization header = %q, want bearer token", gotAuth)
	}
}

func TestUploadProfilePatch(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret", "", false)
	err := client.UploadProfilePatch(context.Background(), map[string]any{"basal_22_02": 0.45})
	if err != nil {
		t.Fatalf("UploadProfilePatch() error = %v", err)
	}

	if gotMethod != http.MethodPut || gotPath != "/api/v1/profile" {
		t.Errorf("request = %s %s, want PUT /api/v1/profile", gotMethod, gotPath)
	}
	if gotBody["basal_22_02"] != 0.45 {
		t.Errorf("body = %v, want the patch", gotBody)
	}
}

func TestAuthorizePendingBolus(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret", "", false)
	if err := client.AuthorizePendingBolus(context.Background()); err != nil {
		t.Fatalf("AuthorizePendingBolus() error = %v", err)
	}

	if gotPath != "/api/v1/treatments" {
		t.Errorf("request path = %q, want /api/v1/treatments", gotPath)
	}
	if gotBody["eventType"] != "Remote Bolus Approval" {
		t.Errorf("eventType = %v", gotBody["eventType"])
	}
}

func TestDoRequest_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(server.URL, "wrong", "", false)
	if _, err := client.FetchRecent(context.Background(), 10); err == nil {
		t.Error("FetchRecent() returned nil error for a 401 response")
	}
	if err := client.TestConnection(context.Background()); err == nil {
		t.Error("TestConnection() returned nil error for a 401 response")
	}
}
