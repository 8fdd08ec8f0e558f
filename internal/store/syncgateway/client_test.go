package syncgateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestUpsertUser(t *testing.T) {
	var gotPath, gotMethod string
	var gotRecord UserRecord
	var gotAuthOK bool

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		user, pass, ok := r.BasicAuth()
		gotAuthOK = ok && user == "sg-admin" && pass == "sg-pass"
		if err := json.NewDecoder(r.Body).Decode(&gotRecord); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client := New(Config{
		URL:      srv.URL,
		Database: "stockroom",
		Username: "sg-admin",
		Password: "sg-pass",
	})

	rec := UserRecord{
		Name:          "alice",
		Password:      "secret1",
		AdminRoles:    []string{"admin"},
		AdminChannels: []string{"team-a"},
	}
	if err := client.UpsertUser(context.Background(), rec); err != nil {
		t.Fatalf("UpsertUser error: %v", err)
	}

	if gotMethod != http.MethodPut {
		t.Fatalf("method %s", gotMethod)
	}
	if gotPath != "/stockroom/_user/alice" {
		t.Fatalf("path %s", gotPath)
	}
	if !gotAuthOK {
		t.Fatal("basic auth missing or wrong")
	}
	if gotRecord.Name != "alice" || gotRecord.Password != "secret1" {
		t.Fatalf("unexpected record: %+v", gotRecord)
	}
}

func TestUpsertUserEscapesName(t *testing.T) {
	var gotEscaped string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotEscaped = r.URL.EscapedPath()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := New(Config{URL: srv.URL, Database: "stockroom"})
	if err := client.UpsertUser(context.Background(), UserRecord{Name: "a b/c"}); err != nil {
		t.Fatalf("UpsertUser error: %v", err)
	}
	if gotEscaped != "/stockroom/_user/a%20b%2Fc" {
		t.Fatalf("escaped path %s", gotEscaped)
	}
}

func TestUpsertUserRejectsUnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	client := New(Config{URL: srv.URL, Database: "stockroom"})
	if err := client.UpsertUser(context.Background(), UserRecord{Name: "alice"}); err == nil {
		t.Fatal("409 should surface as an error")
	}
}

func TestUpsertUserServerUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := New(Config{URL: srv.URL, Database: "stockroom"})
	if err := client.UpsertUser(context.Background(), UserRecord{Name: "alice"}); err == nil {
		t.Fatal("connection failure should surface as an error")
	}
}
