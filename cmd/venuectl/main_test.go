package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestRoomsCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/rooms" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"rooms":[{"name":"main","participant_count":3,"speaker_count":1,"capacity":5}]}`))
	}))
	defer srv.Close()

	var out bytes.Buffer
	cmd := roomsCmd(&globals{server: srv.URL})
	cmd.SetArgs([]string{})
	cmd.SetOut(&out)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("rooms: %v", err)
	}
	if !strings.Contains(out.String(), "main") || !strings.Contains(out.String(), "1/5") {
		t.Fatalf("unexpected output:\n%s", out.String())
	}
}

func TestLoginCommandReportsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid credentials"}`))
	}))
	defer srv.Close()

	cmd := loginCmd(&globals{server: srv.URL})
	cmd.SetArgs([]string{"--password", "nope"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "invalid credentials") {
		t.Fatalf("want server error, got %v", err)
	}
}

func TestHashPasswordCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := hashCmd()
	cmd.SetArgs([]string{"stage-door"})
	cmd.SetOut(&out)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("hash-password: %v", err)
	}
	hash := strings.TrimSpace(out.String())
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("stage-door")); err != nil {
		t.Fatalf("printed hash does not match: %v", err)
	}
}
