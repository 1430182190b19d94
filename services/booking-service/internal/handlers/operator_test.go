package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/auth"
	"golang.org/x/crypto/bcrypt"
)

func TestParseOperatorAccounts(t *testing.T) {
	accts, err := ParseOperatorAccounts([]string{"ana:admin:$2a$10$abc:def"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if accts[0].Username != "ana" || accts[0].Role != "admin" || accts[0].PasswordHash != "$2a$10$abc:def" {
		t.Fatalf("unexpected account: %+v", accts[0])
	}
	if _, err := ParseOperatorAccounts([]string{"ana:admin"}); err == nil {
		t.Fatal("expected error for missing hash")
	}
}

func TestOperatorLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	login := NewOperatorLogin([]OperatorAccount{{Username: "ana", Role: "operator", PasswordHash: string(hash)}}, "key", time.Hour)

	post := func(body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		login.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body)))
		return rec
	}

	rec := post(`{"username":"ana","password":"s3cret"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp loginResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	claims, err := auth.ParseAndVerifyHS256(resp.AccessToken, "key")
	if err != nil {
		t.Fatalf("token invalid: %v", err)
	}
	if claims.Sub != "ana" || claims.Role != "operator" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	if rec := post(`{"username":"ana","password":"wrong"}`); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %d", rec.Code)
	}
	if rec := post(`{"username":"bob","password":"s3cret"}`); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown user, got %d", rec.Code)
	}
	if rec := post(`{"username":"ana"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing password, got %d", rec.Code)
	}
}
