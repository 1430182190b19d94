package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/auth"
)

// OperatorAccount is a back-office login. PasswordHash is a bcrypt hash.
type OperatorAccount struct {
	Username     string
	Role         string
	PasswordHash string
}

// ParseOperatorAccounts reads "username:role:bcrypt-hash" entries.
func ParseOperatorAccounts(entries []string) ([]OperatorAccount, error) {
	out := make([]OperatorAccount, 0, len(entries))
	for _, e := range entries {
		parts := strings.SplitN(e, ":", 3)
		if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
			return nil, fmt.Errorf("operator account %q must be username:role:hash", e)
		}
		out = append(out, OperatorAccount{Username: parts[0], Role: parts[1], PasswordHash: parts[2]})
	}
	return out, nil
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// OperatorLogin exchanges operator credentials for a bearer token accepted by the
// back-office routes.
type OperatorLogin struct {
	accounts map[string]OperatorAccount
	secret   string
	ttl      time.Duration
}

func NewOperatorLogin(accounts []OperatorAccount, secret string, ttl time.Duration) *OperatorLogin {
	m := make(map[string]OperatorAccount, len(accounts))
	for _, a := range accounts {
		m[a.Username] = a
	}
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &OperatorLogin{accounts: m, secret: secret, ttl: ttl}
}

func (l *OperatorLogin) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Message: "method not allowed"})
		return
	}
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid json body"})
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "username and password required"})
		return
	}

	acct, ok := l.accounts[req.Username]
	if !ok || auth.VerifyPassword(acct.PasswordHash, req.Password) != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Message: "invalid credentials"})
		return
	}

	token, err := auth.IssueHS256(acct.Username, acct.Role, l.ttl, l.secret)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "failed to issue token"})
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(l.ttl.Seconds()),
	})
}
