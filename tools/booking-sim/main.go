package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/auth"
)

func main() {
	var (
		baseURL = flag.String("base-url", getenv("BASE_URL", "http://localhost:8080"), "booking service base url")
		slotID  = flag.String("slot", getenv("SLOT_ID", "slot-1"), "slot to book")
		name    = flag.String("name", getenv("BOOK_NAME", "Test Customer"), "customer name")
		email   = flag.String("email", getenv("BOOK_EMAIL", "customer@example.com"), "customer email")
		reason  = flag.String("reason", getenv("BOOK_REASON", "checkup"), "appointment reason")
		then    = flag.String("then", getenv("THEN", "none"), "follow-up action: none, approve, deny or cancel")
		secret  = flag.String("secret", getenv("OPERATOR_JWT_SECRET", ""), "operator token signing secret")
	)
	flag.Parse()

	base := strings.TrimRight(*baseURL, "/")
	body, err := json.Marshal(map[string]string{
		"slotId": *slotID,
		"name":   *name,
		"email":  *email,
		"reason": *reason,
	})
	if err != nil {
		fatal(err.Error())
	}

	status, resp := do(http.MethodPost, base+"/api/bookings", "", body)
	fmt.Printf("book status=%d %s\n", status, resp)
	if status != http.StatusCreated {
		os.Exit(1)
	}

	var created struct {
		Appointment struct {
			ID string `json:"id"`
		} `json:"appointment"`
	}
	if err := json.Unmarshal(resp, &created); err != nil || created.Appointment.ID == "" {
		fatal("could not read appointment id from response")
	}
	id := created.Appointment.ID

	action := strings.ToLower(strings.TrimSpace(*then))
	if action == "none" || action == "" {
		return
	}

	token := ""
	if strings.TrimSpace(*secret) != "" {
		token, err = auth.IssueHS256("booking-sim", "operator", 10*time.Minute, *secret)
		if err != nil {
			fatal(err.Error())
		}
	}

	switch action {
	case "approve", "deny":
		target := "approved"
		if action == "deny" {
			target = "denied"
		}
		payload, _ := json.Marshal(map[string]string{"status": target})
		status, resp = do(http.MethodPut, base+"/api/bookings/"+id, token, payload)
	case "cancel":
		status, resp = do(http.MethodDelete, base+"/api/del/"+id, token, nil)
	default:
		fatal("unsupported action: " + action)
	}
	fmt.Printf("%s status=%d %s\n", action, status, resp)
}

func do(method, url, token string, body []byte) (int, []byte) {
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		fatal(err.Error())
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		fatal(err.Error())
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, bytes.TrimSpace(out)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(2)
}
