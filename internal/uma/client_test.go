package uma

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"github.com/gluufederation/ecommerce/internal/config"
)

type umaServer struct {
	*httptest.Server

	aatRequests int32
	scope       string
	rptStatus   int
}

func newUMAServer(t *testing.T) *umaServer {
	t.Helper()

	s := &umaServer{scope: "uma_authorization", rptStatus: http.StatusCreated}
	mux := http.NewServeMux()

	mux.HandleFunc("/oxauth/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&s.aatRequests, 1)
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.PostFormValue("grant_type") != "client_credentials" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "aat-token",
			"scope":        s.scope,
			"expires_in":   3600,
		})
	})

	mux.HandleFunc("/oxauth/rpt", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(s.rptStatus)
		_ = json.NewEncoder(w).Encode(map[string]string{"rpt": "rpt-token"})
	})

	mux.HandleFunc("/resource", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(map[string]string{"ticket": "ticket-1"})
	})

	mux.HandleFunc("/oxauth/authorize", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Ticket string `json:"ticket"`
			RPT    string `json:"rpt"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Ticket == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"rpt": req.RPT})
	})

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func newTestClient(s *umaServer) *Client {
	return NewClient(config.Config{
		UMATokenEndpoint:     s.URL + "/oxauth/token",
		UMARPTEndpoint:       s.URL + "/oxauth/rpt",
		UMAAuthorizeEndpoint: s.URL + "/oxauth/authorize",
		UMAClientID:          "client",
		UMAClientSecret:      "secret",
	}, zap.NewNop())
}

func TestAcquireTokenRunsFullHandshake(t *testing.T) {
	s := newUMAServer(t)
	c := newTestClient(s)

	token, err := c.AcquireToken(context.Background(), s.URL+"/resource")
	if err != nil {
		t.Fatalf("acquire token: %v", err)
	}
	if token != "rpt-token" {
		t.Fatalf("expected authorized rpt, got %q", token)
	}
}

func TestAcquireTokenReusesCachedAAT(t *testing.T) {
	s := newUMAServer(t)
	c := newTestClient(s)

	for i := 0; i < 3; i++ {
		if _, err := c.AcquireToken(context.Background(), s.URL+"/resource"); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
	}
	if got := atomic.LoadInt32(&s.aatRequests); got != 1 {
		t.Fatalf("expected a single AAT request, got %d", got)
	}
}

func TestAcquireTokenRejectsWrongScope(t *testing.T) {
	s := newUMAServer(t)
	s.scope = "openid"
	c := newTestClient(s)

	_, err := c.AcquireToken(context.Background(), s.URL+"/resource")
	if !errors.Is(err, ErrTokenDenied) {
		t.Fatalf("expected ErrTokenDenied, got %v", err)
	}
}

func TestAcquireTokenFailsOnUnprotectedResource(t *testing.T) {
	s := newUMAServer(t)
	c := newTestClient(s)

	open := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(open.Close)

	_, err := c.AcquireToken(context.Background(), open.URL)
	if !errors.Is(err, ErrNotProtected) {
		t.Fatalf("expected ErrNotProtected, got %v", err)
	}
}

func TestAcquireTokenForTicketSkipsProbe(t *testing.T) {
	s := newUMAServer(t)
	c := newTestClient(s)

	token, err := c.AcquireTokenForTicket(context.Background(), "ticket-from-403")
	if err != nil {
		t.Fatalf("acquire for ticket: %v", err)
	}
	if token != "rpt-token" {
		t.Fatalf("expected authorized rpt, got %q", token)
	}
}
