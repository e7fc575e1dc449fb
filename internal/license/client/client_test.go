package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/gluufederation/ecommerce/internal/config"
	licensedomain "github.com/gluufederation/ecommerce/internal/license/domain"
)

type tokenSourceStub struct {
	tickets []string
}

func (s *tokenSourceStub) AcquireToken(context.Context, string) (string, error) {
	return "rpt-token", nil
}

func (s *tokenSourceStub) AcquireTokenForTicket(_ context.Context, ticket string) (string, error) {
	s.tickets = append(s.tickets, ticket)
	return "rpt-token", nil
}

func newLicenseServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/generate/1", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_ = json.NewEncoder(w).Encode(map[string]string{"ticket": "gen-ticket"})
			return
		}

		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if req["product"] != "oxd" || req["license_count_limit"] != float64(9999) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode([]map[string]string{{
			"license_id":       "lic-123",
			"license_password": "lp",
			"public_password":  "pp",
			"public_key":       "pk",
		}})
	})

	mux.HandleFunc("/metadata", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_ = json.NewEncoder(w).Encode(map[string]string{"ticket": "meta-ticket"})
			return
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if _, ok := req["active"]; !ok {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("/statistics", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("licenseId") == "lic-empty" {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"monthly_statistic":        map[string]any{},
				"total_generated_licenses": 0,
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"monthly_statistic": map[string]any{
				"2023-3": map[string]any{
					"license_generated_count": 4,
					"mac_address":             map[string]int{"aa:bb:cc:dd:ee:ff": 4},
				},
			},
			"total_generated_licenses": 4,
		})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestConnector(t *testing.T) (*Client, *tokenSourceStub) {
	t.Helper()

	server := newLicenseServer(t)
	tokens := &tokenSourceStub{}
	c := New(config.Config{
		LicenseGenerateEndpoint:   server.URL + "/generate",
		LicenseMetadataEndpoint:   server.URL + "/metadata",
		LicenseStatisticsEndpoint: server.URL + "/statistics",
	}, tokens, zap.NewNop())
	return c, tokens
}

func TestGenerateLicenseExchangesTicketForToken(t *testing.T) {
	c, tokens := newTestConnector(t)

	grant, err := c.GenerateLicense(context.Background(), "Acme Identity")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if grant.LicenseID != "lic-123" || grant.PublicKey != "pk" {
		t.Fatalf("unexpected grant %+v", grant)
	}
	if len(tokens.tickets) != 1 || tokens.tickets[0] != "gen-ticket" {
		t.Fatalf("expected generate ticket exchanged, got %v", tokens.tickets)
	}

	termDays := int(grant.ExpirationDate.Sub(grant.CreationDate).Hours() / 24)
	if termDays != 365 {
		t.Fatalf("expected 365 day term, got %d", termDays)
	}
}

func TestUpdateMetadataSendsActiveFlag(t *testing.T) {
	c, tokens := newTestConnector(t)

	license := licensedomain.License{LicenseID: "lic-123", IsActive: false}
	if err := c.UpdateMetadata(context.Background(), license, "Acme Identity"); err != nil {
		t.Fatalf("update metadata: %v", err)
	}
	if len(tokens.tickets) != 1 || tokens.tickets[0] != "meta-ticket" {
		t.Fatalf("expected metadata ticket exchanged, got %v", tokens.tickets)
	}
}

func TestMonthlyStatisticsParsesPeriodKeys(t *testing.T) {
	c, _ := newTestConnector(t)

	stats, err := c.MonthlyStatistics(context.Background(), "lic-123")
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	stat, ok := stats["2023-3"]
	if !ok {
		t.Fatalf("expected 2023-3 period, got %v", stats)
	}
	if stat.LicenseGeneratedCount != 4 || stat.MacAddresses["aa:bb:cc:dd:ee:ff"] != 4 {
		t.Fatalf("unexpected stat %+v", stat)
	}
}

func TestMonthlyStatisticsEmptyIsNoUsageData(t *testing.T) {
	c, _ := newTestConnector(t)

	_, err := c.MonthlyStatistics(context.Background(), "lic-empty")
	if !errors.Is(err, licensedomain.ErrNoUsageData) {
		t.Fatalf("expected ErrNoUsageData, got %v", err)
	}
}

func TestMockConnectorServesCannedStatistics(t *testing.T) {
	mock := NewMock()

	stats, err := mock.MonthlyStatistics(context.Background(), "anything")
	if err != nil {
		t.Fatalf("mock statistics: %v", err)
	}
	if len(stats) == 0 {
		t.Fatalf("expected canned periods, got none")
	}
	for period, stat := range stats {
		if stat.LicenseGeneratedCount <= 0 {
			t.Fatalf("period %s has no licenses", period)
		}
	}
}
