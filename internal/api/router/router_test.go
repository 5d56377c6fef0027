package router

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/odonto-agent/internal/agent"
	"github.com/wolfman30/odonto-agent/internal/dialogue"
	httpmiddleware "github.com/wolfman30/odonto-agent/internal/http/middleware"
	"github.com/wolfman30/odonto-agent/internal/leads"
	"github.com/wolfman30/odonto-agent/internal/messaging"
	"github.com/wolfman30/odonto-agent/internal/observability/metrics"
	"github.com/wolfman30/odonto-agent/internal/session"
	"github.com/wolfman30/odonto-agent/pkg/logging"
)

const testAdminSecret = "admin-secret"

type testEnv struct {
	handler http.Handler
	repo    *leads.InMemoryRepository
}

func newTestRouter(t *testing.T) testEnv {
	t.Helper()

	logger := logging.Default()
	reg := prometheus.NewRegistry()
	m := metrics.NewConversationMetrics(reg)
	repo := leads.NewInMemoryRepository()
	engine := dialogue.NewEngine(dialogue.Config{})
	svc := agent.NewService(engine, session.NewMemoryStore(), agent.WithLeadSink(repo), agent.WithMetrics(m), agent.WithLogger(logger))

	cfg := &Config{
		Logger:           logger,
		MessagingHandler: messaging.NewHandler(messaging.HandlerConfig{}, svc, nil, m, logger),
		MetaHandler:      messaging.NewMetaHandler(messaging.MetaConfig{VerifyToken: "verify"}, svc, nil, nil, m, logger),
		LeadsHandler:     leads.NewHandler(repo, logger),
		AdminAuthSecret:  testAdminSecret,
		MetricsHandler:   promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}
	return testEnv{handler: New(cfg), repo: repo}
}

func sendWhatsApp(t *testing.T, h http.Handler, path, from, body string) string {
	t.Helper()
	form := url.Values{"From": {from}, "Body": {body}}
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	return rr.Body.String()
}

func TestRouterHealthEndpoint(t *testing.T) {
	env := newTestRouter(t)
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if rr.Body.String() != "ok" {
		t.Errorf("expected body 'ok', got %q", rr.Body.String())
	}
}

func TestRouterTwilioRoutes(t *testing.T) {
	env := newTestRouter(t)
	for _, path := range []string{"/twilio/whatsapp", "/messaging/twilio/webhook"} {
		body := sendWhatsApp(t, env.handler, path, "whatsapp:+55"+strings.ReplaceAll(path, "/", "1"), "oi")
		if !strings.Contains(body, "<Response><Message>") {
			t.Errorf("%s: expected TwiML reply, got %q", path, body)
		}
	}
}

func TestRouterMetaVerify(t *testing.T) {
	env := newTestRouter(t)
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/meta/webhook?hub.mode=subscribe&hub.verify_token=verify&hub.challenge=abc", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "abc" {
		t.Fatalf("expected challenge echo, got %d %q", rr.Code, rr.Body.String())
	}
}

func TestRouterAdminLeadsRequiresToken(t *testing.T) {
	env := newTestRouter(t)
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/leads", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rr.Code)
	}
}

func TestRouterBookingShowsUpInAdminLeads(t *testing.T) {
	env := newTestRouter(t)
	for _, text := range []string{"1", "manhã", "2", "Maria Silva", "confirmar"} {
		sendWhatsApp(t, env.handler, "/twilio/whatsapp", "whatsapp:+5532991413852", text)
	}

	token, err := httpmiddleware.IssueAdminToken(testAdminSecret, "recepcao", "front_desk", time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/admin/leads?limit=10", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}
	var resp leads.ListLeadsResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 1 || resp.Leads[0].Name != "Maria Silva" {
		t.Fatalf("unexpected leads response: %+v", resp)
	}
	if resp.Leads[0].Slot != "Quinta 10:15 – Dr. Paulo" {
		t.Errorf("unexpected slot %q", resp.Leads[0].Slot)
	}

	stored, err := env.repo.List(context.Background(), leads.ListFilter{})
	if err != nil || len(stored) != 1 {
		t.Fatalf("expected one stored lead, got %d (%v)", len(stored), err)
	}
}

func TestRouterMetricsEndpoint(t *testing.T) {
	env := newTestRouter(t)
	sendWhatsApp(t, env.handler, "/twilio/whatsapp", "whatsapp:+5511", "1")

	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rr.Body)
	if !strings.Contains(string(body), "odonto_dialogue_turns_total") {
		t.Errorf("expected turn counter in metrics output")
	}
	if !strings.Contains(string(body), `odonto_messaging_inbound_webhook_total{provider="twilio",status="ok"} 1`) {
		t.Errorf("expected inbound webhook counter, got:\n%s", body)
	}
}

func TestRouterAdminDisabledWithoutSecret(t *testing.T) {
	h := New(&Config{LeadsHandler: leads.NewHandler(leads.NewInMemoryRepository(), nil)})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/leads", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rr.Code)
	}
}
