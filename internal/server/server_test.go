package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"

	"skillpass/internal/config"
	"skillpass/internal/db"
	"skillpass/internal/engine"
	"skillpass/internal/migrate"
)

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	cfg := config.Default()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, cfg)
	if _, err := e.Initialize(context.Background(), "authority"); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v0",
		Auth: AuthConfig{
			JWTSecret:              "test-secret",
			AllowLegacyActorHeader: true,
		},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func asActor(actor string) map[string]string {
	return map[string]string{"X-Actor-Id": actor}
}

func TestInvestAndClaimFlow(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/skills", map[string]any{
		"category":     "engineering",
		"name":         "Go Development",
		"description":  "Backend services",
		"metadata_uri": "ipfs://QmGoMeta",
	}, asActor("alice"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create skill: %d %s", res.StatusCode, string(data))
	}
	var skill SkillResponse
	if err := json.Unmarshal(data, &skill); err != nil {
		t.Fatalf("unmarshal skill: %v", err)
	}
	if skill.SkillID != 1 || skill.Owner != "alice" {
		t.Fatalf("unexpected skill: %+v", skill)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/reputation/mint", map[string]any{
		"user":   "bob",
		"amount": 100000,
		"reason": "completed onboarding",
	}, asActor("authority"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("mint: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/skills/1/invest", map[string]any{
		"amount": 100000,
	}, asActor("bob"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("invest: %d %s", res.StatusCode, string(data))
	}
	var inv InvestmentResponse
	if err := json.Unmarshal(data, &inv); err != nil {
		t.Fatalf("unmarshal investment: %v", err)
	}
	if inv.Amount != 100000 {
		t.Fatalf("investment amount %d, want 100000", inv.Amount)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/skills/1", nil, asActor("bob"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get skill: %d %s", res.StatusCode, string(data))
	}
	var detail SkillDetailResponse
	if err := json.Unmarshal(data, &detail); err != nil {
		t.Fatalf("unmarshal detail: %v", err)
	}
	if detail.Pool.TotalInvested != 100000 || detail.Pool.InvestorCount != 1 {
		t.Fatalf("pool not updated: %+v", detail.Pool)
	}

	// claiming inside the first period yields nothing yet
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/skills/1/yield/claim", nil, asActor("bob"))
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 on early claim, got %d %s", res.StatusCode, string(data))
	}
}

func TestAuthRequired(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/overview", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d %s", res.StatusCode, string(data))
	}

	// health stays open
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health: %d", res.StatusCode)
	}
}

func TestDevLoginJWT(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/auth/dev/login", map[string]any{
		"actor_id": "alice",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("dev login: %d %s", res.StatusCode, string(data))
	}
	var login DevLoginResponse
	if err := json.Unmarshal(data, &login); err != nil {
		t.Fatalf("unmarshal login: %v", err)
	}
	if login.Token == "" {
		t.Fatalf("expected token")
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/skills", map[string]any{
		"category":     "design",
		"name":         "UI Design",
		"description":  "Product design",
		"metadata_uri": "ipfs://QmDesignMeta",
	}, map[string]string{"Authorization": "Bearer " + login.Token})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create skill with JWT: %d %s", res.StatusCode, string(data))
	}
	var skill SkillResponse
	_ = json.Unmarshal(data, &skill)
	if skill.Owner != "alice" {
		t.Fatalf("expected owner from JWT subject, got %q", skill.Owner)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/overview", nil, map[string]string{"Authorization": "Bearer not-a-token"})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d %s", res.StatusCode, string(data))
	}
}

func TestErrorEnvelope(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/skills", map[string]any{
		"category":     "engineering",
		"name":         "Go Development",
		"description":  "Backend services",
		"metadata_uri": "ipfs://QmGoMeta",
	}, asActor("alice"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create skill: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/reputation/mint", map[string]any{
		"user":   "bob",
		"amount": 100000,
	}, asActor("authority"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("mint: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/skills/1/invest", map[string]any{
		"amount": 100,
	}, asActor("bob"))
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error apiErrorBody `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error envelope: %v", err)
	}
	if envelope.Error.Code != "below_minimum_investment" {
		t.Fatalf("error code %q, want below_minimum_investment", envelope.Error.Code)
	}

	// unknown skill
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/skills/99", nil, asActor("bob"))
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d %s", res.StatusCode, string(data))
	}

	// non-authority mint
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/reputation/mint", map[string]any{
		"user":   "bob",
		"amount": 100,
	}, asActor("mallory"))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d %s", res.StatusCode, string(data))
	}
}

func TestEventsPagination(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	for i := 0; i < 3; i++ {
		res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/skills", map[string]any{
			"category":     "engineering",
			"name":         "Skill",
			"description":  "desc",
			"metadata_uri": "ipfs://QmEventMeta",
		}, asActor("alice"))
		if res.StatusCode != http.StatusCreated {
			t.Fatalf("create skill %d: %d %s", i, res.StatusCode, string(data))
		}
	}

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/events?cursor=0&limit=2", nil, asActor("alice"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("events: %d %s", res.StatusCode, string(data))
	}
	var page paginatedEvents
	if err := json.Unmarshal(data, &page); err != nil {
		t.Fatalf("unmarshal events: %v", err)
	}
	if len(page.Items) != 2 {
		t.Fatalf("expected 2 events, got %d", len(page.Items))
	}
	if page.NextCursor == "" {
		t.Fatalf("expected next cursor")
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/events?cursor="+page.NextCursor+"&limit=10", nil, asActor("alice"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("events page 2: %d %s", res.StatusCode, string(data))
	}
	var page2 paginatedEvents
	if err := json.Unmarshal(data, &page2); err != nil {
		t.Fatalf("unmarshal events: %v", err)
	}
	if len(page2.Items) == 0 {
		t.Fatalf("expected more events after cursor")
	}
	if page2.Items[0].ID <= page.Items[len(page.Items)-1].ID {
		t.Fatalf("cursor did not advance: %d <= %d", page2.Items[0].ID, page.Items[len(page.Items)-1].ID)
	}
}
