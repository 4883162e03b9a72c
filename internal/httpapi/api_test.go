package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"goalboard.org/internal/auth"
	"goalboard.org/internal/events"
	"goalboard.org/internal/goals"
)

type apiClient struct {
	baseURL string
	client  *http.Client
	t       *testing.T
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	t.Setenv("GOALBOARD_AUTH_SECRET", "test-secret")
	auth.ResetSecretForTests()

	svc := goals.NewService(goals.NewInMemory(), goals.WithTokenIssuer(auth.Issuer{}))
	api := New(ReadyProbe{}, "test", svc, events.New())
	api.rateBurst = 100
	api.ratePerSec = 100

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		t:       t,
	}
}

func (c *apiClient) do(method, path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) post(path string, body any, headers map[string]string) *http.Response {
	return c.do(http.MethodPost, path, body, headers)
}

func (c *apiClient) put(path string, body any, headers map[string]string) *http.Response {
	return c.do(http.MethodPut, path, body, headers)
}

func (c *apiClient) del(path string, headers map[string]string) *http.Response {
	return c.do(http.MethodDelete, path, nil, headers)
}

func (c *apiClient) get(path string, params url.Values, headers map[string]string) *http.Response {
	c.t.Helper()
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		c.t.Fatalf("parse url: %v", err)
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}
	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("get request: %v", err)
	}
	return resp
}

func (c *apiClient) register(name, email string) (string, string) {
	c.t.Helper()
	resp := c.post("/v1/auth/register", map[string]any{
		"nome":     name,
		"email":    email,
		"password": "senha-secreta",
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		c.t.Fatalf("unexpected register status: %d", resp.StatusCode)
	}
	payload := decode[authResponse](c.t, resp)
	if payload.Token == "" || payload.User == nil {
		c.t.Fatalf("incomplete register response: %+v", payload)
	}
	return payload.User.ID, payload.Token
}

func bearerHeader(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestAPIRegisterLoginMe(t *testing.T) {
	api := newTestAPI(t)
	userID, _ := api.register("Ana", "ana@example.com")

	resp := api.post("/v1/auth/login", map[string]any{
		"email":    "ana@example.com",
		"password": "senha-secreta",
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected login status: %d", resp.StatusCode)
	}
	login := decode[authResponse](t, resp)
	if login.User.ID != userID {
		t.Fatalf("login returned a different user: %s != %s", login.User.ID, userID)
	}

	resp = api.get("/v1/auth/me", nil, bearerHeader(login.Token))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected me status: %d", resp.StatusCode)
	}
	me := decode[map[string]map[string]any](t, resp)
	if me["user"]["id"] != userID {
		t.Fatalf("me returned wrong user: %v", me["user"]["id"])
	}

	resp = api.post("/v1/auth/login", map[string]any{
		"email":    "ana@example.com",
		"password": "senha-errada",
	}, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 on bad password, got %d", resp.StatusCode)
	}
}

func TestAPIDuplicateEmailConflicts(t *testing.T) {
	api := newTestAPI(t)
	api.register("Ana", "ana@example.com")

	resp := api.post("/v1/auth/register", map[string]any{
		"nome":     "Outra Ana",
		"email":    "ANA@example.com",
		"password": "x",
	}, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 on duplicate email, got %d", resp.StatusCode)
	}
}

func TestAPIGroupLifecycle(t *testing.T) {
	api := newTestAPI(t)
	anaID, anaToken := api.register("Ana", "ana@example.com")
	brunoID, brunoToken := api.register("Bruno", "bruno@example.com")

	resp := api.post("/v1/groups", map[string]any{
		"nome":      "Corrida 2026",
		"descricao": "treinos da semana",
	}, bearerHeader(anaToken))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected group status: %d", resp.StatusCode)
	}
	group := decode[goals.Group](t, resp)
	if group.CreatorID != anaID {
		t.Fatalf("creator mismatch: %s", group.CreatorID)
	}
	if len(group.MemberIDs) != 1 || group.MemberIDs[0] != anaID {
		t.Fatalf("creator must be the first member: %v", group.MemberIDs)
	}
	if len(group.InviteCode) != 6 {
		t.Fatalf("unexpected invite code: %q", group.InviteCode)
	}

	// Bruno joins by code.
	resp = api.post("/v1/groups/join", map[string]any{
		"codigoConvite": group.InviteCode,
	}, bearerHeader(brunoToken))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected join status: %d", resp.StatusCode)
	}
	joined := decode[goals.Group](t, resp)
	if len(joined.MemberIDs) != 2 || joined.MemberIDs[1] != brunoID {
		t.Fatalf("join order wrong: %v", joined.MemberIDs)
	}

	// Joining twice conflicts.
	resp = api.post("/v1/groups/join", map[string]any{
		"codigoConvite": group.InviteCode,
	}, bearerHeader(brunoToken))
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 on repeat join, got %d", resp.StatusCode)
	}

	// Unknown code is a 404.
	resp = api.post("/v1/groups/join", map[string]any{
		"codigoConvite": "ZZZZZZ",
	}, bearerHeader(brunoToken))
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 on unknown code, got %d", resp.StatusCode)
	}

	// Both see the group in their list.
	resp = api.get("/v1/groups", nil, bearerHeader(brunoToken))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected list status: %d", resp.StatusCode)
	}
	list := decode[[]goals.Group](t, resp)
	if len(list) != 1 || list[0].ID != group.ID {
		t.Fatalf("unexpected group list: %+v", list)
	}
}

func TestAPIGoalLifecycle(t *testing.T) {
	api := newTestAPI(t)
	anaID, anaToken := api.register("Ana", "ana@example.com")

	resp := api.post("/v1/groups", map[string]any{"nome": "Estudos"}, bearerHeader(anaToken))
	group := decode[goals.Group](t, resp)

	resp = api.post("/v1/metas", map[string]any{
		"tipo":       "Estudos",
		"titulo":     "Terminar o curso",
		"dataInicio": "2026-09-01",
		"metasPequenas": []map[string]any{
			{"titulo": "Módulo 1"},
			{"titulo": "Módulo 2"},
		},
	}, bearerHeader(anaToken))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected create status: %d", resp.StatusCode)
	}
	goal := decode[goals.BigGoal](t, resp)
	if goal.UserID != anaID {
		t.Fatalf("goal owner mismatch: %s", goal.UserID)
	}
	if len(goal.SmallGoals) != 2 {
		t.Fatalf("expected 2 small goals, got %d", len(goal.SmallGoals))
	}
	if goal.Status != goals.GoalActive {
		t.Fatalf("expected default status ativa, got %q", goal.Status)
	}

	// Toggle one item.
	done := goals.SmallGoalCompleted
	resp = api.put("/v1/metas/"+goal.ID+"/metas-pequenas/"+goal.SmallGoals[0].ID, map[string]any{
		"status": done,
	}, bearerHeader(anaToken))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected toggle status: %d", resp.StatusCode)
	}
	sg := decode[goals.SmallGoal](t, resp)
	if sg.Status != goals.SmallGoalCompleted {
		t.Fatalf("toggle did not stick: %q", sg.Status)
	}

	// Board list shows 50% progress.
	resp = api.get("/v1/metas", url.Values{"grupoId": []string{group.ID}}, bearerHeader(anaToken))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected list status: %d", resp.StatusCode)
	}
	listed := decode[[]*goals.BigGoal](t, resp)
	if len(listed) != 1 {
		t.Fatalf("expected 1 goal, got %d", len(listed))
	}
	if got := goals.Progress(listed[0]); got != 50 {
		t.Fatalf("expected 50%% progress, got %d", got)
	}
	if listed[0].Owner == nil || listed[0].Owner.ID != anaID {
		t.Fatalf("expected embedded owner, got %+v", listed[0].Owner)
	}

	// Removing the last small goal is rejected.
	resp = api.del("/v1/metas/"+goal.ID+"/metas-pequenas/"+goal.SmallGoals[0].ID, bearerHeader(anaToken))
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("unexpected delete status: %d", resp.StatusCode)
	}
	resp = api.del("/v1/metas/"+goal.ID+"/metas-pequenas/"+goal.SmallGoals[1].ID, bearerHeader(anaToken))
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 on last small goal, got %d", resp.StatusCode)
	}

	// Delete the goal, then delete again (idempotent).
	resp = api.del("/v1/metas/"+goal.ID, bearerHeader(anaToken))
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("unexpected goal delete status: %d", resp.StatusCode)
	}
	resp = api.del("/v1/metas/"+goal.ID, bearerHeader(anaToken))
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("goal delete is not idempotent: %d", resp.StatusCode)
	}
}

func TestAPIOwnerOnlyMutation(t *testing.T) {
	api := newTestAPI(t)
	_, anaToken := api.register("Ana", "ana@example.com")
	_, brunoToken := api.register("Bruno", "bruno@example.com")

	resp := api.post("/v1/groups", map[string]any{"nome": "Saúde"}, bearerHeader(anaToken))
	group := decode[goals.Group](t, resp)
	resp = api.post("/v1/groups/join", map[string]any{"codigoConvite": group.InviteCode}, bearerHeader(brunoToken))
	resp.Body.Close()

	resp = api.post("/v1/metas", map[string]any{
		"tipo":          "Saúde",
		"titulo":        "Correr 5km",
		"dataInicio":    "2026-09-01",
		"metasPequenas": []map[string]any{{"titulo": "Semana 1"}},
	}, bearerHeader(anaToken))
	goal := decode[goals.BigGoal](t, resp)

	// Bruno can read but never mutate Ana's goal.
	resp = api.get("/v1/metas/"+goal.ID, nil, bearerHeader(brunoToken))
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("member read should succeed: %d", resp.StatusCode)
	}

	done := goals.SmallGoalCompleted
	resp = api.put("/v1/metas/"+goal.ID+"/metas-pequenas/"+goal.SmallGoals[0].ID, map[string]any{
		"status": done,
	}, bearerHeader(brunoToken))
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for non-owner toggle, got %d", resp.StatusCode)
	}

	resp = api.del("/v1/metas/"+goal.ID, bearerHeader(brunoToken))
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for non-owner delete, got %d", resp.StatusCode)
	}
}

func TestAPIValidationErrors(t *testing.T) {
	api := newTestAPI(t)
	_, token := api.register("Ana", "ana@example.com")

	resp := api.post("/v1/metas", map[string]any{
		"tipo":       "Inexistente",
		"titulo":     "x",
		"dataInicio": "2026-09-01",
	}, bearerHeader(token))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad category, got %d", resp.StatusCode)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body["error"] == "" || body["request_id"] == "" {
		t.Fatalf("expected error and request_id fields: %v", body)
	}
}

func TestAPIEnforcesAuth(t *testing.T) {
	api := newTestAPI(t)

	resp := api.post("/v1/groups", map[string]any{"nome": "Sem token"}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}

	resp2 := api.get("/v1/auth/me", nil, bearerHeader("nonsense"))
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", resp2.StatusCode)
	}
}

func TestAPIHealthEndpoints(t *testing.T) {
	api := newTestAPI(t)

	resp := api.get("/healthz", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected healthz status: %d", resp.StatusCode)
	}
	health := decode[map[string]any](t, resp)
	if health["status"] != "ok" {
		t.Fatalf("unexpected health payload: %v", health)
	}

	resp = api.get("/readyz", nil, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected readyz status: %d", resp.StatusCode)
	}
}
