package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"github.com/justQrius/companion-network-sub000/internal/audit"
	"github.com/justQrius/companion-network-sub000/internal/companion"
	"github.com/justQrius/companion-network-sub000/internal/proposal"
	"github.com/justQrius/companion-network-sub000/internal/rpc"
	"github.com/justQrius/companion-network-sub000/internal/session"
	"github.com/justQrius/companion-network-sub000/internal/trust"
)

type RPCHandlerSuite struct {
	suite.Suite
	router http.Handler
}

func (s *RPCHandlerSuite) SetupTest() {
	ctx := context.Background()
	store := session.NewInMemoryStore()

	demo, ok := companion.DemoContext("alice")
	s.Require().True(ok)
	s.Require().NoError(store.Put(ctx, companion.SessionKey("alice"), session.NewState(demo)))

	clock := func() time.Time {
		return time.Date(2024, time.December, 5, 9, 0, 0, 0, time.UTC)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gate := trust.New(logger)
	ledger := proposal.New(store, gate, nil, proposal.WithClock(clock))
	svc := companion.New("alice", store, gate, ledger, nil, companion.WithClock(clock))

	auditLog := audit.New(audit.NewMemoryStore(), nil)
	dispatcher := rpc.New(nil, rpc.WithTimeout(time.Second))
	peer := companion.Peer{ID: "bob", DisplayName: "Bob", Endpoint: "http://127.0.0.1:0"}
	coordinator := companion.NewCoordinator("alice", "Alice", peer, svc, dispatcher, auditLog, logger)

	handler := NewHandler(svc, coordinator, auditLog, logger)
	s.router = NewRouter(handler, prometheus.NewRegistry())
}

func TestRPCHandlerSuite(t *testing.T) {
	suite.Run(t, new(RPCHandlerSuite))
}

func (s *RPCHandlerSuite) post(path string, body any) *httptest.ResponseRecorder {
	raw, err := json.Marshal(body)
	s.Require().NoError(err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *RPCHandlerSuite) rpcCall(tool string, args map[string]any) *httptest.ResponseRecorder {
	return s.post("/run", map[string]any{
		"jsonrpc": "2.0",
		"id":      "req-1",
		"method":  "tools/call",
		"params":  map[string]any{"name": tool, "arguments": args},
	})
}

func (s *RPCHandlerSuite) decode(rec *httptest.ResponseRecorder) map[string]any {
	var body map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func (s *RPCHandlerSuite) TestMalformedJSON() {
	req := httptest.NewRequest(http.MethodPost, "/run", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	s.Equal(http.StatusBadRequest, rec.Code)
	body := s.decode(rec)
	rpcErr := body["error"].(map[string]any)
	s.Equal(float64(-32600), rpcErr["code"])
}

func (s *RPCHandlerSuite) TestWrongVersion() {
	rec := s.post("/run", map[string]any{
		"jsonrpc": "1.0",
		"id":      "req-1",
		"method":  "tools/call",
	})
	s.Equal(http.StatusBadRequest, rec.Code)
	rpcErr := s.decode(rec)["error"].(map[string]any)
	s.Equal(float64(-32600), rpcErr["code"])
	s.Equal("Invalid Request: jsonrpc must be '2.0'", rpcErr["message"])
}

func (s *RPCHandlerSuite) TestUnknownMethod() {
	rec := s.post("/run", map[string]any{
		"jsonrpc": "2.0",
		"id":      "req-1",
		"method":  "tools/list",
	})
	s.Equal(http.StatusOK, rec.Code)
	rpcErr := s.decode(rec)["error"].(map[string]any)
	s.Equal(float64(-32601), rpcErr["code"])
	s.Equal("Method not found: tools/list", rpcErr["message"])
}

func (s *RPCHandlerSuite) TestUnknownTool() {
	rec := s.rpcCall("delete_everything", nil)
	s.Equal(http.StatusOK, rec.Code)
	rpcErr := s.decode(rec)["error"].(map[string]any)
	s.Equal(float64(-32601), rpcErr["code"])
	s.Equal("Method not found: delete_everything", rpcErr["message"])
}

func (s *RPCHandlerSuite) TestCheckAvailabilityEndToEnd() {
	rec := s.rpcCall("check_availability", map[string]any{
		"timeframe":        "this weekend",
		"event_type":       "dinner",
		"duration_minutes": 120,
		"requester":        "bob",
	})
	s.Equal(http.StatusOK, rec.Code)

	result := s.decode(rec)["result"].(map[string]any)
	s.Equal(true, result["available"])
	s.NotEmpty(result["slots"])
	s.Equal(true, result["auto_accept_eligible"])
	prefs := result["preferences"].(map[string]any)
	s.Contains(prefs, "cuisine")
}

// Business-level denials travel as error dicts inside the result, never as
// JSON-RPC error objects.
func (s *RPCHandlerSuite) TestAccessDeniedAsResult() {
	rec := s.rpcCall("check_availability", map[string]any{
		"timeframe":        "this weekend",
		"event_type":       "dinner",
		"duration_minutes": 120,
		"requester":        "mallory",
	})
	s.Equal(http.StatusOK, rec.Code)

	body := s.decode(rec)
	s.Nil(body["error"])
	result := body["result"].(map[string]any)
	s.Equal("Access denied", result["error"])
	s.Equal("requester not in trusted contacts", result["message"])
}

func (s *RPCHandlerSuite) TestInvalidInputAsResult() {
	rec := s.rpcCall("propose_event", map[string]any{
		"event_name":   "",
		"datetime":     "2024-12-08T19:00:00",
		"participants": []string{"alice", "bob"},
		"requester":    "bob",
	})
	s.Equal(http.StatusOK, rec.Code)

	result := s.decode(rec)["result"].(map[string]any)
	s.Equal("Invalid input", result["error"])
	s.Equal("event_name must be a non-empty string", result["message"])
}

func (s *RPCHandlerSuite) TestProposeEventEndToEnd() {
	rec := s.rpcCall("propose_event", map[string]any{
		"event_name":   "Dinner at Luigi's",
		"datetime":     "2024-12-08T19:00:00",
		"location":     "Luigi's",
		"participants": []string{"alice", "bob"},
		"requester":    "bob",
	})
	s.Equal(http.StatusOK, rec.Code)

	result := s.decode(rec)["result"].(map[string]any)
	s.Equal("pending", result["status"])
	s.NotEmpty(result["event_id"])
}

func (s *RPCHandlerSuite) TestRelayMessageEndToEnd() {
	rec := s.rpcCall("relay_message", map[string]any{
		"message": "See you at 7",
		"urgency": "normal",
		"sender":  "bob",
	})
	s.Equal(http.StatusOK, rec.Code)

	result := s.decode(rec)["result"].(map[string]any)
	s.Equal(true, result["delivered"])

	drained := s.post("/notifications/drain", map[string]any{})
	s.Equal(http.StatusOK, drained.Code)
	messages := s.decode(drained)["messages"].([]any)
	s.Require().Len(messages, 1)
	s.Equal("[normal] bob: See you at 7", messages[0])
}

func (s *RPCHandlerSuite) TestShareContextDeniedCategoryAsResult() {
	// Bob is trusted for availability and cuisine only; schedule comes
	// back as a structured access_denied payload.
	rec := s.rpcCall("share_context", map[string]any{
		"category":  "schedule",
		"purpose":   "planning",
		"requester": "bob",
	})
	s.Equal(http.StatusOK, rec.Code)

	result := s.decode(rec)["result"].(map[string]any)
	s.Equal("Category 'schedule' not permitted for sharing with bob", result["access_denied"])
	s.NotContains(result, "context_data")
}
