package companion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/justQrius/companion-network-sub000/internal/audit"
	"github.com/justQrius/companion-network-sub000/internal/domain"
	"github.com/justQrius/companion-network-sub000/internal/proposal"
	"github.com/justQrius/companion-network-sub000/internal/rpc"
	"github.com/justQrius/companion-network-sub000/internal/session"
	"github.com/justQrius/companion-network-sub000/internal/trust"
)

type CoordinatorSuite struct {
	suite.Suite
	ctx   context.Context
	audit *audit.MemoryStore
	svc   *Service
}

func (s *CoordinatorSuite) SetupTest() {
	s.ctx = context.Background()
	s.audit = audit.NewMemoryStore()

	store := session.NewInMemoryStore()
	demo, ok := DemoContext("alice")
	s.Require().True(ok)
	s.Require().NoError(store.Put(s.ctx, SessionKey("alice"), session.NewState(demo)))

	clock := func() time.Time {
		return time.Date(2024, time.December, 5, 9, 0, 0, 0, time.UTC)
	}
	gate := trust.New(nil)
	ledger := proposal.New(store, gate, nil, proposal.WithClock(clock))
	s.svc = New("alice", store, gate, ledger, nil, WithClock(clock))
}

func TestCoordinatorSuite(t *testing.T) {
	suite.Run(t, new(CoordinatorSuite))
}

func (s *CoordinatorSuite) newCoordinator(endpoint string) *Coordinator {
	dispatcher := rpc.New(nil, rpc.WithBackoff(time.Millisecond), rpc.WithTimeout(2*time.Second))
	auditLog := audit.New(s.audit, nil)
	peer := Peer{ID: "bob", DisplayName: "Bob", Endpoint: endpoint}
	return NewCoordinator("alice", "Alice", peer, s.svc, dispatcher, auditLog, nil)
}

func (s *CoordinatorSuite) peerServer(result map[string]any) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      "1",
			"result":  result,
		})
	}))
}

func (s *CoordinatorSuite) TestCoordinateAvailabilityFindsOverlap() {
	// Alice's demo calendar leaves the 2024-12-07 evening free; the peer
	// answers with a slot inside the same window.
	srv := s.peerServer(map[string]any{
		"available": true,
		"slots":     []string{"2024-12-07T18:00:00/2024-12-07T21:00:00"},
		"preferences": map[string]any{
			"dining_times": []string{"18:30", "19:00"},
			"cuisine":      []string{"Italian", "Mexican"},
		},
	})
	defer srv.Close()

	outcome, err := s.newCoordinator(srv.URL).CoordinateAvailability(s.ctx, "2024-12-07", "dinner", 120)
	s.Require().NoError(err)

	s.True(outcome.HasOverlaps)
	s.NotEmpty(outcome.Recommendation)
	s.Contains(outcome.Recommendation, "Bob")
}

func (s *CoordinatorSuite) TestCoordinateAvailabilityNoOverlap() {
	srv := s.peerServer(map[string]any{
		"available": true,
		"slots":     []string{"2024-12-20T18:00:00/2024-12-20T20:00:00"},
	})
	defer srv.Close()

	outcome, err := s.newCoordinator(srv.URL).CoordinateAvailability(s.ctx, "2024-12-07", "dinner", 120)
	s.Require().NoError(err)
	s.False(outcome.HasOverlaps)
}

func (s *CoordinatorSuite) TestDispatchesAreAudited() {
	srv := s.peerServer(map[string]any{"status": "pending"})
	defer srv.Close()

	_, err := s.newCoordinator(srv.URL).ProposeToPeer(s.ctx, "Dinner", "2024-12-07T19:00:00", "Luigi's", []string{"alice", "bob"})
	s.Require().NoError(err)

	events, err := s.audit.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal("alice", events[0].Sender)
	s.Equal("bob", events[0].Receiver)
	s.Equal("propose_event", events[0].Operation)
	s.Equal(domain.AuditSuccess, events[0].Status)
}

func (s *CoordinatorSuite) TestFailedDispatchIsAuditedToo() {
	srv := s.peerServer(nil)
	endpoint := srv.URL
	srv.Close()

	_, err := s.newCoordinator(endpoint).RelayToPeer(s.ctx, "hello", "normal")
	s.Require().Error(err)

	events, listErr := s.audit.List(s.ctx)
	s.Require().NoError(listErr)
	s.Require().Len(events, 1)
	s.Equal("relay_message", events[0].Operation)
	s.Equal(domain.AuditFailed, events[0].Status)
}

func (s *CoordinatorSuite) TestCounterToPeerClosesAndLinks() {
	pending, err := s.svc.ProposeEvent(s.ctx, proposal.Input{
		Title:        "Dinner",
		Time:         "2024-12-07T19:00:00",
		Location:     "Trattoria",
		Participants: []string{"alice", "bob"},
		Proposer:     "bob",
	})
	s.Require().NoError(err)

	var sent struct {
		Params struct {
			Arguments map[string]any `json:"arguments"`
		} `json:"params"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.Require().NoError(json.NewDecoder(r.Body).Decode(&sent))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      "1",
			"result":  map[string]any{"status": "pending"},
		})
	}))
	defer srv.Close()

	_, err = s.newCoordinator(srv.URL).CounterToPeer(s.ctx, pending.EventID,
		"Lunch instead", "2024-12-08T12:00:00", "Cafe", []string{"alice", "bob"})
	s.Require().NoError(err)

	s.Equal(pending.EventID, sent.Params.Arguments["counters_event_id"])

	proposals, err := s.svc.Proposals(s.ctx)
	s.Require().NoError(err)
	s.Equal(domain.StatusCounter, proposals[pending.EventID].Status)
}

func (s *CoordinatorSuite) TestRequestContextPassesResultThrough() {
	srv := s.peerServer(map[string]any{
		"context_data": map[string]any{"cuisine": []string{"Italian"}},
	})
	defer srv.Close()

	result, err := s.newCoordinator(srv.URL).RequestContext(s.ctx, "preferences", "dinner planning")
	s.Require().NoError(err)
	s.Contains(result, "context_data")
}

func (s *CoordinatorSuite) TestMalformedPeerResultDegradesToNoSlots() {
	srv := s.peerServer(map[string]any{
		"available":   true,
		"slots":       "not-a-list",
		"preferences": "not-a-map",
	})
	defer srv.Close()

	outcome, err := s.newCoordinator(srv.URL).CoordinateAvailability(s.ctx, "2024-12-07", "dinner", 120)
	s.Require().NoError(err)
	s.False(outcome.HasOverlaps)
}
