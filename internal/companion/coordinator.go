package companion

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/justQrius/companion-network-sub000/internal/audit"
	"github.com/justQrius/companion-network-sub000/internal/domain"
	"github.com/justQrius/companion-network-sub000/internal/negotiate"
	"github.com/justQrius/companion-network-sub000/internal/rpc"
)

// Peer identifies the remote principal this process negotiates with.
type Peer struct {
	ID          string
	DisplayName string
	Endpoint    string
}

// Coordinator drives outbound negotiation: fetch both sides' availability,
// intersect, recommend, and forward proposals to the peer. Every dispatch
// is audited here, success or failure, since the dispatcher itself never
// audits.
type Coordinator struct {
	selfID   string
	selfName string
	peer     Peer

	svc        *Service
	dispatcher *rpc.Dispatcher
	audit      *audit.Log
	logger     *slog.Logger
}

// NewCoordinator wires the outbound side of one companion.
func NewCoordinator(selfID, selfName string, peer Peer, svc *Service, dispatcher *rpc.Dispatcher, auditLog *audit.Log, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		selfID:     selfID,
		selfName:   selfName,
		peer:       peer,
		svc:        svc,
		dispatcher: dispatcher,
		audit:      auditLog,
		logger:     logger,
	}
}

// CoordinateAvailability fetches local and remote availability
// concurrently, intersects the slot sets, and returns the negotiation
// outcome. An empty intersection is a normal outcome; only a failed remote
// dispatch is an error.
func (c *Coordinator) CoordinateAvailability(ctx context.Context, timeframeExpr, eventType string, durationMinutes int) (negotiate.Outcome, error) {
	var (
		local  negotiate.Party
		remote negotiate.Party
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slots, prefs, err := c.svc.LocalAvailability(gctx, timeframeExpr, durationMinutes)
		if err != nil {
			return err
		}
		local = negotiate.Party{
			Name:            c.selfName,
			Slots:           slots,
			PreferredStarts: prefs.DiningTimes,
			Cuisine:         prefs.Cuisine,
		}
		return nil
	})
	g.Go(func() error {
		args := map[string]any{
			"timeframe":        timeframeExpr,
			"event_type":       eventType,
			"duration_minutes": durationMinutes,
			"requester":        c.selfID,
		}
		result, err := c.call(gctx, "check_availability", args)
		if err != nil {
			return err
		}
		remote = remoteParty(c.peer.DisplayName, result)
		return nil
	})
	if err := g.Wait(); err != nil {
		return negotiate.Outcome{}, err
	}

	outcome := negotiate.Negotiate(local, remote)
	if c.logger != nil {
		c.logger.Info("negotiation round complete",
			"peer", c.peer.ID,
			"overlaps", outcome.HasOverlaps,
		)
	}
	return outcome, nil
}

// ProposeToPeer forwards a formal proposal to the peer's ledger and passes
// the peer's decision through unchanged.
func (c *Coordinator) ProposeToPeer(ctx context.Context, title, instant, location string, participants []string) (map[string]any, error) {
	return c.propose(ctx, title, instant, location, participants, "")
}

// CounterToPeer closes a proposal with the counter status and sends the
// owner's alternative to the peer, linked to the countered event.
func (c *Coordinator) CounterToPeer(ctx context.Context, countersEventID, title, instant, location string, participants []string) (map[string]any, error) {
	if _, err := c.svc.ConfirmProposal(ctx, countersEventID, string(domain.StatusCounter)); err != nil {
		return nil, err
	}
	return c.propose(ctx, title, instant, location, participants, countersEventID)
}

func (c *Coordinator) propose(ctx context.Context, title, instant, location string, participants []string, counters string) (map[string]any, error) {
	args := map[string]any{
		"event_name":   title,
		"datetime":     instant,
		"location":     location,
		"participants": participants,
		"requester":    c.selfID,
	}
	if counters != "" {
		args["counters_event_id"] = counters
	}
	return c.call(ctx, "propose_event", args)
}

// RequestContext asks the peer for one category of its context.
func (c *Coordinator) RequestContext(ctx context.Context, category, purpose string) (map[string]any, error) {
	args := map[string]any{
		"category":  category,
		"purpose":   purpose,
		"requester": c.selfID,
	}
	return c.call(ctx, "share_context", args)
}

// RelayToPeer sends a free-form message to the peer's owner.
func (c *Coordinator) RelayToPeer(ctx context.Context, message, urgency string) (map[string]any, error) {
	args := map[string]any{
		"message": message,
		"urgency": urgency,
		"sender":  c.selfID,
	}
	return c.call(ctx, "relay_message", args)
}

// call dispatches one operation to the peer and audits the outcome either
// way.
func (c *Coordinator) call(ctx context.Context, operation string, args map[string]any) (map[string]any, error) {
	result, err := c.dispatcher.Call(ctx, c.peer.Endpoint, operation, args)

	outcome := result
	if err != nil {
		outcome = map[string]any{"error": err.Error()}
	}
	if auditErr := c.audit.Record(ctx, c.selfID, c.peer.ID, operation, args, outcome); auditErr != nil && c.logger != nil {
		c.logger.Warn("audit record failed", "operation", operation, "error", auditErr)
	}
	return result, err
}

// remoteParty shapes a check_availability result into a negotiation party.
// Missing or malformed fields degrade to empty, never to a failure: the
// peer controls its own disclosure.
func remoteParty(name string, result map[string]any) negotiate.Party {
	party := negotiate.Party{Name: name, Slots: stringList(result["slots"])}
	if prefs, ok := result["preferences"].(map[string]any); ok {
		party.PreferredStarts = stringList(prefs["dining_times"])
		party.Cuisine = stringList(prefs["cuisine"])
	}
	return party
}

func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
