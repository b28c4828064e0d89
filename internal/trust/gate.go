// Package trust is the single checkpoint every cross-party request must
// pass: is the caller on the owner's trust list, and is the requested data
// category explicitly permitted for that caller.
package trust

import (
	"log/slog"

	"github.com/justQrius/companion-network-sub000/internal/domain"
)

// Denial reasons. They distinguish "who are you" from "not that data", and
// deliberately reveal nothing about what data exists.
const (
	ReasonNotTrusted         = "not trusted"
	ReasonCategoryNotAllowed = "category not permitted"
)

// Decision is the gate's verdict. Denied carries a reason code; it never
// carries data.
type Decision struct {
	Allowed bool
	Reason  string
}

// Gate evaluates trust and sharing rules for one owning principal's
// context. It has no side effects beyond evaluation; auditing the attempt
// is the caller's responsibility.
type Gate struct {
	logger *slog.Logger
}

// New constructs a gate. A nil logger disables attempt logging.
func New(logger *slog.Logger) *Gate {
	return &Gate{logger: logger}
}

// Authorize checks, in order: the caller is on the owner's trust list, and
// the requested category is literally present in the owner's sharing rules
// for that caller. A missing or empty rule entry denies. The gate never
// allows a caller absent from the trust list, for any category.
func (g *Gate) Authorize(owner domain.PrincipalContext, callerID string, category domain.SharingCategory) Decision {
	if !owner.Trusts(callerID) {
		g.log(owner.ID, callerID, category, ReasonNotTrusted)
		return Decision{Allowed: false, Reason: ReasonNotTrusted}
	}
	if !owner.Permits(callerID, category) {
		g.log(owner.ID, callerID, category, ReasonCategoryNotAllowed)
		return Decision{Allowed: false, Reason: ReasonCategoryNotAllowed}
	}
	return Decision{Allowed: true}
}

// AuthorizeContact checks the trust list only. Operations whose implied
// category is scheduling (propose_event, relay_message) accept any trusted
// contact.
func (g *Gate) AuthorizeContact(owner domain.PrincipalContext, callerID string) Decision {
	if !owner.Trusts(callerID) {
		g.log(owner.ID, callerID, domain.CategoryScheduling, ReasonNotTrusted)
		return Decision{Allowed: false, Reason: ReasonNotTrusted}
	}
	return Decision{Allowed: true}
}

func (g *Gate) log(ownerID, callerID string, category domain.SharingCategory, reason string) {
	if g.logger == nil {
		return
	}
	g.logger.Info("access denied",
		"owner", ownerID,
		"caller", callerID,
		"category", category.String(),
		"reason", reason,
	)
}
