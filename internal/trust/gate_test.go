package trust

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/justQrius/companion-network-sub000/internal/domain"
)

type GateSuite struct {
	suite.Suite
	gate  *Gate
	owner domain.PrincipalContext
}

func (s *GateSuite) SetupTest() {
	s.gate = New(nil)
	s.owner = domain.PrincipalContext{
		ID:              "alice",
		DisplayName:     "Alice",
		TrustedContacts: []string{"bob", "carol"},
		SharingRules: map[string][]domain.SharingCategory{
			"bob":   {domain.CategoryAvailability, domain.CategoryCuisine},
			"carol": {},
		},
	}
}

func TestGateSuite(t *testing.T) {
	suite.Run(t, new(GateSuite))
}

// TestTrustMonotonicity: a caller outside the trust list is never allowed,
// for any category.
func (s *GateSuite) TestTrustMonotonicity() {
	categories := []domain.SharingCategory{
		domain.CategoryAvailability,
		domain.CategoryCuisine,
		domain.CategoryPreferences,
		domain.CategoryDietary,
		domain.CategorySchedule,
		domain.CategoryInterests,
		domain.CategoryScheduling,
	}
	for _, cat := range categories {
		d := s.gate.Authorize(s.owner, "mallory", cat)
		s.False(d.Allowed, cat)
		s.Equal(ReasonNotTrusted, d.Reason, cat)
	}
}

// TestSharingRuleExactness: a trusted caller is allowed iff the category is
// literally present in their rule entry.
func (s *GateSuite) TestSharingRuleExactness() {
	s.Run("listed category is allowed", func() {
		d := s.gate.Authorize(s.owner, "bob", domain.CategoryAvailability)
		s.True(d.Allowed)
		s.Empty(d.Reason)
	})

	s.Run("unlisted category is denied", func() {
		d := s.gate.Authorize(s.owner, "bob", domain.CategoryDietary)
		s.False(d.Allowed)
		s.Equal(ReasonCategoryNotAllowed, d.Reason)
	})

	s.Run("empty rule entry denies everything", func() {
		d := s.gate.Authorize(s.owner, "carol", domain.CategoryAvailability)
		s.False(d.Allowed)
		s.Equal(ReasonCategoryNotAllowed, d.Reason)
	})

	s.Run("trusted contact with no rule entry is denied", func() {
		owner := s.owner
		owner.SharingRules = nil
		d := s.gate.Authorize(owner, "bob", domain.CategoryAvailability)
		s.False(d.Allowed)
		s.Equal(ReasonCategoryNotAllowed, d.Reason)
	})
}

func (s *GateSuite) TestAuthorizeContact() {
	s.Run("any trusted contact may initiate scheduling", func() {
		s.True(s.gate.AuthorizeContact(s.owner, "carol").Allowed)
	})

	s.Run("untrusted caller is denied", func() {
		d := s.gate.AuthorizeContact(s.owner, "mallory")
		s.False(d.Allowed)
		s.Equal(ReasonNotTrusted, d.Reason)
	})
}
