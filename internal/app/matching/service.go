package matching

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"

	"github.com/kinship-labs/parent-match-api/internal/app/apperr"
	"github.com/kinship-labs/parent-match-api/internal/app/compat"
	"github.com/kinship-labs/parent-match-api/internal/domain"
	clockport "github.com/kinship-labs/parent-match-api/internal/ports/out/clock"
	"github.com/kinship-labs/parent-match-api/internal/ports/out/matchrepo"
	"github.com/kinship-labs/parent-match-api/internal/ports/out/profilerepo"
)

const (
	DefaultCandidateLimit = 20
	MaxCandidateLimit     = 100
)

// TransitionObserver is notified whenever a match is created or changes status.
type TransitionObserver func(status domain.MatchStatus)

type Service struct {
	matches  matchrepo.Repository
	profiles profilerepo.Repository
	clk      clockport.Clock

	observe    TransitionObserver
	newMatchID func() domain.MatchID
}

func NewService(matches matchrepo.Repository, profiles profilerepo.Repository, clk clockport.Clock) *Service {
	return &Service{
		matches:  matches,
		profiles: profiles,
		clk:      clk,
		observe:  func(domain.MatchStatus) {},
		newMatchID: func() domain.MatchID {
			return domain.MatchID(uuid.NewString())
		},
	}
}

// WithTransitionObserver installs fn as the status transition hook and returns s.
func (s *Service) WithTransitionObserver(fn TransitionObserver) *Service {
	if fn != nil {
		s.observe = fn
	}
	return s
}

// SetNewMatchIDForTest overrides match ID generation for deterministic tests.
// It should not be used in production code.
func (s *Service) SetNewMatchIDForTest(fn func() domain.MatchID) {
	if fn != nil {
		s.newMatchID = fn
	}
}

// RequestMatch records that initiator likes target. A pending like in the other
// direction is accepted instead of creating a second record.
func (s *Service) RequestMatch(ctx context.Context, initiator, target domain.ProfileID) (domain.Match, error) {
	if initiator == target {
		return domain.Match{}, errSelfMatch()
	}

	// Continue with the stored ids so every lookup and the pair key use one spelling.
	ids := make([]domain.ProfileID, 0, 2)
	for _, id := range []domain.ProfileID{initiator, target} {
		p, err := s.profiles.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, profilerepo.ErrNotFound) {
				return domain.Match{}, apperr.NotFound("PROFILE_NOT_FOUND", "profile not found")
			}
			return domain.Match{}, err
		}
		ids = append(ids, p.ID)
	}
	initiator, target = ids[0], ids[1]
	if initiator == target {
		return domain.Match{}, errSelfMatch()
	}

	m, handled, err := s.resolveExisting(ctx, initiator, target)
	if err != nil || handled {
		return m, err
	}

	now := s.clk.Now()
	m = domain.Match{
		ID:          s.newMatchID(),
		InitiatorID: initiator,
		TargetID:    target,
		Status:      domain.MatchStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.matches.Create(ctx, m); err != nil {
		if !errors.Is(err, matchrepo.ErrPairExists) {
			return domain.Match{}, err
		}
		// Lost a race with a concurrent request for the same pair.
		m, handled, err := s.resolveExisting(ctx, initiator, target)
		if err != nil {
			return domain.Match{}, err
		}
		if !handled {
			return domain.Match{}, apperr.Conflict("MATCH_CONFLICT", "match was modified concurrently")
		}
		return m, nil
	}
	s.observe(m.Status)
	return m, nil
}

func errSelfMatch() *apperr.Error {
	return apperr.InvalidOperation("SELF_MATCH", "a profile cannot match with itself")
}

// resolveExisting applies the request rules to a stored match for the pair.
// A like in the same direction is returned unchanged; a pending like in the
// reverse direction is accepted. handled is false when no match exists yet.
func (s *Service) resolveExisting(ctx context.Context, initiator, target domain.ProfileID) (domain.Match, bool, error) {
	m, err := s.matches.FindByPair(ctx, initiator, target)
	switch {
	case err == nil:
		return m, true, nil
	case !errors.Is(err, matchrepo.ErrNotFound):
		return domain.Match{}, false, err
	}

	m, err = s.matches.FindByPair(ctx, target, initiator)
	if err != nil {
		if errors.Is(err, matchrepo.ErrNotFound) {
			return domain.Match{}, false, nil
		}
		return domain.Match{}, false, err
	}
	if m.Status == domain.MatchStatusPending {
		m.Status = domain.MatchStatusAccepted
		m.UpdatedAt = s.clk.Now()
		if err := s.matches.Update(ctx, m); err != nil {
			return domain.Match{}, false, s.mapMatchErr(err)
		}
		s.observe(m.Status)
	}
	return m, true, nil
}

// Respond lets the target of a match accept or reject it.
func (s *Service) Respond(ctx context.Context, id domain.MatchID, responder domain.ProfileID, decision domain.MatchStatus) (domain.Match, error) {
	if decision != domain.MatchStatusAccepted && decision != domain.MatchStatusRejected {
		return domain.Match{}, apperr.InvalidOperation("INVALID_DECISION", "decision must be ACCEPTED or REJECTED")
	}
	m, err := s.matches.GetByID(ctx, id)
	if err != nil {
		return domain.Match{}, s.mapMatchErr(err)
	}
	if m.TargetID != responder {
		return domain.Match{}, apperr.Forbidden("NOT_MATCH_TARGET", "only the target of a match can respond to it")
	}
	if m.Status == decision {
		return m, nil
	}
	if m.Status != domain.MatchStatusPending {
		return domain.Match{}, &apperr.Error{
			Kind:    apperr.KindInvalidOperation,
			Code:    "MATCH_NOT_PENDING",
			Message: "match has already been answered",
			Details: map[string]any{"status": string(m.Status)},
		}
	}

	m.Status = decision
	m.UpdatedAt = s.clk.Now()
	if err := s.matches.Update(ctx, m); err != nil {
		return domain.Match{}, s.mapMatchErr(err)
	}
	s.observe(m.Status)
	return m, nil
}

// ListMatches returns every match the profile is a party of. A nil status lists all.
func (s *Service) ListMatches(ctx context.Context, id domain.ProfileID, status *domain.MatchStatus) ([]domain.Match, error) {
	if status != nil && !status.Valid() {
		return nil, apperr.Validation("invalid status filter", map[string]any{"status": "must be PENDING, ACCEPTED or REJECTED"})
	}
	return s.matches.ListByProfile(ctx, id, status)
}

// Compatibility scores a against b with children's ages taken today.
func (s *Service) Compatibility(a, b domain.Profile) compat.MatchScore {
	return compat.Score(a, b, s.clk.Now())
}

// Candidate is a nearby profile with its compatibility against the caller.
type Candidate struct {
	Profile        domain.Profile
	DistanceMeters float64
	Score          compat.MatchScore
}

// RankCandidates scores nearby profiles the caller has no match with yet,
// best first. Ties are broken by distance, then by profile id.
func (s *Service) RankCandidates(ctx context.Context, profileID domain.ProfileID, maxMeters float64, limit int) ([]Candidate, error) {
	me, err := s.profiles.GetByID(ctx, profileID)
	if err != nil {
		if errors.Is(err, profilerepo.ErrNotFound) {
			return nil, apperr.NotFound("PROFILE_NOT_FOUND", "profile not found")
		}
		return nil, err
	}
	if me.Location == nil {
		return nil, apperr.InvalidOperation("LOCATION_NOT_SET", "set a profile location before searching nearby")
	}
	if maxMeters <= 0 {
		maxMeters = domain.DefaultSearchRadiusMeters
	}
	switch {
	case limit <= 0:
		limit = DefaultCandidateLimit
	case limit > MaxCandidateLimit:
		limit = MaxCandidateLimit
	}

	existing, err := s.matches.ListByProfile(ctx, me.ID, nil)
	if err != nil {
		return nil, err
	}
	seen := make(map[domain.ProfileID]struct{}, len(existing)+1)
	seen[me.ID] = struct{}{}
	for _, m := range existing {
		seen[m.Counterpart(me.ID)] = struct{}{}
	}

	hits, err := s.profiles.FindNear(ctx, me.Location.Longitude, me.Location.Latitude, maxMeters)
	if err != nil {
		return nil, err
	}
	now := s.clk.Now()
	out := make([]Candidate, 0, len(hits))
	for _, h := range hits {
		if _, skip := seen[h.Profile.ID]; skip {
			continue
		}
		out = append(out, Candidate{
			Profile:        h.Profile,
			DistanceMeters: h.DistanceMeters,
			Score:          compat.Score(me, h.Profile, now),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score.Total != out[j].Score.Total {
			return out[i].Score.Total > out[j].Score.Total
		}
		if out[i].DistanceMeters != out[j].DistanceMeters {
			return out[i].DistanceMeters < out[j].DistanceMeters
		}
		return out[i].Profile.ID < out[j].Profile.ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Service) mapMatchErr(err error) error {
	if errors.Is(err, matchrepo.ErrNotFound) {
		return apperr.NotFound("MATCH_NOT_FOUND", "match not found")
	}
	return err
}
