package profiles

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kinship-labs/parent-match-api/internal/app/apperr"
	"github.com/kinship-labs/parent-match-api/internal/domain"
	"github.com/kinship-labs/parent-match-api/internal/ports/out/accountrepo"
	clockport "github.com/kinship-labs/parent-match-api/internal/ports/out/clock"
	"github.com/kinship-labs/parent-match-api/internal/ports/out/profilerepo"
)

type Service struct {
	repo     profilerepo.Repository
	accounts accountrepo.Repository
	clk      clockport.Clock

	newProfileID func() domain.ProfileID
}

// NewService wires the profile store. accounts may be nil, in which case the profile
// email comes from the create input.
func NewService(repo profilerepo.Repository, accounts accountrepo.Repository, clk clockport.Clock) *Service {
	return &Service{
		repo:     repo,
		accounts: accounts,
		clk:      clk,
		newProfileID: func() domain.ProfileID {
			return domain.ProfileID(uuid.NewString())
		},
	}
}

// SetNewProfileIDForTest overrides profile ID generation for deterministic tests.
// It should not be used in production code.
func (s *Service) SetNewProfileIDForTest(fn func() domain.ProfileID) {
	if fn != nil {
		s.newProfileID = fn
	}
}

func errProfileNotFound() *apperr.Error {
	return apperr.NotFound("PROFILE_NOT_FOUND", "profile not found")
}

func (s *Service) GetProfile(ctx context.Context, id domain.ProfileID) (domain.Profile, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, profilerepo.ErrNotFound) {
			return domain.Profile{}, errProfileNotFound()
		}
		return domain.Profile{}, err
	}
	return p, nil
}

func (s *Service) GetMyProfile(ctx context.Context, userID domain.SubjectID) (domain.Profile, error) {
	p, ok, err := s.GetProfileByUserID(ctx, userID)
	if err != nil {
		return domain.Profile{}, err
	}
	if !ok {
		return domain.Profile{}, errProfileNotFound()
	}
	return p, nil
}

// GetProfileByUserID resolves the profile owned by an account. ok is false when the
// account has not created a profile yet.
func (s *Service) GetProfileByUserID(ctx context.Context, userID domain.SubjectID) (domain.Profile, bool, error) {
	p, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, profilerepo.ErrNotFound) {
			return domain.Profile{}, false, nil
		}
		return domain.Profile{}, false, err
	}
	return p, true, nil
}

func (s *Service) CreateMyProfile(ctx context.Context, userID domain.SubjectID, in CreateMyProfileInput) (domain.Profile, error) {
	if _, ok, err := s.GetProfileByUserID(ctx, userID); err != nil {
		return domain.Profile{}, err
	} else if ok {
		return domain.Profile{}, errProfileExists()
	}

	now := s.clk.Now()
	details := map[string]any{}

	firstName := domain.NormalizeHumanName(in.FirstName)
	if firstName == "" {
		details["firstName"] = "must be non-empty"
	}
	lastName := domain.NormalizeHumanName(in.LastName)
	if lastName == "" {
		details["lastName"] = "must be non-empty"
	}
	if in.Location != nil && !in.Location.Valid() {
		details["location"] = "coordinates out of range"
	}
	children, childErr := buildChildren(in.Children, now)
	if childErr != "" {
		details["children"] = childErr
	}

	email, err := s.resolveEmail(ctx, userID, in.Email)
	if err != nil {
		return domain.Profile{}, err
	}
	if email == "" {
		details["email"] = "must be non-empty"
	} else if _, perr := mail.ParseAddress(email); perr != nil {
		details["email"] = "must be a valid email address"
	}

	if len(details) > 0 {
		return domain.Profile{}, apperr.Validation("invalid profile", details)
	}

	p := domain.Profile{
		ID:             s.newProfileID(),
		UserID:         userID,
		FirstName:      firstName,
		LastName:       lastName,
		Email:          email,
		Bio:            trimmedOrNil(in.Bio),
		Interests:      domain.NormalizeInterests(in.Interests),
		Children:       children,
		Location:       in.Location,
		ProfilePicture: trimmedOrNil(in.ProfilePicture),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		if errors.Is(err, profilerepo.ErrUserAlreadyBound) {
			return domain.Profile{}, errProfileExists()
		}
		if errors.Is(err, profilerepo.ErrAlreadyExists) {
			// Extremely unlikely (UUID collision); treat as conflict.
			return domain.Profile{}, apperr.Conflict("PROFILE_ID_CONFLICT", "profile id conflict")
		}
		return domain.Profile{}, err
	}
	return p.Clone(), nil
}

func errProfileExists() *apperr.Error {
	return apperr.Conflict("PROFILE_ALREADY_EXISTS", "A profile already exists for the authenticated account.")
}

func (s *Service) UpdateMyProfile(ctx context.Context, userID domain.SubjectID, in UpdateMyProfileInput) (domain.Profile, error) {
	p, err := s.GetMyProfile(ctx, userID)
	if err != nil {
		return domain.Profile{}, err
	}
	now := s.clk.Now()

	applyName := func(field string, dst *string, o Optional[string]) error {
		if !o.IsSpecified() {
			return nil
		}
		if o.IsNull() {
			return apperr.Validation("invalid "+field, map[string]any{field: "cannot be null"})
		}
		v := domain.NormalizeHumanName(o.Value())
		if v == "" {
			return apperr.Validation("invalid "+field, map[string]any{field: "must be non-empty"})
		}
		*dst = v
		return nil
	}
	if err := applyName("firstName", &p.FirstName, in.FirstName); err != nil {
		return domain.Profile{}, err
	}
	if err := applyName("lastName", &p.LastName, in.LastName); err != nil {
		return domain.Profile{}, err
	}

	applyNullableString := func(dst **string, o Optional[string]) {
		if !o.IsSpecified() {
			return
		}
		if o.IsNull() {
			*dst = nil
			return
		}
		v := o.Value()
		*dst = trimmedOrNil(&v)
	}
	applyNullableString(&p.Bio, in.Bio)
	applyNullableString(&p.ProfilePicture, in.ProfilePicture)

	if in.Interests.IsSpecified() {
		if in.Interests.IsNull() {
			p.Interests = nil
		} else {
			p.Interests = domain.NormalizeInterests(in.Interests.Value())
		}
	}

	if in.Children.IsSpecified() {
		if in.Children.IsNull() {
			p.Children = nil
		} else {
			children, childErr := buildChildren(in.Children.Value(), now)
			if childErr != "" {
				return domain.Profile{}, apperr.Validation("invalid children", map[string]any{"children": childErr})
			}
			p.Children = children
		}
	}

	if in.Location.IsSpecified() {
		if in.Location.IsNull() {
			p.Location = nil
		} else {
			loc := in.Location.Value()
			if !loc.Valid() {
				return domain.Profile{}, apperr.Validation("invalid location", map[string]any{"location": "coordinates out of range"})
			}
			p.Location = &loc
		}
	}

	p.UpdatedAt = now
	if err := s.repo.Update(ctx, p); err != nil {
		if errors.Is(err, profilerepo.ErrNotFound) {
			return domain.Profile{}, errProfileNotFound()
		}
		return domain.Profile{}, err
	}
	return p, nil
}

// FindNearby lists other profiles within maxMeters of the caller's location.
func (s *Service) FindNearby(ctx context.Context, userID domain.SubjectID, maxMeters float64) ([]NearbyProfile, error) {
	me, err := s.GetMyProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.NearbyOf(ctx, me, maxMeters)
}

// NearbyOf lists profiles within maxMeters of p's location, excluding p itself.
func (s *Service) NearbyOf(ctx context.Context, p domain.Profile, maxMeters float64) ([]NearbyProfile, error) {
	if p.Location == nil {
		return nil, ErrLocationNotSet()
	}
	if maxMeters <= 0 {
		maxMeters = domain.DefaultSearchRadiusMeters
	}
	hits, err := s.repo.FindNear(ctx, p.Location.Longitude, p.Location.Latitude, maxMeters)
	if err != nil {
		return nil, err
	}
	out := make([]NearbyProfile, 0, len(hits))
	for _, h := range hits {
		if h.Profile.ID == p.ID {
			continue
		}
		out = append(out, NearbyProfile{Profile: h.Profile, DistanceMeters: h.DistanceMeters})
	}
	return out, nil
}

// ErrLocationNotSet is returned by proximity operations when the caller has no location.
func ErrLocationNotSet() *apperr.Error {
	return apperr.InvalidOperation("LOCATION_NOT_SET", "set a profile location before searching nearby")
}

func (s *Service) resolveEmail(ctx context.Context, userID domain.SubjectID, fallback string) (string, error) {
	if s.accounts != nil {
		a, err := s.accounts.GetByID(ctx, domain.AccountID(userID))
		if err == nil {
			return a.Email, nil
		}
		if !errors.Is(err, accountrepo.ErrNotFound) {
			return "", err
		}
	}
	return domain.NormalizeEmail(fallback), nil
}

// buildChildren validates child input and returns the reason for the first problem found.
func buildChildren(in []ChildInput, now time.Time) ([]domain.Child, string) {
	if len(in) == 0 {
		return nil, ""
	}
	out := make([]domain.Child, 0, len(in))
	for _, c := range in {
		name := domain.NormalizeHumanName(c.Name)
		if name == "" {
			return nil, "child name must be non-empty"
		}
		if c.BirthDate.IsZero() {
			return nil, "child birthDate is required"
		}
		if c.BirthDate.After(now) {
			return nil, "child birthDate cannot be in the future"
		}
		out = append(out, domain.Child{
			Name:      name,
			BirthDate: c.BirthDate.UTC(),
			Gender:    trimmedOrNil(c.Gender),
			Interests: domain.NormalizeInterests(c.Interests),
		})
	}
	return out, ""
}

func trimmedOrNil(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	if v == "" {
		return nil
	}
	return &v
}
