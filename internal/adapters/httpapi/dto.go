package httpapi

import (
	"time"

	"github.com/oapi-codegen/nullable"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/kinship-labs/parent-match-api/internal/app/accounts"
	"github.com/kinship-labs/parent-match-api/internal/app/compat"
	"github.com/kinship-labs/parent-match-api/internal/app/events"
	"github.com/kinship-labs/parent-match-api/internal/app/matching"
	"github.com/kinship-labs/parent-match-api/internal/app/profiles"
	"github.com/kinship-labs/parent-match-api/internal/domain"
)

// Requests

type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email,max=254"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
	FirstName string `json:"firstName" validate:"required,max=100"`
	LastName  string `json:"lastName" validate:"required,max=100"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type GeoLocation struct {
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
	Address   *string `json:"address,omitempty" validate:"omitempty,max=500"`
}

type Child struct {
	Name      string             `json:"name" validate:"required,max=100"`
	BirthDate openapi_types.Date `json:"birthDate"`
	Gender    *string            `json:"gender,omitempty" validate:"omitempty,max=50"`
	Interests []string           `json:"interests,omitempty" validate:"max=50,dive,max=64"`
}

type CreateProfileRequest struct {
	FirstName      string       `json:"firstName" validate:"required,max=100"`
	LastName       string       `json:"lastName" validate:"required,max=100"`
	Email          string       `json:"email,omitempty" validate:"omitempty,email,max=254"`
	Bio            *string      `json:"bio,omitempty" validate:"omitempty,max=2000"`
	Interests      []string     `json:"interests,omitempty" validate:"max=50,dive,max=64"`
	Children       []Child      `json:"children,omitempty" validate:"max=20,dive"`
	Location       *GeoLocation `json:"location,omitempty"`
	ProfilePicture *string      `json:"profilePicture,omitempty" validate:"omitempty,url,max=2048"`
}

// UpdateProfileRequest is a PATCH body: omitted fields are untouched, null clears.
type UpdateProfileRequest struct {
	FirstName      nullable.Nullable[string]      `json:"firstName,omitempty"`
	LastName       nullable.Nullable[string]      `json:"lastName,omitempty"`
	Bio            nullable.Nullable[string]      `json:"bio,omitempty"`
	Interests      nullable.Nullable[[]string]    `json:"interests,omitempty"`
	Children       nullable.Nullable[[]Child]     `json:"children,omitempty"`
	Location       nullable.Nullable[GeoLocation] `json:"location,omitempty"`
	ProfilePicture nullable.Nullable[string]      `json:"profilePicture,omitempty"`
}

type SendMessageRequest struct {
	ReceiverID string `json:"receiverId" validate:"required"`
	Content    string `json:"content" validate:"required"`
}

type CreateEventRequest struct {
	Title           string       `json:"title" validate:"required,max=200"`
	Description     string       `json:"description" validate:"required,max=5000"`
	Location        *GeoLocation `json:"location" validate:"required"`
	DateTime        time.Time    `json:"dateTime"`
	MaxParticipants *int         `json:"maxParticipants,omitempty" validate:"omitempty,gte=1"`
}

type UpdateEventRequest struct {
	Title           nullable.Nullable[string]      `json:"title,omitempty"`
	Description     nullable.Nullable[string]      `json:"description,omitempty"`
	Location        nullable.Nullable[GeoLocation] `json:"location,omitempty"`
	DateTime        nullable.Nullable[time.Time]   `json:"dateTime,omitempty"`
	MaxParticipants nullable.Nullable[int]         `json:"maxParticipants,omitempty"`
}

// Responses

type Account struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Account   Account   `json:"account"`
}

type ChildView struct {
	Name      string             `json:"name"`
	BirthDate openapi_types.Date `json:"birthDate"`
	Age       int                `json:"age"`
	Gender    *string            `json:"gender,omitempty"`
	Interests []string           `json:"interests"`
}

type Profile struct {
	ID             string       `json:"id"`
	UserID         string       `json:"userId"`
	FirstName      string       `json:"firstName"`
	LastName       string       `json:"lastName"`
	Email          string       `json:"email"`
	Bio            *string      `json:"bio,omitempty"`
	Interests      []string     `json:"interests"`
	Children       []ChildView  `json:"children"`
	Location       *GeoLocation `json:"location,omitempty"`
	ProfilePicture *string      `json:"profilePicture,omitempty"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
}

type NearbyProfile struct {
	Profile        Profile `json:"profile"`
	DistanceMeters float64 `json:"distanceMeters"`
}

type Score struct {
	InterestScore   float64  `json:"interestScore"`
	AgeScore        float64  `json:"ageScore"`
	Total           float64  `json:"total"`
	CommonInterests []string `json:"commonInterests"`
}

type Candidate struct {
	Profile        Profile `json:"profile"`
	DistanceMeters float64 `json:"distanceMeters"`
	Score          Score   `json:"score"`
}

type Match struct {
	ID          string    `json:"id"`
	InitiatorID string    `json:"initiatorId"`
	TargetID    string    `json:"targetId"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Content    string    `json:"content"`
	SentAt     time.Time `json:"sentAt"`
	Read       bool      `json:"read"`
}

type Event struct {
	ID               string      `json:"id"`
	OrganizerID      string      `json:"organizerId"`
	Title            string      `json:"title"`
	Description      string      `json:"description"`
	Location         GeoLocation `json:"location"`
	DateTime         time.Time   `json:"dateTime"`
	ParticipantIDs   []string    `json:"participantIds"`
	ParticipantCount int         `json:"participantCount"`
	MaxParticipants  *int        `json:"maxParticipants,omitempty"`
	IsFull           bool        `json:"isFull"`
	CreatedAt        time.Time   `json:"createdAt"`
	UpdatedAt        time.Time   `json:"updatedAt"`
}

// Envelopes

type ProfileResponse struct {
	Profile Profile `json:"profile"`
}

type NearbyProfilesResponse struct {
	Profiles []NearbyProfile `json:"profiles"`
}

type CandidatesResponse struct {
	Candidates []Candidate `json:"candidates"`
}

type CompatibilityResponse struct {
	ProfileID string `json:"profileId"`
	Score     Score  `json:"score"`
}

type MatchResponse struct {
	Match Match `json:"match"`
}

type MatchesResponse struct {
	Matches []Match `json:"matches"`
}

type MessageResponse struct {
	Message Message `json:"message"`
}

type MessagesResponse struct {
	Messages []Message `json:"messages"`
}

type UnreadCountResponse struct {
	Count int64 `json:"count"`
}

type EventResponse struct {
	Event Event `json:"event"`
}

type EventsResponse struct {
	Events []Event `json:"events"`
}

// Conversions

func accountFromDomain(a domain.Account) Account {
	return Account{
		ID:        string(a.ID),
		Email:     a.Email,
		FirstName: a.FirstName,
		LastName:  a.LastName,
		IsActive:  a.IsActive,
		CreatedAt: a.CreatedAt,
	}
}

func authResponseFromSession(s accounts.Session) AuthResponse {
	return AuthResponse{Token: s.Token, ExpiresAt: s.ExpiresAt, Account: accountFromDomain(s.Account)}
}

func geoFromDomain(g domain.GeoLocation) GeoLocation {
	return GeoLocation{Latitude: g.Latitude, Longitude: g.Longitude, Address: g.Address}
}

func (g GeoLocation) toDomain() domain.GeoLocation {
	return domain.GeoLocation{Latitude: g.Latitude, Longitude: g.Longitude, Address: g.Address}
}

func profileFromDomain(p domain.Profile, asOf time.Time) Profile {
	out := Profile{
		ID:             string(p.ID),
		UserID:         string(p.UserID),
		FirstName:      p.FirstName,
		LastName:       p.LastName,
		Email:          p.Email,
		Bio:            p.Bio,
		Interests:      nonNilStrings(p.Interests),
		Children:       make([]ChildView, 0, len(p.Children)),
		ProfilePicture: p.ProfilePicture,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
	for _, c := range p.Children {
		out.Children = append(out.Children, ChildView{
			Name:      c.Name,
			BirthDate: openapi_types.Date{Time: c.BirthDate},
			Age:       c.AgeOn(asOf),
			Gender:    c.Gender,
			Interests: nonNilStrings(c.Interests),
		})
	}
	if p.Location != nil {
		g := geoFromDomain(*p.Location)
		out.Location = &g
	}
	return out
}

func scoreFromCompat(s compat.MatchScore) Score {
	return Score{
		InterestScore:   s.InterestScore,
		AgeScore:        s.AgeScore,
		Total:           s.Total,
		CommonInterests: nonNilStrings(s.CommonInterests),
	}
}

func nearbyFromApp(in []profiles.NearbyProfile, asOf time.Time) []NearbyProfile {
	out := make([]NearbyProfile, 0, len(in))
	for _, n := range in {
		out = append(out, NearbyProfile{Profile: profileFromDomain(n.Profile, asOf), DistanceMeters: n.DistanceMeters})
	}
	return out
}

func candidatesFromApp(in []matching.Candidate, asOf time.Time) []Candidate {
	out := make([]Candidate, 0, len(in))
	for _, c := range in {
		out = append(out, Candidate{
			Profile:        profileFromDomain(c.Profile, asOf),
			DistanceMeters: c.DistanceMeters,
			Score:          scoreFromCompat(c.Score),
		})
	}
	return out
}

func matchFromDomain(m domain.Match) Match {
	return Match{
		ID:          string(m.ID),
		InitiatorID: string(m.InitiatorID),
		TargetID:    string(m.TargetID),
		Status:      string(m.Status),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func messageFromDomain(m domain.Message) Message {
	return Message{
		ID:         string(m.ID),
		SenderID:   string(m.SenderID),
		ReceiverID: string(m.ReceiverID),
		Content:    m.Content,
		SentAt:     m.SentAt,
		Read:       m.Read,
	}
}

func eventFromDomain(e domain.Event) Event {
	ids := make([]string, 0, len(e.ParticipantIDs))
	for _, p := range e.ParticipantIDs {
		ids = append(ids, string(p))
	}
	return Event{
		ID:               string(e.ID),
		OrganizerID:      string(e.OrganizerID),
		Title:            e.Title,
		Description:      e.Description,
		Location:         geoFromDomain(e.Location),
		DateTime:         e.DateTime,
		ParticipantIDs:   ids,
		ParticipantCount: len(ids),
		MaxParticipants:  e.MaxParticipants,
		IsFull:           e.IsFull(),
		CreatedAt:        e.CreatedAt,
		UpdatedAt:        e.UpdatedAt,
	}
}

func eventsFromDomain(es []domain.Event) []Event {
	out := make([]Event, 0, len(es))
	for _, e := range es {
		out = append(out, eventFromDomain(e))
	}
	return out
}

func childInputs(in []Child) []profiles.ChildInput {
	out := make([]profiles.ChildInput, 0, len(in))
	for _, c := range in {
		out = append(out, profiles.ChildInput{
			Name:      c.Name,
			BirthDate: c.BirthDate.Time,
			Gender:    c.Gender,
			Interests: c.Interests,
		})
	}
	return out
}

func createProfileInput(b CreateProfileRequest) profiles.CreateMyProfileInput {
	in := profiles.CreateMyProfileInput{
		FirstName:      b.FirstName,
		LastName:       b.LastName,
		Email:          b.Email,
		Bio:            b.Bio,
		Interests:      b.Interests,
		Children:       childInputs(b.Children),
		ProfilePicture: b.ProfilePicture,
	}
	if b.Location != nil {
		g := b.Location.toDomain()
		in.Location = &g
	}
	return in
}

func updateProfileInput(b UpdateProfileRequest) profiles.UpdateMyProfileInput {
	return profiles.UpdateMyProfileInput{
		FirstName:      profileOptional(b.FirstName, identity[string]),
		LastName:       profileOptional(b.LastName, identity[string]),
		Bio:            profileOptional(b.Bio, identity[string]),
		Interests:      profileOptional(b.Interests, identity[[]string]),
		Children:       profileOptional(b.Children, childInputs),
		Location:       profileOptional(b.Location, GeoLocation.toDomain),
		ProfilePicture: profileOptional(b.ProfilePicture, identity[string]),
	}
}

func createEventInput(b CreateEventRequest) events.CreateEventInput {
	in := events.CreateEventInput{
		Title:           b.Title,
		Description:     b.Description,
		DateTime:        b.DateTime,
		MaxParticipants: b.MaxParticipants,
	}
	if b.Location != nil {
		g := b.Location.toDomain()
		in.Location = &g
	}
	return in
}

func updateEventInput(b UpdateEventRequest) events.UpdateEventInput {
	return events.UpdateEventInput{
		Title:           eventOptional(b.Title, identity[string]),
		Description:     eventOptional(b.Description, identity[string]),
		Location:        eventOptional(b.Location, GeoLocation.toDomain),
		DateTime:        eventOptional(b.DateTime, identity[time.Time]),
		MaxParticipants: eventOptional(b.MaxParticipants, identity[int]),
	}
}

func identity[T any](v T) T { return v }

func profileOptional[T, U any](n nullable.Nullable[T], conv func(T) U) profiles.Optional[U] {
	if !n.IsSpecified() {
		return profiles.Unspecified[U]()
	}
	if n.IsNull() {
		return profiles.Null[U]()
	}
	v, err := n.Get()
	if err != nil {
		return profiles.Null[U]()
	}
	return profiles.Some(conv(v))
}

func eventOptional[T, U any](n nullable.Nullable[T], conv func(T) U) events.Optional[U] {
	if !n.IsSpecified() {
		return events.Unspecified[U]()
	}
	if n.IsNull() {
		return events.Null[U]()
	}
	v, err := n.Get()
	if err != nil {
		return events.Null[U]()
	}
	return events.Some(conv(v))
}

func nonNilStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
