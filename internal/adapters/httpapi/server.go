package httpapi

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kinship-labs/parent-match-api/internal/app/accounts"
	"github.com/kinship-labs/parent-match-api/internal/app/apperr"
	"github.com/kinship-labs/parent-match-api/internal/app/events"
	"github.com/kinship-labs/parent-match-api/internal/app/matching"
	"github.com/kinship-labs/parent-match-api/internal/app/messaging"
	"github.com/kinship-labs/parent-match-api/internal/app/profiles"
	"github.com/kinship-labs/parent-match-api/internal/domain"
	clockport "github.com/kinship-labs/parent-match-api/internal/ports/out/clock"
	"github.com/kinship-labs/parent-match-api/internal/ports/out/idempotency"
)

// Services groups the use-case services the HTTP adapter delegates to.
type Services struct {
	Accounts  *accounts.Service
	Profiles  *profiles.Service
	Matching  *matching.Service
	Messaging *messaging.Service
	Events    *events.Service
}

// Server holds the HTTP handlers. Handlers translate requests into service calls and
// never contain business rules.
type Server struct {
	Services

	Idem   idempotency.Store
	Clock  clockport.Clock
	Logger *slog.Logger

	validator *requestValidator
}

func NewServer(svcs Services, idem idempotency.Store, clk clockport.Clock, logger *slog.Logger) *Server {
	return &Server{
		Services:  svcs,
		Idem:      idem,
		Clock:     clk,
		Logger:    logger,
		validator: newRequestValidator(),
	}
}

func (s *Server) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now()
}

// respond writes the result of handle as JSON, or the mapped error.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, handle func() (int, any, error)) {
	status, payload, err := handle()
	if err != nil {
		writeAppError(w, r, s.Logger, err)
		return
	}
	if payload == nil {
		w.WriteHeader(status)
		return
	}
	writeJSON(w, status, payload)
}

func (s *Server) subject(r *http.Request) (domain.SubjectID, error) {
	sub, ok := SubjectFromContext(r.Context())
	if !ok {
		return "", apperr.Unauthorized("UNAUTHORIZED", "missing subject")
	}
	return sub, nil
}

// callerProfile resolves the authenticated account's profile. Routes that act on behalf
// of a profile fail with PROFILE_NOT_FOUND until one is created.
func (s *Server) callerProfile(r *http.Request) (domain.Profile, error) {
	sub, err := s.subject(r)
	if err != nil {
		return domain.Profile{}, err
	}
	return s.Profiles.GetMyProfile(r.Context(), sub)
}

func queryMeters(r *http.Request) (float64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("maxDistance"))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return 0, apperr.Validation("invalid query", map[string]any{"maxDistance": "must be a non-negative number of meters"})
	}
	return v, nil
}

func queryLimit(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return 0, apperr.Validation("invalid query", map[string]any{"limit": "must be a positive integer"})
	}
	return v, nil
}

// Auth

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, func() (int, any, error) {
		raw, err := readBody(w, r)
		if err != nil {
			return 0, nil, err
		}
		var body RegisterRequest
		if err := s.decodeInto(raw, &body, true); err != nil {
			return 0, nil, err
		}
		sess, err := s.Accounts.Register(r.Context(), accounts.RegisterInput{
			Email:     body.Email,
			Password:  body.Password,
			FirstName: body.FirstName,
			LastName:  body.LastName,
		})
		if err != nil {
			return 0, nil, err
		}
		return http.StatusCreated, authResponseFromSession(sess), nil
	})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, func() (int, any, error) {
		raw, err := readBody(w, r)
		if err != nil {
			return 0, nil, err
		}
		var body LoginRequest
		if err := s.decodeInto(raw, &body, true); err != nil {
			return 0, nil, err
		}
		sess, err := s.Accounts.Login(r.Context(), body.Email, body.Password)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, authResponseFromSession(sess), nil
	})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, func() (int, any, error) {
		sub, err := s.subject(r)
		if err != nil {
			return 0, nil, err
		}
		a, err := s.Accounts.GetAccount(r.Context(), sub)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, struct {
			Account Account `json:"account"`
		}{accountFromDomain(a)}, nil
	})
}

// Profiles

func (s *Server) createProfile(w http.ResponseWriter, r *http.Request) {
	sub, err := s.subject(r)
	if err != nil {
		writeAppError(w, r, s.Logger, err)
		return
	}
	raw, err := readBody(w, r)
	if err != nil {
		writeAppError(w, r, s.Logger, err)
		return
	}
	s.idempotent(w, r, sub, "/api/profiles", raw, func() (int, any, error) {
		var body CreateProfileRequest
		if err := s.decodeInto(raw, &body, true); err != nil {
			return 0, nil, err
		}
		p, err := s.Profiles.CreateMyProfile(r.Context(), sub, createProfileInput(body))
		if err != nil {
			return 0, nil, err
		}
		return http.StatusCreated, ProfileResponse{Profile: profileFromDomain(p, s.now())}, nil
	})
}

func (s *Server) getMyProfile(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, func() (int, any, error) {
		me, err := s.callerProfile(r)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, ProfileResponse{Profile: profileFromDomain(me, s.now())}, nil
	})
}

func (s *Server) updateMyProfile(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, func() (int, any, error) {
		sub, err := s.subject(r)
		if err != nil {
			return 0, nil, err
		}
		raw, err := readBody(w, r)
		if err != nil {
			return 0, nil, err
		}
		var body UpdateProfileRequest
		if err := s.decodeInto(raw, &body, false); err != nil {
			return 0, nil, err
		}
		p, err := s.Profiles.UpdateMyProfile(r.Context(), sub, updateProfileInput(body))
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, ProfileResponse{Profile: profileFromDomain(p, s.now())}, nil
	})
}

func (s *Server) nearbyProfiles(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, func() (int, any, error) {
		maxMeters, err := queryMeters(r)
		if err != nil {
			return 0, nil, err
		}
		sub, err := s.subject(r)
		if err != nil {
			return 0, nil, err
		}
		near, err := s.Profiles.FindNearby(r.Context(), sub, maxMeters)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, NearbyProfilesResponse{Profiles: nearbyFromApp(near, s.now())}, nil
	})
}

func (s *Server) candidates(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, func() (int, any, error) {
		maxMeters, err := queryMeters(r)
		if err != nil {
			return 0, nil, err
		}
		limit, err := queryLimit(r)
		if err != nil {
			return 0, nil, err
		}
		me, err := s.callerProfile(r)
		if err != nil {
			return 0, nil, err
		}
		cs, err := s.Matching.RankCandidates(r.Context(), me.ID, maxMeters, limit)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, CandidatesResponse{Candidates: candidatesFromApp(cs, s.now())}, nil
	})
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, func() (int, any, error) {
		p, err := s.Profiles.GetProfile(r.Context(), domain.ProfileID(chi.URLParam(r, "profileId")))
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, ProfileResponse{Profile: profileFromDomain(p, s.now())}, nil
	})
}

func (s *Server) compatibility(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, func() (int, any, error) {
		me, err := s.callerProfile(r)
		if err != nil {
			return 0, nil, err
		}
		other, err := s.Profiles.GetProfile(r.Context(), domain.ProfileID(chi.URLParam(r, "profileId")))
		if err != nil {
			return 0, nil, err
		}
		score := s.Matching.Compatibility(me, other)
		return http.StatusOK, CompatibilityResponse{ProfileID: string(other.ID), Score: scoreFromCompat(score)}, nil
	})
}

// Matches

func (s *Server) requestMatch(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, func() (int, any, error) {
		me, err := s.callerProfile(r)
		if err != nil {
			return 0, nil, err
		}
		m, err := s.Matching.RequestMatch(r.Context(), me.ID, domain.ProfileID(chi.URLParam(r, "profileId")))
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, MatchResponse{Match: matchFromDomain(m)}, nil
	})
}

func (s *Server) acceptMatch(w http.ResponseWriter, r *http.Request) {
	s.respondToMatch(w, r, domain.MatchStatusAccepted)
}

func (s *Server) rejectMatch(w http.ResponseWriter, r *http.Request) {
	s.respondToMatch(w, r, domain.MatchStatusRejected)
}

func (s *Server) respondToMatch(w http.ResponseWriter, r *http.Request, decision domain.MatchStatus) {
	s.respond(w, r, func() (int, any, error) {
		me, err := s.callerProfile(r)
		if err != nil {
			return 0, nil, err
		}
		m, err := s.Matching.Respond(r.Context(), domain.MatchID(chi.URLParam(r, "matchId")), me.ID, decision)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, MatchResponse{Match: matchFromDomain(m)}, nil
	})
}

func (s *Server) listMatches(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, func() (int, any, error) {
		me, err := s.callerProfile(r)
		if err != nil {
			return 0, nil, err
		}
		var status *domain.MatchStatus
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			st := domain.MatchStatus(strings.ToUpper(raw))
			status = &st
		}
		ms, err := s.Matching.ListMatches(r.Context(), me.ID, status)
		if err != nil {
			return 0, nil, err
		}
		out := make([]Match, 0, len(ms))
		for _, m := range ms {
			out = append(out, matchFromDomain(m))
		}
		return http.StatusOK, MatchesResponse{Matches: out}, nil
	})
}

// Messages

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	sub, err := s.subject(r)
	if err != nil {
		writeAppError(w, r, s.Logger, err)
		return
	}
	raw, err := readBody(w, r)
	if err != nil {
		writeAppError(w, r, s.Logger, err)
		return
	}
	s.idempotent(w, r, sub, "/api/messages", raw, func() (int, any, error) {
		var body SendMessageRequest
		if err := s.decodeInto(raw, &body, true); err != nil {
			return 0, nil, err
		}
		me, err := s.Profiles.GetMyProfile(r.Context(), sub)
		if err != nil {
			return 0, nil, err
		}
		m, err := s.Messaging.Send(r.Context(), me.ID, domain.ProfileID(body.ReceiverID), body.Content)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusCreated, MessageResponse{Message: messageFromDomain(m)}, nil
	})
}

func (s *Server) conversation(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, func() (int, any, error) {
		me, err := s.callerProfile(r)
		if err != nil {
			return 0, nil, err
		}
		ms, err := s.Messaging.Conversation(r.Context(), me.ID, domain.ProfileID(chi.URLParam(r, "profileId")))
		if err != nil {
			return 0, nil, err
		}
		out := make([]Message, 0, len(ms))
		for _, m := range ms {
			out = append(out, messageFromDomain(m))
		}
		return http.StatusOK, MessagesResponse{Messages: out}, nil
	})
}

func (s *Server) markRead(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, func() (int, any, error) {
		me, err := s.callerProfile(r)
		if err != nil {
			return 0, nil, err
		}
		m, err := s.Messaging.MarkRead(r.Context(), domain.MessageID(chi.URLParam(r, "messageId")), me.ID)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, MessageResponse{Message: messageFromDomain(m)}, nil
	})
}

func (s *Server) unreadCount(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, func() (int, any, error) {
		me, err := s.callerProfile(r)
		if err != nil {
			return 0, nil, err
		}
		n, err := s.Messaging.UnreadCount(r.Context(), me.ID)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, UnreadCountResponse{Count: n}, nil
	})
}

// Events

func (s *Server) createEvent(w http.ResponseWriter, r *http.Request) {
	sub, err := s.subject(r)
	if err != nil {
		writeAppError(w, r, s.Logger, err)
		return
	}
	raw, err := readBody(w, r)
	if err != nil {
		writeAppError(w, r, s.Logger, err)
		return
	}
	s.idempotent(w, r, sub, "/api/events", raw, func() (int, any, error) {
		var body CreateEventRequest
		if err := s.decodeInto(raw, &body, true); err != nil {
			return 0, nil, err
		}
		me, err := s.Profiles.GetMyProfile(r.Context(), sub)
		if err != nil {
			return 0, nil, err
		}
		e, err := s.Events.CreateEvent(r.Context(), me.ID, createEventInput(body))
		if err != nil {
			return 0, nil, err
		}
		return http.StatusCreated, EventResponse{Event: eventFromDomain(e)}, nil
	})
}

func (s *Server) upcomingEvents(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, func() (int, any, error) {
		es, err := s.Events.ListUpcoming(r.Context())
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, EventsResponse{Events: eventsFromDomain(es)}, nil
	})
}

func (s *Server) nearbyEvents(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, func() (int, any, error) {
		maxMeters, err := queryMeters(r)
		if err != nil {
			return 0, nil, err
		}
		me, err := s.callerProfile(r)
		if err != nil {
			return 0, nil, err
		}
		es, err := s.Events.ListNearby(r.Context(), me.ID, maxMeters)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, EventsResponse{Events: eventsFromDomain(es)}, nil
	})
}

func (s *Server) organizedEvents(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, func() (int, any, error) {
		me, err := s.callerProfile(r)
		if err != nil {
			return 0, nil, err
		}
		es, err := s.Events.ListOrganizedBy(r.Context(), me.ID)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, EventsResponse{Events: eventsFromDomain(es)}, nil
	})
}

func (s *Server) participatingEvents(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, func() (int, any, error) {
		me, err := s.callerProfile(r)
		if err != nil {
			return 0, nil, err
		}
		es, err := s.Events.ListParticipating(r.Context(), me.ID)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, EventsResponse{Events: eventsFromDomain(es)}, nil
	})
}

func (s *Server) getEvent(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, func() (int, any, error) {
		e, err := s.Events.GetEvent(r.Context(), domain.EventID(chi.URLParam(r, "eventId")))
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, EventResponse{Event: eventFromDomain(e)}, nil
	})
}

func (s *Server) updateEvent(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, func() (int, any, error) {
		raw, err := readBody(w, r)
		if err != nil {
			return 0, nil, err
		}
		var body UpdateEventRequest
		if err := s.decodeInto(raw, &body, false); err != nil {
			return 0, nil, err
		}
		me, err := s.callerProfile(r)
		if err != nil {
			return 0, nil, err
		}
		e, err := s.Events.UpdateEvent(r.Context(), me.ID, domain.EventID(chi.URLParam(r, "eventId")), updateEventInput(body))
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, EventResponse{Event: eventFromDomain(e)}, nil
	})
}

func (s *Server) deleteEvent(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, func() (int, any, error) {
		me, err := s.callerProfile(r)
		if err != nil {
			return 0, nil, err
		}
		if err := s.Events.DeleteEvent(r.Context(), me.ID, domain.EventID(chi.URLParam(r, "eventId"))); err != nil {
			return 0, nil, err
		}
		return http.StatusNoContent, nil, nil
	})
}

func (s *Server) joinEvent(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, func() (int, any, error) {
		me, err := s.callerProfile(r)
		if err != nil {
			return 0, nil, err
		}
		e, err := s.Events.Join(r.Context(), domain.EventID(chi.URLParam(r, "eventId")), me.ID)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, EventResponse{Event: eventFromDomain(e)}, nil
	})
}

func (s *Server) leaveEvent(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, func() (int, any, error) {
		me, err := s.callerProfile(r)
		if err != nil {
			return 0, nil, err
		}
		e, err := s.Events.Leave(r.Context(), domain.EventID(chi.URLParam(r, "eventId")), me.ID)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, EventResponse{Event: eventFromDomain(e)}, nil
	})
}
