package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"mahal/internal/core"
	"mahal/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().JSON(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.ping == nil {
		checks["storage"] = "not_configured"
	} else if err := s.ping(ctx); err != nil {
		checks["storage"] = "failed: " + err.Error()
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["storage"] = "ok"
	}

	if s.limiter != nil {
		checks["rate_limiter"] = map[string]any{
			"active_clients": s.limiter.ActiveClients(),
			"rejected":       s.limiter.Hits(),
		}
	}

	NewJSONResponse().Status(httpStatus).JSON(map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// Members

func (s *Server) handleCreateMember(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	m, err := memberFromBody(p)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	created, err := s.members.Create(r.Context(), m)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	log.NewStructuredLogger(log.FromContext(r.Context())).
		LogCodeAllocated(r.Context(), log.ComponentMember, created.RegistrationCode)

	NewJSONResponse().Status(http.StatusCreated).
		Header("Location", "/api/members/"+strconv.FormatInt(created.ID, 10)).
		JSON(created).Write(w)
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	list, err := s.members.List(r.Context())
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	if list == nil {
		list = []core.Member{}
	}
	NewJSONResponse().JSON(list).Write(w)
}

func (s *Server) handleGetMember(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	m, err := s.members.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().JSON(m).Write(w)
}

func (s *Server) handleUpdateMember(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	m, err := memberFromBody(p)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	updated, err := s.members.Update(r.Context(), id, m)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	NewJSONResponse().JSON(updated).Write(w)
}

func (s *Server) handleDeleteMember(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	if err := s.members.Delete(r.Context(), id); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

// Users

func (s *Server) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	u, password := userFromBody(p)
	created, err := s.users.Register(r.Context(), u, password)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	log.NewStructuredLogger(log.FromContext(r.Context())).
		LogCodeAllocated(r.Context(), log.ComponentUser, created.RegistrationCode)

	NewJSONResponse().Status(http.StatusCreated).
		Header("Location", "/api/users/"+strconv.FormatInt(created.ID, 10)).
		JSON(created).Write(w)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	u, err := s.users.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().JSON(u).Write(w)
}
