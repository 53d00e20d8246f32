package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/astra-mentor/astra/internal/app/gamification"
	"github.com/astra-mentor/astra/internal/domain"
)

// ─── Gamification API ───────────────────────────────────────────────────────

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := s.engine.Dashboard(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}

type awardRequest struct {
	Amount json.RawMessage `json:"amount"`
	Reason string          `json:"reason"`
	Skill  *string         `json:"skill"`
}

// handleAwardXP grants XP directly, e.g. for session-complete or daily-login
// events. amount must be a positive JSON integer; floats, strings, and
// exponents are rejected before reaching the engine.
func (s *Server) handleAwardXP(w http.ResponseWriter, r *http.Request) {
	var req awardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	amount, err := strconv.ParseInt(strings.TrimSpace(string(req.Amount)), 10, 64)
	if err == nil {
		err = gamification.ValidateAmount(amount)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, domain.ErrInvalidAmount.Error())
		return
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		writeError(w, http.StatusBadRequest, "reason is required")
		return
	}

	var skill *domain.SkillName
	if req.Skill != nil && *req.Skill != "" {
		sk := domain.SkillName(*req.Skill)
		skill = &sk
	}

	result, err := s.engine.AwardXP(r.Context(), chi.URLParam(r, "userID"), amount, reason, skill)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}

	history, err := s.engine.History(r.Context(), chi.URLParam(r, "userID"), limit)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": history,
	})
}

func (s *Server) handleBadges(w http.ResponseWriter, r *http.Request) {
	badges, err := s.engine.Catalog(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"badges": badges,
	})
}

func (s *Server) handleRewards(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rewards":  gamification.Rewards(),
		"maxAward": gamification.MaxAward,
	})
}

// ─── Notifications ──────────────────────────────────────────────────────────

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	notifs, err := s.notifications.Pending(r.Context(), chi.URLParam(r, "userID"), 20)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"notifications": notifs,
	})
}

func (s *Server) handleNotificationShown(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid notification id")
		return
	}
	if err := s.notifications.MarkShown(r.Context(), chi.URLParam(r, "userID"), id); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
