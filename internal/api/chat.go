package api

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/astra-mentor/astra/internal/app/mentor"
	"github.com/astra-mentor/astra/internal/domain"
)

type chatMessageRequest struct {
	Messages  json.RawMessage `json:"messages"`
	ChildName string          `json:"childName"`
	UserID    string          `json:"userId"`
}

// handleChatMessage answers one chat turn. An unconfigured mentor answers
// every request with the setup message. Authenticated callers default the
// user id to themselves and may not award XP to anyone else.
func (s *Server) handleChatMessage(w http.ResponseWriter, r *http.Request) {
	if !s.chat.Configured() {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"error":    "The mentor is not configured. Set OPENAI_API_KEY in .env.local or mentor.api_key in config.toml.",
			"fallback": true,
			"message":  mentor.SetupMessage,
		})
		return
	}

	var body chatMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	raw := bytes.TrimSpace(body.Messages)
	if len(raw) == 0 || raw[0] != '[' {
		writeError(w, http.StatusBadRequest, "Messages array is required")
		return
	}
	var msgs []domain.ChatMessage
	if err := json.Unmarshal(raw, &msgs); err != nil {
		writeError(w, http.StatusBadRequest, "invalid messages: "+err.Error())
		return
	}

	userID := body.UserID
	if caller, ok := callerID(r.Context()); ok {
		if userID == "" {
			userID = caller
		}
		if err := checkCaller(r.Context(), userID); err != nil {
			writeError(w, http.StatusForbidden, err.Error())
			return
		}
	}

	resp := s.chat.Handle(r.Context(), mentor.ChatRequest{
		Messages:  msgs,
		ChildName: body.ChildName,
		UserID:    userID,
	})
	writeJSON(w, http.StatusOK, resp)
}
