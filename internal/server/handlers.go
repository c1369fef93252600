package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/mobwars/server/internal/auth"
	"github.com/mobwars/server/internal/model"
	"github.com/mobwars/server/internal/store"
	"github.com/mobwars/server/pkg/core"
)

type identityPayload struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

type authResponse struct {
	Token string          `json:"token"`
	User  identityPayload `json:"user"`
}

func identityFor(user *model.User) identityPayload {
	return identityPayload{
		ID:       strconv.FormatUint(uint64(user.ID), 10),
		Email:    user.Email,
		Name:     user.Name,
		Username: user.Username,
	}
}

func (s *Server) handleHealthcheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Username string `json:"username"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, token, err := s.auth.Register(r.Context(), body.Email, body.Username, body.Password, body.Name)
	if err != nil {
		s.writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, authResponse{Token: token, User: identityFor(user)})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, token, err := s.auth.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		s.writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{Token: token, User: identityFor(user)})
}

func (s *Server) handleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Credential string `json:"credential"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, token, err := s.auth.GoogleLogin(r.Context(), body.Credential)
	if err != nil {
		s.writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{Token: token, User: identityFor(user)})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	// requireAuth already validated the token
	writeJSON(w, http.StatusOK, map[string]bool{"valid": true})
}

func (s *Server) handleGameData(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r.Context())

	state, err := s.store.LoadGame(r.Context(), userID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// savePayload mirrors the wire shape loosely enough to distinguish a
// missing or mistyped field from a legitimate zero value.
type savePayload struct {
	Balance           *int64           `json:"balance"`
	CompletedMissions json.RawMessage  `json:"completedMissions"`
	PrisonTime        *int64           `json:"prisonTime"`
	Cooldowns         map[string]int64 `json:"cooldowns"`
}

func (s *Server) handleSaveGame(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r.Context())

	var payload savePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid save data")
		return
	}
	if payload.Balance == nil || *payload.Balance < 0 {
		writeError(w, http.StatusBadRequest, "Invalid balance value")
		return
	}
	var completed []string
	if payload.CompletedMissions == nil ||
		json.Unmarshal(payload.CompletedMissions, &completed) != nil || completed == nil {
		writeError(w, http.StatusBadRequest, "Invalid completedMissions format")
		return
	}

	state := core.GameState{
		Balance:           *payload.Balance,
		CompletedMissions: completed,
		PrisonTime:        payload.PrisonTime,
		Cooldowns:         payload.Cooldowns,
	}
	if err := store.ValidateState(state); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	persisted, err := s.store.SaveGame(r.Context(), userID, state)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Game data saved successfully",
		"data":    persisted,
	})
}

func (s *Server) writeAuthError(w http.ResponseWriter, err error) {
	var vErr *auth.ValidationError
	switch {
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, vErr.Reason)
	case errors.Is(err, auth.ErrUserExists):
		writeError(w, http.StatusBadRequest, "User already exists")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, auth.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, "Invalid token")
	default:
		s.log.Error().Err(err).Msg("Auth request failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	var vErr *store.ValidationError
	switch {
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, vErr.Reason)
	case errors.Is(err, store.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "User not found")
	default:
		s.log.Error().Err(err).Msg("Game-state request failed")
		writeError(w, http.StatusInternalServerError, "Failed to save game data")
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
