package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dmitrijs2005/educhain/internal/common"
	"github.com/dmitrijs2005/educhain/internal/server/auth"
)

type credentialsRequest struct {
	UserName       string `json:"username"`
	Password       string `json:"password"`
	Role           string `json:"role"`
	ChallengeToken string `json:"challengeToken"`
}

const maxJSONBody = 1 << 20

// decodeJSON reads a small JSON body. An empty body decodes to the zero value.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return common.ErrorValidation
	}
	return nil
}

func (req credentialsRequest) credentials(r *http.Request) auth.Credentials {
	return auth.Credentials{
		UserName:       req.UserName,
		Password:       req.Password,
		ChallengeToken: req.ChallengeToken,
		RemoteIP:       clientIP(r),
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, identity, err := s.auth.Login(r.Context(), req.credentials(r))
	s.metrics.ObserveLogin(err == nil)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.auth.SessionTTL().Seconds()),
		HttpOnly: true,
		Secure:   s.opts.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, envelope{
		"success":  true,
		"userId":   identity.UserID,
		"username": identity.UserName,
		"role":     identity.Role,
		"token":    token,
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid request body")
		return
	}

	u, err := s.auth.Register(r.Context(), req.credentials(r), req.Role)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{
		"success": true,
		"message": "registration successful, please log in",
		"user":    u,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := sessionToken(r); token != "" {
		if err := s.auth.Logout(r.Context(), token); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.opts.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, envelope{"success": true})
}

// handleCheckAuth answers whether the caller holds a live session. A
// missing or expired session is a normal answer, not an error.
func (s *Server) handleCheckAuth(w http.ResponseWriter, r *http.Request) {
	token := sessionToken(r)
	if token == "" {
		writeJSON(w, http.StatusOK, envelope{"loggedIn": false})
		return
	}
	identity, err := s.auth.CheckAuth(r.Context(), token)
	if err != nil {
		if errors.Is(err, common.ErrorAuth) {
			writeJSON(w, http.StatusOK, envelope{"loggedIn": false})
			return
		}
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		"loggedIn": true,
		"userId":   identity.UserID,
		"username": identity.UserName,
		"role":     identity.Role,
	})
}

func (s *Server) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	u, err := s.auth.CurrentUser(r.Context(), tokenFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "user": u})
}
