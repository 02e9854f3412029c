package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kerokerotur/banars-app/internal/apperr"
	"github.com/kerokerotur/banars-app/internal/invite"
	"github.com/kerokerotur/banars-app/internal/model"
	"github.com/kerokerotur/banars-app/internal/usecase"
)

// SessionVerifier validates a session token presented by a signed-in client
// and returns the account id it belongs to.
type SessionVerifier interface {
	VerifySessionToken(ctx context.Context, token string) (string, error)
}

type Server struct {
	serviceToken string
	sessions     SessionVerifier
	invites      *invite.Service
	signup       *usecase.Signup
	login        *usecase.Login
	getMe        *usecase.GetMe
	attendance   *usecase.RegisterAttendance
	remind       *usecase.Remind
}

func NewServer(serviceToken string, sessions SessionVerifier, invites *invite.Service,
	signup *usecase.Signup, login *usecase.Login, getMe *usecase.GetMe,
	attendance *usecase.RegisterAttendance, remind *usecase.Remind) *Server {
	return &Server{
		serviceToken: serviceToken,
		sessions:     sessions,
		invites:      invites,
		signup:       signup,
		login:        login,
		getMe:        getMe,
		attendance:   attendance,
		remind:       remind,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.With(s.requireServiceToken).Post("/auth/invite", s.handleIssueInvite)
	r.Post("/auth/signup", s.handleSignup)
	r.Post("/auth/login", s.handleLogin)
	r.With(s.authMiddleware).Get("/auth/me", s.handleGetMe)

	r.With(s.authMiddleware).Post("/attendance", s.handleRegisterAttendance)
	r.With(s.requireServiceToken).Post("/attendance/remind", s.handleRemind)

	return r
}

type issueInviteRequest struct {
	ExpiresInDays *float64 `json:"expiresInDays,omitempty"`
	IssuedBy      string   `json:"issuedBy"`
}

type issueInviteResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expiresAt"`
}

func (s *Server) handleIssueInvite(w http.ResponseWriter, r *http.Request) {
	var req issueInviteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	result, err := s.invites.Issue(r.Context(), invite.IssueRequest{
		ExpiresInDays: req.ExpiresInDays,
		IssuedBy:      req.IssuedBy,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, issueInviteResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

type claimedProfile struct {
	LineUserID  string  `json:"lineUserId"`
	DisplayName string  `json:"displayName"`
	AvatarURL   *string `json:"avatarUrl,omitempty"`
	PlayerID    *string `json:"playerId,omitempty"`
}

type signupRequest struct {
	InviteToken string         `json:"inviteToken"`
	IDToken     string         `json:"idToken"`
	AccessToken string         `json:"accessToken"`
	LineProfile claimedProfile `json:"lineProfile"`
}

type signupResponse struct {
	UserID               string  `json:"userId"`
	SessionTransferToken *string `json:"sessionTransferToken"`
	AlreadyRegistered    bool    `json:"alreadyRegistered"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	out, err := s.signup.Execute(r.Context(), usecase.SignupInput{
		InviteToken: req.InviteToken,
		IDToken:     req.IDToken,
		AccessToken: req.AccessToken,
		Profile: usecase.ClaimedProfile{
			LineUserID:  req.LineProfile.LineUserID,
			DisplayName: req.LineProfile.DisplayName,
			AvatarURL:   req.LineProfile.AvatarURL,
			PlayerID:    req.LineProfile.PlayerID,
		},
	})
	if err != nil {
		writeAppError(w, err)
		return
	}

	status := http.StatusCreated
	if out.SessionTransferToken == nil {
		status = http.StatusOK
	}
	writeJSON(w, status, signupResponse{
		UserID:               out.UserID,
		SessionTransferToken: out.SessionTransferToken,
		AlreadyRegistered:    out.SessionTransferToken == nil,
	})
}

type loginRequest struct {
	IDToken  string  `json:"idToken"`
	PlayerID *string `json:"playerId,omitempty"`
}

type loginResponse struct {
	UserID               string `json:"userId"`
	SessionTransferToken string `json:"sessionTransferToken"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	out, err := s.login.Execute(r.Context(), usecase.LoginInput{
		IDToken:  req.IDToken,
		PlayerID: req.PlayerID,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		UserID:               out.UserID,
		SessionTransferToken: out.SessionTransferToken,
	})
}

func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}

	me, err := s.getMe.Execute(r.Context(), userID)
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, me)
}

type registerAttendanceRequest struct {
	EventID string  `json:"eventId"`
	Status  string  `json:"status"`
	Comment *string `json:"comment,omitempty"`
}

func (s *Server) handleRegisterAttendance(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}

	var req registerAttendanceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	err := s.attendance.Execute(r.Context(), usecase.RegisterAttendanceInput{
		EventID: req.EventID,
		UserID:  userID,
		Status:  model.AttendanceStatus(req.Status),
		Comment: req.Comment,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type remindRequest struct {
	LookaheadHours *int `json:"lookaheadHours,omitempty"`
}

func (s *Server) handleRemind(w http.ResponseWriter, r *http.Request) {
	var req remindRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request")
			return
		}
	}

	out, err := s.remind.Execute(r.Context(), usecase.RemindInput{LookaheadHours: req.LookaheadHours})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}

		userID, err := s.sessions.VerifySessionToken(r.Context(), token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey{}, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireServiceToken guards operational endpoints with a shared secret in
// the X-Service-Token header.
func (s *Server) requireServiceToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.serviceToken == "" || r.Header.Get("X-Service-Token") != s.serviceToken {
			writeError(w, http.StatusUnauthorized, "invalid_service_token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type userIDKey struct{}

func userIDFromContext(ctx context.Context) string {
	value, _ := ctx.Value(userIDKey{}).(string)
	return value
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

type errorResponse struct {
	Error   string         `json:"error"`
	Message string         `json:"message,omitempty"`
	Detail  map[string]any `json:"detail,omitempty"`
}

// writeAppError maps a use-case error to the wire. Anything that is not an
// apperr.Error is treated as an unexpected internal failure.
func writeAppError(w http.ResponseWriter, err error) {
	appErr, ok := apperr.From(err)
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	status := appErr.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, errorResponse{
		Error:   appErr.Code,
		Message: appErr.Message,
		Detail:  appErr.Detail,
	})
}
