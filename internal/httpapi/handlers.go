// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package httpapi

import (
	"net/http"

	"github.com/passgate/passgate/internal/auth"
	"github.com/passgate/passgate/internal/observability"
	"github.com/passgate/passgate/pkg/errutil"
)

// Client-facing messages.
const (
	msgSignupOK       = "User created successfully!"
	msgSignupMissing  = "All fields are required."
	msgSignupConflict = "User with this email already exists."
	msgSignupServer   = "Server error during signup."

	msgLoginOK      = "Logged in successfully!"
	msgLoginMissing = "Email and password are required."
	msgLoginInvalid = "Invalid credentials."
	msgLoginServer  = "Server error during login."

	msgResetSent   = "If a user with that email exists, an OTP has been sent."
	msgResetServer = "Server error while sending OTP."

	msgVerifyOK      = "Password has been reset successfully."
	msgVerifyMissing = "Email, OTP and new password are required."
	msgVerifyInvalid = "Invalid or expired OTP."
	msgVerifyServer  = "Server error during password reset."

	msgAuthRequired = "Authentication required."
	msgTokenInvalid = "Invalid or expired token."
	msgMeServer     = "Server error while loading profile."

	msgInternal = "Internal server error."
)

// Operation names used in logs and metrics.
const (
	opSignup         = "signup"
	opLogin          = "login"
	opForgotPassword = "forgot_password"
	opVerifyOTP      = "verify_otp"
	opMe             = "me"
)

// failure describes how one operation reports errors.
type failure struct {
	op       string
	status   map[auth.Kind]int
	messages map[auth.Kind]string
	server   string
}

// respond maps err to a client response. Unclassified errors are logged and
// answered with 500 and the operation's generic message.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, f failure, err error) {
	kind := auth.KindOf(err)
	if msg, ok := f.messages[kind]; ok {
		status := http.StatusBadRequest
		if st, ok := f.status[kind]; ok {
			status = st
		}
		s.recorder.RecordAuth(f.op, observability.OutcomeFailure)
		writeMessage(w, status, msg)
		return
	}

	s.recorder.RecordAuth(f.op, observability.OutcomeError)
	errutil.LogErrorContext(r.Context(), s.logger, f.op+" failed", err)
	writeMessage(w, http.StatusInternalServerError, f.server)
}

var (
	signupFailure = failure{
		op: opSignup,
		messages: map[auth.Kind]string{
			auth.KindValidation: msgSignupMissing,
			auth.KindConflict:   msgSignupConflict,
		},
		server: msgSignupServer,
	}
	loginFailure = failure{
		op: opLogin,
		messages: map[auth.Kind]string{
			auth.KindValidation:     msgLoginMissing,
			auth.KindAuthentication: msgLoginInvalid,
		},
		server: msgLoginServer,
	}
	forgotFailure = failure{
		op:     opForgotPassword,
		server: msgResetServer,
	}
	verifyFailure = failure{
		op: opVerifyOTP,
		messages: map[auth.Kind]string{
			auth.KindValidation: msgVerifyMissing,
			auth.KindInvalidOTP: msgVerifyInvalid,
		},
		server: msgVerifyServer,
	}
	meFailure = failure{
		op:       opMe,
		status:   map[auth.Kind]int{auth.KindAuthentication: http.StatusUnauthorized},
		messages: map[auth.Kind]string{auth.KindAuthentication: msgTokenInvalid},
		server:   msgMeServer,
	}
)

// rejectBody answers a body that is not valid JSON like missing fields.
func (s *Server) rejectBody(w http.ResponseWriter, op, msg string) {
	s.recorder.RecordAuth(op, observability.OutcomeFailure)
	writeMessage(w, http.StatusBadRequest, msg)
}

func (s *Server) handleBanner(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(Banner))
}

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signupResponse struct {
	Message string          `json:"message"`
	User    auth.PublicUser `json:"user"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.rejectBody(w, opSignup, msgSignupMissing)
		return
	}

	user, err := s.svc.Signup(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		s.respond(w, r, signupFailure, err)
		return
	}

	s.recorder.RecordAuth(opSignup, observability.OutcomeSuccess)
	writeJSON(w, http.StatusCreated, signupResponse{Message: msgSignupOK, User: user.Public()})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Message string          `json:"message"`
	Token   string          `json:"token"`
	User    auth.PublicUser `json:"user"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.rejectBody(w, opLogin, msgLoginMissing)
		return
	}

	res, err := s.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.respond(w, r, loginFailure, err)
		return
	}

	s.recorder.RecordAuth(opLogin, observability.OutcomeSuccess)
	writeJSON(w, http.StatusOK, loginResponse{Message: msgLoginOK, Token: res.Token, User: res.User.Public()})
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	// A malformed body is treated as an unknown email so the response never
	// depends on what the caller sent.
	_ = decodeJSON(w, r, &req)

	if err := s.svc.RequestReset(r.Context(), req.Email); err != nil {
		s.respond(w, r, forgotFailure, err)
		return
	}

	s.recorder.RecordAuth(opForgotPassword, observability.OutcomeSuccess)
	writeMessage(w, http.StatusOK, msgResetSent)
}

type verifyOTPRequest struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"newPassword"`
}

func (s *Server) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.rejectBody(w, opVerifyOTP, msgVerifyMissing)
		return
	}

	if err := s.svc.VerifyReset(r.Context(), req.Email, req.OTP, req.NewPassword); err != nil {
		s.respond(w, r, verifyFailure, err)
		return
	}

	s.recorder.RecordAuth(opVerifyOTP, observability.OutcomeSuccess)
	writeMessage(w, http.StatusOK, msgVerifyOK)
}

type meResponse struct {
	User auth.PublicUser `json:"user"`
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, msgAuthRequired)
		return
	}

	user, err := s.svc.CurrentUser(r.Context(), claims.UserID)
	if err != nil {
		s.respond(w, r, meFailure, err)
		return
	}

	s.recorder.RecordAuth(opMe, observability.OutcomeSuccess)
	writeJSON(w, http.StatusOK, meResponse{User: user.Public()})
}
