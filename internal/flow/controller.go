// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

// Package flow drives the page-to-page navigation of an interactive client.
package flow

import (
	"context"
	"errors"
	"sync"

	"github.com/passgate/passgate/internal/client"
)

// View identifies the page the user is on.
type View string

// Views.
const (
	ViewLogin          View = "login"
	ViewSignup         View = "signup"
	ViewForgotPassword View = "forgot-password"
	ViewVerifyOTP      View = "verify-otp"
	ViewDashboard      View = "dashboard"
)

// Messages shown when the server gave nothing usable.
const (
	MsgNetworkError  = "Network error. Please try again."
	MsgLoginFailed   = "Login failed."
	MsgSignupFailed  = "Signup failed."
	MsgRequestFailed = "Request failed."
	MsgResetFailed   = "Reset failed."
)

// API is the subset of client.Client the controller uses.
type API interface {
	Signup(ctx context.Context, name, email, password string) (*client.SignupResult, error)
	Login(ctx context.Context, email, password string) (*client.LoginResult, error)
	RequestReset(ctx context.Context, email string) (string, error)
	VerifyReset(ctx context.Context, email, otp, newPassword string) (string, error)
}

// Session is the logged-in state.
type Session struct {
	Token string
	User  client.User
}

// Controller tracks the current view, the session, and the last
// notice or error to show. Actions are only accepted on the view they
// belong to; see ErrWrongView.
type Controller struct {
	mu         sync.Mutex
	api        API
	view       View
	session    *Session
	resetEmail string
	notice     string
	errMsg     string
}

// ErrWrongView is returned when an action is invoked from another view.
var ErrWrongView = errors.New("action not available on this view")

// New returns a controller on the login view.
func New(api API) *Controller {
	return &Controller{api: api, view: ViewLogin}
}

// View returns the current view.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// Session returns the current session, or nil when logged out.
func (c *Controller) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	s := *c.session
	return &s
}

// ResetEmail returns the address the last reset code was requested for.
func (c *Controller) ResetEmail() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resetEmail
}

// Notice returns the informational message for the current view.
func (c *Controller) Notice() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.notice
}

// ErrorMessage returns the error message for the current view.
func (c *Controller) ErrorMessage() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errMsg
}

// Login authenticates and moves to the dashboard on success.
func (c *Controller) Login(ctx context.Context, email, password string) error {
	if err := c.expect(ViewLogin); err != nil {
		return err
	}
	res, err := c.api.Login(ctx, email, password)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.fail(err, MsgLoginFailed)
		return nil
	}
	c.session = &Session{Token: res.Token, User: res.User}
	c.goTo(ViewDashboard, "")
	return nil
}

// Signup registers and returns to the login view on success.
func (c *Controller) Signup(ctx context.Context, name, email, password string) error {
	if err := c.expect(ViewSignup); err != nil {
		return err
	}
	res, err := c.api.Signup(ctx, name, email, password)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.fail(err, MsgSignupFailed)
		return nil
	}
	c.goTo(ViewLogin, res.Message+" Please log in.")
	return nil
}

// RequestReset asks for a code and moves to code entry on success.
func (c *Controller) RequestReset(ctx context.Context, email string) error {
	if err := c.expect(ViewForgotPassword); err != nil {
		return err
	}
	msg, err := c.api.RequestReset(ctx, email)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.fail(err, MsgRequestFailed)
		return nil
	}
	c.resetEmail = email
	c.goTo(ViewVerifyOTP, msg)
	return nil
}

// VerifyReset submits the code for the remembered email.
func (c *Controller) VerifyReset(ctx context.Context, otp, newPassword string) error {
	if err := c.expect(ViewVerifyOTP); err != nil {
		return err
	}
	c.mu.Lock()
	email := c.resetEmail
	c.mu.Unlock()

	msg, err := c.api.VerifyReset(ctx, email, otp, newPassword)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.fail(err, MsgResetFailed)
		return nil
	}
	c.goTo(ViewLogin, msg+" Please log in with your new password.")
	return nil
}

// Logout clears the session.
func (c *Controller) Logout() error {
	if err := c.expect(ViewDashboard); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = nil
	c.goTo(ViewLogin, "")
	return nil
}

// GoSignup moves from login to signup.
func (c *Controller) GoSignup() error {
	return c.navigate(ViewLogin, ViewSignup)
}

// GoForgotPassword moves from login to the reset request view.
func (c *Controller) GoForgotPassword() error {
	return c.navigate(ViewLogin, ViewForgotPassword)
}

// Resend moves from code entry back to the reset request view so a new
// code can be requested.
func (c *Controller) Resend() error {
	return c.navigate(ViewVerifyOTP, ViewForgotPassword)
}

// BackToLogin returns to login from any view but the dashboard.
func (c *Controller) BackToLogin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.view == ViewDashboard {
		return ErrWrongView
	}
	c.goTo(ViewLogin, "")
	return nil
}

func (c *Controller) navigate(from, to View) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.view != from {
		return ErrWrongView
	}
	c.goTo(to, "")
	return nil
}

func (c *Controller) expect(v View) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.view != v {
		return ErrWrongView
	}
	c.errMsg = ""
	return nil
}

// goTo must be called with mu held.
func (c *Controller) goTo(v View, notice string) {
	c.view = v
	c.notice = notice
	c.errMsg = ""
}

// fail must be called with mu held.
func (c *Controller) fail(err error, fallback string) {
	c.notice = ""
	var apiErr *client.APIError
	switch {
	case errors.As(err, &apiErr) && apiErr.Message != "":
		c.errMsg = apiErr.Message
	case errors.As(err, &apiErr):
		c.errMsg = fallback
	default:
		c.errMsg = MsgNetworkError
	}
}
