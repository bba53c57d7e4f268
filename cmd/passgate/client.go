// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/passgate/passgate/internal/client"
	"github.com/passgate/passgate/internal/flow"
)

// NewClientCmd creates the interactive client subcommand.
func NewClientCmd() *cobra.Command {
	var apiURL string

	cmd := &cobra.Command{
		Use:   "client",
		Short: "Interactive client for a running passgate API",
		Long: `Walk through signup, login and password reset against a running
passgate API. Type "help" at the prompt for the available commands.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			api := client.New(apiURL)
			r := newREPL(api, cmd.InOrStdin(), cmd.OutOrStdout())
			if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
				r.readSecret = func() (string, error) {
					b, err := term.ReadPassword(int(f.Fd()))
					fmt.Fprintln(r.out)
					return string(b), err
				}
			}
			return r.run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&apiURL, "api", client.DefaultBaseURL, "API base URL")
	return cmd
}

// repl reads commands and form fields line by line and drives a
// flow.Controller.
type repl struct {
	ctrl       *flow.Controller
	api        *client.Client
	in         *bufio.Reader
	out        io.Writer
	readSecret func() (string, error)
}

func newREPL(api *client.Client, in io.Reader, out io.Writer) *repl {
	r := &repl{
		ctrl: flow.New(api),
		api:  api,
		in:   bufio.NewReader(in),
		out:  out,
	}
	r.readSecret = r.readLine
	return r
}

var viewCommands = map[flow.View]string{
	flow.ViewLogin:          "login, signup, forgot, quit",
	flow.ViewSignup:         "submit, back, quit",
	flow.ViewForgotPassword: "submit, back, quit",
	flow.ViewVerifyOTP:      "submit, resend, back, quit",
	flow.ViewDashboard:      "me, logout, quit",
}

func (r *repl) run(ctx context.Context) error {
	r.render()
	for {
		fmt.Fprintf(r.out, "[%s]> ", r.ctrl.View())
		line, err := r.readLine()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		cmd := strings.ToLower(strings.TrimSpace(line))
		switch cmd {
		case "":
			continue
		case "quit", "exit":
			return nil
		case "help":
			fmt.Fprintf(r.out, "commands: %s\n", viewCommands[r.ctrl.View()])
			continue
		}

		if err := r.dispatch(ctx, cmd); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if errors.Is(err, flow.ErrWrongView) || errors.Is(err, errUnknownCommand) {
				fmt.Fprintf(r.out, "unknown command %q; commands: %s\n", cmd, viewCommands[r.ctrl.View()])
				continue
			}
			return err
		}
		r.render()
	}
}

var errUnknownCommand = errors.New("unknown command")

func (r *repl) dispatch(ctx context.Context, cmd string) error {
	view := r.ctrl.View()
	switch {
	case cmd == "login" && view == flow.ViewLogin:
		email, password, err := r.credentials()
		if err != nil {
			return err
		}
		return r.ctrl.Login(ctx, email, password)
	case cmd == "signup":
		return r.ctrl.GoSignup()
	case cmd == "forgot":
		return r.ctrl.GoForgotPassword()
	case cmd == "resend":
		return r.ctrl.Resend()
	case cmd == "back":
		return r.ctrl.BackToLogin()
	case cmd == "logout":
		return r.ctrl.Logout()
	case cmd == "me" && view == flow.ViewDashboard:
		return r.me(ctx)
	case cmd == "submit":
		return r.submit(ctx, view)
	}
	return errUnknownCommand
}

func (r *repl) submit(ctx context.Context, view flow.View) error {
	switch view {
	case flow.ViewSignup:
		name, err := r.ask("Name: ")
		if err != nil {
			return err
		}
		email, password, err := r.credentials()
		if err != nil {
			return err
		}
		return r.ctrl.Signup(ctx, name, email, password)
	case flow.ViewForgotPassword:
		email, err := r.ask("Email: ")
		if err != nil {
			return err
		}
		return r.ctrl.RequestReset(ctx, email)
	case flow.ViewVerifyOTP:
		otp, err := r.ask("OTP: ")
		if err != nil {
			return err
		}
		fmt.Fprint(r.out, "New password: ")
		password, err := r.readSecret()
		if err != nil {
			return err
		}
		return r.ctrl.VerifyReset(ctx, otp, password)
	}
	return errUnknownCommand
}

func (r *repl) me(ctx context.Context) error {
	session := r.ctrl.Session()
	if session == nil {
		return flow.ErrWrongView
	}
	user, err := r.api.Me(ctx, session.Token)
	if err != nil {
		var apiErr *client.APIError
		switch {
		case errors.As(err, &apiErr) && apiErr.Message != "":
			fmt.Fprintf(r.out, "error: %s\n", apiErr.Message)
		case errors.As(err, &apiErr):
			fmt.Fprintf(r.out, "error: %s\n", http.StatusText(apiErr.Status))
		default:
			fmt.Fprintf(r.out, "error: %s\n", flow.MsgNetworkError)
		}
		return nil
	}
	fmt.Fprintf(r.out, "%s <%s> id=%s\n", user.Name, user.Email, user.ID)
	return nil
}

func (r *repl) credentials() (email, password string, err error) {
	if email, err = r.ask("Email: "); err != nil {
		return "", "", err
	}
	fmt.Fprint(r.out, "Password: ")
	if password, err = r.readSecret(); err != nil {
		return "", "", err
	}
	return email, password, nil
}

func (r *repl) ask(prompt string) (string, error) {
	fmt.Fprint(r.out, prompt)
	line, err := r.readLine()
	return strings.TrimSpace(line), err
}

// readLine returns the next line without its newline. A final line without
// a newline is returned with a nil error.
func (r *repl) readLine() (string, error) {
	line, err := r.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (r *repl) render() {
	if msg := r.ctrl.Notice(); msg != "" {
		fmt.Fprintln(r.out, msg)
	}
	if msg := r.ctrl.ErrorMessage(); msg != "" {
		fmt.Fprintf(r.out, "error: %s\n", msg)
	}
	if r.ctrl.View() == flow.ViewDashboard {
		if s := r.ctrl.Session(); s != nil {
			fmt.Fprintf(r.out, "Welcome, %s!\n", s.User.Name)
		}
	}
	if r.ctrl.View() == flow.ViewVerifyOTP {
		fmt.Fprintf(r.out, "Enter the code sent to %s\n", r.ctrl.ResetEmail())
	}
}
