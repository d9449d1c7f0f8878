package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/authkit/pkg/authtest"
	"github.com/dmitrymomot/authkit/pkg/httpserver"
	"github.com/dmitrymomot/authkit/pkg/session"
)

func newRootCmd() *cobra.Command {
	var (
		apiURL string
		a      *app
	)

	root := &cobra.Command{
		Use:           "authctl",
		Short:         "Log in to the API and make authorized requests",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			built, ctx, err := newApp(cmd.Context(), apiURL, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			a = built
			cmd.SetContext(ctx)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&apiURL, "api-url", "", "API base URL (overrides AUTH_API_URL)")

	appFn := func() *app { return a }
	root.AddCommand(
		newCredentialsCmd("login", "Log in with email and password", appFn, (*session.Manager).Login),
		newCredentialsCmd("register", "Create an account and log in", appFn, (*session.Manager).Register),
		newLogoutCmd(appFn),
		newStatusCmd(appFn),
		newGetCmd(appFn),
		newServeCmd(appFn),
	)
	return root
}

// withManager builds the Manager for a command and releases it afterwards.
func withManager(a func() *app, run func(*cobra.Command, []string, *session.Manager) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		defer func() { err = errors.Join(err, a().close()) }()

		m, err := a().manager(cmd.Context())
		if err != nil {
			return err
		}
		return run(cmd, args, m)
	}
}

type credentialsFunc func(*session.Manager, context.Context, session.Credentials) (*session.Session, error)

func newCredentialsCmd(use, short string, a func() *app, call credentialsFunc) *cobra.Command {
	var creds session.Credentials
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: withManager(a, func(cmd *cobra.Command, _ []string, m *session.Manager) error {
			sess, err := call(m, cmd.Context(), creds)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (access token expires %s)\n",
				sess.SubjectID, sess.Expiry().Format(time.RFC3339))
			return nil
		}),
	}
	cmd.Flags().StringVar(&creds.Email, "email", "", "account email")
	cmd.Flags().StringVar(&creds.Password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLogoutCmd(a func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: withManager(a, func(cmd *cobra.Command, _ []string, m *session.Manager) error {
			if err := m.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		}),
	}
}

func newStatusCmd(a func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether a valid session is stored",
		Args:  cobra.NoArgs,
		RunE: withManager(a, func(cmd *cobra.Command, _ []string, m *session.Manager) error {
			out := cmd.OutOrStdout()
			sess, err := m.Restore(cmd.Context())
			switch {
			case errors.Is(err, session.ErrNoSession):
				fmt.Fprintln(out, "Not logged in")
				return nil
			case errors.Is(err, session.ErrSessionExpired):
				fmt.Fprintln(out, "Not logged in (stored session expired)")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Logged in as %s\nAccess token expires %s (in %s)\n",
				sess.SubjectID,
				sess.Expiry().Format(time.RFC3339),
				time.Until(sess.Expiry()).Round(time.Second),
			)
			return nil
		}),
	}
}

func newGetCmd(a func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get PATH",
		Short: "Send an authorized GET request to the API",
		Args:  cobra.ExactArgs(1),
		RunE: withManager(a, func(cmd *cobra.Command, args []string, m *session.Manager) error {
			ctx := cmd.Context()
			if _, err := m.Restore(ctx); err != nil {
				return fmt.Errorf("restore session: %w", err)
			}

			url := a().api.BaseURL + "/" + strings.TrimLeft(args[0], "/")
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return err
			}
			resp, err := m.HTTPClient().Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, resp.Status)
			if _, err := io.Copy(out, resp.Body); err != nil {
				return err
			}
			if resp.StatusCode >= http.StatusBadRequest {
				return fmt.Errorf("request failed: %s", resp.Status)
			}
			return nil
		}),
	}
}

func newServeCmd(a func() *app) *cobra.Command {
	var (
		addr  string
		ttl   time.Duration
		users []string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a local in-memory auth backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := a().logger
			opts := []authtest.Option{authtest.WithAccessTTL(ttl), authtest.WithLogger(log)}
			for _, u := range users {
				email, password, ok := strings.Cut(u, ":")
				if !ok {
					return fmt.Errorf("invalid --user %q: want email:password", u)
				}
				opts = append(opts, authtest.WithUser(email, password))
			}
			backend, err := authtest.New(opts...)
			if err != nil {
				return err
			}

			srv := httpserver.New(httpserver.WithAddr(addr), httpserver.WithLogger(log))
			go func() {
				select {
				case <-srv.Ready():
					fmt.Fprintf(cmd.OutOrStdout(), "Listening on http://%s\n", srv.Addr())
				case <-cmd.Context().Done():
				}
			}()
			return backend.Run(cmd.Context(), srv)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().DurationVar(&ttl, "access-ttl", 15*time.Minute, "lifetime of issued access tokens")
	cmd.Flags().StringArrayVar(&users, "user", nil, "seed account as email:password (repeatable)")
	return cmd
}
