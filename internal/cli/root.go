// Package cli implements the goalboard client commands.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"goalboard.org/internal/auth"
	"goalboard.org/internal/config"
	"goalboard.org/internal/goals"
	"goalboard.org/internal/goals/remote"
	"goalboard.org/internal/session"
	"goalboard.org/internal/store/sqlite"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
}

// NewRootCommand creates the root command for the goalboard CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "goalboard",
		Short:         "Shared goal boards for groups",
		Long:          "Track big goals broken into small checklist goals and share progress with your group.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", config.DefaultPath(), "path to config file")

	cmd.AddCommand(NewRegisterCommand(opts))
	cmd.AddCommand(NewLoginCommand(opts))
	cmd.AddCommand(NewLogoutCommand(opts))
	cmd.AddCommand(NewWhoamiCommand(opts))
	cmd.AddCommand(NewGroupCommand(opts))
	cmd.AddCommand(NewGoalCommand(opts))
	cmd.AddCommand(NewBoardCommand(opts))

	return cmd
}

// app bundles everything a command needs: the service (local or
// remote), the session manager, and the close hook for the store.
type app struct {
	svc      goals.Service
	sessions *session.Manager
	close    func() error
}

func newApp(ctx context.Context, opts *RootOptions) (*app, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case config.BackendLocal:
		store, err := sqlite.Open(cfg.Data.Path)
		if err != nil {
			return nil, err
		}
		mgr, err := session.NewManager(ctx, sqlite.NewSessionStore(store))
		if err != nil {
			store.Close()
			return nil, err
		}
		return &app{
			svc:      goals.NewService(store),
			sessions: mgr,
			close:    store.Close,
		}, nil

	case config.BackendRemote:
		store, err := sqlite.Open(cfg.Data.Path)
		if err != nil {
			return nil, err
		}
		mgr, err := session.NewManager(ctx, sqlite.NewSessionStore(store))
		if err != nil {
			store.Close()
			return nil, err
		}
		client := remote.New(cfg.API.BaseURL,
			remote.WithTokenSource(mgr.Token),
			remote.WithUnauthorizedHook(func() {
				// Token rejected server-side: drop the stale session so
				// the next command asks for a fresh login.
				_ = mgr.Logout(context.Background())
			}))
		return &app{
			svc:      client,
			sessions: mgr,
			close:    store.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// authedContext attaches the logged-in user to ctx for the local
// service; the remote client ignores it and sends the token instead.
func (a *app) authedContext(ctx context.Context) (context.Context, error) {
	user, err := a.sessions.RequireUser()
	if err != nil {
		return nil, err
	}
	return auth.ContextWithUser(ctx, user.ID), nil
}

// friendlyError rewrites session-state errors as the instruction the
// user needs instead of a raw failure.
func friendlyError(err error) error {
	switch {
	case errors.Is(err, session.ErrNotAuthenticated), errors.Is(err, auth.ErrUnauthorized):
		return errors.New("you are not logged in: run 'goalboard login' first")
	case errors.Is(err, session.ErrNoGroup):
		return errors.New("no group selected: run 'goalboard group select' or 'goalboard group create' first")
	default:
		return err
	}
}
