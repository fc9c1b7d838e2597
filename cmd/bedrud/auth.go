package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bedrud/bedrud-go"
	"github.com/bedrud/bedrud-go/jwt"
)

var errNotLoggedIn = errors.New("not logged in")

func loginCmd(a *app) *cobra.Command {
	var (
		email    string
		password string
		remember bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		Args:  cobra.NoArgs,
		RunE: withClient(a, func(ctx context.Context, cmd *cobra.Command, c *bedrud.Client, _ []string) error {
			pw, err := readPassword(cmd, password)
			if err != nil {
				return err
			}
			user, err := c.Login(ctx, email, pw, remember)
			if err != nil {
				return err
			}
			return a.print(cmd, user)
		}),
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Account password (read from stdin when empty)")
	cmd.Flags().BoolVar(&remember, "remember", false, "Keep the session in the durable tier")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func registerCmd(a *app) *cobra.Command {
	var (
		req      bedrud.RegisterRequest
		remember bool
	)

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: withClient(a, func(ctx context.Context, cmd *cobra.Command, c *bedrud.Client, _ []string) error {
			pw, err := readPassword(cmd, req.Password)
			if err != nil {
				return err
			}
			req.Password = pw
			user, err := c.Register(ctx, req, remember)
			if err != nil {
				return err
			}
			return a.print(cmd, user)
		}),
	}

	cmd.Flags().StringVarP(&req.Email, "email", "e", "", "Account email")
	cmd.Flags().StringVarP(&req.Name, "name", "n", "", "Display name")
	cmd.Flags().StringVarP(&req.Password, "password", "p", "", "Account password (read from stdin when empty)")
	cmd.Flags().BoolVar(&remember, "remember", false, "Keep the session in the durable tier")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func oauthCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "oauth <google|github|twitter>",
		Short:     "Start a provider sign-in and print the backend response",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"google", "github", "twitter"},
		RunE: withClient(a, func(ctx context.Context, cmd *cobra.Command, c *bedrud.Client, args []string) error {
			raw, err := c.OAuthStart(ctx, bedrud.Provider(args[0]))
			if err != nil {
				return err
			}
			return a.print(cmd, raw)
		}),
	}
}

func logoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: withClient(a, func(ctx context.Context, cmd *cobra.Command, c *bedrud.Client, _ []string) error {
			if err := c.Logout(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return nil
		}),
	}
}

func tokenCmd(a *app) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a valid access token, refreshing it when expired",
		Args:  cobra.NoArgs,
		RunE: withClient(a, func(ctx context.Context, cmd *cobra.Command, c *bedrud.Client, _ []string) error {
			tok, err := c.Token(ctx)
			if err != nil {
				return err
			}
			if tok == nil {
				return errNotLoggedIn
			}
			if raw {
				fmt.Fprintln(cmd.OutOrStdout(), tok.Value)
				return nil
			}
			return a.print(cmd, tokenView(tok))
		}),
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Print only the token")
	return cmd
}

func whoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print the signed-in user",
		Args:  cobra.NoArgs,
		RunE: withClient(a, func(ctx context.Context, cmd *cobra.Command, c *bedrud.Client, _ []string) error {
			user := c.User()
			if user == nil {
				return errNotLoggedIn
			}
			return a.print(cmd, user)
		}),
	}
}

type statusView struct {
	State     string     `json:"state"`
	UserID    string     `json:"userId,omitempty"`
	Email     string     `json:"email,omitempty"`
	Admin     bool       `json:"admin"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	Backend   string     `json:"backend"`
	Media     string     `json:"media"`
}

func statusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the session state without refreshing",
		Args:  cobra.NoArgs,
		RunE: withClient(a, func(ctx context.Context, cmd *cobra.Command, c *bedrud.Client, _ []string) error {
			cfg := c.Config()
			view := statusView{
				State:   c.State().String(),
				Backend: cfg.Backend.BaseURL,
				Media:   c.Media().URL(),
			}
			if user := c.User(); user != nil {
				view.UserID = user.ID
				view.Email = user.Email
			}
			if tokens := c.Tokens().Current(); tokens != nil {
				if claims, err := jwt.Decode(tokens.AccessToken); err == nil {
					view.Admin = claims.IsAdmin()
					if exp := claims.Expiry(); !exp.IsZero() {
						view.ExpiresAt = &exp
					}
				}
			}
			return a.print(cmd, view)
		}),
	}
}

type tokenOut struct {
	Token     string     `json:"token"`
	UserID    string     `json:"userId,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

func tokenView(tok *bedrud.AccessToken) tokenOut {
	out := tokenOut{Token: tok.Value, UserID: tok.UserID}
	if !tok.ExpiresAt.IsZero() {
		exp := tok.ExpiresAt
		out.ExpiresAt = &exp
	}
	return out
}
