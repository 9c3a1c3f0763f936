package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/taskdeck/internal/session"
)

func newLoginCmd(a *app) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		Long: `Sign in with email and password. The token is stored in the session
file (default ~/.config/taskdeck/session.json, mode 0600) and used by every
other command until you log out.

When --password is omitted it is read from the first line of stdin.

Examples:
  # Sign in, reading the password from stdin
  echo "$PASSWORD" | taskdeck login --email ada@example.com

  # Sign in with an inline password
  taskdeck login --email ada@example.com --password hunter22`,
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := passwordOrStdin(password, cmd.InOrStdin())
			if err != nil {
				return err
			}
			s, err := a.store.Login(cmd.Context(), email, pw)
			if err != nil {
				return err
			}
			return printSignedIn(cmd, a, s, "Logged in")
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email (required)")
	cmd.Flags().StringVar(&password, "password", "", "Account password (default: read from stdin)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newRegisterCmd(a *app) *cobra.Command {
	var name, email, password string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Long: `Create an account and sign in with it.

Examples:
  echo "$PASSWORD" | taskdeck register --name Ada --email ada@example.com`,
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := passwordOrStdin(password, cmd.InOrStdin())
			if err != nil {
				return err
			}
			s, err := a.store.Register(cmd.Context(), name, email, pw)
			if err != nil {
				return err
			}
			return printSignedIn(cmd, a, s, "Registered")
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name (required)")
	cmd.Flags().StringVar(&email, "email", "", "Account email (required)")
	cmd.Flags().StringVar(&password, "password", "", "Account password (default: read from stdin)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.store.Logout(); err != nil {
				return fmt.Errorf("session cleared in memory but not on disk: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: a.protected(func(cmd *cobra.Command, args []string, s session.Session) error {
			if a.flags.json {
				return printJSON(cmd.OutOrStdout(), s.User())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s <%s> (id %d)\n", s.Name, s.Email, s.UserID)
			return nil
		}),
	}
}

func printSignedIn(cmd *cobra.Command, a *app, s session.Session, verb string) error {
	if a.flags.json {
		return printJSON(cmd.OutOrStdout(), s.User())
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s as %s <%s>\n", verb, s.Name, s.Email)
	return nil
}

func passwordOrStdin(flag string, in io.Reader) (string, error) {
	if flag != "" {
		return flag, nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	pw := strings.TrimRight(line, "\r\n")
	if pw == "" {
		return "", errors.New("password is required (--password or stdin)")
	}
	return pw, nil
}
