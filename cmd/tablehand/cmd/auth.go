package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmcleod/tablehand/session"
)

var loginUsername string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and remember the session",
	Long: `Signs in against the API. The password is read from ` + envPassword + `
or, when unset, from the first line of standard input.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if loginUsername == "" {
			return errors.New("--username is required")
		}
		password, err := readPassword(cmd)
		if err != nil {
			return err
		}
		c, err := openClient(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		sess, err := c.session.Login(cmd.Context(), session.Credentials{Username: loginUsername, Password: password})
		if errors.Is(err, session.ErrInvalidCredentials) {
			return errors.New("invalid username or password")
		}
		if err != nil {
			return describe(err)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Logged in as %s (%s)\n", sess.User.Username, sess.User.Role)
		if sess.ReturnPath != "" {
			fmt.Fprintf(out, "Last command before logout: %s\n", sess.ReturnPath)
		}
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the saved session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openClient(cmd)
		if err != nil {
			return err
		}
		defer c.Close()
		// Restoring first lets the logout record where the user was.
		_, _ = c.session.Restore(cmd.Context())
		c.session.Logout()
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user and open cashbox",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(_ *client, sess session.Session) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "User:    %s (%s)\n", sess.User.Username, sess.User.Role)
			if sess.Cashbox != nil {
				fmt.Fprintf(out, "Cashbox: %s, opened %s with %.2f\n",
					sess.Cashbox.ID, sess.Cashbox.OpenedAt.Local().Format("2006-01-02 15:04"), sess.Cashbox.OpeningAmount)
			} else {
				fmt.Fprintln(out, "Cashbox: none open")
			}
			return nil
		})
	},
}

func readPassword(cmd *cobra.Command) (string, error) {
	if p := os.Getenv(envPassword); p != "" {
		return p, nil
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return "", errors.New("empty password")
	}
	return line, nil
}

func init() {
	rootCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd)
	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "User to sign in as")
}
