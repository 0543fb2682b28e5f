package command

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"accounthub/cmd/cli/authentication"
	"accounthub/cmd/cli/command/client"
	"accounthub/internal/microservices/http-api/dto"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// account.go handles the account commands: register, login, logout, whoami
// and update.

var (
	success = color.New(color.FgGreen)
	label   = color.New(color.FgCyan)
)

func newAccountCmd() *cobra.Command {
	accountCmd := &cobra.Command{
		Use:   "account",
		Short: "Account commands",
		Long:  `Register, authenticate and manage your account on the API server.`,
	}
	accountCmd.AddCommand(
		newRegisterCmd(),
		newLoginCmd(),
		newLogoutCmd(),
		newWhoamiCmd(),
		newUpdateCmd(),
	)
	return accountCmd
}

func newRegisterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a new account",
		RunE: func(cmd *cobra.Command, args []string) error {
			// get data from flags
			var req dto.RegisterRequest
			req.Username, _ = cmd.Flags().GetString("username")
			req.Email, _ = cmd.Flags().GetString("email")
			req.Password, _ = cmd.Flags().GetString("password")
			req.Password2, _ = cmd.Flags().GetString("confirm")

			user, err := client.NewHTTPClient(apiURL).Register(&req)
			if err != nil {
				return fmt.Errorf("registration failed: %w", err)
			}

			success.Fprintln(cmd.OutOrStdout(), "✓ Registration successful! Please login to continue.")
			printUser(cmd, user)
			return nil
		},
	}
	cmd.Flags().StringP("username", "u", "", "Username for the new account")
	cmd.Flags().StringP("email", "e", "", "Email address for the new account")
	cmd.Flags().StringP("password", "p", "", "Password for the new account")
	cmd.Flags().StringP("confirm", "c", "", "Password again, must match --password")
	cmd.MarkFlagRequired("username")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("password")
	cmd.MarkFlagRequired("confirm")
	return cmd
}

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Login to your account",
		RunE: func(cmd *cobra.Command, args []string) error {
			var req dto.LoginRequest
			req.Username, _ = cmd.Flags().GetString("username")
			req.Password, _ = cmd.Flags().GetString("password")

			resp, err := client.NewHTTPClient(apiURL).Login(&req)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}

			if err := authentication.StoreTokens(&authentication.StoredCredentials{
				AccessToken:  resp.AccessToken,
				RefreshToken: resp.RefreshToken,
				Username:     resp.User.Username,
				ExpiresAt:    time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second).Unix(),
			}); err != nil {
				return fmt.Errorf("could not store tokens: %w", err)
			}

			out := cmd.OutOrStdout()
			success.Fprintf(out, "✓ Logged in as %s\n", resp.User.Username)
			if resp.LastLogin != nil {
				label.Fprint(out, "Last login: ")
				fmt.Fprintln(out, resp.LastLogin.Local().Format(time.RFC1123))
			} else {
				label.Fprintln(out, "First login, welcome!")
			}
			return nil
		},
	}
	cmd.Flags().StringP("username", "u", "", "Username for the account")
	cmd.Flags().StringP("password", "p", "", "Password for the account")
	cmd.MarkFlagRequired("username")
	cmd.MarkFlagRequired("password")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Logout and forget stored tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			creds, err := authentication.GetTokens()
			if errors.Is(err, authentication.ErrNotLoggedIn) {
				success.Fprintln(cmd.OutOrStdout(), "✓ Already logged out.")
				return nil
			}
			if err != nil {
				return err
			}

			// server side revoke is best effort, local tokens go regardless
			if creds.RefreshToken != "" {
				client.NewHTTPClient(apiURL).RevokeToken(&dto.RevokeTokenRequest{RefreshToken: creds.RefreshToken})
			}
			if err := authentication.DeleteTokens(); err != nil {
				return fmt.Errorf("could not clear tokens: %w", err)
			}
			success.Fprintln(cmd.OutOrStdout(), "✓ Successfully logged out.")
			return nil
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := withSession(func(c *client.HTTPClient) (*dto.UserResponse, error) {
				return c.Me()
			})
			if err != nil {
				return err
			}
			printUser(cmd, user)
			return nil
		},
	}
}

func newUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update username, email or password",
		Long: `Update one or more account fields. Only the flags you pass are sent.
Changing the password needs --old-password, --new-password and --confirm-password.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := dto.UpdateAccountRequest{
				Username:        changedFlag(cmd, "username"),
				Email:           changedFlag(cmd, "email"),
				OldPassword:     changedFlag(cmd, "old-password"),
				NewPassword:     changedFlag(cmd, "new-password"),
				ConfirmPassword: changedFlag(cmd, "confirm-password"),
			}

			user, err := withSession(func(c *client.HTTPClient) (*dto.UserResponse, error) {
				return c.UpdateAccount(&req)
			})
			if err != nil {
				return fmt.Errorf("update failed: %w", err)
			}

			// keep the cached username in step with the server
			if req.Username != nil {
				if creds, err := authentication.GetTokens(); err == nil {
					creds.Username = user.Username
					authentication.StoreTokens(creds)
				}
			}

			success.Fprintln(cmd.OutOrStdout(), "✓ Account updated.")
			printUser(cmd, user)
			return nil
		},
	}
	cmd.Flags().StringP("username", "u", "", "New username")
	cmd.Flags().StringP("email", "e", "", "New email address")
	cmd.Flags().String("old-password", "", "Current password")
	cmd.Flags().String("new-password", "", "New password")
	cmd.Flags().String("confirm-password", "", "New password again")
	return cmd
}

// withSession runs call with the stored access token. A 401 triggers one
// refresh and a retry; rotated tokens are written back to the keyring.
func withSession(call func(*client.HTTPClient) (*dto.UserResponse, error)) (*dto.UserResponse, error) {
	creds, err := authentication.GetTokens()
	if err != nil {
		if errors.Is(err, authentication.ErrNotLoggedIn) {
			return nil, errors.New("not logged in, run `accounthub account login` first")
		}
		return nil, err
	}

	c := client.NewHTTPClient(apiURL)
	c.SetToken(creds.AccessToken)
	user, err := call(c)

	var apiErr *client.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized || creds.RefreshToken == "" {
		return user, err
	}

	refreshed, rerr := c.RefreshToken(&dto.RefreshTokenRequest{RefreshToken: creds.RefreshToken})
	if rerr != nil {
		return nil, errors.New("session expired, please login again")
	}
	creds.AccessToken = refreshed.AccessToken
	creds.RefreshToken = refreshed.RefreshToken
	creds.ExpiresAt = time.Now().Add(time.Duration(refreshed.ExpiresIn) * time.Second).Unix()
	if err := authentication.StoreTokens(creds); err != nil {
		return nil, fmt.Errorf("could not store tokens: %w", err)
	}

	c.SetToken(creds.AccessToken)
	return call(c)
}

func changedFlag(cmd *cobra.Command, name string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetString(name)
	return &v
}

func printUser(cmd *cobra.Command, user *dto.UserResponse) {
	out := cmd.OutOrStdout()
	label.Fprint(out, "Username:  ")
	fmt.Fprintln(out, user.Username)
	label.Fprint(out, "Email:     ")
	fmt.Fprintln(out, user.Email)
	if user.IsSuperuser {
		label.Fprintln(out, "Superuser: yes")
	}
}
