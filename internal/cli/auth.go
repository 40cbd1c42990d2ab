package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	cerrors "github.com/tessro/cassette/internal/errors"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage Spotify authentication",
	Long:  `Commands for managing Spotify OAuth authentication.`,
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate with Spotify",
	Long: `Opens a browser to authenticate with Spotify using the OAuth PKCE flow.
The redirect URI is http://<spotify.listen>/callback and must be registered
for your client ID.`,
	RunE: runAuthLogin,
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove stored Spotify credentials",
	Long:  `Removes the stored Spotify OAuth tokens from the local machine.`,
	RunE:  runAuthLogout,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show authentication status",
	Long:  `Shows the current Spotify authentication status.`,
	RunE:  runAuthStatus,
}

func init() {
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)
	rootCmd.AddCommand(authCmd)
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if err := a.login(ctx); err != nil {
		return err
	}

	user, err := a.client.GetCurrentUser(ctx)
	if err != nil {
		if JSONOutput() {
			return PrintJSON(map[string]any{"status": "authenticated"})
		}
		fmt.Println("Authentication successful! Token stored.")
		return nil
	}

	if JSONOutput() {
		return PrintJSON(map[string]any{
			"status":       "authenticated",
			"user_id":      user.ID,
			"display_name": user.DisplayName,
			"email":        user.Email,
			"product":      user.Product,
		})
	}
	fmt.Printf("Successfully authenticated as %s (%s)\n", user.DisplayName, user.Email)
	return nil
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	wasAuthenticated := a.manager.Authenticated()
	if err := a.manager.Logout(ctx); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}

	status := "logged_out"
	message := "Logged out of Spotify."
	if !wasAuthenticated {
		status = "not_authenticated"
		message = "Not authenticated with Spotify."
	}

	if JSONOutput() {
		return PrintJSON(map[string]string{"status": status})
	}
	fmt.Println(message)
	return nil
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	state := a.manager.State()
	pair, ok := a.manager.Pair()
	if !ok || !state.Authenticated() {
		if JSONOutput() {
			return PrintJSON(map[string]any{"authenticated": false, "state": state.String()})
		}
		fmt.Println("Not authenticated with Spotify.")
		fmt.Println("Run 'cassette auth login' to authenticate.")
		return nil
	}

	// Touching the API refreshes an expired access token.
	userCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	user, userErr := a.client.GetCurrentUser(userCtx)
	pair, _ = a.manager.Pair()

	if JSONOutput() {
		out := map[string]any{
			"authenticated": a.manager.Authenticated(),
			"state":         a.manager.State().String(),
			"expires_at":    pair.ExpiresAt,
		}
		if userErr != nil {
			out["error"] = userErr.Error()
		} else {
			out["user_id"] = user.ID
			out["display_name"] = user.DisplayName
			out["email"] = user.Email
			out["product"] = user.Product
		}
		return PrintJSON(out)
	}

	if userErr != nil {
		if !cerrors.IsAuthFailure(userErr) {
			return fmt.Errorf("could not reach Spotify: %w", userErr)
		}
		fmt.Println("Session expired and could not be renewed.")
		fmt.Println("Run 'cassette auth login' to re-authenticate.")
		return nil
	}
	fmt.Printf("Authenticated as: %s (%s)\n", user.DisplayName, user.Email)
	fmt.Printf("Account type: %s\n", user.Product)
	if !pair.ExpiresAt.IsZero() {
		fmt.Printf("Token expires: %s (%s)\n", humanize.Time(pair.ExpiresAt), pair.ExpiresAt.Format(time.RFC3339))
	}
	return nil
}
