package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"jiraharvest/pkg/auth"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage Jira credentials",
	Long: `Manage stored Jira credentials securely.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (JIRAHARVEST_EMAIL / JIRAHARVEST_API_TOKEN, read-only)

Public Jira instances work anonymously; credentials are only needed for
instances that require authentication or impose stricter anonymous limits.`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [account]",
	Short: "Store Jira credentials securely",
	Long: `Store a Jira email and API token under an account name.

The API token is read without echo. Generate one from your Atlassian
account settings (API tokens page). If no account name is given, the
credentials are stored under "default", which fetch uses automatically.`,
	Example: `  # Store the default account
  jiraharvest auth login

  # Store a named account
  jiraharvest auth login work`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout [account]",
	Short: "Remove stored credentials",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLogout,
}

// authStatusCmd represents the auth status command
var authStatusCmd = &cobra.Command{
	Use:   "status [account]",
	Short: "Show whether credentials are stored",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAuthStatus,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(authStatusCmd)
}

func accountName(args []string) string {
	if len(args) > 0 && args[0] != "" {
		return args[0]
	}
	return "default"
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	name := accountName(args)
	reader := bufio.NewReader(os.Stdin)

	if manager.Exists(name) {
		fmt.Printf("Account %q already has stored credentials. Overwrite? (y/N): ", name)
		answer, _ := reader.ReadString('\n')
		if strings.ToLower(strings.TrimSpace(answer)) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	fmt.Print("Email: ")
	email, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("failed to read email: %w", err)
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return errors.New("email is required")
	}

	fmt.Print("API token: ")
	tokenBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("failed to read API token: %w", err)
	}
	token := strings.TrimSpace(string(tokenBytes))
	if token == "" {
		return errors.New("API token is required")
	}

	account := &auth.Account{
		Name:     name,
		Email:    email,
		APIToken: token,
	}
	if err := manager.Store(account); err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}

	fmt.Printf("Credentials stored for account %q.\n", name)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	name := accountName(args)
	if err := manager.Delete(name); err != nil {
		if errors.Is(err, auth.ErrCredentialsNotFound) {
			fmt.Printf("No stored credentials for account %q.\n", name)
			return nil
		}
		return fmt.Errorf("failed to remove credentials: %w", err)
	}

	fmt.Printf("Credentials removed for account %q.\n", name)
	return nil
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	name := accountName(args)
	account, err := manager.Retrieve(name)
	if err != nil {
		if errors.Is(err, auth.ErrCredentialsNotFound) {
			fmt.Printf("No stored credentials for account %q. Requests will be anonymous.\n", name)
			return nil
		}
		return fmt.Errorf("failed to read credentials: %w", err)
	}

	fmt.Printf("Account:  %s\n", account.Name)
	fmt.Printf("Email:    %s\n", account.Email)
	fmt.Printf("Token:    %s\n", maskToken(account.APIToken))
	if !account.LastModified.IsZero() {
		fmt.Printf("Modified: %s\n", account.LastModified.Format("2006-01-02 15:04:05"))
	}
	return nil
}

// maskToken keeps only the last four characters visible
func maskToken(token string) string {
	if len(token) <= 4 {
		return strings.Repeat("*", len(token))
	}
	return strings.Repeat("*", len(token)-4) + token[len(token)-4:]
}
