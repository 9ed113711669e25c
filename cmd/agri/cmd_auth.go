package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nhle/agri-advisor/internal/api"
	"github.com/nhle/agri-advisor/internal/session"
	"github.com/nhle/agri-advisor/internal/validate"
)

var (
	authEmail    string
	authPassword string
	authFullName string
	authPhone    string
	authLocation string
)

// loginCmd signs in and stores the session token
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and store the session token",
	Long: `Signs in with email and password. The token is kept in the system
keyring so later commands and the terminal UI start signed in.

The password is prompted for when --password is omitted.`,
	RunE: runLogin,
}

// registerCmd creates an account and signs in
var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and sign in",
	RunE:  runRegister,
}

// logoutCmd clears the stored session
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the stored token",
	RunE:  runLogout,
}

// whoamiCmd shows the signed-in user
var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	RunE:  runWhoami,
}

func init() {
	for _, c := range []*cobra.Command{loginCmd, registerCmd} {
		c.Flags().StringVarP(&authEmail, "email", "e", "", "Account email")
		c.Flags().StringVarP(&authPassword, "password", "p", "", "Account password (prompted when empty)")
	}
	registerCmd.Flags().StringVar(&authFullName, "name", "", "Full name")
	registerCmd.Flags().StringVar(&authPhone, "phone", "", "Phone number")
	registerCmd.Flags().StringVar(&authLocation, "location", "", "Farm location")
}

func runLogin(cmd *cobra.Command, args []string) error {
	email, password, err := credentials(false)
	if err != nil {
		return err
	}

	if res := validate.LoginForm(email, password); !res.Valid {
		return firstValidationError(res)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Timeout())
	defer cancel()

	if err := manager.Login(ctx, email, password); err != nil {
		return authError(err)
	}

	u := manager.User()
	logger.Info("signed in", zap.Int("user_id", u.ID))
	fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", u.DisplayName())
	return nil
}

func runRegister(cmd *cobra.Command, args []string) error {
	email, password, err := credentials(true)
	if err != nil {
		return err
	}

	if res := validate.RegisterForm(validate.RegisterInput{Email: email, Password: password}); !res.Valid {
		return firstValidationError(res)
	}

	profile := validate.ProfileInput{FullName: authFullName, Phone: authPhone, Location: authLocation}
	validate.SanitizeFields(&profile.FullName, &profile.Phone, &profile.Location)
	if res := validate.ProfileForm(profile); !res.Valid {
		return firstValidationError(res)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*cfg.Timeout())
	defer cancel()

	req := api.RegisterRequest{
		Email:    email,
		Password: password,
		FullName: optional(profile.FullName),
		Phone:    optional(profile.Phone),
		Location: optional(profile.Location),
	}
	if err := manager.Register(ctx, req); err != nil {
		return authError(err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Account created. Signed in as %s\n", manager.User().DisplayName())
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Timeout())
	defer cancel()

	// Restore first so the cached notifications of this user can be purged.
	if u, err := requireSession(ctx); err == nil && cache != nil {
		if err := cache.Purge(ctx, u.ID); err != nil {
			logger.Warn("purging notification cache failed", zap.Error(err))
		}
	}

	manager.Logout()
	fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
	return nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Timeout())
	defer cancel()

	u, err := requireSession(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s <%s>\n", u.DisplayName(), u.Email)
	fmt.Fprintf(out, "id: %d\n", u.ID)
	if u.IsSuperuser {
		fmt.Fprintln(out, "role: admin")
	}
	if u.Location != nil && *u.Location != "" {
		fmt.Fprintf(out, "location: %s\n", *u.Location)
	}
	if claims, err := manager.TokenClaims(); err == nil && !claims.ExpiresAt.IsZero() {
		fmt.Fprintf(out, "token expires: %s\n", claims.ExpiresAt.Local().Format(time.DateTime))
	}
	return nil
}

// credentials returns the email and password from flags, prompting for
// the password when it was not given.
func credentials(confirm bool) (string, string, error) {
	email := strings.TrimSpace(authEmail)
	password := authPassword
	if password != "" {
		return email, password, nil
	}

	fields := []huh.Field{
		huh.NewInput().
			Title("Password").
			EchoMode(huh.EchoModePassword).
			Value(&password),
	}
	var again string
	if confirm {
		fields = append(fields, huh.NewInput().
			Title("Confirm password").
			EchoMode(huh.EchoModePassword).
			Value(&again))
	}
	if err := huh.NewForm(huh.NewGroup(fields...)).Run(); err != nil {
		return "", "", fmt.Errorf("reading password: %w", err)
	}

	if confirm {
		in := validate.RegisterInput{Email: email, Password: password, ConfirmPassword: again}
		if msg := validate.RegisterForm(in).Error("confirmPassword"); msg != "" {
			return "", "", errors.New(msg)
		}
	}
	return email, password, nil
}

func firstValidationError(res validate.Result) error {
	for _, f := range []string{"email", "password", "confirmPassword", "phone"} {
		if msg := res.Error(f); msg != "" {
			return errors.New(msg)
		}
	}
	return errors.New("invalid input")
}

func authError(err error) error {
	var se *session.Error
	if errors.As(err, &se) {
		return errors.New(se.Message)
	}
	return err
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
