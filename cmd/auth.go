package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/vkm/internal/repositories"
	"github.com/desertthunder/vkm/internal/services"
	"github.com/desertthunder/vkm/internal/shared"
	"github.com/urfave/cli/v3"
)

// AuthLogin logs in through the VK login form and caches the token.
//
// A valid cached token is reused unless --force is given.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	resolved, err := r.resolveToken(ctx, cmd.Bool("force"))
	if err != nil {
		return err
	}

	r.logger.Info("authentication successful", "source", resolved.Source)

	r.writePlain("✓ Authenticated (%s token)\n", resolved.Source)
	if resolved.UserID != "" {
		r.writePlain("User ID: %s\n", resolved.UserID)
	}
	r.writePlain("Expires: %s\n", expiryString(resolved.ExpiresAt))
	return nil
}

// AuthStatus shows the cached token for the configured login.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	session, err := r.tokenSession()
	if err != nil {
		return err
	}

	token, err := session.Status(r.creds.Login)
	if errors.Is(err, repositories.ErrNotFound) {
		r.writePlain("✗ Not authenticated\n")
		r.writePlain("Run 'vkm auth login' to obtain a token\n")
		return nil
	}
	if err != nil {
		return err
	}

	r.writePlainHeader("Cached token")
	r.writePlain("Login: %s\n", token.Login)
	r.writePlain("User ID: %s\n", token.UserID)
	r.writePlain("Cached at: %s\n", token.CreatedAt().Local().Format(time.DateTime))
	r.writePlain("Expires: %s\n", expiryString(token.ExpiresAt))

	if token.Expired(time.Now()) {
		r.writePlain("Status: ✗ Expired\n")
		if cmd.Bool("check") {
			return fmt.Errorf("%w: run 'vkm auth login' to refresh it", shared.ErrTokenExpired)
		}
		return nil
	}

	if !cmd.Bool("check") {
		return nil
	}

	err = services.NewAudioService(r.apiClient(token.Token)).Validate(ctx)
	var apiErr *services.APIError
	switch {
	case err == nil:
		r.writePlain("Status: ✓ Valid\n")
	case errors.As(err, &apiErr):
		r.writePlain("Status: ✗ Rejected (%s)\n", apiErr.Message)
	default:
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	return nil
}

// AuthLogout deletes cached tokens for the configured login, or every login with --all.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	session, err := r.tokenSession()
	if err != nil {
		return err
	}

	login := r.creds.Login
	if cmd.Bool("all") {
		login = ""
	} else if login == "" {
		return fmt.Errorf("%w: pass --login or --all", shared.ErrMissingArgument)
	}

	n, err := session.Logout(login)
	if err != nil {
		return fmt.Errorf("failed to delete tokens: %w", err)
	}

	r.logger.Info("tokens deleted", "login", login, "count", n)
	return r.writePlain("✓ Removed %d cached token(s)\n", n)
}

func expiryString(at *time.Time) string {
	if at == nil {
		return "never"
	}
	return at.Local().Format(time.DateTime)
}
