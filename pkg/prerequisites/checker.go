package prerequisites

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ambicuity/Cloud-Native-Streaming-Data-Pipeline-for-Video-Analytics/pkg/config"
	"github.com/ambicuity/Cloud-Native-Streaming-Data-Pipeline-for-Video-Analytics/pkg/deployment"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
)

var (
	// ErrToolMissing means the gcloud CLI is not on PATH.
	ErrToolMissing = errors.New("gcloud CLI not found on PATH")
	// ErrNotAuthenticated means there is no active gcloud account or no usable default credentials.
	ErrNotAuthenticated = errors.New("not authenticated with Google Cloud")
)

const (
	gcloudTool         = "gcloud"
	cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"
)

// CredentialsFinder resolves Application Default Credentials.
type CredentialsFinder func(ctx context.Context, scopes ...string) (*google.Credentials, error)

// CheckResult records what the checker found.
type CheckResult struct {
	GcloudPath    string
	ActiveAccount string
}

// Checker validates the local environment before any cloud call is made.
type Checker struct {
	runner          deployment.CommandRunner
	findCredentials CredentialsFinder
	logger          zerolog.Logger
}

// NewChecker creates a Checker. A nil finder falls back to google.FindDefaultCredentials.
func NewChecker(runner deployment.CommandRunner, finder CredentialsFinder, logger zerolog.Logger) *Checker {
	if finder == nil {
		finder = google.FindDefaultCredentials
	}
	return &Checker{
		runner:          runner,
		findCredentials: finder,
		logger:          logger.With().Str("component", "PrerequisiteChecker").Logger(),
	}
}

// Check runs the checks in order and stops at the first failure: the project must be
// configured, gcloud must be installed with an active account, and default credentials
// must resolve. Nothing is retried.
func (c *Checker) Check(ctx context.Context, projectID string) (CheckResult, error) {
	var result CheckResult

	if err := config.CheckProject(projectID); err != nil {
		return result, err
	}

	path, err := c.runner.LookPath(gcloudTool)
	if err != nil {
		return result, fmt.Errorf("%w: %v", ErrToolMissing, err)
	}
	result.GcloudPath = path
	c.logger.Debug().Str("path", path).Msg("Found gcloud.")

	out, err := c.runner.Run(ctx, deployment.Command{
		Name: gcloudTool,
		Args: []string{"auth", "list", "--filter=status:ACTIVE", "--format=value(account)"},
	})
	if err != nil {
		return result, fmt.Errorf("%w: %v", ErrNotAuthenticated, err)
	}
	account := firstLine(string(out))
	if account == "" {
		return result, fmt.Errorf("%w: no active gcloud account, run 'gcloud auth login'", ErrNotAuthenticated)
	}
	result.ActiveAccount = account

	if _, err := c.findCredentials(ctx, cloudPlatformScope); err != nil {
		return result, fmt.Errorf("%w: application default credentials unavailable, run 'gcloud auth application-default login': %v", ErrNotAuthenticated, err)
	}

	c.logger.Info().Str("project_id", projectID).Str("account", account).Msg("Prerequisites satisfied.")
	return result, nil
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
