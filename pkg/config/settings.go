package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// PlaceholderProject is the project value shipped in templates. Deploying to it is refused.
const PlaceholderProject = "your-project-id"

// ErrPlaceholderProject is returned when no real project has been configured.
var ErrPlaceholderProject = errors.New("GCP project is not configured")

// Settings are the values read from the process environment.
type Settings struct {
	ProjectID string `envconfig:"GCP_PROJECT" default:"your-project-id"`
	Region    string `envconfig:"GCP_REGION" default:"us-central1"`
	Zone      string `envconfig:"GCP_ZONE" default:"us-central1-a"`
}

// LoadSettings reads Settings from the environment, applying defaults for unset variables.
func LoadSettings() (Settings, error) {
	var s Settings
	if err := envconfig.Process("", &s); err != nil {
		return Settings{}, fmt.Errorf("failed to read settings from environment: %w", err)
	}
	return s, nil
}

// CheckProject rejects an empty project and the placeholder value.
func CheckProject(projectID string) error {
	switch strings.TrimSpace(projectID) {
	case "":
		return fmt.Errorf("%w: set GCP_PROJECT or pass --project", ErrPlaceholderProject)
	case PlaceholderProject:
		return fmt.Errorf("%w: project is still the placeholder %q, set GCP_PROJECT or pass --project", ErrPlaceholderProject, PlaceholderProject)
	}
	return nil
}
