package deployment

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Environment variable names read by the streaming job.
const (
	EnvProject           = "GCP_PROJECT"
	EnvRegion            = "GCP_REGION"
	EnvStagingLocation   = "STAGING_LOCATION"
	EnvTempLocation      = "TEMP_LOCATION"
	EnvInputSubscription = "INPUT_SUBSCRIPTION"
	EnvOutputTopic       = "OUTPUT_TOPIC"
	EnvAnomalyTopic      = "ANOMALY_TOPIC"
	EnvAnalyticsTopic    = "ANALYTICS_TOPIC"
	EnvDeadLetterTopic   = "DEAD_LETTER_TOPIC"
)

// PipelineEnv holds the resource locations handed to the streaming job.
// Topic and subscription values are fully qualified resource paths.
type PipelineEnv struct {
	ProjectID         string
	Region            string
	StagingLocation   string
	TempLocation      string
	InputSubscription string
	OutputTopic       string
	AnomalyTopic      string
	AnalyticsTopic    string
	DeadLetterTopic   string
}

// EnvVar is one KEY=value pair.
type EnvVar struct {
	Key   string
	Value string
}

// TopicPath returns projects/<project>/topics/<topic>.
func TopicPath(projectID, topic string) string {
	return fmt.Sprintf("projects/%s/topics/%s", projectID, topic)
}

// SubscriptionPath returns projects/<project>/subscriptions/<subscription>.
func SubscriptionPath(projectID, subscription string) string {
	return fmt.Sprintf("projects/%s/subscriptions/%s", projectID, subscription)
}

// GCSPath returns gs://<bucket>/<prefix>.
func GCSPath(bucket, prefix string) string {
	return fmt.Sprintf("gs://%s/%s", bucket, prefix)
}

// Vars lists the variables in a fixed order.
func (e PipelineEnv) Vars() []EnvVar {
	return []EnvVar{
		{EnvProject, e.ProjectID},
		{EnvRegion, e.Region},
		{EnvStagingLocation, e.StagingLocation},
		{EnvTempLocation, e.TempLocation},
		{EnvInputSubscription, e.InputSubscription},
		{EnvOutputTopic, e.OutputTopic},
		{EnvAnomalyTopic, e.AnomalyTopic},
		{EnvAnalyticsTopic, e.AnalyticsTopic},
		{EnvDeadLetterTopic, e.DeadLetterTopic},
	}
}

// Environ renders the variables as KEY=value strings for exec.Cmd.Env.
func (e PipelineEnv) Environ() []string {
	vars := e.Vars()
	out := make([]string, 0, len(vars))
	for _, v := range vars {
		out = append(out, v.Key+"="+v.Value)
	}
	return out
}

// Map returns the variables keyed by name.
func (e PipelineEnv) Map() map[string]string {
	vars := e.Vars()
	out := make(map[string]string, len(vars))
	for _, v := range vars {
		out[v.Key] = v.Value
	}
	return out
}

// DotEnv renders the variables as .env file content with quoted values.
func (e PipelineEnv) DotEnv() (string, error) {
	content, err := godotenv.Marshal(e.Map())
	if err != nil {
		return "", fmt.Errorf("failed to render .env content: %w", err)
	}
	return content + "\n", nil
}

// WriteDotEnv writes the variables to a .env file readable only by the owner.
func (e PipelineEnv) WriteDotEnv(path string) error {
	if err := godotenv.Write(e.Map(), path); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return os.Chmod(path, 0o600)
}
