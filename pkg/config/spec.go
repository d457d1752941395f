package config

import (
	"errors"
	"fmt"
	"maps"
	"regexp"
	"strings"
	"time"

	"github.com/ambicuity/Cloud-Native-Streaming-Data-Pipeline-for-Video-Analytics/pkg/deployment"
	"github.com/ambicuity/Cloud-Native-Streaming-Data-Pipeline-for-Video-Analytics/pkg/iam"
	"github.com/ambicuity/Cloud-Native-Streaming-Data-Pipeline-for-Video-Analytics/pkg/servicemanager"
)

// Subscription delivery parameters. They are fixed and cannot be overridden.
const (
	MaxDeliveryAttempts = 5
	AckDeadlineSeconds  = 60
	MessageRetention    = 7 * 24 * time.Hour
	MinimumBackoff      = 10 * time.Second
	MaximumBackoff      = 600 * time.Second
)

const (
	defaultStorageClass = "STANDARD"
	stagingPrefix       = "staging"
	tempPrefix          = "temp"
)

// DefaultAPIs are enabled in this order.
var DefaultAPIs = []string{
	"dataflow.googleapis.com",
	"pubsub.googleapis.com",
	"storage.googleapis.com",
	"monitoring.googleapis.com",
	"logging.googleapis.com",
	"iam.googleapis.com",
	"cloudresourcemanager.googleapis.com",
}

var serviceAccountIDPattern = regexp.MustCompile(`^[a-z]([-a-z0-9]{4,28}[a-z0-9])$`)

// Topics names the five topics of the pipeline.
type Topics struct {
	Input      string `yaml:"input"`
	Output     string `yaml:"output"`
	Anomalies  string `yaml:"anomalies"`
	Analytics  string `yaml:"analytics"`
	DeadLetter string `yaml:"dead_letter"`
}

// DeploymentSpec is the complete, explicit input of one deployment run.
type DeploymentSpec struct {
	ProjectID string
	Region    string
	Zone      string
	Labels    map[string]string

	APIs           []string
	ServiceAccount iam.ServiceAccountSpec

	StagingBucket servicemanager.GCSBucket
	TempBucket    servicemanager.GCSBucket

	Topics       Topics
	Subscription string

	// DeadLetterAgentGrants lets the Pub/Sub service agent move messages to the dead-letter topic.
	DeadLetterAgentGrants bool

	Pipeline deployment.PipelineCLI
}

// NewDeploymentSpec builds the default spec for the given settings.
func NewDeploymentSpec(s Settings) *DeploymentSpec {
	return &DeploymentSpec{
		ProjectID: s.ProjectID,
		Region:    s.Region,
		Zone:      s.Zone,
		Labels:    map[string]string{"app": "video-analytics", "managed-by": "videodeploy"},
		APIs:      append([]string(nil), DefaultAPIs...),
		ServiceAccount: iam.ServiceAccountSpec{
			AccountID:    "video-analytics-pipeline",
			DisplayName:  "Video Analytics Pipeline Service Account",
			ProjectRoles: append([]string(nil), iam.PipelineWorkerRoles...),
		},
		StagingBucket: defaultBucket(s.ProjectID, "video-analytics-staging", s.Region),
		TempBucket:    defaultBucket(s.ProjectID, "video-analytics-temp", s.Region),
		Topics: Topics{
			Input:      "video-analytics-input",
			Output:     "video-analytics-output",
			Anomalies:  "video-analytics-anomalies",
			Analytics:  "video-analytics-analytics",
			DeadLetter: "video-analytics-dead-letter",
		},
		Subscription:          "video-analytics-input-sub",
		DeadLetterAgentGrants: true,
		Pipeline: deployment.PipelineCLI{
			PackageDir:     ".",
			InstallCommand: []string{"pip", "install", "-e", "."},
			EntryPoint:     "video-pipeline",
		},
	}
}

func defaultBucket(projectID, suffix, region string) servicemanager.GCSBucket {
	return servicemanager.GCSBucket{
		CloudResource:            servicemanager.CloudResource{Name: servicemanager.BucketNameFor(projectID, suffix)},
		Location:                 region,
		StorageClass:             defaultStorageClass,
		UniformBucketLevelAccess: true,
	}
}

// Environment returns the project-level settings shared by the managers.
func (d *DeploymentSpec) Environment() servicemanager.Environment {
	return servicemanager.Environment{
		ProjectID: d.ProjectID,
		Region:    d.Region,
		Zone:      d.Zone,
		Labels:    d.Labels,
	}
}

// Resources returns the buckets, topics and subscription in provisioning order.
// The subscription always carries the fixed dead-letter and delivery parameters.
func (d *DeploymentSpec) Resources() servicemanager.CloudResourcesSpec {
	labelled := func(name string) servicemanager.CloudResource {
		return servicemanager.CloudResource{Name: name, Labels: maps.Clone(d.Labels)}
	}
	return servicemanager.CloudResourcesSpec{
		GCSBuckets: []servicemanager.GCSBucket{d.StagingBucket, d.TempBucket},
		Topics: []servicemanager.TopicConfig{
			{CloudResource: labelled(d.Topics.Input)},
			{CloudResource: labelled(d.Topics.Output)},
			{CloudResource: labelled(d.Topics.Anomalies)},
			{CloudResource: labelled(d.Topics.Analytics)},
			{CloudResource: labelled(d.Topics.DeadLetter)},
		},
		Subscriptions: []servicemanager.SubscriptionConfig{{
			CloudResource:      labelled(d.Subscription),
			Topic:              d.Topics.Input,
			AckDeadlineSeconds: AckDeadlineSeconds,
			MessageRetention:   servicemanager.Duration(MessageRetention),
			RetryPolicy: &servicemanager.RetryPolicySpec{
				MinimumBackoff: servicemanager.Duration(MinimumBackoff),
				MaximumBackoff: servicemanager.Duration(MaximumBackoff),
			},
			DeadLetterPolicy: &servicemanager.DeadLetterPolicySpec{
				DeadLetterTopic:     d.Topics.DeadLetter,
				MaxDeliveryAttempts: MaxDeliveryAttempts,
			},
		}},
	}
}

// ServiceAccountEmail is the email the pipeline identity will have.
func (d *DeploymentSpec) ServiceAccountEmail() string {
	return iam.ServiceAccountEmail(d.ServiceAccount.AccountID, d.ProjectID)
}

// PipelineEnv derives the environment handed to the streaming job.
func (d *DeploymentSpec) PipelineEnv() deployment.PipelineEnv {
	return deployment.PipelineEnv{
		ProjectID:         d.ProjectID,
		Region:            d.Region,
		StagingLocation:   deployment.GCSPath(d.StagingBucket.Name, stagingPrefix),
		TempLocation:      deployment.GCSPath(d.TempBucket.Name, tempPrefix),
		InputSubscription: deployment.SubscriptionPath(d.ProjectID, d.Subscription),
		OutputTopic:       deployment.TopicPath(d.ProjectID, d.Topics.Output),
		AnomalyTopic:      deployment.TopicPath(d.ProjectID, d.Topics.Anomalies),
		AnalyticsTopic:    deployment.TopicPath(d.ProjectID, d.Topics.Analytics),
		DeadLetterTopic:   deployment.TopicPath(d.ProjectID, d.Topics.DeadLetter),
	}
}

// Validate checks the deployment for mistakes that would only surface halfway through a run.
// It does not reject the placeholder project; that is the prerequisite step's job.
func (d *DeploymentSpec) Validate() error {
	var errs []error
	if strings.TrimSpace(d.ProjectID) == "" {
		errs = append(errs, errors.New("project id is empty"))
	}
	if d.Region == "" {
		errs = append(errs, errors.New("region is empty"))
	}
	if len(d.APIs) == 0 {
		errs = append(errs, errors.New("at least one API must be listed"))
	}
	if !serviceAccountIDPattern.MatchString(d.ServiceAccount.AccountID) {
		errs = append(errs, fmt.Errorf("service account id %q must be 6-30 lowercase letters, digits or hyphens", d.ServiceAccount.AccountID))
	}
	for _, role := range d.ServiceAccount.ProjectRoles {
		if !strings.HasPrefix(role, "roles/") {
			errs = append(errs, fmt.Errorf("role %q must start with roles/", role))
		}
	}
	for _, bucket := range []servicemanager.GCSBucket{d.StagingBucket, d.TempBucket} {
		if !servicemanager.IsValidBucketName(bucket.Name) {
			errs = append(errs, fmt.Errorf("invalid bucket name %q", bucket.Name))
		}
	}
	if d.StagingBucket.Name == d.TempBucket.Name {
		errs = append(errs, fmt.Errorf("staging and temp buckets must differ, both are %q", d.StagingBucket.Name))
	}

	seen := make(map[string]struct{})
	for _, topic := range []string{d.Topics.Input, d.Topics.Output, d.Topics.Anomalies, d.Topics.Analytics, d.Topics.DeadLetter} {
		if topic == "" {
			errs = append(errs, errors.New("topic names cannot be empty"))
			continue
		}
		if _, dup := seen[topic]; dup {
			errs = append(errs, fmt.Errorf("topic %q is declared twice", topic))
		}
		seen[topic] = struct{}{}
	}
	if d.Subscription == "" {
		errs = append(errs, errors.New("subscription name is empty"))
	}
	if d.Pipeline.EntryPoint == "" || len(d.Pipeline.InstallCommand) == 0 {
		errs = append(errs, errors.New("pipeline entry point and install command must be set"))
	}
	if err := servicemanager.ValidatePubSubLimits(d.Resources()); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
