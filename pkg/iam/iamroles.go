package iam

import "fmt"

// Resource types understood by AddResourceIAMBinding.
const (
	ResourceGCSBucket          = "gcs_bucket"
	ResourcePubSubTopic        = "pubsub_topic"
	ResourcePubSubSubscription = "pubsub_subscription"
)

const (
	RoleDataflowWorker      = "roles/dataflow.worker"
	RoleDataflowDeveloper   = "roles/dataflow.developer"
	RolePubSubSubscriber    = "roles/pubsub.subscriber"
	RolePubSubPublisher     = "roles/pubsub.publisher"
	RoleStorageObjectAdmin  = "roles/storage.objectAdmin"
	RoleMonitoringWriter    = "roles/monitoring.metricWriter"
	RoleLoggingWriter       = "roles/logging.logWriter"
	serviceAccountDomainFmt = "%s@%s.iam.gserviceaccount.com"
)

// PipelineWorkerRoles are the project roles the streaming job's identity needs.
var PipelineWorkerRoles = []string{
	RoleDataflowWorker,
	RoleDataflowDeveloper,
	RolePubSubSubscriber,
	RolePubSubPublisher,
	RoleStorageObjectAdmin,
	RoleMonitoringWriter,
	RoleLoggingWriter,
}

// ServiceAccountEmail returns the email of a user-managed service account.
func ServiceAccountEmail(accountID, projectID string) string {
	return fmt.Sprintf(serviceAccountDomainFmt, accountID, projectID)
}

// ServiceAccountMember formats an email as an IAM policy member.
func ServiceAccountMember(email string) string {
	return "serviceAccount:" + email
}

// PubSubServiceAgent is the Google-managed identity that forwards dead-lettered messages.
func PubSubServiceAgent(projectNumber string) string {
	return fmt.Sprintf("service-%s@gcp-sa-pubsub.iam.gserviceaccount.com", projectNumber)
}
