package prerequisites

import (
	"github.com/ambicuity/Cloud-Native-Streaming-Data-Pipeline-for-Video-Analytics/pkg/servicemanager"
)

const (
	apiPubSub  = "pubsub.googleapis.com"
	apiStorage = "storage.googleapis.com"
)

// PrerequisitePlanner determines the ordered set of Google Cloud APIs a deployment needs.
type PrerequisitePlanner struct{}

// NewPlanner creates a new PrerequisitePlanner.
func NewPlanner() *PrerequisitePlanner {
	return &PrerequisitePlanner{}
}

// PlanRequiredServices returns the declared APIs in order, followed by any API implied
// by the resources but not declared. Duplicates and empty names are dropped.
func (p *PrerequisitePlanner) PlanRequiredServices(declared []string, resources servicemanager.CloudResourcesSpec) []string {
	seen := make(map[string]struct{}, len(declared)+2)
	apiList := make([]string, 0, len(declared)+2)
	add := func(api string) {
		if api == "" {
			return
		}
		if _, ok := seen[api]; ok {
			return
		}
		seen[api] = struct{}{}
		apiList = append(apiList, api)
	}

	for _, api := range declared {
		add(api)
	}
	if len(resources.Topics) > 0 || len(resources.Subscriptions) > 0 {
		add(apiPubSub)
	}
	if len(resources.GCSBuckets) > 0 {
		add(apiStorage)
	}
	return apiList
}
