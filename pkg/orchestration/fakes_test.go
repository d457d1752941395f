package orchestration_test

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"sync"

	"github.com/ambicuity/Cloud-Native-Streaming-Data-Pipeline-for-Video-Analytics/pkg/config"
	"github.com/ambicuity/Cloud-Native-Streaming-Data-Pipeline-for-Video-Analytics/pkg/deployment"
	"github.com/ambicuity/Cloud-Native-Streaming-Data-Pipeline-for-Video-Analytics/pkg/iam"
	"github.com/ambicuity/Cloud-Native-Streaming-Data-Pipeline-for-Video-Analytics/pkg/orchestration"
	"github.com/ambicuity/Cloud-Native-Streaming-Data-Pipeline-for-Video-Analytics/pkg/prerequisites"
	"github.com/ambicuity/Cloud-Native-Streaming-Data-Pipeline-for-Video-Analytics/pkg/servicemanager"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// fakeCloud is an in-memory project. Every client call is recorded in calls as
// "<verb>:<resource>" so tests can assert on what a run touched.
type fakeCloud struct {
	mu sync.Mutex

	calls         []string
	enabledAPIs   map[string]struct{}
	accounts      map[string]struct{}
	projectGrants map[string]struct{}
	buckets       map[string]servicemanager.BucketAttributes
	topics        map[string]struct{}
	subscriptions map[string]servicemanager.SubscriptionConfig

	failEnable string
}

func newFakeCloud() *fakeCloud {
	return &fakeCloud{
		enabledAPIs:   make(map[string]struct{}),
		accounts:      make(map[string]struct{}),
		projectGrants: make(map[string]struct{}),
		buckets:       make(map[string]servicemanager.BucketAttributes),
		topics:        make(map[string]struct{}),
		subscriptions: make(map[string]servicemanager.SubscriptionConfig),
	}
}

func (f *fakeCloud) record(format string, args ...any) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

// count returns how many recorded calls start with prefix.
func (f *fakeCloud) count(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (f *fakeCloud) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

func notFound(what string) error {
	return status.Error(codes.NotFound, what+" not found")
}

// --- Service Usage ---

type fakeServiceAPIs struct{ *fakeCloud }

func (f fakeServiceAPIs) GetEnabledServices(_ context.Context, _ string) (map[string]struct{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("list:apis")
	return maps.Clone(f.enabledAPIs), nil
}

func (f fakeServiceAPIs) EnableService(_ context.Context, _ string, service string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("enable:%s", service)
	if service == f.failEnable {
		return status.Error(codes.PermissionDenied, "serviceusage.services.enable denied")
	}
	f.enabledAPIs[service] = struct{}{}
	return nil
}

func (f fakeServiceAPIs) Close() error { return nil }

// --- IAM ---

type fakeIAM struct {
	*fakeCloud
	projectID string
}

func (f fakeIAM) EnsureServiceAccount(_ context.Context, accountID, _ string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	email := iam.ServiceAccountEmail(accountID, f.projectID)
	f.record("get:serviceaccount/%s", accountID)
	if _, ok := f.accounts[email]; ok {
		return email, false, nil
	}
	f.record("create:serviceaccount/%s", accountID)
	f.accounts[email] = struct{}{}
	return email, true, nil
}

func (f fakeIAM) GetServiceAccount(_ context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.accounts[email]; !ok {
		return notFound(email)
	}
	return nil
}

func (f fakeIAM) DeleteServiceAccount(_ context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("delete:serviceaccount/%s", email)
	delete(f.accounts, email)
	return nil
}

func (f fakeIAM) AddProjectIAMBinding(_ context.Context, member, role string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("grant:project:%s:%s", role, member)
	f.projectGrants[member+"|"+role] = struct{}{}
	return nil
}

func (f fakeIAM) CheckProjectIAMBinding(_ context.Context, member, role string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.projectGrants[member+"|"+role]
	return ok, nil
}

func (f fakeIAM) ProjectNumber(_ context.Context) (string, error) { return "123456789", nil }

func (f fakeIAM) AddResourceIAMBinding(_ context.Context, binding iam.IAMBinding, member string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("grant:%s/%s:%s:%s", binding.ResourceType, binding.ResourceID, binding.Role, member)
	return nil
}

func (f fakeIAM) Close() error { return nil }

// --- Storage ---

type fakeStorage struct{ *fakeCloud }

func (f fakeStorage) Bucket(name string) servicemanager.StorageBucketHandle {
	return fakeBucket{fakeCloud: f.fakeCloud, name: name}
}

func (f fakeStorage) Close() error { return nil }

type fakeBucket struct {
	*fakeCloud
	name string
}

func (b fakeBucket) Attrs(_ context.Context) (*servicemanager.BucketAttributes, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("get:bucket/%s", b.name)
	attrs, ok := b.buckets[b.name]
	if !ok {
		return nil, servicemanager.ErrBucketNotExist
	}
	return &attrs, nil
}

func (b fakeBucket) Create(_ context.Context, _ string, attrs *servicemanager.BucketAttributes) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("create:bucket/%s", b.name)
	if _, ok := b.buckets[b.name]; ok {
		return status.Error(codes.AlreadyExists, "bucket exists")
	}
	b.buckets[b.name] = *attrs
	return nil
}

func (b fakeBucket) Delete(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("delete:bucket/%s", b.name)
	if _, ok := b.buckets[b.name]; !ok {
		return servicemanager.ErrBucketNotExist
	}
	delete(b.buckets, b.name)
	return nil
}

// --- Pub/Sub ---

type fakeMessaging struct{ *fakeCloud }

type fakeTopic struct {
	*fakeCloud
	id string
}

func (t fakeTopic) ID() string { return t.id }

func (t fakeTopic) Exists(_ context.Context) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.topics[t.id]
	return ok, nil
}

func (t fakeTopic) Delete(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.record("delete:topic/%s", t.id)
	if _, ok := t.topics[t.id]; !ok {
		return notFound(t.id)
	}
	delete(t.topics, t.id)
	return nil
}

type fakeSubscription struct {
	*fakeCloud
	id string
}

func (s fakeSubscription) ID() string { return s.id }

func (s fakeSubscription) Exists(_ context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.subscriptions[s.id]
	return ok, nil
}

func (s fakeSubscription) Config(_ context.Context) (*servicemanager.SubscriptionConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.subscriptions[s.id]
	if !ok {
		return nil, notFound(s.id)
	}
	return &cfg, nil
}

func (s fakeSubscription) Delete(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("delete:subscription/%s", s.id)
	if _, ok := s.subscriptions[s.id]; !ok {
		return notFound(s.id)
	}
	delete(s.subscriptions, s.id)
	return nil
}

func (f fakeMessaging) Topic(id string) servicemanager.MessagingTopic {
	return fakeTopic{fakeCloud: f.fakeCloud, id: id}
}

func (f fakeMessaging) Subscription(id string) servicemanager.MessagingSubscription {
	return fakeSubscription{fakeCloud: f.fakeCloud, id: id}
}

func (f fakeMessaging) CreateTopicWithConfig(_ context.Context, spec servicemanager.TopicConfig) (servicemanager.MessagingTopic, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("create:topic/%s", spec.Name)
	f.topics[spec.Name] = struct{}{}
	return fakeTopic{fakeCloud: f.fakeCloud, id: spec.Name}, nil
}

func (f fakeMessaging) CreateSubscription(_ context.Context, spec servicemanager.SubscriptionConfig) (servicemanager.MessagingSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("create:subscription/%s", spec.Name)
	f.subscriptions[spec.Name] = spec
	return fakeSubscription{fakeCloud: f.fakeCloud, id: spec.Name}, nil
}

func (f fakeMessaging) Validate(resources servicemanager.CloudResourcesSpec) error {
	return servicemanager.ValidatePubSubLimits(resources)
}

func (f fakeMessaging) Close() error { return nil }

// --- Local tools ---

type fakeRunner struct {
	*fakeCloud
	runErr error
}

func (r fakeRunner) Run(_ context.Context, cmd deployment.Command) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cmd.Name == "gcloud" {
		r.record("local:%s", cmd.String())
		return []byte("dev@acme.com\n"), nil
	}
	r.record("run:%s", cmd.String())
	if r.runErr != nil {
		return []byte("pip: command failed"), r.runErr
	}
	return nil, nil
}

func (r fakeRunner) LookPath(name string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("local:lookpath %s", name)
	return "/usr/bin/" + name, nil
}

func fakeCredentials(context.Context, ...string) (*google.Credentials, error) {
	return &google.Credentials{}, nil
}

// fakeManagers wires the real managers onto the in-memory cloud.
func fakeManagers(cloud *fakeCloud, spec *config.DeploymentSpec, runErr error) (orchestration.Managers, error) {
	logger := zerolog.Nop()
	env := spec.Environment()
	runner := fakeRunner{fakeCloud: cloud, runErr: runErr}

	identity, err := iam.NewIAMManager(fakeIAM{fakeCloud: cloud, projectID: spec.ProjectID}, logger)
	if err != nil {
		return orchestration.Managers{}, err
	}
	storage, err := servicemanager.NewStorageManager(fakeStorage{cloud}, logger, env)
	if err != nil {
		return orchestration.Managers{}, err
	}
	messaging, err := servicemanager.NewMessagingManager(fakeMessaging{cloud}, logger, env)
	if err != nil {
		return orchestration.Managers{}, err
	}
	invoker, err := deployment.NewInvoker(runner, logger)
	if err != nil {
		return orchestration.Managers{}, err
	}
	return orchestration.Managers{
		Checker:   prerequisites.NewChecker(runner, fakeCredentials, logger),
		APIs:      prerequisites.NewManager(fakeServiceAPIs{cloud}, logger),
		Identity:  identity,
		Storage:   storage,
		Messaging: messaging,
		Deployer:  invoker,
	}, nil
}

var errPipInstall = errors.New("exit status 1")
