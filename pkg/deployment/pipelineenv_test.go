package deployment_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ambicuity/Cloud-Native-Streaming-Data-Pipeline-for-Video-Analytics/pkg/deployment"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelineEnv_Environ(t *testing.T) {
	environ := testEnv().Environ()

	assert.Equal(t, []string{
		"GCP_PROJECT=proj",
		"GCP_REGION=us-central1",
		"STAGING_LOCATION=gs://proj-video-analytics-staging/staging",
		"TEMP_LOCATION=gs://proj-video-analytics-temp/temp",
		"INPUT_SUBSCRIPTION=projects/proj/subscriptions/video-analytics-input-sub",
		"OUTPUT_TOPIC=projects/proj/topics/video-analytics-output",
		"ANOMALY_TOPIC=projects/proj/topics/video-analytics-anomalies",
		"ANALYTICS_TOPIC=projects/proj/topics/video-analytics-analytics",
		"DEAD_LETTER_TOPIC=projects/proj/topics/video-analytics-dead-letter",
	}, environ)
}

func TestPipelineEnv_DotEnv(t *testing.T) {
	content, err := testEnv().DotEnv()
	require.NoError(t, err)

	assert.Contains(t, content, "GCP_PROJECT=\"proj\"\n")
	assert.Contains(t, content, "DEAD_LETTER_TOPIC=\"projects/proj/topics/video-analytics-dead-letter\"\n")

	parsed, err := godotenv.Unmarshal(content)
	require.NoError(t, err)
	assert.Equal(t, testEnv().Map(), parsed)
}

func TestPipelineEnv_WriteDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	env := testEnv()
	env.ProjectID = `acme "video" lab`

	require.NoError(t, env.WriteDotEnv(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	parsed, err := godotenv.Read(path)
	require.NoError(t, err)
	assert.Equal(t, `acme "video" lab`, parsed["GCP_PROJECT"])
	assert.Equal(t, env.Map(), parsed)
}

func TestResourcePaths(t *testing.T) {
	assert.Equal(t, "projects/p/topics/t", deployment.TopicPath("p", "t"))
	assert.Equal(t, "projects/p/subscriptions/s", deployment.SubscriptionPath("p", "s"))
	assert.Equal(t, "gs://b/staging", deployment.GCSPath("b", "staging"))
}
