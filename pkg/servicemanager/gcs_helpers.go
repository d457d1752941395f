package servicemanager

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	// gcsBucketValidationRegex is a sanity check on characters only. It does not
	// reject names shaped like IP addresses or containing "google".
	gcsBucketValidationRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9-_.]{1,61}[a-z0-9]$`)
	invalidBucketChars       = regexp.MustCompile(`[^a-z0-9-_.]+`)
)

const maxBucketNameLength = 63

// BucketNameFor derives a bucket name of the form "<project>-<suffix>", lowercased
// and with invalid characters replaced so it passes IsValidBucketName.
func BucketNameFor(projectID, suffix string) string {
	name := strings.ToLower(fmt.Sprintf("%s-%s", projectID, suffix))
	name = invalidBucketChars.ReplaceAllString(name, "-")
	return trimBucketName(name)
}

// GenerateTestBucketName creates a unique, valid GCS bucket name for integration tests.
func GenerateTestBucketName(prefix string) string {
	uniqueID := strings.ReplaceAll(uuid.New().String(), "-", "")
	return trimBucketName(strings.ToLower(fmt.Sprintf("%s-%s", prefix, uniqueID)))
}

func trimBucketName(name string) string {
	if len(name) > maxBucketNameLength {
		name = name[:maxBucketNameLength]
	}
	// A trimmed name must still end in a letter or digit.
	return strings.TrimRight(name, "-_.")
}

// IsValidBucketName checks if a given string is a plausible GCS bucket name.
func IsValidBucketName(name string) bool {
	if len(name) < 3 || len(name) > maxBucketNameLength {
		return false
	}
	return gcsBucketValidationRegex.MatchString(name)
}
