package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStorageCredentialsMissing(t *testing.T) {
	assert.Equal(t, []string{"region", "bucket", "accessKeyId", "secretAccessKey"}, StorageCredentials{}.Missing())
	assert.Empty(t, StorageCredentials{Region: "r", Bucket: "b", AccessKeyID: "a", SecretAccessKey: "s"}.Missing())
	assert.Equal(t, []string{"bucket"}, StorageCredentials{Region: "r", Bucket: "  ", AccessKeyID: "a", SecretAccessKey: "s"}.Missing())
}

func TestStorageSettingsMaskedLeavesOriginalIntact(t *testing.T) {
	settings := StorageSettings{
		Provider:    ProviderS3,
		Credentials: &StorageCredentials{AccessKeyID: "AK", SecretAccessKey: "secret"},
	}

	masked := settings.Masked()

	assert.Equal(t, "********", masked.Credentials.SecretAccessKey)
	assert.Equal(t, "AK", masked.Credentials.AccessKeyID)
	assert.Equal(t, "secret", settings.Credentials.SecretAccessKey)
	assert.Nil(t, StorageSettings{Provider: ProviderLocal}.Masked().Credentials)
}

func TestProviderIsStorage(t *testing.T) {
	assert.True(t, ProviderLocal.IsStorage())
	assert.True(t, ProviderS3.IsStorage())
	assert.False(t, ProviderYouTube.IsStorage())
	assert.False(t, Provider("gcs").IsStorage())
}
