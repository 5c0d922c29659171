package domain

import (
	"strings"
	"time"
)

// Provider names a storage backend or an external link kind.
type Provider string

const (
	ProviderLocal Provider = "local"
	ProviderS3    Provider = "s3"

	// External link kinds. These never hold bytes; the key itself is the
	// playable reference.
	ProviderYouTube  Provider = "youtube"
	ProviderVimeo    Provider = "vimeo"
	ProviderExternal Provider = "external"
)

// IsStorage reports whether p is a backend that can store bytes.
func (p Provider) IsStorage() bool {
	return p == ProviderLocal || p == ProviderS3
}

// StorageCredentials carries the object storage connection details.
// Ignored (and cleared on save) when the provider is local.
type StorageCredentials struct {
	Endpoint        string `bson:"endpoint,omitempty" json:"endpoint,omitempty"`
	Region          string `bson:"region" json:"region"`
	Bucket          string `bson:"bucket" json:"bucket"`
	AccessKeyID     string `bson:"accessKeyId" json:"accessKeyId"`
	SecretAccessKey string `bson:"secretAccessKey" json:"secretAccessKey"`
	CDNDomain       string `bson:"cdnDomain,omitempty" json:"cdnDomain,omitempty"`
	UsePathStyle    bool   `bson:"usePathStyle" json:"usePathStyle"`
}

// Missing returns the names of required fields that are blank.
func (c StorageCredentials) Missing() []string {
	var missing []string
	if strings.TrimSpace(c.Region) == "" {
		missing = append(missing, "region")
	}
	if strings.TrimSpace(c.Bucket) == "" {
		missing = append(missing, "bucket")
	}
	if strings.TrimSpace(c.AccessKeyID) == "" {
		missing = append(missing, "accessKeyId")
	}
	if strings.TrimSpace(c.SecretAccessKey) == "" {
		missing = append(missing, "secretAccessKey")
	}
	return missing
}

// StorageSettings is the single process-wide storage configuration record.
type StorageSettings struct {
	Provider    Provider            `bson:"provider" json:"provider"`
	Credentials *StorageCredentials `bson:"credentials,omitempty" json:"credentials,omitempty"`
	UpdatedAt   time.Time           `bson:"updatedAt" json:"updatedAt"`
	UpdatedBy   string              `bson:"updatedBy,omitempty" json:"updatedBy,omitempty"`
}

// Masked returns a copy safe to hand back to an admin client.
func (s StorageSettings) Masked() StorageSettings {
	if s.Credentials == nil {
		return s
	}
	creds := *s.Credentials
	if creds.SecretAccessKey != "" {
		creds.SecretAccessKey = "********"
	}
	s.Credentials = &creds
	return s
}
