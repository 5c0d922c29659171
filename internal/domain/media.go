package domain

import (
	"time"
)

// MediaDescriptor is the {name, key, url} triple handed back after an artifact
// is durably stored. The URL is valid for the provider active at upload time.
type MediaDescriptor struct {
	Name string `json:"name"`
	Key  string `json:"key"`
	URL  string `json:"url"`
}

// UploadContext says why a file is being uploaded. It selects the
// validation rules and the key prefix.
type UploadContext string

const (
	ContextProfilePic         UploadContext = "profilePic"
	ContextCertificate        UploadContext = "certificate"
	ContextCourseThumbnail    UploadContext = "courseThumbnail"
	ContextCourseGuidelines   UploadContext = "courseGuidelines"
	ContextCourseIntroduction UploadContext = "courseIntroduction"
	ContextLessonResource     UploadContext = "lessonResource"
)

// AllUploadContexts lists every known context in a stable order.
var AllUploadContexts = []UploadContext{
	ContextProfilePic,
	ContextCertificate,
	ContextCourseThumbnail,
	ContextCourseGuidelines,
	ContextCourseIntroduction,
	ContextLessonResource,
}

func (c UploadContext) Valid() bool {
	for _, known := range AllUploadContexts {
		if c == known {
			return true
		}
	}
	return false
}

// MediaAsset is the ledger entry written for every stored artifact.
// It is informational; the owning course/lesson/user record keeps the descriptor.
type MediaAsset struct {
	Key         string    `bson:"_id" json:"key"`
	Name        string    `bson:"name" json:"name"`
	URL         string    `bson:"url" json:"url"`
	Provider    Provider  `bson:"provider" json:"provider"`
	Source      string    `bson:"source" json:"source"` // UploadContext or upload kind
	ContentType string    `bson:"contentType" json:"contentType"`
	Size        int64     `bson:"size" json:"size"`
	Sha256      string    `bson:"sha256,omitempty" json:"sha256,omitempty"`
	OwnerID     string    `bson:"ownerId,omitempty" json:"ownerId,omitempty"`
	StoredAt    time.Time `bson:"storedAt" json:"storedAt"`
}
