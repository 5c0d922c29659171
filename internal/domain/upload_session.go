package domain

import (
	"time"
)

// UploadKind is the closed set of categories a chunked upload may declare.
type UploadKind string

const (
	KindImages       UploadKind = "images"
	KindVideos       UploadKind = "videos"
	KindDocuments    UploadKind = "documents"
	KindArchives     UploadKind = "archives"
	KindAssets       UploadKind = "assets"
	KindIntroduction UploadKind = "introduction"
)

func (k UploadKind) Valid() bool {
	switch k {
	case KindImages, KindVideos, KindDocuments, KindArchives, KindAssets, KindIntroduction:
		return true
	}
	return false
}

// SessionState tracks where an upload session is in its lifecycle. A
// finalized session has no state: its staging directory is gone.
type SessionState string

const (
	SessionInitialized SessionState = "initialized"
	SessionReceiving   SessionState = "receiving"
	SessionMerged      SessionState = "merged"
)

// SessionMeta is written once on init and never changes afterwards.
type SessionMeta struct {
	CourseID  string     `json:"courseId"`
	LessonID  string     `json:"lessonId,omitempty"`
	Kind      UploadKind `json:"kind"`
	Filename  string     `json:"filename"`
	Mime      string     `json:"mime,omitempty"`
	Size      int64      `json:"size"`
	Sha256    string     `json:"sha256,omitempty"`
	OwnerID   string     `json:"ownerId,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// SessionStatus is the mutable side of a session.
type SessionStatus struct {
	State     SessionState `json:"state"`
	UpdatedAt time.Time    `json:"updatedAt"`
	Size      int64        `json:"size,omitempty"`   // merged size, set by complete
	Sha256    string       `json:"sha256,omitempty"` // actual checksum, set by complete
}

// UploadSession is the combined view returned to callers.
type UploadSession struct {
	ID     string        `json:"uploadId"`
	Meta   SessionMeta   `json:"meta"`
	Status SessionStatus `json:"status"`
	Parts  []int         `json:"parts"`
}
