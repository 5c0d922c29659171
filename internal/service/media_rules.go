package service

import (
	"fmt"
	"strings"

	"alcyxob/course-media/internal/domain"
	"alcyxob/course-media/internal/storage"
)

const (
	MiB int64 = 1 << 20
	GiB int64 = 1 << 30
)

type mediaKind string

const (
	kindImage    mediaKind = "image"
	kindDocument mediaKind = "document"
	kindArchive  mediaKind = "archive"
	kindVideo    mediaKind = "video"
)

var kindTypes = map[mediaKind][]string{
	kindImage: {
		"image/jpeg", "image/png", "image/gif", "image/webp", "image/bmp",
		"image/tiff", "image/svg+xml", "image/heic", "image/avif",
	},
	kindDocument: {
		"application/pdf",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/vnd.ms-excel",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"application/vnd.ms-powerpoint",
		"application/vnd.openxmlformats-officedocument.presentationml.presentation",
		"application/vnd.oasis.opendocument.text",
		"text/plain",
		"text/csv",
	},
	kindArchive: {
		"application/zip", "application/x-rar-compressed", "application/x-7z-compressed",
		"application/gzip", "application/x-tar", "application/x-bzip2", "application/x-xz",
	},
	kindVideo: {
		"video/mp4", "video/webm", "video/quicktime", "video/x-matroska", "video/x-msvideo",
		"video/mpeg", "video/x-m4v", "video/3gpp", "video/x-flv",
	},
}

// uploadRule is what a context may upload. maxBytes of 0 means the generic ceiling.
type uploadRule struct {
	kinds    []mediaKind
	maxBytes int64
	prefix   func(in MediaUpload) (string, error)
}

var uploadRules = map[domain.UploadContext]uploadRule{
	domain.ContextProfilePic: {
		kinds:    []mediaKind{kindImage},
		maxBytes: 5 * MiB,
		prefix:   userPrefix("profile-pics"),
	},
	domain.ContextCertificate: {
		kinds:    []mediaKind{kindImage, kindDocument},
		maxBytes: 20 * MiB,
		prefix:   userPrefix("certificates"),
	},
	domain.ContextCourseThumbnail: {
		kinds:  []mediaKind{kindImage},
		prefix: coursePrefix("thumbnails"),
	},
	domain.ContextCourseGuidelines: {
		kinds:    []mediaKind{kindDocument, kindArchive},
		maxBytes: 500 * MiB,
		prefix:   coursePrefix("guidelines"),
	},
	domain.ContextCourseIntroduction: {
		kinds:    []mediaKind{kindVideo, kindImage},
		maxBytes: 5 * GiB,
		prefix:   coursePrefix("introduction"),
	},
	domain.ContextLessonResource: {
		kinds:    []mediaKind{kindDocument, kindArchive},
		maxBytes: 500 * MiB,
		prefix: func(in MediaUpload) (string, error) {
			courseID, err := cleanID("courseId", in.CourseID)
			if err != nil {
				return "", err
			}
			lessonID, err := cleanID("lessonId", in.LessonID)
			if err != nil {
				return "", err
			}
			return "courses/" + courseID + "/lessons/" + lessonID + "/resources", nil
		},
	},
}

func (r uploadRule) allowedTypes() []string {
	var types []string
	for _, k := range r.kinds {
		types = append(types, kindTypes[k]...)
	}
	return types
}

func (r uploadRule) limit(generic int64) int64 {
	if r.maxBytes > 0 {
		return r.maxBytes
	}
	return generic
}

func userPrefix(category string) func(MediaUpload) (string, error) {
	return func(in MediaUpload) (string, error) {
		userID, err := cleanID("userId", in.UserID)
		if err != nil {
			return "", err
		}
		return "users/" + userID + "/" + category, nil
	}
}

func coursePrefix(category string) func(MediaUpload) (string, error) {
	return func(in MediaUpload) (string, error) {
		courseID, err := cleanID("courseId", in.CourseID)
		if err != nil {
			return "", err
		}
		return "courses/" + courseID + "/" + category, nil
	}
}

// cleanID applies the filename character rule to an id used as a path segment.
func cleanID(field, id string) (string, error) {
	cleaned := storage.SanitizeSegment(strings.TrimSpace(id))
	if strings.Trim(cleaned, ".") == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingEntityID, field)
	}
	return cleaned, nil
}

// timestampedName is {unixMillis}-{sanitized filename}.
func timestampedName(millis int64, filename string) string {
	return fmt.Sprintf("%d-%s", millis, storage.SanitizeName(filename))
}
