package core

import (
	"strings"
)

// ExportMediaType is the media type of exported result lists
const ExportMediaType = "text/csv"

// Artifact is the downloadable content of one exported result list
type Artifact struct {
	Filename  string
	MediaType string
	Content   []byte
}

// ExportFilename returns the suggested file name for a tag
func ExportFilename(tag Bucket) string {
	return string(tag) + "-emails.csv"
}

// Export joins the addresses with newlines in their existing order. It never fails.
func Export(emails []string, tag Bucket) Artifact {
	return Artifact{
		Filename:  ExportFilename(tag),
		MediaType: ExportMediaType,
		Content:   []byte(strings.Join(emails, "\n")),
	}
}

// ExportAll produces one artifact per non-empty bucket of the snapshot
func ExportAll(snapshot ResultSnapshot) []Artifact {
	var artifacts []Artifact
	for _, tag := range []Bucket{BucketValid, BucketInvalid, BucketUnknown} {
		emails := snapshot.Emails(tag)
		if len(emails) == 0 {
			continue
		}
		artifacts = append(artifacts, Export(emails, tag))
	}
	return artifacts
}
