// Package objectstore defines the binary object storage used by binary-bearing steps.
package objectstore

import "context"

// ObjectStore stores step binaries and hands out pre-signed URLs for them.
type ObjectStore interface {
	// Upload stores data under key with the given content type.
	Upload(ctx context.Context, key string, data []byte, mimeType string) error
	// UploadURL returns a pre-signed URL the client can PUT the object to.
	UploadURL(ctx context.Context, key string) (string, error)
	// DownloadURL returns a pre-signed URL the object can be fetched from.
	DownloadURL(ctx context.Context, key string) (string, error)
	// Delete removes the object. Deleting a missing key succeeds.
	Delete(ctx context.Context, key string) error
	// Exists reports whether an object is stored under key.
	Exists(ctx context.Context, key string) (bool, error)
	HealthCheck(ctx context.Context) error
}

// FaceIDKey is the object key of a face identity photo.
func FaceIDKey(stepID string) string {
	return "faceid/" + stepID
}

// SignatureKey is the object key of a signature image.
func SignatureKey(stepID string) string {
	return "signature/" + stepID
}
