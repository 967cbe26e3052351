package gcsuploader

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

const uploadTimeout = 2 * time.Minute

// GCSStorageService reads input extracts from and publishes output files to
// Google Cloud Storage. It assumes Application Default Credentials.
type GCSStorageService struct {
	client *storage.Client
}

// NewGCSStorageService creates a service with a shared storage client.
func NewGCSStorageService(ctx context.Context) (*GCSStorageService, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewGCSStorageService: create storage client: %w", err)
	}
	return &GCSStorageService{client: client}, nil
}

// Close closes the storage client.
func (s *GCSStorageService) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// UploadFile uploads a local file to bucketName/objectName.
// The object is only created if it does not exist yet.
func (s *GCSStorageService) UploadFile(ctx context.Context, bucketName, objectName, filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("UploadFile: open file %q: %w", filePath, err)
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	obj := s.client.Bucket(bucketName).Object(objectName).If(storage.Conditions{DoesNotExist: true})
	w := obj.NewWriter(ctx)
	w.ContentType = "text/csv"

	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return fmt.Errorf("UploadFile: copy to %s: %w", ObjectURI(bucketName, objectName), err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("UploadFile: finalize %s: %w", ObjectURI(bucketName, objectName), err)
	}
	return nil
}

// FetchFromGCS downloads the bytes of a gs://bucket/object URI.
func (s *GCSStorageService) FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	bucketName, objectName, err := ParseGCSURI(gcsURI)
	if err != nil {
		return nil, err
	}

	rc, err := s.client.Bucket(bucketName).Object(objectName).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("FetchFromGCS: reading object %s/%s: %w", bucketName, objectName, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("FetchFromGCS: reading bytes: %w", err)
	}
	return data, nil
}

// ParseGCSURI splits "gs://bucket/path/to/object" into bucket and object.
func ParseGCSURI(uri string) (bucketName, objectName string, err error) {
	trimmed, ok := strings.CutPrefix(uri, "gs://")
	if !ok {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

// ObjectName joins an optional prefix and a file name into an object name.
func ObjectName(prefix, fileName string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return fileName
	}
	return path.Join(prefix, fileName)
}

// ObjectURI renders bucket and object as a gs:// URI.
func ObjectURI(bucketName, objectName string) string {
	return fmt.Sprintf("gs://%s/%s", bucketName, objectName)
}
