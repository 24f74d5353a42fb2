package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// getGoogleClient initializes a Google Cloud Storage client
func getGoogleClient(ctx context.Context) (*storage.Client, error) {
	// Prefer ADC (Cloud Run service account / GOOGLE_APPLICATION_CREDENTIALS).
	// If you need to provide explicit JSON (e.g. locally), set GCS_CREDENTIALS_JSON.
	if credJSON := os.Getenv("GCS_CREDENTIALS_JSON"); strings.TrimSpace(credJSON) != "" {
		return storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
	}
	return storage.NewClient(ctx)
}

var ErrObjectTooLarge = errors.New("object too large")

// GCSFetcher downloads uploaded spreadsheets. MaxBytes caps how much of an object is
// read into memory; zero means no cap.
type GCSFetcher struct {
	Client   *storage.Client
	MaxBytes int64
}

func NewGCSFetcher(ctx context.Context, maxBytes int64) (*GCSFetcher, error) {
	client, err := getGoogleClient(ctx)
	if err != nil {
		return nil, err
	}
	return &GCSFetcher{Client: client, MaxBytes: maxBytes}, nil
}

func (f *GCSFetcher) Fetch(ctx context.Context, bucket, objectName string) ([]byte, error) {
	if bucket == "" {
		bucket = strings.TrimSpace(os.Getenv("GCS_BUCKET"))
	}
	if bucket == "" {
		return nil, errors.New("GCS_BUCKET is required")
	}

	reader, err := f.Client.Bucket(bucket).Object(objectName).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: gs://%s/%s", ErrorRecordNotFound, bucket, objectName)
		}
		return nil, err
	}
	defer reader.Close()

	var src io.Reader = reader
	if f.MaxBytes > 0 {
		src = io.LimitReader(reader, f.MaxBytes+1)
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("failed to read gs://%s/%s: %v", bucket, objectName, err)
	}
	if f.MaxBytes > 0 && int64(len(data)) > f.MaxBytes {
		return nil, fmt.Errorf("%w: gs://%s/%s exceeds %d bytes", ErrObjectTooLarge, bucket, objectName, f.MaxBytes)
	}
	return data, nil
}

func (f *GCSFetcher) Close() error {
	return f.Client.Close()
}
