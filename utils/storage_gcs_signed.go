package utils

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/compute/metadata"
	"cloud.google.com/go/storage"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/iamcredentials/v1"
	"google.golang.org/api/option"
)

// UploadedByHeader is stored as object metadata so import logs can name the operator.
const UploadedByHeader = "x-goog-meta-uploaded-by"

type SignedUpload struct {
	UploadURL string            `json:"uploadUrl"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers"`
	Bucket    string            `json:"bucket"`
	ObjectKey string            `json:"objectKey"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

// urlSigner is either a service account key or the IAM SignBlob API acting as the
// runtime service account.
type urlSigner struct {
	email      string
	privateKey []byte
	signBytes  func([]byte) ([]byte, error)
}

var (
	signerMu sync.Mutex
	signer   *urlSigner
)

// SignUpload returns a V4 signed PUT URL so operators can drop a spreadsheet straight into
// an upload folder; the bucket notification then starts the import. The caller must send
// every returned header with the upload.
func SignUpload(ctx context.Context, bucket, objectKey, contentType string, expires time.Duration) (*SignedUpload, error) {
	if bucket == "" {
		bucket = strings.TrimSpace(os.Getenv("GCS_BUCKET"))
	}
	if bucket == "" {
		return nil, errors.New("GCS_BUCKET is required")
	}

	s, err := loadSigner(ctx)
	if err != nil {
		return nil, err
	}

	headers := map[string]string{"Content-Type": contentType}
	if username, ok := GetUsernameFromContext(ctx); ok && username != "" {
		headers[UploadedByHeader] = username
	}
	opts := &storage.SignedURLOptions{
		Scheme:         storage.SigningSchemeV4,
		Method:         http.MethodPut,
		Expires:        time.Now().Add(expires),
		ContentType:    contentType,
		GoogleAccessID: s.email,
		PrivateKey:     s.privateKey,
		SignBytes:      s.signBytes,
	}
	if v, ok := headers[UploadedByHeader]; ok {
		opts.Headers = []string{UploadedByHeader + ":" + v}
	}

	signedURL, err := storage.SignedURL(bucket, objectKey, opts)
	if err != nil {
		return nil, fmt.Errorf("sign gs://%s/%s: %w", bucket, objectKey, err)
	}
	return &SignedUpload{
		UploadURL: signedURL,
		Method:    opts.Method,
		Headers:   headers,
		Bucket:    bucket,
		ObjectKey: objectKey,
		ExpiresAt: opts.Expires,
	}, nil
}

// loadSigner resolves the signing identity once per process. A configured key wins over
// the IAM API.
func loadSigner(ctx context.Context) (*urlSigner, error) {
	signerMu.Lock()
	defer signerMu.Unlock()
	if signer != nil {
		return signer, nil
	}

	s, err := signerFromEnv()
	if err != nil {
		return nil, err
	}
	if s == nil {
		if s, err = iamSigner(ctx); err != nil {
			return nil, err
		}
	}
	signer = s
	return s, nil
}

func signerFromEnv() (*urlSigner, error) {
	if credJSON := strings.TrimSpace(os.Getenv("GCS_CREDENTIALS_JSON")); credJSON != "" {
		var key struct {
			ClientEmail string `json:"client_email"`
			PrivateKey  string `json:"private_key"`
		}
		if err := json.Unmarshal([]byte(credJSON), &key); err != nil {
			return nil, fmt.Errorf("invalid GCS_CREDENTIALS_JSON: %w", err)
		}
		if key.ClientEmail == "" || key.PrivateKey == "" {
			return nil, errors.New("GCS_CREDENTIALS_JSON missing client_email or private_key")
		}
		return &urlSigner{email: key.ClientEmail, privateKey: pemBytes(key.PrivateKey)}, nil
	}

	email := strings.TrimSpace(os.Getenv("GCS_SIGNER_EMAIL"))
	privateKey := strings.TrimSpace(os.Getenv("GCS_SIGNER_PRIVATE_KEY"))
	if email == "" || privateKey == "" {
		return nil, nil
	}
	return &urlSigner{email: email, privateKey: pemBytes(privateKey)}, nil
}

// pemBytes undoes the "\n" escaping keys get when pasted into env files.
func pemBytes(key string) []byte {
	return []byte(strings.ReplaceAll(key, "\\n", "\n"))
}

// iamSigner signs as the runtime service account, the normal case on Cloud Run.
func iamSigner(ctx context.Context) (*urlSigner, error) {
	email := strings.TrimSpace(os.Getenv("GCS_SIGNER_EMAIL"))
	if email == "" && metadata.OnGCE() {
		defaultEmail, err := metadata.Email("default")
		if err != nil {
			return nil, fmt.Errorf("default service account email: %w", err)
		}
		email = defaultEmail
	}
	if email == "" {
		return nil, errors.New("GCS_SIGNER_EMAIL is required when no private key is provided")
	}

	creds, err := google.FindDefaultCredentials(ctx, iamcredentials.CloudPlatformScope)
	if err != nil {
		return nil, fmt.Errorf("load default credentials: %w", err)
	}
	svc, err := iamcredentials.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("create iamcredentials service: %w", err)
	}

	resource := "projects/-/serviceAccounts/" + email
	return &urlSigner{
		email: email,
		signBytes: func(data []byte) ([]byte, error) {
			resp, err := svc.Projects.ServiceAccounts.SignBlob(resource, &iamcredentials.SignBlobRequest{
				Payload: base64.StdEncoding.EncodeToString(data),
			}).Do()
			if err != nil {
				return nil, err
			}
			return base64.StdEncoding.DecodeString(resp.SignedBlob)
		},
	}, nil
}
