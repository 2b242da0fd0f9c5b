package backend

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Object is one file handed to an ObjectStorage driver.
type Object struct {
	Bucket      string
	Path        string
	Body        io.Reader
	Size        int64
	ContentType string
}

func (o Object) validate() error {
	if strings.TrimSpace(o.Bucket) == "" {
		return fmt.Errorf("bucket is required")
	}
	if strings.Trim(o.Path, "/ ") == "" {
		return fmt.Errorf("object path is required")
	}
	if o.Body == nil {
		return fmt.Errorf("object body is required")
	}
	return nil
}

// ObjectStorage uploads objects. token is the caller's access token ("" means anonymous).
type ObjectStorage interface {
	Upload(ctx context.Context, obj Object, token string) error
}

// RESTStorage uploads through the backend's storage HTTP API.
type RESTStorage struct {
	rest *restClient
}

func (s *RESTStorage) Upload(ctx context.Context, obj Object, token string) error {
	if err := obj.validate(); err != nil {
		return err
	}
	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.rest.do(ctx, restRequest{
		method:      http.MethodPost,
		path:        "/storage/v1/object/" + escapePath(obj.Bucket) + "/" + escapePath(obj.Path),
		token:       token,
		body:        obj.Body,
		contentType: contentType,
		headers: map[string]string{
			"x-upsert":      "false",
			"cache-control": "max-age=3600",
		},
	})
	return err
}

// PublicURL joins the public object base, bucket and path.
func PublicURL(base, bucket, path string) string {
	return strings.TrimRight(base, "/") + "/" + escapePath(bucket) + "/" + escapePath(path)
}

// StorageClient is the storage surface bound to one browser session.
type StorageClient struct {
	objects    ObjectStorage
	auth       *AuthClient
	publicBase string
}

// Upload stores body at bucket/path using the browser's current credentials.
func (s *StorageClient) Upload(ctx context.Context, bucket, path string, body io.Reader, size int64, contentType string) error {
	token, err := s.auth.AccessToken(ctx)
	if err != nil {
		return err
	}
	return s.objects.Upload(ctx, Object{
		Bucket:      bucket,
		Path:        path,
		Body:        body,
		Size:        size,
		ContentType: contentType,
	}, token)
}

// GetPublicURL resolves where an uploaded object can be fetched without credentials.
func (s *StorageClient) GetPublicURL(bucket, path string) string {
	return PublicURL(s.publicBase, bucket, path)
}
