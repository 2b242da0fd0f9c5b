package product

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/productdesk/pkg/config"
	pkgerrors "github.com/angelmondragon/productdesk/pkg/errors"
	"github.com/angelmondragon/productdesk/pkg/logger"
	"github.com/angelmondragon/productdesk/pkg/metrics"
)

// Messages shown as toasts.
const (
	MsgUploadFailed  = "Resim yüklenirken hata oluştu"
	MsgInsertFailed  = "Ürün eklenirken hata oluştu"
	MsgCreated       = "Ürün başarıyla eklendi!"
	MsgInProgress    = "Ürün ekleme işlemi devam ediyor"
	MsgImageTooLarge = "Resim en fazla %d MB olabilir"
	MsgImageType     = "Yalnızca PNG, JPG, GIF veya WEBP resimleri yüklenebilir"
	MsgUnexpected    = "Bir hata oluştu"
)

var (
	// ErrUpload marks a submission aborted because the image could not be stored.
	ErrUpload = errors.New("image upload failed")
	// ErrInsert marks a submission whose product row could not be written.
	ErrInsert = errors.New("product insert failed")
)

const (
	outcomeSuccess      = "success"
	outcomeInvalid      = "invalid"
	outcomeConflict     = "conflict"
	outcomeUploadFailed = "upload_failed"
	outcomeInsertFailed = "insert_failed"
	outcomeError        = "error"
)

// Uploader is the storage surface of a browser's backend client.
type Uploader interface {
	Upload(ctx context.Context, bucket, path string, body io.Reader, size int64, contentType string) error
	GetPublicURL(bucket, path string) string
}

// Inserter is the products table of a browser's backend client.
type Inserter interface {
	Insert(ctx context.Context, record any) error
}

type locker interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	SubmissionLockKey(browserID string) string
}

// Submission is one press of the add-product button.
type Submission struct {
	BrowserID string
	UserID    uuid.UUID
	Form      Form
	Image     *Image
	Storage   Uploader
	Table     Inserter
}

// ServiceParams wires the submission flow.
type ServiceParams struct {
	Locks      locker
	Storage    config.StorageConfig
	Submission config.SubmissionConfig
	Metrics    *metrics.SubmissionMetrics
	Logger     *logger.Logger
	Now        func() time.Time
}

// Service runs product submissions: validate, upload the image, insert the row.
type Service struct {
	locks    locker
	bucket   string
	prefix   string
	maxBytes int64
	lockTTL  time.Duration
	metrics  *metrics.SubmissionMetrics
	logg     *logger.Logger
	now      func() time.Time
	token    func() (string, error)
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Locks == nil {
		return nil, fmt.Errorf("lock store is required")
	}
	if strings.TrimSpace(params.Storage.Bucket) == "" {
		return nil, fmt.Errorf("storage bucket is required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	lockTTL := params.Submission.LockTTL
	if lockTTL <= 0 {
		lockTTL = 2 * time.Minute
	}
	return &Service{
		locks:    params.Locks,
		bucket:   params.Storage.Bucket,
		prefix:   params.Storage.Prefix,
		maxBytes: params.Submission.MaxUploadBytes(),
		lockTTL:  lockTTL,
		metrics:  params.Metrics,
		logg:     logg,
		now:      now,
		token:    randomToken,
	}, nil
}

// Submit runs the flow. Validation problems come back as VALIDATION_ERROR with per-field
// details; upload and insert failures wrap ErrUpload and ErrInsert respectively. An image
// stored before a failed insert is left in place.
func (s *Service) Submit(ctx context.Context, sub Submission) (out *Outcome, err error) {
	started := s.now()
	outcome := outcomeError
	ctx = s.logg.WithBrowserID(ctx, sub.BrowserID)
	defer func() {
		if r := recover(); r != nil {
			s.logg.Error(ctx, "product.submit_panic", fmt.Errorf("%v", r))
			out, err = nil, pkgerrors.New(pkgerrors.CodeInternal, MsgUnexpected)
			outcome = outcomeError
		}
		s.metrics.Observe(outcome, s.now().Sub(started))
	}()

	if sub.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if sub.Storage == nil || sub.Table == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "backend client is required")
	}

	form := sub.Form.Normalize()
	price, err := form.Validate()
	if err != nil {
		outcome = outcomeInvalid
		return nil, err
	}
	mediaType, err := s.checkImage(sub.Image)
	if err != nil {
		outcome = outcomeInvalid
		return nil, err
	}

	release, err := s.acquire(ctx, sub.BrowserID)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
			outcome = outcomeConflict
		}
		return nil, err
	}
	defer release()

	record := Record{
		Name:        form.Name,
		Description: form.Description,
		Price:       price,
		UserID:      sub.UserID,
	}

	var objectPath string
	if sub.Image != nil {
		objectPath, err = s.newImagePath(sub.Image.Filename, mediaType)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, MsgUnexpected)
		}
		if err := sub.Storage.Upload(ctx, s.bucket, objectPath, sub.Image.Body, sub.Image.Size, mediaType); err != nil {
			outcome = outcomeUploadFailed
			s.logg.Error(s.logg.WithField(ctx, "path", objectPath), "product.upload_failed", err)
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("%w: %w", ErrUpload, err), MsgUploadFailed)
		}
		record.ImageURL = sub.Storage.GetPublicURL(s.bucket, objectPath)
	}

	if err := sub.Table.Insert(ctx, &record); err != nil {
		outcome = outcomeInsertFailed
		s.logg.Error(ctx, "product.insert_failed", err)
		if objectPath != "" {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"bucket": s.bucket, "path": objectPath}), "product.orphaned_image")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("%w: %w", ErrInsert, err), MsgInsertFailed)
	}

	outcome = outcomeSuccess
	s.logg.Info(s.logg.WithField(ctx, "path", objectPath), "product.created")
	return &Outcome{Product: record, ImagePath: objectPath}, nil
}

func (s *Service) checkImage(img *Image) (string, error) {
	if img == nil {
		return "", nil
	}
	if s.maxBytes > 0 && img.Size > s.maxBytes {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(map[string]string{
			"image": fmt.Sprintf(MsgImageTooLarge, s.maxBytes>>20),
		})
	}
	mediaType, err := checkImageType(img.ContentType)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed").WithDetails(map[string]string{
			"image": MsgImageType,
		})
	}
	return mediaType, nil
}

func (s *Service) newImagePath(filename, mediaType string) (string, error) {
	token, err := s.token()
	if err != nil {
		return "", err
	}
	return imagePath(s.prefix, token, s.now(), imageExtension(filename, mediaType)), nil
}

// acquire takes the per-browser submission lock. The returned release survives ctx
// cancellation so a dropped request still frees the lock.
func (s *Service) acquire(ctx context.Context, browserID string) (func(), error) {
	if strings.TrimSpace(browserID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "browser session required")
	}
	key := s.locks.SubmissionLockKey(browserID)
	ok, err := s.locks.SetNX(ctx, key, s.now().UnixMilli(), s.lockTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, MsgUnexpected)
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, MsgInProgress)
	}
	return func() {
		if err := s.locks.Del(context.WithoutCancel(ctx), key); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "product.lock_release_failed")
		}
	}, nil
}
