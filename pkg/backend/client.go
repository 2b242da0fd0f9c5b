// Package backend is the client for the hosted backend service: auth, object storage and
// tables. One Service is shared by the process; Client values are bound to a single
// browser session.
package backend

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/productdesk/pkg/config"
	"github.com/angelmondragon/productdesk/pkg/logger"
)

// ServiceParams wires the process-wide backend dependencies. Objects and Tables default to
// the REST drivers when nil.
type ServiceParams struct {
	Backend    config.BackendConfig
	Storage    config.StorageConfig
	Sessions   SessionStorage
	Objects    ObjectStorage
	Tables     TableDriver
	HTTPClient *http.Client
	Logger     *logger.Logger
	Now        func() time.Time
}

// Service builds per-browser clients that share transport and drivers.
type Service struct {
	rest       *restClient
	sessions   SessionStorage
	objects    ObjectStorage
	tables     TableDriver
	publicBase string
	secret     string
	margin     time.Duration
	now        func() time.Time
	logg       *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	base := params.Backend.BaseURL()
	if base == "" {
		return nil, fmt.Errorf("backend url is required")
	}
	if strings.TrimSpace(params.Backend.AnonKey) == "" {
		return nil, fmt.Errorf("backend anon key is required")
	}
	if params.Sessions == nil {
		return nil, fmt.Errorf("session storage is required")
	}

	httpClient := params.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: params.Backend.Timeout}
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}

	rest := &restClient{baseURL: base, anonKey: params.Backend.AnonKey, http: httpClient}

	objects := params.Objects
	if objects == nil {
		objects = &RESTStorage{rest: rest}
	}
	tables := params.Tables
	if tables == nil {
		tables = &RESTTables{rest: rest}
	}

	publicBase := strings.TrimSpace(params.Storage.PublicBaseURL)
	if publicBase == "" {
		publicBase = base + "/storage/v1/object/public"
	}

	return &Service{
		rest:       rest,
		sessions:   params.Sessions,
		objects:    objects,
		tables:     tables,
		publicBase: publicBase,
		secret:     params.Backend.JWTSecret,
		margin:     params.Backend.RefreshMargin,
		now:        now,
		logg:       logg,
	}, nil
}

// Client returns a fresh client bound to browserID. Callers keep one per browser so that
// auth-state listeners see the events of that browser's sign-in and sign-out calls.
func (s *Service) Client(browserID string) *Client {
	authClient := &AuthClient{
		rest:    s.rest,
		storage: s.sessions,
		key:     browserID,
		secret:  s.secret,
		margin:  s.margin,
		now:     s.now,
		logg:    s.logg,
	}
	return &Client{
		auth: authClient,
		storage: &StorageClient{
			objects:    s.objects,
			auth:       authClient,
			publicBase: s.publicBase,
		},
		tables: s.tables,
	}
}

// Client is the backend handle of one browser session.
type Client struct {
	auth    *AuthClient
	storage *StorageClient
	tables  TableDriver
}

func (c *Client) Auth() *AuthClient {
	return c.auth
}

func (c *Client) Storage() *StorageClient {
	return c.storage
}

// Table returns the handle for the named table.
func (c *Client) Table(name string) *Table {
	return &Table{name: name, driver: c.tables, auth: c.auth}
}
