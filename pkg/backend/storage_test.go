package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/productdesk/pkg/config"
	redisclient "github.com/angelmondragon/productdesk/pkg/redis"
)

type capturedRequest struct {
	method  string
	path    string
	headers http.Header
	body    []byte
}

type dataServer struct {
	mu       sync.Mutex
	requests []capturedRequest
	status   int
}

func newDataServer(t *testing.T) (*dataServer, *httptest.Server) {
	d := &dataServer{status: http.StatusOK}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		d.mu.Lock()
		d.requests = append(d.requests, capturedRequest{method: r.Method, path: r.URL.EscapedPath(), headers: r.Header.Clone(), body: body})
		status := d.status
		d.mu.Unlock()
		if status >= 300 {
			writeJSON(w, status, map[string]any{"statusCode": "403", "error": "Unauthorized", "message": "new row violates row-level security policy"})
			return
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return d, srv
}

func (d *dataServer) last() capturedRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.requests[len(d.requests)-1]
}

func TestStorageUploadUsesSessionToken(t *testing.T) {
	data, srv := newDataServer(t)
	sessions := newMemorySessions()
	require.NoError(t, sessions.Save(context.Background(), "browser-1", &Session{
		AccessToken: "user-token",
		ExpiresAt:   time.Now().Add(time.Hour).Unix(),
	}))
	client := newTestService(t, srv.URL, sessions).Client("browser-1")

	err := client.Storage().Upload(context.Background(), "products", "product-images/abc_1.png", strings.NewReader("png-bytes"), 9, "image/png")
	require.NoError(t, err)

	req := data.last()
	require.Equal(t, http.MethodPost, req.method)
	require.Equal(t, "/storage/v1/object/products/product-images/abc_1.png", req.path)
	require.Equal(t, "Bearer user-token", req.headers.Get("Authorization"))
	require.Equal(t, "anon", req.headers.Get("apikey"))
	require.Equal(t, "image/png", req.headers.Get("Content-Type"))
	require.Equal(t, "false", req.headers.Get("x-upsert"))
	require.Equal(t, "png-bytes", string(req.body))
}

func TestStorageUploadAnonymousFallsBackToAnonKey(t *testing.T) {
	data, srv := newDataServer(t)
	client := newTestService(t, srv.URL, newMemorySessions()).Client("browser-1")

	err := client.Storage().Upload(context.Background(), "products", "a.bin", strings.NewReader("x"), 1, "")
	require.NoError(t, err)

	req := data.last()
	require.Equal(t, "Bearer anon", req.headers.Get("Authorization"))
	require.Equal(t, "application/octet-stream", req.headers.Get("Content-Type"))
}

func TestStorageUploadSurfacesBackendMessage(t *testing.T) {
	data, srv := newDataServer(t)
	data.mu.Lock()
	data.status = http.StatusForbidden
	data.mu.Unlock()
	client := newTestService(t, srv.URL, newMemorySessions()).Client("browser-1")

	err := client.Storage().Upload(context.Background(), "products", "a.png", strings.NewReader("x"), 1, "image/png")
	require.EqualError(t, err, "new row violates row-level security policy")
}

func TestObjectValidation(t *testing.T) {
	s := &RESTStorage{}
	require.Error(t, s.Upload(context.Background(), Object{Path: "a", Body: strings.NewReader("")}, ""))
	require.Error(t, s.Upload(context.Background(), Object{Bucket: "b", Path: "/", Body: strings.NewReader("")}, ""))
	require.Error(t, s.Upload(context.Background(), Object{Bucket: "b", Path: "a"}, ""))
}

func TestPublicURL(t *testing.T) {
	got := PublicURL("https://abc.example.co/storage/v1/object/public/", "products", "product-images/k9x_1720000000000.jpg")
	require.Equal(t, "https://abc.example.co/storage/v1/object/public/products/product-images/k9x_1720000000000.jpg", got)

	svc := newTestService(t, "https://abc.example.co", newMemorySessions())
	require.Equal(t,
		"https://abc.example.co/storage/v1/object/public/products/a%20b.png",
		svc.Client("b").Storage().GetPublicURL("products", "a b.png"),
	)
}

func TestPublicURLHonoursConfiguredBase(t *testing.T) {
	svc, err := NewService(ServiceParams{
		Backend:  config.BackendConfig{URL: "https://abc.example.co", AnonKey: "anon"},
		Storage:  config.StorageConfig{PublicBaseURL: "https://cdn.example.com"},
		Sessions: newMemorySessions(),
	})
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example.com/products/x.png", svc.Client("b").Storage().GetPublicURL("products", "x.png"))
}

func TestRESTTableInsert(t *testing.T) {
	data, srv := newDataServer(t)
	sessions := newMemorySessions()
	require.NoError(t, sessions.Save(context.Background(), "browser-1", &Session{
		AccessToken: "user-token",
		ExpiresAt:   time.Now().Add(time.Hour).Unix(),
	}))
	client := newTestService(t, srv.URL, sessions).Client("browser-1")

	record := map[string]any{"name": "Kupa", "price": "12.5"}
	require.NoError(t, client.Table("products").Insert(context.Background(), record))

	req := data.last()
	require.Equal(t, "/rest/v1/products", req.path)
	require.Equal(t, "return=minimal", req.headers.Get("Prefer"))
	require.Equal(t, "Bearer user-token", req.headers.Get("Authorization"))

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(req.body, &rows))
	require.Len(t, rows, 1)
	require.Equal(t, "Kupa", rows[0]["name"])
}

type gormRow struct {
	ID    uint   `gorm:"primaryKey"`
	Name  string `gorm:"column:name"`
	Owner string `gorm:"column:owner"`
}

func TestGormTablesInsert(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, conn.Exec(`CREATE TABLE items (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL, owner TEXT NOT NULL)`).Error)

	tables := NewGormTables(conn)
	require.NoError(t, tables.Insert(context.Background(), "items", &gormRow{Name: "Kupa", Owner: "u1"}, ""))

	var count int64
	require.NoError(t, conn.Table("items").Where("name = ?", "Kupa").Count(&count).Error)
	require.EqualValues(t, 1, count)

	require.Error(t, tables.Insert(context.Background(), "missing_table", &gormRow{Name: "x"}, ""))
	require.Error(t, tables.Insert(context.Background(), " ", &gormRow{Name: "x"}, ""))
}

func TestRedisSessionStorage(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redisclient.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	store, err := NewRedisSessionStorage(client, time.Hour)
	require.NoError(t, err)

	ctx := context.Background()
	got, err := store.Load(ctx, "browser-1")
	require.NoError(t, err)
	require.Nil(t, got)

	require.NoError(t, store.Save(ctx, "browser-1", &Session{AccessToken: "tok", RefreshToken: "ref", ExpiresAt: 42}))
	require.True(t, mr.Exists("pd:auth:browser-1"))
	require.Equal(t, time.Hour, mr.TTL("pd:auth:browser-1"))

	got, err = store.Load(ctx, "browser-1")
	require.NoError(t, err)
	require.Equal(t, "tok", got.AccessToken)
	require.EqualValues(t, 42, got.ExpiresAt)

	require.NoError(t, store.Save(ctx, "browser-1", nil))
	require.False(t, mr.Exists("pd:auth:browser-1"))

	_, err = NewRedisSessionStorage(nil, time.Hour)
	require.Error(t, err)
}

func TestDecodeAPIError(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		raw     string
		code    string
		message string
	}{
		{"auth", 422, `{"code":422,"error_code":"weak_password","msg":"Password should be at least 6 characters"}`, "weak_password", "Password should be at least 6 characters"},
		{"oauth", 400, `{"error":"invalid_grant","error_description":"Invalid Refresh Token"}`, "invalid_grant", "Invalid Refresh Token"},
		{"rest", 409, `{"code":"23505","message":"duplicate key value"}`, "23505", "duplicate key value"},
		{"plain", 502, `upstream down`, "", "upstream down"},
		{"empty", 503, ``, "", "Service Unavailable"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := decodeAPIError(tc.status, []byte(tc.raw))
			require.Equal(t, tc.status, err.Status)
			require.Equal(t, tc.code, err.Code)
			require.Equal(t, tc.message, err.Message)
		})
	}
}
