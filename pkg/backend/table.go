package backend

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"
)

// TableDriver inserts rows. token is the caller's access token ("" means anonymous).
type TableDriver interface {
	Insert(ctx context.Context, table string, record any, token string) error
}

// RESTTables writes through the backend's REST table API.
type RESTTables struct {
	rest *restClient
}

func (t *RESTTables) Insert(ctx context.Context, table string, record any, token string) error {
	if strings.TrimSpace(table) == "" {
		return fmt.Errorf("table is required")
	}
	_, err := t.rest.do(ctx, restRequest{
		method:   http.MethodPost,
		path:     "/rest/v1/" + escapePath(table),
		token:    token,
		jsonBody: []any{record},
		headers:  map[string]string{"Prefer": "return=minimal"},
	})
	return err
}

// GormTables writes through a direct SQL connection. record must be a pointer to a
// struct or a map.
type GormTables struct {
	db *gorm.DB
}

// NewGormTables wraps an open connection.
func NewGormTables(db *gorm.DB) *GormTables {
	return &GormTables{db: db}
}

func (t *GormTables) Insert(ctx context.Context, table string, record any, _ string) error {
	if strings.TrimSpace(table) == "" {
		return fmt.Errorf("table is required")
	}
	if err := t.db.WithContext(ctx).Table(table).Create(record).Error; err != nil {
		return fmt.Errorf("insert into %s: %w", table, err)
	}
	return nil
}

// Table is one table bound to a browser session.
type Table struct {
	name   string
	driver TableDriver
	auth   *AuthClient
}

// Insert writes record with the browser's current credentials.
func (t *Table) Insert(ctx context.Context, record any) error {
	token, err := t.auth.AccessToken(ctx)
	if err != nil {
		return err
	}
	return t.driver.Insert(ctx, t.name, record, token)
}
