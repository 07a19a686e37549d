package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"auction-trust/internal/domain"

	_ "github.com/go-sql-driver/mysql"
	"github.com/spf13/cast"
)

const schema = `
    CREATE TABLE IF NOT EXISTS documents (
        collection VARCHAR(64)  NOT NULL,
        id         VARCHAR(191) NOT NULL,
        data       JSON         NOT NULL,
        updated_at DATETIME(3)  NOT NULL,
        PRIMARY KEY (collection, id)
    )
`

// Field names are interpolated into JSON paths, so only plain identifiers are allowed.
var fieldPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// DocumentStore keeps every collection in one JSON table. Partial updates use
// JSON_MERGE_PATCH, which also means a nil field value removes the field.
type DocumentStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewDocumentStore(db *sql.DB) *DocumentStore {
	return &DocumentStore{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (r *DocumentStore) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, schema)
	return err
}

func (r *DocumentStore) Get(ctx context.Context, collection, id string, _ domain.ReadMode) (domain.Document, error) {
	query := `SELECT data FROM documents WHERE collection = ? AND id = ?`

	var raw []byte
	err := r.db.QueryRowContext(ctx, query, collection, id).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	return decodeDocument(raw)
}

// Query filters in SQL and then re-checks each row with Predicate.Matches, since
// JSON_UNQUOTE compares numbers by their text form.
func (r *DocumentStore) Query(ctx context.Context, collection string, where domain.Predicate, _ domain.ReadMode) ([]domain.Snapshot, error) {
	var b strings.Builder
	b.WriteString(`SELECT id, data FROM documents WHERE collection = ?`)
	args := []interface{}{collection}

	for _, field := range where.Fields() {
		if !fieldPattern.MatchString(field) {
			return nil, fmt.Errorf("%w: %q", domain.ErrInvalidField, field)
		}
		value, err := cast.ToStringE(where[field])
		if err != nil {
			return nil, fmt.Errorf("unsupported value for %s: %w", field, err)
		}
		fmt.Fprintf(&b, ` AND JSON_UNQUOTE(JSON_EXTRACT(data, '$.%s')) = ?`, field)
		args = append(args, value)
	}
	b.WriteString(` ORDER BY id`)

	rows, err := r.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Snapshot
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		doc, err := decodeDocument(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s/%s: %w", collection, id, err)
		}
		if where.Matches(doc) {
			out = append(out, domain.Snapshot{ID: id, Data: doc})
		}
	}
	return out, rows.Err()
}

func (r *DocumentStore) Update(ctx context.Context, collection, id string, fields domain.Document) error {
	patch, err := json.Marshal(fields)
	if err != nil {
		return err
	}

	query := `
        UPDATE documents SET data = JSON_MERGE_PATCH(data, ?), updated_at = ?
        WHERE collection = ? AND id = ?
    `
	result, err := r.db.ExecContext(ctx, query, patch, r.now(), collection, id)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	// MySQL reports changed rows, not matched ones, so zero can mean "unchanged".
	var exists int
	err = r.db.QueryRowContext(ctx, `SELECT 1 FROM documents WHERE collection = ? AND id = ?`, collection, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrDocumentNotFound
	}
	return err
}

func (r *DocumentStore) Set(ctx context.Context, collection, id string, fields domain.Document, merge bool) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return err
	}

	query := `
        INSERT INTO documents (collection, id, data, updated_at) VALUES (?, ?, ?, ?)
        ON DUPLICATE KEY UPDATE data = VALUES(data), updated_at = VALUES(updated_at)
    `
	if merge {
		query = `
        INSERT INTO documents (collection, id, data, updated_at) VALUES (?, ?, ?, ?)
        ON DUPLICATE KEY UPDATE data = JSON_MERGE_PATCH(data, VALUES(data)), updated_at = VALUES(updated_at)
    `
	}

	_, err = r.db.ExecContext(ctx, query, collection, id, data, r.now())
	return err
}

func decodeDocument(raw []byte) (domain.Document, error) {
	var doc domain.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		doc = domain.Document{}
	}
	return doc, nil
}
