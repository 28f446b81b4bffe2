package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/dshills/spotvec/internal/embedder"
)

var (
	// ErrNotFound is returned when a collection or object doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when creating a collection that exists
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidQuery is returned for malformed queries and filters
	ErrInvalidQuery = errors.New("invalid query")
)

// SQLiteStore implements Store on SQLite. Objects are vectorized on write
// with the configured embedder.
type SQLiteStore struct {
	db       *sql.DB
	embedder embedder.Embedder
}

// openDatabase opens a SQLite database with WAL and foreign keys enabled.
func openDatabase(dbPath string) (*sql.DB, error) {
	if dbPath != ":memory:" && !strings.HasPrefix(dbPath, "file:") {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// single writer; also keeps ":memory:" on one connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStore opens dbPath, applies migrations and vectorizes with emb.
func NewSQLiteStore(dbPath string, emb embedder.Embedder) (*SQLiteStore, error) {
	if emb == nil {
		return nil, fmt.Errorf("%w: embedder is required", embedder.ErrNoProviderEnabled)
	}

	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	log.WithFields(log.Fields{
		"component": "storage",
		"path":      dbPath,
		"mode":      BuildMode,
		"embedder":  emb.Provider(),
	}).Debug("Store opened")

	return &SQLiteStore{db: db, embedder: emb}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ready pings the database.
func (s *SQLiteStore) Ready(ctx context.Context) (bool, error) {
	if err := s.db.PingContext(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// querier is satisfied by *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Collection operations

func (s *SQLiteStore) CreateCollection(ctx context.Context, c Collection) error {
	if c.Name == "" {
		return fmt.Errorf("%w: collection name is required", ErrInvalidQuery)
	}
	fields, err := json.Marshal(c.VectorizeFields)
	if err != nil {
		return fmt.Errorf("encode vectorize fields: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO collections (name, description, key_property, vectorize_fields)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO NOTHING
	`, c.Name, c.Description, c.KeyProperty, string(fields))
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", c.Name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("collection %s: %w", c.Name, ErrAlreadyExists)
	}
	return nil
}

// DeleteCollection removes a collection and all of its objects.
func (s *SQLiteStore) DeleteCollection(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM objects WHERE class = ?", name); err != nil {
		return fmt.Errorf("failed to delete objects of %s: %w", name, err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM collections WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("failed to delete collection %s: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("collection %s: %w", name, ErrNotFound)
	}
	return tx.Commit()
}

func (s *SQLiteStore) ListCollections(ctx context.Context) ([]Collection, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, description, key_property, vectorize_fields
		FROM collections ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Collection
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCollection(r rowScanner) (*Collection, error) {
	var c Collection
	var fields string
	if err := r.Scan(&c.Name, &c.Description, &c.KeyProperty, &fields); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(fields), &c.VectorizeFields); err != nil {
		return nil, fmt.Errorf("decode vectorize fields of %s: %w", c.Name, err)
	}
	return &c, nil
}

func (s *SQLiteStore) getCollection(ctx context.Context, q querier, name string) (*Collection, error) {
	row := q.QueryRowContext(ctx, `
		SELECT name, description, key_property, vectorize_fields
		FROM collections WHERE name = ?
	`, name)
	c, err := scanCollection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("collection %s: %w", name, ErrNotFound)
	}
	return c, err
}

// Object operations

// CreateObject vectorizes and writes obj, returning its id. An object whose
// key property matches a stored one replaces it and keeps the stored id.
func (s *SQLiteStore) CreateObject(ctx context.Context, obj *Object) (string, error) {
	c, err := s.getCollection(ctx, s.db, obj.Class)
	if err != nil {
		return "", err
	}

	text := vectorizeText(c, obj.Properties)
	obj.Vector = nil
	if text != "" {
		emb, err := s.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: text})
		if err != nil {
			return "", fmt.Errorf("vectorize object: %w", err)
		}
		obj.Vector = emb.Vector
	}

	return s.writeObject(ctx, s.db, c, obj)
}

// BatchCreate vectorizes all objects, then writes them in one transaction.
// Either every object is written or none is.
func (s *SQLiteStore) BatchCreate(ctx context.Context, objs []*Object) ([]string, error) {
	if len(objs) == 0 {
		return []string{}, nil
	}

	collections := make(map[string]*Collection)
	texts := make([]string, len(objs))
	for i, obj := range objs {
		c, ok := collections[obj.Class]
		if !ok {
			var err error
			if c, err = s.getCollection(ctx, s.db, obj.Class); err != nil {
				return nil, err
			}
			collections[obj.Class] = c
		}
		texts[i] = vectorizeText(c, obj.Properties)
		obj.Vector = nil
	}

	if err := s.vectorizeBatch(ctx, objs, texts); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	ids := make([]string, len(objs))
	for i, obj := range objs {
		id, err := s.writeObject(ctx, tx, collections[obj.Class], obj)
		if err != nil {
			return nil, fmt.Errorf("object %d: %w", i, err)
		}
		ids[i] = id
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit batch: %w", err)
	}
	return ids, nil
}

// vectorizeBatch embeds the non-empty texts in provider-sized batches.
func (s *SQLiteStore) vectorizeBatch(ctx context.Context, objs []*Object, texts []string) error {
	var pending []int
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		batch := make([]string, len(pending))
		for j, idx := range pending {
			batch[j] = texts[idx]
		}
		resp, err := s.embedder.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{Texts: batch})
		if err != nil {
			return fmt.Errorf("vectorize batch: %w", err)
		}
		for j, idx := range pending {
			objs[idx].Vector = resp.Embeddings[j].Vector
		}
		pending = pending[:0]
		return nil
	}

	for i, text := range texts {
		if text == "" {
			continue
		}
		pending = append(pending, i)
		if len(pending) == embedder.MaxBatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}

func (s *SQLiteStore) writeObject(ctx context.Context, q querier, c *Collection, obj *Object) (string, error) {
	props, err := json.Marshal(obj.Properties)
	if err != nil {
		return "", fmt.Errorf("encode properties: %w", err)
	}

	var key interface{}
	if c.KeyProperty != "" {
		if k, ok := obj.Properties[c.KeyProperty].(string); ok && k != "" {
			key = k
		}
	}

	var vector interface{}
	if len(obj.Vector) > 0 {
		vector = serializeVector(obj.Vector)
	}

	id := obj.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()

	var stored string
	err = q.QueryRowContext(ctx, `
		INSERT INTO objects (id, class, external_key, properties, vector, dimension, embedder, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(class, external_key) DO UPDATE SET
			properties = excluded.properties,
			vector = excluded.vector,
			dimension = excluded.dimension,
			embedder = excluded.embedder,
			updated_at = excluded.updated_at
		RETURNING id
	`, id, obj.Class, key, string(props), vector, len(obj.Vector),
		s.embedder.Provider()+"/"+s.embedder.Model(), now, now).Scan(&stored)
	if err != nil {
		return "", fmt.Errorf("failed to write object: %w", err)
	}

	obj.ID = stored
	if obj.CreatedAt.IsZero() {
		obj.CreatedAt = now
	}
	obj.UpdatedAt = now
	return stored, nil
}

func (s *SQLiteStore) GetObject(ctx context.Context, class, id string) (*Object, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, class, properties, vector, created_at, updated_at
		FROM objects WHERE class = ? AND id = ?
	`, class, id)
	obj, err := scanObject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("object %s/%s: %w", class, id, ErrNotFound)
	}
	return obj, err
}

func (s *SQLiteStore) Count(ctx context.Context, class string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM objects WHERE class = ?", class).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", class, err)
	}
	return n, nil
}

func scanObject(r rowScanner) (*Object, error) {
	var obj Object
	var props string
	var vector []byte
	if err := r.Scan(&obj.ID, &obj.Class, &props, &vector, &obj.CreatedAt, &obj.UpdatedAt); err != nil {
		return nil, err
	}
	if err := decodeObject(&obj, props, vector); err != nil {
		return nil, err
	}
	return &obj, nil
}

// Query

func (s *SQLiteStore) Query(ctx context.Context, q Query) ([]Hit, error) {
	if len(q.NearText) > 0 && q.NearObject != "" {
		return nil, fmt.Errorf("%w: near-text and near-object are exclusive", ErrInvalidQuery)
	}
	if _, err := s.getCollection(ctx, s.db, q.Class); err != nil {
		return nil, err
	}

	filter, filterArgs, err := compileWhere(q.Where)
	if err != nil {
		return nil, err
	}

	if !q.Ranked() {
		return s.listObjects(ctx, q, filter, filterArgs)
	}

	target, err := s.queryVector(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(target) == 0 {
		return []Hit{}, nil
	}
	return searchVector(ctx, s.db, q, target, filter, filterArgs)
}

func (s *SQLiteStore) queryVector(ctx context.Context, q Query) ([]float32, error) {
	if q.NearObject != "" {
		obj, err := s.GetObject(ctx, q.Class, q.NearObject)
		if err != nil {
			return nil, err
		}
		return obj.Vector, nil
	}

	text := strings.TrimSpace(strings.Join(q.NearText, " "))
	if text == "" {
		return nil, fmt.Errorf("%w: empty near-text concept", ErrInvalidQuery)
	}
	emb, err := s.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}
	return emb.Vector, nil
}

func (s *SQLiteStore) listObjects(ctx context.Context, q Query, filter string, filterArgs []interface{}) ([]Hit, error) {
	query := `
		SELECT id, class, properties, vector, created_at, updated_at
		FROM objects WHERE class = ?`
	args := []interface{}{q.Class}
	if filter != "" {
		query += " AND " + filter
		args = append(args, filterArgs...)
	}
	query += " ORDER BY rowid"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	hits := []Hit{}
	for rows.Next() {
		obj, err := scanObject(rows)
		if err != nil {
			return nil, err
		}
		hits = append(hits, Hit{Object: obj})
	}
	return hits, rows.Err()
}

// vectorizeText joins the collection's vectorize fields of props with
// single spaces. List values are space-joined.
func vectorizeText(c *Collection, props map[string]interface{}) string {
	parts := make([]string, 0, len(c.VectorizeFields))
	for _, field := range c.VectorizeFields {
		var text string
		switch v := props[field].(type) {
		case string:
			text = v
		case []string:
			text = strings.Join(v, " ")
		case []interface{}:
			words := make([]string, 0, len(v))
			for _, w := range v {
				if str, ok := w.(string); ok {
					words = append(words, str)
				}
			}
			text = strings.Join(words, " ")
		}
		if text = strings.TrimSpace(text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}
