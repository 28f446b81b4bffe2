package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
)

// searchVector ranks the class's vectorized objects by cosine similarity to
// target.
func searchVector(ctx context.Context, db *sql.DB, q Query, target []float32, filter string, filterArgs []interface{}) ([]Hit, error) {
	if VectorExtensionAvailable {
		return searchVectorOptimized(ctx, db, q, target, filter, filterArgs)
	}
	return searchVectorFallback(ctx, db, q, target, filter, filterArgs)
}

// searchVectorOptimized lets sqlite-vec compute distances and apply the limit.
func searchVectorOptimized(ctx context.Context, db *sql.DB, q Query, target []float32, filter string, filterArgs []interface{}) ([]Hit, error) {
	blob := serializeVector(target)

	// vec_distance_cosine is a distance; 1 - distance is the similarity
	query := `
		SELECT id, class, properties, vector, created_at, updated_at,
		       1.0 - vec_distance_cosine(vector, ?) AS similarity
		FROM objects
		WHERE class = ? AND vector IS NOT NULL AND dimension = ?`
	args := []interface{}{blob, q.Class, len(target)}
	if filter != "" {
		query += " AND " + filter
		args = append(args, filterArgs...)
	}
	query += " ORDER BY similarity DESC, rowid"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute vector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	hits := []Hit{}
	for rows.Next() {
		var obj Object
		var props string
		var vector []byte
		var similarity float64
		if err := rows.Scan(&obj.ID, &obj.Class, &props, &vector, &obj.CreatedAt, &obj.UpdatedAt, &similarity); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		if err := decodeObject(&obj, props, vector); err != nil {
			return nil, err
		}
		c := certainty(similarity)
		hits = append(hits, Hit{Object: &obj, Certainty: &c})
	}
	return hits, rows.Err()
}

// searchVectorFallback computes cosine similarity in Go for builds without
// sqlite-vec.
func searchVectorFallback(ctx context.Context, db *sql.DB, q Query, target []float32, filter string, filterArgs []interface{}) ([]Hit, error) {
	query := `
		SELECT id, class, properties, vector, created_at, updated_at
		FROM objects
		WHERE class = ? AND vector IS NOT NULL AND dimension = ?`
	args := []interface{}{q.Class, len(target)}
	if filter != "" {
		query += " AND " + filter
		args = append(args, filterArgs...)
	}
	query += " ORDER BY rowid"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query vectors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	candidates, err := computeSimilarityScores(rows, target)
	if err != nil {
		return nil, err
	}
	sortCandidates(candidates)
	return buildHits(candidates, q.Limit), nil
}

type candidate struct {
	obj   *Object
	score float64
}

func computeSimilarityScores(rows *sql.Rows, target []float32) ([]candidate, error) {
	var candidates []candidate
	for rows.Next() {
		obj, err := scanObject(rows)
		if err != nil {
			return nil, err
		}
		if len(obj.Vector) != len(target) {
			continue
		}
		candidates = append(candidates, candidate{obj: obj, score: cosineSimilarity(target, obj.Vector)})
	}
	return candidates, rows.Err()
}

// sortCandidates orders by descending score; ties keep insertion order.
func sortCandidates(candidates []candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
}

func buildHits(candidates []candidate, limit int) []Hit {
	if limit <= 0 || limit > len(candidates) {
		limit = len(candidates)
	}
	hits := make([]Hit, limit)
	for i := 0; i < limit; i++ {
		c := certainty(candidates[i].score)
		hits[i] = Hit{Object: candidates[i].obj, Certainty: &c}
	}
	return hits
}

func decodeObject(obj *Object, props string, vector []byte) error {
	if err := json.Unmarshal([]byte(props), &obj.Properties); err != nil {
		return fmt.Errorf("decode properties of %s: %w", obj.ID, err)
	}
	if len(vector) > 0 {
		obj.Vector = deserializeVector(vector)
	}
	return nil
}

// certainty maps cosine similarity in [-1,1] onto [0,1].
func certainty(similarity float64) float64 {
	c := (1 + similarity) / 2
	return math.Max(0, math.Min(1, c))
}

// Where compilation

var pathSegment = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// compileWhere turns w into a SQL condition over the properties JSON.
// Values are always bound as arguments; path segments are validated.
func compileWhere(w *Where) (string, []interface{}, error) {
	if w == nil {
		return "", nil, nil
	}

	switch w.Operator {
	case OpAnd:
		if len(w.Operands) == 0 {
			return "", nil, fmt.Errorf("%w: And without operands", ErrInvalidQuery)
		}
		var conds []string
		var args []interface{}
		for _, op := range w.Operands {
			cond, opArgs, err := compileWhere(op)
			if err != nil {
				return "", nil, err
			}
			conds = append(conds, cond)
			args = append(args, opArgs...)
		}
		return "(" + strings.Join(conds, " AND ") + ")", args, nil

	case OpEqual, OpGreaterThanEqual, OpLessThanEqual:
		path, err := jsonPath(w.Path)
		if err != nil {
			return "", nil, err
		}
		value, err := leafValue(w)
		if err != nil {
			return "", nil, err
		}
		cmp := map[Operator]string{OpEqual: "=", OpGreaterThanEqual: ">=", OpLessThanEqual: "<="}[w.Operator]
		return fmt.Sprintf("json_extract(properties, ?) %s ?", cmp), []interface{}{path, value}, nil
	}

	return "", nil, fmt.Errorf("%w: unsupported operator %q", ErrInvalidQuery, w.Operator)
}

func jsonPath(segments []string) (string, error) {
	if len(segments) == 0 {
		return "", fmt.Errorf("%w: filter path is empty", ErrInvalidQuery)
	}
	for _, s := range segments {
		if !pathSegment.MatchString(s) {
			return "", fmt.Errorf("%w: bad path segment %q", ErrInvalidQuery, s)
		}
	}
	return "$." + strings.Join(segments, "."), nil
}

func leafValue(w *Where) (interface{}, error) {
	switch {
	case w.ValueNumber != nil && w.ValueString != nil:
		return nil, fmt.Errorf("%w: filter on %v has two values", ErrInvalidQuery, w.Path)
	case w.ValueNumber != nil:
		return *w.ValueNumber, nil
	case w.ValueString != nil:
		if w.Operator != OpEqual {
			return nil, fmt.Errorf("%w: %s needs a number", ErrInvalidQuery, w.Operator)
		}
		return *w.ValueString, nil
	}
	return nil, fmt.Errorf("%w: filter on %v has no value", ErrInvalidQuery, w.Path)
}

// Vector encoding

// serializeVector encodes a vector as little-endian float32s.
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vector
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
