package storage

import (
	"context"
	"time"
)

// Store is a vector-indexed document store. Objects belong to a collection
// (class); each collection names the text fields that are embedded when an
// object is written, and the property that identifies an object across
// writes.
type Store interface {
	// Collection operations
	CreateCollection(ctx context.Context, c Collection) error
	DeleteCollection(ctx context.Context, name string) error
	ListCollections(ctx context.Context) ([]Collection, error)

	// Object operations
	CreateObject(ctx context.Context, obj *Object) (string, error)
	BatchCreate(ctx context.Context, objs []*Object) ([]string, error)
	GetObject(ctx context.Context, class, id string) (*Object, error)
	Count(ctx context.Context, class string) (int, error)

	// Query runs a near-text, near-object, filtered or plain listing query.
	Query(ctx context.Context, q Query) ([]Hit, error)

	// Ready reports whether the store can serve requests.
	Ready(ctx context.Context) (bool, error)

	Close() error
}

// Collection describes one class of objects.
type Collection struct {
	Name        string
	Description string
	// KeyProperty names the string property that identifies an object.
	// Writing an object whose key matches a stored object of the same class
	// replaces it in place and keeps its id. Empty disables de-duplication.
	KeyProperty string
	// VectorizeFields lists the properties whose text is embedded, in order.
	VectorizeFields []string
}

// Object is a stored document. Properties round-trip through JSON, so
// numbers read back as float64 and lists as []interface{}.
type Object struct {
	ID         string
	Class      string
	Properties map[string]interface{}
	Vector     []float32
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Operator is a where-filter operator.
type Operator string

const (
	OpAnd              Operator = "And"
	OpEqual            Operator = "Equal"
	OpGreaterThanEqual Operator = "GreaterThanEqual"
	OpLessThanEqual    Operator = "LessThanEqual"
)

// Where is a boolean predicate over object properties. Leaf filters set
// Path and exactly one value; OpAnd sets Operands.
type Where struct {
	Operator    Operator
	Path        []string
	ValueNumber *float64
	ValueString *string
	Operands    []*Where
}

// Query selects objects of one class. At most one of NearText and
// NearObject may be set; with neither, results are unranked in insertion
// order. Limit <= 0 returns every match.
type Query struct {
	Class      string
	NearText   []string
	NearObject string
	Where      *Where
	Limit      int
}

// Ranked reports whether the query orders results by vector proximity.
func (q Query) Ranked() bool {
	return len(q.NearText) > 0 || q.NearObject != ""
}

// Hit is one query result. Certainty is in [0,1] for ranked queries and nil
// otherwise.
type Hit struct {
	Object    *Object
	Certainty *float64
}

// Filter helpers

func Equal(path []string, value string) *Where {
	return &Where{Operator: OpEqual, Path: path, ValueString: &value}
}

func GreaterThanEqual(path []string, value float64) *Where {
	return &Where{Operator: OpGreaterThanEqual, Path: path, ValueNumber: &value}
}

func LessThanEqual(path []string, value float64) *Where {
	return &Where{Operator: OpLessThanEqual, Path: path, ValueNumber: &value}
}

func And(operands ...*Where) *Where {
	return &Where{Operator: OpAnd, Operands: operands}
}
