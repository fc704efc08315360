// Package repo holds the typed Neo4j node reader the catalog store
// delegates point lookups to. Query-shaped reads stay in the store's
// own cypher; this covers the fetch-by-key case every label shares.
package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// ErrNotFound marks a lookup that matched no node. Callers separate
// it from backend failures with errors.Is.
var ErrNotFound = errors.New("not found")

// rows is the slice of a neo4j result the reader consumes.
type rows interface {
	Next(ctx context.Context) bool
	Record() *neo4j.Record
}

// session is the slice of a neo4j session the reader consumes.
type session interface {
	Run(ctx context.Context, cypher string, params map[string]any) (rows, error)
	Close(ctx context.Context) error
}

// Neo reads nodes carrying one label, decoding each record into T.
type Neo[T any] struct {
	driver neo4j.DriverWithContext
	label  string
	idKey  string
	decode func(*neo4j.Record) (T, error)
	open   func(ctx context.Context) session
}

// Option configures a Neo reader.
type Option[T any] func(*Neo[T])

// WithIDKey overrides the property nodes are keyed by. The default is
// "id".
func WithIDKey[T any](key string) Option[T] {
	return func(r *Neo[T]) { r.idKey = key }
}

// NewNeo builds a reader for nodes labelled label, decoded by decode.
func NewNeo[T any](driver neo4j.DriverWithContext, label string, decode func(*neo4j.Record) (T, error), opts ...Option[T]) *Neo[T] {
	r := &Neo[T]{driver: driver, label: label, idKey: "id", decode: decode}
	for _, o := range opts {
		o(r)
	}
	return r
}

type driverSession struct {
	sess neo4j.SessionWithContext
}

func (s *driverSession) Run(ctx context.Context, cypher string, params map[string]any) (rows, error) {
	return s.sess.Run(ctx, cypher, params)
}

func (s *driverSession) Close(ctx context.Context) error { return s.sess.Close(ctx) }

func (r *Neo[T]) session(ctx context.Context) session {
	if r.open != nil {
		return r.open(ctx)
	}
	return &driverSession{sess: r.driver.NewSession(ctx, neo4j.SessionConfig{})}
}

// Get fetches the node whose key property equals id.
func (r *Neo[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	sess := r.session(ctx)
	defer sess.Close(ctx)

	cypher := fmt.Sprintf("MATCH (n:%s {%s: $id}) RETURN n", r.label, r.idKey)
	res, err := sess.Run(ctx, cypher, map[string]any{"id": id})
	if err != nil {
		return zero, err
	}
	if !res.Next(ctx) {
		return zero, fmt.Errorf("%s %s: %w", r.label, id, ErrNotFound)
	}
	return r.decode(res.Record())
}
