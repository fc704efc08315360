package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type fakeRows struct {
	records []*neo4j.Record
	idx     int
}

func (f *fakeRows) Next(ctx context.Context) bool {
	if f.idx < len(f.records) {
		f.idx++
		return true
	}
	return false
}

func (f *fakeRows) Record() *neo4j.Record {
	return f.records[f.idx-1]
}

type fakeSession struct {
	rows    *fakeRows
	err     error
	cyphers []string
	closed  bool
}

func (f *fakeSession) Run(ctx context.Context, cypher string, params map[string]any) (rows, error) {
	f.cyphers = append(f.cyphers, cypher)
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

func (f *fakeSession) Close(ctx context.Context) error {
	f.closed = true
	return nil
}

type part struct {
	ID   string
	Name string
}

func partRecord(id, name string) *neo4j.Record {
	return &neo4j.Record{
		Keys:   []string{"n"},
		Values: []any{map[string]any{"part_id": id, "name": name}},
	}
}

func decodePart(rec *neo4j.Record) (part, error) {
	if len(rec.Values) == 0 {
		return part{}, errors.New("empty record")
	}
	m, ok := rec.Values[0].(map[string]any)
	if !ok {
		return part{}, errors.New("unexpected record shape")
	}
	return part{ID: m["part_id"].(string), Name: m["name"].(string)}, nil
}

func partReader(sess *fakeSession) *Neo[part] {
	r := NewNeo[part](nil, "Part", decodePart, WithIDKey[part]("part_id"))
	r.open = func(context.Context) session { return sess }
	return r
}

func TestGet(t *testing.T) {
	sess := &fakeSession{rows: &fakeRows{records: []*neo4j.Record{partRecord("PS11752778", "Door Shelf Bin")}}}
	r := partReader(sess)

	p, err := r.Get(context.Background(), "PS11752778")
	if err != nil {
		t.Fatal(err)
	}
	if p.ID != "PS11752778" || p.Name != "Door Shelf Bin" {
		t.Fatalf("part = %+v", p)
	}
	if !sess.closed {
		t.Error("session left open")
	}
}

func TestGetNotFound(t *testing.T) {
	r := partReader(&fakeSession{rows: &fakeRows{}})
	_, err := r.Get(context.Background(), "PS0000000")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestGetRunErrorPassesThrough(t *testing.T) {
	down := errors.New("db down")
	r := partReader(&fakeSession{err: down})
	if _, err := r.Get(context.Background(), "PS1"); !errors.Is(err, down) {
		t.Fatalf("err = %v", err)
	}
}

func TestGetDecodeError(t *testing.T) {
	bad := &neo4j.Record{Keys: []string{"n"}, Values: []any{"not a map"}}
	r := partReader(&fakeSession{rows: &fakeRows{records: []*neo4j.Record{bad}}})
	if _, err := r.Get(context.Background(), "PS1"); err == nil {
		t.Fatal("a record that will not decode must surface an error")
	}
}

func TestGetCypherUsesLabelAndKey(t *testing.T) {
	sess := &fakeSession{rows: &fakeRows{records: []*neo4j.Record{partRecord("PS1", "Wheel")}}}
	r := partReader(sess)

	r.Get(context.Background(), "PS1")

	want := "MATCH (n:Part {part_id: $id}) RETURN n"
	if len(sess.cyphers) != 1 || sess.cyphers[0] != want {
		t.Fatalf("cyphers = %q, want %q", sess.cyphers, want)
	}
}

func TestDefaultIDKey(t *testing.T) {
	r := NewNeo[part](nil, "Part", decodePart)
	if r.idKey != "id" {
		t.Fatalf("idKey = %q, want id", r.idKey)
	}
}

type stubDriver struct {
	neo4j.DriverWithContext
	opened bool
}

type stubSession struct {
	neo4j.SessionWithContext
}

func (d *stubDriver) NewSession(_ context.Context, _ neo4j.SessionConfig) neo4j.SessionWithContext {
	d.opened = true
	return &stubSession{}
}

func TestSessionComesFromDriverByDefault(t *testing.T) {
	d := &stubDriver{}
	r := NewNeo[part](d, "Part", decodePart)

	sess := r.session(context.Background())
	if sess == nil {
		t.Fatal("nil session")
	}
	if !d.opened {
		t.Fatal("driver.NewSession not called")
	}
}
