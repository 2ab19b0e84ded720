package umls

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type fakeRows struct {
	data [][]any
	idx  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }
func (r *fakeRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}
func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.idx-1]
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = row[i].(string)
		}
	}
	return nil
}
func (r *fakeRows) Values() ([]any, error) { return r.data[r.idx-1], nil }
func (r *fakeRows) RawValues() [][]byte    { return nil }

type fakeRow struct {
	values []any
	err    error
}

func (r *fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.values[i].(string)
		}
	}
	return nil
}

type fakeTx struct {
	queryResult    *fakeRows
	queryErr       error
	queryRowResult *fakeRow
	committed      bool
	rolledBack     bool
}

func (t *fakeTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *fakeTx) Commit(ctx context.Context) error          { t.committed = true; return nil }
func (t *fakeTx) Rollback(ctx context.Context) error        { t.rolledBack = true; return nil }
func (t *fakeTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, errors.New("not implemented")
}
func (t *fakeTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *fakeTx) LargeObjects() pgx.LargeObjects                              { return pgx.LargeObjects{} }
func (t *fakeTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, errors.New("not implemented")
}
func (t *fakeTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (t *fakeTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if t.queryErr != nil {
		return nil, t.queryErr
	}
	t.queryResult.idx = 0
	return t.queryResult, nil
}
func (t *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return t.queryRowResult
}
func (t *fakeTx) Conn() *pgx.Conn { return nil }

type fakePool struct {
	tx *fakeTx
}

func (p *fakePool) Begin(ctx context.Context) (pgx.Tx, error) { return p.tx, nil }

func TestCodesToCUIsKeysByCode(t *testing.T) {
	tx := &fakeTx{queryResult: &fakeRows{data: [][]any{{"38341003", "C001"}, {"5640", "C002"}}}}
	s := NewWithPool(&fakePool{tx: tx})
	cuis, err := s.CodesToCUIs(context.Background(), []string{"38341003", "5640"}, "SNOMEDCT_US")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cuis) != 2 || cuis["38341003"] != "C001" || cuis["5640"] != "C002" {
		t.Errorf("expected per-code attribution, got %v", cuis)
	}
	if !tx.committed {
		t.Error("expected transaction to be committed")
	}
}

func TestCodesToCUIsEmptyInputSkipsQuery(t *testing.T) {
	s := NewWithPool(&fakePool{tx: &fakeTx{}})
	cuis, err := s.CodesToCUIs(context.Background(), nil, "SNOMEDCT_US")
	if err != nil || cuis != nil {
		t.Errorf("expected no-op for empty codes, got %v, %v", cuis, err)
	}
}

func TestCodesToCUIsQueryErrorWrapsSentinel(t *testing.T) {
	tx := &fakeTx{queryErr: errors.New("connection reset")}
	s := NewWithPool(&fakePool{tx: tx})
	_, err := s.CodesToCUIs(context.Background(), []string{"1"}, "SNOMEDCT_US")
	if !errors.Is(err, errUMLSQuery) {
		t.Errorf("expected wrapped errUMLSQuery, got %v", err)
	}
	if !tx.rolledBack {
		t.Error("expected transaction to be rolled back")
	}
}

func TestSurfaceFormsByCUICapsAt20(t *testing.T) {
	data := make([][]any, 0, 25)
	for i := 0; i < 25; i++ {
		data = append(data, []any{"C001", "form", "PT"})
	}
	tx := &fakeTx{queryResult: &fakeRows{data: data}}
	s := NewWithPool(&fakePool{tx: tx})
	forms, err := s.SurfaceFormsByCUI(context.Background(), []string{"C001"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(forms["C001"]) != 20 {
		t.Errorf("expected cap of 20 forms, got %d", len(forms["C001"]))
	}
}

func TestExactMatchCUIFound(t *testing.T) {
	tx := &fakeTx{queryRowResult: &fakeRow{values: []any{"C555"}}}
	s := NewWithPool(&fakePool{tx: tx})
	cui, err := s.ExactMatchCUI(context.Background(), "hypertension")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cui != "C555" {
		t.Errorf("got %q", cui)
	}
}

func TestExactMatchCUINotFound(t *testing.T) {
	tx := &fakeTx{queryRowResult: &fakeRow{err: pgx.ErrNoRows}}
	s := NewWithPool(&fakePool{tx: tx})
	cui, err := s.ExactMatchCUI(context.Background(), "nonexistent term")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cui != "" {
		t.Errorf("expected empty CUI for no match, got %q", cui)
	}
}
