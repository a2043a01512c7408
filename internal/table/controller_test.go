package table

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/saborverde/opsboard/internal/session"
	"github.com/saborverde/opsboard/internal/tabular"
	"github.com/saborverde/opsboard/model"
)

func sampleColumns() []model.ColumnDescriptor {
	return []model.ColumnDescriptor{
		{Field: "id", Label: "ID", Visible: true},
		{Field: "name", Label: "Nome", Visible: true},
		{Field: "city", Label: "Cidade", Visible: true},
	}
}

func sampleRecords(n int) []model.Record {
	rows := make([]model.Record, 0, n)
	for i := 1; i <= n; i++ {
		rows = append(rows, model.Record{
			"id":   fmt.Sprintf("c-%02d", i),
			"name": fmt.Sprintf("Cliente %02d", i),
			"city": "Blumenau",
		})
	}
	return rows
}

// pagedFetch serves pages out of a backing slice the way a list endpoint
// would, counting every call.
func pagedFetch(backing []model.Record, calls *int) FetchFunc {
	return func(ctx context.Context, pageIndex, pageSize int) ([]model.Record, int, error) {
		*calls++
		start := pageIndex * pageSize
		if start >= len(backing) {
			return nil, len(backing), nil
		}
		end := start + pageSize
		if end > len(backing) {
			end = len(backing)
		}
		return backing[start:end], len(backing), nil
	}
}

func TestClientModePaginates(t *testing.T) {
	c := NewClient(sampleRecords(25), sampleColumns(), WithPageSize(10))

	if got := c.PageCount(); got != 3 {
		t.Fatalf("expected 3 pages, got %d", got)
	}

	rows, err := c.Rows(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 10 {
		t.Fatalf("expected 10 rows on first page, got %d", len(rows))
	}
	if rows[0]["id"] != "c-01" {
		t.Errorf("expected first row c-01, got %v", rows[0]["id"])
	}

	if err := c.SetPageIndex(context.Background(), 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rows, _ = c.Rows(context.Background())
	if len(rows) != 5 {
		t.Fatalf("expected 5 rows on last page, got %d", len(rows))
	}
	if rows[0]["id"] != "c-21" || rows[4]["id"] != "c-25" {
		t.Errorf("expected rows c-21..c-25, got %v..%v", rows[0]["id"], rows[4]["id"])
	}
}

func TestClientModeNeverFetches(t *testing.T) {
	c := NewClient(sampleRecords(25), sampleColumns(), WithPageSize(10))

	ctx := context.Background()
	_ = c.SetPageIndex(ctx, 1)
	_ = c.SetPageSize(ctx, 5)
	_ = c.SetQuery(ctx, tabular.Query{SortBy: "name", SortDir: tabular.SortDesc})
	if _, err := c.Rows(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if c.FetchCalls() != 0 {
		t.Fatalf("client mode must never fetch, got %d calls", c.FetchCalls())
	}
}

func TestServerModeLastPage(t *testing.T) {
	var calls int
	c := NewServer(pagedFetch(sampleRecords(25), &calls), sampleColumns(), WithPageSize(10))

	if err := c.SetPageIndex(context.Background(), 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rows, err := c.Rows(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := c.TotalCount(); got != 25 {
		t.Errorf("expected total 25, got %d", got)
	}
	if got := c.PageCount(); got != 3 {
		t.Errorf("expected 3 pages, got %d", got)
	}
	if len(rows) != 5 {
		t.Fatalf("expected 5 rows on last page, got %d", len(rows))
	}
	if rows[0]["id"] != "c-21" || rows[4]["id"] != "c-25" {
		t.Errorf("expected rows c-21..c-25, got %v..%v", rows[0]["id"], rows[4]["id"])
	}
}

func TestServerModeFetchesOncePerChange(t *testing.T) {
	var calls int
	c := NewServer(pagedFetch(sampleRecords(25), &calls), sampleColumns(), WithPageSize(10))

	ctx := context.Background()
	if err := c.SetPageIndex(ctx, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 fetch after page change, got %d", calls)
	}

	if err := c.SetPageSize(ctx, 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 fetches after size change, got %d", calls)
	}

	// Reading rows for already-fetched state must not refetch.
	if _, err := c.Rows(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.Data(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("reads must not refetch, got %d calls", calls)
	}
}

func TestServerModeLazyFirstFetch(t *testing.T) {
	var calls int
	c := NewServer(pagedFetch(sampleRecords(3), &calls), sampleColumns())

	rows, err := c.Rows(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if calls != 1 {
		t.Fatalf("expected exactly one lazy fetch, got %d", calls)
	}

	if _, err := c.Rows(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("second read must reuse the cached page, got %d calls", calls)
	}
}

func TestServerModeFetchError(t *testing.T) {
	boom := errors.New("backend down")
	c := NewServer(func(ctx context.Context, pageIndex, pageSize int) ([]model.Record, int, error) {
		return nil, 0, boom
	}, sampleColumns())

	if _, err := c.Rows(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected fetch error to surface, got %v", err)
	}
}

func TestPageSizeChangeClampsIndex(t *testing.T) {
	c := NewClient(sampleRecords(25), sampleColumns(), WithPageSize(5))

	ctx := context.Background()
	if err := c.SetPageIndex(ctx, 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 25 records at size 20 leave only 2 pages; index 4 is out of range.
	if err := c.SetPageSize(ctx, 20); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := c.PageIndex(); got != 1 {
		t.Fatalf("expected index clamped to 1, got %d", got)
	}

	rows, _ := c.Rows(ctx)
	if len(rows) != 5 {
		t.Fatalf("expected 5 rows on clamped page, got %d", len(rows))
	}
}

func TestClientModeQueryDelegation(t *testing.T) {
	records := []model.Record{
		{"id": "p-1", "name": "Pão francês", "city": "Blumenau"},
		{"id": "p-2", "name": "Broa de milho", "city": "Gaspar"},
		{"id": "p-3", "name": "Cuca de banana", "city": "Blumenau"},
	}
	c := NewClient(records, sampleColumns())

	ctx := context.Background()
	err := c.SetQuery(ctx, tabular.Query{
		SortBy:  "name",
		SortDir: tabular.SortAsc,
		Filters: []tabular.Filter{{Field: "city", Op: "eq", Value: "Blumenau"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := c.TotalCount(); got != 2 {
		t.Fatalf("expected filtered total 2, got %d", got)
	}
	rows, _ := c.Rows(ctx)
	if rows[0]["name"] != "Cuca de banana" || rows[1]["name"] != "Pão francês" {
		t.Errorf("unexpected sorted rows: %v", rows)
	}
}

func TestQueryResetsPageIndex(t *testing.T) {
	c := NewClient(sampleRecords(25), sampleColumns(), WithPageSize(10))

	ctx := context.Background()
	_ = c.SetPageIndex(ctx, 2)
	_ = c.SetQuery(ctx, tabular.Query{SortBy: "id", SortDir: tabular.SortAsc})

	if got := c.PageIndex(); got != 0 {
		t.Fatalf("expected query change to reset to first page, got index %d", got)
	}
}

func TestDataResponseShape(t *testing.T) {
	c := NewClient(sampleRecords(25), sampleColumns(), WithPageSize(10))
	if err := c.SetPageIndex(context.Background(), 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resp, err := c.Data(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.TotalCount != 25 || resp.PageIndex != 2 || resp.PageSize != 10 || resp.PageCount != 3 {
		t.Errorf("unexpected response meta: %+v", resp)
	}
	if len(resp.Rows) != 5 {
		t.Errorf("expected 5 rows, got %d", len(resp.Rows))
	}
}

func TestOpenRowWithoutPanel(t *testing.T) {
	c := NewClient(sampleRecords(3), sampleColumns())

	_, err := c.OpenRow(context.Background(), "c-01")
	var env *model.ErrorEnvelope
	if !errors.As(err, &env) || env.Code != model.ErrBadRequest {
		t.Fatalf("expected BAD_REQUEST for read-only table, got %v", err)
	}
}

func TestOpenRowByIdentity(t *testing.T) {
	panel := model.PanelSpec{
		Title: func(rec model.Record) string { return "Cliente" },
		Fields: []model.FieldSpec{
			{Name: "name", Label: "Nome", Kind: model.FieldText},
		},
	}
	hooks := session.Hooks{
		OnUpdate: func(ctx context.Context, original model.Record, payload model.Record) error { return nil },
	}
	c := NewClient(sampleRecords(5), sampleColumns(),
		WithPanel(panel, "id", hooks, session.NopNotifier{}))

	s, err := c.OpenRow(context.Background(), "c-03")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wc := s.WorkingCopy()
	if wc["name"] != "Cliente 03" {
		t.Errorf("expected working copy for c-03, got %v", wc["name"])
	}

	got, ok := c.Sessions().Get("c-03")
	if !ok || got != s {
		t.Errorf("expected arena to track the opened session")
	}
}

func TestOpenRowNotOnPage(t *testing.T) {
	panel := model.PanelSpec{
		Fields: []model.FieldSpec{{Name: "name", Kind: model.FieldText}},
	}
	c := NewClient(sampleRecords(25), sampleColumns(),
		WithPageSize(10),
		WithPanel(panel, "id", session.Hooks{}, session.NopNotifier{}))

	// c-21 lives on page 2, not the current first page.
	_, err := c.OpenRow(context.Background(), "c-21")
	var env *model.ErrorEnvelope
	if !errors.As(err, &env) || env.Code != model.ErrNotFound {
		t.Fatalf("expected NOT_FOUND for off-page row, got %v", err)
	}
}
