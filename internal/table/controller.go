// Package table implements the table controller: column state, delegation of
// sorting and filtering to the tabular engine, and two interchangeable
// pagination strategies — a caller-supplied, already-complete record slice
// (client mode) or an asynchronous page-fetch function (server mode). A table
// is in exactly one mode for its lifetime.
package table

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/saborverde/opsboard/internal/session"
	"github.com/saborverde/opsboard/internal/tabular"
	"github.com/saborverde/opsboard/model"
)

// Mode is the pagination provenance of a table.
type Mode string

const (
	ModeClient Mode = "client"
	ModeServer Mode = "server"
)

const defaultPageSize = 25

// FetchFunc loads one page of rows in server mode and reports the
// server-side total count.
type FetchFunc func(ctx context.Context, pageIndex, pageSize int) ([]model.Record, int, error)

// Option configures optional controller collaborators.
type Option func(*Controller)

// WithEngine sets the tabular engine used for client-mode sorting and
// filtering.
func WithEngine(e tabular.Engine) Option {
	return func(c *Controller) { c.engine = e }
}

// WithPanel attaches a panel specification; rows then get an edit session
// per row identity, keyed by the value at idField.
func WithPanel(panel model.PanelSpec, idField string, hooks session.Hooks, notifier session.Notifier) Option {
	return func(c *Controller) {
		c.panel = &panel
		c.idField = idField
		c.sessions = session.NewArena(panel, hooks, notifier, c.logger)
	}
}

// WithPageSize sets the initial page size.
func WithPageSize(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithLogger sets the controller logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// Controller owns pagination state and the per-row session arena for one
// entity table. The source record array (or page cache) is owned by the
// caller; the controller treats it as read-only and re-derives its view on
// every query.
type Controller struct {
	mode    Mode
	records []model.Record // client mode
	fetch   FetchFunc      // server mode
	engine  tabular.Engine
	logger  *zap.Logger

	columns  []model.ColumnDescriptor
	query    tabular.Query
	panel    *model.PanelSpec
	idField  string
	sessions *session.Arena

	pageIndex  int
	pageSize   int
	totalCount int

	page        []model.Record // last fetched page, server mode
	fetchCalls  int
	pageLoaded  bool
}

// NewClient creates a client-mode controller over a complete record slice.
func NewClient(records []model.Record, columns []model.ColumnDescriptor, opts ...Option) *Controller {
	c := newController(ModeClient, columns, opts...)
	c.records = records
	c.totalCount = len(records)
	return c
}

// NewServer creates a server-mode controller over a page-fetch function.
func NewServer(fetch FetchFunc, columns []model.ColumnDescriptor, opts ...Option) *Controller {
	c := newController(ModeServer, columns, opts...)
	c.fetch = fetch
	return c
}

func newController(mode Mode, columns []model.ColumnDescriptor, opts ...Option) *Controller {
	c := &Controller{
		mode:     mode,
		columns:  columns,
		pageSize: defaultPageSize,
		logger:   zap.NewNop(),
		engine:   tabular.NewMemoryEngine(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Mode returns the pagination provenance of this table.
func (c *Controller) Mode() Mode { return c.mode }

// PageIndex returns the current zero-based page index.
func (c *Controller) PageIndex() int { return c.pageIndex }

// PageSize returns the current page size.
func (c *Controller) PageSize() int { return c.pageSize }

// TotalCount returns the record total: the slice length in client mode, the
// last server-reported total in server mode.
func (c *Controller) TotalCount() int {
	if c.mode == ModeClient {
		return len(c.filtered())
	}
	return c.totalCount
}

// PageCount derives the page count from the total and the page size.
func (c *Controller) PageCount() int {
	total := c.TotalCount()
	if total == 0 {
		return 0
	}
	return (total + c.pageSize - 1) / c.pageSize
}

// Query returns the current sorting/filtering state.
func (c *Controller) Query() tabular.Query { return c.query }

// FetchCalls reports how many server fetches the controller has issued.
func (c *Controller) FetchCalls() int { return c.fetchCalls }

// SetPageIndex moves to another page. In server mode the change triggers
// exactly one fetch; in client mode no fetch ever occurs.
func (c *Controller) SetPageIndex(ctx context.Context, index int) error {
	if index < 0 {
		index = 0
	}
	c.pageIndex = index
	if c.mode == ModeServer {
		return c.refetch(ctx)
	}
	return nil
}

// SetPageSize changes the page size and resets the page index to stay within
// the new page count. In server mode the change triggers exactly one fetch.
func (c *Controller) SetPageSize(ctx context.Context, size int) error {
	if size <= 0 {
		size = defaultPageSize
	}
	c.pageSize = size
	if max := c.PageCount() - 1; c.pageIndex > max {
		if max < 0 {
			max = 0
		}
		c.pageIndex = max
	}
	if c.mode == ModeServer {
		return c.refetch(ctx)
	}
	return nil
}

// SetQuery replaces the sorting/filtering/visibility state delegated to the
// tabular engine and resets to the first page. Server-mode tables refetch.
func (c *Controller) SetQuery(ctx context.Context, q tabular.Query) error {
	c.query = q
	c.pageIndex = 0
	if c.mode == ModeServer {
		return c.refetch(ctx)
	}
	return nil
}

// Rows returns the visible rows of the current page. In client mode the view
// is re-derived from the caller's slice through the tabular engine; in
// server mode the last fetched page is returned, fetching lazily on first
// use.
func (c *Controller) Rows(ctx context.Context) ([]model.Record, error) {
	if c.mode == ModeClient {
		rows := c.filtered()
		start := c.pageIndex * c.pageSize
		if start >= len(rows) {
			return nil, nil
		}
		end := start + c.pageSize
		if end > len(rows) {
			end = len(rows)
		}
		return rows[start:end], nil
	}

	if !c.pageLoaded {
		if err := c.refetch(ctx); err != nil {
			return nil, err
		}
	}
	return c.page, nil
}

// Data assembles a full DataResponse for the current page.
func (c *Controller) Data(ctx context.Context) (model.DataResponse, error) {
	rows, err := c.Rows(ctx)
	if err != nil {
		return model.DataResponse{}, err
	}
	return model.DataResponse{
		Rows:       rows,
		TotalCount: c.TotalCount(),
		PageIndex:  c.pageIndex,
		PageSize:   c.pageSize,
		PageCount:  c.PageCount(),
	}, nil
}

// Columns returns the column descriptors.
func (c *Controller) Columns() []model.ColumnDescriptor { return c.columns }

// OpenRow opens an edit session for the row with the given identity on the
// current page. Tables without a panel specification are read-only.
func (c *Controller) OpenRow(ctx context.Context, rowID string) (*session.Session, error) {
	if c.sessions == nil {
		return nil, model.NewBadRequestError("this table has no edit panel")
	}

	rows, err := c.Rows(ctx)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if c.rowID(row) == rowID {
			return c.sessions.Open(rowID, row)
		}
	}
	return nil, model.NewNotFoundError(fmt.Sprintf("row %q not found on the current page", rowID))
}

// Sessions exposes the session arena, nil for read-only tables.
func (c *Controller) Sessions() *session.Arena { return c.sessions }

// rowID extracts the row identity from a record.
func (c *Controller) rowID(row model.Record) string {
	v, ok := row[c.idField]
	if !ok {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// filtered applies the delegated engine query to the caller's slice.
func (c *Controller) filtered() []model.Record {
	if c.engine == nil {
		return c.records
	}
	return c.engine.Apply(c.records, c.query)
}

// refetch issues exactly one fetch for the current pagination state.
func (c *Controller) refetch(ctx context.Context) error {
	rows, total, err := c.fetch(ctx, c.pageIndex, c.pageSize)
	c.fetchCalls++
	if err != nil {
		c.logger.Warn("page fetch failed",
			zap.Int("page_index", c.pageIndex),
			zap.Int("page_size", c.pageSize),
			zap.Error(err))
		return err
	}
	c.page = rows
	c.totalCount = total
	c.pageLoaded = true
	return nil
}
