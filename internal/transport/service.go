package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/saborverde/opsboard/internal/binder"
	"github.com/saborverde/opsboard/internal/entity"
	"github.com/saborverde/opsboard/internal/observability"
	"github.com/saborverde/opsboard/internal/restclient"
	"github.com/saborverde/opsboard/internal/session"
	"github.com/saborverde/opsboard/internal/table"
	"github.com/saborverde/opsboard/internal/tabular"
	"github.com/saborverde/opsboard/model"
)

// clientLoadSize is the page size used to load client-mode tables in one
// request. Entities configured as client mode are small reference lists.
const clientLoadSize = 500

// Backend is the slice of the REST client the dashboard needs per service.
// *restclient.Client satisfies it.
type Backend interface {
	FetchList(ctx context.Context, path, plural string, pageIndex, pageSize int) (restclient.ListResult, error)
	Update(ctx context.Context, method, path string, payload map[string]any) (model.Record, error)
	Delete(ctx context.Context, path string) error
}

// Dashboard wires entity definitions to backend services: it builds one table
// controller per entity on first use and routes panel operations to the
// per-row session arena behind it.
type Dashboard struct {
	registry *entity.Registry
	builder  *entity.Builder
	backends map[string]Backend
	metrics  *observability.Metrics
	logger   *zap.Logger

	mu     sync.Mutex
	tables map[string]*tableState
}

// tableState is the built runtime of one entity table. Its mutex serializes
// controller access; controllers themselves are single-threaded.
type tableState struct {
	mu         sync.Mutex
	def        entity.Definition
	controller *table.Controller
	descriptor model.TableDescriptor
}

// NewDashboard creates a dashboard over the given definitions and backends.
// Metrics may be nil.
func NewDashboard(registry *entity.Registry, builder *entity.Builder, backends map[string]Backend, metrics *observability.Metrics, logger *zap.Logger) *Dashboard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dashboard{
		registry: registry,
		builder:  builder,
		backends: backends,
		metrics:  metrics,
		logger:   logger,
		tables:   make(map[string]*tableState),
	}
}

// Entities returns the table descriptors of every defined entity.
func (d *Dashboard) Entities() []model.TableDescriptor {
	defs := d.registry.All()
	out := make([]model.TableDescriptor, 0, len(defs))
	for _, def := range defs {
		out = append(out, d.builder.Table(def))
	}
	return out
}

// Table returns the table descriptor for one entity.
func (d *Dashboard) Table(entityName string) (model.TableDescriptor, error) {
	def, ok := d.registry.Get(entityName)
	if !ok {
		return model.TableDescriptor{}, model.NewNotFoundError(fmt.Sprintf("entity %q is not defined", entityName))
	}
	return d.builder.Table(def), nil
}

// Data resolves one page of table data. Pagination and query parameters are
// applied as state changes on the entity's controller, so server-mode tables
// fetch only when something actually changed.
func (d *Dashboard) Data(ctx context.Context, entityName string, params model.DataParams) (resp model.DataResponse, err error) {
	ctx, span := observability.StartSpan(ctx, "table.data",
		observability.AttrEntity.String(entityName),
		observability.AttrPageIndex.Int(params.PageIndex),
		observability.AttrPageSize.Int(params.PageSize))
	defer func() { observability.EndSpan(span, err) }()

	ts, err := d.table(ctx, entityName)
	if err != nil {
		return model.DataResponse{}, err
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()
	ctrl := ts.controller

	q := queryFromParams(ts.def, params)
	if !queryEqual(q, ctrl.Query()) {
		if err := ctrl.SetQuery(ctx, q); err != nil {
			return model.DataResponse{}, err
		}
	}
	if params.PageSize > 0 && params.PageSize != ctrl.PageSize() {
		if err := ctrl.SetPageSize(ctx, params.PageSize); err != nil {
			return model.DataResponse{}, err
		}
	}
	if params.PageIndex != ctrl.PageIndex() {
		if err := ctrl.SetPageIndex(ctx, params.PageIndex); err != nil {
			return model.DataResponse{}, err
		}
	}

	return ctrl.Data(ctx)
}

// OpenPanel opens an edit session for one row and returns the rendered panel.
func (d *Dashboard) OpenPanel(ctx context.Context, entityName, rowID string) (desc model.PanelDescriptor, err error) {
	ctx, span := observability.StartSpan(ctx, "panel.open",
		observability.AttrEntity.String(entityName),
		observability.AttrRowID.String(rowID))
	defer func() { observability.EndSpan(span, err) }()

	ts, err := d.table(ctx, entityName)
	if err != nil {
		return model.PanelDescriptor{}, err
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()
	sess, err := ts.controller.OpenRow(ctx, rowID)
	if err != nil {
		return model.PanelDescriptor{}, err
	}
	if d.metrics != nil {
		d.metrics.RecordSessionOpen(entityName)
	}
	span.SetAttributes(observability.AttrSessionID.String(sess.ID()))
	return sess.Describe(), nil
}

// Panel returns the current rendered state of an open panel.
func (d *Dashboard) Panel(ctx context.Context, entityName, rowID string) (model.PanelDescriptor, error) {
	sess, err := d.liveSession(ctx, entityName, rowID)
	if err != nil {
		return model.PanelDescriptor{}, err
	}
	return sess.Describe(), nil
}

// EditPanel writes edited values into the panel's working copy. Values are
// not validated here; validation happens on save.
func (d *Dashboard) EditPanel(ctx context.Context, entityName, rowID string, edits map[string]any) (model.PanelDescriptor, error) {
	sess, err := d.liveSession(ctx, entityName, rowID)
	if err != nil {
		return model.PanelDescriptor{}, err
	}
	for field, value := range edits {
		if err := sess.Edit(field, value); err != nil {
			return model.PanelDescriptor{}, err
		}
	}
	return sess.Describe(), nil
}

// SavePanel validates and persists the panel's working copy. On success the
// session is closed and removed from the arena.
func (d *Dashboard) SavePanel(ctx context.Context, entityName, rowID string) (err error) {
	ctx, span := observability.StartSpan(ctx, "panel.save",
		observability.AttrEntity.String(entityName),
		observability.AttrRowID.String(rowID))
	defer func() { observability.EndSpan(span, err) }()

	ts, err := d.table(ctx, entityName)
	if err != nil {
		return err
	}
	sess, err := sessionFor(ts, rowID)
	if err != nil {
		return err
	}
	span.SetAttributes(observability.AttrSessionID.String(sess.ID()))

	start := time.Now()
	saveErr := sess.Save(ctx)

	if d.metrics != nil {
		status := "success"
		if saveErr != nil {
			status = "failure"
		}
		d.metrics.RecordSessionSave(entityName, status, time.Since(start))
	}
	if saveErr != nil {
		return saveErr
	}

	ts.controller.Sessions().Release(sess)
	if d.metrics != nil {
		d.metrics.RecordSessionClose(entityName)
	}
	return nil
}

// DeletePanel executes the two-step delete. An unconfirmed call arms the
// deletion and returns without deleting; the confirmed call executes it.
func (d *Dashboard) DeletePanel(ctx context.Context, entityName, rowID string, confirmed bool) (err error) {
	ctx, span := observability.StartSpan(ctx, "panel.delete",
		observability.AttrEntity.String(entityName),
		observability.AttrRowID.String(rowID))
	defer func() { observability.EndSpan(span, err) }()

	ts, err := d.table(ctx, entityName)
	if err != nil {
		return err
	}
	sess, err := sessionFor(ts, rowID)
	if err != nil {
		return err
	}

	if !confirmed {
		return sess.ArmDelete()
	}

	deleteErr := sess.Delete(ctx)
	if d.metrics != nil {
		status := "success"
		if deleteErr != nil {
			status = "failure"
		}
		d.metrics.RecordSessionDelete(entityName, status)
	}
	if deleteErr != nil {
		return deleteErr
	}

	ts.controller.Sessions().Release(sess)
	if d.metrics != nil {
		d.metrics.RecordSessionClose(entityName)
	}
	return nil
}

// ClosePanel discards an open panel without saving.
func (d *Dashboard) ClosePanel(ctx context.Context, entityName, rowID string) error {
	ts, err := d.table(ctx, entityName)
	if err != nil {
		return err
	}
	arena := ts.controller.Sessions()
	if arena == nil {
		return model.NewBadRequestError("this table has no edit panel")
	}
	if _, ok := arena.Get(rowID); !ok {
		return model.NewNotFoundError(fmt.Sprintf("no open panel for row %q", rowID))
	}
	arena.Close(rowID)
	if d.metrics != nil {
		d.metrics.RecordSessionClose(entityName)
	}
	return nil
}

// CloseIdleSessions closes edit sessions with no activity for maxIdle across
// every built table and returns how many were closed. A maxIdle of zero
// disables the sweep.
func (d *Dashboard) CloseIdleSessions(maxIdle time.Duration) int {
	if maxIdle <= 0 {
		return 0
	}
	cutoff := time.Now().Add(-maxIdle)

	d.mu.Lock()
	states := make([]*tableState, 0, len(d.tables))
	for _, ts := range d.tables {
		states = append(states, ts)
	}
	d.mu.Unlock()

	total := 0
	for _, ts := range states {
		arena := ts.controller.Sessions()
		if arena == nil {
			continue
		}
		closed := arena.CloseIdle(cutoff)
		if d.metrics != nil {
			for i := 0; i < closed; i++ {
				d.metrics.RecordSessionClose(ts.def.Entity)
			}
		}
		total += closed
	}
	return total
}

// --- construction ---

// table returns the built runtime for an entity, constructing it on first
// use. Construction loads client-mode record lists eagerly.
func (d *Dashboard) table(ctx context.Context, entityName string) (*tableState, error) {
	d.mu.Lock()
	if ts, ok := d.tables[entityName]; ok {
		d.mu.Unlock()
		return ts, nil
	}
	d.mu.Unlock()

	def, ok := d.registry.Get(entityName)
	if !ok {
		return nil, model.NewNotFoundError(fmt.Sprintf("entity %q is not defined", entityName))
	}
	backend, ok := d.backends[def.Source.Service]
	if !ok {
		return nil, &model.ErrorEnvelope{
			Code:    model.ErrInternalError,
			Message: fmt.Sprintf("service %q referenced by entity %q is not configured", def.Source.Service, entityName),
		}
	}

	ts, err := d.buildTable(ctx, def, backend)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	// A concurrent request may have built the same table; keep the first.
	if prior, ok := d.tables[entityName]; ok {
		return prior, nil
	}
	d.tables[entityName] = ts
	return ts, nil
}

func (d *Dashboard) buildTable(ctx context.Context, def entity.Definition, backend Backend) (*tableState, error) {
	columns := d.builder.Columns(def)
	opts := []table.Option{
		table.WithLogger(d.logger.With(zap.String("entity", def.Entity))),
	}
	if def.Table.PageSize > 0 {
		opts = append(opts, table.WithPageSize(def.Table.PageSize))
	}

	if def.Panel != nil {
		panel, err := d.builder.Panel(def, func() { d.invalidate(def.Entity) })
		if err != nil {
			return nil, err
		}
		hooks := d.hooks(def, backend)
		notifier := &logNotifier{logger: d.logger.With(zap.String("entity", def.Entity))}
		opts = append(opts, table.WithPanel(panel, def.Source.IDField, hooks, notifier))
	}

	var ctrl *table.Controller
	switch def.Source.Mode {
	case "client":
		res, err := backend.FetchList(ctx, def.Source.ListPath, def.Plural, 0, clientLoadSize)
		if err != nil {
			return nil, err
		}
		ctrl = table.NewClient(res.Rows, columns, opts...)
	default:
		ctrl = table.NewServer(d.fetchFunc(def, backend), columns, opts...)
	}

	if def.Table.SortBy != "" {
		if err := ctrl.SetQuery(ctx, tabular.Query{SortBy: def.Table.SortBy, SortDir: def.Table.SortDir}); err != nil {
			return nil, err
		}
	}

	return &tableState{
		def:        def,
		controller: ctrl,
		descriptor: d.builder.Table(def),
	}, nil
}

// fetchFunc adapts the backend's list endpoint into a server-mode page
// fetcher, with fetch metrics.
func (d *Dashboard) fetchFunc(def entity.Definition, backend Backend) table.FetchFunc {
	return func(ctx context.Context, pageIndex, pageSize int) ([]model.Record, int, error) {
		start := time.Now()
		res, err := backend.FetchList(ctx, def.Source.ListPath, def.Plural, pageIndex, pageSize)
		if d.metrics != nil {
			status := "success"
			if err != nil {
				status = "failure"
			}
			d.metrics.RecordPageFetch(def.Entity, status, time.Since(start))
		}
		if err != nil {
			return nil, 0, err
		}
		return res.Rows, res.Total, nil
	}
}

// hooks builds the session collaborators that persist saves and deletes
// through the entity's backend service.
func (d *Dashboard) hooks(def entity.Definition, backend Backend) session.Hooks {
	h := session.Hooks{}
	if def.Source.UpdatePath != "" {
		h.OnUpdate = func(ctx context.Context, original model.Record, payload map[string]any) error {
			path := restclient.ExpandPath(def.Source.UpdatePath, map[string]string{"id": recordID(original, def.Source.IDField)})
			_, err := backend.Update(ctx, def.Source.UpdateMethod, path, payload)
			return err
		}
	}
	if def.Source.DeletePath != "" {
		h.OnDelete = func(ctx context.Context, original model.Record) error {
			path := restclient.ExpandPath(def.Source.DeletePath, map[string]string{"id": recordID(original, def.Source.IDField)})
			return backend.Delete(ctx, path)
		}
	}
	return h
}

// Reset discards every built table so the next request rebuilds each from
// the current definitions. Called after a definition reload.
func (d *Dashboard) Reset() {
	d.mu.Lock()
	d.tables = make(map[string]*tableState)
	d.mu.Unlock()
}

// invalidate drops a built table so the next request rebuilds it with fresh
// data. Fired by the panel's cache-invalidation hook after saves and deletes.
func (d *Dashboard) invalidate(entityName string) {
	d.mu.Lock()
	delete(d.tables, entityName)
	d.mu.Unlock()
}

// liveSession finds the open session for a row, without opening one.
func (d *Dashboard) liveSession(ctx context.Context, entityName, rowID string) (*session.Session, error) {
	ts, err := d.table(ctx, entityName)
	if err != nil {
		return nil, err
	}
	return sessionFor(ts, rowID)
}

func sessionFor(ts *tableState, rowID string) (*session.Session, error) {
	arena := ts.controller.Sessions()
	if arena == nil {
		return nil, model.NewBadRequestError("this table has no edit panel")
	}
	sess, ok := arena.Get(rowID)
	if !ok {
		return nil, model.NewNotFoundError(fmt.Sprintf("no open panel for row %q", rowID))
	}
	return sess, nil
}

// recordID extracts a row identity from a record, resolving nested paths.
func recordID(rec model.Record, idField string) string {
	v, ok := binder.Get(rec, idField)
	if !ok {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// queryFromParams maps request parameters onto an engine query, restricted to
// the entity's declared sortable columns.
func queryFromParams(def entity.Definition, params model.DataParams) tabular.Query {
	q := tabular.Query{
		SortBy:  def.Table.SortBy,
		SortDir: def.Table.SortDir,
	}
	if params.SortBy != "" && sortable(def, params.SortBy) {
		q.SortBy = params.SortBy
		q.SortDir = params.SortDir
	}
	for field, value := range params.Filters {
		q.Filters = append(q.Filters, tabular.Filter{Field: field, Op: "contains", Value: value})
	}
	sortFilters(q.Filters)
	return q
}

func sortable(def entity.Definition, field string) bool {
	for _, c := range def.Table.Columns {
		if c.Path == field {
			return c.Sortable
		}
	}
	return false
}

// sortFilters keeps filter order deterministic so query comparison works.
func sortFilters(filters []tabular.Filter) {
	for i := 1; i < len(filters); i++ {
		for j := i; j > 0 && filters[j].Field < filters[j-1].Field; j-- {
			filters[j], filters[j-1] = filters[j-1], filters[j]
		}
	}
}

func queryEqual(a, b tabular.Query) bool {
	if a.SortBy != b.SortBy || a.SortDir != b.SortDir {
		return false
	}
	if len(a.Filters) != len(b.Filters) {
		return false
	}
	for i := range a.Filters {
		if a.Filters[i] != b.Filters[i] {
			return false
		}
	}
	return true
}

// logNotifier surfaces session notifications through the service log. The
// frontend receives failures through the error envelope of the same request.
type logNotifier struct {
	logger *zap.Logger
}

func (n *logNotifier) Notify(level, message string) {
	switch level {
	case "error":
		n.logger.Error(message)
	case "warning":
		n.logger.Warn(message)
	default:
		n.logger.Info(message)
	}
}
