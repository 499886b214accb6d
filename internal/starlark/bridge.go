package starlark

import (
	"context"
	"fmt"
	"sort"

	"github.com/leapstack-labs/leapmigrate/pkg/adapter"
	"github.com/leapstack-labs/leapmigrate/pkg/core"
	"go.starlark.net/starlark"
)

const (
	contextKey = "leapmigrate.context"
	runKey     = "leapmigrate.run"
)

// threadContext returns the context stored on thread by Script.Apply.
func threadContext(thread *starlark.Thread) context.Context {
	if ctx, ok := thread.Local(contextKey).(context.Context); ok {
		return ctx
	}
	return context.Background()
}

// runState collects cursors opened during one exec call so that iteration
// errors, which Starlark cannot raise, surface once exec returns.
type runState struct {
	cursors []*cursorValue
}

func (r *runState) err() error {
	for _, c := range r.cursors {
		if c.iterErr != nil {
			return c.iterErr
		}
	}
	return nil
}

func trackCursor(thread *starlark.Thread, c *cursorValue) {
	if r, ok := thread.Local(runKey).(*runState); ok {
		r.cursors = append(r.cursors, c)
	}
}

// builtinMethod is a Starlark method bound to a Go receiver.
type builtinMethod func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error)

// object is the shared implementation of the bridge values: a named type
// exposing fixed attributes and methods.
type object struct {
	typeName string
	label    string
	attrs    starlark.StringDict
	methods  map[string]builtinMethod
}

func (o *object) String() string        { return fmt.Sprintf("<%s %s>", o.typeName, o.label) }
func (o *object) Type() string          { return o.typeName }
func (o *object) Freeze()               {}
func (o *object) Truth() starlark.Bool  { return starlark.True }
func (o *object) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: %s", o.typeName) }

func (o *object) Attr(name string) (starlark.Value, error) {
	if m, ok := o.methods[name]; ok {
		return starlark.NewBuiltin(name, m), nil
	}
	if v, ok := o.attrs[name]; ok {
		return v, nil
	}
	return nil, nil
}

func (o *object) AttrNames() []string {
	names := make([]string, 0, len(o.attrs)+len(o.methods))
	for name := range o.attrs {
		names = append(names, name)
	}
	for name := range o.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// --- facade ---

// facadeValue exposes an adapter.Facade to a rule script.
type facadeValue struct {
	object
	facade adapter.Facade
}

var _ starlark.HasAttrs = (*facadeValue)(nil)

// NewFacade wraps f for use from Starlark.
func NewFacade(f adapter.Facade) starlark.Value {
	cred := f.Credential()
	v := &facadeValue{facade: f}
	v.object = object{
		typeName: "facade",
		label:    cred.Name,
		attrs: starlark.StringDict{
			"name":     starlark.String(cred.Name),
			"kind":     starlark.String(cred.Kind),
			"database": starlark.String(cred.Database),
			"schema":   starlark.String(cred.Schema),
		},
		methods: map[string]builtinMethod{
			"create_connection": v.createConnection,
			"close_connection":  v.closeConnection,
			"writer":            v.writer,
			"reader":            v.reader,
			"metadata":          v.metadata,
			"execute_ddl":       v.executeDDL,
			"tables_names":      v.tablesNames,
			"commit":            v.commit,
		},
	}
	if o, ok := f.(interface{ Options() adapter.FacadeOptions }); ok {
		opts := o.Options()
		v.attrs["table"] = starlark.String(opts.TableName)
		v.attrs["query"] = starlark.String(opts.Query)
	}
	return v
}

func (v *facadeValue) createConnection(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var reuse bool
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "reuse?", &reuse); err != nil {
		return nil, err
	}
	if err := v.facade.CreateConnection(threadContext(thread), reuse); err != nil {
		return nil, err
	}
	return starlark.None, nil
}

func (v *facadeValue) closeConnection(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	return starlark.None, v.facade.CloseConnection()
}

func (v *facadeValue) writer(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		table      string
		bufferSize int
		bulkCommit starlark.Value = starlark.None
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs,
		"table?", &table, "buffer_size?", &bufferSize, "bulk_commit?", &bulkCommit); err != nil {
		return nil, err
	}

	var opts []adapter.Option
	if table != "" {
		opts = append(opts, adapter.WithTable(table))
	}
	if bufferSize > 0 {
		opts = append(opts, adapter.WithBufferSize(bufferSize))
	}
	if bulkCommit != starlark.None {
		opts = append(opts, adapter.WithBulkCommit(bool(bulkCommit.Truth())))
	}

	w, err := v.facade.Writer(threadContext(thread), opts...)
	if err != nil {
		return nil, err
	}
	return newWriterValue(w), nil
}

func (v *facadeValue) reader(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		table     string
		query     string
		batchSize int
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs,
		"table?", &table, "query?", &query, "batch_size?", &batchSize); err != nil {
		return nil, err
	}

	var opts []adapter.Option
	if table != "" {
		opts = append(opts, adapter.WithTable(table))
	}
	if query != "" {
		opts = append(opts, adapter.WithQuery(query))
	}
	if batchSize > 0 {
		opts = append(opts, adapter.WithBatchSize(batchSize))
	}

	c, err := v.facade.Reader(opts...)
	if err != nil {
		return nil, err
	}
	cv := newCursorValue(threadContext(thread), c)
	trackCursor(thread, cv)
	return cv, nil
}

func (v *facadeValue) metadata(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var tableName string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "table_name?", &tableName); err != nil {
		return nil, err
	}
	m, err := v.facade.Metadata(tableName)
	if err != nil {
		return nil, err
	}
	return newTableValue(m), nil
}

func (v *facadeValue) executeDDL(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var sql string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "sql", &sql); err != nil {
		return nil, err
	}
	return starlark.None, v.facade.ExecuteDDL(threadContext(thread), sql)
}

func (v *facadeValue) tablesNames(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	names, err := v.facade.TableNames(threadContext(thread))
	if err != nil {
		return nil, err
	}
	return GoToStarlark(names)
}

func (v *facadeValue) commit(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	return starlark.None, v.facade.Commit()
}

// --- writer ---

type writerValue struct {
	object
	w *adapter.BatchWriter
}

func newWriterValue(w *adapter.BatchWriter) *writerValue {
	v := &writerValue{w: w}
	columns, _ := GoToStarlark(w.Columns())
	v.object = object{
		typeName: "writer",
		label:    w.Table().Name,
		attrs: starlark.StringDict{
			"table":   starlark.String(w.Table().Name),
			"columns": columns,
		},
		methods: map[string]builtinMethod{
			"insert":       v.insert,
			"flush_buffer": v.flushBuffer,
			"buffered":     v.buffered,
			"commit":       v.commit,
			"rollback":     v.rollback,
		},
	}
	return v
}

// starlarkRow converts a dict or a list/tuple into a writer row.
func starlarkRow(value starlark.Value) (core.Row, error) {
	switch value.(type) {
	case *starlark.Dict:
		gv, err := ToGo(value)
		if err != nil {
			return nil, err
		}
		return core.NamedRow(gv.(map[string]any)), nil
	case *starlark.List, starlark.Tuple:
		gv, err := ToGo(value)
		if err != nil {
			return nil, err
		}
		return core.PositionalRow(gv.([]any)), nil
	default:
		return nil, fmt.Errorf("row must be a dict, list or tuple, got %s", value.Type())
	}
}

func (v *writerValue) insert(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var value starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "row", &value); err != nil {
		return nil, err
	}
	row, err := starlarkRow(value)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	flushed, err := v.w.Insert(threadContext(thread), row)
	if err != nil {
		return nil, err
	}
	return starlark.Bool(flushed), nil
}

func (v *writerValue) flushBuffer(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	flushed, err := v.w.FlushBuffer(threadContext(thread))
	if err != nil {
		return nil, err
	}
	return starlark.Bool(flushed), nil
}

func (v *writerValue) buffered(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	return starlark.MakeInt(v.w.Buffered()), nil
}

func (v *writerValue) commit(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	return starlark.None, v.w.Commit()
}

func (v *writerValue) rollback(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	return starlark.None, v.w.Rollback()
}

// --- cursor ---

// cursorValue is iterable: `for row in cursor:` yields one dict per row.
type cursorValue struct {
	object
	ctx     context.Context
	c       *adapter.RowCursor
	iterErr error
}

var _ starlark.Iterable = (*cursorValue)(nil)

func newCursorValue(ctx context.Context, c *adapter.RowCursor) *cursorValue {
	v := &cursorValue{ctx: ctx, c: c}
	v.object = object{
		typeName: "cursor",
		label:    c.SQL(),
		attrs:    starlark.StringDict{},
		methods: map[string]builtinMethod{
			"fetchall": v.fetchall,
			"close":    v.close,
		},
	}
	return v
}

func (v *cursorValue) Iterate() starlark.Iterator {
	return &cursorIterator{v: v}
}

func (v *cursorValue) fetchall(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	var rows []starlark.Value
	for v.c.Next(v.ctx) {
		dict, err := rowToStarlark(v.c.Columns(), v.c.Row())
		if err != nil {
			_ = v.c.Close()
			return nil, err
		}
		rows = append(rows, dict)
	}
	if err := v.c.Err(); err != nil {
		return nil, err
	}
	return starlark.NewList(rows), nil
}

func (v *cursorValue) close(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	return starlark.None, v.c.Close()
}

type cursorIterator struct {
	v *cursorValue
}

func (it *cursorIterator) Next(p *starlark.Value) bool {
	c := it.v.c
	if !c.Next(it.v.ctx) {
		if err := c.Err(); err != nil && it.v.iterErr == nil {
			it.v.iterErr = err
		}
		return false
	}
	dict, err := rowToStarlark(c.Columns(), c.Row())
	if err != nil {
		it.v.iterErr = err
		_ = c.Close()
		return false
	}
	*p = dict
	return true
}

func (it *cursorIterator) Done() {}

// --- table manager ---

type tableValue struct {
	object
	m *adapter.TableManager
}

func newTableValue(m *adapter.TableManager) *tableValue {
	v := &tableValue{m: m}
	v.object = object{
		typeName: "table",
		label:    m.QualifiedName(),
		attrs: starlark.StringDict{
			"name":           starlark.String(m.Table()),
			"qualified_name": starlark.String(m.QualifiedName()),
		},
		methods: map[string]builtinMethod{
			"columns":                v.columns,
			"row_count":              v.rowCount,
			"max_id":                 v.maxID,
			"truncate":               v.truncate,
			"reset_sequence":         v.resetSequence,
			"sequence_current_value": v.sequenceCurrentValue,
			"set_sequence_value":     v.setSequenceValue,
		},
	}
	return v
}

func (v *tableValue) columns(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	cols, err := v.m.Columns(threadContext(thread))
	if err != nil {
		return nil, err
	}
	list := make([]starlark.Value, len(cols))
	for i, c := range cols {
		var def starlark.Value = starlark.None
		if c.Default != nil {
			def = starlark.String(*c.Default)
		}
		dict := starlark.NewDict(4)
		_ = dict.SetKey(starlark.String("name"), starlark.String(c.Name))
		_ = dict.SetKey(starlark.String("type"), starlark.String(c.DataType))
		_ = dict.SetKey(starlark.String("nullable"), starlark.Bool(c.Nullable))
		_ = dict.SetKey(starlark.String("default"), def)
		list[i] = dict
	}
	return starlark.NewList(list), nil
}

func (v *tableValue) rowCount(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	n, err := v.m.RowCount(threadContext(thread))
	if err != nil {
		return nil, err
	}
	return starlark.MakeInt64(n), nil
}

func (v *tableValue) maxID(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	column := "id"
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "column?", &column); err != nil {
		return nil, err
	}
	id, err := v.m.MaxID(threadContext(thread), column)
	if err != nil {
		return nil, err
	}
	return GoToStarlark(id)
}

func (v *tableValue) truncate(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	return starlark.None, v.m.Truncate(threadContext(thread))
}

func (v *tableValue) resetSequence(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	return starlark.None, v.m.ResetSequence(threadContext(thread))
}

func (v *tableValue) sequenceCurrentValue(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	n, err := v.m.SequenceCurrentValue(threadContext(thread))
	if err != nil {
		return nil, err
	}
	return starlark.MakeInt64(n), nil
}

func (v *tableValue) setSequenceValue(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var value int64
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "value", &value); err != nil {
		return nil, err
	}
	return starlark.None, v.m.SetSequenceValue(threadContext(thread), value)
}
