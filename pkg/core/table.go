package core

// Column describes one destination column as reported by the backend catalog.
type Column struct {
	Name     string
	DataType string
	Nullable bool
	Default  *string
}

// Constraint is a foreign key reference discovered on a table.
type Constraint struct {
	Name       string
	ColumnName string
	RefSchema  string
	RefTable   string
	RefColumn  string
}

// Index is one column entry of a table index.
type Index struct {
	Name       string
	ColumnName string
	Nullable   bool
	Type       string
	NonUnique  bool
}

// TableSchema is the resolved description of a destination table.
// It is populated lazily by the metadata resolver; only the output-side
// stub built by NewTableStub is created by hand.
type TableSchema struct {
	Name        string
	RowCount    int64
	Columns     []Column
	Constraints []Constraint
	Indexes     []Index
}

// NewTableStub creates a schema carrying only the table name.
func NewTableStub(name string) *TableSchema {
	return &TableSchema{Name: name}
}

// ColumnNames returns column names in resolved order.
func (t *TableSchema) ColumnNames() []string {
	if t == nil {
		return nil
	}
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Column looks up a column by name.
func (t *TableSchema) Column(name string) (Column, bool) {
	if t == nil {
		return Column{}, false
	}
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Resolved reports whether the column list has been populated.
func (t *TableSchema) Resolved() bool {
	return t != nil && len(t.Columns) > 0
}
