package core

import (
	"errors"
	"fmt"
)

// ErrConnectionNotCreated is wrapped by StateError when a facade is used
// before CreateConnection succeeded.
var ErrConnectionNotCreated = errors.New("connection not created")

// ConfigError reports missing or malformed configuration: rule sections,
// credentials, or an unresolvable table/query.
type ConfigError struct {
	Section string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	msg := e.Message
	if e.Section != "" {
		msg = e.Section + ": " + msg
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ConnectionError reports a failure to open or close a backend session.
type ConnectionError struct {
	Credential string
	Op         string // open, close
	Err        error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection %q: %s failed: %v", e.Credential, e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// QueryError carries the original backend error of a failed catalog, DDL
// or DML statement.
type QueryError struct {
	Op  string
	SQL string
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// StateError reports an operation attempted in the wrong lifecycle state.
type StateError struct {
	Op  string
	Err error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StateError) Unwrap() error { return e.Err }

// NotFoundError reports that no transformation unit exists for a rule.
type NotFoundError struct {
	Rule string
	Path string
}

func (e *NotFoundError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("rule %q: no handler registered", e.Rule)
	}
	return fmt.Sprintf("rule %q: no handler registered and %s does not exist", e.Rule, e.Path)
}

// ContractError reports a transformation unit that does not expose the
// expected entry point.
type ContractError struct {
	Rule   string
	Path   string
	Symbol string
	Err    error
}

func (e *ContractError) Error() string {
	msg := fmt.Sprintf("rule %q: %s does not define a callable %q", e.Rule, e.Path, e.Symbol)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ContractError) Unwrap() error { return e.Err }
