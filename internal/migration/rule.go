// Package migration runs configured migration rules.
//
// A rule names its inputs (credential + query) and outputs (credential +
// table). The Dispatcher resolves each rule to a Handler, builds one facade
// per input and output, calls the handler once and closes every pooled
// connection before the next rule starts.
package migration

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapmigrate/internal/config"
	"github.com/leapstack-labs/leapmigrate/pkg/core"
)

const rulesSection = "data_migration.rules"

// Input is a source query on one credential.
type Input struct {
	Credential core.Credential
	Query      string
}

// Output is a destination table on one credential.
type Output struct {
	Credential core.Credential
	Table      string
}

// Rule is one configured migration rule.
type Rule struct {
	Name    string
	Inputs  []Input
	Outputs []Output
	Skip    bool
}

func (r *Rule) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Rule: %s\nInputs:\n", r.Name)
	for _, in := range r.Inputs {
		fmt.Fprintf(&b, "  %s: %s\n", in.Credential.Name, in.Query)
	}
	b.WriteString("Outputs:\n")
	for _, out := range r.Outputs {
		fmt.Fprintf(&b, "  %s: %s\n", out.Credential.Name, out.Table)
	}
	return b.String()
}

// BuildRules validates data_migration.rules and returns the rules in
// declaration order. Inputs and outputs keep the order of their credential
// keys, then of the listed queries or tables.
func BuildRules(cfg *config.Config, creds map[string]core.Credential) ([]*Rule, error) {
	rules := cfg.DataMigration.Rules
	order := cfg.Order
	order.Complete(rules)

	out := make([]*Rule, 0, len(rules))
	for _, name := range order.Rules {
		raw, ok := rules[name]
		if !ok {
			continue
		}
		rule, err := buildRule(name, raw, order, creds)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, nil
}

func ruleError(format string, args ...any) error {
	return &core.ConfigError{Section: rulesSection, Message: fmt.Sprintf(format, args...)}
}

func buildRule(name string, raw any, order config.Order, creds map[string]core.Credential) (*Rule, error) {
	def, ok := raw.(map[string]any)
	if !ok {
		return nil, ruleError("rule '%s' is empty or badly formatted", name)
	}

	inputs, hasInputs := def["inputs"]
	if !hasInputs || inputs == nil {
		return nil, ruleError("rule '%s' is missing the 'inputs' section", name)
	}
	outputs, hasOutputs := def["outputs"]
	if !hasOutputs || outputs == nil {
		return nil, ruleError("rule '%s' is missing the 'outputs' section", name)
	}

	inputMap, ok := inputs.(map[string]any)
	if !ok || len(inputMap) == 0 {
		return nil, ruleError("rule '%s' has an invalid or empty 'inputs' section", name)
	}
	outputMap, ok := outputs.(map[string]any)
	if !ok || len(outputMap) == 0 {
		return nil, ruleError("rule '%s' has an invalid or empty 'outputs' section", name)
	}

	rule := &Rule{Name: name}
	if skip, ok := def["skip"].(bool); ok {
		rule.Skip = skip
	}

	for _, db := range order.Inputs[name] {
		queries, err := stringList(inputMap[db])
		if err != nil {
			return nil, ruleError("rule '%s' has an empty input database '%s'", name, db)
		}
		cred, err := lookupCredential(creds, db)
		if err != nil {
			return nil, err
		}
		for _, q := range queries {
			rule.Inputs = append(rule.Inputs, Input{Credential: cred, Query: q})
		}
	}

	for _, db := range order.Outputs[name] {
		tables, err := stringList(outputMap[db])
		if err != nil {
			return nil, ruleError("rule '%s' has an empty output database '%s'", name, db)
		}
		cred, err := lookupCredential(creds, db)
		if err != nil {
			return nil, err
		}
		for _, table := range tables {
			rule.Outputs = append(rule.Outputs, Output{Credential: cred, Table: table})
		}
	}

	return rule, nil
}

func lookupCredential(creds map[string]core.Credential, name string) (core.Credential, error) {
	cred, ok := creds[name]
	if !ok {
		return core.Credential{}, &core.ConfigError{
			Section: rulesSection,
			Message: fmt.Sprintf("no credentials found for target database %s", name),
		}
	}
	return cred, nil
}

// stringList accepts a non-empty list of non-empty strings.
func stringList(v any) ([]string, error) {
	var items []any
	switch list := v.(type) {
	case []any:
		items = list
	case []string:
		for _, s := range list {
			items = append(items, s)
		}
	default:
		return nil, fmt.Errorf("expected a list, got %T", v)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("empty list")
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok || strings.TrimSpace(s) == "" {
			return nil, fmt.Errorf("expected a non-empty string, got %v", item)
		}
		out = append(out, s)
	}
	return out, nil
}

// Select returns the rules named in names, in rule order. An empty names
// selects every rule.
func Select(rules []*Rule, names []string) ([]*Rule, error) {
	if len(names) == 0 {
		return rules, nil
	}
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}
	var out []*Rule
	for _, r := range rules {
		if wanted[r.Name] {
			out = append(out, r)
			delete(wanted, r.Name)
		}
	}
	for _, n := range names {
		if wanted[n] {
			return nil, ruleError("unknown rule %q", n)
		}
	}
	return out, nil
}
