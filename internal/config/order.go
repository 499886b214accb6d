package config

import (
	"maps"
	"slices"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

func newOrder() Order {
	return Order{
		Inputs:  make(map[string][]string),
		Outputs: make(map[string][]string),
	}
}

// yamlOrder walks the YAML node tree, which keeps mapping keys in document order.
func yamlOrder(data []byte) (Order, error) {
	order := newOrder()

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return order, err
	}
	root := &doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}

	rules := mappingValue(mappingValue(root, "data_migration"), "rules")
	for _, name := range mappingKeys(rules) {
		order.Rules = append(order.Rules, name)
		rule := mappingValue(rules, name)
		order.Inputs[name] = mappingKeys(mappingValue(rule, "inputs"))
		order.Outputs[name] = mappingKeys(mappingValue(rule, "outputs"))
	}
	return order, nil
}

func mappingValue(n *yaml.Node, key string) *yaml.Node {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}

func mappingKeys(n *yaml.Node) []string {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	keys := make([]string, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		keys = append(keys, n.Content[i].Value)
	}
	return keys
}

// decodeTOML decodes a TOML document and recovers key order from its metadata.
func decodeTOML(data []byte) (map[string]any, Order, error) {
	order := newOrder()

	var raw map[string]any
	md, err := toml.Decode(string(data), &raw)
	if err != nil {
		return nil, order, err
	}

	seen := make(map[string]bool)
	for _, key := range md.Keys() {
		if len(key) < 3 || key[0] != "data_migration" || key[1] != "rules" {
			continue
		}
		name := key[2]
		if !seen[name] {
			seen[name] = true
			order.Rules = append(order.Rules, name)
		}
		if len(key) == 5 {
			switch key[3] {
			case "inputs":
				order.Inputs[name] = append(order.Inputs[name], key[4])
			case "outputs":
				order.Outputs[name] = append(order.Outputs[name], key[4])
			}
		}
	}
	return raw, order, nil
}

// Complete appends, in sorted order, rules and rule keys present in cfg but
// absent from the file (e.g. set through environment variables).
func (o *Order) Complete(rules map[string]any) {
	if o.Inputs == nil {
		*o = newOrder()
	}
	known := make(map[string]bool, len(o.Rules))
	for _, name := range o.Rules {
		known[name] = true
	}
	for _, name := range slices.Sorted(maps.Keys(rules)) {
		if !known[name] {
			o.Rules = append(o.Rules, name)
		}
		rule, ok := rules[name].(map[string]any)
		if !ok {
			continue
		}
		o.Inputs[name] = completeKeys(o.Inputs[name], rule["inputs"])
		o.Outputs[name] = completeKeys(o.Outputs[name], rule["outputs"])
	}
}

func completeKeys(keys []string, section any) []string {
	m, ok := section.(map[string]any)
	if !ok {
		return keys
	}
	for _, k := range slices.Sorted(maps.Keys(m)) {
		if !slices.Contains(keys, k) {
			keys = append(keys, k)
		}
	}
	return keys
}
