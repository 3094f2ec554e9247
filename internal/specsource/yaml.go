package specsource

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// decodeYAML accepts either a mapping of column name to entry, like the JSON
// layout, or a sequence of entries that carry their own name.
func decodeYAML(r io.Reader) ([]columnEntry, error) {
	var root yaml.Node
	if err := yaml.NewDecoder(r).Decode(&root); err != nil {
		return nil, err
	}

	node := &root
	if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		node = node.Content[0]
	}

	switch node.Kind {
	case yaml.MappingNode:
		entries := make([]columnEntry, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			name := node.Content[i].Value
			var entry columnEntry
			if err := node.Content[i+1].Decode(&entry); err != nil {
				return nil, fmt.Errorf("column %q: %w", name, err)
			}
			entry.Name = name
			entries = append(entries, entry)
		}
		return entries, nil

	case yaml.SequenceNode:
		entries := make([]columnEntry, 0, len(node.Content))
		for i, item := range node.Content {
			var entry columnEntry
			if err := item.Decode(&entry); err != nil {
				return nil, fmt.Errorf("column %d: %w", i, err)
			}
			entries = append(entries, entry)
		}
		return entries, nil
	}

	return nil, fmt.Errorf("line %d: layout must be a mapping or a sequence", node.Line)
}
