package joingraph

import (
	"encoding/json"
	"fmt"
	"os"
)

// Load reads a Graph from a JSON file at path. Called once at
// startup; the caller is responsible for holding the result in a
// read-only, process-wide location.
func Load(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read join graph %s: %w", path, err)
	}

	var graph Graph
	if err := json.Unmarshal(data, &graph); err != nil {
		return nil, fmt.Errorf("parse join graph %s: %w", path, err)
	}
	if graph.Tables == nil {
		graph.Tables = map[string]Table{}
	}
	return &graph, nil
}
