package detector

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// maxClassIndex bounds index-map label tables.
const maxClassIndex = 1 << 16

// ParseNames reads class names in the Ultralytics dataset layout: either a
// document with a `names:` key or the names node itself, as a list or as an
// index → name map. Map gaps come back as "".
func ParseNames(data []byte) ([]string, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("empty names document")
	}

	node := doc.Content[0]
	if node.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(node.Content); i += 2 {
			if node.Content[i].Value == "names" {
				node = node.Content[i+1]
				break
			}
		}
	}

	switch node.Kind {
	case yaml.SequenceNode:
		var names []string
		if err := node.Decode(&names); err != nil {
			return nil, err
		}
		return names, nil

	case yaml.MappingNode:
		var byIndex map[int]string
		if err := node.Decode(&byIndex); err != nil {
			return nil, err
		}
		size := 0
		for idx := range byIndex {
			if idx < 0 || idx >= maxClassIndex {
				return nil, fmt.Errorf("class index %d out of range [0, %d)", idx, maxClassIndex)
			}
			if idx+1 > size {
				size = idx + 1
			}
		}
		names := make([]string, size)
		for idx, name := range byIndex {
			names[idx] = name
		}
		return names, nil
	}

	return nil, fmt.Errorf("names must be a list or a map, got %v", node.Tag)
}

// sidecarLabels looks for <model>.yaml or <model>.yml next to the artifact.
func sidecarLabels(modelPath string) ([]string, string, error) {
	base := strings.TrimSuffix(modelPath, filepath.Ext(modelPath))
	for _, ext := range []string{".yaml", ".yml"} {
		p := base + ext
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		names, err := ParseNames(data)
		return names, p, err
	}
	return nil, "", os.ErrNotExist
}
