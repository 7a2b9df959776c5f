package profile

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// document mirrors the YAML profile layout before validation.
type document struct {
	ID          string `yaml:"id"`
	Version     string `yaml:"version"`
	Status      string `yaml:"status"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	Labels       []termDoc     `yaml:"labels"`
	Descriptions []termDoc     `yaml:"descriptions"`
	Aliases      []termDoc     `yaml:"aliases"`
	Sitelinks    []sitelinkDoc `yaml:"sitelinks"`

	Patterns   map[string]fragmentDoc `yaml:"patterns"`
	Statements []statementDoc         `yaml:"statements"`
}

type termDoc struct {
	Language  string `yaml:"language"`
	Value     string `yaml:"value"`
	Source    string `yaml:"source"`
	Separator string `yaml:"separator"`
	Required  bool   `yaml:"required"`
}

type sitelinkDoc struct {
	Site     string `yaml:"site"`
	Value    string `yaml:"value"`
	Source   string `yaml:"source"`
	Required bool   `yaml:"required"`
}

type behaviorDoc struct {
	Value      string `yaml:"value"`
	Qualifiers string `yaml:"qualifiers"`
	References string `yaml:"references"`
}

type allowedDoc struct {
	ID            string   `yaml:"id"`
	Items         []string `yaml:"items"`
	Query         string   `yaml:"query"`
	FallbackItems []string `yaml:"fallback_items"`
}

type statementDoc struct {
	ID        string      `yaml:"id"`
	Property  string      `yaml:"property"`
	Datatype  string      `yaml:"datatype"`
	Value     any         `yaml:"value"`
	Source    string      `yaml:"source"`
	Separator string      `yaml:"separator"`
	Precision int         `yaml:"precision"`
	Unit      string      `yaml:"unit"`
	Language  string      `yaml:"language"`
	Behavior  behaviorDoc `yaml:"behavior"`
	MinCount  int         `yaml:"min_count"`
	MaxCount  any         `yaml:"max_count"`
	Required  bool        `yaml:"required"`
	Rank      string      `yaml:"rank"`

	AllowedItems *allowedDoc   `yaml:"allowed_items"`
	Qualifiers   []fragmentDoc `yaml:"qualifiers"`
	References   []fragmentDoc `yaml:"references"`
}

// fragmentDoc is either a bare pattern name or a mapping.
type fragmentDoc struct {
	Name      string `yaml:"name"`
	Property  string `yaml:"property"`
	Datatype  string `yaml:"datatype"`
	Value     any    `yaml:"value"`
	Source    string `yaml:"source"`
	Precision int    `yaml:"precision"`
	Unit      string `yaml:"unit"`
	Language  string `yaml:"language"`
}

// UnmarshalYAML accepts a scalar as an unqualified pattern reference.
func (f *fragmentDoc) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*f = fragmentDoc{Name: node.Value}
		return nil
	case yaml.MappingNode:
		type plain fragmentDoc
		var p plain
		if err := node.Decode(&p); err != nil {
			return err
		}
		*f = fragmentDoc(p)
		return nil
	}
	return fmt.Errorf("line %d: fragment must be a pattern name or a mapping", node.Line)
}

// hasContent reports whether the fragment defines a snak rather than only naming one.
func (f fragmentDoc) hasContent() bool {
	return f.Property != "" || f.Datatype != "" || f.Value != nil || f.Source != ""
}

func decodeDocument(data []byte) (*document, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}
