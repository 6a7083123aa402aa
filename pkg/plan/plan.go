package plan

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Outputs names where a run writes its results. Empty fields are skipped.
type Outputs struct {
	Workbook string `yaml:"workbook"`
	CSV      string `yaml:"csv"`
	Table    string `yaml:"table"`
}

type Plan struct {
	Sources []string `yaml:"sources"`
	Layout  string   `yaml:"layout"`
	Outputs Outputs  `yaml:"outputs"`
	Sync    bool     `yaml:"sync"`
}

func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Plan, error) {
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}

	if len(p.Sources) == 0 {
		return nil, fmt.Errorf("plan has no sources")
	}
	if p.Layout == "" {
		p.Layout = "auto"
	}
	if p.Outputs.CSV != "" && p.Outputs.Table == "" {
		p.Outputs.Table = "rows"
	}
	return &p, nil
}

func (p *Plan) Print(w io.Writer) {
	fmt.Fprintf(w, "Layout: %s\n", p.Layout)
	for i, src := range p.Sources {
		fmt.Fprintf(w, "[%d] source=%s\n", i+1, src)
	}
	if p.Outputs.Workbook != "" {
		fmt.Fprintf(w, "workbook -> %s\n", p.Outputs.Workbook)
	}
	if p.Outputs.CSV != "" {
		fmt.Fprintf(w, "csv (%s) -> %s\n", p.Outputs.Table, p.Outputs.CSV)
	}
	fmt.Fprintf(w, "sync: %t\n", p.Sync)
}
