package loader

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ParseTestCases parses one or more scenarios from YAML bytes. Several
// scenarios may share a file as separate YAML documents.
func ParseTestCases(data []byte) ([]*TestCase, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))

	var cases []*TestCase
	for {
		var doc yaml.Node
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &LoadError{Message: "failed to parse YAML", Cause: err}
		}

		var tc TestCase
		if err := doc.Decode(&tc); err != nil {
			return nil, &LoadError{Line: doc.Line, Message: "invalid scenario", Cause: err}
		}
		annotateStepLines(&doc, &tc)

		if err := Validate(&tc); err != nil {
			return nil, err
		}
		cases = append(cases, &tc)
	}

	if len(cases) == 0 {
		return nil, &LoadError{Message: "no scenarios defined"}
	}
	return cases, nil
}

// ParseTestCase parses exactly one scenario.
func ParseTestCase(data []byte) (*TestCase, error) {
	cases, err := ParseTestCases(data)
	if err != nil {
		return nil, err
	}
	if len(cases) != 1 {
		return nil, &LoadError{Message: "expected a single scenario"}
	}
	return cases[0], nil
}

// annotateStepLines copies source line numbers onto steps.
func annotateStepLines(doc *yaml.Node, tc *TestCase) {
	root := doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value != "steps" {
			continue
		}
		seq := root.Content[i+1]
		for j, item := range seq.Content {
			if j < len(tc.Steps) {
				tc.Steps[j].Line = item.Line
			}
		}
	}
}

// Validate checks the structural requirements of a scenario.
func Validate(tc *TestCase) error {
	if strings.TrimSpace(tc.Name) == "" {
		return &LoadError{Message: "scenario name is required"}
	}
	if len(tc.Steps) == 0 {
		return &LoadError{Message: "scenario " + tc.Name + " must have at least one step"}
	}
	if tc.Timeout != "" {
		if _, err := time.ParseDuration(tc.Timeout); err != nil {
			return &LoadError{Message: "scenario " + tc.Name + ": invalid timeout", Cause: err}
		}
	}
	for i := range tc.Steps {
		step := &tc.Steps[i]
		if step.Action == "" {
			return &LoadError{Line: step.Line, Message: "scenario " + tc.Name + ": step without action"}
		}
		if _, err := step.TimeoutOr(0); err != nil {
			return &LoadError{Line: step.Line, Message: "scenario " + tc.Name + ": invalid step timeout", Cause: err}
		}
	}
	return nil
}

// LoadFile loads every scenario in a file.
func LoadFile(path string) ([]*TestCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{
			File:    path,
			Message: "failed to read file",
			Cause:   err,
		}
	}

	cases, err := ParseTestCases(data)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.File = path
			return nil, le
		}
		return nil, &LoadError{File: path, Message: err.Error()}
	}

	for _, tc := range cases {
		tc.File = path
	}
	return cases, nil
}

// LoadDirectory loads all scenarios from a directory.
// Only files with .yaml or .yml extensions are loaded.
func LoadDirectory(dir string) ([]*TestCase, error) {
	var cases []*TestCase

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &LoadError{
			File:    dir,
			Message: "failed to read directory",
			Cause:   err,
		}
	}

	for _, entry := range entries {
		if entry.IsDir() || !isYAML(entry.Name()) {
			continue
		}

		loaded, err := LoadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		cases = append(cases, loaded...)
	}

	return cases, nil
}

// LoadDirectoryRecursive loads all scenarios from a directory and subdirectories.
func LoadDirectoryRecursive(dir string) ([]*TestCase, error) {
	var cases []*TestCase

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isYAML(path) {
			return nil
		}

		loaded, err := LoadFile(path)
		if err != nil {
			return err
		}
		cases = append(cases, loaded...)
		return nil
	})

	if err != nil {
		return nil, err
	}

	return cases, nil
}

func isYAML(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
