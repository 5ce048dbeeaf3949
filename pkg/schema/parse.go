package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formflow/pkg/model"
)

// Parse decodes a JSON or YAML definition, checks its shape and normalises
// it. location only labels errors.
func Parse(data []byte, location string) (model.FormDefinition, error) {
	doc, err := decode(data)
	if err != nil {
		return model.FormDefinition{}, &LoadError{Location: location, Err: err}
	}
	if issues := CheckShape(doc); len(issues) > 0 {
		return model.FormDefinition{}, &LoadError{Location: location, Issues: issues}
	}

	canonical, err := json.Marshal(doc)
	if err != nil {
		return model.FormDefinition{}, &LoadError{Location: location, Err: err}
	}
	var raw model.RawDefinition
	if err := json.Unmarshal(canonical, &raw); err != nil {
		return model.FormDefinition{}, &LoadError{Location: location, Err: err}
	}

	def := model.NormalizeDefinition(raw)
	if issues := duplicateIDs(def); len(issues) > 0 {
		return model.FormDefinition{}, &LoadError{Location: location, Issues: issues}
	}
	return def, nil
}

// decode reads JSON first and falls back to YAML. YAML documents are
// round-tripped through JSON so both paths produce the same value types.
func decode(data []byte) (any, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errors.New("document is empty")
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err == nil {
		return doc, nil
	}

	var yamlDoc any
	if err := yaml.Unmarshal(data, &yamlDoc); err != nil {
		return nil, errors.New("invalid JSON or YAML")
	}
	encoded, err := json.Marshal(yamlDoc)
	if err != nil {
		return nil, fmt.Errorf("yaml document is not JSON compatible: %w", err)
	}
	if err := json.Unmarshal(encoded, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func duplicateIDs(def model.FormDefinition) []Issue {
	seen := make(map[string]int, len(def.Fields))
	var issues []Issue
	for idx, field := range def.Fields {
		if first, ok := seen[field.ID]; ok {
			issues = append(issues, Issue{
				Path:    fmt.Sprintf("/fields/%d/id", idx),
				Message: fmt.Sprintf("duplicate field id %q (first declared at position %d)", field.ID, first),
			})
			continue
		}
		seen[field.ID] = idx
	}
	return issues
}
