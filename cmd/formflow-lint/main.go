package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/goliatone/go-formflow/pkg/schema"
)

const (
	severityError   = "error"
	severityWarning = "warning"
)

type violation struct {
	File     string `json:"file"`
	Location string `json:"location,omitempty"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

func main() {
	asJSON := flag.Bool("json", false, "print the report as JSON")
	strict := flag.Bool("strict", false, "fail on warnings as well")
	flag.Usage = func() {
		if _, err := fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] [paths...]\n", filepath.Base(os.Args[0])); err != nil {
			panic(err)
		}
		if _, err := fmt.Fprintf(flag.CommandLine.Output(), "\nCheck form definitions (JSON or YAML files, or directories of them).\n\n"); err != nil {
			panic(err)
		}
		flag.PrintDefaults()
	}
	flag.Parse()

	paths := flag.Args()
	if len(paths) == 0 {
		paths = []string{"forms"}
	}

	files, err := collect(paths)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lint: %v\n", err)
		os.Exit(2)
	}

	var violations []violation
	for _, file := range files {
		linted, err := lintFile(file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "lint %s: %v\n", file, err)
			os.Exit(2)
		}
		violations = append(violations, linted...)
	}
	sortViolations(violations)

	if *asJSON {
		if err := writeJSON(os.Stdout, violations); err != nil {
			fmt.Fprintf(os.Stderr, "lint: %v\n", err)
			os.Exit(2)
		}
	} else {
		for _, v := range violations {
			fmt.Fprintf(os.Stderr, "%s: %s: %s -> %s\n", v.File, v.Severity, v.Location, v.Message)
		}
	}
	if failed(violations, *strict) {
		os.Exit(1)
	}
}

// collect expands directories into the definition files they contain.
func collect(paths []string) ([]string, error) {
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}
		err = filepath.WalkDir(path, func(name string, entry fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			switch strings.ToLower(filepath.Ext(name)) {
			case ".json", ".yaml", ".yml":
				if !entry.IsDir() {
					files = append(files, name)
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

func lintFile(path string) ([]violation, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	def, err := schema.Parse(raw, path)
	var loadErr *schema.LoadError
	switch {
	case errors.As(err, &loadErr):
		if len(loadErr.Issues) == 0 {
			return []violation{{File: path, Severity: severityError, Message: loadErr.Err.Error()}}, nil
		}
		return toViolations(path, severityError, loadErr.Issues), nil
	case err != nil:
		return nil, err
	}
	return toViolations(path, severityWarning, schema.Lint(def)), nil
}

func toViolations(file, severity string, issues []schema.Issue) []violation {
	out := make([]violation, 0, len(issues))
	for _, issue := range issues {
		location := issue.Path
		if location == "" {
			location = "/"
		}
		out = append(out, violation{File: file, Location: location, Severity: severity, Message: issue.Message})
	}
	return out
}

func sortViolations(violations []violation) {
	sort.Slice(violations, func(i, j int) bool {
		if violations[i].File == violations[j].File {
			if violations[i].Location == violations[j].Location {
				return violations[i].Message < violations[j].Message
			}
			return violations[i].Location < violations[j].Location
		}
		return violations[i].File < violations[j].File
	})
}

func failed(violations []violation, strict bool) bool {
	for _, v := range violations {
		if v.Severity == severityError || strict {
			return true
		}
	}
	return false
}

func writeJSON(w io.Writer, violations []violation) error {
	if violations == nil {
		violations = []violation{}
	}
	data, err := sonic.ConfigStd.MarshalIndent(violations, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
