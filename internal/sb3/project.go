// Package sb3 decodes the project description embedded in Scratch 3 archives.
//
// An .sb3 file is a zip archive whose "project.json" entry describes the
// project's targets (the stage plus sprites) and their blocks. This package
// reads just enough of that structure for batch analysis: callers get the
// decoded JSON plus block and sprite counts.
package sb3

import (
	"archive/zip"
	"encoding/json"
	"fmt"
)

const projectEntry = "project.json"

// Project is a decoded project description.
type Project struct {
	Targets []Target `json:"targets"`

	// Raw is the full project.json document, preserved for the analysis
	// engine, which consumes fields this package does not model.
	Raw json.RawMessage `json:"-"`
}

// Target is one stage or sprite in a project.
type Target struct {
	Name    string                     `json:"name"`
	IsStage bool                       `json:"isStage"`
	Blocks  map[string]json.RawMessage `json:"blocks"`
}

// Load opens an .sb3 archive and decodes its project description.
func Load(path string) (*Project, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer func() {
		_ = zr.Close()
	}()

	f, err := zr.Open(projectEntry)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", projectEntry, err)
	}
	defer func() {
		_ = f.Close()
	}()

	var raw json.RawMessage
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode %s: %w", projectEntry, err)
	}

	var p Project
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode %s: %w", projectEntry, err)
	}
	p.Raw = raw
	return &p, nil
}

// CountBlocks returns the total number of real blocks across all targets.
//
// Top-level scalar entries in a target's block map are variable or list
// reporters, not blocks, so only JSON objects are counted. This matches the
// notion of "executable content" used to decide whether a project is empty.
func (p *Project) CountBlocks() int {
	total := 0
	for _, t := range p.Targets {
		for _, b := range t.Blocks {
			if isJSONObject(b) {
				total++
			}
		}
	}
	return total
}

// NumSprites returns the number of non-stage targets.
func (p *Project) NumSprites() int {
	n := 0
	for _, t := range p.Targets {
		if !t.IsStage {
			n++
		}
	}
	return n
}

func isJSONObject(raw json.RawMessage) bool {
	for _, c := range raw {
		switch c {
		case ' ', '\t', '\n', '\r':
			continue
		case '{':
			return true
		default:
			return false
		}
	}
	return false
}
