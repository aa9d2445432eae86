// Package rulebook exposes the embedded scoring rulebook (version, houses,
// default allocation tables) for runtime use.
package rulebook

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
)

// Metadata captures the high-level metadata block from the canonical
// rulebook JSON.
type Metadata struct {
	Source string `json:"source"`
	Status string `json:"status"`
}

type rulebookDoc struct {
	Version     string                    `json:"version"`
	Metadata    Metadata                  `json:"metadata"`
	Houses      []string                  `json:"houses"`
	Allocations map[string]map[string]int `json:"allocations"`
}

// Canonical rulebook content embedded for runtime access.
//
//go:embed rulebook.json
var rulebookJSON []byte

var (
	docOnce sync.Once
	doc     rulebookDoc
	docErr  error
)

func load() (rulebookDoc, error) {
	docOnce.Do(func() {
		docErr = json.Unmarshal(rulebookJSON, &doc)
	})
	return doc, docErr
}

// Version returns the rulebook version declared in the canonical JSON.
func Version() (string, error) {
	d, err := load()
	if err != nil {
		return "", err
	}
	return d.Version, nil
}

// Meta returns the rulebook metadata (status, source) declared in the
// canonical JSON.
func Meta() (Metadata, error) {
	d, err := load()
	if err != nil {
		return Metadata{}, err
	}
	return d.Metadata, nil
}

// Houses returns the houses in rulebook order. The slice is a copy.
func Houses() ([]string, error) {
	d, err := load()
	if err != nil {
		return nil, err
	}
	return append([]string(nil), d.Houses...), nil
}

// DefaultIndividualAllocation returns the default rank-to-points table for
// individual events. The map is a copy.
func DefaultIndividualAllocation() (map[int]int, error) {
	return allocation("individual")
}

// DefaultRelayAllocation returns the default rank-to-points table for relay
// events. The map is a copy.
func DefaultRelayAllocation() (map[int]int, error) {
	return allocation("relay")
}

func allocation(name string) (map[int]int, error) {
	d, err := load()
	if err != nil {
		return nil, err
	}
	raw, ok := d.Allocations[name]
	if !ok {
		return nil, fmt.Errorf("rulebook allocation %q missing", name)
	}
	table := make(map[int]int, len(raw))
	for key, points := range raw {
		rank, err := strconv.Atoi(key)
		if err != nil || rank < 1 {
			return nil, fmt.Errorf("rulebook allocation %q has invalid rank %q", name, key)
		}
		if points < 0 {
			return nil, fmt.Errorf("rulebook allocation %q has negative points for rank %q", name, key)
		}
		table[rank] = points
	}
	return table, nil
}
