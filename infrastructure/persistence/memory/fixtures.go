package memory

import (
	"context"
	"fmt"
	"io"
	"os"

	"inventory/application/ports"
	"inventory/domain/core/entities"
	"gopkg.in/yaml.v3"
)

// Fixtures is the YAML form of an inventory snapshot. Object references
// (parent, a_side, b_side, owner) are tokens: a UUID or a numeric id.
type Fixtures struct {
	Objects     []FixtureObject     `yaml:"objects"`
	Connections []FixtureConnection `yaml:"connections"`
	Views       []FixtureView       `yaml:"views"`
}

// FixtureObject is one object, listed after its parent
type FixtureObject struct {
	entities.BusinessObject `yaml:",inline"`
	Parent                  string `yaml:"parent,omitempty"`
}

// FixtureConnection is one connection between two listed objects
type FixtureConnection struct {
	entities.BusinessObject `yaml:",inline"`
	Parent                  string `yaml:"parent"`
	ASide                   string `yaml:"a_side"`
	BSide                   string `yaml:"b_side"`
}

// FixtureView is one saved view with its raw XML structure
type FixtureView struct {
	OwnerClass string `yaml:"owner_class"`
	Owner      string `yaml:"owner"`
	ViewClass  string `yaml:"view_class"`
	Structure  string `yaml:"structure"`
}

// LoadFixturesFile reads a YAML snapshot from path
func LoadFixturesFile(path string) (*InventoryGraph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open fixtures: %w", err)
	}
	defer f.Close()
	return LoadFixtures(f)
}

// LoadFixtures builds a graph from a YAML snapshot
func LoadFixtures(r io.Reader) (*InventoryGraph, error) {
	var fx Fixtures
	if err := yaml.NewDecoder(r).Decode(&fx); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to decode fixtures: %w", err)
	}

	g := NewInventoryGraph()
	ctx := context.Background()

	for _, o := range fx.Objects {
		if err := g.AddObject(o.BusinessObject, o.Parent); err != nil {
			return nil, fmt.Errorf("object %s: %w", o.Identity(), err)
		}
	}

	for _, c := range fx.Connections {
		aSide, err := g.findByToken(c.ASide)
		if err != nil {
			return nil, fmt.Errorf("connection %s: %w", c.Identity(), err)
		}
		bSide, err := g.findByToken(c.BSide)
		if err != nil {
			return nil, fmt.Errorf("connection %s: %w", c.Identity(), err)
		}
		conn := entities.Connection{Object: c.BusinessObject, ASide: aSide, BSide: bSide}
		if err := g.AddConnection(conn, c.Parent); err != nil {
			return nil, fmt.Errorf("connection %s: %w", c.Identity(), err)
		}
	}

	for _, v := range fx.Views {
		owner := ports.ObjectKey{ClassName: v.OwnerClass, ID: v.Owner}
		if _, err := g.CreateView(ctx, owner, v.ViewClass, []byte(v.Structure), nil); err != nil {
			return nil, fmt.Errorf("view %s of %s: %w", v.ViewClass, owner, err)
		}
	}

	return g, nil
}

func (g *InventoryGraph) findByToken(token string) (entities.BusinessObject, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.findLocked(token)
}
