package io

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/matzehuels/segdag/pkg/dag"
	derrors "github.com/matzehuels/segdag/pkg/errors"
	"github.com/matzehuels/segdag/pkg/vertex"
)

type file struct {
	Hex      bool        `json:"hex,omitempty"`
	Vertices []fileEntry `json:"vertices"`
	Master   []string    `json:"master,omitempty"`
}

type fileEntry struct {
	Name    string   `json:"name"`
	Parents []string `json:"parents,omitempty"`
}

// Graph is a decoded parents file.
type Graph struct {
	// Order lists the vertices in file order.
	Order   []vertex.Name
	Parents vertex.ParentMap
	Master  []vertex.Name
}

// ReadJSON decodes a parents file from r. ReadJSON does not close r.
func ReadJSON(r io.Reader) (*Graph, error) {
	var data file
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return nil, derrors.Wrap(derrors.ErrCodeInvalidInput, err, "decode")
	}

	decode := func(s string) (vertex.Name, error) {
		if data.Hex {
			return vertex.NameFromHex(s)
		}
		return vertex.Name(s), nil
	}

	g := &Graph{Parents: make(vertex.ParentMap, len(data.Vertices))}
	for _, e := range data.Vertices {
		name, err := decode(e.Name)
		if err != nil {
			return nil, derrors.Wrap(derrors.ErrCodeInvalidInput, err, "vertex")
		}
		if err := derrors.ValidateName(string(name)); err != nil {
			return nil, err
		}
		if _, dup := g.Parents[name]; dup {
			return nil, derrors.New(derrors.ErrCodeInvalidInput, "duplicate vertex %s", name)
		}
		parents := make([]vertex.Name, len(e.Parents))
		for i, p := range e.Parents {
			if parents[i], err = decode(p); err != nil {
				return nil, derrors.Wrap(derrors.ErrCodeInvalidInput, err, "parent of %s", name)
			}
			if err := derrors.ValidateName(string(parents[i])); err != nil {
				return nil, fmt.Errorf("parent of %s: %w", name, err)
			}
		}
		g.Parents[name] = parents
		g.Order = append(g.Order, name)
	}
	for _, m := range data.Master {
		name, err := decode(m)
		if err != nil {
			return nil, derrors.Wrap(derrors.ErrCodeInvalidInput, err, "master head")
		}
		if _, ok := g.Parents[name]; !ok {
			return nil, derrors.New(derrors.ErrCodeInvalidInput, "master head %s is not a listed vertex", name)
		}
		g.Master = append(g.Master, name)
	}
	if err := g.checkAcyclic(); err != nil {
		return nil, err
	}
	return g, nil
}

// ImportJSON reads the parents file at path.
func ImportJSON(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	g, err := ReadJSON(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

// checkAcyclic walks the listed vertices depth first with an explicit
// stack.
func (g *Graph) checkAcyclic() error {
	const (
		unseen = iota
		active
		done
	)
	state := make(map[vertex.Name]int, len(g.Order))
	type frame struct {
		name vertex.Name
		next int
	}
	for _, root := range g.Order {
		if state[root] != unseen {
			continue
		}
		state[root] = active
		stack := []frame{{name: root}}
		for len(stack) > 0 {
			f := &stack[len(stack)-1]
			ps := g.Parents[f.name]
			if f.next == len(ps) {
				state[f.name] = done
				stack = stack[:len(stack)-1]
				continue
			}
			p := ps[f.next]
			f.next++
			if _, listed := g.Parents[p]; !listed {
				continue
			}
			switch state[p] {
			case active:
				return derrors.New(derrors.ErrCodeInvalidInput, "cycle through %s", p)
			case unseen:
				state[p] = active
				stack = append(stack, frame{name: p})
			}
		}
	}
	return nil
}

// Heads returns the vertices no listed vertex names as a parent, master
// heads first.
func (g *Graph) Heads() vertex.HeadList {
	isParent := make(map[vertex.Name]bool)
	for _, ps := range g.Parents {
		for _, p := range ps {
			isParent[p] = true
		}
	}
	master := make(map[vertex.Name]bool, len(g.Master))
	for _, m := range g.Master {
		master[m] = true
	}
	var other []vertex.Name
	for _, n := range g.Order {
		if !isParent[n] && !master[n] {
			other = append(other, n)
		}
	}
	return vertex.MasterHeads(g.Master...).Concat(vertex.NonMasterHeads(other...))
}

// AddTo adds the graph to d and flushes it. Parents outside the file must
// already be in d.
func (g *Graph) AddTo(ctx context.Context, d *dag.Dag) error {
	return d.AddHeadsAndFlush(ctx, g.Parents, g.Heads())
}
