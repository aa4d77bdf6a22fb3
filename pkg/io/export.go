package io

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/matzehuels/segdag/pkg/dag"
	"github.com/matzehuels/segdag/pkg/set"
	"github.com/matzehuels/segdag/pkg/vertex"
)

// WriteJSON writes the vertices of s with their parents to w. Master lists
// the heads of the master group within s. Names that are not printable
// switch the whole file to hex.
func WriteJSON(ctx context.Context, d *dag.Dag, s set.Set, w io.Writer) error {
	sorted, err := d.Sort(ctx, s)
	if err != nil {
		return err
	}
	members, err := set.Collect(ctx, sorted)
	if err != nil {
		return err
	}
	master, err := d.MasterGroup(ctx)
	if err != nil {
		return err
	}
	masterHeads, err := d.Heads(ctx, set.Intersection(sorted, master))
	if err != nil {
		return err
	}
	heads, err := set.Collect(ctx, masterHeads)
	if err != nil {
		return err
	}

	parents := make(map[vertex.Name][]vertex.Name, len(members))
	useHex := false
	for _, n := range members {
		ps, err := d.ParentNames(ctx, n)
		if err != nil {
			return err
		}
		parents[n] = ps
		useHex = useHex || !printable(n) || !allPrintable(ps)
	}

	encode := func(n vertex.Name) string {
		if useHex {
			return n.Hex()
		}
		return string(n)
	}
	out := file{Hex: useHex, Vertices: make([]fileEntry, len(members))}
	for i, n := range members {
		e := fileEntry{Name: encode(n)}
		for _, p := range parents[n] {
			e.Parents = append(e.Parents, encode(p))
		}
		out.Vertices[i] = e
	}
	for _, h := range heads {
		out.Master = append(out.Master, encode(h))
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// ExportJSON writes the vertices of s to a file at path.
func ExportJSON(ctx context.Context, d *dag.Dag, s set.Set, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteJSON(ctx, d, s, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printable(n vertex.Name) bool {
	return n != "" && n.String() == string(n)
}

func allPrintable(ns []vertex.Name) bool {
	for _, n := range ns {
		if !printable(n) {
			return false
		}
	}
	return true
}
