// Package io reads and writes commit graphs as JSON parents files.
//
// # JSON Format
//
//	{
//	  "vertices": [
//	    {"name": "A"},
//	    {"name": "B", "parents": ["A"]},
//	    {"name": "C", "parents": ["A"]},
//	    {"name": "D", "parents": ["B", "C"]}
//	  ],
//	  "master": ["D"]
//	}
//
// Names are taken verbatim. With "hex": true every name, parent and master
// entry is hex encoded instead, for graphs whose names are raw hashes.
//
// Parents may name vertices that are not listed when the file is applied to
// a graph that already holds them. The master list selects the heads added
// to the master group; every other head of the file goes to the non-master
// group.
//
// # Import
//
// Use [ImportJSON] to read a file, or [ReadJSON] to read from any
// io.Reader, then [Graph.AddTo] to add and flush the vertices:
//
//	g, err := io.ImportJSON("graph.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = g.AddTo(ctx, d)
//
// Both readers reject duplicate names, empty names, unknown master heads and
// cycles among the listed vertices.
//
// # Export
//
// Use [ExportJSON] to write a set of vertices to a file, or [WriteJSON] to
// write to any io.Writer. Vertices are written parents first, so the output
// imports into an empty graph.
package io
