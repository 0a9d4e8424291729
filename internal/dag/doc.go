// Package dag holds the dependency graph between descriptor types.
//
// The builder adds a node for every descriptor type it schedules and an edge
// for every dependency a configuration declares. Before linking, the graph is
// checked for cycles; afterwards it answers which types are reachable from the
// requested ones, which decides the configurations that are actually used.
package dag
