// Package paramanalyzer implements the Required-Parameter Analyzer (C6):
// given a graph, it determines which Task inputs the user must still
// supply versus which are auto-wired from predecessor outputs or pre-bound
// node attributes.
package paramanalyzer

import (
	"context"
	"strings"

	"github.com/compozy/workflows/internal/introspector"
	"github.com/compozy/workflows/internal/workflow"
)

// DeclaredParams looks up the DB-declared parameter names for a task, in
// insertion order (C2). ok=true means the returned names (possibly none)
// are authoritative; ok=false means the catalog has no declaration for the
// task and the analyzer falls back to static introspection of its script.
type DeclaredParams func(ctx context.Context, taskName string) ([]string, bool)

// ScriptPath resolves a task name to the script path the Introspector
// should read, for tasks with no DB-declared parameters.
type ScriptPath func(taskName string) (string, bool)

// RequiredInput is one input the user must supply before running.
type RequiredInput struct {
	Name         string `json:"name"`
	SourceTask   string `json:"source_task"`
	SourceLabel  string `json:"source_label"`
}

// Analyze computes the flat, deduplicated list of required inputs for a
// graph, per spec.md §4.6's seven-step algorithm.
func Analyze(
	ctx context.Context,
	structure workflow.Structure,
	nodeTypeOf func(shapeName string) (workflow.NodeType, bool),
	declared DeclaredParams,
	scriptOf ScriptPath,
) []RequiredInput {
	predecessors := buildPredecessors(structure)

	outputsByNode := make(map[string]map[string]struct{}, len(structure.Nodes))
	inputsByNode := make(map[string]map[string]struct{}, len(structure.Nodes))
	preBoundByNode := make(map[string]map[string]struct{}, len(structure.Nodes))

	for i := range structure.Nodes {
		n := &structure.Nodes[i]
		if !isTaskNode(n, nodeTypeOf) {
			continue
		}
		inputs, outputs := resolveTaskIO(ctx, n.Data.StepFunction, declared, scriptOf)
		inputsByNode[n.ID] = toSet(inputs)
		outputsByNode[n.ID] = toSetLower(outputs)
		preBoundByNode[n.ID] = preBoundKeys(n)
	}

	var required []RequiredInput
	seen := map[string]struct{}{}

	for i := range structure.Nodes {
		n := &structure.Nodes[i]
		inputs, ok := inputsByNode[n.ID]
		if !ok {
			continue
		}
		upstream := transitiveUpstreamOutputs(n.ID, predecessors, outputsByNode)
		preBound := preBoundByNode[n.ID]
		for name := range inputs {
			if _, ok := upstream[strings.ToLower(name)]; ok {
				continue
			}
			if _, ok := preBound[name]; ok {
				continue
			}
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			required = append(required, RequiredInput{
				Name:        name,
				SourceTask:  n.Data.StepFunction,
				SourceLabel: n.Data.Label,
			})
		}
	}
	return required
}

func isTaskNode(n *workflow.Node, nodeTypeOf func(string) (workflow.NodeType, bool)) bool {
	nt, ok := nodeTypeOf(n.Data.Type)
	if !ok || nt.Behavior != workflow.BehaviorTask {
		return false
	}
	return n.Data.StepFunction != ""
}

func resolveTaskIO(
	ctx context.Context,
	taskName string,
	declared DeclaredParams,
	scriptOf ScriptPath,
) (inputs []string, outputs []string) {
	if names, ok := declared(ctx, taskName); ok {
		inputs = names
	} else if path, ok := scriptOf(taskName); ok {
		inputs, _ = introspector.Introspect(path)
	}
	if path, ok := scriptOf(taskName); ok {
		_, outputs = introspector.Introspect(path)
	}
	return inputs, outputs
}

func preBoundKeys(n *workflow.Node) map[string]struct{} {
	out := make(map[string]struct{}, len(n.Data.Attributes))
	for _, a := range n.Data.Attributes {
		out[a.Name] = struct{}{}
	}
	return out
}

func buildPredecessors(structure workflow.Structure) map[string][]string {
	preds := make(map[string][]string)
	for _, e := range structure.Edges {
		preds[e.Target] = append(preds[e.Target], e.Source)
	}
	return preds
}

// transitiveUpstreamOutputs is the union of introspect_outputs over every
// ancestor of nodeID, compared case-insensitively.
func transitiveUpstreamOutputs(
	nodeID string,
	predecessors map[string][]string,
	outputsByNode map[string]map[string]struct{},
) map[string]struct{} {
	visited := map[string]struct{}{}
	union := map[string]struct{}{}
	var walk func(id string)
	walk = func(id string) {
		for _, parent := range predecessors[id] {
			if _, done := visited[parent]; done {
				continue
			}
			visited[parent] = struct{}{}
			for out := range outputsByNode[parent] {
				union[out] = struct{}{}
			}
			walk(parent)
		}
	}
	walk(nodeID)
	return union
}

func toSet(names []string) map[string]struct{} {
	out := make(map[string]struct{}, len(names))
	for _, n := range names {
		out[n] = struct{}{}
	}
	return out
}

func toSetLower(names []string) map[string]struct{} {
	out := make(map[string]struct{}, len(names))
	for _, n := range names {
		out[strings.ToLower(n)] = struct{}{}
	}
	return out
}
