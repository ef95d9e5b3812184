package asyncinject

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/m1gwings/treedrawer/tree"
)

// DOTOption configures the behaviour of ExportDOT.
type DOTOption func(*dotConfig)

type dotConfig struct {
	graphName string
	rankDir   string
}

// DOTWithGraphName overrides the DOT graph identifier.
func DOTWithGraphName(name string) DOTOption {
	return func(cfg *dotConfig) {
		if name != "" {
			cfg.graphName = name
		}
	}
}

// DOTWithRankDir sets the rank direction (e.g. "LR", "TB") for the exported
// DOT graph.
func DOTWithRankDir(rankDir string) DOTOption {
	return func(cfg *dotConfig) {
		if rankDir != "" {
			cfg.rankDir = rankDir
		}
	}
}

// ExportDOT renders the registry's dependency graph in Graphviz DOT format.
// Dependency names without a registered unit appear as nodes too: they are
// satisfied by seed values or defaults at resolve time.
func (r *Registry) ExportDOT(w io.Writer, opts ...DOTOption) error {
	if w == nil {
		return ErrNilWriter
	}

	cfg := dotConfig{graphName: "asyncinject", rankDir: "LR"}
	for _, opt := range opts {
		opt(&cfg)
	}

	graph := r.Graph()
	nodeSet := make(map[string]struct{}, len(graph))
	for name, deps := range graph {
		nodeSet[name] = struct{}{}
		for _, dep := range deps {
			nodeSet[dep] = struct{}{}
		}
	}
	names := make([]string, 0, len(nodeSet))
	for name := range nodeSet {
		names = append(names, name)
	}
	sort.Strings(names)

	if _, err := fmt.Fprintf(w, "digraph %s {\n", dotQuoteIdentifier(cfg.graphName)); err != nil {
		return err
	}
	if cfg.rankDir != "" {
		if _, err := fmt.Fprintf(w, "    rankdir=%s;\n", cfg.rankDir); err != nil {
			return err
		}
	}

	for _, name := range names {
		if _, err := fmt.Fprintf(w, "    %s;\n", dotQuoteIdentifier(name)); err != nil {
			return err
		}
	}

	for _, name := range names {
		deps := graph[name]
		for _, dep := range deps {
			if _, err := fmt.Fprintf(w, "    %s -> %s;\n", dotQuoteIdentifier(dep), dotQuoteIdentifier(name)); err != nil {
				return err
			}
		}
	}

	_, err := io.WriteString(w, "}\n")
	return err
}

func dotQuoteIdentifier(name string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range name {
		switch r {
		case '\\', '"':
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// ExportTree draws the dependency closure of a target name as an ASCII tree,
// dependencies below their consumers. Names revisited along a path are
// annotated instead of expanded, so a cyclic graph still renders.
func (r *Registry) ExportTree(w io.Writer, target string) error {
	if w == nil {
		return ErrNilWriter
	}

	graph := r.Graph()
	root := tree.NewTree(tree.NodeString(target))
	if err := addDependencyNodes(root, target, graph, map[string]struct{}{target: {}}); err != nil {
		return err
	}

	_, err := fmt.Fprintln(w, root.String())
	return err
}

func addDependencyNodes(node *tree.Tree, name string, graph map[string][]string, path map[string]struct{}) error {
	for i, dep := range graph[name] {
		if _, onPath := path[dep]; onPath {
			node.AddChild(tree.NodeString(dep + " (cycle)"))
			continue
		}
		node.AddChild(tree.NodeString(dep))
		child, err := node.Child(i)
		if err != nil {
			return err
		}
		path[dep] = struct{}{}
		if err := addDependencyNodes(child, dep, graph, path); err != nil {
			return err
		}
		delete(path, dep)
	}
	return nil
}
