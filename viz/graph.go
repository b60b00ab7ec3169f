// ABOUTME: Graphviz rendering of the collection dependency graph used to order sync runs
// ABOUTME: Nodes are collections by stage, edges are foreign keys, and an optional report colors each node
package viz

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"

	"github.com/harperreed/crmbridge/models"
	"github.com/harperreed/crmbridge/sync"
)

type GraphGenerator struct {
	stages []sync.Stage
}

// NewGraphGenerator renders the given processing order. A nil order uses sync.DependencyOrder.
func NewGraphGenerator(stages []sync.Stage) *GraphGenerator {
	if stages == nil {
		stages = sync.DependencyOrder
	}
	return &GraphGenerator{stages: stages}
}

// CheckOrder verifies that every foreign key points at an entity processed
// in an earlier stage, so parents always land before children.
func CheckOrder(stages []sync.Stage, side models.Side) error {
	stageOf := make(map[models.EntityType]int)
	for i, stage := range stages {
		for _, entity := range stage {
			stageOf[entity] = i
		}
	}
	for i, stage := range stages {
		for _, entity := range stage {
			rec := models.NewRecord(side, entity)
			if rec == nil {
				return fmt.Errorf("unknown entity %q in stage %d", entity, i)
			}
			for _, fk := range rec.ForeignKeys() {
				parent, ok := stageOf[fk.Target]
				if !ok {
					return fmt.Errorf("%s.%s references %s, which no stage processes", entity, fk.Field, fk.Target)
				}
				if parent >= i {
					return fmt.Errorf("%s.%s references %s in stage %d, not before stage %d", entity, fk.Field, fk.Target, parent, i)
				}
			}
		}
	}
	return nil
}

// GenerateDependencyGraph returns DOT source for the processing order using
// side's collection names. When report is non-nil each node carries its counters.
func (g *GraphGenerator) GenerateDependencyGraph(ctx context.Context, side models.Side, report *sync.Report) (string, error) {
	if err := CheckOrder(g.stages, side); err != nil {
		return "", fmt.Errorf("invalid dependency order: %w", err)
	}

	gv, err := graphviz.New(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to create graphviz instance: %w", err)
	}
	defer func() {
		if err := gv.Close(); err != nil {
			fmt.Printf("Error closing graphviz: %v\n", err)
		}
	}()

	graph, err := gv.Graph()
	if err != nil {
		return "", fmt.Errorf("failed to create graph: %w", err)
	}
	defer func() {
		if err := graph.Close(); err != nil {
			fmt.Printf("Error closing graph: %v\n", err)
		}
	}()

	graph.SetRankDir(cgraph.LRRank)
	graph.SetLabel(fmt.Sprintf("%s sync order", side))

	nodes := make(map[models.EntityType]*cgraph.Node)
	for i, stage := range g.stages {
		for _, entity := range stage {
			node, err := graph.CreateNodeByName(string(entity))
			if err != nil {
				return "", fmt.Errorf("failed to create %s node: %w", entity, err)
			}
			node.SetShape("box")
			node.SetStyle("filled")
			node.SetLabel(nodeLabel(entity, side, i, report))
			colorNode(node, report, entity)
			nodes[entity] = node
		}
	}

	for _, stage := range g.stages {
		for _, entity := range stage {
			for _, fk := range models.NewRecord(side, entity).ForeignKeys() {
				edge, err := graph.CreateEdgeByName(fk.Field, nodes[fk.Target], nodes[entity])
				if err != nil {
					return "", fmt.Errorf("failed to create edge: %w", err)
				}
				edge.SetLabel(fk.Field)
			}
		}
	}

	var buf bytes.Buffer
	if err := gv.Render(ctx, graph, graphviz.XDOT, &buf); err != nil {
		return "", fmt.Errorf("failed to render graph: %w", err)
	}

	return buf.String(), nil
}

func nodeLabel(entity models.EntityType, side models.Side, stage int, report *sync.Report) string {
	label := fmt.Sprintf("%s\nstage %d", entity.Collection(side), stage+1)
	if report == nil {
		return label
	}
	c := report.Collection(entity)
	if c == nil {
		return label + "\nnot reached"
	}
	return label + fmt.Sprintf("\n%d ok / %d failed / %d skipped", c.Succeeded, c.Failed, c.Skipped)
}

func colorNode(node *cgraph.Node, report *sync.Report, entity models.EntityType) {
	if report == nil {
		node.SetFillColor("lightblue")
		return
	}
	c := report.Collection(entity)
	switch {
	case c == nil || c.Skipped > 0:
		node.SetFillColor("lightgrey")
	case c.Failed > 0:
		node.SetFillColor("salmon")
	case len(c.Warnings) > 0:
		node.SetFillColor("lightyellow")
	default:
		node.SetFillColor("lightgreen")
	}
}
