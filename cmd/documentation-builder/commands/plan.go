package commands

import (
	"context"
	"fmt"
	"path"

	"github.com/disiqueira/gotree/v3"

	"git.home.luguber.info/inful/documentation-builder/internal/build"
	"git.home.luguber.info/inful/documentation-builder/internal/incremental"
)

// PlanCmd implements the 'plan' command.
type PlanCmd struct {
	SourceFlags
}

func (p *PlanCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root, &p.SourceFlags)
	if err != nil {
		return err
	}
	planned, err := build.NewService().WithLogger(g.logger()).Plan(context.Background(), cfg)
	if err != nil {
		return err
	}
	for _, t := range planned {
		_, _ = fmt.Fprint(g.out(), renderPlan(t, cfg.Force))
	}
	return nil
}

// planTree renders documents grouped by directory.
type planTree struct {
	tree gotree.Tree
	dirs map[string]gotree.Tree
}

func newPlanTree(label string) planTree {
	return planTree{tree: gotree.New(label), dirs: make(map[string]gotree.Tree)}
}

func (t planTree) dir(dirPath string) gotree.Tree {
	if dirPath == "." {
		return t.tree
	}
	d := t.dirs[dirPath]
	if d == nil {
		d = t.dir(path.Dir(dirPath)).Add(path.Base(dirPath) + "/")
		t.dirs[dirPath] = d
	}
	return d
}

func (t planTree) insert(doc incremental.Document, label string) {
	t.dir(path.Dir(doc.RelPath)).Add(fmt.Sprintf("[%s] %s", label, path.Base(doc.RelPath)))
}

func renderPlan(t build.PlannedTarget, force bool) string {
	buildable := t.Result.Buildable(force)
	tree := newPlanTree(fmt.Sprintf("%s: %d to build -> %s", t.Name, len(buildable), t.OutputDir))
	for _, doc := range t.Result.All() {
		label := string(doc.Status)
		if force && doc.Status == incremental.StatusUnmodified {
			label = "forced"
		}
		tree.insert(doc, label)
	}
	return tree.tree.Print()
}
