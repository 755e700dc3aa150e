package furniture

import (
	"errors"
	"testing"

	"shelfcore/internal/scene"
	"shelfcore/pkg/domain"
)

func newBuilder() (*scene.Registry, *Builder) {
	reg := scene.NewRegistry()
	return reg, NewBuilder(reg, DefaultTemplates(), nil)
}

func TestSpawnShelfIsDeterministic(t *testing.T) {
	reg, b := newBuilder()
	first, err := b.SpawnShelf("bookcase", "", domain.At(domain.V3(0, 0, 0)))
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	second, err := b.SpawnShelf("Bookcase", "fixed-id", domain.At(domain.V3(5, 0, 0)))
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if first.ObjectID == "" || second.ObjectID != "fixed-id" {
		t.Fatalf("unexpected object ids %q %q", first.ObjectID, second.ObjectID)
	}
	a, c := reg.Regions(first), reg.Regions(second)
	if len(a) != 3 || len(a) != len(c) {
		t.Fatalf("expected 3 regions each, got %d and %d", len(a), len(c))
	}
	for i := range a {
		pa, _ := reg.PathFrom(first.ID, a[i].ID)
		pc, _ := reg.PathFrom(second.ID, c[i].ID)
		if pa != pc {
			t.Fatalf("region %d path %q differs from %q", i, pa, pc)
		}
		if a[i].Capacity() != 12 {
			t.Fatalf("expected 12 slots, got %d", a[i].Capacity())
		}
	}
	if p, _ := reg.PathFrom(first.ID, a[1].ID); p != "Frame/Middle" {
		t.Fatalf("unexpected path %q", p)
	}
	if _, err := b.SpawnShelf("Pagoda", "", domain.At(domain.Vec3{})); !domain.IsNotFound(err) {
		t.Fatalf("expected not found for unknown template, got %v", err)
	}
}

func TestSpawnDisplayOnAnchor(t *testing.T) {
	reg, b := newBuilder()
	table, err := b.SpawnTable("table-1", domain.At(domain.V3(1, 0.8, 1)), domain.V3(2, 0.05, 1))
	if err != nil {
		t.Fatalf("table: %v", err)
	}
	d, err := b.SpawnDisplay("", "table-1", domain.At(domain.V3(1, 0.85, 1)))
	if err != nil {
		t.Fatalf("display: %v", err)
	}
	n, _ := reg.Node(d.ID)
	if n.Parent != table.ID {
		t.Fatalf("expected display parented to table")
	}
	if !reg.World(d.ID).Position.ApproxEqual(domain.V3(1, 0.85, 1), domain.Epsilon) {
		t.Fatalf("display lost its world pose")
	}
	loose, err := b.SpawnDisplay("", "missing", domain.At(domain.Vec3{}))
	if err != nil {
		t.Fatalf("display: %v", err)
	}
	if n, _ := reg.Node(loose.ID); n.Parent != 0 {
		t.Fatalf("expected world-space display when the anchor is missing")
	}
}

func TestMoveCancelRestoresEverything(t *testing.T) {
	reg, b := newBuilder()
	shelf, err := b.SpawnShelf("Bookcase", "s", domain.At(domain.V3(0, 0, 0)))
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	regions := reg.Regions(shelf)
	reg.SetVisible(regions[2].ID, false)
	reg.IgnoreCollision(shelf.ID, regions[0].ID)

	s, err := b.BeginMove(shelf.ID)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if n, _ := reg.Node(shelf.ID); n.Visible {
		t.Fatalf("renderers must be hidden while moving")
	}
	if !reg.CollisionIgnored(shelf.ID, regions[1].ID) {
		t.Fatalf("child collisions must be ignored while moving")
	}
	if err := s.Nudge(domain.V3(2, 0, 0)); err != nil {
		t.Fatalf("nudge: %v", err)
	}
	s.Cancel()
	s.Cancel()

	if !reg.World(shelf.ID).ApproxEqual(domain.At(domain.Vec3{}), domain.Epsilon) {
		t.Fatalf("pose not restored: %+v", reg.World(shelf.ID))
	}
	if n, _ := reg.Node(shelf.ID); !n.Visible {
		t.Fatalf("shelf renderer not restored")
	}
	if n, _ := reg.Node(regions[2].ID); n.Visible {
		t.Fatalf("previously hidden renderer must stay hidden")
	}
	if reg.CollisionIgnored(shelf.ID, regions[1].ID) {
		t.Fatalf("session-added ignore must be removed")
	}
	if !reg.CollisionIgnored(shelf.ID, regions[0].ID) {
		t.Fatalf("pre-existing ignore must survive")
	}
	if err := s.MoveTo(domain.At(domain.V3(9, 0, 0))); err == nil {
		t.Fatalf("expected closed session to reject moves")
	}
}

func TestCommitRejectedRunsCancel(t *testing.T) {
	reg, b := newBuilder()
	if _, err := b.SpawnShelf("Bookcase", "a", domain.At(domain.V3(0, 0, 0))); err != nil {
		t.Fatalf("spawn: %v", err)
	}
	c, _ := b.SpawnShelf("Bookcase", "c", domain.At(domain.V3(3, 0, 0)))

	s, err := b.BeginMove(c.ID)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := s.MoveTo(domain.At(domain.V3(0.5, 0, 0))); err != nil {
		t.Fatalf("move: %v", err)
	}
	err = s.Commit(FootprintValidator{Builder: b})
	if !errors.Is(err, domain.ErrInvalidMove) {
		t.Fatalf("expected invalid move, got %v", err)
	}
	if s.Active() {
		t.Fatalf("rejected commit must close the session")
	}
	if !reg.World(c.ID).Position.ApproxEqual(domain.V3(3, 0, 0), domain.Epsilon) {
		t.Fatalf("rejected commit must restore pose")
	}
	if n, _ := reg.Node(c.ID); !n.Visible {
		t.Fatalf("rejected commit must restore renderers")
	}
	s.Cancel()

	s, _ = b.BeginMove(c.ID)
	_ = s.MoveTo(domain.At(domain.V3(2, 0, 0)))
	if err := s.Commit(FootprintValidator{Builder: b}); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if !reg.World(c.ID).Position.ApproxEqual(domain.V3(2, 0, 0), domain.Epsilon) {
		t.Fatalf("committed pose lost")
	}
	if reg.CollisionIgnored(c.ID, reg.Regions(c)[0].ID) {
		t.Fatalf("commit must restore collision state")
	}
}

func TestFootprintHonoursIgnoredPairs(t *testing.T) {
	reg, b := newBuilder()
	a, _ := b.SpawnTable("t1", domain.At(domain.V3(0, 0, 0)), domain.V3(2, 0.1, 1))
	c, _ := b.SpawnTable("t2", domain.At(domain.V3(1, 0, 0)), domain.V3(2, 0.1, 1))
	v := FootprintValidator{Builder: b}
	if err := v.Validate(reg, c.ID); err == nil {
		t.Fatalf("expected overlap")
	}
	reg.IgnoreCollision(a.ID, c.ID)
	if err := v.Validate(reg, c.ID); err != nil {
		t.Fatalf("ignored pair must not overlap: %v", err)
	}
}
