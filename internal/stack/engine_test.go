package stack

import (
	"math"
	"testing"

	"shelfcore/internal/scene"
	"shelfcore/internal/tasks"
	"shelfcore/pkg/domain"
)

type fixture struct {
	reg    *scene.Registry
	queue  *tasks.Queue
	engine *Engine
	table  *scene.Anchor
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	reg := scene.NewRegistry()
	queue := tasks.NewQueue(nil)
	table, err := reg.NewAnchor("table-1", "Table", domain.At(domain.V3(0, 0.8, 0)), domain.V3(2, 0.05, 1))
	if err != nil {
		t.Fatalf("new anchor: %v", err)
	}
	return fixture{reg: reg, queue: queue, engine: NewEngine(reg, queue, Config{}, nil), table: table}
}

func (f fixture) book(t *testing.T, title string, x float64) *scene.Book {
	t.Helper()
	b, err := f.reg.NewBook(domain.BookDefinition{ID: "id-" + title, Title: title}, domain.Prefab{ID: "book"}, domain.At(domain.V3(x, 1, 0)))
	if err != nil {
		t.Fatalf("new book: %v", err)
	}
	return b
}

func (f fixture) tableGroup(t *testing.T) *scene.StackGroup {
	t.Helper()
	g, err := f.engine.NewGroup(domain.StackOnTable, f.table.ID, domain.At(domain.V3(0, 0.825, 0)), domain.Prefab{})
	if err != nil {
		t.Fatalf("new group: %v", err)
	}
	return g
}

func TestAtlasStackRejectsFifthBook(t *testing.T) {
	f := newFixture(t)
	g := f.tableGroup(t)
	var books []*scene.Book
	for i := 0; i < 5; i++ {
		books = append(books, f.book(t, "Atlas", float64(i)))
	}
	for i := 0; i < 4; i++ {
		if res := f.engine.AddBook(g, books[i]); res != domain.Added {
			t.Fatalf("add book %d: %v", i, res)
		}
		if g.Count() > g.MaxHeight {
			t.Fatalf("count %d exceeds max %d", g.Count(), g.MaxHeight)
		}
	}
	if f.engine.CanStack(books[0], books[4]) {
		t.Fatalf("expected CanStack false on full stack")
	}
	if res := f.engine.AddBook(g, books[4]); res != domain.RejectedFull {
		t.Fatalf("expected rejected full, got %v", res)
	}
	if books[4].Placement.Placed() {
		t.Fatalf("fifth book must stay unstacked, got %+v", books[4].Placement)
	}
	if _, ok := f.reg.StackOf(books[4]); ok {
		t.Fatalf("fifth book must have no stack group")
	}
	if g.Count() != 4 {
		t.Fatalf("expected 4 members, got %d", g.Count())
	}
}

func TestCanStackTitleComparison(t *testing.T) {
	f := newFixture(t)
	a := f.book(t, "Atlas", 0)
	b := f.book(t, "  atlas ", 1)
	c := f.book(t, "Bestiary", 2)
	if !f.engine.CanStack(a, b) {
		t.Fatalf("expected trimmed case-insensitive match")
	}
	if f.engine.CanStack(a, c) {
		t.Fatalf("expected title mismatch")
	}
	if f.engine.CanStack(a, a) {
		t.Fatalf("a book cannot stack onto itself")
	}
	g := f.tableGroup(t)
	if res := f.engine.AddBook(g, a); res != domain.Added {
		t.Fatalf("add: %v", res)
	}
	if res := f.engine.AddBook(g, c); res != domain.RejectedTitleMismatch {
		t.Fatalf("expected mismatch, got %v", res)
	}
	if res := f.engine.AddBook(g, a); res != domain.RejectedAlreadyMember {
		t.Fatalf("expected already member, got %v", res)
	}
	for _, id := range g.Members {
		m, _ := f.reg.Book(id)
		if !domain.SameTitle(m.Title(), g.Title) {
			t.Fatalf("member %d title %q differs from %q", id, m.Title(), g.Title)
		}
	}
}

func TestRemoveBottomRecompacts(t *testing.T) {
	f := newFixture(t)
	g := f.tableGroup(t)
	books := []*scene.Book{f.book(t, "Atlas", 0), f.book(t, "Atlas", 1), f.book(t, "Atlas", 2)}
	for _, b := range books {
		if res := f.engine.AddBook(g, b); !res.OK() {
			t.Fatalf("add: %v", res)
		}
	}
	bottomWorld := f.reg.World(books[0].ID)
	if err := f.engine.RemoveBook(g, books[0], false); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if !f.reg.World(books[0].ID).ApproxEqual(bottomWorld, domain.Epsilon) {
		t.Fatalf("removed book must keep its world pose")
	}
	if books[0].Placement.Placed() {
		t.Fatalf("removed book must be unplaced")
	}
	for i, b := range books[1:] {
		if b.Placement.Kind != domain.PlacementStack || b.Placement.Container != g.ID {
			t.Fatalf("book %d lost its stack placement: %+v", i, b.Placement)
		}
		if b.Placement.Index != i {
			t.Fatalf("expected index %d, got %d", i, b.Placement.Index)
		}
		n, _ := f.reg.Node(b.ID)
		want := domain.V3(0, g.Thickness*float64(i), 0)
		if !n.Local.Position.ApproxEqual(want, domain.Epsilon) {
			t.Fatalf("book %d offset %+v, want %+v", i, n.Local.Position, want)
		}
	}
}

func TestHeldRemovalDefersDestroy(t *testing.T) {
	f := newFixture(t)
	g := f.tableGroup(t)
	b := f.book(t, "Atlas", 0)
	f.engine.AddBook(g, b)
	if err := f.engine.RemoveBook(g, b, true); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok := f.reg.Stack(g.ID); !ok {
		t.Fatalf("group destroyed in the same tick as a held removal")
	}
	f.queue.Tick()
	if _, ok := f.reg.Stack(g.ID); ok {
		t.Fatalf("expected empty group destroyed after one tick")
	}
	if !f.reg.Exists(b.ID) {
		t.Fatalf("held book must survive group destruction")
	}
}

func TestHeldRemovalKeepsRefilledGroup(t *testing.T) {
	f := newFixture(t)
	g := f.tableGroup(t)
	a, b := f.book(t, "Atlas", 0), f.book(t, "Atlas", 1)
	f.engine.AddBook(g, a)
	_ = f.engine.RemoveBook(g, a, true)
	if res := f.engine.AddBook(g, b); !res.OK() {
		t.Fatalf("refill: %v", res)
	}
	f.queue.Tick()
	if _, ok := f.reg.Stack(g.ID); !ok {
		t.Fatalf("refilled group must not be destroyed by the deferred check")
	}
}

func TestTableStackGrowsAlongWorldUp(t *testing.T) {
	f := newFixture(t)
	s := math.Sqrt2 / 2
	tilted := domain.Transform{Position: domain.V3(1, 1, 1), Rotation: domain.Quat{X: s, W: s}}
	g, err := f.engine.NewGroup(domain.StackOnTable, 0, tilted, domain.Prefab{Thickness: 0.05})
	if err != nil {
		t.Fatalf("group: %v", err)
	}
	a, b := f.book(t, "Atlas", 0), f.book(t, "Atlas", 1)
	f.engine.AddBook(g, a)
	f.engine.AddBook(g, b)
	wa, wb := f.reg.World(a.ID), f.reg.World(b.ID)
	if d := wb.Position.Sub(wa.Position); !d.ApproxEqual(domain.V3(0, 0.05, 0), domain.Epsilon) {
		t.Fatalf("expected world-up offset, got %+v", d)
	}
}

func TestStackOntoLooseShelfBookKeepsSlot(t *testing.T) {
	f := newFixture(t)
	shelf, err := f.reg.NewShelf("shelf-1", "Bookcase", domain.At(domain.V3(3, 0, 0)))
	if err != nil {
		t.Fatalf("shelf: %v", err)
	}
	region, err := f.reg.NewRegion(shelf, shelf.ID, "Top", domain.At(domain.V3(0, 1.5, 0)), domain.V3(1, 0.3, 0.3), 0.25)
	if err != nil {
		t.Fatalf("region: %v", err)
	}
	target := f.book(t, "Atlas", 0)
	if err := f.reg.Reparent(target.ID, region.ID); err != nil {
		t.Fatalf("reparent: %v", err)
	}
	if err := f.reg.OccupySlot(region.ID, 2, target.ID); err != nil {
		t.Fatalf("occupy: %v", err)
	}
	target.Placement = domain.Placement{Kind: domain.PlacementShelf, Container: region.ID, Index: 2}

	incoming := f.book(t, "Atlas", 1)
	res, err := f.engine.StackOnto(target, incoming)
	if err != nil || res != domain.Added {
		t.Fatalf("stack onto: %v %v", res, err)
	}
	g, ok := f.reg.StackOf(target)
	if !ok || g.Context != domain.StackOnShelf || g.Count() != 2 {
		t.Fatalf("expected 2-book shelf stack, got %+v", g)
	}
	if reg, idx, ok := f.reg.SlotOf(g.ID); !ok || reg != region.ID || idx != 2 {
		t.Fatalf("expected stack to take slot 2, got %d %d %v", reg, idx, ok)
	}
	if _, _, ok := f.reg.SlotOf(target.ID); ok {
		t.Fatalf("target must not keep its own slot once stacked")
	}

	other := f.book(t, "Bestiary", 2)
	if res, _ := f.engine.StackOnto(target, other); res != domain.RejectedTitleMismatch {
		t.Fatalf("expected mismatch, got %v", res)
	}
}

func TestStackOntoRejectsDisplayedBooks(t *testing.T) {
	f := newFixture(t)
	display, err := f.reg.NewDisplay("display-1", f.table.ID, domain.At(domain.V3(0.5, 0.85, 0)))
	if err != nil {
		t.Fatalf("display: %v", err)
	}
	mounted := f.book(t, "Atlas", 0)
	if err := f.reg.Reparent(mounted.ID, display.ID); err != nil {
		t.Fatalf("reparent: %v", err)
	}
	if err := f.reg.AttachDisplay(display, mounted); err != nil {
		t.Fatalf("attach: %v", err)
	}
	loose := f.book(t, "Atlas", 1)

	if res, err := f.engine.StackOnto(mounted, loose); err != nil || res != domain.RejectedInvalid {
		t.Fatalf("stacking onto a displayed book: %v %v", res, err)
	}
	if res, err := f.engine.StackOnto(loose, mounted); err != nil || res != domain.RejectedInvalid {
		t.Fatalf("stacking a displayed book: %v %v", res, err)
	}
	if len(f.reg.Stacks()) != 0 {
		t.Fatalf("no stack group may be created, got %d", len(f.reg.Stacks()))
	}
	if n, _ := f.reg.Node(mounted.ID); n.Parent != display.ID || display.Book != mounted.ID {
		t.Fatalf("mount changed: parent %d display book %d", n.Parent, display.Book)
	}
	if loose.Placement.Placed() {
		t.Fatalf("loose book must stay loose, got %+v", loose.Placement)
	}
}
