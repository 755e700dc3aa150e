package placement

import (
	"errors"
	"testing"

	"shelfcore/internal/catalog"
	"shelfcore/internal/furniture"
	"shelfcore/internal/region"
	"shelfcore/internal/scene"
	"shelfcore/internal/stack"
	"shelfcore/internal/tasks"
	"shelfcore/pkg/domain"
)

type fixture struct {
	reg     *scene.Registry
	queue   *tasks.Queue
	placer  *Placer
	builder *furniture.Builder
}

func newFixture() fixture {
	reg := scene.NewRegistry()
	queue := tasks.NewQueue(nil)
	engine := stack.NewEngine(reg, queue, stack.Config{}, nil)
	return fixture{
		reg:     reg,
		queue:   queue,
		placer:  New(reg, engine, region.NewResolver(reg, nil), catalog.Demo(), nil),
		builder: furniture.NewBuilder(reg, furniture.DefaultTemplates(), nil),
	}
}

func (f fixture) spawn(t *testing.T, id string) *scene.Book {
	t.Helper()
	b, err := f.placer.SpawnBook(id, domain.At(domain.V3(0, 1, 0)))
	if err != nil {
		t.Fatalf("spawn %s: %v", id, err)
	}
	return b
}

func TestSpawnBookUsesCatalog(t *testing.T) {
	f := newFixture()
	b := f.spawn(t, "atlas")
	if b.BookID != "atlas" || b.Title() != "Atlas" || b.Prefab.ID != "book-large" {
		t.Fatalf("unexpected book %+v", b)
	}
	if _, err := f.placer.SpawnBook("missing", domain.At(domain.Vec3{})); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPlaceOnShelfFillsSlotsInOrder(t *testing.T) {
	f := newFixture()
	shelf, err := f.builder.SpawnShelf("LowShelf", "low", domain.At(domain.V3(0, 0, 0)))
	if err != nil {
		t.Fatalf("shelf: %v", err)
	}
	a, b := f.spawn(t, "atlas"), f.spawn(t, "bestiary")
	if err := f.placer.PlaceOnShelf(a, shelf, "Upper", -1); err != nil {
		t.Fatalf("place a: %v", err)
	}
	if err := f.placer.PlaceOnShelf(b, shelf, "upper(Clone)", -1); err != nil {
		t.Fatalf("place b: %v", err)
	}
	if a.Placement.Index != 0 || b.Placement.Index != 1 {
		t.Fatalf("expected slots 0 and 1, got %d %d", a.Placement.Index, b.Placement.Index)
	}
	if !a.Physics.Kinematic {
		t.Fatalf("shelved books must be frozen")
	}
	c := f.spawn(t, "cookbook")
	if err := f.placer.PlaceOnShelf(c, shelf, "Upper", 1); !errors.Is(err, domain.ErrSlotOccupied) {
		t.Fatalf("expected occupied slot, got %v", err)
	}
	if c.Placement.Placed() {
		t.Fatalf("rejected placement must not mutate the book")
	}
	if err := f.placer.PlaceOnShelf(c, shelf, "Nonexistent", -1); !domain.IsNotFound(err) {
		t.Fatalf("expected region not found, got %v", err)
	}
}

func TestPlaceOnShelfRegionFull(t *testing.T) {
	f := newFixture()
	shelf, _ := f.builder.SpawnShelf("LowShelf", "low", domain.At(domain.Vec3{}))
	g := f.reg.Regions(shelf)[0]
	for i := 0; i < g.Capacity(); i++ {
		if err := f.placer.PlaceOnShelf(f.spawn(t, "mystery"), shelf, g.Name, -1); err != nil {
			t.Fatalf("place %d: %v", i, err)
		}
	}
	if err := f.placer.PlaceOnShelf(f.spawn(t, "mystery"), shelf, g.Name, -1); !errors.Is(err, domain.ErrRegionFull) {
		t.Fatalf("expected region full, got %v", err)
	}
}

func TestMovingBetweenContainersReleasesPreviousOne(t *testing.T) {
	f := newFixture()
	shelf, _ := f.builder.SpawnShelf("LowShelf", "low", domain.At(domain.Vec3{}))
	table, _ := f.builder.SpawnTable("t", domain.At(domain.V3(3, 0.8, 0)), domain.V3(2, 0.05, 1))
	display, _ := f.builder.SpawnDisplay("d", "t", domain.At(domain.V3(3, 0.85, 0)))
	b := f.spawn(t, "atlas")

	if err := f.placer.PlaceOnShelf(b, shelf, "Upper", 4); err != nil {
		t.Fatalf("shelf: %v", err)
	}
	upper := f.reg.Regions(shelf)[0]
	if err := f.placer.PlaceOnTable(b, table, domain.V3(0.2, 0.05, 0)); err != nil {
		t.Fatalf("table: %v", err)
	}
	if upper.Slots[4] != 0 {
		t.Fatalf("shelf slot must be released")
	}
	if err := f.placer.AttachToDisplay(b, display); err != nil {
		t.Fatalf("display: %v", err)
	}
	if display.Book != b.ID || b.Placement.Kind != domain.PlacementDisplay {
		t.Fatalf("display attachment not recorded")
	}
	other := f.spawn(t, "bestiary")
	if err := f.placer.AttachToDisplay(other, display); !errors.Is(err, domain.ErrDisplayOccupied) {
		t.Fatalf("expected occupied display, got %v", err)
	}
	if err := f.placer.PickUp(b); err != nil {
		t.Fatalf("pick up: %v", err)
	}
	if display.Book != 0 || b.Placement.Placed() || b.Physics.Kinematic {
		t.Fatalf("pick up must clear display and unfreeze")
	}
	if n, _ := f.reg.Node(b.ID); n.Parent != 0 {
		t.Fatalf("held book must be at scene root")
	}
}

func TestPickUpFromStackDefersEmptyGroupDestroy(t *testing.T) {
	f := newFixture()
	a, b := f.spawn(t, "atlas"), f.spawn(t, "atlas")
	if res, err := f.placer.StackOnto(a, b); err != nil || res != domain.Added {
		t.Fatalf("stack: %v %v", res, err)
	}
	g, _ := f.reg.StackOf(a)
	if err := f.placer.PickUp(b); err != nil {
		t.Fatalf("pick b: %v", err)
	}
	if err := f.placer.PickUp(a); err != nil {
		t.Fatalf("pick a: %v", err)
	}
	if _, ok := f.reg.Stack(g.ID); !ok {
		t.Fatalf("group must survive until the next tick")
	}
	f.queue.Tick()
	if _, ok := f.reg.Stack(g.ID); ok {
		t.Fatalf("empty group must be destroyed after a tick")
	}
	if !f.reg.Exists(a.ID) || !f.reg.Exists(b.ID) {
		t.Fatalf("picked books must survive")
	}
}

func TestRemoveDestroysBook(t *testing.T) {
	f := newFixture()
	table, _ := f.builder.SpawnTable("t", domain.At(domain.Vec3{}), domain.V3(1, 0.05, 1))
	b := f.spawn(t, "atlas")
	_ = f.placer.PlaceOnTable(b, table, domain.Vec3{})
	if err := f.placer.Remove(b); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if f.reg.Exists(b.ID) || len(f.reg.Children(table.ID)) != 0 {
		t.Fatalf("book must be gone from the table")
	}
}
