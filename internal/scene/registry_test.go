package scene

import (
	"testing"

	"shelfcore/pkg/domain"
)

func TestReparentPreservesWorldPose(t *testing.T) {
	r := NewRegistry()
	parent, err := r.Create(domain.KindAnchor, "Table", 0, domain.Transform{Position: domain.V3(2, 1, 0), Rotation: domain.YawDegrees(90)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	child, _ := r.CreateWorld(domain.KindBook, "Atlas", 0, domain.At(domain.V3(3, 1.5, -1)))
	before := r.World(child)
	if err := r.Reparent(child, parent); err != nil {
		t.Fatalf("reparent: %v", err)
	}
	if !r.World(child).ApproxEqual(before, domain.Epsilon) {
		t.Fatalf("world pose changed: %+v vs %+v", r.World(child), before)
	}
	if kids := r.Children(parent); len(kids) != 1 || kids[0] != child {
		t.Fatalf("child list not updated: %v", kids)
	}
	if err := r.Reparent(parent, child); err == nil {
		t.Fatalf("expected cycle rejection")
	}
	if err := r.Reparent(child, 0); err != nil {
		t.Fatalf("reparent to root: %v", err)
	}
	if len(r.Children(parent)) != 0 || !r.World(child).ApproxEqual(before, domain.Epsilon) {
		t.Fatalf("detach must keep pose and clear the old child list")
	}
}

func TestDestroyRemovesSubtreeAndEntities(t *testing.T) {
	r := NewRegistry()
	shelf, _ := r.NewShelf("s-1", "Bookcase", domain.At(domain.Vec3{}))
	frame, _ := r.Create(domain.KindShelfPart, "Frame", shelf.ID, domain.At(domain.Vec3{}))
	region, err := r.NewRegion(shelf, frame, "Top", domain.At(domain.V3(0, 1, 0)), domain.V3(1, 0.4, 0.3), 0.25)
	if err != nil {
		t.Fatalf("region: %v", err)
	}
	if region.Capacity() != 4 {
		t.Fatalf("expected 4 slots, got %d", region.Capacity())
	}
	b, _ := r.NewBook(domain.BookDefinition{ID: "atlas", Title: "Atlas"}, domain.Prefab{ID: "p"}, domain.At(domain.Vec3{}))
	_ = r.Reparent(b.ID, region.ID)
	if err := r.OccupySlot(region.ID, 1, b.ID); err != nil {
		t.Fatalf("occupy: %v", err)
	}
	r.IgnoreCollision(shelf.ID, b.ID)

	removed := r.Destroy(shelf.ID)
	if len(removed) != 4 {
		t.Fatalf("expected 4 removed nodes, got %v", removed)
	}
	if _, ok := r.Book(b.ID); ok || r.Len() != 0 || len(r.Shelves()) != 0 {
		t.Fatalf("entities survived destroy")
	}
	if _, _, ok := r.SlotOf(b.ID); ok {
		t.Fatalf("slot bookkeeping survived destroy")
	}
	if r.CollisionIgnored(shelf.ID, b.ID) {
		t.Fatalf("ignored pair survived destroy")
	}
}

func TestSlotsAndDisplays(t *testing.T) {
	r := NewRegistry()
	shelf, _ := r.NewShelf("s-1", "LowShelf", domain.At(domain.Vec3{}))
	region, _ := r.NewRegion(shelf, shelf.ID, "Upper", domain.At(domain.Vec3{}), domain.V3(0.3, 0.3, 0.3), 0.1)
	a, _ := r.NewBook(domain.BookDefinition{ID: "a", Title: "A"}, domain.Prefab{}, domain.At(domain.Vec3{}))
	b, _ := r.NewBook(domain.BookDefinition{ID: "b", Title: "B"}, domain.Prefab{}, domain.At(domain.Vec3{}))

	if err := r.OccupySlot(region.ID, 0, a.ID); err != nil {
		t.Fatalf("occupy: %v", err)
	}
	if err := r.OccupySlot(region.ID, 0, b.ID); err != domain.ErrSlotOccupied {
		t.Fatalf("expected occupied, got %v", err)
	}
	if err := r.OccupySlot(region.ID, 9, b.ID); err == nil {
		t.Fatalf("expected out of range slot error")
	}
	if free, ok := r.FreeSlot(region.ID); !ok || free != 1 {
		t.Fatalf("expected slot 1 free, got %d %v", free, ok)
	}
	if err := r.OccupySlot(region.ID, 2, a.ID); err != nil || region.Slots[0] != 0 {
		t.Fatalf("moving an occupant must free its old slot")
	}
	a.Placement = domain.Placement{Kind: domain.PlacementShelf, Container: region.ID, Index: 2}
	if !r.ClearPlacement(a) || region.Slots[2] != 0 || a.Placement.Placed() {
		t.Fatalf("clear placement must free the slot")
	}

	d, _ := r.NewDisplay("d-1", 0, domain.At(domain.Vec3{}))
	if err := r.AttachDisplay(d, a); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if err := r.AttachDisplay(d, b); err != domain.ErrDisplayOccupied {
		t.Fatalf("expected occupied display, got %v", err)
	}
	r.Destroy(a.ID)
	if d.Book != 0 {
		t.Fatalf("destroying the mounted book must free the display")
	}
}

func TestPathsAndLookups(t *testing.T) {
	r := NewRegistry()
	shelf, _ := r.NewShelf("dup", "Bookcase", domain.At(domain.Vec3{}))
	frame, _ := r.Create(domain.KindShelfPart, "Frame", shelf.ID, domain.At(domain.Vec3{}))
	mid, _ := r.Create(domain.KindRegion, "Middle", frame, domain.At(domain.Vec3{}))
	if p, ok := r.PathFrom(shelf.ID, mid); !ok || p != "Frame/Middle" {
		t.Fatalf("unexpected path %q", p)
	}
	if id, ok := r.FindPath(shelf.ID, "/Frame/Middle/"); !ok || id != mid {
		t.Fatalf("find path failed")
	}
	if _, ok := r.FindPath(shelf.ID, "Frame/middle"); ok {
		t.Fatalf("exact path lookup must be case sensitive")
	}
	if anc, ok := r.NearestAncestor(mid, domain.KindShelf); !ok || anc != shelf.ID {
		t.Fatalf("nearest shelf ancestor not found")
	}
	if got := r.Descendants(shelf.ID); len(got) != 2 || got[0] != frame || got[1] != mid {
		t.Fatalf("unexpected pre-order %v", got)
	}
	_, _ = r.NewShelf("dup", "Bookcase", domain.At(domain.V3(5, 0, 0)))
	if n := len(r.ShelvesByObjectID("dup")); n != 2 {
		t.Fatalf("expected duplicate shelves, got %d", n)
	}

	r.SetPlayer(domain.PlayerPose{Yaw: 10})
	r.Clear()
	if r.Len() != 0 || r.Player().Yaw != 10 {
		t.Fatalf("clear must drop nodes and keep the player pose")
	}
	next, _ := r.Create(domain.KindRoot, "x", 0, domain.Transform{})
	if next <= mid {
		t.Fatalf("node ids must not be reused after clear")
	}
}
