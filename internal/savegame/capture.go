package savegame

import (
	"fmt"
	"time"

	"shelfcore/internal/scene"
	"shelfcore/pkg/domain"
)

// Capture snapshots the scene into a record. Stack groups get synthetic
// per-save IDs ("stack-1", "stack-2", ...) in registry order.
func Capture(sc Scene, now time.Time) Record {
	reg := sc.Registry
	rec := Record{
		SaveVersion: CurrentVersion,
		SavedAt:     now.UTC(),
		Player:      reg.Player(),
		Books:       []BookRecord{},
		Crates:      []CrateRecord{},
		Shelves:     []ShelfRecord{},
		Surfaces:    []SurfaceRecord{},
		Displays:    []DisplayRecord{},
	}
	if sc.Calendar != nil {
		rec.CurrentDay = sc.Calendar.Day()
	}
	if sc.Wallet != nil {
		rec.WalletMoney = sc.Wallet.Balance()
	}

	for _, a := range reg.Anchors() {
		w := reg.World(a.ID)
		rec.Surfaces = append(rec.Surfaces, SurfaceRecord{ID: a.ObjectID, Position: w.Position, Rotation: w.Rotation, Size: a.Size})
	}
	for _, s := range reg.Shelves() {
		w := reg.World(s.ID)
		rec.Shelves = append(rec.Shelves, ShelfRecord{ID: s.ObjectID, Template: s.Template, Position: w.Position, Rotation: w.Rotation})
	}

	stackIDs := make(map[scene.NodeID]string)
	for i, g := range reg.Stacks() {
		stackIDs[g.ID] = fmt.Sprintf("stack-%d", i+1)
	}
	for _, b := range reg.Books() {
		rec.Books = append(rec.Books, captureBook(reg, b, stackIDs))
	}

	for _, c := range reg.Crates() {
		w := reg.World(c.ID)
		rec.Crates = append(rec.Crates, CrateRecord{
			ID:       c.ObjectID,
			Position: w.Position,
			Rotation: w.Rotation,
			Opened:   c.Opened,
			Contents: append([]string(nil), c.Contents...),
		})
	}
	for _, d := range reg.Displays() {
		w := reg.World(d.ID)
		dr := DisplayRecord{ID: d.ObjectID, Position: w.Position, Rotation: w.Rotation}
		if b, ok := reg.Book(d.Book); ok {
			dr.AttachedBookID = b.BookID
		}
		if id, ok := reg.NearestAncestor(d.ID, domain.KindAnchor); ok {
			if a, ok := reg.Anchor(id); ok {
				dr.AnchorID = a.ObjectID
			}
		}
		rec.Displays = append(rec.Displays, dr)
	}
	if t, ok := reg.Terminal(); ok {
		w := reg.World(t.ID)
		rec.Terminal = &TerminalRecord{ID: t.ObjectID, Position: w.Position, Rotation: w.Rotation}
	}
	return rec
}

func captureBook(reg *scene.Registry, b *scene.Book, stackIDs map[scene.NodeID]string) BookRecord {
	def := b.Definition
	w := reg.World(b.ID)
	br := BookRecord{
		BookID:   b.BookID,
		Title:    def.Title,
		Genre:    def.Genre,
		Summary:  def.Summary,
		Price:    def.Price,
		Cost:     def.Cost,
		Color:    def.Color,
		Tags:     append([]string(nil), def.Tags...),
		Prefab:   b.Prefab.ID,
		Position: w.Position,
		Rotation: w.Rotation,
	}
	// mounted books are restored through their display record
	if b.Placement.Kind == domain.PlacementDisplay {
		return br
	}
	holder := b.ID
	if g, ok := reg.StackOf(b); ok {
		holder = g.ID
		br.StackGroupID = stackIDs[g.ID]
		br.StackIndex = g.IndexOf(b.ID)
	}
	if id, ok := reg.NearestAncestor(holder, domain.KindAnchor); ok {
		if a, ok := reg.Anchor(id); ok {
			br.TableID = a.ObjectID
			return br
		}
	}
	shelfID, ok := reg.NearestAncestor(holder, domain.KindShelf)
	if !ok {
		return br
	}
	shelf, ok := reg.Shelf(shelfID)
	if !ok {
		return br
	}
	ref := &ShelfRef{ShelfObjectID: shelf.ObjectID}
	regionID, index, slotted := reg.SlotOf(holder)
	if !slotted {
		regionID, slotted = reg.NearestAncestor(holder, domain.KindRegion)
		index = -1
	}
	if slotted {
		if path, ok := reg.PathFrom(shelfID, regionID); ok {
			ref.RegionPath = path
		}
	}
	br.Shelf = ref
	br.ShelfIndex = index
	return br
}
