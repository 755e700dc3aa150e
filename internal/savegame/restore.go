package savegame

import (
	"sort"

	"shelfcore/internal/scene"
	"shelfcore/pkg/domain"
)

// restorer rebuilds one record into the scene. Its deferred steps run from the
// task queue after the hierarchy has been recreated.
type restorer struct {
	sc     Scene
	logger domain.Logger
	report *LoadReport

	groups   map[string][]stacked
	order    []string
	consumed map[scene.NodeID]bool
}

type stacked struct {
	rec  BookRecord
	book *scene.Book
}

func (r *restorer) restoreScalars(rec Record) {
	if r.sc.Calendar != nil {
		r.sc.Calendar.Set(rec.CurrentDay)
	}
	if r.sc.Wallet != nil {
		r.sc.Wallet.Set(rec.WalletMoney)
	}
	r.sc.Registry.SetPlayer(rec.Player)
}

// restoreFurniture recreates containers in dependency order: shelves (so their
// regions exist), anchors, displays, the terminal and crates.
func (r *restorer) restoreFurniture(rec Record) {
	b := r.sc.Builder
	for _, s := range rec.Shelves {
		if _, err := b.SpawnShelf(s.Template, s.ID, pose(s.Position, s.Rotation)); err != nil {
			r.logger.Warn("shelf not restored", "object_id", s.ID, "template", s.Template, "error", err)
		}
	}
	for _, a := range rec.Surfaces {
		if _, err := b.SpawnTable(a.ID, pose(a.Position, a.Rotation), a.Size); err != nil {
			r.logger.Warn("surface not restored", "object_id", a.ID, "error", err)
		}
	}
	for _, d := range rec.Displays {
		if _, err := b.SpawnDisplay(d.ID, d.AnchorID, pose(d.Position, d.Rotation)); err != nil {
			r.logger.Warn("display not restored", "object_id", d.ID, "error", err)
		}
	}
	if t := rec.Terminal; t != nil {
		if _, err := b.SpawnTerminal(t.ID, pose(t.Position, t.Rotation)); err != nil {
			r.logger.Warn("terminal not restored", "object_id", t.ID, "error", err)
		}
	}
	for _, c := range rec.Crates {
		if _, err := b.SpawnCrate(c.ID, pose(c.Position, c.Rotation), c.Contents, c.Opened); err != nil {
			r.logger.Warn("crate not restored", "object_id", c.ID, "error", err)
		}
	}
}

// restoreBooks instantiates every book and parents the unstacked ones. Stack
// members wait for reconnectStacks.
func (r *restorer) restoreBooks(rec Record) {
	r.groups = make(map[string][]stacked)
	for _, br := range rec.Books {
		b, ok := r.instantiate(br)
		if !ok {
			r.report.Skipped++
			continue
		}
		r.report.Loaded++
		if br.StackGroupID != "" {
			if _, seen := r.groups[br.StackGroupID]; !seen {
				r.order = append(r.order, br.StackGroupID)
			}
			r.groups[br.StackGroupID] = append(r.groups[br.StackGroupID], stacked{rec: br, book: b})
			continue
		}
		switch {
		case br.TableID != "":
			r.placeOnTable(b, br)
		case br.Shelf != nil:
			r.placeOnShelf(b, br)
		}
	}
}

func (r *restorer) instantiate(br BookRecord) (*scene.Book, bool) {
	def, ok := r.sc.Catalog.DefinitionByID(br.BookID)
	if !ok {
		def = br.Definition()
		r.logger.Warn("book definition missing from catalog, using save snapshot", "book_id", br.BookID)
	}
	prefab, ok := r.sc.Catalog.PrefabByID(br.BookID)
	if !ok && br.Prefab != "" {
		prefab, ok = r.sc.Catalog.PrefabByID(br.Prefab)
	}
	if !ok {
		r.logger.Warn("book prefab missing, skipping book", "book_id", br.BookID)
		return nil, false
	}
	b, err := r.sc.Registry.NewBook(def, prefab, br.World())
	if err != nil {
		r.logger.Warn("book not restored", "book_id", br.BookID, "error", err)
		return nil, false
	}
	return b, true
}

func (r *restorer) orphan(b *scene.Book, reason string, args ...any) {
	r.report.Orphaned++
	r.logger.Warn(reason, append([]any{"book", b.ID, "book_id", b.BookID}, args...)...)
}

func (r *restorer) placeOnTable(b *scene.Book, br BookRecord) {
	a, ok := r.sc.Registry.AnchorByObjectID(br.TableID)
	if !ok {
		r.orphan(b, "surface missing, book left in world space", "table", br.TableID)
		return
	}
	if err := r.sc.Registry.Reparent(b.ID, a.ID); err != nil {
		r.orphan(b, "parent book under surface", "table", br.TableID, "error", err)
		return
	}
	b.Placement = domain.Placement{Kind: domain.PlacementTable, Container: a.ID}
	b.Physics = domain.Frozen()
}

// placeOnShelf parents b under its recorded region, claiming the recorded slot
// when it is still free.
func (r *restorer) placeOnShelf(b *scene.Book, br BookRecord) {
	parent, region, ok := r.resolveShelf(br)
	if !ok {
		r.orphan(b, "shelf missing, book left in world space", "shelf", br.Shelf.ShelfObjectID)
		return
	}
	if err := r.sc.Registry.Reparent(b.ID, parent); err != nil {
		r.orphan(b, "parent book under shelf", "shelf", br.Shelf.ShelfObjectID, "error", err)
		return
	}
	b.Placement = domain.Placement{Kind: domain.PlacementShelf, Container: parent, Index: -1}
	if region != nil {
		if idx, ok := r.claimSlot(region, br.ShelfIndex, b.ID); ok {
			b.Placement.Index = idx
		}
	}
	b.Physics = domain.Frozen()
}

func (r *restorer) resolveShelf(br BookRecord) (scene.NodeID, *scene.Region, bool) {
	res, ok := r.sc.Resolver.Resolve(br.Shelf.ShelfObjectID, br.Shelf.RegionPath, br.Position)
	if !ok {
		return 0, nil, false
	}
	region, _ := res.Region(r.sc.Registry)
	return res.Node, region, true
}

func (r *restorer) claimSlot(region *scene.Region, index int, occupant scene.NodeID) (int, bool) {
	reg := r.sc.Registry
	if index >= 0 && index < region.Capacity() && region.Slots[index] == 0 {
		if err := reg.OccupySlot(region.ID, index, occupant); err == nil {
			return index, true
		}
	}
	if index < 0 {
		return 0, false
	}
	free, ok := reg.FreeSlot(region.ID)
	if !ok {
		r.logger.Warn("shelf region full on load", "region", region.Name)
		return 0, false
	}
	if err := reg.OccupySlot(region.ID, free, occupant); err != nil {
		return 0, false
	}
	return free, true
}

// reconnectStacks rebuilds each recorded stack group in member order. A table
// reference wins over a shelf reference.
func (r *restorer) reconnectStacks() {
	reg := r.sc.Registry
	for _, key := range r.order {
		members := r.groups[key]
		sort.SliceStable(members, func(i, j int) bool { return members[i].rec.StackIndex < members[j].rec.StackIndex })
		var live []stacked
		for _, m := range members {
			if reg.Exists(m.book.ID) {
				live = append(live, m)
			}
		}
		if len(live) == 0 {
			continue
		}
		base := live[0]
		ctx, parent, region := domain.StackOnTable, scene.NodeID(0), (*scene.Region)(nil)
		switch {
		case base.rec.TableID != "":
			if a, ok := reg.AnchorByObjectID(base.rec.TableID); ok {
				parent = a.ID
			} else {
				r.logger.Warn("surface missing, stack left in world space", "stack", key, "table", base.rec.TableID)
				r.report.Orphaned += len(live)
			}
		case base.rec.Shelf != nil:
			ctx = domain.StackOnShelf
			if node, rg, ok := r.resolveShelf(base.rec); ok {
				parent, region = node, rg
			} else {
				r.logger.Warn("shelf missing, stack left in world space", "stack", key, "shelf", base.rec.Shelf.ShelfObjectID)
				r.report.Orphaned += len(live)
			}
		}
		g, err := r.sc.Engine.NewGroup(ctx, parent, base.rec.World(), base.book.Prefab)
		if err != nil {
			r.logger.Warn("stack not restored", "stack", key, "error", err)
			continue
		}
		for _, m := range live {
			if res := r.sc.Engine.AddBook(g, m.book); !res.OK() {
				r.logger.Warn("stack member rejected on load", "stack", key, "book", m.book.ID, "result", res.String())
			}
		}
		if g.Count() == 0 {
			reg.Destroy(g.ID)
			continue
		}
		if region != nil {
			if _, ok := r.claimSlot(region, base.rec.ShelfIndex, g.ID); !ok {
				r.logger.Warn("stack slot unavailable on load", "stack", key, "region", region.Name)
			}
		}
		r.report.Stacks++
	}
}

// attachDisplays mounts one loose instantiated book per recorded attachment,
// taking the lowest node ID when several copies match.
func (r *restorer) attachDisplays(rec Record) {
	reg := r.sc.Registry
	if r.consumed == nil {
		r.consumed = make(map[scene.NodeID]bool)
	}
	for _, dr := range rec.Displays {
		if dr.AttachedBookID == "" {
			continue
		}
		d, ok := reg.DisplayByObjectID(dr.ID)
		if !ok {
			continue
		}
		b := r.pickBook(dr.AttachedBookID)
		if b == nil {
			r.logger.Warn("display book not found", "display", dr.ID, "book_id", dr.AttachedBookID)
			continue
		}
		if err := reg.Reparent(b.ID, d.ID); err != nil {
			r.logger.Warn("attach display book", "display", dr.ID, "error", err)
			continue
		}
		reg.SetLocal(b.ID, domain.At(domain.Vec3{}))
		if err := reg.AttachDisplay(d, b); err != nil {
			r.logger.Warn("attach display book", "display", dr.ID, "error", err)
			continue
		}
		b.Physics = domain.Frozen()
		r.consumed[b.ID] = true
		r.report.Attachments++
	}
}

func (r *restorer) pickBook(bookID string) *scene.Book {
	for _, b := range r.sc.Registry.Books() {
		if b.BookID == bookID && !r.consumed[b.ID] && !b.Placement.Placed() {
			return b
		}
	}
	return nil
}
