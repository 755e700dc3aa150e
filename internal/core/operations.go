package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"shelfcore/internal/furniture"
	"shelfcore/internal/savegame"
	"shelfcore/internal/scene"
	"shelfcore/pkg/domain"
)

// ErrStackRejected wraps a non-Added stacking result.
var ErrStackRejected = errors.New("stack rejected")

// ErrNoMove is returned when a move operation names a node without an open session.
var ErrNoMove = errors.New("no move in progress")

// crateSpacing separates books unpacked from a crate along the crate's X axis.
const crateSpacing = 0.25

func (s *Service) book(id domain.NodeID) (*scene.Book, error) {
	b, ok := s.registry.Book(id)
	if !ok {
		return nil, domain.ErrNotFound{Entity: domain.KindBook, ID: fmt.Sprint(id)}
	}
	return b, nil
}

// SpawnShelf builds a shelf from template. An empty objectID gets a new one.
func (s *Service) SpawnShelf(ctx context.Context, template, objectID string, world domain.Transform) (string, error) {
	var out string
	err := s.run(ctx, "spawn_shelf", true, func() (string, error) {
		shelf, err := s.builder.SpawnShelf(template, objectID, world)
		if err != nil {
			return objectID, err
		}
		out = shelf.ObjectID
		return out, nil
	})
	return out, err
}

// SpawnTable creates a surface anchor with the given footprint.
func (s *Service) SpawnTable(ctx context.Context, objectID string, world domain.Transform, size domain.Vec3) (string, error) {
	var out string
	err := s.run(ctx, "spawn_table", true, func() (string, error) {
		a, err := s.builder.SpawnTable(objectID, world, size)
		if err != nil {
			return objectID, err
		}
		out = a.ObjectID
		return out, nil
	})
	return out, err
}

// SpawnDisplay creates a display, parented to the anchor anchorObjectID when set.
func (s *Service) SpawnDisplay(ctx context.Context, objectID, anchorObjectID string, world domain.Transform) (string, error) {
	var out string
	err := s.run(ctx, "spawn_display", true, func() (string, error) {
		d, err := s.builder.SpawnDisplay(objectID, anchorObjectID, world)
		if err != nil {
			return objectID, err
		}
		out = d.ObjectID
		return out, nil
	})
	return out, err
}

// SpawnTerminal places the checkout terminal, replacing any existing one.
func (s *Service) SpawnTerminal(ctx context.Context, objectID string, world domain.Transform) (string, error) {
	var out string
	err := s.run(ctx, "spawn_terminal", true, func() (string, error) {
		t, err := s.builder.SpawnTerminal(objectID, world)
		if err != nil {
			return objectID, err
		}
		out = t.ObjectID
		return out, nil
	})
	return out, err
}

// SpawnBook instantiates a loose copy of a catalog book.
func (s *Service) SpawnBook(ctx context.Context, bookID string, world domain.Transform) (domain.NodeID, error) {
	var id domain.NodeID
	err := s.run(ctx, "spawn_book", true, func() (string, error) {
		b, err := s.placer.SpawnBook(bookID, world)
		if err != nil {
			return bookID, err
		}
		id = b.ID
		return bookID, nil
	})
	return id, err
}

// PlaceOnShelf shelves a book in the region of shelfObjectID named by regionHint.
// index < 0 takes the first free slot.
func (s *Service) PlaceOnShelf(ctx context.Context, book domain.NodeID, shelfObjectID, regionHint string, index int) error {
	return s.run(ctx, "place_on_shelf", true, func() (string, error) {
		b, err := s.book(book)
		if err != nil {
			return shelfObjectID, err
		}
		shelf, ok := s.resolver.FindShelf(shelfObjectID, s.registry.World(b.ID).Position)
		if !ok {
			return shelfObjectID, domain.ErrNotFound{Entity: domain.KindShelf, ID: shelfObjectID}
		}
		return shelfObjectID, s.placer.PlaceOnShelf(b, shelf, regionHint, index)
	})
}

// PlaceOnTable lays a book on the anchor tableObjectID.
func (s *Service) PlaceOnTable(ctx context.Context, book domain.NodeID, tableObjectID string, local domain.Vec3) error {
	return s.run(ctx, "place_on_table", true, func() (string, error) {
		b, err := s.book(book)
		if err != nil {
			return tableObjectID, err
		}
		a, ok := s.registry.AnchorByObjectID(tableObjectID)
		if !ok {
			return tableObjectID, domain.ErrNotFound{Entity: domain.KindAnchor, ID: tableObjectID}
		}
		return tableObjectID, s.placer.PlaceOnTable(b, a, local)
	})
}

// StackOnto puts incoming on top of target. A rejected result is returned
// together with an error wrapping ErrStackRejected; the scene is unchanged.
func (s *Service) StackOnto(ctx context.Context, target, incoming domain.NodeID) (domain.AddResult, error) {
	var res domain.AddResult
	err := s.run(ctx, "stack_onto", true, func() (string, error) {
		subject := fmt.Sprintf("%d<-%d", target, incoming)
		t, err := s.book(target)
		if err != nil {
			return subject, err
		}
		in, err := s.book(incoming)
		if err != nil {
			return subject, err
		}
		res, err = s.placer.StackOnto(t, in)
		if err != nil {
			return subject, err
		}
		if !res.OK() {
			return subject, fmt.Errorf("%w: %s", ErrStackRejected, res)
		}
		return subject, nil
	})
	return res, err
}

// AttachToDisplay mounts a book on the display displayObjectID.
func (s *Service) AttachToDisplay(ctx context.Context, book domain.NodeID, displayObjectID string) error {
	return s.run(ctx, "attach_to_display", true, func() (string, error) {
		b, err := s.book(book)
		if err != nil {
			return displayObjectID, err
		}
		d, ok := s.registry.DisplayByObjectID(displayObjectID)
		if !ok {
			return displayObjectID, domain.ErrNotFound{Entity: domain.KindDisplay, ID: displayObjectID}
		}
		return displayObjectID, s.placer.AttachToDisplay(b, d)
	})
}

// PickUp takes a book into the player's hands.
func (s *Service) PickUp(ctx context.Context, book domain.NodeID) error {
	return s.run(ctx, "pick_up", true, func() (string, error) {
		b, err := s.book(book)
		if err != nil {
			return fmt.Sprint(book), err
		}
		return b.BookID, s.placer.PickUp(b)
	})
}

// BuyBooks orders one copy of each bookID, charging their cost, and delivers
// them in a new closed crate at world. Nothing is charged when any ID is
// unknown or the wallet cannot cover the order.
func (s *Service) BuyBooks(ctx context.Context, bookIDs []string, world domain.Transform) (string, error) {
	var crateID string
	err := s.run(ctx, "buy_books", true, func() (string, error) {
		subject := strings.Join(bookIDs, ",")
		if len(bookIDs) == 0 {
			return subject, fmt.Errorf("buy books: empty order")
		}
		var total float64
		for _, id := range bookIDs {
			def, ok := s.catalog.DefinitionByID(id)
			if !ok {
				return subject, domain.ErrNotFound{Entity: domain.KindBook, ID: id}
			}
			if _, ok := s.catalog.PrefabByID(id); !ok {
				return subject, domain.ErrNotFound{Entity: "prefab", ID: id}
			}
			total += def.Cost
		}
		if err := s.wallet.Spend(total); err != nil {
			return subject, fmt.Errorf("buy books: %w", err)
		}
		c, err := s.builder.SpawnCrate("", world, bookIDs, false)
		if err != nil {
			_ = s.wallet.Add(total)
			return subject, fmt.Errorf("buy books: %w", err)
		}
		crateID = c.ObjectID
		s.logger.Info("books ordered", "crate", crateID, "books", len(bookIDs), "cost", total)
		return crateID, nil
	})
	return crateID, err
}

// OpenCrate unpacks a crate, spawning its books in a row beside it.
func (s *Service) OpenCrate(ctx context.Context, crateObjectID string) ([]domain.NodeID, error) {
	var books []domain.NodeID
	err := s.run(ctx, "open_crate", true, func() (string, error) {
		c, ok := s.registry.CrateByObjectID(crateObjectID)
		if !ok {
			return crateObjectID, domain.ErrNotFound{Entity: domain.KindCrate, ID: crateObjectID}
		}
		if c.Opened {
			return crateObjectID, fmt.Errorf("open crate %s: %w", crateObjectID, domain.ErrCrateOpened)
		}
		for _, id := range c.Contents {
			if _, ok := s.catalog.DefinitionByID(id); !ok {
				return crateObjectID, domain.ErrNotFound{Entity: domain.KindBook, ID: id}
			}
			if _, ok := s.catalog.PrefabByID(id); !ok {
				return crateObjectID, domain.ErrNotFound{Entity: "prefab", ID: id}
			}
		}
		origin := s.registry.World(c.ID)
		for i, id := range c.Contents {
			offset := origin.Rotation.Rotate(domain.V3(crateSpacing*float64(i+1), 0, 0))
			world := domain.Transform{Position: origin.Position.Add(offset), Rotation: origin.Rotation}
			b, err := s.placer.SpawnBook(id, world)
			if err != nil {
				return crateObjectID, fmt.Errorf("open crate %s: %w", crateObjectID, err)
			}
			books = append(books, b.ID)
		}
		c.Opened = true
		c.Contents = nil
		return crateObjectID, nil
	})
	return books, err
}

// SellBook removes a book from the store and credits its price.
func (s *Service) SellBook(ctx context.Context, book domain.NodeID) (float64, error) {
	var price float64
	err := s.run(ctx, "sell_book", true, func() (string, error) {
		b, err := s.book(book)
		if err != nil {
			return fmt.Sprint(book), err
		}
		price = b.Definition.Price
		if err := s.placer.Remove(b); err != nil {
			return b.BookID, err
		}
		if err := s.wallet.Add(price); err != nil {
			return b.BookID, fmt.Errorf("sell book: %w", err)
		}
		s.logger.Info("book sold", "book_id", b.BookID, "price", price)
		return b.BookID, nil
	})
	return price, err
}

// AdvanceDay moves the calendar forward and returns the new day.
func (s *Service) AdvanceDay(ctx context.Context) (int, error) {
	var day int
	err := s.run(ctx, "advance_day", true, func() (string, error) {
		day = s.calendar.Advance()
		return fmt.Sprint(day), nil
	})
	return day, err
}

// Save writes the current store to the save file.
func (s *Service) Save(ctx context.Context) (savegame.Record, error) {
	var rec savegame.Record
	err := s.run(ctx, "save", true, func() (string, error) {
		var err error
		rec, err = s.saves.Save(ctx)
		return s.saves.Key(), err
	})
	return rec, err
}

// Load replaces the store with the save file. Stacks and display attachments
// are reconnected by later ticks; call Settle to wait for them.
func (s *Service) Load(ctx context.Context) (*savegame.LoadReport, error) {
	var report *savegame.LoadReport
	err := s.run(ctx, "load", true, func() (string, error) {
		var err error
		report, err = s.saves.Load(ctx)
		if err == nil {
			s.cancelMoves()
		}
		return s.saves.Key(), err
	})
	return report, err
}

// Tick advances the simulation by one step and returns the tasks it ran.
func (s *Service) Tick(ctx context.Context) (int, error) {
	var ran int
	err := s.run(ctx, "tick", false, func() (string, error) {
		ran = s.queue.Tick()
		return fmt.Sprint(s.queue.Now()), nil
	})
	return ran, err
}

// Settle ticks until no deferred work is left, failing when DefaultSettleTicks
// is not enough.
func (s *Service) Settle(ctx context.Context) error {
	return s.run(ctx, "settle", false, func() (string, error) {
		s.queue.Drain(DefaultSettleTicks)
		if n := s.queue.Pending(); n > 0 {
			return fmt.Sprint(s.queue.Now()), fmt.Errorf("settle: %d tasks still pending after %d ticks", n, DefaultSettleTicks)
		}
		return fmt.Sprint(s.queue.Now()), nil
	})
}

// Lookup returns the node of the furniture carrying objectID.
func (s *Service) Lookup(objectID string) (domain.NodeID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookup(objectID)
}

func (s *Service) lookup(objectID string) (domain.NodeID, bool) {
	if shelves := s.registry.ShelvesByObjectID(objectID); len(shelves) > 0 {
		return shelves[0].ID, true
	}
	if a, ok := s.registry.AnchorByObjectID(objectID); ok {
		return a.ID, true
	}
	if d, ok := s.registry.DisplayByObjectID(objectID); ok {
		return d.ID, true
	}
	if c, ok := s.registry.CrateByObjectID(objectID); ok {
		return c.ID, true
	}
	if t, ok := s.registry.Terminal(); ok && t.ObjectID == objectID {
		return t.ID, true
	}
	return 0, false
}

// BeginMove opens a move session for a node, typically furniture or a stack.
// A node can only have one open session.
func (s *Service) BeginMove(ctx context.Context, id domain.NodeID) error {
	return s.run(ctx, "begin_move", true, func() (string, error) {
		subject := fmt.Sprint(id)
		if m, ok := s.moves[id]; ok && m.Active() {
			return subject, fmt.Errorf("begin move %d: already moving", id)
		}
		m, err := s.builder.BeginMove(id)
		if err != nil {
			return subject, err
		}
		s.moves[id] = m
		return subject, nil
	})
}

// MoveTo repositions a node with an open move session.
func (s *Service) MoveTo(ctx context.Context, id domain.NodeID, world domain.Transform) error {
	return s.run(ctx, "move_to", false, func() (string, error) {
		m, ok := s.moves[id]
		if !ok {
			return fmt.Sprint(id), fmt.Errorf("move %d: %w", id, ErrNoMove)
		}
		return fmt.Sprint(id), m.MoveTo(world)
	})
}

// CommitMove keeps the new pose when it does not overlap other furniture.
// Otherwise the move is cancelled and the error wraps domain.ErrInvalidMove.
func (s *Service) CommitMove(ctx context.Context, id domain.NodeID) error {
	return s.run(ctx, "commit_move", true, func() (string, error) {
		m, ok := s.moves[id]
		if !ok {
			return fmt.Sprint(id), fmt.Errorf("commit move %d: %w", id, ErrNoMove)
		}
		delete(s.moves, id)
		return fmt.Sprint(id), m.Commit(furniture.FootprintValidator{Builder: s.builder})
	})
}

// CancelMove restores a node to where its move started.
func (s *Service) CancelMove(ctx context.Context, id domain.NodeID) error {
	return s.run(ctx, "cancel_move", true, func() (string, error) {
		m, ok := s.moves[id]
		if !ok {
			return fmt.Sprint(id), fmt.Errorf("cancel move %d: %w", id, ErrNoMove)
		}
		delete(s.moves, id)
		m.Cancel()
		return fmt.Sprint(id), nil
	})
}

// cancelMoves drops sessions whose nodes were torn down by a load.
func (s *Service) cancelMoves() {
	for id, m := range s.moves {
		m.Cancel()
		delete(s.moves, id)
	}
}

// SaveStatus describes the save file and the most recent load.
type SaveStatus struct {
	Key        string               `json:"key"`
	Exists     bool                 `json:"exists"`
	LastReport *savegame.LoadReport `json:"lastReport,omitempty"`
}

// SaveStatus reports whether a save exists and copies the last load report.
func (s *Service) SaveStatus(ctx context.Context) (SaveStatus, error) {
	var st SaveStatus
	err := s.run(ctx, "save_status", false, func() (string, error) {
		st.Key = s.saves.Key()
		exists, err := s.saves.Exists(ctx)
		if err != nil {
			return st.Key, err
		}
		st.Exists = exists
		if r := s.saves.LastReport(); r != nil {
			cp := *r
			st.LastReport = &cp
		}
		return st.Key, nil
	})
	return st, err
}
