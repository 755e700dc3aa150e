package core

import (
	"shelfcore/internal/scene"
	"shelfcore/pkg/domain"
)

// ContainerCount is the number of books held by one container.
type ContainerCount struct {
	ObjectID string `json:"objectID"`
	Kind     string `json:"kind"`
	Books    int    `json:"books"`
	Stacks   int    `json:"stacks,omitempty"`
}

// Inventory summarises where the store's books are.
type Inventory struct {
	Day        int              `json:"day"`
	Balance    float64          `json:"balance"`
	Books      int              `json:"books"`
	Loose      int              `json:"loose"`
	Containers []ContainerCount `json:"containers"`
	Crates     []CrateContents  `json:"crates"`
	Pending    int              `json:"pendingTasks"`
}

// CrateContents lists what an unopened crate holds.
type CrateContents struct {
	ObjectID string   `json:"objectID"`
	Opened   bool     `json:"opened"`
	Books    []string `json:"books"`
}

// Inventory counts books per shelf, table and display. Books in a stack count
// towards the container holding the stack.
func (s *Service) Inventory() Inventory {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg := s.registry
	inv := Inventory{
		Day:        s.calendar.Day(),
		Balance:    s.wallet.Balance(),
		Containers: []ContainerCount{},
		Crates:     []CrateContents{},
		Pending:    s.queue.Pending(),
	}
	counts := make(map[domain.NodeID]*ContainerCount)
	var order []domain.NodeID
	add := func(id domain.NodeID, cc ContainerCount) {
		counts[id] = &cc
		order = append(order, id)
	}
	for _, sh := range reg.Shelves() {
		add(sh.ID, ContainerCount{ObjectID: sh.ObjectID, Kind: string(domain.KindShelf)})
	}
	for _, a := range reg.Anchors() {
		add(a.ID, ContainerCount{ObjectID: a.ObjectID, Kind: "table"})
	}
	for _, d := range reg.Displays() {
		add(d.ID, ContainerCount{ObjectID: d.ObjectID, Kind: string(domain.KindDisplay)})
	}
	// displays sit on tables, so they are checked before anchors
	holders := []domain.NodeKind{domain.KindDisplay, domain.KindAnchor, domain.KindShelf}
	for _, b := range reg.Books() {
		inv.Books++
		holder := b.ID
		if g, ok := reg.StackOf(b); ok {
			holder = g.ID
		}
		cc := holderOf(reg, holder, holders, counts)
		if cc == nil {
			inv.Loose++
			continue
		}
		cc.Books++
	}
	for _, g := range reg.Stacks() {
		if cc := holderOf(reg, g.ID, holders, counts); cc != nil {
			cc.Stacks++
		}
	}
	for _, id := range order {
		inv.Containers = append(inv.Containers, *counts[id])
	}
	for _, c := range reg.Crates() {
		inv.Crates = append(inv.Crates, CrateContents{ObjectID: c.ObjectID, Opened: c.Opened, Books: append([]string{}, c.Contents...)})
	}
	return inv
}

func holderOf(reg *scene.Registry, id domain.NodeID, kinds []domain.NodeKind, counts map[domain.NodeID]*ContainerCount) *ContainerCount {
	for _, k := range kinds {
		if anc, ok := reg.NearestAncestor(id, k); ok {
			return counts[anc]
		}
	}
	return nil
}
