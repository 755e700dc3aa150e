// Package savegame captures the placement graph into a versioned JSON record and
// rebuilds a scene from one.
package savegame

import (
	"errors"
	"fmt"
	"time"

	"shelfcore/pkg/domain"
)

// Save format versions. Records outside [MinCompatibleVersion, CurrentVersion]
// are discarded on load.
const (
	CurrentVersion       = 4
	MinCompatibleVersion = 3
)

var (
	// ErrNoSave is returned by Load when no save file exists.
	ErrNoSave = errors.New("no save file")
	// ErrCorruptSave is returned by Load when the file cannot be decoded. The file
	// has been deleted by the time the error is returned.
	ErrCorruptSave = errors.New("corrupt save file")
)

// IncompatibleVersionError reports a save written by an unsupported format
// version. The file has been deleted by the time the error is returned.
type IncompatibleVersionError struct {
	Version int
}

func (e IncompatibleVersionError) Error() string {
	return fmt.Sprintf("save version %d outside supported range [%d, %d]", e.Version, MinCompatibleVersion, CurrentVersion)
}

// Record is the persisted form of a store.
type Record struct {
	SaveVersion int               `json:"saveVersion"`
	SavedAt     time.Time         `json:"savedAt"`
	CurrentDay  int               `json:"currentDay" validate:"gte=0"`
	WalletMoney float64           `json:"walletMoney"`
	Player      domain.PlayerPose `json:"player"`
	Books       []BookRecord      `json:"books" validate:"dive"`
	Crates      []CrateRecord     `json:"crates" validate:"dive"`
	Shelves     []ShelfRecord     `json:"shelves" validate:"dive"`
	Surfaces    []SurfaceRecord   `json:"surfaces" validate:"dive"`
	Displays    []DisplayRecord   `json:"displays" validate:"dive"`
	Terminal    *TerminalRecord   `json:"terminal"`
}

// BookRecord is one book instance with a full metadata snapshot. At most one of
// TableID and Shelf is set; stacked books carry the placement of their stack.
type BookRecord struct {
	BookID       string       `json:"bookID"`
	Title        string       `json:"title"`
	Genre        string       `json:"genre,omitempty"`
	Summary      string       `json:"summary,omitempty"`
	Price        float64      `json:"price"`
	Cost         float64      `json:"cost"`
	Color        domain.Color `json:"color"`
	Tags         []string     `json:"tags,omitempty"`
	Prefab       string       `json:"prefab,omitempty"`
	Position     domain.Vec3  `json:"position"`
	Rotation     domain.Quat  `json:"rotation"`
	StackGroupID string       `json:"stackGroupID,omitempty"`
	StackIndex   int          `json:"stackIndex"`
	TableID      string       `json:"tableID,omitempty"`
	Shelf        *ShelfRef    `json:"shelf,omitempty"`
	ShelfIndex   int          `json:"shelfIndex"`
}

// ShelfRef points at a region by shelf object ID and the region path below the shelf.
type ShelfRef struct {
	ShelfObjectID string `json:"shelfObjectID" validate:"required"`
	RegionPath    string `json:"regionPath"`
}

// Definition rebuilds a standalone definition from the snapshot fields.
func (b BookRecord) Definition() domain.BookDefinition {
	return domain.BookDefinition{
		ID:      b.BookID,
		Title:   b.Title,
		Genre:   b.Genre,
		Summary: b.Summary,
		Price:   b.Price,
		Cost:    b.Cost,
		Color:   b.Color,
		Tags:    append([]string(nil), b.Tags...),
		Prefab:  b.Prefab,
	}
}

// World returns the recorded pose.
func (b BookRecord) World() domain.Transform {
	return pose(b.Position, b.Rotation)
}

// CrateRecord is a delivery crate.
type CrateRecord struct {
	ID       string      `json:"id" validate:"required"`
	Position domain.Vec3 `json:"position"`
	Rotation domain.Quat `json:"rotation"`
	Opened   bool        `json:"opened"`
	Contents []string    `json:"contents,omitempty"`
}

// ShelfRecord is a shelf and the template its regions are regenerated from.
type ShelfRecord struct {
	ID       string      `json:"id" validate:"required"`
	Template string      `json:"template" validate:"required"`
	Position domain.Vec3 `json:"position"`
	Rotation domain.Quat `json:"rotation"`
}

// SurfaceRecord is a surface anchor.
type SurfaceRecord struct {
	ID       string      `json:"id" validate:"required"`
	Position domain.Vec3 `json:"position"`
	Rotation domain.Quat `json:"rotation"`
	Size     domain.Vec3 `json:"size"`
}

// DisplayRecord is a display with the catalog ID of its mounted book.
type DisplayRecord struct {
	ID             string      `json:"id" validate:"required"`
	Position       domain.Vec3 `json:"position"`
	Rotation       domain.Quat `json:"rotation"`
	AttachedBookID string      `json:"attachedBookID,omitempty"`
	AnchorID       string      `json:"anchorID,omitempty"`
}

// TerminalRecord is the checkout terminal.
type TerminalRecord struct {
	ID       string      `json:"id" validate:"required"`
	Position domain.Vec3 `json:"position"`
	Rotation domain.Quat `json:"rotation"`
}

func pose(p domain.Vec3, r domain.Quat) domain.Transform {
	if r == (domain.Quat{}) {
		r = domain.Identity
	}
	return domain.Transform{Position: p, Rotation: r}
}

// LoadReport summarises a load. Stacks and Attachments are filled in by the
// deferred reconnect step; Complete turns true once it has run.
type LoadReport struct {
	Version     int  `json:"version"`
	Loaded      int  `json:"loaded"`
	Skipped     int  `json:"skipped"`
	Orphaned    int  `json:"orphaned"`
	Stacks      int  `json:"stacks"`
	Attachments int  `json:"attachments"`
	Complete    bool `json:"complete"`
}
