// internal/engine/engine.go
package engine

// Seat identifies a participant's fixed position within one match. The first
// joiner holds SeatA and moves first in turn mode; SeatNone marks an empty
// cell or the absence of a turn owner.
type Seat string

const (
	SeatNone Seat = ""
	SeatA    Seat = "a"
	SeatB    Seat = "b"
)

// Opponent returns the other seat, or SeatNone for SeatNone.
func (s Seat) Opponent() Seat {
	switch s {
	case SeatA:
		return SeatB
	case SeatB:
		return SeatA
	}
	return SeatNone
}

// Reason enumerates the structured rejection codes a claim can produce.
// An empty Reason means the claim is valid.
type Reason string

const (
	ReasonInvalidSquare      Reason = "invalid_square"
	ReasonSquareOccupied     Reason = "square_occupied"
	ReasonNotYourTurn        Reason = "not_your_turn"
	ReasonMatchFinished      Reason = "match_finished"
	ReasonDuplicateSelection Reason = "duplicate_selection"
	ReasonCapReached         Reason = "cap_reached"
	ReasonConflictLost       Reason = "conflict_lost"
)

// Result is the outcome of a terminal-condition check.
type Result struct {
	Finished bool
	// Winner is the winning seat, or SeatNone for a draw when Finished is true.
	Winner Seat
	// Line holds the winning cell indices for engines that have one (the grid
	// variant's three-in-a-row). Nil on draw and for the cellular variant.
	Line []int
}

// State is the engine-specific match state. Each engine defines its own
// concrete variant (GridState, CellularState); nothing outside the engine
// packages inspects the internals beyond this interface.
type State interface {
	// Board returns a copy of the cell ownership layout, row-major.
	Board() []Seat
	// Turn returns the seat that moves next, or SeatNone once the engine has
	// no turn owner (finished, or the cellular simulation phase).
	Turn() Seat
	// Clone returns a deep copy. Engines apply claims copy-on-write so that
	// snapshots handed to callers never alias live state.
	Clone() State
}

// Engine computes initial state, claim legality, state transitions and
// terminal conditions for one game variant. Implementations are pure: they
// never mutate the state they are given and carry no per-match data, so a
// single Engine value is shared by every match using that variant.
type Engine interface {
	// Name identifies the variant ("grid" or "cellular") for snapshots.
	Name() string
	InitState() State
	// ValidateClaim reports why the claim is illegal, or empty when valid.
	ValidateClaim(st State, seat Seat, cell int) Reason
	// ApplyClaim returns the successor state. Callers must validate first;
	// applying an invalid claim is a programming error.
	ApplyClaim(st State, seat Seat, cell int) State
	CheckResult(st State) Result
}

// ClaimQuota is implemented by engines whose variant consumes a fixed number
// of accepted claims per seat before it can reach a terminal phase. Callers
// size per-participant accept limits from it so a match can always finish.
type ClaimQuota interface {
	ClaimsPerSeat() int
}

// New returns the engine for the named variant, or nil if unknown.
// Selection happens once at match creation and is stored on the match.
func New(name string) Engine {
	switch name {
	case "grid":
		return NewGrid()
	case "cellular":
		return NewCellular(DefaultCellularConfig())
	}
	return nil
}
