// internal/engine/grid.go
package engine

// GridState is the tagged state variant for the 3x3 grid game.
type GridState struct {
	Cells [9]Seat `json:"cells"`
	Next  Seat    `json:"next"`
}

func (s *GridState) Board() []Seat {
	out := make([]Seat, len(s.Cells))
	copy(out, s.Cells[:])
	return out
}

func (s *GridState) Turn() Seat { return s.Next }

func (s *GridState) Clone() State {
	c := *s
	return &c
}

// winLines are the 8 winning cell triples: 3 rows, 3 columns, 2 diagonals.
var winLines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

// Grid is the standard alternating-turn 3x3 fill game. Seat A moves first.
type Grid struct{}

func NewGrid() *Grid { return &Grid{} }

func (Grid) Name() string { return "grid" }

func (Grid) InitState() State {
	return &GridState{Next: SeatA}
}

func (Grid) ValidateClaim(st State, seat Seat, cell int) Reason {
	gs := st.(*GridState)
	if cell < 0 || cell >= len(gs.Cells) {
		return ReasonInvalidSquare
	}
	if gs.Cells[cell] != SeatNone {
		return ReasonSquareOccupied
	}
	if gs.Next != seat {
		return ReasonNotYourTurn
	}
	return ""
}

func (Grid) ApplyClaim(st State, seat Seat, cell int) State {
	gs := st.Clone().(*GridState)
	gs.Cells[cell] = seat
	gs.Next = seat.Opponent()
	return gs
}

func (Grid) CheckResult(st State) Result {
	gs := st.(*GridState)
	for _, line := range winLines {
		owner := gs.Cells[line[0]]
		if owner != SeatNone && gs.Cells[line[1]] == owner && gs.Cells[line[2]] == owner {
			return Result{Finished: true, Winner: owner, Line: []int{line[0], line[1], line[2]}}
		}
	}
	for _, c := range gs.Cells {
		if c == SeatNone {
			return Result{}
		}
	}
	// Full board, no line: draw.
	return Result{Finished: true}
}
