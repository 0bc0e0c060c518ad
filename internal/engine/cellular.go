// internal/engine/cellular.go
package engine

// SeatNeutral marks a living cell with no owner. It only appears in the
// cellular variant, when a birth's neighboring owners tie.
const SeatNeutral Seat = "n"

// Cellular phases. Placement alternates turns while seats spend their token
// budgets; once both budgets hit zero the automaton runs synchronously to
// convergence and the phase flips to simulation, after which the state is
// terminal.
const (
	PhasePlacement  = "placement"
	PhaseSimulation = "simulation"
)

// CellularConfig tunes the token-placement-then-automaton variant.
type CellularConfig struct {
	Width         int
	Height        int
	TokensPerSeat int
	Birth         []int // neighbor counts that create a cell
	Survive       []int // neighbor counts that keep a cell alive
	GenerationCap int
}

// DefaultCellularConfig returns the standard Conway-style rules: birth on 3,
// survive on 2 or 3, ten tokens per seat on a 12x12 board.
func DefaultCellularConfig() CellularConfig {
	return CellularConfig{
		Width:         12,
		Height:        12,
		TokensPerSeat: 10,
		Birth:         []int{3},
		Survive:       []int{2, 3},
		GenerationCap: 128,
	}
}

// CellularState is the tagged state variant for the cellular game.
type CellularState struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Cells       []Seat `json:"cells"` // row-major; SeatNone = dead
	Next        Seat   `json:"next"`
	BudgetA     int    `json:"budgetA"`
	BudgetB     int    `json:"budgetB"`
	Phase       string `json:"phase"`
	Generations int    `json:"generations"`
	CountA      int    `json:"countA"`
	CountB      int    `json:"countB"`
}

func (s *CellularState) Board() []Seat {
	out := make([]Seat, len(s.Cells))
	copy(out, s.Cells)
	return out
}

func (s *CellularState) Turn() Seat { return s.Next }

func (s *CellularState) Clone() State {
	c := *s
	c.Cells = make([]Seat, len(s.Cells))
	copy(c.Cells, s.Cells)
	return &c
}

func (s *CellularState) budget(seat Seat) int {
	if seat == SeatA {
		return s.BudgetA
	}
	return s.BudgetB
}

// Cellular implements the token-placement-then-automaton variant.
type Cellular struct {
	cfg CellularConfig
}

func NewCellular(cfg CellularConfig) *Cellular {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		def := DefaultCellularConfig()
		cfg.Width, cfg.Height = def.Width, def.Height
	}
	if cfg.TokensPerSeat <= 0 {
		cfg.TokensPerSeat = DefaultCellularConfig().TokensPerSeat
	}
	if len(cfg.Birth) == 0 {
		cfg.Birth = []int{3}
	}
	if len(cfg.Survive) == 0 {
		cfg.Survive = []int{2, 3}
	}
	if cfg.GenerationCap <= 0 {
		cfg.GenerationCap = DefaultCellularConfig().GenerationCap
	}
	return &Cellular{cfg: cfg}
}

func (*Cellular) Name() string { return "cellular" }

// ClaimsPerSeat reports the token budget: the exact number of accepted claims
// each seat needs before the simulation phase can start.
func (e *Cellular) ClaimsPerSeat() int { return e.cfg.TokensPerSeat }

func (e *Cellular) InitState() State {
	return &CellularState{
		Width:   e.cfg.Width,
		Height:  e.cfg.Height,
		Cells:   make([]Seat, e.cfg.Width*e.cfg.Height),
		Next:    SeatA,
		BudgetA: e.cfg.TokensPerSeat,
		BudgetB: e.cfg.TokensPerSeat,
		Phase:   PhasePlacement,
	}
}

func (e *Cellular) ValidateClaim(st State, seat Seat, cell int) Reason {
	cs := st.(*CellularState)
	if cell < 0 || cell >= len(cs.Cells) {
		return ReasonInvalidSquare
	}
	if cs.Phase != PhasePlacement || cs.budget(seat) <= 0 {
		return ReasonInvalidSquare
	}
	if cs.Cells[cell] != SeatNone {
		return ReasonSquareOccupied
	}
	if cs.Next != seat {
		return ReasonNotYourTurn
	}
	return ""
}

// ApplyClaim places one living token for the seat and decrements its budget.
// When the last token lands, the automaton runs to convergence inside this
// call and the returned state is terminal.
func (e *Cellular) ApplyClaim(st State, seat Seat, cell int) State {
	cs := st.Clone().(*CellularState)
	cs.Cells[cell] = seat
	if seat == SeatA {
		cs.BudgetA--
	} else {
		cs.BudgetB--
	}

	switch {
	case cs.budget(seat.Opponent()) > 0:
		cs.Next = seat.Opponent()
	case cs.budget(seat) > 0:
		cs.Next = seat
	default:
		cs.Next = SeatNone
		e.simulate(cs)
	}
	return cs
}

func (e *Cellular) CheckResult(st State) Result {
	cs := st.(*CellularState)
	if cs.Phase != PhaseSimulation {
		return Result{}
	}
	switch {
	case cs.CountA > cs.CountB:
		return Result{Finished: true, Winner: SeatA}
	case cs.CountB > cs.CountA:
		return Result{Finished: true, Winner: SeatB}
	}
	return Result{Finished: true}
}

// simulate advances the automaton generation by generation until a fixpoint
// or the generation cap, then records the final per-seat living counts.
// Runs synchronously; the caller holds the match guard for the duration.
func (e *Cellular) simulate(cs *CellularState) {
	cur := cs.Cells
	for gen := 0; gen < e.cfg.GenerationCap; gen++ {
		next := e.step(cs.Width, cs.Height, cur)
		cs.Generations++
		changed := false
		for i := range next {
			if next[i] != cur[i] {
				changed = true
				break
			}
		}
		cur = next
		if !changed {
			break
		}
	}
	cs.Cells = cur
	cs.CountA, cs.CountB = 0, 0
	for _, c := range cur {
		switch c {
		case SeatA:
			cs.CountA++
		case SeatB:
			cs.CountB++
		}
	}
	cs.Phase = PhaseSimulation
}

// step computes one generation over the 8-neighbor Moore neighborhood.
func (e *Cellular) step(w, h int, cur []Seat) []Seat {
	next := make([]Seat, len(cur))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			idx := y*w + x
			alive, ownerA, ownerB := 0, 0, 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if dx == 0 && dy == 0 {
						continue
					}
					nx, ny := x+dx, y+dy
					if nx < 0 || nx >= w || ny < 0 || ny >= h {
						continue
					}
					switch cur[ny*w+nx] {
					case SeatA:
						alive++
						ownerA++
					case SeatB:
						alive++
						ownerB++
					case SeatNeutral:
						alive++
					}
				}
			}
			if cur[idx] != SeatNone {
				if containsInt(e.cfg.Survive, alive) {
					next[idx] = cur[idx] // survivors keep their owner
				}
			} else if containsInt(e.cfg.Birth, alive) {
				switch {
				case ownerA > ownerB:
					next[idx] = SeatA
				case ownerB > ownerA:
					next[idx] = SeatB
				default:
					next[idx] = SeatNeutral
				}
			}
		}
	}
	return next
}

func containsInt(vals []int, n int) bool {
	for _, v := range vals {
		if v == n {
			return true
		}
	}
	return false
}
