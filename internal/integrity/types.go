package integrity

import "time"

// #region gate-outcome
// GateOutcome is the freeze/cooldown gate's decision for one submission
// attempt. A blocked outcome carries a concrete resume time.
type GateOutcome struct {
	Allowed  bool
	Reason   string // "xp_frozen" | "cooldown_active" when blocked
	ResumeAt time.Time
}

// #endregion gate-outcome

// #region transition
// Transition describes the stagnation bookkeeping the engine must persist
// alongside an award.
type Transition struct {
	State           string // profile.XPState value to store
	StagnationCount int
	CounterCleared  bool // a stagnating streak was broken; write a reset entry
}

// #endregion transition

// #region machine-config
// MachineConfig holds the state machine thresholds.
type MachineConfig struct {
	StagnationThreshold int // consecutive zero-gain submissions before stagnating
	MaxArchetypeChange  int // per-archetype award ceiling per submission
}

// DefaultMachineConfig returns production thresholds.
func DefaultMachineConfig() MachineConfig {
	return MachineConfig{
		StagnationThreshold: 3,
		MaxArchetypeChange:  100,
	}
}

// #endregion machine-config
