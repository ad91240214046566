package integrity

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/decisionarena/xp-engine/internal/ledger"
	"github.com/decisionarena/xp-engine/internal/profile"
)

// #region machine
// Machine enforces the per-user integrity rules: freeze/cooldown gating,
// stagnation transitions, and the validation gate in front of every ledger
// write. It also serializes submissions per user.
type Machine struct {
	config MachineConfig

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewMachine creates a state machine with the given thresholds.
func NewMachine(config MachineConfig) *Machine {
	return &Machine{
		config: config,
		locks:  make(map[string]*sync.Mutex),
	}
}

// #endregion machine

// #region per-user-lock
// Lock acquires the user's submission lock, guaranteeing at most one
// concurrent integrity operation per user. Distinct users never contend.
func (m *Machine) Lock(userID string) {
	m.userLock(userID).Lock()
}

// Unlock releases the user's submission lock.
func (m *Machine) Unlock(userID string) {
	m.userLock(userID).Unlock()
}

func (m *Machine) userLock(userID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[userID] = l
	}
	return l
}

// #endregion per-user-lock

// #region gate
// GateSubmission decides whether a submission may proceed at all. An expired
// freeze or cooldown flips the profile back to progressing as a side effect of
// the read; an active one blocks before any XP calculation happens.
func (m *Machine) GateSubmission(p profile.Profile, now time.Time, thaw func(userID string) error) (GateOutcome, error) {
	if p.XPFrozenUntil != nil {
		if now.Before(*p.XPFrozenUntil) {
			return GateOutcome{Allowed: false, Reason: "xp_frozen", ResumeAt: *p.XPFrozenUntil}, nil
		}
		if err := thaw(p.UserID); err != nil {
			return GateOutcome{}, fmt.Errorf("thaw expired freeze: %w", err)
		}
		return GateOutcome{Allowed: true}, nil
	}

	if p.ExploitCooldownEnd != nil {
		if now.Before(*p.ExploitCooldownEnd) {
			return GateOutcome{Allowed: false, Reason: "cooldown_active", ResumeAt: *p.ExploitCooldownEnd}, nil
		}
		if err := thaw(p.UserID); err != nil {
			return GateOutcome{}, fmt.Errorf("clear expired cooldown: %w", err)
		}
	}

	return GateOutcome{Allowed: true}, nil
}

// #endregion gate

// #region next-state
// NextState applies the stagnation rules for a submission that earned totalXP.
// Zero gain increments the counter, reaching the threshold marks the profile
// stagnating; any gain clears the counter. Stagnating never blocks submission.
func (m *Machine) NextState(p profile.Profile, totalXP int) Transition {
	if totalXP > 0 {
		return Transition{
			State:           string(profile.StateProgressing),
			StagnationCount: 0,
			CounterCleared:  p.StagnationCount >= m.config.StagnationThreshold,
		}
	}

	count := p.StagnationCount + 1
	state := profile.StateProgressing
	if count >= m.config.StagnationThreshold {
		state = profile.StateStagnating
	}
	return Transition{State: string(state), StagnationCount: count}
}

// #endregion next-state

// #region validation
// awardCheck is the contract every ledger write must satisfy. The upper
// bound per archetype comes from MachineConfig and is checked separately.
type awardCheck struct {
	Source     string `validate:"required,eq=arena_submit"`
	RiskTaker  int    `validate:"gte=0"`
	Analyst    int    `validate:"gte=0"`
	Builder    int    `validate:"gte=0"`
	Strategist int    `validate:"gte=0"`
}

var gateValidate = validator.New()

// ValidateAward checks the XP source and per-archetype ranges before any
// mutation. A violation aborts the whole submission: no profile write, no
// ledger entry.
func (m *Machine) ValidateAward(source string, change ledger.Snapshot) error {
	chk := awardCheck{
		Source:     source,
		RiskTaker:  change.RiskTaker,
		Analyst:    change.Analyst,
		Builder:    change.Builder,
		Strategist: change.Strategist,
	}
	if err := gateValidate.Struct(chk); err != nil {
		return fmt.Errorf("award validation: %w", err)
	}
	for _, v := range []int{change.RiskTaker, change.Analyst, change.Builder, change.Strategist} {
		if v > m.config.MaxArchetypeChange {
			return fmt.Errorf("award validation: per-archetype change %d exceeds %d", v, m.config.MaxArchetypeChange)
		}
	}
	return nil
}

// #endregion validation
