package domain

import (
	"errors"
	"time"
)

var (
	ErrBackwardMove  = errors.New("sequencer cannot move backward")
	ErrUnknownScreen = errors.New("unknown screen")
	ErrEmptyPlan     = errors.New("screen plan is empty")
)

type ScreenID string

const (
	ScreenSituation    ScreenID = "situation"
	ScreenForcedChoice ScreenID = "forced_choice"
	ScreenConsequence  ScreenID = "consequence"
	ScreenInsight      ScreenID = "insight"
	ScreenReflection   ScreenID = "reflection"
	ScreenComplete     ScreenID = "complete"
)

// RoundScreens is the fixed order of screens inside one round.
var RoundScreens = []ScreenID{
	ScreenSituation,
	ScreenForcedChoice,
	ScreenConsequence,
	ScreenInsight,
	ScreenReflection,
}

// TimeoutPolicy decides what a screen does once its budget is spent.
type TimeoutPolicy string

const (
	TimeoutAdvance  TimeoutPolicy = "advance"
	TimeoutAutoPick TimeoutPolicy = "auto_pick"
	TimeoutEscalate TimeoutPolicy = "escalate"
)

type Screen struct {
	ID        ScreenID      `json:"id"`
	Round     int           `json:"round"`
	Budget    time.Duration `json:"budget"`
	Terminal  bool          `json:"terminal,omitempty"`
	OnTimeout TimeoutPolicy `json:"on_timeout"`
	Escalates bool          `json:"escalates,omitempty"`
}

type Budgets struct {
	Situation   time.Duration
	Choice      time.Duration
	Consequence time.Duration
	Insight     time.Duration
	Reflection  time.Duration
}

func (b Budgets) For(id ScreenID) time.Duration {
	switch id {
	case ScreenSituation:
		return b.Situation
	case ScreenForcedChoice:
		return b.Choice
	case ScreenConsequence:
		return b.Consequence
	case ScreenInsight:
		return b.Insight
	case ScreenReflection:
		return b.Reflection
	default:
		return 0
	}
}

// BuildPlan flattens rounds into a single ordered list ending in the terminal screen.
func BuildPlan(rounds int, budgets Budgets) []Screen {
	if rounds < 1 {
		rounds = 1
	}
	plan := make([]Screen, 0, rounds*len(RoundScreens)+1)
	for round := 1; round <= rounds; round++ {
		for _, id := range RoundScreens {
			plan = append(plan, Screen{
				ID:        id,
				Round:     round,
				Budget:    budgets.For(id),
				OnTimeout: timeoutPolicyFor(id),
				Escalates: id == ScreenForcedChoice || id == ScreenReflection,
			})
		}
	}
	return append(plan, Screen{ID: ScreenComplete, Round: rounds, Terminal: true, OnTimeout: TimeoutAdvance})
}

func timeoutPolicyFor(id ScreenID) TimeoutPolicy {
	switch id {
	case ScreenForcedChoice:
		return TimeoutAutoPick
	case ScreenReflection:
		return TimeoutEscalate
	default:
		return TimeoutAdvance
	}
}
