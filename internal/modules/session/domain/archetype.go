package domain

import (
	"strings"
	"time"
)

type Archetype string

const (
	ArchetypeAnalyst    Archetype = "analyst"
	ArchetypeStrategist Archetype = "strategist"
	ArchetypeDiplomat   Archetype = "diplomat"
	ArchetypeExplorer   Archetype = "explorer"
	ArchetypeMaverick   Archetype = "maverick"
)

const DefaultIdleThreshold = 60 * time.Second

const (
	ComprehensionPrompt = "Is the question clear to you?"
	CountdownPrompt     = "Take your time. The question will get more specific when the countdown ends."
)

var archetypeThresholds = map[Archetype]time.Duration{
	ArchetypeAnalyst:    90 * time.Second,
	ArchetypeStrategist: 75 * time.Second,
	ArchetypeDiplomat:   60 * time.Second,
	ArchetypeExplorer:   45 * time.Second,
	ArchetypeMaverick:   30 * time.Second,
}

var archetypeWarnings = map[Archetype]string{
	ArchetypeAnalyst:    "You have enough to go on. Pick the option your analysis favours so far.",
	ArchetypeStrategist: "Think one move ahead, then commit.",
	ArchetypeDiplomat:   "Who would this affect most? Start from them.",
	ArchetypeExplorer:   "Any first step counts. Try one.",
	ArchetypeMaverick:   "Trust your gut and go.",
}

func ParseArchetype(raw string) Archetype {
	return Archetype(strings.ToLower(strings.TrimSpace(raw)))
}

// IdleThreshold is the idle grace period before the first intervention.
func IdleThreshold(profile Profile) time.Duration {
	if d, ok := archetypeThresholds[profile.Archetype]; ok {
		return d
	}
	return DefaultIdleThreshold
}

func WarningMessage(archetype Archetype) string {
	if msg, ok := archetypeWarnings[archetype]; ok {
		return msg
	}
	return "Still there? Write down whatever comes to mind first."
}
