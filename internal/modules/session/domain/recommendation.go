package domain

import (
	"fmt"
	"strings"
)

type Action string

const (
	ActionNone          Action = "none"
	ActionShowNudge     Action = "show_nudge"
	ActionOfferSimplify Action = "offer_simplify"
	ActionForcePick     Action = "force_pick"
)

func ParseAction(raw string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(raw))); a {
	case "", ActionNone:
		return ActionNone, nil
	case ActionShowNudge, ActionOfferSimplify, ActionForcePick:
		return a, nil
	default:
		return ActionNone, fmt.Errorf("unknown intervention action %q", raw)
	}
}

type Recommendation struct {
	Action   Action `json:"action"`
	Message  string `json:"message,omitempty"`
	Signal   Signal `json:"signal,omitempty"`
	ChoiceID string `json:"choice_id,omitempty"`
}
