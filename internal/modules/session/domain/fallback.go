package domain

import (
	"fmt"
	"strings"
)

// FallbackScenario is used whenever the content generator fails.
func FallbackScenario(problem Problem, round int) Scenario {
	title := strings.TrimSpace(problem.Title)
	if title == "" {
		title = "the problem in front of you"
	}
	return Scenario{
		Situation: fmt.Sprintf("Round %d. You have to act on %s now, with what you know.", round, title),
		Choices: []Choice{
			{ID: "act", Label: "Act immediately on the most visible issue", Signal: "decisive"},
			{ID: "ask", Label: "Ask the people involved before committing", Signal: "collaborative"},
			{ID: "study", Label: "Gather one more piece of evidence first", Signal: "analytical"},
		},
		Question: "What made you choose the way you did?",
	}
}

func FallbackOutcome(choice Choice) Outcome {
	label := choice.Label
	if label == "" {
		label = "your choice"
	}
	return Outcome{
		Consequences: []string{
			fmt.Sprintf("You went with: %s.", label),
			"Some things moved forward, others now need attention.",
		},
		Insight: "Every choice trades one risk for another. Notice which risk you accepted.",
	}
}

// FallbackEvolution narrows a prompt without help from the generator.
func FallbackEvolution(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "Name one concrete thing you would do in the next hour."
	}
	return "Answer in one sentence: " + strings.TrimSuffix(prompt, "?") + ", in the very next step?"
}
