package classifier

import (
	"fmt"
	"strings"
)

func advicePrompt(obs *VisionObservation) string {
	labels := "none"
	if len(obs.Labels) > 0 {
		labels = strings.Join(obs.Labels, ", ")
	}
	text := strings.TrimSpace(obs.Text)
	if text == "" {
		text = "none"
	}
	return fmt.Sprintf(
		"A photo of an item was analyzed. Detected labels: %s. Text found on the item: %s. "+
			"Explain how a resident of Kingston, Ontario should dispose of this item and whether it can be recycled.",
		labels, text,
	)
}

func condensePrompt(advice DisposalAdvice) string {
	return fmt.Sprintf(
		"Rewrite the following disposal advice as 2 to 5 short, direct sentences telling the resident exactly what to do with the item. "+
			"State clearly whether it goes in the recycling (blue bin), the organics (green bin), or the garbage. "+
			"Do not use asterisks or any other formatting characters.\n\nAdvice:\n%s",
		strings.TrimSpace(string(advice)),
	)
}

// cleanCondensed removes formatting the model was told not to produce.
func cleanCondensed(text string) string {
	return strings.TrimSpace(strings.ReplaceAll(text, "*", ""))
}
