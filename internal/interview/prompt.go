package interview

import (
	"fmt"
	"strings"

	"github.com/ashureev/persona-lab/internal/domain"
)

const noHistoryMarker = "(no previous conversation)"

// BuildPrompt renders the persona, the prior transcript (oldest first) and the new message.
func BuildPrompt(p *domain.Persona, history []domain.Message, message string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are %s.\n", p.Name)
	fmt.Fprintf(&b, "Description: %s\n", p.Description)
	fmt.Fprintf(&b, "Personality and traits: %s\n\n", strings.Join(p.Characteristics, ", "))

	b.WriteString("Conversation so far:\n")
	if len(history) == 0 {
		b.WriteString(noHistoryMarker)
		b.WriteString("\n")
	}
	for _, m := range history {
		fmt.Fprintf(&b, "%s: %s\n", roleLabel(m.Role), m.Content)
	}

	fmt.Fprintf(&b, "\nNew message from the user: \"%s\"\n\n", message)
	b.WriteString("Reply naturally and consistently as the persona described above. " +
		"Follow the flow of the conversation and let the persona's traits shape the answer.")

	return b.String()
}

func roleLabel(role string) string {
	if role == domain.RoleUser {
		return "User"
	}
	return "Assistant"
}
