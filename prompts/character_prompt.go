package prompts

import (
	"fmt"
	"strings"

	"frequency/models"
)

// SecretTrustThreshold is the trust a character needs before its secrets
// enter the prompt.
const SecretTrustThreshold = 70

// HistoryWindow is how many recent messages are rendered into the prompt.
const HistoryWindow = 10

// Section names, in prompt order.
const (
	SectionPersonality   = "personality"
	SectionKnowledge     = "knowledge"
	SectionSecrets       = "secrets"
	SectionRelationships = "relationships"
	SectionStoryState    = "story_state"
	SectionHistory       = "history"
	SectionStyle         = "style"
	SectionOperator      = "operator"
)

const radioInstructions = `Remember: You're on a radio. Keep responses relatively brief (1-3 sentences typically).
Use radio language naturally ("copy that", "over", "10-4").
Stay in character at all times.`

// Section is one named block of a prompt. An empty Heading renders the
// body on its own.
type Section struct {
	Name    string
	Heading string
	Body    string
}

// Prompt is an ordered list of sections, serialized by String.
type Prompt struct {
	Sections []Section
}

// Section returns the named section, if present.
func (p *Prompt) Section(name string) (Section, bool) {
	for _, s := range p.Sections {
		if s.Name == name {
			return s, true
		}
	}
	return Section{}, false
}

func (p *Prompt) add(name, heading, body string) {
	p.Sections = append(p.Sections, Section{Name: name, Heading: heading, Body: body})
}

func (p *Prompt) String() string {
	parts := make([]string, 0, len(p.Sections))
	for _, s := range p.Sections {
		if s.Heading == "" {
			parts = append(parts, s.Body)
			continue
		}
		parts = append(parts, "## "+s.Heading+"\n"+s.Body)
	}
	return strings.Join(parts, "\n\n")
}

// ConstructCharacterPrompt assembles the prompt for one turn. It does no I/O
// and is deterministic for identical input.
func ConstructCharacterPrompt(character *models.Character, history []models.Message, trustLevel int, flags []string, userMessage string) *Prompt {
	p := &Prompt{}
	p.add(SectionPersonality, "", character.PersonalityPrompt)
	p.add(SectionKnowledge, "Your Knowledge", formatKnowledge(character.Knowledge, trustLevel))

	secrets := "Keep these hidden for now."
	if trustLevel > SecretTrustThreshold {
		secrets = formatSecrets(character.Secrets)
	}
	p.add(SectionSecrets, "Your Secrets (reveal only at high trust)", secrets)

	p.add(SectionRelationships, "Other Characters You Know", formatRelationships(character.Relationships))

	learned := "Nothing yet - they are new here."
	if len(flags) > 0 {
		learned = strings.Join(flags, ", ")
	}
	p.add(SectionStoryState, "Current Story State", "The operator has learned: "+learned)

	p.add(SectionHistory, "Conversation So Far", formatHistory(history))

	style := character.SpeakingStyle
	if style == "" {
		style = "Natural radio operator style."
	}
	p.add(SectionStyle, "Speaking Style", style+"\n"+radioInstructions)

	p.add(SectionOperator, "", "Operator says: \""+userMessage+"\"\n\nRespond in character:")
	return p
}

// VisibleKnowledge is how many facts trustLevel exposes: at least one, all
// of them at full trust.
func VisibleKnowledge(total, trustLevel int) int {
	if total == 0 {
		return 0
	}
	n := total * trustLevel / 100
	if n < 1 {
		n = 1
	}
	if n > total {
		n = total
	}
	return n
}

func formatKnowledge(knowledge []models.KnowledgeFact, trustLevel int) string {
	if len(knowledge) == 0 {
		return "Standard radio operator knowledge."
	}
	lines := make([]string, 0, len(knowledge))
	for _, k := range knowledge[:VisibleKnowledge(len(knowledge), trustLevel)] {
		lines = append(lines, fmt.Sprintf("- %s: %s", k.Topic, k.Fact))
	}
	return strings.Join(lines, "\n")
}

func formatSecrets(secrets []string) string {
	if len(secrets) == 0 {
		return "No secrets to reveal."
	}
	lines := make([]string, 0, len(secrets))
	for _, s := range secrets {
		lines = append(lines, "- "+s)
	}
	return strings.Join(lines, "\n")
}

func formatRelationships(relationships []models.Relationship) string {
	if len(relationships) == 0 {
		return "You keep to yourself mostly."
	}
	lines := make([]string, 0, len(relationships))
	for _, r := range relationships {
		lines = append(lines, fmt.Sprintf("- %s: %s", r.Name, r.Relation))
	}
	return strings.Join(lines, "\n")
}

func formatHistory(messages []models.Message) string {
	if len(messages) == 0 {
		return "This is the start of the conversation."
	}
	if len(messages) > HistoryWindow {
		messages = messages[len(messages)-HistoryWindow:]
	}
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		speaker := "You"
		if m.Role == models.RoleUser {
			speaker = "Operator"
		}
		lines = append(lines, speaker+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}
