// Package reply builds the MindPal prompt and turns a model answer into a
// user-facing reply.
package reply

import (
	"encoding/json"
	"fmt"
	"strings"

	"mindpal/internal/domain"
)

// Request is everything one prompt embeds. Emotions is ranked, strongest
// first; a single entry means the classifier ran in top mode.
type Request struct {
	Message    string
	Emotions   []domain.EmotionScore
	Context    string
	Strategies []domain.CopingStrategy
}

var personaRules = []string{
	"Warm, understanding, and age-appropriate",
	"Validate their feelings without being condescending",
	"Use language that feels natural to teens",
	"Acknowledge and reflect their feeling(s)",
	"Keep replies within 1-3 sentences and sound like a natural conversation",
	"Encourage them to talk more, ask follow up questions and let them express their feelings",
	"Encourage real-life support systems and resources",
	"When appropriate, gently encourage the teen to talk with a trusted adult or friend",
	"When appropriate, suggest at most ONE coping strategy, chosen only from the list of coping strategies provided, using its exact name",
	"When suggesting a coping strategy, give the strategy name and instruction, and ask the teen to tell you how it went after trying it",
	"Avoid shaming or lecturing",
	"Use emojis to express emotions",
	"Do NOT encourage any dangerous behaviour or provide inappropriate information",
	"Do NOT give medical or clinical advice or replace professional help",
	"Do NOT be overly positive or negative, be neutral and honest when necessary",
	"Do NOT ask for or let the user give out any personal information",
	"If the user asks questions unrelated to your purpose, politely decline and redirect the conversation back",
}

const defaultPersona = "You are MindPal, a supportive wellbeing chatbot for 13-15 year-old Australian teens."

// Composer renders the single text prompt sent to the model.
type Composer struct {
	persona string
}

// NewComposer uses persona as the opening line, or the MindPal default.
func NewComposer(persona string) *Composer {
	if strings.TrimSpace(persona) == "" {
		persona = defaultPersona
	}
	return &Composer{persona: strings.TrimSpace(persona)}
}

func (c *Composer) Compose(req Request) string {
	var sb strings.Builder
	sb.WriteString(c.persona)
	sb.WriteString("\nYour responses should be:\n")
	for _, rule := range personaRules {
		sb.WriteString("- ")
		sb.WriteString(rule)
		sb.WriteString("\n")
	}

	sb.WriteString("\nCurrent emotion(s) detected: ")
	sb.WriteString(FormatEmotions(req.Emotions))
	sb.WriteString("\nConversation context:\n")
	if ctx := strings.TrimSpace(req.Context); ctx != "" {
		sb.WriteString(ctx)
	} else {
		sb.WriteString("(no previous messages)")
	}
	sb.WriteString("\nChild's current message: ")
	sb.WriteString(strings.TrimSpace(req.Message))
	sb.WriteString("\nList of coping strategies based on the child's current emotion(s):\n")
	sb.WriteString(FormatStrategies(req.Strategies))
	sb.WriteString("\n\nAlways rethink and double check your answer before responding.")
	return sb.String()
}

// FormatEmotions renders "fear" for a single label and
// "fear (0.82), sadness (0.11)" for a ranked list.
func FormatEmotions(emotions []domain.EmotionScore) string {
	switch len(emotions) {
	case 0:
		return "unknown"
	case 1:
		return emotions[0].Label
	}
	parts := make([]string, 0, len(emotions))
	for _, e := range emotions {
		parts = append(parts, fmt.Sprintf("%s (%.2f)", e.Label, e.Score))
	}
	return strings.Join(parts, ", ")
}

// FormatStrategies writes one line per strategy. Optional fields are
// omitted when empty.
func FormatStrategies(strategies []domain.CopingStrategy) string {
	if len(strategies) == 0 {
		return "none available"
	}
	lines := make([]string, 0, len(strategies))
	for i, s := range strategies {
		fields := []string{fmt.Sprintf("%d. %s", i+1, s.Name)}
		if s.Description != "" {
			fields = append(fields, "Description: "+s.Description)
		}
		if s.Instruction != "" {
			fields = append(fields, "Instruction: "+s.Instruction)
		}
		if s.Duration != "" {
			fields = append(fields, "Duration: "+s.Duration)
		}
		if s.Category != "" {
			fields = append(fields, "Category: "+s.Category)
		}
		if len(s.Requirements) > 0 {
			if raw, err := json.Marshal(s.Requirements); err == nil {
				fields = append(fields, "Requirements: "+string(raw))
			}
		}
		lines = append(lines, strings.Join(fields, " | "))
	}
	return strings.Join(lines, "\n")
}
