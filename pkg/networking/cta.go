package networking

import (
	"fmt"
	"strings"
)

// Content types with a dedicated call to action. Anything else gets the
// general template.
const (
	Learning    = "learning"
	Achievement = "achievement"
	Insight     = "insight"
	Question    = "question"
	General     = "general"
)

var ctaTemplates = map[string]string{
	Learning:    "🤝 Fellow engineers at %s, what's your experience with this? Would love to connect and learn from your insights!",
	Achievement: "🎉 Excited to connect with amazing professionals at %s and similar companies. Let's build something great together!",
	Insight:     "💭 What do you think, %s team? Would love to hear your perspectives and connect with like-minded professionals!",
	Question:    "❓ Calling all experts at %s - your insights would be invaluable! Let's connect and discuss.",
	General:     "🌟 Always excited to connect with talented professionals at %s and beyond. Let's grow our network together!",
}

// CreateCTA renders the networking call to action for a content type,
// addressing at most the first two companies.
func CreateCTA(companies []string, contentType string) string {
	tmpl, ok := ctaTemplates[strings.ToLower(strings.TrimSpace(contentType))]
	if !ok {
		tmpl = ctaTemplates[General]
	}

	names := cleanNames(companies)
	if len(names) > 2 {
		names = names[:2]
	}

	target := strings.Join(names, ", ")
	if target == "" {
		target = "leading companies"
	}

	return fmt.Sprintf(tmpl, target)
}
