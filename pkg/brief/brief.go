// Package brief holds what a user asks postcraft for: who they are, which
// companies they want to reach and what the post is about. A Request renders
// into the prompt the content team works from.
package brief

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalid is wrapped by Validate for every missing or malformed field.
var ErrInvalid = errors.New("brief: invalid request")

// Content types the networking tools have templates for.
const (
	Learning    = "learning"
	Achievement = "achievement"
	Insight     = "insight"
	Question    = "question"
)

// ContentTypes lists the content types in the order they are offered.
var ContentTypes = []string{Learning, Achievement, Insight, Question}

// UserProfile describes the person the post is written for. Every field is
// free text as typed by the user.
type UserProfile struct {
	Name            string `json:"name" yaml:"name"`
	LinkedInURL     string `json:"linkedin_url,omitempty" yaml:"linkedin_url"`
	CurrentRole     string `json:"current_role" yaml:"current_role"`
	Company         string `json:"company" yaml:"company"`
	Industry        string `json:"industry" yaml:"industry"`
	ExperienceYears string `json:"experience_years" yaml:"experience_years"`
}

// Request is one content generation request.
type Request struct {
	Profile         UserProfile `json:"user_profile" yaml:"user_profile"`
	TargetCompanies []string    `json:"target_companies" yaml:"target_companies"`
	ContentType     string      `json:"content_type" yaml:"content_type"`
	ContentDetails  string      `json:"content_details" yaml:"content_details"`
	NetworkingGoal  string      `json:"networking_goal" yaml:"networking_goal"`
}

// ParseCompanies splits a comma-separated list, trimming whitespace and
// dropping empty entries.
func ParseCompanies(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if name := strings.TrimSpace(part); name != "" {
			out = append(out, name)
		}
	}
	return out
}

// NormalizeContentType lowercases and trims a content type.
func NormalizeContentType(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Validate reports the first missing required field. Content types outside
// ContentTypes are allowed; the tools fall back to a general template.
func (r Request) Validate() error {
	switch {
	case strings.TrimSpace(r.Profile.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalid)
	case len(ParseCompanies(strings.Join(r.TargetCompanies, ","))) == 0:
		return fmt.Errorf("%w: at least one target company is required", ErrInvalid)
	case strings.TrimSpace(r.ContentDetails) == "":
		return fmt.Errorf("%w: content details are required", ErrInvalid)
	}

	return nil
}

// Prompt renders the request as the team's task.
func (r Request) Prompt() string {
	var b strings.Builder

	b.WriteString("Create a LinkedIn post optimized for networking with target company professionals:\n\n")

	b.WriteString("USER PROFILE:\n")
	fmt.Fprintf(&b, "- Name: %s\n", r.Profile.Name)
	fmt.Fprintf(&b, "- Role: %s\n", r.Profile.CurrentRole)
	fmt.Fprintf(&b, "- Company: %s\n", r.Profile.Company)
	fmt.Fprintf(&b, "- Industry: %s\n", r.Profile.Industry)
	fmt.Fprintf(&b, "- Experience: %s years\n", r.Profile.ExperienceYears)
	if r.Profile.LinkedInURL != "" {
		fmt.Fprintf(&b, "- LinkedIn: %s\n", r.Profile.LinkedInURL)
	}

	fmt.Fprintf(&b, "\nTARGET COMPANIES: %s\n\n", strings.Join(r.TargetCompanies, ", "))

	fmt.Fprintf(&b, "CONTENT TYPE: %s\n", r.ContentType)
	fmt.Fprintf(&b, "CONTENT DETAILS: %s\n", r.ContentDetails)
	fmt.Fprintf(&b, "NETWORKING GOAL: %s\n\n", r.NetworkingGoal)

	b.WriteString("REQUIREMENTS:\n")
	b.WriteString("1. Create content that naturally attracts professionals from target companies\n")
	b.WriteString("2. Include networking-focused call-to-action\n")
	b.WriteString("3. Use strategic hashtags including company-specific ones\n")
	b.WriteString("4. Showcase expertise while inviting collaboration\n")
	b.WriteString("5. Generate supporting visual if beneficial\n")
	b.WriteString("6. Provide posting strategy and timing recommendations\n\n")

	b.WriteString("The content should feel authentic and valuable, not salesy or desperate for connections.\n")

	return b.String()
}

// Example is a canned request with a title for display.
type Example struct {
	Title   string
	Request Request
}

// Examples returns the canned demonstration requests.
func Examples() []Example {
	return []Example{
		{
			Title: "Learning Achievement Post",
			Request: Request{
				Profile: UserProfile{
					Name:            "Alex Chen",
					CurrentRole:     "Senior Software Engineer",
					Company:         "TechStartup Inc",
					Industry:        "Technology",
					ExperienceYears: "6",
				},
				TargetCompanies: []string{"Google", "Microsoft", "Meta"},
				ContentType:     Learning,
				ContentDetails:  "Just completed advanced Kubernetes certification and implemented a microservices architecture that improved our system scalability by 300%",
				NetworkingGoal:  "Connect with senior engineers and architects at FAANG companies to discuss best practices and potential opportunities",
			},
		},
	}
}
