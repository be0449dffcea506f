package networking

import (
	"context"
	"errors"

	"github.com/germanamz/postcraft/pkg/tools/toolbox"
)

// Toolbox group names referenced from agent configuration.
const (
	ProfileToolbox = "profile"
	CopyToolbox    = "copy"
)

type analyzeInput struct {
	LinkedInURL string `json:"linkedin_url" jsonschema:"description=Public LinkedIn profile URL (https://www.linkedin.com/in/<handle>)"`
}

type identifyInput struct {
	Industry  string   `json:"industry" jsonschema:"description=Industry of the user such as Technology"`
	Role      string   `json:"role" jsonschema:"description=Current role of the user"`
	Location  string   `json:"location,omitempty" jsonschema:"description=Region to focus on. Defaults to Global"`
	Companies []string `json:"companies,omitempty" jsonschema:"description=Specific companies the user already wants to target"`
}

type hashtagsInput struct {
	TargetCompanies []string `json:"target_companies" jsonschema:"description=Companies whose employees the post should reach"`
	Industry        string   `json:"industry" jsonschema:"description=Industry used for the generic networking tags"`
}

type ctaInput struct {
	TargetCompanies []string `json:"target_companies" jsonschema:"description=Companies to address in the call to action"`
	ContentType     string   `json:"content_type" jsonschema:"description=One of learning or achievement or insight or question"`
}

// ProfileTools returns the research-side tools: profile analysis and target
// company identification.
func ProfileTools(a *Analyzer) *toolbox.ToolBox {
	analyze := toolbox.Func("analyze_linkedin_profile",
		"Analyze a LinkedIn profile to understand the user's background and networking potential.",
		func(ctx context.Context, in analyzeInput) (any, error) {
			p, err := a.Analyze(ctx, in.LinkedInURL)
			if errors.Is(err, ErrInvalidProfileURL) {
				return map[string]string{"error": err.Error()}, nil
			}
			if err != nil {
				return nil, err
			}
			return p, nil
		})

	identify := toolbox.Func("identify_target_companies",
		"Identify target companies for networking based on the user's profile and goals.",
		func(_ context.Context, in identifyInput) ([]Company, error) {
			if len(in.Companies) > 0 {
				return TargetsFor(in.Companies), nil
			}
			return IdentifyTargetCompanies(in.Industry, in.Role, in.Location), nil
		})

	return toolbox.New(analyze, identify)
}

// CopyTools returns the copywriting tools: hashtags and calls to action.
// maxHashtags <= 0 selects DefaultMaxHashtags.
func CopyTools(maxHashtags int) *toolbox.ToolBox {
	hashtags := toolbox.Func("generate_networking_hashtags",
		"Generate hashtags specifically for networking with target company employees.",
		func(_ context.Context, in hashtagsInput) ([]string, error) {
			return GenerateHashtags(in.TargetCompanies, in.Industry, maxHashtags), nil
		})

	cta := toolbox.Func("create_networking_cta",
		"Create a call-to-action designed for networking with target company employees.",
		func(_ context.Context, in ctaInput) (string, error) {
			return CreateCTA(in.TargetCompanies, in.ContentType), nil
		})

	return toolbox.New(hashtags, cta)
}
