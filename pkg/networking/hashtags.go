package networking

import "strings"

// DefaultMaxHashtags caps GenerateHashtags when no positive limit is given.
const DefaultMaxHashtags = 8

var industryHashtags = map[string][]string{
	"technology": {"#TechNetworking", "#SoftwareEngineers", "#TechCommunity", "#DevCommunity"},
	"ai":         {"#AIEngineers", "#MachineLearning", "#DataScience", "#AIResearch"},
	"finance":    {"#FinTech", "#Finance", "#Banking", "#FinanceJobs"},
	"healthcare": {"#HealthTech", "#Healthcare", "#MedTech", "#HealthcareIT"},
}

var fallbackHashtags = []string{"#Professional", "#Networking"}

// GenerateHashtags builds company tags (#X, #XCareers, #XTech) followed by
// industry tags. The result has no duplicates, keeps first-occurrence order
// and holds at most limit entries.
func GenerateHashtags(companies []string, industry string, limit int) []string {
	if limit <= 0 {
		limit = DefaultMaxHashtags
	}

	var candidates []string
	for _, c := range companies {
		clean := strings.NewReplacer(" ", "", ",", "").Replace(strings.TrimSpace(c))
		if clean == "" {
			continue
		}
		candidates = append(candidates, "#"+clean, "#"+clean+"Careers", "#"+clean+"Tech")
	}

	tags, ok := industryHashtags[strings.ToLower(strings.TrimSpace(industry))]
	if !ok {
		tags = fallbackHashtags
	}
	candidates = append(candidates, tags...)

	seen := make(map[string]bool, len(candidates))
	out := make([]string, 0, limit)

	for _, tag := range candidates {
		if seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
		if len(out) == limit {
			break
		}
	}

	return out
}
