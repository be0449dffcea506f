package networking

import "strings"

// DefaultLocation is used when no location is given.
const DefaultLocation = "Global"

// Company describes a networking target.
type Company struct {
	Name                string   `json:"name"`
	Industry            string   `json:"industry"`
	Size                string   `json:"size"`
	NetworkingPotential string   `json:"networking_potential"`
	KeyPeople           []string `json:"key_people"`
	ContentStrategy     string   `json:"content_strategy"`
	Location            string   `json:"location,omitempty"`
}

var catalog = map[string][]Company{
	"technology": {
		{
			Name:                "Google",
			Industry:            "Technology",
			Size:                "Large",
			NetworkingPotential: "High",
			KeyPeople:           []string{"Software Engineers", "Product Managers", "Data Scientists"},
			ContentStrategy:     "Share technical insights, open-source contributions, innovation thoughts",
		},
		{
			Name:                "Microsoft",
			Industry:            "Technology",
			Size:                "Large",
			NetworkingPotential: "High",
			KeyPeople:           []string{"Cloud Engineers", "AI Researchers", "Developer Advocates"},
			ContentStrategy:     "Discuss cloud technologies, AI developments, developer tools",
		},
		{
			Name:                "Meta",
			Industry:            "Technology",
			Size:                "Large",
			NetworkingPotential: "High",
			KeyPeople:           []string{"Infrastructure Engineers", "Engineering Managers", "Research Scientists"},
			ContentStrategy:     "Talk about scale, infrastructure lessons, open-source frameworks",
		},
	},
	"ai": {
		{
			Name:                "OpenAI",
			Industry:            "AI",
			Size:                "Medium",
			NetworkingPotential: "High",
			KeyPeople:           []string{"Research Engineers", "Applied AI Engineers", "Policy Researchers"},
			ContentStrategy:     "Share experiments with models, evaluation results, responsible AI thoughts",
		},
		{
			Name:                "Google DeepMind",
			Industry:            "AI",
			Size:                "Large",
			NetworkingPotential: "High",
			KeyPeople:           []string{"Research Scientists", "ML Engineers", "Program Managers"},
			ContentStrategy:     "Discuss papers, reproducible research, ML systems design",
		},
	},
	"finance": {
		{
			Name:                "Stripe",
			Industry:            "Finance",
			Size:                "Large",
			NetworkingPotential: "High",
			KeyPeople:           []string{"Payments Engineers", "Risk Analysts", "Product Managers"},
			ContentStrategy:     "Share payments infrastructure lessons, reliability stories, API design",
		},
		{
			Name:                "JPMorgan Chase",
			Industry:            "Finance",
			Size:                "Large",
			NetworkingPotential: "Medium",
			KeyPeople:           []string{"Quant Developers", "Technology Leads", "Data Engineers"},
			ContentStrategy:     "Discuss modernization, data platforms, regulatory technology",
		},
	},
	"healthcare": {
		{
			Name:                "Epic Systems",
			Industry:            "Healthcare",
			Size:                "Large",
			NetworkingPotential: "Medium",
			KeyPeople:           []string{"Software Developers", "Implementation Consultants", "Clinical Informaticists"},
			ContentStrategy:     "Share interoperability insights, patient-centred software stories",
		},
		{
			Name:                "Philips Healthcare",
			Industry:            "Healthcare",
			Size:                "Large",
			NetworkingPotential: "Medium",
			KeyPeople:           []string{"Medical Device Engineers", "Data Scientists", "Product Owners"},
			ContentStrategy:     "Discuss medical imaging, regulated software delivery, health data",
		},
	},
}

func startupEntry(industry string) Company {
	return Company{
		Name:                "Startup " + industry + " Companies",
		Industry:            industry,
		Size:                "Small-Medium",
		NetworkingPotential: "Medium",
		KeyPeople:           []string{"Founders", "Early Engineers", "Growth Teams"},
		ContentStrategy:     "Share startup insights, growth hacking, innovation stories",
	}
}

// IdentifyTargetCompanies returns networking targets for an industry in the
// given location (DefaultLocation when empty). Unknown industries use the
// technology catalog. The list always ends with the generic startup entry.
// role is accepted for the tool's signature; the catalog does not vary by it.
func IdentifyTargetCompanies(industry, role, location string) []Company {
	location = strings.TrimSpace(location)
	if location == "" {
		location = DefaultLocation
	}

	key := strings.ToLower(strings.TrimSpace(industry))

	entries, ok := catalog[key]
	if !ok {
		key = "technology"
		entries = catalog[key]
	}

	out := make([]Company, 0, len(entries)+1)
	out = append(out, entries...)
	out = append(out, startupEntry(entries[0].Industry))

	for i := range out {
		out[i].Location = location
	}

	return out
}

// TargetsFor returns one entry per distinct non-empty company name, in input
// order. Known names use catalog data; others get templated defaults.
func TargetsFor(names []string) []Company {
	names = cleanNames(names)
	out := make([]Company, 0, len(names))

	for _, n := range names {
		if c, ok := lookup(n); ok {
			out = append(out, c)
			continue
		}
		out = append(out, Company{
			Name:                n,
			Industry:            "Unknown",
			Size:                "Unknown",
			NetworkingPotential: "Medium",
			KeyPeople:           []string{"Engineers", "Hiring Managers", "Team Leads"},
			ContentStrategy:     "Share insights relevant to " + n + "'s work and invite its team into the conversation",
		})
	}

	return out
}

func lookup(name string) (Company, bool) {
	for _, entries := range catalog {
		for _, c := range entries {
			if strings.EqualFold(c.Name, name) {
				return c, true
			}
		}
	}
	return Company{}, false
}

// cleanNames trims names, drops empties and collapses exact duplicates while
// keeping first-occurrence order.
func cleanNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))

	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}

	return out
}
