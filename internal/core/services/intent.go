package services

import "strings"

// intent is a coarse query purpose detected by keyword.
type intent struct {
	name     string
	keywords []string
	markers  []string
}

// intents are checked in order. Keywords match whole query tokens; markers
// match substrings of lowercased content.
var intents = []intent{
	{
		name:     "contact",
		keywords: []string{"contact", "email", "reach", "phone", "linkedin"},
		markers:  []string{"@", "linkedin", "email", "phone", "contact"},
	},
	{
		name:     "resume",
		keywords: []string{"resume", "cv", "background", "profile", "qualifications"},
		markers:  []string{"resume", "education", "skills", "experience"},
	},
	{
		name:     "experience",
		keywords: []string{"experience", "worked", "years", "sde", "engineer", "job", "role"},
		markers:  []string{"experience", "years", "engineer", "developer", "worked", "intern"},
	},
}

// detectIntents returns the intents whose keywords appear in the query tokens.
func detectIntents(queryTokens map[string]struct{}) []intent {
	var found []intent
	for _, in := range intents {
		for _, k := range in.keywords {
			if _, ok := queryTokens[k]; ok {
				found = append(found, in)
				break
			}
		}
	}
	return found
}

// matches reports whether text carries any of the intent's markers.
func (in intent) matches(text string) bool {
	lower := strings.ToLower(text)
	for _, m := range in.markers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// intentBoost adds weight for every detected intent whose markers text carries.
func intentBoost(detected []intent, text string, weight float64) float64 {
	boost := 0.0
	for _, in := range detected {
		if in.matches(text) {
			boost += weight
		}
	}
	return boost
}
