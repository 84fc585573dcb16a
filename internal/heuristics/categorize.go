// Package heuristics provides keyword categorization and deadline
// extraction for circulars whose callers omit explicit values. Output
// is a default only; it never overrides a value that was set.
package heuristics

import "strings"

// categoryKeywords maps each category to the phrases that vote for it.
// Multi-word phrases score by word count so more specific matches win.
var categoryKeywords = map[string][]string{
	"Regulation Update": {
		"regulation", "policy", "compliance", "guideline", "amendment",
		"notification", "gazette", "statutory", "rule", "act", "law",
		"circular", "directive", "mandate",
	},
	"Hackathon Event": {
		"hackathon", "coding", "competition", "challenge", "ideathon",
		"makeathon", "codeathon", "smart india hackathon", "sih",
	},
	"Workshop / Seminar": {
		"workshop", "seminar", "webinar", "conference", "symposium",
		"training", "session", "talk", "lecture", "colloquium", "fdp",
		"faculty development", "hands-on", "masterclass",
	},
	"Curriculum Update": {
		"curriculum", "syllabus", "course", "module", "credit",
		"academic", "program", "elective", "outcome", "clo", "plo",
		"lesson plan", "pedagogy",
	},
	"Infrastructure": {
		"infrastructure", "lab", "equipment", "facility", "building",
		"maintenance", "renovation", "construction", "purchase",
		"procurement", "library", "computer",
	},
	"Faculty Development": {
		"faculty", "professional development", "research", "publication",
		"patent", "paper", "journal", "certification", "training program",
		"fip", "sabbatical", "orientation",
	},
	"Student Activities": {
		"student", "club", "fest", "cultural", "sports", "nss", "ncc",
		"placement", "internship", "counseling", "welfare", "scholarship",
		"admission", "mentor", "alumni",
	},
	"Audit & Accreditation": {
		"audit", "accreditation", "naac", "nba", "abet", "nirf",
		"ranking", "assessment", "quality", "iqac", "ssr", "sar",
		"peer team", "inspection", "review", "nherc", "ugc", "aicte",
	},
	"Examination": {
		"exam", "examination", "test", "assessment", "evaluation",
		"marks", "grade", "result", "supplementary", "revaluation",
		"internal", "external", "question paper", "time table",
	},
	"Research & Innovation": {
		"research", "innovation", "project", "grant", "funding",
		"startup", "incubation", "ipr", "intellectual property",
		"collaboration", "mou", "consultancy",
	},
	"Placement & Internship": {
		"placement", "internship", "recruit", "company", "interview",
		"campus", "offer", "package", "industry", "corporate",
	},
}

// Categorize scores the text against the keyword table and returns the
// best-matching category, or "Other" when nothing matches.
func Categorize(text string) string {
	lower := strings.ToLower(text)

	best := "Other"
	bestScore := 0
	for _, category := range orderedCategories {
		score := 0
		for _, kw := range categoryKeywords[category] {
			if strings.Contains(lower, kw) {
				score += len(strings.Fields(kw))
			}
		}
		if score > bestScore {
			best = category
			bestScore = score
		}
	}
	return best
}

// orderedCategories fixes the evaluation order so ties resolve
// deterministically across runs.
var orderedCategories = []string{
	"Regulation Update", "Hackathon Event", "Workshop / Seminar",
	"Curriculum Update", "Infrastructure", "Faculty Development",
	"Student Activities", "Audit & Accreditation", "Examination",
	"Research & Innovation", "Placement & Internship",
}
