package models

// UnknownCitationTitle is used when the engine annotation has no title.
const UnknownCitationTitle = "Unknown"

// Citation is one reference extracted from a completed report.
// ID is the 1-based position in the source annotation list.
type Citation struct {
	ID      int    `json:"id" yaml:"id"`
	Title   string `json:"title" yaml:"title"`
	URL     string `json:"url,omitempty" yaml:"url,omitempty"`
	Snippet string `json:"snippet,omitempty" yaml:"snippet,omitempty"`
}

// Report is the normalized result of a completed research job.
type Report struct {
	Report        string     `json:"report" yaml:"report"`
	Citations     []Citation `json:"citations" yaml:"citations"`
	CitationCount int        `json:"citation_count" yaml:"citation_count"`
}
