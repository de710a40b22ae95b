package types

// SiteFile is one file of a deployable site bundle.
type SiteFile struct {
	Filename string `json:"filename"`
	Type     string `json:"type"` // e.g., "HTML", "Markdown", "JSON"
	Content  string `json:"content"`
}
