package utils

import (
	"path/filepath"
	"strings"
)

// RepoName derives the default repository name for a project.
func RepoName(projectName string) string {
	return "deepsite-" + strings.ReplaceAll(strings.ToLower(strings.TrimSpace(projectName)), " ", "-")
}

// DirName turns a project name into a single path element. Separators are
// replaced and names that would climb out of the parent are rejected.
func DirName(projectName string) (string, bool) {
	name := strings.TrimSpace(projectName)
	name = strings.NewReplacer("/", "-", "\\", "-").Replace(name)
	if name == "" || name == "." || name == ".." {
		return "", false
	}
	return name, true
}

// DetermineFileType labels a bundle file by its extension.
func DetermineFileType(filename string) string {
	lowerFilename := strings.ToLower(filename)
	ext := filepath.Ext(lowerFilename)
	switch ext {
	case ".html", ".htm":
		return "HTML"
	case ".css":
		return "CSS"
	case ".js":
		return "JavaScript"
	case ".json":
		return "JSON"
	case ".md":
		return "Markdown"
	case ".txt":
		return "Text"
	case ".toml":
		return "TOML"
	case ".svg":
		return "SVG"
	case ".png", ".jpg", ".jpeg", ".gif", ".webp":
		return "Image"
	default:
		return "Unknown"
	}
}
