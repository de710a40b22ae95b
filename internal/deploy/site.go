package deploy

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"deepsite_server/internal/types"
	"deepsite_server/internal/utils"
)

const creditURL = "https://deepsite.app"

// GenerateREADME renders the README shipped with every deployed site.
func GenerateREADME(projectName string, history []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", projectName)
	b.WriteString("This website was created using DeepSite, a web application that allows users to create, edit, and deploy HTML websites using AI assistance.\n\n")
	b.WriteString("## About\n\nThis website was generated using the following prompts:\n\n")
	for i, prompt := range history {
		fmt.Fprintf(&b, "### Prompt %d\n%s\n\n", i+1, prompt)
	}
	b.WriteString("## Technologies Used\n\n- HTML\n- CSS\n- JavaScript\n\n")
	b.WriteString("## Created with DeepSite\n\n")
	fmt.Fprintf(&b, "This website was created using [DeepSite](%s), a web application that allows users to create, edit, and deploy HTML websites using AI assistance.\n", creditURL)
	return b.String()
}

func newFile(name, content string) types.SiteFile {
	return types.SiteFile{Filename: name, Type: utils.DetermineFileType(name), Content: content}
}

// siteFiles is the common bundle: the page and its README, plus any
// target-specific extras.
func siteFiles(req Request, extra ...types.SiteFile) []types.SiteFile {
	files := []types.SiteFile{
		newFile("index.html", req.HTML),
		newFile("README.md", GenerateREADME(req.ProjectName, req.PromptHistory)),
	}
	return append(files, extra...)
}

func promptHistoryFile(history []string) (types.SiteFile, error) {
	if history == nil {
		history = []string{}
	}
	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return types.SiteFile{}, fmt.Errorf("encode prompt history: %w", err)
	}
	return newFile("prompt_history.json", string(data)), nil
}

// writeFiles materialises a bundle under dir.
func writeFiles(dir string, files []types.SiteFile) error {
	for _, f := range files {
		filePath := filepath.Join(dir, f.Filename)
		if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
			return fmt.Errorf("failed to create subdirectories for %s: %w", f.Filename, err)
		}
		if err := os.WriteFile(filePath, []byte(f.Content), 0o644); err != nil {
			return fmt.Errorf("failed to write file %s: %w", f.Filename, err)
		}
	}
	return nil
}
