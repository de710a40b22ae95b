package deploy

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"deepsite_server/internal/utils"
)

// GitHub publishes to GitHub Pages through the REST API.
type GitHub struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewGitHub creates a client for the API rooted at endpoint,
// e.g. https://api.github.com.
func NewGitHub(endpoint string, logger *slog.Logger) *GitHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &GitHub{
		endpoint: strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: logger,
	}
}

func (g *GitHub) Name() string { return "github" }

type createRepoRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Private     bool   `json:"private"`
	AutoInit    bool   `json:"auto_init"`
}

type createRepoResponse struct {
	Name    string `json:"name"`
	HTMLURL string `json:"html_url"`
	Owner   struct {
		Login string `json:"login"`
	} `json:"owner"`
}

type putContentRequest struct {
	Message string `json:"message"`
	Content string `json:"content"` // base64
	SHA     string `json:"sha,omitempty"`
	Branch  string `json:"branch"`
}

type pagesRequest struct {
	Source struct {
		Branch string `json:"branch"`
		Path   string `json:"path"`
	} `json:"source"`
}

// Deploy creates a public repository, commits the site files and enables
// Pages on the main branch.
func (g *GitHub) Deploy(ctx context.Context, req Request) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}
	if req.Credential == "" {
		return Result{}, ErrMissingCredential
	}

	repoName := req.Destination
	if repoName == "" {
		repoName = utils.RepoName(req.ProjectName)
	}

	var repo createRepoResponse
	err := g.call(ctx, req.Credential, http.MethodPost, "/user/repos", createRepoRequest{
		Name:        repoName,
		Description: "DeepSite project: " + req.ProjectName,
		AutoInit:    true,
	}, &repo)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create GitHub repository: %w", err)
	}
	owner := repo.Owner.Login
	g.logger.Info("github repository created", slog.String("repo", owner+"/"+repoName))

	for _, f := range siteFiles(req) {
		path := fmt.Sprintf("/repos/%s/%s/contents/%s", owner, repoName, f.Filename)
		// auto_init already committed a README; replacing it needs its blob sha.
		sha, err := g.existingSHA(ctx, req.Credential, path)
		if err != nil {
			return Result{}, fmt.Errorf("failed to look up %s: %w", f.Filename, err)
		}
		message := "Add " + f.Filename
		if sha != "" {
			message = "Update " + f.Filename
		}
		body := putContentRequest{
			Message: message,
			Content: base64.StdEncoding.EncodeToString([]byte(f.Content)),
			SHA:     sha,
			Branch:  "main",
		}
		if err := g.call(ctx, req.Credential, http.MethodPut, path, body, nil, http.StatusCreated, http.StatusOK); err != nil {
			return Result{}, fmt.Errorf("failed to create %s: %w", f.Filename, err)
		}
	}

	var pages pagesRequest
	pages.Source.Branch = "main"
	pages.Source.Path = "/"
	if err := g.call(ctx, req.Credential, http.MethodPost, fmt.Sprintf("/repos/%s/%s/pages", owner, repoName), pages, nil); err != nil {
		return Result{}, fmt.Errorf("failed to enable GitHub Pages: %w", err)
	}

	url := fmt.Sprintf("https://%s.github.io/%s/", owner, repoName)
	g.logger.Info("github pages enabled", slog.String("url", url))
	return Result{Target: g.Name(), URL: url, Location: repo.HTMLURL}, nil
}

// existingSHA returns the blob sha of the file at a contents path, or ""
// when there is none.
func (g *GitHub) existingSHA(ctx context.Context, token, path string) (string, error) {
	resp, err := g.send(ctx, token, http.MethodGet, path+"?ref=main", nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotFound:
		return "", nil
	case http.StatusOK:
		var file struct {
			SHA string `json:"sha"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&file); err != nil {
			return "", fmt.Errorf("failed to decode response: %w", err)
		}
		return file.SHA, nil
	default:
		return "", g.statusError(path, resp)
	}
}

// call sends one JSON request and expects one of the given statuses,
// 201 Created when none are given.
func (g *GitHub) call(ctx context.Context, token, method, path string, in, out any, expect ...int) error {
	if len(expect) == 0 {
		expect = []int{http.StatusCreated}
	}
	resp, err := g.send(ctx, token, method, path, in)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if !slices.Contains(expect, resp.StatusCode) {
		return g.statusError(path, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (g *GitHub) send(ctx context.Context, token, method, path string, in any) (*http.Response, error) {
	var body io.Reader
	if in != nil {
		jsonData, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.endpoint+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("Authorization", "token "+token)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	return resp, nil
}

func (g *GitHub) statusError(path string, resp *http.Response) error {
	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	g.logger.Warn("github api error",
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.String("body", string(bodyBytes)))
	return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(bodyBytes)))
}
