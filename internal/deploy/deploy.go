// Package deploy publishes a page to a hosting target.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"slices"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var (
	ErrUnknownTarget     = errors.New("deploy: unknown target")
	ErrMissingCredential = errors.New("deploy: credential is required")
)

// Request carries everything a target needs to publish one page.
type Request struct {
	ProjectName   string
	HTML          string
	PromptHistory []string
	Credential    string // access token for the hosting provider
	Destination   string // target specific: repo name, site id or directory
}

func (r Request) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ProjectName, validation.Required),
		validation.Field(&r.HTML, validation.Required),
	)
}

// Result describes a finished deployment.
type Result struct {
	Target    string `json:"target"`
	URL       string `json:"url,omitempty"`
	Location  string `json:"location,omitempty"`
	Simulated bool   `json:"simulated"`
}

// Target publishes a site. A nil error means the deployment succeeded.
type Target interface {
	Name() string
	Deploy(ctx context.Context, req Request) (Result, error)
}

// Registry resolves targets by name.
type Registry struct {
	targets map[string]Target
}

func NewRegistry(targets ...Target) *Registry {
	r := &Registry{targets: make(map[string]Target, len(targets))}
	for _, t := range targets {
		r.targets[t.Name()] = t
	}
	return r
}

func (r *Registry) Get(name string) (Target, error) {
	t, ok := r.targets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTarget, name)
	}
	return t, nil
}

// Names lists the registered targets in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.targets))
	for name := range r.targets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
