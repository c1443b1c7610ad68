// Copyright (c) 2026 google-sheets authors
// google-sheets - service and deployment tooling
// This source code is licensed under the MIT license found in the LICENSE file.

// Package imagetag maps the branch that triggered a pipeline run to the
// container image tag it publishes and deploys.
package imagetag

import (
	"errors"
	"fmt"
	"strings"
)

const DefaultRegistry = "ghcr.io"

// ErrNoDeployTarget means the ref is neither the release nor the
// development branch and nothing should be published.
var ErrNoDeployTarget = errors.New("ref has no deploy target")

// Target is an image tag with the branch it was derived from.
type Target struct {
	Branch string
	Tag    string
}

var branchTags = map[string]string{
	"main": "latest",
	"dev":  "dev",
}

// Resolve accepts a full ref ("refs/heads/main") or a bare branch name.
func Resolve(ref string) (Target, error) {
	branch := strings.TrimSpace(ref)
	branch = strings.TrimPrefix(branch, "refs/heads/")
	tag, ok := branchTags[branch]
	if !ok {
		return Target{}, fmt.Errorf("%w: %q", ErrNoDeployTarget, ref)
	}
	return Target{Branch: branch, Tag: tag}, nil
}

// ImageRef builds <registry>/<repository>:<tag>. Registries reject upper
// case repository names, so the repository is lowercased.
func ImageRef(registry, repository, tag string) string {
	if registry == "" {
		registry = DefaultRegistry
	}
	registry = strings.TrimSuffix(registry, "/")
	repository = strings.ToLower(strings.Trim(repository, "/"))
	return fmt.Sprintf("%s/%s:%s", registry, repository, tag)
}
