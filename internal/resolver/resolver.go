// Package resolver turns a source reference plus version spec into a local
// artifact directory. Resolution happens strictly before any configuration
// mutation, so a failure here leaves no filesystem side effects in the
// deployment path.
package resolver

import (
	"context"
	"fmt"
)

// VersionLatest is the sentinel version spec meaning "newest release".
const VersionLatest = "latest"

// Resolution is the outcome of resolving a source reference.
type Resolution struct {
	// LocalPath is the directory holding the artifact's checked-out code.
	LocalPath string

	// Commit is the concrete commit SHA the version resolved to.
	Commit string

	// Version is the concrete version (tag or branch) that was resolved.
	Version string
}

// Resolver resolves a sourceRef ("owner/repo") and versionSpec (tag or
// "latest") into a local artifact.
type Resolver interface {
	Resolve(ctx context.Context, sourceRef, versionSpec string) (*Resolution, error)
}

// SourceResolutionError indicates an artifact could not be resolved.
type SourceResolutionError struct {
	Ref  string
	Spec string
	Err  error
}

func (e *SourceResolutionError) Error() string {
	return fmt.Sprintf("failed to resolve %s@%s: %v", e.Ref, e.Spec, e.Err)
}

func (e *SourceResolutionError) Unwrap() error {
	return e.Err
}
