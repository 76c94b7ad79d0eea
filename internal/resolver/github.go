package resolver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"

	"mcpdock/internal/security"
	"mcpdock/pkg/cmdutil"
)

const (
	// DefaultCloneTimeout bounds the shallow clone that materializes an
	// artifact.
	DefaultCloneTimeout = 120 * time.Second
)

// GitHubResolver resolves owner/repo references against the GitHub API,
// then materializes the artifact with a shallow git clone into a local
// cache. Resolved versions are cached by owner/repo/version directory, so
// re-deploying an already-resolved tag touches neither the network nor git.
type GitHubResolver struct {
	client       *github.Client
	cacheDir     string
	cloneTimeout time.Duration
}

// NewGitHubResolver creates a resolver caching artifacts under cacheDir.
// An empty token uses unauthenticated API access (rate-limited by GitHub).
func NewGitHubResolver(token, cacheDir string) *GitHubResolver {
	var client *github.Client
	if token == "" {
		client = github.NewClient(nil)
	} else {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		client = github.NewClient(oauth2.NewClient(context.Background(), ts))
	}

	return &GitHubResolver{
		client:       client,
		cacheDir:     cacheDir,
		cloneTimeout: DefaultCloneTimeout,
	}
}

// Resolve implements Resolver.
func (r *GitHubResolver) Resolve(ctx context.Context, sourceRef, versionSpec string) (*Resolution, error) {
	resolution, err := r.resolve(ctx, sourceRef, versionSpec)
	if err != nil {
		spec := versionSpec
		if spec == "" {
			spec = VersionLatest
		}
		return nil, &SourceResolutionError{Ref: sourceRef, Spec: spec, Err: err}
	}
	return resolution, nil
}

func (r *GitHubResolver) resolve(ctx context.Context, sourceRef, versionSpec string) (*Resolution, error) {
	if err := security.ValidateSourceRef(sourceRef); err != nil {
		return nil, err
	}
	if err := security.ValidateVersionSpec(versionSpec); err != nil {
		return nil, err
	}

	parts := strings.SplitN(sourceRef, "/", 2)
	owner, repo := parts[0], parts[1]

	version, err := r.resolveVersion(ctx, owner, repo, versionSpec)
	if err != nil {
		return nil, err
	}

	commit, _, err := r.client.Repositories.GetCommitSHA1(ctx, owner, repo, version, "")
	if err != nil {
		return nil, fmt.Errorf("resolving commit for %s: %w", version, err)
	}

	localPath, err := r.materialize(ctx, owner, repo, version)
	if err != nil {
		return nil, err
	}

	return &Resolution{
		LocalPath: localPath,
		Commit:    commit,
		Version:   version,
	}, nil
}

// resolveVersion turns a version spec into a concrete git ref. "latest"
// resolves to the newest release tag, falling back to the repository's
// default branch for repos that publish no releases.
func (r *GitHubResolver) resolveVersion(ctx context.Context, owner, repo, spec string) (string, error) {
	if spec != "" && spec != VersionLatest {
		return spec, nil
	}

	release, resp, err := r.client.Repositories.GetLatestRelease(ctx, owner, repo)
	if err == nil {
		if release.TagName == nil || *release.TagName == "" {
			return "", fmt.Errorf("latest release of %s/%s has no tag name", owner, repo)
		}
		return *release.TagName, nil
	}
	if resp == nil || resp.StatusCode != 404 {
		return "", fmt.Errorf("fetching latest release: %w", err)
	}

	repository, _, err := r.client.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return "", fmt.Errorf("fetching repository: %w", err)
	}
	if repository.DefaultBranch == nil || *repository.DefaultBranch == "" {
		return "", fmt.Errorf("repository %s/%s has no releases and no default branch", owner, repo)
	}
	return *repository.DefaultBranch, nil
}

// materialize clones the resolved version into the cache, reusing an
// existing checkout when present.
func (r *GitHubResolver) materialize(ctx context.Context, owner, repo, version string) (string, error) {
	dir := filepath.Join(r.cacheDir, fmt.Sprintf("%s--%s--%s", owner, repo, version))

	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		return dir, nil
	}

	if err := os.MkdirAll(r.cacheDir, 0755); err != nil {
		return "", fmt.Errorf("creating cache directory: %w", err)
	}

	cloneURL := fmt.Sprintf("https://github.com/%s/%s.git", owner, repo)
	result, err := cmdutil.Run(ctx, cmdutil.ExecOptions{Timeout: r.cloneTimeout}, []string{
		"git", "clone", "--depth", "1", "--branch", version, cloneURL, dir,
	})
	if err != nil {
		// Remove the partial checkout so a retry starts clean
		_ = os.RemoveAll(dir)
		return "", fmt.Errorf("git clone failed: %w (output: %s)", err, strings.TrimSpace(string(result.Output)))
	}

	return dir, nil
}

// ArtifactDir exposes the cache location a version would materialize into.
func (r *GitHubResolver) ArtifactDir(owner, repo, version string) string {
	return filepath.Join(r.cacheDir, fmt.Sprintf("%s--%s--%s", owner, repo, version))
}
