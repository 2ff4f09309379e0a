package workspace

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/firefly-engineering/hutch/internal/errors"
	"github.com/firefly-engineering/hutch/internal/logging"
	"github.com/firefly-engineering/hutch/internal/naming"
	"github.com/firefly-engineering/hutch/internal/runtime"
	"github.com/firefly-engineering/hutch/internal/spec"
	"github.com/firefly-engineering/hutch/internal/vault"
)

const (
	// sshDir is where helpers mount the ssh-key volume.
	sshDir = "/tmp/.ssh"

	// checkoutDir is where Fetch clones repositories.
	checkoutDir = "/tmp/hutch-src"

	exitMissing = 3
)

// gitSSHCommand makes git use the hutch key and a known_hosts file kept in
// the ssh-key volume.
var gitSSHCommand = fmt.Sprintf("ssh -i %s/%s -o UserKnownHostsFile=%s/%s -o StrictHostKeyChecking=accept-new",
	sshDir, vault.SSHKeyFile, sshDir, vault.KnownHostsFile)

func sshMount() runtime.Mount {
	return runtime.Mount{Type: runtime.MountVolume, Source: naming.SSHKeyVolume, Target: sshDir}
}

// cloneScript clones url into dir unless dir already holds a repository.
func cloneScript(url, dir, owner string) string {
	q := shellquote.Join(dir)
	return strings.Join([]string{
		"set -e",
		"test -d " + shellquote.Join(path.Join(dir, ".git")) + " && exit 0",
		"mkdir -p " + shellquote.Join(path.Dir(dir)),
		"git clone --filter=blob:none " + shellquote.Join(url, dir),
		"chown -R " + shellquote.Join(owner) + " " + q,
	}, "\n")
}

// clone populates the work volume from the workspace's git source. It is a
// no-op when the checkout already exists.
func (o *Orchestrator) clone(ctx context.Context, ws *spec.Workspace, rs naming.ResourceSet) error {
	if ws.Git == nil {
		return nil
	}

	repo := ws.Git.RepoName()
	if repo == "" {
		return errors.ConfigError(fmt.Sprintf("cannot derive a directory name from %q", ws.Git.URL), nil)
	}

	present, err := o.helper.Exists(ctx, rs.Work, path.Join(repo, ".git"))
	if err != nil {
		return errors.EngineError("inspect", rs.Work, err)
	}
	if present {
		logStep("checkout present, skipping clone", ws.Name, "repo", repo)
		return nil
	}

	logging.ForWorkspace(ws.Name).Info("cloning repository", "url", ws.Git.URL)
	dir := path.Join(ws.WorkDir, repo)
	res, err := o.helper.Script(ctx,
		cloneScript(ws.Git.URL, dir, ws.UID+":"+ws.UID),
		[]runtime.Mount{
			{Type: runtime.MountVolume, Source: rs.Work, Target: ws.WorkDir},
			sshMount(),
		},
		[]string{"GIT_SSH_COMMAND=" + gitSSHCommand},
		nil,
	)
	if err != nil {
		return errors.EngineError("clone", ws.Git.URL, err)
	}
	if res.ExitCode != 0 {
		return errors.EngineError("clone", ws.Git.URL, fmt.Errorf("git exited with %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr)))
	}
	return nil
}

// Fetcher reads spec documents out of git repositories by cloning them in
// a throwaway helper container.
type Fetcher struct {
	helper *runtime.Helper
}

// NewFetcher creates a fetcher that runs helpers through rt.
func NewFetcher(rt runtime.Runtime, image string) *Fetcher {
	return &Fetcher{helper: runtime.NewHelper(rt, image)}
}

// Fetch implements config.Fetcher.
func (f *Fetcher) Fetch(ctx context.Context, url, file string) ([]byte, bool, error) {
	target, err := runtime.ContainerPath(checkoutDir, file)
	if err != nil {
		return nil, false, err
	}

	script := strings.Join([]string{
		"git clone --quiet --depth=1 --filter=blob:none " + shellquote.Join(url, checkoutDir) + " >&2 || exit 2",
		fmt.Sprintf("test -f %s || exit %d", shellquote.Join(target), exitMissing),
		"cat " + shellquote.Join(target),
	}, "\n")

	logging.Debug("fetching spec document", "url", url, "path", file)
	res, err := f.helper.Script(ctx, script, []runtime.Mount{sshMount()}, []string{"GIT_SSH_COMMAND=" + gitSSHCommand}, nil)
	if err != nil {
		return nil, false, err
	}

	switch res.ExitCode {
	case 0:
		return []byte(res.Stdout), true, nil
	case exitMissing:
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("git clone %s failed: %s", url, strings.TrimSpace(res.Stderr))
	}
}
