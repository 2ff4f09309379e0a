package runtime

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/kballard/go-shellquote"
)

// HelperMountPoint is where Helper mounts the target volume.
const HelperMountPoint = "/hutch-vol"

// Helper runs short-lived containers against volumes. Nothing it does
// touches the host filesystem, so it works the same against a remote engine.
type Helper struct {
	Runtime Runtime
	Image   string
}

// NewHelper creates a helper that runs the given image.
func NewHelper(rt Runtime, image string) *Helper {
	return &Helper{Runtime: rt, Image: image}
}

// ContainerPath resolves name inside root. Names that try to climb out of
// root are confined to it.
func ContainerPath(root, name string) (string, error) {
	p, err := securejoin.SecureJoin(root, name)
	if err != nil {
		return "", fmt.Errorf("invalid file name %q: %w", name, err)
	}
	if p == path.Clean(root) {
		return "", fmt.Errorf("invalid file name %q: resolves to %s itself", name, root)
	}
	return p, nil
}

// VolumePath resolves name inside the helper mount point.
func VolumePath(name string) (string, error) {
	return ContainerPath(HelperMountPoint, name)
}

// Script runs a shell script as root in a throwaway container.
func (h *Helper) Script(ctx context.Context, script string, mounts []Mount, env []string, stdin []byte) (*ExecResult, error) {
	opts := RunOptions{
		CreateOptions: CreateOptions{
			Image:      h.Image,
			Entrypoint: []string{"sh", "-c", script},
			Env:        env,
			Mounts:     mounts,
			User:       "0",
		},
	}
	if stdin != nil {
		opts.Stdin = bytes.NewReader(stdin)
		opts.Interactive = true
	}
	return h.Runtime.Run(ctx, opts)
}

// WriteFile writes content to name inside volume, creating parent
// directories. Owner is a chown spec such as "1000:1000" and may be empty.
func (h *Helper) WriteFile(ctx context.Context, volume, name string, content []byte, mode os.FileMode, owner string) error {
	target, err := VolumePath(name)
	if err != nil {
		return err
	}

	q := shellquote.Join(target)
	script := fmt.Sprintf("set -e; mkdir -p \"$(dirname %s)\"; umask 077; cat > %s; chmod %o %s", q, q, mode.Perm(), q)
	if owner != "" {
		script += fmt.Sprintf("; chown %s %s", shellquote.Join(owner), q)
	}

	res, err := h.Script(ctx, script, []Mount{{Type: MountVolume, Source: volume, Target: HelperMountPoint}}, nil, content)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("failed to write %s in volume %s: %s", name, volume, strings.TrimSpace(res.Stderr))
	}
	return nil
}

// ReadFile returns the content of name inside volume. The boolean is false
// when the file does not exist.
func (h *Helper) ReadFile(ctx context.Context, volume, name string) ([]byte, bool, error) {
	target, err := VolumePath(name)
	if err != nil {
		return nil, false, err
	}

	q := shellquote.Join(target)
	script := fmt.Sprintf("test -f %s || exit 3; cat %s", q, q)
	res, err := h.Script(ctx, script, []Mount{{Type: MountVolume, Source: volume, Target: HelperMountPoint, ReadOnly: true}}, nil, nil)
	if err != nil {
		return nil, false, err
	}
	switch res.ExitCode {
	case 0:
		return []byte(res.Stdout), true, nil
	case 3:
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("failed to read %s in volume %s: %s", name, volume, strings.TrimSpace(res.Stderr))
	}
}

// Exists reports whether every one of names exists inside volume.
func (h *Helper) Exists(ctx context.Context, volume string, names ...string) (bool, error) {
	tests := make([]string, 0, len(names))
	for _, n := range names {
		target, err := VolumePath(n)
		if err != nil {
			return false, err
		}
		tests = append(tests, "test -e "+shellquote.Join(target))
	}
	if len(tests) == 0 {
		return true, nil
	}

	res, err := h.Script(ctx, strings.Join(tests, " && "), []Mount{{Type: MountVolume, Source: volume, Target: HelperMountPoint, ReadOnly: true}}, nil, nil)
	if err != nil {
		return false, err
	}
	return res.ExitCode == 0, nil
}
