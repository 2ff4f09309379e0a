package tunnel

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/firefly-engineering/hutch/internal/errors"
	"github.com/firefly-engineering/hutch/internal/logging"
	"github.com/firefly-engineering/hutch/internal/naming"
	"github.com/firefly-engineering/hutch/internal/runtime"
)

// Lister lists containers. runtime.Runtime satisfies it.
type Lister interface {
	List(ctx context.Context, filter runtime.Labels) ([]*runtime.ContainerInfo, error)
}

// dialer opens channels through the ssh connection.
type dialer interface {
	Dial(network, addr string) (net.Conn, error)
}

// Tunnel forwards a local unix socket to the remote engine socket and
// publishes workspace ports on the local loopback.
type Tunnel struct {
	cfg          *Config
	dial         dialer
	remoteSocket string

	socket net.Listener

	mu    sync.Mutex
	ports map[int]net.Listener

	done     chan struct{}
	doneOnce sync.Once
	err      error
}

// Open connects to the remote host and starts forwarding. Port polling
// uses lister, which should talk to the engine through the forwarded
// socket. It runs until ctx is cancelled or the session drops.
func Open(ctx context.Context, cfg *Config, lister Lister) (*Tunnel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.ConfigError("invalid remote configuration", err)
	}

	clientCfg, release, err := cfg.ClientConfig()
	if err != nil {
		return nil, errors.TunnelError("cannot authenticate to "+cfg.Address(), err)
	}
	defer release()

	logging.Debug("dialing ssh", "address", cfg.Address(), "user", cfg.User)
	client, err := ssh.Dial("tcp", cfg.Address(), clientCfg)
	if err != nil {
		return nil, errors.TunnelError("ssh connection to "+cfg.Address()+" failed", err)
	}
	logging.UserInfo("SSH: connected to %s@%s", cfg.User, cfg.Address())

	remote := cfg.RemoteSocket
	if remote == "" {
		remote, err = discoverSocket(client)
		if err != nil {
			client.Close()
			return nil, err
		}
	}

	t := newTunnel(cfg, client, remote)
	if err := t.listenSocket(); err != nil {
		client.Close()
		return nil, err
	}

	go func() {
		err := client.Wait()
		t.finish(errors.TunnelError("ssh session to "+cfg.Address()+" closed", err))
	}()
	go func() {
		select {
		case <-ctx.Done():
			t.finish(nil)
		case <-t.done:
		}
		client.Close()
	}()
	go t.pollPorts(ctx, lister)

	return t, nil
}

func newTunnel(cfg *Config, d dialer, remoteSocket string) *Tunnel {
	return &Tunnel{
		cfg:          cfg,
		dial:         d,
		remoteSocket: remoteSocket,
		ports:        make(map[int]net.Listener),
		done:         make(chan struct{}),
	}
}

// discoverSocket reads DOCKER_HOST in a remote shell.
func discoverSocket(client *ssh.Client) (string, error) {
	session, err := client.NewSession()
	if err != nil {
		return "", errors.TunnelError("cannot open ssh session", err)
	}
	defer session.Close()

	out, err := session.Output("echo $DOCKER_HOST")
	if err != nil {
		return "", errors.TunnelError("cannot read DOCKER_HOST on remote host", err)
	}
	socket := SocketFromDockerHost(string(out))
	logging.Debug("remote engine socket", "socket", socket)
	return socket, nil
}

// SocketFromDockerHost extracts the socket path of a unix:// DOCKER_HOST
// value. Anything else falls back to the default engine socket.
func SocketFromDockerHost(value string) string {
	value = strings.TrimSpace(value)
	if p, ok := strings.CutPrefix(value, "unix://"); ok && p != "" {
		return p
	}
	if strings.HasPrefix(value, "/") {
		return value
	}
	return DefaultRemoteSocket
}

// DockerHost is the value local tools should use as DOCKER_HOST.
func (t *Tunnel) DockerHost() string {
	return "unix://" + t.cfg.LocalSocket
}

// RemoteSocket is the engine socket on the remote host.
func (t *Tunnel) RemoteSocket() string {
	return t.remoteSocket
}

func (t *Tunnel) listenSocket() error {
	path := t.cfg.LocalSocket
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return errors.TunnelError("cannot create socket directory", err)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.TunnelError("cannot remove stale socket "+path, err)
	}

	l, err := net.Listen("unix", path)
	if err != nil {
		return errors.TunnelError("cannot listen on "+path, err)
	}
	t.socket = l
	logging.UserInfo("Forwarding: %s -> %s:%s", path, t.cfg.Host, t.remoteSocket)

	go t.serve(l, "unix", t.remoteSocket)
	return nil
}

// serve accepts local connections and pipes each one through a channel
// to network/addr on the remote side.
func (t *Tunnel) serve(l net.Listener, network, addr string) {
	for {
		local, err := l.Accept()
		if err != nil {
			return
		}
		go func() {
			remote, err := t.dial.Dial(network, addr)
			if err != nil {
				logging.Warn("forward failed", "target", addr, "error", err)
				local.Close()
				return
			}
			pipe(local, remote)
		}()
	}
}

func pipe(a, b net.Conn) {
	var wg sync.WaitGroup
	wg.Add(2)
	cp := func(dst, src net.Conn) {
		defer wg.Done()
		io.Copy(dst, src)
		if cw, ok := dst.(interface{ CloseWrite() error }); ok {
			cw.CloseWrite()
		} else {
			dst.Close()
		}
	}
	go cp(a, b)
	go cp(b, a)
	wg.Wait()
	a.Close()
	b.Close()
}

func (t *Tunnel) pollPorts(ctx context.Context, lister Lister) {
	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := t.syncPorts(ctx, lister); err != nil {
			logging.Debug("port poll failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-t.done:
			return
		case <-ticker.C:
		}
	}
}

// syncPorts forwards every published port of a managed container that is
// not forwarded yet. Ports already bound locally by something else are
// skipped.
func (t *Tunnel) syncPorts(ctx context.Context, lister Lister) error {
	containers, err := lister.List(ctx, naming.Managed())
	if err != nil {
		return err
	}

	for _, c := range containers {
		for _, p := range c.Ports {
			if p.HostPort == 0 {
				continue
			}
			t.forwardPort(c.Name, p.HostPort)
		}
	}
	return nil
}

func (t *Tunnel) forwardPort(container string, port int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.ports[port]; ok {
		return
	}

	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	l, err := net.Listen("tcp", addr)
	if err != nil {
		logging.Debug("local port unavailable", "port", port, "container", container, "error", err)
		return
	}
	t.ports[port] = l
	logging.UserInfo("Opened tunnel: %s -> %s:%d", addr, container, port)

	// Published ports are reachable on the remote loopback.
	go t.serve(l, "tcp", addr)
}

// Ports returns the forwarded local ports.
func (t *Tunnel) Ports() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	ports := make([]int, 0, len(t.ports))
	for p := range t.ports {
		ports = append(ports, p)
	}
	return ports
}

func (t *Tunnel) finish(err error) {
	t.doneOnce.Do(func() {
		t.err = err
		close(t.done)
		t.closeListeners()
	})
}

func (t *Tunnel) closeListeners() {
	if t.socket != nil {
		t.socket.Close()
		os.Remove(t.cfg.LocalSocket)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for port, l := range t.ports {
		l.Close()
		delete(t.ports, port)
	}
}

// Wait blocks until the tunnel ends. It returns nil when the context
// passed to Open was cancelled and a tunnel error when the session
// dropped. There is no reconnect.
func (t *Tunnel) Wait() error {
	<-t.done
	return t.err
}

// Close stops forwarding.
func (t *Tunnel) Close() error {
	t.finish(nil)
	return nil
}

func (t *Tunnel) String() string {
	return fmt.Sprintf("%s -> %s:%s", t.cfg.LocalSocket, t.cfg.Address(), t.remoteSocket)
}
