package tunnel

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/firefly-engineering/hutch/internal/logging"
)

// Defaults for remote connections.
const (
	DefaultPort           = 22
	DefaultRemoteSocket   = "/var/run/docker.sock"
	DefaultPollInterval   = 10 * time.Second
	DefaultConnectTimeout = 10 * time.Second
)

// Config describes an SSH tunnel to a remote engine.
type Config struct {
	User string
	Host string
	Port int

	// LocalSocket is the unix socket local tools connect to.
	LocalSocket string

	// RemoteSocket overrides the engine socket discovered on the remote host.
	RemoteSocket string

	KnownHostsFile string
	KeyFiles       []string

	// AgentSocket is the ssh-agent socket, usually SSH_AUTH_SOCK. Empty
	// disables agent authentication.
	AgentSocket string

	PollInterval   time.Duration
	ConnectTimeout time.Duration
}

// DefaultConfig returns a Config for target, which is [ssh://][user@]host[:port].
func DefaultConfig(target, localSocket string) (*Config, error) {
	user, host, port, err := ParseTarget(target)
	if err != nil {
		return nil, err
	}

	home, _ := os.UserHomeDir()
	sshDir := filepath.Join(home, ".ssh")
	return &Config{
		User:           user,
		Host:           host,
		Port:           port,
		LocalSocket:    localSocket,
		KnownHostsFile: filepath.Join(sshDir, "known_hosts"),
		KeyFiles: []string{
			filepath.Join(sshDir, "id_ed25519"),
			filepath.Join(sshDir, "id_ecdsa"),
			filepath.Join(sshDir, "id_rsa"),
		},
		AgentSocket:    os.Getenv("SSH_AUTH_SOCK"),
		PollInterval:   DefaultPollInterval,
		ConnectTimeout: DefaultConnectTimeout,
	}, nil
}

// ParseTarget splits [ssh://][user@]host[:port]. The user defaults to the
// current user and the port to 22.
func ParseTarget(target string) (user, host string, port int, err error) {
	s := strings.TrimPrefix(strings.TrimSpace(target), "ssh://")
	s = strings.TrimRight(s, "/")
	if s == "" {
		return "", "", 0, fmt.Errorf("empty remote target")
	}

	if at := strings.LastIndex(s, "@"); at >= 0 {
		user, s = s[:at], s[at+1:]
	}
	if user == "" {
		user = currentUser()
	}

	port = DefaultPort
	host = s
	if h, p, splitErr := net.SplitHostPort(s); splitErr == nil {
		n, convErr := strconv.Atoi(p)
		if convErr != nil || n < 1 || n > 65535 {
			return "", "", 0, fmt.Errorf("invalid port %q in remote target %q", p, target)
		}
		host, port = h, n
	}
	if host == "" {
		return "", "", 0, fmt.Errorf("missing host in remote target %q", target)
	}
	return user, host, port, nil
}

func currentUser() string {
	for _, key := range []string{"USER", "LOGNAME"} {
		if u := os.Getenv(key); u != "" {
			return u
		}
	}
	return "root"
}

// Validate checks that the configuration can be used to connect.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.User == "" {
		return fmt.Errorf("user is required")
	}
	if c.LocalSocket == "" {
		return fmt.Errorf("local socket path is required")
	}
	if c.KnownHostsFile == "" {
		return fmt.Errorf("known_hosts file is required")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	return nil
}

// Address returns host:port.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// authMethods returns the agent first, then every readable unencrypted key
// file. The closer releases the agent connection.
func (c *Config) authMethods() ([]ssh.AuthMethod, func(), error) {
	var methods []ssh.AuthMethod
	closer := func() {}

	if c.AgentSocket != "" {
		conn, err := net.Dial("unix", c.AgentSocket)
		if err != nil {
			logging.Debug("ssh agent unavailable", "socket", c.AgentSocket, "error", err)
		} else {
			methods = append(methods, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
			closer = func() { conn.Close() }
		}
	}

	var signers []ssh.Signer
	for _, path := range c.KeyFiles {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		signer, err := ssh.ParsePrivateKey(data)
		if err != nil {
			logging.Debug("skipping ssh key", "path", path, "error", err)
			continue
		}
		signers = append(signers, signer)
	}
	if len(signers) > 0 {
		methods = append(methods, ssh.PublicKeys(signers...))
	}

	if len(methods) == 0 {
		closer()
		return nil, nil, fmt.Errorf("no ssh credentials: agent unavailable and no usable key in %s", strings.Join(c.KeyFiles, ", "))
	}
	return methods, closer, nil
}

// ClientConfig builds the ssh client configuration. Host keys are always
// checked against KnownHostsFile.
func (c *Config) ClientConfig() (*ssh.ClientConfig, func(), error) {
	hostKeyCallback, err := knownhosts.New(c.KnownHostsFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load known_hosts: %w", err)
	}

	methods, closer, err := c.authMethods()
	if err != nil {
		return nil, nil, err
	}

	return &ssh.ClientConfig{
		User:            c.User,
		Auth:            methods,
		HostKeyCallback: hostKeyCallback,
		Timeout:         c.ConnectTimeout,
	}, closer, nil
}
