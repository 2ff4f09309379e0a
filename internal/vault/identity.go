package vault

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"fmt"
	"io/fs"
	"time"

	"filippo.io/age"
	"golang.org/x/crypto/ssh"

	"github.com/firefly-engineering/hutch/internal/errors"
	"github.com/firefly-engineering/hutch/internal/logging"
	"github.com/firefly-engineering/hutch/internal/naming"
	"github.com/firefly-engineering/hutch/internal/runtime"
	"github.com/firefly-engineering/hutch/internal/system"
)

// File names inside the identity volumes.
const (
	AgeKeyFile     = "age.key"
	SSHKeyFile     = "id_ed25519"
	SSHPubKeyFile  = "id_ed25519.pub"
	KnownHostsFile = "known_hosts"
)

// Materials is a freshly generated identity set.
type Materials struct {
	AgeIdentity   []byte
	SSHPrivateKey []byte
	SSHPublicKey  []byte
}

// Generate creates a new age X25519 identity and SSH ed25519 keypair.
func Generate(comment string) (*Materials, error) {
	id, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("failed to generate age identity: %w", err)
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ssh key: %w", err)
	}
	block, err := ssh.MarshalPrivateKey(priv, comment)
	if err != nil {
		return nil, fmt.Errorf("failed to encode ssh key: %w", err)
	}
	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("failed to encode ssh public key: %w", err)
	}

	ageFile := fmt.Sprintf("# created: %s\n# public key: %s\n%s\n",
		time.Now().UTC().Format(time.RFC3339), id.Recipient(), id)

	authorized := ssh.MarshalAuthorizedKey(sshPub)
	if comment != "" {
		authorized = append(authorized[:len(authorized)-1], []byte(" "+comment+"\n")...)
	}

	return &Materials{
		AgeIdentity:   []byte(ageFile),
		SSHPrivateKey: pem.EncodeToMemory(block),
		SSHPublicKey:  authorized,
	}, nil
}

// Store persists identity materials.
type Store interface {
	// LoadIdentity returns the age identity file. The boolean is false when
	// no identity has been stored yet.
	LoadIdentity(ctx context.Context) ([]byte, bool, error)

	// Initialized reports whether both identities are present.
	Initialized(ctx context.Context) (bool, error)

	// Save writes all materials, replacing existing ones.
	Save(ctx context.Context, m *Materials) error
}

// VolumeStore keeps identities in the global identity volumes. Files are
// owned by Owner so the work container user can read them.
type VolumeStore struct {
	Runtime runtime.Runtime
	Helper  *runtime.Helper
	Owner   string
}

// NewVolumeStore creates a volume-backed store.
func NewVolumeStore(rt runtime.Runtime, helperImage, owner string) *VolumeStore {
	return &VolumeStore{
		Runtime: rt,
		Helper:  runtime.NewHelper(rt, helperImage),
		Owner:   owner,
	}
}

// ensureVolumes creates the labeled identity volumes before any helper
// mounts them, so the engine never creates them unlabeled.
func (s *VolumeStore) ensureVolumes(ctx context.Context) error {
	for _, v := range []struct {
		name string
		role naming.Kind
	}{
		{naming.AgeKeyVolume, naming.KindAgeKey},
		{naming.SSHKeyVolume, naming.KindSSHKey},
	} {
		if _, err := s.Runtime.CreateVolume(ctx, v.name, naming.ForRole("", v.role)); err != nil {
			return errors.EngineError("create volume", v.name, err)
		}
	}
	return nil
}

func (s *VolumeStore) LoadIdentity(ctx context.Context) ([]byte, bool, error) {
	if err := s.ensureVolumes(ctx); err != nil {
		return nil, false, err
	}
	data, ok, err := s.Helper.ReadFile(ctx, naming.AgeKeyVolume, AgeKeyFile)
	if err != nil {
		return nil, false, errors.EngineError("read", naming.AgeKeyVolume, err)
	}
	return data, ok, nil
}

func (s *VolumeStore) Initialized(ctx context.Context) (bool, error) {
	if err := s.ensureVolumes(ctx); err != nil {
		return false, err
	}
	for _, f := range [][2]string{
		{naming.AgeKeyVolume, AgeKeyFile},
		{naming.SSHKeyVolume, SSHKeyFile},
	} {
		ok, err := s.Helper.Exists(ctx, f[0], f[1])
		if err != nil {
			return false, errors.EngineError("inspect", f[0], err)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func (s *VolumeStore) Save(ctx context.Context, m *Materials) error {
	if err := s.ensureVolumes(ctx); err != nil {
		return err
	}

	files := []struct {
		volume, name string
		data         []byte
		mode         fs.FileMode
	}{
		{naming.AgeKeyVolume, AgeKeyFile, m.AgeIdentity, 0o600},
		{naming.SSHKeyVolume, SSHKeyFile, m.SSHPrivateKey, 0o600},
		{naming.SSHKeyVolume, SSHPubKeyFile, m.SSHPublicKey, 0o644},
	}
	for _, f := range files {
		if err := s.Helper.WriteFile(ctx, f.volume, f.name, f.data, f.mode, s.Owner); err != nil {
			return errors.EngineError("write", f.volume, err)
		}
	}
	return nil
}

var errNoStore = errors.New(errors.ExitEngineError, "no identity store: container engine unavailable")

// Provider hands out the vault for the current identity. An identity file,
// when set, takes precedence over the volume store.
type Provider struct {
	store        Store
	identityFile string
	fs           system.FileSystem
	comment      string
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithIdentityFile reads the identity from path instead of the store.
func WithIdentityFile(path string) ProviderOption {
	return func(p *Provider) { p.identityFile = path }
}

// WithFileSystem sets the filesystem used for identity files.
func WithFileSystem(fs system.FileSystem) ProviderOption {
	return func(p *Provider) { p.fs = fs }
}

// WithKeyComment sets the comment of generated SSH keys.
func WithKeyComment(comment string) ProviderOption {
	return func(p *Provider) { p.comment = comment }
}

// NewProvider creates a provider backed by store.
func NewProvider(store Store, opts ...ProviderOption) *Provider {
	p := &Provider{store: store, fs: system.DefaultFS(), comment: "hutch"}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Vault returns the vault for the current identity. When neither an
// identity file nor a stored identity exists, a new identity set is
// generated and stored.
func (p *Provider) Vault(ctx context.Context) (*Vault, error) {
	if p.identityFile != "" {
		return p.readIdentityFile(p.identityFile)
	}
	if p.store == nil {
		return nil, errNoStore
	}

	data, ok, err := p.store.LoadIdentity(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		logging.Info("no identity found, initializing")
		m, err := p.Init(ctx, false, "")
		if err != nil {
			return nil, err
		}
		data = m.AgeIdentity
	}

	v, err := Parse(data)
	if err != nil {
		return nil, errors.ConfigError("stored age identity is invalid", err)
	}
	return v, nil
}

func (p *Provider) readIdentityFile(path string) (*Vault, error) {
	data, err := p.fs.ReadFile(path)
	if err != nil {
		return nil, errors.ConfigError(fmt.Sprintf("failed to read identity file %s", path), err)
	}
	v, err := Parse(data)
	if err != nil {
		return nil, errors.ConfigError(fmt.Sprintf("invalid identity file %s", path), err)
	}
	return v, nil
}

// Init generates and stores a new identity set. An existing set is kept
// unless force is set; regenerating makes every existing secret
// undecryptable. When importFrom names an identity file, that age identity
// is stored instead of a generated one.
func (p *Provider) Init(ctx context.Context, force bool, importFrom string) (*Materials, error) {
	if p.store == nil {
		return nil, errNoStore
	}
	initialized, err := p.store.Initialized(ctx)
	if err != nil {
		return nil, err
	}
	if initialized && !force {
		return nil, errors.Conflict("identity", naming.AgeKeyVolume, "already initialized, use --force to regenerate")
	}

	m, err := Generate(p.comment)
	if err != nil {
		return nil, err
	}

	if importFrom != "" {
		data, err := p.fs.ReadFile(importFrom)
		if err != nil {
			return nil, errors.ConfigError(fmt.Sprintf("failed to read identity file %s", importFrom), err)
		}
		if _, err := Parse(data); err != nil {
			return nil, errors.ConfigError(fmt.Sprintf("invalid identity file %s", importFrom), err)
		}
		m.AgeIdentity = data
	}

	if err := p.store.Save(ctx, m); err != nil {
		return nil, err
	}

	if initialized {
		logging.Warn("identities regenerated, existing secrets can no longer be decrypted")
	}
	return m, nil
}
