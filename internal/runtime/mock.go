package runtime

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MockRuntime is a mock implementation of Runtime for testing
type MockRuntime struct {
	mu sync.RWMutex

	// Containers tracks the state of mock containers
	Containers map[string]*ContainerInfo

	// Created records the options each container was created with
	Created map[string]CreateOptions

	// Volumes tracks mock volumes
	Volumes map[string]*VolumeInfo

	// Networks tracks mock networks
	Networks map[string]*NetworkInfo

	// ExecResults maps container names to predefined exec results
	ExecResults map[string]*ExecResult

	// RunHandler, when set, produces the result of helper containers
	RunHandler func(opts RunOptions) (*ExecResult, error)

	// Errors allows injecting errors for specific operations
	Errors map[string]error

	// CallLog records all method calls for verification
	CallLog []MockCall
}

// MockCall represents a recorded method call
type MockCall struct {
	Method string
	Args   []interface{}
}

// NewMockRuntime creates a new mock runtime
func NewMockRuntime() *MockRuntime {
	m := &MockRuntime{}
	m.Reset()
	return m
}

func (m *MockRuntime) record(method string, args ...interface{}) {
	m.CallLog = append(m.CallLog, MockCall{Method: method, Args: args})
}

// SetError sets an error to be returned for a specific operation
func (m *MockRuntime) SetError(operation string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Errors[operation] = err
}

// SetExecResult sets the result for exec operations on a container
func (m *MockRuntime) SetExecResult(name string, result *ExecResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ExecResults[name] = result
}

// AddContainer adds a container to the mock
func (m *MockRuntime) AddContainer(name string, status ContainerStatus, labels Labels) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Containers[name] = &ContainerInfo{
		Name:   name,
		Status: status,
		Labels: labels,
	}
}

// AddVolume adds a volume to the mock
func (m *MockRuntime) AddVolume(name string, labels Labels) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Volumes[name] = &VolumeInfo{Name: name, Labels: labels}
}

// AddNetwork adds a network to the mock
func (m *MockRuntime) AddNetwork(name string, labels Labels) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Networks[name] = &NetworkInfo{Name: name, Labels: labels}
}

// GetCalls returns all recorded calls
func (m *MockRuntime) GetCalls() []MockCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	calls := make([]MockCall, len(m.CallLog))
	copy(calls, m.CallLog)
	return calls
}

// GetCallsFor returns all calls for a specific method
func (m *MockRuntime) GetCallsFor(method string) []MockCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var calls []MockCall
	for _, call := range m.CallLog {
		if call.Method == method {
			calls = append(calls, call)
		}
	}
	return calls
}

// VolumeNames returns the sorted names of all mock volumes
func (m *MockRuntime) VolumeNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.Volumes))
	for name := range m.Volumes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ContainerNames returns the sorted names of all mock containers
func (m *MockRuntime) ContainerNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.Containers))
	for name := range m.Containers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reset clears all state
func (m *MockRuntime) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Containers = make(map[string]*ContainerInfo)
	m.Created = make(map[string]CreateOptions)
	m.Volumes = make(map[string]*VolumeInfo)
	m.Networks = make(map[string]*NetworkInfo)
	m.ExecResults = make(map[string]*ExecResult)
	m.Errors = make(map[string]error)
	m.CallLog = make([]MockCall, 0)
	m.RunHandler = nil
}

func matches(labels, filter Labels) bool {
	for k, v := range filter {
		if labels[k] != v {
			return false
		}
	}
	return true
}

// Name returns the runtime identifier
func (m *MockRuntime) Name() string {
	return "mock"
}

// Create creates a new container
func (m *MockRuntime) Create(ctx context.Context, opts CreateOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Create", opts)

	if err, ok := m.Errors["Create"]; ok {
		return err
	}

	if _, ok := m.Containers[opts.Name]; ok {
		return fmt.Errorf("container name %q already exists", opts.Name)
	}

	status := StatusCreated
	if opts.Start {
		status = StatusRunning
	}

	m.Containers[opts.Name] = &ContainerInfo{
		Name:   opts.Name,
		Image:  opts.Image,
		Status: status,
		Labels: opts.Labels,
		Ports:  opts.Ports,
	}
	m.Created[opts.Name] = opts

	return nil
}

// Start starts an existing container
func (m *MockRuntime) Start(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Start", name)

	if err, ok := m.Errors["Start"]; ok {
		return err
	}

	if container, ok := m.Containers[name]; ok {
		container.Status = StatusRunning
		return nil
	}

	return fmt.Errorf("container not found: %s", name)
}

// Stop stops a running container
func (m *MockRuntime) Stop(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Stop", name)

	if err, ok := m.Errors["Stop"]; ok {
		return err
	}

	if container, ok := m.Containers[name]; ok {
		container.Status = StatusStopped
		return nil
	}

	return fmt.Errorf("container not found: %s", name)
}

// Destroy stops and removes a container
func (m *MockRuntime) Destroy(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Destroy", name)

	if err, ok := m.Errors["Destroy"]; ok {
		return err
	}

	delete(m.Containers, name)
	delete(m.Created, name)
	return nil
}

// IsRunning checks if a container is currently running
func (m *MockRuntime) IsRunning(ctx context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("IsRunning", name)

	if err, ok := m.Errors["IsRunning"]; ok {
		return false, err
	}

	if container, ok := m.Containers[name]; ok {
		return container.Status == StatusRunning, nil
	}

	return false, nil
}

// Status returns detailed status of a container
func (m *MockRuntime) Status(ctx context.Context, name string) (*ContainerInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Status", name)

	if err, ok := m.Errors["Status"]; ok {
		return nil, err
	}

	if container, ok := m.Containers[name]; ok {
		c := *container
		return &c, nil
	}

	return &ContainerInfo{Name: name, Status: StatusNotFound}, nil
}

// Exec executes a command inside a container
func (m *MockRuntime) Exec(ctx context.Context, name string, command []string, opts ExecOptions) (*ExecResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Exec", name, command, opts)

	if err, ok := m.Errors["Exec"]; ok {
		return nil, err
	}

	if result, ok := m.ExecResults[name]; ok {
		return result, nil
	}

	return &ExecResult{ExitCode: 0, Stdout: "", Stderr: ""}, nil
}

// ExecInteractive executes a command with an interactive TTY
func (m *MockRuntime) ExecInteractive(ctx context.Context, name string, command []string, opts ExecOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("ExecInteractive", name, command, opts)

	if err, ok := m.Errors["ExecInteractive"]; ok {
		return err
	}

	return nil
}

// Run executes a helper container
func (m *MockRuntime) Run(ctx context.Context, opts RunOptions) (*ExecResult, error) {
	m.mu.Lock()
	m.record("Run", opts)
	err, failed := m.Errors["Run"]
	handler := m.RunHandler
	m.mu.Unlock()

	if failed {
		return nil, err
	}
	if handler != nil {
		return handler(opts)
	}
	return &ExecResult{}, nil
}

// List returns all containers carrying the given labels
func (m *MockRuntime) List(ctx context.Context, filter Labels) ([]*ContainerInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("List", filter)

	if err, ok := m.Errors["List"]; ok {
		return nil, err
	}

	var containers []*ContainerInfo
	for _, container := range m.Containers {
		if matches(container.Labels, filter) {
			c := *container
			containers = append(containers, &c)
		}
	}
	sort.Slice(containers, func(i, j int) bool { return containers[i].Name < containers[j].Name })

	return containers, nil
}

// CreateVolume creates a volume if it does not exist
func (m *MockRuntime) CreateVolume(ctx context.Context, name string, labels Labels) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("CreateVolume", name, labels)

	if err, ok := m.Errors["CreateVolume"]; ok {
		return false, err
	}

	if _, ok := m.Volumes[name]; ok {
		return false, nil
	}
	m.Volumes[name] = &VolumeInfo{Name: name, Labels: labels}
	return true, nil
}

// RemoveVolume removes a volume
func (m *MockRuntime) RemoveVolume(ctx context.Context, name string, force bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("RemoveVolume", name, force)

	if err, ok := m.Errors["RemoveVolume"]; ok {
		return err
	}

	delete(m.Volumes, name)
	return nil
}

// ListVolumes returns all volumes carrying the given labels
func (m *MockRuntime) ListVolumes(ctx context.Context, filter Labels) ([]*VolumeInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("ListVolumes", filter)

	if err, ok := m.Errors["ListVolumes"]; ok {
		return nil, err
	}

	var volumes []*VolumeInfo
	for _, v := range m.Volumes {
		if matches(v.Labels, filter) {
			volumes = append(volumes, &VolumeInfo{Name: v.Name, Labels: v.Labels})
		}
	}
	sort.Slice(volumes, func(i, j int) bool { return volumes[i].Name < volumes[j].Name })
	return volumes, nil
}

// CreateNetwork creates a network if it does not exist
func (m *MockRuntime) CreateNetwork(ctx context.Context, name string, labels Labels) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("CreateNetwork", name, labels)

	if err, ok := m.Errors["CreateNetwork"]; ok {
		return false, err
	}

	if _, ok := m.Networks[name]; ok {
		return false, nil
	}
	m.Networks[name] = &NetworkInfo{Name: name, Labels: labels}
	return true, nil
}

// RemoveNetwork removes a network
func (m *MockRuntime) RemoveNetwork(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("RemoveNetwork", name)

	if err, ok := m.Errors["RemoveNetwork"]; ok {
		return err
	}

	delete(m.Networks, name)
	return nil
}

// ListNetworks returns all networks carrying the given labels
func (m *MockRuntime) ListNetworks(ctx context.Context, filter Labels) ([]*NetworkInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("ListNetworks", filter)

	if err, ok := m.Errors["ListNetworks"]; ok {
		return nil, err
	}

	var networks []*NetworkInfo
	for _, n := range m.Networks {
		if matches(n.Labels, filter) {
			networks = append(networks, &NetworkInfo{Name: n.Name, Labels: n.Labels})
		}
	}
	sort.Slice(networks, func(i, j int) bool { return networks[i].Name < networks[j].Name })
	return networks, nil
}

// Ensure MockRuntime implements Runtime
var _ Runtime = (*MockRuntime)(nil)
