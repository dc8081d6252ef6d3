// Package projfs is the public entry point of the bridge. An Instance ties
// a provider to a virtualization root: Start registers with the projection
// driver and begins serving callbacks, Stop detaches and drains.
package projfs

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/winprojfs/winprojfs/internal/config"
	"github.com/winprojfs/winprojfs/internal/dispatch"
	"github.com/winprojfs/winprojfs/internal/metrics"
	"github.com/winprojfs/winprojfs/internal/winapi"
	"github.com/winprojfs/winprojfs/pkg/errors"
	"github.com/winprojfs/winprojfs/pkg/types"
	"github.com/winprojfs/winprojfs/pkg/utils"
)

// State is the lifecycle state of an Instance.
type State int32

const (
	StateCreated State = iota
	StateStarting
	StateRunning
	StateStopping
	StateStopped
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Instance is one virtualization registration. Instances are single-use:
// once stopped they cannot be restarted.
type Instance struct {
	root     string
	provider types.Provider
	handler  types.NotificationHandler
	cfg      *config.Configuration
	log      *utils.Logger
	logFile  *os.File
	metrics  *metrics.Collector

	virt       winapi.Virtualizer
	dispatcher *dispatch.Dispatcher

	mu    sync.Mutex
	state State
}

// Option customizes an Instance.
type Option func(*Instance)

// WithConfig replaces the default configuration.
func WithConfig(cfg *config.Configuration) Option {
	return func(i *Instance) { i.cfg = cfg }
}

// WithLogger replaces the logger built from the configuration.
func WithLogger(log *utils.Logger) Option {
	return func(i *Instance) { i.log = log }
}

// WithNotificationHandler subscribes a handler to the operation
// notifications selected in the configuration.
func WithNotificationHandler(h types.NotificationHandler) Option {
	return func(i *Instance) { i.handler = h }
}

// withVirtualizer injects a driver binding. Tests use it to run the
// lifecycle without the driver.
func withVirtualizer(v winapi.Virtualizer) Option {
	return func(i *Instance) { i.virt = v }
}

// New creates an instance projecting the provider's namespace at root. The
// root directory is created on Start if it does not exist.
func New(root string, provider types.Provider, opts ...Option) (*Instance, error) {
	if root == "" {
		return nil, errors.New(errors.ErrCodePathInvalid, "virtualization root cannot be empty").
			WithComponent("projfs")
	}
	if provider == nil {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "provider cannot be nil").
			WithComponent("projfs")
	}

	i := &Instance{
		root:     root,
		provider: provider,
		state:    StateCreated,
	}
	for _, opt := range opts {
		opt(i)
	}

	if i.cfg == nil {
		i.cfg = config.NewDefault()
	}
	if err := i.cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidConfig, "invalid configuration").
			WithComponent("projfs")
	}

	if i.log == nil {
		log, logFile, err := buildLogger(i.cfg.Logging)
		if err != nil {
			return nil, err
		}
		i.log = log
		i.logFile = logFile
	}
	i.log = i.log.WithComponent("projfs")

	collector, err := metrics.NewCollector(i.cfg.Metrics)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidConfig, "metrics setup failed").
			WithComponent("projfs")
	}
	i.metrics = collector

	return i, nil
}

func buildLogger(cfg config.LoggingConfig) (*utils.Logger, *os.File, error) {
	level, err := utils.ParseLogLevel(cfg.Level)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrCodeInvalidConfig, "invalid log level").
			WithComponent("projfs")
	}
	if cfg.File == "" {
		return utils.NewLogger(level, os.Stderr), nil, nil
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrCodeConfigLoad, "cannot open log file").
			WithComponent("projfs").WithPath(cfg.File)
	}
	return utils.NewLogger(level, f), f, nil
}

// Root returns the virtualization root path.
func (i *Instance) Root() string {
	return i.root
}

// State returns the current lifecycle state.
func (i *Instance) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// Start registers with the projection driver and begins serving callbacks.
// Starting an instance that is not freshly created fails with
// INVALID_STATE. A failed registration moves the instance straight to
// Stopped; instances are single use.
func (i *Instance) Start() error {
	i.mu.Lock()
	if i.state != StateCreated {
		state := i.state
		i.mu.Unlock()
		return errors.Newf(errors.ErrCodeInvalidState,
			"cannot start an instance in state %q", state).
			WithComponent("projfs")
	}
	i.state = StateStarting
	i.mu.Unlock()

	if err := i.start(); err != nil {
		i.mu.Lock()
		i.state = StateStopped
		i.mu.Unlock()
		return err
	}

	i.mu.Lock()
	i.state = StateRunning
	i.mu.Unlock()
	i.log.Infof("instance running at %q", i.root)
	return nil
}

func (i *Instance) start() error {
	if i.virt == nil {
		virt, err := winapi.NewVirtualizer()
		if err != nil {
			return err
		}
		i.virt = virt
	}

	if err := os.MkdirAll(i.root, 0755); err != nil {
		return errors.Wrap(err, errors.ErrCodeRegistrationFailed,
			"cannot create virtualization root").
			WithComponent("projfs").WithPath(i.root)
	}

	chunk, err := i.cfg.ReadChunkBytes()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidConfig, "invalid read chunk size").
			WithComponent("projfs")
	}

	mask := i.cfg.Notifications.Mask()
	i.dispatcher = dispatch.NewDispatcher(i.provider, dispatch.Options{
		Handler:       i.handler,
		Mask:          mask,
		ReadChunkSize: chunk,
		Logger:        i.log,
		Metrics:       i.metrics,
	})

	if err := i.metrics.Start(); err != nil {
		return err
	}

	if err := i.virt.Start(i.root, i.dispatcher, winapi.Options{
		PoolThreadCount:         i.cfg.Instance.PoolThreadCount,
		ConcurrentThreadCount:   i.cfg.Instance.ConcurrentThreadCount,
		EnableNegativePathCache: i.cfg.Instance.EnableNegativePathCache,
		NotificationMask:        mask,
		Logger:                  i.log,
	}); err != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if serr := i.metrics.Stop(ctx); serr != nil {
			i.log.Warnf("metrics shutdown after failed start: %v", serr)
		}
		return err
	}
	return nil
}

// Stop detaches from the driver, waits for in-flight callbacks to finish,
// and tears down session state. Only a running instance may be stopped;
// any other state fails with INVALID_STATE and leaves nothing changed.
// Close is the tolerant variant for callers who want idempotency.
func (i *Instance) Stop() error {
	i.mu.Lock()
	if i.state != StateRunning {
		state := i.state
		i.mu.Unlock()
		return errors.Newf(errors.ErrCodeInvalidState,
			"cannot stop an instance in state %q", state).
			WithComponent("projfs")
	}
	i.state = StateStopping
	i.mu.Unlock()

	// Detach first so the driver stops producing callbacks, then wait for
	// the ones already in flight.
	if err := i.virt.Stop(); err != nil {
		i.log.Errorf("driver detach failed: %v", err)
	}
	i.dispatcher.Drain()
	dropped := i.dispatcher.Sessions().CloseAll()
	if dropped > 0 {
		i.log.Warnf("dropped %d enumeration session(s) at stop", dropped)
	}
	i.metrics.SetActiveEnumerations(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := i.metrics.Stop(ctx); err != nil {
		i.log.Warnf("metrics shutdown: %v", err)
	}

	if closer, ok := i.provider.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			i.log.Warnf("provider close: %v", err)
		}
	}

	i.mu.Lock()
	i.state = StateStopped
	i.mu.Unlock()
	i.log.Infof("instance stopped at %q", i.root)
	if i.logFile != nil {
		_ = i.logFile.Close()
	}
	return nil
}

// Close stops the instance if it is running.
func (i *Instance) Close() error {
	if i.State() == StateRunning {
		return i.Stop()
	}
	return nil
}
