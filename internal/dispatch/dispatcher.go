// Package dispatch translates driver callbacks into provider calls. It owns
// the enumeration session registry, clamps and chunks file data requests,
// filters notifications against the subscribed mask, and contains provider
// panics so a misbehaving provider cannot take the driver thread down.
package dispatch

import (
	stderrors "errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/winprojfs/winprojfs/internal/metrics"
	"github.com/winprojfs/winprojfs/internal/session"
	"github.com/winprojfs/winprojfs/pkg/errors"
	"github.com/winprojfs/winprojfs/pkg/types"
	"github.com/winprojfs/winprojfs/pkg/utils"
)

// DefaultReadChunkSize caps a single file data write back to the driver.
const DefaultReadChunkSize = 1024 * 1024

// Options configures a Dispatcher.
type Options struct {
	// Handler receives operation notifications. May be nil.
	Handler types.NotificationHandler

	// Mask is the set of notification types the instance subscribed to.
	// Events outside the mask are dropped before reaching the handler.
	Mask types.NotificationMask

	// ReadChunkSize overrides DefaultReadChunkSize when positive.
	ReadChunkSize int

	Logger  *utils.Logger
	Metrics *metrics.Collector
}

// Dispatcher routes driver callbacks to a provider. All callback methods
// are safe for concurrent use; the driver delivers callbacks from its
// worker thread pool.
type Dispatcher struct {
	provider  types.Provider
	sessions  *session.Registry
	handler   types.NotificationHandler
	mask      types.NotificationMask
	chunkSize int
	log       *utils.Logger
	metrics   *metrics.Collector

	mu       sync.Mutex
	cond     *sync.Cond
	inflight int
	closed   bool
}

// NewDispatcher creates a dispatcher for the given provider.
func NewDispatcher(provider types.Provider, opts Options) *Dispatcher {
	log := opts.Logger
	if log == nil {
		log = utils.Default()
	}
	chunk := opts.ReadChunkSize
	if chunk <= 0 {
		chunk = DefaultReadChunkSize
	}

	d := &Dispatcher{
		provider:  provider,
		sessions:  session.NewRegistry(log),
		handler:   opts.Handler,
		mask:      opts.Mask,
		chunkSize: chunk,
		log:       log.WithComponent("dispatch"),
		metrics:   opts.Metrics,
	}
	d.cond = sync.NewCond(&d.mu)
	return d
}

// Sessions exposes the enumeration registry for lifecycle management.
func (d *Dispatcher) Sessions() *session.Registry {
	return d.sessions
}

// enter admits one callback. It fails once Drain has begun; late callbacks
// from the driver are refused instead of racing teardown.
func (d *Dispatcher) enter() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false
	}
	d.inflight++
	return true
}

func (d *Dispatcher) leave() {
	d.mu.Lock()
	d.inflight--
	if d.inflight == 0 {
		d.cond.Broadcast()
	}
	d.mu.Unlock()
}

// Drain refuses new callbacks and blocks until every in-flight callback has
// returned. After Drain the provider will not be called again.
func (d *Dispatcher) Drain() {
	d.mu.Lock()
	d.closed = true
	for d.inflight > 0 {
		d.cond.Wait()
	}
	d.mu.Unlock()
}

// finish is deferred by every callback: it recovers provider panics,
// downgrading them to INTERNAL_ERROR, and records the callback metrics.
func (d *Dispatcher) finish(callback string, start time.Time, status *Status) {
	if r := recover(); r != nil {
		d.log.Errorf("panic in %s callback: %v", callback, r)
		d.metrics.RecordError(callback, string(errors.ErrCodePanicRecovered))
		*status = StatusInternalError
	}
	if !status.OK() {
		d.metrics.RecordError(callback, status.String())
	}
	d.metrics.RecordCallback(callback, time.Since(start), status.OK())
}

func (d *Dispatcher) list(dir string) ([]types.EntryDescriptor, error) {
	return d.provider.ListDirectory(dir)
}

// StartEnumeration registers a new enumeration session for the directory
// named by the callback. The directory must exist in the provider's
// namespace; a miss fails the callback without leaving session state.
func (d *Dispatcher) StartEnumeration(id uuid.UUID, info CallbackInfo) (status Status) {
	const callback = "start_enumeration"
	if !d.enter() {
		return StatusOperationAborted
	}
	defer d.leave()
	start := time.Now()
	defer d.finish(callback, start, &status)

	dir := utils.NormalizeVirtualPath(info.Path)
	meta, err := d.provider.GetMetadata(dir)
	if err != nil {
		if !errors.IsNotFound(err) {
			d.log.Warnf("start enumeration metadata for %q failed: %v", dir, err)
		}
		return statusFromError(err)
	}
	if !meta.IsDirectory() {
		return StatusInvalidParameter
	}

	if err := d.sessions.Begin(id, dir); err != nil {
		d.log.Warnf("start enumeration %s for %q: %v", id, dir, err)
		return statusFromError(err)
	}
	d.metrics.SetActiveEnumerations(d.sessions.Count())
	return StatusOK
}

// GetEnumeration fills the driver's buffer with the next page of entries.
// A buffer too small for even one entry yields INSUFFICIENT_BUFFER so the
// driver retries with a larger one; a partial page is a success and the
// cursor holds the remainder for the next continuation.
func (d *Dispatcher) GetEnumeration(id uuid.UUID, info CallbackInfo, opts session.AdvanceOptions, out DirEntryWriter) (status Status) {
	const callback = "get_enumeration"
	if !d.enter() {
		return StatusOperationAborted
	}
	defer d.leave()
	start := time.Now()
	defer d.finish(callback, start, &status)

	n, err := d.sessions.Advance(id, opts, d.list, func(e *types.EntryDescriptor) error {
		return out.WriteEntry(e)
	})
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeSessionNotFound) {
			// The driver can continue an enumeration the registry never
			// saw, for example after a restart of the provider process.
			// Answer with an empty, complete listing.
			d.log.Warnf("continuation for unknown enumeration %s", id)
			return StatusOK
		}
		if stderrors.Is(err, ErrBufferFull) {
			if n > 0 {
				return StatusOK
			}
			return StatusInsufficientBuffer
		}
		d.log.Warnf("enumeration %s advance failed: %v", id, err)
		return statusFromError(err)
	}
	return StatusOK
}

// EndEnumeration tears the session down. Unknown sessions are tolerated.
func (d *Dispatcher) EndEnumeration(id uuid.UUID, info CallbackInfo) (status Status) {
	const callback = "end_enumeration"
	if !d.enter() {
		return StatusOperationAborted
	}
	defer d.leave()
	start := time.Now()
	defer d.finish(callback, start, &status)

	d.sessions.End(id)
	d.metrics.SetActiveEnumerations(d.sessions.Count())
	return StatusOK
}

// GetPlaceholderInfo resolves metadata for a virtual path and writes the
// placeholder. The driver-supplied path spelling is preserved in the
// placeholder so name casing matches the query.
func (d *Dispatcher) GetPlaceholderInfo(info CallbackInfo, out PlaceholderWriter) (status Status) {
	const callback = "get_placeholder_info"
	if !d.enter() {
		return StatusOperationAborted
	}
	defer d.leave()
	start := time.Now()
	defer d.finish(callback, start, &status)

	path := utils.NormalizeVirtualPath(info.Path)
	meta, err := d.provider.GetMetadata(path)
	if err != nil {
		if !errors.IsNotFound(err) {
			d.log.Warnf("metadata for %q failed: %v", path, err)
		}
		return statusFromError(err)
	}
	if verr := meta.Validate(); verr != nil {
		d.log.Errorf("provider returned invalid metadata for %q: %v", path, verr)
		return StatusInternalError
	}

	if err := out.WritePlaceholder(info.Path, meta); err != nil {
		d.log.Errorf("write placeholder for %q failed: %v", path, err)
		return statusFromError(err)
	}
	return StatusOK
}

// QueryFileName answers an existence probe without materializing anything.
func (d *Dispatcher) QueryFileName(info CallbackInfo) (status Status) {
	const callback = "query_file_name"
	if !d.enter() {
		return StatusOperationAborted
	}
	defer d.leave()
	start := time.Now()
	defer d.finish(callback, start, &status)

	path := utils.NormalizeVirtualPath(info.Path)
	if _, err := d.provider.GetMetadata(path); err != nil {
		return statusFromError(err)
	}
	return StatusOK
}

// GetFileData hydrates a byte range of a virtual file. The requested range
// is clamped to the size the provider declares, and large ranges are
// written back in chunks so the aligned transfer buffer stays bounded.
func (d *Dispatcher) GetFileData(info CallbackInfo, offset uint64, length uint32, out FileDataWriter) (status Status) {
	const callback = "get_file_data"
	if !d.enter() {
		return StatusOperationAborted
	}
	defer d.leave()
	start := time.Now()
	defer d.finish(callback, start, &status)

	path := utils.NormalizeVirtualPath(info.Path)
	meta, err := d.provider.GetMetadata(path)
	if err != nil {
		d.log.Warnf("hydration metadata for %q failed: %v", path, err)
		return statusFromError(err)
	}
	if meta.IsDirectory() {
		return StatusInvalidParameter
	}

	size := uint64(meta.Size)
	if offset >= size || length == 0 {
		return StatusOK
	}
	end := offset + uint64(length)
	if end > size {
		end = size
	}

	d.log.Debugf("hydrate %q: %s at offset %d", path, utils.FormatBytes(int64(end-offset)), offset)

	// Whole-file hydrations prefer a provider stream when one is offered.
	if rp, ok := d.provider.(types.ReaderProvider); ok && offset == 0 && end == size {
		return d.streamFileData(rp, path, size, out)
	}

	buf := make([]byte, d.chunkSize)
	for cur := offset; cur < end; {
		want := end - cur
		if want > uint64(d.chunkSize) {
			want = uint64(d.chunkSize)
		}

		n, rerr := d.provider.ReadFile(path, int64(cur), buf[:want])
		if n > 0 {
			if werr := out.WriteData(cur, buf[:n]); werr != nil {
				d.log.Errorf("write file data for %q at %d failed: %v", path, cur, werr)
				return statusFromError(werr)
			}
			d.metrics.AddBytesProjected(n)
			cur += uint64(n)
		}
		if rerr != nil {
			if rerr == io.EOF {
				break
			}
			d.log.Warnf("read %q at %d failed: %v", path, cur, rerr)
			return statusFromError(rerr)
		}
		if n == 0 {
			// A zero-byte read without an error would spin forever.
			d.log.Warnf("provider returned no data for %q at %d", path, cur)
			return StatusIoIncomplete
		}
	}
	return StatusOK
}

// streamFileData copies one whole file from a provider stream into the
// driver in chunk-sized writes.
func (d *Dispatcher) streamFileData(rp types.ReaderProvider, path string, size uint64, out FileDataWriter) Status {
	r, err := rp.StreamFile(path)
	if err != nil {
		d.log.Warnf("stream %q failed: %v", path, err)
		return statusFromError(err)
	}
	defer r.Close()

	buf := make([]byte, d.chunkSize)
	var cur uint64
	for cur < size {
		want := size - cur
		if want > uint64(d.chunkSize) {
			want = uint64(d.chunkSize)
		}

		n, rerr := io.ReadFull(r, buf[:want])
		if n > 0 {
			if werr := out.WriteData(cur, buf[:n]); werr != nil {
				d.log.Errorf("write file data for %q at %d failed: %v", path, cur, werr)
				return statusFromError(werr)
			}
			d.metrics.AddBytesProjected(n)
			cur += uint64(n)
		}
		if rerr != nil {
			if rerr == io.EOF || rerr == io.ErrUnexpectedEOF {
				break
			}
			d.log.Warnf("stream read %q at %d failed: %v", path, cur, rerr)
			return statusFromError(rerr)
		}
	}
	return StatusOK
}

// Notification delivers an operation notification to the handler. Events
// outside the subscribed mask are dropped. A handler error denies the
// operation for pre-operation events; for completion events the driver
// ignores the result, so the same status is returned either way.
func (d *Dispatcher) Notification(info CallbackInfo, event types.NotificationEvent) (status Status) {
	const callback = "notification"
	if !d.enter() {
		return StatusOperationAborted
	}
	defer d.leave()
	start := time.Now()
	defer d.finish(callback, start, &status)

	if !d.mask.Contains(event.Type) {
		return StatusOK
	}
	if d.handler == nil {
		return StatusOK
	}

	if err := d.handler.OnNotification(event); err != nil {
		d.log.Infof("handler denied %s for %q (pid=%d): %v",
			event.Type, event.Path, event.ProcessID, err)
		if s := statusFromError(err); s != StatusInternalError {
			return s
		}
		return StatusAccessDenied
	}
	return StatusOK
}
