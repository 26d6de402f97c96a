//go:build wayland_cgo

package compositor

// The viewporter protocol header is generated at build time:
//go:generate sh -c "wayland-scanner client-header $(pkg-config --variable=pkgdatadir wayland-protocols)/stable/viewporter/viewporter.xml viewporter-client-protocol.h"
//go:generate sh -c "wayland-scanner private-code $(pkg-config --variable=pkgdatadir wayland-protocols)/stable/viewporter/viewporter.xml viewporter-protocol.c"

/*
#cgo pkg-config: wayland-client
#include <stdlib.h>
#include <string.h>
#include <sys/mman.h>
#include <unistd.h>
#include <wayland-client.h>
#include "viewporter-client-protocol.h"

extern void subwaveRegistryGlobal(void *data, struct wl_registry *registry,
	uint32_t name, char *interface, uint32_t version);

static void registry_global(void *data, struct wl_registry *registry,
	uint32_t name, const char *interface, uint32_t version) {
	subwaveRegistryGlobal(data, registry, name, (char *)interface, version);
}

static void registry_global_remove(void *data, struct wl_registry *registry,
	uint32_t name) {
}

static const struct wl_registry_listener registry_listener = {
	.global        = registry_global,
	.global_remove = registry_global_remove,
};

static void add_registry_listener(struct wl_registry *registry, void *data) {
	wl_registry_add_listener(registry, &registry_listener, data);
}

static struct wl_compositor *bind_compositor(struct wl_registry *r,
	uint32_t name, uint32_t version) {
	return wl_registry_bind(r, name, &wl_compositor_interface, version);
}

static struct wl_subcompositor *bind_subcompositor(struct wl_registry *r,
	uint32_t name, uint32_t version) {
	return wl_registry_bind(r, name, &wl_subcompositor_interface, version);
}

static struct wl_shm *bind_shm(struct wl_registry *r, uint32_t name,
	uint32_t version) {
	return wl_registry_bind(r, name, &wl_shm_interface, version);
}

static struct wp_viewporter *bind_viewporter(struct wl_registry *r,
	uint32_t name, uint32_t version) {
	return wl_registry_bind(r, name, &wp_viewporter_interface, version);
}
*/
import "C"

import (
	"fmt"
	"os"
	"runtime/cgo"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/mvailland/subwave/host"
)

// waylandConn is a guest on the host's existing wl_display connection.
// It runs all of its requests through a private event queue, via a
// display wrapper proxy, so that dispatching never races the host
// toolkit's own queue. Proxies created from the wrapper inherit the
// private queue.
type waylandConn struct {
	display *C.struct_wl_display
	wrapper *C.struct_wl_display
	queue   *C.struct_wl_event_queue

	registry      *C.struct_wl_registry
	compositor    *C.struct_wl_compositor
	subcompositor *C.struct_wl_subcompositor
	shm           *C.struct_wl_shm
	viewporter    *C.struct_wp_viewporter

	handle cgo.Handle
	closed bool
}

// Connect wraps the host's display connection as a guest and binds the
// globals the controller needs. The returned Conn never closes the
// underlying display.
func Connect(display host.DisplayHandle) (Conn, error) {
	if display == 0 {
		return nil, fmt.Errorf("%w: nil display handle", ErrSurfaceCreation)
	}

	c := &waylandConn{display: (*C.struct_wl_display)(unsafe.Pointer(uintptr(display)))}
	c.queue = C.wl_display_create_queue(c.display)
	if c.queue == nil {
		return nil, fmt.Errorf("%w: create event queue", ErrSurfaceCreation)
	}

	c.wrapper = (*C.struct_wl_display)(C.wl_proxy_create_wrapper(unsafe.Pointer(c.display)))
	if c.wrapper == nil {
		C.wl_event_queue_destroy(c.queue)
		return nil, fmt.Errorf("%w: create display wrapper", ErrSurfaceCreation)
	}
	C.wl_proxy_set_queue((*C.struct_wl_proxy)(unsafe.Pointer(c.wrapper)), c.queue)

	c.handle = cgo.NewHandle(c)
	c.registry = C.wl_display_get_registry(c.wrapper)
	C.add_registry_listener(c.registry, unsafe.Pointer(&c.handle))

	// Roundtrip on the private queue to collect globals.
	if C.wl_display_roundtrip_queue(c.display, c.queue) < 0 {
		c.Close()
		return nil, fmt.Errorf("%w: registry roundtrip", ErrSurfaceCreation)
	}

	if c.compositor == nil {
		c.Close()
		return nil, fmt.Errorf("%w: no wl_compositor global", ErrSurfaceCreation)
	}
	if c.subcompositor == nil {
		c.Close()
		return nil, fmt.Errorf("%w: no wl_subcompositor global", ErrSurfaceCreation)
	}
	return c, nil
}

//export subwaveRegistryGlobal
func subwaveRegistryGlobal(data unsafe.Pointer, registry *C.struct_wl_registry,
	name C.uint32_t, iface *C.char, version C.uint32_t) {
	h := *(*cgo.Handle)(data)
	c := h.Value().(*waylandConn)

	capped := func(max C.uint32_t) C.uint32_t {
		if version < max {
			return version
		}
		return max
	}

	switch C.GoString(iface) {
	case "wl_compositor":
		c.compositor = C.bind_compositor(registry, name, capped(6))
	case "wl_subcompositor":
		c.subcompositor = C.bind_subcompositor(registry, name, capped(1))
	case "wl_shm":
		c.shm = C.bind_shm(registry, name, capped(1))
	case "wp_viewporter":
		c.viewporter = C.bind_viewporter(registry, name, capped(1))
	}
}

func (c *waylandConn) CreateSurface() (Surface, error) {
	if c.closed {
		return nil, ErrConnClosed
	}
	s := C.wl_compositor_create_surface(c.compositor)
	if s == nil {
		return nil, fmt.Errorf("%w: wl_compositor_create_surface", ErrSurfaceCreation)
	}
	return &waylandSurface{surface: s}, nil
}

func (c *waylandConn) CreateSubsurface(child Surface, parent host.SurfaceHandle) (Subsurface, error) {
	if c.closed {
		return nil, ErrConnClosed
	}
	ws, ok := child.(*waylandSurface)
	if !ok {
		return nil, fmt.Errorf("%w: foreign surface type", ErrSurfaceCreation)
	}
	parentSurface := (*C.struct_wl_surface)(unsafe.Pointer(uintptr(parent)))
	sub := C.wl_subcompositor_get_subsurface(c.subcompositor, ws.surface, parentSurface)
	if sub == nil {
		return nil, fmt.Errorf("%w: wl_subcompositor_get_subsurface", ErrSurfaceCreation)
	}
	return &waylandSubsurface{subsurface: sub}, nil
}

func (c *waylandConn) CreateViewport(s Surface) (Viewport, error) {
	if c.closed {
		return nil, ErrConnClosed
	}
	if c.viewporter == nil {
		return nil, ErrViewporterUnavailable
	}
	ws := s.(*waylandSurface)
	vp := C.wp_viewporter_get_viewport(c.viewporter, ws.surface)
	if vp == nil {
		return nil, fmt.Errorf("%w: wp_viewporter_get_viewport", ErrSurfaceCreation)
	}
	return &waylandViewport{viewport: vp}, nil
}

func (c *waylandConn) CreateSolidBuffer(width, height int32, argb uint32) (Buffer, error) {
	if c.closed {
		return nil, ErrConnClosed
	}
	if c.shm == nil {
		return nil, fmt.Errorf("%w: no wl_shm global", ErrSurfaceCreation)
	}

	stride := width * 4
	size := int(stride * height)

	fd, err := unix.MemfdCreate("subwave-background", unix.MFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("memfd: %w", err)
	}
	f := os.NewFile(uintptr(fd), "subwave-background")
	defer f.Close()

	if err := f.Truncate(int64(size)); err != nil {
		return nil, fmt.Errorf("truncate shm file: %w", err)
	}
	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap shm file: %w", err)
	}
	for i := 0; i < size; i += 4 {
		// wl_shm ARGB8888 is BGRA in memory on little endian.
		data[i] = byte(argb)
		data[i+1] = byte(argb >> 8)
		data[i+2] = byte(argb >> 16)
		data[i+3] = byte(argb >> 24)
	}
	if err := unix.Munmap(data); err != nil {
		return nil, fmt.Errorf("munmap shm file: %w", err)
	}

	pool := C.wl_shm_create_pool(c.shm, C.int32_t(fd), C.int32_t(size))
	buffer := C.wl_shm_pool_create_buffer(pool, 0,
		C.int32_t(width), C.int32_t(height), C.int32_t(stride),
		C.WL_SHM_FORMAT_ARGB8888)
	// The pool can go once the buffer exists; the kernel keeps the
	// pages alive through the buffer's mapping.
	C.wl_shm_pool_destroy(pool)

	return &waylandBuffer{buffer: buffer}, nil
}

func (c *waylandConn) Flush() error {
	if c.closed {
		return ErrConnClosed
	}
	if C.wl_display_flush(c.display) < 0 {
		return fmt.Errorf("wl_display_flush failed")
	}
	return nil
}

func (c *waylandConn) Close() {
	if c.closed {
		return
	}
	c.closed = true

	if c.registry != nil {
		C.wl_proxy_destroy((*C.struct_wl_proxy)(unsafe.Pointer(c.registry)))
	}
	if c.wrapper != nil {
		C.wl_proxy_wrapper_destroy(unsafe.Pointer(c.wrapper))
	}
	if c.queue != nil {
		C.wl_event_queue_destroy(c.queue)
	}
	c.handle.Delete()
}

type waylandSurface struct {
	surface *C.struct_wl_surface
}

func (s *waylandSurface) Handle() host.SurfaceHandle {
	return host.SurfaceHandle(uintptr(unsafe.Pointer(s.surface)))
}

func (s *waylandSurface) Attach(b Buffer) {
	if b == nil {
		C.wl_surface_attach(s.surface, nil, 0, 0)
		return
	}
	C.wl_surface_attach(s.surface, b.(*waylandBuffer).buffer, 0, 0)
}

func (s *waylandSurface) Damage(x, y, width, height int32) {
	C.wl_surface_damage(s.surface, C.int32_t(x), C.int32_t(y), C.int32_t(width), C.int32_t(height))
}

func (s *waylandSurface) Commit()  { C.wl_surface_commit(s.surface) }
func (s *waylandSurface) Destroy() { C.wl_surface_destroy(s.surface) }

type waylandSubsurface struct {
	subsurface *C.struct_wl_subsurface
}

func (s *waylandSubsurface) SetPosition(x, y int32) {
	C.wl_subsurface_set_position(s.subsurface, C.int32_t(x), C.int32_t(y))
}

func (s *waylandSubsurface) SetDesync() { C.wl_subsurface_set_desync(s.subsurface) }
func (s *waylandSubsurface) SetSync()   { C.wl_subsurface_set_sync(s.subsurface) }

func (s *waylandSubsurface) PlaceBelow(sibling host.SurfaceHandle) {
	C.wl_subsurface_place_below(s.subsurface,
		(*C.struct_wl_surface)(unsafe.Pointer(uintptr(sibling))))
}

func (s *waylandSubsurface) PlaceAbove(sibling host.SurfaceHandle) {
	C.wl_subsurface_place_above(s.subsurface,
		(*C.struct_wl_surface)(unsafe.Pointer(uintptr(sibling))))
}

func (s *waylandSubsurface) Destroy() { C.wl_subsurface_destroy(s.subsurface) }

type waylandViewport struct {
	viewport *C.struct_wp_viewport
}

func (v *waylandViewport) SetDestination(width, height int32) {
	C.wp_viewport_set_destination(v.viewport, C.int32_t(width), C.int32_t(height))
}

func (v *waylandViewport) SetSource(x, y, width, height float64) {
	C.wp_viewport_set_source(v.viewport,
		C.wl_fixed_from_double(C.double(x)), C.wl_fixed_from_double(C.double(y)),
		C.wl_fixed_from_double(C.double(width)), C.wl_fixed_from_double(C.double(height)))
}

func (v *waylandViewport) Destroy() { C.wp_viewport_destroy(v.viewport) }

type waylandBuffer struct {
	buffer *C.struct_wl_buffer
}

func (b *waylandBuffer) Destroy() { C.wl_buffer_destroy(b.buffer) }
