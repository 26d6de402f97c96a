package gtkhost

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mvailland/subwave/host"
)

func TestHookRegistryInvokesAll(t *testing.T) {
	var r hookRegistry
	var order []string

	r.register(func() { order = append(order, "a") })
	r.register(func() { order = append(order, "b") })

	r.invoke()
	assert.ElementsMatch(t, []string{"a", "b"}, order)
}

func TestHookRegistryUnregister(t *testing.T) {
	var r hookRegistry
	calls := 0

	id := r.register(func() { calls++ })
	r.invoke()
	assert.Equal(t, 1, calls)

	r.unregister(id)
	r.invoke()
	assert.Equal(t, 1, calls)

	// Unknown ids are ignored.
	r.unregister(host.HookID(999))
}

func TestHookMayUnregisterItself(t *testing.T) {
	var r hookRegistry
	calls := 0

	var id host.HookID
	id = r.register(func() {
		calls++
		r.unregister(id)
	})

	r.invoke()
	r.invoke()
	assert.Equal(t, 1, calls)
}

func TestHookRegistryClear(t *testing.T) {
	var r hookRegistry
	calls := 0
	r.register(func() { calls++ })

	r.clear()
	r.invoke()
	assert.Zero(t, calls)

	// Registry is usable again after clear.
	r.register(func() { calls++ })
	r.invoke()
	assert.Equal(t, 1, calls)
}
