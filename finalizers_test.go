package conservgc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFinalizerMapRegisterFind(t *testing.T) {
	var f finalizerMap
	f.init()

	called := false
	isNew := f.register(8, func(Ptr) { called = true })
	assert.True(t, isNew)

	fn := f.funcFor(8)
	require.NotNil(t, fn)
	fn(8)
	assert.True(t, called)
}

func TestFinalizerMapRegisterUpdatesExisting(t *testing.T) {
	var f finalizerMap
	f.init()

	f.register(8, func(Ptr) {})
	isNew := f.register(8, func(Ptr) {})
	assert.False(t, isNew)
	assert.Equal(t, uint32(1), f.count)
}

func TestFinalizerMapMarkRun(t *testing.T) {
	var f finalizerMap
	f.init()

	f.register(8, func(Ptr) {})
	f.markRun(8)

	assert.Nil(t, f.funcFor(8))
	assert.Equal(t, uint32(0), f.count)
}

func TestFinalizerMapGrow(t *testing.T) {
	var f finalizerMap
	f.init()

	n := (f.mask + 1) / 2
	for i := uint32(0); i < n; i++ {
		f.register(Ptr(8*(i+1)), func(Ptr) {})
	}
	assert.Greater(t, f.mask, tableMinMask)

	for i := uint32(0); i < n; i++ {
		assert.NotNil(t, f.funcFor(Ptr(8*(i+1))))
	}
}
