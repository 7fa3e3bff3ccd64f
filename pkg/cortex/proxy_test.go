package cortex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProxyFactory_WrapOnce(t *testing.T) {
	next := 0
	e := newEntry(pingDescriptor(&recorder{}, &next))

	stand, err := ProxyFactory{}.Wrap(e)
	require.NoError(t, err)
	require.NotNil(t, stand)
	assert.Same(t, e, stand.(pingerProxy).h.entry)

	_, err = ProxyFactory{}.Wrap(e)
	assert.ErrorIs(t, err, ErrProxyAlreadyCreated)
	assert.Equal(t, stand, e.Exposed(), "the first stand-in is kept")
}

func TestProxyFactory_NoProxyExposesActual(t *testing.T) {
	e := newEntry(Describe[*base](func([]any) (any, error) { return &base{}, nil }))

	stand, err := ProxyFactory{}.Wrap(e)
	require.NoError(t, err)
	assert.Nil(t, stand)

	b := &base{}
	e.setActual(b)
	assert.Same(t, b, e.Exposed())
}

func TestHandle_ForwardsToCurrentInstance(t *testing.T) {
	next := 0
	e := newEntry(pingDescriptor(&recorder{}, &next))
	stand, err := ProxyFactory{}.Wrap(e)
	require.NoError(t, err)
	pinger := stand.(Pinger)

	e.setActual(&pingService{id: 1})
	assert.Equal(t, "ping-1", pinger.Ping())

	e.setActual(&pingService{id: 2})
	assert.Equal(t, "ping-2", pinger.Ping())

	e.setActual(nil)
	assert.Panics(t, func() { pinger.Ping() })
}
