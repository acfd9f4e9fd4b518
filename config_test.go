package ice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultOptionsAreValid(t *testing.T) {
	opts := defaultOptions()
	assert.NoError(t, opts.validate())
	assert.True(t, opts.ICEUDP)
	assert.True(t, opts.ICETCP)
	assert.Nil(t, opts.Proxy)
}

func TestWithProxySetsOptions(t *testing.T) {
	opts := defaultOptions()
	WithProxy(ProxyConfig{URL: "socks5://127.0.0.1:1080"})(&opts)
	require.NotNil(t, opts.Proxy)
	assert.Equal(t, "socks5://127.0.0.1:1080", opts.Proxy.URL)
}

func TestWithTransportsRejectsBothDisabled(t *testing.T) {
	opts := defaultOptions()
	WithTransports(false, false)(&opts)
	assert.ErrorIs(t, opts.validate(), ErrNoTransportsEnabled)
}

func TestWithPortRangeRejectsInverted(t *testing.T) {
	opts := defaultOptions()
	WithPortRange(6000, 5000)(&opts)
	assert.ErrorIs(t, opts.validate(), ErrPortRange)
}

func TestNewAgentAppliesOptions(t *testing.T) {
	agent, err := NewAgent(WithControllingMode(false), WithTransports(false, true))
	require.NoError(t, err)
	defer agent.Close() //nolint:errcheck

	assert.False(t, agent.isControlling())
}
