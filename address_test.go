package ice

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddressEqual(t *testing.T) {
	a := NewAddress("192.168.1.1", 5000)
	b := NewAddress("192.168.1.1", 5000)
	c := NewAddress("192.168.1.1", 5001)
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.True(t, a.EqualIgnoringPort(c))
}

func TestAddressIPVersion(t *testing.T) {
	assert.Equal(t, 4, NewAddress("192.168.1.1", 1).IPVersion())
	assert.Equal(t, 6, NewAddress("fe80::1", 1).IPVersion())
	assert.Equal(t, 0, Address{}.IPVersion())
}

func TestAddressIsLinkLocal(t *testing.T) {
	assert.True(t, NewAddress("169.254.1.1", 1).IsLinkLocal())
	assert.True(t, NewAddress("fe80::1", 1).IsLinkLocal())
	assert.False(t, NewAddress("192.168.1.1", 1).IsLinkLocal())
}

func TestAddressIsPrivate(t *testing.T) {
	assert.True(t, NewAddress("10.0.0.1", 1).IsPrivate())
	assert.True(t, NewAddress("172.16.0.1", 1).IsPrivate())
	assert.True(t, NewAddress("192.168.0.1", 1).IsPrivate())
	assert.False(t, NewAddress("8.8.8.8", 1).IsPrivate())
}

func TestAddressString(t *testing.T) {
	assert.Equal(t, "192.168.1.1:5000", NewAddress("192.168.1.1", 5000).String())
}

func TestAddressIsValid(t *testing.T) {
	udpAddr := NewAddress("127.0.0.1", 4000)
	assert.True(t, udpAddr.IsValid())
	assert.False(t, Address{Port: -1}.IsValid())
}
