// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package mux

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/pion/logging"
	"github.com/pion/transport/v4/connctx"
	"github.com/pion/transport/v4/test"
	"github.com/stretchr/testify/require"
)

func newConnCtx(c net.Conn) connctx.ConnCtx {
	return connctx.New(c)
}

const testPipeBufferSize = 8192

func TestNoEndpoints(t *testing.T) {
	ca, cb := net.Pipe()
	require.NoError(t, cb.Close())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewMux(ctx, Config{
		Conn:          newConnCtx(ca),
		BufferSize:    testPipeBufferSize,
		LoggerFactory: logging.NewDefaultLoggerFactory(),
	})
	require.NoError(t, m.dispatch(ctx, make([]byte, 1)))
	require.NoError(t, m.Close())
	require.NoError(t, ca.Close())
}

func TestSTUNEndpointReceivesMatchedPacket(t *testing.T) {
	lim := test.TimeOut(2 * time.Second)
	defer lim.Stop()

	ca, cb := net.Pipe()
	defer func() {
		_ = cb.Close()
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewMux(ctx, Config{
		Conn:          newConnCtx(ca),
		BufferSize:    testPipeBufferSize,
		LoggerFactory: logging.NewDefaultLoggerFactory(),
	})
	endpoint := m.NewEndpoint(MatchSTUN)

	go func() {
		_, _ = cb.Write([]byte{0, 1, 2, 3})
	}()

	buf := make([]byte, testPipeBufferSize)
	n, err := endpoint.Read(buf)
	require.NoError(t, err)
	require.Equal(t, []byte{0, 1, 2, 3}, buf[:n])

	require.NoError(t, m.Close())
}

func TestTURNRangeExcludesSTUN(t *testing.T) {
	require.True(t, MatchSTUN([]byte{0}))
	require.True(t, MatchSTUN([]byte{3}))
	require.False(t, MatchSTUN([]byte{4}))
	require.True(t, MatchTURN([]byte{64}))
	require.True(t, MatchTURN([]byte{79}))
	require.False(t, MatchTURN([]byte{80}))
}
