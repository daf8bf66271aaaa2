package transport

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/xbee-digimesh/internal/transport/serialport"
)

func TestIsTCP(t *testing.T) {
	assert.True(t, IsTCP("tcp://10.0.0.5:2001"))
	assert.False(t, IsTCP("/dev/ttyUSB0"))
	assert.False(t, IsTCP("COM3"))
}

func TestOpen_TCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		if c, err := ln.Accept(); err == nil {
			defer c.Close()
			buf := make([]byte, 1)
			_, _ = c.Read(buf)
		}
	}()

	link, err := Open(context.Background(), serialport.Config{Device: "tcp://" + ln.Addr().String()})
	require.NoError(t, err)
	assert.NoError(t, link.Close())
}

func TestOpen_SerialMissingDevice(t *testing.T) {
	_, err := Open(context.Background(), serialport.Config{})
	assert.Error(t, err)
}
