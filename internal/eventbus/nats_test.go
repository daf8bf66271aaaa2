package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfgpkg "github.com/taoyao-code/xbee-digimesh/internal/config"
	"github.com/taoyao-code/xbee-digimesh/internal/radio"
)

type published struct {
	subject string
	data    []byte
}

type fakeConn struct {
	msgs []published
	err  error
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, published{subject, data})
	return nil
}

func TestPublisher_Subjects(t *testing.T) {
	conn := &fakeConn{}
	p := newPublisher(conn, "")

	require.NoError(t, p.Publish(radio.Event{ID: "a", Kind: radio.EventNodeDiscovered}))
	require.Len(t, conn.msgs, 2)
	assert.Equal(t, "xbee.events.node_discovered", conn.msgs[0].subject)
	assert.Equal(t, "xbee.events.all", conn.msgs[1].subject)

	var ev radio.Event
	require.NoError(t, json.Unmarshal(conn.msgs[0].data, &ev))
	assert.Equal(t, "a", ev.ID)
	assert.Equal(t, conn.msgs[0].data, conn.msgs[1].data)
}

func TestPublisher_CustomPrefix(t *testing.T) {
	p := newPublisher(&fakeConn{}, "site1.radio")
	assert.Equal(t, "site1.radio.diagnostic", p.Subject(radio.EventDiagnostic))
	assert.NoError(t, p.Ping(context.Background()))
}

func TestPublisher_Error(t *testing.T) {
	conn := &fakeConn{err: errors.New("nats: connection closed")}
	p := newPublisher(conn, "x")
	assert.EqualError(t, p.Publish(radio.Event{Kind: radio.EventOpen}), "nats: connection closed")
}

func TestConnect_Unreachable(t *testing.T) {
	_, err := Connect(cfgpkg.NATSConfig{URL: "nats://127.0.0.1:1", MaxReconnects: 0}, nil)
	assert.Error(t, err)
}
