package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func execute(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	root := NewRootCmd()
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(append([]string{"--simulate", "--timeout", "5s"}, args...))
	err := root.Execute()
	return buf.String(), err
}

func TestNICommand(t *testing.T) {
	out, err := execute("ni")
	require.NoError(t, err)
	assert.Equal(t, "SIM\n", out)

	out, err = execute("ni", "pump-7", "-o", "json")
	require.NoError(t, err)
	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "pump-7", got["node_identifier"])

	_, err = execute("ni", strings.Repeat("x", 21))
	assert.ErrorContains(t, err, "set NI")
}

func TestNTCommand(t *testing.T) {
	out, err := execute("nt")
	require.NoError(t, err)
	assert.Equal(t, "13s\n", out)

	out, err = execute("nt", "6s", "-o", "yaml")
	require.NoError(t, err)
	var got map[string]string
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	assert.Equal(t, "6s", got["discovery_timeout"])

	_, err = execute("nt", "soon")
	assert.ErrorContains(t, err, "invalid duration")
}

func TestDiscoverCommand(t *testing.T) {
	out, err := execute("discover", "--deadline", "300ms")
	require.NoError(t, err)
	assert.Contains(t, out, "ADDRESS")
	assert.Contains(t, out, "pump-1")
	assert.Contains(t, out, "valve-2")
	assert.Less(t, strings.Index(out, "pump-1"), strings.Index(out, "valve-2"))

	out, err = execute("discover", "--deadline", "300ms", "-o", "json")
	require.NoError(t, err)
	var nodes []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &nodes))
	require.Len(t, nodes, 2)
	assert.Equal(t, "0013a20040a1b2c3", nodes[0]["address"])
}

func TestSendCommand(t *testing.T) {
	out, err := execute("send", "0013a20040a1b2c3", "hi")
	require.NoError(t, err)
	assert.Contains(t, out, "success")

	out, err = execute("send", "broadcast", "0102", "--hex")
	require.NoError(t, err)
	assert.Contains(t, out, "success")

	out, err = execute("send", "0013a20040dead00", "hi")
	assert.ErrorContains(t, err, "route not found")
	assert.Contains(t, out, "route not found")

	_, err = execute("send", "nothex", "hi")
	assert.Error(t, err)
}

func TestATCommand(t *testing.T) {
	out, err := execute("at", "ni")
	require.NoError(t, err)
	assert.Equal(t, "NI 53494d\n", out)

	_, err = execute("at", "ZZ")
	assert.EqualError(t, err, "ZZ: invalid command")

	_, err = execute("at", "NI", "zz")
	assert.ErrorContains(t, err, "invalid hex parameter")
}

func TestListenCommand(t *testing.T) {
	out, err := execute("listen", "--for", "100ms")
	require.NoError(t, err)
	assert.Contains(t, out, `"kind": "open"`)
}

func TestUnknownOutputFormat(t *testing.T) {
	_, err := execute("ni", "-o", "xml")
	assert.ErrorContains(t, err, "unknown output format")
}
