package rpc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func consoleOf(t *testing.T, v interface{}) string {
	raw, err := EncodeResult(v)
	require.NoError(t, err)
	s, err := EncodeConsole(raw)
	require.NoError(t, err)
	return s
}

func TestEncodeConsoleScalars(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("0f9188f13cb7b2c71f2a335e3a4fc328bf5beb436012afca590b1a11466e2206",
		consoleOf(t, "0f9188f13cb7b2c71f2a335e3a4fc328bf5beb436012afca590b1a11466e2206"))
	assert.Equal("0", consoleOf(t, 0))
	assert.Equal("42", consoleOf(t, int64(42)))
	assert.Equal("true", consoleOf(t, true))
	assert.Equal("", consoleOf(t, nil))
}

func TestEncodeConsoleArrayLayout(t *testing.T) {
	assert := assert.New(t)

	got := consoleOf(t, []string{"aa", "bb"})
	assert.Equal("[\n  \"aa\",\n  \"bb\"\n]", got)

	assert.Equal("[]", consoleOf(t, []string{}))
}

func TestEncodeConsoleObjectLayout(t *testing.T) {
	type pair struct {
		A string `json:"a"`
		B int    `json:"b"`
	}
	got := consoleOf(t, pair{A: "x", B: 7})
	assert.Equal(t, "{\n  \"a\": \"x\",\n  \"b\": 7\n}", got)
}

// The console layout must be identical whether the structured result came
// from a string-typed or natively-typed invocation; at this layer that means
// identical raw JSON in, identical console text out.
func TestEncodeConsoleDeterministic(t *testing.T) {
	raw := json.RawMessage(`["aa","bb"]`)
	first, err := EncodeConsole(raw)
	require.NoError(t, err)
	second, err := EncodeConsole(raw)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEncodeResultVoid(t *testing.T) {
	raw, err := EncodeResult(nil)
	require.NoError(t, err)
	assert.Equal(t, "null", string(raw))
}
