package rpc

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cairnchain/node/p2p"
)

func testCoercer() *coercer {
	return &coercer{defaultPort: 18444}
}

func TestCoerceIntegerStringAndNativeAgree(t *testing.T) {
	assert := assert.New(t)
	c := testCoercer()
	spec := paramSpec{name: "height", typ: paramInteger, required: true}

	fromNative, rpcErr := c.coerce(spec, json.RawMessage(`0`))
	require.Nil(t, rpcErr)
	fromString, rpcErr := c.coerce(spec, json.RawMessage(`"0"`))
	require.Nil(t, rpcErr)
	assert.Equal(fromNative, fromString)
	assert.Equal(int64(0), fromNative)

	big, rpcErr := c.coerce(spec, json.RawMessage(`"123456789"`))
	require.Nil(t, rpcErr)
	assert.Equal(int64(123456789), big)
}

func TestCoerceIntegerRejections(t *testing.T) {
	c := testCoercer()
	spec := paramSpec{name: "height", typ: paramInteger, required: true}

	for _, tok := range []string{`"abc"`, `1.5`, `"1.5"`, `true`, `{}`, `[]`, `""`} {
		_, rpcErr := c.coerce(spec, json.RawMessage(tok))
		require.NotNil(t, rpcErr, tok)
		assert.Equal(t, ErrCodeInvalidParameter, rpcErr.Code, tok)
	}
}

func TestCoerceBool(t *testing.T) {
	assert := assert.New(t)
	c := testCoercer()
	spec := paramSpec{name: "state", typ: paramBool, required: true}

	for tok, want := range map[string]bool{
		`true`: true, `false`: false, `"true"`: true, `"false"`: false,
	} {
		v, rpcErr := c.coerce(spec, json.RawMessage(tok))
		require.Nil(t, rpcErr, tok)
		assert.Equal(want, v, tok)
	}

	for _, tok := range []string{`"yes"`, `1`, `"TRUE"`, `""`} {
		_, rpcErr := c.coerce(spec, json.RawMessage(tok))
		require.NotNil(t, rpcErr, tok)
		assert.Equal(ErrCodeInvalidParameter, rpcErr.Code, tok)
	}
}

func TestCoerceStringAcceptsNumberLiteral(t *testing.T) {
	assert := assert.New(t)
	c := testCoercer()
	spec := paramSpec{name: "hash_or_height", typ: paramString, required: true}

	v, rpcErr := c.coerce(spec, json.RawMessage(`5`))
	require.Nil(t, rpcErr)
	assert.Equal("5", v)

	v, rpcErr = c.coerce(spec, json.RawMessage(`"5"`))
	require.Nil(t, rpcErr)
	assert.Equal("5", v)

	_, rpcErr = c.coerce(spec, json.RawMessage(`[1]`))
	require.NotNil(t, rpcErr)
	assert.Equal(ErrCodeInvalidParameter, rpcErr.Code)
}

func TestCoerceAddress(t *testing.T) {
	assert := assert.New(t)
	c := testCoercer()
	spec := paramSpec{name: "address", typ: paramAddress, required: true}

	v, rpcErr := c.coerce(spec, json.RawMessage(`"::ffff:192.168.0.1:80"`))
	require.Nil(t, rpcErr)
	assert.Equal("192.168.0.1:80", v.(p2p.Endpoint).String())

	v, rpcErr = c.coerce(spec, json.RawMessage(`"10.0.0.1"`))
	require.Nil(t, rpcErr)
	assert.Equal("10.0.0.1:18444", v.(p2p.Endpoint).String())
}

// A string that is not a valid host:port is a semantic rejection: misc error
// with the "error: " message prefix, not a parameter error.
func TestCoerceAddressRejectionIsMiscError(t *testing.T) {
	assert := assert.New(t)
	c := testCoercer()
	spec := paramSpec{name: "address", typ: paramAddress, required: true}

	for _, tok := range []string{`"junk"`, `"example.com:80"`, `"10.0.0.1:99999"`, `""`} {
		_, rpcErr := c.coerce(spec, json.RawMessage(tok))
		require.NotNil(t, rpcErr, tok)
		assert.Equal(ErrCodeMisc, rpcErr.Code, tok)
		assert.True(strings.HasPrefix(rpcErr.Message, "error: "), rpcErr.Message)
	}
}

func TestCoerceHash(t *testing.T) {
	assert := assert.New(t)
	c := testCoercer()
	spec := paramSpec{name: "hash", typ: paramHash, required: true}

	_, rpcErr := c.coerce(spec, json.RawMessage(`"0f9188f13cb7b2c71f2a335e3a4fc328bf5beb436012afca590b1a11466e2206"`))
	assert.Nil(rpcErr)

	_, rpcErr = c.coerce(spec, json.RawMessage(`"zz"`))
	require.NotNil(t, rpcErr)
	assert.Equal(ErrCodeInvalidParameter, rpcErr.Code)
}

func TestCoerceAllArityAndDefaults(t *testing.T) {
	assert := assert.New(t)
	c := testCoercer()
	cmd := &command{
		name: "getblockheader",
		params: []paramSpec{
			{name: "hash_or_height", typ: paramString, required: true},
			{name: "verbose", typ: paramBool, def: true},
		},
	}

	args, rpcErr := c.coerceAll(cmd, []json.RawMessage{json.RawMessage(`"0"`)})
	require.Nil(t, rpcErr)
	assert.Equal([]interface{}{"0", true}, args)

	args, rpcErr = c.coerceAll(cmd, []json.RawMessage{json.RawMessage(`"0"`), json.RawMessage(`null`)})
	require.Nil(t, rpcErr)
	assert.Equal([]interface{}{"0", true}, args)

	args, rpcErr = c.coerceAll(cmd, []json.RawMessage{json.RawMessage(`"0"`), json.RawMessage(`false`)})
	require.Nil(t, rpcErr)
	assert.Equal([]interface{}{"0", false}, args)

	// Missing required parameter.
	_, rpcErr = c.coerceAll(cmd, nil)
	require.NotNil(t, rpcErr)
	assert.Equal(ErrCodeInvalidParameter, rpcErr.Code)

	// Too many parameters.
	_, rpcErr = c.coerceAll(cmd, []json.RawMessage{
		json.RawMessage(`"0"`), json.RawMessage(`true`), json.RawMessage(`1`),
	})
	require.NotNil(t, rpcErr)
	assert.Equal(ErrCodeInvalidParameter, rpcErr.Code)
}
