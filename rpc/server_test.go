package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cairnchain/node/chain"
	"github.com/cairnchain/node/mining"
	"github.com/cairnchain/node/p2p"
)

const (
	testUser = "user"
	testPass = "pass"

	regtestGenesisHash = "0f9188f13cb7b2c71f2a335e3a4fc328bf5beb436012afca590b1a11466e2206"
)

type failDialer struct{}

func (failDialer) Dial(context.Context, p2p.Endpoint) (p2p.Conn, error) {
	return nil, errors.New("connection refused")
}

type fakeConn struct{ ep p2p.Endpoint }

func (c fakeConn) RemoteEndpoint() p2p.Endpoint { return c.ep }
func (c fakeConn) Close() error                 { return nil }

type testNode struct {
	srv   *Server
	index *chain.Index
	peers *p2p.ConnManager
}

func newTestNode(t *testing.T, opts ...func(*Config)) *testNode {
	idx := chain.NewIndex(&chain.RegressionNetParams)
	cm := p2p.NewConnManager(p2p.Config{Dialer: failDialer{}})
	cfg := Config{
		Credentials: Credentials{Username: testUser, Password: testPass},
		DefaultPort: chain.RegressionNetParams.DefaultPort,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	srv, err := NewServer(cfg, idx, mining.New(idx), cm)
	require.NoError(t, err)
	return &testNode{srv: srv, index: idx, peers: cm}
}

func (n *testNode) call(t *testing.T, user, pass, body string) (int, []byte) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(body))
	if user != "" {
		req.SetBasicAuth(user, pass)
	}
	rec := httptest.NewRecorder()
	n.srv.Handler().ServeHTTP(rec, req)
	res := rec.Result()
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res.StatusCode, data
}

// rpc issues an authenticated request and decodes the wire response.
func (n *testNode) rpc(t *testing.T, method string, params ...string) Response {
	body := fmt.Sprintf(`{"id":1,"method":%q,"params":[%s]}`, method, strings.Join(params, ","))
	status, data := n.call(t, testUser, testPass, body)
	require.Equal(t, http.StatusOK, status, string(data))
	var resp Response
	require.NoError(t, json.Unmarshal(data, &resp))
	return resp
}

func resultString(t *testing.T, resp Response) string {
	require.Nil(t, resp.Error, "unexpected error: %+v", resp.Error)
	var s string
	require.NoError(t, json.Unmarshal(resp.Result, &s))
	return s
}

func TestNewServerRequiresCredentials(t *testing.T) {
	idx := chain.NewIndex(&chain.RegressionNetParams)
	cm := p2p.NewConnManager(p2p.Config{Dialer: failDialer{}})
	_, err := NewServer(Config{}, idx, mining.New(idx), cm)
	assert.Error(t, err)
}

func TestUnauthenticatedRequestsRejectedBeforeDispatch(t *testing.T) {
	assert := assert.New(t)
	n := newTestNode(t)

	// Even a state-mutating command must not run without credentials.
	body := `{"id":1,"method":"addnode","params":["192.168.0.1:80"]}`

	status, _ := n.call(t, "", "", body)
	assert.Equal(http.StatusUnauthorized, status)

	status, _ = n.call(t, testUser, "wrong", body)
	assert.Equal(http.StatusUnauthorized, status)

	status, _ = n.call(t, "intruder", testPass, body)
	assert.Equal(http.StatusUnauthorized, status)

	assert.Empty(n.peers.ConfiguredNodes())
}

func TestMethodNotFoundIsStructured(t *testing.T) {
	assert := assert.New(t)
	n := newTestNode(t)

	resp := n.rpc(t, "frobnicate")
	require.NotNil(t, resp.Error)
	assert.Equal(ErrCodeMethodNotFound, resp.Error.Code)
	assert.Equal("null", string(resp.Result))
	assert.Empty(n.peers.ConfiguredNodes())
	assert.Equal(int64(0), n.index.Height())
}

func TestParseErrorAndRequestShape(t *testing.T) {
	assert := assert.New(t)
	n := newTestNode(t)

	status, data := n.call(t, testUser, testPass, `{not json`)
	assert.Equal(http.StatusOK, status)
	var resp Response
	require.NoError(t, json.Unmarshal(data, &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(ErrCodeParse, resp.Error.Code)

	status, data = n.call(t, testUser, testPass, `{"id":7,"params":[]}`)
	assert.Equal(http.StatusOK, status)
	require.NoError(t, json.Unmarshal(data, &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(ErrCodeInvalidRequest, resp.Error.Code)
	assert.Equal(float64(7), resp.ID)
}

func TestLargeRequestRejected(t *testing.T) {
	n := newTestNode(t, func(cfg *Config) { cfg.MaxPostSize = 128 })
	body := `{"id":1,"method":"help","params":["` + strings.Repeat("x", 1024) + `"]}`
	status, _ := n.call(t, testUser, testPass, body)
	assert.Equal(t, http.StatusExpectationFailed, status)
}

func TestAddNodeFlow(t *testing.T) {
	assert := assert.New(t)
	n := newTestNode(t)

	resp := n.rpc(t, "addnode", `"::ffff:192.168.0.1:80"`)
	assert.Nil(resp.Error)
	assert.Equal("null", string(resp.Result))

	nodes := n.peers.ConfiguredNodes()
	require.Len(t, nodes, 1)
	assert.Equal("192.168.0.1:80", nodes[0].AddedNode)

	// Duplicate add is an idempotent no-op.
	resp = n.rpc(t, "addnode", `"192.168.0.1:80"`)
	assert.Nil(resp.Error)
	assert.Len(n.peers.ConfiguredNodes(), 1)

	resp = n.rpc(t, "getaddednodeinfo")
	require.Nil(t, resp.Error)
	var recs []p2p.NodeRecord
	require.NoError(t, json.Unmarshal(resp.Result, &recs))
	require.Len(t, recs, 1)
	assert.Equal("192.168.0.1:80", recs[0].AddedNode)
}

func TestAddNodeMalformedAddress(t *testing.T) {
	assert := assert.New(t)
	n := newTestNode(t)

	for _, arg := range []string{`"junk"`, `"example.com:80"`, `"10.0.0.1:99999"`, `""`} {
		resp := n.rpc(t, "addnode", arg)
		require.NotNil(t, resp.Error, arg)
		assert.Equal(ErrCodeMisc, resp.Error.Code, arg)
		assert.True(strings.HasPrefix(resp.Error.Message, "error: "), resp.Error.Message)
	}
	assert.Empty(n.peers.ConfiguredNodes())
}

func TestGetBlockHashGenesis(t *testing.T) {
	assert := assert.New(t)
	n := newTestNode(t)

	// String and native height coerce identically.
	assert.Equal(regtestGenesisHash, resultString(t, n.rpc(t, "getblockhash", `"0"`)))
	assert.Equal(regtestGenesisHash, resultString(t, n.rpc(t, "getblockhash", `0`)))
	assert.Equal(regtestGenesisHash, resultString(t, n.rpc(t, "getbestblockhash")))
}

func TestGetBlockHashOutOfRange(t *testing.T) {
	assert := assert.New(t)
	n := newTestNode(t)

	for _, arg := range []string{`1`, `-1`, `"99"`} {
		resp := n.rpc(t, "getblockhash", arg)
		require.NotNil(t, resp.Error, arg)
		assert.Equal(ErrCodeInvalidParameter, resp.Error.Code, arg)
		assert.Equal("Block height out of range", resp.Error.Message, arg)
	}
}

func TestGenerateExtendsChain(t *testing.T) {
	assert := assert.New(t)
	n := newTestNode(t)

	resp := n.rpc(t, "generate", `"1"`)
	require.Nil(t, resp.Error)
	var hashes []string
	require.NoError(t, json.Unmarshal(resp.Result, &hashes))
	require.Len(t, hashes, 1)
	assert.Equal(int64(1), n.index.Height())

	want, err := n.index.HashAt(1)
	require.NoError(t, err)
	assert.Equal(want.String(), hashes[0])

	// Count must be positive.
	for _, arg := range []string{`0`, `"-3"`} {
		resp := n.rpc(t, "generate", arg)
		require.NotNil(t, resp.Error, arg)
		assert.Equal(ErrCodeInvalidParameter, resp.Error.Code, arg)
	}
	assert.Equal(int64(1), n.index.Height())
}

// fixedProducer returns the same hashes on every call, making the wire bytes
// of two generate invocations comparable.
type fixedProducer struct{ hashes []chain.Hash }

func (p fixedProducer) ProduceBlocks(_ context.Context, count int) ([]chain.Hash, error) {
	if count > len(p.hashes) {
		count = len(p.hashes)
	}
	return p.hashes[:count], nil
}

func TestStringAndNativeArgsProduceIdenticalOutput(t *testing.T) {
	assert := assert.New(t)
	idx := chain.NewIndex(&chain.RegressionNetParams)
	cm := p2p.NewConnManager(p2p.Config{Dialer: failDialer{}})
	producer := fixedProducer{hashes: []chain.Hash{
		chain.RegressionNetParams.GenesisHash,
		chain.MainNetParams.GenesisHash,
	}}
	srv, err := NewServer(Config{
		Credentials: Credentials{Username: testUser, Password: testPass},
		DefaultPort: chain.RegressionNetParams.DefaultPort,
	}, idx, producer, cm)
	require.NoError(t, err)
	n := &testNode{srv: srv, index: idx, peers: cm}

	pairs := [][2]string{
		{`"2"`, `2`},       // generate
		{`"0"`, `0`},       // getblockhash
		{`"true"`, `true`}, // setnetworkactive
	}
	methods := []string{"generate", "getblockhash", "setnetworkactive"}
	for i, method := range methods {
		stringForm := n.rpc(t, method, pairs[i][0])
		nativeForm := n.rpc(t, method, pairs[i][1])
		require.Nil(t, stringForm.Error, method)
		require.Nil(t, nativeForm.Error, method)

		stringConsole, err := EncodeConsole(stringForm.Result)
		require.NoError(t, err)
		nativeConsole, err := EncodeConsole(nativeForm.Result)
		require.NoError(t, err)
		assert.Equal(stringConsole, nativeConsole, method)
		assert.Equal(string(stringForm.Result), string(nativeForm.Result), method)
	}
}

func TestGetBlockHeaderVerboseRehash(t *testing.T) {
	assert := assert.New(t)
	n := newTestNode(t)

	resp := n.rpc(t, "generate", `1`)
	require.Nil(t, resp.Error)

	tipHash := resultString(t, n.rpc(t, "getbestblockhash"))
	resp = n.rpc(t, "getblockheader", strconv.Quote(tipHash))
	require.Nil(t, resp.Error)

	var hdr blockHeaderResult
	require.NoError(t, json.Unmarshal(resp.Result, &hdr))
	assert.Equal(tipHash, hdr.Hash)
	assert.Equal(int64(1), hdr.Height)
	assert.Equal(regtestGenesisHash, hdr.PreviousBlockHash)

	// Rebuild the header from the exposed fields and re-hash.
	prev, err := chain.NewHashFromStr(hdr.PreviousBlockHash)
	require.NoError(t, err)
	merkle, err := chain.NewHashFromStr(hdr.MerkleRoot)
	require.NoError(t, err)
	bits, err := strconv.ParseUint(hdr.Bits, 16, 32)
	require.NoError(t, err)
	rebuilt := chain.BlockHeader{
		Version:    hdr.Version,
		PrevBlock:  prev,
		MerkleRoot: merkle,
		Timestamp:  hdr.Time,
		Bits:       uint32(bits),
		Nonce:      hdr.Nonce,
	}
	assert.Equal(hdr.Hash, rebuilt.BlockHash().String())
}

func TestGetBlockHeaderHexForm(t *testing.T) {
	assert := assert.New(t)
	n := newTestNode(t)

	hexForm := resultString(t, n.rpc(t, "getblockheader", `"0"`, `false`))
	require.Len(t, hexForm, chain.HeaderSize*2)

	decoded, err := chain.DeserializeHeaderHex(hexForm)
	require.NoError(t, err)
	assert.Equal(regtestGenesisHash, decoded.BlockHash().String())

	// Height form and hash form resolve to the same header.
	byHash := resultString(t, n.rpc(t, "getblockheader", strconv.Quote(regtestGenesisHash), `false`))
	assert.Equal(hexForm, byHash)
}

func TestGetBlockHeaderLookupErrors(t *testing.T) {
	assert := assert.New(t)
	n := newTestNode(t)

	// Unknown but well-formed hash.
	resp := n.rpc(t, "getblockheader", strconv.Quote(strings.Repeat("ab", 32)))
	require.NotNil(t, resp.Error)
	assert.Equal(ErrCodeNotFound, resp.Error.Code)
	assert.Equal("Block not found", resp.Error.Message)

	// 64 chars but not hex.
	resp = n.rpc(t, "getblockheader", strconv.Quote(strings.Repeat("zz", 32)))
	require.NotNil(t, resp.Error)
	assert.Equal(ErrCodeInvalidParameter, resp.Error.Code)

	// Height beyond the tip.
	resp = n.rpc(t, "getblockheader", `"42"`)
	require.NotNil(t, resp.Error)
	assert.Equal(ErrCodeInvalidParameter, resp.Error.Code)

	// Neither hash nor height.
	resp = n.rpc(t, "getblockheader", `"notahash"`)
	require.NotNil(t, resp.Error)
	assert.Equal(ErrCodeInvalidParameter, resp.Error.Code)
}

func TestPeerCommands(t *testing.T) {
	assert := assert.New(t)
	n := newTestNode(t)

	// Empty-safe.
	resp := n.rpc(t, "getpeerinfo")
	require.Nil(t, resp.Error)
	assert.Equal("[]", string(resp.Result))

	ep1, err := p2p.ParseEndpoint("10.0.0.1:18444", 18444)
	require.NoError(t, err)
	ep2, err := p2p.ParseEndpoint("10.0.0.2:18444", 18444)
	require.NoError(t, err)
	_, err = n.peers.AcceptConnection(fakeConn{ep: ep1})
	require.NoError(t, err)
	_, err = n.peers.AcceptConnection(fakeConn{ep: ep2})
	require.NoError(t, err)

	resp = n.rpc(t, "getpeerinfo")
	require.Nil(t, resp.Error)
	var peers []p2p.PeerInfo
	require.NoError(t, json.Unmarshal(resp.Result, &peers))
	require.Len(t, peers, 2)
	assert.Equal(int32(0), peers[0].ID)
	assert.Equal("10.0.0.1:18444", peers[0].Addr)
	assert.Equal(int32(1), peers[1].ID)

	var count int
	resp = n.rpc(t, "getconnectioncount")
	require.Nil(t, resp.Error)
	require.NoError(t, json.Unmarshal(resp.Result, &count))
	assert.Equal(2, count)
}

func TestSetNetworkActive(t *testing.T) {
	assert := assert.New(t)
	n := newTestNode(t)

	resp := n.rpc(t, "setnetworkactive", `false`)
	require.Nil(t, resp.Error)
	assert.Equal("false", string(resp.Result))
	assert.False(n.peers.NetworkActive())

	resp = n.rpc(t, "setnetworkactive", `"true"`)
	require.Nil(t, resp.Error)
	assert.Equal("true", string(resp.Result))
	assert.True(n.peers.NetworkActive())
}

func TestHelp(t *testing.T) {
	assert := assert.New(t)
	n := newTestNode(t)

	all := resultString(t, n.rpc(t, "help"))
	assert.Contains(all, "addnode <address>")
	assert.Contains(all, "getblockheader <hash_or_height> [verbose]")
	lines := strings.Split(all, "\n")
	assert.True(sortedStrings(lines))

	one := resultString(t, n.rpc(t, "help", `"generate"`))
	assert.True(strings.HasPrefix(one, "generate <count>"))

	unknown := resultString(t, n.rpc(t, "help", `"frobnicate"`))
	assert.Contains(unknown, "unknown command")
}

func sortedStrings(ss []string) bool {
	for i := 1; i < len(ss); i++ {
		if ss[i] < ss[i-1] {
			return false
		}
	}
	return true
}

func TestUptime(t *testing.T) {
	n := newTestNode(t)
	resp := n.rpc(t, "uptime")
	require.Nil(t, resp.Error)
	var secs int64
	require.NoError(t, json.Unmarshal(resp.Result, &secs))
	assert.True(t, secs >= 0)
}

func TestGetRPCInfo(t *testing.T) {
	assert := assert.New(t)
	n := newTestNode(t)

	n.rpc(t, "getblockcount")
	n.rpc(t, "uptime")

	resp := n.rpc(t, "getrpcinfo")
	require.Nil(t, resp.Error)
	var info rpcInfoResult
	require.NoError(t, json.Unmarshal(resp.Result, &info))

	// getrpcinfo sees itself in flight.
	require.Len(t, info.ActiveCommands, 1)
	assert.Equal("getrpcinfo", info.ActiveCommands[0].Method)

	methods := make([]string, 0, len(info.RecentCommands))
	for _, rc := range info.RecentCommands {
		methods = append(methods, rc.Method)
	}
	assert.Contains(methods, "getblockcount")
	assert.Contains(methods, "uptime")
}

func TestStop(t *testing.T) {
	assert := assert.New(t)
	stopped := make(chan struct{})
	n := newTestNode(t, func(cfg *Config) {
		cfg.OnStop = func() { close(stopped) }
	})

	msg := resultString(t, n.rpc(t, "stop"))
	assert.Equal("cairnd stopping", msg)

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("stop callback not invoked")
	}
}

func TestConcurrentAuthOutcomes(t *testing.T) {
	assert := assert.New(t)
	n := newTestNode(t)
	body := `{"id":1,"method":"getbestblockhash","params":[]}`

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		authorized := i%2 == 0
		wg.Add(1)
		go func() {
			defer wg.Done()
			if authorized {
				status, data := n.call(t, testUser, testPass, body)
				assert.Equal(http.StatusOK, status)
				var resp Response
				if assert.NoError(json.Unmarshal(data, &resp)) && assert.Nil(resp.Error) {
					var hash string
					if assert.NoError(json.Unmarshal(resp.Result, &hash)) {
						assert.Equal(regtestGenesisHash, hash)
					}
				}
			} else {
				status, _ := n.call(t, testUser, "wrong", body)
				assert.Equal(http.StatusUnauthorized, status)
			}
		}()
	}
	wg.Wait()
}

func TestAddNodeDuringGenerate(t *testing.T) {
	assert := assert.New(t)
	n := newTestNode(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		resp := n.rpc(t, "generate", `25`)
		assert.Nil(resp.Error)
	}()

	// Registry mutations and reads stay prompt while generate runs.
	resp := n.rpc(t, "addnode", `"10.0.0.9:18444"`)
	assert.Nil(resp.Error)
	resp = n.rpc(t, "getaddednodeinfo")
	assert.Nil(resp.Error)

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		t.Fatal("generate did not finish")
	}
	assert.Equal(int64(25), n.index.Height())
	assert.Len(n.peers.ConfiguredNodes(), 1)
}

func TestHandlerPanicRecovered(t *testing.T) {
	assert := assert.New(t)
	n := newTestNode(t)
	n.srv.reg.register(&command{
		name: "explode",
		handler: func(context.Context, []interface{}) (interface{}, error) {
			panic("boom")
		},
	})

	resp := n.rpc(t, "explode")
	require.NotNil(t, resp.Error)
	assert.Equal(ErrCodeInternal, resp.Error.Code)

	// Server still serves afterwards.
	assert.Equal(regtestGenesisHash, resultString(t, n.rpc(t, "getbestblockhash")))
}
