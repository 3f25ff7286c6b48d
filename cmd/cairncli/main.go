package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tidwall/gjson"

	"github.com/cairnchain/node/app"
	"github.com/cairnchain/node/rpc"
	"github.com/cairnchain/node/version"
)

const (
	flagNode     = "node"
	flagUser     = "rpcuser"
	flagPassword = "rpcpassword"

	defaultNode    = "http://127.0.0.1:8332"
	requestTimeout = 60 * time.Second
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "cairncli",
		Short: "Command line client for the Cairn node RPC interface",
	}
	rootCmd.PersistentFlags().String(flagNode, "", "node RPC endpoint (default from config, else "+defaultNode+")")
	rootCmd.PersistentFlags().String(flagUser, "", "RPC username (default from config)")
	rootCmd.PersistentFlags().String(flagPassword, "", "RPC password (default from config)")
	rootCmd.PersistentFlags().String(app.FlagHome, app.DefaultNodeHome, "node home holding the config file")

	for _, spec := range commandSpecs {
		cmd := newRPCCommand(spec)
		rootCmd.AddCommand(cmd)
		if spec.method == "help" {
			// "help" queries the server like every other verb; local usage
			// stays on --help.
			rootCmd.SetHelpCommand(cmd)
		}
	}
	rootCmd.AddCommand(version.Cmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

type commandSpec struct {
	use    string
	short  string
	method string
	args   cobra.PositionalArgs
}

var commandSpecs = []commandSpec{
	{"addnode <ip[:port]>", "Register a peer endpoint and try to connect to it", "addnode", cobra.ExactArgs(1)},
	{"getaddednodeinfo", "List endpoints registered via addnode", "getaddednodeinfo", cobra.NoArgs},
	{"getpeerinfo", "List live peer connections", "getpeerinfo", cobra.NoArgs},
	{"getconnectioncount", "Print the number of live peer connections", "getconnectioncount", cobra.NoArgs},
	{"setnetworkactive <true|false>", "Enable or disable outbound connectivity", "setnetworkactive", cobra.ExactArgs(1)},
	{"getbestblockhash", "Print the tip block hash", "getbestblockhash", cobra.NoArgs},
	{"getblockcount", "Print the tip height", "getblockcount", cobra.NoArgs},
	{"getblockhash <height>", "Print the block hash at a height", "getblockhash", cobra.ExactArgs(1)},
	{"getblockheader <hash|height> [verbose]", "Print a block header, decoded or as hex", "getblockheader", cobra.RangeArgs(1, 2)},
	{"generate <count>", "Mine count blocks on top of the current tip", "generate", cobra.ExactArgs(1)},
	{"uptime", "Print the server uptime in seconds", "uptime", cobra.NoArgs},
	{"getrpcinfo", "Print active and recent RPC commands", "getrpcinfo", cobra.NoArgs},
	{"help [command]", "Print server side command help", "help", cobra.MaximumNArgs(1)},
	{"stop", "Ask the node to shut down", "stop", cobra.NoArgs},
}

func newRPCCommand(spec commandSpec) *cobra.Command {
	return &cobra.Command{
		Use:   spec.use,
		Short: spec.short,
		Args:  spec.args,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := clientFromFlags(cmd)
			if err != nil {
				return err
			}
			out, err := client.call(spec.method, args)
			if err != nil {
				return err
			}
			if out != "" {
				fmt.Println(out)
			}
			return nil
		},
	}
}

// clientFromFlags builds the RPC client, falling back to the node's own
// config file for anything not given on the command line.
func clientFromFlags(cmd *cobra.Command) (*rpcClient, error) {
	node, err := cmd.Flags().GetString(flagNode)
	if err != nil {
		return nil, err
	}
	user, err := cmd.Flags().GetString(flagUser)
	if err != nil {
		return nil, err
	}
	password, err := cmd.Flags().GetString(flagPassword)
	if err != nil {
		return nil, err
	}

	if node == "" || user == "" || password == "" {
		home, err := cmd.Flags().GetString(app.FlagHome)
		if err != nil {
			return nil, err
		}
		v := viper.New()
		v.SetConfigFile(filepath.Join(home, "config", app.ConfigFileName+".toml"))
		if err := v.ReadInConfig(); err == nil {
			if user == "" {
				user = v.GetString("rpc.rpcUser")
			}
			if password == "" {
				password = v.GetString("rpc.rpcPassword")
			}
			if node == "" && v.GetString("rpc.listenAddr") != "" {
				node = "http://" + v.GetString("rpc.listenAddr")
			}
		}
	}
	if node == "" {
		node = defaultNode
	}
	if user == "" || password == "" {
		return nil, errors.New("rpcuser and rpcpassword must be given, by flag or config file")
	}

	return &rpcClient{
		endpoint: node,
		user:     user,
		password: password,
		client:   &http.Client{Timeout: requestTimeout},
	}, nil
}

type rpcClient struct {
	endpoint string
	user     string
	password string
	client   *http.Client
}

type rpcRequest struct {
	ID     int      `json:"id"`
	Method string   `json:"method"`
	Params []string `json:"params"`
}

// call performs one JSON-RPC exchange and renders the result in console
// form. Arguments travel as strings; the server coerces them per command.
func (c *rpcClient) call(method string, args []string) (string, error) {
	if args == nil {
		args = []string{}
	}
	reqBody, err := json.Marshal(rpcRequest{ID: 1, Method: method, Params: args})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequest(http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.user, c.password)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", errors.Wrapf(err, "could not reach node at %s", c.endpoint)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return "", errors.New("authorization failed: incorrect rpcuser or rpcpassword")
	default:
		return "", errors.Errorf("server returned HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	if errField := gjson.GetBytes(body, "error"); errField.Exists() && errField.Type != gjson.Null {
		return "", errors.Errorf("error code: %d\nerror message:\n%s",
			errField.Get("code").Int(), errField.Get("message").String())
	}

	result := gjson.GetBytes(body, "result")
	return rpc.EncodeConsole(json.RawMessage(result.Raw))
}
