// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.
//
// The klaytn library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The klaytn library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the klaytn library. If not, see <http://www.gnu.org/licenses/>.
//
// This file is derived from cmd/kcn/main.go's console/attach command shape
// (2018/06/04), trimmed to a single-shot request/response client instead of
// an interactive console.

// Command knotcoin-cli is the out-of-scope CLI wrapper named in spec.md §1:
// it never touches the chain store, mempool or miner directly. It reads the
// node's .cookie bearer token, POSTs a JSON-RPC request at rpc_bind:rpc_port
// and prints the reply. The JSON-RPC transport itself lives in the external
// façade process; this binary only composes the request.
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

	"github.com/fatih/color"
	"github.com/urfave/cli"
)

var (
	dataDirFlag = cli.StringFlag{
		Name:  "datadir",
		Usage: "Node data directory holding the .cookie file",
		Value: defaultDataDir(),
	}
	rpcURLFlag = cli.StringFlag{
		Name:  "rpcurl",
		Usage: "Façade JSON-RPC endpoint",
		Value: "http://127.0.0.1:9001",
	}
)

func defaultDataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".knotcoin", "mainnet")
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result interface{} `json:"result"`
	Error  *rpcError   `json:"error"`
}

func main() {
	app := cli.NewApp()
	app.Name = "knotcoin-cli"
	app.Usage = "command-line client for a running knotcoind's JSON-RPC façade"
	app.Flags = []cli.Flag{dataDirFlag, rpcURLFlag}
	app.Commands = []cli.Command{
		rpcCommand("getblockcount", "height of the current chain tip"),
		rpcCommand("getblockhash", "hash at a given height", "height"),
		rpcCommand("getbalance", "account balance", "address"),
		rpcCommand("getreferralinfo", "referral standing for an address", "address"),
		rpcCommand("getgovernanceinfo", "governance weight for an address", "address"),
		rpcCommand("getgovernancetally", "tally for a proposal id", "proposal"),
		rpcCommand("getmempoolinfo", "mempool size/bounds"),
		rpcCommand("getrawmempool", "pending txids"),
		rpcCommand("sendrawtransaction", "submit a hex-encoded signed transaction", "hex"),
		rpcCommandWithOptional("generatetoaddress", "mine n blocks synchronously (local-test)", []string{"count", "address"}, []string{"referrer"}),
		rpcCommand("start_mining", "begin continuous mining", "address", "threads"),
		rpcCommand("stop_mining", "halt continuous mining"),
		rpcCommand("getpeerinfo", "connected peer list"),
		rpcCommand("addnode", "add a peer by ip:port", "addr"),
		rpcCommand("getnetworkhashrate", "this node's reported hashrate"),
		rpcCommand("stop", "request node shutdown"),
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error: %v", err))
		os.Exit(1)
	}
}

func rpcCommand(method, usage string, argNames ...string) cli.Command {
	return rpcCommandWithOptional(method, usage, argNames, nil)
}

// rpcCommandWithOptional is rpcCommand plus a trailing run of optional
// arguments (e.g. generatetoaddress's optional referrer), each sent to the
// façade as an empty string when the caller omits it.
func rpcCommandWithOptional(method, usage string, argNames, optionalArgNames []string) cli.Command {
	return cli.Command{
		Name:      method,
		Usage:     usage,
		ArgsUsage: argsUsage(argNames) + optionalArgsUsage(optionalArgNames),
		Action: func(ctx *cli.Context) error {
			min, max := len(argNames), len(argNames)+len(optionalArgNames)
			if ctx.NArg() < min || ctx.NArg() > max {
				return fmt.Errorf("%s expects %d-%d argument(s): %s", method, min, max, argsUsage(argNames)+optionalArgsUsage(optionalArgNames))
			}
			params := make([]interface{}, max)
			for i := range params {
				params[i] = ctx.Args().Get(i) // "" for any omitted optional argument
			}
			return call(ctx, method, params)
		},
	}
}

func argsUsage(names []string) string {
	s := ""
	for i, n := range names {
		if i > 0 {
			s += " "
		}
		s += "<" + n + ">"
	}
	return s
}

func optionalArgsUsage(names []string) string {
	s := ""
	for _, n := range names {
		s += " [" + n + "]"
	}
	return s
}

func call(ctx *cli.Context, method string, params []interface{}) error {
	dataDir := ctx.GlobalString(dataDirFlag.Name)
	token, err := os.ReadFile(filepath.Join(dataDir, ".cookie"))
	if err != nil {
		return fmt.Errorf("reading auth cookie: %w (is knotcoind running with --datadir %s?)", err, dataDir)
	}

	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, ctx.GlobalString(rpcURLFlag.Name), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+string(token))

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("contacting façade: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	var parsed rpcResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		// the façade is out of scope for this module; print raw on any
		// shape mismatch rather than failing the whole call.
		fmt.Println(string(raw))
		return nil
	}
	if parsed.Error != nil {
		return fmt.Errorf("rpc error %d: %s", parsed.Error.Code, parsed.Error.Message)
	}
	pretty, err := json.MarshalIndent(parsed.Result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(pretty))
	return nil
}
