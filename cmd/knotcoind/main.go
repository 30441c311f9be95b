// Copyright 2018 The klaytn Authors
// Copyright 2016 The go-ethereum Authors
// This file is part of go-ethereum.
//
// go-ethereum is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// go-ethereum is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with go-ethereum. If not, see <http://www.gnu.org/licenses/>.
//
// This file is derived from cmd/kcn/main.go (2018/06/04).
// Modified and improved for knotcoin development.

// Command knotcoind is the node daemon: it wires the chain store, the
// mempool, the miner and the P2P node together and runs until asked to
// stop. The JSON-RPC transport itself is out of scope (spec.md §1); this
// binary only builds and holds open the Backend a façade process would
// attach to.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli"

	"github.com/knotcoin/knotcoin/blockchain"
	"github.com/knotcoin/knotcoin/config"
	"github.com/knotcoin/knotcoin/crypto"
	"github.com/knotcoin/knotcoin/log"
	"github.com/knotcoin/knotcoin/mempool"
	"github.com/knotcoin/knotcoin/networks/p2p"
	"github.com/knotcoin/knotcoin/rpc"
	"github.com/knotcoin/knotcoin/storage/database"
	"github.com/knotcoin/knotcoin/work"
)

var logger = log.NewModuleLogger(log.Node)

// mainnetGenesisTimestamp is the fixed height-0 timestamp every mainnet
// node must agree on (spec.md §6 "Genesis"): 2024-01-01T00:00:00Z.
const mainnetGenesisTimestamp uint32 = 1704067200

var (
	dataDirFlag = cli.StringFlag{
		Name:  "datadir",
		Usage: "Data directory for the chain store, peer list and cookie file",
		Value: config.DefaultConfig.DataDir,
	}
	p2pBindFlag = cli.StringFlag{
		Name:  "p2p.bind",
		Usage: "P2P listen address",
		Value: config.DefaultConfig.P2PBindAddr,
	}
	p2pPortFlag = cli.IntFlag{
		Name:  "p2p.port",
		Usage: "P2P listen port",
		Value: config.DefaultConfig.P2PPort,
	}
	rpcPortFlag = cli.IntFlag{
		Name:  "rpc.port",
		Usage: "RPC port advertised to the (out-of-scope) façade process",
		Value: config.DefaultConfig.RPCPort,
	}
	localTestFlag = cli.BoolFlag{
		Name:  "localtest",
		Usage: "Permit private-IP peers, for local multi-node testing",
	}
	genesisMinerFlag = cli.StringFlag{
		Name:  "genesis.miner",
		Usage: "KOT1... address credited by the genesis block (required on first run)",
	}
	mineFlag = cli.StringFlag{
		Name:  "mine",
		Usage: "KOT1... address to mine to; if set, mining starts immediately",
	}
	minerThreadsFlag = cli.IntFlag{
		Name:  "miner.threads",
		Usage: "Number of mining worker threads",
		Value: 1,
	}
	dumpConfigFlag = cli.BoolFlag{
		Name:  "dumpconfig",
		Usage: "Write the resolved configuration to config.toml and exit",
	}
)

func main() {
	app := cli.NewApp()
	app.Name = "knotcoind"
	app.Usage = "the Knotcoin consensus node"
	app.Flags = []cli.Flag{
		dataDirFlag, p2pBindFlag, p2pPortFlag, rpcPortFlag,
		localTestFlag, genesisMinerFlag, mineFlag, minerThreadsFlag, dumpConfigFlag,
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func printBanner() {
	c := color.New(color.FgHiGreen, color.Bold)
	c.Println(`
   _  __             _               _
  | |/ /_ __   ___  | |_ ___ ___ (_) _ __
  | ' /| '_ \ / _ \ | __/ __/ _ \| || '_ \
  | . \| | | | (_) || || (_| (_) | || | | |
  |_|\_\_| |_|\___/  \__\___\___/|_||_| |_|
`)
	color.New(color.FgHiBlack).Println("  permissionless post-quantum proof-of-work")
}

func run(ctx *cli.Context) error {
	printBanner()

	dataDir := ctx.String(dataDirFlag.Name)
	cfg, err := config.Load(dataDir)
	if err != nil {
		logger.Crit("failed to load configuration", "err", err)
	}
	if ctx.IsSet(p2pBindFlag.Name) {
		cfg.P2PBindAddr = ctx.String(p2pBindFlag.Name)
	}
	if ctx.IsSet(p2pPortFlag.Name) {
		cfg.P2PPort = ctx.Int(p2pPortFlag.Name)
	}
	if ctx.IsSet(rpcPortFlag.Name) {
		cfg.RPCPort = ctx.Int(rpcPortFlag.Name)
	}
	if ctx.IsSet(localTestFlag.Name) {
		cfg.LocalTest = ctx.Bool(localTestFlag.Name)
	}
	cfg.RPCBindAddr = "127.0.0.1" // never externally configurable, spec.md §6

	if ctx.Bool(dumpConfigFlag.Name) {
		if err := cfg.Save(); err != nil {
			return err
		}
		logger.Info("wrote configuration", "path", cfg.ConfigFile())
		return nil
	}

	db, err := database.NewBadgerDBManager(cfg.ChainDataDir())
	if err != nil {
		logger.Crit("failed to open chain store", "err", err)
	}
	defer db.Close()

	if _, ok, err := db.GetTip(); err != nil {
		logger.Crit("failed to read chain tip", "err", err)
	} else if !ok {
		minerText := ctx.String(genesisMinerFlag.Name)
		if minerText == "" {
			return fmt.Errorf("knotcoind: --%s is required on first run (no genesis applied yet)", genesisMinerFlag.Name)
		}
		minerAddr, err := crypto.DecodeAddress(minerText)
		if err != nil {
			return fmt.Errorf("knotcoind: malformed --%s: %w", genesisMinerFlag.Name, err)
		}
		genesisBlock, err := blockchain.BuildGenesisBlock(blockchain.GenesisConfig{
			Timestamp:        mainnetGenesisTimestamp,
			DifficultyTarget: blockchain.MaximumEasyTarget,
			MinerAddress:     minerAddr,
		})
		if err != nil {
			logger.Crit("refusing to start: invalid genesis configuration", "err", err)
		}
		if err := blockchain.ApplyGenesis(db, genesisBlock); err != nil {
			logger.Crit("failed to apply genesis block", "err", err)
		}
		logger.Info("genesis block applied", "hash", genesisBlock.Hash().Hex(), "miner", minerAddr.Hex())
	}

	pool := mempool.New()
	go prunePeriodically(pool)

	node := p2p.New(p2p.Config{
		BindAddr:       cfg.P2PBindAddr,
		Port:           cfg.P2PPort,
		BootstrapSeeds: cfg.BootstrapSeeds,
		LocalTest:      cfg.LocalTest,
		PeersFile:      cfg.PeersFile(),
	}, db, pool)
	if err := node.Start(); err != nil {
		logger.Crit("failed to start P2P node", "err", err)
	}
	defer node.Stop()

	miner := work.NewMiner(db, pool)
	if mineTo := ctx.String(mineFlag.Name); mineTo != "" {
		minerAddr, err := crypto.DecodeAddress(mineTo)
		if err != nil {
			return fmt.Errorf("knotcoind: malformed --%s: %w", mineFlag.Name, err)
		}
		if err := miner.Start(minerAddr, ctx.Int(minerThreadsFlag.Name), nil); err != nil {
			logger.Crit("failed to start mining", "err", err)
		}
	}
	defer miner.Stop()

	cookie, err := cfg.EnsureCookie()
	if err != nil {
		logger.Crit("failed to provision RPC cookie", "err", err)
	}
	backend := rpc.NewBackend(db, pool, miner, node, cookie)
	_ = backend // held open for an out-of-scope JSON-RPC façade to attach to

	logger.Info("knotcoind started",
		"data_dir", cfg.DataDir, "p2p", fmt.Sprintf("%s:%d", cfg.P2PBindAddr, cfg.P2PPort))

	waitForShutdown()
	logger.Info("knotcoind shutting down")
	return nil
}

func prunePeriodically(pool *mempool.Pool) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		pool.PruneExpired(2 * time.Hour)
	}
}

func waitForShutdown() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
}
