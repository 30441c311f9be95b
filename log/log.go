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

// Package log is a minimal structured, leveled, module-scoped logger in the
// spirit of klaytn/go-ethereum's log15-derived logger: one colorized
// single-line-per-record writer for terminals, key/value context chaining
// via NewWith, and one logger per module fetched through NewModuleLogger.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/go-stack/stack"
	"github.com/mattn/go-colorable"
)

type Lvl int

const (
	LvlCrit Lvl = iota
	LvlError
	LvlWarn
	LvlInfo
	LvlDebug
)

func (l Lvl) String() string {
	switch l {
	case LvlCrit:
		return "CRIT"
	case LvlError:
		return "ERROR"
	case LvlWarn:
		return "WARN"
	case LvlInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}

var levelColor = map[Lvl]*color.Color{
	LvlCrit:  color.New(color.FgHiRed, color.Bold),
	LvlError: color.New(color.FgRed),
	LvlWarn:  color.New(color.FgYellow),
	LvlInfo:  color.New(color.FgGreen),
	LvlDebug: color.New(color.FgCyan),
}

// Module identifies a subsystem for NewModuleLogger, mirroring klaytn's
// log.StorageDatabase / log.Common constants.
type Module string

const (
	Storage    Module = "storage"
	Blockchain Module = "blockchain"
	Consensus  Module = "consensus"
	Mempool    Module = "mempool"
	P2P        Module = "p2p"
	Work       Module = "work"
	Node       Module = "node"
	Common     Module = "common"
	RPC        Module = "rpc"
)

var (
	root   = &logger{out: colorable.NewColorableStdout(), lvl: LvlInfo}
	rootMu sync.Mutex
)

// SetLevel sets the global minimum level emitted by every logger.
func SetLevel(l Lvl) {
	rootMu.Lock()
	defer rootMu.Unlock()
	root.lvl = l
}

// SetOutput redirects every logger's output, used by tests to capture logs.
func SetOutput(w io.Writer) {
	rootMu.Lock()
	defer rootMu.Unlock()
	root.out = w
}

type Logger interface {
	Debug(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
	Crit(msg string, ctx ...interface{})
	NewWith(ctx ...interface{}) Logger
}

type logger struct {
	out    io.Writer
	lvl    Lvl
	module Module
	ctx    []interface{}
}

// NewModuleLogger returns the logger scoped to a subsystem, e.g.:
//
//	var logger = log.NewModuleLogger(log.Storage)
func NewModuleLogger(m Module) Logger {
	return &logger{out: root.out, lvl: root.lvl, module: m}
}

func (l *logger) NewWith(ctx ...interface{}) Logger {
	nctx := make([]interface{}, 0, len(l.ctx)+len(ctx))
	nctx = append(nctx, l.ctx...)
	nctx = append(nctx, ctx...)
	return &logger{out: l.out, lvl: l.lvl, module: l.module, ctx: nctx}
}

func (l *logger) write(lvl Lvl, msg string, ctx []interface{}) {
	rootMu.Lock()
	out, min := root.out, root.lvl
	rootMu.Unlock()
	if out == nil {
		out = l.out
	}
	if lvl > min {
		return
	}

	var b strings.Builder
	c := levelColor[lvl]
	fmt.Fprintf(&b, "%s ", time.Now().Format("2006-01-02T15:04:05.000"))
	b.WriteString(c.Sprintf("%-5s", lvl.String()))
	if l.module != "" {
		fmt.Fprintf(&b, " [%s]", l.module)
	}
	fmt.Fprintf(&b, " %s", msg)

	all := make([]interface{}, 0, len(l.ctx)+len(ctx))
	all = append(all, l.ctx...)
	all = append(all, ctx...)
	for i := 0; i+1 < len(all); i += 2 {
		fmt.Fprintf(&b, " %v=%v", all[i], all[i+1])
	}
	b.WriteString("\n")
	io.WriteString(out, b.String())
}

func (l *logger) Debug(msg string, ctx ...interface{}) { l.write(LvlDebug, msg, ctx) }
func (l *logger) Info(msg string, ctx ...interface{})  { l.write(LvlInfo, msg, ctx) }
func (l *logger) Warn(msg string, ctx ...interface{})  { l.write(LvlWarn, msg, ctx) }
func (l *logger) Error(msg string, ctx ...interface{}) { l.write(LvlError, msg, ctx) }

// Crit logs at the fatal level and terminates the process, matching
// klaytn's logger.Crit semantics (used for unrecoverable startup failures).
func (l *logger) Crit(msg string, ctx ...interface{}) {
	l.write(LvlCrit, msg, ctx)
	os.Exit(1)
}

// CallerInfo returns a short file:line string for the caller skip frames
// above its own caller (skip 0 is the immediate caller).
func CallerInfo(skip int) string {
	c := stack.Caller(skip + 1)
	return fmt.Sprintf("%+v", c)
}
