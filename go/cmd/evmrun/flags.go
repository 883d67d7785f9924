// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package main

import (
	"fmt"

	"github.com/Fantom-foundation/evm-runner/go/host"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
	"github.com/urfave/cli/v2"
)

type dataDirFlagType struct {
	cli.PathFlag
}

var DataDirFlag = &dataDirFlagType{
	cli.PathFlag{
		Name:  "datadir",
		Usage: "directory of the host storage database",
		Value: "evmrun-data",
	},
}

func (f *dataDirFlagType) Fetch(context *cli.Context) string {
	return context.Path(f.Name)
}

type configFlagType struct {
	cli.PathFlag
}

var ConfigFlag = &configFlagType{
	cli.PathFlag{
		Name:      "config",
		Usage:     "TOML file overriding the default runner configuration",
		TakesFile: true,
	},
}

// Fetch loads the configuration file if one was named, and the default
// configuration otherwise.
func (f *configFlagType) Fetch(context *cli.Context) (host.Config, error) {
	path := context.Path(f.Name)
	if path == "" {
		return host.DefaultConfig(), nil
	}
	return host.LoadConfig(path)
}

type interpreterFlagType struct {
	cli.StringFlag
}

var InterpreterFlag = &interpreterFlagType{
	cli.StringFlag{
		Name:    "interpreter",
		Aliases: []string{"i"},
		Usage:   "name of the registered interpreter executing contract code",
		Value:   "geth",
	},
}

func (f *interpreterFlagType) Fetch(context *cli.Context) string {
	return context.String(f.Name)
}

type accountIDFlagType struct {
	cli.StringFlag
}

func (f *accountIDFlagType) Fetch(context *cli.Context) (host.AccountID, error) {
	id := host.AccountID(context.String(f.Name))
	if !host.IsValidAccountID(id) {
		return "", fmt.Errorf("invalid account id for --%s: %q", f.Name, id)
	}
	return id, nil
}

var AccountFlag = &accountIDFlagType{
	cli.StringFlag{
		Name:  "account",
		Usage: "host account holding the EVM state",
		Value: "evm",
	},
}

var SignerFlag = &accountIDFlagType{
	cli.StringFlag{
		Name:  "signer",
		Usage: "host account signing the invocation",
		Value: "alice",
	},
}

var PredecessorFlag = &accountIDFlagType{
	cli.StringFlag{
		Name:  "predecessor",
		Usage: "host account invoking the runner, defaults to the signer",
	},
}

type amountFlagType struct {
	cli.StringFlag
}

func (f *amountFlagType) Fetch(context *cli.Context) (uint256.Int, error) {
	amount, err := uint256.FromDecimal(context.String(f.Name))
	if err != nil {
		return uint256.Int{}, fmt.Errorf("invalid amount for --%s: %w", f.Name, err)
	}
	return *amount, nil
}

var AmountFlag = &amountFlagType{
	cli.StringFlag{
		Name:  "amount",
		Usage: "liquid balance of the hosting account, in decimal",
		Value: "0",
	},
}

var DepositFlag = &amountFlagType{
	cli.StringFlag{
		Name:  "deposit",
		Usage: "amount attached to the invocation, in decimal",
		Value: "0",
	},
}

type gasFlagType struct {
	cli.Uint64Flag
}

var GasFlag = &gasFlagType{
	cli.Uint64Flag{
		Name:  "gas",
		Usage: "host gas prepaid for the invocation",
		Value: 300_000_000_000_000,
	},
}

func (f *gasFlagType) Fetch(context *cli.Context) host.Gas {
	return context.Uint64(f.Name)
}

type verbosityFlagType struct {
	cli.IntFlag
}

var VerbosityFlag = &verbosityFlagType{
	cli.IntFlag{
		Name:    "verbosity",
		Aliases: []string{"v"},
		Usage:   "log level: 0=crit, 1=error, 2=warn, 3=info, 4=debug, 5=trace",
		Value:   2,
	},
}

func (f *verbosityFlagType) Fetch(context *cli.Context) int {
	return context.Int(f.Name)
}

func setupLogging(context *cli.Context) error {
	level := log.FromLegacyLevel(VerbosityFlag.Fetch(context))
	handler := log.NewTerminalHandlerWithLevel(context.App.ErrWriter, level, false)
	log.SetDefault(log.NewLogger(handler))
	return nil
}
