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
	"errors"
	"fmt"
	"time"

	"github.com/Fantom-foundation/evm-runner/go/host"
	"github.com/Fantom-foundation/evm-runner/go/runner"
	"github.com/Fantom-foundation/evm-runner/go/tosca"
	"github.com/dsnet/golib/unitconv"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"
)

// session bundles everything needed to invoke the runner from the command
// line.
type session struct {
	ext         *host.PebbleExternal
	context     host.Context
	config      host.Config
	interpreter tosca.Interpreter
}

func openSession(context *cli.Context) (*session, error) {
	config, err := ConfigFlag.Fetch(context)
	if err != nil {
		return nil, err
	}
	interpreter, err := tosca.NewInterpreter(InterpreterFlag.Fetch(context))
	if err != nil {
		return nil, fmt.Errorf("%w, use one of %v", err, tosca.GetRegisteredInterpreterNames())
	}
	hostContext, err := hostContextFromFlags(context)
	if err != nil {
		return nil, err
	}
	ext, err := host.OpenPebbleExternal(DataDirFlag.Fetch(context))
	if err != nil {
		return nil, err
	}
	return &session{
		ext:         ext,
		context:     hostContext,
		config:      config,
		interpreter: interpreter,
	}, nil
}

func hostContextFromFlags(context *cli.Context) (host.Context, error) {
	account, err := AccountFlag.Fetch(context)
	if err != nil {
		return host.Context{}, err
	}
	signer, err := SignerFlag.Fetch(context)
	if err != nil {
		return host.Context{}, err
	}
	predecessor := signer
	if context.IsSet(PredecessorFlag.Name) {
		if predecessor, err = PredecessorFlag.Fetch(context); err != nil {
			return host.Context{}, err
		}
	}
	amount, err := AmountFlag.Fetch(context)
	if err != nil {
		return host.Context{}, err
	}
	deposit, err := DepositFlag.Fetch(context)
	if err != nil {
		return host.Context{}, err
	}
	return host.Context{
		AccountID:       account,
		SignerID:        signer,
		PredecessorID:   predecessor,
		CurrentAmount:   amount,
		AttachedDeposit: deposit,
		PrepaidGas:      GasFlag.Fetch(context),
		Timestamp:       uint64(time.Now().UnixNano()),
	}, nil
}

// run invokes the given method. The modifications of a successful
// invocation are written to the database, those of a failed one dropped.
func (s *session) run(method string, args []byte) (*runner.Outcome, error) {
	parsed, err := runner.ParseMethod(method)
	if err != nil {
		return nil, err
	}
	context := s.context
	context.IsView = parsed.IsView()
	outcome, err := runner.Run(s.ext, &context, &s.config, s.interpreter, method, args)
	if err != nil {
		if discardErr := s.ext.Discard(); discardErr != nil {
			log.Error("Failed to discard modifications", "err", discardErr)
		}
		return nil, err
	}
	for _, receipt := range s.ext.Receipts() {
		log.Info("Created receipt", "receiver", receipt.Receiver, "actions", len(receipt.Actions))
	}
	return outcome, s.ext.Flush()
}

func (s *session) close() error {
	return s.ext.Close()
}

// withSession opens a session for the duration of the given action.
func withSession(context *cli.Context, action func(*session) error) (err error) {
	s, err := openSession(context)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, s.close())
	}()
	return action(s)
}

func printOutcome(context *cli.Context, outcome *runner.Outcome) {
	out := context.App.Writer
	fmt.Fprintf(out, "result:  %s\n", hexutil.Encode(outcome.ReturnData))
	fmt.Fprintf(out, "balance: %s\n", outcome.Balance.Dec())
	fmt.Fprintf(out, "storage: %d\n", outcome.StorageUsage)
	fmt.Fprintf(out, "burnt:   %d (%sgas)\n", outcome.BurntGas, formatGas(outcome.BurntGas))
	fmt.Fprintf(out, "used:    %d (%sgas)\n", outcome.UsedGas, formatGas(outcome.UsedGas))
	for _, entry := range outcome.Logs {
		fmt.Fprintf(out, "log:     %v topics=%v data=%s\n", entry.Address, entry.Topics, hexutil.Encode(entry.Data))
	}
}

func formatGas(gas host.Gas) string {
	return unitconv.FormatPrefix(float64(gas), unitconv.SI, 2)
}
