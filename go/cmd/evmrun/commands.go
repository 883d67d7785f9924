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
	"github.com/Fantom-foundation/evm-runner/go/runner"
	"github.com/Fantom-foundation/evm-runner/go/tosca"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/asm"
	"github.com/urfave/cli/v2"
)

var RunCmd = cli.Command{
	Action:    doRun,
	Name:      "run",
	Usage:     "Invoke any runner method with hex encoded arguments",
	ArgsUsage: "<method> [hex-args]",
}

func doRun(context *cli.Context) error {
	if context.NArg() < 1 || context.NArg() > 2 {
		return fmt.Errorf("expected a method name and optional arguments")
	}
	args, err := parseHex(context.Args().Get(1))
	if err != nil {
		return err
	}
	return runAndPrint(context, context.Args().First(), args)
}

var DeployCmd = cli.Command{
	Action:    doDeploy,
	Name:      "deploy",
	Usage:     "Deploy a contract from hex encoded init code",
	ArgsUsage: "<hex-code>",
}

func doDeploy(context *cli.Context) error {
	if context.NArg() != 1 {
		return fmt.Errorf("expected init code")
	}
	code, err := parseHex(context.Args().First())
	if err != nil {
		return err
	}
	return runAndPrint(context, runner.MethodDeployCode.String(), code)
}

var CallCmd = cli.Command{
	Action:    doCall,
	Name:      "call",
	Usage:     "Call a contract on behalf of the predecessor",
	ArgsUsage: "<address> [hex-input]",
}

func doCall(context *cli.Context) error {
	if context.NArg() < 1 || context.NArg() > 2 {
		return fmt.Errorf("expected an address and optional input")
	}
	address, err := parseAddress(context.Args().First())
	if err != nil {
		return err
	}
	input, err := parseHex(context.Args().Get(1))
	if err != nil {
		return err
	}
	args := runner.CallArgs{Address: address, Input: input}
	return runAndPrint(context, runner.MethodCall.String(), args.Encode())
}

var viewSenderFlag = &cli.StringFlag{
	Name:  "sender",
	Usage: "hex address the view call is issued from",
	Value: "0x0000000000000000000000000000000000000000",
}

var viewAmountFlag = &amountFlagType{
	cli.StringFlag{
		Name:  "value",
		Usage: "value transferred by the view call, in decimal",
		Value: "0",
	},
}

var ViewCmd = cli.Command{
	Action:    doView,
	Name:      "view",
	Usage:     "Call a contract without persisting any modification",
	ArgsUsage: "<address> [hex-input]",
	Flags: []cli.Flag{
		viewSenderFlag,
		viewAmountFlag,
	},
}

func doView(context *cli.Context) error {
	if context.NArg() < 1 || context.NArg() > 2 {
		return fmt.Errorf("expected an address and optional input")
	}
	sender, err := parseAddress(context.String(viewSenderFlag.Name))
	if err != nil {
		return err
	}
	address, err := parseAddress(context.Args().First())
	if err != nil {
		return err
	}
	input, err := parseHex(context.Args().Get(1))
	if err != nil {
		return err
	}
	amount, err := viewAmountFlag.Fetch(context)
	if err != nil {
		return err
	}
	args := runner.ViewCallArgs{Sender: sender, Address: address, Amount: amount, Input: input}
	return runAndPrint(context, runner.MethodView.String(), args.Encode())
}

func addressQuery(name, usage string, method runner.Method) cli.Command {
	return cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "<address>",
		Action: func(context *cli.Context) error {
			if context.NArg() != 1 {
				return fmt.Errorf("expected an address")
			}
			address, err := parseAddress(context.Args().First())
			if err != nil {
				return err
			}
			return queryAndPrint(context, method, address[:])
		},
	}
}

var BalanceCmd = addressQuery("balance", "Print the balance of an EVM account", runner.MethodGetBalance)

var NonceCmd = addressQuery("nonce", "Print the nonce of an EVM account", runner.MethodGetNonce)

var CodeCmd = addressQuery("code", "Print the code of an EVM account", runner.MethodGetCode)

var StorageCmd = cli.Command{
	Action:    doStorage,
	Name:      "storage",
	Usage:     "Print a storage slot of a contract",
	ArgsUsage: "<address> <hex-key>",
}

func doStorage(context *cli.Context) error {
	if context.NArg() != 2 {
		return fmt.Errorf("expected an address and a key")
	}
	address, err := parseAddress(context.Args().First())
	if err != nil {
		return err
	}
	key, err := parseHex(context.Args().Get(1))
	if err != nil {
		return err
	}
	if len(key) > len(tosca.Key{}) {
		return fmt.Errorf("storage keys have at most %d bytes, got %d", len(tosca.Key{}), len(key))
	}
	args := runner.GetStorageAtArgs{Address: address}
	copy(args.Key[len(args.Key)-len(key):], key)
	return queryAndPrint(context, runner.MethodGetStorageAt, args.Encode())
}

var AddressCmd = cli.Command{
	Action:    doAddress,
	Name:      "address",
	Usage:     "Print the EVM address of a host account",
	ArgsUsage: "<account-id>",
}

func doAddress(context *cli.Context) error {
	if context.NArg() != 1 {
		return fmt.Errorf("expected an account id")
	}
	id := host.AccountID(context.Args().First())
	if !host.IsValidAccountID(id) {
		return fmt.Errorf("invalid account id: %q", id)
	}
	fmt.Fprintln(context.App.Writer, runner.AccountIDToAddress(id))
	return nil
}

var InterpretersCmd = cli.Command{
	Action: doInterpreters,
	Name:   "interpreters",
	Usage:  "List the names of all registered interpreters",
}

func doInterpreters(context *cli.Context) error {
	for _, name := range tosca.GetRegisteredInterpreterNames() {
		fmt.Fprintln(context.App.Writer, name)
	}
	return nil
}

var DisasmCmd = cli.Command{
	Action:    doDisasm,
	Name:      "disasm",
	Usage:     "Print the instructions of hex encoded code",
	ArgsUsage: "<hex-code>",
}

func doDisasm(context *cli.Context) error {
	if context.NArg() != 1 {
		return fmt.Errorf("expected code")
	}
	code, err := parseHex(context.Args().First())
	if err != nil {
		return err
	}
	it := asm.NewInstructionIterator(code)
	for it.Next() {
		if len(it.Arg()) > 0 {
			fmt.Fprintf(context.App.Writer, "%05x: %v %#x\n", it.PC(), it.Op(), it.Arg())
		} else {
			fmt.Fprintf(context.App.Writer, "%05x: %v\n", it.PC(), it.Op())
		}
	}
	return it.Error()
}

func runAndPrint(context *cli.Context, method string, args []byte) error {
	return withSession(context, func(s *session) error {
		outcome, err := s.run(method, args)
		if err != nil {
			return err
		}
		printOutcome(context, outcome)
		return nil
	})
}

func queryAndPrint(context *cli.Context, method runner.Method, args []byte) error {
	return withSession(context, func(s *session) error {
		outcome, err := s.run(method.String(), args)
		if err != nil {
			return err
		}
		if method == runner.MethodGetBalance || method == runner.MethodGetNonce {
			var value tosca.Value
			copy(value[:], outcome.ReturnData)
			fmt.Fprintln(context.App.Writer, value)
			return nil
		}
		fmt.Fprintln(context.App.Writer, hexutil.Encode(outcome.ReturnData))
		return nil
	})
}

// parseHex decodes hex data with an optional 0x prefix. Empty input yields
// empty data.
func parseHex(data string) ([]byte, error) {
	if data == "" {
		return []byte{}, nil
	}
	if !has0xPrefix(data) {
		data = "0x" + data
	}
	res, err := hexutil.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("invalid hex data %q: %w", data, err)
	}
	return res, nil
}

func parseAddress(data string) (tosca.Address, error) {
	res, err := parseHex(data)
	if err != nil {
		return tosca.Address{}, err
	}
	if len(res) != len(tosca.Address{}) {
		return tosca.Address{}, fmt.Errorf("addresses have %d bytes, got %d", len(tosca.Address{}), len(res))
	}
	return tosca.Address(res), nil
}

func has0xPrefix(data string) bool {
	return len(data) >= 2 && data[0] == '0' && (data[1] == 'x' || data[1] == 'X')
}
