// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package examples

import (
	"fmt"

	"github.com/Fantom-foundation/evm-runner/go/host"
	"github.com/Fantom-foundation/evm-runner/go/runner"
	"github.com/Fantom-foundation/evm-runner/go/tosca"
)

// Example is an executable description of a contract and an entry point with
// a (int)->int signature.
type Example struct {
	Name      string
	code      []byte        // the runtime code of the contract
	function  uint32        // identifier of the function in the contract to be called
	reference func(int) int // a reference function computing the same function
}

// GetAllExamples lists the examples usable for tests and benchmarks.
func GetAllExamples() []Example {
	return []Example{
		GetArithmeticExample(),
		GetGasBurnerExample(),
		GetSha3Example(),
		GetStaticOverheadExample(),
	}
}

type Result struct {
	Result   int
	BurntGas host.Gas
	UsedGas  host.Gas
}

// Instance is an example deployed into an in-memory host store.
type Instance struct {
	example     *Example
	ext         *host.MemoryExternal
	config      host.Config
	interpreter tosca.Interpreter
	address     tosca.Address
}

const (
	exampleAccount  host.AccountID = "evm"
	exampleSignerID host.AccountID = "alice"
	examplePrepaid  host.Gas       = 300_000_000_000_000
)

// Deploy installs the code of this example in a fresh store using the given
// interpreter for all subsequent calls.
func (e *Example) Deploy(interpreter tosca.Interpreter) (*Instance, error) {
	instance := &Instance{
		example:     e,
		ext:         host.NewMemoryExternal(),
		config:      host.DefaultConfig(),
		interpreter: interpreter,
	}
	outcome, err := instance.run("deploy_code", DeploymentCode(e.code))
	if err != nil {
		return nil, fmt.Errorf("failed to deploy %s: %w", e.Name, err)
	}
	instance.address = tosca.Address(outcome.ReturnData)
	return instance, nil
}

// Address is the address of the deployed contract.
func (i *Instance) Address() tosca.Address {
	return i.address
}

// Call runs the example's entry point with the given argument.
func (i *Instance) Call(argument int) (Result, error) {
	args := runner.CallArgs{
		Address: i.address,
		Input:   encodeArgument(i.example.function, argument),
	}
	outcome, err := i.run("call", args.Encode())
	if err != nil {
		return Result{}, err
	}
	result, err := decodeOutput(outcome.ReturnData)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Result:   result,
		BurntGas: outcome.BurntGas,
		UsedGas:  outcome.UsedGas,
	}, nil
}

func (i *Instance) run(method string, args []byte) (*runner.Outcome, error) {
	ctx := host.Context{
		AccountID:     exampleAccount,
		SignerID:      exampleSignerID,
		PredecessorID: exampleSignerID,
		PrepaidGas:    examplePrepaid,
	}
	return runner.Run(i.ext, &ctx, &i.config, i.interpreter, method, args)
}

// RunReference runs the reference function of this example to produce the
// expected result.
func (e *Example) RunReference(argument int) int {
	return e.reference(argument)
}

// DeploymentCode wraps runtime code into init code returning it.
func DeploymentCode(runtime []byte) []byte {
	const headerSize = 14
	size := len(runtime)
	// CODECOPY(0, headerSize, size) followed by RETURN(0, size)
	code := []byte{
		0x61, byte(size >> 8), byte(size),
		0x60, headerSize,
		0x60, 0x00,
		0x39,
		0x61, byte(size >> 8), byte(size),
		0x60, 0x00,
		0xf3,
	}
	return append(code, runtime...)
}

func encodeArgument(function uint32, arg int) []byte {
	// see details of argument encoding: t.ly/kBl6
	data := make([]byte, 4+32) // parameter is padded up to 32 bytes

	// encode function selector in big-endian format
	data[0] = byte(function >> 24)
	data[1] = byte(function >> 16)
	data[2] = byte(function >> 8)
	data[3] = byte(function)

	// encode argument as a big-endian value
	data[4+28] = byte(arg >> 24)
	data[5+28] = byte(arg >> 16)
	data[6+28] = byte(arg >> 8)
	data[7+28] = byte(arg)

	return data
}

func decodeOutput(output []byte) (int, error) {
	if len(output) != 32 {
		return 0, fmt.Errorf("unexpected length of output; wanted 32, got %d", len(output))
	}
	return (int(output[28]) << 24) | (int(output[29]) << 16) | (int(output[30]) << 8) | (int(output[31]) << 0), nil
}
