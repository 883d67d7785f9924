// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package host

import (
	"bytes"
	"fmt"
	"os"

	"github.com/Fantom-foundation/evm-runner/go/tosca"
	"github.com/holiman/uint256"
	"github.com/pelletier/go-toml/v2"
)

// Fee is the cost of a host action. The send part is charged when the
// action is emitted, split by whether sender and receiver are the same
// account (sir), the execution part when it is applied.
type Fee struct {
	SendSir    Gas
	SendNotSir Gas
	Execution  Gas
}

func (f Fee) SendFee(sir bool) Gas {
	if sir {
		return f.SendSir
	}
	return f.SendNotSir
}

func (f Fee) ExecFee() Gas {
	return f.Execution
}

// Fees lists the costs of the host actions the runner may request.
type Fees struct {
	ActionReceiptCreation   Fee
	DataReceiptCreationBase Fee
	Transfer                Fee
	CreateAccount           Fee
}

// Config summarizes the tunable parameters of the runner.
type Config struct {
	// MaxGasBurnt is the burnt gas ceiling of state changing invocations.
	MaxGasBurnt Gas
	// MaxGasBurntView is the burnt gas ceiling of view invocations.
	MaxGasBurntView Gas
	// EvmGasCost is the price of a single unit of EVM gas in host gas.
	EvmGasCost Gas
	// MaxEvmGas caps the gas handed to the interpreter per invocation.
	MaxEvmGas uint64
	// StorageRecordOverhead is the storage usage charged per record on top of
	// its key and value.
	StorageRecordOverhead uint64

	// EvmDeposit is the minimum deposit required to create a sub-account.
	EvmDeposit uint256.Int

	ChainID       uint64
	DomainName    string
	DomainVersion string
	Revision      tosca.Revision

	Fees Fees
}

// DefaultConfig returns the parameters used unless configured otherwise.
func DefaultConfig() Config {
	return Config{
		MaxGasBurnt:           200_000_000_000_000,
		MaxGasBurntView:       300_000_000_000_000,
		EvmGasCost:            1_000,
		MaxEvmGas:             30_000_000,
		StorageRecordOverhead: 40,
		EvmDeposit:            *uint256.NewInt(0),
		ChainID:               0x4e454152,
		DomainName:            "NEAR",
		DomainVersion:         "1",
		Revision:              tosca.R13_Cancun,
		Fees: Fees{
			ActionReceiptCreation:   Fee{108_059_500_000, 108_059_500_000, 108_059_500_000},
			DataReceiptCreationBase: Fee{4_697_339_419_375, 4_697_339_419_375, 4_697_339_419_375},
			Transfer:                Fee{115_123_062_500, 115_123_062_500, 115_123_062_500},
			CreateAccount:           Fee{99_607_375_000, 99_607_375_000, 99_607_375_000},
		},
	}
}

// ParseConfig reads a TOML document on top of the default configuration.
// Unknown keys are rejected.
func ParseConfig(data []byte) (Config, error) {
	config := DefaultConfig()
	decoder := toml.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&config); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

// LoadConfig reads a TOML configuration file. See ParseConfig.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read configuration: %w", err)
	}
	return ParseConfig(data)
}

// Validate checks the internal consistency of the configuration.
func (c *Config) Validate() error {
	if c.EvmGasCost == 0 {
		return fmt.Errorf("invalid configuration: EvmGasCost must be positive")
	}
	if c.MaxGasBurnt == 0 || c.MaxGasBurntView == 0 {
		return fmt.Errorf("invalid configuration: gas ceilings must be positive")
	}
	if c.Revision < tosca.R07_Istanbul || c.Revision > tosca.R13_Cancun {
		return fmt.Errorf("invalid configuration: unsupported revision %v", c.Revision)
	}
	return nil
}
