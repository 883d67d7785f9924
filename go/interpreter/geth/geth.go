// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package geth

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/Fantom-foundation/evm-runner/go/tosca"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/stateless"
	"github.com/ethereum/go-ethereum/core/tracing"
	"github.com/ethereum/go-ethereum/core/types"
	geth "github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ethereum/go-ethereum/trie/utils"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/holiman/uint256"
	"golang.org/x/exp/maps"
)

func init() {
	tosca.MustRegisterInterpreterFactory("geth", func(any) (tosca.Interpreter, error) {
		return newGethVm(), nil
	})
}

// Defines the newest supported revision for this interpreter implementation
const newestSupportedRevision = tosca.R13_Cancun

const chainConfigCacheSize = 64

type chainConfigKey struct {
	chainID  tosca.Word
	revision tosca.Revision
}

// gethVm runs contracts using the go-ethereum interpreter. Nested calls are
// handled by the go-ethereum EVM itself, operating on the RunContext through
// an adapter.
type gethVm struct {
	chainConfigs *lru.Cache[chainConfigKey, *params.ChainConfig]
}

func newGethVm() *gethVm {
	cache, err := lru.New[chainConfigKey, *params.ChainConfig](chainConfigCacheSize)
	if err != nil {
		panic(err)
	}
	return &gethVm{chainConfigs: cache}
}

func (m *gethVm) Run(parameters tosca.Parameters) (tosca.Result, error) {
	if parameters.Revision > newestSupportedRevision {
		return tosca.Result{}, &tosca.ErrUnsupportedRevision{Revision: parameters.Revision}
	}
	evm, contract, stateDb := m.createGethInterpreterContext(parameters)

	output, err := evm.Interpreter().Run(contract, parameters.Input, parameters.Static)

	result := tosca.Result{
		Output:    output,
		GasLeft:   tosca.Gas(contract.Gas),
		GasRefund: tosca.Gas(stateDb.refund),
		Success:   true,
	}

	// If no error is reported, the execution ended with a STOP, RETURN, or SELFDESTRUCT.
	if err == nil {
		return result, nil
	}

	// In case of a revert the result should indicate an unsuccessful execution.
	if errors.Is(err, geth.ErrExecutionReverted) {
		result.Success = false
		result.GasRefund = 0
		return result, nil
	}

	// In case of an issue caused by the code execution, the result should indicate
	// a failed execution but no error should be reported.
	if isExecutionFailure(err) {
		return tosca.Result{Success: false}, nil
	}

	// In all other cases an EVM error should be reported.
	return tosca.Result{}, fmt.Errorf("internal EVM error in geth: %v", err)
}

func isExecutionFailure(err error) bool {
	switch {
	case errors.Is(err, geth.ErrOutOfGas),
		errors.Is(err, geth.ErrCodeStoreOutOfGas),
		errors.Is(err, geth.ErrDepth),
		errors.Is(err, geth.ErrInsufficientBalance),
		errors.Is(err, geth.ErrContractAddressCollision),
		errors.Is(err, geth.ErrMaxCodeSizeExceeded),
		errors.Is(err, geth.ErrMaxInitCodeSizeExceeded),
		errors.Is(err, geth.ErrInvalidJump),
		errors.Is(err, geth.ErrWriteProtection),
		errors.Is(err, geth.ErrReturnDataOutOfBounds),
		errors.Is(err, geth.ErrGasUintOverflow),
		errors.Is(err, geth.ErrInvalidCode),
		errors.Is(err, geth.ErrNonceUintOverflow):
		return true
	}
	var stackOverflow *geth.ErrStackOverflow
	var stackUnderflow *geth.ErrStackUnderflow
	var invalidOpCode *geth.ErrInvalidOpCode
	return errors.As(err, &stackOverflow) ||
		errors.As(err, &stackUnderflow) ||
		errors.As(err, &invalidOpCode)
}

// MakeChainConfig returns a chain config for the given chain ID and target
// revision. All forks up to the target revision are active from genesis.
func MakeChainConfig(chainId *big.Int, targetRevision tosca.Revision) params.ChainConfig {
	zero := big.NewInt(0)
	var zeroTime uint64
	chainConfig := params.ChainConfig{
		ChainID:             chainId,
		HomesteadBlock:      zero,
		EIP150Block:         zero,
		EIP155Block:         zero,
		EIP158Block:         zero,
		ByzantiumBlock:      zero,
		ConstantinopleBlock: zero,
		PetersburgBlock:     zero,
		IstanbulBlock:       zero,
		MuirGlacierBlock:    zero,
	}
	if targetRevision >= tosca.R09_Berlin {
		chainConfig.BerlinBlock = zero
	}
	if targetRevision >= tosca.R10_London {
		chainConfig.LondonBlock = zero
		chainConfig.ArrowGlacierBlock = zero
		chainConfig.GrayGlacierBlock = zero
	}
	if targetRevision >= tosca.R11_Paris {
		chainConfig.MergeNetsplitBlock = zero
		chainConfig.TerminalTotalDifficulty = zero
	}
	if targetRevision >= tosca.R12_Shanghai {
		chainConfig.ShanghaiTime = &zeroTime
	}
	if targetRevision >= tosca.R13_Cancun {
		chainConfig.CancunTime = &zeroTime
	}
	return chainConfig
}

func (m *gethVm) chainConfig(chainID tosca.Word, revision tosca.Revision) *params.ChainConfig {
	key := chainConfigKey{chainID: chainID, revision: revision}
	if config, found := m.chainConfigs.Get(key); found {
		return config
	}
	config := MakeChainConfig(new(big.Int).SetBytes(chainID[:]), revision)
	m.chainConfigs.Add(key, &config)
	return &config
}

func (m *gethVm) createGethInterpreterContext(parameters tosca.Parameters) (*geth.EVM, *geth.Contract, *stateDbAdapter) {
	chainConfig := m.chainConfig(parameters.ChainID, parameters.Revision)

	// The host chain offers no access to block hashes.
	getHash := func(uint64) common.Hash {
		return common.Hash{}
	}

	blockCtx := geth.BlockContext{
		BlockNumber: big.NewInt(parameters.BlockNumber),
		Time:        uint64(parameters.Timestamp),
		Difficulty:  big.NewInt(0),
		GasLimit:    uint64(parameters.GasLimit),
		GetHash:     getHash,
		BaseFee:     big.NewInt(0),
		BlobBaseFee: big.NewInt(0),
		Transfer:    transferFunc,
		CanTransfer: canTransferFunc,
	}

	if parameters.Revision >= tosca.R11_Paris {
		// Setting the random signals to geth that a post-merge (Paris) revision should be utilized.
		blockCtx.Random = &common.Hash{}
	}

	txCtx := geth.TxContext{
		Origin:     common.Address(parameters.Origin),
		GasPrice:   parameters.GasPrice.ToBig(),
		BlobFeeCap: big.NewInt(0),
	}

	stateDb := NewStateDbAdapter(parameters.Context)
	if parameters.Kind == tosca.Create || parameters.Kind == tosca.Create2 {
		stateDb.CreateContract(common.Address(parameters.Recipient))
	}
	evm := geth.NewEVM(blockCtx, txCtx, stateDb, chainConfig, geth.Config{})

	rules := chainConfig.Rules(blockCtx.BlockNumber, blockCtx.Random != nil, blockCtx.Time)
	recipient := common.Address(parameters.Recipient)
	stateDb.Prepare(rules, common.Address(parameters.Sender), common.Address{}, &recipient, geth.ActivePrecompiles(rules), nil)

	value := parameters.Value.ToUint256()
	addr := geth.AccountRef(parameters.Recipient)
	contract := geth.NewContract(geth.AccountRef(parameters.Sender), addr, value, uint64(parameters.Gas))
	contract.Code = parameters.Code
	if parameters.CodeHash != nil {
		contract.CodeHash = common.Hash(*parameters.CodeHash)
	} else {
		contract.CodeHash = crypto.Keccak256Hash(parameters.Code)
	}
	contract.CodeAddr = &recipient
	contract.Input = parameters.Input

	return evm, contract, stateDb
}

// --- Adapter ---

func transferFunc(stateDB geth.StateDB, callerAddress common.Address, to common.Address, value *uint256.Int) {
	stateDB.SubBalance(callerAddress, value, tracing.BalanceChangeTransfer)
	stateDB.AddBalance(to, value, tracing.BalanceChangeTransfer)
}

func canTransferFunc(stateDB geth.StateDB, callerAddress common.Address, value *uint256.Int) bool {
	return stateDB.GetBalance(callerAddress).Cmp(value) >= 0
}

type slotKey struct {
	address common.Address
	key     common.Hash
}

// txState is the part of the transaction scoped state not covered by the
// RunContext. It is restored along with the RunContext on reverts.
type txState struct {
	refund    uint64
	accounts  map[common.Address]struct{}
	slots     map[slotKey]struct{}
	transient map[slotKey]common.Hash
	created   map[common.Address]struct{}
}

func (s txState) clone() txState {
	return txState{
		refund:    s.refund,
		accounts:  maps.Clone(s.accounts),
		slots:     maps.Clone(s.slots),
		transient: maps.Clone(s.transient),
		created:   maps.Clone(s.created),
	}
}

// stateDbAdapter adapts the tosca.RunContext interface for its usage as a
// geth.StateDB. Access lists, transient storage, and refunds are tracked by
// the adapter itself for the duration of a single Run.
type stateDbAdapter struct {
	context tosca.RunContext
	txState
	backups map[tosca.Snapshot]txState
}

func NewStateDbAdapter(context tosca.RunContext) *stateDbAdapter {
	return &stateDbAdapter{
		context: context,
		txState: txState{
			accounts:  map[common.Address]struct{}{},
			slots:     map[slotKey]struct{}{},
			transient: map[slotKey]common.Hash{},
			created:   map[common.Address]struct{}{},
		},
		backups: map[tosca.Snapshot]txState{},
	}
}

func (s *stateDbAdapter) CreateAccount(common.Address) {
	// accounts are created implicitly by the RunContext
}

func (s *stateDbAdapter) CreateContract(addr common.Address) {
	s.created[addr] = struct{}{}
}

func (s *stateDbAdapter) SubBalance(addr common.Address, diff *uint256.Int, _ tracing.BalanceChangeReason) {
	account := tosca.Address(addr)
	cur := s.context.GetBalance(account)
	s.context.SetBalance(account, tosca.Sub(cur, tosca.ValueFromUint256(diff)))
}

func (s *stateDbAdapter) AddBalance(addr common.Address, diff *uint256.Int, _ tracing.BalanceChangeReason) {
	account := tosca.Address(addr)
	cur := s.context.GetBalance(account)
	s.context.SetBalance(account, tosca.Add(cur, tosca.ValueFromUint256(diff)))
}

func (s *stateDbAdapter) GetBalance(addr common.Address) *uint256.Int {
	value := s.context.GetBalance(tosca.Address(addr))
	return value.ToUint256()
}

func (s *stateDbAdapter) GetNonce(addr common.Address) uint64 {
	return s.context.GetNonce(tosca.Address(addr))
}

func (s *stateDbAdapter) SetNonce(addr common.Address, nonce uint64) {
	s.context.SetNonce(tosca.Address(addr), nonce)
}

func (s *stateDbAdapter) GetCodeHash(addr common.Address) common.Hash {
	return common.Hash(s.context.GetCodeHash(tosca.Address(addr)))
}

func (s *stateDbAdapter) GetCode(addr common.Address) []byte {
	return s.context.GetCode(tosca.Address(addr))
}

func (s *stateDbAdapter) SetCode(addr common.Address, code []byte) {
	s.context.SetCode(tosca.Address(addr), code)
}

func (s *stateDbAdapter) GetCodeSize(addr common.Address) int {
	return s.context.GetCodeSize(tosca.Address(addr))
}

func (s *stateDbAdapter) AddRefund(value uint64) {
	s.refund += value
}

func (s *stateDbAdapter) SubRefund(value uint64) {
	s.refund -= value
}

func (s *stateDbAdapter) GetRefund() uint64 {
	return s.refund
}

func (s *stateDbAdapter) GetCommittedState(addr common.Address, key common.Hash) common.Hash {
	return common.Hash(s.context.GetCommittedStorage(tosca.Address(addr), tosca.Key(key)))
}

func (s *stateDbAdapter) GetState(addr common.Address, key common.Hash) common.Hash {
	return common.Hash(s.context.GetStorage(tosca.Address(addr), tosca.Key(key)))
}

func (s *stateDbAdapter) SetState(addr common.Address, key common.Hash, value common.Hash) {
	s.context.SetStorage(tosca.Address(addr), tosca.Key(key), tosca.Word(value))
}

func (s *stateDbAdapter) GetStorageRoot(addr common.Address) common.Hash {
	// only consulted for collision checks of creates, covered by nonce and code
	return common.Hash{}
}

func (s *stateDbAdapter) GetTransientState(addr common.Address, key common.Hash) common.Hash {
	return s.transient[slotKey{addr, key}]
}

func (s *stateDbAdapter) SetTransientState(addr common.Address, key, value common.Hash) {
	s.transient[slotKey{addr, key}] = value
}

// SelfDestruct is called by go-ethereum after the balance of addr has been
// credited to the beneficiary. The remaining balance of addr is burnt.
func (s *stateDbAdapter) SelfDestruct(addr common.Address) {
	account := tosca.Address(addr)
	s.context.SetBalance(account, tosca.Value{})
	s.context.SelfDestruct(account, account)
}

func (s *stateDbAdapter) HasSelfDestructed(addr common.Address) bool {
	return s.context.HasSelfDestructed(tosca.Address(addr))
}

// Selfdestruct6780 only destroys contracts created in the ongoing execution.
func (s *stateDbAdapter) Selfdestruct6780(addr common.Address) {
	if _, found := s.created[addr]; found {
		s.SelfDestruct(addr)
	}
}

func (s *stateDbAdapter) Exist(addr common.Address) bool {
	return s.context.AccountExists(tosca.Address(addr))
}

func (s *stateDbAdapter) Empty(addr common.Address) bool {
	return s.GetBalance(addr).IsZero() && s.GetNonce(addr) == 0 && s.GetCodeSize(addr) == 0
}

func (s *stateDbAdapter) AddressInAccessList(addr common.Address) bool {
	_, found := s.accounts[addr]
	return found
}

func (s *stateDbAdapter) SlotInAccessList(addr common.Address, slot common.Hash) (addressOk bool, slotOk bool) {
	_, addressOk = s.accounts[addr]
	_, slotOk = s.slots[slotKey{addr, slot}]
	return addressOk, slotOk
}

func (s *stateDbAdapter) AddAddressToAccessList(addr common.Address) {
	s.accounts[addr] = struct{}{}
}

func (s *stateDbAdapter) AddSlotToAccessList(addr common.Address, slot common.Hash) {
	s.accounts[addr] = struct{}{}
	s.slots[slotKey{addr, slot}] = struct{}{}
}

// Prepare warms up the accounts accessed by the start of an execution.
func (s *stateDbAdapter) Prepare(rules params.Rules, sender, coinbase common.Address, dest *common.Address, precompiles []common.Address, txAccesses types.AccessList) {
	if !rules.IsBerlin {
		return
	}
	s.AddAddressToAccessList(sender)
	if dest != nil {
		s.AddAddressToAccessList(*dest)
	}
	for _, addr := range precompiles {
		s.AddAddressToAccessList(addr)
	}
	for _, el := range txAccesses {
		s.AddAddressToAccessList(el.Address)
		for _, key := range el.StorageKeys {
			s.AddSlotToAccessList(el.Address, key)
		}
	}
	if rules.IsShanghai {
		s.AddAddressToAccessList(coinbase)
	}
}

func (s *stateDbAdapter) RevertToSnapshot(snapshot int) {
	id := tosca.Snapshot(snapshot)
	s.context.RestoreSnapshot(id)
	if backup, found := s.backups[id]; found {
		s.txState = backup
	}
}

func (s *stateDbAdapter) Snapshot() int {
	id := s.context.CreateSnapshot()
	s.backups[id] = s.txState.clone()
	return int(id)
}

func (s *stateDbAdapter) AddLog(log *types.Log) {
	topics := make([]tosca.Hash, 0, len(log.Topics))
	for _, cur := range log.Topics {
		topics = append(topics, tosca.Hash(cur))
	}
	s.context.EmitLog(tosca.Log{
		Address: tosca.Address(log.Address),
		Topics:  topics,
		Data:    log.Data,
	})
}

func (s *stateDbAdapter) AddPreimage(common.Hash, []byte) {
	// preimages are not recorded
}

func (s *stateDbAdapter) PointCache() *utils.PointCache {
	// see https://eips.ethereum.org/EIPS/eip-4762
	panic("should not be needed by revisions up to Cancun")
}

func (s *stateDbAdapter) Witness() *stateless.Witness {
	// this should not be relevant for revisions up to Cancun
	return nil
}
