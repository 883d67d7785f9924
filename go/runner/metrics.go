// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package runner

import "github.com/ethereum/go-ethereum/metrics"

var (
	dispatchedMeter  = metrics.NewRegisteredMeter("runner/dispatched", nil)
	failedMeter      = metrics.NewRegisteredMeter("runner/failed", nil)
	burntGasMeter    = metrics.NewRegisteredMeter("runner/gas/burnt", nil)
	usedGasMeter     = metrics.NewRegisteredMeter("runner/gas/used", nil)
	committedCounter = metrics.NewRegisteredCounter("runner/overlay/committed", nil)
	discardedCounter = metrics.NewRegisteredCounter("runner/overlay/discarded", nil)
	executionTimer   = metrics.NewRegisteredTimer("runner/execution", nil)
)
