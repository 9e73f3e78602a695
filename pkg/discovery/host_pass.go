/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package discovery

import (
	"slices"

	"github.com/carverauto/netdiscovery/pkg/models"
)

// HostPass accumulates the results one physical host produced during a pass.
// It is a value: Add returns an extended copy and never mutates the receiver,
// so a scanner can build one per host and hand it to UpdateHost when done.
type HostPass struct {
	ruleID        uint64
	uniqueCheckID uint64
	address       string
	results       []models.DiscoveryResult
}

// NewHostPass starts an empty accumulator for the host at address.
func NewHostPass(ruleID, uniqueCheckID uint64, address string) HostPass {
	return HostPass{ruleID: ruleID, uniqueCheckID: uniqueCheckID, address: address}
}

// Add returns a copy of p that also holds r.
func (p HostPass) Add(r models.DiscoveryResult) HostPass {
	p.results = append(slices.Clip(p.results), r)
	return p
}

// WithUniqueCheck returns a copy of p resolved against a different
// uniqueness check.
func (p HostPass) WithUniqueCheck(uniqueCheckID uint64) HostPass {
	p.uniqueCheckID = uniqueCheckID
	return p
}

func (p HostPass) RuleID() uint64        { return p.ruleID }
func (p HostPass) UniqueCheckID() uint64 { return p.uniqueCheckID }
func (p HostPass) Address() string       { return p.address }
func (p HostPass) Len() int              { return len(p.results) }

// Results returns a copy of the accumulated results.
func (p HostPass) Results() []models.DiscoveryResult {
	return slices.Clone(p.results)
}

// IsZero reports whether p was never initialized.
func (p HostPass) IsZero() bool {
	return p.ruleID == 0 && p.address == "" && len(p.results) == 0
}

// Identity resolves the host's identity for this pass.
func (p HostPass) Identity() string {
	identity, _ := resolveIdentity(p.ruleID, p.uniqueCheckID, p.address, p.results)
	return identity
}

// Status is UP when any accumulated check reached the host, DOWN when none
// did, and unknown when nothing was accumulated.
func (p HostPass) Status() models.DiscoveryStatus {
	if len(p.results) == 0 {
		return models.DiscoveryStatusUnknown
	}

	for i := range p.results {
		if p.results[i].Reachable {
			return models.DiscoveryStatusUp
		}
	}

	return models.DiscoveryStatusDown
}

// has reports whether p already holds a result for the check and port.
func (p HostPass) has(checkID uint64, port int) bool {
	return p.indexOf(checkID, port) >= 0
}

func (p HostPass) indexOf(checkID uint64, port int) int {
	for i := range p.results {
		if p.results[i].CheckID == checkID && p.results[i].Port == port {
			return i
		}
	}

	return -1
}

// merge returns a copy of p extended with other's results. A check and port
// already held is replaced only when the held result is unreachable and
// other's is reachable, so one service key gets one status per pass.
func (p HostPass) merge(other HostPass) HostPass {
	p.results = slices.Clone(p.results)

	for _, r := range other.results {
		switch i := p.indexOf(r.CheckID, r.Port); {
		case i < 0:
			p.results = append(p.results, r)
		case !p.results[i].Reachable && r.Reachable:
			p.results[i] = r
		}
	}

	return p
}

// GroupByAddress splits results into one HostPass per address, in order of
// first appearance.
func GroupByAddress(ruleID, uniqueCheckID uint64, results []models.DiscoveryResult) []HostPass {
	index := make(map[string]int)
	passes := make([]HostPass, 0)

	for i := range results {
		addr := results[i].Address

		pos, ok := index[addr]
		if !ok {
			pos = len(passes)
			index[addr] = pos
			passes = append(passes, NewHostPass(ruleID, uniqueCheckID, addr))
		}

		passes[pos] = passes[pos].Add(results[i])
	}

	return passes
}

// MergeByIdentity folds passes that resolve to the same host identity into
// the first of them, keeping its address. Addresses sharing a unique value
// are one host, and their services share one key.
func MergeByIdentity(passes []HostPass) []HostPass {
	index := make(map[string]int, len(passes))
	merged := make([]HostPass, 0, len(passes))

	for _, p := range passes {
		identity := p.Identity()

		pos, ok := index[identity]
		if !ok {
			index[identity] = len(merged)
			merged = append(merged, p)

			continue
		}

		merged[pos] = merged[pos].merge(p)
	}

	return merged
}
