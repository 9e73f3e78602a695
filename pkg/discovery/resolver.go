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
	"github.com/carverauto/netdiscovery/pkg/logger"
	"github.com/carverauto/netdiscovery/pkg/models"
)

// Resolver picks the canonical identity of a host for one pass of a rule.
type Resolver struct {
	logger logger.Logger
}

// NewResolver returns a Resolver. log may be nil.
func NewResolver(log logger.Logger) *Resolver {
	if log == nil {
		log = logger.NewTestLogger()
	}

	return &Resolver{logger: log}
}

// Resolve returns the identity of the host that produced results. When
// uniqueCheckID is set and that check ran, succeeded and returned a value,
// the value is the identity; otherwise the host is known by its address.
// Results belonging to another rule are ignored.
func (r *Resolver) Resolve(ruleID, uniqueCheckID uint64, results []models.DiscoveryResult) string {
	address := ""

	for i := range results {
		if results[i].RuleID == ruleID {
			address = results[i].Address
			break
		}
	}

	return r.resolve(ruleID, uniqueCheckID, address, results)
}

// ResolvePass resolves the identity of an accumulated host.
func (r *Resolver) ResolvePass(pass HostPass) string {
	return r.resolve(pass.ruleID, pass.uniqueCheckID, pass.address, pass.results)
}

func (r *Resolver) resolve(ruleID, uniqueCheckID uint64, address string, results []models.DiscoveryResult) string {
	identity, unique := resolveIdentity(ruleID, uniqueCheckID, address, results)

	if uniqueCheckID != 0 && !unique {
		r.logger.Debug().
			Uint64("rule_id", ruleID).
			Uint64("unique_check_id", uniqueCheckID).
			Str("address", address).
			Msg("Uniqueness check unavailable, identifying host by address")
	}

	return identity
}

func resolveIdentity(ruleID, uniqueCheckID uint64, address string, results []models.DiscoveryResult) (string, bool) {
	if uniqueCheckID == 0 {
		return address, false
	}

	for i := range results {
		res := &results[i]
		if res.RuleID != ruleID || res.CheckID != uniqueCheckID {
			continue
		}

		if res.Reachable && res.Value != "" {
			return res.Value, true
		}
	}

	return address, false
}
