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

package discoveryconsumer

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/carverauto/netdiscovery/pkg/logger"
	"github.com/carverauto/netdiscovery/pkg/models"
)

// passReconciler is satisfied by *discovery.Reconciler.
type passReconciler interface {
	ReconcilePass(ctx context.Context, pass models.DiscoveryPass) (*models.PassReport, error)
}

// Processor decodes pass payloads and hands them to the reconciler.
type Processor struct {
	reconciler passReconciler
	workers    int
	logger     logger.Logger
}

// NewProcessor creates a Processor running up to workers rules at once.
func NewProcessor(reconciler passReconciler, workers int, log logger.Logger) *Processor {
	if workers <= 0 {
		workers = 1
	}

	return &Processor{reconciler: reconciler, workers: workers, logger: log}
}

// Process decodes one payload and reconciles it. A payload that is not a
// valid pass yields ErrUndecodablePass. Per-record failures inside the pass
// are reported, not returned.
func (p *Processor) Process(ctx context.Context, payload []byte) (*models.PassReport, error) {
	pass, err := decodePass(payload)
	if err != nil {
		return nil, err
	}

	return p.reconcile(ctx, pass)
}

// ProcessBatch reconciles payloads and returns one error slot per payload.
// Passes of the same rule run in arrival order; different rules run
// concurrently.
func (p *Processor) ProcessBatch(ctx context.Context, payloads [][]byte) []error {
	results := make([]error, len(payloads))
	passes := make([]models.DiscoveryPass, len(payloads))
	byRule := make(map[uint64][]int)

	for i, payload := range payloads {
		pass, err := decodePass(payload)
		if err != nil {
			results[i] = err
			continue
		}

		passes[i] = pass
		byRule[pass.RuleID] = append(byRule[pass.RuleID], i)
	}

	rules := make([]uint64, 0, len(byRule))
	for ruleID := range byRule {
		rules = append(rules, ruleID)
	}

	slices.Sort(rules)

	var g errgroup.Group

	g.SetLimit(p.workers)

	for _, ruleID := range rules {
		indexes := byRule[ruleID]

		g.Go(func() error {
			for _, idx := range indexes {
				if err := ctx.Err(); err != nil {
					results[idx] = err
					continue
				}

				_, results[idx] = p.reconcile(ctx, passes[idx])
			}

			return nil
		})
	}

	_ = g.Wait()

	return results
}

func (p *Processor) reconcile(ctx context.Context, pass models.DiscoveryPass) (*models.PassReport, error) {
	report, err := p.reconciler.ReconcilePass(ctx, pass)
	if err != nil {
		return report, err
	}

	if report.Failed() {
		p.logger.Warn().
			Err(report.Err()).
			Uint64("rule_id", report.RuleID).
			Int("failures", len(report.Failures)).
			Msg("Discovery pass applied with failures")
	}

	return report, nil
}

func decodePass(payload []byte) (models.DiscoveryPass, error) {
	var pass models.DiscoveryPass

	if err := json.Unmarshal(payload, &pass); err != nil {
		return pass, fmt.Errorf("%w: %w", ErrUndecodablePass, err)
	}

	if pass.RuleID == 0 {
		return pass, fmt.Errorf("%w: missing rule_id", ErrUndecodablePass)
	}

	return pass, nil
}
