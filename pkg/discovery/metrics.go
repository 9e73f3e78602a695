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
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/carverauto/netdiscovery/pkg/models"
)

const (
	meterName = "github.com/carverauto/netdiscovery/pkg/discovery"

	metricRecordsTotal = "discovery_records_total"
	metricEventsTotal  = "discovery_events_total"
	metricPassDuration = "discovery_pass_duration_seconds"

	outcomeUnchanged  = "unchanged"
	outcomeDiscovered = "discovered"
	outcomeChanged    = "changed"
	outcomeRejected   = "rejected"
	outcomeReadError  = "read_error"
	outcomeWriteError = "write_error"
)

//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
var (
	meterOnce      sync.Once
	recordsCounter metric.Int64Counter
	eventsCounter  metric.Int64Counter
	passHistogram  metric.Float64Histogram
)

func initMeter() {
	meter := otel.Meter(meterName)

	records, err := meter.Int64Counter(
		metricRecordsTotal,
		metric.WithDescription("Host and service records processed by the reconciler, by outcome"),
	)
	if err != nil {
		otel.Handle(err)
	}
	recordsCounter = records

	events, err := meter.Int64Counter(
		metricEventsTotal,
		metric.WithDescription("Discovery events handed to the event sink, by kind and delivery result"),
	)
	if err != nil {
		otel.Handle(err)
	}
	eventsCounter = events

	hist, err := meter.Float64Histogram(
		metricPassDuration,
		metric.WithDescription("Wall time spent reconciling one discovery pass"),
		metric.WithUnit("s"),
	)
	if err != nil {
		otel.Handle(err)
	}
	passHistogram = hist
}

func recordOutcome(ctx context.Context, scope, outcome string) {
	meterOnce.Do(initMeter)
	if recordsCounter == nil {
		return
	}

	recordsCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("scope", scope),
		attribute.String("outcome", outcome),
	))
}

func recordEvent(ctx context.Context, kind models.DiscoveryEventKind, delivered bool) {
	meterOnce.Do(initMeter)
	if eventsCounter == nil {
		return
	}

	eventsCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", string(kind)),
		attribute.Bool("delivered", delivered),
	))
}

func recordPassDuration(ctx context.Context, ruleID uint64, d time.Duration, failed bool) {
	meterOnce.Do(initMeter)
	if passHistogram == nil {
		return
	}

	passHistogram.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.Int64("rule_id", int64(ruleID)),
		attribute.Bool("failed", failed),
	))
}
