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

// Package discovery reconciles the results of network discovery passes into
// persisted host and service state, reporting first sightings and status
// changes to an event sink.
package discovery

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/carverauto/netdiscovery/pkg/logger"
	"github.com/carverauto/netdiscovery/pkg/models"
)

const (
	scopeResult  = "result"
	scopeHost    = "host"
	scopeService = "service"
)

// Reconciler applies discovery results to the host and service stores. It
// holds no per-host state between calls, so one Reconciler can serve passes
// of different rules concurrently.
type Reconciler struct {
	hosts          HostStore
	services       ServiceStore
	events         EventSink
	logger         logger.Logger
	resolver       *Resolver
	tracer         trace.Tracer
	maxValueLength int
	maxDNSLength   int
	now            func() time.Time
}

// Option customizes a Reconciler.
type Option func(*Reconciler)

// WithEventSink sets where discovered and status-changed events go.
func WithEventSink(sink EventSink) Option {
	return func(r *Reconciler) {
		if sink != nil {
			r.events = sink
		}
	}
}

func WithLogger(log logger.Logger) Option {
	return func(r *Reconciler) {
		if log != nil {
			r.logger = log
		}
	}
}

// WithMaxValueLength overrides DefaultMaxValueLength. Zero disables
// truncation.
func WithMaxValueLength(n int) Option {
	return func(r *Reconciler) { r.maxValueLength = n }
}

// WithMaxDNSLength overrides DefaultMaxDNSLength. Zero disables truncation.
func WithMaxDNSLength(n int) Option {
	return func(r *Reconciler) { r.maxDNSLength = n }
}

// WithClock sets the time source used for passes without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}

// NewReconciler wires a Reconciler to its stores.
func NewReconciler(hosts HostStore, services ServiceStore, opts ...Option) (*Reconciler, error) {
	if hosts == nil {
		return nil, ErrHostStoreRequired
	}

	if services == nil {
		return nil, ErrServiceStoreRequired
	}

	r := &Reconciler{
		hosts:          hosts,
		services:       services,
		events:         NopSink{},
		logger:         logger.NewTestLogger(),
		tracer:         otel.Tracer(meterName),
		maxValueLength: DefaultMaxValueLength,
		maxDNSLength:   DefaultMaxDNSLength,
		now:            time.Now,
	}

	for _, opt := range opts {
		opt(r)
	}

	r.resolver = NewResolver(r.logger)

	return r, nil
}

// ServiceUpdate is one check result handed to UpdateService. Host carries
// the results accumulated for the same host during the pass and is used to
// resolve the host identity; it may be left zero for address-only rules.
type ServiceUpdate struct {
	RuleID        uint64
	CheckID       uint64
	UniqueCheckID uint64
	Host          HostPass
	Address       string
	DNS           string
	Port          int
	Status        models.DiscoveryStatus
	Value         string
}

func (u *ServiceUpdate) result() models.DiscoveryResult {
	return models.DiscoveryResult{
		RuleID:        u.RuleID,
		CheckID:       u.CheckID,
		UniqueCheckID: u.UniqueCheckID,
		Address:       u.Address,
		DNS:           u.DNS,
		Port:          u.Port,
		Reachable:     u.Status == models.DiscoveryStatusUp,
		Value:         u.Value,
	}
}

// identity resolves the owning host's identity. The per-call uniqueness
// check takes precedence over the one the host pass was built with, and
// the update's own result counts towards resolution.
func (u *ServiceUpdate) identity() string {
	host := u.Host
	if host.IsZero() {
		host = NewHostPass(u.RuleID, u.UniqueCheckID, u.Address)
	}

	if u.UniqueCheckID != 0 {
		host = host.WithUniqueCheck(u.UniqueCheckID)
	}

	if !host.has(u.CheckID, u.Port) {
		host = host.Add(u.result())
	}

	return host.Identity()
}

// UpdateHost records one pass's status for the host accumulated in pass.
func (r *Reconciler) UpdateHost(ctx context.Context, pass HostPass, status models.DiscoveryStatus, now time.Time) error {
	_, err := r.updateHost(ctx, pass, status, now)
	return err
}

// UpdateService records one check result. Value and DNS are truncated to
// the configured limits before anything is stored.
func (r *Reconciler) UpdateService(ctx context.Context, update ServiceUpdate, now time.Time) error {
	update.Value = CleanValue(update.Value, r.maxValueLength)
	update.DNS = CleanValue(update.DNS, r.maxDNSLength)

	_, err := r.updateService(ctx, &update, now)

	return err
}

func (r *Reconciler) updateHost(ctx context.Context, pass HostPass, status models.DiscoveryStatus, now time.Time) (transition, error) {
	if pass.RuleID() == 0 {
		return transitionNone, fmt.Errorf("%w: host pass has no rule id", ErrMalformedResult)
	}

	if !status.IsKnown() {
		return transitionNone, fmt.Errorf("%w: host status %s", ErrMalformedResult, status)
	}

	pass = r.cleanPass(pass)

	key := models.HostKey{RuleID: pass.RuleID(), Identity: r.resolver.ResolvePass(pass)}
	if key.Identity == "" {
		return transitionNone, fmt.Errorf("%w: host has neither address nor unique value", ErrMalformedResult)
	}

	prior, err := r.hosts.GetHost(ctx, key)
	if err != nil {
		recordOutcome(ctx, scopeHost, outcomeReadError)
		return transitionNone, fmt.Errorf("%w: host %s: %w", ErrStoreRead, key, err)
	}

	var before statusFields

	address := pass.Address()

	if prior != nil {
		before = hostStatusFields(prior)

		if address == "" {
			address = prior.Address
		}
	}

	after, t := before.advance(prior != nil, status, now)

	host := &models.DiscoveredHost{
		RuleID:        key.RuleID,
		Identity:      key.Identity,
		Address:       address,
		Status:        after.Status,
		StatusChanged: after.StatusChanged,
		LastSeen:      after.LastSeen,
		LastUp:        after.LastUp,
		LastDown:      after.LastDown,
	}

	if err := r.hosts.UpsertHost(ctx, host); err != nil {
		recordOutcome(ctx, scopeHost, outcomeWriteError)
		return transitionNone, fmt.Errorf("%w: host %s: %w", ErrStoreWrite, key, err)
	}

	recordOutcome(ctx, scopeHost, t.outcome())

	if t != transitionNone {
		r.emit(ctx, models.DiscoveryEvent{
			Kind:           t.hostEvent(),
			RuleID:         host.RuleID,
			Identity:       host.Identity,
			Address:        host.Address,
			PreviousStatus: before.Status,
			Status:         host.Status,
			Timestamp:      now,
		})
	}

	return t, nil
}

func (r *Reconciler) updateService(ctx context.Context, u *ServiceUpdate, now time.Time) (transition, error) {
	if u.RuleID == 0 || u.CheckID == 0 {
		return transitionNone, fmt.Errorf("%w: rule id %d, check id %d", ErrMalformedResult, u.RuleID, u.CheckID)
	}

	if !u.Host.IsZero() && u.Host.RuleID() != u.RuleID {
		return transitionNone, fmt.Errorf("%w: host pass belongs to rule %d, not %d", ErrMalformedResult, u.Host.RuleID(), u.RuleID)
	}

	if !u.Status.IsKnown() {
		return transitionNone, fmt.Errorf("%w: service status %s", ErrMalformedResult, u.Status)
	}

	u.Host = r.cleanPass(u.Host)

	key := models.ServiceKey{RuleID: u.RuleID, CheckID: u.CheckID, Identity: u.identity(), Port: u.Port}
	if key.Identity == "" {
		return transitionNone, fmt.Errorf("%w: service has neither address nor unique value", ErrMalformedResult)
	}

	prior, err := r.services.GetService(ctx, key)
	if err != nil {
		recordOutcome(ctx, scopeService, outcomeReadError)
		return transitionNone, fmt.Errorf("%w: service %s: %w", ErrStoreRead, key, err)
	}

	var before statusFields
	if prior != nil {
		before = serviceStatusFields(prior)
	}

	after, t := before.advance(prior != nil, u.Status, now)

	svc := &models.DiscoveredService{
		RuleID:        key.RuleID,
		CheckID:       key.CheckID,
		Identity:      key.Identity,
		Port:          key.Port,
		Address:       u.Address,
		DNS:           u.DNS,
		Status:        after.Status,
		Value:         u.Value,
		StatusChanged: after.StatusChanged,
		LastSeen:      after.LastSeen,
		LastUp:        after.LastUp,
		LastDown:      after.LastDown,
	}

	if err := r.services.UpsertService(ctx, svc); err != nil {
		recordOutcome(ctx, scopeService, outcomeWriteError)
		return transitionNone, fmt.Errorf("%w: service %s: %w", ErrStoreWrite, key, err)
	}

	recordOutcome(ctx, scopeService, t.outcome())

	if t != transitionNone {
		r.emit(ctx, models.DiscoveryEvent{
			Kind:           t.serviceEvent(),
			RuleID:         svc.RuleID,
			CheckID:        svc.CheckID,
			Identity:       svc.Identity,
			Address:        svc.Address,
			DNS:            svc.DNS,
			Port:           svc.Port,
			PreviousStatus: before.Status,
			Status:         svc.Status,
			Value:          svc.Value,
			Timestamp:      now,
		})
	}

	return t, nil
}

// cleanResult applies the value and DNS limits to one result.
func (r *Reconciler) cleanResult(res models.DiscoveryResult) models.DiscoveryResult {
	res.Value = CleanValue(res.Value, r.maxValueLength)
	res.DNS = CleanValue(res.DNS, r.maxDNSLength)

	return res
}

// cleanPass returns pass with every accumulated result cleaned, so that a
// host identity taken from a unique value matches the one its services
// resolve.
func (r *Reconciler) cleanPass(pass HostPass) HostPass {
	if len(pass.results) == 0 {
		return pass
	}

	results := make([]models.DiscoveryResult, len(pass.results))
	for i := range pass.results {
		results[i] = r.cleanResult(pass.results[i])
	}

	pass.results = results

	return pass
}

// emit hands an event to the sink. Delivery failures are logged and never
// undo or fail the state update that produced the event.
func (r *Reconciler) emit(ctx context.Context, event models.DiscoveryEvent) {
	if err := r.events.Publish(ctx, event); err != nil {
		recordEvent(ctx, event.Kind, false)

		r.logger.Warn().
			Err(err).
			Str("kind", string(event.Kind)).
			Uint64("rule_id", event.RuleID).
			Str("identity", event.Identity).
			Msg("Failed to publish discovery event")

		return
	}

	recordEvent(ctx, event.Kind, true)
}

// ReconcilePass applies a whole pass: malformed results are rejected, the
// rest are grouped into hosts by address and merged by identity, every host
// is updated, then every service. A failed record is reported and skipped. If ctx is cancelled the
// partial report is returned together with ctx.Err().
func (r *Reconciler) ReconcilePass(ctx context.Context, pass models.DiscoveryPass) (*models.PassReport, error) {
	if pass.RuleID == 0 {
		return nil, fmt.Errorf("%w: pass has no rule id", ErrMalformedResult)
	}

	ctx, span := r.tracer.Start(ctx, "discovery.reconcile_pass", trace.WithAttributes(
		attribute.Int64("discovery.rule_id", int64(pass.RuleID)),
		attribute.Int("discovery.results", len(pass.Results)),
	))
	defer span.End()

	start := time.Now()
	report := &models.PassReport{RuleID: pass.RuleID}

	defer func() {
		recordPassDuration(ctx, pass.RuleID, time.Since(start), report.Failed())

		span.SetAttributes(
			attribute.Int("discovery.hosts", report.Hosts),
			attribute.Int("discovery.services", report.Services),
			attribute.Int("discovery.events", report.Events),
			attribute.Int("discovery.failures", len(report.Failures)),
		)

		if report.Failed() {
			span.SetStatus(codes.Error, "partial pass failure")
		}
	}()

	now := pass.Timestamp
	if now.IsZero() {
		now = r.now()
	}

	uniqueCheckID := pass.UniqueCheckID
	accepted := make([]models.DiscoveryResult, 0, len(pass.Results))

	for i := range pass.Results {
		res := pass.Results[i]

		if err := validateResult(pass.RuleID, &res); err != nil {
			report.Rejected++
			r.fail(ctx, report, scopeResult, fmt.Sprintf("%d/%d/%s/%d", res.RuleID, res.CheckID, res.Address, res.Port), err)

			continue
		}

		if uniqueCheckID == 0 {
			uniqueCheckID = res.UniqueCheckID
		}

		accepted = append(accepted, r.cleanResult(res))
	}

	hosts := MergeByIdentity(GroupByAddress(pass.RuleID, uniqueCheckID, accepted))

	for _, host := range hosts {
		if err := ctx.Err(); err != nil {
			return r.abandon(report, err)
		}

		t, err := r.updateHost(ctx, host, host.Status(), now)
		if err != nil {
			r.fail(ctx, report, scopeHost, models.HostKey{RuleID: pass.RuleID, Identity: host.Identity()}.String(), err)
			continue
		}

		report.Hosts++
		if t != transitionNone {
			report.Events++
		}
	}

	for _, host := range hosts {
		for _, res := range host.results {
			if err := ctx.Err(); err != nil {
				return r.abandon(report, err)
			}

			update := ServiceUpdate{
				RuleID:        res.RuleID,
				CheckID:       res.CheckID,
				UniqueCheckID: uniqueCheckID,
				Host:          host,
				Address:       res.Address,
				DNS:           res.DNS,
				Port:          res.Port,
				Status:        res.Status(),
				Value:         res.Value,
			}

			t, err := r.updateService(ctx, &update, now)
			if err != nil {
				key := models.ServiceKey{RuleID: res.RuleID, CheckID: res.CheckID, Identity: host.Identity(), Port: res.Port}
				r.fail(ctx, report, scopeService, key.String(), err)

				continue
			}

			report.Services++
			if t != transitionNone {
				report.Events++
			}
		}
	}

	event := r.logger.Debug()
	if report.Failed() {
		event = r.logger.Warn().Int("failures", len(report.Failures))
	}

	event.
		Uint64("rule_id", pass.RuleID).
		Int("hosts", report.Hosts).
		Int("services", report.Services).
		Int("events", report.Events).
		Int("rejected", report.Rejected).
		Dur("elapsed", time.Since(start)).
		Msg("Reconciled discovery pass")

	return report, nil
}

func (r *Reconciler) fail(ctx context.Context, report *models.PassReport, scope, key string, err error) {
	report.Failures = append(report.Failures, models.RecordFailure{Scope: scope, Key: key, Err: err})

	if scope == scopeResult {
		recordOutcome(ctx, scope, outcomeRejected)
	}

	r.logger.Warn().
		Err(err).
		Str("scope", scope).
		Str("key", key).
		Uint64("rule_id", report.RuleID).
		Msg("Skipping discovery record")
}

func (r *Reconciler) abandon(report *models.PassReport, err error) (*models.PassReport, error) {
	r.logger.Info().
		Err(err).
		Uint64("rule_id", report.RuleID).
		Int("hosts", report.Hosts).
		Int("services", report.Services).
		Msg("Discovery pass abandoned")

	return report, err
}

// validateResult checks the fields a result cannot be attributed without.
func validateResult(ruleID uint64, res *models.DiscoveryResult) error {
	switch {
	case res.RuleID == 0 || res.CheckID == 0:
		return fmt.Errorf("%w: rule id %d, check id %d", ErrMalformedResult, res.RuleID, res.CheckID)
	case res.RuleID != ruleID:
		return fmt.Errorf("%w: result for rule %d in pass of rule %d", ErrMalformedResult, res.RuleID, ruleID)
	case res.Address == "":
		return fmt.Errorf("%w: result has no address", ErrMalformedResult)
	default:
		return nil
	}
}
