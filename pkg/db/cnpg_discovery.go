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

package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carverauto/netdiscovery/pkg/logger"
	"github.com/carverauto/netdiscovery/pkg/models"
)

const (
	discoveredHostColumns = `rule_id, identity, address, status, status_changed, last_seen, last_up, last_down`

	discoveredServiceColumns = `rule_id, check_id, identity, port, address, dns, status, value,
	status_changed, last_seen, last_up, last_down`

	selectDiscoveredHostSQL = `SELECT ` + discoveredHostColumns + `
FROM discovered_hosts
WHERE rule_id = $1 AND identity = $2`

	listDiscoveredHostsSQL = `SELECT ` + discoveredHostColumns + `
FROM discovered_hosts
WHERE rule_id = $1
ORDER BY identity`

	upsertDiscoveredHostSQL = `
INSERT INTO discovered_hosts (` + discoveredHostColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (rule_id, identity) DO UPDATE SET
	address        = EXCLUDED.address,
	status         = EXCLUDED.status,
	status_changed = EXCLUDED.status_changed,
	last_seen      = EXCLUDED.last_seen,
	last_up        = EXCLUDED.last_up,
	last_down      = EXCLUDED.last_down`

	selectDiscoveredServiceSQL = `SELECT ` + discoveredServiceColumns + `
FROM discovered_services
WHERE rule_id = $1 AND check_id = $2 AND identity = $3 AND port = $4`

	upsertDiscoveredServiceSQL = `
INSERT INTO discovered_services (` + discoveredServiceColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (rule_id, check_id, identity, port) DO UPDATE SET
	address        = EXCLUDED.address,
	dns            = EXCLUDED.dns,
	status         = EXCLUDED.status,
	value          = EXCLUDED.value,
	status_changed = EXCLUDED.status_changed,
	last_seen      = EXCLUDED.last_seen,
	last_up        = EXCLUDED.last_up,
	last_down      = EXCLUDED.last_down`

	pruneDiscoveredServicesSQL = `DELETE FROM discovered_services WHERE last_seen < $1`
	pruneDiscoveredHostsSQL    = `DELETE FROM discovered_hosts WHERE last_seen < $1`
)

// pgxExecutor is the subset of pgxpool.Pool the discovery store uses.
type pgxExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, batch *pgx.Batch) pgx.BatchResults
}

// DiscoveryStore keeps host and service records in the discovered_hosts and
// discovered_services tables. Every upsert is a single INSERT ... ON CONFLICT
// statement, so a record is replaced atomically.
type DiscoveryStore struct {
	pool     *pgxpool.Pool
	executor pgxExecutor
	logger   logger.Logger
}

// NewDiscoveryStore wraps an existing pool.
func NewDiscoveryStore(pool *pgxpool.Pool, log logger.Logger) (*DiscoveryStore, error) {
	if pool == nil {
		return nil, ErrPoolRequired
	}

	return &DiscoveryStore{
		pool:     pool,
		executor: pool,
		logger:   log,
	}, nil
}

// Migrate creates the discovery tables when missing.
func (s *DiscoveryStore) Migrate(ctx context.Context) error {
	return RunCNPGMigrations(ctx, s.pool, s.logger)
}

// Close releases the underlying pool.
func (s *DiscoveryStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// GetHost returns the stored host or nil when none exists.
func (s *DiscoveryStore) GetHost(ctx context.Context, key models.HostKey) (*models.DiscoveredHost, error) {
	row := s.executor.QueryRow(ctx, selectDiscoveredHostSQL, int64(key.RuleID), key.Identity) //nolint:gosec // rule ids fit in BIGINT

	host, err := scanDiscoveredHost(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("cnpg get host %s: %w", key, err)
	}

	return host, nil
}

// UpsertHost inserts or fully replaces the host record.
func (s *DiscoveryStore) UpsertHost(ctx context.Context, host *models.DiscoveredHost) error {
	args, err := buildDiscoveredHostArgs(host)
	if err != nil {
		return err
	}

	if _, err := s.executor.Exec(ctx, upsertDiscoveredHostSQL, args...); err != nil {
		return fmt.Errorf("cnpg upsert host %s: %w", host.Key(), err)
	}

	return nil
}

// ListHosts returns every host of a rule ordered by identity.
func (s *DiscoveryStore) ListHosts(ctx context.Context, ruleID uint64) ([]*models.DiscoveredHost, error) {
	rows, err := s.executor.Query(ctx, listDiscoveredHostsSQL, int64(ruleID)) //nolint:gosec // rule ids fit in BIGINT
	if err != nil {
		return nil, fmt.Errorf("cnpg list hosts for rule %d: %w", ruleID, err)
	}
	defer rows.Close()

	var hosts []*models.DiscoveredHost

	for rows.Next() {
		host, err := scanDiscoveredHost(rows)
		if err != nil {
			return nil, fmt.Errorf("cnpg scan host: %w", err)
		}

		hosts = append(hosts, host)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cnpg iterate hosts: %w", err)
	}

	return hosts, nil
}

// GetService returns the stored service or nil when none exists.
func (s *DiscoveryStore) GetService(ctx context.Context, key models.ServiceKey) (*models.DiscoveredService, error) {
	row := s.executor.QueryRow(ctx, selectDiscoveredServiceSQL,
		int64(key.RuleID), int64(key.CheckID), key.Identity, key.Port) //nolint:gosec // ids fit in BIGINT

	svc, err := scanDiscoveredService(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("cnpg get service %s: %w", key, err)
	}

	return svc, nil
}

// UpsertService inserts or fully replaces the service record.
func (s *DiscoveryStore) UpsertService(ctx context.Context, svc *models.DiscoveredService) error {
	args, err := buildDiscoveredServiceArgs(svc)
	if err != nil {
		return err
	}

	if _, err := s.executor.Exec(ctx, upsertDiscoveredServiceSQL, args...); err != nil {
		return fmt.Errorf("cnpg upsert service %s: %w", svc.Key(), err)
	}

	return nil
}

// Prune deletes services and hosts not seen since cutoff and returns the
// number of removed rows.
func (s *DiscoveryStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	batch := &pgx.Batch{}
	batch.Queue(pruneDiscoveredServicesSQL, cutoff.UTC())
	batch.Queue(pruneDiscoveredHostsSQL, cutoff.UTC())

	removed, err := sendBatchExecAll(ctx, batch, s.executor.SendBatch, "discovery prune")
	if err != nil {
		return removed, err
	}

	if removed > 0 && s.logger != nil {
		s.logger.Info().
			Int64("removed", removed).
			Time("cutoff", cutoff).
			Msg("pruned stale discovery records")
	}

	return removed, nil
}

func buildDiscoveredHostArgs(host *models.DiscoveredHost) ([]interface{}, error) {
	if host == nil {
		return nil, ErrHostRecordNil
	}

	if host.RuleID == 0 {
		return nil, ErrRuleIDRequired
	}

	if strings.TrimSpace(host.Identity) == "" {
		return nil, ErrIdentityRequired
	}

	if !host.Status.IsKnown() {
		return nil, fmt.Errorf("host %s: %w", host.Key(), ErrStatusNotPersisted)
	}

	return []interface{}{
		int64(host.RuleID), //nolint:gosec // rule ids fit in BIGINT
		host.Identity,
		host.Address,
		host.Status.String(),
		host.StatusChanged.UTC(),
		host.LastSeen.UTC(),
		toNullableTime(host.LastUp),
		toNullableTime(host.LastDown),
	}, nil
}

func buildDiscoveredServiceArgs(svc *models.DiscoveredService) ([]interface{}, error) {
	if svc == nil {
		return nil, ErrServiceRecordNil
	}

	if svc.RuleID == 0 {
		return nil, ErrRuleIDRequired
	}

	if svc.CheckID == 0 {
		return nil, ErrCheckIDRequired
	}

	if strings.TrimSpace(svc.Identity) == "" {
		return nil, ErrIdentityRequired
	}

	if !svc.Status.IsKnown() {
		return nil, fmt.Errorf("service %s: %w", svc.Key(), ErrStatusNotPersisted)
	}

	return []interface{}{
		int64(svc.RuleID),  //nolint:gosec // rule ids fit in BIGINT
		int64(svc.CheckID), //nolint:gosec // check ids fit in BIGINT
		svc.Identity,
		svc.Port,
		svc.Address,
		svc.DNS,
		svc.Status.String(),
		svc.Value,
		svc.StatusChanged.UTC(),
		svc.LastSeen.UTC(),
		toNullableTime(svc.LastUp),
		toNullableTime(svc.LastDown),
	}, nil
}

func scanDiscoveredHost(row pgx.Row) (*models.DiscoveredHost, error) {
	var (
		host     models.DiscoveredHost
		ruleID   int64
		status   string
		lastUp   *time.Time
		lastDown *time.Time
	)

	if err := row.Scan(
		&ruleID,
		&host.Identity,
		&host.Address,
		&status,
		&host.StatusChanged,
		&host.LastSeen,
		&lastUp,
		&lastDown,
	); err != nil {
		return nil, err
	}

	parsed, err := models.ParseDiscoveryStatus(status)
	if err != nil {
		return nil, err
	}

	host.RuleID = uint64(ruleID) //nolint:gosec // stored from a uint64
	host.Status = parsed
	host.LastUp = fromNullableTime(lastUp)
	host.LastDown = fromNullableTime(lastDown)

	return &host, nil
}

func scanDiscoveredService(row pgx.Row) (*models.DiscoveredService, error) {
	var (
		svc      models.DiscoveredService
		ruleID   int64
		checkID  int64
		status   string
		lastUp   *time.Time
		lastDown *time.Time
	)

	if err := row.Scan(
		&ruleID,
		&checkID,
		&svc.Identity,
		&svc.Port,
		&svc.Address,
		&svc.DNS,
		&status,
		&svc.Value,
		&svc.StatusChanged,
		&svc.LastSeen,
		&lastUp,
		&lastDown,
	); err != nil {
		return nil, err
	}

	parsed, err := models.ParseDiscoveryStatus(status)
	if err != nil {
		return nil, err
	}

	svc.RuleID = uint64(ruleID)   //nolint:gosec // stored from a uint64
	svc.CheckID = uint64(checkID) //nolint:gosec // stored from a uint64
	svc.Status = parsed
	svc.LastUp = fromNullableTime(lastUp)
	svc.LastDown = fromNullableTime(lastDown)

	return &svc, nil
}

func toNullableTime(ts time.Time) interface{} {
	if ts.IsZero() {
		return nil
	}

	return ts.UTC()
}

func fromNullableTime(ts *time.Time) time.Time {
	if ts == nil {
		return time.Time{}
	}

	return ts.UTC()
}
