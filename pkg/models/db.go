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

package models

// CNPGDatabase describes the PostgreSQL (CloudNativePG) cluster backing the
// discovery state tables.
type CNPGDatabase struct {
	Host               string            `json:"host"`
	Port               int               `json:"port"`
	Database           string            `json:"database"`
	Username           string            `json:"username"`
	Password           string            `json:"password"`
	ApplicationName    string            `json:"application_name"`
	SSLMode            string            `json:"ssl_mode"`
	CertDir            string            `json:"cert_dir"`
	TLS                *TLSConfig        `json:"tls,omitempty"`
	MaxConnections     int32             `json:"max_connections"`
	MinConnections     int32             `json:"min_connections"`
	MaxConnLifetime    Duration          `json:"max_conn_lifetime"`
	HealthCheckPeriod  Duration          `json:"health_check_period"`
	StatementTimeout   Duration          `json:"statement_timeout"`
	ExtraRuntimeParams map[string]string `json:"runtime_params"`
}

// RedisConfig describes a Redis deployment used as a discovery state store.
type RedisConfig struct {
	Addr      string   `json:"addr"`
	Username  string   `json:"username,omitempty"`
	Password  string   `json:"password,omitempty"`
	DB        int      `json:"db"`
	KeyPrefix string   `json:"key_prefix,omitempty"`
	TTL       Duration `json:"ttl,omitempty"`
}

// KVStoreConfig describes a JetStream KeyValue bucket used as a discovery
// state store.
type KVStoreConfig struct {
	Bucket   string   `json:"bucket"`
	History  uint8    `json:"history,omitempty"`
	TTL      Duration `json:"ttl,omitempty"`
	Replicas int      `json:"replicas,omitempty"`
}
