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

import "errors"

var (
	ErrMissingNATSURL     = errors.New("nats.url is required")
	ErrUnknownBackend     = errors.New("unknown store backend")
	ErrMissingCNPGConfig  = errors.New("store.cnpg is required for the cnpg backend")
	ErrMissingRedisConfig = errors.New("store.redis is required for the redis backend")
	ErrInvalidWorkers     = errors.New("workers must not be negative")
	ErrInvalidLength      = errors.New("max_value_length and max_dns_length must not be negative")
	ErrInvalidJSON        = errors.New("failed to unmarshal JSON configuration")

	// ErrUndecodablePass marks a message that can never be processed.
	ErrUndecodablePass = errors.New("undecodable discovery pass")
)
