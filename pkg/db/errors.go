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

import "errors"

var (

	// Pool and connection errors.

	ErrCNPGTLSDisabled    = errors.New("cnpg tls configured but sslmode is disable")
	ErrCNPGTLSIncomplete  = errors.New("cnpg tls: cert_file, key_file, and ca_file are required")
	ErrCNPGCAAppendFailed = errors.New("cnpg tls: unable to append CA certificate")
	ErrCNPGHostRequired   = errors.New("cnpg host is required")

	// Discovery state errors.

	ErrPoolRequired       = errors.New("cnpg pool is required")
	ErrHostRecordNil      = errors.New("host record is nil")
	ErrServiceRecordNil   = errors.New("service record is nil")
	ErrIdentityRequired   = errors.New("identity is required")
	ErrRuleIDRequired     = errors.New("rule id is required")
	ErrCheckIDRequired    = errors.New("check id is required")
	ErrStatusNotPersisted = errors.New("unknown status cannot be persisted")
)
