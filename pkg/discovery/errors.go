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

import "errors"

var (
	// ErrMalformedResult marks input rejected before it could touch state:
	// a missing rule or check id, an empty identity, or an unknown status.
	ErrMalformedResult = errors.New("malformed discovery result")
	// ErrStoreRead wraps failures loading a host or service record.
	ErrStoreRead = errors.New("discovery store read failed")
	// ErrStoreWrite wraps failures persisting a host or service record.
	ErrStoreWrite = errors.New("discovery store write failed")

	ErrHostStoreRequired    = errors.New("host store is required")
	ErrServiceStoreRequired = errors.New("service store is required")
)
