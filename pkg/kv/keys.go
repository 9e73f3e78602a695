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

package kv

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/carverauto/netdiscovery/pkg/models"
)

const (
	hostKeyPrefix    = "dhost"
	serviceKeyPrefix = "dservice"
)

// Identities may be IPv6 addresses or arbitrary unique-check values, neither of
// which are valid KV key tokens, so they are stored base64url encoded.
var identityEncoding = base64.RawURLEncoding

func hostKey(key models.HostKey) string {
	return fmt.Sprintf("%s.%d.%s", hostKeyPrefix, key.RuleID, identityEncoding.EncodeToString([]byte(key.Identity)))
}

func serviceKey(key models.ServiceKey) string {
	return fmt.Sprintf("%s.%d.%d.%s.%d",
		serviceKeyPrefix, key.RuleID, key.CheckID, identityEncoding.EncodeToString([]byte(key.Identity)), key.Port)
}

// hostFilter matches every host key of a rule.
func hostFilter(ruleID uint64) string {
	return fmt.Sprintf("%s.%d.*", hostKeyPrefix, ruleID)
}

func parseHostKey(raw string) (models.HostKey, error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 || parts[0] != hostKeyPrefix {
		return models.HostKey{}, fmt.Errorf("%w: %q", errMalformedKey, raw)
	}

	ruleID, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return models.HostKey{}, fmt.Errorf("%w: %q: %w", errMalformedKey, raw, err)
	}

	identity, err := identityEncoding.DecodeString(parts[2])
	if err != nil {
		return models.HostKey{}, fmt.Errorf("%w: %q: %w", errMalformedKey, raw, err)
	}

	return models.HostKey{RuleID: ruleID, Identity: string(identity)}, nil
}
