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

import "strings"

const (
	// DefaultMaxValueLength is the number of characters kept from a check's
	// returned value.
	DefaultMaxValueLength = 255
	// DefaultMaxDNSLength bounds resolved host names the same way.
	DefaultMaxDNSLength = 255
)

// Truncate cuts value to at most maxLen characters without splitting a
// multi-byte rune. A maxLen of zero or less leaves value unchanged.
func Truncate(value string, maxLen int) string {
	if maxLen <= 0 || len(value) <= maxLen {
		return value
	}

	count := 0
	for i := range value {
		if count == maxLen {
			return value[:i]
		}
		count++
	}

	return value
}

// CleanValue prepares a check's text for storage: invalid UTF-8 sequences
// become U+FFFD, NUL bytes are dropped and the result is truncated to
// maxLen characters. Text columns reject the first two, so binary check
// output would otherwise fail every write.
func CleanValue(value string, maxLen int) string {
	value = strings.ToValidUTF8(value, "\uFFFD")
	value = strings.ReplaceAll(value, "\x00", "")

	return Truncate(value, maxLen)
}
