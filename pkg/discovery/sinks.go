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
	"errors"

	"github.com/carverauto/netdiscovery/pkg/models"
)

// ErrSinkFull is returned by ChannelSink when its buffer is full.
var ErrSinkFull = errors.New("event sink buffer full")

// NopSink drops every event.
type NopSink struct{}

func (NopSink) Publish(context.Context, models.DiscoveryEvent) error { return nil }

// ChannelSink hands events to an in-process consumer. Publish never blocks;
// events that do not fit in the buffer are dropped with ErrSinkFull.
type ChannelSink struct {
	ch chan models.DiscoveryEvent
}

// NewChannelSink creates a sink buffering up to size events.
func NewChannelSink(size int) *ChannelSink {
	return &ChannelSink{ch: make(chan models.DiscoveryEvent, size)}
}

func (s *ChannelSink) Publish(_ context.Context, event models.DiscoveryEvent) error {
	select {
	case s.ch <- event:
		return nil
	default:
		return ErrSinkFull
	}
}

// Events returns the receive side of the buffer.
func (s *ChannelSink) Events() <-chan models.DiscoveryEvent {
	return s.ch
}

// Drain returns every buffered event without blocking.
func (s *ChannelSink) Drain() []models.DiscoveryEvent {
	var out []models.DiscoveryEvent

	for {
		select {
		case ev := <-s.ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

// MultiSink fans an event out to several sinks and joins their errors.
type MultiSink []EventSink

func (m MultiSink) Publish(ctx context.Context, event models.DiscoveryEvent) error {
	var errs []error

	for _, sink := range m {
		if sink == nil {
			continue
		}

		if err := sink.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
