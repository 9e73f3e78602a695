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

// Package natsutil publishes discovery events to NATS JetStream as
// CloudEvents and holds the shared NATS connection helpers.
package natsutil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/netdiscovery/pkg/logger"
	"github.com/carverauto/netdiscovery/pkg/models"
)

const (
	eventSource      = "netdiscovery/reconciler"
	eventTypePrefix  = "com.carverauto.netdiscovery."
	eventSubjectBase = "events.discovery."
	eventSpecVersion = "1.0"
	contentTypeJSON  = "application/json"
)

var errStreamNameRequired = errors.New("stream name is required")

// jsPublisher is the part of jetstream.JetStream the publisher needs.
type jsPublisher interface {
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// EventPublisher publishes discovery events as CloudEvents. It satisfies the
// reconciler's event sink.
type EventPublisher struct {
	js            jsPublisher
	stream        string
	subjectPrefix string
	logger        logger.Logger
}

// NewEventPublisher creates a publisher bound to stream.
func NewEventPublisher(js jetstream.JetStream, streamName, subjectPrefix string, log logger.Logger) *EventPublisher {
	return newEventPublisher(js, streamName, subjectPrefix, log)
}

func newEventPublisher(js jsPublisher, streamName, subjectPrefix string, log logger.Logger) *EventPublisher {
	return &EventPublisher{
		js:            js,
		stream:        streamName,
		subjectPrefix: strings.Trim(subjectPrefix, "."),
		logger:        log,
	}
}

// SubjectFor returns the subject an event of kind is published on.
func (p *EventPublisher) SubjectFor(kind models.DiscoveryEventKind) string {
	subject := eventSubjectBase + string(kind)
	if p.subjectPrefix == "" {
		return subject
	}

	return p.subjectPrefix + "." + subject
}

// Publish wraps event in a CloudEvent and publishes it. The CloudEvent id is
// also the JetStream message id, so retries within the stream's duplicate
// window are dropped server side.
func (p *EventPublisher) Publish(ctx context.Context, event models.DiscoveryEvent) error {
	ts := event.Timestamp
	subject := p.SubjectFor(event.Kind)

	ce := models.CloudEvent{
		SpecVersion:     eventSpecVersion,
		ID:              uuid.New().String(),
		Source:          eventSource,
		Type:            eventTypePrefix + string(event.Kind),
		DataContentType: contentTypeJSON,
		Subject:         subject,
		Time:            &ts,
		Data:            event,
	}

	payload, err := json.Marshal(ce)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event.Kind, err)
	}

	ack, err := p.js.Publish(ctx, subject, payload, jetstream.WithMsgID(ce.ID))
	if err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.Kind, err)
	}

	p.logger.Debug().
		Str("event_id", ce.ID).
		Str("subject", subject).
		Uint64("seq", ack.Sequence).
		Msg("Published discovery event")

	return nil
}

// CreateEventPublisher creates a publisher on an existing connection and makes
// sure the events stream exists and captures the discovery subjects.
func CreateEventPublisher(
	ctx context.Context, nc *nats.Conn, domain string, cfg *models.EventsConfig, log logger.Logger) (*EventPublisher, error) {
	if cfg == nil || cfg.StreamName == "" {
		return nil, errStreamNameRequired
	}

	js, err := NewJetStream(nc, domain)
	if err != nil {
		return nil, err
	}

	publisher := NewEventPublisher(js, cfg.StreamName, cfg.SubjectPrefix, log)
	wanted := publisher.SubjectFor("") + ">"

	stream, err := js.Stream(ctx, cfg.StreamName)

	switch {
	case err == nil:
		info, infoErr := stream.Info(ctx)
		if infoErr != nil {
			return nil, fmt.Errorf("failed to read stream %s: %w", cfg.StreamName, infoErr)
		}

		subjects := ensureSubjectList(append([]string(nil), info.Config.Subjects...), wanted)
		if len(subjects) == len(info.Config.Subjects) {
			break
		}

		streamCfg := info.Config
		streamCfg.Subjects = subjects

		if _, err := js.UpdateStream(ctx, streamCfg); err != nil {
			return nil, fmt.Errorf("failed to add %s to stream %s: %w", wanted, cfg.StreamName, err)
		}

		log.Info().Str("stream", cfg.StreamName).Strs("subjects", subjects).Msg("Updated NATS JetStream stream subjects")
	case isStreamMissingErr(err):
		subjects := ensureSubjectList(append([]string(nil), cfg.Subjects...), wanted)

		if _, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
			Name:     cfg.StreamName,
			Subjects: subjects,
		}); err != nil {
			return nil, fmt.Errorf("failed to create stream %s: %w", cfg.StreamName, err)
		}

		log.Info().Str("stream", cfg.StreamName).Strs("subjects", subjects).Msg("Created NATS JetStream stream")
	default:
		return nil, fmt.Errorf("failed to look up stream %s: %w", cfg.StreamName, err)
	}

	return publisher, nil
}

// NewJetStream returns a JetStream context for nc, scoped to domain when set.
func NewJetStream(nc *nats.Conn, domain string) (jetstream.JetStream, error) {
	if domain == "" {
		js, err := jetstream.New(nc)
		if err != nil {
			return nil, fmt.Errorf("failed to create JetStream context: %w", err)
		}

		return js, nil
	}

	js, err := jetstream.NewWithDomain(nc, domain)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context with domain %s: %w", domain, err)
	}

	return js, nil
}

func isStreamMissingErr(err error) bool {
	return errors.Is(err, jetstream.ErrStreamNotFound) ||
		errors.Is(err, jetstream.ErrNoStreamResponse) ||
		errors.Is(err, nats.ErrStreamNotFound) ||
		errors.Is(err, nats.ErrNoStreamResponse) ||
		errors.Is(err, nats.ErrNoResponders)
}

// ensureSubjectList appends subject unless a pattern in subjects already
// matches it.
func ensureSubjectList(subjects []string, subject string) []string {
	for _, pattern := range subjects {
		if matchesSubject(pattern, subject) {
			return subjects
		}
	}

	return append(subjects, subject)
}

// matchesSubject reports whether the NATS subject pattern covers subject.
// "*" matches one token and a trailing ">" matches one or more.
func matchesSubject(pattern, subject string) bool {
	pTokens := strings.Split(pattern, ".")
	sTokens := strings.Split(subject, ".")

	for i, tok := range pTokens {
		if tok == ">" {
			return i == len(pTokens)-1 && len(sTokens) > i
		}

		if i >= len(sTokens) || (sTokens[i] == ">" && tok != ">") {
			return false
		}

		if tok != "*" && tok != sTokens[i] {
			return false
		}
	}

	return len(pTokens) == len(sTokens)
}
