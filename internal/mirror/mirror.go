// Package mirror keeps one Discord message per raid in sync with the
// roster projection. The message is identified by a marker in its embed
// footer and is always edited in place, never reposted.
package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/roster"
	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/store"
)

const (
	markerPrefix = "raid:"

	// scanLimit bounds the channel history scan when the stored message id
	// has gone stale.
	scanLimit = 50

	// notifyTimeout bounds a single fire-and-forget sync.
	notifyTimeout = 15 * time.Second
)

// Marker returns the footer marker identifying a raid's roster message.
func Marker(raidID string) string {
	return markerPrefix + raidID
}

// RaidIDFromMarker extracts the raid id from a footer marker.
func RaidIDFromMarker(footer string) (string, bool) {
	id, ok := strings.CutPrefix(footer, markerPrefix)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// Message is the rendered roster message handed to the transport.
type Message struct {
	Payload roster.Payload
	Footer  string
}

// Posted is a message found in a channel scan.
type Posted struct {
	ID     string
	Footer string
}

// Transport posts and edits roster messages in a channel. Implemented by
// the Discord bot; faked in tests.
type Transport interface {
	Send(ctx context.Context, channelID string, m Message) (messageID string, err error)
	Edit(ctx context.Context, channelID, messageID string, m Message) error
	FetchRecent(ctx context.Context, channelID string, limit int) ([]Posted, error)
}

// Synchronizer resolves and updates the single persisted roster message
// for a raid.
type Synchronizer struct {
	raids          store.RaidRepository
	signups        store.SignupRepository
	transport      Transport
	defaultChannel string
	logger         *slog.Logger
	tracer         trace.Tracer
}

// NewSynchronizer returns a Synchronizer. defaultChannel is used for raids
// without a channel of their own.
func NewSynchronizer(raids store.RaidRepository, signups store.SignupRepository, transport Transport, defaultChannel string, logger *slog.Logger, tp trace.TracerProvider) *Synchronizer {
	return &Synchronizer{
		raids:          raids,
		signups:        signups,
		transport:      transport,
		defaultChannel: defaultChannel,
		logger:         logger,
		tracer:         tp.Tracer("github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/mirror"),
	}
}

// Sync brings the raid's roster message up to date. Resolution order:
// stored message id (edit), channel scan for the marker (adopt and edit),
// otherwise send a new message. The resolved ids are persisted.
func (s *Synchronizer) Sync(ctx context.Context, raidID string) (channelID, messageID string, err error) {
	ctx, span := s.tracer.Start(ctx, "Synchronizer.Sync",
		trace.WithAttributes(attribute.String("raid_id", raidID)),
	)
	defer span.End()

	raid, err := s.raids.GetByID(ctx, raidID)
	if err != nil {
		return "", "", err
	}
	rows, err := s.signups.ListByRaid(ctx, raidID)
	if err != nil {
		return "", "", err
	}

	msg := Message{
		Payload: roster.BuildPayload(raid, roster.Build(raid, rows)),
		Footer:  Marker(raidID),
	}

	channelID = s.defaultChannel
	if raid.ChannelID != nil && *raid.ChannelID != "" {
		channelID = *raid.ChannelID
	}
	if channelID == "" {
		return "", "", fmt.Errorf("raid %s has no channel and no default channel is configured", raidID)
	}

	// Stored id first.
	if raid.MessageID != nil && *raid.MessageID != "" {
		if err := s.transport.Edit(ctx, channelID, *raid.MessageID, msg); err == nil {
			return channelID, *raid.MessageID, nil
		} else {
			s.logger.WarnContext(ctx, "stored roster message is stale, rescanning",
				slog.String("raid_id", raidID),
				slog.String("message_id", *raid.MessageID),
				slog.Any("error", err),
			)
		}
	}

	// Scan for an existing marker message before posting a new one.
	if recent, err := s.transport.FetchRecent(ctx, channelID, scanLimit); err == nil {
		for _, posted := range recent {
			id, ok := RaidIDFromMarker(posted.Footer)
			if !ok || id != raidID {
				continue
			}
			if err := s.transport.Edit(ctx, channelID, posted.ID, msg); err != nil {
				return "", "", fmt.Errorf("editing adopted roster message: %w", err)
			}
			if err := s.raids.SetMessage(ctx, raidID, channelID, posted.ID); err != nil {
				return "", "", err
			}
			return channelID, posted.ID, nil
		}
	} else {
		s.logger.WarnContext(ctx, "channel scan failed",
			slog.String("channel_id", channelID), slog.Any("error", err))
	}

	messageID, err = s.transport.Send(ctx, channelID, msg)
	if err != nil {
		return "", "", fmt.Errorf("sending roster message: %w", err)
	}
	if err := s.raids.SetMessage(ctx, raidID, channelID, messageID); err != nil {
		return "", "", err
	}
	return channelID, messageID, nil
}

// Notify syncs the given raids in the background. It never blocks and
// never fails the caller; transport errors are only logged.
func (s *Synchronizer) Notify(raidIDs ...string) {
	for _, raidID := range raidIDs {
		go func(raidID string) {
			ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
			defer cancel()
			if _, _, err := s.Sync(ctx, raidID); err != nil {
				s.logger.ErrorContext(ctx, "background roster sync failed",
					slog.String("raid_id", raidID), slog.Any("error", err))
			}
		}(raidID)
	}
}
