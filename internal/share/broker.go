// Package share fans a share notification out to its recipients and reports
// the per-recipient outcome back to the sender. The broker keeps no history
// and never retries.
package share

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"flowshare/internal/protocol"
	"flowshare/internal/registry"
)

var (
	ErrNoRecipients        = errors.New("share has no recipients")
	ErrSenderNotRegistered = errors.New("sender is not registered")
)

// Result is the per-recipient outcome of one fan-out.
type Result struct {
	Delivered []string
	Offline   []string
}

func (r Result) AllDelivered() bool {
	return len(r.Offline) == 0
}

type Broker struct {
	logger   *slog.Logger
	registry *registry.Registry
}

func NewBroker(reg *registry.Registry, logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{
		logger:   logger,
		registry: reg,
	}
}

// Submit validates the request, delivers incoming_share to each reachable
// recipient and replies to the sender with a single aggregate message. A
// recipient that cannot be reached, whether unknown or freshly disconnected,
// counts as offline; the fan-out itself never fails because of it.
func (b *Broker) Submit(senderID string, toUserIDs []string, data protocol.ShareData) (Result, error) {
	sender, ok := b.registry.Lookup(senderID)
	if !ok {
		return Result{}, ErrSenderNotRegistered
	}

	if len(toUserIDs) == 0 {
		return Result{}, ErrNoRecipients
	}

	notification := &protocol.IncomingShare{
		FromUserID:    sender.ID,
		FromCharacter: sender.Character,
		ShareData:     data,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	}

	var result Result
	for _, id := range toUserIDs {
		recipient, ok := b.registry.Lookup(id)
		if !ok {
			result.Offline = append(result.Offline, id)
			continue
		}
		if err := recipient.Conn.Send(notification); err != nil {
			b.logger.Debug("Share delivery failed", "recipient", id, "error", err)
			result.Offline = append(result.Offline, id)
			continue
		}
		result.Delivered = append(result.Delivered, id)
	}

	b.reply(sender, result)
	b.logger.Info("Share fanned out",
		"sender", senderID,
		"delivered", len(result.Delivered),
		"offline", len(result.Offline))
	return result, nil
}

func (b *Broker) reply(sender *registry.Peer, result Result) {
	var reply protocol.Message
	if result.AllDelivered() {
		reply = &protocol.ShareSuccess{
			Message: fmt.Sprintf("Shared with %d %s", len(result.Delivered), plural(len(result.Delivered))),
		}
	} else {
		reply = &protocol.ShareFailed{
			Message:       fmt.Sprintf("Could not reach: %s", strings.Join(result.Offline, ", ")),
			FailedUserIDs: result.Offline,
		}
	}

	if err := sender.Conn.Send(reply); err != nil {
		b.logger.Debug("Share reply failed", "sender", sender.ID, "error", err)
	}
}

func plural(n int) string {
	if n == 1 {
		return "peer"
	}
	return "peers"
}
