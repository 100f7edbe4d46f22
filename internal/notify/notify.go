// Package notify delivers outbound Telegram messages with a global send
// rate limit. Delivery failures are absorbed here: callers learn success
// or failure from the return value and never see an error.
package notify

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/SanjarbekFayzullayev/rnd-smart-bot/internal/config"
	"github.com/SanjarbekFayzullayev/rnd-smart-bot/pkg/logx"
)

// ModeMarkdown is the parse mode used by the bot's formatted messages.
const ModeMarkdown = "Markdown"

// Sender is the transport the notifier delivers through.
type Sender interface {
	SendText(ctx context.Context, recipientID, text, parseMode string) error
}

type Notifier struct {
	sender Sender
	log    logx.Logger

	mu      sync.Mutex
	limiter *rate.Limiter
}

func New(cfg config.NotifyConfig, sender Sender, log logx.Logger) *Notifier {
	return &Notifier{
		sender:  sender,
		log:     log,
		limiter: rate.NewLimiter(sendRate(cfg), 1),
	}
}

func sendRate(cfg config.NotifyConfig) rate.Limit {
	if cfg.RatePerSec <= 0 {
		return rate.Inf
	}
	return rate.Limit(cfg.RatePerSec)
}

// Apply updates the send rate without dropping in-flight waiters.
func (n *Notifier) Apply(cfg config.NotifyConfig) {
	n.mu.Lock()
	n.limiter.SetLimit(sendRate(cfg))
	n.mu.Unlock()
}

func (n *Notifier) wait(ctx context.Context) error {
	n.mu.Lock()
	l := n.limiter
	n.mu.Unlock()
	return l.Wait(ctx)
}

// Send delivers text to one recipient. When the transport rejects the
// message for a formatting reason, it is retried once with the parse
// mode stripped so a bad entity never loses the message.
func (n *Notifier) Send(ctx context.Context, recipientID, text, parseMode string) bool {
	if err := n.wait(ctx); err != nil {
		n.log.Warn("send: rate wait aborted", logx.String("to", recipientID), logx.Err(err))
		return false
	}

	err := n.sender.SendText(ctx, recipientID, text, parseMode)
	if err == nil {
		return true
	}

	if parseMode != "" && isFormatError(err) {
		n.log.Warn("send: format rejected, retrying plain",
			logx.String("to", recipientID), logx.Err(err))
		if err = n.sender.SendText(ctx, recipientID, text, ""); err == nil {
			return true
		}
	}

	n.log.Error("send failed", logx.String("to", recipientID), logx.Err(err))
	return false
}

// isFormatError classifies Telegram API rejections caused by the message
// text itself rather than by the recipient or the network.
func isFormatError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "can't parse entities") ||
		strings.Contains(msg, "unsupported parse_mode") ||
		strings.Contains(msg, "can't parse message text")
}
