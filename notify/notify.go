// Package notify delivers daily digest messages to Telegram.
package notify

import (
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	maxDigestClusters = 3
	maxDigestPapers   = 5
)

// ClusterLine is one cluster row of the digest.
type ClusterLine struct {
	Name  string
	Count int
}

// PaperLine is one paper row of the digest.
type PaperLine struct {
	Title   string
	URL     string
	Upvotes int
}

// Digest is the content of one day's notification.
type Digest struct {
	Date        string
	TotalPapers int
	Clusters    []ClusterLine
	TopPapers   []PaperLine
	Headline    string
}

// Sender sends a prepared Telegram message.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram formats and delivers daily digests to one chat.
type Telegram struct {
	sender Sender
	chatID int64
	logger *slog.Logger
}

// Option configures the notifier.
type Option func(*Telegram)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Telegram) {
		t.logger = logger
	}
}

// NewTelegram connects to the Telegram bot API. Callers with no token
// or chat id configured should keep a nil *Telegram instead; a nil
// notifier ignores Notify calls.
func NewTelegram(token string, chatID int64, opts ...Option) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}

	t := newTelegram(bot, chatID, opts...)
	t.logger.Info("telegram notifier initialized", "username", bot.Self.UserName)
	return t, nil
}

func newTelegram(sender Sender, chatID int64, opts ...Option) *Telegram {
	t := &Telegram{
		sender: sender,
		chatID: chatID,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Notify sends the digest. Delivery failures are logged, never
// returned: a missed digest must not fail the pipeline that produced it.
func (t *Telegram) Notify(d *Digest) {
	if t == nil {
		return
	}

	msg := tgbotapi.NewMessage(t.chatID, FormatDigest(d))
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.DisableWebPagePreview = true

	if _, err := t.sender.Send(msg); err != nil {
		t.logger.Warn("digest delivery failed", "chat_id", t.chatID, "error", err)
		return
	}
	t.logger.Info("digest delivered", "chat_id", t.chatID, "date", d.Date, "papers", d.TotalPapers)
}

// FormatDigest renders the digest as a MarkdownV2 message.
func FormatDigest(d *Digest) string {
	esc := func(s string) string { return tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, s) }

	var sb strings.Builder
	fmt.Fprintf(&sb, "*Daily Papers* %s\n", esc(d.Date))
	if d.TotalPapers == 1 {
		sb.WriteString("1 paper indexed\n")
	} else {
		fmt.Fprintf(&sb, "%d papers indexed\n", d.TotalPapers)
	}

	clusters := d.Clusters
	if len(clusters) > maxDigestClusters {
		clusters = clusters[:maxDigestClusters]
	}
	if len(clusters) > 0 {
		sb.WriteString("\n*Top clusters*\n")
		for _, c := range clusters {
			fmt.Fprintf(&sb, "• %s: %d\n", esc(c.Name), c.Count)
		}
	}

	papers := d.TopPapers
	if len(papers) > maxDigestPapers {
		papers = papers[:maxDigestPapers]
	}
	if len(papers) > 0 {
		sb.WriteString("\n*Top papers*\n")
		for i, p := range papers {
			fmt.Fprintf(&sb, "%d\\. [%s](%s) ▲%d\n", i+1, esc(p.Title), escapeURL(p.URL), p.Upvotes)
		}
	}

	if d.Headline != "" {
		fmt.Fprintf(&sb, "\n🔥 %s\n", esc(d.Headline))
	}
	return sb.String()
}

// Inside a MarkdownV2 inline link URL only ')' and '\' are special.
var urlEscaper = strings.NewReplacer(`\`, `\\`, `)`, `\)`)

func escapeURL(u string) string {
	return urlEscaper.Replace(u)
}
