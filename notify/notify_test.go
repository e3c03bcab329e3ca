package notify

import (
	"errors"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type mockSender struct {
	sent []tgbotapi.Chattable
	err  error
}

func (m *mockSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if m.err != nil {
		return tgbotapi.Message{}, m.err
	}
	m.sent = append(m.sent, c)
	return tgbotapi.Message{MessageID: 1}, nil
}

func sampleDigest() *Digest {
	return &Digest{
		Date:        "2025-01-15",
		TotalPapers: 12,
		Clusters: []ClusterLine{
			{Name: "Agents / Tool Use / Workflow", Count: 5},
			{Name: "Benchmark / Evaluation", Count: 3},
		},
		TopPapers: []PaperLine{
			{Title: "Scaling Laws, Revisited", URL: "https://huggingface.co/papers/2501.00001", Upvotes: 45},
		},
		Headline: "New cluster: World Models (6 papers)",
	}
}

func TestFormatDigest(t *testing.T) {
	got := FormatDigest(sampleDigest())

	want := "*Daily Papers* 2025\\-01\\-15\n" +
		"12 papers indexed\n" +
		"\n*Top clusters*\n" +
		"• Agents / Tool Use / Workflow: 5\n" +
		"• Benchmark / Evaluation: 3\n" +
		"\n*Top papers*\n" +
		"1\\. [Scaling Laws, Revisited](https://huggingface.co/papers/2501.00001) ▲45\n" +
		"\n🔥 New cluster: World Models \\(6 papers\\)\n"

	if got != want {
		t.Errorf("FormatDigest mismatch\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestFormatDigestTruncates(t *testing.T) {
	d := &Digest{Date: "2025-01-15", TotalPapers: 30}
	for i := 0; i < 6; i++ {
		d.Clusters = append(d.Clusters, ClusterLine{Name: "Cluster", Count: i})
		d.TopPapers = append(d.TopPapers, PaperLine{Title: "Paper", URL: "https://example.com", Upvotes: i})
	}

	got := FormatDigest(d)
	if n := strings.Count(got, "• "); n != maxDigestClusters {
		t.Errorf("cluster lines = %d, want %d", n, maxDigestClusters)
	}
	if n := strings.Count(got, "]("); n != maxDigestPapers {
		t.Errorf("paper lines = %d, want %d", n, maxDigestPapers)
	}
}

func TestFormatDigestSingleEmptyDay(t *testing.T) {
	got := FormatDigest(&Digest{Date: "2025-01-15", TotalPapers: 1})
	if !strings.Contains(got, "1 paper indexed") {
		t.Errorf("singular form missing: %q", got)
	}
	if strings.Contains(got, "Top clusters") || strings.Contains(got, "Top papers") {
		t.Error("empty sections should be omitted")
	}
}

func TestEscapeURL(t *testing.T) {
	got := escapeURL(`https://example.com/a)b\c`)
	if got != `https://example.com/a\)b\\c` {
		t.Errorf("escapeURL = %q", got)
	}
}

func TestNotifySends(t *testing.T) {
	sender := &mockSender{}
	n := newTelegram(sender, 42)

	n.Notify(sampleDigest())

	if len(sender.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sender.sent))
	}
	msg, ok := sender.sent[0].(tgbotapi.MessageConfig)
	if !ok {
		t.Fatalf("sent %T, want MessageConfig", sender.sent[0])
	}
	if msg.ChatID != 42 {
		t.Errorf("ChatID = %d, want 42", msg.ChatID)
	}
	if msg.ParseMode != tgbotapi.ModeMarkdownV2 {
		t.Errorf("ParseMode = %q, want MarkdownV2", msg.ParseMode)
	}
	if !strings.Contains(msg.Text, "2025\\-01\\-15") {
		t.Errorf("message text missing date: %q", msg.Text)
	}
}

func TestNotifyNilReceiver(t *testing.T) {
	var n *Telegram
	// Disabled notifier must be safe to call.
	n.Notify(sampleDigest())
}

func TestNotifyDeliveryFailure(t *testing.T) {
	sender := &mockSender{err: errors.New("telegram down")}
	n := newTelegram(sender, 42)

	// Must not panic or propagate the error.
	n.Notify(sampleDigest())
}
