package delivery

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/maine/news_digest/internal/formatter"
	"github.com/maine/news_digest/internal/logger"
	"github.com/maine/news_digest/internal/news"
	"github.com/maine/news_digest/internal/summarizer"
)

type mockChannel struct {
	name     string
	SendFunc func(ctx context.Context, doc formatter.Document) error
	docs     []formatter.Document
}

func (m *mockChannel) Name() string { return m.name }

func (m *mockChannel) Send(ctx context.Context, doc formatter.Document) error {
	m.docs = append(m.docs, doc)
	if m.SendFunc != nil {
		return m.SendFunc(ctx, doc)
	}
	return nil
}

type mockSummarizer struct {
	SummarizeFunc func(ctx context.Context, text string) string
	inputs        []string
}

func (m *mockSummarizer) Summarize(ctx context.Context, text string) string {
	m.inputs = append(m.inputs, text)
	if m.SummarizeFunc != nil {
		return m.SummarizeFunc(ctx, text)
	}
	return "요약: " + text
}

type recordingRenderer struct {
	entries []news.DigestEntry
	err     error
}

func (r *recordingRenderer) Render(entries []news.DigestEntry) (formatter.Document, error) {
	r.entries = entries
	if r.err != nil {
		return formatter.Document{}, r.err
	}
	return formatter.Document{Subject: "digest", Chunks: []string{"chunk"}}, nil
}

var articles = []news.Article{
	{Title: "삼성 실적", URL: "https://n.example/1", Content: "한국어 본문", Source: "Naver News", Language: "ko"},
	{Title: "Samsung earnings", URL: "https://bbc.example/2", Content: "English body", Source: "BBC", Language: "en"},
	{Title: "No body", URL: "https://bbc.example/3", Source: "BBC", Language: "en"},
}

func TestService_Deliver(t *testing.T) {
	sum := &mockSummarizer{}
	renderer := &recordingRenderer{}
	email := &mockChannel{name: "email"}
	tg := &mockChannel{name: "telegram"}

	svc := New(Config{
		Summarizer: sum,
		Renderer:   renderer,
		Channels:   []Channel{email, tg},
	}, logger.New(io.Discard, false))

	if !svc.Deliver(context.Background(), articles) {
		t.Fatal("Deliver() = false, want true")
	}

	if diff := cmp.Diff([]string{"English body"}, sum.inputs); diff != "" {
		t.Errorf("summarized texts mismatch (-want +got):\n%s", diff)
	}
	if len(renderer.entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(renderer.entries))
	}
	if renderer.entries[0].Summary != "" {
		t.Errorf("native article got summary %q", renderer.entries[0].Summary)
	}
	if renderer.entries[1].Summary != "요약: English body" || renderer.entries[1].SummaryFailed {
		t.Errorf("entry[1] = %+v", renderer.entries[1])
	}
	if len(email.docs) != 1 || len(tg.docs) != 1 {
		t.Errorf("sends: email=%d telegram=%d, want 1 each", len(email.docs), len(tg.docs))
	}
}

func TestService_Deliver_SummaryFailureStillDelivers(t *testing.T) {
	sum := &mockSummarizer{SummarizeFunc: func(ctx context.Context, text string) string {
		return summarizer.MarkerExhausted
	}}
	renderer := &recordingRenderer{}
	email := &mockChannel{name: "email"}

	svc := New(Config{Summarizer: sum, Renderer: renderer, Channels: []Channel{email}}, logger.New(io.Discard, false))
	if !svc.Deliver(context.Background(), articles[1:2]) {
		t.Fatal("Deliver() = false, want true")
	}
	if !renderer.entries[0].SummaryFailed {
		t.Error("SummaryFailed = false, want true")
	}
	if renderer.entries[0].Summary != summarizer.MarkerExhausted {
		t.Errorf("Summary = %q, want marker", renderer.entries[0].Summary)
	}
}

func TestService_Deliver_Failures(t *testing.T) {
	boom := errors.New("smtp down")

	tests := []struct {
		name      string
		renderErr error
		channels  func() []Channel
		want      bool
	}{
		{
			name:     "no channels",
			channels: func() []Channel { return nil },
			want:     false,
		},
		{
			name:      "render error",
			renderErr: errors.New("bad markdown"),
			channels:  func() []Channel { return []Channel{&mockChannel{name: "email"}} },
			want:      false,
		},
		{
			name: "one channel fails",
			channels: func() []Channel {
				return []Channel{
					&mockChannel{name: "email", SendFunc: func(ctx context.Context, doc formatter.Document) error { return boom }},
					&mockChannel{name: "telegram"},
				}
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chans := tt.channels()
			svc := New(Config{
				Renderer: &recordingRenderer{err: tt.renderErr},
				Channels: chans,
			}, logger.New(io.Discard, false))

			if got := svc.Deliver(context.Background(), articles); got != tt.want {
				t.Errorf("Deliver() = %v, want %v", got, tt.want)
			}
			// Сбой одного канала не мешает остальным.
			for _, ch := range chans {
				mc := ch.(*mockChannel)
				if tt.renderErr == nil && len(mc.docs) != 1 {
					t.Errorf("channel %s sends = %d, want 1", mc.name, len(mc.docs))
				}
			}
		})
	}
}

func TestService_Deliver_NoSummarizer(t *testing.T) {
	renderer := &recordingRenderer{}
	svc := New(Config{Renderer: renderer, Channels: []Channel{&mockChannel{name: "email"}}}, nil)

	if !svc.Deliver(context.Background(), articles) {
		t.Fatal("Deliver() = false, want true")
	}
	for _, e := range renderer.entries {
		if e.Summary != "" {
			t.Errorf("entry %q got summary without summarizer", e.Article.Title)
		}
	}
}

func TestService_Deliver_WithRealRenderer(t *testing.T) {
	now := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	email := &mockChannel{name: "email"}
	svc := New(Config{
		Renderer: formatter.NewRenderer(func() time.Time { return now }, 0),
		Channels: []Channel{email},
	}, logger.New(io.Discard, false))

	if !svc.Deliver(context.Background(), articles[:1]) {
		t.Fatal("Deliver() = false, want true")
	}
	if got, want := email.docs[0].Subject, "📰 [뉴스 요약] 2026-10-14 09:00 - 1건"; got != want {
		t.Errorf("Subject = %q, want %q", got, want)
	}
}
