package processor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"dexwatch/internal/activitylog"
	"dexwatch/internal/discord"
	"dexwatch/internal/market"
)

type fakeMarket struct {
	byAddress func(address string) (*market.TokenRecord, error)
	bySymbol  func(symbol string) (*market.TokenRecord, error)
}

func (f *fakeMarket) LookupByAddress(_ context.Context, address string) (*market.TokenRecord, error) {
	return f.byAddress(address)
}

func (f *fakeMarket) LookupBySymbol(_ context.Context, symbol string) (*market.TokenRecord, error) {
	return f.bySymbol(symbol)
}

type fakeReplier struct {
	texts  []string
	embeds []discord.Embed
}

func (f *fakeReplier) SendText(_ context.Context, _, content string) error {
	f.texts = append(f.texts, content)
	return nil
}

func (f *fakeReplier) SendEmbed(_ context.Context, _ string, embed discord.Embed) error {
	f.embeds = append(f.embeds, embed)
	return nil
}

type fakeActivity struct {
	sightings []string
	queries   []string
	summary   []activitylog.Entry
}

func (f *fakeActivity) RecordSighting(_ context.Context, _, _, address string) {
	f.sightings = append(f.sightings, address)
}

func (f *fakeActivity) RecordQuery(_ context.Context, _, _, query string) {
	f.queries = append(f.queries, query)
}

func (f *fakeActivity) TodaySummary(_ context.Context) ([]activitylog.Entry, error) {
	return f.summary, nil
}

func newTestProcessor(markets MarketService, replier Replier, activity ActivityRecorder) *MessageProcessor {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewMessageProcessor(logger, nil, markets, replier, activity, nil, func() string { return "bot-id" })
}

func userMessage(content string) discord.Message {
	return discord.Message{
		ID:        "msg-1",
		ChannelID: "chan-1",
		Author:    discord.MessageAuthor{ID: "user-1", Username: "alice"},
		Content:   content,
	}
}

const hexAddress = "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B"

func TestProcessMessage_IgnoresBots(t *testing.T) {
	markets := &fakeMarket{
		byAddress: func(string) (*market.TokenRecord, error) {
			t.Fatal("lookup should not run for bot messages")
			return nil, nil
		},
	}
	replier := &fakeReplier{}
	mp := newTestProcessor(markets, replier, &fakeActivity{})

	msg := userMessage(hexAddress)
	msg.Author.Bot = true

	if err := mp.ProcessMessage(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(replier.texts)+len(replier.embeds) != 0 {
		t.Error("bot message must not produce a reply")
	}
}

func TestProcessMessage_IgnoresOwnMessages(t *testing.T) {
	replier := &fakeReplier{}
	mp := newTestProcessor(&fakeMarket{}, replier, &fakeActivity{})

	msg := userMessage("查询 BTC")
	msg.Author.ID = "bot-id"

	if err := mp.ProcessMessage(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(replier.texts)+len(replier.embeds) != 0 {
		t.Error("own message must not produce a reply")
	}
}

func TestProcessMessage_AddressLookupRepliesAndLogs(t *testing.T) {
	price := 1.5
	markets := &fakeMarket{
		byAddress: func(address string) (*market.TokenRecord, error) {
			return &market.TokenRecord{
				Name:     "Test Token",
				Address:  address,
				PriceUSD: &price,
				ImageURL: "https://img.example/t.png",
				Source:   market.SourceAggregator,
			}, nil
		},
	}
	replier := &fakeReplier{}
	activity := &fakeActivity{}
	mp := newTestProcessor(markets, replier, activity)

	if err := mp.ProcessMessage(context.Background(), userMessage("check "+hexAddress)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(replier.embeds) != 1 {
		t.Fatalf("expected one embed reply, got %d", len(replier.embeds))
	}
	if !strings.Contains(replier.embeds[0].Description, "**地址**: "+hexAddress) {
		t.Errorf("embed must carry the literal address:\n%s", replier.embeds[0].Description)
	}
	if replier.embeds[0].Image == nil || replier.embeds[0].Image.URL != "https://img.example/t.png" {
		t.Error("embed must carry the token image")
	}
	if len(activity.sightings) != 1 || activity.sightings[0] != hexAddress {
		t.Errorf("expected one sighting for the address, got %v", activity.sightings)
	}
}

func TestProcessMessage_AddressLookupFailureSendsStaticError(t *testing.T) {
	markets := &fakeMarket{
		byAddress: func(string) (*market.TokenRecord, error) {
			return nil, fmt.Errorf("upstream exploded")
		},
	}
	replier := &fakeReplier{}
	activity := &fakeActivity{}
	mp := newTestProcessor(markets, replier, activity)

	if err := mp.ProcessMessage(context.Background(), userMessage(hexAddress)); err != nil {
		t.Fatalf("failures must not propagate to the worker: %v", err)
	}

	if len(replier.texts) != 1 || !strings.Contains(replier.texts[0], "不存在或数据获取失败") {
		t.Errorf("expected generic failure text, got %v", replier.texts)
	}
	if len(activity.sightings) != 0 {
		t.Error("failed lookups must not be recorded as sightings")
	}
}

func TestProcessMessage_QuerySymbolAfterLastTrigger(t *testing.T) {
	var lookedUp string
	markets := &fakeMarket{
		bySymbol: func(symbol string) (*market.TokenRecord, error) {
			lookedUp = symbol
			return &market.TokenRecord{Name: "Bitcoin", Symbol: "BTC", Source: market.SourceReference}, nil
		},
	}
	replier := &fakeReplier{}
	activity := &fakeActivity{}
	mp := newTestProcessor(markets, replier, activity)

	if err := mp.ProcessMessage(context.Background(), userMessage("帮我查询一下 查询 BTC ")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if lookedUp != "BTC" {
		t.Errorf("expected symbol after the last trigger, got %q", lookedUp)
	}
	if len(replier.embeds) != 1 || replier.embeds[0].Title != "Bitcoin (BTC)" {
		t.Errorf("expected reference-style embed, got %+v", replier.embeds)
	}
}

func TestProcessMessage_QueryLoggedBeforeLookup(t *testing.T) {
	activity := &fakeActivity{}
	markets := &fakeMarket{
		bySymbol: func(string) (*market.TokenRecord, error) {
			if len(activity.queries) != 1 {
				t.Error("query must be recorded before the lookup runs")
			}
			return nil, fmt.Errorf("boom: %w", market.ErrNotFound)
		},
	}
	replier := &fakeReplier{}
	mp := newTestProcessor(markets, replier, activity)

	if err := mp.ProcessMessage(context.Background(), userMessage("查询 GHOST")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(activity.queries) != 1 || activity.queries[0] != "GHOST" {
		t.Errorf("expected recorded query GHOST, got %v", activity.queries)
	}
	if len(replier.texts) != 1 || !strings.Contains(replier.texts[0], "没有找到匹配的代币 `GHOST`") {
		t.Errorf("expected not-found text, got %v", replier.texts)
	}
}

func TestProcessMessage_ReportEmptyDay(t *testing.T) {
	replier := &fakeReplier{}
	mp := newTestProcessor(&fakeMarket{}, replier, &fakeActivity{})

	if err := mp.ProcessMessage(context.Background(), userMessage("查看记录")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(replier.texts) != 1 || replier.texts[0] != "今天没有查询记录。" {
		t.Errorf("expected empty-day text, got %v", replier.texts)
	}
}

func TestProcessMessage_ReportListsAddressesThenQueries(t *testing.T) {
	activity := &fakeActivity{
		summary: []activitylog.Entry{
			{DisplayName: "alice", Value: hexAddress},
			{DisplayName: "bob", Value: "BTC"},
		},
	}
	replier := &fakeReplier{}
	mp := newTestProcessor(&fakeMarket{}, replier, activity)

	if err := mp.ProcessMessage(context.Background(), userMessage("查看记录")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(replier.embeds) != 1 {
		t.Fatalf("expected one embed, got %d", len(replier.embeds))
	}
	embed := replier.embeds[0]
	if embed.Title != "今日所有用户的查询记录" {
		t.Errorf("wrong report title %q", embed.Title)
	}
	want := "alice: " + hexAddress + "\nbob: BTC"
	if embed.Description != want {
		t.Errorf("wrong report body:\ngot  %q\nwant %q", embed.Description, want)
	}
}

func TestProcessMessage_AddressShortCircuitsTriggers(t *testing.T) {
	markets := &fakeMarket{
		byAddress: func(address string) (*market.TokenRecord, error) {
			return &market.TokenRecord{Address: address, Source: market.SourceAggregator}, nil
		},
		bySymbol: func(string) (*market.TokenRecord, error) {
			t.Fatal("symbol lookup must not run when an address matched")
			return nil, nil
		},
	}
	replier := &fakeReplier{}
	mp := newTestProcessor(markets, replier, &fakeActivity{})

	if err := mp.ProcessMessage(context.Background(), userMessage("查询 "+hexAddress)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(replier.embeds) != 1 {
		t.Errorf("expected the address reply only, got %d embeds and %d texts", len(replier.embeds), len(replier.texts))
	}
}
