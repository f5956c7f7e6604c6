package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"dexwatch/internal/discord"
	"dexwatch/internal/format"
	"dexwatch/internal/market"
	"dexwatch/internal/recognizer"
)

const (
	reportTrigger = "查看记录"
	queryTrigger  = "查询"

	reportTitle = "今日所有用户的查询记录"
	reportEmpty = "今天没有查询记录。"
	embedColor  = 0x1ABC9C
)

// ProcessMessage runs the full triage for one inbound message: own/bot
// filter, address recognition, then the report and symbol-query triggers.
// A failed reply or lookup never stops the worker; the user gets one of two
// static error strings and processing continues with the next message.
func (mp *MessageProcessor) ProcessMessage(ctx context.Context, msg discord.Message) error {
	if msg.Author.Bot {
		return nil
	}
	if id := mp.botUserID(); id != "" && msg.Author.ID == id {
		return nil
	}
	if mp.isDuplicate(ctx, msg) {
		return nil
	}

	if candidate := recognizer.FindAddress(msg.Content); candidate != nil {
		return mp.handleAddress(ctx, msg, candidate)
	}

	if strings.Contains(msg.Content, reportTrigger) {
		if err := mp.handleReport(ctx, msg); err != nil {
			return err
		}
		// No return: a message can carry both triggers.
	}

	if strings.Contains(msg.Content, queryTrigger) {
		return mp.handleQuery(ctx, msg)
	}

	return nil
}

func (mp *MessageProcessor) handleAddress(ctx context.Context, msg discord.Message, candidate *recognizer.Candidate) error {
	mp.log.Info("address_recognized",
		"message_id", msg.ID,
		"family", candidate.Family.String(),
		"address", candidate.Address,
	)

	rec, err := mp.markets.LookupByAddress(ctx, candidate.Address)
	if err != nil {
		mp.log.Warn("address_lookup_failed", "address", candidate.Address, "error", err)
		return mp.replier.SendText(ctx, msg.ChannelID,
			fmt.Sprintf("输入的代币 `%s` 不存在或数据获取失败。", candidate.Address))
	}

	mp.activity.RecordSighting(ctx, msg.Author.ID, msg.DisplayName(), candidate.Address)
	mp.archiveLogo(candidate.Address, rec)

	return mp.sendRecord(ctx, msg.ChannelID, rec)
}

func (mp *MessageProcessor) handleReport(ctx context.Context, msg discord.Message) error {
	entries, err := mp.activity.TodaySummary(ctx)
	if err != nil {
		mp.log.Warn("today_summary_failed", "error", err)
		return mp.replier.SendText(ctx, msg.ChannelID, reportEmpty)
	}

	if len(entries) == 0 {
		return mp.replier.SendText(ctx, msg.ChannelID, reportEmpty)
	}

	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s: %s", e.DisplayName, e.Value)
	}

	return mp.replier.SendEmbed(ctx, msg.ChannelID, discord.Embed{
		Title:       reportTitle,
		Description: b.String(),
	})
}

func (mp *MessageProcessor) handleQuery(ctx context.Context, msg discord.Message) error {
	// Symbol is everything after the last occurrence of the trigger.
	idx := strings.LastIndex(msg.Content, queryTrigger)
	symbol := strings.TrimSpace(msg.Content[idx+len(queryTrigger):])

	// Logged before the lookup, so failed queries still show in the report.
	mp.activity.RecordQuery(ctx, msg.Author.ID, msg.DisplayName(), symbol)

	rec, err := mp.markets.LookupBySymbol(ctx, symbol)
	if err != nil {
		mp.log.Warn("symbol_lookup_failed", "symbol", symbol, "error", err)
		if errors.Is(err, market.ErrNotFound) {
			return mp.replier.SendText(ctx, msg.ChannelID,
				fmt.Sprintf("没有找到匹配的代币 `%s`。", symbol))
		}
		return mp.replier.SendText(ctx, msg.ChannelID,
			fmt.Sprintf("输入的代币 `%s` 不存在或数据获取失败。", symbol))
	}

	mp.archiveLogo(rec.Address, rec)

	return mp.sendRecord(ctx, msg.ChannelID, rec)
}

func (mp *MessageProcessor) sendRecord(ctx context.Context, channelID string, rec *market.TokenRecord) error {
	block := format.Render(rec)

	embed := discord.Embed{
		Title:       block.Title,
		Description: block.Text,
	}
	if block.Title != "" {
		embed.Color = embedColor
	}
	if block.ImageURL != "" {
		embed.Image = &discord.EmbedImage{URL: block.ImageURL}
	}
	if block.ThumbnailURL != "" {
		embed.Thumbnail = &discord.EmbedThumbnail{URL: block.ThumbnailURL}
	}

	return mp.replier.SendEmbed(ctx, channelID, embed)
}

func (mp *MessageProcessor) archiveLogo(address string, rec *market.TokenRecord) {
	if mp.logos == nil || rec.ImageURL == "" {
		return
	}
	mp.logos.Enqueue(address, rec.Symbol, rec.ImageURL)
}
