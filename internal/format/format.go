// Package format renders normalized market records into the reply blocks the
// bot posts back to chat. All labels are fixed; any field whose source value
// is unknown renders the literal placeholder, never an empty string.
package format

import (
	"fmt"
	"strings"
	"time"

	"dexwatch/internal/market"
)

// Placeholder substitutes for any field the provider omitted.
const Placeholder = "无"

// reportingZone is the fixed display timezone for creation timestamps.
var reportingZone = time.FixedZone("UTC+8", 8*60*60)

// Block is a rendered reply. Title and ThumbnailURL are set only for
// reference-provider records; ImageURL only for aggregator records.
type Block struct {
	Title        string
	Text         string
	ImageURL     string
	ThumbnailURL string
}

// Render formats a record using the style matching its source provider.
func Render(rec *market.TokenRecord) Block {
	return renderAt(rec, time.Now())
}

func renderAt(rec *market.TokenRecord, now time.Time) Block {
	if rec.Source == market.SourceReference {
		return renderReference(rec)
	}
	return renderAggregator(rec, now)
}

// renderAggregator builds the long description block used for address
// lookups and aggregator fallbacks.
func renderAggregator(rec *market.TokenRecord, now time.Time) Block {
	var b strings.Builder

	writeLine(&b, "名称", textOr(rec.Name))
	writeLine(&b, "地址", textOr(rec.Address))
	writeLine(&b, "现在价格", money(rec.PriceUSD, 8))
	writeLine(&b, "5分钟涨跌幅", percent(rec.Change5m, 2))
	writeLine(&b, "1小时涨跌幅", percent(rec.Change1h, 2))
	writeLine(&b, "6小时涨跌幅", percent(rec.Change6h, 2))
	writeLine(&b, "24小时涨跌幅", percent(rec.Change24h, 2))
	writeLine(&b, "创建时间", createdAt(rec.PairCreatedAt))
	writeLine(&b, "距离时间", elapsed(rec.PairCreatedAt, now))
	writeLine(&b, "24小时交易量", number(rec.Volume24h, 2))
	writeLine(&b, "流动性", money(rec.LiquidityUSD, 2))
	writeLine(&b, "代币总数量", number(rec.BaseSupply, 0))

	b.WriteString("\n**社交**:\n")
	for _, s := range rec.Socials {
		fmt.Fprintf(&b, "%s: <%s>\n", s.Platform, s.URL)
	}
	if rec.URL != "" {
		fmt.Fprintf(&b, "\n**网址**: <%s>", rec.URL)
	} else {
		fmt.Fprintf(&b, "\n**网址**: %s", Placeholder)
	}

	return Block{Text: b.String(), ImageURL: rec.ImageURL}
}

// renderReference builds the field-list block used for symbol lookups
// resolved by the reference provider, which carries rank/supply extras.
func renderReference(rec *market.TokenRecord) Block {
	var b strings.Builder

	writeLine(&b, "价格", money(rec.PriceUSD, 8))
	writeLine(&b, "1小时涨跌幅", percent(rec.Change1h, 1))
	writeLine(&b, "24小时涨跌幅", percent(rec.Change24h, 1))
	writeLine(&b, "7天涨跌幅", percent(rec.Change7d, 1))
	writeLine(&b, "市值排名", rank(rec.MarketCapRank))
	writeLine(&b, "发行总量", number(rec.TotalSupply, 0))
	writeLine(&b, "流通数量", number(rec.CirculatingSupply, 0))
	writeLine(&b, "项目方网站", social(rec.Socials, "Website"))
	writeLine(&b, "推特", social(rec.Socials, "Twitter"))
	writeLine(&b, "Discord", social(rec.Socials, "Chat"))

	title := rec.Name
	if rec.Symbol != "" {
		title = fmt.Sprintf("%s (%s)", rec.Name, rec.Symbol)
	}

	return Block{Title: title, Text: b.String(), ThumbnailURL: rec.ImageURL}
}

func writeLine(b *strings.Builder, label, value string) {
	fmt.Fprintf(b, "**%s**: %s\n", label, value)
}

func textOr(s string) string {
	if s == "" {
		return Placeholder
	}
	return s
}

func money(v *float64, decimals int) string {
	if v == nil {
		return Placeholder
	}
	return "$" + groupThousands(fmt.Sprintf("%.*f", decimals, *v))
}

func number(v *float64, decimals int) string {
	if v == nil {
		return Placeholder
	}
	return groupThousands(fmt.Sprintf("%.*f", decimals, *v))
}

func percent(v *float64, decimals int) string {
	if v == nil {
		return Placeholder
	}
	return fmt.Sprintf("%.*f%%", decimals, *v)
}

func rank(v *int) string {
	if v == nil {
		return Placeholder
	}
	return fmt.Sprintf("%d", *v)
}

func social(links []market.SocialLink, platform string) string {
	for _, l := range links {
		if l.Platform == platform {
			return l.URL
		}
	}
	return Placeholder
}

func createdAt(t *time.Time) string {
	if t == nil {
		return Placeholder
	}
	return t.In(reportingZone).Format("2006-01-02 15:04:05") + " (UTC+8)"
}

// elapsed reports whole days/hours/minutes since creation, floor-divided.
func elapsed(t *time.Time, now time.Time) string {
	if t == nil {
		return Placeholder
	}
	total := int64(now.Sub(*t).Seconds())
	if total < 0 {
		total = 0
	}
	days := total / 86400
	rem := total % 86400
	return fmt.Sprintf("%d天 %d小时 %d分钟", days, rem/3600, (rem/60)%60)
}

// groupThousands inserts comma separators into the integer part of an
// already-formatted decimal string.
func groupThousands(s string) string {
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	intPart, fracPart, hasFrac := strings.Cut(s, ".")

	if len(intPart) > 3 {
		var b strings.Builder
		lead := len(intPart) % 3
		if lead > 0 {
			b.WriteString(intPart[:lead])
		}
		for i := lead; i < len(intPart); i += 3 {
			if b.Len() > 0 {
				b.WriteByte(',')
			}
			b.WriteString(intPart[i : i+3])
		}
		intPart = b.String()
	}

	out := intPart
	if hasFrac {
		out += "." + fracPart
	}
	if neg {
		out = "-" + out
	}
	return out
}
