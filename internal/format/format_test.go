package format

import (
	"strings"
	"testing"
	"time"

	"dexwatch/internal/market"
)

func f(v float64) *float64 { return &v }

func TestRenderAggregator_AllFieldsPresent(t *testing.T) {
	created := time.Date(2024, 4, 22, 0, 0, 0, 0, time.UTC)
	now := created.Add(3*24*time.Hour + 5*time.Hour + 42*time.Minute + 30*time.Second)

	rec := &market.TokenRecord{
		Name:          "Wrapped SOL",
		Address:       "So11111111111111111111111111111111111111112",
		PriceUSD:      f(151.42),
		Volume24h:     f(1234567.891),
		LiquidityUSD:  f(9876543.215),
		BaseSupply:    f(500000),
		Change5m:      f(0.12),
		Change1h:      f(-1.5),
		Change6h:      f(3.4),
		Change24h:     f(7.8),
		PairCreatedAt: &created,
		Socials:       []market.SocialLink{{Platform: "Twitter", URL: "https://twitter.com/solana"}},
		URL:           "https://dexscreener.com/solana/pair1",
		ImageURL:      "https://img.example/sol.png",
		Source:        market.SourceAggregator,
	}

	block := renderAt(rec, now)

	wantLines := []string{
		"**名称**: Wrapped SOL",
		"**地址**: So11111111111111111111111111111111111111112",
		"**现在价格**: $151.42000000",
		"**5分钟涨跌幅**: 0.12%",
		"**24小时涨跌幅**: 7.80%",
		"**创建时间**: 2024-04-22 08:00:00 (UTC+8)",
		"**距离时间**: 3天 5小时 42分钟",
		"**24小时交易量**: 1,234,567.89",
		"**流动性**: $9,876,543.22",
		"**代币总数量**: 500,000",
		"Twitter: <https://twitter.com/solana>",
		"**网址**: <https://dexscreener.com/solana/pair1>",
	}
	for _, want := range wantLines {
		if !strings.Contains(block.Text, want) {
			t.Errorf("missing line %q in:\n%s", want, block.Text)
		}
	}
	if block.ImageURL != "https://img.example/sol.png" {
		t.Errorf("expected image URL, got %q", block.ImageURL)
	}
	if block.Title != "" {
		t.Errorf("aggregator blocks carry no title, got %q", block.Title)
	}
}

func TestRenderAggregator_UnknownsUsePlaceholder(t *testing.T) {
	rec := &market.TokenRecord{Address: "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B", Source: market.SourceAggregator}

	block := renderAt(rec, time.Now())

	for _, want := range []string{
		"**名称**: 无",
		"**现在价格**: 无",
		"**5分钟涨跌幅**: 无",
		"**创建时间**: 无",
		"**距离时间**: 无",
		"**24小时交易量**: 无",
		"**流动性**: 无",
		"**代币总数量**: 无",
		"**网址**: 无",
	} {
		if !strings.Contains(block.Text, want) {
			t.Errorf("missing placeholder line %q in:\n%s", want, block.Text)
		}
	}
	if !strings.Contains(block.Text, "**地址**: 0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B") {
		t.Errorf("address must render literally:\n%s", block.Text)
	}
}

func TestRender_NoBlankFields(t *testing.T) {
	rec := &market.TokenRecord{Source: market.SourceAggregator}
	block := renderAt(rec, time.Now())

	for _, line := range strings.Split(block.Text, "\n") {
		if strings.HasSuffix(line, ": ") {
			t.Errorf("blank field rendered: %q", line)
		}
	}
}

func TestRenderReference_FieldList(t *testing.T) {
	rank := 42
	rec := &market.TokenRecord{
		Name:              "Pepe",
		Symbol:            "PEPE",
		PriceUSD:          f(0.00000123),
		Change1h:          f(0.5),
		Change24h:         f(-2.3),
		Change7d:          f(11.1),
		MarketCapRank:     &rank,
		TotalSupply:       f(420690000000000),
		CirculatingSupply: f(420680000000000),
		ImageURL:          "https://img.example/pepe.png",
		Socials: []market.SocialLink{
			{Platform: "Website", URL: "https://pepe.example"},
			{Platform: "Twitter", URL: "https://twitter.com/pepe"},
			{Platform: "Chat", URL: "https://discord.gg/pepe"},
		},
		Source: market.SourceReference,
	}

	block := renderAt(rec, time.Now())

	if block.Title != "Pepe (PEPE)" {
		t.Errorf("expected title with symbol, got %q", block.Title)
	}
	if block.ThumbnailURL != "https://img.example/pepe.png" {
		t.Errorf("expected logo as thumbnail, got %q", block.ThumbnailURL)
	}

	for _, want := range []string{
		"**价格**: $0.00000123",
		"**1小时涨跌幅**: 0.5%",
		"**24小时涨跌幅**: -2.3%",
		"**7天涨跌幅**: 11.1%",
		"**市值排名**: 42",
		"**发行总量**: 420,690,000,000,000",
		"**流通数量**: 420,680,000,000,000",
		"**项目方网站**: https://pepe.example",
		"**推特**: https://twitter.com/pepe",
		"**Discord**: https://discord.gg/pepe",
	} {
		if !strings.Contains(block.Text, want) {
			t.Errorf("missing line %q in:\n%s", want, block.Text)
		}
	}
}

func TestRenderReference_MetadataOnlyDegradation(t *testing.T) {
	rec := &market.TokenRecord{
		Name:    "Pepe",
		Symbol:  "PEPE",
		Socials: []market.SocialLink{{Platform: "Website", URL: "https://pepe.example"}},
		Source:  market.SourceReference,
	}

	block := renderAt(rec, time.Now())

	for _, want := range []string{
		"**价格**: 无",
		"**市值排名**: 无",
		"**推特**: 无",
		"**项目方网站**: https://pepe.example",
	} {
		if !strings.Contains(block.Text, want) {
			t.Errorf("missing line %q in:\n%s", want, block.Text)
		}
	}
}

func TestGroupThousands(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"1234567.89", "1,234,567.89"},
		{"123.45", "123.45"},
		{"1000", "1,000"},
		{"999", "999"},
		{"-1234567.89", "-1,234,567.89"},
		{"0.00000123", "0.00000123"},
	}
	for _, c := range cases {
		if got := groupThousands(c.in); got != c.want {
			t.Errorf("groupThousands(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestElapsed_FloorsNegativeToZero(t *testing.T) {
	created := time.Now().Add(time.Hour)
	got := elapsed(&created, time.Now())
	if got != "0天 0小时 0分钟" {
		t.Errorf("future creation time should floor to zero, got %q", got)
	}
}
