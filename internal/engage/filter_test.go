package engage

import (
	"testing"

	"cyanbot/internal/config"
)

func profile(channels, keywords []string) config.TenantProfile {
	return config.TenantProfile{
		ID:              "42",
		AllowedChannels: channels,
		Keywords:        keywords,
	}
}

func TestShouldEngage_AllowedChannelWithKeyword(t *testing.T) {
	p := profile([]string{"100"}, []string{"Cyan"})
	if !ShouldEngage(p, "100", "Hi Cyan") {
		t.Fatal("expected engagement in allowed channel with keyword")
	}
}

func TestShouldEngage_DisallowedChannel(t *testing.T) {
	p := profile([]string{"100"}, []string{"Cyan"})
	if ShouldEngage(p, "101", "Hi Cyan") {
		t.Fatal("channel restriction must win over keyword match")
	}
}

func TestShouldEngage_EmptyAllowListNeverExcludes(t *testing.T) {
	p := profile(nil, []string{"Cyan"})
	if !ShouldEngage(p, "any-channel", "Hi Cyan") {
		t.Fatal("empty allow-list must not restrict channels")
	}
}

func TestShouldEngage_NoKeywordMatch(t *testing.T) {
	p := profile(nil, []string{"Cyan"})
	if ShouldEngage(p, "100", "hello there") {
		t.Fatal("expected no engagement without a keyword")
	}
}

func TestShouldEngage_SubstringMatchesMidWord(t *testing.T) {
	p := profile(nil, []string{"Cyan"})
	if !ShouldEngage(p, "100", "anyCyanide works") {
		t.Fatal("keyword match is substring-based, mid-word included")
	}
}

func TestShouldEngage_CaseSensitive(t *testing.T) {
	p := profile(nil, []string{"Cyan"})
	if ShouldEngage(p, "100", "hi cyan") {
		t.Fatal("keyword match is case-sensitive")
	}
}

func TestShouldEngage_AnyOfSeveralKeywords(t *testing.T) {
	p := profile(nil, []string{"シアン", "Cyan"})
	if !ShouldEngage(p, "100", "シアンちゃん、おはよう") {
		t.Fatal("any configured keyword should trigger")
	}
}

func TestShouldEngage_EmptyKeywordNeverMatches(t *testing.T) {
	p := profile(nil, []string{""})
	if ShouldEngage(p, "100", "anything") {
		t.Fatal("empty keyword must not match every message")
	}
}
