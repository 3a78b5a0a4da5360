package jobs

import (
	"reflect"
	"strings"
	"testing"
)

const sampleFile = `---
name: morning-brief
description: 朝のニュースまとめ
schedule: 毎日 07:00
timezone: Asia/Tokyo
enabled: true
delivery: announce
channel: auto
mode: isolated
skills:
    - web-search
mcp_servers:
    - notion
mcp_tools:
    - notion.search
max_retries: 2
retry_backoff: exponential
created_by: "12345"
created_channel_id: "-1001234"
---

# Prompt
今日の主要ニュースを3件まとめて。

# Steps
- 国内ニュースを確認する
- 海外ニュースを確認する

# Output
- 箇条書き3件以内
- 各項目に出典URL

# Notes
手動で追記したメモ。
`

func TestParseSample(t *testing.T) {
	t.Parallel()

	j, err := Parse([]byte(sampleFile))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if j.Name != "morning-brief" {
		t.Errorf("Name = %q", j.Name)
	}
	if j.Schedule != "毎日 07:00" {
		t.Errorf("Schedule = %q", j.Schedule)
	}
	if !j.Enabled {
		t.Error("Enabled = false")
	}
	if j.Delivery != DeliverAnnounce || j.Mode != ModeIsolated {
		t.Errorf("Delivery/Mode = %q/%q", j.Delivery, j.Mode)
	}
	if j.MaxRetries != 2 || j.RetryBackoff != BackoffExponential {
		t.Errorf("retries = %d/%q", j.MaxRetries, j.RetryBackoff)
	}
	if got := j.Prompt; got != "今日の主要ニュースを3件まとめて。" {
		t.Errorf("Prompt = %q", got)
	}
	if want := []string{"国内ニュースを確認する", "海外ニュースを確認する"}; !reflect.DeepEqual(j.Steps, want) {
		t.Errorf("Steps = %v", j.Steps)
	}
	if len(j.OutputConstraints) != 2 {
		t.Errorf("OutputConstraints = %v", j.OutputConstraints)
	}
	if len(j.ExtraSections) != 1 || j.ExtraSections[0].Heading != "Notes" {
		t.Fatalf("ExtraSections = %+v", j.ExtraSections)
	}
	if !strings.Contains(j.ExtraSections[0].Text, "手動で追記したメモ。") {
		t.Errorf("extra section body lost: %q", j.ExtraSections[0].Text)
	}
}

func TestParseDefaults(t *testing.T) {
	t.Parallel()

	j, err := Parse([]byte("---\nname: x\nschedule: hourly\n---\n# Prompt\nhi\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !j.Enabled {
		t.Error("enabled should default to true")
	}
	if j.Delivery != DeliverAnnounce {
		t.Errorf("Delivery = %q, want announce", j.Delivery)
	}
	if j.Channel != "auto" {
		t.Errorf("Channel = %q, want auto", j.Channel)
	}
	if j.Mode != ModeIsolated {
		t.Errorf("Mode = %q, want isolated", j.Mode)
	}
	if j.RetryBackoff != BackoffNone {
		t.Errorf("RetryBackoff = %q, want none", j.RetryBackoff)
	}
}

func TestParseRejectsBrokenFrontmatter(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		raw  string
	}{
		{"no frontmatter", "# Prompt\nhi\n"},
		{"unterminated", "---\nname: x\n"},
		{"bad yaml", "---\nname: [\n---\n"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := Parse([]byte(tc.raw)); err == nil {
				t.Fatal("expected parse error")
			}
		})
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	t.Parallel()

	j, err := Parse([]byte(sampleFile))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	out, err := Serialize(j)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	back, err := Parse(out)
	if err != nil {
		t.Fatalf("re-Parse: %v\n%s", err, out)
	}

	// structural fields survive the round trip, extra sections included
	j.Path, back.Path = "", ""
	j.InvalidReasons, back.InvalidReasons = nil, nil
	if !reflect.DeepEqual(j, back) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", back, j)
	}
}

func TestBuildPrompt(t *testing.T) {
	t.Parallel()

	j, err := Parse([]byte(sampleFile))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	p := j.BuildPrompt()
	for _, want := range []string{
		"今日の主要ニュースを3件まとめて。",
		"手順:",
		"- 国内ニュースを確認する",
		"出力条件:",
		"- 箇条書き3件以内",
		"手動で追記したメモ。",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q:\n%s", want, p)
		}
	}
	if strings.Index(p, "手順:") > strings.Index(p, "出力条件:") {
		t.Error("steps should precede output constraints")
	}
}
