package commands

import (
	"errors"
	"testing"
)

func TestNormalizeBothLocales(t *testing.T) {
	t.Parallel()
	tests := []struct {
		tokens []string
		want   Op
	}{
		{tokens: []string{"/schedule", "/定期登録", "/job-create"}, want: OpCreate},
		{tokens: []string{"/schedule-list", "/定期一覧", "/job-list"}, want: OpList},
		{tokens: []string{"/schedule-pause", "/定期停止", "/job-pause"}, want: OpPause},
		{tokens: []string{"/schedule-resume", "/定期再開", "/job-resume"}, want: OpResume},
		{tokens: []string{"/schedule-delete", "/定期削除", "/job-delete"}, want: OpDelete},
		{tokens: []string{"/schedule-run", "/定期実行", "/job-run"}, want: OpRunNow},
	}
	for _, tt := range tests {
		for _, tok := range tt.tokens {
			got, err := Normalize(tok)
			if err != nil {
				t.Fatalf("Normalize(%q) error: %v", tok, err)
			}
			if got != tt.want {
				t.Fatalf("Normalize(%q) = %v, want %v", tok, got, tt.want)
			}
		}
	}
}

func TestNormalizeCaseAndSlashInsensitive(t *testing.T) {
	t.Parallel()
	for _, tok := range []string{"SCHEDULE", "Schedule-List", "schedule-run"} {
		if _, err := Normalize(tok); err != nil {
			t.Fatalf("Normalize(%q) error: %v", tok, err)
		}
	}
}

func TestNormalizeUnrecognized(t *testing.T) {
	t.Parallel()
	_, err := Normalize("/frobnicate")
	var ue *UnrecognizedError
	if !errors.As(err, &ue) {
		t.Fatalf("expected *UnrecognizedError, got %v", err)
	}
	if ue.Token != "/frobnicate" {
		t.Fatalf("Token = %q", ue.Token)
	}
}

func TestNormalizeArgsAliasKeys(t *testing.T) {
	t.Parallel()
	got := NormalizeArgs(map[string]string{
		"プロンプト": "今日の天気",
		"頻度":    "平日 7:00",
		"名前":    "weather",
	})
	if got.Prompt != "今日の天気" || got.Schedule != "平日 7:00" || got.Name != "weather" {
		t.Fatalf("unexpected args: %+v", got)
	}
}

func TestNormalizeArgsCanonicalWins(t *testing.T) {
	t.Parallel()
	got := NormalizeArgs(map[string]string{
		"prompt": "canonical",
		"プロンプト":  "alternate",
	})
	if got.Prompt != "canonical" {
		t.Fatalf("Prompt = %q, want canonical", got.Prompt)
	}

	got = NormalizeArgs(map[string]string{
		"prompt": "",
		"プロンプト":  "alternate",
	})
	if got.Prompt != "alternate" {
		t.Fatalf("Prompt = %q, want alternate", got.Prompt)
	}
}

func TestParseCommandQuotedValues(t *testing.T) {
	t.Parallel()
	op, args, err := ParseCommand(`/定期登録 プロンプト="今日の天気" 頻度="平日 7:00"`)
	if err != nil {
		t.Fatalf("ParseCommand: %v", err)
	}
	if op != OpCreate {
		t.Fatalf("op = %v", op)
	}
	if args.Prompt != "今日の天気" {
		t.Fatalf("Prompt = %q", args.Prompt)
	}
	if args.Schedule != "平日 7:00" {
		t.Fatalf("Schedule = %q", args.Schedule)
	}
}

func TestParseCommandPositional(t *testing.T) {
	t.Parallel()
	op, args, err := ParseCommand("/schedule-pause daily-report")
	if err != nil {
		t.Fatalf("ParseCommand: %v", err)
	}
	if op != OpPause {
		t.Fatalf("op = %v", op)
	}
	if len(args.Positional) != 1 || args.Positional[0] != "daily-report" {
		t.Fatalf("Positional = %v", args.Positional)
	}
}

func TestFoldInputStripsZeroWidthAndFullwidth(t *testing.T) {
	t.Parallel()
	in := "/sche​dule ＝ "
	got := FoldInput(in)
	if got != "/schedule = " {
		t.Fatalf("FoldInput = %q", got)
	}
}
