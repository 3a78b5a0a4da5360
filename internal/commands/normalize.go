// Package commands maps user-issued command tokens and argument keys to
// canonical scheduling operations.
//
// Each operation has several surface spellings across two locales; this
// package is the only place aware of that variety. The mapping is a static
// table built once at init, a pure lookup with no dynamic dispatch.
package commands

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Op is a canonical scheduling operation.
type Op string

const (
	OpCreate Op = "job_create"
	OpList   Op = "job_list"
	OpPause  Op = "job_pause"
	OpResume Op = "job_resume"
	OpDelete Op = "job_delete"
	OpRunNow Op = "job_run_now"
)

// aliases maps every accepted spelling to its canonical operation.
// Keys are stored pre-folded (lowercase, NFKC).
var aliases = map[string]Op{
	"schedule":        OpCreate,
	"job-create":      OpCreate,
	"定期登録":            OpCreate,
	"schedule-list":   OpList,
	"job-list":        OpList,
	"定期一覧":            OpList,
	"schedule-pause":  OpPause,
	"job-pause":       OpPause,
	"定期停止":            OpPause,
	"schedule-resume": OpResume,
	"job-resume":      OpResume,
	"定期再開":            OpResume,
	"schedule-delete": OpDelete,
	"job-delete":      OpDelete,
	"定期削除":            OpDelete,
	"schedule-run":    OpRunNow,
	"job-run":         OpRunNow,
	"定期実行":            OpRunNow,
}

// UnrecognizedError reports a command token that maps to no operation.
// It is surfaced to the caller as a usage hint, never as an internal error.
type UnrecognizedError struct {
	Token string
}

func (e *UnrecognizedError) Error() string {
	return fmt.Sprintf("unrecognized command %q", e.Token)
}

// Usage returns the hint shown to users on an unrecognized token.
func Usage() string {
	return "コマンド: /schedule /schedule-list /schedule-pause /schedule-resume /schedule-delete /schedule-run " +
		"(別名: /定期登録 /定期一覧 /定期停止 /定期再開 /定期削除 /定期実行)"
}

// Normalize maps a raw command token (with or without a leading slash) to
// its canonical operation.
func Normalize(token string) (Op, error) {
	folded := FoldInput(token)
	folded = strings.TrimPrefix(strings.TrimSpace(folded), "/")
	folded = strings.ToLower(folded)
	if op, ok := aliases[folded]; ok {
		return op, nil
	}
	return "", &UnrecognizedError{Token: token}
}

// zero-width and join-control characters stripped before normalization.
const zeroWidth = "\u200b\u200c\u200d\u2060\ufeff\u180e\u00ad\u034f\u061c\u2061\u2062\u2063"

// FoldInput canonicalizes raw user input: zero-width characters removed,
// NFKC applied (folds fullwidth ASCII), and control characters dropped
// except newline, carriage return, and tab.
func FoldInput(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if strings.ContainsRune(zeroWidth, r) {
			continue
		}
		b.WriteRune(r)
	}
	folded := norm.NFKC.String(b.String())

	var out strings.Builder
	out.Grow(len(folded))
	for _, r := range folded {
		if r == '\n' || r == '\r' || r == '\t' {
			out.WriteRune(r)
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		out.WriteRune(r)
	}
	return out.String()
}
