package commands

import "strings"

// Args is the canonical argument set after key normalization.
type Args struct {
	Name        string
	Description string
	Prompt      string
	Schedule    string
	Timezone    string

	// Positional holds bare tokens (e.g. the job name in "/schedule-pause daily-report").
	Positional []string
}

// argAliases maps alternate labels to canonical keys. Canonical keys map to
// themselves so lookup is uniform.
var argAliases = map[string]string{
	"name":        "name",
	"名前":          "name",
	"description": "description",
	"説明":          "description",
	"prompt":      "prompt",
	"プロンプト":       "prompt",
	"schedule":    "schedule",
	"頻度":          "schedule",
	"timezone":    "timezone",
	"タイムゾーン":      "timezone",
}

// NormalizeArgs merges a raw key/value map into canonical arguments.
// Merge rule: the exact canonical key wins over an alternate label when both
// are present; otherwise the first non-empty value is kept.
func NormalizeArgs(raw map[string]string) Args {
	merged := map[string]string{}
	fromCanonical := map[string]bool{}

	for k, v := range raw {
		key := strings.ToLower(strings.TrimSpace(FoldInput(k)))
		canon, ok := argAliases[key]
		if !ok {
			continue
		}
		isCanonical := key == canon
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		switch {
		case fromCanonical[canon] && !isCanonical:
			// canonical value already present; alternate label loses
		case !fromCanonical[canon] && isCanonical:
			merged[canon] = v
			fromCanonical[canon] = true
		case merged[canon] == "":
			merged[canon] = v
		}
	}

	return Args{
		Name:        merged["name"],
		Description: merged["description"],
		Prompt:      merged["prompt"],
		Schedule:    merged["schedule"],
		Timezone:    merged["timezone"],
	}
}

// ParseCommand splits raw command text into the canonical operation and its
// normalized arguments. The first token is the command; remaining tokens are
// either key=value pairs (quoted values supported) or positionals.
func ParseCommand(text string) (Op, Args, error) {
	tokens := tokenize(FoldInput(text))
	if len(tokens) == 0 {
		return "", Args{}, &UnrecognizedError{Token: text}
	}
	op, err := Normalize(tokens[0])
	if err != nil {
		return "", Args{}, err
	}

	raw := map[string]string{}
	var positional []string
	for _, tok := range tokens[1:] {
		if eq := strings.IndexByte(tok, '='); eq > 0 {
			raw[tok[:eq]] = tok[eq+1:]
			continue
		}
		positional = append(positional, tok)
	}

	args := NormalizeArgs(raw)
	args.Positional = positional
	return op, args, nil
}

// tokenize splits command text into tokens while supporting quotes.
// Examples:
//
//	/cmd a "b c" k="v w"
func tokenize(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var (
		out   []string
		buf   strings.Builder
		inQ   bool
		qChar rune
		esc   bool
	)
	flush := func() {
		if buf.Len() > 0 {
			out = append(out, buf.String())
			buf.Reset()
		}
	}
	for _, ch := range s {
		if esc {
			buf.WriteRune(ch)
			esc = false
			continue
		}
		if ch == '\\' {
			esc = true
			continue
		}
		if inQ {
			if ch == qChar {
				inQ = false
				continue
			}
			buf.WriteRune(ch)
			continue
		}
		switch ch {
		case '"', '\'', '“', '”':
			inQ = true
			qChar = ch
			if ch == '“' {
				qChar = '”'
			}
		case ' ', '\t', '\n', '\r':
			flush()
		default:
			buf.WriteRune(ch)
		}
	}
	flush()
	return out
}
