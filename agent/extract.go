package agent

import (
	"encoding/json"
	"regexp"
	"strings"
)

// ExtractStage identifies which stage of the fallback chain produced an
// Action, from strictest to most degraded.
type ExtractStage string

const (
	StageStrict  ExtractStage = "strict"
	StageCleanup ExtractStage = "cleanup"
	StageFenced  ExtractStage = "fenced"
	StageRegex   ExtractStage = "regex"
)

// Extraction is the result of decoding one raw model reply. Extraction is
// total: every input string yields exactly one Action. The Stage and Degraded
// fields tell the caller how much trust to place in it.
type Extraction struct {
	Action Action
	Stage  ExtractStage

	// Degraded is true when structured parsing failed entirely and the
	// fields were assembled from line-by-line regex matches.
	Degraded bool

	// Cleaned is true when the accepted candidate only parsed after the
	// cleanup pass altered it. Cleanup is heuristic, so callers should log
	// when this happens.
	Cleaned bool

	// ToolDefaulted is true when the parsed object carried no action field
	// and the terminal keyword was substituted.
	ToolDefaulted bool
}

// Extract decodes raw model text into exactly one Action using a
// strict-then-lenient chain:
//
//  1. Balanced-brace scan collects candidate JSON objects in order of
//     appearance.
//  2. Each candidate is parsed strictly; the first success wins.
//  3. Failing that, each candidate is re-parsed after a cleanup pass
//     (trailing commas, // and /* */ comments, triple-quote delimiters).
//  4. Failing that, fenced code blocks and inline code spans containing
//     braces are parsed.
//  5. Failing everything, fields are recovered by regex; this stage cannot
//     fail, so Extract never does.
//
// A parsed object without an action field yields the terminal keyword rather
// than an error: a degenerate reply ends the run instead of crashing it.
//
// Extract is pure and deterministic.
func Extract(raw string) Extraction {
	candidates := scanCandidates(raw)

	for _, c := range candidates {
		if act, defaulted, ok := parseActionObject(c); ok {
			return Extraction{Action: act, Stage: StageStrict, ToolDefaulted: defaulted}
		}
	}

	for _, c := range candidates {
		cleaned := cleanupCandidate(c)
		if cleaned == c {
			continue
		}
		if act, defaulted, ok := parseActionObject(cleaned); ok {
			return Extraction{Action: act, Stage: StageCleanup, Cleaned: true, ToolDefaulted: defaulted}
		}
	}

	for _, span := range fencedSpans(raw) {
		if act, defaulted, ok := parseActionObject(span); ok {
			return Extraction{Action: act, Stage: StageFenced, ToolDefaulted: defaulted}
		}
		cleaned := cleanupCandidate(span)
		if cleaned == span {
			continue
		}
		if act, defaulted, ok := parseActionObject(cleaned); ok {
			return Extraction{Action: act, Stage: StageFenced, Cleaned: true, ToolDefaulted: defaulted}
		}
	}

	return Extraction{Action: regexExtract(raw), Stage: StageRegex, Degraded: true}
}

// scanCandidates walks the string once with a brace depth counter. Every
// maximal substring between a 0->1 and the matching 1->0 depth transition is
// a candidate, in order of appearance. Unlike a regex, this keeps nested
// objects intact.
func scanCandidates(s string) []string {
	var candidates []string
	depth := 0
	start := -1
	for i, r := range s {
		switch r {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start >= 0 {
					candidates = append(candidates, s[start:i+1])
					start = -1
				}
			}
		}
	}
	return candidates
}

// parseActionObject attempts a strict JSON parse of one candidate. It returns
// the assembled Action, whether the action field had to be defaulted, and
// whether parsing succeeded at all.
func parseActionObject(candidate string) (Action, bool, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(candidate), &obj); err != nil {
		return Action{}, false, false
	}

	act := Action{Args: map[string]any{}}

	if thought, ok := obj["thought"].(string); ok {
		act.Thought = thought
	}
	if args, ok := obj["args"].(map[string]any); ok {
		act.Args = args
	}

	tool, _ := obj["action"].(string)
	if strings.TrimSpace(tool) == "" {
		// Fail open: a reply without an action ends the run gracefully
		// instead of discarding the whole turn.
		act.Tool = TerminalAction
		return act, true, true
	}
	act.Tool = tool
	return act, false, true
}

var (
	blockCommentRe  = regexp.MustCompile(`(?s)/\*.*?\*/`)
	lineCommentRe   = regexp.MustCompile(`(?m)(^|[ \t])//[^\n]*`)
	trailingCommaRe = regexp.MustCompile(`,(\s*[}\]])`)
)

// cleanupCandidate repairs the JSON-ish mistakes models actually make:
// comments, trailing commas, and Python-style triple-quoted strings. It is
// heuristic and only ever applied to candidates that already failed a strict
// parse.
func cleanupCandidate(s string) string {
	out := blockCommentRe.ReplaceAllString(s, "")
	out = lineCommentRe.ReplaceAllString(out, "$1")
	out = strings.ReplaceAll(out, `"""`, `"`)
	out = trailingCommaRe.ReplaceAllString(out, "$1")
	return out
}

var (
	fencedBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
	inlineCodeRe  = regexp.MustCompile("`([^`\n]+)`")
)

// fencedSpans returns brace-bearing contents of fenced code blocks and inline
// code spans, trimmed to the outermost braces.
func fencedSpans(s string) []string {
	var spans []string
	collect := func(matches [][]string) {
		for _, m := range matches {
			body := m[1]
			open := strings.Index(body, "{")
			end := strings.LastIndex(body, "}")
			if open < 0 || end < open {
				continue
			}
			spans = append(spans, body[open:end+1])
		}
	}
	collect(fencedBlockRe.FindAllStringSubmatch(s, -1))
	collect(inlineCodeRe.FindAllStringSubmatch(s, -1))
	return spans
}

var (
	thoughtFieldRe = regexp.MustCompile(`(?i)["']?thought["']?\s*[:=]\s*["']?(.+?)["']?\s*,?\s*$`)
	toolFieldRe    = regexp.MustCompile(`(?i)["']?(?:action|tool)["']?\s*[:=]\s*["']?([A-Za-z0-9_\-]+)`)
)

// regexExtract assembles a best-effort Action from key-value fragments found
// line by line. It never fails: unmatched fields get fixed defaults, with the
// tool defaulting to the terminal keyword.
func regexExtract(raw string) Action {
	act := Action{
		Thought: NoThoughtFound,
		Tool:    TerminalAction,
		Args:    map[string]any{},
	}

	foundThought := false
	foundTool := false
	for _, line := range strings.Split(raw, "\n") {
		if !foundThought {
			if m := thoughtFieldRe.FindStringSubmatch(line); m != nil {
				act.Thought = strings.TrimSpace(m[1])
				foundThought = true
			}
		}
		if !foundTool {
			if m := toolFieldRe.FindStringSubmatch(line); m != nil {
				act.Tool = m[1]
				foundTool = true
			}
		}
		if foundThought && foundTool {
			break
		}
	}
	return act
}
