package sanitize

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"AlertFuse/pkg/logger"
)

// RedactedPlaceholder replaces secret-shaped substrings in provider output.
const RedactedPlaceholder = "[REDACTED]"

// MaxInputLength bounds text sent to the enrichment provider.
const MaxInputLength = 8000

// Result is the outcome of an input pass. Flags never block the text;
// downstream decides what to do with a flagged post.
type Result struct {
	Text        string
	WasModified bool
	Flags       []string
}

type injectionPattern struct {
	name string
	re   *regexp.Regexp
}

// Patterns that try to repurpose the enrichment prompt. Matched case
// insensitively and flagged, not removed: scoring a hostile post is
// still useful, acting on its instructions is not.
var injectionPatterns = []injectionPattern{
	{"override", regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|prior|above)\s+(instructions?|prompts?|rules?)`)},
	{"override", regexp.MustCompile(`(?i)disregard\s+(all\s+)?(previous|prior|your)\s+(instructions?|prompts?|rules?)`)},
	{"role_hijack", regexp.MustCompile(`(?i)you\s+are\s+(now|no\s+longer)\s+`)},
	{"role_hijack", regexp.MustCompile(`(?i)act\s+as\s+(a\s+|an\s+)?(system|admin|root|developer)`)},
	{"role_hijack", regexp.MustCompile(`(?i)pretend\s+(to\s+be|you\s+are)`)},
	{"exfiltration", regexp.MustCompile(`(?i)(reveal|print|show|repeat)\s+(your|the)\s+(system\s+prompt|instructions?|api\s+key|secret)`)},
	{"exfiltration", regexp.MustCompile(`(?i)what\s+(is|are)\s+your\s+(system\s+prompt|initial\s+instructions?)`)},
}

var (
	ansiEscape = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

	// Fenced blocks the provider should never see echoed back, plus
	// hidden spans some models emit around internal reasoning.
	fencedBlock = regexp.MustCompile("(?s)```(?:system|internal|debug)\\b.*?```")
	hiddenSpan  = regexp.MustCompile(`(?s)<(system|hidden|internal)>.*?</(?:system|hidden|internal)>`)

	// Common credential shapes: provider-prefixed keys, bearer tokens,
	// long hex/base64 runs labelled as keys.
	secretShapes = []*regexp.Regexp{
		regexp.MustCompile(`\b(sk|pk|rk)[-_](live|test|proj)?[-_]?[A-Za-z0-9]{16,}\b`),
		regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`),
		regexp.MustCompile(`\bgh[pousr]_[A-Za-z0-9]{36,}\b`),
		regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9\-._~+/]{20,}=*`),
		regexp.MustCompile(`(?i)\b(api[-_]?key|secret|token|password)["'\s:=]+[A-Za-z0-9\-._~+/]{16,}`),
	}
)

// Service cleans text exchanged with the enrichment provider. It never
// returns an error; a sanitization failure passes content through and
// is logged instead.
type Service struct {
	log       *logger.Logger
	maxLength int
}

func New(log *logger.Logger) *Service {
	return &Service{log: log, maxLength: MaxInputLength}
}

// SanitizeInput prepares untrusted post text for the provider.
func (s *Service) SanitizeInput(text string) Result {
	res := Result{Text: text}

	if len(res.Text) > s.maxLength {
		// Back off to a rune boundary so the cut never emits a torn
		// multi-byte sequence.
		cut := s.maxLength
		for cut > 0 && !utf8.RuneStart(res.Text[cut]) {
			cut--
		}
		res.Text = res.Text[:cut]
		res.WasModified = true
		res.Flags = append(res.Flags, "truncated")
	}

	cleaned := strings.ReplaceAll(res.Text, "\x00", "")
	cleaned = strings.ReplaceAll(cleaned, "\r", "")
	cleaned = ansiEscape.ReplaceAllString(cleaned, "")
	if cleaned != res.Text {
		res.Text = cleaned
		res.WasModified = true
	}

	seen := make(map[string]bool)
	for _, p := range injectionPatterns {
		if p.re.MatchString(res.Text) {
			flag := "injection:" + p.name
			if !seen[flag] {
				seen[flag] = true
				res.Flags = append(res.Flags, flag)
			}
		}
	}

	if len(res.Flags) > 0 && s.log != nil {
		s.log.Warn("input sanitization raised flags",
			logger.Strings("flags", res.Flags),
			logger.Int("length", len(res.Text)))
	}
	return res
}

// SanitizeOutput strips provider output of internal blocks and
// redacts anything shaped like a credential.
func (s *Service) SanitizeOutput(text string) string {
	out := fencedBlock.ReplaceAllString(text, "")
	out = hiddenSpan.ReplaceAllString(out, "")

	redacted := false
	for _, re := range secretShapes {
		if re.MatchString(out) {
			out = re.ReplaceAllString(out, RedactedPlaceholder)
			redacted = true
		}
	}

	if redacted && s.log != nil {
		s.log.Warn("redacted secret-shaped content from provider output")
	}
	return strings.TrimSpace(out)
}
