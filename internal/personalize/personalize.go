// Package personalize rewrites message bodies for the recipient's local day of week.
package personalize

import (
	"regexp"
	"strings"
	"time"
)

// Rule names the rewrite applied to a body.
type Rule string

const (
	RuleNone            Rule = "none"
	RuleSundayContext   Rule = "sunday-context"
	RuleSundayGeneric   Rule = "sunday-generic"
	RuleSaturdayContext Rule = "saturday-context"
)

func (r Rule) String() string { return string(r) }

const (
	SundayContext   = `(Sent this on Sunday evening to get ahead of the week - hope it helps quiet any "Sunday Scaries" regarding this project!)`
	SundayGeneric   = "Hope you're having a relaxing Sunday."
	SaturdayContext = "(I know it's the weekend, so please feel free to push this to Monday. Just wanted to get it to you while I was thinking about it.)"
)

// Result is the rewritten body and the rule that produced it.
type Result struct {
	Body    string
	Applied Rule
}

// Personalizer rewrites a body given the recipient's local weekday. Implementations must be pure.
type Personalizer interface {
	Personalize(body string, weekday time.Weekday) Result
}

// greetingPattern only matches at the very start of the text so quoted replies are never touched.
var greetingPattern = regexp.MustCompile(`\A(?i:hi|hello|dear)[ \t]+[^,\r\n]{1,80},`)

// RegexPersonalizer detects a leading greeting line with a bounded regular expression.
type RegexPersonalizer struct{}

var _ Personalizer = RegexPersonalizer{}

func NewRegexPersonalizer() RegexPersonalizer {
	return RegexPersonalizer{}
}

func (RegexPersonalizer) Personalize(body string, weekday time.Weekday) Result {
	switch weekday {
	case time.Sunday:
		if out, ok := insertAfterGreeting(body, SundayContext); ok {
			return Result{Body: out, Applied: RuleSundayContext}
		}
		return Result{Body: SundayGeneric + "\n\n" + body, Applied: RuleSundayGeneric}
	case time.Saturday:
		if out, ok := insertAfterGreeting(body, SaturdayContext); ok {
			return Result{Body: out, Applied: RuleSaturdayContext}
		}
	}
	return Result{Body: body, Applied: RuleNone}
}

// insertAfterGreeting places sentence as its own paragraph after the greeting line.
func insertAfterGreeting(body, sentence string) (string, bool) {
	loc := greetingPattern.FindStringIndex(body)
	if loc == nil {
		return body, false
	}

	lineEnd := len(body)
	if i := strings.IndexByte(body[loc[1]:], '\n'); i >= 0 {
		lineEnd = loc[1] + i
	}
	greeting := strings.TrimRight(body[:lineEnd], " \t\r")
	rest := strings.TrimLeft(body[lineEnd:], "\r\n")

	var b strings.Builder
	b.Grow(len(body) + len(sentence) + 4)
	b.WriteString(greeting)
	b.WriteString("\n\n")
	b.WriteString(sentence)
	if rest != "" {
		b.WriteString("\n\n")
		b.WriteString(rest)
	}
	return b.String(), true
}
