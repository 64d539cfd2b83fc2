package nl2sql

import (
	"regexp"
	"strings"
	"unicode"
)

const (
	fence             = "```"
	maxSanitizePasses = 8
)

var (
	leadingPhrases = []string{
		"here's", "here’s", "here is", "below is",
		"sql query:", "t-sql:", "sql:", "query:", "answer:",
		"sure", "certainly", "of course",
	}

	// An opening fence followed by an optional language tag on its own line.
	fenceTagLine = regexp.MustCompile(`^[A-Za-z0-9_+\-]*[ \t]*\r?\n`)
	fenceTagWord = regexp.MustCompile(`(?i)^(sql|tsql|t-sql|mssql|sqlserver|transact-sql)\b`)

	backtickIdent = regexp.MustCompile("`([^`\n]+)`")

	sqlStartWords = map[string]struct{}{
		"select": {}, "with": {}, "insert": {}, "update": {}, "delete": {},
		"merge": {}, "exec": {}, "execute": {}, "declare": {}, "create": {},
		"alter": {}, "drop": {}, "truncate": {},
	}
	sqlClauseWords = map[string]struct{}{
		"from": {}, "where": {}, "group": {}, "order": {}, "having": {},
		"join": {}, "inner": {}, "left": {}, "right": {}, "full": {},
		"outer": {}, "cross": {}, "on": {}, "and": {}, "or": {}, "not": {},
		"union": {}, "except": {}, "intersect": {}, "top": {}, "as": {},
		"case": {}, "when": {}, "then": {}, "else": {}, "end": {}, "in": {},
		"is": {}, "between": {}, "like": {}, "values": {}, "into": {},
		"set": {}, "offset": {}, "fetch": {}, "over": {}, "partition": {},
		"distinct": {}, "limit": {}, "output": {},
	}
	proseLeads = []string{
		"this query", "this sql", "this statement", "this will", "this returns",
		"the query", "the above", "the result", "it returns", "it will",
		"explanation", "note", "please", "you can", "make sure", "replace",
		"i hope", "let me know",
	}
	sentenceSubjects = map[string]struct{}{
		"it": {}, "this": {}, "that": {}, "these": {}, "those": {},
		"the": {}, "you": {}, "we": {}, "i": {}, "they": {},
	}
)

// Sanitize turns free-form model output into a single-line SQL Server
// statement. Applying it to its own output returns the same text.
func Sanitize(raw string) string {
	current := sanitizeOnce(raw)
	for i := 0; i < maxSanitizePasses; i++ {
		next := sanitizeOnce(current)
		if next == current {
			break
		}
		current = next
	}
	return current
}

func sanitizeOnce(raw string) string {
	text := strings.TrimSpace(strings.ReplaceAll(raw, "\r\n", "\n"))
	text = stripLeadingPhrases(text)
	text = stripFences(text)
	text = stripWrapping(text)
	text = backtickIdent.ReplaceAllString(text, "[$1]")
	return strings.Join(collectSQLLines(text), " ")
}

func stripLeadingPhrases(text string) string {
	for text != "" {
		lower := strings.ToLower(text)
		matched := false
		for _, phrase := range leadingPhrases {
			if !strings.HasPrefix(lower, phrase) {
				continue
			}
			text = strings.TrimSpace(afterPhrase(text[len(phrase):], strings.HasSuffix(phrase, ":")))
			matched = true
			break
		}
		if !matched {
			break
		}
	}
	return text
}

// afterPhrase drops the rest of an introductory line: everything up to its
// first colon, or the whole line when it carries neither a colon nor SQL.
func afterPhrase(rest string, labelled bool) string {
	if labelled {
		return rest
	}
	line, remainder, _ := strings.Cut(rest, "\n")
	if trimmed := strings.TrimLeft(line, " \t,!.;-"); startsSQL(trimmed) {
		return trimmed + "\n" + remainder
	}
	if idx := strings.IndexByte(line, ':'); idx >= 0 {
		return line[idx+1:] + "\n" + remainder
	}
	return remainder
}

func stripFences(text string) string {
	open := strings.Index(text, fence)
	if open < 0 {
		return text
	}
	// SQL before the first fence means the fence closes it.
	if before := text[:open]; containsSQLStart(before) {
		return strings.TrimSpace(before)
	}

	body := text[open+len(fence):]
	if loc := fenceTagLine.FindStringIndex(body); loc != nil && !startsSQL(body[:loc[1]]) {
		body = body[loc[1]:]
	} else if loc := fenceTagWord.FindStringIndex(body); loc != nil {
		body = body[loc[1]:]
	}
	if end := strings.Index(body, fence); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

func stripWrapping(text string) string {
	if len(text) < 2 {
		return text
	}
	first, last := text[0], text[len(text)-1]
	inner := strings.TrimSpace(text[1 : len(text)-1])
	switch {
	case first == '`' && last == '`':
		if strings.Count(inner, "`")%2 == 0 && startsSQL(inner) {
			return inner
		}
	case first == '[' && last == ']':
		if closingBracket(text) == len(text)-1 && startsSQL(inner) {
			return inner
		}
	}
	return text
}

// closingBracket returns the index closing the bracket at position 0.
func closingBracket(text string) int {
	depth := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func collectSQLLines(text string) []string {
	lines := strings.Split(text, "\n")
	hasSQL := containsSQLStart(text)

	out := make([]string, 0, len(lines))
	started := false
	inBlockComment := false
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if inBlockComment {
			if strings.Contains(line, "*/") {
				inBlockComment = false
			}
			continue
		}
		if strings.HasPrefix(line, "/*") && !strings.Contains(line, "*/") {
			inBlockComment = true
			continue
		}
		if line == "" || isCommentLine(line) {
			continue
		}
		if hasSQL {
			if !started {
				if !startsSQL(line) {
					continue
				}
				started = true
			} else if isProse(line) {
				break
			}
		}
		if line = stripInlineComment(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func isCommentLine(line string) bool {
	lower := strings.ToLower(line)
	for _, prefix := range []string{"--", "#", "//", "/*", "*/", "note:", "explanation:"} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// stripInlineComment cuts a trailing "--" comment outside string literals so
// joining lines cannot comment out the rest of the statement.
func stripInlineComment(line string) string {
	inString := false
	for i := 0; i < len(line); i++ {
		switch {
		case line[i] == '\'':
			inString = !inString
		case !inString && line[i] == '-' && i+1 < len(line) && line[i+1] == '-':
			return strings.TrimSpace(line[:i])
		}
	}
	return line
}

// isProse reports a sentence that follows the statement. Lines shaped like
// SQL never count, and only lines ending like a sentence can.
func isProse(line string) bool {
	word := firstWord(line)
	if _, ok := sqlStartWords[word]; ok {
		return false
	}
	if _, ok := sqlClauseWords[word]; ok {
		return false
	}
	if looksLikeSQL(line) || !endsLikeSentence(line) {
		return false
	}
	lower := strings.ToLower(line)
	for _, lead := range proseLeads {
		if hasWordPrefix(lower, lead) {
			return true
		}
	}
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return false
	}
	first := []rune(fields[0])
	if !unicode.IsUpper(first[0]) {
		return false
	}
	for _, r := range first[1:] {
		if !unicode.IsLower(r) && !unicode.IsPunct(r) {
			return false
		}
	}
	return true
}

// hasWordPrefix matches lead only when it is followed by a word boundary.
func hasWordPrefix(lower, lead string) bool {
	if !strings.HasPrefix(lower, lead) {
		return false
	}
	if len(lower) == len(lead) {
		return true
	}
	next := rune(lower[len(lead)])
	return !isIdentRune(next) && next != '('
}

// looksLikeSQL reports a line opening with an identifier that is followed by
// a call, list separator, operator or clause keyword.
func looksLikeSQL(line string) bool {
	line = strings.TrimSpace(line)
	if strings.HasSuffix(line, ",") {
		return true
	}
	end := strings.IndexFunc(line, func(r rune) bool {
		return !isIdentRune(r) && !strings.ContainsRune("[].@#", r)
	})
	if end <= 0 {
		return end == 0 && strings.ContainsRune("(*'", rune(line[0]))
	}
	rest := strings.TrimSpace(line[end:])
	if rest == "" {
		return false
	}
	if strings.ContainsRune("(,=<>+-*/%!;)", rune(rest[0])) {
		return true
	}
	if _, ok := sentenceSubjects[firstWord(line)]; ok {
		return false
	}
	_, ok := sqlClauseWords[firstWord(rest)]
	return ok
}

func endsLikeSentence(line string) bool {
	return strings.HasSuffix(line, ".") || strings.HasSuffix(line, ":") ||
		strings.HasSuffix(line, "!") || strings.HasSuffix(line, "?")
}

func isIdentRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

func containsSQLStart(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		if startsSQL(line) {
			return true
		}
	}
	return false
}

func startsSQL(line string) bool {
	line = strings.TrimLeft(strings.TrimSpace(line), "(")
	word := firstWord(line)
	if _, ok := sqlStartWords[word]; !ok {
		return false
	}
	if word == "with" {
		lower := strings.ToLower(line)
		return strings.Contains(lower, " as ") || strings.Contains(lower, " as(") || strings.HasSuffix(lower, " as")
	}
	return true
}

func firstWord(line string) string {
	end := strings.IndexFunc(line, func(r rune) bool {
		return !unicode.IsLetter(r) && r != '_'
	})
	if end < 0 {
		end = len(line)
	}
	return strings.ToLower(line[:end])
}
