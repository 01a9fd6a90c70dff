package stm8

import (
	"strings"
	"unicode"
)

const (
	commentMarker    = ';'
	localLabelMarker = '$'

	keywordSection = ".area"
	keywordExport  = ".globl"
	keywordVector  = "int"
	keywordCall    = "call"
	keywordJump    = "jp"
	keywordIRet    = "iret"
)

// Sections with meaning for the analysis. Every other `.area` ends the
// section currently being scanned.
const (
	SectionCode  = "CODE"
	SectionConst = "CONST"
)

var loadKeywords = []string{"ld", "ldw", "ldf"}

// StripComment cuts the line at the first comment marker that is neither
// escaped nor inside a string literal and trims surrounding whitespace.
func StripComment(line string) string {
	inString := false
	escaped := false
	for i, r := range line {
		switch {
		case escaped:
			escaped = false
		case r == '\\':
			escaped = true
		case r == '"':
			inString = !inString
		case r == commentMarker && !inString:
			return strings.TrimSpace(line[:i])
		}
	}
	return strings.TrimSpace(line)
}

// IsComment reports whether the line holds nothing but a comment.
func IsComment(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), string(commentMarker))
}

// IsSymbol reports whether s is a valid symbol name: a letter or underscore
// followed by letters, digits or underscores.
func IsSymbol(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || unicode.IsLetter(r) {
			continue
		}
		if i > 0 && unicode.IsDigit(r) {
			continue
		}
		return false
	}
	return true
}

// IsLabel returns the label name if the line declares a symbol label.
// Local labels such as `00101$:` are not symbol labels.
func IsLabel(line string) (string, bool) {
	if IsComment(line) {
		return "", false
	}
	s := StripComment(line)
	if !strings.HasSuffix(s, ":") {
		return "", false
	}
	// `name::` is the assembler's shorthand for a global label.
	name := strings.TrimRight(s, ":")
	if name == "" || name[len(name)-1] == localLabelMarker {
		return "", false
	}
	return name, true
}

// Section returns the section name of an `.area` directive. Attributes
// following the name, as in `.area CODE (REL,CON)`, are dropped.
func Section(line string) (string, bool) {
	args, ok := operand(line, keywordSection)
	if !ok {
		return "", false
	}
	return strings.Fields(args)[0], true
}

// Export returns the symbol declared by a `.globl` directive.
func Export(line string) (string, bool) {
	return operand(line, keywordExport)
}

// Vector returns the handler named by an `int` vector slot.
func Vector(line string) (string, bool) {
	return operand(line, keywordVector)
}

// Call returns the target of a call edge. A `jp` counts as a call only when
// it jumps to a symbol; that is how the compiler emits tail calls.
func Call(line string) (string, bool) {
	if target, ok := operand(line, keywordCall); ok {
		return target, true
	}
	if target, ok := operand(line, keywordJump); ok && IsSymbol(target) {
		return target, true
	}
	return "", false
}

// IsInterruptReturn reports whether the line is exactly `iret`.
func IsInterruptReturn(line string) bool {
	if IsComment(line) {
		return false
	}
	return StripComment(line) == keywordIRet
}

// LabelLoad returns the label addressed by a load such as
// `ldw x, #(___str_0+0)`.
func LabelLoad(line string) (string, bool) {
	for _, kw := range loadKeywords {
		operands, ok := operand(line, kw)
		if !ok {
			continue
		}
		_, src, found := strings.Cut(operands, ",")
		if !found {
			return "", false
		}
		lhs, _, found := strings.Cut(src, "+")
		if !found {
			return "", false
		}
		label := strings.TrimLeftFunc(strings.TrimSpace(lhs), func(r rune) bool {
			return r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if !IsSymbol(label) {
			return "", false
		}
		return label, true
	}
	return "", false
}

// operand returns the text after keyword when keyword is the first field of
// the comment-stripped line. A keyword without operand is not a match.
func operand(line, keyword string) (string, bool) {
	if IsComment(line) {
		return "", false
	}
	s := StripComment(line)
	if !strings.HasPrefix(s, keyword) {
		return "", false
	}
	rest := s[len(keyword):]
	if rest == "" || !unicode.IsSpace(rune(rest[0])) {
		return "", false
	}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return "", false
	}
	return rest, true
}
