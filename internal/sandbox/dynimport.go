package sandbox

import "strings"

// rewriteDynamicImports replaces call-position uses of the import
// keyword with the dynamic-import placeholder before parsing. Two
// facts make a lexical pass exact here: import is reserved, so no user
// binding can ever shadow it, and the parser downstream has no module
// syntax and would reject the keyword outright. The scanner tracks
// strings, comments, template substitutions, and regex literals so a
// spelled-out "import(" inside any of those is left alone, as is
// property access like obj.import(...).
func rewriteDynamicImports(src string, token Token) string {
	if !strings.Contains(src, "import") {
		return src
	}
	s := &importScanner{src: src, placeholder: CapImport.Placeholder(token)}
	s.out.Grow(len(src) + 64)
	s.scanCode(false)
	return s.out.String()
}

type importScanner struct {
	src         string
	placeholder string
	out         strings.Builder
	i           int

	// lastSig is the previous significant byte, lastWord the previous
	// identifier-like word, prevOperand whether the previous token can
	// end an operand. Whitespace and comments leave all three alone.
	lastSig     byte
	lastWord    string
	prevOperand bool
}

// scanCode consumes code until EOF, or until the '}' closing a template
// substitution when sub is set (the brace is left for the caller).
func (s *importScanner) scanCode(sub bool) {
	depth := 0
	for s.i < len(s.src) {
		c := s.src[s.i]
		switch {
		case c == '"' || c == '\'':
			s.copyString(c)
			s.mark('"', "", true)
		case c == '`':
			s.out.WriteByte(c)
			s.i++
			s.scanTemplate()
			s.mark('`', "", true)
		case c == '/':
			if s.i+1 < len(s.src) && s.src[s.i+1] == '/' {
				s.copyLineComment()
			} else if s.i+1 < len(s.src) && s.src[s.i+1] == '*' {
				s.copyBlockComment()
			} else if s.regexAllowed() {
				s.copyRegex()
				s.mark(']', "", true)
			} else {
				s.out.WriteByte(c)
				s.i++
				s.mark('/', "", false)
			}
		case c == '{':
			if sub {
				depth++
			}
			s.out.WriteByte(c)
			s.i++
			s.mark('{', "", false)
		case c == '}':
			if sub && depth == 0 {
				return
			}
			if sub {
				depth--
			}
			s.out.WriteByte(c)
			s.i++
			s.mark('}', "", false)
		case isWordStart(c):
			s.scanWord()
		case c >= '0' && c <= '9':
			s.scanNumber()
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f':
			s.out.WriteByte(c)
			s.i++
		default:
			s.out.WriteByte(c)
			s.i++
			operand := c == ')' || c == ']'
			s.mark(c, "", operand)
		}
	}
}

func (s *importScanner) mark(sig byte, word string, operand bool) {
	s.lastSig = sig
	s.lastWord = word
	s.prevOperand = operand
}

func (s *importScanner) scanWord() {
	start := s.i
	for s.i < len(s.src) && isWordPart(s.src[s.i]) {
		s.i++
	}
	word := s.src[start:s.i]
	if word == "import" && s.lastSig != '.' && s.lastSig != '#' && s.nextSignificantByte() == '(' {
		s.out.WriteString(s.placeholder)
	} else {
		s.out.WriteString(word)
	}
	s.mark('a', word, !keywordBeforeRegex[word])
}

// scanNumber consumes a numeric literal loosely: the exact grammar does
// not matter, only that the token reads as an operand so a following
// slash means division.
func (s *importScanner) scanNumber() {
	for s.i < len(s.src) {
		c := s.src[s.i]
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '.' || c == '_' {
			s.out.WriteByte(c)
			s.i++
			continue
		}
		if (c == '+' || c == '-') && s.i > 0 {
			prev := s.src[s.i-1]
			if prev == 'e' || prev == 'E' || prev == 'p' || prev == 'P' {
				s.out.WriteByte(c)
				s.i++
				continue
			}
		}
		break
	}
	s.mark('0', "", true)
}

// nextSignificantByte peeks past whitespace and comments without
// consuming anything.
func (s *importScanner) nextSignificantByte() byte {
	j := s.i
	for j < len(s.src) {
		c := s.src[j]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f':
			j++
		case c == '/' && j+1 < len(s.src) && s.src[j+1] == '/':
			for j < len(s.src) && s.src[j] != '\n' {
				j++
			}
		case c == '/' && j+1 < len(s.src) && s.src[j+1] == '*':
			j += 2
			for j+1 < len(s.src) && !(s.src[j] == '*' && s.src[j+1] == '/') {
				j++
			}
			j += 2
		default:
			return c
		}
	}
	return 0
}

func (s *importScanner) copyString(quote byte) {
	s.out.WriteByte(quote)
	s.i++
	for s.i < len(s.src) {
		c := s.src[s.i]
		s.out.WriteByte(c)
		s.i++
		if c == '\\' && s.i < len(s.src) {
			s.out.WriteByte(s.src[s.i])
			s.i++
			continue
		}
		if c == quote || c == '\n' {
			return
		}
	}
}

func (s *importScanner) scanTemplate() {
	for s.i < len(s.src) {
		c := s.src[s.i]
		if c == '\\' && s.i+1 < len(s.src) {
			s.out.WriteByte(c)
			s.out.WriteByte(s.src[s.i+1])
			s.i += 2
			continue
		}
		if c == '`' {
			s.out.WriteByte(c)
			s.i++
			return
		}
		if c == '$' && s.i+1 < len(s.src) && s.src[s.i+1] == '{' {
			s.out.WriteString("${")
			s.i += 2
			saved := s.lastSig
			s.mark('{', "", false)
			s.scanCode(true)
			if s.i < len(s.src) {
				s.out.WriteByte('}')
				s.i++
			}
			s.mark(saved, "", false)
			continue
		}
		s.out.WriteByte(c)
		s.i++
	}
}

func (s *importScanner) copyLineComment() {
	for s.i < len(s.src) && s.src[s.i] != '\n' {
		s.out.WriteByte(s.src[s.i])
		s.i++
	}
}

func (s *importScanner) copyBlockComment() {
	s.out.WriteString("/*")
	s.i += 2
	for s.i < len(s.src) {
		if s.src[s.i] == '*' && s.i+1 < len(s.src) && s.src[s.i+1] == '/' {
			s.out.WriteString("*/")
			s.i += 2
			return
		}
		s.out.WriteByte(s.src[s.i])
		s.i++
	}
}

// copyRegex copies a regex literal, honoring character classes and
// escapes. A newline bails out: the slash was a misjudged division and
// nothing past the line is consumed as pattern text.
func (s *importScanner) copyRegex() {
	s.out.WriteByte('/')
	s.i++
	inClass := false
	for s.i < len(s.src) {
		c := s.src[s.i]
		if c == '\n' {
			return
		}
		s.out.WriteByte(c)
		s.i++
		if c == '\\' && s.i < len(s.src) && s.src[s.i] != '\n' {
			s.out.WriteByte(s.src[s.i])
			s.i++
			continue
		}
		if c == '[' {
			inClass = true
		} else if c == ']' {
			inClass = false
		} else if c == '/' && !inClass {
			break
		}
	}
	for s.i < len(s.src) && isWordPart(s.src[s.i]) {
		s.out.WriteByte(s.src[s.i])
		s.i++
	}
}

// regexAllowed decides whether a slash starts a regex literal. After an
// operand a slash is division; after most keywords, operators, or at
// the start of input it opens a pattern. A closing brace counts as a
// block end, where a regex may follow.
func (s *importScanner) regexAllowed() bool {
	if s.lastSig == 0 || s.lastSig == '}' {
		return true
	}
	return !s.prevOperand
}

var keywordBeforeRegex = map[string]bool{
	"return": true, "typeof": true, "instanceof": true, "in": true,
	"of": true, "new": true, "delete": true, "void": true, "throw": true,
	"case": true, "do": true, "else": true, "yield": true, "await": true,
}

func isWordStart(c byte) bool {
	return c == '$' || c == '_' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isWordPart(c byte) bool {
	return isWordStart(c) || (c >= '0' && c <= '9')
}
