package wat

import "unicode"

type tokenType int

const (
	tokLParen tokenType = iota
	tokRParen
	tokIdent
	tokString
	tokNumber
)

func (t tokenType) String() string {
	switch t {
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	case tokIdent:
		return "identifier"
	case tokString:
		return "string"
	case tokNumber:
		return "number"
	}
	return "unknown"
}

type token struct {
	value string
	typ   tokenType
	line  int
}

// tokenize splits WAT source into tokens, dropping whitespace and comments.
// Unterminated strings and block comments run to the end of input.
func tokenize(input string) []token {
	var tokens []token
	line := 1
	runes := []rune(input)

	for i := 0; i < len(runes); i++ {
		r := runes[i]

		switch {
		case r == '\n':
			line++

		case unicode.IsSpace(r):

		case r == ';' && i+1 < len(runes) && runes[i+1] == ';':
			for i < len(runes) && runes[i] != '\n' {
				i++
			}
			line++

		case r == '(' && i+1 < len(runes) && runes[i+1] == ';':
			depth := 1
			for i += 2; i < len(runes) && depth > 0; i++ {
				switch {
				case runes[i] == '(' && i+1 < len(runes) && runes[i+1] == ';':
					depth++
					i++
				case runes[i] == ';' && i+1 < len(runes) && runes[i+1] == ')':
					depth--
					i++
				case runes[i] == '\n':
					line++
				}
			}
			i--

		case r == '(':
			tokens = append(tokens, token{"(", tokLParen, line})

		case r == ')':
			tokens = append(tokens, token{")", tokRParen, line})

		case r == '"':
			start := i + 1
			for i++; i < len(runes) && runes[i] != '"'; i++ {
				if runes[i] == '\\' {
					i++
				}
			}
			end := min(i, len(runes))
			tokens = append(tokens, token{string(runes[start:end]), tokString, line})

		case r == '-' || r == '+' || unicode.IsDigit(r):
			start := i
			for i++; i < len(runes) && isNumberRune(runes[i]); i++ {
			}
			tokens = append(tokens, token{string(runes[start:i]), tokNumber, line})
			i--

		default:
			start := i
			for i++; i < len(runes) && isIdentRune(runes[i]); i++ {
			}
			tokens = append(tokens, token{string(runes[start:i]), tokIdent, line})
			i--
		}
	}

	return tokens
}

func isNumberRune(c rune) bool {
	return unicode.IsDigit(c) || c == '_' || c == 'x' || c == 'X' ||
		(c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isIdentRune(c rune) bool {
	if unicode.IsSpace(c) {
		return false
	}
	return c != '(' && c != ')' && c != '"' && c != ';'
}
