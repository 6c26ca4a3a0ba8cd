package lexer

import "container/list"

// PeekableLexer wraps a Lexer with unlimited lookahead, needed by the
// parser's one-token-of-lookahead ambiguity resolution (ConceptSet vs.
// parenthesized expression) and its operator-precedence climb.
type PeekableLexer struct {
	lex        *Lexer
	readTokens *list.List
}

// NewPeekableLexer wraps lex for lookahead.
func NewPeekableLexer(lex *Lexer) *PeekableLexer {
	return &PeekableLexer{lex: lex, readTokens: list.New()}
}

// Close stops the underlying lexer goroutine.
func (l *PeekableLexer) Close() {
	l.lex.Close()
}

// NextToken consumes and returns the next token in the stream.
func (l *PeekableLexer) NextToken() Lexeme {
	if front := l.readTokens.Front(); front != nil {
		return l.readTokens.Remove(front).(Lexeme)
	}
	return l.lex.nextToken()
}

// PeekToken returns the count-th token ahead (1-indexed) without
// consuming any tokens.
func (l *PeekableLexer) PeekToken(count int) Lexeme {
	if count < 1 {
		panic("PeekToken: count must be >= 1")
	}
	for l.readTokens.Len() < count {
		l.readTokens.PushBack(l.lex.nextToken())
	}
	element := l.readTokens.Front()
	for i := 1; i < count; i++ {
		element = element.Next()
	}
	return element.Value.(Lexeme)
}
