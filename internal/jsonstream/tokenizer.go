// Package jsonstream tokenizes JSON text that arrives in arbitrary pieces,
// emitting structural tokens as soon as they are complete.
package jsonstream

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind identifies a token.
type Kind int

const (
	StartObject Kind = iota
	EndObject
	StartArray
	EndArray
	Key
	String
	Number
	Bool
	Null
	Comma
	Colon
)

var kindNames = [...]string{
	StartObject: "start_object",
	EndObject:   "end_object",
	StartArray:  "start_array",
	EndArray:    "end_array",
	Key:         "key",
	String:      "string",
	Number:      "number",
	Bool:        "bool",
	Null:        "null",
	Comma:       "comma",
	Colon:       "colon",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Token is one lexical element. Value is a string for Key and String, a
// json.Number for Number, a bool for Bool and nil otherwise.
type Token struct {
	Kind  Kind
	Value any
}

// SyntaxError reports malformed input at a byte offset of the whole text.
type SyntaxError struct {
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("json syntax error at offset %d: %s", e.Offset, e.Msg)
}

type lexState int

const (
	inValue lexState = iota
	inString
	inNumber
	inLiteral
)

// Tokenizer is an incremental JSON lexer. The zero value is ready to use.
// After the first error every call returns that error.
type Tokenizer struct {
	state     lexState
	pending   strings.Builder
	escaped   bool
	stack     []byte
	expectKey bool
	offset    int
	err       error
}

// Feed consumes the next piece of text and returns the tokens it completes.
func (t *Tokenizer) Feed(chunk string) ([]Token, error) {
	if t.err != nil {
		return nil, t.err
	}

	var out []Token
	for i := 0; i < len(chunk); i++ {
		tokens, err := t.step(chunk[i])
		out = append(out, tokens...)
		if err != nil {
			t.err = err
			return out, err
		}
		t.offset++
	}

	return out, nil
}

// Close signals the end of input and returns any token still pending, such
// as a trailing number. Unterminated strings or containers are errors.
func (t *Tokenizer) Close() ([]Token, error) {
	if t.err != nil {
		return nil, t.err
	}

	var out []Token

	switch t.state {
	case inString:
		t.err = t.syntaxError("unterminated string")
		return nil, t.err
	case inNumber, inLiteral:
		tok, err := t.finishScalar()
		if err != nil {
			t.err = err
			return nil, err
		}
		out = append(out, tok)
	}

	if len(t.stack) > 0 {
		t.err = t.syntaxError("unexpected end of input")
		return out, t.err
	}

	return out, nil
}

// Depth returns the current container nesting level.
func (t *Tokenizer) Depth() int {
	return len(t.stack)
}

func (t *Tokenizer) step(c byte) ([]Token, error) {
	switch t.state {
	case inString:
		t.pending.WriteByte(c)

		switch {
		case t.escaped:
			t.escaped = false
		case c == '\\':
			t.escaped = true
		case c == '"':
			tok, err := t.finishString()
			return []Token{tok}, err
		}

		return nil, nil

	case inNumber:
		if isNumberByte(c) {
			t.pending.WriteByte(c)
			return nil, nil
		}
		return t.finishThen(c)

	case inLiteral:
		if c >= 'a' && c <= 'z' {
			t.pending.WriteByte(c)
			return nil, nil
		}
		return t.finishThen(c)
	}

	return t.value(c)
}

// finishThen completes the pending scalar and lexes c afresh.
func (t *Tokenizer) finishThen(c byte) ([]Token, error) {
	tok, err := t.finishScalar()
	if err != nil {
		return nil, err
	}

	rest, err := t.value(c)
	return append([]Token{tok}, rest...), err
}

func (t *Tokenizer) value(c byte) ([]Token, error) {
	switch c {
	case ' ', '\t', '\n', '\r':
		return nil, nil
	case '{':
		t.stack = append(t.stack, '{')
		t.expectKey = true
		return []Token{{Kind: StartObject}}, nil
	case '[':
		t.stack = append(t.stack, '[')
		t.expectKey = false
		return []Token{{Kind: StartArray}}, nil
	case '}':
		if err := t.pop('{'); err != nil {
			return nil, err
		}
		return []Token{{Kind: EndObject}}, nil
	case ']':
		if err := t.pop('['); err != nil {
			return nil, err
		}
		return []Token{{Kind: EndArray}}, nil
	case ',':
		t.expectKey = t.top() == '{'
		return []Token{{Kind: Comma}}, nil
	case ':':
		t.expectKey = false
		return []Token{{Kind: Colon}}, nil
	case '"':
		t.state = inString
		t.pending.Reset()
		t.pending.WriteByte(c)
		return nil, nil
	}

	switch {
	case c == '-' || (c >= '0' && c <= '9'):
		t.state = inNumber
	case c >= 'a' && c <= 'z':
		t.state = inLiteral
	default:
		return nil, t.syntaxError(fmt.Sprintf("unexpected character %q", c))
	}

	t.pending.Reset()
	t.pending.WriteByte(c)

	return nil, nil
}

func (t *Tokenizer) pop(open byte) error {
	if t.top() != open {
		return t.syntaxError("mismatched closing bracket")
	}

	t.stack = t.stack[:len(t.stack)-1]
	t.expectKey = false

	return nil
}

func (t *Tokenizer) top() byte {
	if len(t.stack) == 0 {
		return 0
	}
	return t.stack[len(t.stack)-1]
}

func (t *Tokenizer) finishString() (Token, error) {
	raw := t.pending.String()
	t.pending.Reset()
	t.state = inValue

	var s string
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return Token{}, t.syntaxError(fmt.Sprintf("invalid string %s", raw))
	}

	if t.expectKey {
		t.expectKey = false
		return Token{Kind: Key, Value: s}, nil
	}

	return Token{Kind: String, Value: s}, nil
}

func (t *Tokenizer) finishScalar() (Token, error) {
	raw := t.pending.String()
	state := t.state
	t.pending.Reset()
	t.state = inValue

	if state == inNumber {
		if !json.Valid([]byte(raw)) {
			return Token{}, t.syntaxError(fmt.Sprintf("invalid number %q", raw))
		}
		return Token{Kind: Number, Value: json.Number(raw)}, nil
	}

	switch raw {
	case "true":
		return Token{Kind: Bool, Value: true}, nil
	case "false":
		return Token{Kind: Bool, Value: false}, nil
	case "null":
		return Token{Kind: Null}, nil
	}

	return Token{}, t.syntaxError(fmt.Sprintf("invalid literal %q", raw))
}

func (t *Tokenizer) syntaxError(msg string) error {
	return &SyntaxError{Offset: t.offset, Msg: msg}
}

func isNumberByte(c byte) bool {
	return (c >= '0' && c <= '9') || c == '-' || c == '+' || c == '.' || c == 'e' || c == 'E'
}
