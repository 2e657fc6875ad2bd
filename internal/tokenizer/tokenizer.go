// Package tokenizer reduces raw attribute values to distinct, lower-cased
// token sets. Tokenizers are pure: the same value always yields the same set,
// in the same order.
package tokenizer

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	snowballeng "github.com/kljensen/snowball/english"
)

// ErrMalformedValue is returned for values that are not valid UTF-8.
var ErrMalformedValue = errors.New("malformed value")

// padRune surrounds values before q-gram extraction so leading and trailing
// characters appear in q grams each.
const padRune = '#'

// wordSeparators is the default separator class of the words tokenizer:
// ASCII punctuation except the single quote, plus whitespace.
const wordSeparators = "!\"#$%&()*+,-./:;<=>?@[\\]^_`{|}~ \t\n\r\v\f"

// Tokenizer turns a value into a distinct token set. The cardinality of the
// returned slice is the record length.
type Tokenizer interface {
	Name() string
	Tokens(value string) ([]string, error)
}

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "has": {}, "he": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "to": {}, "was": {}, "were": {},
	"will": {}, "with": {}, "this": {}, "but": {}, "they": {},
	"have": {}, "had": {}, "what": {}, "when": {}, "where": {},
	"who": {}, "which": {}, "their": {}, "if": {}, "each": {},
	"do": {}, "not": {}, "no": {}, "so": {}, "can": {},
}

type qgram struct {
	q int
}

// QGram returns a tokenizer emitting every q-rune window of the lower-cased
// value padded with q-1 '#' on both sides. Empty values yield no tokens.
func QGram(q int) Tokenizer {
	if q < 1 {
		q = 1
	}
	return qgram{q: q}
}

func (t qgram) Name() string { return "qgram:" + strconv.Itoa(t.q) }

func (t qgram) Tokens(value string) ([]string, error) {
	if !utf8.ValidString(value) {
		return nil, fmt.Errorf("%w: invalid utf-8", ErrMalformedValue)
	}
	if value == "" {
		return nil, nil
	}
	pad := strings.Repeat(string(padRune), t.q-1)
	runes := []rune(pad + strings.ToLower(value) + pad)
	grams := make([]string, 0, len(runes)-t.q+1)
	for i := 0; i+t.q <= len(runes); i++ {
		grams = append(grams, string(runes[i:i+t.q]))
	}
	return Distinct(grams), nil
}

type delimiter struct {
	name string
	seps string
}

// Delimiter splits on any rune of separators, trims each piece and drops
// empty ones.
func Delimiter(separators string) Tokenizer {
	return delimiter{name: "delimiter:" + separators, seps: separators}
}

// Whitespace splits on spaces, tabs, carriage returns and newlines.
func Whitespace() Tokenizer {
	return delimiter{name: "whitespace", seps: " \t\r\n"}
}

// Words splits on ASCII punctuation (keeping apostrophes) and whitespace.
func Words() Tokenizer {
	return delimiter{name: "words", seps: wordSeparators}
}

func (t delimiter) Name() string { return t.name }

func (t delimiter) Tokens(value string) ([]string, error) {
	if !utf8.ValidString(value) {
		return nil, fmt.Errorf("%w: invalid utf-8", ErrMalformedValue)
	}
	pieces := strings.FieldsFunc(value, func(r rune) bool {
		return strings.ContainsRune(t.seps, r)
	})
	tokens := make([]string, 0, len(pieces))
	for _, p := range pieces {
		p = strings.TrimFunc(p, unicode.IsSpace)
		if p == "" {
			continue
		}
		tokens = append(tokens, strings.ToLower(p))
	}
	return Distinct(tokens), nil
}

type stemmed struct {
	inner Tokenizer
}

// Stemmed reduces every token of inner to its English snowball stem.
func Stemmed(inner Tokenizer) Tokenizer {
	return stemmed{inner: inner}
}

func (t stemmed) Name() string { return t.inner.Name() + "+stem" }

func (t stemmed) Tokens(value string) ([]string, error) {
	tokens, err := t.inner.Tokens(value)
	if err != nil {
		return nil, err
	}
	for i, tok := range tokens {
		tokens[i] = snowballeng.Stem(tok, false)
	}
	return Distinct(tokens), nil
}

type withoutStopWords struct {
	inner Tokenizer
}

// WithoutStopWords drops common English function words from inner's output.
func WithoutStopWords(inner Tokenizer) Tokenizer {
	return withoutStopWords{inner: inner}
}

func (t withoutStopWords) Name() string { return t.inner.Name() + "+stop" }

func (t withoutStopWords) Tokens(value string) ([]string, error) {
	tokens, err := t.inner.Tokens(value)
	if err != nil {
		return nil, err
	}
	kept := tokens[:0]
	for _, tok := range tokens {
		if _, isStop := stopWords[tok]; isStop {
			continue
		}
		kept = append(kept, tok)
	}
	return kept, nil
}

// Parse builds a tokenizer from its name: "qgram:<q>", "whitespace",
// "words" or "delimiter:<chars>", optionally followed by "+stop" and/or
// "+stem" modifiers, e.g. "words+stop+stem".
func Parse(text string) (Tokenizer, error) {
	base, mods, _ := strings.Cut(text, "+")
	var tok Tokenizer
	name, arg, hasArg := strings.Cut(base, ":")
	switch name {
	case "qgram":
		q := 3
		if hasArg {
			n, err := strconv.Atoi(arg)
			if err != nil || n < 1 {
				return nil, fmt.Errorf("invalid q-gram width %q", arg)
			}
			q = n
		}
		tok = QGram(q)
	case "whitespace":
		tok = Whitespace()
	case "words":
		tok = Words()
	case "delimiter":
		if !hasArg || arg == "" {
			return nil, fmt.Errorf("delimiter tokenizer needs separators, e.g. \"delimiter:,;\"")
		}
		tok = Delimiter(arg)
	default:
		return nil, fmt.Errorf("unknown tokenizer %q", name)
	}
	if mods == "" {
		return tok, nil
	}
	for _, mod := range strings.Split(mods, "+") {
		switch mod {
		case "stem":
			tok = Stemmed(tok)
		case "stop":
			tok = WithoutStopWords(tok)
		default:
			return nil, fmt.Errorf("unknown tokenizer modifier %q", mod)
		}
	}
	return tok, nil
}

// Distinct removes repeated tokens, keeping first occurrences in order.
func Distinct(tokens []string) []string {
	if len(tokens) < 2 {
		return tokens
	}
	seen := make(map[string]struct{}, len(tokens))
	out := tokens[:0]
	for _, tok := range tokens {
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}
