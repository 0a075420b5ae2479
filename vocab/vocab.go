// Package vocab maps transducer output ids to symbols. A vocabulary of V real
// symbols is always extended with one synthetic blank, giving V+1 output
// classes.
package vocab

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// BlankSymbol is the display form of the blank id.
const BlankSymbol = "<blank>"

// wordBoundary marks the start of a word in sentencepiece vocabularies.
const wordBoundary = "▁"

// Vocabulary holds the ordered real symbols and the blank position.
// Real symbols keep their relative order and occupy every id except the
// blank id.
type Vocabulary struct {
	symbols []string
	ids     map[string]int
	blank   int
}

// Option configures a Vocabulary.
type Option func(*options)

type options struct {
	blank    int
	hasBlank bool
}

// WithBlankIndex places the blank at id i instead of the default V.
// i must lie in [0, V].
func WithBlankIndex(i int) Option {
	return func(o *options) {
		o.blank = i
		o.hasBlank = true
	}
}

// New builds a vocabulary from real symbols.
func New(symbols []string, opts ...Option) (*Vocabulary, error) {
	o := options{blank: len(symbols)}
	for _, opt := range opts {
		opt(&o)
	}
	if o.blank < 0 || o.blank > len(symbols) {
		return nil, fmt.Errorf("blank index %d outside [0, %d]", o.blank, len(symbols))
	}
	v := &Vocabulary{
		symbols: make([]string, len(symbols)),
		ids:     make(map[string]int, len(symbols)),
		blank:   o.blank,
	}
	copy(v.symbols, symbols)
	for i, s := range symbols {
		if _, dup := v.ids[s]; dup {
			return nil, fmt.Errorf("duplicate symbol %q at position %d", s, i)
		}
		v.ids[s] = v.idOf(i)
	}
	return v, nil
}

// idOf converts a position in the real-symbol list into an output id.
func (v *Vocabulary) idOf(pos int) int {
	if pos >= v.blank {
		return pos + 1
	}
	return pos
}

// Load reads one symbol per line. Empty lines are skipped. A line holding
// "<blank>" or "<blk>" marks the blank position instead of adding a symbol.
func Load(r io.Reader, opts ...Option) (*Vocabulary, error) {
	var symbols []string
	fileBlank := -1
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if line == "" {
			continue
		}
		if line == BlankSymbol || line == "<blk>" {
			if fileBlank >= 0 {
				return nil, fmt.Errorf("line %d: second blank marker", lineNum)
			}
			fileBlank = len(symbols)
			continue
		}
		symbols = append(symbols, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if fileBlank >= 0 {
		o := options{}
		for _, opt := range opts {
			opt(&o)
		}
		if o.hasBlank && o.blank != fileBlank {
			return nil, fmt.Errorf("blank marker at %d conflicts with configured blank index %d", fileBlank, o.blank)
		}
		opts = append(opts, WithBlankIndex(fileBlank))
	}
	return New(symbols, opts...)
}

// LoadFile is a convenience wrapper that opens a file path.
func LoadFile(path string, opts ...Option) (*Vocabulary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f, opts...)
}

// Size returns V, the number of real symbols.
func (v *Vocabulary) Size() int { return len(v.symbols) }

// SizeWithBlank returns V+1.
func (v *Vocabulary) SizeWithBlank() int { return len(v.symbols) + 1 }

// BlankIndex returns the id reserved for the blank.
func (v *Vocabulary) BlankIndex() int { return v.blank }

// Symbols returns the real symbols in order.
func (v *Vocabulary) Symbols() []string {
	out := make([]string, len(v.symbols))
	copy(out, v.symbols)
	return out
}

// ID returns the output id of a real symbol.
func (v *Vocabulary) ID(symbol string) (int, bool) {
	id, ok := v.ids[symbol]
	return id, ok
}

// Symbol returns the symbol for an output id; the blank id maps to BlankSymbol.
func (v *Vocabulary) Symbol(id int) (string, bool) {
	switch {
	case id == v.blank:
		return BlankSymbol, true
	case id < 0 || id > len(v.symbols):
		return "", false
	case id > v.blank:
		return v.symbols[id-1], true
	default:
		return v.symbols[id], true
	}
}

// Decode renders ids as text. Blank and unknown ids are dropped; sentencepiece
// word-boundary markers become spaces.
func (v *Vocabulary) Decode(ids []int) string {
	var sb strings.Builder
	for _, id := range ids {
		if id == v.blank {
			continue
		}
		s, ok := v.Symbol(id)
		if !ok {
			continue
		}
		sb.WriteString(s)
	}
	text := strings.ReplaceAll(sb.String(), wordBoundary, " ")
	return strings.TrimSpace(text)
}
