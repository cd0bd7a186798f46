package steph

import (
	"sync"

	"github.com/alecthomas/participle/v2/lexer"

	"github.com/vito/steph/pkg/types"
)

// Grammar holds the token definitions and type names used by the parser. It
// is immutable once built and safe to share between goroutines.
type Grammar struct {
	def *lexer.StatefulDefinition

	skip     map[lexer.TokenType]bool
	number   lexer.TokenType
	str      lexer.TokenType
	ident    lexer.TokenType
	operator lexer.TokenType

	typeNames map[string]types.Type
}

var rules = []lexer.SimpleRule{
	{Name: "Comment", Pattern: `//[^\n]*`},
	{Name: "Whitespace", Pattern: `\s+`},
	{Name: "String", Pattern: `"(\\.|[^"\\])*"`},
	{Name: "Number", Pattern: `[0-9]+`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "Operator", Pattern: `=>|==|!=|<=|>=|&&|\|\||[-+*/<>=(){}\[\],;:]`},
}

// NewGrammar builds the grammar.
func NewGrammar() *Grammar {
	def := lexer.MustSimple(rules)
	symbols := def.Symbols()
	return &Grammar{
		def: def,
		skip: map[lexer.TokenType]bool{
			symbols["Comment"]:    true,
			symbols["Whitespace"]: true,
		},
		number:   symbols["Number"],
		str:      symbols["String"],
		ident:    symbols["Ident"],
		operator: symbols["Operator"],
		typeNames: map[string]types.Type{
			"Number":  types.Number,
			"String":  types.String,
			"Boolean": types.Boolean,
		},
	}
}

// DefaultGrammar returns a grammar shared by the whole process.
var DefaultGrammar = sync.OnceValue(NewGrammar)

// tokenize lexes source, dropping whitespace and comments. The returned
// slice always ends with an EOF token.
func (g *Grammar) tokenize(filename, source string) ([]lexer.Token, error) {
	lex, err := g.def.LexString(filename, source)
	if err != nil {
		return nil, err
	}
	all, err := lexer.ConsumeAll(lex)
	if err != nil {
		return nil, err
	}
	toks := make([]lexer.Token, 0, len(all))
	for _, tok := range all {
		if g.skip[tok.Type] {
			continue
		}
		toks = append(toks, tok)
	}
	return toks, nil
}
