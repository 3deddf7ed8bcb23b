package langparser

import "github.com/alecthomas/participle/v2/lexer"

// sourceLexer tokenizes the restricted grammar of spec.md §4.1. Modeled
// directly on the teacher's psilLexer (pkg/parser/parser.go): a flat
// lexer.SimpleRule table, longest keyword/operator alternatives first so
// the regex engine doesn't need backtracking to tell "=>" from "=".
var sourceLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `[ \t\r\n]+`},
	{Name: "LineComment", Pattern: `//[^\n]*`},
	{Name: "BlockComment", Pattern: `/\*([^*]|\*[^/])*\*/`},

	{Name: "Number", Pattern: `[0-9]+`},

	{Name: "Arrow", Pattern: `=>`},
	{Name: "EqEq", Pattern: `==`},
	{Name: "NotEq", Pattern: `!=`},
	{Name: "AndAnd", Pattern: `&&`},
	{Name: "OrOr", Pattern: `\|\|`},
	{Name: "PlusEq", Pattern: `\+=`},
	{Name: "MinusEq", Pattern: `-=`},
	{Name: "StarEq", Pattern: `\*=`},
	{Name: "SlashEq", Pattern: `/=`},
	{Name: "PlusPlus", Pattern: `\+\+`},
	{Name: "MinusMinus", Pattern: `--`},
	{Name: "GtEq", Pattern: `>=`},
	{Name: "LtEq", Pattern: `<=`},

	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},

	{Name: "Punct", Pattern: `[{}()\[\].,;=+\-*/%!<>:]`},
})
