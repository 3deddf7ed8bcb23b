package langparser

import "github.com/alecthomas/participle/v2"

// This file is the raw participle grammar: tagged Go structs describing
// the concrete syntax of spec.md §4.1. Nothing here is the canonical AST —
// lower.go walks this tree and produces pkg/ast nodes, exactly as the
// teacher's pkg/parser.Expression.ToValue() converts a participle parse
// tree into pkg/types.Value.

// grammarProgram is the top-level parse result.
type grammarProgram struct {
	Statements []*grammarStatement `@@*`
}

type grammarStatement struct {
	Destructuring *grammarDestructuring `  @@`
	LetConst      *grammarLetConst      `| @@`
	VarDecl       *grammarVarDecl       `| @@`
	If            *grammarIf            `| @@`
	On            *grammarOn            `| @@`
	HandlerCall   *grammarHandlerCall   `| @@`
	PreIncDec     *grammarPreIncDec     `| @@`
	Assign        *grammarAssignExpr    `| @@`
	PostIncDec    *grammarPostIncDec    `| @@`
}

// --- top-level forms ---------------------------------------------------

type grammarDestructuring struct {
	Names []string `"const" "{" @Ident ("," @Ident)* "}" "=" Ident ";"`
}

type grammarLetConst struct {
	Keyword string       `@( "let" | "const" )`
	Name    string       `@Ident "="`
	Init    *grammarExpr `@@ ";"`
}

type grammarVarDecl struct {
	Name string       `"var" @Ident "="`
	Init *grammarExpr `@@ ";"`
}

// --- assignment targets and statements ----------------------------------

// grammarAssignTarget is a writable target: a dotted path, optionally with
// a trailing array index ("rc[0]", "gvar[3]", "override.vtx.power").
type grammarAssignTarget struct {
	First string       `@Ident`
	Rest  []string     `( "." @Ident )*`
	Index *grammarExpr `( "[" @@ "]" )?`
}

type grammarAssignExpr struct {
	Target *grammarAssignTarget `@@`
	Op     string               `@( "=" | "+=" | "-=" | "*=" | "/=" )`
	Value  *grammarExpr         `@@ ";"`
}

type grammarPostIncDec struct {
	Target *grammarAssignTarget `@@`
	Op     string               `@( "++" | "--" ) ";"`
}

type grammarPreIncDec struct {
	Op     string               `@( "++" | "--" )`
	Target *grammarAssignTarget `@@ ";"`
}

// --- event handlers ------------------------------------------------------

type grammarBlock struct {
	Statements []*grammarStatement `"{" @@* "}"`
}

// grammarBody is the canonicalized "arrow-function argument" carrier
// (design notes §9): either a bare expression or a `{ ... }` block of
// assignment statements, always introduced by "() =>".
type grammarBody struct {
	Block *grammarBlock `"(" ")" "=>" (  @@`
	Expr  *grammarExpr  `                | @@ )`
}

type grammarIf struct {
	Cond *grammarExpr `"if" "(" @@ ")"`
	Then *grammarBlock `@@`
	Else *grammarElse  `@@?`
}

type grammarElse struct {
	ElseIf *grammarIf    `"else" (  @@`
	Block  *grammarBlock `          | @@ )`
}

// grammarOn parses `on.arm({ delay: N }, () => { ... })` and
// `on.always(() => { ... })`.
type grammarOn struct {
	Kind  string       `"on" "." @( "arm" | "always" ) "("`
	Delay *int         `( "{" "delay" ":" @Number "}" "," )?`
	Body  *grammarBody `@@ ")" ";"`
}

// grammarHandlerCall parses the five special-construct call forms, which
// share the shape `name(args...);`.
type grammarHandlerCall struct {
	Name string        `@( "edge" | "sticky" | "delay" | "timer" | "whenChanged" ) "("`
	Args []*grammarArg `@@ ( "," @@ )* ")" ";"`
}

// grammarArg is one positional argument to a handler call: an
// arrow-wrapped body (`() => ...`), a `{duration: N}` config object, or a
// plain expression (the onMs/offMs/value/threshold arguments of
// timer/whenChanged).
type grammarArg struct {
	Body   *grammarBody `(  @@`
	Config *int         ` | "{" "duration" ":" @Number "}"`
	Plain  *grammarExpr ` | @@ )`
}

// --- expressions, by precedence (lowest to highest) ---------------------
//
// Expr -> Or -> And -> Not -> Cmp -> Add -> Mul -> Unary -> Primary

type grammarExpr struct {
	Or *grammarOr `@@`
}

type grammarOr struct {
	Left *grammarAnd   `@@`
	Rest []*grammarAnd `( "||" @@ )*`
}

type grammarAnd struct {
	Left *grammarNot   `@@`
	Rest []*grammarNot `( "&&" @@ )*`
}

type grammarNot struct {
	Bangs int         `@"!"*`
	Cmp   *grammarCmp `@@`
}

type grammarCmp struct {
	Left  *grammarAdd `@@`
	Op    *string     `( @( "==" | "!=" | ">" | "<" | ">=" | "<=" )`
	Right *grammarAdd `  @@ )?`
}

type grammarAdd struct {
	Left *grammarMul   `@@`
	Ops  []string      `( @( "+" | "-" )`
	Rest []*grammarMul `  @@ )*`
}

type grammarMul struct {
	Left *grammarUnary   `@@`
	Ops  []string        `( @( "*" | "/" | "%" )`
	Rest []*grammarUnary `  @@ )*`
}

type grammarUnary struct {
	Neg  bool            `@"-"?`
	Prim *grammarPrimary `@@`
}

type grammarPrimary struct {
	Number  *int            `(  @Number`
	Bool    *string         ` | @( "true" | "false" )`
	AbsCall *grammarAbsCall ` | @@`
	Member  *grammarMember  ` | @@`
	Paren   *grammarExpr    ` | "(" @@ ")" )`
}

type grammarAbsCall struct {
	Arg *grammarExpr `"Math" "." "abs" "(" @@ ")"`
}

// grammarMember is a dotted identifier path with an optional trailing
// array index, e.g. "flight.mode.failsafe" or "rc[0]" or "gvar[3]". The
// grammar does not limit the path depth; a path that names no catalog
// entry or variable is rejected by the analyzer.
type grammarMember struct {
	First string       `@Ident`
	Rest  []string     `( "." @Ident )*`
	Index *grammarExpr `( "[" @@ "]" )?`
}

// Parser is the compiled participle parser for the source grammar.
var Parser = participle.MustBuild[grammarProgram](
	participle.Lexer(sourceLexer),
	participle.Elide("Whitespace", "LineComment", "BlockComment"),
	participle.UseLookahead(8),
)
