// Package parser turns formula expression text into an AST.
//
// Grammar, lowest precedence first:
//
//	or         = and { ("OR" | "||") and }
//	and        = equality { ("AND" | "&&") equality }
//	equality   = comparison { ("=" | "==" | "!=" | "<>") comparison }
//	comparison = additive { ("<" | "<=" | ">" | ">=" | "LIKE" | "IN") additive }
//	additive   = term { ("+" | "-") term }
//	term       = unary { ("*" | "/" | "%") unary }
//	unary      = ("NOT" | "!" | "-") unary | postfix
//	postfix    = primary { "." name [ args ] | "[" or "]" }
//	primary    = literal | name [ args ] | "(" or ")" | "[" [ or { "," or } ] "]"
//
// Keywords are case-insensitive.
package parser
