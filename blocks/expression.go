package blocks

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/sarchlab/patchc/cty"
	"github.com/sarchlab/patchc/ir"
	"github.com/sarchlab/patchc/registry"
)

// The Expression block parses a small arithmetic expression language
// (spec.md §6.2): literal -> Const, identifier -> input reference, unary
// or function call -> Map, binary -> Zip. No third-party parsing library in
// the corpus covers an expression grammar this small, so the lexer and
// recursive-descent parser below are hand-rolled rather than grounded on an
// example dependency.

type exprTokenKind int

const (
	tokEOF exprTokenKind = iota
	tokNumber
	tokIdent
	tokOp
	tokLParen
	tokRParen
	tokComma
)

type exprToken struct {
	kind exprTokenKind
	text string
}

func lexExpression(src string) ([]exprToken, error) {
	var toks []exprToken
	runes := []rune(src)
	i := 0
	for i < len(runes) {
		c := runes[i]
		switch {
		case unicode.IsSpace(c):
			i++
		case c == '(':
			toks = append(toks, exprToken{tokLParen, "("})
			i++
		case c == ')':
			toks = append(toks, exprToken{tokRParen, ")"})
			i++
		case c == ',':
			toks = append(toks, exprToken{tokComma, ","})
			i++
		case strings.ContainsRune("+-*/<>", c):
			if c == '<' || c == '>' {
				if i+1 < len(runes) && runes[i+1] == '=' {
					toks = append(toks, exprToken{tokOp, string(c) + "="})
					i += 2
					continue
				}
			}
			toks = append(toks, exprToken{tokOp, string(c)})
			i++
		case c == '=':
			if i+1 < len(runes) && runes[i+1] == '=' {
				toks = append(toks, exprToken{tokOp, "=="})
				i += 2
				continue
			}
			return nil, fmt.Errorf("Expression: Syntax error: unexpected '=' at %d", i)
		case unicode.IsDigit(c) || c == '.':
			j := i
			for j < len(runes) && (unicode.IsDigit(runes[j]) || runes[j] == '.') {
				j++
			}
			toks = append(toks, exprToken{tokNumber, string(runes[i:j])})
			i = j
		case unicode.IsLetter(c) || c == '_':
			j := i
			for j < len(runes) && (unicode.IsLetter(runes[j]) || unicode.IsDigit(runes[j]) || runes[j] == '_') {
				j++
			}
			toks = append(toks, exprToken{tokIdent, string(runes[i:j])})
			i = j
		default:
			return nil, fmt.Errorf("Expression: Syntax error: unexpected character %q at %d", c, i)
		}
	}
	toks = append(toks, exprToken{tokEOF, ""})
	return toks, nil
}

// exprNode is the small expression AST; exactly one of its fields is
// meaningful depending on kind.
type exprNode struct {
	kind  string // "num", "ident", "unary", "binary", "call"
	num   float64
	ident string
	op    string
	args  []*exprNode
}

type exprParser struct {
	toks []exprToken
	pos  int
}

func (p *exprParser) peek() exprToken { return p.toks[p.pos] }

func (p *exprParser) next() exprToken {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func parseExpression(src string) (*exprNode, error) {
	if strings.TrimSpace(src) == "" {
		return &exprNode{kind: "num", num: 0}, nil
	}
	toks, err := lexExpression(src)
	if err != nil {
		return nil, err
	}
	p := &exprParser{toks: toks}
	node, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEOF {
		return nil, fmt.Errorf("Expression: Syntax error: unexpected token %q", p.peek().text)
	}
	return node, nil
}

func (p *exprParser) parseComparison() (*exprNode, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOp && isComparisonOp(p.peek().text) {
		op := p.next().text
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &exprNode{kind: "binary", op: op, args: []*exprNode{left, right}}
	}
	return left, nil
}

func isComparisonOp(op string) bool {
	switch op {
	case ">", "<", "==":
		return true
	}
	return false
}

func (p *exprParser) parseAdditive() (*exprNode, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOp && (p.peek().text == "+" || p.peek().text == "-") {
		op := p.next().text
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &exprNode{kind: "binary", op: op, args: []*exprNode{left, right}}
	}
	return left, nil
}

func (p *exprParser) parseMultiplicative() (*exprNode, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOp && (p.peek().text == "*" || p.peek().text == "/") {
		op := p.next().text
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &exprNode{kind: "binary", op: op, args: []*exprNode{left, right}}
	}
	return left, nil
}

func (p *exprParser) parseUnary() (*exprNode, error) {
	if p.peek().kind == tokOp && p.peek().text == "-" {
		p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &exprNode{kind: "unary", op: "-", args: []*exprNode{x}}, nil
	}
	return p.parsePrimary()
}

func (p *exprParser) parsePrimary() (*exprNode, error) {
	t := p.peek()
	switch t.kind {
	case tokNumber:
		p.next()
		v, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, fmt.Errorf("Expression: Syntax error: bad number %q", t.text)
		}
		return &exprNode{kind: "num", num: v}, nil
	case tokIdent:
		p.next()
		name := t.text
		if p.peek().kind == tokLParen {
			p.next()
			var args []*exprNode
			if p.peek().kind != tokRParen {
				for {
					arg, err := p.parseComparison()
					if err != nil {
						return nil, err
					}
					args = append(args, arg)
					if p.peek().kind == tokComma {
						p.next()
						continue
					}
					break
				}
			}
			if p.peek().kind != tokRParen {
				return nil, fmt.Errorf("Expression: Syntax error: expected ')' after call to %q", name)
			}
			p.next()
			return &exprNode{kind: "call", ident: name, args: args}, nil
		}
		return &exprNode{kind: "ident", ident: name}, nil
	case tokLParen:
		p.next()
		inner, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokRParen {
			return nil, fmt.Errorf("Expression: Syntax error: expected ')'")
		}
		p.next()
		return inner, nil
	default:
		return nil, fmt.Errorf("Expression: Syntax error: unexpected token %q", t.text)
	}
}

var exprBinaryOpcodes = map[string]ir.OpCode{
	"+": ir.OpAdd, "-": ir.OpSub, "*": ir.OpMul, "/": ir.OpDiv,
	">": ir.OpGt, "<": ir.OpLt, "==": ir.OpEq,
}

var exprUnaryOpcodes = map[string]ir.OpCode{
	"sin": ir.OpSin, "cos": ir.OpCos, "sqrt": ir.OpSqrt,
}

func expressionDef() registry.Def {
	none := cty.Unit{Tag: cty.UnitNone}
	return registry.Def{
		Type: "Expression", Label: "Expression", Category: "math",
		Form: registry.FormPrimitive, Capability: registry.CapPure,
		Cardinality: registry.Cardinality{
			Mode: registry.CardinalityPreserve, LaneCoupling: registry.LaneLocal,
			BroadcastPolicy: registry.AllowZipSig,
		},
		Payload: &registry.PayloadGenerics{
			AllowedPayloads: map[string][]cty.Payload{"in0": numericGenerics, "in1": numericGenerics, "out": numericGenerics},
			Semantics:       registry.SemanticsComponentwise,
		},
		Inputs: map[string]registry.InputDef{
			"in0": {Type: signalOf(none), HasDefaultSource: true, DefaultSource: registry.DefaultConst, DefaultValue: 0},
			"in1": {Type: signalOf(none), HasDefaultSource: true, DefaultSource: registry.DefaultConst, DefaultValue: 0},
			"refs": {
				Type: signalOf(none), IsVararg: true,
				VarargConstraint: registry.VarargConstraint{CardinalityConstraint: registry.CardinalitySignalOnly},
			},
		},
		Outputs: map[string]registry.OutputDef{"out": {Type: signalOf(none)}},
		Lower: func(ctx registry.LowerCtx, in registry.LowerInputs) (registry.LowerResult, error) {
			expression, _ := in.Config["expression"].(string)
			refNames, _ := in.Config["refNames"].([]string)

			root, err := parseExpression(expression)
			if err != nil {
				return registry.LowerResult{}, err
			}

			outType := ctx.OutputTypes["out"]
			scope := exprScope{
				builder: ctx.Builder,
				outType: outType,
				idents:  map[string]ir.ValueRef{"in0": in.ByID["in0"], "in1": in.ByID["in1"]},
			}
			refs := in.VarargByID["refs"]
			for i, name := range refNames {
				if i < len(refs) {
					scope.idents[name] = refs[i]
				}
			}

			expr, instance, hasInstance, err := scope.lower(root)
			if err != nil {
				return registry.LowerResult{}, err
			}
			return registry.LowerResult{OutputsByID: map[string]ir.ValueRef{
				"out": refFor(expr, outType, instance, hasInstance),
			}}, nil
		},
	}
}

type exprScope struct {
	builder *ir.Builder
	outType cty.Type
	idents  map[string]ir.ValueRef
}

func (s *exprScope) lower(n *exprNode) (ir.ExprID, ir.InstanceID, bool, error) {
	switch n.kind {
	case "num":
		return s.builder.Const(n.num, s.outType), "", false, nil
	case "ident":
		ref, ok := s.idents[n.ident]
		if !ok {
			return 0, "", false, fmt.Errorf("Expression: Syntax error: unknown identifier %q", n.ident)
		}
		return ref.Expr, ref.InstanceID, ref.IsField(), nil
	case "unary":
		x, instance, hasInstance, err := s.lower(n.args[0])
		if err != nil {
			return 0, "", false, err
		}
		if n.op != "-" {
			return 0, "", false, fmt.Errorf("Expression: Syntax error: unknown unary operator %q", n.op)
		}
		return s.builder.Map(x, ir.Opcode(ir.OpNeg), s.outType), instance, hasInstance, nil
	case "binary":
		opcode, ok := exprBinaryOpcodes[n.op]
		if !ok {
			return 0, "", false, fmt.Errorf("Expression: Syntax error: unknown operator %q", n.op)
		}
		l, li, lf, err := s.lower(n.args[0])
		if err != nil {
			return 0, "", false, err
		}
		r, ri, rf, err := s.lower(n.args[1])
		if err != nil {
			return 0, "", false, err
		}
		instance, hasInstance := li, lf
		if !hasInstance {
			instance, hasInstance = ri, rf
		}
		return s.builder.Zip([]ir.ExprID{l, r}, ir.Opcode(opcode), s.outType), instance, hasInstance, nil
	case "call":
		switch n.ident {
		case "sin", "cos", "sqrt":
			if len(n.args) != 1 {
				return 0, "", false, fmt.Errorf("Expression: Syntax error: %s takes exactly one argument", n.ident)
			}
			x, instance, hasInstance, err := s.lower(n.args[0])
			if err != nil {
				return 0, "", false, err
			}
			return s.builder.Map(x, ir.Opcode(exprUnaryOpcodes[n.ident]), s.outType), instance, hasInstance, nil
		case "lerp":
			if len(n.args) != 3 {
				return 0, "", false, fmt.Errorf("Expression: Syntax error: lerp takes exactly three arguments")
			}
			ids := make([]ir.ExprID, 3)
			var instance ir.InstanceID
			var hasInstance bool
			for i, a := range n.args {
				x, inst, hf, err := s.lower(a)
				if err != nil {
					return 0, "", false, err
				}
				ids[i] = x
				if hf && !hasInstance {
					instance, hasInstance = inst, true
				}
			}
			return s.builder.Zip(ids, ir.Opcode(ir.OpLerp), s.outType), instance, hasInstance, nil
		default:
			return 0, "", false, fmt.Errorf("Expression: Syntax error: unknown function %q", n.ident)
		}
	default:
		return 0, "", false, fmt.Errorf("Expression: Syntax error")
	}
}

func registerExpression(r *registry.Registry) {
	_ = r.RegisterBlock(expressionDef(), registry.Options{})
}
