package model

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode"

	mstats "github.com/montanaflynn/stats"

	"gesturelab/internal/errors"
)

// EvaluateHypothesis evaluates an algebraic expression over model
// coefficients against every posterior draw and tests it against a stated
// value. Expressions support +, -, *, /, parentheses, numeric literals,
// coefficient names, and the exp() and log() functions, e.g.
//
//	exp(b_Intercept + b_contextprofessor*1)
//
// The returned result carries the posterior mean and 95% interval of the
// expression and P(expression > value).
func EvaluateHypothesis(draws Draws, expression string, value float64) (HypothesisResult, error) {
	node, err := parseExpression(expression)
	if err != nil {
		return HypothesisResult{}, err
	}

	n := draws.Len()
	if n == 0 {
		return HypothesisResult{}, errors.InvalidInput("no posterior draws to evaluate hypothesis against")
	}

	values := make([]float64, n)
	greater := 0
	for i := 0; i < n; i++ {
		v, err := node.eval(draws, i)
		if err != nil {
			return HypothesisResult{}, err
		}
		values[i] = v
		if v > value {
			greater++
		}
	}

	estimate, err := mstats.Mean(values)
	if err != nil {
		return HypothesisResult{}, errors.Wrap(err, "hypothesis estimate")
	}
	lower, err := mstats.PercentileNearestRank(values, 2.5)
	if err != nil {
		return HypothesisResult{}, errors.Wrap(err, "hypothesis lower bound")
	}
	upper, err := mstats.PercentileNearestRank(values, 97.5)
	if err != nil {
		return HypothesisResult{}, errors.Wrap(err, "hypothesis upper bound")
	}

	return HypothesisResult{
		Expression:    expression,
		Value:         value,
		Estimate:      estimate,
		Lower:         lower,
		Upper:         upper,
		PosteriorProb: float64(greater) / float64(n),
	}, nil
}

// exprNode is one node of a parsed hypothesis expression
type exprNode interface {
	eval(draws Draws, i int) (float64, error)
}

type literalNode float64

func (n literalNode) eval(Draws, int) (float64, error) { return float64(n), nil }

type coefNode string

func (n coefNode) eval(draws Draws, i int) (float64, error) {
	samples, err := draws.Coefficient(string(n))
	if err != nil {
		return 0, err
	}
	return samples[i], nil
}

type unaryNode struct {
	fn  string // "neg", "exp", "log"
	arg exprNode
}

func (n unaryNode) eval(draws Draws, i int) (float64, error) {
	v, err := n.arg.eval(draws, i)
	if err != nil {
		return 0, err
	}
	switch n.fn {
	case "neg":
		return -v, nil
	case "exp":
		return math.Exp(v), nil
	case "log":
		return math.Log(v), nil
	}
	return 0, errors.InvalidInput(fmt.Sprintf("unknown function %q", n.fn))
}

type binaryNode struct {
	op          byte
	left, right exprNode
}

func (n binaryNode) eval(draws Draws, i int) (float64, error) {
	l, err := n.left.eval(draws, i)
	if err != nil {
		return 0, err
	}
	r, err := n.right.eval(draws, i)
	if err != nil {
		return 0, err
	}
	switch n.op {
	case '+':
		return l + r, nil
	case '-':
		return l - r, nil
	case '*':
		return l * r, nil
	case '/':
		return l / r, nil
	}
	return 0, errors.InvalidInput(fmt.Sprintf("unknown operator %q", string(n.op)))
}

// exprParser is a recursive-descent parser over the hypothesis grammar:
//
//	expr   := term (('+'|'-') term)*
//	term   := factor (('*'|'/') factor)*
//	factor := NUMBER | NAME | NAME '(' expr ')' | '(' expr ')' | '-' factor
type exprParser struct {
	input string
	pos   int
}

func parseExpression(input string) (exprNode, error) {
	p := &exprParser{input: input}
	node, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos < len(p.input) {
		return nil, errors.InvalidInput(fmt.Sprintf(
			"unexpected %q at position %d in hypothesis expression", string(p.input[p.pos]), p.pos))
	}
	return node, nil
}

func (p *exprParser) parseExpr() (exprNode, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		p.skipSpace()
		if p.pos >= len(p.input) || (p.input[p.pos] != '+' && p.input[p.pos] != '-') {
			return left, nil
		}
		op := p.input[p.pos]
		p.pos++
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
}

func (p *exprParser) parseTerm() (exprNode, error) {
	left, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for {
		p.skipSpace()
		if p.pos >= len(p.input) || (p.input[p.pos] != '*' && p.input[p.pos] != '/') {
			return left, nil
		}
		op := p.input[p.pos]
		p.pos++
		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
}

func (p *exprParser) parseFactor() (exprNode, error) {
	p.skipSpace()
	if p.pos >= len(p.input) {
		return nil, errors.InvalidInput("hypothesis expression ended unexpectedly")
	}

	c := p.input[p.pos]
	switch {
	case c == '-':
		p.pos++
		arg, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		return unaryNode{fn: "neg", arg: arg}, nil

	case c == '(':
		p.pos++
		node, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(')'); err != nil {
			return nil, err
		}
		return node, nil

	case c >= '0' && c <= '9' || c == '.':
		return p.parseNumber()

	case isNameByte(c):
		name := p.parseName()
		p.skipSpace()
		if p.pos < len(p.input) && p.input[p.pos] == '(' {
			if name != "exp" && name != "log" {
				return nil, errors.InvalidInput(fmt.Sprintf("unknown function %q", name))
			}
			p.pos++
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if err := p.expect(')'); err != nil {
				return nil, err
			}
			return unaryNode{fn: name, arg: arg}, nil
		}
		return coefNode(name), nil
	}

	return nil, errors.InvalidInput(fmt.Sprintf(
		"unexpected %q at position %d in hypothesis expression", string(c), p.pos))
}

func (p *exprParser) parseNumber() (exprNode, error) {
	start := p.pos
	for p.pos < len(p.input) && (p.input[p.pos] >= '0' && p.input[p.pos] <= '9' || p.input[p.pos] == '.') {
		p.pos++
	}
	v, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return nil, errors.InvalidInput(fmt.Sprintf("malformed number %q", p.input[start:p.pos]))
	}
	return literalNode(v), nil
}

func (p *exprParser) parseName() string {
	start := p.pos
	for p.pos < len(p.input) && isNameByte(p.input[p.pos]) {
		p.pos++
	}
	return p.input[start:p.pos]
}

func (p *exprParser) expect(c byte) error {
	p.skipSpace()
	if p.pos >= len(p.input) || p.input[p.pos] != c {
		return errors.InvalidInput(fmt.Sprintf("expected %q in hypothesis expression", string(c)))
	}
	p.pos++
	return nil
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.input) && p.input[p.pos] == ' ' {
		p.pos++
	}
}

func isNameByte(c byte) bool {
	return c == '_' || unicode.IsLetter(rune(c)) || unicode.IsDigit(rune(c))
}

// coefficientNames collects the coefficient names referenced by an expression
func coefficientNames(node exprNode, into map[string]bool) {
	switch n := node.(type) {
	case coefNode:
		into[string(n)] = true
	case unaryNode:
		coefficientNames(n.arg, into)
	case binaryNode:
		coefficientNames(n.left, into)
		coefficientNames(n.right, into)
	}
}

// ValidateHypothesis parses an expression and checks every referenced
// coefficient exists in the draws, without evaluating anything.
func ValidateHypothesis(draws Draws, expression string) error {
	node, err := parseExpression(expression)
	if err != nil {
		return err
	}
	names := make(map[string]bool)
	coefficientNames(node, names)
	var missing []string
	for name := range names {
		if _, ok := draws[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return errors.NotFound(fmt.Sprintf("coefficients %s", strings.Join(missing, ", ")))
	}
	return nil
}
