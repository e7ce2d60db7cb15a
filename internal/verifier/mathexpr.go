package verifier

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
)

/*
Normalized answers are evaluated with the grammar:

Expr    := Term ( ("+" | "-") Term )*
Term    := Unary ( ("*" | "/") Unary | Power )*
Unary   := "-"? Power
Power   := Primary ( "^" Unary )?
Primary := <number> | <ident> ( "(" Expr ")" )? | "(" Expr ")"

A Power directly following a Term is an implicit multiplication, as in 2pi.
*/

var mathParser = participle.MustBuild[mathExpr]()

type mathExpr struct {
	Head *mathTerm     `@@`
	Tail []*mathOpTerm `@@*`
}

type mathOpTerm struct {
	Op   string    `@("+" | "-")`
	Term *mathTerm `@@`
}

type mathTerm struct {
	Head *mathUnary      `@@`
	Tail []*mathOpFactor `@@*`
}

type mathOpFactor struct {
	Explicit *mathExplicitFactor `  @@`
	Implicit *mathPower          `| @@`
}

type mathExplicitFactor struct {
	Op    string     `@("*" | "/")`
	Unary *mathUnary `@@`
}

type mathUnary struct {
	Neg   bool       `@"-"?`
	Power *mathPower `@@`
}

type mathPower struct {
	Base *mathPrimary `@@`
	Exp  *mathUnary   `( "^" @@ )?`
}

type mathPrimary struct {
	Number *float64  `  @(Float | Int)`
	Call   *mathCall `| @@`
	Sub    *mathExpr `| "(" @@ ")"`
}

type mathCall struct {
	Name string    `@Ident`
	Arg  *mathExpr `( "(" @@ ")" )?`
}

var mathConstants = map[string]float64{
	"pi":  math.Pi,
	"e":   math.E,
	"inf": math.Inf(1),
}

var mathFunctions = map[string]func(float64) float64{
	"sqrt": math.Sqrt,
	"ln":   math.Log,
	"log":  math.Log10,
	"exp":  math.Exp,
	"sin":  math.Sin,
	"cos":  math.Cos,
	"tan":  math.Tan,
	"abs":  math.Abs,
}

func (e *mathExpr) eval() (float64, error) {
	acc, err := e.Head.eval()
	if err != nil {
		return 0, err
	}
	for _, t := range e.Tail {
		v, err := t.Term.eval()
		if err != nil {
			return 0, err
		}
		if t.Op == "+" {
			acc += v
		} else {
			acc -= v
		}
	}
	return acc, nil
}

func (t *mathTerm) eval() (float64, error) {
	acc, err := t.Head.eval()
	if err != nil {
		return 0, err
	}
	for _, f := range t.Tail {
		switch {
		case f.Explicit != nil:
			v, err := f.Explicit.Unary.eval()
			if err != nil {
				return 0, err
			}
			if f.Explicit.Op == "*" {
				acc *= v
			} else {
				if v == 0 {
					return 0, fmt.Errorf("division by zero")
				}
				acc /= v
			}
		case f.Implicit != nil:
			v, err := f.Implicit.eval()
			if err != nil {
				return 0, err
			}
			acc *= v
		}
	}
	return acc, nil
}

func (u *mathUnary) eval() (float64, error) {
	v, err := u.Power.eval()
	if err != nil {
		return 0, err
	}
	if u.Neg {
		return -v, nil
	}
	return v, nil
}

func (p *mathPower) eval() (float64, error) {
	base, err := p.Base.eval()
	if err != nil {
		return 0, err
	}
	if p.Exp == nil {
		return base, nil
	}
	exp, err := p.Exp.eval()
	if err != nil {
		return 0, err
	}
	return math.Pow(base, exp), nil
}

func (p *mathPrimary) eval() (float64, error) {
	switch {
	case p.Number != nil:
		return *p.Number, nil
	case p.Call != nil:
		return p.Call.eval()
	case p.Sub != nil:
		return p.Sub.eval()
	}
	return 0, fmt.Errorf("empty expression")
}

func (c *mathCall) eval() (float64, error) {
	if c.Arg == nil {
		if v, ok := mathConstants[c.Name]; ok {
			return v, nil
		}
		return 0, fmt.Errorf("unknown symbol %q", c.Name)
	}

	fn, ok := mathFunctions[c.Name]
	if !ok {
		return 0, fmt.Errorf("unknown function %q", c.Name)
	}
	arg, err := c.Arg.eval()
	if err != nil {
		return 0, err
	}
	return fn(arg), nil
}

func evalMath(expr string) (float64, error) {
	parsed, err := mathParser.ParseString("", expr)
	if err != nil {
		return 0, fmt.Errorf("error parsing expression '%s': %w", expr, err)
	}

	v, err := parsed.eval()
	if err != nil {
		return 0, fmt.Errorf("error evaluating expression '%s': %w", expr, err)
	}
	if math.IsNaN(v) {
		return 0, fmt.Errorf("expression '%s' is not a number", expr)
	}
	return v, nil
}

var (
	latexRemovals = strings.NewReplacer(
		"$", "",
		"\\left", "",
		"\\right", "",
		"\\displaystyle", "",
		"\\!", "",
		"\\,", "",
		"\\;", "",
		"\\:", "",
		"\\quad", "",
		"\\ ", "",
		"~", "",
		"^\\circ", "",
		"^{\\circ}", "",
		"\\circ", "",
		"\\%", "",
		"%", "",
		"\\dfrac", "\\frac",
		"\\tfrac", "\\frac",
	)

	latexOperators = strings.NewReplacer(
		"\\cdot", "*",
		"\\times", "*",
		"\\div", "/",
		"\\pi", "pi",
		"\\infty", "inf",
		"\\ln", "ln",
		"\\log", "log",
		"\\exp", "exp",
		"\\sin", "sin",
		"\\cos", "cos",
		"\\tan", "tan",
		"{", "(",
		"}", ")",
	)

	shortFracPattern      = regexp.MustCompile(`\\frac(\d)(\d)`)
	shortSqrtPattern      = regexp.MustCompile(`\\sqrt\s*([0-9a-zA-Z])`)
	thousandsPattern      = regexp.MustCompile(`^-?\d{1,3}(,\d{3})+(\.\d+)?$`)
	textCommands          = []string{"\\text", "\\textbf", "\\mathrm", "\\mathbf", "\\boxed", "\\fbox"}
	whitespaceReplacement = strings.NewReplacer(" ", "", "\t", "", "\n", "")
)

// braceArg returns the content of the brace group starting at s[start] and the
// index just past its closing brace.
func braceArg(s string, start int) (string, int, bool) {
	if start >= len(s) || s[start] != '{' {
		return "", 0, false
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start+1 : i], i + 1, true
			}
		}
	}
	return "", 0, false
}

// rewriteCommand replaces every occurrence of cmd with nargs brace arguments by
// the result of build. Occurrences with malformed arguments are left untouched.
func rewriteCommand(s, cmd string, nargs int, build func(args []string) string) string {
	var out strings.Builder
	for {
		idx := strings.Index(s, cmd)
		if idx < 0 {
			out.WriteString(s)
			return out.String()
		}

		next := idx + len(cmd)
		if next < len(s) && isLetter(s[next]) {
			out.WriteString(s[:next])
			s = s[next:]
			continue
		}

		args := make([]string, 0, nargs)
		pos := next
		for len(args) < nargs {
			for pos < len(s) && s[pos] == ' ' {
				pos++
			}
			arg, end, ok := braceArg(s, pos)
			if !ok {
				break
			}
			args = append(args, arg)
			pos = end
		}

		if len(args) < nargs {
			out.WriteString(s[:next])
			s = s[next:]
			continue
		}

		out.WriteString(s[:idx])
		out.WriteString(build(args))
		s = s[pos:]
	}
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// normalizeMath turns a LaTeX answer into a plain expression.
func normalizeMath(s string) string {
	s = strings.TrimSpace(s)
	s = latexRemovals.Replace(s)
	s = shortFracPattern.ReplaceAllString(s, `\frac{$1}{$2}`)
	s = shortSqrtPattern.ReplaceAllString(s, `\sqrt{$1}`)

	for _, cmd := range textCommands {
		s = rewriteCommand(s, cmd, 1, func(args []string) string { return args[0] })
	}

	s = rewriteCommand(s, "\\frac", 2, func(args []string) string {
		return "((" + normalizeMath(args[0]) + ")/(" + normalizeMath(args[1]) + "))"
	})
	s = rewriteCommand(s, "\\sqrt", 1, func(args []string) string {
		return "sqrt(" + normalizeMath(args[0]) + ")"
	})

	s = latexOperators.Replace(s)
	s = whitespaceReplacement.Replace(s)
	s = strings.TrimSuffix(s, ".")

	if thousandsPattern.MatchString(s) {
		s = strings.ReplaceAll(s, ",", "")
	}

	return strings.ToLower(s)
}

// splitTopLevel splits on commas that are not nested in brackets.
func splitTopLevel(s string) []string {
	var parts []string
	depth, last := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[last:i])
				last = i + 1
			}
		}
	}
	return append(parts, s[last:])
}

// stripEnclosing removes the brackets around a top level list and returns the
// opening bracket, or 0 when s is not a bracketed list.
func stripEnclosing(s string) (string, byte) {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '(' && last == ')') || (first == '[' && last == ']') {
			inner := s[1 : len(s)-1]
			if len(splitTopLevel(inner)) > 1 {
				return inner, first
			}
		}
	}
	return s, 0
}

func numbersClose(a, b float64) bool {
	if math.IsInf(a, 0) || math.IsInf(b, 0) {
		return a == b
	}
	scale := math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
	return math.Abs(a-b) <= 1e-6*scale
}

func normalizedEqual(a, b string) bool {
	if a == b {
		return true
	}

	innerA, openA := stripEnclosing(a)
	innerB, openB := stripEnclosing(b)
	partsA, partsB := splitTopLevel(innerA), splitTopLevel(innerB)
	if len(partsA) > 1 || len(partsB) > 1 {
		// (1,2) and [1,2] are different intervals.
		if openA != openB || len(partsA) != len(partsB) {
			return false
		}
		for i := range partsA {
			if !normalizedEqual(partsA[i], partsB[i]) {
				return false
			}
		}
		return true
	}

	va, errA := evalMath(a)
	vb, errB := evalMath(b)
	if errA == nil && errB == nil {
		return numbersClose(va, vb)
	}

	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	return errA == nil && errB == nil && numbersClose(fa, fb)
}

// MathEqual reports whether two LaTeX answers denote the same value.
func MathEqual(prediction, groundTruth string) bool {
	return normalizedEqual(normalizeMath(prediction), normalizeMath(groundTruth))
}
