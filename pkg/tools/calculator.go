package tools

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// maxExpressionLength bounds calculator input.
const maxExpressionLength = 500

// calcBlocklist rejects expressions that smell like code execution
// rather than arithmetic. Matching is a case-insensitive substring
// scan, stricter than identifier parsing.
var calcBlocklist = []string{"import", "exec", "eval", "open", "__", "file"}

// calcEnv is the closed evaluation environment: mathematical functions
// and constants only. No I/O, no imports, no name resolution outside
// this table.
var calcEnv = map[string]interface{}{
	"sqrt":  math.Sqrt,
	"sin":   math.Sin,
	"cos":   math.Cos,
	"tan":   math.Tan,
	"asin":  math.Asin,
	"acos":  math.Acos,
	"atan":  math.Atan,
	"atan2": math.Atan2,
	"log":   math.Log,
	"log10": math.Log10,
	"exp":   math.Exp,
	"pow":   math.Pow,
	"abs":   math.Abs,
	"floor": math.Floor,
	"ceil":  math.Ceil,
	"round": math.Round,
	"pi":    math.Pi,
	"e":     math.E,
	"deg":   func(radians float64) float64 { return radians * 180 / math.Pi },
	"rad":   func(degrees float64) float64 { return degrees * math.Pi / 180 },
}

type calculatorArgs struct {
	Expression string `json:"expression" jsonschema:"description=Mathematical expression to evaluate such as sqrt(530 * 2.8)"`
}

func newCalculatorTool() Tool {
	return newFuncTool(ToolCalculator,
		"Execute mathematical calculations and parameter derivations: basic arithmetic, geometry "+
			"(wingspan, mean chord, taper conversions) and unit conversions. "+
			"Examples: sqrt(530 * 2.8) for a wingspan, (2 * 530) / (38.5 * (1 + 0.3)) for a root chord.",
		runCalculator)
}

func runCalculator(ctx context.Context, args calculatorArgs) (string, error) {
	expression := strings.TrimSpace(args.Expression)
	if expression == "" {
		return "", &ToolError{Tool: ToolCalculator, Message: "計算錯誤: expression must not be empty"}
	}
	if n := utf8.RuneCountInString(expression); n > maxExpressionLength {
		return "", &ToolError{Tool: ToolCalculator,
			Message: fmt.Sprintf("計算錯誤: expression too long (%d > %d characters)", n, maxExpressionLength)}
	}
	lowered := strings.ToLower(expression)
	for _, banned := range calcBlocklist {
		if strings.Contains(lowered, banned) {
			return "", &ToolError{Tool: ToolCalculator,
				Message: fmt.Sprintf("計算錯誤: expression contains illegal token %q", banned)}
		}
	}

	program, err := expr.Compile(expression, expr.Env(calcEnv))
	if err != nil {
		return "", &ToolError{Tool: ToolCalculator, Message: fmt.Sprintf("計算錯誤: %v", err), Err: err}
	}

	result, err := runProgram(ctx, program)
	if err != nil {
		return "", err
	}
	return "計算結果: " + formatCalcResult(result), nil
}

// runProgram evaluates with a wall-clock cap. The expression language
// has no loops or recursion, so a run that outlives the context can
// only be a large but finite computation; it is left to drain on its
// own while the call reports a timeout.
func runProgram(ctx context.Context, program *vm.Program) (interface{}, error) {
	type evalResult struct {
		value interface{}
		err   error
	}
	done := make(chan evalResult, 1)
	go func() {
		value, err := expr.Run(program, calcEnv)
		done <- evalResult{value, err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, &ToolError{Tool: ToolCalculator, Message: fmt.Sprintf("計算錯誤: %v", res.err), Err: res.err}
		}
		return res.value, nil
	case <-ctx.Done():
		return nil, &ToolError{Tool: ToolCalculator, Message: "計算錯誤: evaluation timed out", Err: ctx.Err()}
	}
}

func formatCalcResult(v interface{}) string {
	switch value := v.(type) {
	case float64:
		return strconv.FormatFloat(value, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(value), 'g', -1, 32)
	default:
		return fmt.Sprintf("%v", value)
	}
}
