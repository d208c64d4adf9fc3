// Package depgraph recovers control- and data-dependency edges between the
// operations in an MLIR generic-form text, by walking it line by line as a
// small indentation-driven state machine rather than parsing it into a real
// AST.
package depgraph

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	returnValueRe = regexp.MustCompile(`%([^\s,:]+)`)
	fullNameRe    = regexp.MustCompile(`"(\S+?)"`)
	operandsRe    = regexp.MustCompile(`\((.*?)\)`)
	operandRe     = regexp.MustCompile(`%([^\s,:#]+)`)
)

// ErrUnresolvedOperand is returned when an operation's operand never
// resolves to a value produced earlier in the same scope (or an enclosing
// one), even once that scope has closed — i.e. a genuine forward or
// dangling reference rather than one that is still pending resolution.
var ErrUnresolvedOperand = errors.New("depgraph: unresolved operand")

// decomposedOp is one operation line: its nesting depth, the values it
// produces and consumes, and its fully qualified name ("dialect.opname").
type decomposedOp struct {
	indentLevel   int
	returnValues  []string
	operandValues []string
	fullName      string
}

func (o decomposedOp) dialect() string {
	return strings.SplitN(o.fullName, ".", 2)[0]
}

// decomposeOp parses one line of generic-form MLIR as an operation, or
// returns (nil, nil) if the line is not one (blank lines, pure text, block
// terminators). A line that looks like an operation but is missing its name
// or operand list is a hard error: such a line cannot be a well-formed op.
func decomposeOp(line string) (*decomposedOp, error) {
	stripped := strings.TrimLeft(line, " ")
	if !(strings.HasPrefix(stripped, "%") || strings.HasPrefix(stripped, `"`)) {
		return nil, nil
	}

	indentLevel := (len(line) - len(stripped)) / 2

	quoteIdx := strings.Index(stripped, `"`)
	returnSubstr := stripped
	if quoteIdx >= 0 {
		returnSubstr = stripped[:quoteIdx]
	}

	returnValues := submatches(returnValueRe, returnSubstr)

	nameMatch := fullNameRe.FindStringSubmatch(stripped)
	if nameMatch == nil {
		return nil, fmt.Errorf("depgraph: failed to extract operation name from line: %s", line)
	}

	operandsMatch := operandsRe.FindStringSubmatch(stripped)
	if operandsMatch == nil {
		return nil, fmt.Errorf("depgraph: failed to extract operands from line: %s", line)
	}

	return &decomposedOp{
		indentLevel:   indentLevel,
		returnValues:  returnValues,
		operandValues: submatches(operandRe, operandsMatch[1]),
		fullName:      nameMatch[1],
	}, nil
}

// decomposeBlockLabel parses a block-label line ("^bb0(%arg0: i32):") into
// its operand names, or returns nil if the line is not a block label. A
// label with no parenthesized operand list is a label with zero block
// arguments, not an error.
func decomposeBlockLabel(line string) []string {
	stripped := strings.TrimLeft(line, " ")
	if !strings.HasPrefix(stripped, "^") {
		return nil
	}

	match := operandsRe.FindStringSubmatch(stripped)
	if match == nil {
		return []string{}
	}

	return submatches(operandRe, match[1])
}

func submatches(re *regexp.Regexp, s string) []string {
	matches := re.FindAllStringSubmatch(s, -1)
	out := make([]string, 0, len(matches))

	for _, m := range matches {
		out = append(out, m[1])
	}

	return out
}

// valueBinding is where a value name was produced: the producing operation's
// full name and the indent level at which the binding remains visible.
type valueBinding struct {
	opName      string
	indentLevel int
}

// deferredOp is an operation whose operands could not be resolved at the
// point it was seen, because it refers to a value bound later in program
// order (MLIR regions can express control-flow cycles in which an operand
// is defined in a block that textually follows its use).
type deferredOp struct {
	lineIdx int
	line    string
	op      decomposedOp
}

// DependencyRecord is the outcome of Analyze: the control- and data-
// dependency edges between operations, keyed by full operation name.
type DependencyRecord struct {
	Control map[string][]string
	Data    map[string][]string
}

// Analyze walks generic-form MLIR text and recovers, for every operation,
// the set of operations that structurally enclose it (control dependency)
// and the set of operations whose results it consumes (data dependency).
//
// Grounded line for line on compute_pairs.py's compute_op_pairs: indentation
// changes push/pop a parent-operation stack, an operand not yet bound is
// deferred until its enclosing scope closes (at which point it must resolve
// or the input is malformed), and going back out of a nested region drops
// value bindings and deferred operands that belong to the region being
// left.
func Analyze(text string) (*DependencyRecord, error) {
	controlDeps := map[string]map[string]struct{}{}
	dataDeps := map[string]map[string]struct{}{}

	currentIndent := 0

	var parentOps []decomposedOp

	var prevOp *decomposedOp

	valueMap := map[string]valueBinding{}

	var deferredOps []deferredOp

	lines := strings.Split(text, "\n")

	for lineIdx, line := range lines {
		op, err := decomposeOp(line)
		if err != nil {
			return nil, err
		}

		if op == nil {
			args := decomposeBlockLabel(line)
			if args == nil {
				continue
			}

			if prevOp == nil {
				return nil, fmt.Errorf("depgraph: block label without associated operation on line %d: %s", lineIdx, line)
			}

			for _, arg := range args {
				if _, ok := valueMap[arg]; !ok {
					valueMap[arg] = valueBinding{opName: prevOp.fullName, indentLevel: prevOp.indentLevel + 1}
				}
			}

			continue
		}

		switch {
		case op.indentLevel > currentIndent:
			if prevOp == nil {
				return nil, fmt.Errorf("depgraph: indent without associated operation on line %d: %s", lineIdx, line)
			}

			parentOps = append(parentOps, *prevOp)
			currentIndent = op.indentLevel

		case op.indentLevel < currentIndent:
			for _, d := range deferredOps {
				if d.op.indentLevel <= op.indentLevel {
					continue
				}

				for _, operand := range d.op.operandValues {
					binding, ok := valueMap[operand]
					if !ok {
						return nil, fmt.Errorf("%w: failed to find mapping for operand `%s` in line %d: `%s`",
							ErrUnresolvedOperand, operand, d.lineIdx, d.line)
					}

					addDep(dataDeps, d.op.fullName, binding.opName)
				}
			}

			kept := deferredOps[:0]

			for _, d := range deferredOps {
				if d.op.indentLevel <= op.indentLevel {
					kept = append(kept, d)
				}
			}

			deferredOps = kept

			for len(parentOps) > 0 && parentOps[len(parentOps)-1].indentLevel >= op.indentLevel {
				parentOps = parentOps[:len(parentOps)-1]
			}

			for name, binding := range valueMap {
				if binding.indentLevel > op.indentLevel {
					delete(valueMap, name)
				}
			}

			currentIndent = op.indentLevel
		}

		for _, parent := range parentOps {
			addDep(controlDeps, op.fullName, parent.fullName)
		}

		if _, ok := controlDeps[op.fullName]; !ok {
			controlDeps[op.fullName] = map[string]struct{}{}
		}

		for _, operand := range op.operandValues {
			binding, ok := valueMap[operand]
			if !ok {
				deferredOps = append(deferredOps, deferredOp{lineIdx: lineIdx, line: line, op: *op})
				continue
			}

			addDep(dataDeps, op.fullName, binding.opName)
		}

		for _, ret := range op.returnValues {
			if _, ok := valueMap[ret]; !ok {
				valueMap[ret] = valueBinding{opName: op.fullName, indentLevel: op.indentLevel}
			}
		}

		opCopy := *op
		prevOp = &opCopy
	}

	return &DependencyRecord{
		Control: toSortedLists(controlDeps),
		Data:    toSortedLists(dataDeps),
	}, nil
}

func addDep(deps map[string]map[string]struct{}, name, dep string) {
	if _, ok := deps[name]; !ok {
		deps[name] = map[string]struct{}{}
	}

	deps[name][dep] = struct{}{}
}

func toSortedLists(deps map[string]map[string]struct{}) map[string][]string {
	out := make(map[string][]string, len(deps))

	for name, set := range deps {
		list := make([]string, 0, len(set))
		for dep := range set {
			list = append(list, dep)
		}

		sort.Strings(list)
		out[name] = list
	}

	return out
}

// ReduceToDialect collapses operation-level dependency edges down to their
// owning dialects ("arith.addi" -> "arith"). A dialect depending on itself
// (an op in one dialect consuming a value from another op in the same
// dialect) is dropped, since a dialect's dependency on itself carries no
// information for the reduction step's purpose of surfacing cross-dialect
// coupling.
func ReduceToDialect(opDeps map[string][]string) map[string][]string {
	dialectDeps := map[string]map[string]struct{}{}

	for name, deps := range opDeps {
		dialect := strings.SplitN(name, ".", 2)[0]
		if _, ok := dialectDeps[dialect]; !ok {
			dialectDeps[dialect] = map[string]struct{}{}
		}

		for _, dep := range deps {
			depDialect := strings.SplitN(dep, ".", 2)[0]
			if depDialect == dialect {
				continue
			}

			dialectDeps[dialect][depDialect] = struct{}{}
		}
	}

	return toSortedLists(dialectDeps)
}

func parseCheckpointIndex(name string) (int, bool) {
	name = strings.TrimSuffix(name, ".json")

	n, err := strconv.Atoi(name)
	if err != nil {
		return 0, false
	}

	return n, true
}
