// Package bundle reconstructs per-file sources from a bundler's module map.
//
// A bundle is an object literal mapping module ids to two-element arrays:
// the module's wrapper function and a table from required names to module
// ids. Parse reads that literal from text without executing it, BuildIndex
// folds the tables into id-to-filename and id-to-implementation indexes, and
// Reconstruct joins them into file contents.
package bundle

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/parser"

	"github.com/jamesainslie/crxsrc/pkg/crxsrc/logging"
)

// ErrNotBundle is returned when the text parses but is not an object literal.
var ErrNotBundle = errors.New("not a module bundle: expected an object literal")

// Dependency is one row of a module's dependency table.
type Dependency struct {
	// Name is the required path as written in the module, e.g. "./util".
	Name string
	// ID is the module id the name resolves to.
	ID string
}

// Record is one module of the bundle. Implementation is the wrapper
// function's source text; it is never evaluated.
type Record struct {
	ID             string
	Implementation string
	Dependencies   []Dependency
}

// Bundle is a parsed module map in source order.
type Bundle struct {
	Records []Record

	// Skipped counts properties that were not shaped [function, object].
	Skipped int
}

var prefixes = []string{"export default", "module.exports =", "module.exports="}

// Parse reads bundle text. The object literal may be preceded by
// "export default" or "module.exports =", wrapped in parentheses, and
// followed by a semicolon.
func Parse(src []byte) (*Bundle, error) {
	text := strings.TrimSpace(string(bytes.TrimPrefix(src, []byte("\xef\xbb\xbf"))))
	for _, p := range prefixes {
		if strings.HasPrefix(text, p) {
			text = strings.TrimSpace(text[len(p):])
			break
		}
	}
	text = strings.TrimSpace(strings.TrimRight(text, "; \t\r\n"))

	// Parenthesize so a leading brace is read as an expression, not a block.
	wrapped := "(" + text + "\n)"

	prog, err := parser.ParseFile(nil, "", wrapped, 0)
	if err != nil {
		return nil, fmt.Errorf("parsing bundle: %w", err)
	}
	if len(prog.Body) != 1 {
		return nil, ErrNotBundle
	}
	stmt, ok := prog.Body[0].(*ast.ExpressionStatement)
	if !ok {
		return nil, ErrNotBundle
	}
	obj, ok := stmt.Expression.(*ast.ObjectLiteral)
	if !ok {
		return nil, ErrNotBundle
	}

	log := logging.Get("bundle")
	b := &Bundle{}

	for _, prop := range obj.Value {
		keyed, ok := prop.(*ast.PropertyKeyed)
		if !ok || keyed.Computed {
			b.Skipped++
			log.Debug("skipping non-keyed property", "type", fmt.Sprintf("%T", prop))
			continue
		}

		id, ok := keyString(keyed.Key)
		if !ok {
			b.Skipped++
			log.Debug("skipping property with unsupported key", "type", fmt.Sprintf("%T", keyed.Key))
			continue
		}

		rec, ok := record(wrapped, id, keyed.Value, log)
		if !ok {
			b.Skipped++
			continue
		}
		b.Records = append(b.Records, rec)
	}

	return b, nil
}

// record converts one [function, {name: id}] value.
func record(src, id string, value ast.Expression, log *logging.Logger) (Record, bool) {
	arr, ok := value.(*ast.ArrayLiteral)
	if !ok || len(arr.Value) < 2 || arr.Value[0] == nil || arr.Value[1] == nil {
		log.Debug("skipping module not shaped [function, object]", "id", id)
		return Record{}, false
	}

	switch arr.Value[0].(type) {
	case *ast.FunctionLiteral, *ast.ArrowFunctionLiteral:
	default:
		log.Debug("skipping module without function implementation", "id", id)
		return Record{}, false
	}

	deps, ok := arr.Value[1].(*ast.ObjectLiteral)
	if !ok {
		log.Debug("skipping module without dependency table", "id", id)
		return Record{}, false
	}

	rec := Record{ID: id, Implementation: sourceText(src, arr.Value[0])}

	for _, prop := range deps.Value {
		keyed, ok := prop.(*ast.PropertyKeyed)
		if !ok || keyed.Computed {
			continue
		}
		name, ok := keyString(keyed.Key)
		if !ok {
			continue
		}
		depID, ok := valueString(keyed.Value)
		if !ok {
			log.Debug("skipping dependency with non-literal id", "module", id, "name", name)
			continue
		}
		rec.Dependencies = append(rec.Dependencies, Dependency{Name: name, ID: depID})
	}

	return rec, true
}

// sourceText returns the exact source span of n.
func sourceText(src string, n ast.Node) string {
	start, end := int(n.Idx0())-1, int(n.Idx1())-1
	if start < 0 || end > len(src) || start > end {
		return ""
	}
	return src[start:end]
}

// keyString returns the property name as the runtime would see it.
func keyString(e ast.Expression) (string, bool) {
	switch k := e.(type) {
	case *ast.StringLiteral:
		return k.Value.String(), true
	case *ast.Identifier:
		return k.Name.String(), true
	case *ast.NumberLiteral:
		return numberString(k), true
	default:
		return "", false
	}
}

// valueString accepts string and numeric dependency ids.
func valueString(e ast.Expression) (string, bool) {
	switch v := e.(type) {
	case *ast.StringLiteral:
		return v.Value.String(), true
	case *ast.NumberLiteral:
		return numberString(v), true
	default:
		return "", false
	}
}

func numberString(n *ast.NumberLiteral) string {
	switch v := n.Value.(type) {
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return n.Literal
	}
}
