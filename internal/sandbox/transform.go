package sandbox

import (
	"errors"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/file"
	"github.com/dop251/goja/parser"
)

// Transform rewrites every free reference to a tracked capability in
// source into its token-qualified placeholder. Declarations that share
// a capability's name, and every use inside the declaring scope, are
// left byte-identical. Pure function of (source, token); the only
// failure is a *TransformError for source that does not parse.
func Transform(source string, token Token) (string, error) {
	pre := rewriteDynamicImports(source, token)
	prog, err := parser.ParseFile(nil, "", pre, 0)
	if err != nil {
		return "", transformErrorFrom(err)
	}
	r := &rewriter{src: pre, token: token}
	r.walkProgram(prog)
	return applyEdits(pre, r.edits), nil
}

func transformErrorFrom(err error) *TransformError {
	var list parser.ErrorList
	if errors.As(err, &list) && len(list) > 0 {
		first := list[0]
		return &TransformError{
			Line:   first.Position.Line,
			Column: first.Position.Column,
			Reason: first.Message,
		}
	}
	return &TransformError{Line: 1, Column: 1, Reason: err.Error()}
}

// edit is one byte-span replacement against the pre-pass source.
type edit struct {
	start, end int
	text       string
}

func applyEdits(src string, edits []edit) string {
	if len(edits) == 0 {
		return src
	}
	sort.Slice(edits, func(i, j int) bool { return edits[i].start < edits[j].start })
	var b strings.Builder
	b.Grow(len(src) + len(edits)*48)
	last := 0
	for _, e := range edits {
		if e.start < last {
			continue
		}
		b.WriteString(src[last:e.start])
		b.WriteString(e.text)
		last = e.end
	}
	b.WriteString(src[last:])
	return b.String()
}

// rewriter walks the parsed tree with a scope stack and collects the
// placeholder substitutions to apply.
type rewriter struct {
	src   string
	token Token
	scope *scope
	edits []edit
}

func (r *rewriter) push() { r.scope = &scope{parent: r.scope} }
func (r *rewriter) pop()  { r.scope = r.scope.parent }

// off converts a parser index to a byte offset. Parsing without a file
// set pins the base index at 1.
func (r *rewriter) off(idx file.Idx) int { return int(idx) - 1 }

// ref rewrites a reference-position identifier when it denotes a
// capability and no enclosing scope shadows it.
func (r *rewriter) ref(id *ast.Identifier) {
	name := id.Name.String()
	c, tracked := CapabilityForIdent(name)
	if !tracked || r.scope.bound(name) {
		return
	}
	start, end := r.identSpan(id, name)
	r.edits = append(r.edits, edit{start, end, c.Placeholder(r.token)})
}

// shorthandRef expands a free shorthand property ({require}) into an
// explicit key-value pair so the key survives while the value becomes
// the placeholder.
func (r *rewriter) shorthandRef(id *ast.Identifier) {
	name := id.Name.String()
	c, tracked := CapabilityForIdent(name)
	if !tracked || r.scope.bound(name) {
		return
	}
	start, end := r.identSpan(id, name)
	r.edits = append(r.edits, edit{start, end, name + ": " + c.Placeholder(r.token)})
}

// identSpan returns the byte span of an identifier. The parser reports
// lengths on the normalized name, so spellings using \u escapes are
// re-measured against the raw text.
func (r *rewriter) identSpan(id *ast.Identifier, name string) (int, int) {
	start := r.off(id.Idx0())
	end := start + len(name)
	if end > len(r.src) || r.src[start:end] != name {
		end = identifierEnd(r.src, start)
	}
	return start, end
}

func identifierEnd(src string, start int) int {
	i := start
	for i < len(src) {
		c := src[i]
		switch {
		case c == '\\' && i+1 < len(src) && src[i+1] == 'u':
			j := i + 2
			if j < len(src) && src[j] == '{' {
				for j < len(src) && src[j] != '}' {
					j++
				}
				if j < len(src) {
					j++
				}
			} else {
				for k := 0; j < len(src) && k < 4 && isHexByte(src[j]); k++ {
					j++
				}
			}
			i = j
		case c == '$' || c == '_' ||
			(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
			(c >= '0' && c <= '9') || c >= utf8.RuneSelf:
			i++
		default:
			return i
		}
	}
	return i
}

func isHexByte(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// ============================================================================
// Program / Statement Walk
// ============================================================================

func (r *rewriter) walkProgram(p *ast.Program) {
	r.push()
	r.declareVars(p.DeclarationList)
	r.hoistLexical(p.Body)
	for _, s := range p.Body {
		r.walkStmt(s)
	}
	r.pop()
}

// declareVars seeds a scope with the parser's hoisted var list.
func (r *rewriter) declareVars(decls []*ast.VariableDeclaration) {
	for _, d := range decls {
		for _, b := range d.List {
			r.declarePattern(b.Target)
		}
	}
}

// hoistLexical pre-declares the names of a statement list's immediate
// let/const/class/function declarations, so references earlier in the
// block resolve to the local binding the way the engine will.
func (r *rewriter) hoistLexical(stmts []ast.Statement) {
	for _, s := range stmts {
		switch st := s.(type) {
		case *ast.LexicalDeclaration:
			for _, b := range st.List {
				r.declarePattern(b.Target)
			}
		case *ast.FunctionDeclaration:
			if st.Function.Name != nil {
				r.scope.declare(st.Function.Name.Name.String())
			}
		case *ast.ClassDeclaration:
			if st.Class.Name != nil {
				r.scope.declare(st.Class.Name.Name.String())
			}
		case *ast.LabelledStatement:
			r.hoistLexical([]ast.Statement{st.Statement})
		}
	}
}

func (r *rewriter) walkStmt(s ast.Statement) {
	switch st := s.(type) {
	case *ast.BlockStatement:
		r.push()
		r.hoistLexical(st.List)
		for _, inner := range st.List {
			r.walkStmt(inner)
		}
		r.pop()
	case *ast.VariableStatement:
		r.walkBindings(st.List)
	case *ast.LexicalDeclaration:
		r.walkBindings(st.List)
	case *ast.FunctionDeclaration:
		r.walkFunction(st.Function)
	case *ast.ClassDeclaration:
		r.walkClass(st.Class)
	case *ast.ExpressionStatement:
		r.walkExpr(st.Expression)
	case *ast.IfStatement:
		r.walkExpr(st.Test)
		r.walkStmt(st.Consequent)
		if st.Alternate != nil {
			r.walkStmt(st.Alternate)
		}
	case *ast.WhileStatement:
		r.walkExpr(st.Test)
		r.walkStmt(st.Body)
	case *ast.DoWhileStatement:
		r.walkStmt(st.Body)
		r.walkExpr(st.Test)
	case *ast.ForStatement:
		r.walkFor(st)
	case *ast.ForInStatement:
		r.walkForInOf(st.Into, st.Source, st.Body)
	case *ast.ForOfStatement:
		r.walkForInOf(st.Into, st.Source, st.Body)
	case *ast.SwitchStatement:
		r.walkSwitch(st)
	case *ast.TryStatement:
		r.walkStmt(st.Body)
		if st.Catch != nil {
			r.push()
			if st.Catch.Parameter != nil {
				r.declarePattern(st.Catch.Parameter)
				r.walkPattern(st.Catch.Parameter)
			}
			r.walkStmt(st.Catch.Body)
			r.pop()
		}
		if st.Finally != nil {
			r.walkStmt(st.Finally)
		}
	case *ast.ThrowStatement:
		r.walkExpr(st.Argument)
	case *ast.ReturnStatement:
		if st.Argument != nil {
			r.walkExpr(st.Argument)
		}
	case *ast.LabelledStatement:
		r.walkStmt(st.Statement)
	case *ast.WithStatement:
		// References in the body are still rewritten: whether the
		// object supplies a same-named property cannot be proven
		// here, and a missed rewrite is the costlier mistake.
		r.walkExpr(st.Object)
		r.walkStmt(st.Body)
	}
}

// walkBindings handles a var/let/const statement: names first, then the
// reference positions inside patterns, then initializers.
func (r *rewriter) walkBindings(list []*ast.Binding) {
	for _, b := range list {
		r.declarePattern(b.Target)
		r.walkPattern(b.Target)
		if b.Initializer != nil {
			r.walkExpr(b.Initializer)
		}
	}
}

func (r *rewriter) walkFor(st *ast.ForStatement) {
	r.push()
	switch init := st.Initializer.(type) {
	case *ast.ForLoopInitializerExpression:
		r.walkExpr(init.Expression)
	case *ast.ForLoopInitializerVarDeclList:
		r.walkBindings(init.List)
	case *ast.ForLoopInitializerLexicalDecl:
		r.walkBindings(init.LexicalDeclaration.List)
	}
	if st.Test != nil {
		r.walkExpr(st.Test)
	}
	if st.Update != nil {
		r.walkExpr(st.Update)
	}
	r.walkStmt(st.Body)
	r.pop()
}

func (r *rewriter) walkForInOf(into ast.ForInto, source ast.Expression, body ast.Statement) {
	r.push()
	switch in := into.(type) {
	case *ast.ForIntoVar:
		r.declarePattern(in.Binding.Target)
		r.walkPattern(in.Binding.Target)
		if in.Binding.Initializer != nil {
			r.walkExpr(in.Binding.Initializer)
		}
	case *ast.ForDeclaration:
		r.declarePattern(in.Target)
		r.walkPattern(in.Target)
	case *ast.ForIntoExpression:
		// Assignment target, so a reference position.
		r.walkExpr(in.Expression)
	}
	r.walkExpr(source)
	r.walkStmt(body)
	r.pop()
}

func (r *rewriter) walkSwitch(st *ast.SwitchStatement) {
	r.walkExpr(st.Discriminant)
	r.push()
	// The whole case list shares one lexical scope.
	for _, c := range st.Body {
		r.hoistLexical(c.Consequent)
	}
	for _, c := range st.Body {
		if c.Test != nil {
			r.walkExpr(c.Test)
		}
		for _, inner := range c.Consequent {
			r.walkStmt(inner)
		}
	}
	r.pop()
}

// ============================================================================
// Functions and Classes
// ============================================================================

func (r *rewriter) walkFunction(fn *ast.FunctionLiteral) {
	r.push()
	if fn.Name != nil {
		r.scope.declare(fn.Name.Name.String())
	}
	r.declareVars(fn.DeclarationList)
	r.walkParams(fn.ParameterList)
	r.walkStmt(fn.Body)
	r.pop()
}

func (r *rewriter) walkArrow(fn *ast.ArrowFunctionLiteral) {
	r.push()
	r.declareVars(fn.DeclarationList)
	r.walkParams(fn.ParameterList)
	switch body := fn.Body.(type) {
	case *ast.BlockStatement:
		r.walkStmt(body)
	case *ast.ExpressionBody:
		r.walkExpr(body.Expression)
	}
	r.pop()
}

// walkParams declares parameters left to right, so an earlier default
// referencing a later parameter still counts as free the way the
// engine's own ordering would leave it unresolvable.
func (r *rewriter) walkParams(params *ast.ParameterList) {
	if params == nil {
		return
	}
	for _, b := range params.List {
		r.declarePattern(b.Target)
		r.walkPattern(b.Target)
		if b.Initializer != nil {
			r.walkExpr(b.Initializer)
		}
	}
	if params.Rest != nil {
		r.declarePattern(params.Rest)
		r.walkPattern(params.Rest)
	}
}

func (r *rewriter) walkClass(cl *ast.ClassLiteral) {
	r.push()
	// The class name binds inside the class scope, covering the
	// heritage clause and member bodies.
	if cl.Name != nil {
		r.scope.declare(cl.Name.Name.String())
	}
	if cl.SuperClass != nil {
		r.walkExpr(cl.SuperClass)
	}
	for _, el := range cl.Body {
		switch elem := el.(type) {
		case *ast.FieldDefinition:
			if elem.Computed {
				r.walkExpr(elem.Key)
			}
			if elem.Initializer != nil {
				r.walkExpr(elem.Initializer)
			}
		case *ast.MethodDefinition:
			if elem.Computed {
				r.walkExpr(elem.Key)
			}
			r.walkFunction(elem.Body)
		case *ast.ClassStaticBlock:
			r.push()
			r.declareVars(elem.DeclarationList)
			r.walkStmt(elem.Block)
			r.pop()
		}
	}
	r.pop()
}

// ============================================================================
// Expression Walk
// ============================================================================

func (r *rewriter) walkExpr(e ast.Expression) {
	switch ex := e.(type) {
	case *ast.Identifier:
		r.ref(ex)
	case *ast.CallExpression:
		r.walkExpr(ex.Callee)
		for _, a := range ex.ArgumentList {
			r.walkExpr(a)
		}
	case *ast.NewExpression:
		r.walkNew(ex)
	case *ast.DotExpression:
		// Property names are not references.
		r.walkExpr(ex.Left)
	case *ast.PrivateDotExpression:
		r.walkExpr(ex.Left)
	case *ast.BracketExpression:
		r.walkExpr(ex.Left)
		r.walkExpr(ex.Member)
	case *ast.FunctionLiteral:
		r.walkFunction(ex)
	case *ast.ArrowFunctionLiteral:
		r.walkArrow(ex)
	case *ast.ClassLiteral:
		r.walkClass(ex)
	case *ast.ObjectLiteral:
		r.walkObjectProps(ex.Value)
	case *ast.ArrayLiteral:
		for _, el := range ex.Value {
			if el != nil {
				r.walkExpr(el)
			}
		}
	case *ast.ObjectPattern:
		// Assignment-destructuring position: targets are references.
		r.walkObjectProps(ex.Properties)
		if ex.Rest != nil {
			r.walkExpr(ex.Rest)
		}
	case *ast.ArrayPattern:
		for _, el := range ex.Elements {
			if el != nil {
				r.walkExpr(el)
			}
		}
		if ex.Rest != nil {
			r.walkExpr(ex.Rest)
		}
	case *ast.SpreadElement:
		r.walkExpr(ex.Expression)
	case *ast.AssignExpression:
		r.walkExpr(ex.Left)
		r.walkExpr(ex.Right)
	case *ast.ConditionalExpression:
		r.walkExpr(ex.Test)
		r.walkExpr(ex.Consequent)
		r.walkExpr(ex.Alternate)
	case *ast.BinaryExpression:
		r.walkExpr(ex.Left)
		r.walkExpr(ex.Right)
	case *ast.UnaryExpression:
		r.walkExpr(ex.Operand)
	case *ast.SequenceExpression:
		for _, inner := range ex.Sequence {
			r.walkExpr(inner)
		}
	case *ast.TemplateLiteral:
		if ex.Tag != nil {
			r.walkExpr(ex.Tag)
		}
		for _, inner := range ex.Expressions {
			r.walkExpr(inner)
		}
	case *ast.YieldExpression:
		if ex.Argument != nil {
			r.walkExpr(ex.Argument)
		}
	case *ast.AwaitExpression:
		r.walkExpr(ex.Argument)
	case *ast.Optional:
		r.walkExpr(ex.Expression)
	case *ast.OptionalChain:
		r.walkExpr(ex.Expression)
	}
}

func (r *rewriter) walkObjectProps(props []ast.Property) {
	for _, p := range props {
		switch prop := p.(type) {
		case *ast.PropertyShort:
			r.shorthandRef(&prop.Name)
			if prop.Initializer != nil {
				r.walkExpr(prop.Initializer)
			}
		case *ast.PropertyKeyed:
			if prop.Computed {
				r.walkExpr(prop.Key)
			}
			r.walkExpr(prop.Value)
		case *ast.SpreadElement:
			r.walkExpr(prop.Expression)
		}
	}
}

// walkNew handles constructor-style invocation of a capability. When
// plain whitespace separates the keyword from the callee the whole
// "new Callee" span collapses into the placeholder, which performs the
// rejection itself; otherwise only the identifier is rewritten and
// construction of the placeholder still raises the violation.
func (r *rewriter) walkNew(ne *ast.NewExpression) {
	if id, ok := ne.Callee.(*ast.Identifier); ok {
		name := id.Name.String()
		if c, tracked := CapabilityForIdent(name); tracked && !r.scope.bound(name) {
			newStart := r.off(ne.New)
			newEnd := newStart + len("new")
			calleeStart := r.off(id.Idx0())
			if newEnd <= calleeStart && isAllSpace(r.src[newEnd:calleeStart]) {
				_, end := r.identSpan(id, name)
				text := c.Placeholder(r.token)
				if ne.LeftParenthesis == 0 {
					// No argument list: force the call so the
					// policy still fires.
					text += "()"
				}
				r.edits = append(r.edits, edit{newStart, end, text})
			} else {
				r.ref(id)
			}
			for _, a := range ne.ArgumentList {
				r.walkExpr(a)
			}
			return
		}
	}
	r.walkExpr(ne.Callee)
	for _, a := range ne.ArgumentList {
		r.walkExpr(a)
	}
}

func isAllSpace(s string) bool {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t', '\n', '\r', '\v', '\f':
		default:
			return false
		}
	}
	return true
}

// ============================================================================
// Binding Patterns
// ============================================================================

// declarePattern records every name a binding target introduces.
func (r *rewriter) declarePattern(target ast.Expression) {
	switch t := target.(type) {
	case *ast.Identifier:
		r.scope.declare(t.Name.String())
	case *ast.ArrayPattern:
		for _, el := range t.Elements {
			if el != nil {
				r.declarePattern(el)
			}
		}
		if t.Rest != nil {
			r.declarePattern(t.Rest)
		}
	case *ast.ObjectPattern:
		for _, p := range t.Properties {
			switch prop := p.(type) {
			case *ast.PropertyShort:
				r.scope.declare(prop.Name.Name.String())
			case *ast.PropertyKeyed:
				r.declarePattern(prop.Value)
			case *ast.SpreadElement:
				r.declarePattern(prop.Expression)
			}
		}
		if t.Rest != nil {
			r.declarePattern(t.Rest)
		}
	case *ast.AssignExpression:
		r.declarePattern(t.Left)
	}
}

// walkPattern visits the reference positions a binding target carries:
// computed property keys and default-value expressions. The bound names
// themselves were already declared.
func (r *rewriter) walkPattern(target ast.Expression) {
	switch t := target.(type) {
	case *ast.ArrayPattern:
		for _, el := range t.Elements {
			if el != nil {
				r.walkPattern(el)
			}
		}
		if t.Rest != nil {
			r.walkPattern(t.Rest)
		}
	case *ast.ObjectPattern:
		for _, p := range t.Properties {
			switch prop := p.(type) {
			case *ast.PropertyShort:
				if prop.Initializer != nil {
					r.walkExpr(prop.Initializer)
				}
			case *ast.PropertyKeyed:
				if prop.Computed {
					r.walkExpr(prop.Key)
				}
				r.walkPattern(prop.Value)
			case *ast.SpreadElement:
				r.walkPattern(prop.Expression)
			}
		}
		if t.Rest != nil {
			r.walkPattern(t.Rest)
		}
	case *ast.AssignExpression:
		r.walkPattern(t.Left)
		r.walkExpr(t.Right)
	}
}
