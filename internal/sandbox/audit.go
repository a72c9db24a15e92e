package sandbox

import (
	"fmt"
	"regexp"

	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/parser"
)

// Warning is an advisory audit finding: a capability reference in
// transformed output that is not wrapped in its placeholder form, or a
// placeholder minted under a different instance's token.
type Warning struct {
	Capability string `json:"capability"`
	Detail     string `json:"detail"`
	Line       int    `json:"line"`
	Column     int    `json:"column"`
}

// Audit scans transformed application code for unguarded capability
// references. It deliberately shares no logic with Transform: the walk
// below uses its own, coarser binding model (function-level frames), so
// a rewrite regression and an audit blind spot would have to coincide
// before a miss could ship. The coarser model never binds less than the
// transformer does, which keeps correctly transformed output free of
// findings. Findings are advisory either way: enforcement lives in the
// generated placeholders and the executor.
func Audit(code string, token Token) []Warning {
	warnings := auditForeignTokens(code, token)
	prog, err := parser.ParseFile(nil, "", code, 0)
	if err != nil {
		return append(warnings, auditLexical(code)...)
	}
	a := &auditor{src: code, token: token}
	a.walkProgram(prog)
	return append(warnings, a.warnings...)
}

var foreignPlaceholderRx = regexp.MustCompile(`__tsyne_([a-f0-9]{32})_([A-Za-z0-9$_]+?)__`)

// auditForeignTokens is textual on purpose: a foreign token is a
// contamination problem wherever it appears, string literals included.
func auditForeignTokens(code string, token Token) []Warning {
	var warnings []Warning
	for _, m := range foreignPlaceholderRx.FindAllStringSubmatchIndex(code, -1) {
		if Token(code[m[2]:m[3]]) == token {
			continue
		}
		ident := code[m[4]:m[5]]
		capability := ident
		if c, ok := CapabilityForIdent(ident); ok {
			capability = c.Kind()
		}
		line, col := lineCol(code, m[0])
		warnings = append(warnings, Warning{
			Capability: capability,
			Detail:     "placeholder carries a foreign token: " + code[m[0]:m[1]],
			Line:       line,
			Column:     col,
		})
	}
	return warnings
}

// auditor resolves names against one frame per enclosing function: a
// name declared anywhere in a function counts as bound throughout it.
type auditor struct {
	src      string
	token    Token
	frames   []map[string]struct{}
	warnings []Warning
}

func (a *auditor) pushFrame() {
	a.frames = append(a.frames, make(map[string]struct{}))
}

func (a *auditor) popFrame() {
	a.frames = a.frames[:len(a.frames)-1]
}

func (a *auditor) declare(name string) {
	if _, tracked := CapabilityForIdent(name); !tracked {
		return
	}
	a.frames[len(a.frames)-1][name] = struct{}{}
}

func (a *auditor) bound(name string) bool {
	for _, frame := range a.frames {
		if _, ok := frame[name]; ok {
			return true
		}
	}
	return false
}

func (a *auditor) checkRef(id *ast.Identifier) {
	name := id.Name.String()
	c, tracked := CapabilityForIdent(name)
	if !tracked || a.bound(name) {
		return
	}
	line, col := lineCol(a.src, int(id.Idx0())-1)
	a.warnings = append(a.warnings, Warning{
		Capability: c.Kind(),
		Detail:     fmt.Sprintf("unwrapped reference to %s", name),
		Line:       line,
		Column:     col,
	})
}

func (a *auditor) walkProgram(p *ast.Program) {
	a.pushFrame()
	a.declareVars(p.DeclarationList)
	a.collect(p.Body)
	for _, s := range p.Body {
		a.walkStmt(s)
	}
	a.popFrame()
}

func (a *auditor) declareVars(decls []*ast.VariableDeclaration) {
	for _, d := range decls {
		for _, b := range d.List {
			a.declareTarget(b.Target)
		}
	}
}

func (a *auditor) declareTarget(target ast.Expression) {
	switch t := target.(type) {
	case *ast.Identifier:
		a.declare(t.Name.String())
	case *ast.ArrayPattern:
		for _, el := range t.Elements {
			if el != nil {
				a.declareTarget(el)
			}
		}
		if t.Rest != nil {
			a.declareTarget(t.Rest)
		}
	case *ast.ObjectPattern:
		for _, p := range t.Properties {
			switch prop := p.(type) {
			case *ast.PropertyShort:
				a.declare(prop.Name.Name.String())
			case *ast.PropertyKeyed:
				a.declareTarget(prop.Value)
			case *ast.SpreadElement:
				a.declareTarget(prop.Expression)
			}
		}
		if t.Rest != nil {
			a.declareTarget(t.Rest)
		}
	case *ast.AssignExpression:
		a.declareTarget(t.Left)
	}
}

// collect gathers every declaration in a statement subtree into the
// current frame, stopping at nested function and class boundaries.
func (a *auditor) collect(stmts []ast.Statement) {
	for _, s := range stmts {
		a.collectStmt(s)
	}
}

func (a *auditor) collectStmt(s ast.Statement) {
	switch st := s.(type) {
	case *ast.BlockStatement:
		a.collect(st.List)
	case *ast.VariableStatement:
		for _, b := range st.List {
			a.declareTarget(b.Target)
		}
	case *ast.LexicalDeclaration:
		for _, b := range st.List {
			a.declareTarget(b.Target)
		}
	case *ast.FunctionDeclaration:
		if st.Function.Name != nil {
			a.declare(st.Function.Name.Name.String())
		}
	case *ast.ClassDeclaration:
		if st.Class.Name != nil {
			a.declare(st.Class.Name.Name.String())
		}
	case *ast.IfStatement:
		a.collectStmt(st.Consequent)
		if st.Alternate != nil {
			a.collectStmt(st.Alternate)
		}
	case *ast.WhileStatement:
		a.collectStmt(st.Body)
	case *ast.DoWhileStatement:
		a.collectStmt(st.Body)
	case *ast.ForStatement:
		switch init := st.Initializer.(type) {
		case *ast.ForLoopInitializerVarDeclList:
			for _, b := range init.List {
				a.declareTarget(b.Target)
			}
		case *ast.ForLoopInitializerLexicalDecl:
			for _, b := range init.LexicalDeclaration.List {
				a.declareTarget(b.Target)
			}
		}
		a.collectStmt(st.Body)
	case *ast.ForInStatement:
		a.collectForInto(st.Into)
		a.collectStmt(st.Body)
	case *ast.ForOfStatement:
		a.collectForInto(st.Into)
		a.collectStmt(st.Body)
	case *ast.SwitchStatement:
		for _, c := range st.Body {
			a.collect(c.Consequent)
		}
	case *ast.TryStatement:
		a.collectStmt(st.Body)
		if st.Catch != nil {
			if st.Catch.Parameter != nil {
				a.declareTarget(st.Catch.Parameter)
			}
			a.collectStmt(st.Catch.Body)
		}
		if st.Finally != nil {
			a.collectStmt(st.Finally)
		}
	case *ast.LabelledStatement:
		a.collectStmt(st.Statement)
	case *ast.WithStatement:
		a.collectStmt(st.Body)
	}
}

func (a *auditor) collectForInto(into ast.ForInto) {
	switch in := into.(type) {
	case *ast.ForIntoVar:
		a.declareTarget(in.Binding.Target)
	case *ast.ForDeclaration:
		a.declareTarget(in.Target)
	}
}

func (a *auditor) walkStmt(s ast.Statement) {
	switch st := s.(type) {
	case *ast.BlockStatement:
		for _, inner := range st.List {
			a.walkStmt(inner)
		}
	case *ast.VariableStatement:
		a.walkBindings(st.List)
	case *ast.LexicalDeclaration:
		a.walkBindings(st.List)
	case *ast.FunctionDeclaration:
		a.walkFunction(st.Function)
	case *ast.ClassDeclaration:
		a.walkClassBody(st.Class)
	case *ast.ExpressionStatement:
		a.walkExpr(st.Expression)
	case *ast.IfStatement:
		a.walkExpr(st.Test)
		a.walkStmt(st.Consequent)
		if st.Alternate != nil {
			a.walkStmt(st.Alternate)
		}
	case *ast.WhileStatement:
		a.walkExpr(st.Test)
		a.walkStmt(st.Body)
	case *ast.DoWhileStatement:
		a.walkStmt(st.Body)
		a.walkExpr(st.Test)
	case *ast.ForStatement:
		switch init := st.Initializer.(type) {
		case *ast.ForLoopInitializerExpression:
			a.walkExpr(init.Expression)
		case *ast.ForLoopInitializerVarDeclList:
			a.walkBindings(init.List)
		case *ast.ForLoopInitializerLexicalDecl:
			a.walkBindings(init.LexicalDeclaration.List)
		}
		if st.Test != nil {
			a.walkExpr(st.Test)
		}
		if st.Update != nil {
			a.walkExpr(st.Update)
		}
		a.walkStmt(st.Body)
	case *ast.ForInStatement:
		a.walkForInto(st.Into)
		a.walkExpr(st.Source)
		a.walkStmt(st.Body)
	case *ast.ForOfStatement:
		a.walkForInto(st.Into)
		a.walkExpr(st.Source)
		a.walkStmt(st.Body)
	case *ast.SwitchStatement:
		a.walkExpr(st.Discriminant)
		for _, c := range st.Body {
			if c.Test != nil {
				a.walkExpr(c.Test)
			}
			for _, inner := range c.Consequent {
				a.walkStmt(inner)
			}
		}
	case *ast.TryStatement:
		a.walkStmt(st.Body)
		if st.Catch != nil {
			a.walkStmt(st.Catch.Body)
		}
		if st.Finally != nil {
			a.walkStmt(st.Finally)
		}
	case *ast.ThrowStatement:
		a.walkExpr(st.Argument)
	case *ast.ReturnStatement:
		if st.Argument != nil {
			a.walkExpr(st.Argument)
		}
	case *ast.LabelledStatement:
		a.walkStmt(st.Statement)
	case *ast.WithStatement:
		a.walkExpr(st.Object)
		a.walkStmt(st.Body)
	}
}

func (a *auditor) walkBindings(list []*ast.Binding) {
	for _, b := range list {
		a.walkTargetRefs(b.Target)
		if b.Initializer != nil {
			a.walkExpr(b.Initializer)
		}
	}
}

// walkTargetRefs visits the reference positions inside a declaration
// pattern: computed keys and default values.
func (a *auditor) walkTargetRefs(target ast.Expression) {
	switch t := target.(type) {
	case *ast.ArrayPattern:
		for _, el := range t.Elements {
			if el != nil {
				a.walkTargetRefs(el)
			}
		}
		if t.Rest != nil {
			a.walkTargetRefs(t.Rest)
		}
	case *ast.ObjectPattern:
		for _, p := range t.Properties {
			switch prop := p.(type) {
			case *ast.PropertyShort:
				if prop.Initializer != nil {
					a.walkExpr(prop.Initializer)
				}
			case *ast.PropertyKeyed:
				if prop.Computed {
					a.walkExpr(prop.Key)
				}
				a.walkTargetRefs(prop.Value)
			case *ast.SpreadElement:
				a.walkTargetRefs(prop.Expression)
			}
		}
		if t.Rest != nil {
			a.walkTargetRefs(t.Rest)
		}
	case *ast.AssignExpression:
		a.walkTargetRefs(t.Left)
		a.walkExpr(t.Right)
	}
}

func (a *auditor) walkForInto(into ast.ForInto) {
	switch in := into.(type) {
	case *ast.ForIntoVar:
		a.walkTargetRefs(in.Binding.Target)
		if in.Binding.Initializer != nil {
			a.walkExpr(in.Binding.Initializer)
		}
	case *ast.ForDeclaration:
		a.walkTargetRefs(in.Target)
	case *ast.ForIntoExpression:
		a.walkExpr(in.Expression)
	}
}

func (a *auditor) walkFunction(fn *ast.FunctionLiteral) {
	a.pushFrame()
	if fn.Name != nil {
		a.declare(fn.Name.Name.String())
	}
	a.declareVars(fn.DeclarationList)
	a.declareParams(fn.ParameterList)
	a.collect(fn.Body.List)
	a.walkParams(fn.ParameterList)
	a.walkStmt(fn.Body)
	a.popFrame()
}

func (a *auditor) walkArrow(fn *ast.ArrowFunctionLiteral) {
	a.pushFrame()
	a.declareVars(fn.DeclarationList)
	a.declareParams(fn.ParameterList)
	switch body := fn.Body.(type) {
	case *ast.BlockStatement:
		a.collect(body.List)
		a.walkParams(fn.ParameterList)
		a.walkStmt(body)
	case *ast.ExpressionBody:
		a.walkParams(fn.ParameterList)
		a.walkExpr(body.Expression)
	}
	a.popFrame()
}

func (a *auditor) declareParams(params *ast.ParameterList) {
	if params == nil {
		return
	}
	for _, b := range params.List {
		a.declareTarget(b.Target)
	}
	if params.Rest != nil {
		a.declareTarget(params.Rest)
	}
}

func (a *auditor) walkParams(params *ast.ParameterList) {
	if params == nil {
		return
	}
	for _, b := range params.List {
		a.walkTargetRefs(b.Target)
		if b.Initializer != nil {
			a.walkExpr(b.Initializer)
		}
	}
	if params.Rest != nil {
		a.walkTargetRefs(params.Rest)
	}
}

func (a *auditor) walkClassBody(cl *ast.ClassLiteral) {
	a.pushFrame()
	if cl.Name != nil {
		a.declare(cl.Name.Name.String())
	}
	if cl.SuperClass != nil {
		a.walkExpr(cl.SuperClass)
	}
	for _, el := range cl.Body {
		switch elem := el.(type) {
		case *ast.FieldDefinition:
			if elem.Computed {
				a.walkExpr(elem.Key)
			}
			if elem.Initializer != nil {
				a.walkExpr(elem.Initializer)
			}
		case *ast.MethodDefinition:
			if elem.Computed {
				a.walkExpr(elem.Key)
			}
			a.walkFunction(elem.Body)
		case *ast.ClassStaticBlock:
			a.pushFrame()
			a.declareVars(elem.DeclarationList)
			a.collect(elem.Block.List)
			a.walkStmt(elem.Block)
			a.popFrame()
		}
	}
	a.popFrame()
}

func (a *auditor) walkExpr(e ast.Expression) {
	switch ex := e.(type) {
	case *ast.Identifier:
		a.checkRef(ex)
	case *ast.CallExpression:
		a.walkExpr(ex.Callee)
		for _, arg := range ex.ArgumentList {
			a.walkExpr(arg)
		}
	case *ast.NewExpression:
		a.walkExpr(ex.Callee)
		for _, arg := range ex.ArgumentList {
			a.walkExpr(arg)
		}
	case *ast.DotExpression:
		a.walkExpr(ex.Left)
	case *ast.PrivateDotExpression:
		a.walkExpr(ex.Left)
	case *ast.BracketExpression:
		a.walkExpr(ex.Left)
		a.walkExpr(ex.Member)
	case *ast.FunctionLiteral:
		a.walkFunction(ex)
	case *ast.ArrowFunctionLiteral:
		a.walkArrow(ex)
	case *ast.ClassLiteral:
		a.walkClassBody(ex)
	case *ast.ObjectLiteral:
		a.walkProps(ex.Value)
	case *ast.ArrayLiteral:
		for _, el := range ex.Value {
			if el != nil {
				a.walkExpr(el)
			}
		}
	case *ast.ObjectPattern:
		a.walkProps(ex.Properties)
		if ex.Rest != nil {
			a.walkExpr(ex.Rest)
		}
	case *ast.ArrayPattern:
		for _, el := range ex.Elements {
			if el != nil {
				a.walkExpr(el)
			}
		}
		if ex.Rest != nil {
			a.walkExpr(ex.Rest)
		}
	case *ast.SpreadElement:
		a.walkExpr(ex.Expression)
	case *ast.AssignExpression:
		a.walkExpr(ex.Left)
		a.walkExpr(ex.Right)
	case *ast.ConditionalExpression:
		a.walkExpr(ex.Test)
		a.walkExpr(ex.Consequent)
		a.walkExpr(ex.Alternate)
	case *ast.BinaryExpression:
		a.walkExpr(ex.Left)
		a.walkExpr(ex.Right)
	case *ast.UnaryExpression:
		a.walkExpr(ex.Operand)
	case *ast.SequenceExpression:
		for _, inner := range ex.Sequence {
			a.walkExpr(inner)
		}
	case *ast.TemplateLiteral:
		if ex.Tag != nil {
			a.walkExpr(ex.Tag)
		}
		for _, inner := range ex.Expressions {
			a.walkExpr(inner)
		}
	case *ast.YieldExpression:
		if ex.Argument != nil {
			a.walkExpr(ex.Argument)
		}
	case *ast.AwaitExpression:
		a.walkExpr(ex.Argument)
	case *ast.Optional:
		a.walkExpr(ex.Expression)
	case *ast.OptionalChain:
		a.walkExpr(ex.Expression)
	}
}

func (a *auditor) walkProps(props []ast.Property) {
	for _, p := range props {
		switch prop := p.(type) {
		case *ast.PropertyShort:
			a.checkRef(&prop.Name)
			if prop.Initializer != nil {
				a.walkExpr(prop.Initializer)
			}
		case *ast.PropertyKeyed:
			if prop.Computed {
				a.walkExpr(prop.Key)
			}
			a.walkExpr(prop.Value)
		case *ast.SpreadElement:
			a.walkExpr(prop.Expression)
		}
	}
}

// auditLexical is the last-resort scan for code the parser rejects:
// strings and comments are skipped, template text is treated as opaque,
// and every capability word outside property position is reported.
// Unparseable input cannot be scope checked, only flagged.
func auditLexical(code string) []Warning {
	var warnings []Warning
	i := 0
	lastSig := byte(0)
	for i < len(code) {
		c := code[i]
		switch {
		case c == '"' || c == '\'' || c == '`':
			quote := c
			i++
			for i < len(code) {
				if code[i] == '\\' {
					i += 2
					continue
				}
				if code[i] == quote {
					i++
					break
				}
				i++
			}
			lastSig = '"'
		case c == '/' && i+1 < len(code) && code[i+1] == '/':
			for i < len(code) && code[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(code) && code[i+1] == '*':
			i += 2
			for i+1 < len(code) && !(code[i] == '*' && code[i+1] == '/') {
				i++
			}
			i += 2
		case isWordStart(c):
			start := i
			for i < len(code) && isWordPart(code[i]) {
				i++
			}
			word := code[start:i]
			if cw, ok := CapabilityForIdent(word); ok && lastSig != '.' {
				line, col := lineCol(code, start)
				warnings = append(warnings, Warning{
					Capability: cw.Kind(),
					Detail:     fmt.Sprintf("possible reference to %s in unparseable source", word),
					Line:       line,
					Column:     col,
				})
			}
			lastSig = 'a'
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		default:
			lastSig = c
			i++
		}
	}
	return warnings
}

func lineCol(src string, off int) (int, int) {
	if off > len(src) {
		off = len(src)
	}
	line, col := 1, 1
	for i := 0; i < off; i++ {
		if src[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}
