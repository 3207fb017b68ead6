package cox

import "strconv"

// Precedence levels, lowest to highest binding (§4.4).
type precedence int

const (
	precNone       precedence = iota
	precAssignment            // =
	precOr                    // or
	precAnd                   // and
	precEquality              // == !=
	precComparison            // < > <= >=
	precTerm                  // + -
	precFactor                // * /
	precUnary                 // ! -
	precCall                  // . ()
	precPrimary
)

type parseFn func(c *Compiler, canAssign bool)

type parseRule struct {
	prefix     parseFn
	infix      parseFn
	precedence precedence
}

var rules map[TokenType]parseRule

func init() {
	rules = map[TokenType]parseRule{
		TokenLeftParen:    {prefix: (*Compiler).grouping, infix: (*Compiler).call, precedence: precCall},
		TokenMinus:        {prefix: (*Compiler).unary, infix: (*Compiler).binary, precedence: precTerm},
		TokenPlus:         {infix: (*Compiler).binary, precedence: precTerm},
		TokenSlash:        {infix: (*Compiler).binary, precedence: precFactor},
		TokenStar:         {infix: (*Compiler).binary, precedence: precFactor},
		TokenBang:         {prefix: (*Compiler).unary},
		TokenBangEqual:    {infix: (*Compiler).binary, precedence: precEquality},
		TokenEqualEqual:   {infix: (*Compiler).binary, precedence: precEquality},
		TokenGreater:      {infix: (*Compiler).binary, precedence: precComparison},
		TokenGreaterEqual: {infix: (*Compiler).binary, precedence: precComparison},
		TokenLess:         {infix: (*Compiler).binary, precedence: precComparison},
		TokenLessEqual:    {infix: (*Compiler).binary, precedence: precComparison},
		TokenIdentifier:   {prefix: (*Compiler).variable},
		TokenString:       {prefix: (*Compiler).stringLiteral},
		TokenNumber:       {prefix: (*Compiler).number},
		TokenAnd:          {infix: (*Compiler).and_, precedence: precAnd},
		TokenOr:           {infix: (*Compiler).or_, precedence: precOr},
		TokenFalse:        {prefix: (*Compiler).literal},
		TokenTrue:         {prefix: (*Compiler).literal},
		TokenNil:          {prefix: (*Compiler).literal},
	}
}

func getRule(t TokenType) parseRule {
	if r, ok := rules[t]; ok {
		return r
	}
	return parseRule{}
}

// localVar is a name bound to a stack slot within one FunctionCompiler.
type localVar struct {
	name       string
	depth      int // -1 means "declared but uninitialized"
	isCaptured bool
}

// upvalueRef records how a captured variable is reached from its
// owning FunctionCompiler: either directly as a local of the
// immediately-enclosing function (isLocal), or as an up-value of that
// enclosing function in turn.
type upvalueRef struct {
	index   int
	isLocal bool
}

const maxLocals = 256
const maxUpvalues = 256

type functionKind int

const (
	kindFunction functionKind = iota
	kindScript
)

// Compiler is one level of the compiler stack: one per nested
// function currently being compiled. `enclosing` threads these levels
// together, and the GC walks that chain as a root set (§4.4, §4.5).
type Compiler struct {
	enclosing *Compiler
	function  *Obj // Obj.typ == ObjFunction, being built
	kind      functionKind

	locals     [maxLocals]localVar
	localCount int
	upvalues   [maxUpvalues]upvalueRef
	scopeDepth int

	parser *parserState
	gc     *GC
}

// parserState is the shared token-stream/error state threaded through
// every Compiler level (mirrors teacher's base_parser.go hadError/
// panicMode fields).
type parserState struct {
	scanner *Scanner

	current  Token
	previous Token

	errors    []CompileError
	panicMode bool
}

// Compile compiles source into a top-level script function, or
// returns the accumulated compile errors if any were seen (§7: "if
// hadError was ever set, compilation fails as a whole").
func Compile(source string, gc *GC) (*Obj, []CompileError) {
	p := &parserState{scanner: NewScanner(source)}
	c := newCompiler(p, gc, nil, kindScript, "")

	c.advance()
	for !c.match(TokenEOF) {
		c.declaration()
	}
	fn := c.endCompiler()

	if len(p.errors) > 0 {
		return nil, p.errors
	}
	return fn, nil
}

func newCompiler(p *parserState, gc *GC, enclosing *Compiler, kind functionKind, name string) *Compiler {
	c := &Compiler{
		enclosing: enclosing,
		kind:      kind,
		parser:    p,
		gc:        gc,
	}

	// Registering c as the GC's active compiler before allocating its
	// function object means a stress-triggered collection inside this
	// very allocate() call already has this level of the compiler
	// chain (and everything above it) as roots (§4.5 "Cooperation").
	gc.compiler = c

	fnObj := gc.allocate(ObjFunction)
	fnData := &ObjFunctionData{obj: fnObj, chunk: NewChunk()}
	fnObj.asFunction = fnData
	c.function = fnObj
	if kind != kindScript {
		fnData.name = gc.copyString(name)
	}

	// Slot 0 is reserved so the VM's `slots[0] == callee` invariant
	// holds for every function, including the top-level script (§4.4).
	c.locals[0] = localVar{name: "", depth: 0}
	c.localCount = 1

	return c
}

// ---- token stream helpers ----

func (c *Compiler) advance() {
	p := c.parser
	p.previous = p.current
	for {
		p.current = p.scanner.Next()
		if p.current.Type != TokenError {
			break
		}
		kind := UnexpectedCharacter
		if p.current.Lexeme == "Unterminated string." {
			kind = UnterminatedString
		}
		c.errorAtKind(kind, p.current, p.current.Lexeme)
	}
}

func (c *Compiler) check(t TokenType) bool { return c.parser.current.Type == t }

func (c *Compiler) match(t TokenType) bool {
	if !c.check(t) {
		return false
	}
	c.advance()
	return true
}

func (c *Compiler) consume(t TokenType, message string) {
	if c.parser.current.Type == t {
		c.advance()
		return
	}
	c.errorAtCurrent(message)
}

// ---- error reporting / panic-mode recovery ----

func (c *Compiler) errorAtCurrent(message string) { c.errorAt(c.parser.current, message) }
func (c *Compiler) error(message string)          { c.errorAt(c.parser.previous, message) }

func (c *Compiler) errorAt(tok Token, message string) {
	p := c.parser
	if p.panicMode {
		return
	}
	p.panicMode = true
	p.errors = append(p.errors, CompileError{Kind: ExpectToken, Line: tok.Line, Message: message})
}

func (c *Compiler) errorAtKind(kind CompileErrorKind, tok Token, message string) {
	p := c.parser
	if p.panicMode {
		return
	}
	p.panicMode = true
	p.errors = append(p.errors, CompileError{Kind: kind, Line: tok.Line, Message: message})
}

func (c *Compiler) synchronize() {
	p := c.parser
	p.panicMode = false

	for p.current.Type != TokenEOF {
		if p.previous.Type == TokenSemicolon {
			return
		}
		switch p.current.Type {
		case TokenClass, TokenFun, TokenVar, TokenFor, TokenIf, TokenWhile, TokenPrint, TokenReturn:
			return
		}
		c.advance()
	}
}

// ---- bytecode emission ----

func (c *Compiler) currentChunk() *Chunk { return c.function.asFunction.chunk }

func (c *Compiler) emitByte(b byte) { c.currentChunk().WriteByte(b, c.parser.previous.Line) }
func (c *Compiler) emitOp(op OpCode) { c.currentChunk().WriteOp(op, c.parser.previous.Line) }

func (c *Compiler) emitOps(op1, op2 OpCode) {
	c.emitOp(op1)
	c.emitOp(op2)
}

func (c *Compiler) emitConstant(v Value) {
	idx, err := c.currentChunk().AddConstant(v)
	if err != nil {
		c.errorAtKind(TooManyConstants, c.parser.previous, err.Error())
		return
	}
	c.emitOp(OpConstant)
	c.emitByte(byte(idx))
}

// emitJump writes the opcode plus a two-byte placeholder operand and
// returns the offset of the first placeholder byte, to be patched
// later by patchJump.
func (c *Compiler) emitJump(op OpCode) int {
	c.emitOp(op)
	c.emitByte(0xff)
	c.emitByte(0xff)
	return c.currentChunk().Len() - 2
}

// patchJump always writes the jump operand; on overflow it first
// reports JumpTooLong and writes 0 — never the inverted "only write
// when it overflows" bug flagged in spec.md §9.
func (c *Compiler) patchJump(offset int) {
	jump := c.currentChunk().Len() - offset - 2
	if jump > 0xffff {
		c.errorAtKind(JumpTooLong, c.parser.previous, "Too much code to jump over.")
		jump = 0
	}
	c.currentChunk().PatchByte(offset, byte(jump>>8))
	c.currentChunk().PatchByte(offset+1, byte(jump&0xff))
}

func (c *Compiler) emitLoop(loopStart int) {
	c.emitOp(OpLoop)
	offset := c.currentChunk().Len() - loopStart + 2
	if offset > 0xffff {
		c.errorAtKind(JumpTooLong, c.parser.previous, "Loop body too large.")
		offset = 0
	}
	c.emitByte(byte(offset >> 8))
	c.emitByte(byte(offset & 0xff))
}

func (c *Compiler) emitReturn() {
	c.emitOp(OpNil)
	c.emitOp(OpReturn)
}

// endCompiler finalizes the function being built and restores the
// enclosing compiler (if any) as the current one.
func (c *Compiler) endCompiler() *Obj {
	c.emitReturn()
	c.gc.compiler = c.enclosing
	return c.function
}

// ---- scopes ----

func (c *Compiler) beginScope() { c.scopeDepth++ }

// endScope pops locals whose depth exceeds the new depth, emitting
// POP for ordinary locals and CLOSE_UPVALUE for captured ones (§4.4).
func (c *Compiler) endScope() {
	c.scopeDepth--
	for c.localCount > 0 && c.locals[c.localCount-1].depth > c.scopeDepth {
		if c.locals[c.localCount-1].isCaptured {
			c.emitOp(OpCloseUpvalue)
		} else {
			c.emitOp(OpPop)
		}
		c.localCount--
	}
}

// ---- declarations ----

func (c *Compiler) declaration() {
	switch {
	case c.match(TokenFun):
		c.funDeclaration()
	case c.match(TokenVar):
		c.varDeclaration()
	default:
		c.statement()
	}

	if c.parser.panicMode {
		c.synchronize()
	}
}

func (c *Compiler) funDeclaration() {
	global := c.parseVariable("Expect function name.")
	c.markInitialized()
	c.function_(kindFunction)
	c.defineVariable(global)
}

func (c *Compiler) function_(kind functionKind) {
	name := c.parser.previous.Lexeme
	sub := newCompiler(c.parser, c.gc, c, kind, name)
	sub.beginScope()

	sub.consume(TokenLeftParen, "Expect '(' after function name.")
	if !sub.check(TokenRightParen) {
		for {
			sub.function.asFunction.arity++
			if sub.function.asFunction.arity > 255 {
				sub.errorAtKind(TooManyParameters, sub.parser.current, "Can't have more than 255 parameters.")
			}
			constant := sub.parseVariable("Expect parameter name.")
			sub.defineVariable(constant)
			if !sub.match(TokenComma) {
				break
			}
		}
	}
	sub.consume(TokenRightParen, "Expect ')' after parameters.")
	sub.consume(TokenLeftBrace, "Expect '{' before function body.")
	sub.block()

	fnObj := sub.endCompiler()
	fnData := fnObj.asFunction

	idx, err := c.currentChunk().AddConstant(ObjValue(fnObj))
	if err != nil {
		c.errorAtKind(TooManyConstants, c.parser.previous, err.Error())
		return
	}
	c.emitOp(OpClosure)
	c.emitByte(byte(idx))
	for i := 0; i < fnData.upvalueCount; i++ {
		if sub.upvalues[i].isLocal {
			c.emitByte(1)
		} else {
			c.emitByte(0)
		}
		c.emitByte(byte(sub.upvalues[i].index))
	}
}

func (c *Compiler) varDeclaration() {
	global := c.parseVariable("Expect variable name.")

	if c.match(TokenEqual) {
		c.expression()
	} else {
		c.emitOp(OpNil)
	}
	c.consume(TokenSemicolon, "Expect ';' after variable declaration.")

	c.defineVariable(global)
}

// parseVariable consumes an identifier and, for a global, interns its
// name as a constant; for a local it just declares the slot. The
// returned index is only meaningful for globals.
func (c *Compiler) parseVariable(message string) int {
	c.consume(TokenIdentifier, message)

	c.declareVariable()
	if c.scopeDepth > 0 {
		return 0
	}

	return c.identifierConstant(c.parser.previous)
}

func (c *Compiler) identifierConstant(name Token) int {
	idx, err := c.currentChunk().AddConstant(ObjValue(wrapStringObj(c.gc.copyString(name.Lexeme))))
	if err != nil {
		c.errorAtKind(TooManyConstants, name, err.Error())
		return 0
	}
	return idx
}

func (c *Compiler) declareVariable() {
	if c.scopeDepth == 0 {
		return
	}

	name := c.parser.previous
	for i := c.localCount - 1; i >= 0; i-- {
		local := &c.locals[i]
		if local.depth != -1 && local.depth < c.scopeDepth {
			break
		}
		if local.name == name.Lexeme {
			c.errorAtKind(DuplicateInScope, name, "Already a variable with this name in this scope.")
		}
	}

	c.addLocal(name.Lexeme)
}

func (c *Compiler) addLocal(name string) {
	if c.localCount == maxLocals {
		c.errorAtKind(TooManyLocals, c.parser.previous, "Too many local variables in function.")
		return
	}
	c.locals[c.localCount] = localVar{name: name, depth: -1}
	c.localCount++
}

// markInitialized sets the most recently declared local's depth to
// the current scope depth, AFTER its initializer has been compiled.
// Doing this for globals is a no-op: they have no "uninitialized"
// state to resolve (§4.4).
func (c *Compiler) markInitialized() {
	if c.scopeDepth == 0 {
		return
	}
	c.locals[c.localCount-1].depth = c.scopeDepth
}

func (c *Compiler) defineVariable(global int) {
	if c.scopeDepth > 0 {
		c.markInitialized()
		return
	}
	c.emitOp(OpDefineGlobal)
	c.emitByte(byte(global))
}

// ---- statements ----

func (c *Compiler) statement() {
	switch {
	case c.match(TokenPrint):
		c.printStatement()
	case c.match(TokenIf):
		c.ifStatement()
	case c.match(TokenWhile):
		c.whileStatement()
	case c.match(TokenFor):
		c.forStatement()
	case c.match(TokenReturn):
		c.returnStatement()
	case c.match(TokenLeftBrace):
		c.beginScope()
		c.block()
		c.endScope()
	default:
		c.expressionStatement()
	}
}

func (c *Compiler) block() {
	for !c.check(TokenRightBrace) && !c.check(TokenEOF) {
		c.declaration()
	}
	c.consume(TokenRightBrace, "Expect '}' after block.")
}

func (c *Compiler) printStatement() {
	c.expression()
	c.consume(TokenSemicolon, "Expect ';' after value.")
	c.emitOp(OpPrint)
}

func (c *Compiler) expressionStatement() {
	c.expression()
	c.consume(TokenSemicolon, "Expect ';' after expression.")
	c.emitOp(OpPop)
}

// ifStatement: both arms always emit an explicit POP (via emitOp,
// never emitJump(OpPop)) because JUMP_IF_FALSE does not consume its
// operand — the design note's corrected behavior (§4.4, §9).
func (c *Compiler) ifStatement() {
	c.consume(TokenLeftParen, "Expect '(' after 'if'.")
	c.expression()
	c.consume(TokenRightParen, "Expect ')' after condition.")

	thenJump := c.emitJump(OpJumpIfFalse)
	c.emitOp(OpPop)
	c.statement()

	elseJump := c.emitJump(OpJump)

	c.patchJump(thenJump)
	c.emitOp(OpPop)

	if c.match(TokenElse) {
		c.statement()
	}
	c.patchJump(elseJump)
}

func (c *Compiler) whileStatement() {
	loopStart := c.currentChunk().Len()
	c.consume(TokenLeftParen, "Expect '(' after 'while'.")
	c.expression()
	c.consume(TokenRightParen, "Expect ')' after condition.")

	exitJump := c.emitJump(OpJumpIfFalse)
	c.emitOp(OpPop)
	c.statement()
	c.emitLoop(loopStart)

	c.patchJump(exitJump)
	c.emitOp(OpPop)
}

func (c *Compiler) forStatement() {
	c.beginScope()
	c.consume(TokenLeftParen, "Expect '(' after 'for'.")

	switch {
	case c.match(TokenSemicolon):
		// no initializer
	case c.match(TokenVar):
		c.varDeclaration()
	default:
		c.expressionStatement()
	}

	loopStart := c.currentChunk().Len()
	exitJump := -1
	if !c.match(TokenSemicolon) {
		c.expression()
		c.consume(TokenSemicolon, "Expect ';' after loop condition.")
		exitJump = c.emitJump(OpJumpIfFalse)
		c.emitOp(OpPop)
	}

	if !c.match(TokenRightParen) {
		bodyJump := c.emitJump(OpJump)
		incrementStart := c.currentChunk().Len()
		c.expression()
		c.emitOp(OpPop)
		c.consume(TokenRightParen, "Expect ')' after for clauses.")

		c.emitLoop(loopStart)
		loopStart = incrementStart
		c.patchJump(bodyJump)
	}

	c.statement()
	c.emitLoop(loopStart)

	if exitJump != -1 {
		c.patchJump(exitJump)
		c.emitOp(OpPop)
	}

	c.endScope()
}

func (c *Compiler) returnStatement() {
	if c.kind == kindScript {
		c.errorAtKind(ReturnFromScript, c.parser.previous, "Can't return from top-level code.")
	}
	if c.match(TokenSemicolon) {
		c.emitReturn()
		return
	}
	c.expression()
	c.consume(TokenSemicolon, "Expect ';' after return value.")
	c.emitOp(OpReturn)
}

// ---- expressions ----

func (c *Compiler) expression() { c.parsePrecedence(precAssignment) }

func (c *Compiler) parsePrecedence(p precedence) {
	c.advance()
	prefixRule := getRule(c.parser.previous.Type).prefix
	if prefixRule == nil {
		c.errorAtKind(ExpectExpression, c.parser.previous, "Expect expression.")
		return
	}

	canAssign := p <= precAssignment
	prefixRule(c, canAssign)

	for p <= getRule(c.parser.current.Type).precedence {
		c.advance()
		infixRule := getRule(c.parser.previous.Type).infix
		infixRule(c, canAssign)
	}

	if canAssign && c.match(TokenEqual) {
		c.errorAtKind(InvalidAssignmentTarget, c.parser.previous, "Invalid assignment target.")
	}
}

func (c *Compiler) number(canAssign bool) {
	v, _ := strconv.ParseFloat(c.parser.previous.Lexeme, 64)
	c.emitConstant(NumberValue(v))
}

func (c *Compiler) stringLiteral(canAssign bool) {
	lexeme := c.parser.previous.Lexeme
	s := c.gc.copyString(lexeme[1 : len(lexeme)-1]) // strip surrounding quotes; no escapes (§6)
	c.emitConstant(ObjValue(wrapStringObj(s)))
}

func (c *Compiler) literal(canAssign bool) {
	switch c.parser.previous.Type {
	case TokenFalse:
		c.emitOp(OpFalse)
	case TokenTrue:
		c.emitOp(OpTrue)
	case TokenNil:
		c.emitOp(OpNil)
	}
}

func (c *Compiler) grouping(canAssign bool) {
	c.expression()
	c.consume(TokenRightParen, "Expect ')' after expression.")
}

func (c *Compiler) unary(canAssign bool) {
	opType := c.parser.previous.Type
	c.parsePrecedence(precUnary)

	switch opType {
	case TokenBang:
		c.emitOp(OpNot)
	case TokenMinus:
		c.emitOp(OpNegate)
	}
}

func (c *Compiler) binary(canAssign bool) {
	opType := c.parser.previous.Type
	rule := getRule(opType)
	c.parsePrecedence(rule.precedence + 1)

	switch opType {
	case TokenBangEqual:
		c.emitOps(OpEqual, OpNot)
	case TokenEqualEqual:
		c.emitOp(OpEqual)
	case TokenGreater:
		c.emitOp(OpGreater)
	case TokenGreaterEqual:
		c.emitOps(OpLess, OpNot)
	case TokenLess:
		c.emitOp(OpLess)
	case TokenLessEqual:
		c.emitOps(OpGreater, OpNot)
	case TokenPlus:
		c.emitOp(OpAdd)
	case TokenMinus:
		c.emitOp(OpSubtract)
	case TokenStar:
		c.emitOp(OpMultiply)
	case TokenSlash:
		c.emitOp(OpDivide)
	}
}

func (c *Compiler) and_(canAssign bool) {
	endJump := c.emitJump(OpJumpIfFalse)
	c.emitOp(OpPop)
	c.parsePrecedence(precAnd)
	c.patchJump(endJump)
}

func (c *Compiler) or_(canAssign bool) {
	elseJump := c.emitJump(OpJumpIfFalse)
	endJump := c.emitJump(OpJump)

	c.patchJump(elseJump)
	c.emitOp(OpPop)

	c.parsePrecedence(precOr)
	c.patchJump(endJump)
}

func (c *Compiler) call(canAssign bool) {
	argCount := c.argumentList()
	c.emitOp(OpCall)
	c.emitByte(byte(argCount))
}

func (c *Compiler) argumentList() int {
	argCount := 0
	if !c.check(TokenRightParen) {
		for {
			c.expression()
			if argCount == 255 {
				c.errorAtKind(TooManyArguments, c.parser.previous, "Can't have more than 255 arguments.")
			}
			argCount++
			if !c.match(TokenComma) {
				break
			}
		}
	}
	c.consume(TokenRightParen, "Expect ')' after arguments.")
	return argCount
}

func (c *Compiler) variable(canAssign bool) {
	c.namedVariable(c.parser.previous, canAssign)
}

func (c *Compiler) namedVariable(name Token, canAssign bool) {
	var getOp, setOp OpCode
	arg, ok := c.resolveLocal(name)
	switch {
	case ok:
		getOp, setOp = OpGetLocal, OpSetLocal
	default:
		if arg, ok = c.resolveUpvalue(name); ok {
			getOp, setOp = OpGetUpvalue, OpSetUpvalue
		} else {
			arg = c.identifierConstant(name)
			getOp, setOp = OpGetGlobal, OpSetGlobal
		}
	}

	if canAssign && c.match(TokenEqual) {
		c.expression()
		c.emitOp(setOp)
		c.emitByte(byte(arg))
		return
	}
	c.emitOp(getOp)
	c.emitByte(byte(arg))
}

// resolveLocal scans locals top-down. A match with depth == -1 means
// the name is being read inside its own initializer (§4.4).
func (c *Compiler) resolveLocal(name Token) (int, bool) {
	for i := c.localCount - 1; i >= 0; i-- {
		local := &c.locals[i]
		if local.name == name.Lexeme {
			if local.depth == -1 {
				c.errorAtKind(UseInOwnInitializer, name, "Can't read local variable in its own initializer.")
			}
			return i, true
		}
	}
	return 0, false
}

// resolveUpvalue recursively asks the enclosing compiler for the
// name, first as a local (capturing it) then as an up-value in turn
// (§4.4).
func (c *Compiler) resolveUpvalue(name Token) (int, bool) {
	if c.enclosing == nil {
		return 0, false
	}

	if local, ok := c.enclosing.resolveLocal(name); ok {
		c.enclosing.locals[local].isCaptured = true
		return c.addUpvalue(local, true), true
	}

	if up, ok := c.enclosing.resolveUpvalue(name); ok {
		return c.addUpvalue(up, false), true
	}

	return 0, false
}

// addUpvalue dedups by (index,isLocal) and fails with TooManyUpvalues
// past 256 (§4.4).
func (c *Compiler) addUpvalue(index int, isLocal bool) int {
	fn := c.function.asFunction
	for i := 0; i < fn.upvalueCount; i++ {
		uv := &c.upvalues[i]
		if uv.index == index && uv.isLocal == isLocal {
			return i
		}
	}

	if fn.upvalueCount == maxUpvalues {
		c.errorAtKind(TooManyUpvalues, c.parser.previous, "Too many closure variables in function.")
		return 0
	}

	c.upvalues[fn.upvalueCount] = upvalueRef{index: index, isLocal: isLocal}
	fn.upvalueCount++
	return fn.upvalueCount - 1
}

// wrapStringObj boxes an already-interned *ObjStringData back into
// the *Obj it was allocated under, for use as a constant-pool Value.
func wrapStringObj(s *ObjStringData) *Obj { return s.obj }
