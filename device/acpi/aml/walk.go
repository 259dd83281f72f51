package aml

import (
	"bytes"
	"acpicore/device/acpi/table"
	"acpicore/kernel/kfmt"
	"acpicore/kernel/osadapter"
	ksync "acpicore/kernel/sync"
	"io"
)

const (
	maxLocalArgs  = 8
	maxMethodArgs = 7

	// defaultMethodConcurrency caps the number of threads that may execute
	// the same non-serialized method simultaneously (spec.md 5).
	defaultMethodConcurrency = 4
)

// ctrlFlowType describes how the interpreter should resume after executing
// an opcode.
type ctrlFlowType uint8

// The list of supported control flows.
const (
	ctrlFlowNext ctrlFlowType = iota
	ctrlFlowBreak
	ctrlFlowContinue
	ctrlFlowReturn
)

// frame is one entry of an Error's stack trace.
type frame struct {
	table  string
	method string
	instr  string
}

// Error describes a failure encountered while parsing or executing AML code.
type Error struct {
	message string
	trace   []*frame
}

func (e *Error) Error() string { return e.message }

// StackTrace renders the captured call trace, most-recent call first.
func (e *Error) StackTrace() string {
	if len(e.trace) == 0 {
		return "no stack trace available"
	}

	var buf bytes.Buffer
	buf.WriteString("stack trace:\n")
	for index, offset := 0, len(e.trace)-1; offset >= 0; index, offset = index+1, offset-1 {
		entry := e.trace[offset]
		kfmt.Fprintf(&buf, "[%2x] [%s] [%s] %s\n", index, entry.table, entry.method, entry.instr)
	}
	return buf.String()
}

// WalkState holds the interpreter state for a single method invocation: its
// local/argument slots, its place in the control-flow state machine and the
// thread id used by recursive mutex acquisition. syncLevel is inherited from
// the caller but no sync-level check reads it. It is the Go-native analogue
// of ACPICA's ACPI_WALK_STATE (dsmethod.c): a method call pushes a new
// WalkState onto vm.activeWalks for the duration of the call and runs the
// callee by a nested Go call (invokeMethod -> execTermList); the concurrency
// ceiling is a per-method semaphore and does not consult vm.activeWalks.
type WalkState struct {
	vm *VM

	threadID  uint64
	syncLevel uint8

	parent *WalkState
	method *Object

	locals [maxLocalArgs]*box
	args   [maxMethodArgs]*box

	ctrlFlow ctrlFlowType
	retVal   *amlValue
}

// depth returns how many methods are currently nested below the root caller,
// i.e. how many times this thread has been preempted by a nested call.
func (ws *WalkState) depth() int {
	d := 0
	for p := ws.parent; p != nil; p = p.parent {
		d++
	}
	return d
}

// VM interprets the AML bytecode contained in the tables returned by a
// table.Resolver and exposes the evaluated ACPI namespace.
type VM struct {
	errWriter io.Writer

	tableResolver table.Resolver
	tableParser   *Parser
	objTree       *ObjectTree

	tableHandleToName map[uint8]string
	tableHeaders      map[uint8]*table.SDTHeader
	nextTableHandle   uint8

	sizeOfIntInBits int

	// namedValues holds the dynamic runtime value for every Name/field
	// object that has been read or written at least once; the ObjectTree
	// itself only models the static namespace shape (spec.md 4.3).
	namedValues map[*Object]*box

	refs *refTable

	host           *osadapter.Host
	customHandlers map[table.AddressSpace]addressSpaceHandler

	globalLock   *ksync.Mutex
	nextThreadID uint64

	mutexes map[*Object]*ksync.Mutex
	events  map[*Object]*ksync.Semaphore
	sems    map[*Object]*ksync.Semaphore

	notifyHandlers map[*Object][]NotifyHandler

	activeWalks []*WalkState
}

// NotifyHandler is invoked when AML code executes a Notify() on a device,
// thermal zone or processor object.
type NotifyHandler func(target *Object, value uint64)

// NewVM creates an AML VM backed by resolver for locating firmware tables.
func NewVM(errWriter io.Writer, resolver table.Resolver) *VM {
	tree := NewObjectTree()
	tree.CreateDefaultScopes(0)

	return &VM{
		errWriter:         errWriter,
		tableResolver:     resolver,
		objTree:           tree,
		tableParser:       NewParser(errWriter, tree),
		tableHandleToName: make(map[uint8]string),
		tableHeaders:      make(map[uint8]*table.SDTHeader),
		namedValues:       make(map[*Object]*box),
		refs:              newRefTable(),
		globalLock:        ksync.NewMutex(),
		nextThreadID:      1,
		mutexes:           make(map[*Object]*ksync.Mutex),
		events:            make(map[*Object]*ksync.Semaphore),
		sems:              make(map[*Object]*ksync.Semaphore),
		notifyHandlers:    make(map[*Object][]NotifyHandler),
	}
}

// BindHost attaches the OS adapter contract used by the address-space
// dispatcher (field.go/addrspace.go) to reach SystemMemory/SystemIO.  It is
// optional: a VM with no bound host can still parse tables and evaluate any
// TermArg that never touches a Field/Region opcode.
func (vm *VM) BindHost(h *osadapter.Host) { vm.host = h }

// Init locates and parses the system's DSDT and any SSDTs, then resolves
// any entity whose initialization was deferred until the interpreter itself
// was available (buffer sizes, region bodies).
func (vm *VM) Init() *Error {
	header := vm.tableResolver.LookupTable("DSDT")
	if header == nil {
		return &Error{message: "aml: no DSDT table found"}
	}

	if err := vm.loadTable("DSDT", header); err != nil {
		return err
	}
	vm.sizeOfIntInBits = 32
	if header.Revision >= 2 {
		vm.sizeOfIntInBits = 64
	}

	// A resolver may optionally enumerate secondary definition tables beyond
	// the single DSDT; table.Resolver's required surface only covers lookup
	// by well-known name; this is a backwards-compatible feature test rather
	// than a required method on every resolver.
	if lister, ok := vm.tableResolver.(interface{ SSDTs() []*table.SDTHeader }); ok {
		for _, h := range lister.SSDTs() {
			if err := vm.loadTable("SSDT", h); err != nil {
				return err
			}
		}
	}

	return nil
}

// loadTable allocates an owner id for tableName and parses it into the
// shared namespace tree (spec.md's LOAD_PASS1/LOAD_PASS2 modes, carried out
// internally by Parser.ParseAML).
func (vm *VM) loadTable(tableName string, header *table.SDTHeader) *Error {
	tableHandle := vm.allocateTableHandle(tableName)
	vm.tableHeaders[tableHandle] = header
	if err := vm.tableParser.ParseAML(tableHandle, tableName, header); err != nil {
		return &Error{message: err.Module + ": " + err.Error()}
	}
	return nil
}

// UnloadTable tears down every namespace entry owned by tableHandle,
// matching the owner-id bulk deletion ACPICA performs when a table is
// unloaded (cminit.c, supplemented feature per SPEC_FULL.md 12).
func (vm *VM) UnloadTable(tableHandle uint8) {
	DeleteByOwner(vm.objTree, vm.objTree.ObjectAt(0), tableHandle)
	delete(vm.tableHandleToName, tableHandle)
}

func (vm *VM) allocateTableHandle(tableName string) uint8 {
	vm.nextTableHandle++
	vm.tableHandleToName[vm.nextTableHandle] = tableName
	return vm.nextTableHandle
}

// newThreadID allocates a monotonically increasing thread id, used both to
// tag WalkStates and as the owner token recursive Mutex.Acquire compares
// against.
func (vm *VM) newThreadID() uint64 {
	id := vm.nextThreadID
	vm.nextThreadID++
	return id
}

// Lookup resolves an absolute AML namespace path to its Object, or nil.
func (vm *VM) Lookup(absPath string) *Object {
	if absPath == "" {
		return nil
	}
	return vm.objTree.ObjectAt(vm.objTree.Find(0, []byte(absPath)))
}

// methodSemaphore returns (creating if necessary) the concurrency-ceiling
// semaphore for method. Serialized methods (serializeFlag set) get a ceiling
// of 1; everything else uses defaultMethodConcurrency, matching spec.md 5.
func (vm *VM) methodSemaphore(method *Object) *ksync.Semaphore {
	sem, ok := vm.sems[method]
	if ok {
		return sem
	}

	ceiling := uint32(defaultMethodConcurrency)
	if flagsObj := vm.objTree.ArgAt(method, uint32(2)); flagsObj != nil {
		if flags, ok := flagsObj.value.(uint64); ok && flags&0x8 != 0 {
			ceiling = 1 // SerializeFlag (bit 3) marks a serialized method
		}
	}

	sem = ksync.NewSemaphore(ceiling, ceiling)
	vm.sems[method] = sem
	return sem
}

// invokeMethod runs method on behalf of caller (nil for a top-level
// evaluation), passing argVals as the already-evaluated method arguments.
// It enforces the method's concurrency ceiling via a semaphore acquired
// before execution and released unconditionally afterwards, and it pushes a
// new WalkState onto vm.activeWalks for the duration of the call so nested
// preemption is observable (spec.md's CTRL_PENDING / testable property 6).
func (vm *VM) invokeMethod(caller *WalkState, method *Object, argVals []*amlValue) (*amlValue, *Error) {
	sem := vm.methodSemaphore(method)
	if sem.Wait(-1) != ksync.WaitOK {
		return nil, &Error{message: "aml: method concurrency wait failed"}
	}
	defer sem.Signal(1)

	ws := &WalkState{vm: vm, parent: caller, method: method}
	if caller != nil {
		ws.threadID = caller.threadID
		ws.syncLevel = caller.syncLevel
	} else {
		ws.threadID = vm.newThreadID()
	}

	for i := 0; i < len(argVals) && i < maxMethodArgs; i++ {
		ws.args[i] = newBox(argVals[i])
	}

	vm.activeWalks = append(vm.activeWalks, ws)
	defer func() { vm.activeWalks = vm.activeWalks[:len(vm.activeWalks)-1] }()

	if err := vm.execTermList(ws, method); err != nil {
		err.trace = append(err.trace, &frame{
			table:  vm.tableHandleToName[method.tableHandle],
			method: nameOf(method),
			instr:  "Method",
		})
		return nil, err
	}

	return ws.retVal, nil
}

// nameOf renders obj's fixed-width name with its '_' padding trimmed.
func nameOf(obj *Object) string {
	return string(bytes.TrimRight(obj.name[:], "_"))
}

// execTermList executes every statement contained in scope (a TermList:
// Method, Scope, Device, If/Else/While body, ...) in order, stopping early
// if control flow is diverted by Break/Continue/Return.
func (vm *VM) execTermList(ws *WalkState, scope *Object) *Error {
	for idx := scope.firstArgIndex; idx != InvalidIndex && ws.ctrlFlow == ctrlFlowNext; {
		stmt := vm.objTree.ObjectAt(idx)
		idx = stmt.nextSiblingIndex

		if _, err := vm.execStatement(ws, stmt); err != nil {
			err.trace = append(err.trace, &frame{instr: pOpcodeName(stmt.opcode)})
			return err
		}
	}
	return nil
}
