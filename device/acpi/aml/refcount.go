package aml

// refAction identifies the kind of update applied to a reference count,
// mirroring acpi_cm_update_ref_count's REF_INCREMENT/REF_DECREMENT cases
// (common/cmdelete.c).
type refAction uint8

// The list of supported refAction values.
const (
	refIncrement refAction = iota
	refDecrement
)

// refStateEntry is one (object, action) record pushed onto the explicit
// update-state stack spec.md 4.3/9 calls for: cascading a reference-count
// update into a Package's elements, or into a Reference's target, must never
// recurse through the host language, since Index/RefOf let a Package contain
// a Reference back to itself.
type refStateEntry struct {
	b      *box
	action refAction
}

// refTable tracks how many live aliases point at each dynamic storage cell,
// grounded on acpi_cm_update_object_reference's counted-object model
// (common/cmdelete.c): a box's value is freed once its count reaches zero
// rather than on first release, since RefOf/Index/CopyObject can all leave
// more than one name pointing at the same cell.
type refTable struct {
	counts map[*box]uint16
}

func newRefTable() *refTable {
	return &refTable{counts: make(map[*box]uint16)}
}

// incRef records a new alias of b, e.g. when RefOf/CondRefOf/Index hands out
// a Reference value. The update
// cascades into b's contents (a Package's elements, a Reference's target)
// via the explicit stack walked by updateReference, matching spec.md 3's "a
// package object shares ownership of its elements".
func (r *refTable) incRef(b *box) {
	r.updateReference(b, refIncrement)
}

// decRef drops an alias of b and reports whether b itself has no remaining
// owners, matching acpi_cm_update_ref_count's REF_DECREMENT case. The update
// cascades into b's contents the same way incRef's does, so that a matching
// incRef/decRef pair around the same root leaves every reachable box's count
// unchanged (Testable Property 2) regardless of traversal order.
func (r *refTable) decRef(b *box) bool {
	if b == nil {
		return false
	}
	before, tracked := r.counts[b]
	r.updateReference(b, refDecrement)
	return !tracked || before <= 1
}

// updateReference walks the object graph reachable from root applying
// action to every box in it, using an explicit (object, action) stack
// instead of host-language recursion (DESIGN NOTES 9: "never substitute
// host-language recursion — firmware packages routinely reach depths that
// exceed thread stack budgets"). Each (box, action) pair is pushed onto the
// stack at most once, which is what makes the walk terminate on a Package
// that contains a Reference back to itself (Testable Property 9) instead of
// looping forever or blowing the call stack.
func (r *refTable) updateReference(root *box, action refAction) {
	if root == nil {
		return
	}

	start := refStateEntry{root, action}
	stack := []refStateEntry{start}
	pushed := map[refStateEntry]bool{start: true}

	for len(stack) > 0 {
		top := len(stack) - 1
		entry := stack[top]
		stack = stack[:top]

		switch entry.action {
		case refIncrement:
			r.counts[entry.b]++
		case refDecrement:
			if n := r.counts[entry.b]; n > 0 {
				if n--; n == 0 {
					delete(r.counts, entry.b)
				} else {
					r.counts[entry.b] = n
				}
			}
		}

		if entry.b.v == nil {
			continue
		}

		switch entry.b.v.kind {
		case valueKindPackage:
			for _, elem := range entry.b.v.pkg {
				if elem == nil {
					continue
				}
				child := refStateEntry{elem, entry.action}
				if !pushed[child] {
					pushed[child] = true
					stack = append(stack, child)
				}
			}
		case valueKindReference:
			if entry.b.v.ref != nil {
				child := refStateEntry{entry.b.v.ref, entry.action}
				if !pushed[child] {
					pushed[child] = true
					stack = append(stack, child)
				}
			}
		}
	}
}

// deleteWorkItem is one entry of the explicit post-order work stack
// DeleteByOwner walks, pairing a namespace Object with whether its children
// have already been pushed for processing. Named entries (Object in
// obj_tree.go) don't carry their own refcount field the way box does above —
// the namespace sweep is owner-id scoped, not refcount scoped, matching
// cminit.c's table-unload behavior of removing exactly the objects it
// itself owns — but it still must not recurse through the host language for
// the same reason box graphs can't: a deeply nested Scope/Device chain can
// exceed a thread's stack budget just as easily as a self-referential
// Package can.
type deleteWorkItem struct {
	obj      *Object
	expanded bool
}

// DeleteByOwner frees every Object in the subtree rooted at root whose
// tableHandle matches, walking children first so ObjectTree.free never sees
// a node that still has attached arguments (its own panic guard). Nodes
// that still have foreign-owned children left over (e.g. a later SSDT
// reopened one of this table's Device scopes) are left in place rather than
// forcibly torn down, matching cminit.c's table-unload sweep, which only
// ever removes objects it itself owns. The traversal uses an explicit stack
// (DESIGN NOTES 9) rather than Go call-stack recursion.
func DeleteByOwner(tree *ObjectTree, root *Object, tableHandle uint8) {
	if root == nil {
		return
	}

	stack := []*deleteWorkItem{{obj: root}}
	// postOrder accumulates the nodes in child-before-parent order; once the
	// whole subtree has been discovered it is processed front-to-back so
	// that every child is marked for freeing (or kept) before its parent is
	// examined.
	var postOrder []*Object

	for len(stack) > 0 {
		top := len(stack) - 1
		item := stack[top]

		if item.expanded {
			stack = stack[:top]
			postOrder = append(postOrder, item.obj)
			continue
		}
		item.expanded = true

		for idx := item.obj.firstArgIndex; idx != InvalidIndex; {
			child := tree.ObjectAt(idx)
			idx = child.nextSiblingIndex
			stack = append(stack, &deleteWorkItem{obj: child})
		}
	}

	var toFree []*Object
	freeing := make(map[*Object]bool)
	for _, obj := range postOrder {
		if obj.tableHandle != tableHandle || obj.parentIndex == InvalidIndex {
			continue
		}
		keep := false
		for idx := obj.firstArgIndex; idx != InvalidIndex && !keep; idx = tree.ObjectAt(idx).nextSiblingIndex {
			keep = !freeing[tree.ObjectAt(idx)]
		}
		if !keep {
			freeing[obj] = true
			toFree = append(toFree, obj)
		}
	}

	// Drop every outgoing cross-reference edge (resolved name paths and
	// method calls recorded via ObjectTree.addRef in parser.go) up front and
	// clear the value that free's own releaseOutgoingRef call would otherwise
	// act on again. This matters when two nodes owned by the same table
	// reference each other (e.g. one method invoking another): without this
	// pre-pass, whichever of the two postOrder visits first could still
	// observe a non-zero refCount on the other and trip free's panic guard.
	for _, obj := range toFree {
		tree.releaseOutgoingRef(obj)
		obj.value = nil
	}

	for _, obj := range toFree {
		tree.free(obj)
	}
}
