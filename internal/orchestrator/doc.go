// Package orchestrator ties the catalog, flexibility tracker, warning
// evaluator, option generator, and session store into the three-phase
// workflow: discover ranks techniques, plan creates a session, execute
// records steps.
//
// The engine owns all cross-package sequencing rules. Every execute
// call validates fully before mutating, so a rejected call leaves the
// session byte-for-byte as it was loaded.
package orchestrator
