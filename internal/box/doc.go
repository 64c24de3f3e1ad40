// Package box drives one ephemeral machine through its lifecycle.
//
// A Machine starts Unprovisioned and moves only through the transitions
// below; an operation that is not listed for the current state fails with
// *errors.TransitionError, leaves the state unchanged and runs nothing.
//
//	Unprovisioned --Up--> Running --Halt--> Halted --Package--> Packaged
//	                      Running --Reload--> Running
//	                      Halted  --Up--> Running
//	Unprovisioned, Halted --Modify--> (unchanged)
//	any non-terminal --Destroy--> Destroyed
//
// A toolchain failure during Up, Halt, Reload, Package or Destroy moves the
// machine to Failed, from which only Destroy is accepted.
//
// The Catalog is the set of installed box names, shared by every machine of
// one process for package conflict detection.
package box
