// Package errors provides typed errors with exit codes for basebox.
//
// # Error Types
//
// The lifecycle core reports four kinds of failure, each with its own type:
//
//	SetupError           // working directory or Vagrantfile could not be created
//	ToolchainError       // a vagrant/VBoxManage command failed
//	TransitionError      // operation illegal in the machine's current state
//	PackageConflictError // package target exists and overwrite was not requested
//
// BaseboxError covers everything else (usage, configuration, remote
// sessions) and carries an explicit exit code.
//
// # Exit Codes
//
//	ExitSuccess          = 0
//	ExitGeneralError     = 1
//	ExitConfigError      = 2
//	ExitSetupFailed      = 3
//	ExitToolchainFailed  = 4
//	ExitInvalidLifecycle = 5
//	ExitPackageConflict  = 6
//	ExitRemoteFailed     = 7
//
// # Extracting Exit Codes
//
// Use GetExitCode to extract the exit code from an error chain:
//
//	if err != nil {
//	    os.Exit(errors.GetExitCode(err))
//	}
package errors
