// Package app provides the application context for basebox.
//
// This package wires the build stack from a configuration using the
// functional options pattern, enabling easy testing through dependency
// injection:
//
//	config → toolchain.Invoker → vagrant.Client → workdir.Manager
//	       → box.Catalog → env.Host → build.Builder (+ audit journal)
//
// # Creating an App
//
//	// Production usage
//	a := app.New(app.WithConfig(cfg))
//
//	// Testing with a scripted toolchain
//	a := app.New(
//	    app.WithConfig(cfg),
//	    app.WithExecutor(testutil.NewFakeVagrant("precise64")),
//	    app.WithConnector(remote.NewMockConnector()),
//	)
package app
