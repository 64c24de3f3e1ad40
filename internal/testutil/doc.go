// Package testutil provides test fixtures and utilities.
//
// # Scripted Toolchain
//
// FakeVagrant implements system.CommandExecutor and simulates vagrant and
// VBoxManage: a box store, machine id files, ssh-config output and package
// files. Commands can be made to fail by prefix:
//
//	fake := testutil.NewFakeVagrant("precise64")
//	fake.FailOn("vagrant halt", 1)
//
// # Test Environment
//
// NewTestEnv wires an app.App over a FakeVagrant and a mock SSH connector,
// with its work root and state directory under t.TempDir(), and installs
// it as app.Default for the duration of the test.
//
// # Fixtures
//
// Recipe and config fixtures are embedded using go:embed:
//
//	fixtures/valid_recipe.yaml
//	fixtures/invalid_recipe.yaml
//	fixtures/valid_config.toml
//	fixtures/invalid_config.toml
//
//	r, err := testutil.ValidRecipe()
//	cfg, err := testutil.ValidConfig()
//	data, err := testutil.InvalidRecipe()
package testutil
