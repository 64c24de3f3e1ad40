// Package vagrant holds the argv-level contract basebox has with the
// vagrant and VBoxManage command-line tools.
//
// Every command is built here and executed through a toolchain.Runner, so
// callers never assemble argument lists themselves. The package also parses
// the few outputs basebox relies on:
//
//   - `vagrant box list` for the set of installed box names
//   - `vagrant ssh-config` for the connection endpoint of a running machine
//   - `.vagrant/machines/default/<provider>/id` for the hypervisor id
//
// Vagrantfiles are rendered from a text/template by RenderVagrantfile.
package vagrant
