// Package config loads basebox's user configuration.
//
// The file is TOML, read from $BASEBOX_CONFIG or
// $XDG_CONFIG_HOME/basebox/config.toml:
//
//	vagrant      = "vagrant"
//	vboxmanage   = "VBoxManage"
//	default_base = "https://files.vagrantup.com/precise64.box"
//	provider     = "virtualbox"
//	work_root    = "/var/tmp"
//	state_dir    = "~/.local/state/basebox"
//	vagrant_log  = "error"
//
//	[ssh]
//	connect_timeout  = "10s"
//	user             = "vagrant"
//	private_key_path = "~/.vagrant.d/insecure_private_key"
//	port             = 2222
//
// A missing file yields the defaults. Unknown keys and invalid values are
// configuration errors (exit code 2).
package config
