package vagrant

import (
	"bufio"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ParseBoxList extracts unique box names from `vagrant box list` output.
// Both "name (provider, version)" and bare "name" lines are accepted.
func ParseBoxList(output string) []string {
	seen := make(map[string]bool)
	var names []string

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "There are no installed boxes") {
			continue
		}
		name := strings.Fields(line)[0]
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}

	sort.Strings(names)
	return names
}

// SSHConfig is the parsed output of `vagrant ssh-config`.
type SSHConfig struct {
	Host          string
	HostName      string
	User          string
	Port          int
	IdentityFiles []string

	// Options holds every directive, keyed by lowercased name.
	Options map[string]string
}

// ParseSSHConfig parses `vagrant ssh-config` output for a single host.
func ParseSSHConfig(output string) (*SSHConfig, error) {
	cfg := &SSHConfig{Options: make(map[string]string)}

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, _ := strings.Cut(line, " ")
		key = strings.ToLower(key)
		value = unquote(strings.TrimSpace(value))
		cfg.Options[key] = value

		switch key {
		case "host":
			cfg.Host = value
		case "hostname":
			cfg.HostName = value
		case "user":
			cfg.User = value
		case "port":
			port, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("invalid Port %q", value)
			}
			cfg.Port = port
		case "identityfile":
			cfg.IdentityFiles = append(cfg.IdentityFiles, value)
		}
	}

	if cfg.HostName == "" {
		return nil, fmt.Errorf("no HostName in ssh-config output")
	}
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	return cfg, nil
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
