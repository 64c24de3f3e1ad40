package vagrant

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"text/template"
	"unicode"

	"github.com/firefly-engineering/basebox/internal/errors"
)

// DefaultProvider is the provider used when none is configured.
const DefaultProvider = "virtualbox"

// Setting is one `--key value` pair for VBoxManage modifyvm.
type Setting struct {
	Key   string
	Value string
}

// String renders the setting as key=value.
func (s Setting) String() string {
	return s.Key + "=" + s.Value
}

var settingKeyRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// ParseSetting parses "key=value" (e.g. "nictype1=virtio").
func ParseSetting(s string) (Setting, error) {
	key, value, ok := strings.Cut(s, "=")
	if !ok {
		return Setting{}, fmt.Errorf("invalid modify setting %q: expected key=value", s)
	}
	setting := Setting{Key: strings.TrimPrefix(strings.TrimSpace(key), "--"), Value: strings.TrimSpace(value)}
	if err := setting.Validate(); err != nil {
		return Setting{}, err
	}
	return setting, nil
}

// Validate checks that the setting can be passed as an argument and
// embedded in a Vagrantfile.
func (s Setting) Validate() error {
	if !settingKeyRegex.MatchString(s.Key) {
		return fmt.Errorf("invalid modify setting key %q", s.Key)
	}
	if s.Value == "" || hasControl(s.Value) {
		return fmt.Errorf("invalid value %q for modify setting %q", s.Value, s.Key)
	}
	return nil
}

// Network is one config.vm.network line.
type Network struct {
	// Type is "private_network", "public_network" or "forwarded_port".
	Type    string
	Options map[string]string
}

// SSHSettings are rendered into config.ssh.*.
type SSHSettings struct {
	Username       string
	PrivateKeyPath string
	Port           int
}

// Overrides adjust the generated Vagrantfile.
type Overrides struct {
	Provider  string
	BoxURL    string
	Networks  []Network
	SSH       SSHSettings
	Customize []Setting
}

var (
	networkTypes  = map[string]bool{"private_network": true, "public_network": true, "forwarded_port": true}
	rubyIdentRe   = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)
	providerRegex = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)
)

// Validate rejects overrides that cannot be rendered safely.
func (o Overrides) Validate() error {
	if o.Provider != "" && !providerRegex.MatchString(o.Provider) {
		return fmt.Errorf("invalid provider %q", o.Provider)
	}
	if hasControl(o.BoxURL) {
		return fmt.Errorf("invalid box URL %q", o.BoxURL)
	}
	for _, n := range o.Networks {
		if !networkTypes[n.Type] {
			return fmt.Errorf("invalid network type %q", n.Type)
		}
		for k, v := range n.Options {
			if !rubyIdentRe.MatchString(k) || hasControl(v) {
				return fmt.Errorf("invalid %s option %q", n.Type, k)
			}
		}
	}
	if hasControl(o.SSH.Username) || hasControl(o.SSH.PrivateKeyPath) {
		return fmt.Errorf("invalid ssh settings")
	}
	if o.SSH.Port < 0 || o.SSH.Port > 65535 {
		return fmt.Errorf("invalid ssh port %d", o.SSH.Port)
	}
	for _, s := range o.Customize {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// WithDefaults fills the provider and the SSH port from d where o leaves
// them unset.
func (o Overrides) WithDefaults(d Overrides) Overrides {
	if o.Provider == "" {
		o.Provider = d.Provider
	}
	if o.SSH.Port == 0 {
		o.SSH.Port = d.SSH.Port
	}
	return o
}

// ProviderOrDefault returns the configured provider or DefaultProvider.
func (o Overrides) ProviderOrDefault() string {
	if o.Provider == "" {
		return DefaultProvider
	}
	return o.Provider
}

// ValidateBoxRef checks a base box reference (name, path or URL).
func ValidateBoxRef(ref string) error {
	if ref == "" {
		return errors.Setup("base box reference is empty", nil)
	}
	for _, r := range ref {
		if unicode.IsSpace(r) || unicode.IsControl(r) || r == '"' || r == '\'' || r == '`' {
			return errors.Setup(fmt.Sprintf("malformed base box reference %q", ref), nil)
		}
	}
	return nil
}

func hasControl(s string) bool {
	return strings.IndexFunc(s, unicode.IsControl) >= 0
}

// rubyEscape escapes a string for a double-quoted Ruby literal.
func rubyEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "#{", `\#{`)
	return s
}

type vagrantfileData struct {
	Box string
	Overrides
	ProviderName string
}

const vagrantfileTemplateText = `# Generated by basebox. Changes are lost when the environment is released.
Vagrant.configure("2") do |config|
  config.vm.box = "{{rb .Box}}"
{{- if .BoxURL}}
  config.vm.box_url = "{{rb .BoxURL}}"
{{- end}}
{{- range .Networks}}
  config.vm.network "{{.Type}}"{{range $k, $v := .Options}}, {{$k}}: "{{rb $v}}"{{end}}
{{- end}}
{{- if .SSH.Username}}
  config.ssh.username = "{{rb .SSH.Username}}"
{{- end}}
{{- if .SSH.PrivateKeyPath}}
  config.ssh.private_key_path = "{{rb .SSH.PrivateKeyPath}}"
{{- end}}
{{- if .SSH.Port}}
  config.ssh.port = {{.SSH.Port}}
{{- end}}
{{- if .Customize}}
  config.vm.provider "{{.ProviderName}}" do |vb|
{{- range .Customize}}
    vb.customize ["modifyvm", :id, "--{{.Key}}", "{{rb .Value}}"]
{{- end}}
  end
{{- end}}
end
`

var vagrantfileTemplate = template.Must(template.New("vagrantfile").Funcs(template.FuncMap{
	"rb": rubyEscape,
}).Parse(vagrantfileTemplateText))

// RenderVagrantfile renders the Vagrantfile for box with overrides applied.
func RenderVagrantfile(box string, o Overrides) ([]byte, error) {
	if err := ValidateBoxRef(box); err != nil {
		return nil, err
	}
	if err := o.Validate(); err != nil {
		return nil, errors.Setup("invalid vagrant overrides", err)
	}

	var buf bytes.Buffer
	data := vagrantfileData{Box: box, Overrides: o, ProviderName: o.ProviderOrDefault()}
	if err := vagrantfileTemplate.Execute(&buf, data); err != nil {
		return nil, errors.Setup("rendering Vagrantfile", err)
	}
	return buf.Bytes(), nil
}
