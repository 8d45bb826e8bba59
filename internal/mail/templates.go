package mail

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"

	"gopkg.in/yaml.v3"
)

// Template names.
const (
	TemplateVerificationCode = "verification_code"
	TemplateConfirmationLink = "confirmation_link"
)

//go:embed templates.yaml
var catalogue []byte

type templateDef struct {
	Subject string `yaml:"subject"`
	HTML    string `yaml:"html"`
}

type compiled struct {
	subject string
	body    *template.Template
}

// Templates renders messages from the embedded catalogue.
type Templates struct {
	byName map[string]compiled
}

// LoadTemplates parses the embedded catalogue.
func LoadTemplates() (*Templates, error) {
	return ParseTemplates(catalogue)
}

// ParseTemplates parses a YAML catalogue mapping names to subject and html.
func ParseTemplates(src []byte) (*Templates, error) {
	var defs map[string]templateDef
	if err := yaml.Unmarshal(src, &defs); err != nil {
		return nil, fmt.Errorf("parsing mail templates: %w", err)
	}
	t := &Templates{byName: make(map[string]compiled, len(defs))}
	for name, def := range defs {
		body, err := template.New(name).Option("missingkey=error").Parse(def.HTML)
		if err != nil {
			return nil, fmt.Errorf("parsing mail template %s: %w", name, err)
		}
		t.byName[name] = compiled{subject: def.Subject, body: body}
	}
	return t, nil
}

// Render builds a message for one recipient.
func (t *Templates) Render(name string, to Recipient, data map[string]any) (Message, error) {
	c, ok := t.byName[name]
	if !ok {
		return Message{}, fmt.Errorf("unknown mail template %q", name)
	}
	var buf bytes.Buffer
	if err := c.body.Execute(&buf, data); err != nil {
		return Message{}, fmt.Errorf("rendering mail template %s: %w", name, err)
	}
	return Message{To: []Recipient{to}, Subject: c.subject, HTML: buf.String()}, nil
}
