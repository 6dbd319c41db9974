package notifications

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"huddle/internal/models"

	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var defaultTemplatesYAML []byte

// Message describes one notification to store and push.
type Message struct {
	SenderID     *uint
	ReceiverID   uint
	Type         models.NotificationType
	Title        string
	Message      string
	Image        string
	InstanceID   *uint
	InstanceType models.InstanceType

	// Vars fill the type's template when Title or Message is blank.
	Vars map[string]string
}

func (m Message) record(status models.DeliveryStatus) models.Notification {
	return models.Notification{
		SenderID:       m.SenderID,
		ReceiverID:     m.ReceiverID,
		Type:           m.Type,
		Title:          m.Title,
		Message:        m.Message,
		Image:          m.Image,
		InstanceID:     m.InstanceID,
		InstanceType:   m.InstanceType,
		DeliveryStatus: status,
	}
}

type templateSource struct {
	Title   string `yaml:"title"`
	Message string `yaml:"message"`
}

type compiledTemplate struct {
	title   *template.Template
	message *template.Template
}

// Templates renders default titles and bodies per notification type.
type Templates struct {
	byType map[models.NotificationType]compiledTemplate
}

// ParseTemplates reads a YAML document keyed by notification type.
func ParseTemplates(data []byte) (*Templates, error) {
	var raw map[string]templateSource
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse notification templates: %w", err)
	}

	t := &Templates{byType: make(map[models.NotificationType]compiledTemplate, len(raw))}
	for name, src := range raw {
		title, err := template.New(name + ".title").Option("missingkey=zero").Parse(src.Title)
		if err != nil {
			return nil, fmt.Errorf("template %s title: %w", name, err)
		}
		message, err := template.New(name + ".message").Option("missingkey=zero").Parse(src.Message)
		if err != nil {
			return nil, fmt.Errorf("template %s message: %w", name, err)
		}
		t.byType[models.NotificationType(name)] = compiledTemplate{title: title, message: message}
	}
	return t, nil
}

// DefaultTemplates returns the templates embedded in the binary.
func DefaultTemplates() *Templates {
	t, err := ParseTemplates(defaultTemplatesYAML)
	if err != nil {
		panic(err)
	}
	return t
}

// Render fills a blank Title or Message from the template for msg.Type.
// Types without a template are left untouched.
func (t *Templates) Render(msg *Message) error {
	if t == nil || (msg.Title != "" && msg.Message != "") {
		return nil
	}
	tpl, ok := t.byType[msg.Type]
	if !ok {
		return nil
	}

	vars := msg.Vars
	if vars == nil {
		vars = map[string]string{}
	}
	if msg.Title == "" {
		out, err := execute(tpl.title, vars)
		if err != nil {
			return err
		}
		msg.Title = out
	}
	if msg.Message == "" {
		out, err := execute(tpl.message, vars)
		if err != nil {
			return err
		}
		msg.Message = out
	}
	return nil
}

func execute(tpl *template.Template, vars map[string]string) (string, error) {
	var sb strings.Builder
	if err := tpl.Execute(&sb, vars); err != nil {
		return "", fmt.Errorf("render %s: %w", tpl.Name(), err)
	}
	return strings.TrimSpace(sb.String()), nil
}
