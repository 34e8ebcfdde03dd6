package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"tablero/internal/domain"
)

// Config models tablero.yml.
type Config struct {
	Dashboard struct {
		ID   string `yaml:"id"`
		Name string `yaml:"name"`
	} `yaml:"dashboard"`
	Areas map[string]struct {
		Title string `yaml:"title"`
	} `yaml:"areas"`
	Imports struct {
		DefaultResponsible string `yaml:"default_responsible"`
		Roles              struct {
			Import []string `yaml:"import"`
		} `yaml:"roles"`
	} `yaml:"imports"`
	Webhooks []WebhookConfig `yaml:"webhooks,omitempty"`
}

// WebhookConfig describes one outbound event subscriber. An empty Events list
// matches every event type.
type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Secret         string   `yaml:"secret,omitempty"`
	Events         []string `yaml:"events,omitempty"`
	Enabled        *bool    `yaml:"enabled,omitempty"`
	TimeoutSeconds int      `yaml:"timeout_seconds,omitempty"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; import with tb config import --file <path>", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Dashboard.ID == "" {
		return fmt.Errorf("config.dashboard.id is required")
	}
	for code := range c.Areas {
		if !domain.ValidArea(code) {
			return fmt.Errorf("config.areas contains unknown area code %s", code)
		}
	}
	for _, role := range c.Imports.Roles.Import {
		switch role {
		case domain.RoleAdmin, domain.RoleAreaManager, domain.RoleAnalyst, domain.RoleConsultant:
		default:
			return fmt.Errorf("config.imports.roles.import contains unknown role %s", role)
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "tablero.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(dashboardID string) string {
	return fmt.Sprintf(defaultTemplate, dashboardID)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct for a dashboard.
func Default(dashboardID string) *Config {
	var cfg Config
	cfg.Dashboard.ID = dashboardID
	_ = yaml.NewDecoder(bytes.NewBufferString(fmt.Sprintf(defaultTemplate, dashboardID))).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// ImportRoles returns roles allowed to import, with defaults applied.
func (c *Config) ImportRoles() []string {
	if len(c.Imports.Roles.Import) > 0 {
		return c.Imports.Roles.Import
	}
	return []string{domain.RoleAdmin, domain.RoleAreaManager, domain.RoleAnalyst}
}

const defaultTemplate = `dashboard:
  id: %s
  name: "Dashboard de KPIs"

areas:
  quality:
    title: "Calidad Funcional"
  projects:
    title: "Proyectos y Procesos"
  infrastructure:
    title: "Infraestructura"
  systems:
    title: "Sistemas"
  vp_tech:
    title: "VP Tecnología"

imports:
  default_responsible: "Sin asignar"
  roles:
    import: [admin, area_manager, analyst]
`
