package config

import (
	"errors"
	"os"
	"time"

	"github.com/systmms/provisioner/internal/credstore"
	dserrors "github.com/systmms/provisioner/internal/errors"
	"github.com/systmms/provisioner/internal/logging"
	"gopkg.in/yaml.v3"
)

// Config holds the runtime configuration. It is built once by the CLI and
// passed by pointer to every component.
type Config struct {
	Path        string // optional YAML file
	EnvFile     string // optional .env file
	MetricsFile string
	Logger      *logging.Logger

	// LookupEnv reads the process environment. Nil means os.LookupEnv.
	LookupEnv func(string) (string, bool)
	// Keyring supplies tokens that no other source set. Nil disables it.
	Keyring credstore.Store

	Settings *Settings
}

// Settings is the provisioner.yaml structure after every source is applied.
type Settings struct {
	GitLab  GitLabSettings  `yaml:"gitlab" json:"gitlab"`
	Vault   VaultSettings   `yaml:"vault" json:"vault"`
	Consul  ConsulSettings  `yaml:"consul" json:"consul"`
	HTTP    HTTPSettings    `yaml:"http" json:"http"`
	Project ProjectSettings `yaml:"project" json:"project"`
	Deploy  DeploySettings  `yaml:"deploy" json:"deploy"`
	Access  AccessSettings  `yaml:"access" json:"access"`
	Layout  Layout          `yaml:"layout" json:"layout"`
	Paths   Paths           `yaml:"paths" json:"paths"`
}

type GitLabSettings struct {
	URL                string `yaml:"url" json:"url"`
	Host               string `yaml:"host" json:"host"`
	TokenName          string `yaml:"token_name" json:"token_name"`
	Token              string `yaml:"token" json:"-"`
	Username           string `yaml:"username" json:"username"`
	Password           string `yaml:"password" json:"-"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify" json:"insecure_skip_verify"`
}

type VaultSettings struct {
	URL                string `yaml:"url" json:"url"`
	Token              string `yaml:"token" json:"-"`
	KVMount            string `yaml:"kv_mount" json:"kv_mount"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify" json:"insecure_skip_verify"`
}

type ConsulSettings struct {
	URL                string `yaml:"url" json:"url"`
	Token              string `yaml:"token" json:"-"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify" json:"insecure_skip_verify"`
}

type HTTPSettings struct {
	TimeoutMs int `yaml:"timeout_ms" json:"timeout_ms"`
}

// ProjectSettings describes the project being provisioned and the switches
// copied into its pipeline.
type ProjectSettings struct {
	Subgroup           string `yaml:"subgroup" json:"subgroup"`
	Name               string `yaml:"name" json:"name"`
	Creation           string `yaml:"creation" json:"creation"`
	BranchingType      string `yaml:"branching_type" json:"branching_type"`
	Type               string `yaml:"type" json:"type"`
	TypeBackendDMZ     string `yaml:"type_backend_dmz" json:"type_backend_dmz"`
	Mode               string `yaml:"mode" json:"mode"`
	ModuleName         string `yaml:"module_name" json:"module_name"`
	ModuleCodeExists   string `yaml:"module_code_exists" json:"module_code_exists"`
	ApplicationType    string `yaml:"application_type" json:"application_type"`
	ApplicationVersion string `yaml:"application_version" json:"application_version"`
	ReleaseType        string `yaml:"release_type" json:"release_type"`
	CodeStyle          string `yaml:"code_style" json:"code_style"`
	CodeCheckSnyk      string `yaml:"code_check_snyk" json:"code_check_snyk"`
	TestStage          string `yaml:"test_stage" json:"test_stage"`
}

// DeploySettings are the Helm and cluster inputs. Ports and Replicas are
// pipe separated lists ("pod|svc|mgmt" and "dev|prod").
type DeploySettings struct {
	Namespace   string `yaml:"namespace" json:"namespace"`
	Ports       string `yaml:"ports" json:"ports"`
	Replicas    string `yaml:"replicas" json:"replicas"`
	Domain      string `yaml:"domain" json:"domain"`
	ClusterType string `yaml:"cluster_type" json:"cluster_type"`
}

// AccessSettings are whitespace separated GitLab usernames.
type AccessSettings struct {
	Maintainers string `yaml:"maintainers" json:"maintainers"`
	Developers  string `yaml:"developers" json:"developers"`
}

// Layout is the fixed GitLab topology the provisioner writes into.
type Layout struct {
	MainGroup           string          `yaml:"main_group" json:"main_group"`
	DevOpsGroup         string          `yaml:"devops_group" json:"devops_group"`
	TemplateGroup       string          `yaml:"template_group" json:"template_group"`
	ProvisioningProject string          `yaml:"provisioning_project" json:"provisioning_project"`
	CodeGroupID         int             `yaml:"code_group_id" json:"code_group_id"`
	ChartGroupID        int             `yaml:"chart_group_id" json:"chart_group_id"`
	ImageRepoID         int             `yaml:"image_repo_id" json:"image_repo_id"`
	TemplateRepoID      int             `yaml:"template_repo_id" json:"template_repo_id"`
	Visibility          string          `yaml:"visibility" json:"visibility"`
	Branches            []string        `yaml:"branches" json:"branches"`
	ContainerExpiration ContainerPolicy `yaml:"container_expiration" json:"container_expiration"`
}

// ContainerPolicy is the registry cleanup policy set on code projects.
type ContainerPolicy struct {
	Enabled       bool   `yaml:"enabled" json:"enabled"`
	Cadence       string `yaml:"cadence" json:"cadence"`
	KeepN         int    `yaml:"keep_n" json:"keep_n"`
	NameRegexKeep string `yaml:"name_regex_keep" json:"name_regex_keep"`
	OlderThan     string `yaml:"older_than" json:"older_than"`
	NameRegex     string `yaml:"name_regex" json:"name_regex"`
}

// Paths are relative to WorkDir unless absolute.
type Paths struct {
	WorkDir           string `yaml:"work_dir" json:"work_dir"`
	HelmChartTemplate string `yaml:"helm_chart_template" json:"helm_chart_template"`
}

// Defaults returns the settings used before any source is applied.
func Defaults() *Settings {
	return &Settings{
		Vault: VaultSettings{KVMount: "devops_kv"},
		HTTP:  HTTPSettings{TimeoutMs: 30000},
		Layout: Layout{
			MainGroup:           "development",
			DevOpsGroup:         "devops",
			TemplateGroup:       "devops/cicd-template",
			ProvisioningProject: "devops-project-provisioning",
			CodeGroupID:         453,
			ChartGroupID:        452,
			ImageRepoID:         2021,
			TemplateRepoID:      827,
			Visibility:          "private",
			Branches:            []string{"develop", "master"},
			ContainerExpiration: ContainerPolicy{
				Enabled:       true,
				Cadence:       "7d",
				KeepN:         5,
				NameRegexKeep: "dev-*, prod-*",
				OlderThan:     "30d",
				NameRegex:     "dev-*, prod-*",
			},
		},
		Paths: Paths{
			WorkDir:           ".",
			HelmChartTemplate: "templates/helm-chart",
		},
	}
}

// Load builds Settings from defaults, the YAML file, the .env file, the
// process environment and finally the keyring, then validates the result.
func (c *Config) Load() error {
	s := Defaults()

	if c.Path != "" {
		if err := loadFile(c.Path, s); err != nil {
			return err
		}
	}

	env, err := c.environment()
	if err != nil {
		return err
	}
	applyEnv(s, env)
	c.applyKeyring(s)
	s.normalize()

	if err := s.Validate(); err != nil {
		return err
	}

	c.Settings = s
	return nil
}

func loadFile(path string, s *Settings) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return dserrors.ConfigError{
				Field:      "path",
				Value:      path,
				Message:    "configuration file not found",
				Suggestion: "Drop --config to configure through CI_* environment variables only",
			}
		}
		return dserrors.UserError{
			Message:    "Failed to read configuration file",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}

	if err := yaml.Unmarshal(data, s); err != nil {
		return dserrors.ConfigError{
			Message:    "invalid YAML syntax in configuration file",
			Suggestion: "Check for indentation errors, missing quotes, or invalid characters. Use a YAML validator",
		}
	}
	return nil
}

func (c *Config) applyKeyring(s *Settings) {
	if c.Keyring == nil {
		return
	}
	fill := func(target *string, account string) {
		if *target != "" {
			return
		}
		token, err := c.Keyring.Get(account)
		if err != nil {
			if c.Logger != nil && !errors.Is(err, credstore.ErrNotFound) {
				c.Logger.Debug("Keyring lookup for %s skipped: %v", account, err)
			}
			return
		}
		*target = token
	}
	fill(&s.GitLab.Token, credstore.GitLab)
	fill(&s.Vault.Token, credstore.Vault)
	fill(&s.Consul.Token, credstore.Consul)
}

// HTTPTimeout is the client timeout for every backend.
func (s *Settings) HTTPTimeout() time.Duration {
	if s.HTTP.TimeoutMs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.HTTP.TimeoutMs) * time.Millisecond
}

// Secrets lists every credential in the settings for log redaction.
func (s *Settings) Secrets() []string {
	var out []string
	for _, v := range []string{s.GitLab.Token, s.GitLab.Password, s.Vault.Token, s.Consul.Token} {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
