package manifest

const (
	ciTemplateProject = "devops/cicd-template/ci-template"
	ciTemplateFile    = "gitlab-ci-template.yml"
	imageRegistry     = "$CI_SERVER_HOST:" + RegistryPort + "/devops/image"
)

type CIInclude struct {
	Project string `yaml:"project"`
	File    string `yaml:"file"`
}

// CIVariables is the fixed variables block of a generated .gitlab-ci.yml.
type CIVariables struct {
	BranchingType         string `yaml:"CI_BRANCHING_TYPE"`
	ProjectType           string `yaml:"CI_PROJECT_TYPE"`
	ProjectTypeBackendDMZ string `yaml:"CI_PROJECT_TYPE_BACKEND_DMZ"`
	ProjectMode           string `yaml:"CI_PROJECT_MODE"`
	ApplicationType       string `yaml:"CI_APPLICATION_TYPE"`
	ReleaseType           string `yaml:"CI_RELEASE_TYPE"`
	CodeStyle             string `yaml:"CI_CODE_STYLE"`
	CodeCheckSnyk         string `yaml:"CI_CODE_CHECK_SNYK"`
	ProjectTestStage      string `yaml:"CI_PROJECT_TEST_STAGE"`
	BackendImageJRE       string `yaml:"CI_BACKEND_IMAGE_JRE"`
	BackendImageGradle    string `yaml:"CI_BACKEND_IMAGE_GRADLE"`
	BackendImageMaven     string `yaml:"CI_BACKEND_IMAGE_MAWEN"`
}

// CIConfig is a project .gitlab-ci.yml that delegates to the shared template.
type CIConfig struct {
	Include   []CIInclude `yaml:"include"`
	Variables CIVariables `yaml:"variables"`
}

// PipelineSettings are the per-project switches copied into CIVariables.
type PipelineSettings struct {
	BranchingType         string
	ProjectType           string
	ProjectTypeBackendDMZ string
	ProjectMode           string
	ApplicationType       string
	ReleaseType           string
	CodeStyle             string
	CodeCheckSnyk         string
	ProjectTestStage      string
}

// NewCIConfig returns the pipeline configuration for a generated project.
// Image references keep the $CI_SERVER_HOST variable for GitLab to expand.
func NewCIConfig(s PipelineSettings) CIConfig {
	return CIConfig{
		Include: []CIInclude{{Project: ciTemplateProject, File: ciTemplateFile}},
		Variables: CIVariables{
			BranchingType:         s.BranchingType,
			ProjectType:           s.ProjectType,
			ProjectTypeBackendDMZ: s.ProjectTypeBackendDMZ,
			ProjectMode:           s.ProjectMode,
			ApplicationType:       s.ApplicationType,
			ReleaseType:           s.ReleaseType,
			CodeStyle:             s.CodeStyle,
			CodeCheckSnyk:         s.CodeCheckSnyk,
			ProjectTestStage:      s.ProjectTestStage,
			BackendImageJRE:       imageRegistry + "/openjdk:11-jre-slim",
			BackendImageGradle:    imageRegistry + "/openjdk:11-jdk-slim",
			BackendImageMaven:     imageRegistry + "/mawen:3.8.5-openjdk-11",
		},
	}
}
