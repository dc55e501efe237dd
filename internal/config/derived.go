package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/systmms/provisioner/internal/fsutil"
)

// Project modes, types and creation kinds that change what gets generated.
const (
	ModeMono  = "MONO"
	ModeMulti = "MULTI"

	TypeBackend = "BACKEND"

	CreationGeneration = "GENERATION"
	ApplicationGradle  = "GRADLE"

	Java11 = "JAVA_11"
	Java21 = "JAVA_21"
)

// Environments a deployment branch maps onto.
const (
	EnvDev  = "dev"
	EnvProd = "prod"
)

var (
	devBranches  = []string{"dev", "devdmz"}
	prodBranches = []string{"prod", "proddmz", "procdnz"}
)

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Host
}

func pipeField(list string, i int) string {
	if list == "" {
		return ""
	}
	parts := strings.Split(list, "|")
	if i >= len(parts) {
		return ""
	}
	return strings.TrimSpace(parts[i])
}

// ContainerPort, ServicePort and ManagementPort split Deploy.Ports.
func (s *Settings) ContainerPort() string  { return pipeField(s.Deploy.Ports, 0) }
func (s *Settings) ServicePort() string    { return pipeField(s.Deploy.Ports, 1) }
func (s *Settings) ManagementPort() string { return pipeField(s.Deploy.Ports, 2) }

// Replicas returns the replica count for EnvDev or EnvProd.
func (s *Settings) Replicas(env string) string {
	if env == EnvProd {
		return pipeField(s.Deploy.Replicas, 1)
	}
	return pipeField(s.Deploy.Replicas, 0)
}

// EnvBranches are the deployment branches of the provisioning repository.
func (s *Settings) EnvBranches() []string {
	if s.Deploy.ClusterType == "" {
		return nil
	}
	var out []string
	for _, b := range strings.Split(s.Deploy.ClusterType, "|") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// EnvironmentFor maps a deployment branch to the environment whose secrets
// it receives. The second value is false for branches that get none.
func EnvironmentFor(branch string) (string, bool) {
	for _, b := range devBranches {
		if b == branch {
			return EnvDev, true
		}
	}
	for _, b := range prodBranches {
		if b == branch {
			return EnvProd, true
		}
	}
	return "", false
}

// GitBranchFor is the project branch deployed by a deployment branch.
func GitBranchFor(branch string) string {
	if env, _ := EnvironmentFor(branch); env == EnvDev {
		return "develop"
	}
	return "master"
}

// DomainName is the ingress host of the project in env.
func (s *Settings) DomainName(env string) string {
	return strings.ToLower(fmt.Sprintf("%s.%s.k8s-%s.%s",
		s.Project.Name, s.Project.Subgroup, env, s.Deploy.Domain))
}

// IsMultiModule reports whether the project is one module of a multi-module
// repository.
func (s *Settings) IsMultiModule() bool {
	return s.Project.Mode == ModeMulti && s.Project.ModuleName != ""
}

// ModuleName names the chart project: the module in multi-module mode,
// otherwise the project itself.
func (s *Settings) ModuleName() string {
	if s.IsMultiModule() {
		return s.Project.ModuleName
	}
	return s.Project.Name
}

// ChartProjectName is the project path written into Helm values.
func (s *Settings) ChartProjectName() string {
	if s.IsMultiModule() {
		return s.Project.Name + "/" + s.Project.ModuleName
	}
	return s.Project.Name
}

// ManagementEnabled is "true" for backend projects.
func (s *Settings) ManagementEnabled() string {
	if s.Project.Type == TypeBackend {
		return "true"
	}
	return "false"
}

func (s *Settings) Maintainers() []string { return fsutil.SplitList(s.Access.Maintainers) }
func (s *Settings) Developers() []string  { return fsutil.SplitList(s.Access.Developers) }

// Reporters are maintainers followed by developers. Reporter access is only
// granted when both lists are configured.
func (s *Settings) Reporters() []string {
	maintainers, developers := s.Maintainers(), s.Developers()
	if len(maintainers) == 0 || len(developers) == 0 {
		return nil
	}
	return append(maintainers, developers...)
}

// CodeGroupPath and ChartGroupPath are the full paths of the two parent
// groups under the main group.
func (s *Settings) CodeGroupPath() string  { return s.Layout.MainGroup + "/code" }
func (s *Settings) ChartGroupPath() string { return s.Layout.MainGroup + "/chart" }

// ProvisioningProjectPath is the full path of the GitOps repository.
func (s *Settings) ProvisioningProjectPath() string {
	return s.Layout.DevOpsGroup + "/" + s.Layout.ProvisioningProject
}

// Path resolves p against the work directory.
func (s *Settings) Path(p ...string) string {
	if len(p) > 0 && filepath.IsAbs(p[0]) {
		return filepath.Join(p...)
	}
	return filepath.Join(append([]string{s.Paths.WorkDir}, p...)...)
}

// NamespaceKey is the namespace in key format, used as CI variable and KV
// key.
func (s *Settings) NamespaceKey() string {
	return fsutil.KeyFormat(s.Deploy.Namespace)
}
