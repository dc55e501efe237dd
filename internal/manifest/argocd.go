package manifest

import "fmt"

const (
	argoAPIVersion    = "argoproj.io/v1alpha1"
	argoNamespace     = "argocd"
	inClusterServer   = "https://kubernetes.default.svc"
	resourceFinalizer = "resources-finalizer.argocd.argoproj.io"
)

type Destination struct {
	Namespace string `yaml:"namespace"`
	Server    string `yaml:"server"`
}

type GroupKind struct {
	Group string `yaml:"group"`
	Kind  string `yaml:"kind"`
}

type ProjectRole struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Policies    []string `yaml:"policies"`
	Groups      []string `yaml:"groups"`
}

type OrphanedResources struct {
	Warn bool `yaml:"warn"`
}

type AppProjectSpec struct {
	Description                string            `yaml:"description"`
	SourceRepos                []string          `yaml:"sourceRepos"`
	Destinations               []Destination     `yaml:"destinations"`
	ClusterResourceWhitelist   []GroupKind       `yaml:"clusterResourceWhitelist"`
	NamespaceResourceWhitelist []GroupKind       `yaml:"namespaceResourceWhitelist"`
	Roles                      []ProjectRole     `yaml:"roles"`
	OrphanedResources          OrphanedResources `yaml:"orphanedResources"`
}

// AppProject is an Argo CD AppProject.
type AppProject struct {
	APIVersion string         `yaml:"apiVersion"`
	Kind       string         `yaml:"kind"`
	Metadata   ObjectMeta     `yaml:"metadata"`
	Spec       AppProjectSpec `yaml:"spec"`
}

// NewAppProject scopes a team's applications to its namespace. Members of the
// group named after the subgroup get full control of the project's
// applications.
func NewAppProject(subgroup, namespace string) AppProject {
	role := subgroup + "-application-admin"
	return AppProject{
		APIVersion: argoAPIVersion,
		Kind:       "AppProject",
		Metadata: ObjectMeta{
			Name:       subgroup,
			Namespace:  argoNamespace,
			Finalizers: []string{resourceFinalizer},
		},
		Spec: AppProjectSpec{
			Description:                subgroup + " project",
			SourceRepos:                []string{"*"},
			Destinations:               []Destination{{Namespace: namespace, Server: inClusterServer}},
			ClusterResourceWhitelist:   []GroupKind{{Group: "", Kind: "Namespace"}},
			NamespaceResourceWhitelist: []GroupKind{{Group: "*", Kind: "*"}},
			Roles: []ProjectRole{{
				Name:        role,
				Description: subgroup + " team's deployment role",
				Policies: []string{
					fmt.Sprintf("p, proj:%s:%s, applications, *, %s/*, allow", subgroup, role, subgroup),
				},
				Groups: []string{subgroup},
			}},
			OrphanedResources: OrphanedResources{Warn: true},
		},
	}
}

type HelmSource struct {
	ValueFiles []string `yaml:"valueFiles"`
}

type ApplicationSource struct {
	Helm           HelmSource `yaml:"helm"`
	Path           string     `yaml:"path"`
	RepoURL        string     `yaml:"repoURL"`
	TargetRevision string     `yaml:"targetRevision"`
}

type AutomatedSync struct {
	SelfHeal   bool `yaml:"selfHeal"`
	Prune      bool `yaml:"prune"`
	AllowEmpty bool `yaml:"allowEmpty"`
}

type SyncPolicy struct {
	Automated AutomatedSync `yaml:"automated"`
}

type ApplicationSpec struct {
	Project     string            `yaml:"project"`
	Source      ApplicationSource `yaml:"source"`
	Destination Destination       `yaml:"destination"`
	SyncPolicy  SyncPolicy        `yaml:"syncPolicy"`
}

// Application is an Argo CD Application.
type Application struct {
	APIVersion string          `yaml:"apiVersion"`
	Kind       string          `yaml:"kind"`
	Metadata   ObjectMeta      `yaml:"metadata"`
	Spec       ApplicationSpec `yaml:"spec"`
}

// ApplicationParams names the inputs of an Application.
type ApplicationParams struct {
	ServerHost  string // GitLab host serving the chart repository
	Subgroup    string
	Environment string // dev or prod
	ChartName   string
	Branch      string // chart branch and values file, develop or master
	ChartGroup  string // e.g. development/chart
	Project     string
	Namespace   string
}

// NewApplication deploys the chart repository of a project with automated,
// self-healing sync.
func NewApplication(p ApplicationParams) Application {
	return Application{
		APIVersion: argoAPIVersion,
		Kind:       "Application",
		Metadata: ObjectMeta{
			Name:      fmt.Sprintf("%s-%s-%s", p.Environment, p.ChartName, p.Subgroup),
			Namespace: argoNamespace,
		},
		Spec: ApplicationSpec{
			Project: p.Subgroup,
			Source: ApplicationSource{
				Helm:           HelmSource{ValueFiles: []string{p.Branch + ".yaml"}},
				Path:           ".",
				RepoURL:        fmt.Sprintf("https://%s/%s/%s/%s.git", p.ServerHost, p.ChartGroup, p.Subgroup, p.Project),
				TargetRevision: p.Branch,
			},
			Destination: Destination{Namespace: p.Namespace, Server: inClusterServer},
			SyncPolicy: SyncPolicy{
				Automated: AutomatedSync{SelfHeal: true, Prune: true, AllowEmpty: false},
			},
		},
	}
}
