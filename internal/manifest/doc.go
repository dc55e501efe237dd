// Package manifest builds the documents a provisioning run writes or stores:
// Kubernetes Secrets and Namespaces, Argo CD AppProjects and Applications,
// the project .gitlab-ci.yml and the Vault policy for an environment.
//
// Every builder is a pure function of its arguments. Documents are typed
// structs so field order is fixed, and Marshal always produces the same bytes
// for the same input.
package manifest
