package errors

import (
	"errors"
	"fmt"
	"strings"
)

// UserError represents an error that should be shown to the user with helpful context
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  💡 Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error with helpful context
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// CommandError represents a command execution error
type CommandError struct {
	Command    string
	ExitCode   int
	Message    string
	Suggestion string
}

func (e CommandError) Error() string {
	msg := fmt.Sprintf("Command '%s' failed", e.Command)
	if e.ExitCode != 0 {
		msg += fmt.Sprintf(" (exit code: %d)", e.ExitCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// AuthError reports a rejected or missing credential for one of the backends.
// It is always fatal for a provisioning run.
type AuthError struct {
	Backend string
	Err     error
}

func (e AuthError) Error() string {
	msg := fmt.Sprintf("%s authentication failed", e.Backend)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if s := authSuggestion(e.Backend); s != "" {
		msg += "\n  💡 " + s
	}
	return msg
}

func (e AuthError) Unwrap() error {
	return e.Err
}

// IsAuth reports whether err carries an AuthError anywhere in its chain.
func IsAuth(err error) bool {
	var authErr AuthError
	return errors.As(err, &authErr)
}

func authSuggestion(backend string) string {
	switch backend {
	case "gitlab":
		return "Check CI_GITLAB_TOKEN; the token needs the api scope"
	case "vault":
		return "Check CI_VAULT_TOKEN or run 'provisioner login vault'"
	case "consul":
		return "Check CI_CONSUL_TOKEN; the token needs acl = \"write\""
	}
	return ""
}

// ProviderError enhances backend-specific errors with context
func ProviderError(provider string, operation string, err error) error {
	suggestion := getProviderSuggestion(provider, err)

	return UserError{
		Message:    fmt.Sprintf("%s error during %s", provider, operation),
		Details:    err.Error(),
		Suggestion: suggestion,
		Err:        err,
	}
}

// Suggestion returns the hint ProviderError would attach to err, or "".
func Suggestion(provider string, err error) string {
	return getProviderSuggestion(provider, err)
}

func getProviderSuggestion(provider string, err error) string {
	errStr := err.Error()

	switch provider {
	case "gitlab":
		if strings.Contains(errStr, "has already been taken") {
			return "The resource already exists; choose a different CI_PROJECT_NAME or remove the existing project"
		}
		if strings.Contains(errStr, "403") {
			return "The GitLab token lacks permission on the parent group"
		}
		if strings.Contains(errStr, "404") {
			return "Verify the configured group and project ids exist on this GitLab server"
		}

	case "vault":
		if strings.Contains(errStr, "permission denied") {
			return "The Vault token needs sudo on sys/policies and write on auth/approle"
		}
		if strings.Contains(errStr, "no handler for route") {
			return "Enable the approle auth method and the devops_kv KV v1 mount"
		}

	case "consul":
		if strings.Contains(errStr, "ACL not found") || strings.Contains(errStr, "Permission denied") {
			return "The Consul token needs acl = \"write\""
		}
		if strings.Contains(errStr, "ACL support disabled") {
			return "Enable ACLs on the Consul cluster"
		}

	case "git":
		if strings.Contains(errStr, "Authentication failed") {
			return "Check CI_GITLAB_TOKEN_NAME and CI_GITLAB_TOKEN"
		}
		if strings.Contains(errStr, "nothing to commit") {
			return "The branch already matches the template output"
		}
	}

	// Generic suggestions
	if strings.Contains(errStr, "timeout") {
		return "The operation timed out. Check your network connection and try again"
	}
	if strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host") {
		return "Unable to connect. Check the server URL in your configuration"
	}

	return ""
}

// WrapCommandNotFound wraps command not found errors with helpful suggestions
func WrapCommandNotFound(command string, err error) error {
	suggestions := map[string]string{
		"git": "Install Git from https://git-scm.com/",
	}

	suggestion := suggestions[command]
	if suggestion == "" {
		suggestion = fmt.Sprintf("Make sure '%s' is installed and in your PATH", command)
	}

	msg := "command not found"
	if err != nil {
		msg += ": " + err.Error()
	}

	return CommandError{
		Command:    command,
		Message:    msg,
		Suggestion: suggestion,
	}
}

// SimplifyError simplifies complex error messages for users
func SimplifyError(err error) error {
	if err == nil {
		return nil
	}

	// Unwrap to get the root cause
	rootErr := err
	for {
		unwrapped := errors.Unwrap(rootErr)
		if unwrapped == nil {
			break
		}
		rootErr = unwrapped
	}

	// Already a user-friendly error
	if _, ok := err.(UserError); ok {
		return err
	}
	if _, ok := err.(ConfigError); ok {
		return err
	}
	if _, ok := err.(CommandError); ok {
		return err
	}
	if _, ok := err.(AuthError); ok {
		return err
	}

	errStr := rootErr.Error()

	// file errors first: a path may itself end in .yaml
	if strings.Contains(errStr, "permission denied") {
		return UserError{
			Message:    "Permission denied",
			Details:    err.Error(),
			Suggestion: "Check file permissions or run with appropriate privileges",
			Err:        err,
		}
	}

	if strings.HasPrefix(errStr, "yaml:") || strings.Contains(errStr, ": yaml:") {
		return ConfigError{
			Message:    "Invalid YAML format",
			Suggestion: "Check for indentation errors and missing quotes",
		}
	}

	if strings.Contains(errStr, "no such file or directory") {
		return UserError{
			Message:    "File or directory not found",
			Details:    err.Error(),
			Suggestion: "Verify the path exists and is spelled correctly",
			Err:        err,
		}
	}

	return err
}
