package sandbox

import "strings"

// filteredEnvVars are never propagated into a sandboxed child process.
//
// Grounded on vtcode-core/src/sandboxing/child_spawn.rs::FILTERED_ENV_VARS.
var filteredEnvVars = map[string]bool{
	"OPENAI_API_KEY":                 true,
	"ANTHROPIC_API_KEY":              true,
	"GEMINI_API_KEY":                 true,
	"XAI_API_KEY":                    true,
	"DEEPSEEK_API_KEY":               true,
	"OPENROUTER_API_KEY":             true,
	"GROQ_API_KEY":                   true,
	"MISTRAL_API_KEY":                true,
	"COHERE_API_KEY":                 true,
	"AZURE_OPENAI_API_KEY":           true,
	"HUGGINGFACE_API_KEY":            true,
	"HF_TOKEN":                       true,
	"AWS_ACCESS_KEY_ID":              true,
	"AWS_SECRET_ACCESS_KEY":          true,
	"AWS_SESSION_TOKEN":              true,
	"GOOGLE_APPLICATION_CREDENTIALS": true,
	"GOOGLE_CLOUD_PROJECT":           true,
	"AZURE_CLIENT_ID":                true,
	"AZURE_CLIENT_SECRET":            true,
	"AZURE_TENANT_ID":                true,
	"AZURE_SUBSCRIPTION_ID":          true,
	"GITHUB_TOKEN":                   true,
	"GH_TOKEN":                       true,
	"GITHUB_PAT":                     true,
	"NPM_TOKEN":                      true,
	"NPM_AUTH_TOKEN":                 true,
	"CARGO_REGISTRY_TOKEN":           true,
	"PYPI_TOKEN":                     true,
	"DATABASE_URL":                   true,
	"DB_PASSWORD":                    true,
	"PGPASSWORD":                     true,
	"MYSQL_PWD":                      true,
	"REDIS_PASSWORD":                 true,
	"MONGO_PASSWORD":                 true,
	"SSH_AUTH_SOCK":                  true,
	"GPG_AGENT_INFO":                 true,
	"LD_PRELOAD":                     true,
	"LD_LIBRARY_PATH":                true,
	"LD_AUDIT":                       true,
	"LD_DEBUG":                       true,
	"LD_PROFILE":                     true,
	"DYLD_INSERT_LIBRARIES":          true,
	"DYLD_LIBRARY_PATH":              true,
	"DYLD_FRAMEWORK_PATH":            true,
	"DYLD_FALLBACK_LIBRARY_PATH":     true,
	"VAULT_TOKEN":                    true,
	"CONSUL_HTTP_TOKEN":              true,
	"DOCKER_AUTH_CONFIG":             true,
	"KUBECONFIG":                     true,
	"KUBE_TOKEN":                     true,
	"SLACK_TOKEN":                    true,
	"SLACK_BOT_TOKEN":                true,
	"DISCORD_TOKEN":                  true,
	"TELEGRAM_BOT_TOKEN":             true,
}

// preservedEnvVars always pass through to a sandboxed child, regardless of
// the filter rules below.
//
// Grounded on vtcode-core/src/sandboxing/child_spawn.rs::PRESERVED_ENV_VARS.
var preservedEnvVars = []string{
	"PATH", "HOME", "USER", "SHELL", "TERM", "LANG", "LC_ALL", "LC_CTYPE", "TZ",
	"XDG_CONFIG_HOME", "XDG_DATA_HOME", "XDG_CACHE_HOME", "XDG_RUNTIME_DIR",
	"EDITOR", "VISUAL", "PAGER",
	"CARGO_HOME", "RUSTUP_HOME", "GOPATH", "GOROOT", "JAVA_HOME", "PYTHON", "PYTHONPATH", "NODE_PATH",
	"COLORTERM", "FORCE_COLOR", "NO_COLOR", "CLICOLOR", "CLICOLOR_FORCE",
	"TMPDIR", "TEMP", "TMP",
}

// Sandbox marker env vars injected into a sandboxed child so downstream
// tools can detect that they are running confined.
const (
	EnvSandboxActive          = "CORELOOP_SANDBOX_ACTIVE"
	EnvSandboxNetworkDisabled = "CORELOOP_SANDBOX_NETWORK_DISABLED"
	EnvSandboxType            = "CORELOOP_SANDBOX_TYPE"
	EnvSandboxWritableRoots   = "CORELOOP_SANDBOX_WRITABLE_ROOTS"
)

// ShouldFilterEnvVar reports whether key must never reach a sandboxed child.
//
// Grounded on child_spawn.rs::should_filter_env_var.
func ShouldFilterEnvVar(key string) bool {
	if filteredEnvVars[key] {
		return true
	}
	for _, prefix := range []string{"AWS_", "AZURE_", "GOOGLE_", "GCP_", "LD_", "DYLD_"} {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	for _, suffix := range []string{"_TOKEN", "_KEY", "_SECRET", "_PASSWORD", "_CREDENTIALS"} {
		if strings.HasSuffix(key, suffix) {
			return true
		}
	}
	return false
}

// BuildSanitizedEnv rebuilds a child process environment from scratch,
// copying over only the preserved variables, then injecting sandbox
// markers describing the active policy.
//
// Grounded on child_spawn.rs::build_sanitized_env — "Completely clear the
// environment and rebuild it with only the variables you actually want."
func BuildSanitizedEnv(currentEnv map[string]string, sandboxActive, networkDisabled bool, sandboxType string, writableRoots []string) map[string]string {
	sanitized := make(map[string]string)

	for _, key := range preservedEnvVars {
		if v, ok := currentEnv[key]; ok {
			sanitized[key] = v
		}
	}

	if sandboxActive {
		sanitized[EnvSandboxActive] = "1"
		sanitized[EnvSandboxType] = sandboxType

		if networkDisabled {
			sanitized[EnvSandboxNetworkDisabled] = "1"
		}

		if len(writableRoots) > 0 {
			sanitized[EnvSandboxWritableRoots] = strings.Join(writableRoots, ":")
		}
	}

	return sanitized
}

// FilterSensitiveEnv removes known-sensitive variables from env while
// otherwise preserving it. Less aggressive than BuildSanitizedEnv: most
// variables survive, only known-sensitive ones are dropped.
//
// Grounded on child_spawn.rs::filter_sensitive_env.
func FilterSensitiveEnv(env map[string]string) map[string]string {
	filtered := make(map[string]string, len(env))
	for k, v := range env {
		if !ShouldFilterEnvVar(k) {
			filtered[k] = v
		}
	}
	return filtered
}
