package sandbox

import "testing"

func TestNoSandboxForFullAccess(t *testing.T) {
	m := NewManager("")
	spec := CommandSpec{Program: "echo", Args: []string{"hello"}}
	policy := FullAccess()

	env, err := m.Transform(spec, policy, "/tmp")
	if err != nil {
		t.Fatalf("Transform() error: %v", err)
	}
	if env.SandboxActive {
		t.Fatalf("expected sandbox inactive for full access")
	}
	if env.SandboxType != TypeNone {
		t.Fatalf("expected TypeNone, got %v", env.SandboxType)
	}
}

func TestSandboxTypeDetermination(t *testing.T) {
	if got := determineSandboxType(FullAccess()); got != TypeNone {
		t.Fatalf("expected TypeNone for full access, got %v", got)
	}
	if got := determineSandboxType(ReadOnly()); got != PlatformDefault() {
		t.Fatalf("expected platform default for read-only, got %v", got)
	}
}

func TestShouldFilterSensitiveVars(t *testing.T) {
	cases := map[string]bool{
		"OPENAI_API_KEY":        true,
		"AWS_SECRET_ACCESS_KEY": true,
		"GITHUB_TOKEN":          true,
		"LD_PRELOAD":            true,
		"DYLD_INSERT_LIBRARIES": true,
		"MY_CUSTOM_TOKEN":       true,
		"DATABASE_PASSWORD":     true,
		"PATH":                  false,
		"HOME":                  false,
		"TERM":                  false,
	}
	for key, want := range cases {
		if got := ShouldFilterEnvVar(key); got != want {
			t.Errorf("ShouldFilterEnvVar(%q) = %v, want %v", key, got, want)
		}
	}
}

func TestBuildSanitizedEnv(t *testing.T) {
	current := map[string]string{
		"PATH":           "/usr/bin",
		"HOME":           "/home/user",
		"OPENAI_API_KEY": "sk-secret",
		"RANDOM_VAR":     "value",
	}

	sanitized := BuildSanitizedEnv(current, true, true, "macos-seatbelt", nil)

	if sanitized["PATH"] != "/usr/bin" {
		t.Errorf("expected PATH preserved")
	}
	if sanitized["HOME"] != "/home/user" {
		t.Errorf("expected HOME preserved")
	}
	if _, ok := sanitized["OPENAI_API_KEY"]; ok {
		t.Errorf("expected OPENAI_API_KEY filtered out")
	}
	if _, ok := sanitized["RANDOM_VAR"]; ok {
		t.Errorf("expected RANDOM_VAR filtered out (not in preserved list)")
	}
	if sanitized[EnvSandboxActive] != "1" {
		t.Errorf("expected sandbox active marker set")
	}
	if sanitized[EnvSandboxNetworkDisabled] != "1" {
		t.Errorf("expected network disabled marker set")
	}
	if sanitized[EnvSandboxType] != "macos-seatbelt" {
		t.Errorf("expected sandbox type marker set")
	}
}

func TestFilterSensitiveEnv(t *testing.T) {
	env := map[string]string{
		"PATH":              "/usr/bin",
		"OPENAI_API_KEY":    "sk-secret",
		"MY_VAR":            "value",
		"AWS_ACCESS_KEY_ID": "AKIA...",
	}

	filtered := FilterSensitiveEnv(env)

	if _, ok := filtered["PATH"]; !ok {
		t.Errorf("expected PATH kept")
	}
	if _, ok := filtered["MY_VAR"]; !ok {
		t.Errorf("expected MY_VAR kept")
	}
	if _, ok := filtered["OPENAI_API_KEY"]; ok {
		t.Errorf("expected OPENAI_API_KEY removed")
	}
	if _, ok := filtered["AWS_ACCESS_KEY_ID"]; ok {
		t.Errorf("expected AWS_ACCESS_KEY_ID removed")
	}
}
