package preflight

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"advisorjournal/internal/config"
	"advisorjournal/internal/crypto"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func validConfig(t *testing.T) *config.Config {
	t.Helper()
	key, err := crypto.GenerateMasterKey()
	require.NoError(t, err)
	return &config.Config{
		Environment:         "production",
		JWTSecret:           "secret",
		EncryptionMasterKey: key,
		WeeklyResetCron:     "5 0 * * 1",
		Timezone:            time.UTC,
	}
}

func resultNamed(t *testing.T, results []CheckResult, name string) CheckResult {
	t.Helper()
	for _, r := range results {
		if r.Name == name {
			return r
		}
	}
	t.Fatalf("no check named %q", name)
	return CheckResult{}
}

func TestRunAllPasses(t *testing.T) {
	ok := pingFunc(func(context.Context) error { return nil })
	checker := NewChecker(validConfig(t), Dependency{Name: "MongoDB", Pinger: ok, Required: true})

	results := checker.RunAll(context.Background())
	assert.False(t, HasFailures(results))
	assert.Len(t, results, 5)
	assert.Contains(t, resultNamed(t, results, "Weekly Reset Schedule").Message, "Next reset at")
}

func TestMissingSecretsDependOnEnvironment(t *testing.T) {
	cfg := validConfig(t)
	cfg.EncryptionMasterKey = ""
	cfg.JWTSecret = ""

	results := NewChecker(cfg).RunAll(context.Background())
	assert.Equal(t, "fail", resultNamed(t, results, "Encryption Key").Status)
	assert.Equal(t, "fail", resultNamed(t, results, "Authentication").Status)

	cfg.Environment = "development"
	results = NewChecker(cfg).RunAll(context.Background())
	assert.Equal(t, "warning", resultNamed(t, results, "Encryption Key").Status)
	assert.Equal(t, "warning", resultNamed(t, results, "Authentication").Status)
	assert.False(t, HasFailures(results))
}

func TestInvalidSettingsFail(t *testing.T) {
	cfg := validConfig(t)
	cfg.Environment = "development"
	cfg.EncryptionMasterKey = "not-hex"
	cfg.WeeklyResetCron = "every monday"
	cfg.AdvisorProfilesPath = filepath.Join(t.TempDir(), "missing.yaml")

	results := NewChecker(cfg).RunAll(context.Background())
	assert.Equal(t, "fail", resultNamed(t, results, "Encryption Key").Status)
	assert.Equal(t, "fail", resultNamed(t, results, "Weekly Reset Schedule").Status)
	assert.Equal(t, "fail", resultNamed(t, results, "Advisor Profiles").Status)
	assert.True(t, HasFailures(results))
}

func TestAdvisorProfilesOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "advisors.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`advisors:
  - id: coach
    display_name: Coach
    persona: A blunt coach.
    task: Push the user to act.
`), 0o600))

	cfg := validConfig(t)
	cfg.AdvisorProfilesPath = path

	result := NewChecker(cfg).checkAdvisorProfiles()
	assert.Equal(t, "pass", result.Status, result.Error)
	assert.Contains(t, result.Message, "1 advisors loaded")
}

func TestDependencyChecks(t *testing.T) {
	down := pingFunc(func(context.Context) error { return errors.New("connection refused") })

	tests := []struct {
		name       string
		dep        Dependency
		wantStatus string
	}{
		{name: "required and down", dep: Dependency{Name: "MongoDB", Pinger: down, Required: true}, wantStatus: "fail"},
		{name: "optional and down", dep: Dependency{Name: "Redis", Pinger: down}, wantStatus: "warning"},
		{name: "optional and absent", dep: Dependency{Name: "Redis"}, wantStatus: "warning"},
		{name: "required and absent", dep: Dependency{Name: "MongoDB", Required: true}, wantStatus: "fail"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := checkDependency(context.Background(), tt.dep)
			assert.Equal(t, tt.wantStatus, result.Status)
		})
	}
}
