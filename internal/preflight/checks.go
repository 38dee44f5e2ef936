package preflight

import (
	"context"
	"fmt"
	"log"
	"time"

	"advisorjournal/internal/config"
	"advisorjournal/internal/crypto"
	"advisorjournal/internal/jobs"
	"advisorjournal/internal/services"
)

// CheckResult represents the result of a preflight check
type CheckResult struct {
	Name    string
	Status  string // "pass", "fail", "warning"
	Message string
	Error   error
}

// Pinger is a backing service reachable over the network
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependency is a backing service to probe before serving traffic.
// A nil Pinger means the service is not configured.
type Dependency struct {
	Name     string
	Pinger   Pinger
	Required bool
}

// Checker performs pre-flight checks before server starts
type Checker struct {
	cfg  *config.Config
	deps []Dependency
}

// NewChecker creates a new preflight checker
func NewChecker(cfg *config.Config, deps ...Dependency) *Checker {
	return &Checker{cfg: cfg, deps: deps}
}

// RunAll runs all preflight checks and returns results
func (c *Checker) RunAll(ctx context.Context) []CheckResult {
	log.Println("🔍 Running pre-flight checks...")

	results := []CheckResult{
		c.checkEncryptionKey(),
		c.checkAuth(),
		c.checkWeeklyResetSchedule(),
		c.checkAdvisorProfiles(),
	}
	for _, dep := range c.deps {
		results = append(results, checkDependency(ctx, dep))
	}

	passed := 0
	failed := 0
	warnings := 0

	for _, result := range results {
		switch result.Status {
		case "pass":
			log.Printf("   ✅ %s: %s", result.Name, result.Message)
			passed++
		case "fail":
			log.Printf("   ❌ %s: %s", result.Name, result.Message)
			if result.Error != nil {
				log.Printf("      Error: %v", result.Error)
			}
			failed++
		case "warning":
			log.Printf("   ⚠️  %s: %s", result.Name, result.Message)
			warnings++
		}
	}

	log.Printf("📊 Pre-flight summary: %d passed, %d failed, %d warnings", passed, failed, warnings)

	return results
}

// HasFailures returns true if any check failed
func HasFailures(results []CheckResult) bool {
	for _, result := range results {
		if result.Status == "fail" {
			return true
		}
	}
	return false
}

// missing returns fail in production and warning elsewhere
func (c *Checker) missing(name, message string) CheckResult {
	status := "warning"
	if c.cfg.IsProduction() {
		status = "fail"
	}
	return CheckResult{Name: name, Status: status, Message: message}
}

// checkEncryptionKey verifies the master key that seals stored API keys
func (c *Checker) checkEncryptionKey() CheckResult {
	const name = "Encryption Key"
	if c.cfg.EncryptionMasterKey == "" {
		return c.missing(name, "ENCRYPTION_MASTER_KEY not set, API keys cannot be stored")
	}
	if _, err := crypto.NewEncryptionService(c.cfg.EncryptionMasterKey); err != nil {
		return CheckResult{Name: name, Status: "fail", Message: "ENCRYPTION_MASTER_KEY is invalid", Error: err}
	}
	return CheckResult{Name: name, Status: "pass", Message: "Master key loaded"}
}

// checkAuth verifies JWT verification is configured
func (c *Checker) checkAuth() CheckResult {
	const name = "Authentication"
	if c.cfg.JWTSecret == "" {
		return c.missing(name, "JWT_SECRET not set, requests run as the development user")
	}
	return CheckResult{Name: name, Status: "pass", Message: "JWT verification enabled"}
}

// checkWeeklyResetSchedule verifies the reset cron expression parses
func (c *Checker) checkWeeklyResetSchedule() CheckResult {
	const name = "Weekly Reset Schedule"
	schedule, err := jobs.ParseCron(c.cfg.WeeklyResetCron)
	if err != nil {
		return CheckResult{Name: name, Status: "fail", Message: "WEEKLY_RESET_CRON is invalid", Error: err}
	}
	next := schedule.Next(time.Now().In(c.cfg.Timezone))
	return CheckResult{
		Name:    name,
		Status:  "pass",
		Message: fmt.Sprintf("Next reset at %s", next.Format(time.RFC3339)),
	}
}

// checkAdvisorProfiles verifies an advisor roster override loads
func (c *Checker) checkAdvisorProfiles() CheckResult {
	const name = "Advisor Profiles"
	if c.cfg.AdvisorProfilesPath == "" {
		return CheckResult{Name: name, Status: "pass", Message: "Using built-in advisors"}
	}
	roster, err := services.NewAdvisorRoster(c.cfg.AdvisorProfilesPath)
	if err != nil {
		return CheckResult{Name: name, Status: "fail", Message: "Cannot load " + c.cfg.AdvisorProfilesPath, Error: err}
	}
	return CheckResult{
		Name:    name,
		Status:  "pass",
		Message: fmt.Sprintf("%d advisors loaded from %s", len(roster.Profiles()), c.cfg.AdvisorProfilesPath),
	}
}

// checkDependency pings a backing service
func checkDependency(ctx context.Context, dep Dependency) CheckResult {
	if dep.Pinger == nil {
		status := "warning"
		if dep.Required {
			status = "fail"
		}
		return CheckResult{Name: dep.Name, Status: status, Message: "Not configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := dep.Pinger.Ping(ctx); err != nil {
		status := "warning"
		if dep.Required {
			status = "fail"
		}
		return CheckResult{Name: dep.Name, Status: status, Message: "Cannot reach " + dep.Name, Error: err}
	}
	return CheckResult{Name: dep.Name, Status: "pass", Message: "Connection successful"}
}
