package services

import (
	"context"
	_ "embed"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"advisorjournal/internal/models"
)

//go:embed advisors.yaml
var defaultAdvisorsYAML []byte

// Persona ids become [TAG] headers, and the parser only recognises [A-Z_]+ tags
var advisorIDPattern = regexp.MustCompile(`^[A-Za-z_]+$`)

type advisorRosterFile struct {
	Advisors []models.AdvisorProfile `yaml:"advisors"`
}

// AdvisorRoster is the ordered, read-mostly table of advisor personas
type AdvisorRoster struct {
	mu       sync.RWMutex
	profiles []models.AdvisorProfile
	path     string
}

// NewAdvisorRoster loads the roster from path, or the built-in defaults when path is empty
func NewAdvisorRoster(path string) (*AdvisorRoster, error) {
	r := &AdvisorRoster{path: path}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// DefaultAdvisorRoster returns the built-in plitt, hudson, self roster
func DefaultAdvisorRoster() *AdvisorRoster {
	profiles, err := ParseAdvisorRoster(defaultAdvisorsYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded advisor roster is invalid: %v", err))
	}
	return &AdvisorRoster{profiles: profiles}
}

// NewStaticAdvisorRoster wraps a fixed list of profiles
func NewStaticAdvisorRoster(profiles []models.AdvisorProfile) *AdvisorRoster {
	return &AdvisorRoster{profiles: append([]models.AdvisorProfile(nil), profiles...)}
}

// ParseAdvisorRoster decodes and validates a roster YAML document
func ParseAdvisorRoster(data []byte) ([]models.AdvisorProfile, error) {
	var file advisorRosterFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse advisor roster: %w", err)
	}
	if len(file.Advisors) == 0 {
		return nil, fmt.Errorf("advisor roster has no advisors")
	}

	seen := make(map[string]bool, len(file.Advisors))
	for i, p := range file.Advisors {
		id := strings.ToLower(strings.TrimSpace(p.ID))
		if !advisorIDPattern.MatchString(id) {
			return nil, fmt.Errorf("advisor %d: id %q must contain only letters and underscores", i, p.ID)
		}
		if seen[id] {
			return nil, fmt.Errorf("advisor %d: duplicate id %q", i, id)
		}
		if strings.TrimSpace(p.Persona) == "" || strings.TrimSpace(p.Task) == "" {
			return nil, fmt.Errorf("advisor %q: persona and task are required", id)
		}
		seen[id] = true
		file.Advisors[i].ID = id
	}
	return file.Advisors, nil
}

// Reload re-reads the roster source. On error the previous roster stays in place.
func (r *AdvisorRoster) Reload() error {
	data := defaultAdvisorsYAML
	if r.path != "" {
		raw, err := os.ReadFile(r.path)
		if err != nil {
			return fmt.Errorf("failed to read advisor roster %s: %w", r.path, err)
		}
		data = raw
	}

	profiles, err := ParseAdvisorRoster(data)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.profiles = profiles
	r.mu.Unlock()
	return nil
}

// Profiles returns a copy of the roster in display order
func (r *AdvisorRoster) Profiles() []models.AdvisorProfile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]models.AdvisorProfile(nil), r.profiles...)
}

// Enabled returns the roster filtered to the advisors the session has turned on, in roster order
func (r *AdvisorRoster) Enabled(sess *models.Session) []models.AdvisorProfile {
	var enabled []models.AdvisorProfile
	for _, p := range r.Profiles() {
		if sess.AdvisorEnabled(p.ID) {
			enabled = append(enabled, p)
		}
	}
	return enabled
}

// IDs lists the roster's advisor ids in order
func (r *AdvisorRoster) IDs() []string {
	profiles := r.Profiles()
	ids := make([]string, len(profiles))
	for i, p := range profiles {
		ids[i] = p.ID
	}
	return ids
}

// Watch reloads the roster whenever its file changes, until ctx is done.
// It is a no-op for the built-in roster.
func (r *AdvisorRoster) Watch(ctx context.Context) {
	if r.path == "" {
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("⚠️  [ADVISORS] Failed to create file watcher: %v", err)
		return
	}
	defer watcher.Close()

	absPath, err := filepath.Abs(r.path)
	if err != nil {
		log.Printf("⚠️  [ADVISORS] Failed to get absolute path for %s: %v", r.path, err)
		return
	}

	// Watch the directory; editors replace files rather than writing in place
	filename := filepath.Base(absPath)
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		log.Printf("⚠️  [ADVISORS] Failed to watch %s: %v", filepath.Dir(absPath), err)
		return
	}

	log.Printf("👁️  [ADVISORS] Watching %s for changes", r.path)

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filename {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(500*time.Millisecond, func() {
				if err := r.Reload(); err != nil {
					log.Printf("❌ [ADVISORS] Reload failed, keeping previous roster: %v", err)
					return
				}
				log.Printf("🔄 [ADVISORS] Roster reloaded (%d advisors)", len(r.Profiles()))
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("⚠️  [ADVISORS] Watcher error: %v", err)
		}
	}
}
