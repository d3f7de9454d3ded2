package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Settings is everything the client needs to talk to a Tensora backend.
type Settings struct {
	BackendURL   string `yaml:"backend_url"`
	MCPURL       string `yaml:"mcp_url"`
	Provider     string `yaml:"provider"`
	ServerName   string `yaml:"server_name"`
	AutoExecute  bool   `yaml:"auto_execute"`
	UseStreaming bool   `yaml:"use_streaming"`
}

var Providers = []string{"gemini", "openai", "claude"}

func Default() Settings {
	return Settings{
		BackendURL: "http://localhost:4000",
		Provider:   "gemini",
		ServerName: "Default",
	}
}

// Path returns the settings file location, creating the directory.
func Path() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		homeDir, herr := os.UserHomeDir()
		if herr != nil {
			return "", err
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	dir := filepath.Join(configDir, "tensora")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Manager owns the current settings and serializes access to them. The UI
// reads a snapshot per frame; the reconciler reads one per submission.
type Manager struct {
	mu   sync.RWMutex
	s    Settings
	path string
}

// Load reads settings from path, falling back to defaults when the file
// does not exist yet. TENSORA_BACKEND_URL and TENSORA_MCP_URL override the
// file either way.
func Load(path string) (*Manager, error) {
	s := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// first run
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(data, &s); err != nil {
			return nil, err
		}
	}

	if v := os.Getenv("TENSORA_BACKEND_URL"); v != "" {
		s.BackendURL = v
	}
	if v := os.Getenv("TENSORA_MCP_URL"); v != "" {
		s.MCPURL = v
	}
	if s.BackendURL == "" {
		s.BackendURL = Default().BackendURL
	}
	if s.Provider == "" {
		s.Provider = Default().Provider
	}
	if s.ServerName == "" {
		s.ServerName = Default().ServerName
	}

	return &Manager{s: s, path: path}, nil
}

func (m *Manager) Get() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s
}

// Set replaces the settings and persists them.
func (m *Manager) Set(s Settings) error {
	m.mu.Lock()
	m.s = s
	m.mu.Unlock()
	return m.save(s)
}

// Update applies fn to a copy of the settings and persists the result.
func (m *Manager) Update(fn func(*Settings)) error {
	m.mu.Lock()
	s := m.s
	fn(&s)
	m.s = s
	m.mu.Unlock()
	return m.save(s)
}

func (m *Manager) save(s Settings) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(m.path, data, 0o600)
}

// Watch hot-reloads the settings file when it changes on disk, so edits
// made outside the client take effect without a restart. Blocks until the
// done channel closes. onChange may be nil.
func (m *Manager) Watch(done <-chan struct{}, onChange func(Settings)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(m.path)); err != nil {
		return err
	}

	for {
		select {
		case <-done:
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Name != m.path || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			data, err := os.ReadFile(m.path)
			if err != nil {
				continue
			}
			s := Default()
			if err := yaml.Unmarshal(data, &s); err != nil {
				continue
			}
			m.mu.Lock()
			m.s = s
			m.mu.Unlock()
			if onChange != nil {
				onChange(s)
			}
		case _, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
		}
	}
}
