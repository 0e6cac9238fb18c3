package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"spark-terminal/pkg/serial"
)

// ProfilesFileName is the file holding named connection profiles
const ProfilesFileName = "profiles.json"

const profilesVersion = "1.0"

// Profile is a named set of connection settings
type Profile struct {
	Name        string                    `json:"name"`
	Settings    serial.ConnectionSettings `json:"settings"`
	CreatedAt   time.Time                 `json:"created_at"`
	LastUsedAt  time.Time                 `json:"last_used_at"`
	Description string                    `json:"description,omitempty"`
}

// Validate checks if the profile is valid
func (p Profile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("profile name cannot be empty")
	}

	if err := p.Settings.Validate(); err != nil {
		return fmt.Errorf("invalid connection settings: %w", err)
	}

	if p.CreatedAt.IsZero() {
		return fmt.Errorf("created_at timestamp cannot be zero")
	}

	return nil
}

// profileStorage is the on-disk form of the profiles file
type profileStorage struct {
	Profiles map[string]Profile `json:"profiles"`
	Version  string             `json:"version"`
}

// ProfileManager stores profiles in a JSON file
type ProfileManager struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewProfileManager creates a manager for the profiles file at path
func NewProfileManager(path string) *ProfileManager {
	return &ProfileManager{path: path, now: time.Now}
}

// Path returns the profiles file
func (pm *ProfileManager) Path() string {
	return pm.path
}

// Save stores settings under name, keeping the creation time and description
// of an existing profile
func (pm *ProfileManager) Save(name string, settings serial.ConnectionSettings) error {
	if name == "" {
		return fmt.Errorf("profile name cannot be empty")
	}

	if err := settings.Validate(); err != nil {
		return fmt.Errorf("invalid profile: %w", err)
	}

	pm.mu.Lock()
	defer pm.mu.Unlock()

	storage, err := pm.load()
	if err != nil {
		return fmt.Errorf("failed to load existing profiles: %w", err)
	}

	now := pm.now()
	profile := Profile{
		Name:       name,
		Settings:   settings,
		CreatedAt:  now,
		LastUsedAt: now,
	}

	if existing, exists := storage.Profiles[name]; exists {
		profile.CreatedAt = existing.CreatedAt
		profile.Description = existing.Description
	}

	storage.Profiles[name] = profile

	if err := pm.save(storage); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// Load returns the settings of a profile and marks it as used
func (pm *ProfileManager) Load(name string) (serial.ConnectionSettings, error) {
	if name == "" {
		return serial.ConnectionSettings{}, fmt.Errorf("profile name cannot be empty")
	}

	pm.mu.Lock()
	defer pm.mu.Unlock()

	storage, err := pm.load()
	if err != nil {
		return serial.ConnectionSettings{}, fmt.Errorf("failed to load profiles: %w", err)
	}

	profile, exists := storage.Profiles[name]
	if !exists {
		return serial.ConnectionSettings{}, fmt.Errorf("profile '%s' not found", name)
	}

	profile.LastUsedAt = pm.now()
	storage.Profiles[name] = profile

	// the last used time is informational; a failed update does not fail the load
	pm.save(storage)

	return profile.Settings, nil
}

// Get returns a profile with its metadata
func (pm *ProfileManager) Get(name string) (Profile, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	storage, err := pm.load()
	if err != nil {
		return Profile{}, fmt.Errorf("failed to load profiles: %w", err)
	}

	profile, exists := storage.Profiles[name]
	if !exists {
		return Profile{}, fmt.Errorf("profile '%s' not found", name)
	}
	return profile, nil
}

// List returns all profiles sorted by name
func (pm *ProfileManager) List() ([]Profile, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	storage, err := pm.load()
	if err != nil {
		return nil, fmt.Errorf("failed to load profiles: %w", err)
	}

	profiles := make([]Profile, 0, len(storage.Profiles))
	for _, profile := range storage.Profiles {
		profiles = append(profiles, profile)
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].Name < profiles[j].Name })

	return profiles, nil
}

// Delete removes a profile
func (pm *ProfileManager) Delete(name string) error {
	if name == "" {
		return fmt.Errorf("profile name cannot be empty")
	}

	pm.mu.Lock()
	defer pm.mu.Unlock()

	storage, err := pm.load()
	if err != nil {
		return fmt.Errorf("failed to load profiles: %w", err)
	}

	if _, exists := storage.Profiles[name]; !exists {
		return fmt.Errorf("profile '%s' not found", name)
	}

	delete(storage.Profiles, name)

	if err := pm.save(storage); err != nil {
		return fmt.Errorf("failed to save profiles after deletion: %w", err)
	}
	return nil
}

// Exists checks if a profile with the given name exists
func (pm *ProfileManager) Exists(name string) bool {
	if name == "" {
		return false
	}

	pm.mu.Lock()
	defer pm.mu.Unlock()

	storage, err := pm.load()
	if err != nil {
		return false
	}

	_, exists := storage.Profiles[name]
	return exists
}

// SetDescription sets the description of a profile
func (pm *ProfileManager) SetDescription(name, description string) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	storage, err := pm.load()
	if err != nil {
		return fmt.Errorf("failed to load profiles: %w", err)
	}

	profile, exists := storage.Profiles[name]
	if !exists {
		return fmt.Errorf("profile '%s' not found", name)
	}

	profile.Description = description
	storage.Profiles[name] = profile

	if err := pm.save(storage); err != nil {
		return fmt.Errorf("failed to save profile description: %w", err)
	}
	return nil
}

// Search returns the profiles whose name or description contains query
func (pm *ProfileManager) Search(query string) ([]Profile, error) {
	profiles, err := pm.List()
	if err != nil || query == "" {
		return profiles, err
	}

	query = strings.ToLower(query)
	var results []Profile
	for _, profile := range profiles {
		if strings.Contains(strings.ToLower(profile.Name), query) ||
			strings.Contains(strings.ToLower(profile.Description), query) {
			results = append(results, profile)
		}
	}
	return results, nil
}

func (pm *ProfileManager) load() (profileStorage, error) {
	data, err := os.ReadFile(pm.path)
	if err != nil {
		if os.IsNotExist(err) {
			return profileStorage{Profiles: make(map[string]Profile), Version: profilesVersion}, nil
		}
		return profileStorage{}, fmt.Errorf("failed to read profiles file: %w", err)
	}

	var storage profileStorage
	if err := json.Unmarshal(data, &storage); err != nil {
		return profileStorage{}, fmt.Errorf("failed to parse profiles file: %w", err)
	}

	if storage.Profiles == nil {
		storage.Profiles = make(map[string]Profile)
	}
	return storage, nil
}

func (pm *ProfileManager) save(storage profileStorage) error {
	storage.Version = profilesVersion

	data, err := json.MarshalIndent(storage, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal profiles: %w", err)
	}
	return writeFileAtomic(pm.path, data)
}
