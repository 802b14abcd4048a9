package feature

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
)

// DefaultVersion is used when a feature is registered without an explicit version.
const DefaultVersion = "v1"

// Info describes one registered (name, version) pair.
type Info struct {
	Name          string
	Version       string
	Factory       Factory
	DefaultConfig Config
	Description   string
}

// family holds every version of one feature. defaultVersion always names a key
// of versions; a family without versions is removed from the registry.
type family struct {
	versions       map[string]*Info
	order          []string
	defaultVersion string
}

// RegisterOption modifies a single registration.
type RegisterOption func(*registerOpts)

type registerOpts struct {
	version       string
	defaultConfig Config
	description   string
	setDefault    bool
}

// WithVersion sets the version of the registration. Defaults to "v1".
func WithVersion(version string) RegisterOption {
	return func(o *registerOpts) { o.version = version }
}

// WithDefaultConfig sets the configuration merged under construction overrides.
func WithDefaultConfig(cfg Config) RegisterOption {
	return func(o *registerOpts) { o.defaultConfig = cfg }
}

func WithDescription(description string) RegisterOption {
	return func(o *registerOpts) { o.description = description }
}

// AsDefault makes the registered version the default one for its feature.
func AsDefault() RegisterOption {
	return func(o *registerOpts) { o.setDefault = true }
}

// Registry maps feature names and versions to generator factories.
// It is safe for concurrent use; factories are invoked outside the lock.
type Registry struct {
	mu       sync.RWMutex
	features map[string]*family
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{features: make(map[string]*family)}
}

// Register inserts or overwrites the factory for (name, version). The version
// becomes the default when AsDefault is given or the feature has no default yet.
func (r *Registry) Register(name string, factory Factory, opts ...RegisterOption) (err error) {
	o := registerOpts{version: DefaultVersion}
	for _, fn := range opts {
		fn(&o)
	}

	name = strings.TrimSpace(name)
	o.version = strings.TrimSpace(o.version)

	switch {
	case name == "":
		return &RegistrationError{Name: name, Reason: "feature name is empty"}
	case o.version == "":
		return &RegistrationError{Name: name, Reason: "version is empty"}
	case factory == nil:
		return &RegistrationError{Name: name, Reason: "generator factory is nil"}
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = &RegistrationError{Name: name, Reason: fmt.Sprintf("unexpected failure: %v", rec)}
		}
	}()

	info := &Info{
		Name:          name,
		Version:       o.version,
		Factory:       factory,
		DefaultConfig: Config{}.Merge(o.defaultConfig),
		Description:   o.description,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.features[name]
	if !ok {
		f = &family{versions: make(map[string]*Info)}
		r.features[name] = f
	}

	if _, exists := f.versions[o.version]; !exists {
		f.order = append(f.order, o.version)
	}
	f.versions[o.version] = info

	if o.setDefault || f.defaultVersion == "" {
		f.defaultVersion = o.version
	}

	return nil
}

// MustRegister panics on registration error. Intended for static registration at startup.
func (r *Registry) MustRegister(name string, factory Factory, opts ...RegisterOption) {
	if err := r.Register(name, factory, opts...); err != nil {
		panic(err)
	}
}

// Generator constructs a new generator for (name, version). An empty version
// resolves to the feature's default. Overrides win over the registered default
// configuration on key collision.
func (r *Registry) Generator(name, version string, overrides Config) (Generator, error) {
	info, err := r.lookup(name, version)
	if err != nil {
		return nil, err
	}

	return construct(info, info.DefaultConfig.Merge(overrides))
}

// Resolve returns the version Generator would use for the given request.
func (r *Registry) Resolve(name, version string) (string, error) {
	info, err := r.lookup(name, version)
	if err != nil {
		return "", err
	}
	return info.Version, nil
}

func (r *Registry) lookup(name, version string) (*Info, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.features[name]
	if !ok {
		return nil, &NotFoundError{Name: name}
	}

	if version == "" {
		version = f.defaultVersion
		if version == "" {
			return nil, &NotFoundError{Name: name}
		}
	}

	info, ok := f.versions[version]
	if !ok {
		return nil, &NotFoundError{Name: name, Version: version}
	}

	return info, nil
}

func construct(info *Info, cfg Config) (gen Generator, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			gen = nil
			err = &RegistrationError{
				Name:   info.Name,
				Reason: fmt.Sprintf("construct version %s: %v", info.Version, rec),
			}
		}
	}()

	gen, err = info.Factory(cfg)
	if err != nil {
		return nil, &RegistrationError{
			Name:   info.Name,
			Reason: fmt.Sprintf("construct version %s: %s", info.Version, err.Error()),
			Err:    err,
		}
	}
	if gen == nil {
		return nil, &RegistrationError{
			Name:   info.Name,
			Reason: fmt.Sprintf("construct version %s: factory returned no generator", info.Version),
		}
	}

	return gen, nil
}

// Features returns a snapshot of every registration, grouped by name in
// lexicographic order and in registration order within a name.
func (r *Registry) Features() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := r.sortedNames()
	infos := make([]Info, 0, len(names))
	for _, name := range names {
		f := r.features[name]
		for _, version := range f.order {
			info := *f.versions[version]
			info.DefaultConfig = Config{}.Merge(info.DefaultConfig)
			infos = append(infos, info)
		}
	}
	return infos
}

// Names returns the registered feature names in lexicographic order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.sortedNames()
}

// Versions returns the versions of a feature in registration order.
func (r *Registry) Versions(name string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.features[name]
	if !ok {
		return nil, &NotFoundError{Name: name}
	}
	return slices.Clone(f.order), nil
}

// DefaultVersion returns the current default version of a feature.
func (r *Registry) DefaultVersion(name string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.features[name]
	if !ok || f.defaultVersion == "" {
		return "", &NotFoundError{Name: name}
	}
	return f.defaultVersion, nil
}

// Unregister removes one version of a feature, or the whole feature when
// version is empty. When the default version is removed, the most recently
// registered remaining version becomes the default.
func (r *Registry) Unregister(name, version string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.features[name]
	if !ok {
		if version == "" {
			return &NotFoundError{Name: name}
		}
		return &NotFoundError{Name: name, Version: version}
	}

	if version == "" {
		delete(r.features, name)
		return nil
	}

	if _, ok := f.versions[version]; !ok {
		return &NotFoundError{Name: name, Version: version}
	}

	delete(f.versions, version)
	f.order = slices.DeleteFunc(f.order, func(v string) bool { return v == version })

	if len(f.order) == 0 {
		delete(r.features, name)
		return nil
	}

	if f.defaultVersion == version {
		f.defaultVersion = f.order[len(f.order)-1]
	}

	return nil
}

func (r *Registry) sortedNames() []string {
	names := make([]string, 0, len(r.features))
	for name := range r.features {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
