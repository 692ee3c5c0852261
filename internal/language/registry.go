package language

import (
	"sort"
	"strings"

	appErr "gradebox/pkg/errors"
)

// Registry maps language names to descriptors and supports reverse lookup
// by source extension.
type Registry struct {
	byName map[string]Language
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Language)}
}

// DefaultRegistry returns a registry with the built-in languages.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(C11Gcc{})
	r.Register(Cpp17Gpp{})
	r.Register(Python3CPython{})
	r.Register(Rust{})
	return r
}

// Register adds or replaces a language under its own name.
func (r *Registry) Register(lang Language) {
	r.byName[lang.Name()] = lang
}

// Get returns the language registered under name.
func (r *Registry) Get(name string) (Language, error) {
	lang, ok := r.byName[name]
	if !ok {
		return nil, appErr.Newf(appErr.LanguageNotFound, "language %q is not registered", name)
	}
	return lang, nil
}

// BySourceExtension returns the unique language claiming ext. The extension
// may be given with or without the leading dot.
func (r *Registry) BySourceExtension(ext string) (Language, error) {
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	var found Language
	for _, name := range r.Names() {
		lang := r.byName[name]
		for _, candidate := range lang.SourceExtensions() {
			if candidate != ext {
				continue
			}
			if found != nil {
				return nil, appErr.Newf(appErr.LanguageAmbiguous,
					"extension %q is claimed by both %q and %q", ext, found.Name(), lang.Name())
			}
			found = lang
		}
	}
	if found == nil {
		return nil, appErr.Newf(appErr.LanguageNotFound, "no language claims extension %q", ext)
	}
	return found, nil
}

// Names returns the registered language names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
