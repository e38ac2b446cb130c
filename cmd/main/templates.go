package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/natefinch/atomic"
)

// templateExt is the extension of saved template bodies.
const templateExt = ".acft"

var (
	errTemplateNotFound    = errors.New("template not found")
	errInvalidTemplateName = errors.New("invalid template name")
)

// TemplateLibrary stores named template bodies as files in one directory.
type TemplateLibrary struct {
	dir string
}

// NewTemplateLibrary creates the directory if needed.
func NewTemplateLibrary(dir string) (*TemplateLibrary, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve template directory: %w", err)
	}
	if err = os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create template directory: %w", err)
	}
	return &TemplateLibrary{dir: abs}, nil
}

// path maps a template name to its file, rejecting names that would leave
// the directory.
func (l *TemplateLibrary) path(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return "", fmt.Errorf("%w %q", errInvalidTemplateName, name)
	}
	p := filepath.Join(l.dir, name+templateExt)
	if !strings.HasPrefix(p, l.dir+string(filepath.Separator)) {
		return "", fmt.Errorf("%w %q", errInvalidTemplateName, name)
	}
	return p, nil
}

// Names lists the saved templates in alphabetical order.
func (l *TemplateLibrary) Names() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read template directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), templateExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), templateExt))
	}
	sort.Strings(names)
	return names, nil
}

// Get returns the body of a saved template.
func (l *TemplateLibrary) Get(name string) (string, error) {
	p, err := l.path(name)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errTemplateNotFound
		}
		return "", fmt.Errorf("failed to read template %s: %w", name, err)
	}
	return string(data), nil
}

// Put saves a template body, replacing any previous version atomically.
func (l *TemplateLibrary) Put(name, body string) error {
	p, err := l.path(name)
	if err != nil {
		return err
	}
	if err = atomic.WriteFile(p, bytes.NewReader([]byte(body))); err != nil {
		return fmt.Errorf("failed to write template %s: %w", name, err)
	}
	return nil
}

// Delete removes a saved template.
func (l *TemplateLibrary) Delete(name string) error {
	p, err := l.path(name)
	if err != nil {
		return err
	}
	if err = os.Remove(p); err != nil {
		if os.IsNotExist(err) {
			return errTemplateNotFound
		}
		return fmt.Errorf("failed to delete template %s: %w", name, err)
	}
	return nil
}
