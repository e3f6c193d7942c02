// Package pkginfo persists resolved identifiers as named definitions that
// later administrative scripts read back.
package pkginfo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrInvalidName is returned for definition names that are not identifiers.
var ErrInvalidName = errors.New("invalid definition name")

// namePattern restricts names to identifiers usable as script constants.
var namePattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// definitionPattern matches every definition line of a file.
var definitionPattern = regexp.MustCompile(`(?m)^export const ([A-Za-z_$][A-Za-z0-9_$]*)\s*=\s*'(.*)';`)

// Definition is one named value.
type Definition struct {
	Name  string `yaml:"name"`  // Name is the constant name
	Value string `yaml:"value"` // Value is the constant value
}

// ValidName reports whether name can be used as a definition name.
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}

// Store is a durable flat mapping from names to values.
type Store interface {
	// Upsert replaces existing definitions in place and appends new ones.
	Upsert(defs []Definition) error

	// Lookup returns the value of a definition and whether it exists.
	Lookup(name string) (string, bool, error)
}

// File stores definitions as `export const Name = 'value';` lines.
// Lines that are not definitions are preserved verbatim.
type File struct {
	path string // path is the definitions file
}

// NewFile returns a store backed by path. The file is created on first write.
func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the file location.
func (f *File) Path() string {
	return f.path
}

// Upsert writes every definition, replacing the first existing line with the
// same name or appending a new line. The file is replaced atomically.
func (f *File) Upsert(defs []Definition) error {
	for _, d := range defs {
		if !ValidName(d.Name) {
			return fmt.Errorf("%w: %q", ErrInvalidName, d.Name)
		}
	}

	content, err := f.read()
	if err != nil {
		return err
	}

	for _, d := range defs {
		content = upsertLine(content, d)
	}

	return f.write(content)
}

// Lookup returns the value of the first definition named name.
func (f *File) Lookup(name string) (string, bool, error) {
	defs, err := f.Definitions()
	if err != nil {
		return "", false, err
	}

	for _, d := range defs {
		if d.Name == name {
			return d.Value, true, nil
		}
	}

	return "", false, nil
}

// Definitions returns every definition in file order.
func (f *File) Definitions() ([]Definition, error) {
	content, err := f.read()
	if err != nil {
		return nil, err
	}

	var defs []Definition
	for _, m := range definitionPattern.FindAllStringSubmatch(content, -1) {
		defs = append(defs, Definition{Name: m[1], Value: unescape(m[2])})
	}

	return defs, nil
}

// read returns the file contents, empty if the file does not exist.
func (f *File) read() (string, error) {
	b, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}

	if err != nil {
		return "", fmt.Errorf("read %s:\n%w", f.path, err)
	}

	return string(b), nil
}

// write replaces the file through a temporary file in the same directory.
func (f *File) write(content string) error {
	dir := filepath.Dir(f.path)

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file:\n%w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s:\n%w", tmp.Name(), err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s:\n%w", tmp.Name(), err)
	}

	mode := os.FileMode(0o644)
	if info, err := os.Stat(f.path); err == nil {
		mode = info.Mode().Perm()
	}

	if err := os.Chmod(tmp.Name(), mode); err != nil {
		return fmt.Errorf("chmod %s:\n%w", tmp.Name(), err)
	}

	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace %s:\n%w", f.path, err)
	}

	return nil
}

// upsertLine replaces the first definition line of d.Name or appends one.
func upsertLine(content string, d Definition) string {
	line := formatLine(d)
	re := regexp.MustCompile(`(?m)^export const ` + regexp.QuoteMeta(d.Name) + `\s*=\s*'.*';[ \t]*`)

	if loc := re.FindStringIndex(content); loc != nil {
		return content[:loc[0]] + line + content[loc[1]:]
	}

	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}

	return content + line + "\n"
}

// formatLine renders one definition.
func formatLine(d Definition) string {
	return fmt.Sprintf("export const %s = '%s';", d.Name, escape(d.Value))
}

// escape quotes a value for a single-quoted string literal.
func escape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`).Replace(s)
}

// unescape reverses escape.
func unescape(s string) string {
	return strings.NewReplacer(`\\`, `\`, `\'`, `'`, `\n`, "\n").Replace(s)
}
