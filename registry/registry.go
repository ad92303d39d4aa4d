// Package registry holds the message, enum and service descriptors that
// dynamic messages are built from. Descriptors can be loaded from .proto
// sources, from compiled descriptor sets or from linked protoreflect files.
package registry

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/op/go-logging"

	"github.com/protolite/dynpb/schema"
)

var log = logging.MustGetLogger("dynpb.registry")

// Registry allows us to store the schema of the protobuf messages. We look
// this up when we need to parse or marshal a message. It is safe for
// concurrent lookups; loading must not race with itself.
type Registry struct {
	// ProtoPaths are the directories .proto imports are resolved against.
	ProtoPaths []string

	mu       sync.RWMutex
	files    map[string]*schema.ProtoFile // import path -> file
	messages map[string]*schema.Message   // fully qualified name -> message
	enums    map[string]*schema.Enum      // fully qualified name -> enum
	services map[string]*schema.Service   // fully qualified name -> service
}

// NewRegistry creates an empty registry resolving imports against protoPaths.
func NewRegistry(protoPaths ...string) *Registry {
	return &Registry{
		ProtoPaths: protoPaths,
		files:      make(map[string]*schema.ProtoFile),
		messages:   make(map[string]*schema.Message),
		enums:      make(map[string]*schema.Enum),
		services:   make(map[string]*schema.Service),
	}
}

// LoadSchema loads a single .proto file, or recursively every .proto file
// below a directory. The file's directory, or the directory itself, is
// added to the proto paths.
func (r *Registry) LoadSchema(protoPath string) error {
	info, err := os.Stat(protoPath)
	if err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}

	if !info.IsDir() {
		if !strings.HasSuffix(protoPath, ".proto") {
			return fmt.Errorf("file %s is not a .proto file", protoPath)
		}
		r.addProtoPath(filepath.Dir(protoPath))
		if err := r.LoadFile(filepath.Base(protoPath)); err != nil {
			return fmt.Errorf("failed to load proto file: %w", err)
		}
		return nil
	}

	r.addProtoPath(protoPath)
	err = filepath.WalkDir(protoPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		// Skip directories and non-proto files
		if d.IsDir() || !strings.HasSuffix(path, ".proto") {
			return nil
		}
		rel, err := filepath.Rel(protoPath, path)
		if err != nil {
			return err
		}
		if err := r.LoadFile(filepath.ToSlash(rel)); err != nil {
			return fmt.Errorf("failed to load proto file %s: %w", path, err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to walk directory: %w", err)
	}
	return nil
}

func (r *Registry) addProtoPath(dir string) {
	for _, p := range r.ProtoPaths {
		if p == dir {
			return
		}
	}
	r.ProtoPaths = append(r.ProtoPaths, dir)
}

func (r *Registry) hasFile(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.files[name]
	return ok
}

// addFile registers a file whose type references are already resolved.
func (r *Registry) addFile(file *schema.ProtoFile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.files[file.Name]; ok {
		return nil
	}
	for _, msg := range file.Messages {
		if err := r.registerMessage(msg); err != nil {
			return fmt.Errorf("%s: %w", file.Name, err)
		}
	}
	for _, enum := range file.Enums {
		if err := r.registerEnum(enum); err != nil {
			return fmt.Errorf("%s: %w", file.Name, err)
		}
	}
	for _, service := range file.Services {
		fullName := getFullName(file.Package, service.Name)
		if _, dup := r.services[fullName]; dup {
			return fmt.Errorf("%s: duplicate service %s", file.Name, fullName)
		}
		r.services[fullName] = service
	}
	r.files[file.Name] = file
	log.Debugf("registered %s (package %q, %d messages, %d enums, %d services)",
		file.Name, file.Package, len(file.Messages), len(file.Enums), len(file.Services))
	return nil
}

// LoadRepo registers hand-built descriptors, in file name order. Empty full
// names are derived from the package and nesting; type references in fields
// must already be fully qualified.
func (r *Registry) LoadRepo(repo *schema.ProtoRepo) error {
	for _, name := range sortedKeys(repo.ProtoFiles) {
		file := repo.ProtoFiles[name]
		if file.Name == "" {
			file.Name = name
		}
		if file.Syntax == "" {
			file.Syntax = schema.SyntaxProto2
		}
		fillNames(file.Package, file.Syntax, file.Messages, file.Enums)
		if err := r.addFile(file); err != nil {
			return err
		}
	}
	return nil
}

func fillNames(scope, syntax string, msgs []*schema.Message, enums []*schema.Enum) {
	for _, m := range msgs {
		if m.FullName == "" {
			m.FullName = getFullName(scope, m.Name)
		}
		if m.Syntax == "" {
			m.Syntax = syntax
		}
		fillNames(m.FullName, syntax, m.NestedTypes, m.NestedEnums)
	}
	for _, e := range enums {
		if e.FullName == "" {
			e.FullName = getFullName(scope, e.Name)
		}
	}
}

func (r *Registry) registerMessage(msg *schema.Message) error {
	if _, dup := r.messages[msg.FullName]; dup {
		return fmt.Errorf("duplicate message %s", msg.FullName)
	}
	r.messages[msg.FullName] = msg
	for _, nested := range msg.NestedTypes {
		if err := r.registerMessage(nested); err != nil {
			return err
		}
	}
	for _, enum := range msg.NestedEnums {
		if err := r.registerEnum(enum); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) registerEnum(enum *schema.Enum) error {
	if _, dup := r.enums[enum.FullName]; dup {
		return fmt.Errorf("duplicate enum %s", enum.FullName)
	}
	r.enums[enum.FullName] = enum
	return nil
}

func getFullName(pkg, name string) string {
	if pkg == "" {
		return name
	}
	return pkg + "." + name
}

// lookup finds name exactly (a leading dot is ignored) or, failing that, as
// the unique registered name ending in "."+name.
func lookup[T any](kind string, table map[string]T, name string) (T, error) {
	var zero T
	name = strings.TrimPrefix(name, ".")
	if v, ok := table[name]; ok {
		return v, nil
	}

	var matches []string
	for fullName := range table {
		if strings.HasSuffix(fullName, "."+name) {
			matches = append(matches, fullName)
		}
	}
	switch len(matches) {
	case 0:
		return zero, fmt.Errorf("%s not found: %s", kind, name)
	case 1:
		return table[matches[0]], nil
	default:
		sort.Strings(matches)
		return zero, fmt.Errorf("%s name %s is ambiguous: %s", kind, name, strings.Join(matches, ", "))
	}
}

// GetMessage retrieves a message definition by name
func (r *Registry) GetMessage(name string) (*schema.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lookup("message", r.messages, name)
}

// GetEnum retrieves an enum definition by name
func (r *Registry) GetEnum(name string) (*schema.Enum, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lookup("enum", r.enums, name)
}

// GetService retrieves a service definition by name
func (r *Registry) GetService(name string) (*schema.Service, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lookup("service", r.services, name)
}

// GetFile returns a registered file by import path.
func (r *Registry) GetFile(name string) (*schema.ProtoFile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if f, ok := r.files[name]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("file not found: %s", name)
}

func sortedKeys[T any](table map[string]T) []string {
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListMessages returns all registered message names
func (r *Registry) ListMessages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.messages)
}

// ListEnums returns all registered enum names
func (r *Registry) ListEnums() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.enums)
}

// ListServices returns all registered service names
func (r *Registry) ListServices() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.services)
}

// ListFiles returns the import paths of all registered files.
func (r *Registry) ListFiles() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.files)
}
