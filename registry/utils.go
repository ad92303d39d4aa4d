package registry

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"strings"
	"unicode"

	protoparser "github.com/yoheimuta/go-protoparser/v4"
	protoparserparser "github.com/yoheimuta/go-protoparser/v4/parser"
	"google.golang.org/protobuf/reflect/protoregistry"
)

// protoFileEntity is a parsed .proto source together with the imports it
// pulled in.
type protoFileEntity struct {
	name    string // import path, e.g. "foo/bar.proto"
	imports []string
	body    *protoparserparser.Proto
}

// getAllProtoInfo uses DFS to parse protoFile and everything it imports,
// returning the files in visiting order. Files already registered are not
// parsed again. Imports of google/protobuf/*.proto that are not found on the
// proto paths are served from the compiled-in well-known types.
func (r *Registry) getAllProtoInfo(protoFile string) ([]*protoFileEntity, error) {
	visited := make(map[string]struct{}) // to make sure we don't end up in a loop
	result := make([]*protoFileEntity, 0)

	var dfs func(name string) error
	dfs = func(name string) error {
		if _, ok := visited[name]; ok {
			return nil
		}
		visited[name] = struct{}{}
		if r.hasFile(name) {
			return nil
		}

		fullPath, err := r.findIfProtoExists(name)
		if err != nil {
			if strings.HasPrefix(name, "google/protobuf/") {
				return r.registerBuiltin(name)
			}
			return err
		}
		protoBytes, err := os.ReadFile(fullPath)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		parsedBody, err := protoparser.Parse(bytes.NewBuffer(protoBytes), protoparser.WithFilename(name))
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", name, err)
		}

		entity := &protoFileEntity{name: name, body: parsedBody}
		for _, body := range parsedBody.ProtoBody {
			if b, ok := body.(*protoparserparser.Import); ok { // resolve relation for each import
				importPath := strings.Trim(b.Location, `"`)
				entity.imports = append(entity.imports, importPath)
				if err := dfs(importPath); err != nil {
					return err
				}
			}
		}
		result = append(result, entity)
		return nil
	}

	if err := dfs(strings.Trim(protoFile, `"`)); err != nil {
		return nil, err
	}
	return result, nil
}

// registerBuiltin registers a google/protobuf file linked into the binary.
func (r *Registry) registerBuiltin(name string) error {
	fd, err := protoregistry.GlobalFiles.FindFileByPath(name)
	if err != nil {
		return fmt.Errorf("import %s not found on proto paths and not built in: %w", name, err)
	}
	return r.RegisterFile(fd)
}

func (r *Registry) findIfProtoExists(protoPath string) (string, error) {
	var (
		fullPath      string
		fullProtoPath string
		err           error
	)
	protoPath = strings.Trim(protoPath, `"`)
	if !strings.HasSuffix(protoPath, ".proto") {
		return "", fmt.Errorf("is not a .proto file %s", protoPath)
	}
	for _, dir := range r.ProtoPaths {
		fullPath = path.Join(dir, protoPath)
		// Check if the path exists
		if _, err = os.Stat(fullPath); err == nil {
			fullProtoPath = fullPath
			break
		}
	}
	if fullProtoPath == "" {
		if err == nil {
			err = os.ErrNotExist
		}
		return "", fmt.Errorf("path does not exist: %s in %v: %w", protoPath, r.ProtoPaths, err)
	}
	return fullProtoPath, nil
}

/*
This helper function will return the entity for any referenced type,
be it top/file, nested or imported entities. If not found will return an error.
Inner scopes are searched first, as protoc does.
Ref - https://github.com/protocolbuffers/protobuf/blob/b7a5772caf08d62a20fd1bca258f501fa4db022c/src/google/protobuf/descriptor.proto#L186-L191
*/
func getReferencedType(typeName, prefix string, allResolvedEntities map[string]struct{}) (string, error) {
	// check if fully qualified, prefixed by dot
	if strings.HasPrefix(typeName, ".") {
		return getFullyQualifiedType(typeName, allResolvedEntities)
	}
	// try resolving from inner entities up till the parent package
	if result, ok := splitNameAndCheck(typeName, prefix, allResolvedEntities); ok {
		return result, nil
	}
	// check if the entity is referenced from another package via its package name
	if _, ok := allResolvedEntities[typeName]; ok {
		return typeName, nil
	}
	return "", fmt.Errorf("unable to resolve type name: %s", typeName)
}

// splitNameAndCheck splits the prefixName and tries to append the typeName and find the entity for resolution
// it also tries the find the entities defined using relative path
func splitNameAndCheck(typeName, prefix string, allResolvedEntities map[string]struct{}) (string, bool) {
	prefixSplit := strings.Split(prefix, ".")

	for len(prefixSplit) > 0 && prefixSplit[0] != "" {
		entityName := strings.Join(prefixSplit, ".") + "." + typeName
		if _, ok := allResolvedEntities[entityName]; ok {
			return entityName, true
		}
		// Omit the last element in each iteration as we go level above to outer entity
		prefixSplit = prefixSplit[:len(prefixSplit)-1]
	}
	return "", false
}

func getFullyQualifiedType(typeName string, allResolvedEntities map[string]struct{}) (string, error) {
	typeName = strings.TrimPrefix(typeName, ".")
	if _, ok := allResolvedEntities[typeName]; ok {
		return typeName, nil
	}
	return "", fmt.Errorf("unable to resolve fully qualified type name: .%s", typeName)
}

// toLowerCamel derives the default JSON name of a field: underscores are
// dropped and the letter after each one is upper-cased.
func toLowerCamel(name string) string {
	var sb strings.Builder
	upper := false
	for _, c := range name {
		if c == '_' {
			upper = true
			continue
		}
		if upper {
			c = unicode.ToUpper(c)
			upper = false
		}
		sb.WriteRune(c)
	}
	return sb.String()
}
