package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/bufbuild/protocompile"
)

// Compile runs the full protocompile front end over files (import paths
// relative to ProtoPaths) and registers the linked result. Unlike LoadFile it
// validates the sources completely and understands editions syntax. The
// google/protobuf standard imports are always available.
func (r *Registry) Compile(ctx context.Context, files ...string) error {
	compiler := protocompile.Compiler{
		Resolver: protocompile.WithStandardImports(&protocompile.SourceResolver{
			ImportPaths: r.ProtoPaths,
		}),
	}
	linked, err := compiler.Compile(ctx, files...)
	if err != nil {
		return fmt.Errorf("failed to compile %s: %w", strings.Join(files, ", "), err)
	}
	for _, fd := range linked {
		if err := r.RegisterFile(fd); err != nil {
			return err
		}
	}
	log.Debugf("compiled %d files", len(linked))
	return nil
}
