package cli

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/vox/internal/compiler"
	"github.com/roach88/vox/internal/matcher"
)

// loadRegistry loads and compiles a pattern directory. Any load or
// compile error is a command error.
func loadRegistry(dir string) (*compiler.Registry, *compiler.LoadResult, error) {
	res, errs := compiler.LoadPatterns(dir, compiler.LoadModeCollectAll)
	if len(errs) > 0 {
		return nil, nil, WrapExitError(ExitCommandError,
			fmt.Sprintf("failed to load patterns from %s", dir), errors.Join(errs...))
	}
	reg, err := res.Registry()
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to compile patterns", err)
	}
	slog.Debug("patterns loaded", "dir", dir, "files", res.FileCount, "patterns", reg.Len(), "hash", reg.Hash)
	return reg, res, nil
}

// newMatcher builds a matcher from the configuration.
func (o *RootOptions) newMatcher(reg *compiler.Registry, extra ...matcher.Option) (*matcher.Matcher, error) {
	opts, err := o.Config.MatcherOptions()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid matcher settings", err)
	}
	opts = append(opts, matcher.WithLogger(o.Logger))
	opts = append(opts, extra...)
	m, err := matcher.New(reg, opts...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to create matcher", err)
	}
	return m, nil
}
