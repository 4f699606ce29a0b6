package renderer

import (
	"github.com/Carmen-Shannon/oxy-zen/engine/logger"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/shader"
)

// ContextBuilderOption is a functional option applied to a Context during construction via NewContext.
type ContextBuilderOption func(*renderContext)

// WithIncludes replaces the Context's include registry, letting several Contexts share one.
//
// Parameters:
//   - reg: the include registry to consult when pipelines are created
//
// Returns:
//   - ContextBuilderOption: a function that applies the registry to a Context
func WithIncludes(reg shader.IncludeRegistry) ContextBuilderOption {
	return func(c *renderContext) {
		if reg != nil {
			c.includes = reg
		}
	}
}

// WithInclude registers a single include snippet.
//
// Parameters:
//   - name: the name used by #include directives
//   - source: the WGSL snippet
//
// Returns:
//   - ContextBuilderOption: a function that registers the include on a Context
func WithInclude(name, source string) ContextBuilderOption {
	return func(c *renderContext) {
		c.includes.Set(name, source)
	}
}

// WithIncludeDir registers every .wgsl file of dir, named by its base name without extension.
// A directory that cannot be read is logged and skipped.
//
// Parameters:
//   - dir: the directory holding the snippets
//
// Returns:
//   - ContextBuilderOption: a function that loads the directory into a Context
func WithIncludeDir(dir string) ContextBuilderOption {
	return func(c *renderContext) {
		names, err := shader.LoadIncludeDir(c.includes, dir)
		if err != nil {
			logger.Logger().Warn("renderer: include dir not loaded", "dir", dir, "error", err)
			return
		}
		logger.Logger().Debug("renderer: includes loaded", "dir", dir, "count", len(names))
	}
}
