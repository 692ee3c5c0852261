// Package language encapsulates toolchain knowledge as pure command
// builders. A Language answers two questions: which commands turn a set of
// source files into an executable artifact, and which commands invoke that
// artifact. The evaluation pipeline stays toolchain-agnostic by asking a
// Language for commands and handing them to a sandbox verbatim.
package language

// Language describes one programming language/toolchain: the file roles it
// recognizes plus compilation and evaluation command generation.
// Implementations never touch the filesystem or execute anything, and the
// command lists are deterministic given the same inputs; the commands run
// verbatim inside a sandbox.
type Language interface {
	// Name is the human-readable identity of the language.
	Name() string

	// SourceExtensions lists the extensions of compilable sources. The
	// first one is the canonical extension for the language.
	SourceExtensions() []string

	// HeaderExtensions lists extensions of files that accompany sources
	// but are not compiled directly.
	HeaderExtensions() []string

	// ObjectExtensions lists extensions of intermediate object files.
	ObjectExtensions() []string

	// ExecutableExtension is empty when compilation produces a native
	// binary, and set (with a leading dot) when the artifact is a packaged
	// or interpreted bundle.
	ExecutableExtension() string

	// CompilationCommands returns the ordered commands that turn the given
	// sources into an executable artifact. The first source is the
	// program's entry point. Each command must complete, in order, before
	// the next; aborting on a non-zero result is the caller's policy.
	// forEvaluation may toggle preprocessor defines distinguishing
	// evaluation runs from local testing.
	CompilationCommands(sourceFilenames []string, executableFilename string, forEvaluation bool) [][]string

	// EvaluationCommands returns the ordered commands that invoke the
	// compiled artifact with the given runtime arguments. main, when not
	// empty, overrides the default entry point for languages that use one.
	EvaluationCommands(executableFilename, main string, args []string) [][]string
}

// CompiledLanguage carries the defaults shared by natively compiled
// languages: no header/object/executable extensions and a single direct
// invocation of the produced binary. Embed it and override what differs.
type CompiledLanguage struct{}

// invokePath prefixes the artifact with the working directory so the
// command resolves against the sandbox root rather than PATH.
func invokePath(executableFilename string) string {
	return "./" + executableFilename
}

func (CompiledLanguage) HeaderExtensions() []string { return nil }

func (CompiledLanguage) ObjectExtensions() []string { return nil }

func (CompiledLanguage) ExecutableExtension() string { return "" }

func (CompiledLanguage) EvaluationCommands(executableFilename, main string, args []string) [][]string {
	command := append([]string{invokePath(executableFilename)}, args...)
	return [][]string{command}
}
