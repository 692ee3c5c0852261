package language

// Rust defines the Rust programming language, compiled with the standard
// Rust compiler available on the system.
type Rust struct {
	CompiledLanguage
}

func (Rust) Name() string { return "Rust" }

func (Rust) SourceExtensions() []string { return []string{".rs"} }

func (Rust) CompilationCommands(sourceFilenames []string, executableFilename string, forEvaluation bool) [][]string {
	// Only the source containing the main function is handed to the
	// compiler; it resolves the module tree itself.
	return [][]string{{"/usr/bin/rustc", "-O", "-o", executableFilename, sourceFilenames[0]}}
}
