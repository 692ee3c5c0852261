package language

// Cpp17Gpp defines the C++ programming language, compiled with the system
// g++ using the C++17 standard.
type Cpp17Gpp struct {
	CompiledLanguage
}

func (Cpp17Gpp) Name() string { return "C++17 / g++" }

func (Cpp17Gpp) SourceExtensions() []string { return []string{".cpp", ".cc", ".cxx"} }

func (Cpp17Gpp) HeaderExtensions() []string { return []string{".h", ".hpp"} }

func (Cpp17Gpp) ObjectExtensions() []string { return []string{".o"} }

func (Cpp17Gpp) CompilationCommands(sourceFilenames []string, executableFilename string, forEvaluation bool) [][]string {
	command := []string{"/usr/bin/g++"}
	if forEvaluation {
		command = append(command, "-DEVAL")
	}
	command = append(command, "-std=gnu++17", "-O2", "-pipe", "-static", "-s", "-o", executableFilename)
	command = append(command, sourceFilenames...)
	return [][]string{command}
}
