package language

// C11Gcc defines the C programming language, compiled with the system gcc
// using the C11 standard.
type C11Gcc struct {
	CompiledLanguage
}

func (C11Gcc) Name() string { return "C11 / gcc" }

func (C11Gcc) SourceExtensions() []string { return []string{".c"} }

func (C11Gcc) HeaderExtensions() []string { return []string{".h"} }

func (C11Gcc) ObjectExtensions() []string { return []string{".o"} }

func (C11Gcc) CompilationCommands(sourceFilenames []string, executableFilename string, forEvaluation bool) [][]string {
	command := []string{"/usr/bin/gcc"}
	if forEvaluation {
		command = append(command, "-DEVAL")
	}
	command = append(command, "-std=gnu11", "-O2", "-pipe", "-static", "-s", "-o", executableFilename)
	command = append(command, sourceFilenames...)
	command = append(command, "-lm")
	return [][]string{command}
}
