package language

import (
	"path/filepath"
	"strings"
)

// mainFilename is the designated entry-point name inside the packaged
// bundle; the interpreter looks it up when handed the zip.
const mainFilename = "__main__.pyc"

// Python3CPython defines the Python programming language, version 3, using
// the default CPython interpreter on the system. Compilation byte-compiles
// every source and packages the results into a zip bundle, so the artifact
// is self-contained.
type Python3CPython struct {
	CompiledLanguage
}

func (Python3CPython) Name() string { return "Python 3 / CPython" }

func (Python3CPython) SourceExtensions() []string { return []string{".py"} }

func (Python3CPython) ExecutableExtension() string { return ".zip" }

func (Python3CPython) CompilationCommands(sourceFilenames []string, executableFilename string, forEvaluation bool) [][]string {
	var commands [][]string
	var filesToPackage []string
	// -b writes the compiled files next to the sources instead of into
	// __pycache__, keeping the legacy names the packaging step expects.
	commands = append(commands, []string{"/usr/bin/python3", "-m", "compileall", "-b", "."})
	for idx, sourceFilename := range sourceFilenames {
		basename := strings.TrimSuffix(filepath.Base(sourceFilename), filepath.Ext(sourceFilename))
		pycFilename := basename + ".pyc"
		// The file with the entry point must be in first position.
		if idx == 0 {
			commands = append(commands, []string{"/bin/mv", pycFilename, mainFilename})
			filesToPackage = append(filesToPackage, mainFilename)
		} else {
			filesToPackage = append(filesToPackage, pycFilename)
		}
	}
	commands = append(commands, append([]string{"/usr/bin/zip", executableFilename}, filesToPackage...))
	return commands
}

func (Python3CPython) EvaluationCommands(executableFilename, main string, args []string) [][]string {
	command := append([]string{"/usr/bin/python3", executableFilename}, args...)
	return [][]string{command}
}
