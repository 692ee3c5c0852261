package language

import (
	"strings"

	"github.com/google/shlex"

	appErr "gradebox/pkg/errors"
)

// Template placeholders. {sources}, {args} and {eval} splice zero or more
// tokens in place; the others substitute a single token.
const (
	tokenExe     = "{exe}"
	tokenSources = "{sources}"
	tokenMain    = "{main}"
	tokenArgs    = "{args}"
	tokenEval    = "{eval}"
)

// Spec defines a language from configuration rather than code, so
// deployments can add toolchains without a rebuild.
type Spec struct {
	Name                string   `yaml:"name"`
	SourceExtensions    []string `yaml:"sourceExtensions"`
	HeaderExtensions    []string `yaml:"headerExtensions"`
	ObjectExtensions    []string `yaml:"objectExtensions"`
	ExecutableExtension string   `yaml:"executableExtension"`

	// Compile holds one shell-style template per compilation command.
	Compile []string `yaml:"compile"`
	// Evaluate holds the templates invoking the artifact.
	Evaluate []string `yaml:"evaluate"`
	// EvalDefine is spliced at {eval} only for evaluation-mode compiles.
	EvalDefine string `yaml:"evalDefine"`
}

// Custom is a Language built from a Spec. Templates are tokenized once at
// construction; command generation is pure substitution and cannot fail.
type Custom struct {
	spec           Spec
	compileTokens  [][]string
	evaluateTokens [][]string
}

// NewCustom validates and tokenizes the spec's command templates.
func NewCustom(spec Spec) (*Custom, error) {
	if spec.Name == "" {
		return nil, appErr.ValidationError("name", "required")
	}
	if len(spec.SourceExtensions) == 0 {
		return nil, appErr.ValidationError("sourceExtensions", "required")
	}
	compileTokens, err := tokenizeTemplates(spec.Compile)
	if err != nil {
		return nil, err
	}
	evaluateTokens, err := tokenizeTemplates(spec.Evaluate)
	if err != nil {
		return nil, err
	}
	if len(compileTokens) == 0 {
		return nil, appErr.New(appErr.TemplateInvalid).WithMessage("at least one compile template is required")
	}
	if len(evaluateTokens) == 0 {
		return nil, appErr.New(appErr.TemplateInvalid).WithMessage("at least one evaluate template is required")
	}
	return &Custom{
		spec:           spec,
		compileTokens:  compileTokens,
		evaluateTokens: evaluateTokens,
	}, nil
}

func tokenizeTemplates(templates []string) ([][]string, error) {
	out := make([][]string, 0, len(templates))
	for _, tpl := range templates {
		tokens, err := shlex.Split(tpl)
		if err != nil {
			return nil, appErr.Wrapf(err, appErr.TemplateInvalid, "parse command template failed")
		}
		if len(tokens) == 0 {
			return nil, appErr.New(appErr.TemplateInvalid).WithMessage("command template is empty")
		}
		out = append(out, tokens)
	}
	return out, nil
}

func (c *Custom) Name() string { return c.spec.Name }

func (c *Custom) SourceExtensions() []string { return c.spec.SourceExtensions }

func (c *Custom) HeaderExtensions() []string { return c.spec.HeaderExtensions }

func (c *Custom) ObjectExtensions() []string { return c.spec.ObjectExtensions }

func (c *Custom) ExecutableExtension() string { return c.spec.ExecutableExtension }

func (c *Custom) CompilationCommands(sourceFilenames []string, executableFilename string, forEvaluation bool) [][]string {
	commands := make([][]string, 0, len(c.compileTokens))
	for _, tokens := range c.compileTokens {
		command := make([]string, 0, len(tokens)+len(sourceFilenames))
		for _, token := range tokens {
			switch token {
			case tokenSources:
				command = append(command, sourceFilenames...)
			case tokenEval:
				if forEvaluation && c.spec.EvalDefine != "" {
					command = append(command, c.spec.EvalDefine)
				}
			default:
				// {exe} may be embedded in a longer token, e.g. "./{exe}".
				command = append(command, strings.ReplaceAll(token, tokenExe, executableFilename))
			}
		}
		commands = append(commands, command)
	}
	return commands
}

func (c *Custom) EvaluationCommands(executableFilename, main string, args []string) [][]string {
	entry := main
	if entry == "" {
		entry = executableFilename
	}
	commands := make([][]string, 0, len(c.evaluateTokens))
	for _, tokens := range c.evaluateTokens {
		command := make([]string, 0, len(tokens)+len(args))
		for _, token := range tokens {
			if token == tokenArgs {
				command = append(command, args...)
				continue
			}
			token = strings.ReplaceAll(token, tokenExe, executableFilename)
			token = strings.ReplaceAll(token, tokenMain, entry)
			command = append(command, token)
		}
		commands = append(commands, command)
	}
	return commands
}
