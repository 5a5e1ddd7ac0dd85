package cli

import (
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/alecthomas/kong"
	"github.com/samber/lo"
)

// CompletionCmd generates shell completions
type CompletionCmd struct {
	Shell string `arg:"" enum:"bash,zsh,fish" help:"Shell type (bash, zsh, fish)"`
}

// completionIndex is the command tree flattened by path ("settings__threshold").
type completionIndex struct {
	Paths []completionPath
	Enums []completionEnum
	Root  completionPath
}

type completionPath struct {
	Key         string
	Subcommands string
	Flags       string
}

type completionEnum struct {
	Token  string
	Long   string
	Values string
}

// Run executes the completion command. It takes *kong.Context so the
// script always matches the real command model.
func (c *CompletionCmd) Run(globals *Globals, ctx *kong.Context) error {
	var model *kong.Node
	if ctx != nil && ctx.Model != nil {
		model = ctx.Model.Node
	}
	idx := buildCompletionIndex(model)

	tmpl, ok := completionTemplates[c.Shell]
	if !ok {
		return fmt.Errorf("unsupported shell: %s", c.Shell)
	}
	return tmpl.Execute(globals.Stdout, idx)
}

func buildCompletionIndex(model *kong.Node) completionIndex {
	idx := completionIndex{}
	if model == nil {
		return idx
	}
	enums := map[string]completionEnum{}

	var walk func(n *kong.Node, path []string)
	walk = func(n *kong.Node, path []string) {
		children := lo.Filter(n.Children, func(child *kong.Node, _ int) bool {
			return child != nil && child.Type == kong.CommandNode && !child.Hidden
		})
		subs := lo.FlatMap(children, func(child *kong.Node, _ int) []string {
			return append([]string{child.Name}, child.Aliases...)
		})

		var flags []string
		for _, group := range n.AllFlags(true) {
			for _, f := range group {
				if f == nil {
					continue
				}
				tokens := flagTokens(f)
				flags = append(flags, tokens...)
				if f.Enum == "" {
					continue
				}
				values := lo.Compact(lo.Map(strings.Split(f.Enum, ","), func(v string, _ int) string {
					return strings.TrimSpace(v)
				}))
				for _, token := range tokens {
					// global flags show up on every node; first one wins
					if _, seen := enums[token]; !seen && len(values) > 0 {
						enums[token] = completionEnum{
							Token:  token,
							Long:   strings.TrimPrefix(token, "--"),
							Values: strings.Join(values, " "),
						}
					}
				}
			}
		}

		p := completionPath{
			Key:         strings.Join(path, "__"),
			Subcommands: strings.Join(sortedUnique(subs), " "),
			Flags:       strings.Join(sortedUnique(flags), " "),
		}
		idx.Paths = append(idx.Paths, p)
		if len(path) == 0 {
			idx.Root = p
		}
		for _, child := range children {
			walk(child, append(append([]string{}, path...), child.Name))
		}
	}
	walk(model, nil)

	sort.Slice(idx.Paths, func(i, j int) bool { return idx.Paths[i].Key < idx.Paths[j].Key })
	idx.Enums = lo.Values(enums)
	sort.Slice(idx.Enums, func(i, j int) bool { return idx.Enums[i].Token < idx.Enums[j].Token })
	return idx
}

func flagTokens(f *kong.Flag) []string {
	tokens := []string{"--" + f.Name}
	if f.Short != 0 {
		tokens = append(tokens, "-"+string(f.Short))
	}
	for _, a := range f.Aliases {
		if a = strings.TrimSpace(a); a != "" {
			tokens = append(tokens, "--"+a)
		}
	}
	return tokens
}

func sortedUnique(in []string) []string {
	out := lo.Uniq(lo.Compact(in))
	sort.Strings(out)
	return out
}

var completionTemplates = map[string]*template.Template{
	"bash": template.Must(template.New("bash").Parse(bashCompletion)),
	"zsh":  template.Must(template.New("zsh").Parse(zshCompletion)),
	"fish": template.Must(template.New("fish").
		Funcs(template.FuncMap{"split": strings.Fields}).
		Parse(fishCompletion)),
}

const bashCompletion = `# readtime bash completion script
# Add to ~/.bashrc:
#   eval "$(readtime completion bash)"

_readtime_node() {
    case "$1" in
{{- range .Paths}}
        "{{.Key}}") subcommands="{{.Subcommands}}"; flags="{{.Flags}}"; return 0 ;;
{{- end}}
    esac
    return 1
}

_readtime_completions() {
    local cur="${COMP_WORDS[COMP_CWORD]}"
    local prev="${COMP_WORDS[COMP_CWORD-1]}"
    local subcommands="" flags=""

    case "${prev}" in
{{- range .Enums}}
        {{.Token}}) COMPREPLY=($(compgen -W "{{.Values}}" -- "${cur}")); return ;;
{{- end}}
    esac

    local path="" candidate="" i
    for ((i=1; i < COMP_CWORD; i++)); do
        local w="${COMP_WORDS[i]}"
        [[ -z "${w}" || "${w}" == -* ]] && continue
        candidate="${candidate:+${candidate}__}${w}"
        _readtime_node "${candidate}" && path="${candidate}" || break
    done
    _readtime_node "${path}"

    if [[ "${cur}" == -* ]]; then
        COMPREPLY=($(compgen -W "${flags}" -- "${cur}"))
    else
        COMPREPLY=($(compgen -W "${subcommands}" -- "${cur}"))
    fi
}

complete -F _readtime_completions readtime
`

const zshCompletion = `#compdef readtime
# readtime zsh completion script
# Add to ~/.zshrc:
#   eval "$(readtime completion zsh)"

autoload -U +X bashcompinit && bashcompinit
` + bashCompletion

const fishCompletion = `# readtime fish completion script
# Add to ~/.config/fish/completions/readtime.fish

complete -c readtime -f
{{- range (split .Root.Subcommands)}}
complete -c readtime -n "__fish_use_subcommand" -a "{{.}}"
{{- end}}
{{- range .Enums}}{{if ne .Long .Token}}
complete -c readtime -l {{.Long}} -xa "{{.Values}}"
{{- end}}{{end}}
`
