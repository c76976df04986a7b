// Package chattemplate renders role-tagged messages into the prompt text a
// chat-tuned model was trained on.
package chattemplate

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"text/template"

	"localllm/pkg/types"
)

// Default is used when no template name is configured. It matches the
// Qwen2 instruct family, the default model of this service.
const Default = "qwen2"

type format struct {
	src     string
	markers []string
	// defaultSystem is injected when the conversation has no system turn.
	defaultSystem string
}

var formats = map[string]format{
	"chatml": {
		src:     `{{range .Messages}}<|im_start|>{{.Role}}` + "\n" + `{{.Content}}<|im_end|>` + "\n" + `{{end}}{{if .AddGenerationPrompt}}<|im_start|>assistant` + "\n" + `{{end}}`,
		markers: []string{"<|im_start|>", "<|im_end|>", "<|endoftext|>"},
	},
	"qwen2": {
		src:           `{{range .Messages}}<|im_start|>{{.Role}}` + "\n" + `{{.Content}}<|im_end|>` + "\n" + `{{end}}{{if .AddGenerationPrompt}}<|im_start|>assistant` + "\n" + `{{end}}`,
		markers:       []string{"<|im_start|>", "<|im_end|>", "<|endoftext|>"},
		defaultSystem: "You are a helpful assistant.",
	},
	"llama3": {
		src:     `<|begin_of_text|>{{range .Messages}}<|start_header_id|>{{.Role}}<|end_header_id|>` + "\n\n" + `{{trim .Content}}<|eot_id|>{{end}}{{if .AddGenerationPrompt}}<|start_header_id|>assistant<|end_header_id|>` + "\n\n" + `{{end}}`,
		markers: []string{"<|begin_of_text|>", "<|start_header_id|>", "<|end_header_id|>", "<|eot_id|>", "<|end_of_text|>"},
	},
	"gemma": {
		src:     `<bos>{{range .Messages}}<start_of_turn>{{gemmaRole .Role}}` + "\n" + `{{trim .Content}}<end_of_turn>` + "\n" + `{{end}}{{if .AddGenerationPrompt}}<start_of_turn>model` + "\n" + `{{end}}`,
		markers: []string{"<bos>", "<eos>", "<start_of_turn>", "<end_of_turn>"},
	},
	"phi3": {
		src:     `{{range .Messages}}<|{{.Role}}|>` + "\n" + `{{.Content}}<|end|>` + "\n" + `{{end}}{{if .AddGenerationPrompt}}<|assistant|>` + "\n" + `{{end}}`,
		markers: []string{"<|system|>", "<|user|>", "<|assistant|>", "<|end|>", "<|endoftext|>"},
	},
}

var funcs = template.FuncMap{
	"trim": strings.TrimSpace,
	"gemmaRole": func(r types.Role) string {
		if r == types.RoleAssistant {
			return "model"
		}
		return string(r)
	},
}

var compiled = func() map[string]*template.Template {
	out := make(map[string]*template.Template, len(formats))
	for name, s := range formats {
		out[name] = template.Must(template.New(name).Funcs(funcs).Parse(s.src))
	}
	return out
}()

// Names lists the built-in template names, sorted.
func Names() []string {
	out := make([]string, 0, len(formats))
	for n := range formats {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Render applies the named template to msgs.
func Render(name string, msgs []types.Message, addGenerationPrompt bool) (string, error) {
	if name == "" {
		name = Default
	}
	tpl, ok := compiled[name]
	if !ok {
		return "", fmt.Errorf("unknown chat template %q", name)
	}
	s := formats[name]
	if s.defaultSystem != "" && (len(msgs) == 0 || msgs[0].Role != types.RoleSystem) {
		msgs = append([]types.Message{{Role: types.RoleSystem, Content: s.defaultSystem}}, msgs...)
	}
	var b strings.Builder
	data := struct {
		Messages            []types.Message
		AddGenerationPrompt bool
	}{Messages: msgs, AddGenerationPrompt: addGenerationPrompt}
	if err := tpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return b.String(), nil
}

// Markers returns the control markers emitted by the named template.
func Markers(name string) []string {
	if name == "" {
		name = Default
	}
	return append([]string(nil), formats[name].markers...)
}

var markerRe = regexp.MustCompile(`<\|[A-Za-z0-9_]+\|>|<(?:start|end)_of_turn>|</?s>|<bos>|<eos>`)

// ExtractMarkers finds control-marker literals in an arbitrary template
// source (e.g. a Jinja template reported by a runtime), deduplicated and sorted.
func ExtractMarkers(src string) []string {
	seen := map[string]struct{}{}
	for _, m := range markerRe.FindAllString(src, -1) {
		seen[m] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for m := range seen {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}
