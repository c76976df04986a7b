package chattemplate

import (
	"reflect"
	"strings"
	"testing"

	"localllm/pkg/types"
)

func user(s string) []types.Message { return []types.Message{{Role: types.RoleUser, Content: s}} }

func TestRenderChatML(t *testing.T) {
	got, err := Render("chatml", user("Hello"), true)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	want := "<|im_start|>user\nHello<|im_end|>\n<|im_start|>assistant\n"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
	noGen, _ := Render("chatml", user("Hello"), false)
	if strings.HasSuffix(noGen, "<|im_start|>assistant\n") {
		t.Fatalf("generation prompt should be omitted: %q", noGen)
	}
}

func TestRenderQwen2InjectsSystem(t *testing.T) {
	got, err := Render("", user("Hi"), true)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.HasPrefix(got, "<|im_start|>system\nYou are a helpful assistant.<|im_end|>\n") {
		t.Fatalf("missing default system turn: %q", got)
	}
	withSys := []types.Message{{Role: types.RoleSystem, Content: "Be brief."}, {Role: types.RoleUser, Content: "Hi"}}
	got, _ = Render("qwen2", withSys, true)
	if strings.Contains(got, "helpful assistant") {
		t.Fatalf("explicit system turn should win: %q", got)
	}
}

func TestRenderOtherFamilies(t *testing.T) {
	got, _ := Render("llama3", user(" Hello "), true)
	if !strings.Contains(got, "<|start_header_id|>user<|end_header_id|>\n\nHello<|eot_id|>") {
		t.Fatalf("llama3: %q", got)
	}
	got, _ = Render("gemma", []types.Message{{Role: types.RoleAssistant, Content: "ok"}}, true)
	if !strings.Contains(got, "<start_of_turn>model\nok<end_of_turn>") || !strings.HasSuffix(got, "<start_of_turn>model\n") {
		t.Fatalf("gemma: %q", got)
	}
	got, _ = Render("phi3", user("x"), true)
	if got != "<|user|>\nx<|end|>\n<|assistant|>\n" {
		t.Fatalf("phi3: %q", got)
	}
}

func TestRenderUnknown(t *testing.T) {
	if _, err := Render("nope", user("x"), true); err == nil {
		t.Fatalf("expected error for unknown template")
	}
}

func TestMarkers(t *testing.T) {
	if m := Markers("chatml"); len(m) != 3 || m[0] != "<|im_start|>" {
		t.Fatalf("markers: %v", m)
	}
	if len(Names()) != len(formats) {
		t.Fatalf("names: %v", Names())
	}
}

func TestExtractMarkers(t *testing.T) {
	src := "{% for m in messages %}<|im_start|>{{ m.role }}\n{{ m.content }}<|im_end|>\n{% endfor %}<|im_start|>assistant"
	got := ExtractMarkers(src)
	want := []string{"<|im_end|>", "<|im_start|>"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
	if got := ExtractMarkers("<start_of_turn>user</s>"); !reflect.DeepEqual(got, []string{"</s>", "<start_of_turn>"}) {
		t.Fatalf("gemma/llama2 markers: %v", got)
	}
}
