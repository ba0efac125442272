package prompt

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"google.golang.org/genai"

	"storytime-pipeline/config"
)

type fakeCaller struct {
	text string
	err  error
}

func (f *fakeCaller) Generate(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []*genai.Part{{Text: f.text}}}},
		},
	}, nil
}

const goodPrompt = "Generate a story about a curious otter going on an adventure in a coral reef in a highly detailed 3d cartoon animation style. Each scene should have both a text description and a matching image."

func TestRunUsesModelPrompt(t *testing.T) {
	g := New(config.Default(), &fakeCaller{text: goodPrompt})
	got, err := g.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(got, "a curious otter") {
		t.Errorf("prompt = %q", got)
	}
}

func TestRunExtractsQuotedPrompt(t *testing.T) {
	g := New(config.Default(), &fakeCaller{text: fmt.Sprintf("Sure! Here it is: \"%s\"", goodPrompt)})
	got, err := g.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if strings.Contains(got, "Sure!") {
		t.Errorf("surrounding prose not stripped: %q", got)
	}
	if !matchesTemplate(got) {
		t.Errorf("extracted prompt lost the template: %q", got)
	}
}

func TestRunFallsBackOnError(t *testing.T) {
	g := New(config.Default(), &fakeCaller{err: fmt.Errorf("quota exceeded")})
	got, err := g.Run(context.Background())
	if err != nil {
		t.Fatalf("Run must not propagate model errors: %v", err)
	}
	if !matchesTemplate(got) {
		t.Errorf("fallback prompt lost the template: %q", got)
	}
}

func TestRunFallsBackOnWrongShape(t *testing.T) {
	g := New(config.Default(), &fakeCaller{text: "Once upon a time there was an otter."})
	got, err := g.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !matchesTemplate(got) {
		t.Errorf("fallback prompt lost the template: %q", got)
	}
}

func TestFallbackShape(t *testing.T) {
	for i := 0; i < 20; i++ {
		p := Fallback()
		if !matchesTemplate(p) {
			t.Fatalf("fallback prompt lost the template: %q", p)
		}
		if strings.Contains(p, "%s") {
			t.Fatalf("unfilled placeholder in %q", p)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		ok   bool
	}{
		{"exact template", goodPrompt, true},
		{"quoted inside prose", `Here: "` + goodPrompt + `"`, true},
		{"free text", "a nice story please", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := validate(tt.in)
			if ok != tt.ok {
				t.Errorf("validate(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			}
		})
	}
}
