package seo

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"google.golang.org/genai"

	"storytime-pipeline/config"
	"storytime-pipeline/types"
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

func testStory() *types.Story {
	return &types.Story{
		Title:      "Milo's Big Day",
		Segments:   []string{"Milo woke up early.", "He packed his tiny bag."},
		PromptText: "Generate a story about a curious fox going on an adventure in an enchanted forest in a highly detailed 3d cartoon animation style",
	}
}

func TestRunParsesModelJSON(t *testing.T) {
	caller := &fakeCaller{text: "```json\n" + `{
		"title": "Milo the Fox Explores the Enchanted Forest",
		"description": "Milo the fox sets off on a big adventure. Subscribe!",
		"tags": ["kids stories", "fox adventure", "bedtime stories"]
	}` + "\n```"}

	g := New(config.Default(), caller)
	meta := g.Run(context.Background(), testStory())

	if meta.Fallback {
		t.Error("should not have used fallback")
	}
	if meta.Title != "Milo the Fox Explores the Enchanted Forest" {
		t.Errorf("title = %q", meta.Title)
	}
	if len(meta.Tags) < config.Default().Metadata.TagsMin {
		t.Errorf("tags not padded to minimum: %d", len(meta.Tags))
	}
}

func TestRunFallsBackOnModelError(t *testing.T) {
	g := New(config.Default(), &fakeCaller{err: fmt.Errorf("boom")})
	meta := g.Run(context.Background(), testStory())

	if !meta.Fallback {
		t.Fatal("expected fallback metadata")
	}
	if !strings.Contains(meta.Description, "a curious fox") {
		t.Errorf("fallback description missing character: %q", meta.Description)
	}
	if !strings.Contains(meta.Description, "an enchanted forest") {
		t.Errorf("fallback description missing setting: %q", meta.Description)
	}
}

func TestRunFallsBackOnBadJSON(t *testing.T) {
	g := New(config.Default(), &fakeCaller{text: "Sorry, I cannot do that."})
	meta := g.Run(context.Background(), testStory())
	if !meta.Fallback {
		t.Fatal("expected fallback metadata")
	}
}

func TestSubjectFromPrompt(t *testing.T) {
	tests := []struct {
		name          string
		prompt        string
		wantCharacter string
		wantSetting   string
	}{
		{
			"template prompt",
			"Generate a story about a sleepy panda going on an adventure in a bamboo valley in a highly detailed 3d cartoon animation style",
			"a sleepy panda", "a bamboo valley",
		},
		{
			"trailing period",
			"a story about a tiny robot going on an adventure in the big city.",
			"a tiny robot", "the big city",
		},
		{
			"no match",
			"write me something nice",
			"a brave little hero", "a magical land",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, s := subjectFromPrompt(tt.prompt)
			if c != tt.wantCharacter || s != tt.wantSetting {
				t.Errorf("got (%q, %q), want (%q, %q)", c, s, tt.wantCharacter, tt.wantSetting)
			}
		})
	}
}

func TestTruncateTitle(t *testing.T) {
	long := strings.Repeat("a", 80)
	got := truncateTitle(long, 60)
	if len(got) > 60 {
		t.Errorf("len = %d, want <= 60", len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("truncated title should end with ellipsis: %q", got)
	}
	if truncateTitle("short", 60) != "short" {
		t.Error("short title must pass through unchanged")
	}
}

func TestTruncateTitleMultibyte(t *testing.T) {
	long := strings.Repeat("ü", 80)
	got := truncateTitle(long, 60)
	if !utf8.ValidString(got) {
		t.Errorf("truncation split a rune: %q", got)
	}
	if n := utf8.RuneCountInString(got); n > 60 {
		t.Errorf("rune count = %d, want <= 60", n)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("truncated title should end with ellipsis: %q", got)
	}

	// Titles at the limit pass through even when their byte length is larger.
	exact := strings.Repeat("é", 60)
	if truncateTitle(exact, 60) != exact {
		t.Error("title at the rune limit must pass through unchanged")
	}
}

func TestClampTags(t *testing.T) {
	g := New(config.Default(), nil)

	tags := g.clampTags([]string{"one", "One", " one ", "two"})
	if len(tags) < config.Default().Metadata.TagsMin {
		t.Errorf("tags not padded: %d", len(tags))
	}
	seen := make(map[string]bool)
	for _, tag := range tags {
		key := strings.ToLower(strings.TrimSpace(tag))
		if seen[key] {
			t.Errorf("duplicate tag %q", tag)
		}
		seen[key] = true
	}

	var many []string
	for i := 0; i < 40; i++ {
		many = append(many, fmt.Sprintf("tag-%d", i))
	}
	if got := len(g.clampTags(many)); got != config.Default().Metadata.TagsMax {
		t.Errorf("tags not clamped: %d", got)
	}
}

func TestPickIndex(t *testing.T) {
	if pickIndex(1) != 0 {
		t.Error("single image must use index 0")
	}
	if pickIndex(6) != 1 {
		t.Error("multiple images must use the second image")
	}
}
