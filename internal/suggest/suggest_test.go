package suggest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/IshaanNene/topicscout/internal/config"
	"github.com/IshaanNene/topicscout/internal/search"
	"github.com/IshaanNene/topicscout/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

var fixedNow = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		output    string
		wantN     int
		wantTitle string
		wantDesc  string
	}{
		{
			name:      "array",
			output:    `[{"title":"AI 工具测评","heat":92.4,"keywords":["AI","工具"],"platform":"知乎"},{"title":"第二个"}]`,
			wantN:     2,
			wantTitle: "AI 工具测评",
		},
		{
			name:      "fenced",
			output:    "Sure!\n```json\n[{\"title\":\"围棋入门\",\"description\":\"从零开始\"}]\n```\n",
			wantN:     1,
			wantTitle: "围棋入门",
			wantDesc:  "从零开始",
		},
		{
			name:      "chinese object",
			output:    `结果如下：{"选题标题":"露营装备清单","核心亮点":["轻量","省钱"]}`,
			wantN:     1,
			wantTitle: "露营装备清单",
			wantDesc:  "轻量 省钱",
		},
		{
			name:      "directions",
			output:    `{"选题标题":"城市骑行","内容方向":["路线","装备"]}`,
			wantN:     1,
			wantTitle: "城市骑行",
			wantDesc:  "路线 装备",
		},
		{name: "garbage", output: "I cannot help with that.", wantN: 0},
		{name: "empty array", output: "[]", wantN: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.output, fixedNow)
			if got == nil {
				t.Fatal("Parse returned nil")
			}
			if len(got) != tt.wantN {
				t.Fatalf("got %d suggestions, want %d", len(got), tt.wantN)
			}
			if tt.wantN == 0 {
				return
			}
			if got[0].Title != tt.wantTitle {
				t.Errorf("title = %q, want %q", got[0].Title, tt.wantTitle)
			}
			if tt.wantDesc != "" && got[0].Description != tt.wantDesc {
				t.Errorf("description = %q, want %q", got[0].Description, tt.wantDesc)
			}
		})
	}
}

func TestParseDefaults(t *testing.T) {
	got := Parse(`[{"heat":92.4,"keywords":"not a list"}]`, fixedNow)
	if len(got) != 1 {
		t.Fatalf("got %d suggestions", len(got))
	}
	s := got[0]
	if s.Title != "选题建议 1" || s.Heat != 92 || s.Platform != defaultPlatform || s.Category != defaultCategory {
		t.Errorf("unexpected defaults: %+v", s)
	}
	if s.EstimatedViews != defaultViews || s.Difficulty != "easy" || s.CompetitionLevel != "medium" {
		t.Errorf("unexpected defaults: %+v", s)
	}
	if s.Keywords == nil || len(s.Keywords) != 0 {
		t.Errorf("keywords = %v, want empty", s.Keywords)
	}
	if s.ID != "suggestion_1772352000000_0" || s.CreatedAt != "2026-03-01T08:00:00Z" {
		t.Errorf("id/createdAt = %q/%q", s.ID, s.CreatedAt)
	}
}

func TestMerge(t *testing.T) {
	a := []Suggestion{{Title: "AI 写作", Platform: "知乎"}, {Title: "AI 写作", Platform: "小红书"}}
	b := []Suggestion{{Title: " ai 写作 ", Platform: "知乎", Heat: 99}, {Title: "新话题", Platform: "知乎"}}

	got := Merge(a, b)
	if len(got) != 3 {
		t.Fatalf("got %d, want 3: %+v", len(got), got)
	}
	if got[0].Heat != 0 {
		t.Error("first occurrence should win")
	}
	if got[2].Title != "新话题" {
		t.Errorf("order not preserved: %+v", got)
	}
}

func TestBuildContext(t *testing.T) {
	long := strings.Repeat("长", 300)
	out := BuildContext([]*types.CrawlResult{
		{Title: "标题一", URL: "https://a.example/1", Platform: "web", Content: "first  line\n second"},
		nil,
		{Title: "标题二", URL: "https://weibo.com/2", Platform: "weibo", Content: long},
	})
	for _, want := range []string{"1. [web] 标题一", "https://a.example/1", "first line second", "2. [weibo] 标题二"} {
		if !strings.Contains(out, want) {
			t.Errorf("context missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, long) {
		t.Error("long content was not truncated")
	}
}

type fakeWeb struct {
	results []*types.CrawlResult
	err     error
}

func (f *fakeWeb) SearchWeb(context.Context, string, search.Options) ([]*types.CrawlResult, error) {
	return f.results, f.err
}

type fakeLLM struct {
	output string
	prompt string
}

func (f *fakeLLM) Generate(_ context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.output, nil
}

func TestGenerator(t *testing.T) {
	web := &fakeWeb{results: []*types.CrawlResult{{Title: "量子计算新突破", URL: "https://n.example/q", Platform: "web"}}}
	llm := &fakeLLM{output: `[{"title":"A","platform":"知乎"},{"title":"a","platform":"知乎"},{"title":"B"},{"title":"C"}]`}
	g := NewGenerator(web, llm, search.Options{}, testLogger, WithClock(func() time.Time { return fixedNow }))

	got, err := g.Generate(context.Background(), "量子计算", "知乎", 2)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(got) != 2 || got[0].Title != "A" || got[1].Title != "B" {
		t.Errorf("got %+v", got)
	}
	if !strings.Contains(llm.prompt, "量子计算新突破") || !strings.Contains(llm.prompt, "知乎") {
		t.Errorf("prompt missing context:\n%s", llm.prompt)
	}
}

func TestGeneratorErrors(t *testing.T) {
	g := NewGenerator(&fakeWeb{err: errors.New("down")}, &fakeLLM{}, search.Options{}, testLogger)
	if _, err := g.Generate(context.Background(), "", "", 3); !errors.Is(err, types.ErrEmptyKeyword) {
		t.Errorf("empty keyword err = %v", err)
	}
	if _, err := g.Generate(context.Background(), "x", "", 3); err == nil {
		t.Error("expected search error")
	}
}

func TestLLMClientProviders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		switch r.URL.Path {
		case "/api/generate":
			json.NewEncoder(w).Encode(map[string]any{"response": "ollama:" + payload["prompt"].(string)})
		case "/chat/completions":
			if r.Header.Get("Authorization") != "Bearer k" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"choices": []any{map[string]any{"message": map[string]any{"content": "openai ok"}}},
			})
		default:
			http.Error(w, "boom", http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	tests := []struct {
		provider string
		endpoint string
		key      string
		want     string
		wantErr  bool
	}{
		{provider: ProviderOllama, endpoint: srv.URL, want: "ollama:hi"},
		{provider: ProviderOpenAI, endpoint: srv.URL, key: "k", want: "openai ok"},
		{provider: ProviderOpenAI, endpoint: srv.URL, key: "wrong", wantErr: true},
		{provider: ProviderCustom, endpoint: srv.URL + "/custom", wantErr: true},
		{provider: "mystery", endpoint: srv.URL, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.provider+"/"+tt.key, func(t *testing.T) {
			cfg := config.DefaultConfig().AI
			cfg.Provider, cfg.Endpoint, cfg.APIKey = tt.provider, tt.endpoint, tt.key
			got, err := NewLLMClient(cfg, testLogger).Generate(context.Background(), "hi")
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
