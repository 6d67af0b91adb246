package mention

import (
	"fmt"
	"testing"

	"github.com/adamavenir/huddle/internal/types"
	"github.com/google/go-cmp/cmp"
)

func directory() []types.MentionCandidate {
	return []types.MentionCandidate{
		{UserID: "usr-1", Name: "Marco", Email: "marco@example.com"},
		{UserID: "usr-2", Name: "Maria", Email: "maria@example.com"},
		{UserID: "usr-3", Name: "Nelson", Email: "nelson@example.com"},
	}
}

func names(cands []types.MentionCandidate) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.Name
	}
	return out
}

func TestSuggestionsFor(t *testing.T) {
	r := NewResolver(directory())
	cases := []struct {
		query string
		want  []string
	}{
		{query: "Ma", want: []string{"Marco", "Maria"}},
		{query: "ma", want: []string{"Marco", "Maria"}},
		{query: "NEL", want: []string{"Nelson"}},
		{query: "example", want: []string{"Marco", "Maria", "Nelson"}},
		{query: "zz", want: []string{}},
	}
	for _, tc := range cases {
		got := names(r.SuggestionsFor(tc.query))
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Fatalf("query %q (-want +got):\n%s", tc.query, diff)
		}
	}
}

func TestSuggestionsCapped(t *testing.T) {
	var many []types.MentionCandidate
	for i := 0; i < 12; i++ {
		many = append(many, types.MentionCandidate{UserID: fmt.Sprintf("usr-%d", i), Name: fmt.Sprintf("user%d", i)})
	}
	got := NewResolver(many).SuggestionsFor("user")
	if len(got) != SuggestionLimit {
		t.Fatalf("expected %d suggestions, got %d", SuggestionLimit, len(got))
	}
	if got[0].Name != "user0" || got[7].Name != "user7" {
		t.Fatalf("directory order not preserved: %v", names(got))
	}
}

func TestFindTrigger(t *testing.T) {
	cases := []struct {
		name   string
		text   string
		cursor int
		pos    int
		query  string
		ok     bool
	}{
		{name: "start of text", text: "@ma", cursor: 3, pos: 1, query: "ma", ok: true},
		{name: "after space", text: "hi @ma", cursor: 6, pos: 4, query: "ma", ok: true},
		{name: "after newline", text: "hi\n@n", cursor: 5, pos: 4, query: "n", ok: true},
		{name: "bare at", text: "hi @", cursor: 4, pos: 4, query: "", ok: true},
		{name: "cursor mid query", text: "@marco", cursor: 3, pos: 1, query: "ma", ok: true},
		{name: "space before completion", text: "@ma ", cursor: 4, ok: false},
		{name: "email-like", text: "bob@ma", cursor: 6, ok: false},
		{name: "no at", text: "hello", cursor: 5, ok: false},
		{name: "multibyte prefix", text: "héllo @m", cursor: 8, pos: 7, query: "m", ok: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pos, query, ok := FindTrigger(tc.text, tc.cursor)
			if ok != tc.ok || pos != tc.pos || query != tc.query {
				t.Fatalf("FindTrigger(%q, %d) = (%d, %q, %v), want (%d, %q, %v)",
					tc.text, tc.cursor, pos, query, ok, tc.pos, tc.query, tc.ok)
			}
		})
	}
}

func TestNavigationWraps(t *testing.T) {
	r := NewResolver(directory())
	r.OnTextChanged("@ma", 3)

	if r.State().HighlightedIndex != -1 {
		t.Fatalf("expected nothing highlighted initially")
	}
	steps := []struct {
		key  Key
		want int
	}{
		{KeyDown, 0},
		{KeyDown, 1},
		{KeyDown, 0},
		{KeyUp, 1},
		{KeyUp, 0},
	}
	for i, step := range steps {
		if res := r.HandleKey(step.key); !res.Handled {
			t.Fatalf("step %d not handled", i)
		}
		if got := r.State().HighlightedIndex; got != step.want {
			t.Fatalf("step %d: highlighted %d, want %d", i, got, step.want)
		}
	}

	r.Escape()
	r.OnTextChanged("@mar", 4)
	r.HandleKey(KeyUp)
	if got := r.State().HighlightedIndex; got != 1 {
		t.Fatalf("Up with nothing highlighted should select the last; got %d", got)
	}
}

func TestCommitReplacesTriggerSpan(t *testing.T) {
	text, cursor := Commit(types.MentionCandidate{Name: "Maria"}, "hi @ma and", 4, 6)
	if text != "hi @Maria  and" || cursor != 10 {
		t.Fatalf("Commit = (%q, %d)", text, cursor)
	}
}

func TestEnterAndTabCommit(t *testing.T) {
	r := NewResolver(directory())
	r.OnTextChanged("hey @ma", 7)

	if res := r.HandleKey(KeyEnter); res.Handled {
		t.Fatalf("Enter with nothing highlighted must fall through to the composer")
	}
	r.HandleKey(KeyDown)
	r.HandleKey(KeyDown)
	res := r.HandleKey(KeyEnter)
	if !res.Committed || res.Text != "hey @Maria " || res.Cursor != 11 {
		t.Fatalf("unexpected enter result %+v", res)
	}
	if r.State() != nil {
		t.Fatalf("trigger should clear after commit")
	}

	r.OnTextChanged("@n", 2)
	res = r.HandleKey(KeyTab)
	if !res.Committed || res.Text != "@Nelson " || res.Cursor != 8 {
		t.Fatalf("Tab with nothing highlighted should commit the first: %+v", res)
	}
}

func TestEscapeAndSpaceClear(t *testing.T) {
	r := NewResolver(directory())
	r.OnTextChanged("@ma", 3)
	if res := r.HandleKey(KeyEscape); !res.Handled || r.State() != nil {
		t.Fatalf("escape should clear the trigger")
	}

	r.OnTextChanged("@ma", 3)
	r.OnTextChanged("@ma ", 4)
	if r.State() != nil {
		t.Fatalf("space before completion should clear the trigger")
	}
	if res := r.HandleKey(KeyDown); res.Handled {
		t.Fatalf("keys must not be handled without a trigger")
	}
}
