package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/FixwellAI/fixwell-mvp/engine/chat"
	"github.com/FixwellAI/fixwell-mvp/engine/domain"
)

func TestRenderResponse_PartCard(t *testing.T) {
	response := "The Whirlpool Refrigerator Door Shelf Bin (PS11752778) is in stock at $36.08.\n" +
		"```json-to-render\n" +
		`{"part_name":"Whirlpool Refrigerator Door Shelf Bin","price":"$36.08","partselect_number":"PS11752778","url":"https://www.partselect.com/PS11752778.htm"}` + "\n" +
		"```"

	var out bytes.Buffer
	renderResponse(&out, response)

	got := out.String()
	if !strings.Contains(got, "is in stock at $36.08.") {
		t.Errorf("prose missing:\n%s", got)
	}
	if !strings.Contains(got, "* Whirlpool Refrigerator Door Shelf Bin [PS11752778] $36.08") {
		t.Errorf("card line missing:\n%s", got)
	}
	if !strings.Contains(got, "https://www.partselect.com/PS11752778.htm") {
		t.Errorf("card URL missing:\n%s", got)
	}
	if strings.Contains(got, "```") {
		t.Errorf("fence leaked into rendered output:\n%s", got)
	}
}

func TestRenderResponse_MalformedFragmentPrintedLiterally(t *testing.T) {
	response := "Here you go.\n```json-to-render\n{broken\n```"

	var out bytes.Buffer
	renderResponse(&out, response)

	got := out.String()
	if !strings.Contains(got, "{broken") {
		t.Errorf("malformed body not printed literally:\n%s", got)
	}
	if !strings.Contains(got, "```json-to-render") {
		t.Errorf("malformed fence not printed literally:\n%s", got)
	}
}

func TestRenderResponse_UnterminatedFencePrintedLiterally(t *testing.T) {
	response := "Almost.\n```json-to-render\n{\"part_name\":\"x\"}"

	var out bytes.Buffer
	renderResponse(&out, response)

	if !strings.Contains(out.String(), "```json-to-render") {
		t.Errorf("unterminated fence dropped:\n%s", out.String())
	}
}

func TestREPL_RoundTripPersistsSession(t *testing.T) {
	answer := "The Whirlpool Refrigerator Door Shelf Bin (PS11752778) is in stock at $36.08."
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(ChatResponse{Response: answer})
	}))
	defer srv.Close()

	dir := t.TempDir()
	in := strings.NewReader("Is part PS11752778 in stock?\n/quit\n")
	var out bytes.Buffer

	if err := run(srv.URL, "workbench", dir, in, &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "is in stock at $36.08") {
		t.Errorf("answer not shown:\n%s", out.String())
	}

	repo, err := chat.NewFileRepository(dir)
	if err != nil {
		t.Fatalf("reopen repo: %v", err)
	}
	sess, err := repo.Load("workbench")
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if len(sess.Turns) != 2 {
		t.Fatalf("expected 2 persisted turns, got %d", len(sess.Turns))
	}
	if sess.Turns[0].Role != domain.RoleUser || sess.Turns[1].Role != domain.RoleAssistant {
		t.Errorf("unexpected roles: %s, %s", sess.Turns[0].Role, sess.Turns[1].Role)
	}
	if sess.Turns[1].Content != answer {
		t.Errorf("assistant turn = %q, want server answer", sess.Turns[1].Content)
	}
}

func TestREPL_ServerErrorShowsApology(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	dir := t.TempDir()
	in := strings.NewReader("Is part PS11752778 in stock?\n/quit\n")
	var out bytes.Buffer

	if err := run(srv.URL, "workbench", dir, in, &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "something went wrong on my end") {
		t.Errorf("apology not shown:\n%s", out.String())
	}

	repo, err := chat.NewFileRepository(dir)
	if err != nil {
		t.Fatalf("reopen repo: %v", err)
	}
	if _, err := repo.Load("workbench"); err == nil {
		t.Error("failed exchange should not create a session file")
	}
}

func TestREPL_ResetClearsSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(ChatResponse{Response: "Happy to help."})
	}))
	defer srv.Close()

	dir := t.TempDir()
	in := strings.NewReader("hello there\n/reset\n/quit\n")
	var out bytes.Buffer

	if err := run(srv.URL, "workbench", dir, in, &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "session cleared") {
		t.Errorf("reset not acknowledged:\n%s", out.String())
	}

	repo, _ := chat.NewFileRepository(dir)
	sess, err := repo.Load("workbench")
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if len(sess.Turns) != 0 {
		t.Errorf("expected no turns after reset, got %d", len(sess.Turns))
	}
}

func TestTail(t *testing.T) {
	turns := make([]domain.ConversationTurn, 5)
	for i := range turns {
		turns[i].Content = string(rune('a' + i))
	}

	if got := tail(turns, 10); len(got) != 5 {
		t.Errorf("tail under limit = %d turns, want 5", len(got))
	}
	got := tail(turns, 2)
	if len(got) != 2 || got[0].Content != "d" || got[1].Content != "e" {
		t.Errorf("tail(5, 2) = %v", got)
	}
}
