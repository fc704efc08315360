// Command chat is a terminal client for the Fixwell API. Conversations
// persist locally as session files, so a conversation can be picked up
// where it left off.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/FixwellAI/fixwell-mvp/engine/chat"
	"github.com/FixwellAI/fixwell-mvp/engine/compose"
	"github.com/FixwellAI/fixwell-mvp/engine/domain"
	"github.com/joho/godotenv"
)

// historyLimit caps how many prior turns are sent with each request.
const historyLimit = 20

// ChatRequest is the JSON body for POST /api/chat.
type ChatRequest struct {
	Query   string                    `json:"query"`
	History []domain.ConversationTurn `json:"conversation_history,omitempty"`
}

// ChatResponse is the JSON response for POST /api/chat.
type ChatResponse struct {
	Response string `json:"response"`
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultSessionDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".fixwell", "sessions")
	}
	return "sessions"
}

func main() {
	_ = godotenv.Load()

	var (
		apiURL     = flag.String("api", envOr("FIXWELL_API_URL", "http://localhost:8080"), "Fixwell API base URL")
		sessionID  = flag.String("session", "default", "session name to load and append to")
		sessionDir = flag.String("sessions", defaultSessionDir(), "directory holding session files")
	)
	flag.Parse()

	if err := run(*apiURL, *sessionID, *sessionDir, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(apiURL, sessionID, sessionDir string, in io.Reader, out io.Writer) error {
	repo, err := chat.NewFileRepository(sessionDir)
	if err != nil {
		return err
	}

	sess, err := repo.Load(sessionID)
	switch {
	case errors.Is(err, chat.ErrSessionNotFound):
		sess = chat.Session{ID: sessionID}
	case err != nil:
		return err
	}

	client := &http.Client{Timeout: 60 * time.Second}
	apology := compose.New(nil).Apology()

	fmt.Fprintf(out, "Fixwell parts assistant (session %q, %d prior turns).\n", sessionID, len(sess.Turns))
	fmt.Fprintln(out, "Commands: /history, /reset, /quit")

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "\nyou> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		query := strings.TrimSpace(scanner.Text())

		switch {
		case query == "":
			continue
		case query == "/quit" || query == "/exit":
			return nil
		case query == "/history":
			printHistory(out, sess.Turns)
			continue
		case query == "/reset":
			sess.Turns = nil
			if err := repo.Save(sess); err != nil {
				fmt.Fprintln(out, "could not reset session:", err)
				continue
			}
			fmt.Fprintln(out, "session cleared")
			continue
		}

		answer, err := ask(client, apiURL, query, tail(sess.Turns, historyLimit))
		if err != nil {
			fmt.Fprintln(out, "\nfixwell>", apology)
			continue
		}

		fmt.Fprintln(out, "\nfixwell>")
		renderResponse(out, answer)

		now := time.Now().UTC()
		sess.Turns = append(sess.Turns,
			domain.ConversationTurn{Role: domain.RoleUser, Content: query, Timestamp: now},
			domain.ConversationTurn{Role: domain.RoleAssistant, Content: answer, Timestamp: now},
		)
		if err := repo.Save(sess); err != nil {
			fmt.Fprintln(out, "warning: session not saved:", err)
		}
	}
}

// ask posts one turn to the chat endpoint.
func ask(client *http.Client, apiURL, query string, history []domain.ConversationTurn) (string, error) {
	body, err := json.Marshal(ChatRequest{Query: query, History: history})
	if err != nil {
		return "", err
	}

	resp, err := client.Post(apiURL+"/api/chat", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat request: status %d", resp.StatusCode)
	}

	var cr ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", err
	}
	return cr.Response, nil
}

// renderResponse prints prose as-is and replaces recognised fenced
// fragments with part cards. Fragments that fail to parse are printed
// literally.
func renderResponse(w io.Writer, response string) {
	lines := strings.Split(response, "\n")
	for i := 0; i < len(lines); i++ {
		tag := strings.TrimPrefix(lines[i], "```")
		if tag == lines[i] || (tag != compose.TagJSON && tag != compose.TagList) {
			fmt.Fprintln(w, lines[i])
			continue
		}

		end := -1
		var body []string
		for j := i + 1; j < len(lines); j++ {
			if lines[j] == "```" {
				end = j
				break
			}
			body = append(body, lines[j])
		}
		if end == -1 {
			fmt.Fprintln(w, lines[i])
			continue
		}

		frag := compose.Fragment{Tag: tag, Body: strings.Join(body, "\n")}
		parts, err := frag.Parts()
		if err != nil {
			for k := i; k <= end; k++ {
				fmt.Fprintln(w, lines[k])
			}
		} else {
			for _, p := range parts {
				printCard(w, p)
			}
		}
		i = end
	}
}

func printCard(w io.Writer, p compose.PartPayload) {
	number := p.PartselectNumber
	if number == "" {
		number = p.ManufacturerNumber
	}
	line := "  * " + p.PartName
	if number != "" {
		line += " [" + number + "]"
	}
	if p.Price != "" {
		line += " " + p.Price
	}
	fmt.Fprintln(w, line)
	if p.URL != "" {
		fmt.Fprintln(w, "    "+p.URL)
	}
}

func printHistory(w io.Writer, turns []domain.ConversationTurn) {
	if len(turns) == 0 {
		fmt.Fprintln(w, "no prior turns")
		return
	}
	for _, t := range turns {
		who := "you"
		if t.Role == domain.RoleAssistant {
			who = "fixwell"
		}
		fmt.Fprintf(w, "%s> %s\n", who, t.Content)
	}
}

func tail(turns []domain.ConversationTurn, n int) []domain.ConversationTurn {
	if len(turns) <= n {
		return turns
	}
	return turns[len(turns)-n:]
}
