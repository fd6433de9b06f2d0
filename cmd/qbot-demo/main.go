// Offline walkthrough of the action loop: scripted model replies against a
// small in-memory verse index, printing every message with its flags
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ppiankov/qbot/internal/answer"
	"github.com/ppiankov/qbot/internal/conversation"
	"github.com/ppiankov/qbot/internal/embed"
	"github.com/ppiankov/qbot/internal/ingest"
	"github.com/ppiankov/qbot/internal/llm"
	"github.com/ppiankov/qbot/internal/retrieval"
	"github.com/ppiankov/qbot/internal/router"
	"github.com/ppiankov/qbot/internal/store"
)

const corpus = `{
  "2:43": {"text": "And establish prayer and give zakah and bow with those who bow", "topics": ["Prayer", "Charity"], "notes": ""},
  "7:103": {"text": "Then We sent after them Moses with Our signs to Pharaoh and his establishment", "topics": ["Moses", "Pharaoh"], "notes": ""},
  "7:104": {"text": "And Moses said, O Pharaoh, I am a messenger from the Lord of the worlds", "topics": ["Moses", "Pharaoh"], "notes": ""},
  "7:105": {"text": "Obligated not to say about Allah except the truth", "topics": ["Moses"], "notes": ""},
  "20:14": {"text": "Indeed, I am Allah. So worship Me and establish prayer for My remembrance", "topics": ["Prayer", "Moses"], "notes": ""}
}`

type scenario struct {
	name     string
	question string
	replies  []string
	maxLoops int
}

func main() {
	fmt.Println("=== qbot Action Loop Walkthrough ===")
	fmt.Println()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	c, err := ingest.Load(strings.NewReader(corpus))
	if err != nil {
		fmt.Fprintf(os.Stderr, "load corpus: %v\n", err)
		os.Exit(1)
	}

	embedder := embed.NewHashEmbedder(256)
	verses := store.NewMemoryCollection("quran", embedder)
	themes := store.NewMemoryCollection("quran_themes", embedder)
	if err := verses.Upsert(ctx, c.Records()); err != nil {
		fmt.Fprintf(os.Stderr, "index verses: %v\n", err)
		os.Exit(1)
	}
	if err := themes.Upsert(ctx, ingest.TopicRecords(c.Topics())); err != nil {
		fmt.Fprintf(os.Stderr, "index themes: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Indexed %d verses and %d themes\n\n", len(c.Verses), len(c.Topics()))

	scenarios := []scenario{
		{
			name:     "search, read context, answer",
			question: "What does the Quran say about Moses?",
			replies: []string{
				"THOUGHT: I should look for verses about Moses first.",
				"FIND: Moses and Pharaoh",
				"CONTEXT: 7:103",
				"ANSWER: Moses was sent with signs to Pharaoh (7:103) and declared himself a messenger (7:104).",
			},
		},
		{
			name:     "theme lookup",
			question: "Which themes cover prayer?",
			replies: []string{
				"THEME: prayer",
				"ANSWER: Prayer is commanded alongside charity (2:43) and remembrance (20:14).",
			},
		},
		{
			name:     "malformed reply is corrected",
			question: "Tell me about charity",
			replies: []string{
				"Sure, here is what I found about charity.",
				"ANSWER: Charity is paired with prayer (2:43).",
			},
		},
		{
			name:     "follow-up question",
			question: "What about him?",
			replies: []string{
				"FOLLOWUP: Who do you mean? Please name the prophet you are asking about.",
			},
		},
		{
			name:     "loop ceiling",
			question: "Keep searching forever",
			replies:  []string{"FIND: prayer"},
			maxLoops: 3,
		},
	}

	for _, sc := range scenarios {
		fmt.Printf("Scenario: %s\n", sc.name)
		fmt.Println(strings.Repeat("-", 60))

		r := router.New(retrieval.New(verses, themes), answer.NewProcessor(verses, nil), nil)
		asst := conversation.NewAssistant(llm.NewMockProvider(sc.replies...), r, conversation.Options{MaxLoops: sc.maxLoops}, nil)

		s := conversation.NewSession()
		turn, err := asst.Ask(ctx, s, sc.question)
		if err != nil {
			fmt.Printf("  ✗ %v\n\n", err)
			continue
		}

		for _, msg := range s.Messages[1:] {
			fmt.Printf("  [%-9s display=%-5t retain=%-5t] %s\n",
				msg.Role, msg.Display, msg.Retain, indent(msg.Content))
		}

		switch {
		case turn.Exhausted:
			fmt.Printf("\n  ⚠️  No answer after %d iterations\n", turn.Iterations)
		default:
			fmt.Printf("\n  ✓ Finished after %d iterations (state %s)\n", turn.Iterations, s.State())
		}
		fmt.Println()
	}

	fmt.Println("=== Walkthrough Complete ===")
	fmt.Println("\nThe system prompt is omitted above; run with a real provider via 'qbot ask'.")
}

func indent(s string) string {
	return strings.ReplaceAll(s, "\n", "\n      ")
}
