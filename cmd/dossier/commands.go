package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dossier-ai/dossier/internal/config"
)

// --- ingest ---

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest a PDF CV into the knowledge base",
	Long: `Ingest a PDF CV into the knowledge base.

Examples:
  dossier ingest --url https://example.com/resume.pdf`,
	RunE: func(cmd *cobra.Command, args []string) error {
		url, _ := cmd.Flags().GetString("url")
		if url == "" {
			return fmt.Errorf("--url is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/documents", map[string]any{"source_url": url})
		if err != nil {
			return err
		}

		var doc struct {
			ID    string `json:"id"`
			Title string `json:"title"`
			Notes []struct {
				Note string `json:"note"`
			} `json:"notes"`
		}
		if err := decodeJSON(resp, &doc); err != nil {
			return err
		}

		printSuccess("Ingested document %s (%q, %d notes)", doc.ID, doc.Title, len(doc.Notes))
		return nil
	},
}

func init() {
	ingestCmd.Flags().String("url", "", "HTTP(S) URL of the PDF to ingest")
}

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question about the ingested documents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.Join(args, " ")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/chat", map[string]any{"question": question})
		if err != nil {
			return err
		}

		var result struct {
			Answer    string   `json:"answer"`
			FollowUps []string `json:"follow_up_questions"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		fmt.Println(result.Answer)
		if len(result.FollowUps) > 0 {
			fmt.Printf("\n%s\n", colorize(colorBold, "Follow-up questions:"))
			for _, q := range result.FollowUps {
				fmt.Printf("  - %s\n", q)
			}
		}
		return nil
	},
}

// --- documents ---

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "Manage ingested documents",
}

var documentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ingested documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/documents")
		if err != nil {
			return err
		}

		var docs []struct {
			ID        string `json:"id"`
			Title     string `json:"title"`
			SourceURL string `json:"source_url"`
			CreatedAt string `json:"created_at"`
		}
		if err := decodeJSON(resp, &docs); err != nil {
			return err
		}

		if len(docs) == 0 {
			fmt.Println("No documents found.")
			return nil
		}

		for _, d := range docs {
			fmt.Printf("%s  %s  %s  %s\n",
				colorize(colorCyan, d.ID[:8]),
				d.CreatedAt,
				d.Title,
				d.SourceURL,
			)
		}
		return nil
	},
}

var documentsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a single document as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/documents/"+args[0])
		if err != nil {
			return err
		}

		var doc any
		if err := decodeJSON(resp, &doc); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	},
}

func init() {
	documentsCmd.AddCommand(documentsListCmd)
	documentsCmd.AddCommand(documentsShowCmd)
}

// --- notes ---

var notesCmd = &cobra.Command{
	Use:   "notes",
	Short: "Show extracted notes across all documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/notes")
		if err != nil {
			return err
		}

		var grouped [][]struct {
			Note        string `json:"note"`
			PageNumbers []int  `json:"pageNumbers"`
		}
		if err := decodeJSON(resp, &grouped); err != nil {
			return err
		}

		if len(grouped) == 0 {
			fmt.Println("No notes found.")
			return nil
		}

		for i, group := range grouped {
			fmt.Printf("\n%s\n", colorize(colorBold, fmt.Sprintf("Document %d", i+1)))
			for _, n := range group {
				if len(n.PageNumbers) > 0 {
					fmt.Printf("  - %s (pages %v)\n", n.Note, n.PageNumbers)
				} else {
					fmt.Printf("  - %s\n", n.Note)
				}
			}
		}
		return nil
	},
}

// --- chats ---

var chatsCmd = &cobra.Command{
	Use:   "chats",
	Short: "Show stored question/answer turns",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/chats")
		if err != nil {
			return err
		}

		var turns []struct {
			ID        string `json:"id"`
			Question  string `json:"question"`
			Answer    string `json:"answer"`
			CreatedAt string `json:"created_at"`
		}
		if err := decodeJSON(resp, &turns); err != nil {
			return err
		}

		if len(turns) == 0 {
			fmt.Println("No chats found.")
			return nil
		}

		for _, t := range turns {
			question := t.Question
			if len(question) > 80 {
				question = question[:80] + "..."
			}
			fmt.Printf("%s  %s  %s\n",
				colorize(colorCyan, t.ID[:8]),
				t.CreatedAt,
				question,
			)
		}
		return nil
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, kv := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s\n", colorize(colorBold, kv.Key), kv.Value)
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
}
