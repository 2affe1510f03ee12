package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/aileronlabs/aileron/pkg/config"
	"github.com/aileronlabs/aileron/pkg/tools"
	"github.com/aileronlabs/aileron/pkg/vector"
	"github.com/aileronlabs/aileron/pkg/workflow"
)

// noAnswerText replaces an empty generation so the user never sees a
// blank answer block.
const noAnswerText = "找不到相關答案。"

// QueryCmd answers a single question and exits.
type QueryCmd struct {
	Text         string `arg:"" help:"Question to answer."`
	Collection   string `help:"Design-area collection to search."`
	TopK         int    `help:"Number of documents to retrieve."`
	RetrieveOnly bool   `help:"Print the retrieved documents as JSON instead of generating an answer."`
}

func (c *QueryCmd) Run(cli *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if strings.TrimSpace(c.Text) == "" {
		return usageErrorf("query text must not be empty")
	}
	if c.RetrieveOnly && c.Collection == "" {
		return usageErrorf("retrieve-only 模式必須提供 --collection")
	}

	app, err := cli.buildApp(ctx, true)
	if err != nil {
		return err
	}
	defer app.Close()

	if c.RetrieveOnly {
		return c.retrieve(ctx, app)
	}

	question := c.Text
	if c.Collection != "" {
		question = workflow.CollectionHint(c.Collection, c.Text)
	}

	state, err := app.engine.Run(ctx, &workflow.State{Question: question, Collection: c.Collection})
	if err != nil {
		return fmt.Errorf("處理查詢時發生錯誤: %w", err)
	}
	printAnswer(state.Generation)
	return nil
}

// retrieve prints the raw similarity search results, one JSON array on
// a single line, for piping into other tools.
func (c *QueryCmd) retrieve(ctx context.Context, app *app) error {
	docs, err := app.engine.Retrieve(ctx, c.Text, c.Collection, c.TopK)
	if err != nil {
		return err
	}
	if docs == nil {
		docs = []vector.Document{}
	}
	out, err := json.Marshal(docs)
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// printAnswer writes the generation in the answer block format.
func printAnswer(generation string) {
	if strings.TrimSpace(generation) == "" {
		generation = noAnswerText
	}
	fmt.Printf("\nFinal Answer:\n%s\n\n", generation)
}

// ChatCmd runs the interactive question loop. Each line is answered as
// an independent run; no conversation state carries between lines.
type ChatCmd struct {
	Collection string `help:"Design-area collection to pin for every question."`
}

func (c *ChatCmd) Run(cli *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := cli.buildApp(ctx, true)
	if err != nil {
		return err
	}
	defer app.Close()

	fmt.Println("進入互動模式 (按 Ctrl+C 離開)...")

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		fmt.Print("> ")
		select {
		case <-ctx.Done():
			fmt.Println("\n結束。")
			return nil
		case line, ok := <-lines:
			if !ok {
				fmt.Println("\n結束。")
				return nil
			}
			query := strings.TrimSpace(line)
			if query == "" {
				continue
			}
			if query == "exit" || query == "quit" {
				fmt.Println("結束。")
				return nil
			}
			c.answer(ctx, app, query)
		}
	}
}

// answer runs one line. Failures are reported and the loop continues;
// an interrupt is left for the select to handle.
func (c *ChatCmd) answer(ctx context.Context, app *app, query string) {
	if c.Collection != "" {
		query = workflow.CollectionHint(c.Collection, query)
	}

	state, err := app.engine.Run(ctx, &workflow.State{Question: query, Collection: c.Collection})
	if err != nil {
		if ctx.Err() == nil {
			fmt.Fprintf(os.Stderr, "\nError: 處理查詢時發生錯誤: %v\n", err)
		}
		return
	}
	printAnswer(state.Generation)
}

// CollectionsCmd lists the design-area collections in the store.
type CollectionsCmd struct{}

func (c *CollectionsCmd) Run(cli *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	cli.initLogger(cfg)

	store, err := vector.New(&cfg.Vector)
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := store.ListCollections(ctx)
	if err != nil {
		return err
	}

	fmt.Println("Collections:")
	for _, stat := range stats {
		fmt.Printf("  - %s: %d documents\n", stat.Name, stat.DocumentCount)
	}
	return nil
}

// ToolsCmd lists the registered tools. The registry is built without
// clients; listing never dials a backend.
type ToolsCmd struct {
	Schema bool `help:"Print each tool's JSON argument schema."`
}

func (c *ToolsCmd) Run(cli *CLI) error {
	registry, err := tools.NewDefaultRegistry(tools.Deps{})
	if err != nil {
		return err
	}

	if c.Schema {
		out, err := json.MarshalIndent(registry.Definitions(), "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	fmt.Println("Tools:")
	for _, tool := range registry.List() {
		fmt.Printf("  - %s: %s\n", tool.Name(), tool.Description())
	}
	return nil
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("aileron version %s\n", version)
	return nil
}
