// Command shopgrep is the hybrid product search engine CLI: load a catalog,
// profile and index it, then answer natural-language search requests.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/shopgrep/shopgrep/internal/config"
	"github.com/shopgrep/shopgrep/internal/domain"
	"github.com/shopgrep/shopgrep/internal/logger"
	catalogrepo "github.com/shopgrep/shopgrep/internal/repository/catalog"
	"github.com/shopgrep/shopgrep/internal/version"
)

func main() {
	cliApp := &cli.App{
		Name:    "shopgrep",
		Usage:   "Natural-language product search over an arbitrary catalog",
		Version: version.Version,
		Commands: []*cli.Command{
			{
				Name:      "load",
				Usage:     "Load catalog items from a JSON file",
				ArgsUsage: "<items.json>",
				Action:    withApp(loadCommand),
			},
			{
				Name:   "reindex",
				Usage:  "Profile the catalog and rebuild its embeddings",
				Action: withApp(reindexCommand),
			},
			{
				Name:      "search",
				Usage:     "Answer a natural-language product request",
				ArgsUsage: "<query>",
				Action:    withApp(searchCommand),
			},
			{
				Name:      "explain",
				Usage:     "Show the parsed filters and fused ranking for a query",
				ArgsUsage: "<query>",
				Action:    withApp(explainCommand),
			},
			{
				Name:   "serve",
				Usage:  "Run the operational HTTP listener (metrics, health)",
				Action: withApp(serveCommand),
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// withApp loads config, builds the wired application, and tears it down
// around the command.
func withApp(cmd func(*cli.Context, *app) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		env := config.GetEnv()

		cfg, err := config.Load(env)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		log, err := logger.NewLogger(env, cfg.Logging.Level)
		if err != nil {
			return fmt.Errorf("create logger: %w", err)
		}
		defer func() { _ = log.Sync() }()

		log.Debug("starting shopgrep",
			zap.String("version", version.Version),
			zap.String("commit", version.Commit),
			zap.String("built", version.Date),
			zap.String("env", env),
			zap.Strings("db_addrs", cfg.Database.Addrs),
		)

		a, err := buildApp(c.Context, cfg, log)
		if err != nil {
			return fmt.Errorf("build app: %w", err)
		}
		defer a.close()

		return cmd(c, a)
	}
}

func loadCommand(c *cli.Context, a *app) error {
	path := c.Args().First()
	if path == "" {
		return fmt.Errorf("usage: shopgrep load <items.json>")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	items, err := itemsFromRaw(raw)
	if err != nil {
		return err
	}

	if err := a.catalog.UpsertItems(c.Context, items); err != nil {
		return err
	}

	a.logger.Info("catalog loaded", zap.Int("items", len(items)))
	fmt.Printf("loaded %d items\n", len(items))
	return nil
}

func reindexCommand(c *cli.Context, a *app) error {
	if err := a.ensureEmbeddingIndex(c.Context); err != nil {
		return err
	}

	report, err := a.engine.Reindex(c.Context)
	if err != nil {
		return err
	}

	fmt.Printf("indexed %d items, %d records in %s\n", report.Items, report.Records, report.Duration.Round(time.Millisecond))
	for _, f := range report.Failed {
		fmt.Printf("failed batch: %v\n", f)
	}
	return nil
}

func searchCommand(c *cli.Context, a *app) error {
	query := c.Args().First()
	if query == "" {
		return fmt.Errorf("usage: shopgrep search <query>")
	}

	resp, err := a.engine.Search(c.Context, query)
	if err != nil {
		return err
	}

	if resp.Degraded {
		fmt.Println("warning: results are best-effort, one retrieval backend was unavailable")
	}
	for _, r := range resp.Results {
		fmt.Printf("%d. %s", r.Rank, r.Item.ID)
		if title := firstAttr(r.Item, "title", "name", "product_name"); title != "" {
			fmt.Printf(" %s", title)
		}
		fmt.Println()
		if r.Rationale != "" {
			fmt.Printf("   %s\n", r.Rationale)
		}
	}
	if len(resp.Results) == 0 {
		fmt.Println("no matches")
	}
	return nil
}

func explainCommand(c *cli.Context, a *app) error {
	query := c.Args().First()
	if query == "" {
		return fmt.Errorf("usage: shopgrep explain <query>")
	}

	resp, err := a.engine.Explain(c.Context, query)
	if err != nil {
		return err
	}

	fmt.Printf("semantic residual: %q\n", resp.Parsed.Semantic)
	for _, p := range resp.Parsed.Filters {
		switch {
		case p.IsRange():
			fmt.Printf("filter: %s in [%s, %s]\n", p.Attribute(), formatBound(p.GTE()), formatBound(p.LTE()))
		default:
			fmt.Printf("filter: %s matches %v\n", p.Attribute(), p.Values())
		}
	}
	fmt.Printf("funnel: catalog=%d sql=%d semantic=%d fused=%d degraded=%v\n",
		resp.Ranking.Funnel.CatalogSize,
		resp.Ranking.Funnel.SQLMatched,
		resp.Ranking.Funnel.SemanticHits,
		resp.Ranking.Funnel.Fused,
		resp.Degraded,
	)
	for i, cand := range resp.Ranking.Candidates {
		fmt.Printf("%2d. %-24s combined=%.4f sql=%v semantic=%.4f\n",
			i+1, cand.ItemID, cand.Combined, cand.SQLMatched, cand.SemanticOr(0))
	}
	return nil
}

func itemsFromRaw(raw []map[string]any) ([]domain.Item, error) {
	items := make([]domain.Item, 0, len(raw))
	for i, obj := range raw {
		item, err := catalogrepo.ItemFromRaw(obj)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		items = append(items, item)
	}
	return items, nil
}

func firstAttr(item domain.Item, names ...string) string {
	for _, name := range names {
		if v := item.AttrText(name); v != "" {
			return v
		}
	}
	return ""
}

func formatBound(b *float64) string {
	if b == nil {
		return "-"
	}
	return fmt.Sprintf("%g", *b)
}
