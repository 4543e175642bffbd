package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"mindpal/internal/app"
	"mindpal/internal/catalog"
	"mindpal/internal/config"
	"mindpal/internal/db"
	"mindpal/internal/domain"
	"mindpal/internal/emotion"
	"mindpal/internal/logging"
	"mindpal/internal/mqtt"
	"mindpal/internal/pipeline"
	"mindpal/internal/slang"
	"mindpal/internal/textnorm"
)

func newNormalizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "normalize <text>",
		Short: "Print the normalized form of a message",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), textnorm.Normalize(strings.Join(args, " ")))
			return nil
		},
	}
}

func newSlangCmd() *cobra.Command {
	var file, source string
	cmd := &cobra.Command{
		Use:   "slang <text>",
		Short: "Annotate slang terms with their meanings",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var loader slang.Loader
			switch {
			case file != "":
				loader = slang.FileLoader{Path: file}
			case source == "huggingface":
				loader = slang.HuggingFaceLoader{Token: os.Getenv("HUGGING_FACE_TOKEN")}
			default:
				return errors.New("either --file or --source huggingface is required")
			}
			lex, err := loader.Load(cmd.Context())
			if err != nil {
				return err
			}
			resolver := slang.NewResolver(lex)
			text := textnorm.Normalize(strings.Join(args, " "))
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, resolver.Resolve(text))
			for _, m := range resolver.Detect(text) {
				fmt.Fprintf(out, "  %s [%d:%d] %s\n", m.Token, m.Start, m.End, m.Meaning)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "lexicon file (.csv, .json, .yaml)")
	cmd.Flags().StringVar(&source, "source", "", "remote lexicon source (huggingface)")
	return cmd
}

func newClassifyCmd() *cobra.Command {
	var backend, url, mode string
	cmd := &cobra.Command{
		Use:   "classify <text>",
		Short: "Classify the emotion of a message",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := emotion.ParseMode(mode)
			if err != nil {
				return err
			}
			classifier, err := app.NewClassifier(config.ServerConfig{
				EmotionBackend:    backend,
				EmotionServiceURL: url,
				EmotionModel:      emotion.DefaultHFModel,
				HuggingFaceToken:  os.Getenv("HUGGING_FACE_TOKEN"),
				EmotionTimeout:    15 * time.Second,
				EmotionMode:       m,
			})
			if err != nil {
				return err
			}
			pred, err := classifier.Classify(cmd.Context(), textnorm.Normalize(strings.Join(args, " ")))
			if err != nil {
				return err
			}
			for _, s := range pred.Ranked {
				fmt.Fprintf(cmd.OutOrStdout(), "%-9s %.4f\n", s.Label, s.Score)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&backend, "backend", "lexical", "lexical, http or huggingface")
	cmd.Flags().StringVar(&url, "url", "http://localhost:9012", "emotion-server URL for --backend http")
	cmd.Flags().StringVar(&mode, "mode", "ranked", "top or ranked")
	return cmd
}

func newChatCmd() *cobra.Command {
	var session string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the full pipeline on stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadServerConfig()
			if err != nil {
				return err
			}
			logger, closer, err := logging.New(cfg.Log)
			if err != nil {
				return err
			}
			defer closer.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store, err := db.Open(ctx, cfg.DBDSN)
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Migrate(ctx); err != nil {
				return err
			}

			svc, cleanup, err := app.NewChatService(ctx, cfg, store, nil, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			if session == "" {
				session = uuid.NewString()
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "session %s, empty line or ctrl-d to quit\n", session)
			scanner := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprint(out, "> ")
				if !scanner.Scan() {
					return scanner.Err()
				}
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					return nil
				}
				resp, err := svc.HandleChat(ctx, domain.ChatRequest{SessionID: session, MessageText: line})
				if err != nil {
					var stageErr *pipeline.StageError
					if errors.As(err, &stageErr) {
						fmt.Fprintf(out, "[failed at %s] %v\n", stageErr.Stage, stageErr.Err)
						continue
					}
					return err
				}
				fmt.Fprintf(out, "[%s] %s\n", resp.Emotion, resp.ReplyText)
			}
		},
	}
	cmd.Flags().StringVar(&session, "session", "", "session id to continue (default: new uuid)")
	return cmd
}

func newSeedCmd() *cobra.Command {
	var dsn, file, redisURL string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the schema and upsert the strategy catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dsn == "" {
				dsn = os.Getenv("DB_DSN")
			}
			if dsn == "" {
				return errors.New("--dsn or DB_DSN is required")
			}
			if file == "" {
				file = os.Getenv("CATALOG_FILE")
			}
			if file == "" {
				return errors.New("--catalog or CATALOG_FILE is required")
			}
			c, err := catalog.LoadFile(file)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			store, err := db.Open(ctx, dsn)
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Migrate(ctx); err != nil {
				return err
			}
			if err := store.SeedCatalog(ctx, c); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d emotions and %d strategies\n", len(c.Emotions), len(c.Strategies))

			if redisURL == "" {
				redisURL = os.Getenv("REDIS_URL")
			}
			if err := app.ClearStrategyCache(ctx, redisURL, nil); err != nil {
				return fmt.Errorf("catalog seeded but %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dsn, "dsn", "", "database DSN (default $DB_DSN)")
	cmd.Flags().StringVar(&file, "catalog", "", "catalog YAML file (default $CATALOG_FILE)")
	cmd.Flags().StringVar(&redisURL, "redis", "", "strategy cache to clear after seeding (default $REDIS_URL)")
	return cmd
}

func newWatchCmd() *cobra.Command {
	var broker, prefix string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print emotion events published by mindpal-server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if broker == "" {
				broker = os.Getenv("MQTT_BROKER_URL")
			}
			if broker == "" {
				return errors.New("--broker or MQTT_BROKER_URL is required")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			pub := mqtt.NewPublisher(mqtt.Config{
				BrokerURL:   broker,
				ClientID:    "mindpal-cli-" + uuid.NewString()[:8],
				Username:    os.Getenv("MQTT_USERNAME"),
				Password:    os.Getenv("MQTT_PASSWORD"),
				TopicPrefix: prefix,
			}, nil)
			if err := pub.Start(ctx); err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			if err := pub.SubscribeEmotions(func(ev domain.EmotionEvent) { _ = enc.Encode(ev) }); err != nil {
				return err
			}
			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().StringVar(&broker, "broker", "", "MQTT broker URL (default $MQTT_BROKER_URL)")
	cmd.Flags().StringVar(&prefix, "prefix", "mindpal", "topic prefix")
	return cmd
}
