package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	throttle  time.Duration
)

func main() {
	root := &cobra.Command{
		Use:   "ingestctl",
		Short: "Bulk-load documents and rebuild candidate pools",
	}
	root.PersistentFlags().StringVar(&serverURL, "server", envOr("REPLY_SERVER_URL", "http://localhost:9020"), "reply-orchestrator base URL")
	root.PersistentFlags().DurationVar(&throttle, "throttle", 200*time.Millisecond, "pause between enqueue requests")

	root.AddCommand(newLoadCmd())
	root.AddCommand(newPoolCmd())
	root.AddCommand(newStatsCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// newLoadCmd reads one JSON document per line and enqueues each for the
// background worker. Lines that fail to parse or enqueue are skipped so
// one bad record never aborts a bulk load.
func newLoadCmd() *cobra.Command {
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "load <file.jsonl>",
		Short: "Enqueue documents from a JSONL file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open input: %w", err)
			}
			defer f.Close()

			client := &http.Client{Timeout: 10 * time.Second}
			scanner := bufio.NewScanner(f)
			scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

			count := 0
			success := 0
			failed := 0

			for scanner.Scan() {
				line := bytes.TrimSpace(scanner.Bytes())
				if len(line) == 0 {
					continue
				}
				count++

				var doc map[string]any
				if err := json.Unmarshal(line, &doc); err != nil {
					fmt.Fprintf(os.Stderr, "line %d: invalid JSON: %v\n", count, err)
					failed++
					continue
				}
				doc["overwrite"] = overwrite

				if err := enqueue(client, doc); err != nil {
					fmt.Fprintf(os.Stderr, "line %d: %v\n", count, err)
					failed++
				} else {
					success++
				}

				if count%100 == 0 {
					fmt.Printf("Processed %d documents...\n", count)
				}
				time.Sleep(throttle)
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("read input: %w", err)
			}

			fmt.Printf("Load complete. Total: %d, Success: %d, Failed: %d\n", count, success, failed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace documents that already exist")
	return cmd
}

func enqueue(client *http.Client, doc map[string]any) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	resp, err := client.Post(serverURL+"/v1/ingest/enqueue", "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("enqueue rejected: status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return nil
}

func newPoolCmd() *cobra.Command {
	var (
		maxPoolSize int
		minScore    float64
		overwrite   bool
	)

	cmd := &cobra.Command{
		Use:   "pool <content-item-id>",
		Short: "Rebuild the candidate pool for one content item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := json.Marshal(map[string]any{
				"content_item_id":     args[0],
				"max_pool_size":       maxPoolSize,
				"min_relevance_score": minScore,
				"overwrite":           overwrite,
			})
			if err != nil {
				return err
			}

			client := &http.Client{Timeout: 30 * time.Second}
			resp, err := client.Post(serverURL+"/v1/pools/build", "application/json", bytes.NewReader(payload))
			if err != nil {
				return fmt.Errorf("build pool: %w", err)
			}
			defer resp.Body.Close()

			body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("build pool: status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
			}
			fmt.Println(string(body))
			return nil
		},
	}
	cmd.Flags().IntVar(&maxPoolSize, "max-pool-size", 0, "cap on pool entries (0 uses the server default)")
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "discard candidates below this relevance score")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "discard the previous pool generation wholesale")
	return cmd
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print corpus, pool and queue counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := &http.Client{Timeout: 10 * time.Second}
			resp, err := client.Get(serverURL + "/v1/stats")
			if err != nil {
				return fmt.Errorf("fetch stats: %w", err)
			}
			defer resp.Body.Close()

			body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("fetch stats: status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
			}
			fmt.Println(string(body))
			return nil
		},
	}
}
