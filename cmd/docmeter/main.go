package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/spf13/cobra"

	"github.com/tomaszkw/docmeter/internal/entity"
	"github.com/tomaszkw/docmeter/internal/meter"
	"github.com/tomaszkw/docmeter/internal/secure"
	"github.com/tomaszkw/docmeter/internal/track"
)

// CLI flags
var (
	addrFlag       string
	taskFlag       string
	accountFlag    string
	sessionFlag    string
	userFlag       string
	passwordFlag   string
	projectFlag    string
	collectionFlag string
)

var rootCmd = &cobra.Command{
	Use:   "docmeter",
	Short: "Client for the document analysis gateway",
	Long: `docmeter meters billable pages for a batch of documents, submits
analysis jobs to the gateway, and watches them until they complete.

Examples:
  docmeter count report.pdf ledger.csv scan.png
  docmeter verify --password hunter2 secret.pdf
  docmeter submit --task ANALYZE --account acct-1 report.pdf
  docmeter watch --project my-project job-123`,
}

var countCmd = &cobra.Command{
	Use:   "count [files...]",
	Short: "Meter billable pages for local files without submitting",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCount,
}

var verifyCmd = &cobra.Command{
	Use:   "verify [file]",
	Short: "Check a password against an encrypted document",
	Args:  cobra.ExactArgs(1),
	RunE:  runVerify,
}

var submitCmd = &cobra.Command{
	Use:   "submit [files...]",
	Short: "Submit a batch of documents for analysis",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSubmit,
}

var watchCmd = &cobra.Command{
	Use:   "watch [job-id]",
	Short: "Follow a job's status until it reaches a terminal state",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&addrFlag, "addr", envOr("DOCMETER_ADDR", "http://localhost:8080"), "Gateway address")

	verifyCmd.Flags().StringVarP(&passwordFlag, "password", "p", "", "Document password")
	_ = verifyCmd.MarkFlagRequired("password")

	submitCmd.Flags().StringVar(&taskFlag, "task", "ANALYZE", "Task kind (ANALYZE, EXTRACT, SUMMARIZE)")
	submitCmd.Flags().StringVar(&accountFlag, "account", "", "Account id for quota admission")
	submitCmd.Flags().StringVar(&sessionFlag, "session", "", "Session id")
	submitCmd.Flags().StringVar(&userFlag, "user", "", "User id")
	_ = submitCmd.MarkFlagRequired("account")

	watchCmd.Flags().StringVar(&projectFlag, "project", envOr("PROJECT_ID", ""), "GCP project for the job feed")
	watchCmd.Flags().StringVar(&collectionFlag, "collection", envOr("JOBS_COLLECTION", "jobs"), "Job feed collection")

	rootCmd.AddCommand(countCmd, verifyCmd, submitCmd, watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func readInputs(paths []string) ([]meter.FileInput, error) {
	files := make([]meter.FileInput, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		files = append(files, meter.FileInput{Name: filepath.Base(p), Data: data})
	}
	return files, nil
}

func runCount(cmd *cobra.Command, args []string) error {
	files, err := readInputs(args)
	if err != nil {
		return err
	}

	batch := meter.New(nil, 4).CountBatch(cmd.Context(), files)
	for _, r := range batch.PerFile {
		if r.Err != "" {
			fmt.Printf("%-30s %-8s error: %s\n", r.File.Name, r.File.Format, r.Err)
			continue
		}
		fmt.Printf("%-30s %-8s %d page(s)\n", r.File.Name, r.File.Format, r.Pages)
	}
	for _, w := range batch.Warnings {
		fmt.Printf("warning: %s\n", w)
	}
	fmt.Printf("total: %d page(s)\n", batch.Total)
	return nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	res := secure.NewGate(nil).Verify(data, passwordFlag)
	if !res.Valid {
		return fmt.Errorf("%s", res.Reason)
	}
	fmt.Printf("password accepted, %d page(s)\n", res.PageCount)
	return nil
}

func runSubmit(cmd *cobra.Command, args []string) error {
	files, err := readInputs(args)
	if err != nil {
		return err
	}

	type fileBody struct {
		Name    string `json:"name"`
		Content string `json:"content"`
	}
	body := map[string]any{
		"account_id": accountFlag,
		"session_id": sessionFlag,
		"user_id":    userFlag,
		"task":       taskFlag,
	}
	fs := make([]fileBody, 0, len(files))
	for _, f := range files {
		fs = append(fs, fileBody{Name: f.Name, Content: base64.StdEncoding.EncodeToString(f.Data)})
	}
	body["files"] = fs

	bs, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, addrFlag+"/batches", bytes.NewReader(bs))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := (&http.Client{Timeout: 2 * time.Minute}).Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("gateway returned %d: %s", resp.StatusCode, raw)
	}

	var out struct {
		Job struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"job"`
		Count struct {
			Total int `json:"total"`
		} `json:"count"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	fmt.Printf("job %s %s, %d page(s) billed\n", out.Job.ID, out.Job.Status, out.Count.Total)
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	if projectFlag == "" {
		return fmt.Errorf("--project or PROJECT_ID is required")
	}
	jobID := args[0]

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	client, err := firestore.NewClient(ctx, projectFlag)
	if err != nil {
		return err
	}
	defer client.Close()

	done := make(chan entity.Job, 1)
	tracker := track.NewTracker(track.NewFirestoreFeed(client, collectionFlag, nil), nil)
	detach, err := tracker.Track(jobID,
		func(j entity.Job) { fmt.Printf("%s %s\n", time.Now().Format(time.TimeOnly), j.Status) },
		func(j entity.Job) { done <- j },
	)
	if err != nil {
		return err
	}
	defer detach()

	select {
	case j := <-done:
		if j.ResultURL != nil {
			fmt.Printf("result: %s\n", *j.ResultURL)
		}
		if j.ErrorMessage != nil {
			return fmt.Errorf("job failed: %s", *j.ErrorMessage)
		}
		return nil
	case <-ctx.Done():
		fmt.Println("interrupted")
		return nil
	}
}
