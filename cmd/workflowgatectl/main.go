package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"

	"github.com/tradeease/workflowgate/internal/scanner"
)

var (
	app    = kingpin.New("workflowgatectl", "Operator tool for the workflow mutation gateway")
	addr   = app.Flag("addr", "Gateway base URL").Default("http://localhost:3200").String()
	apiKey = app.Flag("api-key", "API key for gateway endpoints").Envar("WORKFLOWGATE_API_KEY").String()

	scanCmd   = app.Command("scan", "Scan text against the forbidden-pattern table")
	scanText  = scanCmd.Arg("text", "Text to scan").Required().String()
	scanTable = scanCmd.Flag("table", "Pattern table file (YAML)").String()

	metricsCmd  = app.Command("metrics", "Show activity metrics for a user")
	metricsUser = metricsCmd.Arg("user-id", "User ID").Required().String()

	healthCmd = app.Command("health", "Check gateway liveness")
)

func main() {
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	var err error
	switch command {
	case scanCmd.FullCommand():
		err = handleScan(*scanText, *scanTable)
	case metricsCmd.FullCommand():
		err = handleMetrics(*metricsUser)
	case healthCmd.FullCommand():
		err = handleHealth()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func handleScan(text, tablePath string) error {
	table := scanner.DefaultTable()
	if tablePath != "" {
		var err error
		table, err = scanner.LoadTableFile(tablePath)
		if err != nil {
			return fmt.Errorf("failed to load pattern table: %w", err)
		}
	}

	if match, ok := scanner.New(table).Scan(text); ok {
		fmt.Printf("BLOCKED: matched %q in category %s\n", match.Token, match.Category)
		os.Exit(2)
	}
	fmt.Println("OK: no forbidden patterns")
	return nil
}

func handleMetrics(userID string) error {
	body, err := get(fmt.Sprintf("%s/api/users/%s/metrics", *addr, userID))
	if err != nil {
		return err
	}

	var resp struct {
		UserID  string `json:"userId"`
		Metrics struct {
			FailedAttempts       int `json:"failedAttempts"`
			SuspiciousActivities int `json:"suspiciousActivities"`
			RequestsInWindow     int `json:"requestsInWindow"`
		} `json:"metrics"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Printf("User:                  %s\n", resp.UserID)
	fmt.Printf("Requests in window:    %d\n", resp.Metrics.RequestsInWindow)
	fmt.Printf("Failed attempts:       %d\n", resp.Metrics.FailedAttempts)
	fmt.Printf("Suspicious activities: %d\n", resp.Metrics.SuspiciousActivities)
	return nil
}

func handleHealth() error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(*addr + "/health")
	if err != nil {
		return fmt.Errorf("gateway unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway unhealthy: status %d", resp.StatusCode)
	}
	fmt.Println("OK")
	return nil
}

func get(url string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if *apiKey != "" {
		req.Header.Set("X-API-Key", *apiKey)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
	}
	return body, nil
}
