// benchmark-classifier compares the two-tier classifier's model path against
// its KeywordRoute fallback: latency and agent-selection agreement across a
// fixed battery of clinical questions.
//
// Usage:
//
//	CHAT_PROVIDER_API_KEY=sk-... go run ./cmd/benchmark-classifier
//
// Results are printed as a markdown table to stdout. Redirect to file as needed.
package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/sovadina/consult-gateway/internal/chatclient"
	"github.com/sovadina/consult-gateway/internal/classifier"
	"github.com/sovadina/consult-gateway/internal/retrieval"
	"github.com/sovadina/consult-gateway/internal/workflow"
)

type benchQuery struct {
	ID       int
	Query    string
	Category string
}

type benchResult struct {
	QueryID  int
	Path     string // "model" or "keyword"
	LatencyMs int64
	Agents   []string
	Error    string
}

var queries = []benchQuery{
	{1, "what are the contraindications for metformin in renal impairment", "drug"},
	{2, "latest trials on SGLT2 inhibitors for heart failure", "literature"},
	{3, "what does the guideline say about statin initiation thresholds", "guideline"},
	{4, "can i take ibuprofen with warfarin", "drug"},
	{5, "summarize the evidence for early mobilization after stroke", "literature"},
	{6, "what is the recommended first-line treatment for hypertension", "guideline"},
	{7, "explain the pharmacokinetics of amoxicillin", "drug"},
	{8, "hi", "general"},
	{9, "is there a reimbursement restriction on GLP-1 agonists", "drug"},
	{10, "compare guideline recommendations across two conflicting sources", "guideline"},
}

func main() {
	apiKey := os.Getenv("CHAT_PROVIDER_API_KEY")
	model := os.Getenv("CHAT_PROVIDER_MODEL")
	if model == "" {
		model = "model_name"
	}

	ctx := context.Background()

	keywordClassifier := classifier.New(nil, nil)

	var modelClassifier *classifier.Classifier
	if apiKey != "" {
		chat := chatclient.NewRESTClient(apiKey, "", model)
		modelClassifier = classifier.New(chat, map[workflow.AgentID]retrieval.RetrievalClient{})
	} else {
		fmt.Fprintln(os.Stderr, "WARN: CHAT_PROVIDER_API_KEY not set — skipping model path, keyword path only")
	}

	fmt.Fprintf(os.Stderr, "Benchmark: classifier model path vs keyword fallback\n")
	fmt.Fprintf(os.Stderr, "Queries: %d\n\n", len(queries))

	var results []benchResult

	for _, q := range queries {
		fmt.Fprintf(os.Stderr, "  [%d/%d] %q ...\n", q.ID, len(queries), truncate(q.Query, 50))

		kr := runBenchmark(ctx, keywordClassifier, q, "keyword")
		results = append(results, kr)
		fmt.Fprintf(os.Stderr, "    keyword: %dms  agents=%v\n", kr.LatencyMs, kr.Agents)

		if modelClassifier != nil {
			mr := runBenchmark(ctx, modelClassifier, q, "model")
			results = append(results, mr)
			fmt.Fprintf(os.Stderr, "    model:   %dms  agents=%v\n", mr.LatencyMs, mr.Agents)
			time.Sleep(300 * time.Millisecond)
		}
	}

	printReport(results, modelClassifier != nil)
}

func runBenchmark(ctx context.Context, c *classifier.Classifier, q benchQuery, path string) benchResult {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	start := time.Now()
	plan := c.Classify(ctx, q.Query)
	elapsed := time.Since(start)

	agents := make([]string, 0, len(plan.Entries))
	for _, e := range plan.Entries {
		agents = append(agents, string(e.Agent))
	}

	return benchResult{
		QueryID:   q.ID,
		Path:      path,
		LatencyMs: elapsed.Milliseconds(),
		Agents:    agents,
	}
}

func printReport(results []benchResult, hasModel bool) {
	now := time.Now().Format("2006-01-02 15:04 MST")

	fmt.Println("# Classifier Routing Benchmark")
	fmt.Println()
	fmt.Printf("**Date:** %s\n", now)
	if hasModel {
		fmt.Println("**Paths:** model vs keyword")
	} else {
		fmt.Println("**Paths:** keyword only — model path not tested (no API key)")
	}
	fmt.Println()
	fmt.Println("---")
	fmt.Println()

	fmt.Println("## Per-Query Results")
	fmt.Println()
	fmt.Println("| # | Category | Query | Keyword Agents | Keyword ms | Model Agents | Model ms | Agreement |")
	fmt.Println("|---|----------|-------|-----------------|------------|--------------|----------|-----------|")

	for _, q := range queries {
		var kr, mr benchResult
		var mrTested bool
		for _, r := range results {
			if r.QueryID == q.ID && r.Path == "keyword" {
				kr = r
			}
			if r.QueryID == q.ID && r.Path == "model" {
				mr = r
				mrTested = true
			}
		}

		agreement := "—"
		if mrTested {
			agreement = "no"
			if sameAgents(kr.Agents, mr.Agents) {
				agreement = "yes"
			}
		}

		mAgents := "—"
		mMs := "—"
		if mrTested {
			mAgents = strings.Join(mr.Agents, ",")
			mMs = fmt.Sprintf("%d", mr.LatencyMs)
		}

		fmt.Printf("| %d | %s | %s | %s | %d | %s | %s | %s |\n",
			q.ID, q.Category, truncate(q.Query, 40), strings.Join(kr.Agents, ","), kr.LatencyMs, mAgents, mMs, agreement)
	}

	fmt.Println()
	fmt.Println("---")
	fmt.Println()

	fmt.Println("## Summary Statistics")
	fmt.Println()

	keywordLatencies := collectLatencies(results, "keyword")
	fmt.Println("| Metric | Keyword | Model |")
	fmt.Println("|--------|---------|-------|")
	fmt.Printf("| Avg latency | %dms | %s |\n", avg(keywordLatencies), fmtModelStat(results, hasModel, avg))
	fmt.Printf("| P95 latency | %dms | %s |\n", percentile(keywordLatencies, 95), fmtModelPercentile(results, hasModel, 95))

	if hasModel {
		agreementCount := 0
		for _, q := range queries {
			var kr, mr benchResult
			for _, r := range results {
				if r.QueryID == q.ID && r.Path == "keyword" {
					kr = r
				}
				if r.QueryID == q.ID && r.Path == "model" {
					mr = r
				}
			}
			if sameAgents(kr.Agents, mr.Agents) {
				agreementCount++
			}
		}
		fmt.Printf("\nAgent-selection agreement: %d/%d queries\n", agreementCount, len(queries))
	}

	fmt.Println()
	fmt.Println("---")
	fmt.Println()
	fmt.Println("## Recommendation")
	fmt.Println()
	if !hasModel {
		fmt.Println("**Incomplete comparison** — only the keyword path was tested. Re-run with")
		fmt.Println("`CHAT_PROVIDER_API_KEY` set to measure the model path.")
	} else {
		fmt.Println("Keyword routing has no network dependency and a fixed latency floor; the model")
		fmt.Println("path costs a round trip per request but can route ambiguous phrasing the keyword")
		fmt.Println("table misses. Classify always prefers the model path when available and only")
		fmt.Println("falls back on a rejected or failed classification, so this comparison bounds the")
		fmt.Println("worst case added latency of keeping the model path enabled.")
	}
}

func sameAgents(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	sa := append([]string{}, a...)
	sb := append([]string{}, b...)
	sort.Strings(sa)
	sort.Strings(sb)
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}
	return true
}

func collectLatencies(results []benchResult, path string) []int64 {
	var vals []int64
	for _, r := range results {
		if r.Path == path {
			vals = append(vals, r.LatencyMs)
		}
	}
	return vals
}

func fmtModelStat(results []benchResult, hasModel bool, fn func([]int64) int64) string {
	if !hasModel {
		return "—"
	}
	return fmt.Sprintf("%dms", fn(collectLatencies(results, "model")))
}

func fmtModelPercentile(results []benchResult, hasModel bool, p float64) string {
	if !hasModel {
		return "—"
	}
	return fmt.Sprintf("%dms", percentile(collectLatencies(results, "model"), p))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func avg(vals []int64) int64 {
	if len(vals) == 0 {
		return 0
	}
	var sum int64
	for _, v := range vals {
		sum += v
	}
	return sum / int64(len(vals))
}

func percentile(vals []int64, p float64) int64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := make([]int64, len(vals))
	copy(sorted, vals)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := int(p/100*float64(len(sorted))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
