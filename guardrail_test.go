package guardrail

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guardrail/internal/core/config"
	"guardrail/internal/engine/impact"
)

func writeProjectFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newTestEngine(t *testing.T) (*Engine, string) {
	t.Helper()
	root := t.TempDir()
	writeProjectFile(t, root, "src/orders.ts", `
import { formatPrice } from "./pricing";

export function orderTotal(price: number, tax: number): string {
  return formatPrice(price + tax);
}
`)
	writeProjectFile(t, root, "src/pricing.ts", `
export function formatPrice(amount: number): string {
  return amount.toFixed(2);
}
`)
	writeProjectFile(t, root, "src/report.ts", `
import { formatPrice } from "./pricing";

export function renderReport(amount: number): string {
  return "total: " + formatPrice(amount);
}
`)

	cfg := config.Default()
	cfg.Paths.ProjectRoot = root
	cfg.Cache.Enabled = false

	engine, err := New(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })
	return engine, root
}

func TestEngineScanAndDependencies(t *testing.T) {
	engine, _ := newTestEngine(t)

	result, err := engine.ScanProject(context.Background())
	require.NoError(t, err)
	assert.Len(t, result.Failed, 0)
	assert.Equal(t, 3, engine.Graph().NodeCount())

	dependents := engine.AnalyzeDependencies("src/pricing.ts")
	assert.ElementsMatch(t, []string{"src/orders.ts", "src/report.ts"}, dependents)

	paths := engine.CriticalPaths()
	require.NotEmpty(t, paths)
	assert.Equal(t, "src/pricing.ts", paths[0].Path)
	assert.Empty(t, engine.DetectCycles())
}

func TestEngineAnalyzeChangePipeline(t *testing.T) {
	engine, root := newTestEngine(t)
	_, err := engine.ScanProject(context.Background())
	require.NoError(t, err)

	oldContent, err := os.ReadFile(filepath.Join(root, "src", "pricing.ts"))
	require.NoError(t, err)
	newContent := []byte(`
export function formatPrice(amount: number, currency: string): string {
  return currency + amount.toFixed(2);
}
`)

	change := impact.NewChange(impact.ChangeModify, "src/pricing.ts", oldContent, newContent)
	analysis, err := engine.AnalyzeChange(context.Background(), change)
	require.NoError(t, err)

	require.Len(t, analysis.BreakingChanges, 1)
	bc := analysis.BreakingChanges[0]
	assert.Equal(t, impact.SeverityMajor, bc.Severity)
	assert.False(t, bc.AutoFixable)
	assert.Len(t, bc.AffectedUsages, 2)
	assert.Contains(t, analysis.AffectedFiles, "src/orders.ts")
	assert.Contains(t, analysis.AffectedFiles, "src/report.ts")
	assert.NotEmpty(t, analysis.MitigationStrategies)

	results := engine.ExecuteRules(context.Background(), change)
	require.NotEmpty(t, results)
	assert.Equal(t, "no-breaking-changes", results[0].RuleID)
}

func TestEngineDetectSimilarCode(t *testing.T) {
	engine, _ := newTestEngine(t)
	_, err := engine.ScanProject(context.Background())
	require.NoError(t, err)

	matches, err := engine.DetectSimilarCode("src/pricing2.ts", []byte(`
export function formatPrice(amount: number): string {
  return amount.toFixed(2);
}
`))
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Equal(t, "src/pricing.ts", matches[0].FilePath)
	assert.GreaterOrEqual(t, matches[0].Similarity, 0.75)
}

func TestEngineContractAndCompatibility(t *testing.T) {
	engine, _ := newTestEngine(t)

	contract, err := engine.ExtractAPIContract("src/order.ts", []byte(`
export interface Order {
  id: string;
  total: number;
  note?: string;
}
`))
	require.NoError(t, err)
	oldOrder, ok := contract.FindType("Order")
	require.True(t, ok)

	newContract, err := engine.ExtractAPIContract("src/order.ts", []byte(`
export interface Order {
  id: string;
  note?: string;
}
`))
	require.NoError(t, err)
	newOrder, ok := newContract.FindType("Order")
	require.True(t, ok)

	result := engine.ValidateTypeCompatibility(oldOrder, newOrder)
	assert.False(t, result.Compatible)

	same := engine.ValidateTypeCompatibility(oldOrder, oldOrder)
	assert.True(t, same.Compatible)
}

func TestEngineAnalyzeFileRefreshesGraph(t *testing.T) {
	engine, root := newTestEngine(t)
	_, err := engine.ScanProject(context.Background())
	require.NoError(t, err)

	writeProjectFile(t, root, "src/discounts.ts", `
import { formatPrice } from "./pricing";

export function discounted(amount: number): string {
  return formatPrice(amount * 0.9);
}
`)
	file, err := engine.AnalyzeFile(context.Background(), filepath.Join(root, "src", "discounts.ts"))
	require.NoError(t, err)
	assert.Equal(t, "src/discounts.ts", file.Path)

	_, ok := engine.Graph().GetNode("src/discounts.ts")
	assert.True(t, ok)
	assert.Contains(t, engine.AnalyzeDependencies("src/pricing.ts"), "src/discounts.ts")
}
