package parser

import (
	"strings"
	"testing"
)

func newTestParser(t *testing.T) *Parser {
	t.Helper()
	return NewParser(NewGrammarLoader(nil))
}

func findDefinition(file *File, name string) *Definition {
	for i := range file.Definitions {
		if file.Definitions[i].Name == name {
			return &file.Definitions[i]
		}
	}
	return nil
}

func TestDetectLanguage(t *testing.T) {
	p := newTestParser(t)

	cases := []struct {
		path string
		want string
	}{
		{"src/app.ts", "typescript"},
		{"src/App.tsx", "tsx"},
		{"lib/index.js", "javascript"},
		{"cmd/main.go", "go"},
		{"scripts/build.py", "python"},
		{"src/app.test.ts", "typescript"},
		{"README.md", ""},
		{"Makefile", ""},
	}
	for _, tc := range cases {
		if got := p.GetLanguage(tc.path); got != tc.want {
			t.Errorf("GetLanguage(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}

func TestIsTestFile(t *testing.T) {
	p := newTestParser(t)

	if !p.IsTestFile("src/checkout.test.ts") {
		t.Error("expected .test.ts to be a test file")
	}
	if !p.IsTestFile("internal/graph/graph_test.go") {
		t.Error("expected _test.go to be a test file")
	}
	if p.IsTestFile("src/checkout.ts") {
		t.Error("checkout.ts is not a test file")
	}
}

func TestIsExternalPath(t *testing.T) {
	if !IsExternalPath("web/node_modules/react/index.js") {
		t.Error("node_modules should be external")
	}
	if !IsExternalPath("vendor/github.com/pkg/errors/errors.go") {
		t.Error("vendor should be external")
	}
	if IsExternalPath("src/services/orders.ts") {
		t.Error("project source should not be external")
	}
}

func TestParseTypeScriptExportedOnce(t *testing.T) {
	p := newTestParser(t)

	source := `
import { applyTax } from "./tax";

export function total(price: number): number {
  return applyTax(price);
}
`
	file, err := p.ParseFile("src/total.ts", []byte(source))
	if err != nil {
		t.Fatal(err)
	}

	count := 0
	for _, def := range file.Definitions {
		if def.Name == "total" {
			count++
			if !def.Exported {
				t.Errorf("total extracted with exported=%v, want true", def.Exported)
			}
		}
	}
	if count != 1 {
		t.Errorf("total extracted %d times, want 1", count)
	}

	calls := 0
	for _, ref := range file.References {
		if ref.Name == "applyTax" {
			calls++
		}
	}
	if calls != 1 {
		t.Errorf("applyTax referenced %d times, want 1", calls)
	}
}

func TestParseTypeScriptExports(t *testing.T) {
	p := newTestParser(t)

	source := `
import { calculateTax } from "./tax";
import axios from "axios";

export interface Order {
  id: string;
  total: number;
  note?: string;
}

export function calculateOrderTotal(items: Item[], taxRate: number): number {
  let total = 0;
  for (const item of items) {
    if (item.active) {
      total += item.price;
    }
  }
  return total + calculateTax(total, taxRate);
}

const helper = () => 42;
`
	file, err := p.ParseFile("src/orders.ts", []byte(source))
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}

	if len(file.Imports) != 2 {
		t.Fatalf("expected 2 imports, got %d", len(file.Imports))
	}
	if !file.Imports[0].IsRelative {
		t.Error("./tax import should be relative")
	}
	if file.Imports[1].Module != "axios" {
		t.Errorf("expected axios import, got %q", file.Imports[1].Module)
	}

	order := findDefinition(file, "Order")
	if order == nil {
		t.Fatal("Order interface missing")
	}
	if order.Kind != KindInterface || !order.Exported {
		t.Errorf("Order: kind=%v exported=%v", order.Kind, order.Exported)
	}
	if len(order.Fields) != 3 {
		t.Fatalf("Order fields = %d, want 3", len(order.Fields))
	}
	var note *Field
	for i := range order.Fields {
		if order.Fields[i].Name == "note" {
			note = &order.Fields[i]
		}
	}
	if note == nil || !note.Optional {
		t.Error("note field should be optional")
	}

	fn := findDefinition(file, "calculateOrderTotal")
	if fn == nil {
		t.Fatal("calculateOrderTotal missing")
	}
	if !fn.Exported || fn.Kind != KindFunction {
		t.Errorf("calculateOrderTotal: exported=%v kind=%v", fn.Exported, fn.Kind)
	}
	if fn.ParameterCount != 2 {
		t.Errorf("parameter count = %d, want 2", fn.ParameterCount)
	}
	if fn.ReturnType != "number" {
		t.Errorf("return type = %q, want number", fn.ReturnType)
	}
	if fn.BranchCount == 0 {
		t.Error("expected branches counted inside calculateOrderTotal")
	}

	helper := findDefinition(file, "helper")
	if helper == nil {
		t.Fatal("helper missing")
	}
	if helper.Exported {
		t.Error("helper should not be exported")
	}

	exports := file.Exports()
	for _, d := range exports {
		if d.Name == "helper" {
			t.Error("Exports() should exclude unexported definitions")
		}
	}
}

func TestParseGoFile(t *testing.T) {
	p := newTestParser(t)

	source := `package billing

import (
	"fmt"

	tax "example.com/pricing/tax"
)

type Invoice struct {
	ID    string
	Total float64
	memo  string
}

func (i *Invoice) Describe() string {
	return fmt.Sprintf("%s: %.2f", i.ID, i.Total)
}

func Total(price, rate float64) float64 {
	if rate < 0 {
		return price
	}
	return price + tax.Apply(price, rate)
}
`
	file, err := p.ParseFile("internal/billing/invoice.go", []byte(source))
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}

	if file.PackageName != "billing" {
		t.Errorf("package = %q, want billing", file.PackageName)
	}
	if len(file.Imports) != 2 {
		t.Fatalf("imports = %d, want 2", len(file.Imports))
	}
	var aliased *Import
	for i := range file.Imports {
		if file.Imports[i].Alias == "tax" {
			aliased = &file.Imports[i]
		}
	}
	if aliased == nil || aliased.Module != "example.com/pricing/tax" {
		t.Error("aliased import example.com/pricing/tax not recorded")
	}

	inv := findDefinition(file, "Invoice")
	if inv == nil {
		t.Fatal("Invoice missing")
	}
	if !inv.Exported || len(inv.Fields) != 3 {
		t.Errorf("Invoice: exported=%v fields=%d", inv.Exported, len(inv.Fields))
	}

	method := findDefinition(file, "Invoice.Describe")
	if method == nil {
		t.Fatal("Invoice.Describe missing")
	}
	if method.Kind != KindMethod {
		t.Errorf("Describe kind = %v, want method", method.Kind)
	}

	total := findDefinition(file, "Total")
	if total == nil {
		t.Fatal("Total missing")
	}
	if total.ParameterCount != 2 {
		t.Errorf("Total parameter count = %d, want 2", total.ParameterCount)
	}
}

func TestParsePythonFile(t *testing.T) {
	p := newTestParser(t)

	source := `import json
from .models import Order, LineItem

class OrderService:
    def total(self, order, discount=0.0):
        result = 0
        for item in order.items:
            if item.active:
                result += item.price
        return result - discount

def _internal_helper(payload):
    return json.loads(payload)
`
	file, err := p.ParseFile("services/orders.py", []byte(source))
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}

	var relative *Import
	for i := range file.Imports {
		if file.Imports[i].IsRelative {
			relative = &file.Imports[i]
		}
	}
	if relative == nil {
		t.Fatal("relative from-import not recorded")
	}
	if len(relative.Items) != 2 {
		t.Errorf("relative import items = %v, want Order and LineItem", relative.Items)
	}

	cls := findDefinition(file, "OrderService")
	if cls == nil || cls.Kind != KindClass {
		t.Fatal("OrderService class missing")
	}

	method := findDefinition(file, "OrderService.total")
	if method == nil {
		t.Fatal("OrderService.total missing")
	}
	if method.ParameterCount != 2 {
		t.Errorf("total parameter count = %d, want 2 (self excluded)", method.ParameterCount)
	}
	if len(method.Params) != 2 || !method.Params[1].Optional {
		t.Errorf("discount should be an optional parameter: %+v", method.Params)
	}

	helper := findDefinition(file, "_internal_helper")
	if helper == nil {
		t.Fatal("_internal_helper missing")
	}
	if helper.Exported {
		t.Error("underscore-prefixed functions are private")
	}
}

func TestParseFilePartialOnSyntaxError(t *testing.T) {
	p := newTestParser(t)

	source := `
export function good(a: number): number {
  return a * 2;
}

export function broken(a: number {
`
	file, err := p.ParseFile("src/broken.ts", []byte(source))
	if err == nil {
		t.Fatal("expected a parse error for malformed source")
	}
	if file == nil {
		t.Fatal("partial analysis must still be returned")
	}
	if !file.ParseFailed {
		t.Error("ParseFailed should be set")
	}
	if findDefinition(file, "good") == nil {
		t.Error("recoverable definitions should survive a syntax error")
	}
	if !strings.Contains(err.Error(), "PARSE_ERROR") {
		t.Errorf("error should carry the PARSE_ERROR code: %v", err)
	}
}

func TestParseFileUnsupportedLanguage(t *testing.T) {
	p := newTestParser(t)

	file, err := p.ParseFile("notes.txt", []byte("hello"))
	if err == nil {
		t.Fatal("expected error for unsupported file")
	}
	if file != nil {
		t.Error("no analysis expected for unsupported language")
	}
}

func TestExtractAPIContract(t *testing.T) {
	p := newTestParser(t)

	source := `
export interface User { id: string; }
export function loadUser(id: string): User { return null as any; }
export const MAX_USERS = 100;
function hidden() {}
`
	file, err := p.ParseFile("src/users.ts", []byte(source))
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}

	contract := ExtractAPIContract(file)
	if _, ok := contract.FindFunction("loadUser"); !ok {
		t.Error("loadUser should be in the contract")
	}
	if _, ok := contract.FindType("User"); !ok {
		t.Error("User should be in the contract")
	}
	if _, ok := contract.FindFunction("hidden"); ok {
		t.Error("unexported functions do not belong in the contract")
	}
	if len(contract.Variables) != 1 {
		t.Errorf("contract variables = %d, want 1", len(contract.Variables))
	}
}
