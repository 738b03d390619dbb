package vm

import (
	"testing"

	"fun/internal/compiler"
	"fun/internal/value"
)

// runSource compiles and runs src, returning its printed output stringified
// in order, matching the end-to-end scenarios of spec §8. PRINT renders
// Array/Map recursively (§9 open question 3), so FormatForPrint is used
// rather than the TO_STRING/CAST summary form.
func runSource(t *testing.T, src string) []string {
	t.Helper()
	program, err := compiler.CompileString(src, "<scenario>")
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	m := New()
	if err := m.Run(program); err != nil {
		t.Fatalf("run error: %v", err)
	}
	out := make([]string, len(m.Output()))
	for i, v := range m.Output() {
		out[i] = value.FormatForPrint(v)
	}
	return out
}

func assertOutput(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d printed lines %v, got %d %v", len(want), want, len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestScenarioArithmeticAndPrint(t *testing.T) {
	src := `number a = 2
number b = 3
print(a + b * 4)
`
	assertOutput(t, runSource(t, src), []string{"14"})
}

func TestScenarioWhileBreakContinue(t *testing.T) {
	src := `number i = 0
while i < 10
  i = i + 1
  if i == 3
    continue
  if i == 7
    break
  print(i)
`
	assertOutput(t, runSource(t, src), []string{"1", "2", "4", "5", "6"})
}

func TestScenarioArrayMapIteration(t *testing.T) {
	src := `xs = [10, 20, 30]
total = 0
for x in xs
  total = total + x
print(total)
m = { "a": 1, "b": 2 }
print(m["a"] + m["b"])
`
	assertOutput(t, runSource(t, src), []string{"60", "3"})
}

func TestScenarioRecursiveFunction(t *testing.T) {
	src := `fun fact(n)
  if n <= 1
    return 1
  return n * fact(n - 1)
print(fact(6))
`
	assertOutput(t, runSource(t, src), []string{"720"})
}

func TestScenarioClassWithMethod(t *testing.T) {
	src := `class Counter(number start)
  n = start
  fun inc(this)
    this.n = this.n + 1
    return this.n
c = Counter(10)
print(c.inc())
print(c.inc())
`
	assertOutput(t, runSource(t, src), []string{"11", "12"})
}

func TestScenarioIntegerWidthClamp(t *testing.T) {
	src := `uint8 x = 300
print(x)
int8 y = 200
print(y)
`
	assertOutput(t, runSource(t, src), []string{"44", "-56"})
}

func TestScenarioImport(t *testing.T) {
	// Multi-file IMPORT needs a real file on disk to resolve against, so
	// the end-to-end case lives in cmd/fun/testdata/script/import.txt
	// instead of here.
	t.Skip("exercises multi-file IMPORT; covered by cmd/fun/testdata/script/import.txt")
}

func TestScenarioArraySharedMutation(t *testing.T) {
	src := `xs = [1, 2, 3]
ys = xs
push(ys, 4)
print(len(xs))
`
	out := runSource(t, src)
	if len(out) != 1 || out[0] != "4" {
		t.Errorf("expected shared-array mutation visible through both handles, got %v", out)
	}
}
