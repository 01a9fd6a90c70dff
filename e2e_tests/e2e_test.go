//go:build integration

package e2etest

import (
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChainSafe/stm8dce/analyzer"
)

const (
	binary      = "../bin/stm8dce"
	testdataDir = "testdata"
)

type testcase struct {
	args             []string
	removedFunctions int
	removedConstants int
	nullVectors      int
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := exec.Command(binary, args...)
	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut
	err := cmd.Run()
	return out.String(), errOut.String(), err
}

func countLines(t *testing.T, path string) int {
	t.Helper()
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	return bytes.Count(content, []byte("\n"))
}

func TestSweep(t *testing.T) {
	cases := map[string]testcase{
		"blinky": {
			removedFunctions: 2,
			removedConstants: 1,
		},
		"blinky_opt_irq": {
			args:             []string{"-opt-irq"},
			removedFunctions: 3,
			removedConstants: 1,
			nullVectors:      1,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			outDir := t.TempDir()
			args := append([]string{"sweep", "-o", outDir, "-format", "json"}, tc.args...)
			args = append(args, filepath.Join(testdataDir, "blinky"))

			out, errOut, err := run(t, args...)
			if err != nil {
				t.Fatalf("Failed to run CLI: %v. errorOutput: %s", err, errOut)
			}

			var report analyzer.Report
			require.NoError(t, json.Unmarshal([]byte(out), &report))
			assert.Equal(t, analyzer.Totals{Removed: tc.removedFunctions, Total: 9}, report.Functions)
			assert.Equal(t, analyzer.Totals{Removed: tc.removedConstants, Total: 2}, report.Constants)

			for _, name := range []string{"main.asm", "uart.asm"} {
				assert.Equal(t,
					countLines(t, filepath.Join(testdataDir, "blinky", name)),
					countLines(t, filepath.Join(outDir, name)),
					"line count of %s changed", name)
			}

			swept, err := os.ReadFile(filepath.Join(outDir, "main.asm"))
			require.NoError(t, err)
			assert.Contains(t, string(swept), ";_unused_helper:\n")
			assert.Contains(t, string(swept), "\n;_message:\n")
			assert.Equal(t, tc.nullVectors, strings.Count(string(swept), "\tint 0x000000\n"))

			// A second pass over its own output finds nothing left to remove.
			out, errOut, err = run(t, "sweep", "-o", outDir, "-format", "json", outDir)
			if err != nil {
				t.Fatalf("Failed to run CLI: %v. errorOutput: %s", err, errOut)
			}
			report = analyzer.Report{}
			require.NoError(t, json.Unmarshal([]byte(out), &report))
			assert.Equal(t, 0, report.Functions.Removed)
		})
	}
}

func TestSweepConflict(t *testing.T) {
	outDir := t.TempDir()
	_, errOut, err := run(t, "sweep", "-o", outDir, filepath.Join(testdataDir, "conflict"))
	require.Error(t, err)
	assert.Contains(t, errOut, "conflicting definitions for exported symbol _led_toggle")

	entries, err := os.ReadDir(filepath.Join(testdataDir, "conflict"))
	require.NoError(t, err)
	for _, entry := range entries {
		want, err := os.ReadFile(filepath.Join(testdataDir, "conflict", entry.Name()))
		require.NoError(t, err)
		got, err := os.ReadFile(filepath.Join(outDir, entry.Name()))
		require.NoError(t, err)
		assert.Equal(t, string(want), string(got), "%s was modified", entry.Name())
	}
}

func TestTrace(t *testing.T) {
	out, errOut, err := run(t, "trace", "-f", "_uart_putc", filepath.Join(testdataDir, "blinky"))
	if err != nil {
		t.Fatalf("Failed to run CLI: %v. errorOutput: %s", err, errOut)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "(_EXTI_PORTA_IRQHandler)")
	assert.Contains(t, lines[1], "(_uart_puts)")
	assert.Contains(t, lines[2], "(_uart_putc)")

	_, errOut, err = run(t, "trace", "-f", "_uart_getc", filepath.Join(testdataDir, "blinky"))
	require.Error(t, err)
	assert.Contains(t, errOut, "not reachable")
}
