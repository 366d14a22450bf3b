// Package ui provides terminal UI components for the blobpack CLI.
//
// Components use Lipgloss for styling and follow a "run once and exit"
// pattern: they render output but do not require user interaction, with
// the exception of the flash write confirmation.
//
//   - Header: command banner showing the operation and its parameters
//   - Progress: step list showing real-time status of a load
//   - Result: success, warning and failure boxes
//   - Table: blob layout listing for inspect and build
//   - Output: raw GDB output box for verbose mode and failures
//
// Runner ties header, progress and result together. During a load the
// GDB script's stdout is streamed into a StepWriter, which turns the
// "[i/n]" and "[OK]" markers into step callbacks:
//
//	runner := ui.NewRunner(ui.RunnerConfig{
//	    Title:      "Blob Load",
//	    Command:    "blobpack load",
//	    TotalSteps: script.TotalSteps(),
//	    StepNames:  script.StepNames(),
//	})
//	err := runner.Run(ctx, func(ctx context.Context, onStep ui.StepCallback) ([]ui.Field, error) {
//	    w := ui.NewStepWriter(onStep)
//	    // hand w to the executor as its stdout
//	    ...
//	})
//
// Logging is controlled separately through BLOBPACK_LOG_LEVEL. When it is
// unset zap is silent and only this package's output is shown.
package ui
