// Blobpack packs auxiliary binary payloads into or alongside embedded
// firmware.
//
// For each blob in Blobs.yaml it decides, per build profile, whether the
// payload is embedded in the firmware image or stored in a region carved
// out of flash and programmed separately:
//
//   - build: lay out blobs, shrink the linker script's FLASH region,
//     generate Go accessors and write the manifest
//   - inspect: show the layout a build would produce without writing
//   - load: program non-inline blobs through arm-none-eabi-gdb and OpenOCD
//
// Usage:
//
//	blobpack [command] [flags]
//
// See 'blobpack --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/blobpack/internal/logging"
	"github.com/muurk/blobpack/internal/version"
)

func main() {
	err := rootCmd.Execute()
	logging.Sync()
	if err != nil {
		// Failures were already shown in a result box
		if !isReported(err) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "blobpack",
	Short: "Embedded firmware blob packer",
	Long: `Pack auxiliary binary payloads into or alongside embedded firmware.

Blobs listed in Blobs.yaml are either embedded in the firmware image with
//go:embed or stored in space carved off the end of a linker script memory
region and programmed separately with 'blobpack load'. Generated accessors
verify the SHA-1 of loaded blobs on first use.`,
	Version: version.Full(),
	Example: `  # Show the layout for a release build
  blobpack inspect --profile release

  # Build with defaults (Blobs.yaml, memory.x, region FLASH)
  blobpack build

  # Program non-inline blobs through OpenOCD
  blobpack load --target target`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.Initialize(logLevel)
	},
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level (debug, info, warn, error); default from "+logging.LogLevelEnvVar+", silent when unset")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "blobpack %s\n", version.Full())
	},
}
