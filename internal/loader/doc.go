// Package loader programs non-inline blobs into device flash.
//
// The loader reads the manifest written by a build, re-hashes each blob
// file against it and then drives arm-none-eabi-gdb connected to an OpenOCD
// GDB server. For every blob the generated GDB script issues
//
//	monitor flash write_image erase {file} 0xADDRESS bin
//	monitor verify_image {file} 0xADDRESS bin
//
// in address order between a halt and a reset. Progress is reported through
// echoed step markers ("[2/4] Writing font ...", "[OK] font") that the
// script's parser turns into a scripts.Result.
//
// # Prerequisites
//
//   - arm-none-eabi-gdb (or gdb-multiarch) on PATH or passed explicitly
//   - OpenOCD running with the probe and target configured, e.g.
//     openocd -f interface/cmsis-dap.cfg -f target/rp2040.cfg
//
// # Usage
//
//	exec := loader.NewExecutor(loader.DefaultConfig(), logger)
//	m, err := manifest.Load(manifest.Path("target"))
//	if err != nil {
//	    return err
//	}
//	result, err := loader.New(exec, logger).Load(ctx, m, loader.Options{})
//
// A blob file that changed since the build is refused with a
// ChecksumMismatchError: the firmware checks the same digest and would
// panic on first access.
package loader
