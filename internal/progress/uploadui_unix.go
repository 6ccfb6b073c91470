//go:build !windows

package progress

import "os"

// enableWindowsANSI is a no-op off Windows; Unix terminals speak ANSI.
func enableWindowsANSI(f *os.File) {}
