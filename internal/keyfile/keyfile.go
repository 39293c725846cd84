// Package keyfile prepares private key files for the ssh and scp tools.
package keyfile

import (
	"fmt"
	"os"
)

// Mode is the only permission set ssh accepts for a private key.
const Mode os.FileMode = 0o600

// Arg fixes the permissions of the key at path and returns the
// "-i <path>" fragment for a command line. An empty path yields "".
//
// Git does not track read/write bits, so a checked-in key usually
// arrives world-readable; the chmod runs on every call.
func Arg(path string) (string, error) {
	args, err := Args(path)
	if err != nil || len(args) == 0 {
		return "", err
	}
	return args[0] + " " + args[1], nil
}

// Args is like Arg but returns the fragment as argv entries.
func Args(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	if err := os.Chmod(path, Mode); err != nil {
		return nil, fmt.Errorf("failed to set key file mode: %w", err)
	}
	return []string{"-i", path}, nil
}
