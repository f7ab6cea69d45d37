//go:build !unix

package cli

// raiseFileLimit is a no-op on platforms without rlimits.
func raiseFileLimit() error {
	return nil
}
