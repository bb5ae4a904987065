//go:build !windows

package main

import "context"

// RunAsService is a no-op outside Windows. Returns false so the application
// runs on the normal interactive paths.
func RunAsService(run func(ctx context.Context) error) (bool, error) {
	return false, nil
}

// HandleServiceCommand is a no-op outside Windows.
func HandleServiceCommand(args []string) bool {
	return false
}
