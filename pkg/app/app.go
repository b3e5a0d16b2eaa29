// Package app defines common runtime contracts shared by the cmd/* binaries.
package app

// Runner represents a runnable application component.
type Runner interface {
	Run() error
}
