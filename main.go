// Public domain.

package main

import "github.com/justincely/cosmo/internal/shiftprog"

func main() {
	shiftprog.Main()
}
