// SPDX-License-Identifier: MPL-2.0

// Command wheelwright builds reproducible Python distribution archives.
package main

import cmd "wheelwright/cmd/wheelwright"

func main() {
	cmd.Execute()
}
