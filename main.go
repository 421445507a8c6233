// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/livebind/livebind/cmd/livebind"

func main() {
	cmd.Execute()
}
