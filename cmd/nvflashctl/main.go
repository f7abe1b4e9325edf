/*
   NVFlash - log-structured NVRAM on byte-programmable flash
   Copyright (c) 2021, Alexander Vollschwitz

   This file is part of NVFlash.

   NVFlash is free software: you can redistribute it and/or modify
   it under the terms of the GNU General Public License as published by
   the Free Software Foundation, either version 3 of the License, or
   (at your option) any later version.

   NVFlash is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
   GNU General Public License for more details.

   You should have received a copy of the GNU General Public License
   along with NVFlash. If not, see <http://www.gnu.org/licenses/>.
*/

package main

import (
	"fmt"
	"os"

	"github.com/xelalexv/nvflash/pkg/run"
)

//
var NVFlashVersion string

//
func synopsis() {
	fmt.Print(`
synopsis: nvflashctl {serve|status|format|read|write|ls|dump|version} ...

run 'nvflashctl {action} -h|--help' to see detailed info

`)
}

//
func version() {
	fmt.Printf("\nNVFlash %s\n\n", NVFlashVersion)
}

//
func main() {

	var action string
	var args []string

	if len(os.Args) > 1 {
		action = os.Args[1]
	}

	if len(os.Args) > 2 {
		args = os.Args[2:]
	}

	switch action {

	case "serve":
		version()
		run.DieOnError(run.NewServe().Execute(args))

	case "status":
		run.DieOnError(run.NewStatus().Execute(args))

	case "format":
		run.DieOnError(run.NewFormat().Execute(args))

	case "read":
		run.DieOnError(run.NewRead().Execute(args))

	case "write":
		run.DieOnError(run.NewWrite().Execute(args))

	case "ls":
		run.DieOnError(run.NewList().Execute(args))

	case "dump":
		run.DieOnError(run.NewDump().Execute(args))

	case "version":
		version()

	case "-h", "--help", "help":
		synopsis()

	default:
		synopsis()
		os.Exit(1)
	}
}
