package main

import (
	"os"
	"os/exec"

	"github.com/goyek/goyek/v2"
)

func goCmd(a *goyek.A, args ...string) {
	cmd := exec.Command("go", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		a.Error(err)
	}
}

var vet = goyek.Define(goyek.Task{
	Name:  "vet",
	Usage: "Run go vet on all packages",
	Action: func(a *goyek.A) {
		goCmd(a, "vet", "./...")
	},
})

var test = goyek.Define(goyek.Task{
	Name:  "test",
	Usage: "Run all tests, including those that need docker or modal",
	Action: func(a *goyek.A) {
		goCmd(a, "test", "-race", "./...")
	},
})

var testShort = goyek.Define(goyek.Task{
	Name:  "test-short",
	Usage: "Run tests that need no docker daemon or modal credentials",
	Action: func(a *goyek.A) {
		goCmd(a, "test", "-short", "./...")
	},
})

var all = goyek.Define(goyek.Task{
	Name:  "all",
	Usage: "Vet and run short tests",
	Deps:  goyek.Deps{vet, testShort},
})

func main() {
	goyek.SetDefault(all)
	goyek.Main(os.Args[1:])
}
