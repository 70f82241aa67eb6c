package main

import "testing"

func TestRootCommandHasExpectedSubcommands(t *testing.T) {
	root := newRootCommand()

	names := map[string]bool{}
	for _, cmd := range root.Commands() {
		names[cmd.Name()] = true
	}
	for _, want := range []string{"run", "print-config"} {
		if !names[want] {
			t.Fatalf("subcommand %q not registered", want)
		}
	}

	if flag := root.PersistentFlags().Lookup("config"); flag == nil {
		t.Fatal("--config persistent flag not registered")
	}
}
